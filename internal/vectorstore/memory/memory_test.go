package memory

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"research/internal/domain"
)

func point(id uint64, text string, vec ...float64) domain.Point {
	return domain.Point{ID: id, Vector: vec, Chunk: domain.Chunk{Text: text}}
}

func TestSearchRanksByCosine(t *testing.T) {
	ctx := context.Background()
	s := NewStorage()
	require.NoError(t, s.Init(ctx, 2))
	require.NoError(t, s.Upsert(ctx, []domain.Point{
		point(0, "east", 10, 0),
		point(1, "north", 0, 3),
		point(2, "north-east", 1, 1),
	}))

	res, err := s.Search(ctx, []float64{0, 1}, 2)
	require.NoError(t, err)
	require.Len(t, res, 2)
	assert.Equal(t, "north", res[0].Chunk.Text)
	assert.InDelta(t, 1.0, res[0].Score, 1e-9)
	assert.Equal(t, "north-east", res[1].Chunk.Text)
}

func TestUpsertReplacesExistingID(t *testing.T) {
	ctx := context.Background()
	s := NewStorage()
	require.NoError(t, s.Init(ctx, 2))
	require.NoError(t, s.Upsert(ctx, []domain.Point{point(7, "old", 1, 0)}))
	require.NoError(t, s.Upsert(ctx, []domain.Point{point(7, "new", 1, 0)}))

	n, err := s.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	res, err := s.Search(ctx, []float64{1, 0}, 1)
	require.NoError(t, err)
	assert.Equal(t, "new", res[0].Chunk.Text)
}

func TestUpsertRejectsWrongDimension(t *testing.T) {
	ctx := context.Background()
	s := NewStorage()
	require.NoError(t, s.Init(ctx, 3))
	assert.Error(t, s.Upsert(ctx, []domain.Point{point(0, "x", 1, 0)}))
}

func TestInitSameDimensionKeepsData(t *testing.T) {
	ctx := context.Background()
	s := NewStorage()
	require.NoError(t, s.Init(ctx, 2))
	require.NoError(t, s.Upsert(ctx, []domain.Point{point(0, "x", 1, 0)}))
	require.NoError(t, s.Init(ctx, 2))
	d, err := s.Diagnose(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, d.Count)

	require.NoError(t, s.Clear(ctx))
	n, _ := s.Count(ctx)
	assert.Zero(t, n)
}

func TestConcurrentReadWrite(t *testing.T) {
	ctx := context.Background()
	s := NewStorage()
	require.NoError(t, s.Init(ctx, 2))

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(2)
		go func(i int) {
			defer wg.Done()
			assert.NoError(t, s.Upsert(ctx, []domain.Point{point(uint64(i), fmt.Sprint(i), 1, float64(i))}))
		}(i)
		go func() {
			defer wg.Done()
			_, err := s.Search(ctx, []float64{1, 1}, 3)
			assert.NoError(t, err)
		}()
	}
	wg.Wait()
	n, _ := s.Count(ctx)
	assert.Equal(t, 8, n)
}
