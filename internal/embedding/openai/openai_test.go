package openai

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEmbedOrdersByIndex(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/embeddings", r.URL.Path)
		_, _ = w.Write([]byte(`{"data":[{"index":1,"embedding":[0,1]},{"index":0,"embedding":[1,0]}]}`))
	}))
	defer srv.Close()

	c := NewClient(Config{BaseURL: srv.URL, APIKey: "k"})
	vecs, err := c.Embed(context.Background(), []string{"a", "b"})
	require.NoError(t, err)
	assert.Equal(t, [][]float64{{1, 0}, {0, 1}}, vecs)
	assert.Equal(t, 2, c.Dimension())
}

func TestEmbedOllamaShape(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"embedding":[0.5,0.5,0.5]}`))
	}))
	defer srv.Close()

	vecs, err := NewClient(Config{BaseURL: srv.URL}).Embed(context.Background(), []string{"a"})
	require.NoError(t, err)
	assert.Equal(t, [][]float64{{0.5, 0.5, 0.5}}, vecs)
}

func TestEmbedRetriesServerErrors(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_, _ = w.Write([]byte(`{"data":[{"embedding":[1]}]}`))
	}))
	defer srv.Close()

	vecs, err := NewClient(Config{BaseURL: srv.URL, MaxRetries: 2}).Embed(context.Background(), []string{"a"})
	require.NoError(t, err)
	assert.Len(t, vecs, 1)
	assert.Equal(t, int32(2), atomic.LoadInt32(&calls))
}

func TestEmbedAuthFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	_, err := NewClient(Config{BaseURL: srv.URL}).Embed(context.Background(), []string{"a"})
	assert.True(t, errors.Is(err, ErrAuth))
}
