package summarizer

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSummarizeKeepsOriginalOrder(t *testing.T) {
	text := "Transformers use attention. Bananas are yellow. Attention lets transformers scale. Transformers need attention."
	out, err := NewFrequencySummarizer().Summarize(text, 2)
	require.NoError(t, err)
	assert.NotContains(t, out, "Bananas")
	assert.Equal(t, 2, countSentences(out))
}

func TestSummarizeEmpty(t *testing.T) {
	out, err := NewFrequencySummarizer().Summarize("   ", 3)
	require.NoError(t, err)
	assert.Equal(t, "", out)
}

func TestKeywords(t *testing.T) {
	s := NewFrequencySummarizer()
	assert.Equal(t, []string{"optimizer"}, s.Keywords("What optimizer does the paper use?", 4))
	assert.Equal(t, []string{"diffusion", "models", "image"},
		s.Keywords("diffusion models for image diffusion in 2024", 3))
	assert.Nil(t, s.Keywords("anything", 0))
}

func countSentences(s string) int {
	n := 0
	for _, r := range s {
		if r == '.' {
			n++
		}
	}
	return n
}
