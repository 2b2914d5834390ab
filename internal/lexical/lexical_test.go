package lexical

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestContentTokensDropsStopwords(t *testing.T) {
	assert.Equal(t, []string{"optimizer", "adam"}, ContentTokens("What is the optimizer? Adam."))
}

func TestSentences(t *testing.T) {
	assert.Equal(t, []string{"One.", "Two!", "Three?"}, Sentences("One. Two! Three?"))
	assert.Equal(t, []string{"no terminator"}, Sentences("  no terminator "))
	assert.Nil(t, Sentences("   "))
}

func TestOchiai(t *testing.T) {
	q := TokenSet("adam optimizer")
	assert.InDelta(t, 1.0, Ochiai(q, "Optimizer adam"), 1e-9)
	assert.Zero(t, Ochiai(q, "unrelated words"))
	assert.Zero(t, Ochiai(map[string]struct{}{}, "anything"))
	assert.Equal(t, 1, Overlap(q, "adam adam adam"))
}
