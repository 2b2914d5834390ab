package pipeline

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
)

func TestCondenseShortTextUnchanged(t *testing.T) {
	text := "Short answer."
	assert.Equal(t, text, Condense(text, len(text)))
	assert.Equal(t, text, Condense(text, 100))
	assert.Equal(t, text, Condense(Condense(text, 100), 100))
}

func TestCondenseCutsAtSentence(t *testing.T) {
	text := "The first sentence is here. The second one runs on well past the limit"
	got := Condense(text, 30)
	assert.Equal(t, "The first sentence is here. [Response truncated for memory storage]", got)
}

func TestCondenseCutsAtWhitespace(t *testing.T) {
	text := "alpha beta gamma delta epsilon zeta eta theta"
	got := Condense(text, 19)
	// "alpha beta gamma de" has its last space at 16, past 80% of 19.
	assert.Equal(t, "alpha beta gamma"+TruncationMarker, got)
}

func TestCondenseHardCut(t *testing.T) {
	text := strings.Repeat("x", 50)
	got := Condense(text, 10)
	assert.Equal(t, strings.Repeat("x", 10)+TruncationMarker, got)
}

func TestCondenseBound(t *testing.T) {
	inputs := []string{
		strings.Repeat("word ", 400),
		strings.Repeat("Sentence one. ", 200),
		strings.Repeat("ü", 3000),
		strings.Repeat("a", 1999) + ". tail",
	}
	limit := utf8.RuneCountInString(TruncationMarker)
	for _, in := range inputs {
		for _, n := range []int{1, 7, 100, 1500} {
			got := Condense(in, n)
			assert.LessOrEqual(t, utf8.RuneCountInString(got), n+limit)
		}
	}
}
