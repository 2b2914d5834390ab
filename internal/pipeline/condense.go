package pipeline

import (
	"strings"
	"unicode"
)

const (
	truncationNote = "[Response truncated for memory storage]"
	// TruncationMarker is the longest suffix Condense appends.
	TruncationMarker = "... " + truncationNote
)

// Condense bounds text to maxLength runes before it is stored as a turn.
// It prefers cutting after a sentence terminator past 70% of maxLength, then
// at whitespace past 80%, and otherwise cuts hard. Any cut appends a marker,
// so the result has at most maxLength runes plus len(TruncationMarker).
func Condense(text string, maxLength int) string {
	runes := []rune(text)
	if maxLength <= 0 || len(runes) <= maxLength {
		return text
	}
	truncated := runes[:maxLength]

	lastSentence := -1
	lastSpace := -1
	for i, r := range truncated {
		switch {
		case r == '.' || r == '!' || r == '?':
			lastSentence = i
		case unicode.IsSpace(r):
			lastSpace = i
		}
	}
	if float64(lastSentence) > float64(maxLength)*0.7 {
		return string(truncated[:lastSentence+1]) + " " + truncationNote
	}
	if float64(lastSpace) > float64(maxLength)*0.8 {
		return strings.TrimRightFunc(string(truncated[:lastSpace]), unicode.IsSpace) + TruncationMarker
	}
	return string(truncated) + TruncationMarker
}
