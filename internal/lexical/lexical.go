// Package lexical holds the tokenizer, stopword list and overlap scoring shared
// by the embedder, summarizer, memory ranking and TUI highlighting.
package lexical

import (
	"math"
	"regexp"
	"strings"
)

var (
	wordRe     = regexp.MustCompile(`\p{L}+(?:['’]\p{L}+)*|\p{N}+`)
	sentenceRe = regexp.MustCompile(`(?m)(?U)([^.!?]+[.!?])`)
	stopwords  = buildStopwords()
)

// Tokens lowercases text and returns its word tokens, stopwords included.
func Tokens(text string) []string {
	return wordRe.FindAllString(strings.ToLower(text), -1)
}

// ContentTokens returns Tokens with stopwords removed.
func ContentTokens(text string) []string {
	raw := Tokens(text)
	out := raw[:0]
	for _, t := range raw {
		if IsStopword(t) {
			continue
		}
		out = append(out, t)
	}
	return out
}

// IsStopword reports whether tok is in the stopword list.
func IsStopword(tok string) bool {
	_, ok := stopwords[tok]
	return ok
}

// Sentences splits text on ., ! and ?. Text without a terminator is one sentence.
func Sentences(text string) []string {
	found := sentenceRe.FindAllString(text, -1)
	if len(found) == 0 {
		trimmed := strings.TrimSpace(text)
		if trimmed == "" {
			return nil
		}
		return []string{trimmed}
	}
	out := make([]string, 0, len(found))
	for _, s := range found {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}

// TokenSet returns the distinct tokens of s.
func TokenSet(s string) map[string]struct{} {
	tokens := Tokens(s)
	m := make(map[string]struct{}, len(tokens))
	for _, t := range tokens {
		m[t] = struct{}{}
	}
	return m
}

// Overlap counts distinct tokens of text present in qset.
func Overlap(qset map[string]struct{}, text string) int {
	score := 0
	seen := make(map[string]struct{})
	for _, t := range Tokens(text) {
		if _, ok := seen[t]; ok {
			continue
		}
		seen[t] = struct{}{}
		if _, ok := qset[t]; ok {
			score++
		}
	}
	return score
}

// Ochiai returns |A∩B| / sqrt(|A||B|) over the distinct tokens of the query
// set and text.
func Ochiai(qset map[string]struct{}, text string) float64 {
	seen := TokenSet(text)
	if len(qset) == 0 || len(seen) == 0 {
		return 0
	}
	inter := 0
	for t := range seen {
		if _, ok := qset[t]; ok {
			inter++
		}
	}
	return float64(inter) / (math.Sqrt(float64(len(qset))) * math.Sqrt(float64(len(seen))))
}

func buildStopwords() map[string]struct{} {
	words := []string{
		"a", "an", "the", "and", "or", "but", "if", "then", "else", "for", "to", "of", "in", "on", "at", "by", "with", "as", "is", "are", "was", "were", "be", "been", "being", "it", "this", "that", "these", "those", "from", "up", "down", "over", "under", "again", "further", "than", "so", "such", "into", "about", "between", "through", "during", "before", "after", "above", "below", "out", "off", "own", "same", "too", "very", "can", "will", "just", "don", "should", "now",
		"what", "which", "who", "whom", "how", "why", "when", "where", "do", "does", "did", "i", "you", "we", "they", "he", "she", "me", "my", "our", "your", "their", "its", "there", "here", "paper", "use", "uses", "used",
	}
	m := make(map[string]struct{}, len(words))
	for _, w := range words {
		m[w] = struct{}{}
	}
	return m
}
