package summarizer

import (
	"math"
	"sort"
	"strings"
	"unicode"

	"research/internal/lexical"
)

// FrequencySummarizer ranks sentences by word frequency (stopwords filtered).
type FrequencySummarizer struct{}

// NewFrequencySummarizer creates a frequency-based sentence ranker summarizer.
func NewFrequencySummarizer() *FrequencySummarizer {
	return &FrequencySummarizer{}
}

// Summarize returns a short summary by ranking sentences using token frequency.
func (s *FrequencySummarizer) Summarize(text string, maxSentences int) (string, error) {
	if maxSentences <= 0 {
		maxSentences = 5
	}
	sentences := lexical.Sentences(text)
	if len(sentences) == 0 {
		return "", nil
	}
	freq := normalizedFrequencies(text)

	type pair struct {
		idx   int
		score float64
	}
	scores := make([]pair, len(sentences))
	for i, sent := range sentences {
		tokens := lexical.Tokens(sent)
		sscore := 0.0
		for _, tok := range tokens {
			sscore += freq[tok]
		}
		// Normalize by sentence length to avoid bias
		if l := float64(len(tokens)); l > 0 {
			sscore /= math.Sqrt(l)
		}
		scores[i] = pair{i, sscore}
	}
	sort.SliceStable(scores, func(i, j int) bool { return scores[i].score > scores[j].score })
	if maxSentences > len(scores) {
		maxSentences = len(scores)
	}
	// Keep original order among selected
	selected := make([]int, maxSentences)
	for i := 0; i < maxSentences; i++ {
		selected[i] = scores[i].idx
	}
	sort.Ints(selected)
	out := make([]string, 0, len(selected))
	for _, idx := range selected {
		out = append(out, sentences[idx])
	}
	return strings.Join(out, " "), nil
}

// Keywords returns up to n distinct content words of text, most frequent
// first, ties in order of appearance. Numbers and one-letter words are skipped.
func (s *FrequencySummarizer) Keywords(text string, n int) []string {
	if n <= 0 {
		return nil
	}
	counts := map[string]int{}
	var order []string
	for _, tok := range lexical.ContentTokens(text) {
		if !isKeyword(tok) {
			continue
		}
		if counts[tok] == 0 {
			order = append(order, tok)
		}
		counts[tok]++
	}
	sort.SliceStable(order, func(i, j int) bool { return counts[order[i]] > counts[order[j]] })
	if len(order) > n {
		order = order[:n]
	}
	return order
}

func isKeyword(tok string) bool {
	letters := 0
	for _, r := range tok {
		if unicode.IsLetter(r) {
			letters++
		}
	}
	return letters >= 2
}

func normalizedFrequencies(text string) map[string]float64 {
	freq := map[string]float64{}
	for _, tok := range lexical.ContentTokens(text) {
		freq[tok]++
	}
	maxF := 0.0
	for _, v := range freq {
		if v > maxF {
			maxF = v
		}
	}
	if maxF > 0 {
		for k, v := range freq {
			freq[k] = v / maxF
		}
	}
	return freq
}
