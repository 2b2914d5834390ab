package chunker

import (
	"path/filepath"
	"strconv"
	"strings"

	"research/internal/domain"
	"research/internal/lexical"
)

// SentenceChunker splits each page into sentence-based chunks with overlap.
// Chunks never span pages so every chunk keeps one page number; the chunk
// index runs across the whole document.
type SentenceChunker struct {
	sentencesPerChunk int
	overlapSentences  int
}

func NewSentenceChunker(sentencesPerChunk, overlapSentences int) *SentenceChunker {
	if sentencesPerChunk <= 0 {
		sentencesPerChunk = 5
	}
	if overlapSentences < 0 {
		overlapSentences = 0
	}
	if overlapSentences >= sentencesPerChunk {
		overlapSentences = sentencesPerChunk - 1
	}
	return &SentenceChunker{
		sentencesPerChunk: sentencesPerChunk,
		overlapSentences:  overlapSentences,
	}
}

func (c *SentenceChunker) Chunk(document domain.Document) ([]domain.Chunk, error) {
	source := filepath.Base(document.Path)
	var chunks []domain.Chunk
	idx := 0
	for _, page := range document.Pages {
		sentences := lexical.Sentences(page.Text)
		i := 0
		for i < len(sentences) {
			end := i + c.sentencesPerChunk
			if end > len(sentences) {
				end = len(sentences)
			}
			chunks = append(chunks, domain.Chunk{
				DocumentID: document.ID,
				ChunkID:    document.ID + ":" + strconv.Itoa(idx),
				Text:       strings.Join(sentences[i:end], " "),
				Index:      idx,
				Page:       page.Number,
				SourceFile: source,
			})
			idx++
			if end == len(sentences) {
				break
			}
			i = end - c.overlapSentences
		}
	}
	return chunks, nil
}
