// Package parser loads documents from disk and splits them into chunks that
// carry page number, chunk index and source file.
package parser

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/ledongthuc/pdf"

	"research/internal/domain"
)

// ErrUnsupported is returned for file types the parser cannot read.
var ErrUnsupported = errors.New("unsupported document type")

// ErrEmpty is returned when a document yields no text.
var ErrEmpty = errors.New("document contains no extractable text")

type Parser struct {
	chunker domain.Chunker
}

func New(chunker domain.Chunker) *Parser {
	return &Parser{chunker: chunker}
}

// Parse reads path and chunks it.
func (p *Parser) Parse(ctx context.Context, path string) ([]domain.Chunk, error) {
	doc, err := Load(ctx, path)
	if err != nil {
		return nil, err
	}
	chunks, err := p.chunker.Chunk(doc)
	if err != nil {
		return nil, fmt.Errorf("chunk %s: %w", filepath.Base(path), err)
	}
	if len(chunks) == 0 {
		return nil, fmt.Errorf("%s: %w", filepath.Base(path), ErrEmpty)
	}
	return chunks, nil
}

// Load extracts the pages of a .pdf, .txt or .md file. Text files are a
// single page.
func Load(ctx context.Context, path string) (domain.Document, error) {
	doc := domain.Document{ID: uuid.NewString(), Path: path}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".pdf":
		pages, err := readPDF(ctx, path)
		if err != nil {
			return doc, err
		}
		doc.Pages = pages
	case ".txt", ".md", ".markdown":
		data, err := os.ReadFile(path)
		if err != nil {
			return doc, fmt.Errorf("read %s: %w", filepath.Base(path), err)
		}
		doc.Pages = []domain.Page{{Number: 1, Text: string(data)}}
	default:
		return doc, fmt.Errorf("%w: %s", ErrUnsupported, filepath.Ext(path))
	}
	return doc, nil
}

func readPDF(ctx context.Context, path string) ([]domain.Page, error) {
	f, r, err := pdf.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open pdf %s: %w", filepath.Base(path), err)
	}
	defer f.Close()

	pages := make([]domain.Page, 0, r.NumPage())
	for i := 1; i <= r.NumPage(); i++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		page := r.Page(i)
		if page.V.IsNull() {
			continue
		}
		text, err := page.GetPlainText(nil)
		if err != nil {
			return nil, fmt.Errorf("extract page %d of %s: %w", i, filepath.Base(path), err)
		}
		if strings.TrimSpace(text) == "" {
			continue
		}
		pages = append(pages, domain.Page{Number: i, Text: text})
	}
	return pages, nil
}
