// Package llm defines the vendor-neutral completion contract used by the
// generator, evaluator and synthesizer.
package llm

import (
	"context"
	"errors"

	"golang.org/x/time/rate"
)

var (
	// ErrTransport marks network failures and non-success HTTP statuses.
	ErrTransport = errors.New("llm transport error")
	// ErrAuth marks rejected credentials. It is never retried.
	ErrAuth = errors.New("llm authentication error")
	// ErrPayloadShape marks a transport response without the expected fields.
	ErrPayloadShape = errors.New("unexpected llm payload shape")
)

// Request is one completion call. Schema, when set, asks the provider for JSON
// output matching it.
type Request struct {
	System      string
	Prompt      string
	Schema      map[string]any
	SchemaName  string
	Strict      bool
	Temperature float64
	MaxTokens   int
}

type Usage struct {
	PromptTokens     int
	CompletionTokens int
	TotalTokens      int
	Cost             float64
}

type Response struct {
	Text         string
	Model        string
	FinishReason string
	Usage        Usage
}

// Completer is a language-model backend.
type Completer interface {
	Name() string
	Complete(ctx context.Context, req Request) (*Response, error)
}

type limited struct {
	next    Completer
	limiter *rate.Limiter
}

// WithRateLimit wraps c so calls wait for a token. rps <= 0 returns c unchanged.
func WithRateLimit(c Completer, rps float64) Completer {
	if rps <= 0 {
		return c
	}
	burst := int(rps)
	if burst < 1 {
		burst = 1
	}
	return &limited{next: c, limiter: rate.NewLimiter(rate.Limit(rps), burst)}
}

func (l *limited) Name() string { return l.next.Name() }

func (l *limited) Complete(ctx context.Context, req Request) (*Response, error) {
	if err := l.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	return l.next.Complete(ctx, req)
}
