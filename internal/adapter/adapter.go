// Package adapter implements the four evidence sources. Each adapter returns
// the raw output of its source; internal failures are encoded as an ERROR
// SourceResult so they never cross the adapter boundary.
package adapter

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/sethvargo/go-retry"

	"research/internal/domain"
	"research/internal/generation"
	"research/internal/llm"
	"research/internal/logger"
)

// Error types recorded under error_type.
const (
	ErrTypeRetrieval  = "retrieval_error"
	ErrTypeGeneration = "generation_error"
	ErrTypeDecode     = "decode_error"
	ErrTypeAuth       = "auth_error"
	ErrTypeTimeout    = "timeout"
	ErrTypePanic      = "panic"
)

// Query is what every adapter receives.
type Query struct {
	Text   string
	Thread domain.Thread
}

// Adapter produces the raw output of one evidence source.
type Adapter interface {
	Key() domain.SourceKey
	Retrieve(ctx context.Context, q Query) string
}

// RetryPolicy bounds how often a grounded generation is retried after a
// transport failure.
type RetryPolicy struct {
	MaxRetries uint64
	Base       time.Duration
	Max        time.Duration
}

func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{MaxRetries: 2, Base: 500 * time.Millisecond, Max: 4 * time.Second}
}

// grounded is the generation half shared by all adapters.
type grounded struct {
	gen    *generation.Generator
	policy RetryPolicy
}

// answer runs a grounded generation over blocks and returns its JSON.
// Decode and schema failures are not retried.
func (g grounded) answer(ctx context.Context, tag domain.SourceTag, query string, blocks []string, extra map[string]any) string {
	var out map[string]any
	backoff := retry.NewExponential(g.policy.Base)
	backoff = retry.WithCappedDuration(g.policy.Max, backoff)
	backoff = retry.WithMaxRetries(g.policy.MaxRetries, backoff)

	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		res, err := g.gen.Generate(ctx, generation.Input{Query: query, ContextBlocks: blocks, Label: tag})
		if err != nil {
			if errors.Is(err, llm.ErrTransport) {
				logger.FromContext(ctx).Debug("retrying generation", "source", tag, "error", err)
				return retry.RetryableError(err)
			}
			return err
		}
		out = res
		return nil
	})
	if err != nil {
		return errorOutput(tag, classify(err), err)
	}
	for k, v := range extra {
		if _, taken := out[k]; !taken {
			out[k] = v
		}
	}
	return encode(out)
}

func classify(err error) string {
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return ErrTypeTimeout
	case errors.Is(err, llm.ErrAuth):
		return ErrTypeAuth
	case errors.Is(err, generation.ErrDecode), errors.Is(err, generation.ErrSchemaMismatch), errors.Is(err, generation.ErrPayloadShape):
		return ErrTypeDecode
	}
	return ErrTypeGeneration
}

// insufficient is returned without a model call when a source has nothing
// to ground an answer on.
func insufficient(tag domain.SourceTag, missing string) string {
	return encode(domain.SourceResult{
		Status:     domain.StatusInsufficientContext,
		SourceUsed: tag,
		Citations:  []domain.Citation{},
		Missing:    []string{missing},
	}.Map())
}

// recoverAs turns a panic inside Retrieve into an ERROR record written to out.
func recoverAs(tag domain.SourceTag, out *string) {
	if v := recover(); v != nil {
		*out = errorOutput(tag, ErrTypePanic, fmt.Errorf("%s adapter panicked: %v", tag, v))
	}
}

func errorOutput(tag domain.SourceTag, errType string, err error) string {
	return encode(domain.ErrorResult(tag, errType, err).Map())
}

func encode(v map[string]any) string {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprintf("error: cannot encode source output: %v", err)
	}
	return string(data)
}
