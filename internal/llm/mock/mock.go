// Package mock provides a scripted Completer for offline runs and tests.
package mock

import (
	"context"
	"errors"
	"strings"
	"sync"

	"research/internal/llm"
)

// Reply is one scripted outcome.
type Reply struct {
	Text string
	Err  error
}

// Rule answers a request whose system or user prompt contains Match.
type Rule struct {
	Match string
	Reply Reply
}

// Completer returns replies from its rules, first match wins. Without a
// matching rule it returns Fallback, or ErrNoScript if Fallback is empty.
type Completer struct {
	mu       sync.Mutex
	rules    []Rule
	Fallback Reply
	calls    []llm.Request
}

var ErrNoScript = errors.New("mock: no scripted reply")

func New(rules ...Rule) *Completer {
	return &Completer{rules: rules}
}

func (c *Completer) Name() string { return "mock" }

func (c *Completer) Complete(ctx context.Context, req llm.Request) (*llm.Response, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	c.mu.Lock()
	c.calls = append(c.calls, req)
	reply := c.Fallback
	matched := false
	for _, r := range c.rules {
		if strings.Contains(req.Prompt, r.Match) || strings.Contains(req.System, r.Match) {
			reply = r.Reply
			matched = true
			break
		}
	}
	c.mu.Unlock()

	if !matched && reply.Text == "" && reply.Err == nil {
		return nil, ErrNoScript
	}
	if reply.Err != nil {
		return nil, reply.Err
	}
	return &llm.Response{
		Text:  reply.Text,
		Model: "mock",
		Usage: llm.Usage{
			PromptTokens:     len(strings.Fields(req.System + " " + req.Prompt)),
			CompletionTokens: len(strings.Fields(reply.Text)),
		},
	}, nil
}

// Calls returns a copy of the requests received so far.
func (c *Completer) Calls() []llm.Request {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]llm.Request(nil), c.calls...)
}
