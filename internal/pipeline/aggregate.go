package pipeline

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"research/internal/adapter"
	"research/internal/domain"
	"research/internal/logger"
	"research/internal/telemetry"
)

// Aggregator fans a query out to every adapter and joins on all of them.
type Aggregator struct {
	adapters []adapter.Adapter
	timeout  time.Duration
	metrics  *telemetry.Metrics
}

// NewAggregator builds an aggregator with a per-adapter timeout.
func NewAggregator(adapters []adapter.Adapter, timeout time.Duration, metrics *telemetry.Metrics) *Aggregator {
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &Aggregator{adapters: adapters, timeout: timeout, metrics: metrics}
}

// Aggregate runs all adapters concurrently. Every key of the result is set:
// a crashed, timed-out or missing adapter yields an ERROR entry.
func (a *Aggregator) Aggregate(ctx context.Context, q adapter.Query) domain.ContextSources {
	var (
		out  domain.ContextSources
		mu   sync.Mutex
		seen = make(map[domain.SourceKey]bool, len(domain.SourceKeys))
		g    errgroup.Group
	)
	for _, ad := range a.adapters {
		seen[ad.Key()] = true
		g.Go(func() error {
			res := a.run(ctx, ad, q)
			mu.Lock()
			out.Set(ad.Key(), res)
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()

	for _, k := range domain.SourceKeys {
		if !seen[k] {
			out.Set(k, domain.ErrorResult(k.Tag(), "unavailable", errors.New("no adapter configured")))
		}
		a.metrics.Adapter(k.DisplayName(), string(out.Get(k).Status))
	}
	return out
}

// run isolates one adapter: it recovers panics and stops waiting once the
// adapter's timeout or the request context expires.
func (a *Aggregator) run(ctx context.Context, ad adapter.Adapter, q adapter.Query) domain.SourceResult {
	key := ad.Key()
	log := logger.FromContext(ctx).With("source", key.DisplayName())
	actx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	start := time.Now()
	done := make(chan domain.SourceResult, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- domain.ErrorResult(key.Tag(), adapter.ErrTypePanic, fmt.Errorf("adapter panicked: %v", r))
			}
		}()
		done <- Normalize(ad.Retrieve(actx, q))
	}()

	select {
	case res := <-done:
		log.Debug("source finished", "status", res.Status, "confidence", res.Confidence, "took", time.Since(start))
		return res
	case <-actx.Done():
		err := actx.Err()
		errType := adapter.ErrTypeTimeout
		if errors.Is(err, context.Canceled) {
			errType = "cancelled"
		}
		log.Warn("source abandoned", "error", err, "took", time.Since(start))
		return domain.ErrorResult(key.Tag(), errType, fmt.Errorf("%s source: %w", key.DisplayName(), err))
	}
}
