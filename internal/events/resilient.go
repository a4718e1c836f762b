package events

import (
	"context"

	"github.com/rudolf-ledger/internal/circuitbreaker"
	"github.com/rudolf-ledger/internal/retry"
)

// ResilientSink retries a sink with backoff and stops calling it while its
// circuit is open. Sinks wrapped this way must tolerate redelivery; every
// event carries a stable ID for deduplication.
type ResilientSink struct {
	inner   Sink
	retry   *retry.Config
	breaker *circuitbreaker.CircuitBreaker
}

// NewResilientSink wraps inner. Nil configs use the package defaults.
func NewResilientSink(inner Sink, retryCfg *retry.Config, breakerCfg *circuitbreaker.Config) *ResilientSink {
	if retryCfg == nil {
		retryCfg = retry.DefaultConfig()
	}
	if breakerCfg == nil {
		breakerCfg = circuitbreaker.DefaultConfig(inner.Name())
	}
	return &ResilientSink{
		inner:   inner,
		retry:   retryCfg,
		breaker: circuitbreaker.NewCircuitBreaker(breakerCfg),
	}
}

// Name implements Sink
func (s *ResilientSink) Name() string { return s.inner.Name() }

// State returns the circuit state of the wrapped sink
func (s *ResilientSink) State() circuitbreaker.State { return s.breaker.State() }

// Handle implements Sink
func (s *ResilientSink) Handle(ctx context.Context, evs []Event) error {
	return s.breaker.Execute(func() error {
		return retry.Do(ctx, s.retry, func(ctx context.Context, _ int) error {
			return s.inner.Handle(ctx, evs)
		})
	})
}
