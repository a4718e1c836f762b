// Package metrics exposes prometheus collectors for the token ledger.
package metrics

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/rudolf-ledger/internal/events"
	"github.com/rudolf-ledger/internal/types"
)

const (
	// Namespace is the namespace all collectors are defined under
	Namespace = "rudolf"

	subsystemToken = "token"
	subsystemAPI   = "api"
)

// Metrics holds every collector. It is also an events.Sink that derives
// the ledger counters from committed notifications.
type Metrics struct {
	Events         *prometheus.CounterVec
	Transfers      *prometheus.CounterVec
	Claims         prometheus.Counter
	ClaimedTokens  prometheus.Counter
	Distributions  prometheus.Counter
	SnapshotID     prometheus.Gauge
	CatchUp        prometheus.Histogram
	CallErrors     *prometheus.CounterVec
	RequestLatency *prometheus.HistogramVec
	RateLimited    prometheus.Counter
}

// New registers the collectors on reg
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		Events: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace, Subsystem: subsystemToken,
			Name: "events_total", Help: "Committed notifications by kind",
		}, []string{"kind"}),
		Transfers: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace, Subsystem: subsystemToken,
			Name: "transfers_total", Help: "Balance movements by type (transfer or mint)",
		}, []string{"type"}),
		Claims: f.NewCounter(prometheus.CounterOpts{
			Namespace: Namespace, Subsystem: subsystemToken,
			Name: "claims_total", Help: "Settled airdrop claims",
		}),
		ClaimedTokens: f.NewCounter(prometheus.CounterOpts{
			Namespace: Namespace, Subsystem: subsystemToken,
			Name: "claimed_tokens_total", Help: "Whole tokens minted by claims",
		}),
		Distributions: f.NewCounter(prometheus.CounterOpts{
			Namespace: Namespace, Subsystem: subsystemToken,
			Name: "distributions_total", Help: "Xmas distributions created",
		}),
		SnapshotID: f.NewGauge(prometheus.GaugeOpts{
			Namespace: Namespace, Subsystem: subsystemToken,
			Name: "snapshot_id", Help: "Latest snapshot id",
		}),
		CatchUp: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: Namespace, Subsystem: subsystemToken,
			Name: "catchup_iterations", Help: "Distribution boundaries processed per mutating call",
			Buckets: []float64{0, 1, 2, 5, 10, 25, 50},
		}),
		CallErrors: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace, Subsystem: subsystemToken,
			Name: "call_errors_total", Help: "Rejected engine calls by operation and code",
		}, []string{"operation", "code"}),
		RequestLatency: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: Namespace, Subsystem: subsystemAPI,
			Name: "request_duration_seconds", Help: "HTTP request latency",
			Buckets: prometheus.ExponentialBuckets(0.0005, 2, 14),
		}, []string{"method", "route", "status"}),
		RateLimited: f.NewCounter(prometheus.CounterOpts{
			Namespace: Namespace, Subsystem: subsystemAPI,
			Name: "rate_limited_total", Help: "Requests rejected by the rate limiter",
		}),
	}
}

// Name implements events.Sink
func (m *Metrics) Name() string { return "metrics" }

// Handle implements events.Sink
func (m *Metrics) Handle(_ context.Context, evs []events.Event) error {
	for _, e := range evs {
		m.Events.WithLabelValues(string(e.Kind)).Inc()
		switch e.Kind {
		case types.EventTransfer:
			if e.From != nil && *e.From == (common.Address{}) {
				m.Transfers.WithLabelValues("mint").Inc()
			} else {
				m.Transfers.WithLabelValues("transfer").Inc()
			}
		case types.EventSnapshot:
			m.SnapshotID.Set(float64(e.SnapshotID))
		case types.EventXmasAirdrop:
			m.Distributions.Inc()
		}
	}
	return nil
}

// ObserveCatchUp records the boundaries crossed by one call
func (m *Metrics) ObserveCatchUp(n int) {
	m.CatchUp.Observe(float64(n))
}

// ObserveClaim records a settled claim of amount base units
func (m *Metrics) ObserveClaim(amount *big.Int) {
	m.Claims.Inc()
	m.ClaimedTokens.Add(WholeTokens(amount))
}

// ObserveError records a rejected call
func (m *Metrics) ObserveError(operation, code string) {
	m.CallErrors.WithLabelValues(operation, code).Inc()
}

var unit = new(big.Float).SetInt(new(big.Int).Exp(big.NewInt(10), big.NewInt(types.Decimals), nil))

// WholeTokens converts base units to a float amount of tokens
func WholeTokens(amount *big.Int) float64 {
	if amount == nil {
		return 0
	}
	f, _ := new(big.Float).Quo(new(big.Float).SetInt(amount), unit).Float64()
	return f
}
