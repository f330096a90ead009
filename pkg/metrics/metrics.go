// Package metrics exports ledger telemetry to Prometheus.
package metrics

import (
	"errors"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Outcome labels shared by the counters below.
const (
	OutcomeCompleted = "completed"
	OutcomeReplayed  = "replayed"
	OutcomeRejected  = "rejected"
	OutcomeError     = "error"
	OutcomeFailed    = "failed"
	OutcomeExpired   = "expired"
)

// Metrics groups the ledger collectors. A nil *Metrics records nothing.
type Metrics struct {
	applyDuration   *prometheus.HistogramVec
	transactions    *prometheus.CounterVec
	cacheLookups    *prometheus.CounterVec
	paymentOutcomes *prometheus.CounterVec
	reversals       *prometheus.CounterVec
	balanceDrift    prometheus.Counter
}

// New registers the ledger collectors on reg (the default registerer when nil).
func New(namespace string, reg prometheus.Registerer) (*Metrics, error) {
	if namespace == "" {
		namespace = "creditcore"
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	m := &Metrics{
		applyDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "apply_duration_seconds",
			Help:      "Latency of transaction processing, storage round trips included.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"direction"}),
		transactions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "transactions_total",
			Help:      "Processed transactions by direction, category and outcome.",
		}, []string{"direction", "category", "outcome"}),
		cacheLookups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "balance_cache_lookups_total",
			Help:      "Balance cache lookups by result.",
		}, []string{"result"}),
		paymentOutcomes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "pending_payments_total",
			Help:      "Pending payment transitions by gateway and outcome.",
		}, []string{"gateway", "outcome"}),
		reversals: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "reversals_total",
			Help:      "Reversal attempts by outcome.",
		}, []string{"outcome"}),
		balanceDrift: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "balance_drift_detected_total",
			Help:      "Reconciliations where the balance column disagreed with the transaction log.",
		}),
	}
	var err error
	if m.applyDuration, err = register(reg, m.applyDuration); err != nil {
		return nil, err
	}
	if m.transactions, err = register(reg, m.transactions); err != nil {
		return nil, err
	}
	if m.cacheLookups, err = register(reg, m.cacheLookups); err != nil {
		return nil, err
	}
	if m.paymentOutcomes, err = register(reg, m.paymentOutcomes); err != nil {
		return nil, err
	}
	if m.reversals, err = register(reg, m.reversals); err != nil {
		return nil, err
	}
	if m.balanceDrift, err = register(reg, m.balanceDrift); err != nil {
		return nil, err
	}
	return m, nil
}

// register adds c to reg, reusing an identical collector registered earlier.
func register[T prometheus.Collector](reg prometheus.Registerer, c T) (T, error) {
	if err := reg.Register(c); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			if existing, ok := are.ExistingCollector.(T); ok {
				return existing, nil
			}
		}
		return c, fmt.Errorf("register ledger metric: %w", err)
	}
	return c, nil
}

// MustNew is New that panics on registration errors.
func MustNew(namespace string, reg prometheus.Registerer) *Metrics {
	m, err := New(namespace, reg)
	if err != nil {
		panic(err)
	}
	return m
}

func (m *Metrics) ObserveApply(direction, category, outcome string, d time.Duration) {
	if m == nil {
		return
	}
	m.applyDuration.WithLabelValues(direction).Observe(d.Seconds())
	m.transactions.WithLabelValues(direction, category, outcome).Inc()
}

func (m *Metrics) CacheLookup(hit bool) {
	if m == nil {
		return
	}
	result := "miss"
	if hit {
		result = "hit"
	}
	m.cacheLookups.WithLabelValues(result).Inc()
}

func (m *Metrics) PaymentOutcome(gateway, outcome string) {
	if m == nil {
		return
	}
	m.paymentOutcomes.WithLabelValues(gateway, outcome).Inc()
}

func (m *Metrics) Reversal(outcome string) {
	if m == nil {
		return
	}
	m.reversals.WithLabelValues(outcome).Inc()
}

func (m *Metrics) BalanceDrift() {
	if m == nil {
		return
	}
	m.balanceDrift.Inc()
}
