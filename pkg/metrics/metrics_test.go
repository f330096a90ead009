package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetrics_Record(t *testing.T) {
	reg := prometheus.NewRegistry()
	m, err := New("test", reg)
	require.NoError(t, err)

	m.ObserveApply("DEBIT", "image_gen", OutcomeCompleted, 5*time.Millisecond)
	m.ObserveApply("DEBIT", "image_gen", OutcomeRejected, time.Millisecond)
	m.CacheLookup(true)
	m.CacheLookup(false)
	m.CacheLookup(false)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.transactions.WithLabelValues("DEBIT", "image_gen", OutcomeCompleted)))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.cacheLookups.WithLabelValues("miss")))
}

func TestMetrics_RegisterTwice(t *testing.T) {
	reg := prometheus.NewRegistry()
	first, err := New("test", reg)
	require.NoError(t, err)
	second, err := New("test", reg)
	require.NoError(t, err)

	second.Reversal(OutcomeCompleted)
	assert.Equal(t, 1.0, testutil.ToFloat64(first.reversals.WithLabelValues(OutcomeCompleted)))
}

func TestMetrics_NilIsNoop(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.ObserveApply("CREDIT", "purchase", OutcomeCompleted, time.Second)
		m.CacheLookup(true)
		m.PaymentOutcome("stripe", OutcomeFailed)
		m.Reversal(OutcomeCompleted)
		m.BalanceDrift()
	})
}
