package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNilMetricsRecordNothing(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.ObservePosting("DEPOSIT")
		m.ObserveRejection("NOT_FOUND")
		m.ObservePaymentCreated("DOMESTIC_TRANSFER")
		m.ObservePaymentOutcome("COMPLETED", time.Now())
		m.ObserveSweepItem("scheduled", true)
		m.ObserveOutbox("sent")
	})
}

func TestCounters(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)

	m.ObservePosting("DEPOSIT")
	m.ObservePosting("DEPOSIT")
	m.ObservePosting("FEE")
	m.ObserveRejection("")
	m.ObserveSweepItem("retry", false)
	m.ObserveOutbox("sent")
	m.ObservePaymentOutcome("FAILED", time.Now())

	assert.Equal(t, 2.0, testutil.ToFloat64(m.ledgerPostingsTotal.WithLabelValues("DEPOSIT")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.ledgerPostingsTotal.WithLabelValues("FEE")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.ledgerRejectionsTotal.WithLabelValues("internal")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.sweepItemsTotal.WithLabelValues("retry", "error")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.outboxSentTotal.WithLabelValues("sent")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.paymentOutcomesTotal.WithLabelValues("FAILED")))

	count, err := testutil.GatherAndCount(reg, "paycore_payment_process_duration_seconds")
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestNewRejectsDoubleRegistration(t *testing.T) {
	reg := prometheus.NewRegistry()
	New(reg)
	assert.Panics(t, func() { New(reg) })
}
