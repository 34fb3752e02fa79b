package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics groups the ledger and payment instruments. A nil *Metrics is valid
// and records nothing.
type Metrics struct {
	ledgerPostingsTotal   *prometheus.CounterVec
	ledgerRejectionsTotal *prometheus.CounterVec
	paymentsCreatedTotal  *prometheus.CounterVec
	paymentOutcomesTotal  *prometheus.CounterVec
	paymentProcessSeconds prometheus.Histogram
	sweepItemsTotal       *prometheus.CounterVec
	outboxSentTotal       *prometheus.CounterVec
}

// New registers every instrument on reg.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		ledgerPostingsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "paycore",
				Subsystem: "ledger",
				Name:      "postings_total",
				Help:      "Committed ledger entries partitioned by transaction type.",
			},
			[]string{"type"},
		),
		ledgerRejectionsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "paycore",
				Subsystem: "ledger",
				Name:      "rejections_total",
				Help:      "Rejected ledger operations partitioned by error kind.",
			},
			[]string{"kind"},
		),
		paymentsCreatedTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "paycore",
				Subsystem: "payment",
				Name:      "created_total",
				Help:      "Created payments partitioned by payment type.",
			},
			[]string{"type"},
		),
		paymentOutcomesTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "paycore",
				Subsystem: "payment",
				Name:      "outcomes_total",
				Help:      "Processing outcomes partitioned by resulting status.",
			},
			[]string{"status"},
		),
		paymentProcessSeconds: factory.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: "paycore",
				Subsystem: "payment",
				Name:      "process_duration_seconds",
				Help:      "Wall time of one ProcessPayment call.",
				Buckets:   prometheus.DefBuckets,
			},
		),
		sweepItemsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "paycore",
				Subsystem: "job",
				Name:      "sweep_items_total",
				Help:      "Items handled by periodic sweeps partitioned by sweep and result.",
			},
			[]string{"sweep", "result"},
		),
		outboxSentTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "paycore",
				Subsystem: "outbox",
				Name:      "messages_total",
				Help:      "Outbox relay attempts partitioned by result.",
			},
			[]string{"result"},
		),
	}
}

// ObservePosting counts one ledger entry by transaction type.
func (m *Metrics) ObservePosting(txType string) {
	if m == nil {
		return
	}
	m.ledgerPostingsTotal.WithLabelValues(txType).Inc()
}

// ObserveRejection counts a refused ledger operation by error kind.
func (m *Metrics) ObserveRejection(kind string) {
	if m == nil {
		return
	}
	if kind == "" {
		kind = "internal"
	}
	m.ledgerRejectionsTotal.WithLabelValues(kind).Inc()
}

func (m *Metrics) ObservePaymentCreated(paymentType string) {
	if m == nil {
		return
	}
	m.paymentsCreatedTotal.WithLabelValues(paymentType).Inc()
}

// ObservePaymentOutcome records the final status and latency of one
// ProcessPayment call.
func (m *Metrics) ObservePaymentOutcome(status string, started time.Time) {
	if m == nil {
		return
	}
	m.paymentOutcomesTotal.WithLabelValues(status).Inc()
	m.paymentProcessSeconds.Observe(time.Since(started).Seconds())
}

// ObserveSweepItem counts one payment handled by a background sweep.
func (m *Metrics) ObserveSweepItem(sweep string, ok bool) {
	if m == nil {
		return
	}
	result := "ok"
	if !ok {
		result = "error"
	}
	m.sweepItemsTotal.WithLabelValues(sweep, result).Inc()
}

func (m *Metrics) ObserveOutbox(result string) {
	if m == nil {
		return
	}
	m.outboxSentTotal.WithLabelValues(result).Inc()
}
