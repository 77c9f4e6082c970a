package driver

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	outcomeExecuted  = "executed"
	outcomeExhausted = "exhausted"
)

// Metrics counts dispatcher outcomes. A nil *Metrics or one built without a
// registerer records nothing.
type Metrics struct {
	transactions *prometheus.CounterVec
	attempts     *prometheus.CounterVec
	duration     *prometheus.HistogramVec
}

func NewMetrics(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		return &Metrics{}
	}
	transactions := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "wholesale_transactions_total",
		Help: "Script records by transaction type and outcome.",
	}, []string{"type", "outcome"})
	attempts := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "wholesale_transaction_attempts_total",
		Help: "Handler invocations including retries.",
	}, []string{"type"})
	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "wholesale_transaction_duration_seconds",
		Help:    "Latency of executed records including retries and backoff.",
		Buckets: prometheus.DefBuckets,
	}, []string{"type"})
	reg.MustRegister(transactions, attempts, duration)
	return &Metrics{transactions: transactions, attempts: attempts, duration: duration}
}

func (m *Metrics) attempt(tag string) {
	if m == nil || m.attempts == nil {
		return
	}
	m.attempts.WithLabelValues(tag).Inc()
}

func (m *Metrics) executed(tag string, elapsed time.Duration) {
	if m == nil || m.transactions == nil {
		return
	}
	m.transactions.WithLabelValues(tag, outcomeExecuted).Inc()
	m.duration.WithLabelValues(tag).Observe(elapsed.Seconds())
}

func (m *Metrics) exhausted(tag string) {
	if m == nil || m.transactions == nil {
		return
	}
	m.transactions.WithLabelValues(tag, outcomeExhausted).Inc()
}
