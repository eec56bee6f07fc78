package onboarding

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	outcomeService  = "service"
	outcomeFallback = "fallback"
	outcomeFailed   = "failed"
	outcomeEmpty    = "empty"
)

// Metrics counts ingestion and provisioning outcomes. A nil *Metrics records nothing.
type Metrics struct {
	extractions *prometheus.CounterVec
	gate        *prometheus.CounterVec
	attempts    *prometheus.CounterVec
	batches     prometheus.Counter
}

func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		extractions: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "onboarding_extractions_total",
			Help: "Ingestion attempts by outcome.",
		}, []string{"outcome"}),
		gate: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "onboarding_extraction_gate_total",
			Help: "Extraction results by whether they required operator confirmation.",
		}, []string{"needs_validation"}),
		attempts: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "onboarding_provisioning_attempts_total",
			Help: "Account creation calls by result.",
		}, []string{"result"}),
		batches: factory.NewCounter(prometheus.CounterOpts{
			Name: "onboarding_provisioning_batches_total",
			Help: "Provisioning batches that finished.",
		}),
	}
}

func (m *Metrics) observeExtraction(outcome string, needsValidation bool) {
	if m == nil {
		return
	}
	m.extractions.WithLabelValues(outcome).Inc()
	m.gate.WithLabelValues(strconv.FormatBool(needsValidation)).Inc()
}

func (m *Metrics) observeAttempt(err error) {
	if m == nil {
		return
	}
	result := "success"
	if err != nil {
		result = "failure"
	}
	m.attempts.WithLabelValues(result).Inc()
}

func (m *Metrics) observeBatch() {
	if m == nil {
		return
	}
	m.batches.Inc()
}
