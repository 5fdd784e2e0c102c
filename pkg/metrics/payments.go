package metrics

import (
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// PaymentMetrics records provider initialization/finalization outcomes.
type PaymentMetrics struct {
	initialized *prometheus.CounterVec
	finalized   *prometheus.CounterVec
	duration    *prometheus.HistogramVec
}

// NewPaymentMetrics registers the payment metrics on the provided registerer.
func NewPaymentMetrics(reg prometheus.Registerer) *PaymentMetrics {
	if reg == nil {
		return &PaymentMetrics{}
	}
	initialized := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "payment_initialize_total",
		Help: "Payment initializations by provider and outcome.",
	}, []string{"provider", "outcome"})
	finalized := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "payment_finalize_total",
		Help: "Payment finalizations by provider and outcome.",
	}, []string{"provider", "outcome"})
	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "payment_provider_call_seconds",
		Help:    "Duration of provider calls in seconds.",
		Buckets: prometheus.DefBuckets,
	}, []string{"provider", "operation"})
	reg.MustRegister(initialized, finalized, duration)
	return &PaymentMetrics{
		initialized: initialized,
		finalized:   finalized,
		duration:    duration,
	}
}

// IncInitialized counts one initialize attempt for the provider.
func (p *PaymentMetrics) IncInitialized(provider, outcome string) {
	if p == nil || p.initialized == nil {
		return
	}
	p.initialized.WithLabelValues(normalizeLabel(provider), normalizeLabel(outcome)).Inc()
}

// IncFinalized counts one finalize attempt for the provider.
func (p *PaymentMetrics) IncFinalized(provider, outcome string) {
	if p == nil || p.finalized == nil {
		return
	}
	p.finalized.WithLabelValues(normalizeLabel(provider), normalizeLabel(outcome)).Inc()
}

// ObserveProviderCall records the duration of a provider round trip.
func (p *PaymentMetrics) ObserveProviderCall(provider, operation string, d time.Duration) {
	if p == nil || p.duration == nil {
		return
	}
	p.duration.WithLabelValues(normalizeLabel(provider), normalizeLabel(operation)).Observe(d.Seconds())
}

func normalizeLabel(value string) string {
	trimmed := strings.TrimSpace(strings.ToLower(value))
	if trimmed == "" {
		return "unknown"
	}
	return strings.ReplaceAll(trimmed, " ", "_")
}
