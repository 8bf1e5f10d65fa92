package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

const namespace = "billingcore"

type Metrics struct {
	Registry *prometheus.Registry

	WebhookEvents     *prometheus.CounterVec
	WebhookDuration   *prometheus.HistogramVec
	PriceCalculations *prometheus.CounterVec
	OrderTransitions  *prometheus.CounterVec
}

// NewMetrics registers the application collectors on reg. Passing a fresh
// registry keeps tests isolated from each other.
func NewMetrics(reg *prometheus.Registry) *Metrics {
	m := &Metrics{
		Registry: reg,
		WebhookEvents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "webhook_events_total",
			Help:      "Payment webhook events by provider, event type and outcome.",
		}, []string{"provider", "event_type", "outcome"}),
		WebhookDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "webhook_duration_seconds",
			Help:      "Time spent reconciling one webhook event.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"provider"}),
		PriceCalculations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "price_calculations_total",
			Help:      "Price calculations by outcome.",
		}, []string{"outcome"}),
		OrderTransitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "order_transitions_total",
			Help:      "Order status transitions by target status.",
		}, []string{"status"}),
	}
	reg.MustRegister(m.WebhookEvents, m.WebhookDuration, m.PriceCalculations, m.OrderTransitions)
	return m
}

func NewRegistry() *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return reg
}
