package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// CheckoutMetrics records checkout session and fulfillment outcomes.
type CheckoutMetrics struct {
	sessionsCreated *prometheus.CounterVec
	ordersFulfilled *prometheus.CounterVec
	webhookDropped  *prometheus.CounterVec
	duration        *prometheus.HistogramVec
}

// NewCheckoutMetrics registers the checkout metrics on the provided registerer.
func NewCheckoutMetrics(reg prometheus.Registerer) *CheckoutMetrics {
	if reg == nil {
		return &CheckoutMetrics{}
	}
	sessionsCreated := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "checkout_sessions_created",
		Help: "Checkout sessions created, by outcome.",
	}, []string{"outcome"})
	ordersFulfilled := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "orders_fulfilled",
		Help: "Orders created by webhook fulfillment, by outcome.",
	}, []string{"outcome"})
	webhookDropped := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "webhook_events_dropped",
		Help: "Webhook events skipped before fulfillment, by reason.",
	}, []string{"reason"})
	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "fulfillment_duration_seconds",
		Help:    "Duration of webhook fulfillment in seconds.",
		Buckets: prometheus.DefBuckets,
	}, []string{"event_type"})
	reg.MustRegister(sessionsCreated, ordersFulfilled, webhookDropped, duration)
	return &CheckoutMetrics{
		sessionsCreated: sessionsCreated,
		ordersFulfilled: ordersFulfilled,
		webhookDropped:  webhookDropped,
		duration:        duration,
	}
}

// IncSessionCreated increments the session counter for the given outcome.
func (c *CheckoutMetrics) IncSessionCreated(outcome string) {
	if c == nil || c.sessionsCreated == nil {
		return
	}
	c.sessionsCreated.WithLabelValues(normalizeLabel(outcome)).Inc()
}

// IncOrderFulfilled increments the fulfillment counter for the given outcome.
func (c *CheckoutMetrics) IncOrderFulfilled(outcome string) {
	if c == nil || c.ordersFulfilled == nil {
		return
	}
	c.ordersFulfilled.WithLabelValues(normalizeLabel(outcome)).Inc()
}

// IncWebhookDropped increments the dropped-event counter for the given reason.
func (c *CheckoutMetrics) IncWebhookDropped(reason string) {
	if c == nil || c.webhookDropped == nil {
		return
	}
	c.webhookDropped.WithLabelValues(normalizeLabel(reason)).Inc()
}

// ObserveFulfillment records how long a webhook event took to process.
func (c *CheckoutMetrics) ObserveFulfillment(eventType string, d time.Duration) {
	if c == nil || c.duration == nil {
		return
	}
	c.duration.WithLabelValues(normalizeLabel(eventType)).Observe(d.Seconds())
}

func normalizeLabel(value string) string {
	if value == "" {
		return "unknown"
	}
	return value
}
