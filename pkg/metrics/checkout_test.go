package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"
)

func TestNewCheckoutMetricsRegisters(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewCheckoutMetrics(reg)

	m.IncSessionCreated("success")
	m.IncOrderFulfilled("duplicate")
	m.IncWebhookDropped("")
	m.ObserveFulfillment("checkout.session.completed", 150*time.Millisecond)

	families, err := reg.Gather()
	require.NoError(t, err)

	names := make(map[string]bool, len(families))
	for _, fam := range families {
		names[fam.GetName()] = true
	}
	require.True(t, names["checkout_sessions_created"])
	require.True(t, names["orders_fulfilled"])
	require.True(t, names["webhook_events_dropped"])
	require.True(t, names["fulfillment_duration_seconds"])
}

func TestNilSafeWithoutRegisterer(t *testing.T) {
	m := NewCheckoutMetrics(nil)
	m.IncSessionCreated("success")
	m.IncOrderFulfilled("success")
	m.ObserveFulfillment("x", time.Second)

	var empty *CheckoutMetrics
	empty.IncWebhookDropped("signature")
}
