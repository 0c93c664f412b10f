package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
)

func TestWebhookMetricsObserve(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewWebhookMetrics(reg)
	m.ObserveReceived("voice", "call_started", "ok")
	m.ObserveUpsertFailure("call_ended")
	m.ObserveUnresolvedTenant()
	m.ObserveLatency("voice", 0.02)
}

func TestWebhookMetricsNilSafe(t *testing.T) {
	var m *WebhookMetrics
	m.ObserveReceived("sms", "sms_inbound", "ok")
	m.ObserveUpsertFailure("call_ended")
	m.ObserveUnresolvedTenant()
	m.ObserveLatency("sms", 0.1)
}
