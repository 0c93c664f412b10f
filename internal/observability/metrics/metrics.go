package metrics

import "github.com/prometheus/client_golang/prometheus"

// WebhookMetrics exposes counters/histograms for the webhook pipeline.
type WebhookMetrics struct {
	receivedTotal     *prometheus.CounterVec
	upsertFailures    *prometheus.CounterVec
	unresolvedTenants prometheus.Counter
	webhookLatency    *prometheus.HistogramVec
}

func NewWebhookMetrics(reg prometheus.Registerer) *WebhookMetrics {
	m := &WebhookMetrics{
		receivedTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "callboard",
			Subsystem: "webhooks",
			Name:      "received_total",
			Help:      "Total webhook deliveries received",
		}, []string{"source", "event_type", "outcome"}),
		upsertFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "callboard",
			Subsystem: "webhooks",
			Name:      "upsert_failures_total",
			Help:      "Call-state upserts that failed and relied on the audit trail",
		}, []string{"event_type"}),
		unresolvedTenants: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "callboard",
			Subsystem: "webhooks",
			Name:      "unresolved_tenant_total",
			Help:      "Deliveries audited without a resolvable business",
		}),
		webhookLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "callboard",
			Subsystem: "webhooks",
			Name:      "latency_seconds",
			Help:      "Latency of webhook processing",
			Buckets:   prometheus.DefBuckets,
		}, []string{"source"}),
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(m.receivedTotal, m.upsertFailures, m.unresolvedTenants, m.webhookLatency)
	return m
}

func (m *WebhookMetrics) ObserveReceived(source, eventType, outcome string) {
	if m == nil {
		return
	}
	m.receivedTotal.WithLabelValues(source, eventType, outcome).Inc()
}

func (m *WebhookMetrics) ObserveUpsertFailure(eventType string) {
	if m == nil {
		return
	}
	m.upsertFailures.WithLabelValues(eventType).Inc()
}

func (m *WebhookMetrics) ObserveUnresolvedTenant() {
	if m == nil {
		return
	}
	m.unresolvedTenants.Inc()
}

func (m *WebhookMetrics) ObserveLatency(source string, seconds float64) {
	if m == nil {
		return
	}
	m.webhookLatency.WithLabelValues(source).Observe(seconds)
}
