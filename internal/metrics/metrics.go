package metrics

import (
	"net/http"
	"time"

	"github.com/frahmantamala/upi-sandbox/internal/core/events"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "upi_sandbox"

// otherWebhookEvent labels webhook events outside the known set so callers
// cannot grow the label space.
const otherWebhookEvent = "other"

var webhookEventLabels = func() map[string]bool {
	known := map[string]bool{
		"payment.authorized": true,
		"order.paid":         true,
		"refund.created":     true,
		"refund.processed":   true,
	}
	for _, t := range events.PaymentEventTypes {
		known[t] = true
	}
	return known
}()

// WebhookEventLabel maps an incoming webhook event name to its metric label.
func WebhookEventLabel(event string) string {
	if webhookEventLabels[event] {
		return event
	}
	return otherWebhookEvent
}

// SandboxMetrics holds the sandbox collectors. A nil *SandboxMetrics records nothing.
type SandboxMetrics struct {
	gatherer prometheus.Gatherer

	OrdersCreatedTotal  prometheus.Counter
	OrderAmountPaise    prometheus.Histogram
	PaymentsInitiated   *prometheus.CounterVec
	PaymentsResolved    *prometheus.CounterVec
	PendingResolutions  prometheus.Gauge
	ResolutionDelay     prometheus.Histogram
	StatusChecksTotal   *prometheus.CounterVec
	WebhooksReceived    *prometheus.CounterVec
	PaymentsPurgedTotal prometheus.Counter
}

// NewSandboxMetrics registers the sandbox collectors on reg.
func NewSandboxMetrics(reg *prometheus.Registry) *SandboxMetrics {
	factory := promauto.With(reg)

	return &SandboxMetrics{
		gatherer: reg,

		OrdersCreatedTotal: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "orders_created_total",
			Help:      "Number of orders created",
		}),
		OrderAmountPaise: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "order_amount_paise",
			Help:      "Order amounts in paise",
			Buckets:   prometheus.ExponentialBuckets(100, 10, 7),
		}),
		PaymentsInitiated: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "payments_initiated_total",
			Help:      "Payments initiated, by matched outcome policy",
		}, []string{"policy"}),
		PaymentsResolved: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "payments_resolved_total",
			Help:      "Payments moved to a terminal status",
		}, []string{"status", "error_code"}),
		PendingResolutions: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "pending_resolutions",
			Help:      "Payments waiting for their scheduled resolution",
		}),
		ResolutionDelay: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "resolution_delay_seconds",
			Help:      "Time between payment creation and resolution",
			Buckets:   []float64{0.1, 0.5, 1, 2, 5, 10, 30},
		}),
		StatusChecksTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "status_checks_total",
			Help:      "Payment status lookups, by returned status",
		}, []string{"status"}),
		WebhooksReceived: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "webhooks_received_total",
			Help:      "Webhook notifications received, by event name",
		}, []string{"event"}),
		PaymentsPurgedTotal: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "payments_purged_total",
			Help:      "Payments removed through the purge endpoint",
		}),
	}
}

func (m *SandboxMetrics) OrderCreated(amount int64) {
	if m == nil {
		return
	}
	m.OrdersCreatedTotal.Inc()
	m.OrderAmountPaise.Observe(float64(amount))
}

func (m *SandboxMetrics) PaymentInitiated(policy string) {
	if m == nil {
		return
	}
	m.PaymentsInitiated.WithLabelValues(policy).Inc()
	m.PendingResolutions.Inc()
}

func (m *SandboxMetrics) PaymentResolved(status, errorCode string, delay time.Duration) {
	if m == nil {
		return
	}
	m.PaymentsResolved.WithLabelValues(status, errorCode).Inc()
	m.PendingResolutions.Dec()
	m.ResolutionDelay.Observe(delay.Seconds())
}

// PaymentPurged records a purge; pending is true when a resolution was cancelled.
func (m *SandboxMetrics) PaymentPurged(pending bool) {
	if m == nil {
		return
	}
	m.PaymentsPurgedTotal.Inc()
	if pending {
		m.PendingResolutions.Dec()
	}
}

func (m *SandboxMetrics) StatusChecked(status string) {
	if m == nil {
		return
	}
	m.StatusChecksTotal.WithLabelValues(status).Inc()
}

func (m *SandboxMetrics) WebhookReceived(event string) {
	if m == nil {
		return
	}
	m.WebhooksReceived.WithLabelValues(WebhookEventLabel(event)).Inc()
}

// Handler exposes the registry in the prometheus text format.
func (m *SandboxMetrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{})
}
