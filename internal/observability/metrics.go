package observability

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics stores Prometheus collectors used by the ingestion and retry flows.
type Metrics struct {
	registry *prometheus.Registry

	httpRequestsTotal      *prometheus.CounterVec
	httpRequestDuration    *prometheus.HistogramVec
	webhooksReceivedTotal  *prometheus.CounterVec
	webhooksProcessedTotal *prometheus.CounterVec
	processingDuration     *prometheus.HistogramVec
	duplicateEventsTotal   prometheus.Counter
	forwardedTotal         *prometheus.CounterVec
	retrySweepsTotal       prometheus.Counter
	retriesAttemptedTotal  prometheus.Counter
}

func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()

	m := &Metrics{
		registry: registry,
		httpRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "webhook_relay",
				Name:      "http_requests_total",
				Help:      "Total number of HTTP requests processed by method, path, and status.",
			},
			[]string{"method", "path", "status"},
		),
		httpRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "webhook_relay",
				Name:      "http_request_duration_seconds",
				Help:      "HTTP request duration in seconds by method and path.",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"method", "path"},
		),
		webhooksReceivedTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "webhook_relay",
				Name:      "webhooks_received_total",
				Help:      "Total number of inbound webhook requests by admission decision.",
			},
			[]string{"admission"},
		),
		webhooksProcessedTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "webhook_relay",
				Name:      "webhooks_processed_total",
				Help:      "Total number of processing attempts by outcome.",
			},
			[]string{"outcome"},
		),
		processingDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "webhook_relay",
				Name:      "processing_duration_seconds",
				Help:      "Webhook processing duration in seconds grouped by notification type.",
				Buckets:   prometheus.ExponentialBuckets(0.001, 2, 14),
			},
			[]string{"type"},
		),
		duplicateEventsTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: "webhook_relay",
				Name:      "duplicate_events_total",
				Help:      "Total number of redelivered notifications absorbed by the event store.",
			},
		),
		forwardedTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "webhook_relay",
				Name:      "forwarded_total",
				Help:      "Total number of downstream forward calls by result.",
			},
			[]string{"result"},
		),
		retrySweepsTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: "webhook_relay",
				Name:      "retry_sweeps_total",
				Help:      "Total number of retry sweep passes.",
			},
		),
		retriesAttemptedTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: "webhook_relay",
				Name:      "retries_attempted_total",
				Help:      "Total number of notifications re-processed by the retry sweeper.",
			},
		),
	}

	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.httpRequestsTotal,
		m.httpRequestDuration,
		m.webhooksReceivedTotal,
		m.webhooksProcessedTotal,
		m.processingDuration,
		m.duplicateEventsTotal,
		m.forwardedTotal,
		m.retrySweepsTotal,
		m.retriesAttemptedTotal,
	)

	return m
}

func (m *Metrics) Handler() http.Handler {
	if m == nil || m.registry == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) HTTPMiddleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		start := time.Now()
		err := c.Next()

		path := routePath(c)
		// Avoid self-scrape noise for request counters.
		if path == "/metrics" {
			return err
		}

		m.recordHTTPRequest(c.Method(), path, statusFromResult(c, err), time.Since(start))
		return err
	}
}

func (m *Metrics) IncWebhookReceived(admission string) {
	if m == nil {
		return
	}
	m.webhooksReceivedTotal.WithLabelValues(normalizeLabel(admission)).Inc()
}

func (m *Metrics) IncWebhookProcessed(outcome string) {
	if m == nil {
		return
	}
	m.webhooksProcessedTotal.WithLabelValues(normalizeLabel(outcome)).Inc()
}

func (m *Metrics) ObserveProcessingDuration(notificationType string, duration time.Duration) {
	if m == nil {
		return
	}
	seconds := duration.Seconds()
	if seconds < 0 {
		seconds = 0
	}
	m.processingDuration.WithLabelValues(normalizeLabel(notificationType)).Observe(seconds)
}

func (m *Metrics) IncDuplicateEvent() {
	if m == nil {
		return
	}
	m.duplicateEventsTotal.Inc()
}

func (m *Metrics) IncForwarded(result string) {
	if m == nil {
		return
	}
	m.forwardedTotal.WithLabelValues(normalizeLabel(result)).Inc()
}

func (m *Metrics) IncRetrySweep() {
	if m == nil {
		return
	}
	m.retrySweepsTotal.Inc()
}

func (m *Metrics) IncRetryAttempted() {
	if m == nil {
		return
	}
	m.retriesAttemptedTotal.Inc()
}

func (m *Metrics) recordHTTPRequest(method string, path string, status int, duration time.Duration) {
	if m == nil {
		return
	}

	methodLabel := strings.ToUpper(strings.TrimSpace(method))
	if methodLabel == "" {
		methodLabel = "UNKNOWN"
	}
	pathLabel := strings.TrimSpace(path)
	if pathLabel == "" {
		pathLabel = "unmatched"
	}

	m.httpRequestsTotal.WithLabelValues(methodLabel, pathLabel, strconv.Itoa(status)).Inc()
	m.httpRequestDuration.WithLabelValues(methodLabel, pathLabel).Observe(duration.Seconds())
}

func routePath(c *fiber.Ctx) string {
	if c == nil {
		return "unmatched"
	}

	if route := c.Route(); route != nil {
		if path := strings.TrimSpace(route.Path); path != "" {
			return path
		}
	}
	return "unmatched"
}

func statusFromResult(c *fiber.Ctx, err error) int {
	if err != nil {
		if fiberErr, ok := err.(*fiber.Error); ok {
			return fiberErr.Code
		}
		return fiber.StatusInternalServerError
	}

	if c == nil {
		return fiber.StatusOK
	}

	status := c.Response().StatusCode()
	if status == 0 {
		return fiber.StatusOK
	}
	return status
}

func normalizeLabel(value string) string {
	normalized := strings.ToLower(strings.TrimSpace(value))
	if normalized == "" {
		return "unknown"
	}
	return normalized
}
