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

const metricsNamespace = "mail_tools"

// Metrics stores Prometheus collectors for the retry, bounce, and report
// flows plus the HTTP surface.
type Metrics struct {
	registry *prometheus.Registry

	httpRequestsTotal    *prometheus.CounterVec
	httpRequestDuration  *prometheus.HistogramVec
	retriesTotal         *prometheus.CounterVec
	retryScheduledTotal  *prometheus.CounterVec
	retryDuration        prometheus.Histogram
	bouncesIngestedTotal prometheus.Counter
	bouncesSkippedTotal  prometheus.Counter
	reportsSentTotal     prometheus.Counter
}

func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()

	m := &Metrics{
		registry: registry,
		httpRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Name:      "http_requests_total",
				Help:      "Total number of HTTP requests processed by method, path, and status.",
			},
			[]string{"method", "path", "status"},
		),
		httpRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: metricsNamespace,
				Name:      "http_request_duration_seconds",
				Help:      "HTTP request duration in seconds by method and path.",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"method", "path"},
		),
		retriesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Name:      "retries_processed_total",
				Help:      "Total number of retry attempts grouped by outcome.",
			},
			[]string{"outcome"},
		),
		retryScheduledTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Name:      "retry_backoff_scheduled_total",
				Help:      "Total number of retries scheduled for a later attempt, by attempt number.",
			},
			[]string{"attempt"},
		),
		retryDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: metricsNamespace,
				Name:      "retry_duration_seconds",
				Help:      "Duration of a single retry execution in seconds.",
				Buckets:   prometheus.ExponentialBuckets(0.01, 2, 12),
			},
		),
		bouncesIngestedTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Name:      "bounces_ingested_total",
				Help:      "Total number of bounce notifications recorded.",
			},
		),
		bouncesSkippedTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Name:      "bounce_messages_skipped_total",
				Help:      "Total number of mailbox messages with no attributable recipient.",
			},
		),
		reportsSentTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Name:      "reports_sent_total",
				Help:      "Total number of failure reports delivered to operators.",
			},
		),
	}

	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.httpRequestsTotal,
		m.httpRequestDuration,
		m.retriesTotal,
		m.retryScheduledTotal,
		m.retryDuration,
		m.bouncesIngestedTotal,
		m.bouncesSkippedTotal,
		m.reportsSentTotal,
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

// Retry outcomes used as metric labels.
const (
	RetryOutcomeSucceeded = "succeeded"
	RetryOutcomeFailed    = "failed"
	RetryOutcomeSkipped   = "skipped"
	RetryOutcomeExhausted = "exhausted"
)

func (m *Metrics) IncRetryProcessed(outcome string) {
	if m == nil {
		return
	}
	m.retriesTotal.WithLabelValues(outcome).Inc()
}

func (m *Metrics) IncRetryScheduled(attempt int) {
	if m == nil {
		return
	}
	m.retryScheduledTotal.WithLabelValues(strconv.Itoa(attempt)).Inc()
}

func (m *Metrics) ObserveRetryDuration(duration time.Duration) {
	if m == nil {
		return
	}
	seconds := duration.Seconds()
	if seconds < 0 {
		seconds = 0
	}
	m.retryDuration.Observe(seconds)
}

func (m *Metrics) AddBouncesIngested(count int) {
	if m == nil || count < 1 {
		return
	}
	m.bouncesIngestedTotal.Add(float64(count))
}

func (m *Metrics) AddBouncesSkipped(count int) {
	if m == nil || count < 1 {
		return
	}
	m.bouncesSkippedTotal.Add(float64(count))
}

func (m *Metrics) IncReportSent() {
	if m == nil {
		return
	}
	m.reportsSentTotal.Inc()
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
