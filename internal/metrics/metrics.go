// Package metrics provides Prometheus metrics for the chat service
package metrics

import (
	"bufio"
	"errors"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the chat service
type Metrics struct {
	// HTTP request metrics
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec

	// Chat metrics
	MessagesSentTotal         prometheus.Counter
	ConversationsCreatedTotal prometheus.Counter
	ResolverRacesTotal        prometheus.Counter
	TouchFailuresTotal        prometheus.Counter

	// Realtime metrics
	RealtimeSubscribers      prometheus.Gauge
	RealtimeDeliveredTotal   prometheus.Counter
	RealtimeDroppedTotal     *prometheus.CounterVec
	RealtimePublishFailTotal prometheus.Counter

	registry *prometheus.Registry
}

// New creates all metrics on a dedicated registry so tests and multiple
// instances in one process do not collide on the global one.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	f := promauto.With(reg)

	return &Metrics{
		registry: reg,

		HTTPRequestsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "gochat_http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "route", "status"},
		),
		HTTPRequestDuration: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "gochat_http_request_duration_seconds",
				Help:    "Duration of HTTP requests in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "route"},
		),

		MessagesSentTotal: f.NewCounter(prometheus.CounterOpts{
			Name: "gochat_messages_sent_total",
			Help: "Messages appended to the store",
		}),
		ConversationsCreatedTotal: f.NewCounter(prometheus.CounterOpts{
			Name: "gochat_conversations_created_total",
			Help: "Conversations created on first contact",
		}),
		ResolverRacesTotal: f.NewCounter(prometheus.CounterOpts{
			Name: "gochat_resolver_races_total",
			Help: "Conversation inserts that lost a uniqueness race and re-fetched",
		}),
		TouchFailuresTotal: f.NewCounter(prometheus.CounterOpts{
			Name: "gochat_conversation_touch_failures_total",
			Help: "Failed best-effort updated_at writes",
		}),

		RealtimeSubscribers: f.NewGauge(prometheus.GaugeOpts{
			Name: "gochat_realtime_subscribers",
			Help: "Active realtime subscriptions",
		}),
		RealtimeDeliveredTotal: f.NewCounter(prometheus.CounterOpts{
			Name: "gochat_realtime_delivered_total",
			Help: "Message inserts handed to subscribers",
		}),
		RealtimeDroppedTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "gochat_realtime_dropped_total",
				Help: "Realtime events dropped",
			},
			[]string{"reason"},
		),
		RealtimePublishFailTotal: f.NewCounter(prometheus.CounterOpts{
			Name: "gochat_realtime_publish_failures_total",
			Help: "Failed realtime publishes after a successful insert",
		}),
	}
}

// Handler exposes the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Registry is used by tests to gather values.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Middleware records request count and latency labelled by the mux route template.
func (m *Metrics) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}

		next.ServeHTTP(rec, r)

		route := "unmatched"
		if current := mux.CurrentRoute(r); current != nil {
			if tpl, err := current.GetPathTemplate(); err == nil {
				route = tpl
			}
		}
		m.HTTPRequestsTotal.WithLabelValues(r.Method, route, strconv.Itoa(rec.status)).Inc()
		m.HTTPRequestDuration.WithLabelValues(r.Method, route).Observe(time.Since(start).Seconds())
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

// Hijack keeps websocket upgrades working through the middleware.
func (r *statusRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	h, ok := r.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, errors.New("response writer does not support hijacking")
	}
	r.status = http.StatusSwitchingProtocols
	return h.Hijack()
}

func (r *statusRecorder) Unwrap() http.ResponseWriter {
	return r.ResponseWriter
}
