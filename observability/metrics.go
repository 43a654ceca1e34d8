package observability

import (
	"net/http"
	"team-chat/domain/event"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics groups every Prometheus collector of the service on its own
// registry. A nil *Metrics is valid and records nothing.
type Metrics struct {
	registry *prometheus.Registry

	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec

	Connections      prometheus.Gauge
	OnlineUsers      prometheus.Gauge
	MessagesPosted   prometheus.Counter
	MessagesDeleted  prometheus.Counter
	RealtimeEvents   *prometheus.CounterVec
	Deliveries       *prometheus.CounterVec
	DeliveryFailures *prometheus.CounterVec
	SearchQueries    prometheus.Counter
	WorkerRestarts   *prometheus.CounterVec

	ProcessRSS prometheus.Gauge
	ProcessCPU prometheus.Gauge
}

func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector())
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,
		HTTPRequestsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "teamchat_http_requests_total",
			Help: "Total HTTP requests",
		}, []string{"method", "path", "status"}),
		HTTPRequestDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "teamchat_http_request_duration_seconds",
			Help:    "HTTP request duration",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1},
		}, []string{"method", "path"}),
		Connections: factory.NewGauge(prometheus.GaugeOpts{
			Name: "teamchat_realtime_connections",
			Help: "Live realtime connections",
		}),
		OnlineUsers: factory.NewGauge(prometheus.GaugeOpts{
			Name: "teamchat_online_users",
			Help: "Identities with at least one live connection",
		}),
		MessagesPosted: factory.NewCounter(prometheus.CounterOpts{
			Name: "teamchat_messages_posted_total",
			Help: "Messages persisted through the ingestion pipeline",
		}),
		MessagesDeleted: factory.NewCounter(prometheus.CounterOpts{
			Name: "teamchat_messages_deleted_total",
			Help: "Messages deleted by their sender",
		}),
		RealtimeEvents: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "teamchat_realtime_events_total",
			Help: "Inbound realtime events by name and outcome",
		}, []string{"event", "outcome"}),
		Deliveries: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "teamchat_broadcast_deliveries_total",
			Help: "Events accepted by connection sinks",
		}, []string{"event"}),
		DeliveryFailures: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "teamchat_broadcast_delivery_failures_total",
			Help: "Events dropped because a connection sink was full or closed",
		}, []string{"event"}),
		SearchQueries: factory.NewCounter(prometheus.CounterOpts{
			Name: "teamchat_search_queries_total",
			Help: "Message search queries",
		}),
		WorkerRestarts: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "teamchat_worker_restarts_total",
			Help: "Supervised worker restarts after a panic or an error",
		}, []string{"worker"}),
		ProcessRSS: factory.NewGauge(prometheus.GaugeOpts{
			Name: "teamchat_process_rss_bytes",
			Help: "Resident memory of the server process",
		}),
		ProcessCPU: factory.NewGauge(prometheus.GaugeOpts{
			Name: "teamchat_process_cpu_percent",
			Help: "CPU usage of the server process",
		}),
	}
}

// Handler exposes the registry for scraping.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

func (m *Metrics) ConnectionOpened() {
	if m == nil {
		return
	}
	m.Connections.Inc()
}

func (m *Metrics) ConnectionClosed() {
	if m == nil {
		return
	}
	m.Connections.Dec()
}

func (m *Metrics) SetOnlineUsers(n int) {
	if m == nil {
		return
	}
	m.OnlineUsers.Set(float64(n))
}

func (m *Metrics) MessagePosted() {
	if m == nil {
		return
	}
	m.MessagesPosted.Inc()
}

func (m *Metrics) MessageDeleted() {
	if m == nil {
		return
	}
	m.MessagesDeleted.Inc()
}

func (m *Metrics) RealtimeEvent(name event.Type, outcome string) {
	if m == nil {
		return
	}
	m.RealtimeEvents.WithLabelValues(string(name), outcome).Inc()
}

func (m *Metrics) Delivered(name event.Type, n int) {
	if m == nil || n == 0 {
		return
	}
	m.Deliveries.WithLabelValues(string(name)).Add(float64(n))
}

func (m *Metrics) DeliveryFailed(name event.Type) {
	if m == nil {
		return
	}
	m.DeliveryFailures.WithLabelValues(string(name)).Inc()
}

func (m *Metrics) SearchQuery() {
	if m == nil {
		return
	}
	m.SearchQueries.Inc()
}

func (m *Metrics) WorkerRestarted(worker string, _ error) {
	if m == nil {
		return
	}
	m.WorkerRestarts.WithLabelValues(worker).Inc()
}

func (m *Metrics) ProcessStats(rss uint64, cpu float64) {
	if m == nil {
		return
	}
	m.ProcessRSS.Set(float64(rss))
	m.ProcessCPU.Set(cpu)
}

func (m *Metrics) HTTPRequest(method, path string, status string, seconds float64) {
	if m == nil {
		return
	}
	m.HTTPRequestsTotal.WithLabelValues(method, path, status).Inc()
	m.HTTPRequestDuration.WithLabelValues(method, path).Observe(seconds)
}
