package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "planningpoker"

// Metrics holds the Prometheus collectors of the poker server
type Metrics struct {
	ActiveGames        prometheus.Gauge
	GamesCreated       prometheus.Counter
	ActiveConnections  prometheus.Gauge
	ActionsApplied     *prometheus.CounterVec
	MessagesDropped    *prometheus.CounterVec
	SubscribersDropped prometheus.Counter
	Resets             prometheus.Counter
}

// NewRegistry creates a Prometheus registry with Go runtime and process collectors
func NewRegistry() *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector())
	reg.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	return reg
}

// Handler returns an http.Handler that serves the metrics of reg
func Handler(reg *prometheus.Registry) http.Handler {
	return promhttp.HandlerFor(reg, promhttp.HandlerOpts{})
}

// New creates the collectors and registers them on reg
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		ActiveGames: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "games",
			Name:      "active",
			Help:      "Number of games held in memory.",
		}),
		GamesCreated: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "games",
			Name:      "created_total",
			Help:      "Total number of games created.",
		}),
		ActiveConnections: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "websocket",
			Name:      "active_connections",
			Help:      "Number of open game connections.",
		}),
		ActionsApplied: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "websocket",
			Name:      "actions_applied_total",
			Help:      "Total number of client actions applied and broadcast, by action kind.",
		}, []string{"action"}),
		MessagesDropped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "websocket",
			Name:      "messages_dropped_total",
			Help:      "Total number of inbound frames ignored, by reason.",
		}, []string{"reason"}),
		SubscribersDropped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "hub",
			Name:      "subscribers_dropped_total",
			Help:      "Total number of subscribers dropped for falling behind.",
		}),
		Resets: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "games",
			Name:      "resets_total",
			Help:      "Total number of administrative state resets.",
		}),
	}

	reg.MustRegister(
		m.ActiveGames,
		m.GamesCreated,
		m.ActiveConnections,
		m.ActionsApplied,
		m.MessagesDropped,
		m.SubscribersDropped,
		m.Resets,
	)
	return m
}
