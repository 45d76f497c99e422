// Package metrics declares the Prometheus collectors for the lobby
// server.
//
// Naming convention: namespace_subsystem_name
//   - namespace: incognita (application-level grouping)
//   - subsystem: socket, room, dispatch (feature-level grouping)
//   - name: specific metric (connections_active, requests_total, ...)
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// ActiveConnections tracks sessions currently attached to the
	// dispatcher.
	ActiveConnections = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "incognita",
		Subsystem: "socket",
		Name:      "connections_active",
		Help:      "Current number of active client connections",
	})

	// ActiveRooms tracks rooms currently open in the state core.
	ActiveRooms = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "incognita",
		Subsystem: "room",
		Name:      "rooms_active",
		Help:      "Current number of open rooms",
	})

	// RejectedConnections counts connections turned away at capacity.
	RejectedConnections = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "incognita",
		Subsystem: "socket",
		Name:      "connections_rejected_total",
		Help:      "Total connections rejected because the server was full",
	})

	// Requests counts dispatched requests by wire verb and outcome.
	Requests = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "incognita",
		Subsystem: "dispatch",
		Name:      "requests_total",
		Help:      "Total requests handled by the dispatcher",
	}, []string{"verb", "status"})

	// MessagesDelivered counts messages routed to outbound queues.
	MessagesDelivered = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "incognita",
		Subsystem: "dispatch",
		Name:      "messages_delivered_total",
		Help:      "Total messages enqueued for delivery to clients",
	})

	// DispatchDuration tracks time spent handling one event.
	DispatchDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "incognita",
		Subsystem: "dispatch",
		Name:      "event_duration_seconds",
		Help:      "Time spent handling one dispatcher event",
		Buckets:   []float64{.0001, .00025, .0005, .001, .0025, .005, .01, .025},
	})
)

func IncConnection() {
	ActiveConnections.Inc()
}

func DecConnection() {
	ActiveConnections.Dec()
}
