package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// ActiveConnections tracks live WebSocket connections across all users.
	ActiveConnections = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "bookline",
		Subsystem: "ws",
		Name:      "active_connections",
		Help:      "Number of currently open WebSocket connections.",
	})

	// EventsPublished counts delivery events handed to connections, by type.
	EventsPublished = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "bookline",
		Subsystem: "ws",
		Name:      "events_published_total",
		Help:      "Delivery events fanned out to connections.",
	}, []string{"type"})

	// EventsDropped counts events discarded because a connection's send
	// buffer was full.
	EventsDropped = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "bookline",
		Subsystem: "ws",
		Name:      "events_dropped_total",
		Help:      "Delivery events dropped on full send buffers.",
	})
)
