package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	ConnectionsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "chatrelay_connections_total",
			Help: "Total websocket connections accepted",
		},
	)

	ConnectionsActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "chatrelay_connections_active",
			Help: "Currently connected clients",
		},
	)

	EventsReceived = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chatrelay_events_received_total",
			Help: "Inbound events by kind",
		},
		[]string{"event"},
	)

	EventsDropped = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chatrelay_events_dropped_total",
			Help: "Inbound events dropped",
		},
		[]string{"reason"}, // "malformed", "unknown_event", "handler_panic"
	)

	Deliveries = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chatrelay_deliveries_total",
			Help: "Outbound event deliveries by kind",
		},
		[]string{"event"},
	)

	AdminBroadcasts = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "chatrelay_admin_broadcasts_total",
			Help: "Server-initiated broadcast injections",
		},
	)
)
