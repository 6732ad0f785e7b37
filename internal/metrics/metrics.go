package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	ActiveConnections = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "ws_active_connections",
		Help: "Active websocket connections on this node",
	})
	MessagesSent = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "chat_messages_sent_total",
		Help: "Chat messages persisted and broadcast",
	})
	EventsDelivered = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "ws_events_delivered_total",
		Help: "Events delivered to local sockets",
	})
	NotificationsCreated = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "notifications_created_total",
		Help: "Durable notification records created",
	})
)

func Register() {
	prometheus.MustRegister(ActiveConnections, MessagesSent, EventsDelivered, NotificationsCreated)
}

// Handler returns an http.Handler for Prometheus scraping.
func Handler() http.Handler {
	return promhttp.Handler()
}
