package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	ActiveConnections = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "chat_active_connections",
		Help: "Websocket connections currently open.",
	})
	MessagesPersisted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "chat_messages_persisted_total",
		Help: "Messages durably written to the store.",
	})
	Broadcasts = promauto.NewCounter(prometheus.CounterOpts{
		Name: "chat_broadcasts_total",
		Help: "Fan-out deliveries attempted (one per receiving connection).",
	})
	PersistFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "chat_persist_failures_total",
		Help: "Message saves that failed at the store.",
	})
	HistoryFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "chat_history_failures_total",
		Help: "History replays that failed at the store.",
	})
)
