package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// WebSocketConnectionsTotal is the gauge of active WebSocket connections.
	WebSocketConnectionsTotal = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "parlor_websocket_connections_total",
		Help: "Total number of active WebSocket connections",
	})

	// WebSocketEventsTotal counts inbound WebSocket events by type.
	WebSocketEventsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "parlor_websocket_events_total",
		Help: "Total WebSocket events by type",
	}, []string{"event_type"})

	// MessageThroughput counts messages processed per room and kind.
	MessageThroughput = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "parlor_message_throughput_total",
		Help: "Total number of messages processed",
	}, []string{"room_id", "message_type"})

	// WebSocketBackpressureDrops counts messages dropped due to backpressure.
	WebSocketBackpressureDrops = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "parlor_websocket_backpressure_drops_total",
		Help: "Total number of WebSocket messages dropped due to backpressure",
	}, []string{"hub", "reason"})

	// LiveRooms is the gauge of currently live rooms.
	LiveRooms = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "parlor_live_rooms",
		Help: "Number of live chat rooms",
	})

	// RedisErrors counts failed Redis commands by command name.
	RedisErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "parlor_redis_errors_total",
		Help: "Total Redis command errors",
	}, []string{"command"})
)

// RecordMessage increments message throughput counters for the room and kind.
func RecordMessage(roomID, messageType string) {
	MessageThroughput.WithLabelValues(roomID, messageType).Inc()
}

// RecordWebSocketEvent increments the WebSocket events counter for the type.
func RecordWebSocketEvent(eventType string) {
	WebSocketEventsTotal.WithLabelValues(eventType).Inc()
}

// RecordRoomCount sets the live room gauge.
func RecordRoomCount(n int) {
	LiveRooms.Set(float64(n))
}
