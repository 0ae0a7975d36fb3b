// Package metrics 定义 Prometheus 指标
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// HTTP
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chat_http_requests_total",
			Help: "Total HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "chat_http_request_duration_seconds",
			Help:    "HTTP request duration",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1},
		},
		[]string{"method", "path"},
	)

	// 连接与房间
	ActiveConnections = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "chat_ws_active_connections",
			Help: "Currently registered websocket connections",
		},
	)

	ActiveRooms = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "chat_ws_active_rooms",
			Help: "Rooms with at least one member",
		},
	)

	FramesReceived = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chat_ws_frames_received_total",
			Help: "Inbound frames by type",
		},
		[]string{"type"},
	)

	BroadcastSendFailures = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "chat_broadcast_send_failures_total",
			Help: "Per-recipient send failures swallowed during room broadcast",
		},
	)

	// 消息缓冲
	MessagesBuffered = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "chat_messages_buffered_total",
			Help: "Messages appended to room buffers",
		},
	)

	MessagesFlushed = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "chat_messages_flushed_total",
			Help: "Messages persisted by buffer flush",
		},
	)

	FlushFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chat_flush_failures_total",
			Help: "Buffer flush failures by stage",
		},
		[]string{"stage"}, // "drain" or "persist"
	)

	// 定时投递
	DispatchExecutions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chat_dispatch_executions_total",
			Help: "Scheduled dispatch executions",
		},
		[]string{"kind", "outcome"},
	)

	// 在线状态
	PresenceTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chat_presence_transitions_total",
			Help: "Presence status transitions",
		},
		[]string{"to"},
	)
)
