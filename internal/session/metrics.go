package session

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	activeConnections = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "automation_session_connections",
		Help: "Open session protocol connections",
	})

	messagesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "automation_session_messages_total",
		Help: "Session protocol messages by request type",
	}, []string{"type"})

	toolCalls = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "automation_session_tool_call_seconds",
		Help:    "Tool call latency by tool and result code",
		Buckets: prometheus.ExponentialBuckets(0.005, 4, 8),
	}, []string{"tool", "code"})
)

func knownType(t string) string {
	switch t {
	case TypeInitialize, TypeAuthenticate, TypeListTools, TypeCallTool, TypePing:
		return t
	default:
		return "unknown"
	}
}
