package ipc

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	metricFramesReceived = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "dialtone",
		Name:      "ipc_frames_received_total",
		Help:      "Event frames accepted from the telephony process.",
	}, []string{"type"})
	metricFramesRejected = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "dialtone",
		Name:      "ipc_frames_rejected_total",
		Help:      "Event frames rejected as malformed or unknown.",
	})
	metricStreamsActive = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "dialtone",
		Name:      "ipc_streams_active",
		Help:      "Open event-stream connections.",
	})
)
