package dispatch

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	metricEnqueued = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "dialtone",
		Name:      "dispatch_enqueued_total",
		Help:      "Envelopes accepted into the dispatch queue.",
	}, []string{"kind"})
	metricDroppedClosed = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "dialtone",
		Name:      "dispatch_dropped_closed_total",
		Help:      "Envelopes dropped because the queue was already closed.",
	})
	metricDiscardedAtClose = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "dialtone",
		Name:      "dispatch_discarded_at_close_total",
		Help:      "Pending envelopes discarded when the queue closed.",
	})
	metricQueueDepth = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "dialtone",
		Name:      "dispatch_queue_depth",
		Help:      "Envelopes waiting in the dispatch queue.",
	})
	metricHandlerFaults = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "dialtone",
		Name:      "dispatch_handler_faults_total",
		Help:      "Handler invocations that panicked and were isolated.",
	}, []string{"kind"})
	metricHandlerDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "dialtone",
		Name:      "dispatch_handler_duration_seconds",
		Help:      "Time spent applying one envelope to its collaborator.",
		Buckets:   prometheus.ExponentialBuckets(0.0001, 4, 8),
	})
)
