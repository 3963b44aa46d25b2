package analyzer

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// metrics exposes the analyzer's Prometheus instruments.
type metrics struct {
	requests  *prometheus.CounterVec
	duration  prometheus.Histogram
	flowsSeen prometheus.Counter
	botnet    prometheus.Counter
}

func newMetrics(reg prometheus.Registerer) *metrics {
	factory := promauto.With(reg)
	return &metrics{
		requests: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "botspectra",
			Subsystem: "analyzer",
			Name:      "requests_total",
			Help:      "Analysis requests by model and outcome.",
		}, []string{"model", "outcome"}),
		duration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: "botspectra",
			Subsystem: "analyzer",
			Name:      "run_duration_seconds",
			Help:      "Wall time of a full analysis run.",
			Buckets:   prometheus.ExponentialBuckets(0.01, 4, 8),
		}),
		flowsSeen: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "botspectra",
			Subsystem: "analyzer",
			Name:      "flows_analyzed_total",
			Help:      "Flow records scored across all runs.",
		}),
		botnet: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "botspectra",
			Subsystem: "analyzer",
			Name:      "flows_flagged_total",
			Help:      "Flow records labeled botnet across all runs.",
		}),
	}
}
