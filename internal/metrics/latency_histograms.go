package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var actionLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
	Name:    "modguard_platform_action_duration_sec",
	Help:    "Duration of outbound platform calls",
	Buckets: prometheus.ExponentialBuckets(0.01, 2, 10),
}, []string{"action"})

var sweepDuration = promauto.NewHistogram(prometheus.HistogramOpts{
	Name:    "modguard_sweep_duration_sec",
	Help:    "Duration of one timer sweep pass",
	Buckets: prometheus.ExponentialBuckets(0.0001, 4, 8),
})

func ObserveAction(action string, start time.Time) {
	actionLatency.WithLabelValues(action).Observe(time.Since(start).Seconds())
}

func ObserveSweep(start time.Time) {
	sweepDuration.Observe(time.Since(start).Seconds())
	lastSweep.SetToCurrentTime()
}
