package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var lastSweep = promauto.NewGauge(prometheus.GaugeOpts{
	Name: "modguard_sweep_last_run_timestamp",
	Help: "Unix time of the last completed timer sweep",
})

var trackedMembers = promauto.NewGauge(prometheus.GaugeOpts{
	Name: "modguard_tracked_members",
	Help: "Members with live infraction state",
})

var processRSS = promauto.NewGauge(prometheus.GaugeOpts{
	Name: "modguard_process_rss_bytes",
	Help: "Resident set size sampled by the watchdog",
})

func SetTrackedMembers(n int) {
	trackedMembers.Set(float64(n))
}

func SetProcessRSS(bytes uint64) {
	processRSS.Set(float64(bytes))
}
