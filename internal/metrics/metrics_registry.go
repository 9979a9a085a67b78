package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var eventsProcessed = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "modguard_events_processed",
	Help: "Number of inbound events processed",
}, []string{"type"})

var verdicts = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "modguard_verdicts",
	Help: "Number of non-allow verdicts by rule",
}, []string{"rule", "verdict"})

var punishmentsApplied = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "modguard_punishments_applied",
	Help: "Number of punishments dispatched to the platform",
}, []string{"kind", "result"})

var punishmentsReversed = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "modguard_punishments_reversed",
	Help: "Number of scheduled reversals fired",
}, []string{"kind", "result"})

var registryEntries = promauto.NewGauge(prometheus.GaugeOpts{
	Name: "modguard_removable_punishments",
	Help: "Removable punishments currently scheduled",
})

var batchesFlushed = promauto.NewCounter(prometheus.CounterOpts{
	Name: "modguard_deletion_batches_flushed",
	Help: "Number of deletion batches flushed",
})

var messagesDeletedInBatches = promauto.NewCounter(prometheus.CounterOpts{
	Name: "modguard_deletion_batch_messages",
	Help: "Number of deleted messages reported through batches",
})

var queueDropped = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "modguard_dispatch_dropped",
	Help: "Jobs dropped because the dispatch queue was full",
}, []string{"job"})

var queueDepth = promauto.NewGauge(prometheus.GaugeOpts{
	Name: "modguard_dispatch_queue_depth",
	Help: "Jobs waiting in the dispatch queue",
})

func RecordVerdict(rule, verdict string) {
	verdicts.WithLabelValues(rule, verdict).Inc()
}

func RecordPunishment(kind, result string) {
	punishmentsApplied.WithLabelValues(kind, result).Inc()
}

func RecordReversal(kind, result string) {
	punishmentsReversed.WithLabelValues(kind, result).Inc()
}

func SetRegistryEntries(n int) {
	registryEntries.Set(float64(n))
}

func RecordBatchFlush(messages int) {
	batchesFlushed.Inc()
	messagesDeletedInBatches.Add(float64(messages))
}

func RecordDropped(job string) {
	queueDropped.WithLabelValues(job).Inc()
}

func SetQueueDepth(n int) {
	queueDepth.Set(float64(n))
}
