package metrics

// IncrementIngress counts one inbound event of the given type.
func IncrementIngress(eventType string) {
	eventsProcessed.WithLabelValues(eventType).Inc()
}
