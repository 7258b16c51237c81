/*
Package monitoring exports Prometheus metrics for a clinic run.

Metrics records every clinic event it receives as a clinic.Sink and keeps
per-stage counters, per-nurse queue depth, the number of consultations in
progress and the distribution of visit durations.

# Usage

	reg := prometheus.NewRegistry()
	metrics := monitoring.NewMetrics(reg)

	c, _ := clinic.New(clinic.Options{Sink: metrics, ...})

	http.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
*/
package monitoring
