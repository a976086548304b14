package metrics

import "time"

// RecordFusionRun records the outcome of one fusion run.
func RecordFusionRun(strategy string, coverage float64, duration time.Duration) {
	FusionRunsTotal.WithLabelValues(strategy).Inc()
	FusionCoverage.Observe(coverage)
	FusionDuration.Observe(duration.Seconds())
}

// RecordAnalyzerSuccess records a successful sub-analyzer call.
func RecordAnalyzerSuccess(analyzer string) {
	AnalyzerCallsTotal.WithLabelValues(analyzer, "success").Inc()
}

// RecordAnalyzerFailure records a terminal sub-analyzer failure with its
// classified error kind.
func RecordAnalyzerFailure(analyzer, kind string) {
	AnalyzerCallsTotal.WithLabelValues(analyzer, "failure").Inc()
	AnalyzerFailuresTotal.WithLabelValues(analyzer, kind).Inc()
}

// SetBreakerOpen updates the breaker state gauge for a dependency.
func SetBreakerOpen(dependency string, open bool) {
	v := 0.0
	if open {
		v = 1.0
	}
	BreakerOpen.WithLabelValues(dependency).Set(v)
}

// RecordSinkSave records the result of a sink write.
func RecordSinkSave(success bool) {
	status := "success"
	if !success {
		status = "failure"
	}
	SinkSavesTotal.WithLabelValues(status).Inc()
}

// RecordSweep records a completed scheduled sweep.
func RecordSweep(duration time.Duration, succeeded, failed int) {
	SweepDuration.Observe(duration.Seconds())
	SweepAssetsTotal.WithLabelValues("success").Add(float64(succeeded))
	SweepAssetsTotal.WithLabelValues("failure").Add(float64(failed))
}
