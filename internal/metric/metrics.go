package metric

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	SuitesRunning = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "apicheck_suites_running",
		Help: "The number of suite runs currently executing",
	}, []string{"suite_name"})

	SuiteRunsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "apicheck_suite_runs_total",
		Help: "The number of suite runs since the process was started",
	}, []string{"suite_name", "result"})

	OutcomesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "apicheck_outcomes_total",
		Help: "The number of recorded check outcomes",
	}, []string{"suite_name", "test_name", "result"})

	LastRunSuccessRate = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "apicheck_last_run_success_rate",
		Help: "Percentage of passed outcomes of the latest finished run",
	}, []string{"suite_name"})

	RequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "apicheck_request_duration_seconds",
		Help:    "Duration of requests sent to the target backend",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "status"})

	SMTPProbesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "apicheck_smtp_probes_total",
		Help: "The number of SMTP probes by final state and failure kind",
	}, []string{"state", "kind"})
)

// WriteTextfile writes all registered metrics in the text exposition format,
// e.g. for the node exporter textfile collector.
func WriteTextfile(filename string) error {
	return prometheus.WriteToTextfile(filename, prometheus.DefaultGatherer)
}
