package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Outcome label values.
const (
	OutcomeSuccess     = "success"
	OutcomeTimeout     = "timeout"
	OutcomeInvalid     = "invalid"
	OutcomeStoreError  = "store_error"
	OutcomeDecodeError = "decode_error"
	OutcomeCanceled    = "canceled"
	OutcomeRejected    = "rejected"
)

var (
	JobsSubmitted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "adbridge_jobs_submitted_total",
			Help: "Job records written to the requests directory",
		},
		[]string{"mode"},
	)

	JobsFinished = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "adbridge_jobs_finished_total",
			Help: "Requests finished, by mode and outcome",
		},
		[]string{"mode", "outcome"},
	)

	JobWait = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "adbridge_job_wait_seconds",
			Help:    "Time spent waiting for the worker to produce a result",
			Buckets: []float64{1, 2, 5, 10, 20, 30, 60, 90, 120, 180},
		},
		[]string{"mode", "outcome"},
	)

	JobsInFlight = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "adbridge_jobs_in_flight",
			Help: "Requests currently waiting on the worker",
		},
		[]string{"mode"},
	)

	ResultChecks = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "adbridge_result_checks_total",
			Help: "Existence checks against the results directory",
		},
		[]string{"kind"},
	)

	WatchWakeups = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "adbridge_result_watch_wakeups_total",
			Help: "Waits woken early by a results directory event",
		},
	)
)
