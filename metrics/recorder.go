// Package metrics exports download statistics in the Prometheus format.
package metrics

import (
	"github.com/ccollins476ad/awemescrape/download"
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "awemescrape"

// Recorder counts jobs, attempts and bytes. It implements download.Progress
// and download.Observer.
type Recorder struct {
	jobsTotal       *prometheus.CounterVec   // By kind and result.
	attemptFailures *prometheus.CounterVec   // By kind and error.
	sessionResets   prometheus.Counter       // Sessions replaced by the retrier.
	bytesTotal      *prometheus.CounterVec   // By kind.
	inProgress      prometheus.Gauge         // Transfers currently streaming.
	jobDuration     *prometheus.HistogramVec // By kind.
	fileSize        *prometheus.HistogramVec // By kind.
}

// New creates a recorder and registers its metrics with reg. It panics if
// registration fails, e.g. when called twice for the same registry.
func New(reg prometheus.Registerer) *Recorder {
	r := &Recorder{
		jobsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "jobs_total",
				Help:      "Download jobs finished, by media kind and result.",
			},
			[]string{"kind", "result"},
		),
		attemptFailures: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "attempt_failures_total",
				Help:      "Failed transfer attempts that were retried or ended a job.",
			},
			[]string{"kind", "error"},
		),
		sessionResets: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "session_resets_total",
				Help:      "Transport sessions replaced after repeated failures.",
			},
		),
		bytesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "bytes_total",
				Help:      "Bytes written to disk.",
			},
			[]string{"kind"},
		),
		inProgress: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "transfers_in_progress",
				Help:      "Transfers currently streaming a response body.",
			},
		),
		jobDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "job_duration_seconds",
				Help:      "Wall time of a job including retries and backoff.",
				Buckets:   prometheus.ExponentialBuckets(0.25, 2, 10),
			},
			[]string{"kind"},
		),
		fileSize: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "file_size_bytes",
				Help:      "Size of successfully downloaded files.",
				Buckets: []float64{
					10240,      // 10KB
					102400,     // 100KB
					1048576,    // 1MB
					10485760,   // 10MB
					104857600,  // 100MB
					1073741824, // 1GB
				},
			},
			[]string{"kind"},
		),
	}

	reg.MustRegister(
		r.jobsTotal,
		r.attemptFailures,
		r.sessionResets,
		r.bytesTotal,
		r.inProgress,
		r.jobDuration,
		r.fileSize,
	)

	return r
}

func (r *Recorder) Start(job download.Job, offset, total int64) {
	r.inProgress.Inc()
}

func (r *Recorder) Add(job download.Job, n int64) {
	r.bytesTotal.WithLabelValues(job.Kind).Add(float64(n))
}

func (r *Recorder) Done(job download.Job, err error) {
	r.inProgress.Dec()
}

func (r *Recorder) AttemptFailed(job download.Job, attempt int, err error) {
	r.attemptFailures.WithLabelValues(job.Kind, download.ErrorKind(err)).Inc()
}

func (r *Recorder) SessionReset(job download.Job) {
	r.sessionResets.Inc()
}

func (r *Recorder) JobFinished(o download.Outcome) {
	result := "ok"
	if o.Err != nil {
		result = download.ErrorKind(o.Err)
	}
	r.jobsTotal.WithLabelValues(o.Job.Kind, result).Inc()
	r.jobDuration.WithLabelValues(o.Job.Kind).Observe(o.Duration.Seconds())
	if o.Err == nil {
		r.fileSize.WithLabelValues(o.Job.Kind).Observe(float64(o.Size))
	}
}
