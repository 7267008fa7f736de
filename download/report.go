package download

import (
	"errors"
	"fmt"
	"time"

	"github.com/dustin/go-humanize"
)

// Outcome is the terminal result of one job.
type Outcome struct {
	Job      Job
	Size     int64 // Final file size; 0 on failure.
	Err      error // nil on success.
	Attempts int
	Duration time.Duration
}

func (o Outcome) OK() bool {
	return o.Err == nil
}

// Report aggregates the outcomes of one batch.
type Report struct {
	Outcomes []Outcome
	Skipped  int // Jobs rejected by Store.Add as duplicates.
}

func (r *Report) Succeeded() int {
	n := 0
	for _, o := range r.Outcomes {
		if o.OK() {
			n++
		}
	}
	return n
}

func (r *Report) Failed() int {
	return len(r.Outcomes) - r.Succeeded()
}

// Cancelled returns the number of jobs stopped by context cancellation.
func (r *Report) Cancelled() int {
	n := 0
	for _, o := range r.Outcomes {
		if errors.Is(o.Err, ErrCancelled) {
			n++
		}
	}
	return n
}

// Bytes returns the combined size of all successfully downloaded files.
func (r *Report) Bytes() int64 {
	var total int64
	for _, o := range r.Outcomes {
		if o.OK() {
			total += o.Size
		}
	}
	return total
}

// Failures returns the outcomes of failed jobs.
func (r *Report) Failures() []Outcome {
	var fs []Outcome
	for _, o := range r.Outcomes {
		if !o.OK() {
			fs = append(fs, o)
		}
	}
	return fs
}

// Merge appends the outcomes of other to r.
func (r *Report) Merge(other *Report) {
	if other == nil {
		return
	}
	r.Outcomes = append(r.Outcomes, other.Outcomes...)
	r.Skipped += other.Skipped
}

// Summary returns a one-line human readable summary.
func (r *Report) Summary() string {
	return fmt.Sprintf("%d jobs: %d succeeded, %d failed, %d duplicates skipped, %s downloaded",
		len(r.Outcomes), r.Succeeded(), r.Failed(), r.Skipped, humanize.IBytes(uint64(r.Bytes())))
}
