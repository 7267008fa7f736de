// Package progress prints periodic aggregate progress of a download batch.
//
// Output looks like:
//
//	[awemescrape] 12/40 jobs | 3 active | 2 failed | 35 MiB / 120 MiB | 4.2 MiB/s
package progress

import (
	"fmt"
	"io"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ccollins476ad/awemescrape/download"
	"github.com/dustin/go-humanize"
)

// Options configures the progress reporter.
type Options struct {
	// TotalJobs is the number of jobs in the batch (for display). See
	// Reporter.SetTotalJobs.
	TotalJobs int

	// Output is where to write progress output.
	// Default: os.Stdout
	Output io.Writer

	// UpdateInterval is how often to update the progress display.
	// Default: 1s
	UpdateInterval time.Duration
}

type transfer struct {
	offset  int64
	total   int64
	written int64
}

// Reporter tracks every in-flight transfer and prints a summary line at a
// fixed interval. It implements download.Progress and download.Observer.
type Reporter struct {
	opts Options

	total    atomic.Int32 // Jobs in the batch.
	bytes    atomic.Int64 // Bytes written during this run.
	finished atomic.Int32
	failed   atomic.Int32
	retries  atomic.Int32

	mu        sync.Mutex
	active    map[string]*transfer // By destination path.
	doneBytes int64                // Final sizes of finished transfers.
	startTime time.Time
	stopCh    chan struct{}
	doneCh    chan struct{}
	started   bool
	stopped   bool
}

// NewReporter creates a new progress reporter.
func NewReporter(opts Options) *Reporter {
	if opts.Output == nil {
		opts.Output = os.Stdout
	}
	if opts.UpdateInterval <= 0 {
		opts.UpdateInterval = time.Second
	}

	r := &Reporter{
		opts:   opts,
		active: map[string]*transfer{},
		stopCh: make(chan struct{}),
		doneCh: make(chan struct{}),
	}
	r.total.Store(int32(opts.TotalJobs))
	return r
}

// SetTotalJobs updates the batch size shown, e.g. once all jobs are queued.
func (r *Reporter) SetTotalJobs(n int) {
	r.total.Store(int32(n))
}

// Begin starts printing progress.
func (r *Reporter) Begin() {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.started {
		return
	}
	r.started = true
	r.startTime = time.Now()

	go r.updateLoop()
}

// End stops the reporter and prints the final line.
func (r *Reporter) End() {
	r.mu.Lock()
	if !r.started || r.stopped {
		r.mu.Unlock()
		return
	}
	r.stopped = true
	r.mu.Unlock()

	close(r.stopCh)
	<-r.doneCh
}

func (r *Reporter) Start(job download.Job, offset, total int64) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.active[job.Path] = &transfer{offset: offset, total: total}
}

func (r *Reporter) Add(job download.Job, n int64) {
	r.bytes.Add(n)

	r.mu.Lock()
	defer r.mu.Unlock()

	if t := r.active[job.Path]; t != nil {
		t.written += n
	}
}

func (r *Reporter) Done(job download.Job, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	t := r.active[job.Path]
	if t == nil {
		return
	}
	delete(r.active, job.Path)
	if err == nil {
		r.doneBytes += t.total
	}
}

func (r *Reporter) AttemptFailed(job download.Job, attempt int, err error) {
	r.retries.Add(1)
}

func (r *Reporter) SessionReset(job download.Job) {}

func (r *Reporter) JobFinished(o download.Outcome) {
	r.finished.Add(1)
	if o.Err != nil {
		r.failed.Add(1)
	}
}

// Snapshot is a point-in-time view of the batch.
type Snapshot struct {
	Finished int
	Failed   int
	Active   int
	Retries  int
	Done     int64 // Bytes on disk, counting resumed prefixes.
	Expected int64 // Final size of finished and in-flight transfers.
	Written  int64 // Bytes written by this run.
}

func (r *Reporter) Snapshot() Snapshot {
	r.mu.Lock()
	defer r.mu.Unlock()

	s := Snapshot{
		Finished: int(r.finished.Load()),
		Failed:   int(r.failed.Load()),
		Active:   len(r.active),
		Retries:  int(r.retries.Load()),
		Done:     r.doneBytes,
		Expected: r.doneBytes,
		Written:  r.bytes.Load(),
	}
	for _, t := range r.active {
		s.Done += t.offset + t.written
		s.Expected += t.total
	}
	return s
}

func (r *Reporter) updateLoop() {
	defer close(r.doneCh)

	ticker := time.NewTicker(r.opts.UpdateInterval)
	defer ticker.Stop()

	for {
		select {
		case <-r.stopCh:
			r.printStatus(true)
			return
		case <-ticker.C:
			r.printStatus(false)
		}
	}
}

func (r *Reporter) printStatus(final bool) {
	s := r.Snapshot()

	elapsed := time.Since(r.startTime)
	var speed float64
	if elapsed > 0 {
		speed = float64(s.Written) / elapsed.Seconds()
	}

	line := fmt.Sprintf("[awemescrape] %d/%d jobs | %d active | %d failed | %s / %s | %s/s",
		s.Finished, r.total.Load(), s.Active, s.Failed,
		humanize.IBytes(uint64(s.Done)),
		humanize.IBytes(uint64(s.Expected)),
		humanize.IBytes(uint64(speed)),
	)

	if final {
		fmt.Fprintf(r.opts.Output, "\r%s | %s elapsed    \n", line, elapsed.Round(time.Second))
		return
	}
	fmt.Fprintf(r.opts.Output, "\r%s    ", line)
}
