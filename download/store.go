package download

import (
	"context"
	"fmt"
	"net/url"
	"path"
	"path/filepath"
	"sync"
	"time"

	"github.com/flytam/filenamify"
	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

// DefaultConcurrency is the number of jobs a store runs at once unless
// configured otherwise.
const DefaultConcurrency = 3

// Options configures a Store.
type Options struct {
	// Concurrency bounds the number of jobs in flight.
	// Default: DefaultConcurrency
	Concurrency int

	// Retry governs each job. A policy with zero MaxAttempts is replaced
	// as a whole.
	// Default: DefaultRetryPolicy()
	Retry RetryPolicy

	// Session is shared by all jobs. If nil, the store creates one and closes
	// it in Close.
	Session *Session

	Progress Progress
	Observer Observer

	// Transfer performs one attempt.
	// Default: Transfer
	Transfer TransferFunc
}

// Store queues download jobs and runs them concurrently.
type Store struct {
	opts       Options // constant
	sess       *Session
	ownSession bool

	mtx     sync.Mutex          // Protects the fields below.
	seen    map[string]struct{} // Destination paths ever queued.
	pending []Job
	skipped int
}

func NewStore(opts Options) *Store {
	if opts.Concurrency <= 0 {
		opts.Concurrency = DefaultConcurrency
	}
	if opts.Observer == nil {
		opts.Observer = nopObserver{}
	}
	if opts.Retry.MaxAttempts == 0 {
		opts.Retry = DefaultRetryPolicy()
	}

	s := &Store{
		opts: opts,
		sess: opts.Session,
		seen: map[string]struct{}{},
	}
	if s.sess == nil {
		s.sess = NewSession(DefaultSessionOptions())
		s.ownSession = true
	}

	return s
}

// Add queues a job. It returns ErrAlreadyQueued if another job targeting the
// same destination was added to this store before, and an ErrPrecondition
// error if the job is malformed.
func (s *Store) Add(job Job) error {
	if err := job.Validate(); err != nil {
		return err
	}

	key := filepath.Clean(job.Path)

	s.mtx.Lock()
	defer s.mtx.Unlock()

	if _, ok := s.seen[key]; ok {
		s.skipped++
		return fmt.Errorf("%w: %s", ErrAlreadyQueued, job.Path)
	}
	s.seen[key] = struct{}{}
	s.pending = append(s.pending, job)

	return nil
}

// Len returns the number of jobs waiting for the next Run.
func (s *Store) Len() int {
	s.mtx.Lock()
	defer s.mtx.Unlock()

	return len(s.pending)
}

// Session returns the session shared by the store's jobs.
func (s *Store) Session() *Session {
	return s.sess
}

// Run executes all pending jobs with at most Options.Concurrency in flight
// and waits for every one of them. A failing job never stops its siblings.
// The report holds exactly one outcome per job, in the order the jobs were
// added.
func (s *Store) Run(ctx context.Context) *Report {
	s.mtx.Lock()
	jobs := s.pending
	s.pending = nil
	skipped := s.skipped
	s.skipped = 0
	s.mtx.Unlock()

	outcomes := make([]Outcome, len(jobs))

	var eg errgroup.Group
	eg.SetLimit(s.opts.Concurrency)
	for i, job := range jobs {
		i, job := i, job
		eg.Go(func() error {
			outcomes[i] = s.runJob(ctx, job)
			return nil
		})
	}
	eg.Wait()

	return &Report{
		Outcomes: outcomes,
		Skipped:  skipped,
	}
}

func (s *Store) runJob(ctx context.Context, job Job) Outcome {
	jlog := log.WithFields(log.Fields{"url": job.URL, "path": job.Path, "kind": job.Kind})

	r := &Retrier{
		Policy:   s.opts.Retry,
		Op:       s.opts.Transfer,
		Progress: s.opts.Progress,
		Observer: s.opts.Observer,
	}

	jlog.Debug("starting download")
	start := time.Now()
	size, attempts, err := r.Run(ctx, job, s.sess)
	o := Outcome{
		Job:      job,
		Size:     size,
		Err:      err,
		Attempts: attempts,
		Duration: time.Since(start),
	}

	if err != nil {
		jlog.WithError(err).Errorf("download failed after %d attempt(s)", attempts)
	} else {
		jlog.Infof("downloaded %s (%d bytes)", job.Path, size)
	}

	s.opts.Observer.JobFinished(o)
	return o
}

// Close releases the store's session if the store created it.
func (s *Store) Close() {
	if s.ownSession {
		s.sess.Close()
	}
}

// URLToFilename returns the local filename used to save the given media url
// when no better name is known. The extension of the url path, if any, is
// kept at the end of the name.
func URLToFilename(u string) (string, error) {
	pu, err := url.Parse(u)
	if err != nil {
		return "", err
	}

	ext := path.Ext(pu.Path)
	if len(ext) > 6 {
		ext = ""
	}

	body, err := filenamify.Filenamify(pu.Host+pu.Path, filenamify.Options{
		Replacement: "_",
		MaxLength:   200,
	})
	if err != nil {
		return "", err
	}
	if ext != "" && filepath.Ext(body) != ext {
		body += ext
	}

	return body, nil
}
