package download

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"time"

	log "github.com/sirupsen/logrus"
)

// RetryPolicy bounds the attempts made for a single job.
type RetryPolicy struct {
	// MaxAttempts is the total number of transfer attempts, including the
	// first one.
	MaxAttempts int

	// SleepMin and SleepMax bound the uniformly random pause between two
	// attempts.
	SleepMin time.Duration
	SleepMax time.Duration

	// ResetEvery replaces the job's session after every ResetEvery failed
	// attempts. 0 disables session replacement.
	ResetEvery int

	// NewSession creates replacement sessions.
	// Default: NewSession(DefaultSessionOptions())
	NewSession func() *Session
}

// DefaultRetryPolicy returns the policy used when none is configured.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts: 6,
		SleepMin:    time.Second,
		SleepMax:    5 * time.Second,
		ResetEvery:  2,
	}
}

// Validate returns an ErrPrecondition error for an unusable policy.
func (rp RetryPolicy) Validate() error {
	if rp.MaxAttempts < 1 {
		return preconditionf("max attempts must be at least 1: have=%d", rp.MaxAttempts)
	}
	if rp.SleepMin < 0 || rp.SleepMax < 0 {
		return preconditionf("negative sleep interval: min=%s max=%s", rp.SleepMin, rp.SleepMax)
	}
	if rp.SleepMin > rp.SleepMax {
		return preconditionf("sleep min exceeds max: min=%s max=%s", rp.SleepMin, rp.SleepMax)
	}
	if rp.ResetEvery < 0 {
		return preconditionf("negative session reset interval: %d", rp.ResetEvery)
	}
	return nil
}

// backoff returns a random duration in [SleepMin, SleepMax].
func (rp RetryPolicy) backoff() time.Duration {
	span := rp.SleepMax - rp.SleepMin
	if span <= 0 {
		return rp.SleepMin
	}
	return rp.SleepMin + time.Duration(rand.Int63n(int64(span)+1))
}

// Retrier drives a transfer operation to a single terminal outcome.
type Retrier struct {
	Policy   RetryPolicy
	Op       TransferFunc // Default: Transfer
	Progress Progress
	Observer Observer

	sleep func(ctx context.Context, d time.Duration) error
}

// NewRetrier returns a retrier running Transfer under the given policy.
func NewRetrier(policy RetryPolicy) *Retrier {
	return &Retrier{Policy: policy}
}

// RunWithRetry runs op for job under policy and returns the final size of the
// file. See Retrier.Run.
func RunWithRetry(ctx context.Context, job Job, sess *Session, policy RetryPolicy, op TransferFunc) (int64, error) {
	r := &Retrier{Policy: policy, Op: op}
	size, _, err := r.Run(ctx, job, sess)
	return size, err
}

// Run invokes the transfer operation until it succeeds, fails a precondition,
// the context is cancelled or the attempt budget is spent. It returns the
// final size and the number of attempts made.
//
// sess is the shared session. Every Policy.ResetEvery failures the job
// switches to a session of its own; the shared session is never closed here,
// sessions the job created are closed before Run returns.
//
// When the budget is spent the partial file at job.Path is removed and a
// *RetryExhaustedError wrapping the last failure is returned. A cancelled job
// keeps its partial file so that a later run can resume it.
func (r *Retrier) Run(ctx context.Context, job Job, sess *Session) (int64, int, error) {
	if err := job.Validate(); err != nil {
		return 0, 0, err
	}
	if err := r.Policy.Validate(); err != nil {
		return 0, 0, err
	}

	op := r.Op
	if op == nil {
		op = Transfer
	}
	obs := r.Observer
	if obs == nil {
		obs = nopObserver{}
	}

	jlog := log.WithFields(log.Fields{"url": job.URL, "path": job.Path})

	cur := sess
	var own *Session
	defer func() {
		if own != nil {
			own.Close()
		}
	}()

	var lastErr error
	maxAttempts := r.Policy.MaxAttempts
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return 0, attempt - 1, fmt.Errorf("%w: %w", ErrCancelled, err)
		}

		size, err := op(ctx, job, cur, r.Progress)
		if err == nil {
			return size, attempt, nil
		}

		if errors.Is(err, ErrPrecondition) {
			jlog.WithError(err).Error("precondition violation, not retrying")
			return 0, attempt, err
		}
		if errors.Is(err, ErrCancelled) || ctx.Err() != nil {
			return 0, attempt, cancelledErr(ctx, err)
		}

		lastErr = err
		obs.AttemptFailed(job, attempt, err)
		if attempt == maxAttempts {
			break
		}

		jlog.WithError(err).Warnf("retrying: attempt %d/%d failed", attempt, maxAttempts)

		if err := r.wait(ctx, r.Policy.backoff()); err != nil {
			return 0, attempt, fmt.Errorf("%w: %w", ErrCancelled, err)
		}

		if n := r.Policy.ResetEvery; n > 0 && attempt%n == 0 {
			if own != nil {
				own.Close()
			}
			own = r.newSession()
			cur = own
			obs.SessionReset(job)
			jlog.Debugf("session replaced after %d failed attempts", attempt)
		}
	}

	removed, rmErr := removeIfExists(job.Path)
	if rmErr != nil {
		jlog.WithError(rmErr).Error("failed to delete partial file")
	} else if removed {
		jlog.Errorf("deleted %s: retry limit reached", job.Path)
	}

	if own != nil {
		own.Close()
		own = nil
	}

	return 0, maxAttempts, &RetryExhaustedError{
		URL:      job.URL,
		Attempts: maxAttempts,
		Last:     lastErr,
	}
}

func (r *Retrier) newSession() *Session {
	if r.Policy.NewSession != nil {
		return r.Policy.NewSession()
	}
	return NewSession(DefaultSessionOptions())
}

func (r *Retrier) wait(ctx context.Context, d time.Duration) error {
	if r.sleep != nil {
		return r.sleep(ctx, d)
	}
	return sleepContext(ctx, d)
}

// sleepContext waits for d or until ctx is done.
func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}

	t := time.NewTimer(d)
	defer t.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

func cancelledErr(ctx context.Context, err error) error {
	if errors.Is(err, ErrCancelled) {
		return err
	}
	return fmt.Errorf("%w: %w", ErrCancelled, ctx.Err())
}
