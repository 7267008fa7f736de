package download

import (
	"errors"
	"fmt"
)

var (
	// ErrPrecondition marks a malformed job or retry policy. It is never
	// retried.
	ErrPrecondition = errors.New("precondition violation")

	// ErrInvalidContentKind is returned when the response is not video, audio
	// or image content.
	ErrInvalidContentKind = errors.New("invalid content kind")

	// ErrContentTooSmall is returned when the expected file size does not
	// exceed the job's minimum valid size.
	ErrContentTooSmall = errors.New("content too small")

	// ErrTransient wraps network and protocol failures that may succeed on a
	// later attempt.
	ErrTransient = errors.New("transient network failure")

	ErrBadStatus     = fmt.Errorf("%w: bad status", ErrTransient)
	ErrShortRead     = fmt.Errorf("%w: short read", ErrTransient)
	ErrUnknownLength = fmt.Errorf("%w: missing content length", ErrTransient)

	// ErrRetryExhausted is the terminal failure of a job whose attempts all
	// failed. The concrete error is a *RetryExhaustedError.
	ErrRetryExhausted = errors.New("retry budget exhausted")

	// ErrCancelled is the terminal failure of a job whose context was
	// cancelled.
	ErrCancelled = errors.New("cancelled")

	// ErrAlreadyQueued is returned by Store.Add when another job already
	// targets the same destination path.
	ErrAlreadyQueued = errors.New("destination already queued")
)

// RetryExhaustedError carries the last error observed before a job ran out of
// attempts.
type RetryExhaustedError struct {
	URL      string
	Attempts int
	Last     error
}

func (e *RetryExhaustedError) Error() string {
	return fmt.Sprintf("%s after %d attempts: url=%s: %v", ErrRetryExhausted, e.Attempts, e.URL, e.Last)
}

func (e *RetryExhaustedError) Unwrap() []error {
	return []error{ErrRetryExhausted, e.Last}
}

func preconditionf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrPrecondition, fmt.Sprintf(format, args...))
}

// ErrorKind returns a short label for the class of err. It is used for log
// fields and metric labels.
func ErrorKind(err error) string {
	switch {
	case err == nil:
		return "none"
	case errors.Is(err, ErrPrecondition):
		return "precondition"
	case errors.Is(err, ErrCancelled):
		return "cancelled"
	case errors.Is(err, ErrRetryExhausted):
		return "retry_exhausted"
	case errors.Is(err, ErrInvalidContentKind):
		return "invalid_content_kind"
	case errors.Is(err, ErrContentTooSmall):
		return "content_too_small"
	case errors.Is(err, ErrShortRead):
		return "short_read"
	case errors.Is(err, ErrBadStatus):
		return "bad_status"
	case errors.Is(err, ErrUnknownLength):
		return "unknown_length"
	default:
		return "transient"
	}
}
