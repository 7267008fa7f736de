package download

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"

	log "github.com/sirupsen/logrus"
)

// chunkSize is the size of each read from the response body. Each chunk is
// appended to the destination file as soon as it arrives.
const chunkSize = 32 * 1024

// TransferFunc performs one download attempt. Transfer is the standard
// implementation; tests substitute their own.
type TransferFunc func(ctx context.Context, job Job, sess *Session, p Progress) (int64, error)

// Transfer performs one resumable download of job.URL to job.Path. It returns
// the total size of the file on success.
//
// If job.Path already exists, the request asks for the remaining bytes only and
// the file is appended to. The response must declare video, audio or image
// content and an expected total size above job.MinValidBytes; otherwise the
// attempt fails before a single byte is written. A failure after bytes were
// written leaves them on disk for the next attempt to resume from.
//
// If sess is nil, Transfer creates a private session and closes it on return.
// A session passed in by the caller is never closed.
func Transfer(ctx context.Context, job Job, sess *Session, p Progress) (total int64, err error) {
	if err := job.Validate(); err != nil {
		return 0, err
	}
	if p == nil {
		p = nopProgress{}
	}
	if sess == nil {
		sess = NewSession(DefaultSessionOptions())
		defer sess.Close()
	}

	offset, exists, err := partialSize(job.Path)
	if err != nil {
		return 0, err
	}

	header := http.Header{}
	if exists {
		header.Set("Range", fmt.Sprintf("bytes=%d-", offset))
	}

	rsp, err := sess.Get(ctx, job.URL, header)
	if err != nil {
		return 0, classifyNetErr(ctx, err)
	}
	defer rsp.Body.Close()

	switch {
	case exists && rsp.StatusCode == http.StatusRequestedRangeNotSatisfiable:
		// The partial file may already hold the whole resource.
		if _, _, size, perr := ParseContentRange(rsp.Header.Get("Content-Range")); perr == nil &&
			size == offset && size > job.MinValidBytes {
			log.Debugf("already complete: %s (%d bytes)", job.Path, size)
			p.Start(job, offset, offset)
			p.Done(job, nil)
			return size, nil
		}
		return 0, fmt.Errorf("%w: %s: url=%s offset=%d", ErrBadStatus, rsp.Status, job.URL, offset)

	case exists && rsp.StatusCode == http.StatusOK:
		// Range was ignored and the full body follows. Start over so the
		// result stays byte-exact.
		log.Debugf("server ignored range request, restarting: %s", job.URL)
		offset, exists = 0, false

	case exists && rsp.StatusCode == http.StatusPartialContent:
		if cr := rsp.Header.Get("Content-Range"); cr != "" {
			start, _, _, perr := ParseContentRange(cr)
			if perr != nil || start != offset {
				return 0, fmt.Errorf("%w: content-range=%q does not resume at %d", ErrBadStatus, cr, offset)
			}
		}

	case rsp.StatusCode < 200 || rsp.StatusCode >= 300:
		return 0, fmt.Errorf("%w: %s: url=%s", ErrBadStatus, rsp.Status, job.URL)
	}

	contentType := rsp.Header.Get("Content-Type")
	if !isMediaType(contentType) {
		log.Warnf("content type is not video/audio/image: url=%s content-type=%q", job.URL, contentType)
		return 0, fmt.Errorf("%w: content-type=%q url=%s", ErrInvalidContentKind, contentType, job.URL)
	}

	if rsp.ContentLength < 0 {
		return 0, fmt.Errorf("%w: url=%s", ErrUnknownLength, job.URL)
	}

	total = rsp.ContentLength + offset
	if total <= job.MinValidBytes {
		log.Warnf("file size too small: url=%s size=%d", job.URL, total)
		return 0, fmt.Errorf("%w: size=%d min=%d url=%s", ErrContentTooSmall, total, job.MinValidBytes, job.URL)
	}

	f, err := openPartial(job.Path, exists)
	if err != nil {
		return 0, err
	}

	p.Start(job, offset, total)
	defer func() {
		p.Done(job, err)
	}()

	written, err := copyChunks(ctx, f, rsp.Body, job, p)
	if cerr := f.Close(); cerr != nil && err == nil {
		err = fmt.Errorf("close %s: %w", job.Path, cerr)
	}
	if err != nil {
		return 0, err
	}

	if offset+written < total {
		return 0, fmt.Errorf("%w: got %d of %d bytes: url=%s", ErrShortRead, offset+written, total, job.URL)
	}

	log.Debugf("transfer complete: %s (%d bytes, resumed at %d)", job.Path, total, offset)
	return total, nil
}

// openPartial opens the destination for appending if a partial file is being
// resumed, or creates it fresh otherwise. Parent directories are created on
// demand.
func openPartial(path string, resume bool) (*os.File, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("create directory for %s: %w", path, err)
	}

	flags := os.O_CREATE | os.O_WRONLY | os.O_TRUNC
	if resume {
		flags = os.O_WRONLY | os.O_APPEND
	}

	f, err := os.OpenFile(path, flags, 0644)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	return f, nil
}

// copyChunks streams body into f one chunk at a time and returns the number of
// bytes written.
func copyChunks(ctx context.Context, f *os.File, body io.Reader, job Job, p Progress) (int64, error) {
	buf := make([]byte, chunkSize)

	var written int64
	for {
		// The request carries ctx, so a cancelled context ends the read.
		n, rerr := body.Read(buf)
		if n > 0 {
			nw, werr := f.Write(buf[:n])
			written += int64(nw)
			p.Add(job, int64(nw))
			if werr != nil {
				return written, fmt.Errorf("write %s: %w", job.Path, werr)
			}
		}
		if rerr == io.EOF {
			return written, nil
		}
		if errors.Is(rerr, io.ErrUnexpectedEOF) && ctx.Err() == nil {
			return written, fmt.Errorf("%w: connection closed after %d bytes: url=%s", ErrShortRead, written, job.URL)
		}
		if rerr != nil {
			return written, classifyNetErr(ctx, rerr)
		}
	}
}

// classifyNetErr maps a request or body-read error to ErrCancelled if the
// context is done and to ErrTransient otherwise.
func classifyNetErr(ctx context.Context, err error) error {
	if errors.Is(err, ErrTransient) || errors.Is(err, ErrPrecondition) {
		return err
	}
	if ctx.Err() != nil {
		return fmt.Errorf("%w: %w", ErrCancelled, ctx.Err())
	}
	return fmt.Errorf("%w: %w", ErrTransient, err)
}
