package download

import (
	"net/url"
	"strings"
)

// DefaultMinValidBytes is the size a response must exceed to be trusted as
// media. Smaller responses are usually error pages or placeholders.
const DefaultMinValidBytes = 512

// Job is one media file to download. A job is immutable once created.
type Job struct {
	URL           string // Remote media url.
	Path          string // Local destination file.
	MinValidBytes int64  // Expected size must exceed this.
	Kind          string // Informational: cover, video, music, image, link.
}

// NewJob returns a job with the default minimum valid size.
func NewJob(u, path, kind string) Job {
	return Job{
		URL:           u,
		Path:          path,
		MinValidBytes: DefaultMinValidBytes,
		Kind:          kind,
	}
}

// Validate returns an ErrPrecondition error if the job cannot be executed.
func (j Job) Validate() error {
	if j.URL == "" {
		return preconditionf("empty url")
	}
	pu, err := url.Parse(j.URL)
	if err != nil {
		return preconditionf("unparsable url=%s: %v", j.URL, err)
	}
	if pu.Scheme != "http" && pu.Scheme != "https" {
		return preconditionf("unsupported scheme: url=%s", j.URL)
	}
	if pu.Host == "" {
		return preconditionf("url lacks host: url=%s", j.URL)
	}
	if strings.TrimSpace(j.Path) == "" {
		return preconditionf("empty destination path: url=%s", j.URL)
	}
	if j.MinValidBytes < 0 {
		return preconditionf("negative minimum size: %d", j.MinValidBytes)
	}
	return nil
}
