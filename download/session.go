package download

import (
	"context"
	"fmt"
	"math/rand"
	"net"
	"net/http"
	"net/http/cookiejar"
	"sync/atomic"
	"time"

	log "github.com/sirupsen/logrus"
)

// DefaultReferer is sent with every media request unless overridden.
const DefaultReferer = "https://www.douyin.com/"

// browserUserAgents are rotated per request so that many concurrent jobs do not
// present one identical client to the media host.
var browserUserAgents = []string{
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/129.0.0.0 Safari/537.36",
	"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/128.0.0.0 Safari/537.36",
	"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.6 Safari/605.1.15",
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64; rv:131.0) Gecko/20100101 Firefox/131.0",
	"Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/129.0.0.0 Safari/537.36",
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/129.0.0.0 Safari/537.36 Edg/129.0.0.0",
}

var errSessionClosed = fmt.Errorf("%w: session closed", ErrTransient)

// SessionOptions configures a transport session.
type SessionOptions struct {
	// ConnectTimeout bounds dialing and the TLS handshake. The transfer itself
	// has no overall deadline.
	// Default: 5s
	ConnectTimeout time.Duration

	// HeaderTimeout bounds the wait for response headers after the request
	// has been written.
	// Default: 30s
	HeaderTimeout time.Duration

	// MaxIdleConnsPerHost sets the idle pool size per media host.
	// Default: 16
	MaxIdleConnsPerHost int

	// Referer is sent with every request.
	// Default: DefaultReferer
	Referer string

	// UserAgent, if set, replaces the rotating browser user agents.
	UserAgent string

	// Cookies are installed in the session's cookie jar, e.g. the output of
	// LoadStorageState.
	Cookies []*http.Cookie
}

// DefaultSessionOptions returns options with sensible defaults.
func DefaultSessionOptions() SessionOptions {
	return SessionOptions{
		ConnectTimeout:      5 * time.Second,
		HeaderTimeout:       30 * time.Second,
		MaxIdleConnsPerHost: 16,
		Referer:             DefaultReferer,
	}
}

func (o SessionOptions) withDefaults() SessionOptions {
	d := DefaultSessionOptions()
	if o.ConnectTimeout <= 0 {
		o.ConnectTimeout = d.ConnectTimeout
	}
	if o.HeaderTimeout <= 0 {
		o.HeaderTimeout = d.HeaderTimeout
	}
	if o.MaxIdleConnsPerHost <= 0 {
		o.MaxIdleConnsPerHost = d.MaxIdleConnsPerHost
	}
	if o.Referer == "" {
		o.Referer = d.Referer
	}
	return o
}

// Session is a reusable HTTP client and connection pool. It is safe for
// concurrent use by many jobs. A session is never mutated after creation;
// replacing a bad session means creating a new one and dropping the old
// reference.
type Session struct {
	hc     *http.Client
	opts   SessionOptions
	closed atomic.Bool
}

// NewSession creates a session with its own connection pool.
func NewSession(opts SessionOptions) *Session {
	opts = opts.withDefaults()

	dialer := &net.Dialer{
		Timeout:   opts.ConnectTimeout,
		KeepAlive: 30 * time.Second,
	}
	transport := &http.Transport{
		Proxy:                 http.ProxyFromEnvironment,
		DialContext:           dialer.DialContext,
		TLSHandshakeTimeout:   opts.ConnectTimeout,
		ResponseHeaderTimeout: opts.HeaderTimeout,
		MaxIdleConnsPerHost:   opts.MaxIdleConnsPerHost,
		MaxIdleConns:          opts.MaxIdleConnsPerHost * 4,
		IdleConnTimeout:       90 * time.Second,
		// Raw bytes are required for byte-range resume.
		DisableCompression: true,
	}

	hc := &http.Client{Transport: transport}
	if len(opts.Cookies) > 0 {
		jar, err := cookiejar.New(nil)
		if err == nil {
			setCookies(jar, opts.Cookies)
			hc.Jar = jar
		}
	}

	return &Session{
		hc:   hc,
		opts: opts,
	}
}

// SessionFactory returns a function creating fresh sessions with the given
// options. It is the usual value of RetryPolicy.NewSession.
func SessionFactory(opts SessionOptions) func() *Session {
	return func() *Session {
		return NewSession(opts)
	}
}

// Get issues a GET request for u with browser-like headers. Entries of header
// are added on top.
func (s *Session) Get(ctx context.Context, u string, header http.Header) (*http.Response, error) {
	if s.Closed() {
		return nil, errSessionClosed
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, preconditionf("create request: %v", err)
	}

	req.Header.Set("User-Agent", s.userAgent())
	req.Header.Set("Referer", s.opts.Referer)
	req.Header.Set("Accept", "*/*")
	for k, vs := range header {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}

	log.Debugf("get: %s range=%q", u, req.Header.Get("Range"))
	return s.hc.Do(req)
}

// HTTPClient returns the session's http client.
func (s *Session) HTTPClient() *http.Client {
	return s.hc
}

// Close releases the session's idle connections and marks it unusable.
// Requests already in flight are not interrupted. Close is idempotent.
func (s *Session) Close() {
	if s.closed.Swap(true) {
		return
	}
	s.hc.CloseIdleConnections()
}

// Closed reports whether Close has been called.
func (s *Session) Closed() bool {
	return s.closed.Load()
}

func (s *Session) userAgent() string {
	if s.opts.UserAgent != "" {
		return s.opts.UserAgent
	}
	return browserUserAgents[rand.Intn(len(browserUserAgents))]
}
