package download

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"math/rand"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// mediaServer serves one resource and honours "bytes=N-" range requests.
type mediaServer struct {
	data        []byte
	contentType string
	ignoreRange bool

	// abortAfter, if positive, makes the server drop the connection after
	// sending that many body bytes.
	abortAfter int

	mtx      sync.Mutex
	requests []*http.Request
	lengths  []string // Content-Length of each response sent.
}

func newMediaData(n int) []byte {
	r := rand.New(rand.NewSource(1))
	b := make([]byte, n)
	for i := range b {
		b[i] = byte(r.Uint32())
	}
	return b
}

func (ms *mediaServer) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ms.mtx.Lock()
	ms.requests = append(ms.requests, r)
	abortAfter := ms.abortAfter
	ms.mtx.Unlock()

	ct := ms.contentType
	if ct == "" {
		ct = "video/mp4"
	}
	w.Header().Set("Content-Type", ct)

	start := 0
	status := http.StatusOK
	if rh := r.Header.Get("Range"); rh != "" && !ms.ignoreRange {
		n, err := strconv.Atoi(strings.TrimSuffix(strings.TrimPrefix(rh, "bytes="), "-"))
		if err != nil {
			http.Error(w, "bad range", http.StatusBadRequest)
			return
		}
		if n >= len(ms.data) {
			w.Header().Set("Content-Range", fmt.Sprintf("bytes */%d", len(ms.data)))
			w.WriteHeader(http.StatusRequestedRangeNotSatisfiable)
			return
		}
		start = n
		status = http.StatusPartialContent
		w.Header().Set("Content-Range", fmt.Sprintf("bytes %d-%d/%d", start, len(ms.data)-1, len(ms.data)))
	}

	body := ms.data[start:]
	cl := strconv.Itoa(len(body))
	w.Header().Set("Content-Length", cl)

	ms.mtx.Lock()
	ms.lengths = append(ms.lengths, cl)
	ms.mtx.Unlock()

	w.WriteHeader(status)
	if abortAfter > 0 && abortAfter < len(body) {
		w.Write(body[:abortAfter])
		w.(http.Flusher).Flush()
		panic(http.ErrAbortHandler)
	}
	w.Write(body)
}

func (ms *mediaServer) hits() int {
	ms.mtx.Lock()
	defer ms.mtx.Unlock()
	return len(ms.requests)
}

func (ms *mediaServer) rangeHeader(i int) string {
	ms.mtx.Lock()
	defer ms.mtx.Unlock()
	return ms.requests[i].Header.Get("Range")
}

func (ms *mediaServer) contentLength(i int) string {
	ms.mtx.Lock()
	defer ms.mtx.Unlock()
	return ms.lengths[i]
}

// recordingProgress sums the bytes reported to it.
type recordingProgress struct {
	mtx    sync.Mutex
	starts int
	done   int
	offset int64
	total  int64
	added  int64
	errs   []error
}

func (p *recordingProgress) Start(job Job, offset, total int64) {
	p.mtx.Lock()
	defer p.mtx.Unlock()
	p.starts++
	p.offset = offset
	p.total = total
}

func (p *recordingProgress) Add(job Job, n int64) {
	p.mtx.Lock()
	defer p.mtx.Unlock()
	p.added += n
}

func (p *recordingProgress) Done(job Job, err error) {
	p.mtx.Lock()
	defer p.mtx.Unlock()
	p.done++
	p.errs = append(p.errs, err)
}

func TestTransferFresh(t *testing.T) {
	data := newMediaData(100_000)
	ms := &mediaServer{data: data}
	srv := httptest.NewServer(ms)
	defer srv.Close()

	dest := filepath.Join(t.TempDir(), "video", "clip.mp4")
	job := NewJob(srv.URL+"/clip.mp4", dest, "video")

	p := &recordingProgress{}
	size, err := Transfer(context.Background(), job, nil, p)
	require.NoError(t, err)
	assert.Equal(t, int64(len(data)), size)

	got, err := os.ReadFile(dest)
	require.NoError(t, err)
	assert.True(t, bytes.Equal(data, got), "downloaded bytes differ")

	assert.Empty(t, ms.rangeHeader(0))
	assert.Equal(t, 1, p.starts)
	assert.Equal(t, 1, p.done)
	assert.Equal(t, int64(len(data)), p.added)
	assert.Equal(t, int64(len(data)), p.total)
	assert.NoError(t, p.errs[0])
}

func TestTransferResume(t *testing.T) {
	data := newMediaData(50_000)

	for _, k := range []int{1, 512, 32 * 1024, 49_999} {
		t.Run(strconv.Itoa(k), func(t *testing.T) {
			ms := &mediaServer{data: data, contentType: "audio/mpeg"}
			srv := httptest.NewServer(ms)
			defer srv.Close()

			dest := filepath.Join(t.TempDir(), "a.mp3")
			require.NoError(t, os.WriteFile(dest, data[:k], 0644))

			size, err := Transfer(context.Background(), NewJob(srv.URL, dest, "music"), nil, nil)
			require.NoError(t, err)
			assert.Equal(t, int64(len(data)), size)
			assert.Equal(t, fmt.Sprintf("bytes=%d-", k), ms.rangeHeader(0))

			got, err := os.ReadFile(dest)
			require.NoError(t, err)
			assert.True(t, bytes.Equal(data, got), "resumed file differs")
		})
	}
}

func TestTransferResumeTenMiB(t *testing.T) {
	const (
		total   = 10 * 1024 * 1024
		partial = 4 * 1024 * 1024
	)
	data := newMediaData(total)
	ms := &mediaServer{data: data}
	srv := httptest.NewServer(ms)
	defer srv.Close()

	dest := filepath.Join(t.TempDir(), "big.mp4")
	require.NoError(t, os.WriteFile(dest, data[:partial], 0644))

	size, err := Transfer(context.Background(), NewJob(srv.URL, dest, "video"), nil, nil)
	require.NoError(t, err)
	assert.Equal(t, int64(10_485_760), size)
	assert.Equal(t, "6291456", ms.contentLength(0))

	info, err := os.Stat(dest)
	require.NoError(t, err)
	assert.Equal(t, int64(10_485_760), info.Size())
}

func TestTransferInterruptedThenResumed(t *testing.T) {
	data := newMediaData(256 * 1024)
	ms := &mediaServer{data: data, abortAfter: 100 * 1024}
	srv := httptest.NewServer(ms)
	defer srv.Close()

	dest := filepath.Join(t.TempDir(), "v.mp4")
	job := NewJob(srv.URL, dest, "video")

	_, err := Transfer(context.Background(), job, nil, nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrTransient)

	info, err := os.Stat(dest)
	require.NoError(t, err, "partial bytes must stay on disk")
	assert.Less(t, info.Size(), int64(len(data)))

	ms.mtx.Lock()
	ms.abortAfter = 0
	ms.mtx.Unlock()

	size, err := Transfer(context.Background(), job, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, int64(len(data)), size)
	assert.Equal(t, fmt.Sprintf("bytes=%d-", info.Size()), ms.rangeHeader(1))

	got, err := os.ReadFile(dest)
	require.NoError(t, err)
	assert.True(t, bytes.Equal(data, got))
}

func TestTransferRejectsNonMedia(t *testing.T) {
	ms := &mediaServer{data: []byte(strings.Repeat("x", 200)), contentType: "text/html; charset=utf-8"}
	srv := httptest.NewServer(ms)
	defer srv.Close()

	dest := filepath.Join(t.TempDir(), "page.mp4")
	_, err := Transfer(context.Background(), NewJob(srv.URL, dest, "video"), nil, nil)
	assert.ErrorIs(t, err, ErrInvalidContentKind)

	_, err = os.Stat(dest)
	assert.True(t, errors.Is(err, os.ErrNotExist), "no file may be created")
}

func TestTransferRejectsNonMediaKeepsPartial(t *testing.T) {
	ms := &mediaServer{data: newMediaData(4096), contentType: "application/json"}
	srv := httptest.NewServer(ms)
	defer srv.Close()

	dest := filepath.Join(t.TempDir(), "x.jpg")
	prefix := []byte("partial")
	require.NoError(t, os.WriteFile(dest, prefix, 0644))

	_, err := Transfer(context.Background(), NewJob(srv.URL, dest, "image"), nil, nil)
	assert.ErrorIs(t, err, ErrInvalidContentKind)

	got, err := os.ReadFile(dest)
	require.NoError(t, err)
	assert.Equal(t, prefix, got, "partial file must not be modified")
}

func TestTransferTooSmall(t *testing.T) {
	ms := &mediaServer{data: newMediaData(512), contentType: "image/jpeg"}
	srv := httptest.NewServer(ms)
	defer srv.Close()

	dest := filepath.Join(t.TempDir(), "tiny.jpg")
	_, err := Transfer(context.Background(), NewJob(srv.URL, dest, "image"), nil, nil)
	assert.ErrorIs(t, err, ErrContentTooSmall)

	_, err = os.Stat(dest)
	assert.True(t, errors.Is(err, os.ErrNotExist))
}

func TestTransferAlreadyComplete(t *testing.T) {
	data := newMediaData(4096)
	ms := &mediaServer{data: data}
	srv := httptest.NewServer(ms)
	defer srv.Close()

	dest := filepath.Join(t.TempDir(), "done.mp4")
	require.NoError(t, os.WriteFile(dest, data, 0644))

	size, err := Transfer(context.Background(), NewJob(srv.URL, dest, "video"), nil, nil)
	require.NoError(t, err)
	assert.Equal(t, int64(len(data)), size)

	got, err := os.ReadFile(dest)
	require.NoError(t, err)
	assert.True(t, bytes.Equal(data, got))
}

func TestTransferRangeIgnored(t *testing.T) {
	data := newMediaData(8192)
	ms := &mediaServer{data: data, ignoreRange: true}
	srv := httptest.NewServer(ms)
	defer srv.Close()

	dest := filepath.Join(t.TempDir(), "r.mp4")
	require.NoError(t, os.WriteFile(dest, []byte("garbage"), 0644))

	size, err := Transfer(context.Background(), NewJob(srv.URL, dest, "video"), nil, nil)
	require.NoError(t, err)
	assert.Equal(t, int64(len(data)), size)

	got, err := os.ReadFile(dest)
	require.NoError(t, err)
	assert.True(t, bytes.Equal(data, got), "file must be rewritten from the start")
}

func TestTransferBadStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "gone", http.StatusNotFound)
	}))
	defer srv.Close()

	dest := filepath.Join(t.TempDir(), "missing.mp4")
	_, err := Transfer(context.Background(), NewJob(srv.URL, dest, "video"), nil, nil)
	assert.ErrorIs(t, err, ErrBadStatus)
	assert.ErrorIs(t, err, ErrTransient)
}

func TestTransferContentRangeMismatch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "video/mp4")
		w.Header().Set("Content-Range", "bytes 0-4095/4096")
		w.Header().Set("Content-Length", "4096")
		w.WriteHeader(http.StatusPartialContent)
		w.Write(make([]byte, 4096))
	}))
	defer srv.Close()

	dest := filepath.Join(t.TempDir(), "m.mp4")
	require.NoError(t, os.WriteFile(dest, []byte("0123456789"), 0644))

	_, err := Transfer(context.Background(), NewJob(srv.URL, dest, "video"), nil, nil)
	assert.ErrorIs(t, err, ErrBadStatus)
}

func TestTransferUnknownLength(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "video/mp4")
		w.WriteHeader(http.StatusOK)
		// Two flushed writes force chunked encoding.
		w.Write(make([]byte, 1024))
		w.(http.Flusher).Flush()
		w.Write(make([]byte, 1024))
	}))
	defer srv.Close()

	dest := filepath.Join(t.TempDir(), "u.mp4")
	_, err := Transfer(context.Background(), NewJob(srv.URL, dest, "video"), nil, nil)
	assert.ErrorIs(t, err, ErrUnknownLength)
}

func TestTransferPrecondition(t *testing.T) {
	dir := t.TempDir()

	tests := []struct {
		name string
		job  Job
	}{
		{"empty url", Job{Path: filepath.Join(dir, "a")}},
		{"bad scheme", Job{URL: "ftp://example.com/a", Path: filepath.Join(dir, "a")}},
		{"no host", Job{URL: "http:///a", Path: filepath.Join(dir, "a")}},
		{"empty path", Job{URL: "http://example.com/a"}},
		{"negative min", Job{URL: "http://example.com/a", Path: filepath.Join(dir, "a"), MinValidBytes: -1}},
		{"path is dir", Job{URL: "http://127.0.0.1:1/a", Path: dir}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Transfer(context.Background(), tt.job, nil, nil)
			assert.ErrorIs(t, err, ErrPrecondition)
		})
	}
}

func TestTransferCancelled(t *testing.T) {
	data := newMediaData(64 * 1024)
	ms := &mediaServer{data: data}
	srv := httptest.NewServer(ms)
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	dest := filepath.Join(t.TempDir(), "c.mp4")
	_, err := Transfer(ctx, NewJob(srv.URL, dest, "video"), nil, nil)
	assert.ErrorIs(t, err, ErrCancelled)
}

// roundTripFunc lets a test stand in for the network.
type roundTripFunc func(*http.Request) (*http.Response, error)

func (f roundTripFunc) RoundTrip(r *http.Request) (*http.Response, error) {
	return f(r)
}

func TestTransferShortBody(t *testing.T) {
	data := newMediaData(1000)

	sess := NewSession(DefaultSessionOptions())
	defer sess.Close()
	sess.HTTPClient().Transport = roundTripFunc(func(r *http.Request) (*http.Response, error) {
		return &http.Response{
			StatusCode:    http.StatusOK,
			Status:        "200 OK",
			Header:        http.Header{"Content-Type": []string{"video/mp4"}},
			ContentLength: 4096,
			Body:          io.NopCloser(bytes.NewReader(data)),
			Request:       r,
		}, nil
	})

	dest := filepath.Join(t.TempDir(), "short.mp4")
	_, err := Transfer(context.Background(), NewJob("https://media.example.com/short.mp4", dest, "video"), sess, nil)
	assert.ErrorIs(t, err, ErrShortRead)
	assert.ErrorIs(t, err, ErrTransient)

	got, err := os.ReadFile(dest)
	require.NoError(t, err, "received bytes stay on disk for the next attempt")
	assert.True(t, bytes.Equal(data, got))
}

func TestTransferConnectionDropIsShortRead(t *testing.T) {
	ms := &mediaServer{data: newMediaData(64 * 1024), abortAfter: 16 * 1024}
	srv := httptest.NewServer(ms)
	defer srv.Close()

	dest := filepath.Join(t.TempDir(), "drop.mp4")
	_, err := Transfer(context.Background(), NewJob(srv.URL, dest, "video"), nil, nil)
	assert.ErrorIs(t, err, ErrShortRead)
}

func TestTransferKeepsExternalSession(t *testing.T) {
	ms := &mediaServer{data: newMediaData(2048)}
	srv := httptest.NewServer(ms)
	defer srv.Close()

	sess := NewSession(DefaultSessionOptions())
	defer sess.Close()

	_, err := Transfer(context.Background(), NewJob(srv.URL, filepath.Join(t.TempDir(), "s.mp4"), "video"), sess, nil)
	require.NoError(t, err)
	assert.False(t, sess.Closed())
}

func TestParseContentRange(t *testing.T) {
	tests := []struct {
		header            string
		start, end, total int64
		wantErr           bool
	}{
		{"bytes 0-99/100", 0, 99, 100, false},
		{"bytes 100-199/*", 100, 199, -1, false},
		{"bytes */4096", -1, -1, 4096, false},
		{"bytes 1-2", 0, 0, 0, true},
		{"bytes a-2/3", 0, 0, 0, true},
	}

	for _, tt := range tests {
		start, end, total, err := ParseContentRange(tt.header)
		if tt.wantErr {
			assert.Error(t, err, tt.header)
			continue
		}
		require.NoError(t, err, tt.header)
		assert.Equal(t, tt.start, start, tt.header)
		assert.Equal(t, tt.end, end, tt.header)
		assert.Equal(t, tt.total, total, tt.header)
	}
}

func TestIsMediaType(t *testing.T) {
	assert.True(t, isMediaType("video/mp4"))
	assert.True(t, isMediaType("Audio/MPEG"))
	assert.True(t, isMediaType("image/webp"))
	assert.False(t, isMediaType("text/html"))
	assert.False(t, isMediaType(""))
	assert.False(t, isMediaType("application/octet-stream"))
}
