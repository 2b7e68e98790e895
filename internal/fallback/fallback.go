// Package fallback downloads artifacts over a single HTTP connection when
// the download engine is not installed. It accepts the same option keys as
// the engine for the subset it supports: out, allow-overwrite, all-proxy,
// user-agent and max-download-limit.
package fallback

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/cenkalti/backoff/v5"
	"golang.org/x/time/rate"

	"github.com/ZebulonRouseFrantzich/emuget/internal/units"
)

const (
	// ChunkSize bounds each read from the response body.
	ChunkSize = 32 * units.KiB
	// MaxRedirects is the redirect limit per request.
	MaxRedirects = 10
	// ResponseHeaderTimeout bounds the wait for response headers. The body
	// has no overall deadline since artifacts may be gigabytes.
	ResponseHeaderTimeout = 30 * time.Second
	// MaxRetries is the number of retries after a failed first attempt.
	MaxRetries = 5

	maxRetryAfter = 120
)

// ErrFailed is matched by errors.Is for every *Error.
var ErrFailed = errors.New("fallback transfer failed")

// Error reports a failed fallback transfer. Any partial file has already
// been removed.
type Error struct {
	URL string
	Err error
}

func (e *Error) Error() string {
	return fmt.Sprintf("fallback download %s: %v", e.URL, e.Err)
}

func (e *Error) Unwrap() []error {
	return []error{ErrFailed, e.Err}
}

// ProgressFunc receives the bytes written so far and the expected total
// (-1 when unknown).
type ProgressFunc func(completed, total int64)

// Clock provides the current time. Tests pin it to get stable default names.
type Clock interface {
	Now() time.Time
}

type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }

// Result describes the file produced by Fetch.
type Result struct {
	Path string
	Size int64
	// AlreadyExisted is set when the destination existed and overwriting was
	// not allowed, so nothing was transferred.
	AlreadyExisted bool
}

// Transport is the fallback downloader.
type Transport struct {
	logger  *slog.Logger
	clock   Clock
	base    *http.Transport
	backOff func() backoff.BackOff
}

// Option configures a Transport.
type Option func(*Transport)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(t *Transport) {
		if logger != nil {
			t.logger = logger
		}
	}
}

// WithClock sets the clock used for default file names.
func WithClock(c Clock) Option {
	return func(t *Transport) {
		if c != nil {
			t.clock = c
		}
	}
}

// WithBackOff sets the retry delay policy. newBackOff is called once per
// Fetch.
func WithBackOff(newBackOff func() backoff.BackOff) Option {
	return func(t *Transport) {
		if newBackOff != nil {
			t.backOff = newBackOff
		}
	}
}

// New creates a fallback transport.
func New(opts ...Option) *Transport {
	base, _ := http.DefaultTransport.(*http.Transport)
	if base == nil {
		base = &http.Transport{Proxy: http.ProxyFromEnvironment}
	} else {
		base = base.Clone()
	}
	base.ResponseHeaderTimeout = ResponseHeaderTimeout

	t := &Transport{
		logger: slog.Default(),
		clock:  realClock{},
		base:   base,
		backOff: func() backoff.BackOff {
			b := backoff.NewExponentialBackOff()
			b.InitialInterval = time.Second
			b.MaxInterval = 30 * time.Second
			return b
		},
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Fetch downloads rawURL into dir, creating dir if needed. progress may be
// nil. Network failures, 5xx and 429 responses are retried with jittered
// exponential backoff up to MaxRetries times; other failures are returned
// at once.
func (t *Transport) Fetch(ctx context.Context, rawURL, dir string, options map[string]string, progress ProgressFunc) (*Result, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, &Error{URL: rawURL, Err: fmt.Errorf("create dest dir: %w", err)}
	}

	overwrite := options["allow-overwrite"] == "true"

	// A known name that already exists needs no request at all.
	if out := sanitizeFilename(options["out"]); out != "" && !overwrite {
		if res, ok := existing(filepath.Join(dir, out)); ok {
			t.logger.Debug("destination exists, skipping", "path", res.Path)
			return res, nil
		}
	}

	client, err := t.client(options["all-proxy"])
	if err != nil {
		return nil, &Error{URL: rawURL, Err: err}
	}

	limiter, err := newLimiter(options["max-download-limit"])
	if err != nil {
		return nil, &Error{URL: rawURL, Err: err}
	}

	attempt := 0
	op := func() (*Result, error) {
		attempt++
		res, err := t.fetchOnce(ctx, client, rawURL, dir, options, overwrite, limiter, progress)
		if err != nil && !isPermanent(err) && ctx.Err() == nil {
			t.logger.Warn("fallback download attempt failed", "url", rawURL, "attempt", attempt, "error", err)
		}
		return res, err
	}

	res, err := backoff.Retry(ctx, op,
		backoff.WithBackOff(t.backOff()),
		backoff.WithMaxTries(MaxRetries+1),
		backoff.WithMaxElapsedTime(0),
	)
	if err != nil {
		var perm *backoff.PermanentError
		if errors.As(err, &perm) {
			err = perm.Unwrap()
		}
		return nil, &Error{URL: rawURL, Err: err}
	}
	return res, nil
}

// fetchOnce makes one request and streams the body into place. Errors
// that a retry cannot fix are wrapped with backoff.Permanent.
func (t *Transport) fetchOnce(ctx context.Context, client *http.Client, rawURL, dir string, options map[string]string, overwrite bool, limiter *rate.Limiter, progress ProgressFunc) (*Result, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, backoff.Permanent(fmt.Errorf("create request: %w", err))
	}
	if ua := options["user-agent"]; ua != "" {
		req.Header.Set("User-Agent", ua)
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("execute request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, statusError(resp)
	}

	name := resolveFilename(options["out"], resp.Header.Get("Content-Disposition"), rawURL, t.clock.Now())
	destPath := filepath.Join(dir, name)

	if !overwrite {
		if res, ok := existing(destPath); ok {
			t.logger.Debug("destination exists, skipping", "path", res.Path)
			return res, nil
		}
	}

	t.logger.Debug("fallback download", "url", rawURL, "path", destPath, "size", resp.ContentLength)

	size, err := t.stream(ctx, resp, destPath, limiter, progress)
	if err != nil {
		return nil, err
	}

	return &Result{Path: destPath, Size: size}, nil
}

// StatusError is a non-2xx response.
type StatusError struct {
	Code int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("unexpected status code: %d", e.Code)
}

// Temporary reports whether the server may succeed on a later attempt.
func (e *StatusError) Temporary() bool {
	return e.Code == http.StatusTooManyRequests || e.Code >= 500
}

// statusError classifies a non-2xx response for the retry loop. A 429
// Retry-After in seconds replaces the backoff delay.
func statusError(resp *http.Response) error {
	err := &StatusError{Code: resp.StatusCode}
	if !err.Temporary() {
		return backoff.Permanent(err)
	}
	if secs, convErr := strconv.Atoi(resp.Header.Get("Retry-After")); convErr == nil && secs > 0 && secs <= maxRetryAfter {
		return fmt.Errorf("%w: %w", err, backoff.RetryAfter(secs))
	}
	return err
}

func isPermanent(err error) bool {
	var perm *backoff.PermanentError
	return errors.As(err, &perm)
}

// stream copies the body to a temp file next to destPath and renames it
// into place. The temp file is removed on any failure.
func (t *Transport) stream(ctx context.Context, resp *http.Response, destPath string, limiter *rate.Limiter, progress ProgressFunc) (int64, error) {
	tmpPath := destPath + ".tmp"
	tmpFile, err := os.Create(tmpPath)
	if err != nil {
		return 0, backoff.Permanent(fmt.Errorf("create temp file: %w", err))
	}

	cleanupNeeded := true
	defer func() {
		tmpFile.Close()
		if cleanupNeeded {
			if rmErr := os.Remove(tmpPath); rmErr != nil && !errors.Is(rmErr, os.ErrNotExist) {
				t.logger.Warn("failed to remove partial file", "path", tmpPath, "error", rmErr)
			}
		}
	}()

	total := resp.ContentLength
	var written int64
	buf := make([]byte, ChunkSize)
	for {
		n, readErr := resp.Body.Read(buf)
		if n > 0 {
			if limiter != nil {
				if err := limiter.WaitN(ctx, n); err != nil {
					return 0, backoff.Permanent(fmt.Errorf("rate limit: %w", err))
				}
			}
			if _, err := tmpFile.Write(buf[:n]); err != nil {
				return 0, backoff.Permanent(fmt.Errorf("write file: %w", err))
			}
			written += int64(n)
			if progress != nil {
				progress(written, total)
			}
		}
		if readErr == io.EOF {
			break
		}
		if readErr != nil {
			return 0, fmt.Errorf("copy response body: %w", readErr)
		}
	}

	if total > 0 && written != total {
		return 0, fmt.Errorf("short body: got %d of %d bytes", written, total)
	}

	if err := tmpFile.Close(); err != nil {
		return 0, backoff.Permanent(fmt.Errorf("close temp file: %w", err))
	}

	if err := os.Rename(tmpPath, destPath); err != nil {
		return 0, backoff.Permanent(fmt.Errorf("rename temp file: %w", err))
	}

	cleanupNeeded = false
	return written, nil
}

// client returns an HTTP client routed through proxy, or through the
// environment proxy settings when proxy is empty.
func (t *Transport) client(proxy string) (*http.Client, error) {
	transport := t.base
	if proxy != "" {
		proxyURL, err := url.Parse(proxy)
		if err != nil {
			return nil, fmt.Errorf("parse proxy: %w", err)
		}
		transport = t.base.Clone()
		transport.Proxy = http.ProxyURL(proxyURL)
	}

	return &http.Client{
		Transport: transport,
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			if len(via) >= MaxRedirects {
				return fmt.Errorf("too many redirects")
			}
			return nil
		},
	}, nil
}

// newLimiter builds a byte rate limiter from an aria2 size value. Empty or
// zero means unlimited.
func newLimiter(limit string) (*rate.Limiter, error) {
	if limit == "" {
		return nil, nil
	}

	bytesPerSec, err := units.ParseSize(limit)
	if err != nil {
		return nil, fmt.Errorf("parse max-download-limit: %w", err)
	}
	if bytesPerSec == 0 {
		return nil, nil
	}

	burst := int(max(bytesPerSec, ChunkSize))
	return rate.NewLimiter(rate.Limit(bytesPerSec), burst), nil
}

// existing reports a non-empty regular file at path.
func existing(path string) (*Result, bool) {
	info, err := os.Stat(path)
	if err != nil || info.IsDir() || info.Size() == 0 {
		return nil, false
	}
	return &Result{Path: path, Size: info.Size(), AlreadyExisted: true}, true
}
