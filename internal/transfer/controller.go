// Package transfer is the entry point for downloads. A Controller runs each
// request through the download engine when one is available and through
// the fallback transport otherwise, classifies the final engine status and
// reports progress to a notification sink.
package transfer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"net/url"
	"os"
	"path"
	"strings"
	"time"

	"github.com/ZebulonRouseFrantzich/emuget/internal/engine"
	"github.com/ZebulonRouseFrantzich/emuget/internal/fallback"
	"github.com/ZebulonRouseFrantzich/emuget/internal/mirror"
	"github.com/ZebulonRouseFrantzich/emuget/internal/notify"
	"github.com/ZebulonRouseFrantzich/emuget/internal/rpc"
	"github.com/ZebulonRouseFrantzich/emuget/internal/verify"
)

// DefaultPollInterval is the delay between status polls of a foreground
// transfer.
const DefaultPollInterval = 300 * time.Millisecond

// Engine provides the running download engine.
type Engine interface {
	Ensure(ctx context.Context) (*engine.Handle, error)
	Current() *engine.Handle
	Invalidate(h *engine.Handle)
}

// Fetcher downloads without the engine.
type Fetcher interface {
	Fetch(ctx context.Context, rawURL, dir string, options map[string]string, progress fallback.ProgressFunc) (*fallback.Result, error)
}

// Controller runs downloads. It is safe for concurrent use.
type Controller struct {
	engine       Engine
	resolver     mirror.Resolver
	fallback     Fetcher
	sink         notify.Sink
	verifier     *verify.Verifier
	logger       *slog.Logger
	pollInterval time.Duration
	autoDelete   bool
}

// Option configures a Controller.
type Option func(*Controller)

// WithResolver sets the mirror resolver.
func WithResolver(r mirror.Resolver) Option {
	return func(c *Controller) { c.resolver = r }
}

// WithFallback sets the transport used when the engine is unavailable.
func WithFallback(f Fetcher) Option {
	return func(c *Controller) { c.fallback = f }
}

// WithSink sets the notification sink.
func WithSink(s notify.Sink) Option {
	return func(c *Controller) { c.sink = s }
}

// WithVerifier sets the verifier used for signature checks.
func WithVerifier(v *verify.Verifier) Option {
	return func(c *Controller) { c.verifier = v }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *Controller) { c.logger = l }
}

// WithPollInterval sets the foreground poll interval.
func WithPollInterval(d time.Duration) Option {
	return func(c *Controller) { c.pollInterval = d }
}

// WithAutoDelete makes Result.Cleanup remove output files.
func WithAutoDelete(enabled bool) Option {
	return func(c *Controller) { c.autoDelete = enabled }
}

// New creates a Controller backed by eng.
func New(eng Engine, opts ...Option) *Controller {
	c := &Controller{
		engine:       eng,
		pollInterval: DefaultPollInterval,
	}
	for _, opt := range opts {
		opt(c)
	}

	if c.logger == nil {
		c.logger = slog.Default()
	}
	if c.resolver == nil {
		c.resolver = mirror.NewResolver(nil, mirror.Options{Logger: c.logger})
	}
	if c.fallback == nil {
		c.fallback = fallback.New(fallback.WithLogger(c.logger))
	}
	if c.sink == nil {
		c.sink = notify.Noop{}
	}
	if c.verifier == nil {
		c.verifier = verify.NewVerifier("")
	}
	return c
}

// Download runs req to completion, or submits it and returns at once when
// req.Background is set. It returns either a result or an error, never
// both.
func (c *Controller) Download(ctx context.Context, req Request) (*Result, error) {
	if err := req.validate(); err != nil {
		return nil, err
	}

	h, err := c.engine.Ensure(ctx)
	if err != nil && !errors.Is(err, engine.ErrUnavailable) {
		return nil, err
	}

	if h == nil && req.Background {
		return nil, ErrBackgroundUnsupported
	}

	target, options, err := c.buildOptions(ctx, req)
	if err != nil {
		return nil, err
	}

	if h == nil {
		c.logger.Info("download engine unavailable, using direct transfer", "url", target)
		return c.downloadDirect(ctx, req, target, options)
	}
	return c.downloadEngine(ctx, h, req, target, options)
}

// buildOptions resolves the URL and merges options into a fresh map:
// defaults, then resolver options, then the request's, then dir.
func (c *Controller) buildOptions(ctx context.Context, req Request) (string, map[string]string, error) {
	target, resolved, err := c.resolver.Resolve(ctx, req.URL)
	if err != nil {
		return "", nil, fmt.Errorf("resolve %s: %w", req.URL, err)
	}

	options := map[string]string{
		"auto-file-renaming": "false",
		"allow-overwrite":    "false",
	}
	maps.Copy(options, resolved)
	maps.Copy(options, req.Options)
	options["dir"] = req.Dir

	if digest := req.Verify.SHA256; digest != "" {
		if _, ok := options["checksum"]; !ok {
			options["checksum"] = "sha-256=" + strings.ToLower(digest)
		}
	}

	return target, options, nil
}

func (c *Controller) downloadEngine(ctx context.Context, h *engine.Handle, req Request, target string, options map[string]string) (*Result, error) {
	session := h.Session()

	gid, err := session.Submit(ctx, target, options)
	if err != nil {
		return nil, err
	}

	if req.Background {
		c.logger.Debug("background transfer submitted", "gid", gid)
		return &Result{GID: gid, State: rpc.StateActive, Transport: TransportEngine, autoDelete: c.autoDelete}, nil
	}

	c.sink.Notify(fmt.Sprintf("downloading %s...", displayName(req)))

	var last *rpc.Status
	for st, err := range session.Watch(ctx, gid, c.pollInterval) {
		if err != nil {
			if errors.Is(err, rpc.ErrTransient) {
				c.engine.Invalidate(h)
			}
			return nil, err
		}
		last = st
		if st.State == rpc.StateActive {
			c.sink.Notify(progressLine(st.DownloadSpeed, st.CompletedLength, st.TotalLength))
		}
	}

	if last == nil {
		return nil, &NotCompletedError{Name: displayName(req), Status: ""}
	}

	outcome, err := Classify(last)
	c.logger.Debug("transfer finished", "gid", gid, "outcome", outcome, "code", last.ErrorCode)

	switch outcome {
	case OutcomeInterrupted:
		c.removePartial(last.Paths())
		return nil, err
	case OutcomeAlreadyExists:
		c.sink.Notify("file already exists, skipping")
	case OutcomeComplete:
		if err := checkOutputs(last.Files); err != nil {
			return nil, err
		}
	default:
		return nil, err
	}

	result := &Result{
		Files:          last.Paths(),
		State:          rpc.StateComplete,
		GID:            gid,
		Transport:      TransportEngine,
		AlreadyExisted: outcome == OutcomeAlreadyExists,
		autoDelete:     c.autoDelete,
	}

	if err := c.checkIntegrity(ctx, req, result); err != nil {
		return nil, err
	}

	if err := session.Purge(ctx); err != nil {
		c.logger.Warn("failed to purge engine results", "error", err)
	}

	if outcome == OutcomeComplete {
		c.sink.Notify("download complete")
	}
	return result, nil
}

func (c *Controller) downloadDirect(ctx context.Context, req Request, target string, options map[string]string) (*Result, error) {
	c.sink.Notify(fmt.Sprintf("downloading %s...", displayName(req)))

	res, err := c.fallback.Fetch(ctx, target, req.Dir, options, c.throttledProgress())
	if err != nil {
		return nil, err
	}

	if res.AlreadyExisted {
		c.sink.Notify("file already exists, skipping")
	}

	result := &Result{
		Files:          []string{res.Path},
		State:          rpc.StateComplete,
		Transport:      TransportFallback,
		AlreadyExisted: res.AlreadyExisted,
		autoDelete:     c.autoDelete,
	}

	if err := c.checkIntegrity(ctx, req, result); err != nil {
		return nil, err
	}

	if !res.AlreadyExisted {
		c.sink.Notify("download complete")
	}
	return result, nil
}

// throttledProgress reports fallback progress at most once per poll interval.
func (c *Controller) throttledProgress() fallback.ProgressFunc {
	start := time.Now()
	var last time.Time
	return func(completed, total int64) {
		now := time.Now()
		if now.Sub(last) < c.pollInterval {
			return
		}
		last = now

		var speed int64
		if elapsed := now.Sub(start).Seconds(); elapsed > 0 {
			speed = int64(float64(completed) / elapsed)
		}
		c.sink.Notify(progressLine(speed, completed, total))
	}
}

// removePartial deletes interrupted output files and their engine control
// files. Failures are logged.
func (c *Controller) removePartial(paths []string) {
	for _, p := range paths {
		removed := true
		for _, f := range []string{p, p + ".aria2"} {
			if err := os.Remove(f); err != nil && !errors.Is(err, os.ErrNotExist) {
				c.logger.Warn("failed to remove partial file", "path", f, "error", err)
				removed = false
			}
		}
		if removed {
			c.logger.Info("removed partial download", "path", p)
		}
	}
}

// PauseAll pauses every engine transfer. It reports false when no engine
// is running.
func (c *Controller) PauseAll(ctx context.Context) (bool, error) {
	h := c.engine.Current()
	if h == nil {
		return false, nil
	}
	if err := h.Session().PauseAll(ctx); err != nil {
		return false, err
	}
	return true, nil
}

// StopAll removes every engine transfer. It reports false when no engine
// is running.
func (c *Controller) StopAll(ctx context.Context) (bool, error) {
	h := c.engine.Current()
	if h == nil {
		return false, nil
	}
	if err := h.Session().RemoveAll(ctx); err != nil {
		return false, err
	}
	return true, nil
}

// Status polls a background transfer.
func (c *Controller) Status(ctx context.Context, gid string) (*rpc.Status, error) {
	h := c.engine.Current()
	if h == nil {
		return nil, fmt.Errorf("status %s: %w", gid, engine.ErrUnavailable)
	}
	st, err := h.Session().Poll(ctx, gid)
	if errors.Is(err, rpc.ErrTransient) {
		c.engine.Invalidate(h)
	}
	return st, err
}

// checkOutputs confirms every reported file exists with at least its
// expected length.
func checkOutputs(files []rpc.File) error {
	for _, f := range files {
		if f.Path == "" {
			continue
		}
		info, err := os.Stat(f.Path)
		if err != nil {
			return fmt.Errorf("%w: %v", ErrIncomplete, err)
		}
		if info.Size() < f.Length {
			return fmt.Errorf("%w: %s has %d of %d bytes", ErrIncomplete, f.Path, info.Size(), f.Length)
		}
	}
	return nil
}

// displayName picks the name shown in notifications.
func displayName(req Request) string {
	if req.Name != "" {
		return req.Name
	}
	if out := req.Options["out"]; out != "" {
		return out
	}
	if u, err := url.Parse(req.URL); err == nil {
		if base := path.Base(u.Path); base != "." && base != "/" {
			return base
		}
	}
	return req.URL
}
