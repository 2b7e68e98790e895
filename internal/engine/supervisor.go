package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/google/uuid"

	"github.com/ZebulonRouseFrantzich/emuget/internal/rpc"
)

const (
	// MaxLaunchAttempts bounds launches per Ensure call.
	MaxLaunchAttempts = 2
	// HandshakeTimeout bounds the wait for the RPC endpoint of one launch.
	HandshakeTimeout = 10 * time.Second
	handshakeTries   = 30
)

// errExited is returned when the engine dies before answering RPC.
var errExited = errors.New("engine exited during startup")

// Supervisor owns at most one engine process.
type Supervisor struct {
	mu     sync.Mutex
	cfg    Config
	handle *Handle
	logger *slog.Logger

	// current mirrors handle for readers that must not wait on a launch.
	current atomic.Pointer[Handle]

	// Replaced in tests.
	locate    func(ctx context.Context, cfg Config) (string, error)
	pickPort  func() (int, error)
	newSecret func() string
	start     func(path string, args []string) (*process, error)
	backOff   func() backoff.BackOff
}

// New creates a Supervisor. No process is started until Ensure.
func New(cfg Config) *Supervisor {
	s := &Supervisor{
		locate: func(ctx context.Context, cfg Config) (string, error) {
			return locate(ctx, cfg, executableDir())
		},
		pickPort:  func() (int, error) { return freePort(randomPort) },
		newSecret: uuid.NewString,
		start:     startProcess,
		backOff: func() backoff.BackOff {
			b := backoff.NewExponentialBackOff()
			b.InitialInterval = 100 * time.Millisecond
			b.MaxInterval = time.Second
			return b
		},
	}
	s.Configure(cfg)
	return s
}

// Configure replaces the launch configuration. A running engine keeps its
// settings until it is relaunched.
func (s *Supervisor) Configure(cfg Config) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.cfg = cfg
	s.logger = cfg.Logger
	if s.logger == nil {
		s.logger = slog.Default()
	}
}

// Ensure returns the running engine, launching it if needed. It returns
// ErrUnavailable when no executable exists and a *HandshakeError when
// MaxLaunchAttempts launches failed. Concurrent callers share one launch.
func (s *Supervisor) Ensure(ctx context.Context) (*Handle, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if h := s.handle; h != nil {
		if h.Alive(ctx) {
			return h, nil
		}
		s.logger.Warn("download engine exited, relaunching", "pid", h.PID())
		h.kill()
		s.setHandle(nil)
	}

	path, err := s.locate(ctx, s.cfg)
	if err != nil {
		return nil, err
	}

	var lastErr error
	for attempt := 1; attempt <= MaxLaunchAttempts; attempt++ {
		h, err := s.launch(ctx, path)
		if err == nil {
			s.setHandle(h)
			return h, nil
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		s.logger.Warn("download engine launch failed", "attempt", attempt, "error", err)
		lastErr = err
	}

	return nil, &HandshakeError{Attempts: MaxLaunchAttempts, Err: lastErr}
}

// Current returns the engine handle without launching, or nil. It does
// not wait for a launch in progress.
func (s *Supervisor) Current() *Handle {
	return s.current.Load()
}

// setHandle must be called with s.mu held.
func (s *Supervisor) setHandle(h *Handle) {
	s.handle = h
	s.current.Store(h)
}

// Invalidate kills h if it is still the current engine so the next Ensure
// relaunches. Stale handles are ignored.
func (s *Supervisor) Invalidate(h *Handle) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if h == nil || s.handle != h {
		return
	}
	s.logger.Warn("discarding unresponsive download engine", "pid", h.PID())
	h.kill()
	s.setHandle(nil)
}

// Shutdown kills the engine. It is idempotent.
func (s *Supervisor) Shutdown() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.handle == nil {
		return
	}
	s.logger.Debug("stopping download engine", "pid", s.handle.PID())
	s.handle.kill()
	s.setHandle(nil)
}

// launch starts one engine instance and waits until it answers RPC.
func (s *Supervisor) launch(ctx context.Context, path string) (*Handle, error) {
	port, err := s.pickPort()
	if err != nil {
		return nil, err
	}
	secret := s.newSecret()

	if s.cfg.RemoveOldLog {
		if err := os.Remove(s.cfg.logPath()); err != nil && !errors.Is(err, os.ErrNotExist) {
			s.logger.Warn("failed to remove old engine log", "path", s.cfg.logPath(), "error", err)
		}
	}

	args := buildArgs(s.cfg, port, secret, os.Getpid())
	s.logger.Debug("starting download engine", "path", path, "port", port)

	proc, err := s.start(path, args)
	if err != nil {
		return nil, err
	}

	h := &Handle{
		Host:    LoopbackHost,
		Port:    port,
		Secret:  secret,
		proc:    proc,
		session: rpc.NewSession(rpc.NewClient(LoopbackHost, port, secret), rpc.WithLogger(s.logger)),
	}

	if err := s.handshake(ctx, h); err != nil {
		h.kill()
		return nil, err
	}

	s.logger.Info("download engine started", "pid", proc.pid, "port", port)
	return h, nil
}

// handshake waits for the RPC endpoint, reads the global options and
// pushes the configured ones.
func (s *Supervisor) handshake(ctx context.Context, h *Handle) error {
	session := h.Session()

	opts, err := backoff.Retry(ctx, func() (map[string]string, error) {
		if h.proc.exited() {
			return nil, backoff.Permanent(errExited)
		}
		opts, err := session.GlobalOptions(ctx)
		if err != nil && rpc.IsRPCError(err) {
			return nil, backoff.Permanent(err)
		}
		return opts, err
	},
		backoff.WithBackOff(s.backOff()),
		backoff.WithMaxTries(handshakeTries),
		backoff.WithMaxElapsedTime(HandshakeTimeout),
	)
	if err != nil {
		return fmt.Errorf("wait for engine rpc: %w", err)
	}

	s.logger.Debug("engine global options", "dir", opts["dir"], "max-concurrent-downloads", opts["max-concurrent-downloads"])

	if err := session.SetGlobalOptions(ctx, s.cfg.GlobalOptions); err != nil {
		return err
	}

	return nil
}
