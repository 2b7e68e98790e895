// Package engine supervises the aria2c download engine: it finds the
// executable, launches it as an RPC-only child process on a loopback port,
// waits for the RPC endpoint and tears the process down.
//
// At most one engine runs per Supervisor. Default returns the
// process-wide Supervisor.
package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	gopsproc "github.com/shirou/gopsutil/v4/process"

	"github.com/ZebulonRouseFrantzich/emuget/internal/platform"
	"github.com/ZebulonRouseFrantzich/emuget/internal/rpc"
)

// LoopbackHost is the address the engine listens on.
const LoopbackHost = "127.0.0.1"

var (
	// ErrUnavailable means no engine executable was found. Callers fall
	// back to a direct transfer.
	ErrUnavailable = errors.New("download engine not available")

	// ErrHandshakeFailed is matched by errors.Is for a *HandshakeError.
	ErrHandshakeFailed = errors.New("download engine handshake failed")
)

// HandshakeError is returned when every launch attempt failed. Err is the
// failure of the last attempt.
type HandshakeError struct {
	Attempts int
	Err      error
}

func (e *HandshakeError) Error() string {
	return fmt.Sprintf("download engine failed to start after %d attempts: %v", e.Attempts, e.Err)
}

func (e *HandshakeError) Unwrap() []error {
	return []error{ErrHandshakeFailed, e.Err}
}

// Config controls how the engine is found and launched.
type Config struct {
	// EnginePath is an explicit aria2c path. When set, no other location is tried.
	EnginePath string
	// LogPath is the engine log file. Empty means a file in os.TempDir().
	LogPath string
	// RemoveOldLog deletes LogPath before each launch.
	RemoveOldLog bool
	DisableIPv6  bool
	// UseDoH points the engine's async resolver at public DNS servers.
	UseDoH bool
	// GlobalOptions are pushed with aria2.changeGlobalOption after launch.
	GlobalOptions map[string]string
	// Detector decides the executable name. Nil uses platform.NewDetector().
	Detector platform.Detector
	Logger   *slog.Logger
}

func (c Config) logPath() string {
	if c.LogPath != "" {
		return c.LogPath
	}
	return filepath.Join(os.TempDir(), "emuget-aria2.log")
}

// Handle is a running engine and the session bound to it.
type Handle struct {
	Host   string
	Port   int
	Secret string

	session *rpc.Session
	proc    *process
}

// Attach returns a handle for an engine that is managed elsewhere, such as
// an aria2c daemon started by the user. Alive always reports true for it.
func Attach(host string, port int, secret string, opts ...rpc.SessionOption) *Handle {
	return &Handle{
		Host:    host,
		Port:    port,
		Secret:  secret,
		session: rpc.NewSession(rpc.NewClient(host, port, secret), opts...),
	}
}

// Session returns the RPC session for this engine.
func (h *Handle) Session() *rpc.Session {
	return h.session
}

// Alive reports whether the engine process is still running.
func (h *Handle) Alive(ctx context.Context) bool {
	if h.proc == nil {
		return true
	}
	if h.proc.exited() {
		return false
	}
	exists, err := gopsproc.PidExistsWithContext(ctx, int32(h.proc.pid)) //nolint:gosec // pids fit in int32
	if err != nil {
		// Unsupported platform or cancelled ctx; the reaper is authoritative.
		return true
	}
	return exists
}

// PID returns the engine process id, or 0 for attached engines.
func (h *Handle) PID() int {
	if h.proc == nil {
		return 0
	}
	return h.proc.pid
}

func (h *Handle) kill() {
	if h.proc != nil {
		h.proc.stop()
	}
}

var defaultSupervisor = sync.OnceValue(func() *Supervisor {
	return New(Config{})
})

// Default returns the process-wide Supervisor. Configure it before the
// first transfer.
func Default() *Supervisor {
	return defaultSupervisor()
}

// stopTimeout bounds the wait for a killed engine to be reaped.
const stopTimeout = 5 * time.Second
