// Package dirlock guards a download directory against concurrent emuget
// processes, each of which would otherwise run its own engine against the
// same output files.
package dirlock

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/shirou/gopsutil/v4/process"
)

const (
	// FileName is the lock file created inside the guarded directory.
	FileName = ".emuget.lock"

	// StaleThreshold is the age after which a lock is stale even if its
	// owner PID is in use, since PIDs get recycled.
	StaleThreshold = 6 * time.Hour
)

var ErrLocked = errors.New("download directory is in use by another emuget process")

// Lock is a held directory lock.
type Lock struct {
	path string
	file *os.File
}

// Acquire takes the lock for dir, creating dir if needed. A lock left by a
// dead process or older than StaleThreshold is replaced once.
func Acquire(ctx context.Context, dir string) (*Lock, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create lock directory: %w", err)
	}

	lockPath := filepath.Join(dir, FileName)

	file, err := create(lockPath)
	if errors.Is(err, os.ErrExist) {
		if !stale(ctx, lockPath) {
			return nil, ErrLocked
		}
		_ = os.Remove(lockPath)
		file, err = create(lockPath)
		if errors.Is(err, os.ErrExist) {
			return nil, ErrLocked
		}
	}
	if err != nil {
		return nil, fmt.Errorf("create lock file: %w", err)
	}

	data := fmt.Sprintf("pid=%d\ntimestamp=%s\n", os.Getpid(), time.Now().UTC().Format(time.RFC3339))
	if _, err := file.WriteString(data); err != nil {
		file.Close()
		os.Remove(lockPath)
		return nil, fmt.Errorf("write lock data: %w", err)
	}

	return &Lock{path: lockPath, file: file}, nil
}

// Release drops the lock. It is safe to call more than once.
func (l *Lock) Release() error {
	if l.file != nil {
		l.file.Close()
		l.file = nil
	}
	if l.path == "" {
		return nil
	}
	path := l.path
	l.path = ""
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("remove lock file: %w", err)
	}
	return nil
}

func create(path string) (*os.File, error) {
	return os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_RDWR, 0o600)
}

// stale reports whether the lock at path can be taken over: its owner is
// gone, its contents are unreadable, or it is older than StaleThreshold.
func stale(ctx context.Context, path string) bool {
	info, err := os.Stat(path)
	if err != nil {
		return false
	}
	if time.Since(info.ModTime()) > StaleThreshold {
		return true
	}

	pid, ok := ownerPID(path)
	if !ok {
		return true
	}
	exists, err := process.PidExistsWithContext(ctx, int32(pid))
	if err != nil {
		return false
	}
	return !exists
}

// ownerPID reads the pid= line of a lock file.
func ownerPID(path string) (int, bool) {
	f, err := os.Open(path)
	if err != nil {
		return 0, false
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		if v, ok := strings.CutPrefix(scanner.Text(), "pid="); ok {
			pid, err := strconv.Atoi(v)
			return pid, err == nil && pid > 0
		}
	}
	return 0, false
}
