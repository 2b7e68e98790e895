package engine

import (
	"errors"
	"fmt"
	"os"
	"os/exec"
	"sync"
	"time"
)

// process is a started engine child.
type process struct {
	pid    int
	done   chan struct{}
	signal func() error
	once   sync.Once
}

// startProcess starts path with args, output discarded and the platform's
// detach attributes applied.
func startProcess(path string, args []string) (*process, error) {
	cmd := exec.Command(path, args...)
	cmd.SysProcAttr = sysProcAttr()

	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("start engine: %w", err)
	}

	p := &process{
		pid:    cmd.Process.Pid,
		done:   make(chan struct{}),
		signal: cmd.Process.Kill,
	}
	go func() {
		_ = cmd.Wait()
		close(p.done)
	}()

	return p, nil
}

func (p *process) exited() bool {
	select {
	case <-p.done:
		return true
	default:
		return false
	}
}

// stop kills the process and waits for it to be reaped. Safe to call more
// than once.
func (p *process) stop() {
	p.once.Do(func() {
		if err := p.signal(); err != nil && !errors.Is(err, os.ErrProcessDone) {
			return
		}
		select {
		case <-p.done:
		case <-time.After(stopTimeout):
		}
	})
}
