// Package notify delivers human-readable progress messages to the user.
package notify

import (
	"log/slog"
	"sync"
)

// Sink receives progress and status messages. Notify must not block.
type Sink interface {
	Notify(msg string)
}

// Func adapts a function to a Sink.
type Func func(msg string)

// Notify calls f(msg).
func (f Func) Notify(msg string) {
	f(msg)
}

// Noop discards messages.
type Noop struct{}

// Notify does nothing.
func (Noop) Notify(string) {}

// LogSink writes messages to a structured logger at info level.
type LogSink struct {
	Logger *slog.Logger
}

// Notify logs msg.
func (s LogSink) Notify(msg string) {
	logger := s.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger.Info(msg)
}

// Recorder keeps every message. Safe for concurrent use.
type Recorder struct {
	mu       sync.Mutex
	messages []string
}

// Notify records msg.
func (r *Recorder) Notify(msg string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.messages = append(r.messages, msg)
}

// Messages returns a copy of the recorded messages.
func (r *Recorder) Messages() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.messages...)
}
