package rpc

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"log/slog"
	"time"
)

// MaxPollRetries is the number of consecutive transport failures Poll
// tolerates. The next failure is returned as a *TransientError.
const MaxPollRetries = 15

// DefaultRetryDelay is the pause between poll retries.
const DefaultRetryDelay = 200 * time.Millisecond

// ErrTransient is matched by errors.Is for a *TransientError.
var ErrTransient = errors.New("engine unreachable")

// TransientError is returned when Poll exhausted its retries.
type TransientError struct {
	GID      string
	Attempts int
	Err      error
}

func (e *TransientError) Error() string {
	return fmt.Sprintf("poll %s: engine unreachable after %d attempts: %v", e.GID, e.Attempts, e.Err)
}

func (e *TransientError) Unwrap() []error {
	return []error{ErrTransient, e.Err}
}

// Session exposes the transfer operations of one engine instance.
type Session struct {
	client     *Client
	logger     *slog.Logger
	retryDelay time.Duration
}

// SessionOption configures a Session.
type SessionOption func(*Session)

// WithLogger sets the session logger.
func WithLogger(logger *slog.Logger) SessionOption {
	return func(s *Session) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithRetryDelay sets the pause between poll retries.
func WithRetryDelay(d time.Duration) SessionOption {
	return func(s *Session) {
		s.retryDelay = d
	}
}

// NewSession wraps client.
func NewSession(client *Client, opts ...SessionOption) *Session {
	s := &Session{
		client:     client,
		logger:     slog.Default(),
		retryDelay: DefaultRetryDelay,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Client returns the underlying RPC client.
func (s *Session) Client() *Client {
	return s.client
}

// Submit adds uri as a new transfer and returns its gid. options must carry
// dir, allow-overwrite and auto-file-renaming.
func (s *Session) Submit(ctx context.Context, uri string, options map[string]string) (string, error) {
	for _, key := range []string{"dir", "allow-overwrite", "auto-file-renaming"} {
		if _, ok := options[key]; !ok {
			return "", fmt.Errorf("submit %s: missing required option %q", uri, key)
		}
	}

	var gid string
	if err := s.client.Call(ctx, "aria2.addUri", []any{[]string{uri}, options}, &gid); err != nil {
		return "", fmt.Errorf("submit %s: %w", uri, err)
	}

	s.logger.Debug("transfer submitted", "gid", gid, "url", uri)
	return gid, nil
}

// Poll fetches the current status of gid. Transport failures are retried in
// place up to MaxPollRetries times; engine errors are returned at once.
func (s *Session) Poll(ctx context.Context, gid string) (*Status, error) {
	var lastErr error
	for attempt := 0; attempt <= MaxPollRetries; attempt++ {
		if attempt > 0 {
			s.logger.Debug("retrying poll", "gid", gid, "attempt", attempt, "error", lastErr)
			if err := sleep(ctx, s.retryDelay); err != nil {
				return nil, err
			}
		}

		var ws wireStatus
		err := s.client.Call(ctx, "aria2.tellStatus", []any{gid}, &ws)
		if err == nil {
			return ws.toStatus(), nil
		}
		if IsRPCError(err) {
			return nil, fmt.Errorf("poll %s: %w", gid, err)
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		lastErr = err
	}

	return nil, &TransientError{GID: gid, Attempts: MaxPollRetries + 1, Err: lastErr}
}

// Watch polls gid every interval. The sequence ends after a terminal status
// or an error has been yielded.
func (s *Session) Watch(ctx context.Context, gid string, interval time.Duration) iter.Seq2[*Status, error] {
	return func(yield func(*Status, error) bool) {
		for {
			st, err := s.Poll(ctx, gid)
			if err != nil {
				yield(nil, err)
				return
			}
			if !yield(st, nil) || st.Terminal() {
				return
			}
			if err := sleep(ctx, interval); err != nil {
				yield(nil, err)
				return
			}
		}
	}
}

// PauseAll force-pauses every transfer.
func (s *Session) PauseAll(ctx context.Context) error {
	if err := s.client.Call(ctx, "aria2.forcePauseAll", nil, nil); err != nil {
		return fmt.Errorf("pause all: %w", err)
	}
	return nil
}

type gidEntry struct {
	GID string `json:"gid"`
}

// RemoveAll force-removes every active and waiting transfer, then purges
// finished results. Failures for individual transfers are collected.
func (s *Session) RemoveAll(ctx context.Context) error {
	keys := []string{"gid"}

	var active []gidEntry
	if err := s.client.Call(ctx, "aria2.tellActive", []any{keys}, &active); err != nil {
		return fmt.Errorf("list active: %w", err)
	}

	var waiting []gidEntry
	if err := s.client.Call(ctx, "aria2.tellWaiting", []any{0, 1000, keys}, &waiting); err != nil {
		return fmt.Errorf("list waiting: %w", err)
	}

	var errs []error
	for _, e := range append(active, waiting...) {
		if err := s.client.Call(ctx, "aria2.forceRemove", []any{e.GID}, nil); err != nil {
			s.logger.Warn("failed to remove transfer", "gid", e.GID, "error", err)
			errs = append(errs, fmt.Errorf("remove %s: %w", e.GID, err))
		}
	}

	if err := s.Purge(ctx); err != nil {
		errs = append(errs, err)
	}

	return errors.Join(errs...)
}

// Purge drops finished transfers from the engine's bookkeeping.
func (s *Session) Purge(ctx context.Context) error {
	if err := s.client.Call(ctx, "aria2.purgeDownloadResult", nil, nil); err != nil {
		return fmt.Errorf("purge results: %w", err)
	}
	return nil
}

// GlobalOptions returns the engine's global options.
func (s *Session) GlobalOptions(ctx context.Context) (map[string]string, error) {
	var opts map[string]string
	if err := s.client.Call(ctx, "aria2.getGlobalOption", nil, &opts); err != nil {
		return nil, fmt.Errorf("get global options: %w", err)
	}
	return opts, nil
}

// SetGlobalOptions changes global options. An empty map is a no-op.
func (s *Session) SetGlobalOptions(ctx context.Context, opts map[string]string) error {
	if len(opts) == 0 {
		return nil
	}
	if err := s.client.Call(ctx, "aria2.changeGlobalOption", []any{opts}, nil); err != nil {
		return fmt.Errorf("set global options: %w", err)
	}
	return nil
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
