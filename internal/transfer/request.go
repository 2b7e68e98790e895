package transfer

import (
	"errors"
	"fmt"
	"os"

	"github.com/ZebulonRouseFrantzich/emuget/internal/rpc"
)

// Transport names the path a transfer took.
type Transport string

const (
	TransportEngine   Transport = "engine"
	TransportFallback Transport = "fallback"
)

// Verification lists optional integrity checks run after a successful
// transfer. Each non-empty field is checked.
type Verification struct {
	// SHA256 is the expected hex digest of the single output file.
	SHA256 string
	// ChecksumURL points at a SHA256SUMS-style file listing the output file.
	ChecksumURL string
	// SignatureURL points at a detached OpenPGP signature of the output file.
	SignatureURL string
}

func (v Verification) empty() bool {
	return v.SHA256 == "" && v.ChecksumURL == "" && v.SignatureURL == ""
}

// Request describes one download.
type Request struct {
	URL string
	// Dir is the destination directory.
	Dir string
	// Options are engine option overrides such as out or split. They win
	// over resolver options and defaults.
	Options map[string]string
	// Background returns right after submission. Requires the engine.
	Background bool
	// Name is used in notifications. Defaults to the engine's file name.
	Name   string
	Verify Verification
}

func (r *Request) validate() error {
	if r.URL == "" {
		return errors.New("download url is required")
	}
	if r.Dir == "" {
		return errors.New("download directory is required")
	}
	return nil
}

// Result is a finished (or, for background requests, submitted) transfer.
type Result struct {
	// Files are the output file paths. Empty for background requests.
	Files []string
	State rpc.State
	// GID is the engine transfer id. Empty for fallback transfers.
	GID       string
	Transport Transport
	// AlreadyExisted is set when the destination existed and nothing was
	// transferred.
	AlreadyExisted bool

	autoDelete bool
}

// Cleanup removes the output files when auto-delete-after-install is
// enabled. Install flows call it once the artifacts have been copied.
func (r *Result) Cleanup() error {
	if !r.autoDelete {
		return nil
	}

	var errs []error
	for _, f := range r.Files {
		if err := os.Remove(f); err != nil && !errors.Is(err, os.ErrNotExist) {
			errs = append(errs, fmt.Errorf("remove %s: %w", f, err))
		}
	}
	return errors.Join(errs...)
}
