package transfer

import (
	"errors"
	"fmt"

	"github.com/ZebulonRouseFrantzich/emuget/internal/rpc"
)

var (
	// ErrPaused is returned when the transfer was paused, usually by PauseAll.
	ErrPaused = errors.New("download has been paused")

	// ErrInterrupted is returned when the engine reported the transfer as
	// interrupted. Partial output files have been removed.
	ErrInterrupted = errors.New("download has been interrupted")

	// ErrBackgroundUnsupported is returned for background requests when no
	// engine is available.
	ErrBackgroundUnsupported = errors.New("background downloads need the download engine")

	// ErrIncomplete is returned when the engine reported completion but an
	// output file is missing or short.
	ErrIncomplete = errors.New("output file incomplete")
)

// DownloadFailedError carries an engine error code other than the ones
// with special handling.
type DownloadFailedError struct {
	Code    string
	Message string
}

func (e *DownloadFailedError) Error() string {
	return fmt.Sprintf("download failed, error code: %s, error message: %s", e.Code, e.Message)
}

// NotCompletedError is returned when polling stopped before the transfer
// reached the complete state.
type NotCompletedError struct {
	Name   string
	Status rpc.State
}

func (e *NotCompletedError) Error() string {
	return fmt.Sprintf("download task [%s] is not completed, status: %s", e.Name, e.Status)
}
