package rpc

import (
	"strconv"
)

// State is the engine-reported state of a transfer.
type State string

const (
	StateActive   State = "active"
	StateWaiting  State = "waiting"
	StatePaused   State = "paused"
	StateComplete State = "complete"
	StateError    State = "error"
	StateRemoved  State = "removed"
)

// Engine error codes with special handling. See the EXIT STATUS section of
// the aria2c manual for the full list.
const (
	CodeOK            = "0"
	CodeAlreadyExists = "13"
	CodeInterrupted   = "31"
)

// File is one output file of a transfer.
type File struct {
	Path            string
	Length          int64
	CompletedLength int64
}

// Status is a snapshot of a transfer as reported by aria2.tellStatus.
type Status struct {
	GID             string
	State           State
	ErrorCode       string
	ErrorMessage    string
	TotalLength     int64
	CompletedLength int64
	DownloadSpeed   int64
	Connections     int
	Files           []File
}

// Terminal reports whether no further progress happens without caller action.
func (s *Status) Terminal() bool {
	switch s.State {
	case StateComplete, StateError, StatePaused, StateRemoved:
		return true
	default:
		return false
	}
}

// HasError reports whether the engine attached a nonzero error code.
func (s *Status) HasError() bool {
	return s.ErrorCode != "" && s.ErrorCode != CodeOK
}

// Name returns a display name for the transfer: the first output file's
// base name, or the gid when the engine has not named a file yet.
func (s *Status) Name() string {
	for _, f := range s.Files {
		if f.Path != "" {
			return baseName(f.Path)
		}
	}
	return s.GID
}

// Paths returns the output file paths reported by the engine.
func (s *Status) Paths() []string {
	paths := make([]string, 0, len(s.Files))
	for _, f := range s.Files {
		if f.Path != "" {
			paths = append(paths, f.Path)
		}
	}
	return paths
}

// wireStatus mirrors the aria2.tellStatus response; aria2 encodes every
// number as a decimal string.
type wireStatus struct {
	GID             string     `json:"gid"`
	Status          string     `json:"status"`
	TotalLength     string     `json:"totalLength"`
	CompletedLength string     `json:"completedLength"`
	DownloadSpeed   string     `json:"downloadSpeed"`
	Connections     string     `json:"connections"`
	ErrorCode       string     `json:"errorCode"`
	ErrorMessage    string     `json:"errorMessage"`
	Files           []wireFile `json:"files"`
}

type wireFile struct {
	Path            string `json:"path"`
	Length          string `json:"length"`
	CompletedLength string `json:"completedLength"`
}

func (w *wireStatus) toStatus() *Status {
	st := &Status{
		GID:             w.GID,
		State:           State(w.Status),
		ErrorCode:       w.ErrorCode,
		ErrorMessage:    w.ErrorMessage,
		TotalLength:     atoi64(w.TotalLength),
		CompletedLength: atoi64(w.CompletedLength),
		DownloadSpeed:   atoi64(w.DownloadSpeed),
		Connections:     int(atoi64(w.Connections)),
	}
	for _, f := range w.Files {
		st.Files = append(st.Files, File{
			Path:            f.Path,
			Length:          atoi64(f.Length),
			CompletedLength: atoi64(f.CompletedLength),
		})
	}
	return st
}

// atoi64 parses an aria2 numeric string; malformed values read as zero.
func atoi64(s string) int64 {
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0
	}
	return n
}

// baseName returns the last element of an engine path. aria2 reports
// forward slashes on every platform, so filepath.Base is not used.
func baseName(p string) string {
	for i := len(p) - 1; i >= 0; i-- {
		if p[i] == '/' || p[i] == '\\' {
			return p[i+1:]
		}
	}
	return p
}
