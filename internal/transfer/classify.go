package transfer

import (
	"github.com/ZebulonRouseFrantzich/emuget/internal/rpc"
)

// Outcome is the classification of a terminal transfer status.
type Outcome int

const (
	OutcomeComplete Outcome = iota
	OutcomeAlreadyExists
	OutcomePaused
	OutcomeInterrupted
	OutcomeFailed
	OutcomeNotCompleted
)

func (o Outcome) String() string {
	switch o {
	case OutcomeComplete:
		return "complete"
	case OutcomeAlreadyExists:
		return "already-exists"
	case OutcomePaused:
		return "paused"
	case OutcomeInterrupted:
		return "interrupted"
	case OutcomeFailed:
		return "failed"
	case OutcomeNotCompleted:
		return "not-completed"
	default:
		return "unknown"
	}
}

// Success reports whether the outcome yields a result rather than an error.
func (o Outcome) Success() bool {
	return o == OutcomeComplete || o == OutcomeAlreadyExists
}

// Classify maps the last polled status to an outcome and, for failures, the
// error to return. It has no side effects; removing partial files for
// OutcomeInterrupted is left to the caller.
//
// A paused transfer is reported as paused even when it carries an error
// code. "Already exists" counts as success.
func Classify(st *rpc.Status) (Outcome, error) {
	if st.State == rpc.StatePaused {
		return OutcomePaused, ErrPaused
	}

	if st.HasError() {
		switch st.ErrorCode {
		case rpc.CodeAlreadyExists:
			return OutcomeAlreadyExists, nil
		case rpc.CodeInterrupted:
			return OutcomeInterrupted, ErrInterrupted
		default:
			return OutcomeFailed, &DownloadFailedError{Code: st.ErrorCode, Message: st.ErrorMessage}
		}
	}

	if st.State != rpc.StateComplete {
		return OutcomeNotCompleted, &NotCompletedError{Name: st.Name(), Status: st.State}
	}

	return OutcomeComplete, nil
}
