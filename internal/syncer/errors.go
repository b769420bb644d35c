package syncer

import (
	"errors"
	"fmt"
)

// Phase identifies which stage of a deployment an error came from.
type Phase int

const (
	PhaseAuth Phase = iota + 1
	PhaseEnumerate
	PhaseStage
	PhaseTransfer
	PhaseCleanup
)

func (p Phase) String() string {
	switch p {
	case PhaseAuth:
		return "auth"
	case PhaseEnumerate:
		return "enumerate"
	case PhaseStage:
		return "stage"
	case PhaseTransfer:
		return "transfer"
	case PhaseCleanup:
		return "cleanup"
	default:
		return "unknown"
	}
}

// Sentinel errors for the failure modes callers branch on. Each is wrapped
// into a *Error carrying the phase it surfaced in.
var (
	ErrRootNotFound        = errors.New("sync root not found")
	ErrCredentialInvalid   = errors.New("credential invalid")
	ErrTransferInterrupted = errors.New("transfer interrupted")
	ErrCleanupFailed       = errors.New("cleanup failed")
	ErrPermissionDenied    = errors.New("permission denied")
)

// Error is a phase-tagged deployment error.
type Error struct {
	Phase Phase
	Err   error
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %v", e.Phase, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

func phaseErr(p Phase, sentinel, cause error) *Error {
	return &Error{Phase: p, Err: fmt.Errorf("%w: %w", sentinel, cause)}
}
