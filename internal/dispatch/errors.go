package dispatch

import "errors"

// Dispatch error taxonomy. Unauthorized and InvalidTarget are caller faults
// and never retried here. AlreadyRunning is benign and resolved as a no-op.
// StoreUnavailable is transient; the triggering infrastructure retries.
// HandoffFailed surfaces in logs and alerts only, after the chat has been
// released back to a non-running state.
var (
	ErrUnauthorized     = errors.New("dispatch: unauthorized")
	ErrInvalidTarget    = errors.New("dispatch: invalid target")
	ErrAlreadyRunning   = errors.New("dispatch: already running")
	ErrStoreUnavailable = errors.New("dispatch: store unavailable")
	ErrHandoffFailed    = errors.New("dispatch: handoff failed")
)
