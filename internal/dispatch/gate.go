package dispatch

import (
	"crypto/subtle"
	"fmt"

	"github.com/zulandar/switchyard/internal/store"
)

// Gate authorizes and validates a dispatch request before any state
// mutation. Every check is a synchronous precondition: a failure
// short-circuits the handler with no execution attempt and no state change.
type Gate struct {
	secret string
	store  *store.Store
}

// NewGate creates a Gate with the trusted-caller secret.
func NewGate(secret string, st *store.Store) (*Gate, error) {
	if secret == "" {
		return nil, fmt.Errorf("dispatch: gate secret is required")
	}
	if st == nil {
		return nil, fmt.Errorf("dispatch: gate store is required")
	}
	return &Gate{secret: secret, store: st}, nil
}

// Authorize checks the caller's internal-service credential. Constant-time
// compare so the token can't be guessed byte by byte.
func (g *Gate) Authorize(token string) error {
	if subtle.ConstantTimeCompare([]byte(token), []byte(g.secret)) != 1 {
		return ErrUnauthorized
	}
	return nil
}

// ValidateUser checks that userID names a known user. Runs before any queue
// inspection so unknown and known users behave identically up to this point.
func (g *Gate) ValidateUser(userID string) error {
	if userID == "" {
		return fmt.Errorf("%w: user id is empty", ErrInvalidTarget)
	}
	ok, err := g.store.UserExists(userID)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	if !ok {
		return fmt.Errorf("%w: unknown user %s", ErrInvalidTarget, userID)
	}
	return nil
}

// ValidateTarget checks the full scheduled-dispatch triple. The chat lookup
// is scoped to (user, thread) so one tenant can never dispatch another's
// work.
func (g *Gate) ValidateTarget(userID, threadID, chatID string) error {
	if err := g.ValidateUser(userID); err != nil {
		return err
	}
	if threadID == "" || chatID == "" {
		return fmt.Errorf("%w: thread id and thread chat id are required", ErrInvalidTarget)
	}
	ok, err := g.store.ChatExists(userID, threadID, chatID)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	if !ok {
		return fmt.Errorf("%w: no chat %s in thread %s for user %s", ErrInvalidTarget, chatID, threadID, userID)
	}
	return nil
}
