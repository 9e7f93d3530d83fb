package dispatch

import (
	"errors"
	"fmt"

	"github.com/zulandar/switchyard/internal/events"
	"github.com/zulandar/switchyard/internal/models"
	"github.com/zulandar/switchyard/internal/store"
)

// DrainQueue advances one user's queue by at most one chat. Safe to invoke
// redundantly and frequently: a user with a running chat or an empty queue
// gets a no-op Ack, and concurrent drains for the same user are serialized
// by the store's atomic claim.
func (s *Service) DrainQueue(req DrainRequest) (*Ack, error) {
	if err := s.gate.Authorize(req.Token); err != nil {
		return nil, err
	}
	if err := s.gate.ValidateUser(req.UserID); err != nil {
		return nil, err
	}

	// Cheap pre-check; the claim below re-checks atomically.
	running, err := s.store.IsUserRunning(req.UserID)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	if running {
		return &Ack{Reason: "a chat is already running"}, nil
	}

	chat, err := s.store.ClaimNextQueued(req.UserID, s.instanceID)
	switch {
	case errors.Is(err, store.ErrAlreadyRunning):
		// Lost the race to a concurrent drain; the queue is moving, which is
		// all this trigger promises.
		return &Ack{Reason: "a chat is already running"}, nil
	case errors.Is(err, store.ErrNoWork):
		return &Ack{Reason: "queue empty"}, nil
	case err != nil:
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	s.logDispatch(models.TriggerDrain, req.UserID, chat.ThreadID, chat.ID, models.OutcomeAdmitted)
	s.publish(events.Event{
		Type:         events.TypeAdmitted,
		UserID:       req.UserID,
		ThreadID:     chat.ThreadID,
		ThreadChatID: chat.ID,
		Trigger:      models.TriggerDrain,
	})

	// A failed handoff re-queues the chat; the next drain retries it.
	s.handoff(chat, models.TriggerDrain, models.ChatQueued)

	return &Ack{Admitted: true, ThreadChatID: chat.ID}, nil
}
