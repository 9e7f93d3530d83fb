package dispatch

import (
	"errors"
	"fmt"
	"log"

	"github.com/zulandar/switchyard/internal/events"
	"github.com/zulandar/switchyard/internal/models"
	"github.com/zulandar/switchyard/internal/store"
)

// DispatchScheduled executes one specific, previously-scheduled chat. It does
// not search for other work. The Ack is returned as soon as the handoff is
// issued; the caller must not assume the run has completed, or even started.
//
// Retry-safe: a duplicate trigger for a chat that is already running or
// already finished resolves as a no-op Ack. If another chat of the same user
// is running, the chat is re-queued for a later drain (deferred, not
// dropped) and the Ack carries Deferred.
func (s *Service) DispatchScheduled(req ScheduledRequest) (*Ack, error) {
	if err := s.gate.Authorize(req.Token); err != nil {
		return nil, err
	}
	if err := s.gate.ValidateTarget(req.UserID, req.ThreadID, req.ThreadChatID); err != nil {
		return nil, err
	}

	log.Printf("dispatch: scheduled trigger user=%s thread=%s chat=%s", req.UserID, req.ThreadID, req.ThreadChatID)

	claim, err := s.store.ClaimScheduled(req.UserID, req.ThreadID, req.ThreadChatID, s.instanceID)
	switch {
	case errors.Is(err, store.ErrAlreadyRunning):
		// The chat itself is in flight; double execution is impossible, so a
		// duplicate trigger is success.
		s.logDispatch(models.TriggerScheduled, req.UserID, req.ThreadID, req.ThreadChatID, models.OutcomeNoop)
		return &Ack{ThreadChatID: req.ThreadChatID, Reason: "chat already running"}, nil
	case errors.Is(err, store.ErrFinished):
		s.logDispatch(models.TriggerScheduled, req.UserID, req.ThreadID, req.ThreadChatID, models.OutcomeNoop)
		return &Ack{ThreadChatID: req.ThreadChatID, Reason: "chat already finished"}, nil
	case errors.Is(err, store.ErrNotFound):
		return nil, fmt.Errorf("%w: chat %s vanished", ErrInvalidTarget, req.ThreadChatID)
	case err != nil:
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	if claim.Deferred {
		s.logDispatch(models.TriggerScheduled, req.UserID, req.ThreadID, req.ThreadChatID, models.OutcomeDeferred)
		s.publish(events.Event{
			Type:         events.TypeDeferred,
			UserID:       req.UserID,
			ThreadID:     req.ThreadID,
			ThreadChatID: req.ThreadChatID,
			Trigger:      models.TriggerScheduled,
			Reason:       "another chat is running",
		})
		return &Ack{Deferred: true, ThreadChatID: req.ThreadChatID, Reason: "another chat is running; queued for drain"}, nil
	}

	s.logDispatch(models.TriggerScheduled, req.UserID, req.ThreadID, req.ThreadChatID, models.OutcomeAdmitted)
	s.publish(events.Event{
		Type:         events.TypeAdmitted,
		UserID:       req.UserID,
		ThreadID:     req.ThreadID,
		ThreadChatID: req.ThreadChatID,
		Trigger:      models.TriggerScheduled,
	})

	// A failed handoff returns the chat to scheduled so the external
	// scheduler's retry finds it where it left it.
	s.handoff(claim.Chat, models.TriggerScheduled, models.ChatScheduled)

	return &Ack{Admitted: true, ThreadChatID: req.ThreadChatID}, nil
}
