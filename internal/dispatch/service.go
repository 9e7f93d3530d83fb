// Package dispatch implements the thread task dispatcher: the coordinator
// that admits scheduled and queue-drain triggers and hands thread chats to
// the execution runner, at most one running chat per user at any instant.
package dispatch

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/zulandar/switchyard/internal/alert"
	"github.com/zulandar/switchyard/internal/events"
	"github.com/zulandar/switchyard/internal/models"
	"github.com/zulandar/switchyard/internal/runner"
	"github.com/zulandar/switchyard/internal/store"
)

const defaultHandoffTimeout = 10 * time.Second

// Ack is the dispatcher's answer to a trigger. It reports only admission or
// rejection of the request, never the outcome of the run; run outcomes are
// observed later through chat status.
type Ack struct {
	Admitted     bool   `json:"admitted"`
	Deferred     bool   `json:"deferred,omitempty"`
	ThreadChatID string `json:"thread_chat_id,omitempty"`
	Reason       string `json:"reason,omitempty"`
}

// ScheduledRequest triggers execution of one specific scheduled chat.
type ScheduledRequest struct {
	Token        string `json:"-"`
	UserID       string `json:"user_id"`
	ThreadID     string `json:"thread_id"`
	ThreadChatID string `json:"thread_chat_id"`
}

// DrainRequest advances one user's queue by at most one chat.
type DrainRequest struct {
	Token  string `json:"-"`
	UserID string `json:"user_id"`
}

// Opts holds dependencies for creating a Service.
type Opts struct {
	Store          *store.Store
	Gate           *Gate
	Runner         runner.Runner
	Broker         *events.Broker
	Alerts         alert.Notifier
	InstanceID     string
	HandoffTimeout time.Duration
}

// Service wires the gate, store, runner, event broker and alerting into the
// two trigger handlers.
type Service struct {
	store          *store.Store
	gate           *Gate
	runner         runner.Runner
	broker         *events.Broker
	alerts         alert.Notifier
	instanceID     string
	handoffTimeout time.Duration

	// wg tracks in-flight handoff goroutines so tests and shutdown can wait
	// for them.
	wg sync.WaitGroup
}

// New creates a Service.
func New(opts Opts) (*Service, error) {
	if opts.Store == nil {
		return nil, fmt.Errorf("dispatch: store is required")
	}
	if opts.Gate == nil {
		return nil, fmt.Errorf("dispatch: gate is required")
	}
	if opts.Runner == nil {
		return nil, fmt.Errorf("dispatch: runner is required")
	}
	if opts.Alerts == nil {
		opts.Alerts = alert.Noop{}
	}
	if opts.InstanceID == "" {
		opts.InstanceID = "switchyard"
	}
	if opts.HandoffTimeout <= 0 {
		opts.HandoffTimeout = defaultHandoffTimeout
	}
	return &Service{
		store:          opts.Store,
		gate:           opts.Gate,
		runner:         opts.Runner,
		broker:         opts.Broker,
		alerts:         opts.Alerts,
		instanceID:     opts.InstanceID,
		handoffTimeout: opts.HandoffTimeout,
	}, nil
}

// Wait blocks until all in-flight handoffs have finished.
func (s *Service) Wait() {
	s.wg.Wait()
}

// handoff starts the runner in the background and returns immediately. A
// rejected handoff releases the chat back to backTo and raises an alert; the
// chat must never stay running with no runner processing it.
func (s *Service) handoff(chat *models.ThreadChat, trigger, backTo string) {
	req := runner.StartRequest{
		UserID:       chat.UserID,
		ThreadID:     chat.ThreadID,
		ThreadChatID: chat.ID,
		Trigger:      trigger,
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()

		ctx, cancel := context.WithTimeout(context.Background(), s.handoffTimeout)
		defer cancel()

		err := s.runner.Start(ctx, req)
		if err == nil {
			return
		}

		log.Printf("dispatch: %v: chat %s: %v", ErrHandoffFailed, chat.ID, err)

		if relErr := s.store.ReleaseRun(chat.ID, backTo); relErr != nil {
			log.Printf("dispatch: release chat %s after failed handoff: %v", chat.ID, relErr)
			s.notify("Switchyard: chat stuck after failed handoff",
				fmt.Sprintf("chat %s (user %s) could not be released: %v", chat.ID, chat.UserID, relErr))
			return
		}

		s.publish(events.Event{
			Type:         events.TypeRunReleased,
			UserID:       chat.UserID,
			ThreadID:     chat.ThreadID,
			ThreadChatID: chat.ID,
			Trigger:      trigger,
			Reason:       err.Error(),
		})
		s.notify("Switchyard: handoff failed",
			fmt.Sprintf("chat %s (user %s) rejected by runner, returned to %s: %v", chat.ID, chat.UserID, backTo, err))
	}()
}

func (s *Service) publish(ev events.Event) {
	if s.broker == nil {
		return
	}
	if err := s.broker.Publish(ev); err != nil {
		log.Printf("dispatch: publish %s: %v", ev.Type, err)
	}
}

func (s *Service) notify(subject, body string) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.alerts.Notify(ctx, subject, body); err != nil {
		log.Printf("dispatch: alert: %v", err)
	}
}

func (s *Service) logDispatch(trigger, userID, threadID, chatID, outcome string) {
	entry := &models.DispatchLog{
		Trigger:      trigger,
		UserID:       userID,
		ThreadID:     threadID,
		ThreadChatID: chatID,
		Outcome:      outcome,
		InstanceID:   s.instanceID,
	}
	if err := s.store.LogDispatch(entry); err != nil {
		log.Printf("dispatch: %v", err)
	}
}
