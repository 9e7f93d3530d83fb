// Package sweep runs the periodic queue sweep: a cron-scheduled pass that
// drains every user with queued work, so chats never stall waiting for an
// external trigger that got lost.
package sweep

import (
	"context"
	"fmt"
	"log"

	"github.com/robfig/cron/v3"
	"github.com/zulandar/switchyard/internal/dispatch"
	"github.com/zulandar/switchyard/internal/store"
)

// cronParser uses standard 5-field cron expressions (minute, hour, dom, month, dow).
var cronParser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)

// Sweeper periodically drains the queue of every user that has queued work.
type Sweeper struct {
	store    *store.Store
	service  *dispatch.Service
	token    string
	schedule string
}

// New creates a Sweeper. The schedule must be a 5-field cron expression.
func New(st *store.Store, svc *dispatch.Service, token, schedule string) (*Sweeper, error) {
	if st == nil || svc == nil {
		return nil, fmt.Errorf("sweep: store and service are required")
	}
	if _, err := cronParser.Parse(schedule); err != nil {
		return nil, fmt.Errorf("sweep: invalid schedule %q: %w", schedule, err)
	}
	return &Sweeper{store: st, service: svc, token: token, schedule: schedule}, nil
}

// Run blocks until ctx is cancelled, sweeping on the configured schedule.
func (s *Sweeper) Run(ctx context.Context) error {
	c := cron.New(cron.WithParser(cronParser))
	if _, err := c.AddFunc(s.schedule, func() { s.Once() }); err != nil {
		return fmt.Errorf("sweep: schedule: %w", err)
	}
	c.Start()
	<-ctx.Done()
	stopCtx := c.Stop()
	<-stopCtx.Done()
	return nil
}

// Once performs a single sweep pass. Benign per-user outcomes (busy user,
// empty queue) are not errors; only store failures are logged.
func (s *Sweeper) Once() {
	users, err := s.store.UsersWithQueuedWork()
	if err != nil {
		log.Printf("sweep: %v", err)
		return
	}

	for _, userID := range users {
		ack, err := s.service.DrainQueue(dispatch.DrainRequest{Token: s.token, UserID: userID})
		if err != nil {
			log.Printf("sweep: drain %s: %v", userID, err)
			continue
		}
		if ack.Admitted {
			log.Printf("sweep: started chat %s for user %s", ack.ThreadChatID, userID)
		}
	}
}
