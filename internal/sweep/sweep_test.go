package sweep

import (
	"testing"
	"time"

	"github.com/zulandar/switchyard/internal/db"
	"github.com/zulandar/switchyard/internal/dispatch"
	"github.com/zulandar/switchyard/internal/models"
	"github.com/zulandar/switchyard/internal/runner"
	"github.com/zulandar/switchyard/internal/store"
	"gorm.io/gorm"
)

const testSecret = "test-secret"

func newTestSweeper(t *testing.T, schedule string) (*Sweeper, *gorm.DB, *dispatch.Service, *runner.Mock) {
	t.Helper()

	conn, err := db.ConnectSQLite(":memory:")
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	if err := db.AutoMigrate(conn); err != nil {
		t.Fatalf("migrate test db: %v", err)
	}

	st := store.New(conn)
	gate, err := dispatch.NewGate(testSecret, st)
	if err != nil {
		t.Fatalf("NewGate: %v", err)
	}
	run := &runner.Mock{}
	svc, err := dispatch.New(dispatch.Opts{
		Store:      st,
		Gate:       gate,
		Runner:     run,
		InstanceID: "sw-test",
	})
	if err != nil {
		t.Fatalf("dispatch.New: %v", err)
	}

	sw, err := New(st, svc, testSecret, schedule)
	if err != nil {
		t.Fatalf("sweep.New: %v", err)
	}
	return sw, conn, svc, run
}

func seedUser(t *testing.T, conn *gorm.DB, userID string) {
	t.Helper()
	if err := conn.Create(&models.User{ID: userID, Name: userID}).Error; err != nil {
		t.Fatalf("seed user %s: %v", userID, err)
	}
	if err := conn.Create(&models.Thread{ID: "th-" + userID, UserID: userID}).Error; err != nil {
		t.Fatalf("seed thread for %s: %v", userID, err)
	}
}

func seedChat(t *testing.T, conn *gorm.DB, userID, chatID, status string, createdAt time.Time) {
	t.Helper()
	chat := models.ThreadChat{
		ID:        chatID,
		ThreadID:  "th-" + userID,
		UserID:    userID,
		Status:    status,
		CreatedAt: createdAt,
	}
	if err := conn.Create(&chat).Error; err != nil {
		t.Fatalf("seed chat %s: %v", chatID, err)
	}
}

func TestNew_InvalidSchedule(t *testing.T) {
	conn, err := db.ConnectSQLite(":memory:")
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	if err := db.AutoMigrate(conn); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	st := store.New(conn)
	gate, _ := dispatch.NewGate(testSecret, st)
	run := &runner.Mock{}
	svc, _ := dispatch.New(dispatch.Opts{Store: st, Gate: gate, Runner: run})

	for _, schedule := range []string{"", "not a cron", "* * * * * *"} {
		if _, err := New(st, svc, testSecret, schedule); err == nil {
			t.Errorf("New(%q) succeeded, want error", schedule)
		}
	}
}

func TestOnce_DrainsEachUser(t *testing.T) {
	sw, conn, svc, run := newTestSweeper(t, "* * * * *")
	seedUser(t, conn, "u1")
	seedUser(t, conn, "u2")
	seedChat(t, conn, "u1", "c1", models.ChatQueued, time.Now())
	seedChat(t, conn, "u2", "c2", models.ChatQueued, time.Now())

	sw.Once()
	svc.Wait()

	started := run.Started()
	if len(started) != 2 {
		t.Fatalf("runner starts = %d, want 2 (one per user)", len(started))
	}
}

func TestOnce_OneChatPerUserPerPass(t *testing.T) {
	sw, conn, svc, run := newTestSweeper(t, "* * * * *")
	seedUser(t, conn, "u1")

	base := time.Now().Add(-time.Hour)
	seedChat(t, conn, "u1", "c1", models.ChatQueued, base)
	seedChat(t, conn, "u1", "c2", models.ChatQueued, base.Add(time.Minute))

	sw.Once()
	svc.Wait()

	started := run.Started()
	if len(started) != 1 || started[0].ThreadChatID != "c1" {
		t.Fatalf("runner started = %+v, want only [c1]", started)
	}

	// A second pass while c1 is still running is a no-op.
	sw.Once()
	svc.Wait()
	if got := len(run.Started()); got != 1 {
		t.Errorf("runner starts after second pass = %d, want 1", got)
	}
}

func TestOnce_EmptyQueueNoop(t *testing.T) {
	sw, conn, svc, run := newTestSweeper(t, "* * * * *")
	seedUser(t, conn, "u1")

	sw.Once()
	svc.Wait()

	if len(run.Started()) != 0 {
		t.Error("handoff occurred with no queued work")
	}
}
