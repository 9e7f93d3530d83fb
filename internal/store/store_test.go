package store

import (
	"errors"
	"testing"
	"time"

	"github.com/zulandar/switchyard/internal/db"
	"github.com/zulandar/switchyard/internal/models"
	"gorm.io/gorm"
)

func openTestStore(t *testing.T) (*Store, *gorm.DB) {
	t.Helper()
	conn, err := db.ConnectSQLite(":memory:")
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	if err := db.AutoMigrate(conn); err != nil {
		t.Fatalf("migrate test db: %v", err)
	}
	return New(conn), conn
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

func TestUserExists(t *testing.T) {
	st, conn := openTestStore(t)
	seedUser(t, conn, "u1")

	ok, err := st.UserExists("u1")
	if err != nil {
		t.Fatalf("UserExists: %v", err)
	}
	if !ok {
		t.Error("expected u1 to exist")
	}

	ok, err = st.UserExists("ghost")
	if err != nil {
		t.Fatalf("UserExists: %v", err)
	}
	if ok {
		t.Error("expected ghost to not exist")
	}
}

func TestChatExists_TenantScoped(t *testing.T) {
	st, conn := openTestStore(t)
	seedUser(t, conn, "u1")
	seedUser(t, conn, "u2")
	seedChat(t, conn, "u1", "c1", models.ChatQueued, time.Now())

	ok, err := st.ChatExists("u1", "th-u1", "c1")
	if err != nil {
		t.Fatalf("ChatExists: %v", err)
	}
	if !ok {
		t.Error("expected chat to exist for its owner")
	}

	// Another user must not be able to address the same chat.
	ok, err = st.ChatExists("u2", "th-u2", "c1")
	if err != nil {
		t.Fatalf("ChatExists: %v", err)
	}
	if ok {
		t.Error("chat visible across tenants")
	}

	// Wrong thread under the right user is also a miss.
	ok, _ = st.ChatExists("u1", "th-other", "c1")
	if ok {
		t.Error("chat visible under wrong thread")
	}
}

func TestNextQueued_FIFO(t *testing.T) {
	st, conn := openTestStore(t)
	seedUser(t, conn, "u1")

	base := time.Now().Add(-time.Hour)
	seedChat(t, conn, "u1", "c-b", models.ChatQueued, base.Add(2*time.Minute))
	seedChat(t, conn, "u1", "c-a", models.ChatQueued, base.Add(1*time.Minute))
	seedChat(t, conn, "u1", "c-c", models.ChatQueued, base.Add(3*time.Minute))

	chat, err := st.NextQueued("u1")
	if err != nil {
		t.Fatalf("NextQueued: %v", err)
	}
	if chat.ID != "c-a" {
		t.Errorf("NextQueued = %s, want c-a (oldest)", chat.ID)
	}
}

func TestNextQueued_TieBreakByID(t *testing.T) {
	st, conn := openTestStore(t)
	seedUser(t, conn, "u1")

	at := time.Now().Truncate(time.Second)
	seedChat(t, conn, "u1", "c-z", models.ChatQueued, at)
	seedChat(t, conn, "u1", "c-a", models.ChatQueued, at)

	chat, err := st.NextQueued("u1")
	if err != nil {
		t.Fatalf("NextQueued: %v", err)
	}
	if chat.ID != "c-a" {
		t.Errorf("NextQueued = %s, want c-a (id tiebreak)", chat.ID)
	}
}

func TestNextQueued_Empty(t *testing.T) {
	st, conn := openTestStore(t)
	seedUser(t, conn, "u1")

	_, err := st.NextQueued("u1")
	if !errors.Is(err, ErrNoWork) {
		t.Errorf("NextQueued on empty queue = %v, want ErrNoWork", err)
	}
}

func TestNextQueued_IgnoresOtherStates(t *testing.T) {
	st, conn := openTestStore(t)
	seedUser(t, conn, "u1")
	seedChat(t, conn, "u1", "c-sched", models.ChatScheduled, time.Now().Add(-3*time.Hour))
	seedChat(t, conn, "u1", "c-done", models.ChatCompleted, time.Now().Add(-2*time.Hour))
	seedChat(t, conn, "u1", "c-q", models.ChatQueued, time.Now())

	chat, err := st.NextQueued("u1")
	if err != nil {
		t.Fatalf("NextQueued: %v", err)
	}
	if chat.ID != "c-q" {
		t.Errorf("NextQueued = %s, want c-q", chat.ID)
	}
}

func TestIsUserRunning(t *testing.T) {
	st, conn := openTestStore(t)
	seedUser(t, conn, "u1")

	running, err := st.IsUserRunning("u1")
	if err != nil {
		t.Fatalf("IsUserRunning: %v", err)
	}
	if running {
		t.Error("expected no active run")
	}

	conn.Create(&models.ActiveRun{UserID: "u1", ThreadChatID: "c1", StartedAt: time.Now()})

	running, err = st.IsUserRunning("u1")
	if err != nil {
		t.Fatalf("IsUserRunning: %v", err)
	}
	if !running {
		t.Error("expected active run")
	}
}

func TestUsersWithQueuedWork(t *testing.T) {
	st, conn := openTestStore(t)
	seedUser(t, conn, "u1")
	seedUser(t, conn, "u2")
	seedUser(t, conn, "u3")
	seedChat(t, conn, "u1", "c1", models.ChatQueued, time.Now())
	seedChat(t, conn, "u1", "c2", models.ChatQueued, time.Now())
	seedChat(t, conn, "u3", "c3", models.ChatQueued, time.Now())
	seedChat(t, conn, "u2", "c4", models.ChatCompleted, time.Now())

	users, err := st.UsersWithQueuedWork()
	if err != nil {
		t.Fatalf("UsersWithQueuedWork: %v", err)
	}
	if len(users) != 2 || users[0] != "u1" || users[1] != "u3" {
		t.Errorf("UsersWithQueuedWork = %v, want [u1 u3]", users)
	}
}

func TestRunningChat(t *testing.T) {
	st, conn := openTestStore(t)
	seedUser(t, conn, "u1")

	if _, err := st.RunningChat("u1"); !errors.Is(err, ErrNotFound) {
		t.Errorf("RunningChat with none = %v, want ErrNotFound", err)
	}

	conn.Create(&models.ActiveRun{UserID: "u1", ThreadChatID: "c1", InstanceID: "sw-1", StartedAt: time.Now()})

	run, err := st.RunningChat("u1")
	if err != nil {
		t.Fatalf("RunningChat: %v", err)
	}
	if run.ThreadChatID != "c1" {
		t.Errorf("ThreadChatID = %q, want c1", run.ThreadChatID)
	}
}

func TestLogDispatch(t *testing.T) {
	st, conn := openTestStore(t)

	entry := &models.DispatchLog{
		Trigger:      models.TriggerDrain,
		UserID:       "u1",
		ThreadChatID: "c1",
		Outcome:      models.OutcomeAdmitted,
		InstanceID:   "sw-1",
	}
	if err := st.LogDispatch(entry); err != nil {
		t.Fatalf("LogDispatch: %v", err)
	}

	var count int64
	conn.Model(&models.DispatchLog{}).Count(&count)
	if count != 1 {
		t.Errorf("dispatch log count = %d, want 1", count)
	}
}
