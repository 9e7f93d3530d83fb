package dispatch

import (
	"errors"
	"testing"
	"time"

	"github.com/zulandar/switchyard/internal/models"
)

func TestDrainQueue_Unauthorized(t *testing.T) {
	svc, conn, run, _ := newTestService(t)
	seedUser(t, conn, "u1")
	seedChat(t, conn, "u1", "c1", models.ChatQueued, time.Now())

	_, err := svc.DrainQueue(DrainRequest{Token: "wrong", UserID: "u1"})
	if !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("err = %v, want ErrUnauthorized", err)
	}

	svc.Wait()
	if len(run.Started()) != 0 {
		t.Error("handoff occurred despite unauthorized caller")
	}

	// No state change: the chat is still queued.
	var chat models.ThreadChat
	conn.First(&chat, "id = ?", "c1")
	if chat.Status != models.ChatQueued {
		t.Errorf("chat status = %q, want queued", chat.Status)
	}
}

func TestDrainQueue_UnknownUser(t *testing.T) {
	svc, _, run, _ := newTestService(t)

	_, err := svc.DrainQueue(DrainRequest{Token: testSecret, UserID: "ghost"})
	if !errors.Is(err, ErrInvalidTarget) {
		t.Fatalf("err = %v, want ErrInvalidTarget", err)
	}
	svc.Wait()
	if len(run.Started()) != 0 {
		t.Error("handoff occurred for unknown user")
	}
}

func TestDrainQueue_StartsOldest(t *testing.T) {
	svc, conn, run, _ := newTestService(t)
	seedUser(t, conn, "u1")

	base := time.Now().Add(-time.Hour)
	seedChat(t, conn, "u1", "c-new", models.ChatQueued, base.Add(2*time.Minute))
	seedChat(t, conn, "u1", "c-old", models.ChatQueued, base.Add(time.Minute))

	ack, err := svc.DrainQueue(DrainRequest{Token: testSecret, UserID: "u1"})
	if err != nil {
		t.Fatalf("DrainQueue: %v", err)
	}
	if !ack.Admitted || ack.ThreadChatID != "c-old" {
		t.Errorf("ack = %+v, want admitted c-old", ack)
	}

	svc.Wait()
	started := run.Started()
	if len(started) != 1 || started[0].ThreadChatID != "c-old" {
		t.Errorf("runner started = %+v, want [c-old]", started)
	}
	if started[0].Trigger != models.TriggerDrain {
		t.Errorf("trigger = %q, want drain", started[0].Trigger)
	}
}

func TestDrainQueue_EmptyQueueNoop(t *testing.T) {
	svc, conn, run, _ := newTestService(t)
	seedUser(t, conn, "u1")

	// Repeated drains with no work always succeed with no state change.
	for i := 0; i < 3; i++ {
		ack, err := svc.DrainQueue(DrainRequest{Token: testSecret, UserID: "u1"})
		if err != nil {
			t.Fatalf("drain %d: %v", i, err)
		}
		if ack.Admitted {
			t.Errorf("drain %d admitted with empty queue", i)
		}
	}
	svc.Wait()
	if len(run.Started()) != 0 {
		t.Error("handoff occurred with empty queue")
	}
}

func TestDrainQueue_NoopWhileRunning(t *testing.T) {
	svc, conn, run, _ := newTestService(t)
	seedUser(t, conn, "u1")

	base := time.Now().Add(-time.Hour)
	seedChat(t, conn, "u1", "x", models.ChatQueued, base.Add(time.Minute))
	seedChat(t, conn, "u1", "y", models.ChatQueued, base.Add(2*time.Minute))

	if _, err := svc.DrainQueue(DrainRequest{Token: testSecret, UserID: "u1"}); err != nil {
		t.Fatalf("first drain: %v", err)
	}

	ack, err := svc.DrainQueue(DrainRequest{Token: testSecret, UserID: "u1"})
	if err != nil {
		t.Fatalf("second drain: %v", err)
	}
	if ack.Admitted {
		t.Error("second drain admitted while x is running")
	}

	svc.Wait()
	if got := len(run.Started()); got != 1 {
		t.Errorf("runner starts = %d, want 1", got)
	}

	// y is untouched.
	var y models.ThreadChat
	conn.First(&y, "id = ?", "y")
	if y.Status != models.ChatQueued {
		t.Errorf("y status = %q, want queued", y.Status)
	}
}

func TestDrainQueue_FIFOAcrossCompletions(t *testing.T) {
	svc, conn, run, _ := newTestService(t)
	seedUser(t, conn, "u1")

	base := time.Now().Add(-time.Hour)
	for i, id := range []string{"a", "b", "c"} {
		seedChat(t, conn, "u1", id, models.ChatQueued, base.Add(time.Duration(i)*time.Minute))
	}

	var order []string
	st := svc.store
	for i := 0; i < 3; i++ {
		ack, err := svc.DrainQueue(DrainRequest{Token: testSecret, UserID: "u1"})
		if err != nil {
			t.Fatalf("drain: %v", err)
		}
		if !ack.Admitted {
			t.Fatalf("drain not admitted: %+v", ack)
		}
		order = append(order, ack.ThreadChatID)
		if err := st.CompleteRun(ack.ThreadChatID, models.ChatCompleted); err != nil {
			t.Fatalf("complete %s: %v", ack.ThreadChatID, err)
		}
	}

	want := []string{"a", "b", "c"}
	for i := range want {
		if order[i] != want[i] {
			t.Fatalf("dispatch order = %v, want %v", order, want)
		}
	}

	svc.Wait()
	if got := len(run.Started()); got != 3 {
		t.Errorf("runner starts = %d, want 3", got)
	}
}

func TestDrainQueue_PerUserIsolation(t *testing.T) {
	svc, conn, run, _ := newTestService(t)
	seedUser(t, conn, "u1")
	seedUser(t, conn, "u2")
	seedChat(t, conn, "u1", "c1", models.ChatQueued, time.Now())
	seedChat(t, conn, "u2", "c2", models.ChatQueued, time.Now())

	for _, userID := range []string{"u1", "u2"} {
		ack, err := svc.DrainQueue(DrainRequest{Token: testSecret, UserID: userID})
		if err != nil {
			t.Fatalf("drain %s: %v", userID, err)
		}
		if !ack.Admitted {
			t.Errorf("drain %s not admitted", userID)
		}
	}

	svc.Wait()
	if got := len(run.Started()); got != 2 {
		t.Errorf("runner starts = %d, want 2 (one per user)", got)
	}
}

func TestDrainQueue_HandoffFailureRequeues(t *testing.T) {
	svc, conn, run, alerts := newTestService(t)
	seedUser(t, conn, "u1")
	seedChat(t, conn, "u1", "c1", models.ChatQueued, time.Now())

	run.FailWith = errors.New("runner at capacity")

	ack, err := svc.DrainQueue(DrainRequest{Token: testSecret, UserID: "u1"})
	if err != nil {
		t.Fatalf("DrainQueue: %v", err)
	}
	if !ack.Admitted {
		t.Fatalf("ack = %+v, want admitted", ack)
	}

	svc.Wait()

	// The chat went back to queued and the active-run slot was freed.
	var chat models.ThreadChat
	conn.First(&chat, "id = ?", "c1")
	if chat.Status != models.ChatQueued {
		t.Errorf("chat status = %q, want queued after failed handoff", chat.Status)
	}
	running, err := svc.store.IsUserRunning("u1")
	if err != nil {
		t.Fatalf("IsUserRunning: %v", err)
	}
	if running {
		t.Error("active run not freed after failed handoff")
	}
	if len(alerts.Subjects()) == 0 {
		t.Error("no alert raised for failed handoff")
	}

	// A later drain can retry the same chat.
	run.FailWith = nil
	ack, err = svc.DrainQueue(DrainRequest{Token: testSecret, UserID: "u1"})
	if err != nil {
		t.Fatalf("retry drain: %v", err)
	}
	if !ack.Admitted || ack.ThreadChatID != "c1" {
		t.Errorf("retry ack = %+v, want admitted c1", ack)
	}
}

func TestDrainQueue_LogsDispatch(t *testing.T) {
	svc, conn, _, _ := newTestService(t)
	seedUser(t, conn, "u1")
	seedChat(t, conn, "u1", "c1", models.ChatQueued, time.Now())

	if _, err := svc.DrainQueue(DrainRequest{Token: testSecret, UserID: "u1"}); err != nil {
		t.Fatalf("DrainQueue: %v", err)
	}
	svc.Wait()

	var entry models.DispatchLog
	if err := conn.First(&entry, "thread_chat_id = ?", "c1").Error; err != nil {
		t.Fatalf("load dispatch log: %v", err)
	}
	if entry.Trigger != models.TriggerDrain || entry.Outcome != models.OutcomeAdmitted {
		t.Errorf("log entry = %+v", entry)
	}
	if entry.InstanceID != "sw-test" {
		t.Errorf("instance id = %q, want sw-test", entry.InstanceID)
	}
}
