package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/zulandar/switchyard/internal/db"
	"github.com/zulandar/switchyard/internal/models"
)

// writeTestConfig writes a sqlite-backed config file and returns its path.
func writeTestConfig(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "switchyard.yaml")
	yaml := `
service:
  instance_id: sw-test
database:
  driver: sqlite
  path: ` + filepath.Join(dir, "switchyard.db") + `
dispatch:
  secret: test-secret
  runner_url: http://127.0.0.1:9999
`
	if err := os.WriteFile(path, []byte(yaml), 0o600); err != nil {
		t.Fatalf("write test config: %v", err)
	}
	return path
}

func TestConnectFromConfig(t *testing.T) {
	path := writeTestConfig(t)

	cfg, conn, err := connectFromConfig(path)
	if err != nil {
		t.Fatalf("connectFromConfig: %v", err)
	}
	if cfg.Service.InstanceID != "sw-test" {
		t.Errorf("instance id = %q, want sw-test", cfg.Service.InstanceID)
	}
	if conn == nil {
		t.Fatal("nil connection")
	}
}

func TestBuildServices(t *testing.T) {
	path := writeTestConfig(t)

	cfg, conn, err := connectFromConfig(path)
	if err != nil {
		t.Fatalf("connectFromConfig: %v", err)
	}

	deps, err := buildServices(cfg, conn)
	if err != nil {
		t.Fatalf("buildServices: %v", err)
	}
	defer deps.broker.Close()

	if deps.secret != "test-secret" {
		t.Errorf("secret = %q, want test-secret", deps.secret)
	}
	if deps.svc == nil || deps.store == nil || deps.gate == nil {
		t.Error("service stack not fully wired")
	}
}

func TestStatusCmd_AgainstSeededDB(t *testing.T) {
	path := writeTestConfig(t)

	_, conn, err := connectFromConfig(path)
	if err != nil {
		t.Fatalf("connectFromConfig: %v", err)
	}
	if err := db.AutoMigrate(conn); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	userID, err := db.SeedDemo(conn)
	if err != nil {
		t.Fatalf("seed: %v", err)
	}

	cmd := newRootCmd()
	buf := new(bytes.Buffer)
	cmd.SetOut(buf)
	cmd.SetErr(buf)
	cmd.SetArgs([]string{"status", userID, "--config", path})

	if err := cmd.Execute(); err != nil {
		t.Fatalf("status command failed: %v", err)
	}

	out := buf.String()
	if !strings.Contains(out, "Running: none") {
		t.Errorf("output = %q, want no running chat", out)
	}
	if !strings.Contains(out, "Queue:") {
		t.Errorf("output = %q, want queue listing", out)
	}

	var count int64
	conn.Model(&models.ThreadChat{}).Where("user_id = ? AND status = ?", userID, models.ChatQueued).Count(&count)
	if count == 0 {
		t.Error("seed produced no queued chats")
	}
}

func TestStatusCmd_UnknownUser(t *testing.T) {
	path := writeTestConfig(t)

	_, conn, err := connectFromConfig(path)
	if err != nil {
		t.Fatalf("connectFromConfig: %v", err)
	}
	if err := db.AutoMigrate(conn); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	cmd := newRootCmd()
	cmd.SetOut(new(bytes.Buffer))
	cmd.SetErr(new(bytes.Buffer))
	cmd.SetArgs([]string{"status", "ghost", "--config", path})

	if err := cmd.Execute(); err == nil {
		t.Fatal("expected error for unknown user")
	}
}
