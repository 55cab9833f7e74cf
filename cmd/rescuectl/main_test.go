package main

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"gopkg.in/yaml.v3"

	"rescuehub/models"
	"rescuehub/offline"
)

func isolate(t *testing.T) string {
	t.Helper()
	home := t.TempDir()
	t.Setenv("HOME", home)
	t.Setenv("RESCUE_DATA_DIR", filepath.Join(home, "data"))
	t.Setenv("RESCUE_USER_ID", "2")
	t.Setenv("RESCUE_TOKEN", "tok")
	return home
}

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func unreachableURL() string {
	srv := httptest.NewServer(http.NotFoundHandler())
	srv.Close()
	return srv.URL
}

func TestLoadConfigFileAndEnv(t *testing.T) {
	home := isolate(t)
	path := filepath.Join(home, "rescue.yaml")
	body := "server_url: http://rescue.example:9000/\nuser_id: 7\nstore: sqlite\ndone_delay: 1s\n"
	if err := os.WriteFile(path, []byte(body), 0644); err != nil {
		t.Fatal(err)
	}
	t.Setenv("RESCUE_TOKEN", "from-env")

	cfg, err := loadConfig(newViper(), path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.ServerURL != "http://rescue.example:9000" || cfg.Store != "sqlite" || cfg.DoneDelay != time.Second {
		t.Fatalf("unexpected config %+v", cfg)
	}
	// env wins over the file for keys set in both
	if cfg.UserID != 2 || cfg.Token != "from-env" {
		t.Fatalf("expected env overrides, got %+v", cfg)
	}
	if cfg.ProbeInterval != 10*time.Second {
		t.Fatalf("expected default probe interval, got %s", cfg.ProbeInterval)
	}
}

func TestOfflineClaimIsQueuedAndSynced(t *testing.T) {
	isolate(t)
	t.Setenv("RESCUE_SERVER_URL", unreachableURL())

	out, err := run(t, "claim", "apply", "7")
	if err != nil {
		t.Fatalf("apply: %v", err)
	}
	if !strings.Contains(out, "claim_task queued") {
		t.Fatalf("expected queued message, got %q", out)
	}

	out, err = run(t, "queue", "list", "-o", "json")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	var items []offline.QueueItem
	if err := json.Unmarshal([]byte(out), &items); err != nil || len(items) != 1 {
		t.Fatalf("expected one queued item, got %q (%v)", out, err)
	}

	var claims int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch {
		case r.URL.Path == "/health":
			json.NewEncoder(w).Encode(map[string]interface{}{"success": true, "message": "ok"})
		case r.Method == http.MethodPost && r.URL.Path == "/v1/tasks/7/claims":
			atomic.AddInt32(&claims, 1)
			w.WriteHeader(http.StatusCreated)
			json.NewEncoder(w).Encode(map[string]interface{}{
				"success": true, "message": "applied",
				"data": models.RescueTask{ID: 7, Status: models.TaskOpen, MaxAssignees: 1},
			})
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()
	t.Setenv("RESCUE_SERVER_URL", srv.URL)

	out, err = run(t, "queue", "sync")
	if err != nil {
		t.Fatalf("sync: %v", err)
	}
	if !strings.Contains(out, "1 synced, 0 failed, 0 dropped, 0 pending") {
		t.Fatalf("unexpected sync output %q", out)
	}
	if atomic.LoadInt32(&claims) != 1 {
		t.Fatalf("expected exactly one replayed claim, got %d", claims)
	}
}

func TestQueueListYAMLAndClear(t *testing.T) {
	isolate(t)
	t.Setenv("RESCUE_SERVER_URL", unreachableURL())

	if _, err := run(t, "task", "cancel", "3"); err != nil {
		t.Fatalf("cancel: %v", err)
	}
	out, err := run(t, "queue", "list", "-o", "yaml")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	var items []map[string]interface{}
	if err := yaml.Unmarshal([]byte(out), &items); err != nil || len(items) != 1 {
		t.Fatalf("expected one yaml item, got %q (%v)", out, err)
	}
	if items[0]["type"] != "cancel_task" || items[0]["retries"] != 0 {
		t.Fatalf("expected api field names in yaml, got %v", items[0])
	}

	out, err = run(t, "queue", "clear")
	if err != nil || !strings.Contains(out, "discarded 1") {
		t.Fatalf("clear: %q %v", out, err)
	}
}

func TestOnlineOnlyCommandsFailOffline(t *testing.T) {
	isolate(t)
	t.Setenv("RESCUE_SERVER_URL", unreachableURL())

	_, err := run(t, "claim", "approve", "7", "3")
	if err == nil || exitCode(err) != 3 {
		t.Fatalf("expected network failure, got %v", err)
	}
}

func TestMissingUserIDIsValidationError(t *testing.T) {
	isolate(t)
	t.Setenv("RESCUE_USER_ID", "")
	t.Setenv("RESCUE_SERVER_URL", unreachableURL())

	_, err := run(t, "claim", "apply", "7")
	if err == nil || exitCode(err) != 2 {
		t.Fatalf("expected validation failure, got %v", err)
	}
}
