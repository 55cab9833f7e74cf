package routes

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"rescuehub/controllers"
	"rescuehub/database"
	"rescuehub/models"
	"rescuehub/services"
	"rescuehub/utils"
)

var testToken = utils.TokenConfig{Secret: "test-secret", Audience: "rescuehub", Issuer: "idp"}

type envelope struct {
	Success bool            `json:"success"`
	Message string          `json:"message"`
	Code    string          `json:"code"`
	Data    json.RawMessage `json:"data"`
}

func newServer(t *testing.T) *httptest.Server {
	t.Helper()
	db, err := database.OpenSQLite(filepath.Join(t.TempDir(), "api.db"))
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	if err := database.Migrate(db); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	router := InitRouter(Options{
		Tasks:     controllers.NewTaskController(services.NewTaskService(db)),
		Token:     testToken,
		RateRead:  1000,
		RateWrite: 1000,
	})
	srv := httptest.NewServer(router)
	t.Cleanup(srv.Close)
	return srv
}

func token(t *testing.T, uid uint, name string) string {
	t.Helper()
	tok, err := utils.GenerateAccessToken(testToken, uid, name, time.Hour)
	if err != nil {
		t.Fatalf("token: %v", err)
	}
	return tok
}

func call(t *testing.T, srv *httptest.Server, method, path, tok string, body interface{}) (int, envelope) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode: %v", err)
		}
	}
	req, err := http.NewRequest(method, srv.URL+path, &buf)
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if tok != "" {
		req.Header.Set("Authorization", "Bearer "+tok)
	}
	resp, err := srv.Client().Do(req)
	if err != nil {
		t.Fatalf("do: %v", err)
	}
	defer resp.Body.Close()
	var env envelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		t.Fatalf("decode %s %s: %v", method, path, err)
	}
	return resp.StatusCode, env
}

func decodeTask(t *testing.T, env envelope) models.RescueTask {
	t.Helper()
	var task models.RescueTask
	if err := json.Unmarshal(env.Data, &task); err != nil {
		t.Fatalf("decode task: %v", err)
	}
	return task
}

func TestHealthIsPublic(t *testing.T) {
	srv := newServer(t)
	resp, err := srv.Client().Get(srv.URL + "/health")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
}

func TestRequiresToken(t *testing.T) {
	srv := newServer(t)
	status, _ := call(t, srv, http.MethodGet, "/v1/tasks", "", nil)
	if status != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", status)
	}

	other := utils.TokenConfig{Secret: "other-secret", Audience: "rescuehub", Issuer: "idp"}
	bad, _ := utils.GenerateAccessToken(other, 1, "x", time.Hour)
	status, _ = call(t, srv, http.MethodGet, "/v1/tasks", bad, nil)
	if status != http.StatusUnauthorized {
		t.Fatalf("expected 401 for foreign signature, got %d", status)
	}
}

func TestTaskLifecycleOverHTTP(t *testing.T) {
	srv := newServer(t)
	creator := token(t, 10, "Shelter Sam")
	alice := token(t, 11, "Alice")
	bob := token(t, 12, "Bob")

	status, env := call(t, srv, http.MethodPost, "/v1/tasks", creator, map[string]interface{}{
		"title":         "Trap-neuter-return on 5th street",
		"task_type":     "rescue",
		"max_assignees": 1,
	})
	if status != http.StatusCreated {
		t.Fatalf("create: %d %s", status, env.Message)
	}
	task := decodeTask(t, env)
	if task.Creator == nil || task.Creator.Name != "Shelter Sam" {
		t.Fatalf("expected creator name from token")
	}
	base := fmt.Sprintf("/v1/tasks/%d", task.ID)

	if status, env = call(t, srv, http.MethodPost, base+"/claims", alice, nil); status != http.StatusCreated {
		t.Fatalf("apply: %d %s", status, env.Message)
	}
	status, env = call(t, srv, http.MethodPost, base+"/claims", alice, nil)
	if status != http.StatusConflict || env.Code != "duplicate" {
		t.Fatalf("expected duplicate conflict, got %d %s", status, env.Code)
	}

	status, env = call(t, srv, http.MethodPost, base+"/claims/11/approve", bob, nil)
	if status != http.StatusForbidden || env.Code != "permission" {
		t.Fatalf("expected permission error, got %d %s", status, env.Code)
	}
	status, env = call(t, srv, http.MethodPost, base+"/claims/11/approve", creator, nil)
	if status != http.StatusOK {
		t.Fatalf("approve: %d %s", status, env.Message)
	}
	if got := decodeTask(t, env); got.Status != models.TaskClaimed || got.ClaimedCount != 1 {
		t.Fatalf("after approve: %s/%d", got.Status, got.ClaimedCount)
	}

	status, env = call(t, srv, http.MethodPost, base+"/claims", bob, nil)
	if status != http.StatusConflict || env.Code != "capacity" {
		t.Fatalf("expected capacity conflict, got %d %s", status, env.Code)
	}

	status, env = call(t, srv, http.MethodPost, base+"/complete", alice, map[string]string{"note": "done"})
	if status != http.StatusOK {
		t.Fatalf("complete: %d %s", status, env.Message)
	}
	got := decodeTask(t, env)
	if got.Status != models.TaskCompleted || utils.GetStringValue(got.CompletionNote) != "done" {
		t.Fatalf("after complete: %s %q", got.Status, utils.GetStringValue(got.CompletionNote))
	}

	status, env = call(t, srv, http.MethodPost, base+"/cancel", creator, nil)
	if status != http.StatusConflict || env.Code != "state" {
		t.Fatalf("expected state conflict, got %d %s", status, env.Code)
	}

	status, env = call(t, srv, http.MethodGet, "/v1/me/claims", alice, nil)
	if status != http.StatusOK {
		t.Fatalf("my claims: %d", status)
	}
	var claims []models.TaskClaim
	if err := json.Unmarshal(env.Data, &claims); err != nil || len(claims) != 1 {
		t.Fatalf("expected one claim, got %d (%v)", len(claims), err)
	}

	status, env = call(t, srv, http.MethodGet, "/v1/tasks?status=completed", bob, nil)
	if status != http.StatusOK {
		t.Fatalf("list: %d", status)
	}
	var tasks []models.RescueTask
	if err := json.Unmarshal(env.Data, &tasks); err != nil || len(tasks) != 1 {
		t.Fatalf("expected one completed task, got %d (%v)", len(tasks), err)
	}
}

func TestErrorMapping(t *testing.T) {
	srv := newServer(t)
	creator := token(t, 10, "Sam")

	status, env := call(t, srv, http.MethodGet, "/v1/tasks/999", creator, nil)
	if status != http.StatusNotFound || env.Code != "not_found" {
		t.Fatalf("expected 404 not_found, got %d %s", status, env.Code)
	}

	status, env = call(t, srv, http.MethodPost, "/v1/tasks", creator, map[string]interface{}{
		"title":         "x",
		"task_type":     "rescue",
		"max_assignees": 0,
	})
	if status != http.StatusBadRequest || env.Code != "validation" {
		t.Fatalf("expected 400 validation, got %d %s", status, env.Code)
	}

	status, env = call(t, srv, http.MethodPost, "/v1/tasks", creator, map[string]interface{}{
		"title":         "x",
		"task_type":     "juggling",
		"max_assignees": 2,
	})
	if status != http.StatusBadRequest || env.Code != "validation" {
		t.Fatalf("expected 400 for unknown type, got %d %s", status, env.Code)
	}

	status, env = call(t, srv, http.MethodGet, "/v1/tasks?status=archived", creator, nil)
	if status != http.StatusBadRequest {
		t.Fatalf("expected 400 for unknown status, got %d", status)
	}
}
