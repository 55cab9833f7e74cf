package client

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"rescuehub/errs"
	"rescuehub/models"
)

func writeEnvelope(w http.ResponseWriter, status int, code string, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]interface{}{
		"success": status < 300,
		"message": "msg " + code,
		"code":    code,
		"data":    data,
	})
}

func TestApplyClaimSendsTokenAndDecodesTask(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/v1/tasks/7/claims" {
			t.Errorf("unexpected %s %s", r.Method, r.URL.Path)
		}
		if r.Header.Get("Authorization") != "Bearer tok" {
			t.Errorf("missing bearer token")
		}
		writeEnvelope(w, http.StatusCreated, "", models.RescueTask{ID: 7, Status: models.TaskOpen, MaxAssignees: 2})
	}))
	defer srv.Close()

	c := NewAPIClient(srv.URL+"/", "tok", time.Second)
	task, err := c.ApplyClaim(context.Background(), 7)
	if err != nil {
		t.Fatalf("apply: %v", err)
	}
	if task.ID != 7 || task.MaxAssignees != 2 {
		t.Fatalf("unexpected task %+v", task)
	}
}

func TestErrorCodesMapToKinds(t *testing.T) {
	cases := []struct {
		status int
		code   string
		want   errs.Kind
	}{
		{http.StatusConflict, "duplicate", errs.Duplicate},
		{http.StatusConflict, "capacity", errs.Capacity},
		{http.StatusConflict, "state", errs.State},
		{http.StatusForbidden, "permission", errs.Permission},
		{http.StatusNotFound, "not_found", errs.NotFound},
		{http.StatusBadRequest, "validation", errs.Validation},
		{http.StatusUnauthorized, "", errs.Permission},
		{http.StatusInternalServerError, "internal", errs.Network},
		{http.StatusBadGateway, "", errs.Network},
		{http.StatusTooManyRequests, "rate_limited", errs.Network},
	}
	for _, tc := range cases {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			writeEnvelope(w, tc.status, tc.code, nil)
		}))
		_, err := NewAPIClient(srv.URL, "", time.Second).GetTask(context.Background(), 1)
		srv.Close()
		if got := errs.KindOf(err); got != tc.want {
			t.Errorf("status %d code %q: got %s, want %s", tc.status, tc.code, got, tc.want)
		}
	}
}

func TestUnreachableServerIsNetworkError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	addr := srv.URL
	srv.Close()

	c := NewAPIClient(addr, "", time.Second)
	if _, err := c.ListTasks(context.Background(), ""); !errs.Retryable(err) {
		t.Fatalf("expected retryable network error, got %v", err)
	}
	if err := c.Ping(context.Background()); errs.KindOf(err) != errs.Network {
		t.Fatalf("expected network error from ping, got %v", err)
	}
}

func TestListTasksPassesStatusFilter(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.URL.Query().Get("status"); got != "open" {
			t.Errorf("expected status=open, got %q", got)
		}
		writeEnvelope(w, http.StatusOK, "", []models.RescueTask{{ID: 1}, {ID: 2}})
	}))
	defer srv.Close()

	tasks, err := NewAPIClient(srv.URL, "", time.Second).ListTasks(context.Background(), models.TaskOpen)
	if err != nil || len(tasks) != 2 {
		t.Fatalf("list: %d %v", len(tasks), err)
	}
}
