package tui

import (
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"rescuehub/offline"
)

func key(s string) tea.KeyMsg {
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

func TestViewShowsOfflineAndPending(t *testing.T) {
	items := []offline.QueueItem{
		{ID: "a1b2c3d4e5", Type: offline.ActionClaimTask, CreatedAt: time.Now()},
		{ID: "f6g7h8i9j0", Type: offline.ActionCompleteTask, CreatedAt: time.Now(), Retries: 2},
	}
	m := NewModel(StatusUpdate{Status: offline.Status{State: offline.StateIdle}, Items: items}, nil)

	view := m.View()
	for _, want := range []string{"offline", "Pending actions: 2", "2 waiting", "claim_task", "retries 2"} {
		if !strings.Contains(view, want) {
			t.Fatalf("expected view to contain %q:\n%s", want, view)
		}
	}
}

func TestRetryKeyRunsRetrier(t *testing.T) {
	calls := 0
	m := NewModel(StatusUpdate{}, func() (offline.Result, bool) {
		calls++
		return offline.Result{Succeeded: 1}, true
	})

	next, cmd := m.Update(key("r"))
	if cmd == nil {
		t.Fatalf("expected a retry command")
	}
	if _, ok := cmd().(retryDone); !ok || calls != 1 {
		t.Fatalf("expected retrier to run once, got %d calls", calls)
	}

	// no overlapping pass while syncing
	syncing, _ := next.(Model).Update(StatusUpdate{Status: offline.Status{State: offline.StateSyncing, Online: true}})
	if _, cmd := syncing.(Model).Update(key("r")); cmd != nil {
		t.Fatalf("expected retry to be ignored while syncing")
	}
}

func TestStatusTransitionsAreLogged(t *testing.T) {
	m := NewModel(StatusUpdate{}, nil)
	res := offline.Result{Succeeded: 1, Failed: 2, Dropped: 1}

	next, _ := m.Update(StatusUpdate{Status: offline.Status{Online: true, State: offline.StateSyncing}})
	next, _ = next.(Model).Update(StatusUpdate{Status: offline.Status{Online: true, State: offline.StateError, Last: &res}})

	view := next.(Model).View()
	for _, want := range []string{"connection restored", "1 synced, 2 failed, 1 dropped", "some changes failed to sync"} {
		if !strings.Contains(view, want) {
			t.Fatalf("expected view to contain %q:\n%s", want, view)
		}
	}
}

func TestQuitKey(t *testing.T) {
	m := NewModel(StatusUpdate{}, nil)
	next, cmd := m.Update(key("q"))
	if cmd == nil || !next.(Model).quit {
		t.Fatalf("expected quit")
	}
}
