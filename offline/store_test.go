package offline

import (
	"path/filepath"
	"testing"
)

func exerciseStore(t *testing.T, s Store) {
	t.Helper()
	v, err := s.Get("missing")
	if err != nil || v != nil {
		t.Fatalf("expected absent key to read as nil, got %q %v", v, err)
	}
	if err := s.Set(QueueKey, []byte(`[1]`)); err != nil {
		t.Fatalf("set: %v", err)
	}
	if err := s.Set(QueueKey, []byte(`[1,2]`)); err != nil {
		t.Fatalf("overwrite: %v", err)
	}
	v, err = s.Get(QueueKey)
	if err != nil || string(v) != `[1,2]` {
		t.Fatalf("expected overwritten value, got %q %v", v, err)
	}
}

func TestMemoryStore(t *testing.T) {
	exerciseStore(t, NewMemoryStore())
}

func TestFileStore(t *testing.T) {
	dir := t.TempDir()
	s, err := NewFileStore(filepath.Join(dir, "data"))
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	exerciseStore(t, s)

	q := NewActionQueue(s)
	q.ClearQueue()
	item := q.Enqueue(ActionCancelTask, CancelPayload{TaskID: 3})

	again, _ := NewFileStore(filepath.Join(dir, "data"))
	items := NewActionQueue(again).GetQueue()
	if len(items) != 1 || items[0].ID != item.ID {
		t.Fatalf("expected a second store over the same dir to see the queue, got %+v", items)
	}
}

func TestSQLiteStorePersistsQueue(t *testing.T) {
	path := filepath.Join(t.TempDir(), "offline.db")
	s, err := OpenSQLiteStore(path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	exerciseStore(t, s)

	q := NewActionQueue(s)
	item := q.Enqueue(ActionClaimTask, ClaimPayload{TaskID: 4, UserID: 5})
	if err := s.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	reopened, err := OpenSQLiteStore(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer reopened.Close()
	items := NewActionQueue(reopened).GetQueue()
	if len(items) != 1 || items[0].ID != item.ID {
		t.Fatalf("expected queue to survive restart, got %+v", items)
	}
}

func TestOpenStoreKinds(t *testing.T) {
	dir := t.TempDir()
	if _, err := OpenStore("file", dir); err != nil {
		t.Fatalf("file: %v", err)
	}
	s, err := OpenStore("sqlite", dir)
	if err != nil {
		t.Fatalf("sqlite: %v", err)
	}
	s.(*SQLiteStore).Close()
	if _, err := OpenStore("etcd", dir); err == nil {
		t.Fatalf("expected unknown store kind to fail")
	}
}
