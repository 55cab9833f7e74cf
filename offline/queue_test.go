package offline

import (
	"context"
	"errors"
	"testing"
)

var errBoom = errors.New("boom")

// failingStore rejects writes, like a full disk.
type failingStore struct{ *MemoryStore }

func (failingStore) Set(string, []byte) error { return errBoom }

func TestEnqueueStartsWithZeroRetries(t *testing.T) {
	q := NewActionQueue(NewMemoryStore())
	item := q.Enqueue(ActionClaimTask, ClaimPayload{TaskID: 1, UserID: 2})

	items := q.GetQueue()
	if len(items) != 1 {
		t.Fatalf("expected 1 item, got %d", len(items))
	}
	if items[0].ID != item.ID || items[0].Retries != 0 || items[0].Type != ActionClaimTask {
		t.Fatalf("unexpected item %+v", items[0])
	}
	if !q.HasQueuedItems() {
		t.Fatalf("expected queued items")
	}
}

func TestFailingHandlerRetriesThenDrops(t *testing.T) {
	q := NewActionQueue(NewMemoryStore())
	q.Enqueue(ActionClaimTask, ClaimPayload{TaskID: 1})
	handlers := map[ActionType]Handler{
		ActionClaimTask: func(context.Context, QueueItem) error { return errBoom },
	}

	for attempt := 1; attempt <= MaxRetries; attempt++ {
		res := q.ProcessQueue(context.Background(), handlers)
		if res.Failed != 1 || res.Dropped != 0 {
			t.Fatalf("attempt %d: unexpected result %+v", attempt, res)
		}
		items := q.GetQueue()
		if len(items) != 1 || items[0].Retries != attempt {
			t.Fatalf("attempt %d: expected retries=%d, got %+v", attempt, attempt, items)
		}
	}

	res := q.ProcessQueue(context.Background(), handlers)
	if res.Failed != 1 || res.Dropped != 1 {
		t.Fatalf("sixth failure: unexpected result %+v", res)
	}
	if q.HasQueuedItems() {
		t.Fatalf("expected item to be dropped after the sixth failure")
	}
}

func TestProcessQueueFIFO(t *testing.T) {
	q := NewActionQueue(NewMemoryStore())
	a := q.Enqueue(ActionClaimTask, ClaimPayload{TaskID: 1})
	b := q.Enqueue(ActionCompleteTask, CompletePayload{TaskID: 1, Note: "ok"})

	var order []string
	record := func(_ context.Context, it QueueItem) error {
		order = append(order, it.ID)
		return nil
	}
	res := q.ProcessQueue(context.Background(), map[ActionType]Handler{
		ActionClaimTask:    record,
		ActionCompleteTask: record,
	})
	if res.Succeeded != 2 || res.Failed != 0 {
		t.Fatalf("unexpected result %+v", res)
	}
	if len(order) != 2 || order[0] != a.ID || order[1] != b.ID {
		t.Fatalf("expected A before B, got %v", order)
	}
	if q.HasQueuedItems() {
		t.Fatalf("expected empty queue")
	}
}

func TestMissingHandlerRetainsItem(t *testing.T) {
	q := NewActionQueue(NewMemoryStore())
	q.Enqueue(ActionCancelTask, CancelPayload{TaskID: 9})

	res := q.ProcessQueue(context.Background(), map[ActionType]Handler{})
	if res.Failed != 1 || res.Succeeded != 0 {
		t.Fatalf("unexpected result %+v", res)
	}
	items := q.GetQueue()
	if len(items) != 1 || items[0].Retries != 0 {
		t.Fatalf("expected item kept with retries untouched, got %+v", items)
	}
}

func TestItemsEnqueuedDuringReplayWaitForNextPass(t *testing.T) {
	q := NewActionQueue(NewMemoryStore())
	q.Enqueue(ActionClaimTask, ClaimPayload{TaskID: 1})

	calls := 0
	handlers := map[ActionType]Handler{
		ActionClaimTask: func(context.Context, QueueItem) error {
			calls++
			if calls == 1 {
				q.Enqueue(ActionClaimTask, ClaimPayload{TaskID: 2})
			}
			return nil
		},
	}
	res := q.ProcessQueue(context.Background(), handlers)
	if res.Succeeded != 1 || calls != 1 {
		t.Fatalf("expected only the snapshot to be processed, got %+v after %d calls", res, calls)
	}
	if items := q.GetQueue(); len(items) != 1 {
		t.Fatalf("expected the new item to remain queued, got %d", len(items))
	}
}

func TestDequeueIsIdempotent(t *testing.T) {
	q := NewActionQueue(NewMemoryStore())
	a := q.Enqueue(ActionClaimTask, ClaimPayload{TaskID: 1})
	q.Dequeue("missing")
	q.Dequeue(a.ID)
	q.Dequeue(a.ID)
	if q.HasQueuedItems() {
		t.Fatalf("expected empty queue")
	}

	q.Enqueue(ActionClaimTask, ClaimPayload{TaskID: 2})
	q.ClearQueue()
	if q.HasQueuedItems() {
		t.Fatalf("expected cleared queue")
	}
}

func TestCorruptQueueReadsEmpty(t *testing.T) {
	store := NewMemoryStore()
	_ = store.Set(QueueKey, []byte("{not json"))
	q := NewActionQueue(store)
	if items := q.GetQueue(); len(items) != 0 {
		t.Fatalf("expected empty queue, got %d", len(items))
	}
	q.Enqueue(ActionClaimTask, ClaimPayload{TaskID: 1})
	if len(q.GetQueue()) != 1 {
		t.Fatalf("expected queue to recover after corrupt data")
	}
}

func TestWriteFailureIsSwallowed(t *testing.T) {
	q := NewActionQueue(failingStore{NewMemoryStore()})
	item := q.Enqueue(ActionClaimTask, ClaimPayload{TaskID: 1})
	if item.ID == "" {
		t.Fatalf("expected an item even when the write fails")
	}
	if q.HasQueuedItems() {
		t.Fatalf("expected lost write to leave the queue empty")
	}
}
