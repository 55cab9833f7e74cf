package offline

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/google/uuid"

	"rescuehub/logger"
)

// QueueKey is the store key holding the serialized queue.
const QueueKey = "rescuehub.action_queue"

// MaxRetries is the number of failed replays an item survives. The next
// failure drops it for good.
const MaxRetries = 5

type ActionType string

const (
	ActionClaimTask    ActionType = "claim_task"
	ActionCompleteTask ActionType = "complete_task"
	ActionCancelTask   ActionType = "cancel_task"
)

// QueueItem is one deferred mutating action.
type QueueItem struct {
	ID        string          `json:"id"`
	Type      ActionType      `json:"type"`
	Payload   json.RawMessage `json:"payload"`
	CreatedAt time.Time       `json:"createdAt"`
	Retries   int             `json:"retries"`
}

// Handler replays one queued item against the server.
type Handler func(ctx context.Context, item QueueItem) error

// Result summarizes one replay pass. Dropped items are also counted in
// Failed.
type Result struct {
	Succeeded int `json:"succeeded"`
	Failed    int `json:"failed"`
	Dropped   int `json:"dropped"`
}

// ActionQueue is a durable FIFO of pending actions. Storage failures are
// logged and swallowed: reads degrade to an empty queue, lost writes lose
// the intent.
type ActionQueue struct {
	store Store
	mu    sync.Mutex
	now   func() time.Time
}

func NewActionQueue(store Store) *ActionQueue {
	return &ActionQueue{store: store, now: time.Now}
}

func (q *ActionQueue) load() []QueueItem {
	data, err := q.store.Get(QueueKey)
	if err != nil {
		logger.Warn("[queue] read failed, treating queue as empty: %v", err)
		return nil
	}
	if len(data) == 0 {
		return nil
	}
	var items []QueueItem
	if err := json.Unmarshal(data, &items); err != nil {
		logger.Warn("[queue] corrupt queue data, treating queue as empty: %v", err)
		return nil
	}
	return items
}

func (q *ActionQueue) save(items []QueueItem) {
	if items == nil {
		items = []QueueItem{}
	}
	data, err := json.Marshal(items)
	if err != nil {
		logger.Error("[queue] encode failed: %v", err)
		return
	}
	if err := q.store.Set(QueueKey, data); err != nil {
		logger.Error("[queue] write failed, pending actions may be lost: %v", err)
	}
}

// Enqueue appends an action with zero retries. payload is JSON-encoded.
func (q *ActionQueue) Enqueue(actionType ActionType, payload interface{}) QueueItem {
	raw, err := json.Marshal(payload)
	if err != nil {
		logger.Error("[queue] encode payload for %s failed: %v", actionType, err)
		raw = json.RawMessage("null")
	}
	item := QueueItem{
		ID:        uuid.NewString(),
		Type:      actionType,
		Payload:   raw,
		CreatedAt: q.now().UTC(),
		Retries:   0,
	}

	q.mu.Lock()
	defer q.mu.Unlock()
	q.save(append(q.load(), item))
	logger.Debug("[queue] enqueued %s %s", item.Type, item.ID)
	return item
}

// GetQueue returns a snapshot in FIFO order.
func (q *ActionQueue) GetQueue() []QueueItem {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.load()
}

// Dequeue removes the item with id. Unknown ids are ignored.
func (q *ActionQueue) Dequeue(id string) {
	q.mu.Lock()
	defer q.mu.Unlock()
	items := q.load()
	kept := items[:0]
	for _, it := range items {
		if it.ID != id {
			kept = append(kept, it)
		}
	}
	if len(kept) != len(items) {
		q.save(kept)
	}
}

func (q *ActionQueue) ClearQueue() {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.save(nil)
}

func (q *ActionQueue) HasQueuedItems() bool {
	return len(q.GetQueue()) > 0
}

// ProcessQueue replays the items present when it starts, oldest first.
// Items without a handler are kept untouched. A failing item has its retries
// bumped in the persisted queue and is dropped once it exceeds MaxRetries.
// Handlers run without the queue lock so new actions can be enqueued
// meanwhile.
func (q *ActionQueue) ProcessQueue(ctx context.Context, handlers map[ActionType]Handler) Result {
	var res Result
	for _, item := range q.GetQueue() {
		h, ok := handlers[item.Type]
		if !ok {
			logger.Warn("[queue] no handler for %s, keeping %s", item.Type, item.ID)
			res.Failed++
			continue
		}
		if err := h(ctx, item); err != nil {
			res.Failed++
			if q.recordFailure(item.ID, err) {
				res.Dropped++
			}
			continue
		}
		q.Dequeue(item.ID)
		res.Succeeded++
	}
	if res.Succeeded+res.Failed > 0 {
		logger.Info("[queue] replay finished: %d succeeded, %d failed, %d dropped", res.Succeeded, res.Failed, res.Dropped)
	}
	return res
}

// recordFailure bumps the retry count of id in the current persisted queue
// and drops every exhausted item. It reports whether id itself was dropped.
func (q *ActionQueue) recordFailure(id string, cause error) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	items := q.load()
	kept := make([]QueueItem, 0, len(items))
	dropped := false
	for _, it := range items {
		if it.ID == id {
			it.Retries++
			logger.Debug("[queue] %s %s failed (attempt %d): %v", it.Type, it.ID, it.Retries, cause)
		}
		if it.Retries > MaxRetries {
			logger.Warn("[queue] dropping %s %s after %d failed attempts: %v", it.Type, it.ID, it.Retries, cause)
			if it.ID == id {
				dropped = true
			}
			continue
		}
		kept = append(kept, it)
	}
	q.save(kept)
	return dropped
}
