package offline

import (
	"context"
	"encoding/json"

	"rescuehub/errs"
	"rescuehub/logger"
	"rescuehub/models"
)

// TaskAPI is the subset of the server surface that can be deferred or
// cached. The caller's identity is bound to the API credentials.
type TaskAPI interface {
	ListTasks(ctx context.Context, status models.TaskStatus) ([]models.RescueTask, error)
	ApplyClaim(ctx context.Context, taskID uint) (*models.RescueTask, error)
	CompleteClaim(ctx context.Context, taskID uint, note string) (*models.RescueTask, error)
	CancelTask(ctx context.Context, taskID uint) (*models.RescueTask, error)
}

type ClaimPayload struct {
	TaskID uint `json:"taskId"`
	UserID uint `json:"userId"`
}

type CompletePayload struct {
	TaskID uint   `json:"taskId"`
	UserID uint   `json:"userId"`
	Note   string `json:"note"`
}

type CancelPayload struct {
	TaskID uint `json:"taskId"`
	UserID uint `json:"userId"`
}

// Handlers returns the replay handlers for every queued action type. A
// replayed claim the server already holds counts as delivered.
func Handlers(api TaskAPI) map[ActionType]Handler {
	return map[ActionType]Handler{
		ActionClaimTask: func(ctx context.Context, item QueueItem) error {
			var p ClaimPayload
			if err := json.Unmarshal(item.Payload, &p); err != nil {
				return errs.Wrap(errs.Validation, "bad claim payload", err)
			}
			_, err := api.ApplyClaim(ctx, p.TaskID)
			if errs.KindOf(err) == errs.Duplicate {
				logger.Info("[sync] claim on task %d already recorded", p.TaskID)
				return nil
			}
			return err
		},
		ActionCompleteTask: func(ctx context.Context, item QueueItem) error {
			var p CompletePayload
			if err := json.Unmarshal(item.Payload, &p); err != nil {
				return errs.Wrap(errs.Validation, "bad complete payload", err)
			}
			_, err := api.CompleteClaim(ctx, p.TaskID, p.Note)
			return err
		},
		ActionCancelTask: func(ctx context.Context, item QueueItem) error {
			var p CancelPayload
			if err := json.Unmarshal(item.Payload, &p); err != nil {
				return errs.Wrap(errs.Validation, "bad cancel payload", err)
			}
			_, err := api.CancelTask(ctx, p.TaskID)
			return err
		},
	}
}

// Outcome is the result of a UI action: either the server's updated task or
// the queued item standing in for it.
type Outcome struct {
	Task   *models.RescueTask
	Queued *QueueItem
}

// Coordinator routes UI actions to the server when online and to the queue
// otherwise, and serves list reads with cache fallback.
type Coordinator struct {
	api     TaskAPI
	queue   *ActionQueue
	monitor *Monitor
	store   Store
}

func NewCoordinator(api TaskAPI, queue *ActionQueue, monitor *Monitor, store Store) *Coordinator {
	return &Coordinator{api: api, queue: queue, monitor: monitor, store: store}
}

func (c *Coordinator) ApplyClaim(ctx context.Context, taskID, userID uint) (Outcome, error) {
	return c.dispatch(ActionClaimTask, ClaimPayload{TaskID: taskID, UserID: userID}, func() (*models.RescueTask, error) {
		return c.api.ApplyClaim(ctx, taskID)
	})
}

func (c *Coordinator) CompleteClaim(ctx context.Context, taskID, userID uint, note string) (Outcome, error) {
	return c.dispatch(ActionCompleteTask, CompletePayload{TaskID: taskID, UserID: userID, Note: note}, func() (*models.RescueTask, error) {
		return c.api.CompleteClaim(ctx, taskID, note)
	})
}

func (c *Coordinator) CancelTask(ctx context.Context, taskID, userID uint) (Outcome, error) {
	return c.dispatch(ActionCancelTask, CancelPayload{TaskID: taskID, UserID: userID}, func() (*models.RescueTask, error) {
		return c.api.CancelTask(ctx, taskID)
	})
}

// dispatch calls the server when the monitor believes we are online. A
// transport failure on that path defers the action and flips the monitor
// offline; domain errors are returned as-is.
func (c *Coordinator) dispatch(t ActionType, payload interface{}, call func() (*models.RescueTask, error)) (Outcome, error) {
	if !c.monitor.Online() {
		item := c.queue.Enqueue(t, payload)
		return Outcome{Queued: &item}, nil
	}
	task, err := call()
	if err == nil {
		return Outcome{Task: task}, nil
	}
	if errs.Retryable(err) {
		logger.Warn("[sync] %s deferred: %v", t, err)
		item := c.queue.Enqueue(t, payload)
		c.monitor.MarkOffline()
		return Outcome{Queued: &item}, nil
	}
	return Outcome{}, err
}

// ListTasks reads from the server and refreshes the cache. When the read
// fails, a fresh-enough snapshot is served instead and fromCache is true.
func (c *Coordinator) ListTasks(ctx context.Context, status models.TaskStatus) (tasks []models.RescueTask, fromCache bool, err error) {
	collection := "tasks"
	if status != "" {
		collection += "." + string(status)
	}
	cache := NewCache[models.RescueTask](c.store, collection)

	tasks, err = c.api.ListTasks(ctx, status)
	if err == nil {
		cache.Put(tasks)
		return tasks, false, nil
	}
	if errs.Retryable(err) {
		c.monitor.MarkOffline()
	}
	if cached, ok := cache.Get(); ok {
		logger.Info("[sync] serving cached %s: %v", collection, err)
		return cached, true, nil
	}
	return nil, false, err
}
