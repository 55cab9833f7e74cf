package offline

import (
	"context"
	"sync"
	"time"

	"rescuehub/logger"
)

type SyncState string

const (
	StateIdle    SyncState = "idle"
	StateSyncing SyncState = "syncing"
	StateDone    SyncState = "done"
	StateError   SyncState = "error"
)

// DefaultDoneDelay is how long the done state is shown before returning to
// idle.
const DefaultDoneDelay = 3 * time.Second

// Status is the sync indicator shown to the user.
type Status struct {
	State   SyncState
	Online  bool
	Pending int
	Last    *Result
	LastRun time.Time
}

type MonitorOptions struct {
	DoneDelay time.Duration
}

// Monitor replays the queue on an offline to online edge and on manual
// retry. There is no timer-driven retry; a trigger that arrives while a pass
// is running is ignored.
type Monitor struct {
	queue     *ActionQueue
	handlers  map[ActionType]Handler
	doneDelay time.Duration

	mu        sync.Mutex
	online    bool
	state     SyncState
	last      *Result
	lastRun   time.Time
	idleTimer *time.Timer
	listeners []func(Status)
}

func NewMonitor(queue *ActionQueue, handlers map[ActionType]Handler, online bool, opts MonitorOptions) *Monitor {
	if opts.DoneDelay <= 0 {
		opts.DoneDelay = DefaultDoneDelay
	}
	return &Monitor{
		queue:     queue,
		handlers:  handlers,
		doneDelay: opts.DoneDelay,
		online:    online,
		state:     StateIdle,
	}
}

// Subscribe registers fn to receive every status change.
func (m *Monitor) Subscribe(fn func(Status)) {
	m.mu.Lock()
	m.listeners = append(m.listeners, fn)
	m.mu.Unlock()
}

func (m *Monitor) Online() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.online
}

func (m *Monitor) Status() Status {
	m.mu.Lock()
	st := m.statusLocked()
	m.mu.Unlock()
	st.Pending = len(m.queue.GetQueue())
	return st
}

func (m *Monitor) statusLocked() Status {
	st := Status{State: m.state, Online: m.online, LastRun: m.lastRun}
	if m.last != nil {
		r := *m.last
		st.Last = &r
	}
	return st
}

func (m *Monitor) notify() {
	m.mu.Lock()
	listeners := append([]func(Status){}, m.listeners...)
	m.mu.Unlock()
	if len(listeners) == 0 {
		return
	}
	st := m.Status()
	for _, fn := range listeners {
		fn(st)
	}
}

// SetOnline records a connectivity observation. Only the offline to online
// edge starts a replay, which runs before SetOnline returns.
func (m *Monitor) SetOnline(ctx context.Context, online bool) {
	m.mu.Lock()
	wasOnline := m.online
	m.online = online
	m.mu.Unlock()

	if wasOnline == online {
		return
	}
	if online {
		logger.Info("[sync] connection restored")
		m.notify()
		m.replay(ctx)
		return
	}
	logger.Info("[sync] connection lost")
	m.notify()
}

// MarkOffline records that a request just failed for lack of connectivity.
func (m *Monitor) MarkOffline() {
	m.SetOnline(context.Background(), false)
}

// Retry runs a replay pass on user request. ran is false when a pass was
// already in progress.
func (m *Monitor) Retry(ctx context.Context) (res Result, ran bool) {
	return m.replay(ctx)
}

func (m *Monitor) replay(ctx context.Context) (Result, bool) {
	m.mu.Lock()
	if m.state == StateSyncing {
		m.mu.Unlock()
		logger.Debug("[sync] replay already running, trigger ignored")
		return Result{}, false
	}
	m.state = StateSyncing
	if m.idleTimer != nil {
		m.idleTimer.Stop()
		m.idleTimer = nil
	}
	m.mu.Unlock()
	m.notify()

	res := m.queue.ProcessQueue(ctx, m.handlers)

	m.mu.Lock()
	m.last = &res
	m.lastRun = time.Now()
	if res.Failed > 0 {
		m.state = StateError
	} else {
		m.state = StateDone
		m.idleTimer = time.AfterFunc(m.doneDelay, m.settle)
	}
	m.mu.Unlock()
	m.notify()
	return res, true
}

// settle moves done back to idle.
func (m *Monitor) settle() {
	m.mu.Lock()
	if m.state != StateDone {
		m.mu.Unlock()
		return
	}
	m.state = StateIdle
	m.idleTimer = nil
	m.mu.Unlock()
	m.notify()
}

// Watch feeds connectivity observations from events into SetOnline until ctx
// is cancelled or events is closed.
func (m *Monitor) Watch(ctx context.Context, events <-chan bool) {
	for {
		select {
		case <-ctx.Done():
			return
		case online, ok := <-events:
			if !ok {
				return
			}
			m.SetOnline(ctx, online)
		}
	}
}
