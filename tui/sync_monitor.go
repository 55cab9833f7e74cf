package tui

import (
	"context"
	"fmt"

	tea "github.com/charmbracelet/bubbletea"

	"rescuehub/logger"
	"rescuehub/offline"
)

// SyncMonitor drives the sync indicator from a Monitor and an optional
// connectivity source.
type SyncMonitor struct {
	monitor *offline.Monitor
	queue   *offline.ActionQueue
	events  <-chan bool
	program *tea.Program
}

func NewSyncMonitor(monitor *offline.Monitor, queue *offline.ActionQueue, events <-chan bool) *SyncMonitor {
	return &SyncMonitor{monitor: monitor, queue: queue, events: events}
}

func (sm *SyncMonitor) snapshot(st offline.Status) StatusUpdate {
	return StatusUpdate{Status: st, Items: sm.queue.GetQueue()}
}

// Run blocks until the user quits or ctx is done.
func (sm *SyncMonitor) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	model := NewModel(sm.snapshot(sm.monitor.Status()), func() (offline.Result, bool) {
		return sm.monitor.Retry(ctx)
	})
	sm.program = tea.NewProgram(model, tea.WithAltScreen(), tea.WithContext(ctx))

	sm.monitor.Subscribe(func(st offline.Status) {
		sm.program.Send(sm.snapshot(st))
	})
	if sm.events != nil {
		go sm.monitor.Watch(ctx, sm.events)
	}

	logger.Info("[tui] sync monitor started")
	if _, err := sm.program.Run(); err != nil && ctx.Err() == nil {
		return fmt.Errorf("failed to run TUI: %w", err)
	}
	return nil
}
