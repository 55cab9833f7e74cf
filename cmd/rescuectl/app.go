package main

import (
	"context"
	"io"

	"rescuehub/client"
	"rescuehub/errs"
	"rescuehub/offline"
)

// app bundles the API client with the offline layer for one command run.
type app struct {
	cfg         *Config
	api         *client.APIClient
	store       offline.Store
	queue       *offline.ActionQueue
	monitor     *offline.Monitor
	prober      *offline.Prober
	coordinator *offline.Coordinator
}

func newApp(cfg *Config) (*app, error) {
	store, err := offline.OpenStore(cfg.Store, cfg.DataDir)
	if err != nil {
		return nil, err
	}
	api := client.NewAPIClient(cfg.ServerURL, cfg.Token, cfg.Timeout)
	queue := offline.NewActionQueue(store)
	monitor := offline.NewMonitor(queue, offline.Handlers(api), false, offline.MonitorOptions{DoneDelay: cfg.DoneDelay})

	return &app{
		cfg:         cfg,
		api:         api,
		store:       store,
		queue:       queue,
		monitor:     monitor,
		prober:      offline.NewProber(api, cfg.ProbeInterval),
		coordinator: offline.NewCoordinator(api, queue, monitor, store),
	}, nil
}

// connect probes the server once. Reaching it is an offline to online edge,
// so anything queued by earlier runs is replayed before the command acts.
func (a *app) connect(ctx context.Context) bool {
	if !a.prober.Check(ctx) {
		return false
	}
	a.monitor.SetOnline(ctx, true)
	return true
}

// requireOnline is for operations that are never deferred.
func (a *app) requireOnline(ctx context.Context) error {
	if !a.connect(ctx) {
		return errs.Newf(errs.Network, "server %s is unreachable", a.cfg.ServerURL)
	}
	return nil
}

func (a *app) userID() (uint, error) {
	if a.cfg.UserID == 0 {
		return 0, errs.New(errs.Validation, "user_id is not configured (set RESCUE_USER_ID or user_id in config)")
	}
	return a.cfg.UserID, nil
}

func (a *app) Close() error {
	if c, ok := a.store.(io.Closer); ok {
		return c.Close()
	}
	return nil
}
