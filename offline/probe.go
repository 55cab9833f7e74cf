package offline

import (
	"context"
	"time"
)

// Pinger reports whether the server is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Prober turns periodic health checks into connectivity observations for
// hosts with no platform online/offline events. It emits only on change.
type Prober struct {
	pinger   Pinger
	interval time.Duration
	timeout  time.Duration
}

func NewProber(p Pinger, interval time.Duration) *Prober {
	if interval <= 0 {
		interval = 10 * time.Second
	}
	timeout := interval / 2
	if timeout > 5*time.Second {
		timeout = 5 * time.Second
	}
	return &Prober{pinger: p, interval: interval, timeout: timeout}
}

// Check probes once.
func (p *Prober) Check(ctx context.Context) bool {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()
	return p.pinger.Ping(ctx) == nil
}

// Run probes until ctx is done, sending the first result and then every
// change to out. out is closed on return.
func (p *Prober) Run(ctx context.Context, out chan<- bool) {
	defer close(out)
	tick := time.NewTicker(p.interval)
	defer tick.Stop()

	last := p.Check(ctx)
	if !p.send(ctx, out, last) {
		return
	}
	for {
		select {
		case <-ctx.Done():
			return
		case <-tick.C:
			up := p.Check(ctx)
			if up == last {
				continue
			}
			last = up
			if !p.send(ctx, out, up) {
				return
			}
		}
	}
}

func (p *Prober) send(ctx context.Context, out chan<- bool, v bool) bool {
	select {
	case out <- v:
		return true
	case <-ctx.Done():
		return false
	}
}
