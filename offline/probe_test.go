package offline

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

type scriptedPinger struct {
	mu      sync.Mutex
	results []bool
}

func (p *scriptedPinger) Ping(context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	up := p.results[0]
	if len(p.results) > 1 {
		p.results = p.results[1:]
	}
	if !up {
		return errors.New("unreachable")
	}
	return nil
}

func TestProberEmitsOnlyChanges(t *testing.T) {
	p := NewProber(&scriptedPinger{results: []bool{true, true, false, false, true}}, 5*time.Millisecond)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	out := make(chan bool)
	go p.Run(ctx, out)

	var got []bool
	for v := range out {
		got = append(got, v)
		if len(got) == 3 {
			cancel()
		}
	}
	want := []bool{true, false, true}
	if len(got) < 3 {
		t.Fatalf("expected 3 observations, got %v", got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("expected %v, got %v", want, got)
		}
	}
}

func TestProberTimeoutIsCapped(t *testing.T) {
	if p := NewProber(nil, time.Minute); p.timeout != 5*time.Second {
		t.Fatalf("expected 5s cap, got %s", p.timeout)
	}
	if p := NewProber(nil, 0); p.interval != 10*time.Second {
		t.Fatalf("expected default interval, got %s", p.interval)
	}
}
