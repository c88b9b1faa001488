// Package connectivity adapts the platform reachability signal into drain
// triggers for the synchronizer.
//
// The monitor fires once per offline→online transition. The trigger
// channel has a buffer of one, so rapid flapping while a drain is running
// coalesces into a single follow-up trigger instead of overlapping drains.
package connectivity

import (
	"context"
	"log/slog"
	"sync/atomic"
)

// Source is the boolean reachability signal the monitor watches, typically
// backed by a platform network-change notification.
//
// Events delivers the current reachability on every change; Online
// reports the state at call time. Implementations close Events when the
// underlying signal goes away.
type Source interface {
	Online() bool
	Events() <-chan bool
}

// Monitor watches a Source and exposes a coalesced drain trigger.
type Monitor struct {
	source  Source
	trigger chan struct{}
	online  atomic.Bool
}

// New creates a monitor for the given source.
func New(source Source) *Monitor {
	m := &Monitor{
		source:  source,
		trigger: make(chan struct{}, 1),
	}
	m.online.Store(source.Online())
	return m
}

// Online reports the last observed reachability state.
func (m *Monitor) Online() bool {
	return m.online.Load()
}

// Trigger returns the channel that fires once per transition to online.
// Receivers drain it in a loop; a missed receive is coalesced, never lost.
func (m *Monitor) Trigger() <-chan struct{} {
	return m.trigger
}

// Kick fires the trigger manually. Used at engine start to drain work
// left over from a previous session, and by tests.
func (m *Monitor) Kick() {
	select {
	case m.trigger <- struct{}{}:
	default:
	}
}

// Run observes the Source until ctx is cancelled or its event channel
// closes. Must be called from exactly one goroutine.
func (m *Monitor) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case online, ok := <-m.source.Events():
			if !ok {
				return
			}
			was := m.online.Swap(online)
			if online && !was {
				slog.Info("connectivity restored, triggering drain")
				m.Kick()
			}
			if !online && was {
				slog.Info("connectivity lost")
			}
		}
	}
}
