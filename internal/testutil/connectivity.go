package testutil

import "sync"

// ScriptedSource is a connectivity source tests drive by hand.
type ScriptedSource struct {
	mu     sync.Mutex
	online bool
	events chan bool
}

// NewScriptedSource creates a source in the given initial state.
func NewScriptedSource(online bool) *ScriptedSource {
	return &ScriptedSource{
		online: online,
		events: make(chan bool, 16),
	}
}

// Online implements connectivity.Source.
func (s *ScriptedSource) Online() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.online
}

// Events implements connectivity.Source.
func (s *ScriptedSource) Events() <-chan bool {
	return s.events
}

// SetOnline flips the state and emits the change event.
func (s *ScriptedSource) SetOnline(online bool) {
	s.mu.Lock()
	s.online = online
	s.mu.Unlock()
	s.events <- online
}

// Close ends the event stream.
func (s *ScriptedSource) Close() {
	close(s.events)
}
