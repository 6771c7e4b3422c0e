// Package platform tracks the state of the chat platform connection
// so the rest of the service can observe it without holding a session
// handle.
package platform

import "sync"

// Counts is a snapshot of what the connection can currently see
type Counts struct {
	Guilds   int `json:"guilds"`
	Users    int `json:"users"`
	Channels int `json:"channels"`
}

// Status is a thread-safe view of the platform connection. The session
// layer updates it on gateway events; health probes read it.
type Status struct {
	mu     sync.RWMutex
	ready  bool
	counts Counts
}

// NewStatus returns a status that starts not ready
func NewStatus() *Status {
	return &Status{}
}

// SetReady marks the connection ready or not ready
func (s *Status) SetReady(ready bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ready = ready
}

// SetCounts replaces the visible entity counts
func (s *Status) SetCounts(c Counts) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.counts = c
}

// IsReady reports whether the connection is established and ready
func (s *Status) IsReady() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.ready
}

// Counts returns the current entity counts
func (s *Status) Counts() (guilds, users, channels int) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.counts.Guilds, s.counts.Users, s.counts.Channels
}

// Snapshot returns the counts as a struct for serialization
func (s *Status) Snapshot() Counts {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.counts
}
