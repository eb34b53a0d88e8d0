// Package history persists the action events of a tracking session. One
// file per session; events are appended in timestamp order and the file is
// finalized with a summary exactly once, on every exit path.
package history

import (
	"sync"

	"github.com/kozaktomas/face-tracker/internal/action"
)

// Recorder receives the ordered action event stream of one session.
type Recorder interface {
	// Record appends one event. Events arrive in non-decreasing
	// timestamp order, exactly once each.
	Record(event action.Event) error
	// Status appends a session status note (lock acquired, lock lost).
	Status(message string) error
	// Finalize flushes and closes the session log. Safe to call more
	// than once; only the first call writes the summary.
	Finalize() error
}

// MemoryRecorder keeps events in memory. Used in tests and as a null
// recorder when persistence is disabled.
type MemoryRecorder struct {
	mu       sync.Mutex
	events   []action.Event
	statuses []string
	final    bool

	// RecordErr, when set, is returned by Record to simulate transient
	// write failures.
	RecordErr error
}

// NewMemoryRecorder creates an empty in-memory recorder.
func NewMemoryRecorder() *MemoryRecorder {
	return &MemoryRecorder{}
}

// Record appends one event.
func (m *MemoryRecorder) Record(event action.Event) error {
	if m.RecordErr != nil {
		return m.RecordErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, event)
	return nil
}

// Status appends a status note.
func (m *MemoryRecorder) Status(message string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.statuses = append(m.statuses, message)
	return nil
}

// Finalize marks the recorder as closed.
func (m *MemoryRecorder) Finalize() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.final = true
	return nil
}

// Events returns a copy of the recorded events.
func (m *MemoryRecorder) Events() []action.Event {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]action.Event, len(m.events))
	copy(out, m.events)
	return out
}

// Statuses returns a copy of the recorded status notes.
func (m *MemoryRecorder) Statuses() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, len(m.statuses))
	copy(out, m.statuses)
	return out
}

// Finalized reports whether Finalize has been called.
func (m *MemoryRecorder) Finalized() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.final
}
