// Package transport carries movement commands from the tracking core to
// the external actuator chain. The core treats publishing as
// fire-and-forget: a failed publish is reported, never fatal.
package transport

import (
	"sync"
	"time"

	"github.com/kozaktomas/face-tracker/internal/movement"
)

// Publisher sends movement commands and liveness heartbeats.
type Publisher interface {
	// PublishMovement sends one movement command.
	PublishMovement(cmd movement.Command) error
	// PublishHeartbeat signals that the vision node is alive.
	PublishHeartbeat(now time.Time) error
	// Close releases the connection.
	Close() error
}

// MemoryPublisher collects published commands in memory. Used in tests and
// for dry runs without a broker.
type MemoryPublisher struct {
	mu         sync.Mutex
	commands   []movement.Command
	heartbeats int

	// Err, when set, is returned by PublishMovement to simulate a
	// transport outage.
	Err error
}

// NewMemoryPublisher creates an empty in-memory publisher.
func NewMemoryPublisher() *MemoryPublisher {
	return &MemoryPublisher{}
}

// PublishMovement records the command.
func (p *MemoryPublisher) PublishMovement(cmd movement.Command) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.Err != nil {
		return p.Err
	}
	p.commands = append(p.commands, cmd)
	return nil
}

// PublishHeartbeat counts the heartbeat.
func (p *MemoryPublisher) PublishHeartbeat(time.Time) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.heartbeats++
	return nil
}

// Close is a no-op.
func (p *MemoryPublisher) Close() error {
	return nil
}

// SetErr injects or clears a publish error.
func (p *MemoryPublisher) SetErr(err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.Err = err
}

// Commands returns a copy of the published commands.
func (p *MemoryPublisher) Commands() []movement.Command {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]movement.Command, len(p.commands))
	copy(out, p.commands)
	return out
}

// Heartbeats returns the heartbeat count.
func (p *MemoryPublisher) Heartbeats() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.heartbeats
}
