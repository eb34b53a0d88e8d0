// Package movement derives discrete pan commands from the locked face's
// position within the frame and deduplicates them for publishing.
package movement

import (
	"time"

	"github.com/kozaktomas/face-tracker/internal/frame"
)

// Status is one of the four mutually exclusive movement states.
type Status string

const (
	MoveLeft  Status = "MOVE_LEFT"
	MoveRight Status = "MOVE_RIGHT"
	Centered  Status = "CENTERED"
	NoFace    Status = "NO_FACE"
)

// Command is the structured record published to the transport.
type Command struct {
	Status     Status  `json:"status"`
	Confidence float64 `json:"confidence"`
	Timestamp  int64   `json:"timestamp"`
}

// Mapper maps bounding boxes to movement states and retains the last
// published tag for the anti-flood rule. Owned by the frame-loop goroutine.
type Mapper struct {
	// deadZoneRatio is the fraction of frame width on each side of
	// center within which the face counts as centered. A band, not a
	// single point, so the state cannot oscillate at the midpoint.
	deadZoneRatio float64

	lastPublished Status
	hasPublished  bool
}

// NewMapper creates a mapper with the given dead-zone ratio.
func NewMapper(deadZoneRatio float64) *Mapper {
	return &Mapper{deadZoneRatio: deadZoneRatio}
}

// Map derives the movement command for one frame. Called every frame
// regardless of lock state; pass hasFace=false when no face is locked.
func (m *Mapper) Map(bbox frame.BBox, frameWidth int, hasFace bool, confidence float64, now time.Time) Command {
	status := NoFace
	if !hasFace {
		confidence = 0
	} else {
		offset := (bbox.Center().X - float64(frameWidth)/2) / float64(frameWidth)
		switch {
		case offset < -m.deadZoneRatio:
			status = MoveLeft
		case offset > m.deadZoneRatio:
			status = MoveRight
		default:
			status = Centered
		}
	}

	return Command{
		Status:     status,
		Confidence: confidence,
		Timestamp:  now.Unix(),
	}
}

// ShouldPublish applies the anti-flood rule: a command goes out if and only
// if its tag differs from the immediately preceding published tag. Callers
// must invoke MarkPublished only after the publish actually happened, so a
// failed publish is retried on the next frame.
func (m *Mapper) ShouldPublish(cmd Command) bool {
	return !m.hasPublished || cmd.Status != m.lastPublished
}

// MarkPublished records a successfully published tag.
func (m *Mapper) MarkPublished(cmd Command) {
	m.lastPublished = cmd.Status
	m.hasPublished = true
}

// LastPublished returns the last published tag, false when nothing has
// been published yet.
func (m *Mapper) LastPublished() (Status, bool) {
	return m.lastPublished, m.hasPublished
}

// SetDeadZone updates the dead-zone ratio at runtime. The caller validates
// bounds before calling.
func (m *Mapper) SetDeadZone(ratio float64) {
	m.deadZoneRatio = ratio
}

// DeadZone returns the current dead-zone ratio.
func (m *Mapper) DeadZone() float64 {
	return m.deadZoneRatio
}
