// Package action classifies discrete behavioral events from the 5-point
// landmark stream of the locked face. Every metric is normalized against a
// per-session rolling baseline so faces at different camera distances and
// different physiognomies behave alike.
package action

import "time"

// Kind identifies a detected action. The set is closed; consumers switch
// over it rather than probing loosely-typed records.
type Kind string

const (
	Blink     Kind = "blink"
	MoveLeft  Kind = "move_left"
	MoveRight Kind = "move_right"
	Smile     Kind = "smile"
	Closer    Kind = "face_closer"
	Farther   Kind = "face_farther"
)

// Kinds lists every event kind.
var Kinds = []Kind{Blink, MoveLeft, MoveRight, Smile, Closer, Farther}

// Event is one detected action. Immutable after creation.
type Event struct {
	// Kind is the event classification.
	Kind Kind `json:"kind"`
	// Description is a human-readable summary.
	Description string `json:"description"`
	// Confidence is in [0, 1].
	Confidence float64 `json:"confidence"`
	// Magnitude is the signed metric value behind the event (pixels for
	// movement, ratio deltas for smile/distance, dip depth for blink).
	Magnitude float64 `json:"magnitude"`
	// Timestamp is the offset from session start.
	Timestamp time.Duration `json:"timestamp"`
}
