// Package feed supplies per-frame observation lists to the tracking core.
// Frames arrive either from a recorded JSONL file (replays, tests) or over
// a websocket connection to the detection/embedding pipeline.
package feed

import (
	"errors"
	"time"

	"github.com/kozaktomas/face-tracker/internal/frame"
)

// ErrClosed is returned by Next after the feed is exhausted or closed.
var ErrClosed = errors.New("feed closed")

// Frame is one decoded input frame: its capture timestamp, the frame width
// used by the movement mapper, and the detected faces.
type Frame struct {
	Timestamp    time.Time
	FrameWidth   int
	Observations []frame.Observation
}

// Source yields frames in capture order. Next blocks until a frame is
// available and returns ErrClosed when no more frames will arrive.
type Source interface {
	Next() (Frame, error)
	Close() error
}

// wireFrame is the JSON shape shared by the JSONL files and the websocket
// pipeline. Timestamps are unix milliseconds.
type wireFrame struct {
	TimestampMs  int64               `json:"timestamp_ms"`
	FrameWidth   int                 `json:"frame_width"`
	Observations []frame.Observation `json:"observations"`
}

func (w wireFrame) decode() Frame {
	return Frame{
		Timestamp:    time.UnixMilli(w.TimestampMs),
		FrameWidth:   w.FrameWidth,
		Observations: w.Observations,
	}
}
