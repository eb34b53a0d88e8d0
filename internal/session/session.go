// Package session runs the per-frame tracking loop: validate observations,
// advance the lock machine, classify actions while locked, map the target
// position to a movement command and publish it on change.
package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/kozaktomas/face-tracker/internal/action"
	"github.com/kozaktomas/face-tracker/internal/feed"
	"github.com/kozaktomas/face-tracker/internal/frame"
	"github.com/kozaktomas/face-tracker/internal/history"
	"github.com/kozaktomas/face-tracker/internal/identity"
	"github.com/kozaktomas/face-tracker/internal/lock"
	"github.com/kozaktomas/face-tracker/internal/movement"
	"github.com/kozaktomas/face-tracker/internal/transport"
)

// escalationThreshold is the consecutive-failure count at which a transient
// IO problem stops being a per-frame warning and becomes an error.
const escalationThreshold = 3

// Bounds for runtime threshold adjustment.
const (
	minDistanceThreshold = 0.05
	maxDistanceThreshold = 1.0
	minDeadZone          = 0.01
	maxDeadZone          = 0.49
)

// Config holds the session tunables.
type Config struct {
	Lock   lock.Config
	Action action.Config
	// DeadZoneRatio is the half-width of the centered band as a fraction
	// of frame width.
	DeadZoneRatio float64
	// FrameWidth is the fallback frame width in pixels when the feed does
	// not carry one.
	FrameWidth int
	// HeartbeatInterval is how often a liveness heartbeat goes out. Zero
	// disables heartbeats.
	HeartbeatInterval time.Duration
}

// StreamEvent is a change notification pushed to subscribers (dashboard
// SSE, websocket relay).
type StreamEvent struct {
	Type      string            `json:"type"` // state, action, command
	State     lock.State        `json:"state,omitempty"`
	Target    string            `json:"target,omitempty"`
	Action    *action.Event     `json:"action,omitempty"`
	Command   *movement.Command `json:"command,omitempty"`
	Timestamp int64             `json:"timestamp"`
}

// Snapshot is the externally visible state of a running session.
type Snapshot struct {
	State       lock.State        `json:"state"`
	Target      string            `json:"target,omitempty"`
	BBox        *frame.BBox       `json:"bbox,omitempty"`
	Landmarks   frame.Landmarks   `json:"landmarks,omitempty"`
	Confidence  float64           `json:"confidence"`
	Misses      int               `json:"misses"`
	Frames      int               `json:"frames"`
	LastCommand *movement.Command `json:"last_command,omitempty"`
	StartedAt   time.Time         `json:"started_at"`
}

// Session owns one tracking run for one target identity. The frame loop is
// sequential; Snapshot, RequestRelease and the threshold adjusters are safe
// to call from other goroutines.
type Session struct {
	cfg       Config
	publisher transport.Publisher
	recorder  history.Recorder
	logger    *logrus.Logger
	log       *logrus.Entry

	mu       sync.Mutex
	machine  *lock.Machine
	detector *action.Detector
	mapper   *movement.Mapper
	snapshot Snapshot
	sinks    []func(StreamEvent)

	releaseReq atomic.Bool

	frames        int
	lastCmd       *movement.Command
	lastLandmarks frame.Landmarks
	startedAt     time.Time
	lastHeartbeat time.Time
	publishFails  int
	recordFails   int
	embedDim      int
}

// New wires a session for a target identity.
func New(cfg Config, target *identity.Template, pub transport.Publisher, rec history.Recorder, logger *logrus.Logger) *Session {
	return &Session{
		cfg:       cfg,
		publisher: pub,
		recorder:  rec,
		logger:    logger,
		log:       logger.WithField("target", target.Name),
		machine:   lock.NewMachine(cfg.Lock, target, logger),
		detector:  action.NewDetector(cfg.Action),
		mapper:    movement.NewMapper(cfg.DeadZoneRatio),
		embedDim:  target.Dim(),
		snapshot:  Snapshot{State: lock.Searching},
	}
}

// Subscribe registers a sink for stream events. Sinks are called from the
// frame loop and must not block.
func (s *Session) Subscribe(sink func(StreamEvent)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sinks = append(s.sinks, sink)
}

// RequestRelease asks the loop to drop the current lock. Honored at the top
// of the next frame iteration.
func (s *Session) RequestRelease() {
	s.releaseReq.Store(true)
}

// Snapshot returns the current session state.
func (s *Session) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshot
}

// AdjustDistanceThreshold shifts the steady-state accept threshold by
// delta, clamped to sane bounds. Returns the new value.
func (s *Session) AdjustDistanceThreshold(delta float64) float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	v := clampF(s.machine.DistanceThreshold()+delta, minDistanceThreshold, maxDistanceThreshold)
	s.machine.SetDistanceThreshold(v)
	s.log.WithField("threshold", v).Info("distance threshold adjusted")
	return v
}

// AdjustDeadZone shifts the dead-zone ratio by delta, clamped so the band
// never swallows the whole frame. Returns the new value.
func (s *Session) AdjustDeadZone(delta float64) float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	v := clampF(s.mapper.DeadZone()+delta, minDeadZone, maxDeadZone)
	s.mapper.SetDeadZone(v)
	s.log.WithField("dead_zone", v).Info("dead zone adjusted")
	return v
}

// DeadZone returns the current dead-zone ratio.
func (s *Session) DeadZone() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.mapper.DeadZone()
}

// Run consumes the feed until it closes, the context is cancelled or the
// feed fails. The recorder is finalized on every exit path.
func (s *Session) Run(ctx context.Context, source feed.Source) (err error) {
	defer func() {
		if ferr := s.recorder.Finalize(); ferr != nil && err == nil {
			err = fmt.Errorf("could not finalize history: %w", ferr)
		}
	}()

	for {
		if ctx.Err() != nil {
			s.log.Info("session cancelled")
			return ctx.Err()
		}

		if s.releaseReq.Swap(false) {
			s.handleRelease()
		}

		f, err := source.Next()
		if errors.Is(err, feed.ErrClosed) {
			s.log.WithField("frames", s.frames).Info("feed closed, session over")
			return nil
		}
		if err != nil {
			return fmt.Errorf("frame feed failed: %w", err)
		}

		s.step(f)
	}
}

func (s *Session) handleRelease() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.machine.Release() {
		return
	}
	s.detector.Reset()
	s.lastLandmarks = nil
	s.record(func() error { return s.recorder.Status("lock released by request") })
	s.emit(StreamEvent{Type: "state", State: lock.Searching})
	s.updateSnapshot()
}

// step processes one frame end to end.
func (s *Session) step(f feed.Frame) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.frames++
	if s.startedAt.IsZero() {
		s.startedAt = f.Timestamp
		s.lastHeartbeat = f.Timestamp
	}

	observations := s.validObservations(f.Observations)
	upd := s.machine.Step(observations, f.Timestamp)

	if upd.Acquired {
		// Fresh lock: action baselines from a previous lock are stale.
		s.detector.Reset()
		s.record(func() error {
			return s.recorder.Status(fmt.Sprintf("lock acquired (confidence %.2f)", upd.Match.Confidence))
		})
		s.emit(StreamEvent{Type: "state", State: lock.Locked, Target: s.machine.Target()})
	}
	if upd.Released {
		s.record(func() error { return s.recorder.Status("lock lost") })
		s.emit(StreamEvent{Type: "state", State: lock.Searching})
	}

	if upd.State == lock.Locked && upd.Observation != nil {
		s.lastLandmarks = upd.Observation.Landmarks
		for _, ev := range s.detector.Detect(upd.Observation.Landmarks, f.Timestamp.Sub(s.startedAt)) {
			ev := ev
			s.log.WithFields(logrus.Fields{
				"kind":       ev.Kind,
				"confidence": ev.Confidence,
			}).Info("action detected")
			s.record(func() error { return s.recorder.Record(ev) })
			s.emit(StreamEvent{Type: "action", Action: &ev})
		}
	}

	s.publishMovement(f)
	s.heartbeat(f.Timestamp)
	s.updateSnapshot()
}

// validObservations drops observations violating the inbound contract. The
// frame continues with the remaining ones.
func (s *Session) validObservations(in []frame.Observation) []frame.Observation {
	out := in[:0:0]
	for _, obs := range in {
		if err := obs.Validate(s.embedDim); err != nil {
			s.log.WithError(err).Warn("discarding invalid observation")
			continue
		}
		out = append(out, obs)
	}
	return out
}

func (s *Session) publishMovement(f feed.Frame) {
	width := f.FrameWidth
	if width <= 0 {
		width = s.cfg.FrameWidth
	}

	bbox, hasBox := s.machine.BBox()
	hasFace := s.machine.State() != lock.Searching && hasBox
	cmd := s.mapper.Map(bbox, width, hasFace, s.machine.Confidence(), f.Timestamp)

	if !s.mapper.ShouldPublish(cmd) {
		return
	}
	if err := s.publisher.PublishMovement(cmd); err != nil {
		s.publishFails++
		s.reportFailure("publish movement command", err, s.publishFails)
		return
	}
	// Only a successful publish updates the debounce state, so a failed
	// command is retried as long as it still differs.
	s.publishFails = 0
	s.mapper.MarkPublished(cmd)
	s.lastCmd = &cmd
	s.log.WithFields(logrus.Fields{
		"status":     cmd.Status,
		"confidence": cmd.Confidence,
	}).Info("movement command published")
	s.emit(StreamEvent{Type: "command", Command: &cmd})
}

func (s *Session) heartbeat(now time.Time) {
	if s.cfg.HeartbeatInterval <= 0 {
		return
	}
	if now.Sub(s.lastHeartbeat) < s.cfg.HeartbeatInterval {
		return
	}
	s.lastHeartbeat = now
	if err := s.publisher.PublishHeartbeat(now); err != nil {
		s.log.WithError(err).Warn("could not publish heartbeat")
	}
}

// record runs a recorder call with transient-failure accounting.
func (s *Session) record(fn func() error) {
	if err := fn(); err != nil {
		s.recordFails++
		s.reportFailure("record history", err, s.recordFails)
		return
	}
	s.recordFails = 0
}

func (s *Session) reportFailure(what string, err error, consecutive int) {
	entry := s.log.WithError(err).WithField("consecutive", consecutive)
	if consecutive >= escalationThreshold {
		entry.Errorf("could not %s, output is degraded", what)
		return
	}
	entry.Warnf("could not %s", what)
}

func (s *Session) updateSnapshot() {
	snap := Snapshot{
		State:      s.machine.State(),
		Target:     s.machine.Target(),
		Confidence: s.machine.Confidence(),
		Misses:     s.machine.Misses(),
		Frames:     s.frames,
		StartedAt:  s.startedAt,
	}
	if bbox, ok := s.machine.BBox(); ok {
		b := bbox
		snap.BBox = &b
		snap.Landmarks = s.lastLandmarks
	}
	snap.LastCommand = s.lastCmd
	s.snapshot = snap
}

func (s *Session) emit(ev StreamEvent) {
	ev.Timestamp = time.Now().Unix()
	if ev.Target == "" && s.machine.State() != lock.Searching {
		ev.Target = s.machine.Target()
	}
	for _, sink := range s.sinks {
		sink(ev)
	}
}

func clampF(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
