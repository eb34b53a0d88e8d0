package action

import (
	"fmt"
	"math"
	"time"

	"github.com/kozaktomas/face-tracker/internal/frame"
)

// Config holds the detector tunables. Thresholds are ratios against the
// rolling baseline, never absolute pixel values, except for the nose
// displacement which is inherently a pixel distance.
type Config struct {
	// WindowSize is the rolling history length in frames. Events are
	// suppressed until the window is full so baselines are meaningful.
	WindowSize int
	// BlinkDipRatio: an eye aperture below this fraction of baseline
	// counts as a dip.
	BlinkDipRatio float64
	// BlinkMaxDipFrames is the longest dip still treated as a blink.
	BlinkMaxDipFrames int
	// MoveThresholdPx is the nose displacement in pixels, measured
	// against the position MoveLagFrames ago, that fires a move event.
	MoveThresholdPx float64
	// MoveLagFrames is how many frames back the nose position is compared.
	MoveLagFrames int
	// SmileRatio: a mouth-corner span above this multiple of baseline
	// fires a smile.
	SmileRatio float64
	// DistanceRatio: a relative inter-eye distance change beyond this
	// fires a closer/farther event.
	DistanceRatio float64
	// CooldownFrames is the default minimum frame gap between two events
	// of the same kind; the anti-chatter mechanism.
	CooldownFrames int
	// Cooldowns overrides CooldownFrames per kind.
	Cooldowns map[Kind]int
}

// DefaultConfig returns the detector defaults. The blink heuristic from 5
// sparse points is approximate and meant to be tuned per deployment.
func DefaultConfig() Config {
	return Config{
		WindowSize:        10,
		BlinkDipRatio:     0.4,
		BlinkMaxDipFrames: 2,
		MoveThresholdPx:   20,
		MoveLagFrames:     5,
		SmileRatio:        1.15,
		DistanceRatio:     0.12,
		CooldownFrames:    8,
	}
}

// Detector turns the per-frame landmark stream into deduplicated events.
// Owned by the single goroutine running the frame loop.
type Detector struct {
	cfg    Config
	window *window

	frameIdx  uint64
	lastFired map[Kind]uint64

	inDip     bool
	dipFrames int
	dipDepth  float64 // deepest relative dip seen, in (0, 1]
}

// NewDetector creates a detector with the given configuration.
func NewDetector(cfg Config) *Detector {
	if cfg.WindowSize <= 0 {
		cfg.WindowSize = DefaultConfig().WindowSize
	}
	return &Detector{
		cfg:       cfg,
		window:    newWindow(cfg.WindowSize),
		lastFired: make(map[Kind]uint64),
	}
}

// Reset clears all rolling history. Called on every transition into Locked
// from Searching so pre-lock and post-lock geometry are never compared.
func (d *Detector) Reset() {
	d.window.reset()
	d.frameIdx = 0
	d.lastFired = make(map[Kind]uint64)
	d.inDip = false
	d.dipFrames = 0
	d.dipDepth = 0
}

// Detect processes one frame's landmarks and returns zero or more events.
// Call once per frame, only while the lock is held. elapsed is the offset
// from session start and becomes the timestamp of emitted events.
func (d *Detector) Detect(landmarks frame.Landmarks, elapsed time.Duration) []Event {
	if !landmarks.Valid() {
		return nil
	}
	d.frameIdx++

	s := computeSample(landmarks)

	var events []Event
	if d.window.full() {
		events = d.classify(s, elapsed)
	}
	d.window.push(s)
	return events
}

func (d *Detector) classify(s sample, elapsed time.Duration) []Event {
	var events []Event
	if ev, ok := d.detectBlink(s); ok {
		ev.Timestamp = elapsed
		events = append(events, ev)
	}
	if ev, ok := d.detectSmile(s); ok {
		ev.Timestamp = elapsed
		events = append(events, ev)
	}
	if ev, ok := d.detectMove(s); ok {
		ev.Timestamp = elapsed
		events = append(events, ev)
	}
	if ev, ok := d.detectDistance(s); ok {
		ev.Timestamp = elapsed
		events = append(events, ev)
	}
	return events
}

// computeSample derives the scalar metrics for one frame. Degenerate
// geometry yields NaN for the affected metrics; NaN is "metric unavailable
// this frame", not an error.
func computeSample(l frame.Landmarks) sample {
	nan := math.NaN()
	s := sample{aperture: nan, interEye: nan, mouthSpan: nan, noseX: nan}

	leftEye, rightEye := l[frame.LeftEye], l[frame.RightEye]
	eyeDist := leftEye.Dist(rightEye)
	if eyeDist >= 1 && !math.IsNaN(eyeDist) {
		s.interEye = eyeDist
		// With only 5 points there are no eyelid landmarks; the
		// vertical offset between the eye centers relative to their
		// distance serves as the aperture proxy.
		ratio := math.Abs(rightEye.Y-leftEye.Y) / eyeDist
		s.aperture = clamp(ratio, 0, 1)
	}

	span := l[frame.LeftMouth].Dist(l[frame.RightMouth])
	if span > 0 && !math.IsNaN(span) {
		s.mouthSpan = span
	}

	if !math.IsNaN(l[frame.NoseTip].X) {
		s.noseX = l[frame.NoseTip].X
	}
	return s
}

// detectBlink runs the dip-and-recover state machine against the rolling
// aperture baseline. The event fires on recovery, scaled by dip depth.
func (d *Detector) detectBlink(s sample) (Event, bool) {
	base, ok := d.window.baseline(func(s sample) float64 { return s.aperture })
	if !ok || base <= 0 || math.IsNaN(s.aperture) {
		return Event{}, false
	}

	dipped := s.aperture < d.cfg.BlinkDipRatio*base
	if dipped {
		depth := 1 - s.aperture/base
		if !d.inDip {
			d.inDip = true
			d.dipFrames = 1
			d.dipDepth = depth
		} else {
			d.dipFrames++
			if depth > d.dipDepth {
				d.dipDepth = depth
			}
		}
		return Event{}, false
	}

	if !d.inDip {
		return Event{}, false
	}
	frames, depth := d.dipFrames, d.dipDepth
	d.inDip = false
	d.dipFrames = 0
	d.dipDepth = 0

	if frames > d.cfg.BlinkMaxDipFrames || !d.allow(Blink) {
		return Event{}, false
	}
	return Event{
		Kind:        Blink,
		Description: fmt.Sprintf("eye blink (%d-frame dip, depth %.2f)", frames, depth),
		Confidence:  clamp(depth, 0, 1),
		Magnitude:   depth,
	}, true
}

func (d *Detector) detectSmile(s sample) (Event, bool) {
	base, ok := d.window.baseline(func(s sample) float64 { return s.mouthSpan })
	if !ok || base <= 0 || math.IsNaN(s.mouthSpan) {
		return Event{}, false
	}

	ratio := s.mouthSpan / base
	if ratio < d.cfg.SmileRatio || !d.allow(Smile) {
		return Event{}, false
	}
	return Event{
		Kind:        Smile,
		Description: fmt.Sprintf("smile (mouth span ratio %.2f)", ratio),
		Confidence:  clamp((ratio-1)/(2*(d.cfg.SmileRatio-1)), 0, 1),
		Magnitude:   ratio - 1,
	}, true
}

func (d *Detector) detectMove(s sample) (Event, bool) {
	if math.IsNaN(s.noseX) {
		return Event{}, false
	}
	prev, ok := d.window.lookback(func(s sample) float64 { return s.noseX }, d.cfg.MoveLagFrames)
	if !ok {
		return Event{}, false
	}

	delta := s.noseX - prev
	if math.Abs(delta) <= d.cfg.MoveThresholdPx {
		return Event{}, false
	}

	kind := MoveRight
	if delta < 0 {
		kind = MoveLeft
	}
	if !d.allow(kind) {
		return Event{}, false
	}
	return Event{
		Kind:        kind,
		Description: fmt.Sprintf("head moved %s (%.1fpx)", direction(kind), math.Abs(delta)),
		Confidence:  clamp(math.Abs(delta)/(2*d.cfg.MoveThresholdPx), 0, 1),
		Magnitude:   delta,
	}, true
}

func (d *Detector) detectDistance(s sample) (Event, bool) {
	base, ok := d.window.baseline(func(s sample) float64 { return s.interEye })
	if !ok || base <= 0 || math.IsNaN(s.interEye) {
		return Event{}, false
	}

	change := s.interEye/base - 1
	if math.Abs(change) <= d.cfg.DistanceRatio {
		return Event{}, false
	}

	kind := Closer
	desc := "face moved closer"
	if change < 0 {
		kind = Farther
		desc = "face moved farther"
	}
	if !d.allow(kind) {
		return Event{}, false
	}
	return Event{
		Kind:        kind,
		Description: fmt.Sprintf("%s (inter-eye change %+.0f%%)", desc, change*100),
		Confidence:  clamp(math.Abs(change)/(2*d.cfg.DistanceRatio), 0, 1),
		Magnitude:   change,
	}, true
}

// allow implements the per-kind cooldown: a kind may fire only when at
// least its cooldown's worth of frames passed since it last fired. The
// last-fired bookkeeping is per kind, never global.
func (d *Detector) allow(kind Kind) bool {
	last, fired := d.lastFired[kind]
	if fired && d.frameIdx-last < uint64(d.cooldown(kind)) {
		return false
	}
	d.lastFired[kind] = d.frameIdx
	return true
}

func (d *Detector) cooldown(kind Kind) int {
	if c, ok := d.cfg.Cooldowns[kind]; ok && c > 0 {
		return c
	}
	if d.cfg.CooldownFrames > 0 {
		return d.cfg.CooldownFrames
	}
	return 1
}

func direction(k Kind) string {
	if k == MoveLeft {
		return "left"
	}
	return "right"
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
