package action

import (
	"math"
	"testing"
	"time"

	"github.com/kozaktomas/face-tracker/internal/frame"
)

// lm builds a landmark set with a given vertical eye offset (the aperture
// proxy numerator), nose x position and mouth-corner half span.
func lm(eyeOffset, noseX, mouthHalfSpan float64) frame.Landmarks {
	return frame.Landmarks{
		{X: 100, Y: 100},             // left eye
		{X: 140, Y: 100 + eyeOffset}, // right eye
		{X: noseX, Y: 130},           // nose tip
		{X: 120 - mouthHalfSpan, Y: 160},
		{X: 120 + mouthHalfSpan, Y: 160},
	}
}

// lmEyes builds a landmark set with a given inter-eye distance.
func lmEyes(eyeDist float64) frame.Landmarks {
	return frame.Landmarks{
		{X: 100, Y: 100},
		{X: 100 + eyeDist, Y: 104},
		{X: 100 + eyeDist/2, Y: 130},
		{X: 105, Y: 160},
		{X: 135, Y: 160},
	}
}

func testConfig() Config {
	cfg := DefaultConfig()
	cfg.WindowSize = 10
	cfg.CooldownFrames = 3
	return cfg
}

// warmUp feeds enough neutral frames to fill the rolling window.
func warmUp(d *Detector, cfg Config) {
	for i := 0; i < cfg.WindowSize; i++ {
		d.Detect(lm(4, 120, 15), time.Duration(i)*time.Second/30)
	}
}

func kinds(events []Event) []Kind {
	out := make([]Kind, len(events))
	for i, e := range events {
		out[i] = e.Kind
	}
	return out
}

func TestWarmupSuppressesEvents(t *testing.T) {
	cfg := testConfig()
	d := NewDetector(cfg)

	// Wild geometry swings during warmup must emit nothing: there is no
	// baseline to compare against yet.
	for i := 0; i < cfg.WindowSize; i++ {
		span := 10 + float64(i%2)*20
		if events := d.Detect(lm(4, 120+float64(i)*30, span), 0); len(events) != 0 {
			t.Fatalf("frame %d emitted %v during warmup", i, kinds(events))
		}
	}
}

func TestBlinkDipAndRecover(t *testing.T) {
	cfg := testConfig()
	d := NewDetector(cfg)
	warmUp(d, cfg)

	// Two-frame dip.
	if events := d.Detect(lm(0.4, 120, 15), time.Second); len(events) != 0 {
		t.Fatalf("dip frame emitted %v", kinds(events))
	}
	if events := d.Detect(lm(0.4, 120, 15), time.Second); len(events) != 0 {
		t.Fatalf("dip frame emitted %v", kinds(events))
	}

	// Recovery fires the blink.
	events := d.Detect(lm(4, 120, 15), 2*time.Second)
	if len(events) != 1 || events[0].Kind != Blink {
		t.Fatalf("recovery frame emitted %v, want one blink", kinds(events))
	}
	if events[0].Confidence <= 0 || events[0].Confidence > 1 {
		t.Errorf("blink confidence = %v, want (0, 1]", events[0].Confidence)
	}
	if events[0].Magnitude <= 0 {
		t.Errorf("blink magnitude = %v, want > 0", events[0].Magnitude)
	}
	if events[0].Timestamp != 2*time.Second {
		t.Errorf("blink timestamp = %v, want 2s", events[0].Timestamp)
	}
}

func TestLongDipIsNotABlink(t *testing.T) {
	cfg := testConfig()
	d := NewDetector(cfg)
	warmUp(d, cfg)

	// A dip longer than BlinkMaxDipFrames is eyes-closed, not a blink.
	for i := 0; i < cfg.BlinkMaxDipFrames+2; i++ {
		d.Detect(lm(0.4, 120, 15), 0)
	}
	if events := d.Detect(lm(4, 120, 15), 0); len(events) != 0 {
		t.Errorf("long dip recovery emitted %v", kinds(events))
	}
}

func TestBlinkCooldown(t *testing.T) {
	cfg := testConfig()
	cfg.CooldownFrames = 3
	d := NewDetector(cfg)
	warmUp(d, cfg)

	// Blink-triggering dip/recover pattern persisting across 5 frames;
	// with a 3-frame cooldown at most 2 blinks may fire.
	pattern := []float64{0.4, 4, 0.4, 4, 0.4}
	var blinks int
	for _, offset := range pattern {
		for _, e := range d.Detect(lm(offset, 120, 15), 0) {
			if e.Kind == Blink {
				blinks++
			}
		}
	}
	if blinks > 2 {
		t.Errorf("got %d blinks in 5 frames with cooldown 3, want at most 2", blinks)
	}
	if blinks == 0 {
		t.Error("pattern produced no blinks at all")
	}
}

func TestMoveCooldownLimitsDuplicates(t *testing.T) {
	cfg := testConfig()
	cfg.CooldownFrames = 3
	d := NewDetector(cfg)
	warmUp(d, cfg)

	// Nose drifting +30px per frame: displacement vs 5 frames ago exceeds
	// the 20px threshold on every one of 5 consecutive frames.
	var moves int
	for i := 1; i <= 5; i++ {
		for _, e := range d.Detect(lm(4, 120+float64(i)*30, 15), 0) {
			if e.Kind == MoveRight {
				moves++
			}
		}
	}
	if moves != 2 {
		t.Errorf("got %d move_right events in 5 triggering frames with cooldown 3, want 2", moves)
	}
}

func TestMoveDirectionAndMagnitude(t *testing.T) {
	cfg := testConfig()
	d := NewDetector(cfg)
	warmUp(d, cfg)

	events := d.Detect(lm(4, 120-30, 15), 0)
	if len(events) != 1 || events[0].Kind != MoveLeft {
		t.Fatalf("got %v, want one move_left", kinds(events))
	}
	if events[0].Magnitude >= 0 {
		t.Errorf("move_left magnitude = %v, want negative", events[0].Magnitude)
	}

	d.Reset()
	warmUp(d, cfg)
	events = d.Detect(lm(4, 120+30, 15), 0)
	if len(events) != 1 || events[0].Kind != MoveRight {
		t.Fatalf("got %v, want one move_right", kinds(events))
	}
	if events[0].Magnitude <= 0 {
		t.Errorf("move_right magnitude = %v, want positive", events[0].Magnitude)
	}
}

func TestSmile(t *testing.T) {
	cfg := testConfig()
	d := NewDetector(cfg)
	warmUp(d, cfg)

	// Baseline span 30px; 36px is a 1.2x ratio, above the 1.15 threshold.
	events := d.Detect(lm(4, 120, 18), 0)
	if len(events) != 1 || events[0].Kind != Smile {
		t.Fatalf("got %v, want one smile", kinds(events))
	}

	// Below threshold: nothing.
	d.Reset()
	warmUp(d, cfg)
	if events := d.Detect(lm(4, 120, 16), 0); len(events) != 0 {
		t.Errorf("sub-threshold span emitted %v", kinds(events))
	}
}

func TestDistanceChange(t *testing.T) {
	cfg := testConfig()
	d := NewDetector(cfg)

	for i := 0; i < cfg.WindowSize; i++ {
		d.Detect(lmEyes(40), 0)
	}

	events := d.Detect(lmEyes(46), 0) // +15% inter-eye distance
	if len(events) != 1 || events[0].Kind != Closer {
		t.Fatalf("got %v, want one face_closer", kinds(events))
	}
	if events[0].Magnitude <= 0 {
		t.Errorf("closer magnitude = %v, want positive", events[0].Magnitude)
	}

	d.Reset()
	for i := 0; i < cfg.WindowSize; i++ {
		d.Detect(lmEyes(40), 0)
	}
	events = d.Detect(lmEyes(34), 0) // -15%
	if len(events) != 1 || events[0].Kind != Farther {
		t.Fatalf("got %v, want one face_farther", kinds(events))
	}
	if events[0].Magnitude >= 0 {
		t.Errorf("farther magnitude = %v, want negative", events[0].Magnitude)
	}
}

func TestDegenerateGeometrySkipped(t *testing.T) {
	cfg := testConfig()
	d := NewDetector(cfg)
	warmUp(d, cfg)

	// Zero-width mouth and coincident eyes: metrics unavailable, no
	// events, no crash.
	degenerate := frame.Landmarks{
		{X: 100, Y: 100},
		{X: 100, Y: 100},
		{X: 120, Y: 130},
		{X: 120, Y: 160},
		{X: 120, Y: 160},
	}
	if events := d.Detect(degenerate, 0); len(events) != 0 {
		t.Errorf("degenerate frame emitted %v", kinds(events))
	}

	// NaN coordinates are also just "unavailable".
	bad := lm(4, math.NaN(), 15)
	if events := d.Detect(bad, 0); len(events) != 0 {
		t.Errorf("NaN frame emitted %v", kinds(events))
	}
}

func TestWrongLandmarkCountIgnored(t *testing.T) {
	d := NewDetector(testConfig())
	if events := d.Detect(frame.Landmarks{{X: 1, Y: 1}}, 0); events != nil {
		t.Errorf("short landmark set emitted %v", kinds(events))
	}
}

func TestResetClearsHistory(t *testing.T) {
	cfg := testConfig()
	d := NewDetector(cfg)
	warmUp(d, cfg)

	d.Reset()

	// Immediately after reset the window is empty again: a triggering
	// frame must be suppressed.
	if events := d.Detect(lm(4, 200, 18), 0); len(events) != 0 {
		t.Errorf("post-reset frame emitted %v", kinds(events))
	}
}

func TestIndependentCooldownsPerKind(t *testing.T) {
	cfg := testConfig()
	d := NewDetector(cfg)
	warmUp(d, cfg)

	// A frame that both smiles and moves: both kinds fire, neither
	// cooldown blocks the other.
	events := d.Detect(lm(4, 120+30, 18), 0)
	got := map[Kind]bool{}
	for _, e := range events {
		got[e.Kind] = true
	}
	if !got[Smile] || !got[MoveRight] {
		t.Errorf("got %v, want smile and move_right together", kinds(events))
	}
}
