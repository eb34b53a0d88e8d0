package lock

import (
	"io"
	"math"
	"testing"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/kozaktomas/face-tracker/internal/frame"
	"github.com/kozaktomas/face-tracker/internal/identity"
)

func testLogger() *logrus.Logger {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return log
}

func targetTemplate(t *testing.T) *identity.Template {
	t.Helper()
	sample := make([]float32, 8)
	sample[0] = 1
	tmpl, err := identity.NewTemplate("alice", [][]float32{sample})
	if err != nil {
		t.Fatalf("NewTemplate() error: %v", err)
	}
	return tmpl
}

// obsAt builds an observation at the given cosine distance from the target
// template, with a bounding box centered at cx.
func obsAt(dist float64, cx float64) frame.Observation {
	sim := 1 - dist
	emb := make([]float32, 8)
	emb[0] = float32(sim)
	emb[1] = float32(math.Sqrt(1 - sim*sim))
	return frame.Observation{
		BBox:      frame.BBox{X: cx - 50, Y: 100, Width: 100, Height: 100},
		Embedding: emb,
	}
}

func defaultConfig() Config {
	return Config{
		DistanceThreshold: 0.5,
		AcquireConfidence: 0.65,
		GracePeriod:       5,
	}
}

func TestAcquireRequiresConfidence(t *testing.T) {
	m := NewMachine(defaultConfig(), targetTemplate(t), testLogger())
	now := time.Now()

	// Distance 0.45 accepts but confidence 0.55 < 0.65: no acquisition.
	u := m.Step([]frame.Observation{obsAt(0.45, 320)}, now)
	if u.State != Searching || u.Acquired {
		t.Fatalf("borderline match acquired a lock: %+v", u)
	}

	// Distance 0.2 -> confidence 0.8: acquired.
	u = m.Step([]frame.Observation{obsAt(0.2, 320)}, now)
	if u.State != Locked || !u.Acquired {
		t.Fatalf("confident match did not acquire: %+v", u)
	}
	if m.Target() != "alice" {
		t.Errorf("Target() = %q, want alice", m.Target())
	}
	if m.LockedAt() != now {
		t.Errorf("LockedAt() = %v, want %v", m.LockedAt(), now)
	}
}

func TestBorderlineMatchContinuesLock(t *testing.T) {
	m := NewMachine(defaultConfig(), targetTemplate(t), testLogger())
	now := time.Now()

	m.Step([]frame.Observation{obsAt(0.2, 320)}, now)

	// The same borderline match that failed acquisition must continue
	// an existing lock.
	u := m.Step([]frame.Observation{obsAt(0.45, 325)}, now)
	if u.State != Locked {
		t.Fatalf("borderline match did not continue lock, state %v", u.State)
	}
	if m.Misses() != 0 {
		t.Errorf("Misses() = %d, want 0", m.Misses())
	}
}

func TestGracePeriodRecovery(t *testing.T) {
	cfg := defaultConfig()
	cfg.GracePeriod = 4
	m := NewMachine(cfg, targetTemplate(t), testLogger())
	now := time.Now()

	m.Step([]frame.Observation{obsAt(0.2, 320)}, now)
	if m.State() != Locked {
		t.Fatal("setup: lock not acquired")
	}

	// gracePeriod-1 missed frames: Lost every time, never Searching.
	for i := 0; i < cfg.GracePeriod-1; i++ {
		u := m.Step(nil, now)
		if u.State != Lost {
			t.Fatalf("miss %d: state = %v, want lost", i+1, u.State)
		}
	}

	// Last known box must survive the lost window.
	if _, ok := m.BBox(); !ok {
		t.Error("BBox() cleared while lost")
	}

	// Target reappears: back to Locked without passing Searching.
	u := m.Step([]frame.Observation{obsAt(0.3, 330)}, now)
	if u.State != Locked {
		t.Fatalf("recovery: state = %v, want locked", u.State)
	}
	if u.Acquired {
		t.Error("recovery must not count as a fresh acquisition")
	}
}

func TestGracePeriodExpiry(t *testing.T) {
	cfg := defaultConfig()
	cfg.GracePeriod = 3
	m := NewMachine(cfg, targetTemplate(t), testLogger())
	now := time.Now()

	m.Step([]frame.Observation{obsAt(0.2, 320)}, now)

	var last Update
	for i := 0; i < cfg.GracePeriod; i++ {
		last = m.Step(nil, now)
	}
	if last.State != Searching || !last.Released {
		t.Fatalf("after %d misses: %+v, want released searching", cfg.GracePeriod, last)
	}

	// Lock state fully cleared.
	if m.Target() != "" {
		t.Errorf("Target() = %q, want empty", m.Target())
	}
	if _, ok := m.BBox(); ok {
		t.Error("BBox() still set after release")
	}
	if m.Misses() != 0 {
		t.Errorf("Misses() = %d, want 0", m.Misses())
	}
	if !m.LockedAt().IsZero() {
		t.Error("LockedAt() not cleared")
	}
}

func TestSpatialContinuityPreferred(t *testing.T) {
	m := NewMachine(defaultConfig(), targetTemplate(t), testLogger())
	now := time.Now()

	m.Step([]frame.Observation{obsAt(0.2, 300)}, now)

	// Two accepting faces: the farther one matches better, the nearer one
	// must still win on spatial continuity.
	far := obsAt(0.1, 600)
	near := obsAt(0.4, 310)
	u := m.Step([]frame.Observation{far, near}, now)
	if u.State != Locked {
		t.Fatalf("state = %v, want locked", u.State)
	}
	if u.Observation.BBox.Center().X != near.BBox.Center().X {
		t.Errorf("selected box at %v, want the spatially continuous one at %v",
			u.Observation.BBox.Center().X, near.BBox.Center().X)
	}
}

func TestFirstLockPrefersConfidence(t *testing.T) {
	m := NewMachine(defaultConfig(), targetTemplate(t), testLogger())

	weak := obsAt(0.3, 100)
	strong := obsAt(0.1, 500)
	u := m.Step([]frame.Observation{weak, strong}, time.Now())
	if u.State != Locked {
		t.Fatalf("state = %v, want locked", u.State)
	}
	if u.Observation.BBox.Center().X != strong.BBox.Center().X {
		t.Error("first lock should pick the higher-confidence observation")
	}
}

func TestManualRelease(t *testing.T) {
	m := NewMachine(defaultConfig(), targetTemplate(t), testLogger())
	m.Step([]frame.Observation{obsAt(0.2, 320)}, time.Now())

	if !m.Release() {
		t.Fatal("Release() = false while locked")
	}
	if m.State() != Searching {
		t.Errorf("State() = %v, want searching", m.State())
	}
	if m.Release() {
		t.Error("Release() while searching should be a no-op")
	}
}

func TestNoiseRejection(t *testing.T) {
	cfg := defaultConfig()
	cfg.MinFaceWidth = 60
	m := NewMachine(cfg, targetTemplate(t), testLogger())

	tiny := obsAt(0.1, 320)
	tiny.BBox.Width = 30
	tiny.BBox.Height = 30
	u := m.Step([]frame.Observation{tiny}, time.Now())
	if u.State != Searching {
		t.Errorf("tiny detection acquired a lock: %v", u.State)
	}

	stretched := obsAt(0.1, 320)
	stretched.BBox.Width = 300
	stretched.BBox.Height = 80
	u = m.Step([]frame.Observation{stretched}, time.Now())
	if u.State != Searching {
		t.Errorf("implausible aspect ratio acquired a lock: %v", u.State)
	}
}
