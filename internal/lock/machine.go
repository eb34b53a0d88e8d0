// Package lock implements the identity-lock state machine. It consumes
// per-frame match results for candidate observations and decides which
// face, if any, is the tracked target this frame.
package lock

import (
	"time"

	"github.com/sirupsen/logrus"

	"github.com/kozaktomas/face-tracker/internal/frame"
	"github.com/kozaktomas/face-tracker/internal/identity"
	"github.com/kozaktomas/face-tracker/internal/recognize"
)

// State is the lock acquisition state.
type State string

const (
	// Searching means no lock is held; every frame's observations are
	// scanned for the selected target.
	Searching State = "searching"
	// Locked means a specific face is being tracked as the target.
	Locked State = "locked"
	// Lost means the target was locked but has been missed for fewer
	// than the grace-period count of consecutive frames.
	Lost State = "lost"
)

// Config holds the tunables of the state machine. The acquisition
// confidence may be stricter than the steady-state distance threshold so
// a borderline match never acquires a fresh lock but can keep an existing
// one alive.
type Config struct {
	// DistanceThreshold is the steady-state cosine distance accept
	// threshold (inclusive).
	DistanceThreshold float64
	// AcquireConfidence is the minimum match confidence required to
	// acquire a lock from Searching.
	AcquireConfidence float64
	// GracePeriod is the number of consecutive missed frames tolerated
	// before a lock is released.
	GracePeriod int
	// MinFaceWidth rejects detections narrower than this many pixels
	// before matching; shadows and shirt patterns show up as tiny boxes.
	// Zero disables the filter.
	MinFaceWidth float64
}

// Machine tracks exactly one target identity across frames. It is owned by
// the single goroutine running the per-frame loop and is not safe for
// concurrent use.
type Machine struct {
	cfg    Config
	target *identity.Template
	log    *logrus.Entry

	state      State
	misses     int
	bbox       frame.BBox
	hasBBox    bool
	confidence float64
	lockedAt   time.Time
}

// Update describes what the machine decided for one frame.
type Update struct {
	State State
	// Acquired is true when the lock transitioned into Locked from
	// Searching this frame; consumers reset per-lock history on it.
	Acquired bool
	// Released is true when the lock was cleared back to Searching.
	Released bool
	// Observation is the observation selected as the target this frame,
	// nil when no observation matched.
	Observation *frame.Observation
	// Match is the recognition result for the selected observation.
	Match recognize.Result
}

// NewMachine creates a machine for a target identity, starting in Searching.
func NewMachine(cfg Config, target *identity.Template, log *logrus.Logger) *Machine {
	return &Machine{
		cfg:    cfg,
		target: target,
		log:    log.WithField("target", target.Name),
		state:  Searching,
	}
}

// State returns the current state tag.
func (m *Machine) State() State {
	return m.state
}

// Target returns the tracked identity's name, empty when no target is held.
// The target name is part of the lock state: cleared on release.
func (m *Machine) Target() string {
	if m.state == Searching {
		return ""
	}
	return m.target.Name
}

// BBox returns the last known bounding box of the target, false when none
// is held. While Lost the box keeps the last known position so the
// movement mapper can continue pointing at it.
func (m *Machine) BBox() (frame.BBox, bool) {
	return m.bbox, m.hasBBox
}

// Confidence returns the match confidence of the last accepted frame.
func (m *Machine) Confidence() float64 {
	if m.state == Searching {
		return 0
	}
	return m.confidence
}

// Misses returns the consecutive-miss counter.
func (m *Machine) Misses() int {
	return m.misses
}

// LockedAt returns when the current lock was acquired; zero when unlocked.
func (m *Machine) LockedAt() time.Time {
	if m.state == Searching {
		return time.Time{}
	}
	return m.lockedAt
}

// DistanceThreshold returns the current steady-state accept threshold.
func (m *Machine) DistanceThreshold() float64 {
	return m.cfg.DistanceThreshold
}

// SetDistanceThreshold replaces the steady-state accept threshold. Takes
// effect from the next frame.
func (m *Machine) SetDistanceThreshold(v float64) {
	m.cfg.DistanceThreshold = v
}

// Step advances the machine by one frame given that frame's observations.
func (m *Machine) Step(observations []frame.Observation, now time.Time) Update {
	candidates, results := m.acceptedCandidates(observations)

	if len(candidates) == 0 {
		return m.missFrame()
	}

	switch m.state {
	case Searching:
		return m.tryAcquire(candidates, results, now)
	case Locked, Lost:
		return m.continueLock(candidates, results)
	}
	return Update{State: m.state}
}

// Release clears the lock back to Searching regardless of state. Used for
// the manual release request; a no-op while already Searching.
func (m *Machine) Release() bool {
	if m.state == Searching {
		return false
	}
	m.log.WithField("state", m.state).Info("lock released")
	m.clear()
	return true
}

// acceptedCandidates matches every valid observation against the target and
// keeps the accepting ones. Detections failing the noise filter are skipped
// before any matching runs.
func (m *Machine) acceptedCandidates(observations []frame.Observation) ([]frame.Observation, []recognize.Result) {
	var candidates []frame.Observation
	var results []recognize.Result
	for _, obs := range observations {
		if !m.validDetection(obs.BBox) {
			continue
		}
		r, err := recognize.Match(obs.Embedding, m.target, m.cfg.DistanceThreshold)
		if err != nil || !r.Accept {
			continue
		}
		candidates = append(candidates, obs)
		results = append(results, r)
	}
	return candidates, results
}

// validDetection rejects boxes that are too small or have implausible
// aspect ratios for a face.
func (m *Machine) validDetection(b frame.BBox) bool {
	if b.Width <= 0 || b.Height <= 0 {
		return false
	}
	if m.cfg.MinFaceWidth > 0 && (b.Width < m.cfg.MinFaceWidth || b.Height < m.cfg.MinFaceWidth) {
		return false
	}
	aspect := b.Width / b.Height
	return aspect >= 0.5 && aspect <= 2.0
}

func (m *Machine) missFrame() Update {
	if m.state == Searching {
		return Update{State: Searching}
	}

	m.misses++
	if m.misses >= m.cfg.GracePeriod {
		m.log.WithFields(logrus.Fields{
			"misses": m.misses,
			"grace":  m.cfg.GracePeriod,
		}).Info("lock lost, target gone")
		m.clear()
		return Update{State: Searching, Released: true}
	}

	m.state = Lost
	return Update{State: Lost}
}

func (m *Machine) tryAcquire(candidates []frame.Observation, results []recognize.Result, now time.Time) Update {
	// No previous box to anchor on: prefer the highest confidence.
	best := 0
	for i := range results {
		if results[i].Confidence > results[best].Confidence {
			best = i
		}
	}

	if results[best].Confidence < m.cfg.AcquireConfidence {
		// Borderline match; not enough to acquire.
		return Update{State: Searching}
	}

	m.state = Locked
	m.misses = 0
	m.bbox = candidates[best].BBox
	m.hasBBox = true
	m.confidence = results[best].Confidence
	m.lockedAt = now
	m.log.WithField("confidence", results[best].Confidence).Info("lock acquired")

	return Update{
		State:       Locked,
		Acquired:    true,
		Observation: &candidates[best],
		Match:       results[best],
	}
}

// continueLock keeps an existing lock alive. Among accepting observations
// the one geometrically nearest the previous bounding box wins: spatial
// continuity beats re-ranking by confidence when two similar faces are in
// frame.
func (m *Machine) continueLock(candidates []frame.Observation, results []recognize.Result) Update {
	best := 0
	if m.hasBBox {
		for i := range candidates {
			if candidates[i].BBox.CenterDist(m.bbox) < candidates[best].BBox.CenterDist(m.bbox) {
				best = i
			}
		}
	} else {
		for i := range results {
			if results[i].Confidence > results[best].Confidence {
				best = i
			}
		}
	}

	recovered := m.state == Lost
	m.state = Locked
	m.misses = 0
	m.bbox = candidates[best].BBox
	m.hasBBox = true
	m.confidence = results[best].Confidence
	if recovered {
		m.log.WithField("confidence", results[best].Confidence).Info("lock re-acquired")
	}

	return Update{
		State:       Locked,
		Observation: &candidates[best],
		Match:       results[best],
	}
}

func (m *Machine) clear() {
	m.state = Searching
	m.misses = 0
	m.bbox = frame.BBox{}
	m.hasBBox = false
	m.confidence = 0
	m.lockedAt = time.Time{}
}
