// Package frame defines the per-frame observation records handed to the
// tracking core by the external detection/landmark/embedding pipeline.
// Observations are ephemeral: they live for one frame's processing and are
// never persisted.
package frame

import (
	"errors"
	"fmt"
	"math"
)

// Landmark indices within an observation's 5-point landmark set.
// The order is fixed by the upstream alignment model.
const (
	LeftEye = iota
	RightEye
	NoseTip
	LeftMouth
	RightMouth

	LandmarkCount = 5
)

// Sentinel errors for observation preconditions. Both mark the observation
// as invalid input: the offending observation is discarded and the frame
// continues with the remaining ones.
var (
	ErrBadLandmarks  = errors.New("landmark set must contain exactly 5 points")
	ErrNotNormalized = errors.New("embedding is not L2-normalized")
	ErrBadDimension  = errors.New("embedding has wrong dimensionality")
)

// normTolerance is the allowed deviation of an embedding's L2 norm from 1.
const normTolerance = 0.01

// Point is a 2D pixel coordinate.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Dist returns the Euclidean distance to another point.
func (p Point) Dist(q Point) float64 {
	return math.Hypot(p.X-q.X, p.Y-q.Y)
}

// Landmarks is the 5-point landmark set of a detected face, in the order
// left eye, right eye, nose tip, left mouth corner, right mouth corner.
type Landmarks []Point

// Valid reports whether the set has exactly the expected point count.
func (l Landmarks) Valid() bool {
	return len(l) == LandmarkCount
}

// BBox is an axis-aligned bounding box in pixel space.
type BBox struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// Center returns the center point of the box.
func (b BBox) Center() Point {
	return Point{X: b.X + b.Width/2, Y: b.Y + b.Height/2}
}

// Area returns the box area in square pixels.
func (b BBox) Area() float64 {
	return b.Width * b.Height
}

// CenterDist returns the distance between the centers of two boxes.
func (b BBox) CenterDist(other BBox) float64 {
	return b.Center().Dist(other.Center())
}

// Observation is one detected face in one frame: bounding box, 5-point
// landmark set and an L2-normalized embedding vector.
type Observation struct {
	BBox      BBox      `json:"bbox"`
	Landmarks Landmarks `json:"landmarks"`
	Embedding []float32 `json:"embedding"`
}

// Validate checks the inbound contract: exactly 5 landmarks, the expected
// embedding dimensionality (skipped when dim <= 0) and a unit-norm
// embedding. The matcher relies on unit norm to compute cosine distance as
// 1 - dot; a failing norm surfaces an upstream bug instead of being
// silently renormalized here.
func (o Observation) Validate(dim int) error {
	if !o.Landmarks.Valid() {
		return fmt.Errorf("%w: got %d", ErrBadLandmarks, len(o.Landmarks))
	}
	if dim > 0 && len(o.Embedding) != dim {
		return fmt.Errorf("%w: got %d, want %d", ErrBadDimension, len(o.Embedding), dim)
	}
	n := Norm(o.Embedding)
	if math.Abs(n-1) > normTolerance {
		return fmt.Errorf("%w: |v| = %.4f", ErrNotNormalized, n)
	}
	return nil
}

// Norm returns the L2 norm of a vector.
func Norm(v []float32) float64 {
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	return math.Sqrt(sum)
}
