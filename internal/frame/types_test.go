package frame

import (
	"errors"
	"math"
	"testing"
)

func unitVec(dim int) []float32 {
	v := make([]float32, dim)
	val := float32(1.0 / math.Sqrt(float64(dim)))
	for i := range v {
		v[i] = val
	}
	return v
}

func fivePoints() Landmarks {
	return Landmarks{
		{X: 100, Y: 100}, // left eye
		{X: 140, Y: 100}, // right eye
		{X: 120, Y: 130}, // nose
		{X: 105, Y: 160}, // left mouth
		{X: 135, Y: 160}, // right mouth
	}
}

func TestObservationValidate(t *testing.T) {
	tests := []struct {
		name      string
		landmarks Landmarks
		embedding []float32
		dim       int
		wantErr   error
	}{
		{
			name:      "valid observation",
			landmarks: fivePoints(),
			embedding: unitVec(512),
			dim:       512,
			wantErr:   nil,
		},
		{
			name:      "too few landmarks",
			landmarks: fivePoints()[:3],
			embedding: unitVec(512),
			dim:       512,
			wantErr:   ErrBadLandmarks,
		},
		{
			name:      "too many landmarks",
			landmarks: append(fivePoints(), Point{X: 1, Y: 1}),
			embedding: unitVec(512),
			dim:       512,
			wantErr:   ErrBadLandmarks,
		},
		{
			name:      "wrong dimension",
			landmarks: fivePoints(),
			embedding: unitVec(128),
			dim:       512,
			wantErr:   ErrBadDimension,
		},
		{
			name:      "not normalized",
			landmarks: fivePoints(),
			embedding: []float32{1, 1, 1, 1},
			dim:       4,
			wantErr:   ErrNotNormalized,
		},
		{
			name:      "zero vector",
			landmarks: fivePoints(),
			embedding: make([]float32, 512),
			dim:       512,
			wantErr:   ErrNotNormalized,
		},
		{
			name:      "dimension check skipped when dim is zero",
			landmarks: fivePoints(),
			embedding: unitVec(128),
			dim:       0,
			wantErr:   nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			obs := Observation{Landmarks: tt.landmarks, Embedding: tt.embedding}
			err := obs.Validate(tt.dim)
			if tt.wantErr == nil {
				if err != nil {
					t.Fatalf("Validate() = %v, want nil", err)
				}
				return
			}
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("Validate() = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestBBoxCenter(t *testing.T) {
	b := BBox{X: 100, Y: 50, Width: 40, Height: 60}
	c := b.Center()
	if c.X != 120 || c.Y != 80 {
		t.Errorf("Center() = (%v, %v), want (120, 80)", c.X, c.Y)
	}
	if b.Area() != 2400 {
		t.Errorf("Area() = %v, want 2400", b.Area())
	}
}

func TestBBoxCenterDist(t *testing.T) {
	a := BBox{X: 0, Y: 0, Width: 10, Height: 10}
	b := BBox{X: 30, Y: 40, Width: 10, Height: 10}
	if got := a.CenterDist(b); math.Abs(got-50) > 1e-9 {
		t.Errorf("CenterDist() = %v, want 50", got)
	}
}

func TestNorm(t *testing.T) {
	if got := Norm(unitVec(512)); math.Abs(got-1) > 1e-6 {
		t.Errorf("Norm(unit) = %v, want 1", got)
	}
	if got := Norm([]float32{3, 4}); math.Abs(got-5) > 1e-6 {
		t.Errorf("Norm([3 4]) = %v, want 5", got)
	}
}
