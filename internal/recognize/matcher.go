// Package recognize matches observation embeddings against enrolled
// identity templates using cosine distance.
package recognize

import (
	"fmt"
	"math"

	"github.com/kozaktomas/face-tracker/internal/frame"
	"github.com/kozaktomas/face-tracker/internal/identity"
)

// Result is the outcome of matching one embedding against one template.
// Derived value, never stored.
type Result struct {
	// Distance is the cosine distance in [0, 2]; 0 means identical.
	Distance float64
	// Confidence is 1 - distance, clamped to [0, 1].
	Confidence float64
	// Accept is true when Distance <= the threshold (inclusive).
	Accept bool
}

// CosineDistance computes the cosine distance between two vectors
// Returns a value between 0 (identical) and 2 (opposite)
// Cosine distance = 1 - cosine similarity
func CosineDistance(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 2.0 // Maximum distance for invalid input
	}

	var dotProduct, normA, normB float64
	for i := range a {
		dotProduct += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}

	if normA == 0 || normB == 0 {
		return 2.0 // Maximum distance for zero vectors
	}

	similarity := dotProduct / (math.Sqrt(normA) * math.Sqrt(normB))
	// Clamp to [-1, 1] to handle floating point errors
	if similarity > 1 {
		similarity = 1
	}
	if similarity < -1 {
		similarity = -1
	}

	return 1 - similarity
}

// Match compares an observation embedding against a template's centroid.
// The embedding must already be L2-normalized; a failing norm returns the
// frame package's invalid-input error instead of silently renormalizing,
// so upstream pipeline bugs surface early. Pure function of its inputs.
func Match(embedding []float32, tmpl *identity.Template, distanceThreshold float64) (Result, error) {
	if n := frame.Norm(embedding); math.Abs(n-1) > 0.01 {
		return Result{}, fmt.Errorf("%w: |v| = %.4f", frame.ErrNotNormalized, n)
	}
	if len(embedding) != tmpl.Dim() {
		return Result{}, fmt.Errorf("%w: got %d, want %d", frame.ErrBadDimension, len(embedding), tmpl.Dim())
	}

	dist := CosineDistance(embedding, tmpl.Centroid)
	conf := 1 - dist
	if conf < 0 {
		conf = 0
	}
	return Result{
		Distance:   dist,
		Confidence: conf,
		Accept:     dist <= distanceThreshold,
	}, nil
}

// MatchBest matches every observation against the template and returns the
// index of the best-scoring (lowest distance) observation along with its
// result. Observations that fail the input contract are skipped. Returns
// index -1 when no observation could be matched.
func MatchBest(observations []frame.Observation, tmpl *identity.Template, distanceThreshold float64) (int, Result) {
	best := -1
	bestResult := Result{Distance: math.Inf(1)}
	for i, obs := range observations {
		r, err := Match(obs.Embedding, tmpl, distanceThreshold)
		if err != nil {
			continue
		}
		if r.Distance < bestResult.Distance {
			best = i
			bestResult = r
		}
	}
	return best, bestResult
}
