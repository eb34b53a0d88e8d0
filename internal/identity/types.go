// Package identity holds enrolled identity templates and the store they are
// loaded from. Templates are read once at session start and immutable for
// the session's lifetime.
package identity

import (
	"errors"
	"fmt"

	"github.com/kozaktomas/face-tracker/internal/frame"
)

// ErrNotFound is returned when the requested identity is not enrolled.
var ErrNotFound = errors.New("identity not found")

// Template is one enrolled identity: a unique name and one or more
// L2-normalized embedding samples. Centroid is the mean of the samples,
// re-normalized to unit length; matching always runs against the centroid
// so results are reproducible regardless of sample count.
type Template struct {
	Name     string
	Samples  [][]float32
	Centroid []float32
}

// NewTemplate builds a template from enrollment samples and precomputes the
// centroid. All samples must share the same dimensionality.
func NewTemplate(name string, samples [][]float32) (*Template, error) {
	if name == "" {
		return nil, errors.New("template name is required")
	}
	if len(samples) == 0 {
		return nil, fmt.Errorf("template %q has no embedding samples", name)
	}
	dim := len(samples[0])
	if dim == 0 {
		return nil, fmt.Errorf("template %q has an empty embedding sample", name)
	}
	for i, s := range samples {
		if len(s) != dim {
			return nil, fmt.Errorf("template %q sample %d has dim %d, want %d", name, i, len(s), dim)
		}
	}

	centroid := make([]float64, dim)
	for _, s := range samples {
		for i, x := range s {
			centroid[i] += float64(x)
		}
	}
	out := make([]float32, dim)
	for i := range centroid {
		out[i] = float32(centroid[i] / float64(len(samples)))
	}
	// Mean of unit vectors is shorter than unit; re-normalize so the
	// matcher's unit-norm assumption holds.
	n := frame.Norm(out)
	if n == 0 {
		return nil, fmt.Errorf("template %q centroid is the zero vector", name)
	}
	for i := range out {
		out[i] = float32(float64(out[i]) / n)
	}

	return &Template{Name: name, Samples: samples, Centroid: out}, nil
}

// Dim returns the embedding dimensionality of the template.
func (t *Template) Dim() int {
	return len(t.Centroid)
}
