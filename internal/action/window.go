package action

import "math"

// sample holds the scalar metrics derived from one frame's landmarks.
// Metrics that could not be computed for the frame are NaN.
type sample struct {
	aperture  float64 // vertical eye offset / inter-eye distance
	interEye  float64 // inter-eye pixel distance
	mouthSpan float64 // mouth-corner span in pixels
	noseX     float64 // horizontal nose position in pixels
}

// window is a bounded rolling buffer of recent samples. Oldest samples are
// overwritten once the buffer is full.
type window struct {
	samples []sample
	size    int
}

func newWindow(size int) *window {
	return &window{size: size, samples: make([]sample, 0, size)}
}

func (w *window) push(s sample) {
	if len(w.samples) == w.size {
		copy(w.samples, w.samples[1:])
		w.samples[len(w.samples)-1] = s
		return
	}
	w.samples = append(w.samples, s)
}

func (w *window) full() bool {
	return len(w.samples) == w.size
}

func (w *window) reset() {
	w.samples = w.samples[:0]
}

// baseline returns the mean of a metric over the window, skipping NaN
// entries, and whether enough valid entries existed to call it a baseline.
func (w *window) baseline(get func(sample) float64) (float64, bool) {
	var sum float64
	var n int
	for _, s := range w.samples {
		v := get(s)
		if math.IsNaN(v) {
			continue
		}
		sum += v
		n++
	}
	if n < w.size/2 || n == 0 {
		return 0, false
	}
	return sum / float64(n), true
}

// lookback returns the metric value from n samples ago, false when the
// window does not reach that far or the value is NaN.
func (w *window) lookback(get func(sample) float64, n int) (float64, bool) {
	idx := len(w.samples) - n
	if idx < 0 || idx >= len(w.samples) {
		return 0, false
	}
	v := get(w.samples[idx])
	if math.IsNaN(v) {
		return 0, false
	}
	return v, true
}
