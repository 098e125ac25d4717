package lod

import "time"

// DefaultWindow is the number of frames averaged by a FrameTimer.
const DefaultWindow = 60

// FrameTimer keeps a rolling average of the most recent frame durations.
type FrameTimer struct {
	samples []float64 // ring buffer of frame times in ms
	next    int
	filled  int
	sum     float64
}

// NewFrameTimer creates a timer averaging over window frames.
func NewFrameTimer(window int) *FrameTimer {
	if window <= 0 {
		window = DefaultWindow
	}
	return &FrameTimer{samples: make([]float64, window)}
}

// Observe records one frame duration.
func (ft *FrameTimer) Observe(d time.Duration) {
	ms := float64(d.Microseconds()) / 1000.0
	ft.sum -= ft.samples[ft.next]
	ft.samples[ft.next] = ms
	ft.sum += ms
	ft.next = (ft.next + 1) % len(ft.samples)
	if ft.filled < len(ft.samples) {
		ft.filled++
	}
}

// AverageMs returns the mean of the recorded frame times, or 0 before the
// first observation.
func (ft *FrameTimer) AverageMs() float64 {
	if ft.filled == 0 {
		return 0
	}
	return ft.sum / float64(ft.filled)
}

// Reset discards all samples.
func (ft *FrameTimer) Reset() {
	for i := range ft.samples {
		ft.samples[i] = 0
	}
	ft.next, ft.filled, ft.sum = 0, 0, 0
}
