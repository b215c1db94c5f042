// Package smoothing provides sliding window averages for marker poses and
// timing statistics. Windows are not safe for concurrent use.
package smoothing

import (
	"math"
	"time"

	"github.com/OCAP2/markertracker/pkg/core"
)

// Window keeps the most recent samples up to a fixed size.
type Window[T any] struct {
	samples []T
	size    int
}

// NewWindow creates a window seeded with initial. A size below one is
// treated as one.
func NewWindow[T any](initial T, size int) *Window[T] {
	if size < 1 {
		size = 1
	}
	w := &Window[T]{samples: make([]T, 0, size), size: size}
	w.samples = append(w.samples, initial)
	return w
}

// Submit adds a sample, evicting the oldest one when the window is full.
func (w *Window[T]) Submit(sample T) {
	if len(w.samples) >= w.size {
		copy(w.samples, w.samples[1:])
		w.samples = w.samples[:len(w.samples)-1]
	}
	w.samples = append(w.samples, sample)
}

// Len returns the number of samples held.
func (w *Window[T]) Len() int {
	return len(w.samples)
}

// Latest returns the newest sample.
func (w *Window[T]) Latest() T {
	return w.samples[len(w.samples)-1]
}

// Duration averages time spans.
type Duration struct {
	*Window[time.Duration]
}

// NewDuration creates a duration window.
func NewDuration(initial time.Duration, size int) *Duration {
	return &Duration{NewWindow(initial, size)}
}

// Average returns the mean duration.
func (w *Duration) Average() time.Duration {
	var sum time.Duration
	for _, s := range w.samples {
		sum += s
	}
	return sum / time.Duration(len(w.samples))
}

// Position averages points component-wise.
type Position struct {
	*Window[core.Position3D]
}

// NewPosition creates a position window.
func NewPosition(initial core.Position3D, size int) *Position {
	return &Position{NewWindow(initial, size)}
}

// Average returns the centroid of the samples.
func (w *Position) Average() core.Position3D {
	var sum core.Position3D
	for _, s := range w.samples {
		sum.X += s.X
		sum.Y += s.Y
		sum.Z += s.Z
	}
	n := float64(len(w.samples))
	return core.Position3D{X: sum.X / n, Y: sum.Y / n, Z: sum.Z / n}
}

// Orientation averages unit quaternions. Samples are flipped into the
// hemisphere of the newest sample before summing, then the sum is normalized.
type Orientation struct {
	*Window[core.Quaternion]
}

// NewOrientation creates an orientation window.
func NewOrientation(initial core.Quaternion, size int) *Orientation {
	return &Orientation{NewWindow(initial, size)}
}

// Average returns the normalized mean rotation.
func (w *Orientation) Average() core.Quaternion {
	ref := w.Latest()
	var sum core.Quaternion
	for _, q := range w.samples {
		if dot(q, ref) < 0 {
			q = core.Quaternion{X: -q.X, Y: -q.Y, Z: -q.Z, W: -q.W}
		}
		sum.X += q.X
		sum.Y += q.Y
		sum.Z += q.Z
		sum.W += q.W
	}

	norm := math.Sqrt(dot(sum, sum))
	if norm == 0 {
		return ref
	}
	return core.Quaternion{X: sum.X / norm, Y: sum.Y / norm, Z: sum.Z / norm, W: sum.W / norm}
}

func dot(a, b core.Quaternion) float64 {
	return a.X*b.X + a.Y*b.Y + a.Z*b.Z + a.W*b.W
}

// Pose smooths position and orientation together.
type Pose struct {
	position    *Position
	orientation *Orientation
}

// NewPose creates a pose window seeded with initial.
func NewPose(initial core.Pose, size int) *Pose {
	return &Pose{
		position:    NewPosition(initial.Position, size),
		orientation: NewOrientation(initial.Orientation, size),
	}
}

// Submit adds a pose sample.
func (p *Pose) Submit(pose core.Pose) {
	p.position.Submit(pose.Position)
	p.orientation.Submit(pose.Orientation)
}

// Average returns the smoothed pose.
func (p *Pose) Average() core.Pose {
	return core.Pose{
		Position:    p.position.Average(),
		Orientation: p.orientation.Average(),
	}
}
