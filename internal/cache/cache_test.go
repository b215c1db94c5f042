package cache

import (
	"sync"
	"testing"
	"time"

	"github.com/OCAP2/markertracker/pkg/core"
	"github.com/stretchr/testify/assert"
)

var t0 = time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)

func poseAt(x float64) core.Pose {
	return core.Pose{Position: core.Position3D{X: x}, Orientation: core.IdentityQuaternion}
}

func TestPoseCache_Observe(t *testing.T) {
	c := NewPoseCache(3, 0)

	got := c.Observe("QR-1", poseAt(1), t0)
	assert.InDelta(t, 1.0, got.Position.X, 1e-9, "first sighting is returned as is")

	c.Observe("QR-1", poseAt(2), t0.Add(time.Second))
	got = c.Observe("QR-1", poseAt(3), t0.Add(2*time.Second))
	assert.InDelta(t, 2.0, got.Position.X, 1e-9)

	got = c.Observe("QR-1", poseAt(7), t0.Add(3*time.Second))
	assert.InDelta(t, 4.0, got.Position.X, 1e-9, "window drops the oldest sample")

	got = c.Observe("QR-2", poseAt(-1), t0.Add(3*time.Second))
	assert.InDelta(t, -1.0, got.Position.X, 1e-9, "payloads are smoothed independently")
	assert.Equal(t, 2, c.Len())
}

func TestPoseCache_Expiry(t *testing.T) {
	c := NewPoseCache(4, 5*time.Second)

	c.Observe("QR-1", poseAt(10), t0)
	c.Observe("QR-2", poseAt(0), t0.Add(4*time.Second))

	got := c.Observe("QR-2", poseAt(0), t0.Add(6*time.Second))
	assert.InDelta(t, 0.0, got.Position.X, 1e-9)
	assert.Equal(t, 1, c.Len(), "QR-1 expired")

	got = c.Observe("QR-1", poseAt(2), t0.Add(6*time.Second))
	assert.InDelta(t, 2.0, got.Position.X, 1e-9, "expired payload starts a fresh window")
}

func TestPoseCache_Reset(t *testing.T) {
	c := NewPoseCache(4, 0)
	c.Observe("QR-1", poseAt(1), t0)
	c.Reset()
	assert.Equal(t, 0, c.Len())
}

func TestPoseCache_Concurrent(t *testing.T) {
	c := NewPoseCache(8, time.Minute)
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			c.Observe("QR-shared", poseAt(float64(i)), t0.Add(time.Duration(i)*time.Millisecond))
		}(i)
	}
	wg.Wait()
	assert.Equal(t, 1, c.Len())
}
