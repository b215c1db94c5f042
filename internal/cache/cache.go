package cache

import (
	"sync"
	"time"

	"github.com/OCAP2/markertracker/internal/smoothing"
	"github.com/OCAP2/markertracker/pkg/core"
)

// PoseCache keeps a smoothing window per marker payload so repeated
// sightings of the same code settle instead of jittering.
// Entries not seen for longer than the expiry are dropped on the next Observe.
type PoseCache struct {
	m      sync.Mutex
	window int
	expiry time.Duration
	poses  map[string]*poseEntry
}

type poseEntry struct {
	smoother *smoothing.Pose
	lastSeen time.Time
}

// NewPoseCache creates a cache averaging over window samples. A zero expiry
// keeps entries until Reset.
func NewPoseCache(window int, expiry time.Duration) *PoseCache {
	return &PoseCache{
		window: window,
		expiry: expiry,
		poses:  make(map[string]*poseEntry),
	}
}

// Observe submits a raw pose for payload and returns the smoothed pose.
func (c *PoseCache) Observe(payload string, pose core.Pose, at time.Time) core.Pose {
	c.m.Lock()
	defer c.m.Unlock()

	c.evict(at)

	e, ok := c.poses[payload]
	if !ok {
		e = &poseEntry{smoother: smoothing.NewPose(pose, c.window)}
		c.poses[payload] = e
	} else {
		e.smoother.Submit(pose)
	}
	e.lastSeen = at
	return e.smoother.Average()
}

// evict drops stale entries. Callers hold c.m.
func (c *PoseCache) evict(now time.Time) {
	if c.expiry <= 0 {
		return
	}
	for payload, e := range c.poses {
		if now.Sub(e.lastSeen) > c.expiry {
			delete(c.poses, payload)
		}
	}
}

// Len returns the number of payloads with a smoothing window.
func (c *PoseCache) Len() int {
	c.m.Lock()
	defer c.m.Unlock()
	return len(c.poses)
}

// Reset drops all smoothing state.
func (c *PoseCache) Reset() {
	c.m.Lock()
	defer c.m.Unlock()
	c.poses = make(map[string]*poseEntry)
}
