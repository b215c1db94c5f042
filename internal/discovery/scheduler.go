// Package discovery decides when a new discovery snapshot may be requested.
package discovery

import (
	"sync/atomic"
	"time"

	"github.com/OCAP2/markertracker/pkg/spatial"
)

// DefaultCooldown is the minimum gap between two snapshot requests.
const DefaultCooldown = time.Second

// Scheduler tracks the outstanding snapshot future and the cooldown deadline.
// Only SetEnabled and Enabled may be called from other goroutines; the rest
// belongs to the poll loop.
type Scheduler struct {
	enabled  atomic.Bool
	cooldown time.Duration

	outstanding spatial.Future
	pending     bool
	nextAllowed time.Time
}

// New creates a Scheduler. The first request is allowed immediately.
func New(enabled bool, cooldown time.Duration) *Scheduler {
	if cooldown <= 0 {
		cooldown = DefaultCooldown
	}
	s := &Scheduler{cooldown: cooldown}
	s.enabled.Store(enabled)
	return s
}

// SetEnabled toggles discovery. It takes effect on the next Due call.
func (s *Scheduler) SetEnabled(enabled bool) {
	s.enabled.Store(enabled)
}

// Enabled reports the current discovery flag.
func (s *Scheduler) Enabled() bool {
	return s.enabled.Load()
}

// Due reports whether a new request should be issued at now: nothing is
// outstanding, discovery is enabled and the cooldown deadline has passed.
func (s *Scheduler) Due(now time.Time) bool {
	return !s.pending && s.enabled.Load() && now.After(s.nextAllowed)
}

// Issued records f as outstanding and starts the cooldown at now.
func (s *Scheduler) Issued(f spatial.Future, now time.Time) {
	s.outstanding = f
	s.pending = true
	s.nextAllowed = now.Add(s.cooldown)
}

// Postpone starts the cooldown at now without recording a request. Used when
// the request itself failed so the next attempt waits a full window.
func (s *Scheduler) Postpone(now time.Time) {
	s.nextAllowed = now.Add(s.cooldown)
}

// Outstanding returns the pending future, if any.
func (s *Scheduler) Outstanding() (spatial.Future, bool) {
	return s.outstanding, s.pending
}

// Clear empties the outstanding slot. The cooldown deadline is kept.
func (s *Scheduler) Clear() {
	s.outstanding = 0
	s.pending = false
}

// NextAllowed returns the cooldown deadline.
func (s *Scheduler) NextAllowed() time.Time {
	return s.nextAllowed
}

// Cooldown returns the configured gap between requests.
func (s *Scheduler) Cooldown() time.Duration {
	return s.cooldown
}
