package worker

import (
	"context"
	"errors"
	"time"

	"github.com/OCAP2/markertracker/internal/dispatcher"
	"github.com/OCAP2/markertracker/internal/tracker"
	"github.com/OCAP2/markertracker/pkg/core"
	"github.com/OCAP2/markertracker/pkg/spatial"
)

// Poller is the part of tracker.Manager driven by the loop.
type Poller interface {
	Poll(space spatial.Space, t spatial.Time) ([]core.MarkerRecord, bool, error)
}

// Publisher receives loop output. *dispatcher.Dispatcher satisfies it.
type Publisher interface {
	Dispatch(e dispatcher.Event) (any, error)
}

// LoopOptions configure RunLoop.
type LoopOptions struct {
	Interval time.Duration
	Space    spatial.Space // reference space markers are located in
	Now      func() time.Time
}

const defaultTickInterval = 16 * time.Millisecond

// RunLoop polls p once per interval until ctx is done or the tracker is
// closed. Marker and pose caches start empty. Completed snapshots are
// published as CommandSnapshot with a core.MarkerBatch payload, poll errors
// as CommandError with the error.
func (m *Manager) RunLoop(ctx context.Context, p Poller, pub Publisher, opts LoopOptions) error {
	if opts.Interval <= 0 {
		opts.Interval = defaultTickInterval
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}

	m.reset()
	ticker := time.NewTicker(opts.Interval)
	defer ticker.Stop()

	m.deps.Logger.Info("Tracking loop started", "interval", opts.Interval, "space", opts.Space)
	defer m.deps.Logger.Info("Tracking loop stopped")

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}

		if stop := m.tick(p, pub, opts); stop {
			return nil
		}
	}
}

// tick runs one poll. It reports true once the tracker is closed.
func (m *Manager) tick(p Poller, pub Publisher, opts LoopOptions) bool {
	now := opts.Now()
	records, ok, err := p.Poll(opts.Space, spatial.Time(now.UnixNano()))
	if errors.Is(err, tracker.ErrClosed) {
		return true
	}

	var e dispatcher.Event
	switch {
	case err != nil:
		e = dispatcher.Event{Command: CommandError, Payload: err, Timestamp: now}
	case ok:
		e = dispatcher.Event{
			Command:   CommandSnapshot,
			Payload:   core.MarkerBatch{Time: now, Records: records},
			Timestamp: now,
		}
	default:
		return false
	}

	if _, err := pub.Dispatch(e); err != nil {
		if errors.Is(err, dispatcher.ErrClosed) {
			return true
		}
		m.deps.Logger.Error("Failed to publish", "command", e.Command, "error", err)
	}
	return false
}
