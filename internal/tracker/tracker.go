// Package tracker owns a marker-tracking spatial context and runs the
// per-tick discovery loop against it.
package tracker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/OCAP2/markertracker/internal/discovery"
	"github.com/OCAP2/markertracker/internal/future"
	"github.com/OCAP2/markertracker/internal/query"
	"github.com/OCAP2/markertracker/internal/smoothing"
	"github.com/OCAP2/markertracker/pkg/core"
	"github.com/OCAP2/markertracker/pkg/spatial"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Capability is the marker capability enabled on every context.
const Capability = spatial.CapabilityMarkerTrackingQRCode

// Components are enabled at context creation and requested by every
// snapshot and query.
var Components = []spatial.ComponentType{
	spatial.ComponentTypeBounded2D,
	spatial.ComponentTypeMarker,
}

// ErrClosed is returned by Poll after Close.
var ErrClosed = errors.New("tracker closed")

// Options configure a Manager.
type Options struct {
	InitialDiscovery bool
	Cooldown         time.Duration      // defaults to discovery.DefaultCooldown
	Wait             future.WaitOptions // context creation wait; zero uses future.DefaultWaitOptions
	LatencyWindow    int                // samples in the snapshot latency average
	Now              func() time.Time
	Logger           *slog.Logger
}

// Status is a point-in-time view of a Manager, safe to read from any goroutine.
type Status struct {
	DiscoveryEnabled   bool          `json:"discoveryEnabled"`
	Outstanding        bool          `json:"outstanding"`
	NextAllowed        time.Time     `json:"nextAllowed"`
	SnapshotsRequested int64         `json:"snapshotsRequested"`
	SnapshotsCompleted int64         `json:"snapshotsCompleted"`
	Errors             int64         `json:"errors"`
	LastBatchSize      int           `json:"lastBatchSize"`
	LastCompleted      time.Time     `json:"lastCompleted"`
	AverageLatency     time.Duration `json:"averageLatency"`
	LastError          string        `json:"lastError,omitempty"`
	Closed             bool          `json:"closed"`
}

// Manager owns one spatial context. Poll must be called from a single
// goroutine; SetDiscoveryEnabled, Status and Close may be called from any.
// Close waits for an in-flight Poll before destroying the context.
type Manager struct {
	api      spatial.SpatialEntityAPI
	poller   *future.Poller
	sched    *discovery.Scheduler
	pipeline *query.Pipeline
	handle   spatial.Context
	wait     future.WaitOptions
	logger   *slog.Logger
	now      func() time.Time

	// held for the whole of Poll and by Close around the destroy
	lifecycle sync.Mutex
	closeOnce sync.Once
	closed    atomic.Bool
	closeErr  error

	mu          sync.Mutex
	status      Status
	latency     *smoothing.Duration
	latencySize int
	issuedAt    time.Time

	requested metric.Int64Counter
	completed metric.Int64Counter
	failures  metric.Int64Counter
}

// New creates the spatial context, blocking until the runtime completes it.
// No context is left behind when New fails.
func New(ctx context.Context, session spatial.Session, opts Options) (*Manager, error) {
	ext := session.Extensions()
	if ext.SpatialEntity == nil {
		return nil, spatial.MissingExtension(spatial.ExtSpatialEntity)
	}
	if !ext.MarkerTracking {
		return nil, spatial.MissingExtension(spatial.ExtSpatialMarkerTracking)
	}
	if ext.Future == nil {
		return nil, spatial.MissingExtension(spatial.ExtFuture)
	}

	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Wait == (future.WaitOptions{}) {
		opts.Wait = future.DefaultWaitOptions
	}
	if opts.LatencyWindow <= 0 {
		opts.LatencyWindow = 10
	}

	m := &Manager{
		api:    ext.SpatialEntity,
		poller: future.NewPoller(session),
		sched:  discovery.New(opts.InitialDiscovery, opts.Cooldown),
		wait:   opts.Wait,
		logger: opts.Logger.With("component", "tracker"),
		now:    opts.Now,

		latencySize: opts.LatencyWindow,
	}
	if err := m.initMetrics(); err != nil {
		return nil, err
	}

	var err error
	m.pipeline, err = query.New(query.Dependencies{
		API:    m.api,
		Logger: m.logger,
	}, Capability, Components)
	if err != nil {
		return nil, err
	}

	m.handle, err = m.createContext(ctx, session)
	if err != nil {
		return nil, fmt.Errorf("create spatial context: %w", err)
	}

	m.logger.Info("spatial context created",
		"capability", Capability,
		"discovery", opts.InitialDiscovery,
		"cooldown", m.sched.Cooldown(),
	)
	return m, nil
}

func (m *Manager) createContext(ctx context.Context, session spatial.Session) (spatial.Context, error) {
	f, res := m.api.CreateSpatialContextAsync(session.Handle(), &spatial.ContextCreateInfo{
		CapabilityConfigs: []spatial.CapabilityConfig{{
			Capability:        Capability,
			EnabledComponents: Components,
		}},
	})
	if err := spatial.Check(spatial.OpCreateContextAsync, res); err != nil {
		return 0, err
	}

	if err := future.Wait(ctx, m.poller, f, m.wait); err != nil {
		return 0, err
	}

	completion, res := m.api.CreateSpatialContextComplete(session.Handle(), f)
	if err := spatial.Check(spatial.OpCreateContextComplete, res); err != nil {
		return 0, err
	}
	if err := spatial.Check(spatial.OpCreateContextComplete, completion.FutureResult); err != nil {
		return 0, err
	}
	return completion.Context, nil
}

func (m *Manager) initMetrics() error {
	var err error
	mt := meter()
	m.requested, err = mt.Int64Counter("tracker.snapshots.requested",
		metric.WithDescription("Discovery snapshots requested"),
	)
	if err != nil {
		return fmt.Errorf("create requested counter: %w", err)
	}
	m.completed, err = mt.Int64Counter("tracker.snapshots.completed",
		metric.WithDescription("Discovery snapshots completed and queried"),
	)
	if err != nil {
		return fmt.Errorf("create completed counter: %w", err)
	}
	m.failures, err = mt.Int64Counter("tracker.errors",
		metric.WithDescription("Errors reported by Poll"),
	)
	if err != nil {
		return fmt.Errorf("create errors counter: %w", err)
	}
	return nil
}

// SetDiscoveryEnabled toggles discovery. Safe to call from any goroutine; it
// takes effect on the next Poll.
func (m *Manager) SetDiscoveryEnabled(enabled bool) {
	m.sched.SetEnabled(enabled)
}

// Poll advances discovery by one tick. ok is false when there is no new data
// this tick; ok is true with an empty slice when a snapshot completed and
// held no reportable markers. Errors never tear down the context.
func (m *Manager) Poll(space spatial.Space, t spatial.Time) (records []core.MarkerRecord, ok bool, err error) {
	m.lifecycle.Lock()
	defer m.lifecycle.Unlock()
	if m.closed.Load() {
		return nil, false, ErrClosed
	}
	now := m.now()

	if m.sched.Due(now) {
		if err := m.request(now); err != nil {
			return nil, false, m.fail("request", err)
		}
	}

	f, pending := m.sched.Outstanding()
	if !pending {
		return nil, false, nil
	}

	ready, err := m.poller.Ready(f)
	if err != nil {
		m.sched.Clear()
		m.syncStatus()
		return nil, false, m.fail("poll", err)
	}
	if !ready {
		return nil, false, nil
	}

	m.sched.Clear()
	records, err = m.pipeline.Run(m.handle, f, space, t)
	if err != nil {
		m.syncStatus()
		return nil, false, m.fail("query", err)
	}

	m.completed.Add(context.Background(), 1)
	m.mu.Lock()
	m.status.SnapshotsCompleted++
	m.status.LastBatchSize = len(records)
	m.status.LastCompleted = now
	if elapsed := now.Sub(m.issuedAt); m.latency == nil {
		m.latency = smoothing.NewDuration(elapsed, m.latencySize)
	} else {
		m.latency.Submit(elapsed)
	}
	m.status.AverageLatency = m.latency.Average()
	m.mu.Unlock()
	m.syncStatus()

	m.logger.Debug("snapshot processed", "markers", len(records), "future", f)
	return records, true, nil
}

func (m *Manager) request(now time.Time) error {
	f, res := m.api.CreateSpatialDiscoverySnapshotAsync(m.handle, &spatial.SnapshotCreateInfo{
		ComponentTypes: Components,
	})
	if err := spatial.Check(spatial.OpCreateSnapshotAsync, res); err != nil {
		m.sched.Postpone(now)
		m.syncStatus()
		return err
	}
	m.sched.Issued(f, now)
	m.requested.Add(context.Background(), 1)

	m.mu.Lock()
	m.issuedAt = now
	m.status.SnapshotsRequested++
	m.mu.Unlock()
	m.syncStatus()
	return nil
}

func (m *Manager) fail(stage string, err error) error {
	m.failures.Add(context.Background(), 1, metric.WithAttributes(attribute.String("stage", stage)))
	m.mu.Lock()
	m.status.Errors++
	m.status.LastError = err.Error()
	m.mu.Unlock()
	m.logger.Error("poll failed", "stage", stage, "error", err)
	return fmt.Errorf("%s: %w", stage, err)
}

// syncStatus copies scheduler state into the shared status. Called only from
// the poll goroutine.
func (m *Manager) syncStatus() {
	_, pending := m.sched.Outstanding()
	next := m.sched.NextAllowed()
	m.mu.Lock()
	m.status.Outstanding = pending
	m.status.NextAllowed = next
	m.mu.Unlock()
}

// Outstanding reports whether a snapshot request is in flight.
func (m *Manager) Outstanding() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.status.Outstanding
}

// Status returns a copy of the manager's current state.
func (m *Manager) Status() Status {
	m.mu.Lock()
	s := m.status
	m.mu.Unlock()
	s.DiscoveryEnabled = m.sched.Enabled()
	s.Closed = m.closed.Load()
	return s
}

// Close destroys the spatial context. Only the first call reaches the runtime;
// later calls return the same result.
func (m *Manager) Close() error {
	m.closeOnce.Do(func() {
		m.lifecycle.Lock()
		defer m.lifecycle.Unlock()
		m.closed.Store(true)
		if err := spatial.Check(spatial.OpDestroyContext, m.api.DestroySpatialContext(m.handle)); err != nil {
			m.closeErr = fmt.Errorf("destroy spatial context: %w", err)
			m.logger.Error("failed to destroy spatial context", "error", err)
			return
		}
		m.logger.Info("spatial context destroyed")
	})
	return m.closeErr
}
