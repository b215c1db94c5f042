package main

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/OCAP2/markertracker/internal/cache"
	"github.com/OCAP2/markertracker/internal/config"
	"github.com/OCAP2/markertracker/internal/dispatcher"
	"github.com/OCAP2/markertracker/internal/future"
	"github.com/OCAP2/markertracker/internal/logging"
	"github.com/OCAP2/markertracker/internal/monitor"
	"github.com/OCAP2/markertracker/internal/simulator"
	"github.com/OCAP2/markertracker/internal/storage"
	"github.com/OCAP2/markertracker/internal/tracker"
	"github.com/OCAP2/markertracker/internal/worker"
	"github.com/OCAP2/markertracker/pkg/core"
	"github.com/google/uuid"
	"github.com/spf13/viper"
)

// trackingSpace is the reference space markers are located in. The simulator
// reports every pose in its single local space.
const trackingSpace = 1

// run tracks markers against the simulated runtime until ctx is done, then
// tears everything down in reverse order.
func run(ctx context.Context) (err error) {
	simCfg := config.GetSimulatorConfig()
	trackerCfg := config.GetTrackerConfig()

	rt := simulator.New(simulator.Config{
		ContextPolls:    simCfg.ContextPolls,
		SnapshotLatency: simCfg.SnapshotLatency,
	}, simulator.Row(simCfg.Payloads, simCfg.Spacing, simCfg.MarkerSize)...)
	Logger.Info("Simulated runtime ready", "markers", len(simCfg.Payloads))

	tr, err := tracker.New(ctx, rt, tracker.Options{
		InitialDiscovery: trackerCfg.InitialDiscovery,
		Cooldown:         trackerCfg.DiscoveryCooldown,
		Wait: future.WaitOptions{
			Interval: trackerCfg.CreatePollInterval,
			Timeout:  trackerCfg.CreateTimeout,
		},
		LatencyWindow: trackerCfg.LatencyWindow,
		Logger:        Logger,
	})
	if err != nil {
		return fmt.Errorf("failed to start tracker: %w", err)
	}
	activeTracker.Store(tr)
	defer func() {
		activeTracker.Store(nil)
		err = errors.Join(err, tr.Close())
	}()

	backend, err := initStorage()
	if err != nil {
		return err
	}
	defer func() {
		err = errors.Join(err, backend.Close())
	}()

	session := &core.Session{
		ID:        uuid.NewString(),
		StartTime: SessionStartTime,
		Runtime:   "simulator",
	}
	if err := backend.StartSession(session); err != nil {
		return fmt.Errorf("failed to start session: %w", err)
	}
	Logger.Info("Session started", "session", session.ID)

	eventDispatcher, err := dispatcher.New(logging.NewDispatcherLogger(newZerolog()))
	if err != nil {
		return fmt.Errorf("failed to create dispatcher: %w", err)
	}

	workerManager := worker.NewManager(worker.Dependencies{
		MarkerCache: cache.NewMarkerCache(),
		PoseCache:   cache.NewPoseCache(trackerCfg.SmoothingWindow, trackerCfg.SmoothingExpiry),
		Logger:      Logger,
	}, backend)
	workerManager.RegisterHandlers(eventDispatcher)

	if viper.ConfigFileUsed() != "" {
		config.Watch(func(cfg config.TrackerConfig) {
			Logger.Info("Config changed", "discovery", cfg.InitialDiscovery)
			SlogManager.SetLevel(viper.GetString("logLevel"))
			tr.SetDiscoveryEnabled(cfg.InitialDiscovery)
		})
	}

	var monitorService *monitor.Service
	if monitorCfg := config.GetMonitorConfig(); monitorCfg.Enabled {
		monitorService = monitor.NewService(monitor.Dependencies{
			Logger:        Logger,
			Tracker:       tr,
			Dispatcher:    eventDispatcher,
			WorkerManager: workerManager,
			Backend:       backend,
			SessionID:     func() string { return session.ID },
			StatusFile:    monitorCfg.StatusFile,
			Interval:      monitorCfg.Interval,
		})
		if err := monitorService.Start(); err != nil {
			Logger.Error("Failed to start status monitor", "error", err)
			monitorService = nil
		}
	}

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := workerManager.RunLoop(ctx, tr, eventDispatcher, worker.LoopOptions{
			Interval: trackerCfg.TickInterval,
			Space:    trackingSpace,
		}); err != nil {
			Logger.Error("Tracking loop failed", "error", err)
		}
	}()

	<-ctx.Done()
	Logger.Info("Shutting down")
	wg.Wait()
	eventDispatcher.Close()
	if monitorService != nil {
		monitorService.Stop()
	}

	if err := endSession(backend); err != nil {
		return err
	}
	payloads := workerManager.TrackedPayloads()
	Logger.Info("Session ended", "session", session.ID, "markers", len(payloads), "duration", time.Since(SessionStartTime).Round(time.Second))
	Logger.Debug("Tracked payloads", "payloads", payloads)
	return nil
}

func endSession(backend storage.Backend) error {
	if err := backend.EndSession(); err != nil {
		return fmt.Errorf("failed to end session: %w", err)
	}
	if exp, ok := backend.(storage.Exportable); ok {
		if path := exp.GetExportedFilePath(); path != "" {
			Logger.Info("Session exported", "path", path)
		}
	}
	return nil
}
