package monitor

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/OCAP2/markertracker/internal/dispatcher"
	"github.com/OCAP2/markertracker/internal/model"
	"github.com/OCAP2/markertracker/internal/storage"
	"github.com/OCAP2/markertracker/internal/tracker"
	"github.com/OCAP2/markertracker/internal/worker"
)

const defaultInterval = time.Second

// StatusSource reports tracker state. *tracker.Manager satisfies it.
type StatusSource interface {
	Status() tracker.Status
}

// DispatchStats reports event handler counters. *dispatcher.Dispatcher
// satisfies it.
type DispatchStats interface {
	Stats() map[string]dispatcher.Stats
}

// Dependencies holds all dependencies for the monitor service
type Dependencies struct {
	Logger        *slog.Logger
	Tracker       StatusSource
	Dispatcher    DispatchStats
	WorkerManager *worker.Manager
	Backend       storage.Backend
	SessionID     func() string
	StatusFile    string
	Interval      time.Duration
}

// Status is the document written to the status file.
type Status struct {
	Time        time.Time               `json:"time"`
	SessionID   string                  `json:"sessionId"`
	Tracker     tracker.Status          `json:"tracker"`
	WriteQueues model.WriteQueueLengths `json:"writeQueues"`
	LastWriteMs float32                 `json:"lastWriteMs"`

	Handlers map[string]dispatcher.Stats `json:"handlers,omitempty"`
}

// Service manages status monitoring
type Service struct {
	deps      Dependencies
	isRunning bool
	mu        sync.RWMutex
	stopChan  chan struct{}
	done      chan struct{}
}

// NewService creates a new monitor service
func NewService(deps Dependencies) *Service {
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	if deps.Interval <= 0 {
		deps.Interval = defaultInterval
	}
	if deps.SessionID == nil {
		deps.SessionID = func() string { return "" }
	}
	return &Service{
		deps:     deps,
		stopChan: make(chan struct{}),
	}
}

// IsRunning returns whether the status monitor is running
func (s *Service) IsRunning() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.isRunning
}

// GetProgramStatus returns the current status and the matching performance row.
func (s *Service) GetProgramStatus() (Status, model.TrackerPerformance) {
	status := Status{
		Time:      time.Now(),
		SessionID: s.deps.SessionID(),
		Tracker:   s.deps.Tracker.Status(),
	}
	if q, ok := s.deps.Backend.(storage.QueueReporter); ok {
		status.WriteQueues = q.WriteQueueLengths()
	}
	if s.deps.Dispatcher != nil {
		status.Handlers = s.deps.Dispatcher.Stats()
	}
	if s.deps.WorkerManager != nil {
		status.LastWriteMs = float32(s.deps.WorkerManager.GetLastDBWriteDuration().Microseconds()) / 1000
	}

	perf := model.TrackerPerformance{
		Time:               status.Time,
		SessionID:          status.SessionID,
		DiscoveryEnabled:   status.Tracker.DiscoveryEnabled,
		SnapshotsRequested: uint64(status.Tracker.SnapshotsRequested),
		SnapshotsCompleted: uint64(status.Tracker.SnapshotsCompleted),
		Errors:             uint64(status.Tracker.Errors),
		LastBatchSize:      uint16(status.Tracker.LastBatchSize),
		AverageLatencyMs:   float32(status.Tracker.AverageLatency.Microseconds()) / 1000,
		LastWriteMs:        status.LastWriteMs,
		WriteQueueLengths:  status.WriteQueues,
	}
	return status, perf
}

// Start starts the status monitor goroutine
func (s *Service) Start() error {
	s.mu.Lock()
	if s.isRunning {
		s.mu.Unlock()
		return nil
	}

	var statusFile *os.File
	if s.deps.StatusFile != "" {
		if err := os.MkdirAll(filepath.Dir(s.deps.StatusFile), 0o755); err != nil {
			s.mu.Unlock()
			return fmt.Errorf("failed to create status directory: %w", err)
		}
		f, err := os.Create(s.deps.StatusFile)
		if err != nil {
			s.mu.Unlock()
			return fmt.Errorf("failed to create status file: %w", err)
		}
		statusFile = f
	}

	s.isRunning = true
	s.stopChan = make(chan struct{})
	s.done = make(chan struct{})
	stop, done := s.stopChan, s.done
	s.mu.Unlock()

	go func() {
		defer close(done)
		defer func() {
			s.mu.Lock()
			s.isRunning = false
			s.mu.Unlock()
		}()
		if statusFile != nil {
			defer statusFile.Close()
		}

		logger := s.deps.Logger
		logger.Debug("Starting status monitor goroutine", "interval", s.deps.Interval)

		ticker := time.NewTicker(s.deps.Interval)
		defer ticker.Stop()

		for {
			select {
			case <-stop:
				return
			case <-ticker.C:
			}

			status, perf := s.GetProgramStatus()

			if statusFile != nil {
				if err := writeStatus(statusFile, status); err != nil {
					logger.Error("Error writing status file", "error", err)
				}
			}

			if perf.SessionID == "" {
				continue
			}
			if rec, ok := s.deps.Backend.(storage.PerformanceRecorder); ok {
				if err := rec.RecordPerformance(perf); err != nil {
					logger.Error("Error recording performance", "error", err)
				}
			}
		}
	}()

	return nil
}

// writeStatus replaces the file contents with the indented status document.
func writeStatus(f *os.File, status Status) error {
	data, err := json.MarshalIndent(status, "", "  ")
	if err != nil {
		return err
	}
	if err := f.Truncate(0); err != nil {
		return err
	}
	if _, err := f.Seek(0, 0); err != nil {
		return err
	}
	_, err = f.Write(append(data, '\n'))
	return err
}

// Stop stops the status monitor and waits for the goroutine to exit.
func (s *Service) Stop() {
	s.mu.Lock()
	if !s.isRunning {
		s.mu.Unlock()
		return
	}
	close(s.stopChan)
	done := s.done
	s.isRunning = false
	s.mu.Unlock()
	<-done
}
