// Package sqlitestorage implements the storage.Backend interface using an
// in-memory SQLite database with queued batch writes and periodic disk dumps
// via VACUUM INTO.
package sqlitestorage

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/OCAP2/markertracker/internal/config"
	"github.com/OCAP2/markertracker/internal/database"
	"github.com/OCAP2/markertracker/internal/model"
	"github.com/OCAP2/markertracker/internal/model/convert"
	"github.com/OCAP2/markertracker/internal/queue"
	"github.com/OCAP2/markertracker/pkg/core"
	"github.com/google/uuid"

	"gorm.io/gorm"
)

// ErrNoSession is returned when data arrives outside a session
var ErrNoSession = errors.New("no active session")

const defaultFlushInterval = 2 * time.Second

// maxQueuedRows caps each write queue; the oldest rows are dropped past it.
const maxQueuedRows = 100_000

// queues holds all the write queues for batch DB insertion.
type queues struct {
	Sightings   *queue.Queue[model.MarkerSighting]
	Snapshots   *queue.Queue[model.Snapshot]
	Performance *queue.Queue[model.TrackerPerformance]
}

func newQueues() *queues {
	return &queues{
		Sightings:   queue.NewBounded[model.MarkerSighting](maxQueuedRows),
		Snapshots:   queue.NewBounded[model.Snapshot](maxQueuedRows),
		Performance: queue.NewBounded[model.TrackerPerformance](maxQueuedRows),
	}
}

// Backend stores tracking data in an in-memory SQLite database.
type Backend struct {
	cfg    config.SQLiteConfig
	log    *slog.Logger
	db     *gorm.DB
	queues *queues

	sessionID atomic.Pointer[string]
	lastWrite atomic.Int64 // nanoseconds

	stopChan  chan struct{}
	wg        sync.WaitGroup
	closeOnce sync.Once
	closeErr  error
}

// New creates a new SQLite storage backend. Nothing is opened until Init.
func New(cfg config.SQLiteConfig, logger *slog.Logger) *Backend {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.FlushInterval <= 0 {
		cfg.FlushInterval = defaultFlushInterval
	}
	return &Backend{
		cfg: cfg,
		log: logger.With("component", "sqlite"),
	}
}

// Init opens a private in-memory database, migrates the schema and starts
// the writer and dump goroutines.
func (b *Backend) Init() error {
	db, err := database.OpenMemory("markertracker-" + uuid.NewString())
	if err != nil {
		return fmt.Errorf("failed to create in-memory SQLite DB: %w", err)
	}
	if err := database.Migrate(db); err != nil {
		return err
	}

	b.db = db
	b.queues = newQueues()
	b.stopChan = make(chan struct{})

	b.wg.Add(1)
	go b.writerLoop()

	if b.cfg.Path != "" && b.cfg.DumpInterval > 0 {
		b.wg.Add(1)
		go b.dumpLoop()
	}

	return nil
}

// Close stops the background goroutines, flushes the queues, writes a final
// dump and closes the database. Safe to call more than once.
func (b *Backend) Close() error {
	b.closeOnce.Do(func() {
		if b.db == nil {
			return
		}
		close(b.stopChan)
		b.wg.Wait()

		b.flush()
		if b.cfg.Path != "" {
			if err := database.VacuumInto(b.db, b.cfg.Path); err != nil {
				b.closeErr = err
			}
		}

		sqlDB, err := b.db.DB()
		if err != nil {
			b.closeErr = errors.Join(b.closeErr, err)
			return
		}
		b.closeErr = errors.Join(b.closeErr, sqlDB.Close())
	})
	return b.closeErr
}

func (b *Backend) currentSession() (string, bool) {
	id := b.sessionID.Load()
	if id == nil {
		return "", false
	}
	return *id, true
}

// StartSession inserts the session row synchronously so every later row can
// reference it.
func (b *Backend) StartSession(s *core.Session) error {
	gormObj := convert.CoreToSession(*s)
	if err := b.db.Create(&gormObj).Error; err != nil {
		return fmt.Errorf("failed to insert session: %w", err)
	}
	id := s.ID
	b.sessionID.Store(&id)
	return nil
}

// EndSession flushes pending rows, stamps the end time and dumps to disk.
func (b *Backend) EndSession() error {
	id, ok := b.currentSession()
	if !ok {
		return ErrNoSession
	}

	b.flush()
	if err := b.db.Model(&model.Session{}).Where("id = ?", id).Update("end_time", time.Now()).Error; err != nil {
		return fmt.Errorf("failed to close session: %w", err)
	}
	b.sessionID.Store(nil)

	if b.cfg.Path == "" {
		return nil
	}
	return b.dump()
}

// AddMarker inserts a marker synchronously (not queued) because markers are
// low-volume and need immediate ID assignment for the MarkerCache.
func (b *Backend) AddMarker(m *core.TrackedMarker) error {
	id, ok := b.currentSession()
	if !ok {
		return ErrNoSession
	}

	m.SessionID = id
	gormObj := convert.CoreToMarker(*m)
	if err := b.db.Create(&gormObj).Error; err != nil {
		return fmt.Errorf("failed to insert marker: %w", err)
	}
	m.ID = gormObj.ID
	return nil
}

// TouchMarker advances a marker's last-seen time; older times are ignored.
func (b *Backend) TouchMarker(id uint, seen time.Time) error {
	return b.db.Model(&model.Marker{}).
		Where("id = ? AND last_seen < ?", id, seen).
		Update("last_seen", seen).Error
}

// RecordSighting converts and queues a sighting.
func (b *Backend) RecordSighting(s *core.MarkerSighting) error {
	b.queues.Sightings.Push(convert.CoreToMarkerSighting(*s))
	return nil
}

// RecordSnapshot converts and queues a snapshot summary.
func (b *Backend) RecordSnapshot(s *core.SnapshotSummary) error {
	b.queues.Snapshots.Push(convert.CoreToSnapshot(*s))
	return nil
}

// RecordPerformance queues a status monitor sample.
func (b *Backend) RecordPerformance(p model.TrackerPerformance) error {
	b.queues.Performance.Push(p)
	return nil
}

// WriteQueueLengths reports the number of rows waiting for the writer.
func (b *Backend) WriteQueueLengths() model.WriteQueueLengths {
	return model.WriteQueueLengths{
		Sightings: uint32(b.queues.Sightings.Len()),
		Snapshots: uint32(b.queues.Snapshots.Len()),
	}
}

// GetLastDBWriteDuration returns the duration of the last write cycle.
func (b *Backend) GetLastDBWriteDuration() time.Duration {
	return time.Duration(b.lastWrite.Load())
}

// writeQueue writes all items from a queue to the database in one
// transaction. If the insert or the commit fails the items go back on the
// queue for the next cycle.
func writeQueue[T any](db *gorm.DB, q *queue.Queue[T], name string, log *slog.Logger, prepare func([]T)) error {
	if q.Empty() {
		return nil
	}

	items := q.Drain()
	if prepare != nil {
		prepare(items)
	}

	tx := db.Begin()
	if tx.Error != nil {
		q.Requeue(items)
		log.Error("Error starting transaction", "table", name, "count", len(items), "error", tx.Error)
		return tx.Error
	}
	if err := tx.Create(&items).Error; err != nil {
		tx.Rollback()
		q.Requeue(items)
		log.Error("Error creating rows", "table", name, "count", len(items), "error", err)
		return err
	}
	if err := tx.Commit().Error; err != nil {
		q.Requeue(items)
		log.Error("Error committing rows", "table", name, "count", len(items), "error", err)
		return err
	}
	return nil
}

// flush drains every queue once.
func (b *Backend) flush() {
	start := time.Now()
	sessionID, _ := b.currentSession()

	writeQueue(b.db, b.queues.Sightings, "marker sightings", b.log, func(items []model.MarkerSighting) {
		for i := range items {
			if items[i].SessionID == "" {
				items[i].SessionID = sessionID
			}
		}
	})
	writeQueue(b.db, b.queues.Snapshots, "snapshots", b.log, func(items []model.Snapshot) {
		for i := range items {
			if items[i].SessionID == "" {
				items[i].SessionID = sessionID
			}
		}
	})
	writeQueue(b.db, b.queues.Performance, "tracker performances", b.log, nil)

	b.lastWrite.Store(int64(time.Since(start)))
}

// writerLoop periodically drains queues into the DB.
func (b *Backend) writerLoop() {
	defer b.wg.Done()
	ticker := time.NewTicker(b.cfg.FlushInterval)
	defer ticker.Stop()

	for {
		select {
		case <-b.stopChan:
			return
		case <-ticker.C:
			b.flush()
		}
	}
}

// dumpLoop periodically dumps the in-memory SQLite database to disk via VACUUM INTO.
// VACUUM INTO creates a point-in-time snapshot, so no pause mechanism is needed.
func (b *Backend) dumpLoop() {
	defer b.wg.Done()
	ticker := time.NewTicker(b.cfg.DumpInterval)
	defer ticker.Stop()

	for {
		select {
		case <-b.stopChan:
			return
		case <-ticker.C:
			if err := b.dump(); err != nil {
				b.log.Error("Error dumping to disk", "error", err)
			}
		}
	}
}

func (b *Backend) dump() error {
	start := time.Now()
	if err := database.VacuumInto(b.db, b.cfg.Path); err != nil {
		return err
	}
	b.log.Debug("Dumped to disk", "path", b.cfg.Path, "duration", time.Since(start))
	return nil
}
