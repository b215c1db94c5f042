// Package database opens the SQLite databases that hold tracking sessions and
// writes their on-disk dumps.
package database

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/OCAP2/markertracker/internal/model"
	"github.com/glebarez/sqlite"
	"github.com/rs/zerolog"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// DumpExt is the extension of session dump files.
const DumpExt = ".db"

var errNoDumpPath = errors.New("dump path not set")

var pragmas = []string{
	"PRAGMA user_version = 1",
	"PRAGMA journal_mode = MEMORY",
	"PRAGMA synchronous = OFF",
	"PRAGMA cache_size = -32000",
	"PRAGMA temp_store = MEMORY",
	"PRAGMA page_size = 32768",
}

// MemoryDSN names a shared-cache in-memory database. Distinct names give
// distinct databases within one process.
func MemoryDSN(name string) string {
	return "file:" + name + "?mode=memory&cache=shared"
}

// Open opens the SQLite file at path, creating it if needed.
func Open(path string) (*gorm.DB, error) {
	return open(path, false)
}

// OpenMemory opens the named in-memory database. It is limited to a single
// connection so writers never see a locked table, and skips the prepared
// statement cache, which would need a second connection while a transaction
// holds the first.
func OpenMemory(name string) (*gorm.DB, error) {
	return open(MemoryDSN(name), true)
}

func open(dsn string, memory bool) (*gorm.DB, error) {
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		PrepareStmt:            !memory,
		SkipDefaultTransaction: true,
		CreateBatchSize:        2000,
		Logger:                 logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, err
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	if memory {
		sqlDB.SetMaxOpenConns(1)
	}

	for _, p := range pragmas {
		if err := db.Exec(p).Error; err != nil {
			sqlDB.Close()
			return nil, fmt.Errorf("%s: %w", p, err)
		}
	}
	return db, nil
}

// Migrate creates or updates every table in model.DatabaseModels.
func Migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(model.DatabaseModels...); err != nil {
		return fmt.Errorf("failed to migrate schema: %w", err)
	}
	return nil
}

// VacuumInto writes a point-in-time copy of db to path. The copy is built
// next to path and renamed over it, so readers never see a partial dump.
func VacuumInto(db *gorm.DB, path string) error {
	if path == "" {
		return errNoDumpPath
	}

	tmp := path + ".tmp"
	if err := os.Remove(tmp); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("error removing stale dump: %w", err)
	}
	if err := db.Exec("VACUUM INTO ?", "file:"+tmp).Error; err != nil {
		return fmt.Errorf("error dumping database: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("error replacing dump: %w", err)
	}
	return nil
}

// ListDumps returns the dump files in dir, sorted by name.
func ListDumps(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}

	var paths []string
	for _, e := range entries {
		if e.Type().IsRegular() && strings.HasSuffix(e.Name(), DumpExt) {
			paths = append(paths, filepath.Join(dir, e.Name()))
		}
	}
	sort.Strings(paths)
	return paths, nil
}

// Manager holds an open file database for offline inspection.
type Manager struct {
	DB *gorm.DB

	sqlDB *sql.DB
	log   zerolog.Logger
}

func NewManager(log zerolog.Logger) *Manager {
	return &Manager{log: log}
}

// Connect opens and pings the database at path.
func (m *Manager) Connect(path string) error {
	db, err := Open(path)
	if err != nil {
		return fmt.Errorf("failed to open SQLite DB: %w", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		return fmt.Errorf("failed to access sql interface: %w", err)
	}
	if err := sqlDB.Ping(); err != nil {
		sqlDB.Close()
		return fmt.Errorf("failed to validate connection: %w", err)
	}

	m.DB, m.sqlDB = db, sqlDB
	m.log.Debug().Str("path", path).Msg("Opened SQLite DB")
	return nil
}

// Valid reports whether Connect succeeded and Close has not run.
func (m *Manager) Valid() bool {
	return m.sqlDB != nil
}

// Close closes the connection pool.
func (m *Manager) Close() error {
	if m.sqlDB == nil {
		return nil
	}
	err := m.sqlDB.Close()
	m.DB, m.sqlDB = nil, nil
	return err
}
