package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	_ "modernc.org/sqlite"

	"jobsieve/internal/config"
	"jobsieve/internal/services"
)

// Store is the single-writer embedded database holding jobs and the
// integrity, backup, and run records.
type Store struct {
	db      *sql.DB
	path    string
	writeMu sync.Mutex
	startup IntegrityCheck
	now     func() time.Time
}

// Options tunes connection-level settings.
type Options struct {
	BusyTimeout  time.Duration
	CacheSizeKiB int
	Synchronous  string
	Now          func() time.Time
}

// OptionsFromConfig derives connection options from configuration.
func OptionsFromConfig(cfg *config.Config) Options {
	return Options{
		BusyTimeout:  time.Duration(cfg.Store.BusyTimeoutMillis) * time.Millisecond,
		CacheSizeKiB: cfg.Store.CacheSizeKiB,
		Synchronous:  cfg.Store.Synchronous,
	}
}

// Open ensures directories exist and opens the configured jobs database.
func Open(cfg *config.Config) (*Store, error) {
	if err := cfg.EnsureDirectories(); err != nil {
		return nil, fmt.Errorf("ensure directories: %w", err)
	}
	return OpenPath(context.Background(), cfg.DatabasePath(), OptionsFromConfig(cfg))
}

// OpenPath opens the database at path. An existing file is verified with a
// read-only quick_check before anything writes to it; on failure no
// connection is kept and the returned error matches services.ErrIntegrity.
func OpenPath(ctx context.Context, path string, opts Options) (*Store, error) {
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	startup := IntegrityCheck{Type: CheckQuick, Status: CheckPassed, Detail: "new database", CheckedAt: now().UTC()}

	if info, err := os.Stat(path); err == nil && info.Size() > 0 {
		startup, err = QuickCheckFile(ctx, path)
		if err != nil {
			return nil, err
		}
		if startup.Status != CheckPassed {
			return nil, services.Wrap(services.ErrIntegrity, "store", "startup quick check",
				fmt.Sprintf("%s failed quick_check (%s); restore a snapshot with `jobsieve restore <backup>`", path, startup.Detail), nil)
		}
	} else if err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("stat database: %w", err)
	}

	db, err := sql.Open("sqlite", writerDSN(path, opts))
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	db.SetMaxOpenConns(4)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("connect sqlite db: %w", err)
	}

	store := &Store{db: db, path: path, startup: startup, now: now}
	if err := store.applyMigrations(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return store, nil
}

// writerDSN encodes the connection pragmas so every pooled connection gets
// them, not just the first.
func writerDSN(path string, opts Options) string {
	busy := opts.BusyTimeout
	if busy <= 0 {
		busy = 5 * time.Second
	}
	syncMode := strings.ToUpper(strings.TrimSpace(opts.Synchronous))
	if syncMode == "" {
		syncMode = "NORMAL"
	}
	params := url.Values{}
	params.Add("_pragma", "journal_mode(WAL)")
	params.Add("_pragma", "foreign_keys(1)")
	params.Add("_pragma", fmt.Sprintf("busy_timeout(%d)", busy.Milliseconds()))
	params.Add("_pragma", fmt.Sprintf("synchronous(%s)", syncMode))
	if opts.CacheSizeKiB > 0 {
		params.Add("_pragma", fmt.Sprintf("cache_size(-%d)", opts.CacheSizeKiB))
	}
	params.Set("_txlock", "immediate")
	return "file:" + path + "?" + params.Encode()
}

// readOnlyDSN opens path without write access.
func readOnlyDSN(path string) string {
	params := url.Values{}
	params.Set("mode", "ro")
	params.Add("_pragma", "busy_timeout(5000)")
	return "file:" + path + "?" + params.Encode()
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Path returns the database file location.
func (s *Store) Path() string {
	return s.path
}

// StartupCheck returns the quick check performed when the store was opened.
func (s *Store) StartupCheck() IntegrityCheck {
	return s.startup
}

// Ping verifies the connection is usable.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Sidecars lists the WAL and shared-memory files that accompany a database.
func Sidecars(path string) []string {
	return []string{path + "-wal", path + "-shm"}
}

func ensureDir(path string) error {
	dir := filepath.Dir(path)
	if dir == "" || dir == "." {
		return nil
	}
	return os.MkdirAll(dir, 0o755)
}
