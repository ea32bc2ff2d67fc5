// Package store persists generated analyses in a SQLite-backed key/value
// table with per-key expiry. Entries are addressed by the external key shape
// "analysis:{YYYY-MM-DD}:{fingerprint}" with a parallel ":timestamp" key
// holding the ISO-8601 generation instant; both keys share one TTL. An
// expired entry is indistinguishable from one that never existed.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"adpulse/internal/core"
	"adpulse/internal/logger"
)

// Store represents the SQLite-based analysis cache.
type Store struct {
	db         *sql.DB
	path       string
	defaultTTL time.Duration
}

// NewStore creates a new store instance with a SQLite database under dataDir.
// defaultTTL applies to manual overwrites; generation writes carry their own TTL.
func NewStore(dataDir string, defaultTTL time.Duration) (*Store, error) {
	if err := os.MkdirAll(dataDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	dbPath := filepath.Join(dataDir, "adpulse.db")
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	store := &Store{
		db:         db,
		path:       dbPath,
		defaultTTL: defaultTTL,
	}

	if err := store.initialize(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	return store, nil
}

// initialize creates the necessary tables.
func (s *Store) initialize() error {
	table := `
	CREATE TABLE IF NOT EXISTS cache_entries (
		key TEXT PRIMARY KEY,
		value TEXT NOT NULL,
		expires_at DATETIME NOT NULL
	);`

	if _, err := s.db.Exec(table); err != nil {
		return fmt.Errorf("failed to create table: %w", err)
	}
	return nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// EntryKey returns the external key for an analysis entry.
func EntryKey(day time.Time, fingerprint string) string {
	return fmt.Sprintf("analysis:%s:%s", core.DayString(day), fingerprint)
}

// timestampKey returns the parallel key holding the generation instant.
func timestampKey(day time.Time, fingerprint string) string {
	return EntryKey(day, fingerprint) + ":timestamp"
}

// Get retrieves the analysis for (day, fingerprint). A miss (absent or
// expired) returns (nil, nil); errors indicate a store failure, not a miss.
func (s *Store) Get(ctx context.Context, day time.Time, fingerprint string) (*core.CacheEntry, error) {
	query := `SELECT value FROM cache_entries WHERE key = ? AND expires_at > ?`
	now := time.Now().UTC()

	var text string
	err := s.db.QueryRowContext(ctx, query, EntryKey(day, fingerprint), now).Scan(&text)
	if err == sql.ErrNoRows {
		return nil, nil // cache miss
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read analysis entry: %w", err)
	}

	entry := &core.CacheEntry{
		Day:         core.Day(day),
		Fingerprint: fingerprint,
		Text:        text,
	}

	// The timestamp row shares the entry's TTL, so a hit above should have a
	// companion row. Tolerate its absence or a read failure rather than
	// failing the lookup; the entry just carries a zero GeneratedAt.
	var stamp string
	err = s.db.QueryRowContext(ctx, query, timestampKey(day, fingerprint), now).Scan(&stamp)
	if err != nil && err != sql.ErrNoRows {
		logger.Warn("Failed to read analysis timestamp, returning entry without it",
			"key", EntryKey(day, fingerprint), "error", err.Error())
	}
	if err == nil {
		if parsed, perr := time.Parse(time.RFC3339, stamp); perr == nil {
			entry.GeneratedAt = parsed
		}
	}

	return entry, nil
}

// Put writes the analysis for (day, fingerprint) with the given TTL, also
// recording the generation instant. An existing entry is overwritten.
func (s *Store) Put(ctx context.Context, day time.Time, fingerprint, text string, ttl time.Duration) error {
	now := time.Now().UTC()
	expires := now.Add(ttl)

	query := `INSERT OR REPLACE INTO cache_entries (key, value, expires_at) VALUES (?, ?, ?)`

	if _, err := s.db.ExecContext(ctx, query, EntryKey(day, fingerprint), text, expires); err != nil {
		return fmt.Errorf("failed to write analysis entry: %w", err)
	}
	if _, err := s.db.ExecContext(ctx, query, timestampKey(day, fingerprint), now.Format(time.RFC3339), expires); err != nil {
		return fmt.Errorf("failed to write analysis timestamp: %w", err)
	}
	return nil
}

// Overwrite replaces the analysis for (day, fingerprint) with manually edited
// text, using the store's default TTL. Intended for the override path.
func (s *Store) Overwrite(ctx context.Context, day time.Time, fingerprint, text string) error {
	return s.Put(ctx, day, fingerprint, text, s.defaultTTL)
}

// ListWindow scans the trailing windowDays calendar days (today first) and
// returns the entries that hit, most recent first. A lookup error on an
// individual day is logged and treated as a miss for that day; partial
// results are valid.
func (s *Store) ListWindow(ctx context.Context, fingerprint string, windowDays int) ([]core.CacheEntry, error) {
	log := logger.Get()
	today := core.Day(time.Now())

	var entries []core.CacheEntry
	for i := 0; i < windowDays; i++ {
		day := today.AddDate(0, 0, -i)
		entry, err := s.Get(ctx, day, fingerprint)
		if err != nil {
			log.Warn("Skipping day in history scan", "day", core.DayString(day), "error", err.Error())
			continue
		}
		if entry != nil {
			entries = append(entries, *entry)
		}
	}
	return entries, nil
}

// Purge deletes expired rows and returns the number removed.
func (s *Store) Purge(ctx context.Context) (int64, error) {
	result, err := s.db.ExecContext(ctx, `DELETE FROM cache_entries WHERE expires_at <= ?`, time.Now().UTC())
	if err != nil {
		return 0, fmt.Errorf("failed to purge expired entries: %w", err)
	}
	removed, err := result.RowsAffected()
	if err != nil {
		return 0, err
	}
	return removed, nil
}

// Stats returns the number of live (unexpired) rows in the cache.
func (s *Store) Stats(ctx context.Context) (int64, error) {
	var count int64
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM cache_entries WHERE expires_at > ?`, time.Now().UTC()).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count cache entries: %w", err)
	}
	return count, nil
}

// Ping verifies the database connection, for health checks.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}
