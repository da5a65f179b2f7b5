package cache

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	_ "modernc.org/sqlite"
)

// DefaultQueryTimeout bounds every I/O backend operation.
const DefaultQueryTimeout = 5 * time.Second

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS cache_entries (
	key        TEXT PRIMARY KEY,
	value      BLOB NOT NULL,
	expires_at INTEGER NOT NULL DEFAULT 0
);
CREATE INDEX IF NOT EXISTS idx_cache_entries_expires ON cache_entries(expires_at);
`

// SQLiteBackend persists entries in a local SQLite file. It is the
// persistent client tier: entries survive process restarts.
type SQLiteBackend struct {
	db           *sql.DB
	path         string
	queryTimeout time.Duration
	now          func() time.Time

	stop chan struct{}
	done chan struct{}
	once sync.Once
}

// NewSQLiteBackend opens (or creates) the database at path. Use ":memory:"
// for a throwaway store. sweep > 0 periodically purges expired rows.
func NewSQLiteBackend(path string, sweep time.Duration) (*SQLiteBackend, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("failed to create cache directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open cache database: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	ctx, cancel := context.WithTimeout(context.Background(), DefaultQueryTimeout)
	defer cancel()

	for _, pragma := range []string{"PRAGMA busy_timeout = 5000", "PRAGMA journal_mode = WAL"} {
		if _, err := db.ExecContext(ctx, pragma); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("failed to apply %q: %w", pragma, err)
		}
	}
	if _, err := db.ExecContext(ctx, sqliteSchema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to create cache schema: %w", err)
	}

	s := &SQLiteBackend{
		db:           db,
		path:         path,
		queryTimeout: DefaultQueryTimeout,
		now:          time.Now,
		stop:         make(chan struct{}),
		done:         make(chan struct{}),
	}
	if sweep > 0 {
		go s.sweeping(sweep)
	} else {
		close(s.done)
	}
	return s, nil
}

func (s *SQLiteBackend) Name() string { return "sqlite" }

// Path returns the database location.
func (s *SQLiteBackend) Path() string { return s.path }

func (s *SQLiteBackend) sweeping(interval time.Duration) {
	defer close(s.done)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-s.stop:
			return
		case <-ticker.C:
			_, _ = s.Purge(context.Background())
		}
	}
}

// Purge deletes rows past their backend expiry.
func (s *SQLiteBackend) Purge(ctx context.Context) (int64, error) {
	ctx, cancel := context.WithTimeout(ctx, s.queryTimeout)
	defer cancel()

	res, err := s.db.ExecContext(ctx,
		`DELETE FROM cache_entries WHERE expires_at > 0 AND expires_at < ?`,
		s.now().UnixMilli())
	if err != nil {
		return 0, fmt.Errorf("purge: %w", err)
	}
	return res.RowsAffected()
}

func (s *SQLiteBackend) Get(ctx context.Context, key string) ([]byte, bool, error) {
	ctx, cancel := context.WithTimeout(ctx, s.queryTimeout)
	defer cancel()

	var value []byte
	var expiresAt int64
	err := s.db.QueryRowContext(ctx,
		`SELECT value, expires_at FROM cache_entries WHERE key = ?`, key,
	).Scan(&value, &expiresAt)
	if err == sql.ErrNoRows {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("select %s: %w", key, err)
	}
	if expiresAt > 0 && s.now().UnixMilli() > expiresAt {
		if _, err := s.db.ExecContext(ctx,
			`DELETE FROM cache_entries WHERE key = ? AND expires_at = ?`, key, expiresAt); err != nil {
			return nil, false, fmt.Errorf("delete expired %s: %w", key, err)
		}
		return nil, false, nil
	}
	return value, true, nil
}

func (s *SQLiteBackend) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	ctx, cancel := context.WithTimeout(ctx, s.queryTimeout)
	defer cancel()

	var expiresAt int64
	if ttl > 0 {
		expiresAt = s.now().Add(ttl).UnixMilli()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO cache_entries (key, value, expires_at) VALUES (?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value, expires_at = excluded.expires_at`,
		key, value, expiresAt)
	if err != nil {
		return fmt.Errorf("upsert %s: %w", key, err)
	}
	return nil
}

func (s *SQLiteBackend) Delete(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	ctx, cancel := context.WithTimeout(ctx, s.queryTimeout)
	defer cancel()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx, `DELETE FROM cache_entries WHERE key = ?`)
	if err != nil {
		return fmt.Errorf("prepare delete: %w", err)
	}
	defer stmt.Close()

	for _, k := range keys {
		if _, err := stmt.ExecContext(ctx, k); err != nil {
			return fmt.Errorf("delete %s: %w", k, err)
		}
	}
	return tx.Commit()
}

func (s *SQLiteBackend) Keys(ctx context.Context, prefix string) ([]string, error) {
	ctx, cancel := context.WithTimeout(ctx, s.queryTimeout)
	defer cancel()

	var rows *sql.Rows
	var err error
	if prefix == "" {
		rows, err = s.db.QueryContext(ctx, `SELECT key FROM cache_entries ORDER BY key`)
	} else {
		rows, err = s.db.QueryContext(ctx,
			`SELECT key FROM cache_entries WHERE substr(key, 1, ?) = ? ORDER BY key`,
			utf8.RuneCountInString(prefix), prefix)
	}
	if err != nil {
		return nil, fmt.Errorf("list keys: %w", err)
	}
	defer rows.Close()

	var keys []string
	for rows.Next() {
		var k string
		if err := rows.Scan(&k); err != nil {
			return nil, fmt.Errorf("scan key: %w", err)
		}
		// substr compares characters; guard against collation surprises.
		if strings.HasPrefix(k, prefix) {
			keys = append(keys, k)
		}
	}
	return keys, rows.Err()
}

// Close stops the sweeper and closes the database.
func (s *SQLiteBackend) Close() error {
	s.once.Do(func() { close(s.stop) })
	<-s.done
	return s.db.Close()
}
