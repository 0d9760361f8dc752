package cache

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"
	_ "modernc.org/sqlite"
)

// SQLiteStore keeps all entries in a single database file. Reads and writes
// use separate connections; the write connection is capped at one open conn
// so sqlite's single-writer rule never turns into SQLITE_BUSY churn.
type SQLiteStore struct {
	readDB  *sql.DB
	writeDB *sql.DB
	log     zerolog.Logger
}

// NewSQLiteStore opens (and if needed creates) the database at dbPath.
func NewSQLiteStore(dbPath string, log zerolog.Logger) (*SQLiteStore, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, storageErr("mkdir", err)
	}

	writeDB, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, storageErr("open write db", err)
	}
	writeDB.SetMaxOpenConns(1)

	readDB, err := sql.Open("sqlite", "file:"+dbPath+"?mode=ro")
	if err != nil {
		writeDB.Close()
		return nil, storageErr("open read db", err)
	}

	s := &SQLiteStore{readDB: readDB, writeDB: writeDB, log: log}
	if err := s.init(); err != nil {
		s.Close()
		return nil, err
	}
	return s, nil
}

func (s *SQLiteStore) init() error {
	_, err := s.writeDB.Exec(`
		CREATE TABLE IF NOT EXISTS entries (
			namespace   TEXT NOT NULL,
			key         TEXT NOT NULL,
			value       BLOB NOT NULL,
			cached_at   INTEGER NOT NULL,
			ttl_seconds INTEGER NOT NULL,
			PRIMARY KEY (namespace, key)
		);
		CREATE INDEX IF NOT EXISTS idx_entries_namespace ON entries(namespace);
	`)
	if err != nil {
		return storageErr("initializing schema", err)
	}
	return nil
}

// Get returns a miss for absent and expired rows; expired rows are removed
// opportunistically.
func (s *SQLiteStore) Get(ctx context.Context, namespace, key string) ([]byte, bool, error) {
	var (
		value      []byte
		cachedAt   int64
		ttlSeconds int64
	)

	err := s.readDB.QueryRowContext(ctx,
		"SELECT value, cached_at, ttl_seconds FROM entries WHERE namespace = ? AND key = ?",
		namespace, key,
	).Scan(&value, &cachedAt, &ttlSeconds)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, storageErr("select", err)
	}

	if time.Since(time.Unix(cachedAt, 0)) > time.Duration(ttlSeconds)*time.Second {
		if _, err := s.writeDB.ExecContext(ctx,
			"DELETE FROM entries WHERE namespace = ? AND key = ?", namespace, key); err != nil {
			s.log.Warn().Err(err).Str("namespace", namespace).Msg("failed to drop expired cache entry")
		}
		return nil, false, nil
	}

	return value, true, nil
}

// Put upserts the entry; the transaction commits before Put returns.
func (s *SQLiteStore) Put(ctx context.Context, namespace, key string, value []byte, ttl time.Duration) error {
	_, err := s.writeDB.ExecContext(ctx, `
		INSERT INTO entries (namespace, key, value, cached_at, ttl_seconds)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(namespace, key) DO UPDATE SET
			value = excluded.value,
			cached_at = excluded.cached_at,
			ttl_seconds = excluded.ttl_seconds
	`, namespace, key, value, time.Now().Unix(), int64(ttl/time.Second))
	if err != nil {
		return storageErr("upsert", err)
	}
	return nil
}

func (s *SQLiteStore) Invalidate(ctx context.Context, namespace, key string) error {
	if _, err := s.writeDB.ExecContext(ctx,
		"DELETE FROM entries WHERE namespace = ? AND key = ?", namespace, key); err != nil {
		return storageErr("delete", err)
	}
	return nil
}

func (s *SQLiteStore) Clear(ctx context.Context) error {
	res, err := s.writeDB.ExecContext(ctx, "DELETE FROM entries")
	if err != nil {
		return storageErr("clear", err)
	}
	if n, err := res.RowsAffected(); err == nil {
		s.log.Info().Int64("entries", n).Msg("cache cleared")
	}
	return nil
}

// Stats counts unexpired rows per namespace.
func (s *SQLiteStore) Stats(ctx context.Context) (map[string]int, error) {
	rows, err := s.readDB.QueryContext(ctx, `
		SELECT namespace, COUNT(*) FROM entries
		WHERE cached_at + ttl_seconds > ?
		GROUP BY namespace
	`, time.Now().Unix())
	if err != nil {
		return nil, storageErr("stats", err)
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var (
			namespace string
			n         int
		)
		if err := rows.Scan(&namespace, &n); err != nil {
			return nil, storageErr("scan", err)
		}
		counts[namespace] = n
	}
	return counts, rows.Err()
}

func (s *SQLiteStore) Close() error {
	var errs []error
	if s.readDB != nil {
		errs = append(errs, s.readDB.Close())
	}
	if s.writeDB != nil {
		errs = append(errs, s.writeDB.Close())
	}
	for _, e := range errs {
		if e != nil {
			return fmt.Errorf("closing cache db: %w", e)
		}
	}
	return nil
}
