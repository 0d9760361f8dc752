package cache

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
)

// PostgresStore backs the cache with a Postgres table, for deployments where
// several runs on different hosts want to share one cache. Row-level locking
// gives the same-key write serialization the contract asks for.
type PostgresStore struct {
	pool *pgxpool.Pool
	log  zerolog.Logger
}

// NewPostgresStore connects, pings, and bootstraps the cache table.
func NewPostgresStore(ctx context.Context, dsn string, log zerolog.Logger) (*PostgresStore, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, storageErr("open pool", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, storageErr("ping", err)
	}

	s := &PostgresStore{pool: pool, log: log}
	if err := s.init(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return s, nil
}

func (s *PostgresStore) init(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS cache_entries (
			namespace   TEXT NOT NULL,
			key         TEXT NOT NULL,
			value       BYTEA NOT NULL,
			cached_at   BIGINT NOT NULL,
			ttl_seconds BIGINT NOT NULL,
			PRIMARY KEY (namespace, key)
		)
	`)
	if err != nil {
		return storageErr("initializing schema", err)
	}
	return nil
}

func (s *PostgresStore) Get(ctx context.Context, namespace, key string) ([]byte, bool, error) {
	var (
		value      []byte
		cachedAt   int64
		ttlSeconds int64
	)

	err := s.pool.QueryRow(ctx,
		"SELECT value, cached_at, ttl_seconds FROM cache_entries WHERE namespace = $1 AND key = $2",
		namespace, key,
	).Scan(&value, &cachedAt, &ttlSeconds)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, storageErr("select", err)
	}

	if time.Since(time.Unix(cachedAt, 0)) > time.Duration(ttlSeconds)*time.Second {
		if _, err := s.pool.Exec(ctx,
			"DELETE FROM cache_entries WHERE namespace = $1 AND key = $2", namespace, key); err != nil {
			s.log.Warn().Err(err).Str("namespace", namespace).Msg("failed to drop expired cache entry")
		}
		return nil, false, nil
	}

	return value, true, nil
}

func (s *PostgresStore) Put(ctx context.Context, namespace, key string, value []byte, ttl time.Duration) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO cache_entries (namespace, key, value, cached_at, ttl_seconds)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (namespace, key) DO UPDATE SET
			value = EXCLUDED.value,
			cached_at = EXCLUDED.cached_at,
			ttl_seconds = EXCLUDED.ttl_seconds
	`, namespace, key, value, time.Now().Unix(), int64(ttl/time.Second))
	if err != nil {
		return storageErr("upsert", err)
	}
	return nil
}

func (s *PostgresStore) Invalidate(ctx context.Context, namespace, key string) error {
	if _, err := s.pool.Exec(ctx,
		"DELETE FROM cache_entries WHERE namespace = $1 AND key = $2", namespace, key); err != nil {
		return storageErr("delete", err)
	}
	return nil
}

func (s *PostgresStore) Clear(ctx context.Context) error {
	tag, err := s.pool.Exec(ctx, "DELETE FROM cache_entries")
	if err != nil {
		return storageErr("clear", err)
	}
	s.log.Info().Int64("entries", tag.RowsAffected()).Msg("cache cleared")
	return nil
}

func (s *PostgresStore) Stats(ctx context.Context) (map[string]int, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT namespace, COUNT(*) FROM cache_entries
		WHERE cached_at + ttl_seconds > $1
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
			n         int64
		)
		if err := rows.Scan(&namespace, &n); err != nil {
			return nil, storageErr("scan", err)
		}
		counts[namespace] = int(n)
	}
	return counts, rows.Err()
}

func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}
