package cache

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Needs a reachable database; set ENGAGELENS_TEST_POSTGRES_DSN to run.
func newTestPostgresStore(t *testing.T) *PostgresStore {
	t.Helper()
	dsn := os.Getenv("ENGAGELENS_TEST_POSTGRES_DSN")
	if dsn == "" {
		t.Skip("ENGAGELENS_TEST_POSTGRES_DSN not set, skipping postgres cache tests")
	}
	s, err := NewPostgresStore(context.Background(), dsn, zerolog.Nop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestPostgresStoreRoundTrip(t *testing.T) {
	ctx := context.Background()
	s := newTestPostgresStore(t)

	// Unique key so parallel or repeated runs do not collide.
	key := uuid.NewString()
	t.Cleanup(func() { _ = s.Invalidate(ctx, NamespaceAccountID, key) })

	require.NoError(t, s.Put(ctx, NamespaceAccountID, key, []byte(`"12345"`), time.Hour))

	value, ok, err := s.Get(ctx, NamespaceAccountID, key)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, `"12345"`, string(value))

	require.NoError(t, s.Put(ctx, NamespaceAccountID, key, []byte(`"67890"`), time.Hour))
	value, ok, err = s.Get(ctx, NamespaceAccountID, key)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, `"67890"`, string(value))
}

func TestPostgresStoreExpiredEntryIsMiss(t *testing.T) {
	ctx := context.Background()
	s := newTestPostgresStore(t)

	key := uuid.NewString()
	t.Cleanup(func() { _ = s.Invalidate(ctx, NamespacePartnerAnalysis, key) })

	require.NoError(t, s.Put(ctx, NamespacePartnerAnalysis, key, []byte("{}"), time.Hour))

	_, err := s.pool.Exec(ctx,
		"UPDATE cache_entries SET cached_at = cached_at - 7200 WHERE namespace = $1 AND key = $2",
		NamespacePartnerAnalysis, key)
	require.NoError(t, err)

	_, ok, err := s.Get(ctx, NamespacePartnerAnalysis, key)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestPostgresStoreInvalidate(t *testing.T) {
	ctx := context.Background()
	s := newTestPostgresStore(t)

	key := uuid.NewString()
	require.NoError(t, s.Put(ctx, NamespaceGlobalSummary, key, []byte("{}"), time.Hour))
	require.NoError(t, s.Invalidate(ctx, NamespaceGlobalSummary, key))

	_, ok, err := s.Get(ctx, NamespaceGlobalSummary, key)
	require.NoError(t, err)
	assert.False(t, ok)

	assert.NoError(t, s.Invalidate(ctx, NamespaceGlobalSummary, key))
}
