// Package cache provides the namespaced key/value store every fetch result
// flows through. Entries carry their own TTL; an expired or corrupt entry
// reads as a miss, never as an error, so a stale or damaged cache can slow a
// run down but can never block it.
package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"
)

// Cache namespaces. Namespacing keeps record types from colliding on short
// keys like account ids.
const (
	NamespaceAccountID         = "account_id"
	NamespaceInteractionScores = "interaction_scores"
	NamespacePartnerTopPosts   = "partner_top_tweets"
	NamespacePartnerAnalysis   = "partner_analysis"
	NamespaceGlobalSummary     = "global_summary"
)

// Store is the persistence contract. Get reports a miss as (nil, false, nil):
// absent, expired, and corrupt entries are all normal misses the caller
// branches on. Only a broken backing medium surfaces as an error, always a
// *StorageError. Put persists synchronously with atomic-replace semantics and
// overwrites unconditionally.
type Store interface {
	Get(ctx context.Context, namespace, key string) ([]byte, bool, error)
	Put(ctx context.Context, namespace, key string, value []byte, ttl time.Duration) error
	Invalidate(ctx context.Context, namespace, key string) error
	Clear(ctx context.Context) error
	Stats(ctx context.Context) (map[string]int, error)
	Close() error
}

// StorageError wraps a failure of the backing medium (permissions, disk full,
// unreachable database). Distinct from a miss: callers that can proceed
// without the cache may log it and fetch fresh.
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("cache storage %s: %v", e.Op, e.Err)
}

func (e *StorageError) Unwrap() error {
	return e.Err
}

func storageErr(op string, err error) error {
	return &StorageError{Op: op, Err: err}
}

// TTLs bundles the per-namespace expiries.
type TTLs struct {
	AccountID         time.Duration
	InteractionScores time.Duration
	PartnerTopPosts   time.Duration
	PartnerAnalysis   time.Duration
	GlobalSummary     time.Duration
}

// DefaultTTLs returns the documented defaults: identity rarely changes (one
// week), scores hold for a day, post lists go stale in hours, analysis output
// keeps for two days.
func DefaultTTLs() TTLs {
	return TTLs{
		AccountID:         168 * time.Hour,
		InteractionScores: 24 * time.Hour,
		PartnerTopPosts:   6 * time.Hour,
		PartnerAnalysis:   48 * time.Hour,
		GlobalSummary:     48 * time.Hour,
	}
}

// GetJSON reads and decodes a cached JSON value into out. A payload that no
// longer decodes is dropped and reported as a miss.
func GetJSON(ctx context.Context, s Store, namespace, key string, out interface{}) (bool, error) {
	raw, ok, err := s.Get(ctx, namespace, key)
	if err != nil || !ok {
		return false, err
	}
	if err := json.Unmarshal(raw, out); err != nil {
		_ = s.Invalidate(ctx, namespace, key)
		return false, nil
	}
	return true, nil
}

// PutJSON encodes v and stores it under (namespace, key).
func PutJSON(ctx context.Context, s Store, namespace, key string, v interface{}, ttl time.Duration) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encoding cache value for %s/%s: %w", namespace, key, err)
	}
	return s.Put(ctx, namespace, key, raw, ttl)
}
