package cache

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"encoding/json"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// FileStore keeps one JSON file per entry in a flat directory. The filename
// is the md5 of "namespace:key" so keys of any shape stay filesystem-safe.
// Writes go through a temp file and a rename, which is atomic on the same
// filesystem: readers see the old entry or the new one, never a torn write.
type FileStore struct {
	dir string
	log zerolog.Logger

	// Serializes writers to the same directory; readers never take it.
	mu sync.Mutex
}

type fileEntry struct {
	Namespace  string `json:"namespace"`
	CachedAt   int64  `json:"cached_at"`
	TTLSeconds int64  `json:"ttl_seconds"`
	Data       []byte `json:"data"`
}

// NewFileStore creates the cache directory if needed and returns a store
// rooted there.
func NewFileStore(dir string, log zerolog.Logger) (*FileStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, storageErr("mkdir", err)
	}
	return &FileStore{dir: dir, log: log}, nil
}

func (s *FileStore) path(namespace, key string) string {
	sum := md5.Sum([]byte(namespace + ":" + key))
	return filepath.Join(s.dir, hex.EncodeToString(sum[:])+".json")
}

// Get returns the stored value, or a miss when the entry is absent, expired,
// or unreadable as an entry. Only filesystem-level failures are errors.
func (s *FileStore) Get(ctx context.Context, namespace, key string) ([]byte, bool, error) {
	path := s.path(namespace, key)

	raw, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, false, nil
		}
		return nil, false, storageErr("read", err)
	}

	var entry fileEntry
	if err := json.Unmarshal(raw, &entry); err != nil || entry.CachedAt == 0 {
		// Corrupt entry: drop it and treat as a miss.
		s.log.Warn().Str("namespace", namespace).Str("key", key).Msg("removing corrupt cache entry")
		_ = os.Remove(path)
		return nil, false, nil
	}

	age := time.Since(time.Unix(entry.CachedAt, 0))
	if age > time.Duration(entry.TTLSeconds)*time.Second {
		s.log.Debug().Str("namespace", namespace).Str("key", key).Dur("age", age).Msg("cache entry expired")
		_ = os.Remove(path)
		return nil, false, nil
	}

	return entry.Data, true, nil
}

// Put stores the value durably before returning. The entry lands via
// create-temp, write, fsync, rename so a crash mid-write leaves either the
// previous entry or the new one intact.
func (s *FileStore) Put(ctx context.Context, namespace, key string, value []byte, ttl time.Duration) error {
	entry := fileEntry{
		Namespace:  namespace,
		CachedAt:   time.Now().Unix(),
		TTLSeconds: int64(ttl / time.Second),
		Data:       value,
	}

	raw, err := json.Marshal(entry)
	if err != nil {
		return storageErr("encode", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	tmp, err := os.CreateTemp(s.dir, ".put-*")
	if err != nil {
		return storageErr("create temp", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(raw); err != nil {
		tmp.Close()
		_ = os.Remove(tmpName)
		return storageErr("write", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		_ = os.Remove(tmpName)
		return storageErr("sync", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return storageErr("close", err)
	}

	if err := os.Rename(tmpName, s.path(namespace, key)); err != nil {
		_ = os.Remove(tmpName)
		return storageErr("rename", err)
	}

	return nil
}

// Invalidate removes one entry; removing an absent entry is not an error.
func (s *FileStore) Invalidate(ctx context.Context, namespace, key string) error {
	err := os.Remove(s.path(namespace, key))
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return storageErr("remove", err)
	}
	return nil
}

// Clear removes every entry in the cache directory.
func (s *FileStore) Clear(ctx context.Context) error {
	matches, err := filepath.Glob(filepath.Join(s.dir, "*.json"))
	if err != nil {
		return storageErr("glob", err)
	}
	for _, path := range matches {
		if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return storageErr("remove", err)
		}
	}
	s.log.Info().Int("entries", len(matches)).Msg("cache cleared")
	return nil
}

// Stats counts live entries per namespace. Corrupt or expired files are
// skipped rather than repaired here.
func (s *FileStore) Stats(ctx context.Context) (map[string]int, error) {
	matches, err := filepath.Glob(filepath.Join(s.dir, "*.json"))
	if err != nil {
		return nil, storageErr("glob", err)
	}

	counts := make(map[string]int)
	for _, path := range matches {
		raw, err := os.ReadFile(path)
		if err != nil {
			continue
		}
		var entry fileEntry
		if err := json.Unmarshal(raw, &entry); err != nil || entry.Namespace == "" {
			continue
		}
		if time.Since(time.Unix(entry.CachedAt, 0)) > time.Duration(entry.TTLSeconds)*time.Second {
			continue
		}
		counts[entry.Namespace]++
	}
	return counts, nil
}

// Close is a no-op for the file backend.
func (s *FileStore) Close() error {
	return nil
}

// Dir returns the backing directory, mainly for log output.
func (s *FileStore) Dir() string {
	return strings.TrimSuffix(s.dir, string(filepath.Separator))
}
