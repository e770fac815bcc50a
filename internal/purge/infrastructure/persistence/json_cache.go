package persistence

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/felixgeelhaar/tweetsweep/internal/purge/domain"
	"github.com/felixgeelhaar/tweetsweep/internal/shared/infrastructure/security"
)

// DefaultCachePath is the cache file used when nothing else is configured.
const DefaultCachePath = "fetched_tweets.json"

// JSONCache keeps the fetch snapshot in a single file. The file records the
// session it was written for; a snapshot from another session loads as
// empty.
type JSONCache struct {
	path string
}

type cacheFile struct {
	Session string        `json:"session"`
	Items   []domain.Item `json:"items"`
}

// NewJSONCache creates a cache at path.
func NewJSONCache(path string) *JSONCache {
	if path == "" {
		path = DefaultCachePath
	}
	return &JSONCache{path: path}
}

// Load returns nil when no snapshot exists.
func (c *JSONCache) Load(ctx context.Context, session string) ([]domain.Item, error) {
	data, err := security.SafeReadFile(c.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("read cache: %w", err)
	}
	// Files without a session header are a bare item array.
	if trimmed := bytes.TrimSpace(data); len(trimmed) > 0 && trimmed[0] == '[' {
		var items []domain.Item
		if err := json.Unmarshal(trimmed, &items); err != nil {
			return nil, fmt.Errorf("decode cache %s: %w", c.path, err)
		}
		return items, nil
	}

	var file cacheFile
	if err := json.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("decode cache %s: %w", c.path, err)
	}
	if file.Session != session {
		return nil, nil
	}
	return file.Items, nil
}

// Save replaces the snapshot and claims the file for session.
func (c *JSONCache) Save(ctx context.Context, session string, items []domain.Item) error {
	if items == nil {
		items = []domain.Item{}
	}
	data, err := json.MarshalIndent(cacheFile{Session: session, Items: items}, "", "  ")
	if err != nil {
		return fmt.Errorf("encode cache: %w", err)
	}
	if err := security.WriteFileAtomic(c.path, data, 0o600); err != nil {
		return fmt.Errorf("write cache: %w", err)
	}
	return nil
}

func (c *JSONCache) Close() error {
	return nil
}

// Path returns the cache file location.
func (c *JSONCache) Path() string {
	return c.path
}
