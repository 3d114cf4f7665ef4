package cart

import (
	"encoding/json"
	"os"
	"path/filepath"

	"go.uber.org/zap"
)

// Cache persists the lightweight cart lines as JSON under a fixed path so a
// returning session can show cart contents before the authoritative fetch
// completes. All operations are best-effort; the cache is never a source of
// truth.
type Cache struct {
	path   string
	logger *zap.Logger
}

// NewCache constructs a cache rooted at path. An empty path disables
// persistence while keeping the Load/Store contract intact.
func NewCache(path string, logger *zap.Logger) *Cache {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Cache{path: path, logger: logger}
}

// Load reads the persisted lines. A missing or corrupted file yields an
// empty slice, never an error.
func (c *Cache) Load() []CachedItem {
	if c == nil || c.path == "" {
		return []CachedItem{}
	}
	raw, err := os.ReadFile(c.path)
	if err != nil {
		return []CachedItem{}
	}
	var items []CachedItem
	if err := json.Unmarshal(raw, &items); err != nil {
		c.logger.Warn("cart cache unreadable, starting empty", zap.String("path", c.path), zap.Error(err))
		return []CachedItem{}
	}
	if items == nil {
		items = []CachedItem{}
	}
	return items
}

// Store writes the lines, replacing any previous content. Failures are
// logged and swallowed.
func (c *Cache) Store(items []CachedItem) {
	if c == nil || c.path == "" {
		return
	}
	if items == nil {
		items = []CachedItem{}
	}
	raw, err := json.Marshal(items)
	if err != nil {
		c.logger.Warn("cart cache encode failed", zap.Error(err))
		return
	}
	if dir := filepath.Dir(c.path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			c.logger.Warn("cart cache dir create failed", zap.String("path", c.path), zap.Error(err))
			return
		}
	}
	if err := os.WriteFile(c.path, raw, 0o600); err != nil {
		c.logger.Warn("cart cache write failed", zap.String("path", c.path), zap.Error(err))
	}
}
