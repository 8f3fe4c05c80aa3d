// Package tagcache persists per-file tag extractions keyed by (abs_path,
// mtime) so unchanged files are never re-parsed across runs.
package tagcache

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	_ "github.com/mattn/go-sqlite3"

	"github.com/repomapper/repomapper/internal/tagmodel"
)

// CurrentVersion is embedded in the cache directory name. Bumping it
// invalidates every previously stored entry by simply never looking in the
// old directory again.
const CurrentVersion = 1

// Cache is a durable, content-addressed tag store backed by SQLite. The
// zero value is not usable; construct with Open.
type Cache struct {
	db *sql.DB

	mu       sync.Mutex // serializes writes; reads need no lock (sql.DB pools its own)
	warnOnce sync.Once
	log      *slog.Logger
}

// Open creates or opens the cache directory under repoRoot for the given
// format version and returns a ready Cache. log may be nil, in which case
// cache write failures are swallowed without any diagnostic output.
func Open(repoRoot string, version int, log *slog.Logger) (*Cache, error) {
	dir := filepath.Join(repoRoot, fmt.Sprintf(".repomap.tags.cache.v%d", version))
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite3", filepath.Join(dir, "tags.db"))
	if err != nil {
		return nil, err
	}
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, err
	}

	c := &Cache{db: db, log: log}
	if err := c.initSchema(); err != nil {
		db.Close()
		return nil, err
	}
	return c, nil
}

func (c *Cache) initSchema() error {
	_, err := c.db.Exec(`
	CREATE TABLE IF NOT EXISTS tags (
		abs_path TEXT NOT NULL,
		mtime    INTEGER NOT NULL,
		tags     TEXT NOT NULL,
		PRIMARY KEY (abs_path, mtime)
	)`)
	return err
}

// Close releases the underlying database handle.
func (c *Cache) Close() error {
	if c == nil || c.db == nil {
		return nil
	}
	return c.db.Close()
}

// ComputeFunc produces the tag list for a file on a cache miss.
type ComputeFunc func() ([]tagmodel.Tag, error)

// GetOrCompute implements the TagCache contract: on a hit, the stored tag
// list for (absPath, mtimeNanos) is returned without calling compute. On a
// miss, or when forceRefresh bypasses the lookup, compute runs and its
// result is written back (still subject to forceRefresh, which bypasses
// only the read). Any I/O or deserialization error on the cache itself is
// recovered locally: the cache behaves as empty for that key, compute still
// runs, and the result is still returned to the caller even if the
// follow-up write fails.
func (c *Cache) GetOrCompute(absPath string, mtimeNanos int64, forceRefresh bool, compute ComputeFunc) ([]tagmodel.Tag, error) {
	if c == nil || c.db == nil {
		return compute()
	}

	if !forceRefresh {
		if tags, ok := c.lookup(absPath, mtimeNanos); ok {
			return tags, nil
		}
	}

	tags, err := compute()
	if err != nil {
		return tags, err
	}
	c.store(absPath, mtimeNanos, tags)
	return tags, nil
}

func (c *Cache) lookup(absPath string, mtimeNanos int64) ([]tagmodel.Tag, bool) {
	var blob string
	err := c.db.QueryRow(`SELECT tags FROM tags WHERE abs_path = ? AND mtime = ?`, absPath, mtimeNanos).Scan(&blob)
	if err != nil {
		return nil, false
	}
	var tags []tagmodel.Tag
	if err := json.Unmarshal([]byte(blob), &tags); err != nil {
		return nil, false
	}
	return tags, true
}

func (c *Cache) store(absPath string, mtimeNanos int64, tags []tagmodel.Tag) {
	blob, err := json.Marshal(tags)
	if err != nil {
		c.warnWriteFailure(err)
		return
	}

	c.mu.Lock()
	_, err = c.db.Exec(`
		INSERT INTO tags (abs_path, mtime, tags) VALUES (?, ?, ?)
		ON CONFLICT(abs_path, mtime) DO UPDATE SET tags = excluded.tags`,
		absPath, mtimeNanos, string(blob))
	c.mu.Unlock()

	if err != nil {
		c.warnWriteFailure(err)
	}
}

func (c *Cache) warnWriteFailure(err error) {
	if c.log == nil {
		return
	}
	c.warnOnce.Do(func() {
		c.log.Warn("tag cache write failed; continuing without persistence", "error", err)
	})
}
