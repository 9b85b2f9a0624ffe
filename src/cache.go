package main

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "modernc.org/sqlite"
)

// defaultAnalysisTTL bounds how long a scan result is served without rewalking
const defaultAnalysisTTL = 5 * time.Minute

// analysisCache memoizes AnalyzeResult by source path for a bounded time.
// The clock is injectable so expiry is deterministic in tests.
type analysisCache struct {
	ttl time.Duration
	now func() time.Time

	mu      sync.Mutex
	entries map[string]analysisEntry
}

type analysisEntry struct {
	result   *AnalyzeResult
	storedAt time.Time
}

func newAnalysisCache(ttl time.Duration, now func() time.Time) *analysisCache {
	if ttl <= 0 {
		ttl = defaultAnalysisTTL
	}
	if now == nil {
		now = time.Now
	}
	return &analysisCache{
		ttl:     ttl,
		now:     now,
		entries: make(map[string]analysisEntry),
	}
}

// Get returns the cached result for a source path, never serving an entry
// older than the TTL. Expired entries are dropped on read.
func (c *analysisCache) Get(sourcePath string) (*AnalyzeResult, bool) {
	key := filepath.Clean(sourcePath)

	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.entries[key]
	if !ok {
		return nil, false
	}
	if c.now().Sub(entry.storedAt) > c.ttl {
		delete(c.entries, key)
		return nil, false
	}
	return entry.result, true
}

func (c *analysisCache) Put(sourcePath string, result *AnalyzeResult) {
	key := filepath.Clean(sourcePath)

	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = analysisEntry{result: result, storedAt: c.now()}
}

func (c *analysisCache) Invalidate(sourcePath string) {
	key := filepath.Clean(sourcePath)

	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, key)
}

type metaWriteRequest struct {
	path    string
	size    int64
	modTime time.Time
	info    MediaInfo
}

// MetadataCache persists extracted media metadata keyed by (path, size,
// mtime) so unchanged files skip probing on the next scan. Writes go through
// a single writer goroutine; the cache is best-effort throughout.
type MetadataCache struct {
	db         *sql.DB
	writeChan  chan metaWriteRequest
	writerDone sync.WaitGroup

	closeMu sync.RWMutex
	closed  bool
}

// OpenMetadataCache opens or creates the cache database
func OpenMetadataCache(baseDir string) (*MetadataCache, error) {
	cacheDir := filepath.Join(baseDir, ".mediawrangler")
	if err := os.MkdirAll(cacheDir, 0755); err != nil {
		return nil, fmt.Errorf("create cache dir: %w", err)
	}

	db, err := sql.Open("sqlite", filepath.Join(cacheDir, "cache.db"))
	if err != nil {
		return nil, fmt.Errorf("open cache db: %w", err)
	}

	cache, err := newMetadataCache(db)
	if err != nil {
		db.Close()
		return nil, err
	}
	return cache, nil
}

func newMetadataCache(db *sql.DB) (*MetadataCache, error) {
	// WAL keeps readers unblocked while the writer goroutine works
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		return nil, fmt.Errorf("enable WAL mode: %w", err)
	}
	if _, err := db.Exec("PRAGMA busy_timeout=5000"); err != nil {
		return nil, fmt.Errorf("set busy timeout: %w", err)
	}

	schema := `
	CREATE TABLE IF NOT EXISTS media_info (
		path TEXT PRIMARY KEY,
		size INTEGER NOT NULL,
		mod_time INTEGER NOT NULL,
		width INTEGER,
		height INTEGER,
		frame_rate REAL,
		encoded_date INTEGER,
		duration REAL,
		bit_rate INTEGER,
		format TEXT,
		codec TEXT,
		processed_at INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_media_info_mod_time ON media_info(mod_time);
	`
	if _, err := db.Exec(schema); err != nil {
		return nil, fmt.Errorf("create schema: %w", err)
	}

	cache := &MetadataCache{
		db:        db,
		writeChan: make(chan metaWriteRequest, 1000),
	}
	cache.writerDone.Add(1)
	go cache.writerLoop()

	return cache, nil
}

func (c *MetadataCache) writerLoop() {
	defer c.writerDone.Done()
	for req := range c.writeChan {
		c.writeToDatabase(req)
	}
}

// Close drains pending writes and closes the database. Safe to call more
// than once; the UI closes on quit while a scan may still be finishing.
func (c *MetadataCache) Close() error {
	c.closeMu.Lock()
	if c.closed {
		c.closeMu.Unlock()
		return nil
	}
	c.closed = true
	c.closeMu.Unlock()

	close(c.writeChan)
	c.writerDone.Wait()
	return c.db.Close()
}

// Get retrieves cached metadata if the file is unchanged
func (c *MetadataCache) Get(path string, size int64, modTime time.Time) (MediaInfo, bool) {
	var (
		info        MediaInfo
		encodedUnix sql.NullInt64
		format      sql.NullString
		codec       sql.NullString
	)

	err := c.db.QueryRow(`
		SELECT width, height, frame_rate, encoded_date, duration, bit_rate, format, codec
		FROM media_info
		WHERE path = ? AND size = ? AND mod_time = ?
	`, path, size, modTime.Unix()).Scan(
		&info.Width, &info.Height, &info.FrameRate, &encodedUnix,
		&info.Duration, &info.BitRate, &format, &codec,
	)
	if err != nil {
		return MediaInfo{}, false
	}

	if encodedUnix.Valid {
		t := time.Unix(encodedUnix.Int64, 0).UTC()
		info.EncodedDate = &t
	}
	info.Format = format.String
	info.Codec = codec.String

	return info, true
}

// Put queues metadata for writing (non-blocking; a full queue drops the
// write, and a closed cache drops it too)
func (c *MetadataCache) Put(path string, size int64, modTime time.Time, info MediaInfo) {
	c.closeMu.RLock()
	defer c.closeMu.RUnlock()
	if c.closed {
		return
	}
	select {
	case c.writeChan <- metaWriteRequest{path: path, size: size, modTime: modTime, info: info}:
	default:
	}
}

func (c *MetadataCache) writeToDatabase(req metaWriteRequest) {
	var encodedUnix sql.NullInt64
	if req.info.EncodedDate != nil {
		encodedUnix.Valid = true
		encodedUnix.Int64 = req.info.EncodedDate.Unix()
	}

	_, err := c.db.Exec(`
		INSERT OR REPLACE INTO media_info
		(path, size, mod_time, width, height, frame_rate, encoded_date,
		 duration, bit_rate, format, codec, processed_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, req.path, req.size, req.modTime.Unix(), req.info.Width, req.info.Height,
		req.info.FrameRate, encodedUnix, req.info.Duration, req.info.BitRate,
		req.info.Format, req.info.Codec, time.Now().Unix())

	if err != nil {
		fmt.Printf("Warning: cache write failed for %s: %v\n", req.path, err)
	}
}

// PruneDeleted removes entries under root for files a completed scan did not
// see. Entries outside root belong to other source trees and are left alone.
func (c *MetadataCache) PruneDeleted(root string, validPaths map[string]bool) (int64, error) {
	prefix := filepath.Clean(root) + string(filepath.Separator)
	rows, err := c.db.Query("SELECT path FROM media_info WHERE path LIKE ?", prefix+"%")
	if err != nil {
		return 0, err
	}
	defer rows.Close()

	var toDelete []string
	for rows.Next() {
		var path string
		if err := rows.Scan(&path); err != nil {
			continue
		}
		if !validPaths[path] {
			toDelete = append(toDelete, path)
		}
	}
	if err := rows.Err(); err != nil {
		return 0, err
	}
	if len(toDelete) == 0 {
		return 0, nil
	}

	tx, err := c.db.Begin()
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare("DELETE FROM media_info WHERE path = ?")
	if err != nil {
		return 0, err
	}
	defer stmt.Close()

	for _, path := range toDelete {
		if _, err := stmt.Exec(path); err != nil {
			return 0, err
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, err
	}
	return int64(len(toDelete)), nil
}
