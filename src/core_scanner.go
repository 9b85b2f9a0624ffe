package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"
)

const (
	// maxScanDepth guards against cyclic or pathological trees
	maxScanDepth = 50

	// Progress is throttled to avoid saturating the event channel
	dirProgressEvery  = 5
	fileProgressEvery = 10
)

// analyzeTimeout bounds a whole walk; a var so tests can shorten it
var analyzeTimeout = 15 * time.Minute

// dirSkipPredicate decides whether a directory name is excluded from the walk
type dirSkipPredicate func(name string) bool

// skipPanoramaDirs excludes PANORAMA folders from full-tree scans. Panorama
// source frames can number in the thousands and are imported wholesale by
// the vendor path instead.
func skipPanoramaDirs(name string) bool {
	return strings.EqualFold(name, "PANORAMA")
}

type sourceScanner struct {
	dirWorkers  int
	statWorkers int
	skipDir     dirSkipPredicate
	metaCache   *MetadataCache
	onProgress  func(AnalyzeProgress)

	mu           sync.Mutex
	filesByDate  map[string][]MediaFileInfo
	totalFiles   int
	totalSize    int64
	scannedFiles int
	scannedDirs  int
	foundMedia   int
}

// analyzeSource walks a source tree, classifies and dates every media file,
// and buckets results by calendar day. The walk is bounded by a 15-minute
// timeout; on timeout the error is surfaced to the caller, but a final
// "complete" progress event still reflects whatever was scanned.
func analyzeSource(ctx context.Context, root string, cfg *Config, metaCache *MetadataCache, onProgress func(AnalyzeProgress)) (*AnalyzeResult, error) {
	s := &sourceScanner{
		dirWorkers:  cfg.DirWorkers,
		statWorkers: cfg.StatWorkers,
		skipDir:     skipPanoramaDirs,
		metaCache:   metaCache,
		onProgress:  onProgress,
		filesByDate: make(map[string][]MediaFileInfo),
	}

	ctx, cancel := context.WithTimeout(ctx, analyzeTimeout)
	defer cancel()

	err := s.walkDir(ctx, root, 0)
	s.emit("complete", "")

	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, fmt.Errorf("analysis of %s timed out: %w", root, err)
		}
		return nil, err
	}

	return s.result(), nil
}

// analyzeWithCache serves a recent analysis of an unchanged tree straight
// from the cache; only a miss walks the filesystem. Fresh results are stored
// for the TTL window, and metadata rows for files the walk no longer saw are
// pruned.
func analyzeWithCache(ctx context.Context, root string, cfg *Config, cache *analysisCache, metaCache *MetadataCache, onProgress func(AnalyzeProgress)) (*AnalyzeResult, error) {
	if cache != nil {
		if result, ok := cache.Get(root); ok {
			return result, nil
		}
	}

	result, err := analyzeSource(ctx, root, cfg, metaCache, onProgress)
	if err != nil {
		return nil, err
	}
	if cache != nil {
		cache.Put(root, result)
	}
	if metaCache != nil {
		valid := make(map[string]bool, result.TotalFiles)
		for _, files := range result.FilesByDate {
			for _, f := range files {
				valid[f.Path] = true
			}
		}
		// Best-effort, like every other cache interaction
		_, _ = metaCache.PruneDeleted(root, valid)
	}
	return result, nil
}

func (s *sourceScanner) walkDir(ctx context.Context, dir string, depth int) error {
	if depth >= maxScanDepth {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		if depth == 0 {
			return fmt.Errorf("read source directory: %w", err)
		}
		return nil // unreadable subtree, keep going
	}

	s.mu.Lock()
	s.scannedDirs++
	emitDir := s.scannedDirs%dirProgressEvery == 0
	s.mu.Unlock()
	if emitDir {
		s.emit("scanning", dir)
	}

	var subdirs, files []string
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() {
			if s.skipDir != nil && s.skipDir(name) {
				continue
			}
			subdirs = append(subdirs, filepath.Join(dir, name))
		} else {
			files = append(files, filepath.Join(dir, name))
		}
	}

	// Stat and metadata probing are cheap per call, so files fan out wider
	// than directory recursion.
	if _, err := mapLimit(ctx, files, s.statWorkers, func(ctx context.Context, path string) (struct{}, error) {
		s.processFile(ctx, path)
		return struct{}{}, nil
	}); err != nil {
		return err
	}

	_, err = mapLimit(ctx, subdirs, s.dirWorkers, func(ctx context.Context, sub string) (struct{}, error) {
		return struct{}{}, s.walkDir(ctx, sub, depth+1)
	})
	return err
}

// processFile classifies one file and, for media, resolves its grouping date.
// Per-file failures never abort the walk.
func (s *sourceScanner) processFile(ctx context.Context, path string) {
	s.mu.Lock()
	s.scannedFiles++
	s.mu.Unlock()

	kind := classifyMedia(path)
	if kind == KindOther {
		return
	}

	st, err := os.Stat(path)
	if err != nil {
		return
	}

	var info MediaInfo
	cached := false
	if s.metaCache != nil {
		if mi, ok := s.metaCache.Get(path, st.Size(), st.ModTime()); ok {
			info = mi
			cached = true
		}
	}
	if !cached {
		info = extractMediaInfo(ctx, path, kind)
		if s.metaCache != nil {
			s.metaCache.Put(path, st.Size(), st.ModTime(), info)
		}
	}

	file := MediaFileInfo{
		Path:    path,
		Name:    filepath.Base(path),
		Kind:    kind,
		Size:    st.Size(),
		ModTime: st.ModTime().UnixMilli(),
	}
	if info.EncodedDate != nil {
		file.Date = info.EncodedDate.UTC().Format("2006-01-02")
		file.EncodedDate = info.EncodedDate.UTC().Format(time.RFC3339)
	} else {
		file.Date = st.ModTime().UTC().Format("2006-01-02")
	}

	s.mu.Lock()
	s.filesByDate[file.Date] = append(s.filesByDate[file.Date], file)
	s.totalFiles++
	s.totalSize += file.Size
	s.foundMedia++
	emitFile := s.foundMedia%fileProgressEvery == 0
	s.mu.Unlock()

	if emitFile {
		s.emit("scanning", path)
	}
}

func (s *sourceScanner) emit(eventType, currentPath string) {
	if s.onProgress == nil {
		return
	}
	s.mu.Lock()
	prog := AnalyzeProgress{
		Type:            eventType,
		ScannedFiles:    s.scannedFiles,
		ScannedDirs:     s.scannedDirs,
		FoundMediaFiles: s.foundMedia,
		CurrentPath:     currentPath,
	}
	s.mu.Unlock()
	s.onProgress(prog)
}

func (s *sourceScanner) result() *AnalyzeResult {
	s.mu.Lock()
	defer s.mu.Unlock()

	dates := make([]string, 0, len(s.filesByDate))
	for date := range s.filesByDate {
		dates = append(dates, date)
	}
	sort.Strings(dates)

	return &AnalyzeResult{
		FilesByDate: s.filesByDate,
		TotalFiles:  s.totalFiles,
		TotalSize:   s.totalSize,
		Dates:       dates,
	}
}
