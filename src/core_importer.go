package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"
)

// panoDestDirName is where panorama source folders land under the destination
const panoDestDirName = "PANO_SOURCES"

// duplicateNameCap bounds collision-suffix attempts before a file is skipped
const duplicateNameCap = 100

// errNoFilesToImport is returned when the date filter matches nothing.
// An empty import is a definite failure, never a vacuous success.
var errNoFilesToImport = errors.New("no files to import")

// layoutFor resolves the per-day target directories. Both the standard and
// vendor-specific branches share this one policy.
func layoutFor(destRoot, date string, createDateFolders bool) (imagesDir, videosDir string) {
	base := destRoot
	if createDateFolders && date != "" {
		base = filepath.Join(destRoot, date)
	}
	return filepath.Join(base, "IMAGES"), filepath.Join(base, "VIDEOS")
}

type importer struct {
	opts      ImportOptions
	cfg       *Config
	cache     *analysisCache
	metaCache *MetadataCache

	onProgress     func(ImportProgress)
	onFileProgress func(FileCopyProgress)

	mu       sync.Mutex
	done     int
	total    int
	imported int
	errs     []ImportError
	skipped  []ImportError
	warnings []string
	reserved map[string]bool // target paths claimed by in-flight copies
}

// importMedia copies the matching media files from a source tree into the
// structured destination layout and reports granular per-file results.
func importMedia(ctx context.Context, opts ImportOptions, cfg *Config, cache *analysisCache, metaCache *MetadataCache, onProgress func(ImportProgress), onFileProgress func(FileCopyProgress)) (*DetailedImportResult, error) {
	structure, err := detectSourceStructure(opts.SourcePath)
	if err != nil {
		return nil, err
	}

	imp := &importer{
		opts:           opts,
		cfg:            cfg,
		cache:          cache,
		metaCache:      metaCache,
		onProgress:     onProgress,
		onFileProgress: onFileProgress,
		reserved:       make(map[string]bool),
	}

	if structure.Type == SourceDJICamera {
		err = imp.runVendor(ctx, structure)
	} else {
		err = imp.runStandard(ctx)
	}
	if err != nil {
		return nil, err
	}

	return imp.result(), nil
}

// runStandard imports through the cached (or fresh) full-tree analysis
func (imp *importer) runStandard(ctx context.Context) error {
	analysis, err := analyzeWithCache(ctx, imp.opts.SourcePath, imp.cfg, imp.cache, imp.metaCache, nil)
	if err != nil {
		return err
	}

	groups := imp.filterByDate(analysis)
	total := 0
	for _, files := range groups {
		total += len(files)
	}
	if total == 0 {
		return errNoFilesToImport
	}
	imp.total = total

	for _, date := range sortedKeys(groups) {
		imp.copyGroup(ctx, groups[date], date)
	}
	return nil
}

// runVendor imports a DJI-style tree: numbered media folders first, then
// panorama source folders copied wholesale. Both phases advance one shared
// counter so the reported percentage is continuous across them.
func (imp *importer) runVendor(ctx context.Context, structure *SourceAnalysis) error {
	root := structure.DCIMRoot
	if root == "" {
		root = imp.opts.SourcePath
	}

	// Per-folder analyses are cached under the folder path, never the full
	// tree: a whole-tree result would include content the branches handle
	// separately.
	folderGroups := make(map[string]map[string][]MediaFileInfo, len(structure.VendorFolders))
	total := 0
	for _, folder := range structure.VendorFolders {
		analysis, err := analyzeWithCache(ctx, filepath.Join(root, folder), imp.cfg, imp.cache, imp.metaCache, nil)
		if err != nil {
			return err
		}
		groups := imp.filterByDate(analysis)
		folderGroups[folder] = groups
		for _, files := range groups {
			total += len(files)
		}
	}

	var panoDirs []string
	panoCounts := make(map[string]int)
	for _, name := range structure.PanoramaFolders {
		if imp.opts.SelectedDate != "" && structure.PanoramaDates[name] != imp.opts.SelectedDate {
			continue
		}
		dir := filepath.Join(root, "PANORAMA", name)
		n := countFilesRecursive(dir)
		panoDirs = append(panoDirs, name)
		panoCounts[name] = n
		total += n
	}

	if total == 0 {
		return errNoFilesToImport
	}
	imp.total = total

	// Phase 1: vendor folder media, grouped by day like a standard import
	for _, folder := range structure.VendorFolders {
		groups := folderGroups[folder]
		for _, date := range sortedKeys(groups) {
			imp.copyGroup(ctx, groups[date], date)
		}
	}

	// Phase 2: panorama sub-folders, wholesale, no per-file date logic
	for _, name := range panoDirs {
		src := filepath.Join(root, "PANORAMA", name)
		dst := filepath.Join(imp.opts.DestinationPath, panoDestDirName, name)
		imp.copyDirRecursive(ctx, src, dst)
	}
	return nil
}

// filterByDate keeps only the selected day, or every day when unfiltered
func (imp *importer) filterByDate(analysis *AnalyzeResult) map[string][]MediaFileInfo {
	if imp.opts.SelectedDate == "" {
		return analysis.FilesByDate
	}
	groups := make(map[string][]MediaFileInfo)
	if files, ok := analysis.FilesByDate[imp.opts.SelectedDate]; ok && len(files) > 0 {
		groups[imp.opts.SelectedDate] = files
	}
	return groups
}

// copyGroup copies one date group into its IMAGES/VIDEOS layout. A failure
// to create the layout directories skips the whole group; other groups
// continue.
func (imp *importer) copyGroup(ctx context.Context, files []MediaFileInfo, date string) {
	imagesDir, videosDir := layoutFor(imp.opts.DestinationPath, date, imp.opts.CreateDateFolders)

	needImages, needVideos := false, false
	for _, f := range files {
		if f.Kind == KindVideo {
			needVideos = true
		} else {
			needImages = true
		}
	}

	for dir, needed := range map[string]bool{imagesDir: needImages, videosDir: needVideos} {
		if !needed {
			continue
		}
		if err := os.MkdirAll(dir, 0755); err != nil {
			imp.skipGroup(files, fmt.Errorf("create target directory %s: %w", dir, err))
			return
		}
	}

	_, _ = mapLimit(ctx, files, imp.cfg.CopyWorkers, func(ctx context.Context, f MediaFileInfo) (struct{}, error) {
		dir := imagesDir
		if f.Kind == KindVideo {
			dir = videosDir
		}
		imp.copyOne(f.Path, dir, f.Name, f.Size)
		return struct{}{}, nil
	})
}

// copyOne resolves the target name, copies with retry, and records the
// outcome. Per-file failures never abort the batch.
func (imp *importer) copyOne(srcPath, destDir, name string, size int64) {
	imp.advance(name)

	target, suffixed, ok := imp.resolveTargetName(destDir, name)
	if !ok {
		imp.mu.Lock()
		imp.skipped = append(imp.skipped, ImportError{
			File:     name,
			Message:  fmt.Sprintf("gave up finding a unique name after %d attempts", duplicateNameCap),
			Type:     ErrUnknown,
			CanRetry: false,
		})
		imp.mu.Unlock()
		return
	}

	imp.emitFileProgress(name, 0, size, 0, "copying")
	started := time.Now()
	outcome := copyFileWithRetry(srcPath, target, imp.opts.MaxRetries)
	if outcome.Success {
		imp.emitFileProgress(name, size, size, copySpeed(size, time.Since(started)), "done")
	} else {
		imp.emitFileProgress(name, 0, size, 0, "failed")
	}

	imp.mu.Lock()
	defer imp.mu.Unlock()
	if outcome.Success {
		imp.imported++
		if suffixed {
			imp.warnings = append(imp.warnings,
				fmt.Sprintf("duplicate name: %s imported as %s", name, filepath.Base(target)))
		}
		return
	}
	if outcome.Error.CanRetry {
		imp.errs = append(imp.errs, *outcome.Error)
	} else {
		imp.skipped = append(imp.skipped, *outcome.Error)
	}
}

// resolveTargetName picks a collision-free target path, appending _1, _2, ...
// before the extension. Reservation prevents two in-flight copies racing to
// the same name.
func (imp *importer) resolveTargetName(destDir, name string) (target string, suffixed, ok bool) {
	ext := filepath.Ext(name)
	stem := name[:len(name)-len(ext)]

	imp.mu.Lock()
	defer imp.mu.Unlock()

	for i := 0; i <= duplicateNameCap; i++ {
		candidate := name
		if i > 0 {
			candidate = fmt.Sprintf("%s_%d%s", stem, i, ext)
		}
		path := filepath.Join(destDir, candidate)
		if imp.reserved[path] {
			continue
		}
		if access(path) {
			continue
		}
		imp.reserved[path] = true
		return path, i > 0, true
	}
	return "", false, false
}

// copyDirRecursive copies a whole folder tree through the retryable copier,
// advancing the shared progress counter per leaf file
func (imp *importer) copyDirRecursive(ctx context.Context, src, dst string) {
	if err := os.MkdirAll(dst, 0755); err != nil {
		// The folder's files still count against the total
		errType, _ := classifyCopyError(err)
		imp.mu.Lock()
		for _, path := range listFilesRecursive(src) {
			imp.done++
			imp.skipped = append(imp.skipped, ImportError{
				File:     filepath.Base(path),
				Message:  fmt.Sprintf("create directory %s: %v", dst, err),
				Type:     errType,
				CanRetry: false,
			})
		}
		imp.emitProgressLocked("")
		imp.mu.Unlock()
		return
	}

	entries, err := os.ReadDir(src)
	if err != nil {
		return
	}

	var files []os.DirEntry
	for _, entry := range entries {
		if entry.IsDir() {
			imp.copyDirRecursive(ctx, filepath.Join(src, entry.Name()), filepath.Join(dst, entry.Name()))
		} else {
			files = append(files, entry)
		}
	}

	_, _ = mapLimit(ctx, files, imp.cfg.CopyWorkers, func(ctx context.Context, entry os.DirEntry) (struct{}, error) {
		name := entry.Name()
		imp.advance(name)

		var size int64
		if st, err := entry.Info(); err == nil {
			size = st.Size()
		}
		imp.emitFileProgress(name, 0, size, 0, "copying")
		started := time.Now()
		outcome := copyFileWithRetry(filepath.Join(src, name), filepath.Join(dst, name), imp.opts.MaxRetries)
		if outcome.Success {
			imp.emitFileProgress(name, size, size, copySpeed(size, time.Since(started)), "done")
		} else {
			imp.emitFileProgress(name, 0, size, 0, "failed")
		}

		imp.mu.Lock()
		if outcome.Success {
			imp.imported++
		} else if outcome.Error.CanRetry {
			imp.errs = append(imp.errs, *outcome.Error)
		} else {
			imp.skipped = append(imp.skipped, *outcome.Error)
		}
		imp.mu.Unlock()
		return struct{}{}, nil
	})
}

// skipGroup records a whole date group as skipped after a directory failure
func (imp *importer) skipGroup(files []MediaFileInfo, cause error) {
	errType, _ := classifyCopyError(cause)

	imp.mu.Lock()
	defer imp.mu.Unlock()
	for _, f := range files {
		imp.done++
		imp.skipped = append(imp.skipped, ImportError{
			File:     f.Name,
			Message:  cause.Error(),
			Type:     errType,
			CanRetry: false,
		})
	}
	imp.emitProgressLocked("")
}

// advance moves the shared progress counter forward by one file
func (imp *importer) advance(currentFile string) {
	imp.mu.Lock()
	imp.done++
	imp.emitProgressLocked(currentFile)
	imp.mu.Unlock()
}

func (imp *importer) emitProgressLocked(currentFile string) {
	if imp.onProgress == nil {
		return
	}
	imp.onProgress(ImportProgress{
		Current:     imp.done,
		Total:       imp.total,
		CurrentFile: currentFile,
	})
}

func (imp *importer) emitFileProgress(name string, transferred, size int64, speed float64, status string) {
	if imp.onFileProgress == nil {
		return
	}
	pct := 0.0
	if size > 0 {
		pct = float64(transferred) / float64(size) * 100
	}
	var eta time.Duration
	if speed > 0 && transferred < size {
		eta = time.Duration(float64(size-transferred) / speed * float64(time.Second))
	}
	imp.onFileProgress(FileCopyProgress{
		FileName:    name,
		Transferred: transferred,
		Total:       size,
		Percentage:  pct,
		Speed:       speed,
		ETA:         eta,
		Status:      status,
	})
}

// copySpeed derives bytes per second from one completed transfer
func copySpeed(size int64, elapsed time.Duration) float64 {
	if elapsed <= 0 {
		return 0
	}
	return float64(size) / elapsed.Seconds()
}

func (imp *importer) result() *DetailedImportResult {
	imp.mu.Lock()
	defer imp.mu.Unlock()
	return &DetailedImportResult{
		Imported: imp.imported,
		Total:    imp.total,
		Errors:   append([]ImportError{}, imp.errs...),
		Skipped:  append([]ImportError{}, imp.skipped...),
		Warnings: append([]string{}, imp.warnings...),
	}
}

// countFilesRecursive counts regular files under dir
func countFilesRecursive(dir string) int {
	return len(listFilesRecursive(dir))
}

// listFilesRecursive returns every regular file path under dir
func listFilesRecursive(dir string) []string {
	var files []string
	filepath.WalkDir(dir, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if !d.IsDir() {
			files = append(files, path)
		}
		return nil
	})
	return files
}

func sortedKeys(m map[string][]MediaFileInfo) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
