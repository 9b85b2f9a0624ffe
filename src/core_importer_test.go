package main

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"
)

func TestLayoutFor(t *testing.T) {
	img, vid := layoutFor("/photos", "2024-06-01", true)
	if img != filepath.Join("/photos", "2024-06-01", "IMAGES") {
		t.Fatalf("imagesDir = %q", img)
	}
	if vid != filepath.Join("/photos", "2024-06-01", "VIDEOS") {
		t.Fatalf("videosDir = %q", vid)
	}

	img, vid = layoutFor("/photos", "2024-06-01", false)
	if img != filepath.Join("/photos", "IMAGES") || vid != filepath.Join("/photos", "VIDEOS") {
		t.Fatalf("flat layout = (%q, %q)", img, vid)
	}
}

func importFixture(t *testing.T) (*Config, *analysisCache) {
	t.Helper()
	stubProbeTools(t)
	return testConfig(), newAnalysisCache(time.Minute, nil)
}

func checkResultInvariant(t *testing.T, r *DetailedImportResult) {
	t.Helper()
	if r.Imported+len(r.Errors)+len(r.Skipped) != r.Total {
		t.Fatalf("imported(%d) + errors(%d) + skipped(%d) != total(%d)",
			r.Imported, len(r.Errors), len(r.Skipped), r.Total)
	}
}

func TestImportStandardGroupsByDate(t *testing.T) {
	cfg, cache := importFixture(t)
	src, dest := t.TempDir(), t.TempDir()

	day1 := time.Date(2024, 6, 1, 10, 0, 0, 0, time.UTC)
	day2 := time.Date(2024, 6, 2, 10, 0, 0, 0, time.UTC)
	writeFileWithMtime(t, filepath.Join(src, "shot.jpg"), "jpeg bytes", day1)
	writeFileWithMtime(t, filepath.Join(src, "clip.mp4"), "video bytes", day2)

	opts := ImportOptions{
		SourcePath:        src,
		DestinationPath:   dest,
		CreateDateFolders: true,
	}
	result, err := importMedia(context.Background(), opts, cfg, cache, nil, nil, nil)
	if err != nil {
		t.Fatal(err)
	}

	if result.Imported != 2 || result.Total != 2 {
		t.Fatalf("imported %d/%d, want 2/2", result.Imported, result.Total)
	}
	if len(result.Errors) != 0 || len(result.Skipped) != 0 {
		t.Fatalf("errors = %v, skipped = %v", result.Errors, result.Skipped)
	}
	checkResultInvariant(t, result)

	if !access(filepath.Join(dest, "2024-06-01", "IMAGES", "shot.jpg")) {
		t.Fatal("jpeg missing from dated IMAGES dir")
	}
	if !access(filepath.Join(dest, "2024-06-02", "VIDEOS", "clip.mp4")) {
		t.Fatal("video missing from dated VIDEOS dir")
	}
}

func TestImportSelectedDateFilters(t *testing.T) {
	cfg, cache := importFixture(t)
	src, dest := t.TempDir(), t.TempDir()

	day1 := time.Date(2024, 6, 1, 10, 0, 0, 0, time.UTC)
	day2 := time.Date(2024, 6, 2, 10, 0, 0, 0, time.UTC)
	writeFileWithMtime(t, filepath.Join(src, "keep.jpg"), "x", day1)
	writeFileWithMtime(t, filepath.Join(src, "drop.jpg"), "y", day2)

	opts := ImportOptions{
		SourcePath:      src,
		DestinationPath: dest,
		SelectedDate:    "2024-06-01",
	}
	result, err := importMedia(context.Background(), opts, cfg, cache, nil, nil, nil)
	if err != nil {
		t.Fatal(err)
	}
	if result.Imported != 1 || result.Total != 1 {
		t.Fatalf("imported %d/%d, want 1/1", result.Imported, result.Total)
	}
	if !access(filepath.Join(dest, "IMAGES", "keep.jpg")) {
		t.Fatal("filtered file not imported")
	}
	if access(filepath.Join(dest, "IMAGES", "drop.jpg")) {
		t.Fatal("out-of-filter file imported")
	}
}

func TestImportNoMatchingFilesFails(t *testing.T) {
	cfg, cache := importFixture(t)
	src, dest := t.TempDir(), t.TempDir()
	writeFileWithMtime(t, filepath.Join(src, "a.jpg"), "x", time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC))

	opts := ImportOptions{
		SourcePath:      src,
		DestinationPath: dest,
		SelectedDate:    "1999-01-01",
	}
	if _, err := importMedia(context.Background(), opts, cfg, cache, nil, nil, nil); !errors.Is(err, errNoFilesToImport) {
		t.Fatalf("err = %v, want errNoFilesToImport", err)
	}
}

func TestImportResolvesDuplicateNames(t *testing.T) {
	cfg, cache := importFixture(t)
	src, dest := t.TempDir(), t.TempDir()

	day := time.Date(2024, 6, 1, 10, 0, 0, 0, time.UTC)
	writeFileWithMtime(t, filepath.Join(src, "cardA", "IMG_0001.jpg"), "first", day)
	writeFileWithMtime(t, filepath.Join(src, "cardB", "IMG_0001.jpg"), "second", day)

	opts := ImportOptions{SourcePath: src, DestinationPath: dest}
	result, err := importMedia(context.Background(), opts, cfg, cache, nil, nil, nil)
	if err != nil {
		t.Fatal(err)
	}

	if result.Imported != 2 {
		t.Fatalf("imported = %d, want 2", result.Imported)
	}
	if !access(filepath.Join(dest, "IMAGES", "IMG_0001.jpg")) {
		t.Fatal("first file missing")
	}
	if !access(filepath.Join(dest, "IMAGES", "IMG_0001_1.jpg")) {
		t.Fatal("collision suffix _1 not applied")
	}
	if len(result.Warnings) != 1 {
		t.Fatalf("warnings = %v, want one collision warning", result.Warnings)
	}
	checkResultInvariant(t, result)
}

func TestImportUsesCachedAnalysis(t *testing.T) {
	cfg, cache := importFixture(t)
	src, dest := t.TempDir(), t.TempDir()

	day := time.Date(2024, 6, 1, 10, 0, 0, 0, time.UTC)
	writeFileWithMtime(t, filepath.Join(src, "listed.jpg"), "x", day)
	writeFileWithMtime(t, filepath.Join(src, "unlisted.jpg"), "y", day)

	// A cached result that only knows one of the two on-disk files: if the
	// import re-walked the tree it would pick up both.
	st, err := os.Stat(filepath.Join(src, "listed.jpg"))
	if err != nil {
		t.Fatal(err)
	}
	cache.Put(src, &AnalyzeResult{
		FilesByDate: map[string][]MediaFileInfo{
			"2024-06-01": {{
				Path: filepath.Join(src, "listed.jpg"),
				Name: "listed.jpg",
				Kind: KindImage,
				Size: st.Size(),
				Date: "2024-06-01",
			}},
		},
		TotalFiles: 1,
		TotalSize:  st.Size(),
		Dates:      []string{"2024-06-01"},
	})

	result, err := importMedia(context.Background(), ImportOptions{SourcePath: src, DestinationPath: dest}, cfg, cache, nil, nil, nil)
	if err != nil {
		t.Fatal(err)
	}
	if result.Total != 1 || result.Imported != 1 {
		t.Fatalf("imported %d/%d, want the cached single file", result.Imported, result.Total)
	}
	if access(filepath.Join(dest, "IMAGES", "unlisted.jpg")) {
		t.Fatal("import ignored the cache and re-walked the tree")
	}
}

func TestImportVendorLayoutBothPhases(t *testing.T) {
	cfg, cache := importFixture(t)
	src, dest := t.TempDir(), t.TempDir()

	day := time.Date(2024, 6, 1, 10, 0, 0, 0, time.UTC)
	vendorDir := filepath.Join(src, "DCIM", "DJI_001")
	for _, name := range []string{"DJI_0001.jpg", "DJI_0002.jpg", "DJI_0003.jpg"} {
		writeFileWithMtime(t, filepath.Join(vendorDir, name), "img "+name, day)
	}

	panoDir := filepath.Join(src, "DCIM", "PANORAMA", "20240601")
	writeFile(t, filepath.Join(panoDir, "pano_000.jpg"), "p0")
	writeFile(t, filepath.Join(panoDir, "pano_001.jpg"), "p1")
	writeFile(t, filepath.Join(panoDir, "nested", "pano_002.jpg"), "p2")
	// Set the folder mtime after populating it
	if err := os.Chtimes(panoDir, day, day); err != nil {
		t.Fatal(err)
	}

	var events []ImportProgress
	opts := ImportOptions{
		SourcePath:        src,
		DestinationPath:   dest,
		SelectedDate:      "2024-06-01",
		CreateDateFolders: true,
	}
	result, err := importMedia(context.Background(), opts, cfg, cache, nil, func(p ImportProgress) {
		events = append(events, p)
	}, nil)
	if err != nil {
		t.Fatal(err)
	}

	wantTotal := 3 + 3 // vendor images + panorama files (incl. nested)
	if result.Total != wantTotal || result.Imported != wantTotal {
		t.Fatalf("imported %d/%d, want %d/%d", result.Imported, result.Total, wantTotal, wantTotal)
	}
	checkResultInvariant(t, result)

	for _, name := range []string{"DJI_0001.jpg", "DJI_0002.jpg", "DJI_0003.jpg"} {
		if !access(filepath.Join(dest, "2024-06-01", "IMAGES", name)) {
			t.Fatalf("vendor image %s missing from dated IMAGES dir", name)
		}
	}
	if !access(filepath.Join(dest, panoDestDirName, "20240601", "pano_000.jpg")) {
		t.Fatal("panorama file missing from PANO_SOURCES")
	}
	if !access(filepath.Join(dest, panoDestDirName, "20240601", "nested", "pano_002.jpg")) {
		t.Fatal("nested panorama file missing (copy not recursive)")
	}

	// Progress is continuous across the two phases: one shared total, never
	// exceeded, finishing exactly at 100%.
	if len(events) == 0 {
		t.Fatal("no progress events")
	}
	for _, p := range events {
		if p.Total != wantTotal {
			t.Fatalf("event total = %d, want %d", p.Total, wantTotal)
		}
		if p.Current > p.Total {
			t.Fatalf("progress overran: %d/%d", p.Current, p.Total)
		}
	}
	if last := events[len(events)-1]; last.Current != wantTotal {
		t.Fatalf("final progress = %d, want %d", last.Current, wantTotal)
	}
}

func TestImportVendorDateFilterSkipsPanorama(t *testing.T) {
	cfg, cache := importFixture(t)
	src, dest := t.TempDir(), t.TempDir()

	day1 := time.Date(2024, 6, 1, 10, 0, 0, 0, time.UTC)
	day2 := time.Date(2024, 6, 2, 10, 0, 0, 0, time.UTC)
	writeFileWithMtime(t, filepath.Join(src, "DCIM", "DJI_001", "a.jpg"), "x", day1)

	panoDir := filepath.Join(src, "DCIM", "PANORAMA", "20240602")
	writeFile(t, filepath.Join(panoDir, "frame.jpg"), "f")
	if err := os.Chtimes(panoDir, day2, day2); err != nil {
		t.Fatal(err)
	}

	opts := ImportOptions{SourcePath: src, DestinationPath: dest, SelectedDate: "2024-06-01"}
	result, err := importMedia(context.Background(), opts, cfg, cache, nil, nil, nil)
	if err != nil {
		t.Fatal(err)
	}
	if result.Total != 1 || result.Imported != 1 {
		t.Fatalf("imported %d/%d, want 1/1", result.Imported, result.Total)
	}
	if access(filepath.Join(dest, panoDestDirName, "20240602", "frame.jpg")) {
		t.Fatal("panorama folder outside the date filter was copied")
	}
}

func TestImportGroupSkippedWhenLayoutDirFails(t *testing.T) {
	cfg, cache := importFixture(t)
	src, dest := t.TempDir(), t.TempDir()

	day := time.Date(2024, 6, 1, 10, 0, 0, 0, time.UTC)
	writeFileWithMtime(t, filepath.Join(src, "a.jpg"), "x", day)
	writeFileWithMtime(t, filepath.Join(src, "b.jpg"), "y", day)

	// A regular file where the date folder should go makes MkdirAll fail
	writeFile(t, filepath.Join(dest, "2024-06-01"), "in the way")

	opts := ImportOptions{SourcePath: src, DestinationPath: dest, CreateDateFolders: true}
	result, err := importMedia(context.Background(), opts, cfg, cache, nil, nil, nil)
	if err != nil {
		t.Fatal(err)
	}
	if result.Imported != 0 {
		t.Fatalf("imported = %d, want 0", result.Imported)
	}
	if len(result.Skipped) != 2 {
		t.Fatalf("skipped = %d entries, want the whole group", len(result.Skipped))
	}
	checkResultInvariant(t, result)
}

func TestImportRecordsRetryableFailures(t *testing.T) {
	cfg, cache := importFixture(t)
	src, dest := t.TempDir(), t.TempDir()

	day := time.Date(2024, 6, 1, 10, 0, 0, 0, time.UTC)
	writeFileWithMtime(t, filepath.Join(src, "ok.jpg"), "fine", day)
	writeFileWithMtime(t, filepath.Join(src, "gone.jpg"), "doomed", day)

	// Prime the cache, then delete one source file so its copy fails
	if _, err := analyzeAndCache(cfg, cache, src); err != nil {
		t.Fatal(err)
	}
	if err := os.Remove(filepath.Join(src, "gone.jpg")); err != nil {
		t.Fatal(err)
	}

	opts := ImportOptions{SourcePath: src, DestinationPath: dest}
	result, err := importMedia(context.Background(), opts, cfg, cache, nil, nil, nil)
	if err != nil {
		t.Fatal(err)
	}
	if result.Imported != 1 {
		t.Fatalf("imported = %d, want 1", result.Imported)
	}
	if len(result.Errors) != 1 {
		t.Fatalf("errors = %v, want one retryable failure", result.Errors)
	}
	if !result.Errors[0].CanRetry {
		t.Fatal("missing-source failure should classify retryable")
	}
	checkResultInvariant(t, result)
}

func TestImportPerFileProgressStatuses(t *testing.T) {
	cfg, cache := importFixture(t)
	src, dest := t.TempDir(), t.TempDir()

	day := time.Date(2024, 6, 1, 10, 0, 0, 0, time.UTC)
	writeFileWithMtime(t, filepath.Join(src, "ok.jpg"), "fine", day)
	writeFileWithMtime(t, filepath.Join(src, "gone.jpg"), "doomed", day)

	if _, err := analyzeAndCache(cfg, cache, src); err != nil {
		t.Fatal(err)
	}
	if err := os.Remove(filepath.Join(src, "gone.jpg")); err != nil {
		t.Fatal(err)
	}

	var (
		mu     sync.Mutex
		events []FileCopyProgress
	)
	opts := ImportOptions{SourcePath: src, DestinationPath: dest}
	if _, err := importMedia(context.Background(), opts, cfg, cache, nil, nil, func(p FileCopyProgress) {
		mu.Lock()
		events = append(events, p)
		mu.Unlock()
	}); err != nil {
		t.Fatal(err)
	}

	byFile := make(map[string][]string)
	for _, e := range events {
		byFile[e.FileName] = append(byFile[e.FileName], e.Status)
	}
	if got := byFile["ok.jpg"]; len(got) != 2 || got[0] != "copying" || got[1] != "done" {
		t.Fatalf("ok.jpg statuses = %v, want [copying done]", got)
	}
	// A failed copy must never report as done
	if got := byFile["gone.jpg"]; len(got) != 2 || got[0] != "copying" || got[1] != "failed" {
		t.Fatalf("gone.jpg statuses = %v, want [copying failed]", got)
	}

	for _, e := range events {
		if e.Status == "done" {
			if e.Transferred != e.Total || e.Percentage != 100 {
				t.Fatalf("done event not at 100%%: %+v", e)
			}
			if e.Speed < 0 || e.ETA != 0 {
				t.Fatalf("done event speed/eta = %v/%v", e.Speed, e.ETA)
			}
		}
	}
}

// analyzeAndCache primes the cache the way the analyze entry points do
func analyzeAndCache(cfg *Config, cache *analysisCache, src string) (*AnalyzeResult, error) {
	return analyzeWithCache(context.Background(), src, cfg, cache, nil, nil)
}
