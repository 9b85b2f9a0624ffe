package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/dustin/go-humanize"
)

func main() {
	fileCfg, err := loadConfigFile()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Warning: %v (using defaults)\n", err)
		fileCfg = &ConfigFile{}
	}
	cfg := buildConfig(fileCfg)

	flag.StringVar(&cfg.SourcePath, "source", "", "Source directory to scan for media")
	flag.StringVar(&cfg.DestinationPath, "dest", cfg.DestinationPath, "Destination root for imported files")
	flag.StringVar(&cfg.SelectedDate, "date", "", "Only import files from this day (YYYY-MM-DD)")
	flag.BoolVar(&cfg.CreateDateFolders, "date-folders", cfg.CreateDateFolders, "Nest IMAGES/VIDEOS under per-day folders")
	flag.BoolVar(&cfg.AnalyzeOnly, "analyze-only", false, "Scan and report without copying")
	flag.IntVar(&cfg.CopyWorkers, "copy-workers", cfg.CopyWorkers, "Parallel file copies")
	flag.IntVar(&cfg.DirWorkers, "dir-workers", cfg.DirWorkers, "Parallel directory recursion")
	noTUI := flag.Bool("no-tui", false, "Disable TUI, use simple CLI output")
	showHistory := flag.Bool("history", false, "Show recent import runs and exit")
	retries := flag.Int("retries", defaultMaxRetries, "Max retries per failed copy")
	saveCfg := flag.Bool("save-config", false, "Persist the effective settings to ~/.mediawrangler.yaml")

	flag.Parse()

	if *saveCfg {
		if err := saveConfigFile(configFileFrom(cfg)); err != nil {
			fmt.Fprintf(os.Stderr, "Warning: could not save config: %v\n", err)
		}
	}

	if *showHistory {
		runHistory(cfg)
		return
	}

	if cfg.SourcePath == "" {
		fmt.Fprintln(os.Stderr, "Error: -source is required")
		flag.Usage()
		os.Exit(1)
	}
	if !cfg.AnalyzeOnly && cfg.DestinationPath == "" {
		fmt.Fprintln(os.Stderr, "Error: -dest is required (or use -analyze-only)")
		flag.Usage()
		os.Exit(1)
	}

	opts := ImportOptions{
		SourcePath:        cfg.SourcePath,
		DestinationPath:   cfg.DestinationPath,
		SelectedDate:      cfg.SelectedDate,
		CreateDateFolders: cfg.CreateDateFolders,
		MaxRetries:        *retries,
	}

	if *noTUI {
		runCLI(cfg, opts)
	} else {
		runTUI(cfg, opts)
	}
}

func runCLI(cfg *Config, opts ImportOptions) {
	fmt.Println("Media Wrangler")
	fmt.Println("==============")
	fmt.Println()
	fmt.Printf("  Source:       %s\n", cfg.SourcePath)
	if !cfg.AnalyzeOnly {
		fmt.Printf("  Destination:  %s\n", cfg.DestinationPath)
	}
	if cfg.SelectedDate != "" {
		fmt.Printf("  Date filter:  %s\n", cfg.SelectedDate)
	}
	fmt.Printf("  Workers:      %d dirs / %d copies\n", cfg.DirWorkers, cfg.CopyWorkers)
	fmt.Println()

	metaCache, history := openStores(cfg)
	if metaCache != nil {
		defer metaCache.Close()
	}
	cache := newAnalysisCache(cfg.CacheTTL, nil)
	ctx := context.Background()

	fmt.Println("Analyzing source...")
	result, err := analyzeWithCache(ctx, cfg.SourcePath, cfg, cache, metaCache, func(p AnalyzeProgress) {
		if p.Type != "scanning" {
			return
		}
		fmt.Printf("\r  %d dirs, %d files scanned, %d media found  %s",
			p.ScannedDirs, p.ScannedFiles, p.FoundMediaFiles,
			truncateFilePath(p.CurrentPath, 50))
	})
	fmt.Printf("\r%s\r", strings.Repeat(" ", 120))
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error analyzing: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("Found %d media files (%s) across %d days\n",
		result.TotalFiles, humanize.Bytes(uint64(result.TotalSize)), len(result.Dates))
	for _, date := range result.Dates {
		files := result.FilesByDate[date]
		var size int64
		for _, f := range files {
			size += f.Size
		}
		fmt.Printf("  %s  %4d files  %s\n", date, len(files), humanize.Bytes(uint64(size)))
	}
	fmt.Println()

	if cfg.AnalyzeOnly {
		return
	}

	fmt.Println("Importing...")
	importResult, err := importMedia(ctx, opts, cfg, cache, metaCache, func(p ImportProgress) {
		if p.Total == 0 {
			return
		}
		percent := float64(p.Current) * 100 / float64(p.Total)
		fmt.Printf("\r  [%-50s] %3.0f%% (%d/%d) %s",
			progressBar(percent), percent, p.Current, p.Total,
			truncateFilePath(p.CurrentFile, 40))
	}, nil)
	fmt.Printf("\r%s\r", strings.Repeat(" ", 150))
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error importing: %v\n", err)
		os.Exit(1)
	}

	printImportSummary(importResult)

	if history != nil {
		if err := history.Record(opts, importResult); err != nil {
			fmt.Fprintf(os.Stderr, "Warning: could not record history: %v\n", err)
		}
	}
}

func printImportSummary(r *DetailedImportResult) {
	fmt.Printf("Imported %d of %d files\n", r.Imported, r.Total)
	if len(r.Errors) > 0 {
		fmt.Printf("\nRetryable failures (%d):\n", len(r.Errors))
		for _, e := range r.Errors {
			fmt.Printf("  - %s: %s (%s, %d retries)\n", e.File, e.Message, e.Type, e.RetryCount)
		}
	}
	if len(r.Skipped) > 0 {
		fmt.Printf("\nSkipped (%d):\n", len(r.Skipped))
		for _, e := range r.Skipped {
			fmt.Printf("  - %s: %s (%s)\n", e.File, e.Message, e.Type)
		}
	}
	if len(r.Warnings) > 0 {
		fmt.Printf("\nWarnings (%d):\n", len(r.Warnings))
		for _, w := range r.Warnings {
			fmt.Printf("  - %s\n", w)
		}
	}
}

func runHistory(cfg *Config) {
	metaCache, history := openStores(cfg)
	if metaCache != nil {
		defer metaCache.Close()
	}
	if history == nil {
		fmt.Println("No import history available")
		return
	}

	entries, err := history.Recent()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error reading history: %v\n", err)
		os.Exit(1)
	}
	if len(entries) == 0 {
		fmt.Println("No imports recorded yet")
		return
	}

	fmt.Println("Recent imports:")
	for _, e := range entries {
		filter := ""
		if e.SelectedDate != "" {
			filter = " [" + e.SelectedDate + "]"
		}
		fmt.Printf("  %s  %s → %s%s: %d/%d imported, %d errors, %d skipped\n",
			e.RanAt.Format("2006-01-02 15:04"),
			truncateFilePath(e.SourcePath, 30),
			truncateFilePath(e.DestinationPath, 30),
			filter, e.Imported, e.Total, e.ErrorCount, e.SkippedCount)
	}
}

// openStores opens the persistent stores under the destination (falling back
// to the user cache dir when no destination is set). Both are best-effort.
func openStores(cfg *Config) (*MetadataCache, *ImportHistory) {
	base := cfg.DestinationPath
	if base == "" {
		dir, err := os.UserCacheDir()
		if err != nil {
			return nil, nil
		}
		base = dir
	}

	metaCache, err := OpenMetadataCache(base)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Warning: cache disabled: %v\n", err)
		return nil, nil
	}
	history, err := OpenImportHistory(metaCache)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Warning: history disabled: %v\n", err)
		return metaCache, nil
	}
	return metaCache, history
}

func runTUI(cfg *Config, opts ImportOptions) {
	p := tea.NewProgram(initialModel(cfg, opts), tea.WithAltScreen())
	if _, err := p.Run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// progressBar creates a text progress bar
func progressBar(percent float64) string {
	const width = 50
	filled := int(percent / 2)
	if filled > width {
		filled = width
	}
	bar := ""
	for i := 0; i < width; i++ {
		if i < filled {
			bar += "="
		} else if i == filled {
			bar += ">"
		} else {
			bar += " "
		}
	}
	return bar
}

// truncateFilePath shortens a file path for display
func truncateFilePath(path string, maxLen int) string {
	if len(path) <= maxLen {
		return path
	}
	base := filepath.Base(path)
	if len(base) <= maxLen {
		return "..." + base
	}
	return "..." + base[len(base)-maxLen+3:]
}
