package main

import (
	"time"
)

// MediaKind represents the kind of media file
type MediaKind int

const (
	KindImage MediaKind = iota
	KindVideo
	KindOther
)

func (mk MediaKind) String() string {
	return [...]string{"image", "video", "other"}[mk]
}

// MediaFileInfo represents one discovered media file
type MediaFileInfo struct {
	Path        string
	Name        string
	Kind        MediaKind
	Size        int64
	Date        string // YYYY-MM-DD grouping date (UTC)
	EncodedDate string // raw encoded-date string, empty when unknown
	ModTime     int64  // filesystem mtime, ms epoch
}

// MediaInfo holds best-effort technical metadata for one file.
// Zero values mean "could not be determined", never an error.
type MediaInfo struct {
	Width       int
	Height      int
	FrameRate   float64
	EncodedDate *time.Time
	Duration    float64 // seconds
	BitRate     int64   // bits/sec
	Format      string  // container format label
	Codec       string
}

// AnalyzeResult represents one completed source scan
type AnalyzeResult struct {
	FilesByDate map[string][]MediaFileInfo
	TotalFiles  int
	TotalSize   int64
	Dates       []string // sorted ascending
}

// AnalyzeProgress tracks scanning progress
type AnalyzeProgress struct {
	Type            string // "scanning" or "complete"
	ScannedFiles    int
	ScannedDirs     int
	FoundMediaFiles int
	CurrentPath     string
}

// ImportProgress tracks copy progress across an import run
type ImportProgress struct {
	Current     int
	Total       int
	CurrentFile string
}

// FileCopyProgress reports byte-level progress for a single file copy
type FileCopyProgress struct {
	FileName    string
	Transferred int64
	Total       int64
	Percentage  float64
	Speed       float64       // bytes per second, 0 until measurable
	ETA         time.Duration // 0 when unknown or finished
	Status      string        // "copying", "done" or "failed"
}

// SourceType classifies a source tree's directory convention
type SourceType string

const (
	SourceDJICamera    SourceType = "dji_camera"
	SourceStandardDCIM SourceType = "standard_dcim"
	SourceUnknown      SourceType = "unknown"
)

// SourceAnalysis represents the detected structure of a source tree
type SourceAnalysis struct {
	Type            SourceType
	VendorFolders   []string
	PanoramaFolders []string
	PanoramaDates   map[string]string // sub-folder name -> YYYY-MM-DD
	DCIMRoot        string            // resolved DCIM-equivalent root, "" when absent
}

// ErrorType is the fixed taxonomy for copy/import failures
type ErrorType string

const (
	ErrPermission    ErrorType = "permission"
	ErrDiskSpace     ErrorType = "disk_space"
	ErrFileCorrupted ErrorType = "file_corrupted"
	ErrPathTooLong   ErrorType = "path_too_long"
	ErrUnknown       ErrorType = "unknown"
)

// ImportError represents one failed or skipped unit of an import
type ImportError struct {
	File       string
	Message    string
	Type       ErrorType
	CanRetry   bool
	RetryCount int
}

// CopyOutcome is the result of a single retryable copy
type CopyOutcome struct {
	Success bool
	Error   *ImportError
}

// DetailedImportResult is the terminal record of one import run.
// Imported + len(Errors) + len(Skipped) always equals Total.
type DetailedImportResult struct {
	Imported int
	Total    int
	Errors   []ImportError // retryable failures
	Skipped  []ImportError // non-retryable failures and skips
	Warnings []string
}

// ImportOptions parameterizes one import request
type ImportOptions struct {
	SourcePath        string
	DestinationPath   string
	SelectedDate      string // YYYY-MM-DD, empty means all dates
	CreateDateFolders bool
	MaxRetries        int
}

// Config holds application configuration
type Config struct {
	SourcePath        string
	DestinationPath   string
	SelectedDate      string
	CreateDateFolders bool
	AnalyzeOnly       bool
	DirWorkers        int
	CopyWorkers       int
	StatWorkers       int
	CacheTTL          time.Duration
}
