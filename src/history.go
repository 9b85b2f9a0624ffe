package main

import (
	"fmt"
	"time"
)

// historyLimit bounds the stored import history to the most recent runs
const historyLimit = 10

// HistoryEntry is one recorded import run, display-only
type HistoryEntry struct {
	SourcePath      string
	DestinationPath string
	SelectedDate    string
	Imported        int
	Total           int
	ErrorCount      int
	SkippedCount    int
	WarningCount    int
	RanAt           time.Time
}

// ImportHistory stores a bounded record of past import runs
type ImportHistory struct {
	cache *MetadataCache
}

// OpenImportHistory opens the history store on the shared cache database
func OpenImportHistory(cache *MetadataCache) (*ImportHistory, error) {
	schema := `
	CREATE TABLE IF NOT EXISTS import_history (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		source_path TEXT NOT NULL,
		destination_path TEXT NOT NULL,
		selected_date TEXT,
		imported INTEGER NOT NULL,
		total INTEGER NOT NULL,
		error_count INTEGER NOT NULL,
		skipped_count INTEGER NOT NULL,
		warning_count INTEGER NOT NULL,
		ran_at INTEGER NOT NULL
	);
	`
	if _, err := cache.db.Exec(schema); err != nil {
		return nil, fmt.Errorf("create history schema: %w", err)
	}
	return &ImportHistory{cache: cache}, nil
}

// Record appends one run and prunes everything beyond the most recent limit
func (h *ImportHistory) Record(opts ImportOptions, result *DetailedImportResult) error {
	_, err := h.cache.db.Exec(`
		INSERT INTO import_history
		(source_path, destination_path, selected_date, imported, total,
		 error_count, skipped_count, warning_count, ran_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, opts.SourcePath, opts.DestinationPath, opts.SelectedDate,
		result.Imported, result.Total, len(result.Errors), len(result.Skipped),
		len(result.Warnings), time.Now().Unix())
	if err != nil {
		return fmt.Errorf("record import: %w", err)
	}

	_, err = h.cache.db.Exec(`
		DELETE FROM import_history
		WHERE id NOT IN (
			SELECT id FROM import_history ORDER BY id DESC LIMIT ?
		)
	`, historyLimit)
	if err != nil {
		return fmt.Errorf("prune history: %w", err)
	}
	return nil
}

// Recent returns the stored runs, newest first
func (h *ImportHistory) Recent() ([]HistoryEntry, error) {
	rows, err := h.cache.db.Query(`
		SELECT source_path, destination_path, selected_date, imported, total,
		       error_count, skipped_count, warning_count, ran_at
		FROM import_history
		ORDER BY id DESC
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []HistoryEntry
	for rows.Next() {
		var (
			e    HistoryEntry
			unix int64
		)
		if err := rows.Scan(&e.SourcePath, &e.DestinationPath, &e.SelectedDate,
			&e.Imported, &e.Total, &e.ErrorCount, &e.SkippedCount,
			&e.WarningCount, &unix); err != nil {
			return nil, err
		}
		e.RanAt = time.Unix(unix, 0)
		entries = append(entries, e)
	}
	return entries, rows.Err()
}
