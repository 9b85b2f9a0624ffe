package main

import (
	"fmt"
	"testing"
)

func TestImportHistoryBounded(t *testing.T) {
	cache := openTestMetadataCache(t)
	history, err := OpenImportHistory(cache)
	if err != nil {
		t.Fatal(err)
	}

	for i := 0; i < historyLimit+3; i++ {
		opts := ImportOptions{
			SourcePath:      fmt.Sprintf("/media/card-%d", i),
			DestinationPath: "/photos",
		}
		result := &DetailedImportResult{Imported: i, Total: i}
		if err := history.Record(opts, result); err != nil {
			t.Fatalf("record run %d: %v", i, err)
		}
	}

	entries, err := history.Recent()
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != historyLimit {
		t.Fatalf("history holds %d entries, want %d", len(entries), historyLimit)
	}

	// Newest first, oldest runs pruned
	if entries[0].SourcePath != fmt.Sprintf("/media/card-%d", historyLimit+2) {
		t.Fatalf("entries[0].SourcePath = %q", entries[0].SourcePath)
	}
	last := entries[len(entries)-1]
	if last.SourcePath != "/media/card-3" {
		t.Fatalf("oldest surviving entry = %q, want /media/card-3", last.SourcePath)
	}
}

func TestImportHistoryRecordsCounts(t *testing.T) {
	cache := openTestMetadataCache(t)
	history, err := OpenImportHistory(cache)
	if err != nil {
		t.Fatal(err)
	}

	result := &DetailedImportResult{
		Imported: 8,
		Total:    10,
		Errors:   []ImportError{{File: "a.jpg"}},
		Skipped:  []ImportError{{File: "b.jpg"}},
		Warnings: []string{"duplicate name: c.jpg imported as c_1.jpg"},
	}
	opts := ImportOptions{SourcePath: "/card", DestinationPath: "/photos", SelectedDate: "2024-06-01"}
	if err := history.Record(opts, result); err != nil {
		t.Fatal(err)
	}

	entries, err := history.Recent()
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 {
		t.Fatalf("got %d entries", len(entries))
	}
	e := entries[0]
	if e.Imported != 8 || e.Total != 10 || e.ErrorCount != 1 || e.SkippedCount != 1 || e.WarningCount != 1 {
		t.Fatalf("entry = %+v", e)
	}
	if e.SelectedDate != "2024-06-01" {
		t.Fatalf("selected date = %q", e.SelectedDate)
	}
}
