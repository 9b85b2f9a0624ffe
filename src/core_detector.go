package main

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
)

// vendorFolderPattern matches DJI's numbered media folders (DJI_001, ...)
var vendorFolderPattern = regexp.MustCompile(`(?i)^DJI_\d+$`)

// detectSourceStructure inspects a source tree for camera-specific directory
// conventions. It is shallow and cheap relative to a full analysis, so it is
// re-run on every import request rather than cached.
func detectSourceStructure(root string) (*SourceAnalysis, error) {
	analysis := &SourceAnalysis{
		Type:          SourceUnknown,
		PanoramaDates: make(map[string]string),
	}

	entries, err := os.ReadDir(root)
	if err != nil {
		return nil, fmt.Errorf("read source root: %w", err)
	}

	// A DCIM child becomes the effective scan root
	effectiveRoot := root
	for _, entry := range entries {
		if entry.IsDir() && strings.EqualFold(entry.Name(), "DCIM") {
			effectiveRoot = filepath.Join(root, entry.Name())
			analysis.DCIMRoot = effectiveRoot
			break
		}
	}

	if effectiveRoot != root {
		entries, err = os.ReadDir(effectiveRoot)
		if err != nil {
			return nil, fmt.Errorf("read DCIM root: %w", err)
		}
	}

	var panoramaDir string
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		name := entry.Name()
		if vendorFolderPattern.MatchString(name) {
			analysis.VendorFolders = append(analysis.VendorFolders, name)
		} else if strings.EqualFold(name, "PANORAMA") {
			panoramaDir = filepath.Join(effectiveRoot, name)
		}
	}

	if panoramaDir != "" {
		// Metadata-only listing: names and mtimes, no recursive stat. The
		// sub-folders hold raw panorama frames and are copied wholesale.
		subs, err := os.ReadDir(panoramaDir)
		if err == nil {
			for _, sub := range subs {
				if !sub.IsDir() {
					continue
				}
				analysis.PanoramaFolders = append(analysis.PanoramaFolders, sub.Name())
				if st, err := sub.Info(); err == nil {
					analysis.PanoramaDates[sub.Name()] = st.ModTime().UTC().Format("2006-01-02")
				}
			}
		}
	}

	switch {
	case len(analysis.VendorFolders) > 0 || len(analysis.PanoramaFolders) > 0:
		analysis.Type = SourceDJICamera
	case analysis.DCIMRoot != "":
		analysis.Type = SourceStandardDCIM
	default:
		analysis.Type = SourceUnknown // treated as standard
	}

	return analysis, nil
}
