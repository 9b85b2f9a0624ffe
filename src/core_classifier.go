package main

import (
	"path/filepath"
	"strings"
)

var (
	imageExtensions = map[string]bool{
		".jpg": true, ".jpeg": true, ".jpe": true, ".png": true,
		".gif": true, ".bmp": true, ".webp": true,
		".tiff": true, ".tif": true, ".heic": true, ".heif": true,
		".raw": true, ".cr2": true, ".cr3": true, ".nef": true,
		".arw": true, ".dng": true, ".orf": true, ".rw2": true,
	}

	videoExtensions = map[string]bool{
		".mp4": true, ".mov": true, ".avi": true, ".wmv": true,
		".mkv": true, ".m4v": true, ".mpg": true, ".mpeg": true,
		".flv": true, ".3gp": true, ".mts": true, ".m2ts": true,
		".insv": true,
	}
)

// classifyMedia detects the kind of media file from its extension
func classifyMedia(path string) MediaKind {
	ext := strings.ToLower(filepath.Ext(path))

	if imageExtensions[ext] {
		return KindImage
	}
	if videoExtensions[ext] {
		return KindVideo
	}
	return KindOther
}

// isHEIC reports whether the file uses the HEIC/HEIF container
func isHEIC(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	return ext == ".heic" || ext == ".heif"
}
