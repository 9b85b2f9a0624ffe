package main

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

// ffprobeBinary is overridable for tests
var ffprobeBinary = "ffprobe"

type ffprobeStream struct {
	CodecType  string            `json:"codec_type"`
	CodecName  string            `json:"codec_name"`
	Width      int               `json:"width"`
	Height     int               `json:"height"`
	RFrameRate string            `json:"r_frame_rate"`
	Tags       map[string]string `json:"tags"`
}

type ffprobeFormat struct {
	FormatName string            `json:"format_name"`
	Duration   string            `json:"duration"`
	BitRate    string            `json:"bit_rate"`
	Tags       map[string]string `json:"tags"`
}

type ffprobeResult struct {
	Streams []ffprobeStream `json:"streams"`
	Format  ffprobeFormat   `json:"format"`
}

// probeMedia runs ffprobe against a file and parses its JSON output
func probeMedia(ctx context.Context, path string) (*ffprobeResult, error) {
	args := []string{
		"-v", "quiet",
		"-print_format", "json",
		"-show_format",
		"-show_streams",
		path,
	}

	cmd := exec.CommandContext(ctx, ffprobeBinary, args...)
	output, err := cmd.Output()
	if err != nil {
		return nil, fmt.Errorf("ffprobe failed: %w", err)
	}

	var result ffprobeResult
	if err := json.Unmarshal(output, &result); err != nil {
		return nil, fmt.Errorf("parse ffprobe output: %w", err)
	}

	return &result, nil
}

// firstVideoStream returns the first stream with codec_type video, or nil
func (r *ffprobeResult) firstVideoStream() *ffprobeStream {
	for i := range r.Streams {
		if r.Streams[i].CodecType == "video" {
			return &r.Streams[i]
		}
	}
	return nil
}

// parseFrameRate converts ffprobe's rational r_frame_rate ("30000/1001")
// to frames per second rounded to 2 decimals
func parseFrameRate(rate string) float64 {
	parts := strings.SplitN(rate, "/", 2)
	num, err := strconv.ParseFloat(parts[0], 64)
	if err != nil {
		return 0
	}
	den := 1.0
	if len(parts) == 2 {
		den, err = strconv.ParseFloat(parts[1], 64)
		if err != nil || den == 0 {
			return 0
		}
	}
	return math.Round(num/den*100) / 100
}

// formatLabel collapses ffprobe's multi-alias container names to a single
// human label. The generic mov/mp4 family resolves to the file's own
// extension; other alias lists resolve to the first alias.
func formatLabel(formatName, path string) string {
	if formatName == "" {
		return ""
	}
	if formatName == "mov,mp4,m4a,3gp,3g2,mj2" {
		ext := strings.TrimPrefix(filepath.Ext(path), ".")
		if ext != "" {
			return strings.ToUpper(ext)
		}
	}
	first := formatName
	if i := strings.IndexByte(formatName, ','); i >= 0 {
		first = formatName[:i]
	}
	return strings.ToUpper(first)
}

// creationTimeTags lists probe tag keys that may carry a capture date,
// in preference order. Vendors disagree on where the date lives.
var creationTimeTags = []string{
	"creation_time",
	"com.apple.quicktime.creationdate",
	"date",
}

// creationDate finds an encoded date in format tags, then stream tags
func (r *ffprobeResult) creationDate() (time.Time, string, bool) {
	if t, raw, ok := dateFromTags(r.Format.Tags); ok {
		return t, raw, true
	}
	for i := range r.Streams {
		if t, raw, ok := dateFromTags(r.Streams[i].Tags); ok {
			return t, raw, true
		}
	}
	return time.Time{}, "", false
}

var probeDateLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05.000000Z",
	"2006-01-02 15:04:05",
	"2006:01:02 15:04:05",
	"2006-01-02",
}

func dateFromTags(tags map[string]string) (time.Time, string, bool) {
	for _, key := range creationTimeTags {
		raw, ok := tags[key]
		if !ok || raw == "" {
			continue
		}
		for _, layout := range probeDateLayouts {
			if t, err := time.Parse(layout, raw); err == nil {
				return t, raw, true
			}
		}
	}
	return time.Time{}, "", false
}
