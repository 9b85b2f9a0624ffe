package main

import (
	"context"
	"image"
	"os"
	"os/exec"
	"strconv"
	"strings"
	"time"

	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	"github.com/rwcarlsen/goexif/exif"
)

const (
	videoProbeTimeout = 60 * time.Second // videos can be large
	imageProbeTimeout = 5 * time.Second
)

// exiftoolBinary is overridable for tests
var exiftoolBinary = "exiftool"

// extractMediaInfo extracts technical metadata from a media file. It never
// returns an error: any internal failure yields a partially- or fully-empty
// MediaInfo.
func extractMediaInfo(ctx context.Context, path string, kind MediaKind) MediaInfo {
	switch kind {
	case KindVideo:
		return extractVideoInfo(ctx, path)
	case KindImage:
		return extractImageInfo(ctx, path)
	default:
		return MediaInfo{}
	}
}

// extractVideoInfo probes the container and derives stream/format fields
func extractVideoInfo(ctx context.Context, path string) MediaInfo {
	ctx, cancel := context.WithTimeout(ctx, videoProbeTimeout)
	defer cancel()

	probe, err := probeMedia(ctx, path)
	if err != nil {
		return MediaInfo{}
	}

	var info MediaInfo
	if vs := probe.firstVideoStream(); vs != nil {
		info.Width = vs.Width
		info.Height = vs.Height
		info.Codec = vs.CodecName
		info.FrameRate = parseFrameRate(vs.RFrameRate)
	}

	if d, err := strconv.ParseFloat(probe.Format.Duration, 64); err == nil {
		info.Duration = d
	}
	if br, err := strconv.ParseInt(probe.Format.BitRate, 10, 64); err == nil {
		info.BitRate = br
	}
	info.Format = formatLabel(probe.Format.FormatName, path)

	if t, _, ok := probe.creationDate(); ok {
		info.EncodedDate = &t
	}

	return info
}

// extractImageInfo reads dimensions from header bytes and resolves the
// encoded date through the strategy chain
func extractImageInfo(ctx context.Context, path string) MediaInfo {
	ctx, cancel := context.WithTimeout(ctx, imageProbeTimeout)
	defer cancel()

	var info MediaInfo
	if f, err := os.Open(path); err == nil {
		if cfg, format, err := image.DecodeConfig(f); err == nil {
			info.Width = cfg.Width
			info.Height = cfg.Height
			info.Format = strings.ToUpper(format)
		}
		f.Close()
	}

	// Header decode covers jpeg/png/gif; EXIF carries dimensions for the rest
	if info.Width == 0 || info.Height == 0 {
		exifDimensions(path, &info)
	}

	for _, strategy := range imageDateStrategies {
		if ctx.Err() != nil {
			break
		}
		if t, ok := strategy.try(ctx, path); ok {
			info.EncodedDate = t
			break
		}
	}

	return info
}

// dateStrategy is one attempt at finding a capture date. Strategies run in
// order until one yields a value; none is mandatory.
type dateStrategy struct {
	name string
	try  func(ctx context.Context, path string) (*time.Time, bool)
}

// Different camera and phone vendors embed dates in incompatible places.
// The chain maximizes the chance of finding a usable date: a metadata tool
// for HEIC/HEIF, then embedded EXIF, then container tags.
var imageDateStrategies = []dateStrategy{
	{name: "exiftool-heic", try: tryExiftoolDate},
	{name: "exif", try: tryExifDate},
	{name: "probe-heic", try: tryProbeDate},
}

// exifDateFields lists EXIF date tags in preference order
var exifDateFields = []exif.FieldName{
	exif.DateTimeOriginal,
	exif.DateTimeDigitized,
	exif.DateTime,
}

const exifDateLayout = "2006:01:02 15:04:05"

// tryExifDate parses embedded EXIF across the preference-ordered date fields
func tryExifDate(ctx context.Context, path string) (*time.Time, bool) {
	f, err := os.Open(path)
	if err != nil {
		return nil, false
	}
	defer f.Close()

	x, err := exif.Decode(f)
	if err != nil {
		return nil, false
	}

	for _, field := range exifDateFields {
		tag, err := x.Get(field)
		if err != nil {
			continue
		}
		raw, err := tag.StringVal()
		if err != nil {
			continue
		}
		if t, err := time.Parse(exifDateLayout, strings.TrimSpace(raw)); err == nil {
			return &t, true
		}
	}
	return nil, false
}

// tryExiftoolDate invokes exiftool for HEIC/HEIF files, where goexif cannot
// reach the embedded tags
func tryExiftoolDate(ctx context.Context, path string) (*time.Time, bool) {
	if !isHEIC(path) {
		return nil, false
	}

	args := []string{
		"-DateTimeOriginal",
		"-CreateDate",
		"-DateTime",
		"-T",
		path,
	}

	cmd := exec.CommandContext(ctx, exiftoolBinary, args...)
	output, err := cmd.Output()
	if err != nil {
		return nil, false
	}

	// Tab-separated output: DateTimeOriginal \t CreateDate \t DateTime
	for _, part := range strings.Split(strings.TrimSpace(string(output)), "\t") {
		raw := strings.TrimSpace(part)
		if raw == "" || raw == "-" {
			continue
		}
		if t, err := time.Parse(exifDateLayout, raw); err == nil {
			return &t, true
		}
		if t, err := time.Parse("2006:01:02", raw); err == nil {
			return &t, true
		}
	}
	return nil, false
}

// tryProbeDate falls back to container tags for HEIC/HEIF, including the
// vendor quicktime tags some phones write
func tryProbeDate(ctx context.Context, path string) (*time.Time, bool) {
	if !isHEIC(path) {
		return nil, false
	}

	probe, err := probeMedia(ctx, path)
	if err != nil {
		return nil, false
	}
	if t, _, ok := probe.creationDate(); ok {
		return &t, true
	}
	return nil, false
}

// exifDimensions fills width/height from EXIF pixel dimension tags
func exifDimensions(path string, info *MediaInfo) {
	f, err := os.Open(path)
	if err != nil {
		return
	}
	defer f.Close()

	x, err := exif.Decode(f)
	if err != nil {
		return
	}

	if tag, err := x.Get(exif.PixelXDimension); err == nil {
		if w, err := tag.Int(0); err == nil {
			info.Width = w
		}
	}
	if tag, err := x.Get(exif.PixelYDimension); err == nil {
		if h, err := tag.Int(0); err == nil {
			info.Height = h
		}
	}
}
