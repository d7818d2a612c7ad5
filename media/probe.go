package media

import (
	"fmt"
	"image"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/rwcarlsen/goexif/exif"
)

// getString reads a string EXIF tag, trimming null terminators
func getString(exifData *exif.Exif, tagName exif.FieldName) *string {
	tag, err := exifData.Get(tagName)
	if err != nil || tag == nil {
		return nil
	}
	val, err := tag.StringVal()
	if err != nil {
		val = tag.String()
	}
	val = strings.TrimSpace(strings.Trim(strings.TrimRight(val, "\x00"), `"`))
	if val == "" {
		return nil
	}
	return &val
}

// Probe reads the dimensions of the image at filePath. EXIF camera and capture time
// are filled in when present; missing EXIF is not an error.
func Probe(filePath string) (ProbeResult, error) {
	name := filepath.Base(filePath)
	file, err := os.Open(filePath)
	if err != nil {
		return ProbeResult{}, fmt.Errorf("probe: failed to open file %s: %w", name, err)
	}
	defer file.Close()

	cfg, format, err := image.DecodeConfig(file)
	if err != nil {
		if !IsRasterImage(name) {
			return ProbeResult{}, fmt.Errorf("probe: %s is not a supported image file: %w", name, err)
		}
		return ProbeResult{}, fmt.Errorf("probe: cannot read image dimensions of %s: %w", name, err)
	}
	if cfg.Width <= 0 || cfg.Height <= 0 {
		return ProbeResult{}, fmt.Errorf("probe: invalid image dimensions %dx%d for %s", cfg.Width, cfg.Height, name)
	}

	result := ProbeResult{
		Width:       cfg.Width,
		Height:      cfg.Height,
		Format:      format,
		ContentType: ContentTypeForFormat(format),
	}

	if _, err := file.Seek(0, io.SeekStart); err != nil {
		return ProbeResult{}, fmt.Errorf("probe: failed to seek file %s: %w", name, err)
	}

	exifData, err := exif.Decode(file)
	if err != nil {
		return result, nil
	}

	result.CameraMake = getString(exifData, exif.Make)
	result.CameraModel = getString(exifData, exif.Model)
	if dt, err := exifData.DateTime(); err == nil && !dt.IsZero() {
		utc := dt.UTC()
		result.TakenAt = &utc
	}
	return result, nil
}
