// Package exif extracts the capture-metadata subset carried on photo
// records. Extraction runs through a long-lived exiftool process in
// stay-open mode, which works uniformly across standard, HEIF and RAW
// containers.
package exif

import (
	"fmt"
	"sync"

	exiftool "github.com/barasher/go-exiftool"

	"photoingest/logging"
	"photoingest/types"
)

// Extractor wraps a stay-open exiftool instance. The underlying process
// is not safe for concurrent use, so calls are serialized.
type Extractor struct {
	mu sync.Mutex
	et *exiftool.Exiftool
}

// NewExtractor starts the exiftool sidecar process. Numeric output is
// requested so orientation codes and GPS coordinates come back as numbers
// instead of human-readable descriptions.
func NewExtractor() (*Extractor, error) {
	et, err := exiftool.NewExiftool(exiftool.NoPrintConversion())
	if err != nil {
		return nil, fmt.Errorf("failed to initialize exiftool: %w", err)
	}
	return &Extractor{et: et}, nil
}

// Close shuts the exiftool process down.
func (e *Extractor) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.et.Close()
}

// Extract reads the capture metadata subset for the file. A nil result
// with nil error means the file carried no usable metadata; extraction
// failures are returned so the caller can decide to absorb them.
func (e *Extractor) Extract(path string) (*types.CaptureMetadata, error) {
	e.mu.Lock()
	fms := e.et.ExtractMetadata(path)
	e.mu.Unlock()

	if len(fms) == 0 {
		return nil, fmt.Errorf("no metadata extracted from %s", path)
	}
	fm := fms[0]
	if fm.Err != nil {
		return nil, fmt.Errorf("metadata extraction failed for %s: %w", path, fm.Err)
	}

	md := &types.CaptureMetadata{
		Make:         str(fm, "Make"),
		Model:        str(fm, "Model"),
		Lens:         lens(fm),
		FocalLength:  floatPtr(fm, "FocalLength"),
		ISO:          intPtr(fm, "ISO"),
		Aperture:     floatPtr(fm, "FNumber"),
		ShutterSpeed: shutterSpeed(fm),
		ExposureBias: floatPtr(fm, "ExposureCompensation"),
		TakenAt:      takenAt(fm),
		Latitude:     floatPtr(fm, "GPSLatitude"),
		Longitude:    floatPtr(fm, "GPSLongitude"),
		Altitude:     floatPtr(fm, "GPSAltitude"),
	}

	if o, err := fm.GetInt("Orientation"); err == nil && o >= 1 && o <= 8 {
		md.Orientation = int(o)
	}

	if *md == (types.CaptureMetadata{}) {
		logging.Debugf("no capture metadata in %s", path)
		return nil, nil
	}
	return md, nil
}

func str(fm exiftool.FileMetadata, key string) string {
	v, err := fm.GetString(key)
	if err != nil {
		return ""
	}
	return v
}

func lens(fm exiftool.FileMetadata) string {
	for _, key := range []string{"LensModel", "LensID", "Lens"} {
		if v := str(fm, key); v != "" {
			return v
		}
	}
	return ""
}

func floatPtr(fm exiftool.FileMetadata, key string) *float64 {
	v, err := fm.GetFloat(key)
	if err != nil {
		return nil
	}
	return &v
}

func intPtr(fm exiftool.FileMetadata, key string) *int {
	v, err := fm.GetInt(key)
	if err != nil {
		return nil
	}
	n := int(v)
	return &n
}

// shutterSpeed renders the numeric exposure time as the conventional
// fraction ("1/250") or decimal seconds for long exposures.
func shutterSpeed(fm exiftool.FileMetadata) string {
	v, err := fm.GetFloat("ExposureTime")
	if err != nil || v <= 0 {
		return ""
	}
	if v < 1 {
		return fmt.Sprintf("1/%.0f", 1/v)
	}
	return fmt.Sprintf("%gs", v)
}

func takenAt(fm exiftool.FileMetadata) string {
	for _, key := range []string{"DateTimeOriginal", "CreateDate"} {
		if v := str(fm, key); v != "" {
			return v
		}
	}
	return ""
}
