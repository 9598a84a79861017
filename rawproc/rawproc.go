// Package rawproc decodes sensor-native (RAW) photo files and reconciles
// the generic demosaic rendering with the camera's own JPEG rendering via
// histogram matching against the embedded preview.
package rawproc

import (
	"image"
	"time"

	"photoingest/config"
	"photoingest/logging"
)

// minPreviewDimension is the smallest preview short side trusted for tone
// calibration; smaller previews are too coarse and disable matching.
const minPreviewDimension = 800

// Converter turns RAW files into display-ready rasters.
type Converter struct {
	dcrawPath    string
	exiftoolPath string
	fallback     config.RawConfig
}

// NewConverter builds a Converter from the runtime configuration.
func NewConverter(cfg *config.Config) *Converter {
	return &Converter{
		dcrawPath:    cfg.DcrawPath,
		exiftoolPath: cfg.ExiftoolPath,
		fallback:     cfg.Raw,
	}
}

// Result is the outcome of converting one RAW file.
type Result struct {
	// Raster is the full-resolution, tone-corrected decode. Ownership
	// passes to the caller.
	Raster *image.NRGBA
	// PreviewJPEG holds the embedded preview's encoded bytes when one was
	// found, kept as the preferred embedding input.
	PreviewJPEG []byte
	// HistogramMatched records whether tone matching was applied.
	HistogramMatched bool
	// ProcessingTimeMs is the wall-clock conversion time.
	ProcessingTimeMs int64
}

// Convert decodes the RAW file at path (format is the upper-case RAW
// format name, e.g. "CR3"). The embedded preview is extracted first and
// the container bytes released before the full decode starts, so the
// original file is never resident twice.
//
// Preview absence or low resolution only disables tone matching; decode
// failures return a *DecodeError tagged with the failing stage.
func (c *Converter) Convert(path, format string) (*Result, error) {
	start := time.Now()

	preview := c.extractPreview(path, format)

	var previewRaster *image.NRGBA
	if preview != nil {
		var err error
		previewRaster, err = preview.Decode()
		if err != nil {
			logging.Warnf("embedded preview in %s is not decodable: %v", path, err)
			preview = nil
		}
	}

	full, err := c.demosaic(path)
	if err != nil {
		return nil, err
	}

	matched := false
	if previewRaster != nil {
		matched = matchHistograms(full, previewRaster)
		previewRaster = nil // tone curve applied, preview raster no longer needed
	}

	res := &Result{
		Raster:           full,
		HistogramMatched: matched,
		ProcessingTimeMs: time.Since(start).Milliseconds(),
	}
	if preview != nil {
		res.PreviewJPEG = preview.Data
	}
	return res, nil
}

// matchHistograms builds the per-channel tone curves mapping the demosaic
// rendering onto the camera preview's tonal distribution and applies them
// to the full raster in place. Returns false when the preview is below the
// significance threshold.
func matchHistograms(full, preview *image.NRGBA) bool {
	minDim := preview.Rect.Dx()
	if preview.Rect.Dy() < minDim {
		minDim = preview.Rect.Dy()
	}
	if minDim < minPreviewDimension {
		return false
	}

	sourceCDF := ComputeHistogram(full).CDF()
	targetCDF := ComputeHistogram(preview).CDF()
	curve := BuildToneCurve(sourceCDF, targetCDF)
	curve.Apply(full)
	return true
}
