package rawproc

import (
	"bytes"
	"fmt"
	"image"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"photoingest/config"
	"photoingest/logging"
	"photoingest/raster"
)

// HeifDecoder decodes high-efficiency (HEIC/HEIF) containers. The primary
// image is rendered with the heif-convert tool; when that tool is missing
// the decoder falls back to the embedded preview, but only when the preview
// carries the full-resolution image. Thumbnail-sized previews are never a
// decode source.
type HeifDecoder struct {
	convertPath  string
	exiftoolPath string
}

// NewHeifDecoder builds a HeifDecoder from the runtime configuration.
func NewHeifDecoder(cfg *config.Config) *HeifDecoder {
	return &HeifDecoder{
		convertPath:  cfg.HeifConvertPath,
		exiftoolPath: cfg.ExiftoolPath,
	}
}

// Decode renders the container's primary image. The returned bytes are the
// encoded JPEG rendering, kept as the preferred embedding input.
func (d *HeifDecoder) Decode(path string) (*image.NRGBA, []byte, error) {
	data, convErr := d.convert(path)
	if convErr == nil {
		img, err := raster.Decode(data)
		if err == nil {
			return img, data, nil
		}
		convErr = err
	}
	logging.Debugf("heif-convert rendering failed for %s (%v), trying embedded preview", path, convErr)

	c := &Converter{exiftoolPath: d.exiftoolPath}
	p := c.extractPreviewWithExiftool(path)
	if p == nil {
		return nil, nil, fmt.Errorf("failed to decode %s: %w", path, convErr)
	}

	primaryW, primaryH := d.primaryDimensions(path)
	if !previewCoversPrimary(p.Width, p.Height, primaryW, primaryH) {
		return nil, nil, fmt.Errorf("failed to decode %s: embedded preview is %dx%d, not the %dx%d primary image",
			path, p.Width, p.Height, primaryW, primaryH)
	}

	img, err := p.Decode()
	if err != nil {
		return nil, nil, err
	}
	return img, p.Data, nil
}

// convert renders the primary image to JPEG through heif-convert. The tool
// only writes to files, so the rendering goes through a scratch directory.
func (d *HeifDecoder) convert(path string) ([]byte, error) {
	tmp, err := os.MkdirTemp("", "photoingest-heif-")
	if err != nil {
		return nil, err
	}
	defer os.RemoveAll(tmp)

	out := filepath.Join(tmp, "primary.jpg")
	if msg, err := exec.Command(d.convertPath, "-q", "92", path, out).CombinedOutput(); err != nil {
		return nil, fmt.Errorf("heif-convert failed: %v: %s", err, bytes.TrimSpace(msg))
	}

	data, err := os.ReadFile(out)
	if err != nil {
		// Multi-image containers get numbered output names.
		return readFirstConverted(tmp)
	}
	return data, nil
}

// readFirstConverted returns the first JPEG rendering in the scratch
// directory, in name order.
func readFirstConverted(dir string) ([]byte, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}

	var names []string
	for _, e := range entries {
		if !e.IsDir() && strings.HasSuffix(e.Name(), ".jpg") {
			names = append(names, e.Name())
		}
	}
	if len(names) == 0 {
		return nil, fmt.Errorf("heif-convert produced no output")
	}
	sort.Strings(names)
	return os.ReadFile(filepath.Join(dir, names[0]))
}

// primaryDimensions reads the container's primary image dimensions with
// exiftool. Returns zeros when they cannot be determined.
func (d *HeifDecoder) primaryDimensions(path string) (int, int) {
	out, err := exec.Command(d.exiftoolPath, "-s3", "-ImageWidth", "-ImageHeight", path).Output()
	if err != nil {
		return 0, 0
	}

	fields := strings.Fields(string(out))
	if len(fields) < 2 {
		return 0, 0
	}
	w, errW := strconv.Atoi(fields[0])
	h, errH := strconv.Atoi(fields[1])
	if errW != nil || errH != nil || w <= 0 || h <= 0 {
		return 0, 0
	}
	return w, h
}

// previewCoversPrimary reports whether an embedded preview can stand in for
// the primary image. With known primary dimensions the preview must cover
// at least 90% of the primary pixel area; without them it must clear the
// tone-calibration size floor. Either way a thumbnail never qualifies.
func previewCoversPrimary(previewW, previewH, primaryW, primaryH int) bool {
	if previewW <= 0 || previewH <= 0 {
		return false
	}
	if primaryW > 0 && primaryH > 0 {
		return previewW*previewH*10 >= primaryW*primaryH*9
	}

	short := previewW
	if previewH < short {
		short = previewH
	}
	return short >= minPreviewDimension
}
