package rawproc

import (
	"bytes"
	"image"
	"image/jpeg"
	"os"
	"os/exec"
	"strings"

	"photoingest/logging"
	"photoingest/raster"
)

// Preview is an embedded preview extracted from a container: the original
// encoded bytes (kept for embedding input) plus its pixel dimensions and
// the path it came from. The decoded raster is produced separately and
// discarded as soon as tone matching is done.
type Preview struct {
	Data   []byte
	Width  int
	Height int
	Source string
}

// Area returns the pixel area of the preview.
func (p *Preview) Area() int {
	return p.Width * p.Height
}

// Decode decodes the preview bytes into a raster for histogram comparison.
func (p *Preview) Decode() (*image.NRGBA, error) {
	img, err := raster.Decode(p.Data)
	if err != nil {
		return nil, decodeErr(StagePreviewDecode, p.Source, err)
	}
	return img, nil
}

var jpegSOI = []byte{0xFF, 0xD8, 0xFF}

// extractPreview locates the largest embedded JPEG preview for the file.
// Formats on the fallback list skip the native container scan and go
// straight to exiftool. A missing preview is not an error; the caller
// treats a nil Preview as "tone matching disabled".
func (c *Converter) extractPreview(path, format string) *Preview {
	if !c.fallback.UsesFallbackExtraction(strings.ToLower(format)) {
		if p := scanForPreviews(path); p != nil {
			return p
		}
		logging.Debugf("native preview scan found nothing in %s, falling back to exiftool", path)
	}
	return c.extractPreviewWithExiftool(path)
}

// scanForPreviews reads the container once and scans it for embedded JPEG
// streams, returning the largest by pixel area. RAW containers (TIFF-based
// and ISOBMFF-based alike) store their previews as plain JPEG segments, so
// a signature scan covers all of them without per-format box parsing.
// The file bytes are released when this returns; only the winning preview's
// bytes are retained.
func scanForPreviews(path string) *Preview {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil
	}

	var best *Preview
	offset := 0
	for offset < len(data) {
		start := bytes.Index(data[offset:], jpegSOI)
		if start < 0 {
			break
		}
		start += offset

		segment, end := jpegSegment(data, start)
		if segment == nil {
			offset = start + 3
			continue
		}

		cfg, err := jpeg.DecodeConfig(bytes.NewReader(segment))
		if err != nil {
			offset = start + 3
			continue
		}

		if best == nil || cfg.Width*cfg.Height > best.Area() {
			// Copy out of the file buffer so the container bytes can be freed.
			best = &Preview{
				Data:   append([]byte(nil), segment...),
				Width:  cfg.Width,
				Height: cfg.Height,
				Source: path,
			}
		}
		offset = end
	}

	return best
}

// jpegSegment returns the JPEG stream starting at start, delimited by its
// EOI marker, and the offset just past it.
func jpegSegment(data []byte, start int) ([]byte, int) {
	eoi := bytes.Index(data[start:], []byte{0xFF, 0xD9})
	if eoi < 0 {
		return nil, len(data)
	}
	end := start + eoi + 2
	return data[start:end], end
}

// exiftool tags that carry embedded previews, roughly largest first.
var previewTags = []string{
	"JpgFromRaw",
	"PreviewImage",
	"OtherImage",
	"ThumbnailImage",
}

// extractPreviewWithExiftool extracts preview candidates in binary mode and
// keeps the largest valid JPEG.
func (c *Converter) extractPreviewWithExiftool(path string) *Preview {
	var best *Preview

	for _, tag := range previewTags {
		out, err := exec.Command(c.exiftoolPath, "-b", "-"+tag, path).Output()
		if err != nil || len(out) < 3 || !bytes.HasPrefix(out, jpegSOI[:2]) {
			continue
		}

		cfg, err := jpeg.DecodeConfig(bytes.NewReader(out))
		if err != nil {
			continue
		}

		if best == nil || cfg.Width*cfg.Height > best.Area() {
			best = &Preview{Data: out, Width: cfg.Width, Height: cfg.Height, Source: path}
		}
	}

	if best == nil {
		logging.Debugf("no embedded preview found in %s", path)
	}
	return best
}
