// Package thumbnails writes the resized preview set for a processed photo.
// Thumbnails mirror the input's relative directory structure under the
// output root, one subtree per named size:
//
//	{root}/tiny/2024/vacation/IMG_1234.jpg
//	{root}/small/2024/vacation/IMG_1234.jpg
//	...
package thumbnails

import (
	"fmt"
	"image"
	"os"
	"path/filepath"
	"strings"

	"github.com/disintegration/imaging"

	"photoingest/config"
)

const thumbExt = ".jpg"

// Writer renders and persists the configured thumbnail sizes.
type Writer struct {
	sizes []config.ThumbnailSize
}

// NewWriter builds a Writer from the configured size set.
func NewWriter(cfg config.ThumbnailsConfig) *Writer {
	return &Writer{sizes: cfg.Sizes}
}

// Path returns the on-disk location for one thumbnail size.
func Path(root, sizeName, relPath string) string {
	noExt := strings.TrimSuffix(relPath, filepath.Ext(relPath))
	return filepath.Join(root, sizeName, noExt+thumbExt)
}

// Generate writes every configured size for the raster. Sources smaller
// than a target size are saved as-is, never upscaled. The raster is only
// read, never mutated. Returns the first write error; the caller treats
// thumbnail failures as non-fatal.
func (w *Writer) Generate(img *image.NRGBA, root, relPath string) error {
	var firstErr error
	for _, size := range w.sizes {
		if err := w.generateOne(img, size, Path(root, size.Name, relPath)); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

func (w *Writer) generateOne(img *image.NRGBA, size config.ThumbnailSize, outPath string) error {
	thumb := image.Image(img)
	if img.Rect.Dx() > size.MaxDimension || img.Rect.Dy() > size.MaxDimension {
		// Fit preserves aspect ratio and never upscales.
		thumb = imaging.Fit(img, size.MaxDimension, size.MaxDimension, imaging.Lanczos)
	}

	if err := os.MkdirAll(filepath.Dir(outPath), 0o755); err != nil {
		return fmt.Errorf("failed to create thumbnail directory: %w", err)
	}
	if err := imaging.Save(thumb, outPath, imaging.JPEGQuality(size.Quality)); err != nil {
		return fmt.Errorf("failed to save thumbnail %s: %w", outPath, err)
	}
	return nil
}
