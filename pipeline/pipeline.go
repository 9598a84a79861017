// Package pipeline runs the per-photo processing state machine and
// schedules batches of files across a bounded worker pool. One input file
// becomes exactly one PhotoRecord; failures are isolated per item and
// preserve whatever was extracted before the failing stage.
package pipeline

import (
	"context"
	"fmt"
	"image"
	"os"
	"path/filepath"

	"photoingest/config"
	"photoingest/formats"
	"photoingest/logging"
	"photoingest/phash"
	"photoingest/raster"
	"photoingest/rawproc"
	"photoingest/thumbnails"
	"photoingest/types"
)

// JPEG quality used when the embedding input has to be re-encoded from
// the decoded raster.
const embeddingJPEGQuality = 90

// MetadataExtractor reads the capture-metadata subset for a file.
type MetadataExtractor interface {
	Extract(path string) (*types.CaptureMetadata, error)
}

// RawConverter turns a sensor-native file into a display-ready raster.
type RawConverter interface {
	Convert(path, format string) (*rawproc.Result, error)
}

// Embedder computes fixed-length semantic vectors for encoded images.
type Embedder interface {
	Enabled() bool
	Dim() int
	EmbedImages(ctx context.Context, images [][]byte) ([][]float32, error)
}

// Hasher computes fingerprint hashes over a decoded raster.
type Hasher interface {
	Perceptual(img *image.NRGBA) (string, error)
	Average(img *image.NRGBA) (string, error)
}

// Thumbnailer persists the resized preview set for a raster.
type Thumbnailer interface {
	Generate(img *image.NRGBA, root, relPath string) error
}

// Pipeline processes photos into normalized records.
type Pipeline struct {
	metadata MetadataExtractor
	raw      RawConverter
	embedder Embedder
	hasher   Hasher
	thumbs   Thumbnailer
	workers  int

	decodeHEIF func(path string) (*image.NRGBA, []byte, error)
}

// New wires the pipeline from the runtime configuration. The metadata
// extractor and embedder are injected so callers control their lifecycle;
// either may be nil, which skips the corresponding stage.
func New(cfg *config.Config, metadata MetadataExtractor, embedder Embedder) *Pipeline {
	workers := cfg.Workers
	if workers <= 0 {
		workers = defaultWorkers()
	}
	return &Pipeline{
		metadata:   metadata,
		raw:        rawproc.NewConverter(cfg),
		embedder:   embedder,
		hasher:     dctHasher{},
		thumbs:     thumbnails.NewWriter(cfg.Thumbnails),
		workers:    workers,
		decodeHEIF: rawproc.NewHeifDecoder(cfg).Decode,
	}
}

// dctHasher adapts the package-level hash functions to the Hasher interface.
type dctHasher struct{}

func (dctHasher) Perceptual(img *image.NRGBA) (string, error) { return phash.Perceptual(img) }
func (dctHasher) Average(img *image.NRGBA) (string, error)    { return phash.Average(img) }

// process runs the full state machine for one file. Every early return
// leaves the record with Success=false, a non-empty Error, and whatever
// fields the completed stages produced.
func (p *Pipeline) process(ctx context.Context, filePath, relPath, thumbnailRoot string) types.PhotoRecord {
	rec := types.PhotoRecord{
		Path: filepath.ToSlash(relPath),
		Name: filepath.Base(filePath),
	}

	info, err := os.Stat(filePath)
	if err != nil {
		rec.Error = fmt.Sprintf("file is not readable: %v", err)
		return rec
	}
	rec.Size = info.Size()
	rec.ModifiedAt = info.ModTime().UnixMilli()
	// File creation time is not portably available; modification time
	// stands in for both.
	rec.CreatedAt = rec.ModifiedAt

	kind := formats.Classify(filePath)
	if kind == formats.KindUnsupported {
		rec.Error = "Unsupported file type"
		return rec
	}
	rec.MimeType = formats.MimeType(filePath)

	if p.metadata != nil {
		md, err := p.metadata.Extract(filePath)
		if err != nil {
			logging.Warnf("capture metadata unavailable for %s: %v", filePath, err)
		} else {
			rec.Exif = md
		}
	}

	// encodedSource is the preferred embedding input: the already-encoded
	// JPEG when the decode path produced one.
	var img *image.NRGBA
	var encodedSource []byte

	switch kind {
	case formats.KindRaw:
		rec.IsRaw = true
		rec.RawFormat = formats.RawFormatName(filePath)

		res, err := p.raw.Convert(filePath, rec.RawFormat)
		if err != nil {
			rec.RawStatus = types.RawStatusFailed
			rec.RawError = err.Error()
			rec.Error = fmt.Sprintf("RAW conversion failed: %v", err)
			return rec
		}
		rec.RawStatus = types.RawStatusConverted
		rec.HistogramMatched = res.HistogramMatched
		rec.ProcessingTimeMs = res.ProcessingTimeMs
		img = res.Raster
		encodedSource = res.PreviewJPEG

	case formats.KindHighEfficiency:
		img, encodedSource, err = p.decodeHEIF(filePath)
		if err != nil {
			rec.Error = err.Error()
			return rec
		}

	default:
		img, err = raster.DecodeFile(filePath)
		if err != nil {
			rec.Error = err.Error()
			return rec
		}
	}

	orientation := 0
	if rec.Exif != nil {
		orientation = rec.Exif.Orientation
	}
	img = raster.Orient(img, orientation)

	w, h := img.Rect.Dx(), img.Rect.Dy()
	rec.Width, rec.Height = &w, &h

	p.generateArtifacts(ctx, img, encodedSource, thumbnailRoot, &rec)

	rec.Success = true
	return rec
}

// generateArtifacts runs the derived-artifact stage on the oriented
// raster: hashes, thumbnails, embedding. Artifact failures are logged and
// never fail the item.
func (p *Pipeline) generateArtifacts(ctx context.Context, img *image.NRGBA, encodedSource []byte, thumbnailRoot string, rec *types.PhotoRecord) {
	if ph, err := p.hasher.Perceptual(img); err != nil {
		logging.Warnf("perceptual hash failed for %s: %v", rec.Path, err)
	} else {
		rec.PHash = ph
	}
	if ah, err := p.hasher.Average(img); err != nil {
		logging.Warnf("average hash failed for %s: %v", rec.Path, err)
	} else {
		rec.AverageHash = ah
	}

	if p.thumbs != nil && thumbnailRoot != "" {
		if err := p.thumbs.Generate(img, thumbnailRoot, rec.Path); err != nil {
			logging.Warnf("thumbnail generation failed for %s: %v", rec.Path, err)
		}
	}

	if p.embedder == nil || !p.embedder.Enabled() {
		return
	}
	input := encodedSource
	if input == nil {
		enc, err := raster.EncodeJPEG(img, embeddingJPEGQuality)
		if err != nil {
			logging.Warnf("failed to encode embedding input for %s: %v", rec.Path, err)
			return
		}
		input = enc
	}
	vecs, err := p.embedder.EmbedImages(ctx, [][]byte{input})
	if err != nil {
		logging.Warnf("embedding unavailable for %s: %v", rec.Path, err)
		return
	}
	rec.Embedding = vecs[0]
}
