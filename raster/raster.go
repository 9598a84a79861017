// Package raster owns the decoded pixel representation shared by the
// pipeline stages. A raster is a single contiguous 8-bit RGBA buffer
// (*image.NRGBA); it is produced once per file and handed through the
// orientation and artifact stages without copying.
package raster

import (
	"bytes"
	"fmt"
	"image"

	"github.com/disintegration/imaging"
	_ "golang.org/x/image/webp" // decode-only webp support
)

// DecodeFile decodes a standard raster image from disk.
func DecodeFile(path string) (*image.NRGBA, error) {
	img, err := imaging.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to decode image %s: %w", path, err)
	}
	return ToNRGBA(img), nil
}

// Decode decodes a standard raster image from encoded bytes.
func Decode(data []byte) (*image.NRGBA, error) {
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to decode image: %w", err)
	}
	return ToNRGBA(img), nil
}

// ToNRGBA converts any decoded image to the pipeline's owned NRGBA buffer.
// When the input already is *image.NRGBA it is returned as-is.
func ToNRGBA(img image.Image) *image.NRGBA {
	if n, ok := img.(*image.NRGBA); ok {
		return n
	}
	return imaging.Clone(img)
}

// EncodeJPEG encodes the raster as JPEG with the given quality.
func EncodeJPEG(img *image.NRGBA, quality int) ([]byte, error) {
	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img, imaging.JPEG, imaging.JPEGQuality(quality)); err != nil {
		return nil, fmt.Errorf("failed to encode JPEG: %w", err)
	}
	return buf.Bytes(), nil
}
