package raster

import (
	"image"

	"github.com/disintegration/imaging"
)

// Orient applies the EXIF orientation transform for the given code (1-8)
// and returns the corrected raster. Code 1, 0 and unknown codes return the
// input unchanged. The imaging rotate functions turn counter-clockwise, so
// the EXIF clockwise rotations map to their complements.
func Orient(img *image.NRGBA, orientation int) *image.NRGBA {
	switch orientation {
	case 2:
		return imaging.FlipH(img)
	case 3:
		return imaging.Rotate180(img)
	case 4:
		return imaging.FlipV(img)
	case 5:
		return imaging.FlipH(imaging.Rotate90(img))
	case 6:
		return imaging.Rotate270(img)
	case 7:
		return imaging.FlipH(imaging.Rotate270(img))
	case 8:
		return imaging.Rotate90(img)
	default:
		return img
	}
}
