// Package phash computes fingerprint hashes over decoded rasters. The
// perceptual hash is DCT-based: visually similar images produce hashes
// with small Hamming distance regardless of how the raster was decoded.
package phash

import (
	"fmt"
	"image"
	"sort"

	"gocv.io/x/gocv"
)

// Perceptual computes the DCT-based perceptual hash of the raster and
// returns it as a fixed-length hex string (16 hex digits, 64 bits).
func Perceptual(img *image.NRGBA) (string, error) {
	gray, err := grayMat(img)
	if err != nil {
		return "", err
	}
	defer gray.Close()

	// Resize to 32x32 for DCT.
	resized := gocv.NewMat()
	defer resized.Close()
	gocv.Resize(gray, &resized, image.Point{X: 32, Y: 32}, 0, 0, gocv.InterpolationLinear)

	floatImg := gocv.NewMat()
	defer floatImg.Close()
	resized.ConvertTo(&floatImg, gocv.MatTypeCV32F)

	dct := gocv.NewMat()
	defer dct.Close()
	gocv.DCT(floatImg, &dct, 0)

	// Keep the 8x8 low-frequency block.
	lowFreq := dct.Region(image.Rect(0, 0, 8, 8))
	defer lowFreq.Close()

	values := make([]float32, 0, 64)
	for y := 0; y < lowFreq.Rows(); y++ {
		for x := 0; x < lowFreq.Cols(); x++ {
			values = append(values, lowFreq.GetFloatAt(y, x))
		}
	}
	median := calculateMedian(values)

	bits := make([]bool, 0, 64)
	for y := 0; y < lowFreq.Rows(); y++ {
		for x := 0; x < lowFreq.Cols(); x++ {
			bits = append(bits, lowFreq.GetFloatAt(y, x) >= median)
		}
	}

	return bitsToHex(bits), nil
}

// Average computes the 64-bit mean-threshold hash of the raster as a hex
// string. Cheaper than the perceptual hash and useful as a secondary
// fingerprint.
func Average(img *image.NRGBA) (string, error) {
	gray, err := grayMat(img)
	if err != nil {
		return "", err
	}
	defer gray.Close()

	resized := gocv.NewMat()
	defer resized.Close()
	gocv.Resize(gray, &resized, image.Point{X: 8, Y: 8}, 0, 0, gocv.InterpolationLinear)

	var sum uint64
	for y := 0; y < resized.Rows(); y++ {
		for x := 0; x < resized.Cols(); x++ {
			sum += uint64(resized.GetUCharAt(y, x))
		}
	}
	threshold := float64(sum) / 64.0

	bits := make([]bool, 0, 64)
	for y := 0; y < resized.Rows(); y++ {
		for x := 0; x < resized.Cols(); x++ {
			bits = append(bits, float64(resized.GetUCharAt(y, x)) >= threshold)
		}
	}

	return bitsToHex(bits), nil
}

// grayMat converts the raster into a single-channel Mat. The Mat owns a
// copy of the pixels; callers must Close it.
func grayMat(img *image.NRGBA) (gocv.Mat, error) {
	w, h := img.Rect.Dx(), img.Rect.Dy()
	if w == 0 || h == 0 {
		return gocv.NewMat(), fmt.Errorf("cannot hash an empty raster")
	}

	rgba, err := gocv.NewMatFromBytes(h, w, gocv.MatTypeCV8UC4, img.Pix)
	if err != nil {
		return gocv.NewMat(), fmt.Errorf("failed to wrap raster: %w", err)
	}
	defer rgba.Close()

	gray := gocv.NewMat()
	gocv.CvtColor(rgba, &gray, gocv.ColorRGBAToGray)
	if gray.Empty() {
		gray.Close()
		return gocv.NewMat(), fmt.Errorf("failed to convert raster to grayscale")
	}
	return gray, nil
}

// bitsToHex packs a bit sequence into bytes (zero-padded on the right)
// and renders them as lowercase hex.
func bitsToHex(bits []bool) string {
	var hashBytes []byte
	var currentByte byte
	var bitCount uint

	for _, bit := range bits {
		currentByte <<= 1
		if bit {
			currentByte |= 1
		}
		bitCount++
		if bitCount == 8 {
			hashBytes = append(hashBytes, currentByte)
			currentByte = 0
			bitCount = 0
		}
	}
	if bitCount > 0 {
		currentByte <<= 8 - bitCount
		hashBytes = append(hashBytes, currentByte)
	}

	hex := ""
	for _, b := range hashBytes {
		hex += fmt.Sprintf("%02x", b)
	}
	return hex
}

// calculateMedian returns the median of the values without mutating them.
func calculateMedian(values []float32) float32 {
	if len(values) == 0 {
		return 0
	}
	sorted := make([]float32, len(values))
	copy(sorted, values)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })

	n := len(sorted)
	if n%2 == 0 {
		return (sorted[n/2-1] + sorted[n/2]) / 2
	}
	return sorted[n/2]
}
