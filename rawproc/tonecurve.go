package rawproc

import "image"

const (
	histogramBuckets = 256

	// maxHistogramSamples bounds the per-raster work for histogram
	// computation. Larger rasters are subsampled with a fixed stride.
	maxHistogramSamples = 500_000
)

// Histogram holds per-channel (R, G, B) intensity counts.
type Histogram [3][histogramBuckets]uint64

// CDF is the normalized cumulative form of a Histogram; each channel is
// monotonic non-decreasing in [0, 1].
type CDF [3][histogramBuckets]float64

// ToneCurve maps source intensity levels to target levels per channel.
type ToneCurve [3][histogramBuckets]uint8

// ComputeHistogram computes per-channel histograms over the raster,
// sampling at most maxHistogramSamples pixels with a fixed stride.
func ComputeHistogram(img *image.NRGBA) *Histogram {
	var h Histogram

	w, ht := img.Rect.Dx(), img.Rect.Dy()
	totalPixels := w * ht
	if totalPixels == 0 {
		return &h
	}

	stride := totalPixels / maxHistogramSamples
	if stride < 1 {
		stride = 1
	}

	for i := 0; i < totalPixels; i += stride {
		off := i * 4
		h[0][img.Pix[off]]++
		h[1][img.Pix[off+1]]++
		h[2][img.Pix[off+2]]++
	}

	return &h
}

// CDF converts the histogram to its normalized cumulative distribution.
func (h *Histogram) CDF() *CDF {
	var c CDF

	for ch := 0; ch < 3; ch++ {
		var total uint64
		for _, count := range h[ch] {
			total += count
		}
		if total == 0 {
			continue
		}

		invTotal := 1.0 / float64(total)
		var cumsum uint64
		for i, count := range h[ch] {
			cumsum += count
			c[ch][i] = float64(cumsum) * invTotal
		}
	}

	return &c
}

// BuildToneCurve builds the per-channel lookup tables mapping each source
// intensity level to the target level whose cumulative probability is
// closest. The target CDF is monotonic, so a binary search finds the lower
// bound; the candidate below it wins only on a strictly smaller absolute
// difference, so ties resolve to the higher index.
func BuildToneCurve(source, target *CDF) *ToneCurve {
	var curve ToneCurve

	for ch := 0; ch < 3; ch++ {
		for i := 0; i < histogramBuckets; i++ {
			p := source[ch][i]

			low, high := 0, histogramBuckets-1
			for low < high {
				mid := (low + high) / 2
				if target[ch][mid] < p {
					low = mid + 1
				} else {
					high = mid
				}
			}

			if low > 0 && abs(p-target[ch][low-1]) < abs(p-target[ch][low]) {
				curve[ch][i] = uint8(low - 1)
			} else {
				curve[ch][i] = uint8(low)
			}
		}
	}

	return &curve
}

// Apply remaps every pixel of the raster through the tone curve in place.
// No buffer is allocated; the raster is mutated.
func (c *ToneCurve) Apply(img *image.NRGBA) {
	pix := img.Pix
	for off := 0; off+3 < len(pix); off += 4 {
		pix[off] = c[0][pix[off]]
		pix[off+1] = c[1][pix[off+1]]
		pix[off+2] = c[2][pix[off+2]]
	}
}

func abs(f float64) float64 {
	if f < 0 {
		return -f
	}
	return f
}
