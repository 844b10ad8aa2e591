// SPDX-License-Identifier: EPL-2.0

package sample

import "math"

// OutputLen returns the number of samples produced when n samples at
// srcRate are resampled to dstRate, rounded to the nearest sample.
func OutputLen(n int64, srcRate, dstRate float64) int64 {
	if n <= 0 || srcRate <= 0 || dstRate <= 0 {
		return 0
	}

	return int64(math.Floor(float64(n)*dstRate/srcRate + 0.5))
}

// ResampleAt fills dst with cubic-interpolated readings of src taken at
// positions start, start+step, start+2*step, ... expressed in src sample
// units. Positions outside src clamp to the edge samples, so a window cut
// from a longer signal interpolates cleanly at its borders.
func ResampleAt(dst, src []float32, start, step float64) {
	if len(src) == 0 {
		for i := range dst {
			dst[i] = 0
		}

		return
	}

	at := func(i int) float32 {
		if i < 0 {
			i = 0
		} else if i >= len(src) {
			i = len(src) - 1
		}

		return src[i]
	}

	pos := start
	for i := range dst {
		idx := int(math.Floor(pos))
		frac := float32(pos - math.Floor(pos))

		// frames idx-1 .. idx+2 around the fractional position
		dst[i] = CubicInterpolate(at(idx-1), at(idx), at(idx+1), at(idx+2), frac)
		pos += step
	}
}

// Resample converts src at srcRate into a new buffer at dstRate using
// cubic interpolation. Works for both upsampling and downsampling; the
// output length follows OutputLen.
func Resample(src []float32, srcRate, dstRate float64) []float32 {
	if srcRate == dstRate {
		out := make([]float32, len(src))
		copy(out, src)

		return out
	}

	out := make([]float32, OutputLen(int64(len(src)), srcRate, dstRate))
	ResampleAt(out, src, 0, srcRate/dstRate)

	return out
}
