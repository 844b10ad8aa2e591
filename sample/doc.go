// SPDX-License-Identifier: EPL-2.0

// Package sample provides sample-format definitions and conversions.
//
// The in-memory interchange representation everywhere in this module is
// []float32 in the range [-1.0, 1.0]:
//   - 0.0 represents silence
//   - 1.0 represents maximum positive amplitude
//
// Persisted audio may instead use any of the storage formats:
//   - Int16: 16-bit signed little-endian PCM
//   - Int24: 24-bit signed little-endian PCM (three bytes per sample)
//   - Float32: 32-bit IEEE 754 little-endian
//
// # Conversion
//
// ToFloat32 and FromFloat32 translate between raw little-endian bytes and
// the float interchange form:
//
//	raw := make([]byte, len(samples)*sample.Int16.BytesPerSample())
//	sample.FromFloat32(raw, samples, sample.Int16)
//
// Integer encodings clamp out-of-range values instead of wrapping.
//
// # Resampling
//
// Resample converts a buffer between sample rates using Catmull-Rom cubic
// interpolation:
//
//	out := sample.Resample(in, 44100, 48000)
//
// ResampleAt is the lower-level primitive for callers that process long
// signals in windows and need control over the fractional read position.
package sample
