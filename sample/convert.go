// SPDX-License-Identifier: EPL-2.0

package sample

import (
	"encoding/binary"
	"math"
)

// Float32ToInt16 converts a normalized sample to 16-bit PCM.
func Float32ToInt16(x float32) int16 {
	// Clamp and scale
	if x > 1 {
		x = 1
	} else if x < -1 {
		x = -1
	}

	// Use 32767 for positive max to avoid overflow
	return int16(x * 32767.0)
}

// Float32ToInt24 converts a normalized sample to 24-bit PCM, returned in
// the low three bytes of an int32.
func Float32ToInt24(x float32) int32 {
	if x > 1 {
		x = 1
	} else if x < -1 {
		x = -1
	}

	return int32(x * 8388607.0)
}

// ToFloat32 decodes little-endian PCM bytes in format f into dst and
// returns the number of samples decoded. It decodes
// min(len(dst), len(src)/f.BytesPerSample()) samples.
func ToFloat32(dst []float32, src []byte, f Format) int {
	bps := f.BytesPerSample()
	if bps == 0 {
		return 0
	}

	n := len(src) / bps
	if n > len(dst) {
		n = len(dst)
	}

	switch f {
	case Int16:
		for i := 0; i < n; i++ {
			v := int16(binary.LittleEndian.Uint16(src[i*2:]))
			dst[i] = float32(v) / 32768.0
		}
	case Int24:
		for i := 0; i < n; i++ {
			b := src[i*3 : i*3+3]
			v := int32(b[0]) | int32(b[1])<<8 | int32(b[2])<<16
			// Sign-extend from 24 bits
			v = v << 8 >> 8
			dst[i] = float32(v) / 8388608.0
		}
	case Float32:
		for i := 0; i < n; i++ {
			dst[i] = math.Float32frombits(binary.LittleEndian.Uint32(src[i*4:]))
		}
	}

	return n
}

// FromFloat32 encodes samples into little-endian PCM bytes in format f
// and returns the number of samples encoded. Values outside [-1, 1] are
// clamped for the integer formats.
func FromFloat32(dst []byte, src []float32, f Format) int {
	bps := f.BytesPerSample()
	if bps == 0 {
		return 0
	}

	n := len(dst) / bps
	if n > len(src) {
		n = len(src)
	}

	switch f {
	case Int16:
		for i := 0; i < n; i++ {
			binary.LittleEndian.PutUint16(dst[i*2:], uint16(Float32ToInt16(src[i])))
		}
	case Int24:
		for i := 0; i < n; i++ {
			v := Float32ToInt24(src[i])
			dst[i*3] = byte(v)
			dst[i*3+1] = byte(v >> 8)
			dst[i*3+2] = byte(v >> 16)
		}
	case Float32:
		for i := 0; i < n; i++ {
			binary.LittleEndian.PutUint32(dst[i*4:], math.Float32bits(src[i]))
		}
	}

	return n
}
