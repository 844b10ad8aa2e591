// SPDX-License-Identifier: EPL-2.0

package sample

// Format identifies how samples are stored as bytes. The in-memory
// interchange format is always []float32 in the range [-1.0, 1.0];
// Format describes the persisted encoding.
type Format uint8

const (
	// Int16 is 16-bit signed little-endian PCM.
	Int16 Format = iota + 1
	// Int24 is 24-bit signed little-endian PCM, three bytes per sample.
	Int24
	// Float32 is 32-bit IEEE 754 little-endian.
	Float32
)

// BytesPerSample returns the storage width of one sample.
func (f Format) BytesPerSample() int {
	switch f {
	case Int16:
		return 2
	case Int24:
		return 3
	case Float32:
		return 4
	}
	return 0
}

// Valid reports whether f is one of the known formats.
func (f Format) Valid() bool {
	return f == Int16 || f == Int24 || f == Float32
}

func (f Format) String() string {
	switch f {
	case Int16:
		return "int16"
	case Int24:
		return "int24"
	case Float32:
		return "float32"
	}
	return "unknown"
}
