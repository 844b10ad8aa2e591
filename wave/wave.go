// SPDX-License-Identifier: EPL-2.0

package wave

import "math"

// MergePointTolerance is the largest gap in seconds still drawn as a
// merge point between two adjacent clips, and the shortest silent run
// Disjoin will split out.
const MergePointTolerance = 0.01

// cutlineTolerance matches a queried position to a stored cut line.
const cutlineTolerance = 0.0001

// EditOptions carries the caller preferences that change how editing
// operations treat the clips around the edited range. Operations take it
// explicitly so the same track behaves the same way no matter who calls.
type EditOptions struct {
	// MoveClips shifts the clips after a cleared range left and the
	// clips after an inserted range right. When false the other clips
	// stay put and operations that would collide report the room left
	// through a CapacityError.
	MoveClips bool
}

// TimeWarper maps a time on the old timeline to a time on the new one.
// ClearAndPaste applies it when reinstating saved split and cut-line
// positions after an effect changed the duration of the pasted material.
// A nil warper is the identity.
type TimeWarper func(t float64) float64

// ChannelKind places a track in a stereo arrangement.
type ChannelKind uint8

const (
	Mono ChannelKind = iota
	LeftChannel
	RightChannel
)

func (k ChannelKind) String() string {
	switch k {
	case Mono:
		return "mono"
	case LeftChannel:
		return "left"
	case RightChannel:
		return "right"
	default:
		return "unknown"
	}
}

// timeToSamples quantizes a time in seconds to a sample index by
// rounding half away from zero, the one quantization rule used
// everywhere in this package.
func timeToSamples(t, rate float64) int64 {
	return int64(math.Floor(t*rate + 0.5))
}

func samplesToTime(s int64, rate float64) float64 {
	return float64(s) / rate
}
