// SPDX-License-Identifier: EPL-2.0

package audacity

import (
	"github.com/viliml/audacity/blockstore"
	"github.com/viliml/audacity/sample"
	"github.com/viliml/audacity/wave"
)

// NewMemoryTrack returns an empty track backed by a fresh in-memory
// block store, for callers that do not need to share storage across
// tracks. Tracks that should exchange clips cheaply must be built on
// one common store with wave.NewTrack instead.
func NewMemoryTrack(rate float64, f sample.Format) *wave.Track {
	return wave.NewTrack(blockstore.NewMemory(0), f, rate)
}

// Render reads the span t0 to t1 of a track as float32 samples at the
// track rate. The bounds are quantized to whole samples; positions not
// covered by any clip come out as zero. The returned slice is owned by
// the caller.
func Render(t *wave.Track, t0, t1 float64) ([]float32, error) {
	s0 := t.TimeToSamples(t0)
	s1 := t.TimeToSamples(t1)
	if s1 < s0 {
		return nil, wave.ErrInvalidRange
	}
	if s1 == s0 {
		return nil, nil
	}

	cache := wave.NewTrackCache(t)
	view, err := cache.Get(s0, int(s1-s0))
	if err != nil {
		return nil, err
	}

	// The cache owns the slice it returns.
	out := make([]float32, len(view))
	copy(out, view)
	return out, nil
}
