// SPDX-License-Identifier: EPL-2.0

package waveio

import (
	"fmt"
	"io"
	"math"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"

	"github.com/viliml/audacity/wave"
)

// Export renders tracks from time zero through the latest clip end and
// writes them to w as interleaved integer PCM. Each track becomes one
// channel, in order. Gaps between clips come out as silence. bitDepth
// must be 16, 24 or 32.
func Export(w io.WriteSeeker, tracks []*wave.Track, bitDepth int) error {
	if len(tracks) == 0 {
		return ErrNoTracks
	}
	switch bitDepth {
	case 16, 24, 32:
	default:
		return fmt.Errorf("%d bit: %w", bitDepth, ErrUnsupportedFormat)
	}

	rate := tracks[0].Rate()
	end := 0.0
	for _, tr := range tracks {
		if tr.Rate() != rate {
			return ErrRateMismatch
		}
		if e := tr.EndTime(); e > end {
			end = e
		}
	}
	total := tracks[0].TimeToSamples(end)

	caches := make([]*wave.TrackCache, len(tracks))
	for i, tr := range tracks {
		caches[i] = wave.NewTrackCache(tr)
	}

	channels := len(tracks)
	enc := wav.NewEncoder(w, int(rate), bitDepth, channels, 1)
	data := make([]int, chunkFrames*channels)
	buf := &audio.IntBuffer{
		Format:         &audio.Format{NumChannels: channels, SampleRate: int(rate)},
		SourceBitDepth: bitDepth,
	}
	scale := float64(int64(1) << (bitDepth - 1))

	for pos := int64(0); pos < total; pos += chunkFrames {
		frames := int(min(int64(chunkFrames), total-pos))
		buf.Data = data[:frames*channels]
		for ch, c := range caches {
			samples, err := c.Get(pos, frames)
			if err != nil {
				return fmt.Errorf("render channel %d: %w", ch, err)
			}
			for i, s := range samples {
				buf.Data[i*channels+ch] = quantize(s, scale)
			}
		}
		if err := enc.Write(buf); err != nil {
			return fmt.Errorf("encode WAV: %w", err)
		}
	}

	if total == 0 {
		// The encoder emits its header on the first write, so an empty
		// render still needs one to produce a well-formed stream.
		buf.Data = data[:0]
		if err := enc.Write(buf); err != nil {
			return fmt.Errorf("encode WAV: %w", err)
		}
	}

	if err := enc.Close(); err != nil {
		return fmt.Errorf("finalize WAV: %w", err)
	}
	return nil
}

// quantize maps a normalized sample to a signed integer with the given
// full-scale value, clamping to the representable range.
func quantize(s float32, scale float64) int {
	v := math.Round(float64(s) * scale)
	if v >= scale {
		v = scale - 1
	} else if v < -scale {
		v = -scale
	}
	return int(v)
}
