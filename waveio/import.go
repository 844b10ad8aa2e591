// SPDX-License-Identifier: EPL-2.0

package waveio

import (
	"encoding/binary"
	"fmt"
	"io"
	"math"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"

	"github.com/viliml/audacity/sample"
	"github.com/viliml/audacity/sequence"
	"github.com/viliml/audacity/wave"
)

// chunkFrames is how many frames move per decode or encode step.
const chunkFrames = 4096

// Import decodes an integer PCM WAV stream into one track per
// channel, all allocating from store. A mono file yields one track; a
// stereo file yields a left/right pair. 16- and 24-bit samples keep
// their storage width, 32-bit samples are stored as float32.
//
// On error no tracks are returned and any samples already written to
// the store are released.
func Import(r io.ReadSeeker, store sequence.Store) ([]*wave.Track, error) {
	d := wav.NewDecoder(r)
	d.ReadInfo()
	if !d.IsValidFile() {
		return nil, ErrNotWAV
	}
	if d.WavAudioFormat != 1 {
		return nil, fmt.Errorf("audio format %d: %w", d.WavAudioFormat, ErrUnsupportedFormat)
	}

	f, err := storageFormat(int(d.BitDepth))
	if err != nil {
		return nil, err
	}

	channels := int(d.NumChans)
	rate := float64(d.SampleRate)

	tracks := make([]*wave.Track, channels)
	for i := range tracks {
		tracks[i] = wave.NewTrack(store, f, rate)
	}
	if channels == 2 {
		tracks[0].SetChannel(wave.LeftChannel)
		tracks[1].SetChannel(wave.RightChannel)
	}

	fail := func(err error) ([]*wave.Track, error) {
		for _, tr := range tracks {
			_ = tr.Close()
		}
		return nil, err
	}

	buf := &audio.IntBuffer{
		Data:   make([]int, chunkFrames*channels),
		Format: &audio.Format{NumChannels: channels, SampleRate: int(d.SampleRate)},
	}
	bps := f.BytesPerSample()
	raw := make([]byte, len(buf.Data)*bps)

	for {
		n, err := d.PCMBuffer(buf)
		if err != nil {
			return fail(fmt.Errorf("decode WAV: %w", err))
		}
		if n == 0 {
			break
		}
		// A ragged tail that does not fill a whole frame is dropped.
		frames := n / channels
		if frames == 0 {
			break
		}
		packSamples(raw, buf.Data[:frames*channels], f)
		for ch, tr := range tracks {
			if err := tr.AppendFormat(raw[ch*bps:], f, int64(frames), channels); err != nil {
				return fail(fmt.Errorf("append channel %d: %w", ch, err))
			}
		}
	}

	for _, tr := range tracks {
		if err := tr.Flush(); err != nil {
			return fail(fmt.Errorf("flush: %w", err))
		}
	}
	return tracks, nil
}

// storageFormat maps a WAV bit depth to the storage format imported
// samples are kept in.
func storageFormat(bitDepth int) (sample.Format, error) {
	switch bitDepth {
	case 16:
		return sample.Int16, nil
	case 24:
		return sample.Int24, nil
	case 32:
		return sample.Float32, nil
	}
	return 0, fmt.Errorf("%d bit: %w", bitDepth, ErrUnsupportedFormat)
}

// packSamples writes decoded PCM values, still scaled to their WAV bit
// depth, as little-endian bytes of the storage format.
func packSamples(dst []byte, src []int, f sample.Format) {
	switch f {
	case sample.Int16:
		for i, v := range src {
			binary.LittleEndian.PutUint16(dst[i*2:], uint16(int16(v)))
		}
	case sample.Int24:
		for i, v := range src {
			dst[i*3] = byte(v)
			dst[i*3+1] = byte(v >> 8)
			dst[i*3+2] = byte(v >> 16)
		}
	case sample.Float32:
		for i, v := range src {
			s := float32(float64(v) / 2147483648.0)
			binary.LittleEndian.PutUint32(dst[i*4:], math.Float32bits(s))
		}
	}
}
