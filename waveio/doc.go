// SPDX-License-Identifier: EPL-2.0

// Package waveio moves tracks in and out of RIFF/WAVE streams.
//
// It uses the github.com/go-audio libraries for WAV parsing and
// encoding and translates between interleaved PCM frames and the
// one-track-per-channel model of the wave package.
//
// # Importing
//
// Import decodes an integer PCM stream into one track per channel,
// all allocating from the same block store:
//
//	f, _ := os.Open("session.wav")
//	tracks, err := waveio.Import(f, store)
//
// A stereo file yields a left/right pair of tracks. 16- and 24-bit
// samples keep their storage width; 32-bit samples are stored as
// float32.
//
// # Exporting
//
// Export renders tracks from time zero through the latest clip end,
// interleaves them as channels and writes integer PCM at the chosen
// bit depth:
//
//	f, _ := os.Create("mix.wav")
//	err := waveio.Export(f, tracks, 16)
//
// Gaps between clips are rendered as silence. All tracks must share
// one sample rate.
//
// # Errors
//
//   - ErrNotWAV: the input is not a decodable WAV stream
//   - ErrUnsupportedFormat: a WAV encoding or bit depth outside
//     integer PCM at 16, 24 or 32 bits
//   - ErrNoTracks: Export was given nothing to write
//   - ErrRateMismatch: the exported tracks disagree on sample rate
package waveio
