// SPDX-License-Identifier: EPL-2.0

package waveio

import "errors"

var (
	// ErrNotWAV reports input that is not a decodable WAV stream.
	ErrNotWAV = errors.New("not a WAV file")

	// ErrUnsupportedFormat reports a WAV encoding other than integer
	// PCM at 16, 24 or 32 bits.
	ErrUnsupportedFormat = errors.New("unsupported WAV sample format")

	// ErrNoTracks reports an export with nothing to write.
	ErrNoTracks = errors.New("no tracks to export")

	// ErrRateMismatch reports exported tracks that disagree on sample
	// rate.
	ErrRateMismatch = errors.New("tracks have different sample rates")
)
