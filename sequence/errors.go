// SPDX-License-Identifier: EPL-2.0

package sequence

import "errors"

var (
	// ErrOutOfRange reports a sample position or count outside the
	// sequence's current length.
	ErrOutOfRange = errors.New("sample range out of bounds")

	// ErrInvalidFormat reports an unusable storage format.
	ErrInvalidFormat = errors.New("invalid sample format")

	// ErrNilStore reports a sequence constructed without a block store.
	ErrNilStore = errors.New("sequence has no block store")

	// ErrBlockSize reports a store whose blocks cannot hold even one
	// sample of the sequence's format.
	ErrBlockSize = errors.New("store block size cannot hold a sample")
)
