// SPDX-License-Identifier: EPL-2.0

package blockstore

import "errors"

var (
	// ErrUnknownBlock reports an id that no live block carries.
	ErrUnknownBlock = errors.New("unknown block id")

	// ErrBlockTooLarge reports data longer than the store's block size.
	ErrBlockTooLarge = errors.New("block data exceeds the store's block size")

	// ErrReadRange reports a read outside a block's bytes.
	ErrReadRange = errors.New("read outside block bounds")

	// ErrClosed reports use of a store after Close.
	ErrClosed = errors.New("store is closed")
)
