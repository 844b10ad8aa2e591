// SPDX-License-Identifier: EPL-2.0

package sequence

// Store is the block persistence contract a Sequence builds on. Blocks
// are immutable once written and reference counted so that sequence
// copies can share them; an edit never modifies a block in place, it
// writes a replacement and releases the original.
//
// Implementations live outside this package (see the blockstore package
// for an in-memory store and a SQLite-backed one) and are matched
// structurally. A Store is used under the same single-writer discipline
// as the sequences above it.
type Store interface {
	// NewBlock persists data as a new block with a reference count of
	// one and returns its id. The store must copy data before returning;
	// callers reuse their buffers.
	NewBlock(data []byte) (int64, error)

	// ReadBlock fills dst with len(dst) bytes of block id starting at
	// byte offset off.
	ReadBlock(id int64, off int64, dst []byte) error

	// Retain increments the reference count of block id.
	Retain(id int64) error

	// Release decrements the reference count of block id, deleting the
	// block when it reaches zero.
	Release(id int64) error

	// MaxBlockBytes returns the largest data length NewBlock accepts.
	MaxBlockBytes() int

	// Flush makes previously written blocks durable, where the backing
	// medium distinguishes that from NewBlock returning.
	Flush() error
}
