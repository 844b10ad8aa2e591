// SPDX-License-Identifier: EPL-2.0

package blockstore

import "fmt"

// DefaultBlockBytes is the block size used when a store is constructed
// with size zero. One mebibyte holds 262144 float32 samples, about six
// seconds of mono audio at 44.1 kHz.
const DefaultBlockBytes = 1 << 20

// Memory is a process-local block store. It follows the same
// single-writer discipline as the sequences above it and is the default
// backing for scratch tracks and tests.
type Memory struct {
	maxBytes int
	blocks   map[int64]*memBlock
	nextID   int64
	allocs   int64
}

type memBlock struct {
	data []byte
	refs int
}

// NewMemory returns an empty in-memory store with the given block size.
// A maxBlockBytes of zero selects DefaultBlockBytes.
func NewMemory(maxBlockBytes int) *Memory {
	if maxBlockBytes <= 0 {
		maxBlockBytes = DefaultBlockBytes
	}

	return &Memory{
		maxBytes: maxBlockBytes,
		blocks:   make(map[int64]*memBlock),
	}
}

func (m *Memory) NewBlock(data []byte) (int64, error) {
	if len(data) > m.maxBytes {
		return 0, fmt.Errorf("%d bytes into %d-byte blocks: %w", len(data), m.maxBytes, ErrBlockTooLarge)
	}

	m.nextID++
	m.allocs++
	m.blocks[m.nextID] = &memBlock{data: append([]byte(nil), data...), refs: 1}

	return m.nextID, nil
}

func (m *Memory) ReadBlock(id, off int64, dst []byte) error {
	b, ok := m.blocks[id]
	if !ok {
		return fmt.Errorf("block %d: %w", id, ErrUnknownBlock)
	}

	if off < 0 || off+int64(len(dst)) > int64(len(b.data)) {
		return fmt.Errorf("[%d, %d) of %d bytes: %w", off, off+int64(len(dst)), len(b.data), ErrReadRange)
	}

	copy(dst, b.data[off:])

	return nil
}

func (m *Memory) Retain(id int64) error {
	b, ok := m.blocks[id]
	if !ok {
		return fmt.Errorf("block %d: %w", id, ErrUnknownBlock)
	}

	b.refs++

	return nil
}

func (m *Memory) Release(id int64) error {
	b, ok := m.blocks[id]
	if !ok {
		return fmt.Errorf("block %d: %w", id, ErrUnknownBlock)
	}

	b.refs--
	if b.refs <= 0 {
		delete(m.blocks, id)
	}

	return nil
}

func (m *Memory) MaxBlockBytes() int { return m.maxBytes }

func (m *Memory) Flush() error { return nil }

// Len returns the number of live blocks.
func (m *Memory) Len() int { return len(m.blocks) }

// Allocs returns the number of blocks ever written, live or not. Tests
// use it to verify that copies share blocks instead of duplicating them.
func (m *Memory) Allocs() int64 { return m.allocs }
