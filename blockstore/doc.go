// SPDX-License-Identifier: EPL-2.0

// Package blockstore provides sample-block stores for the sequence
// package.
//
// Two implementations are included:
//   - Memory: a map of reference-counted byte blocks, for scratch
//     editing and tests
//   - SQLite: blocks as rows in a SQLite database, for projects that
//     must survive the process
//
// Both satisfy sequence.Store structurally; nothing here imports the
// sequence package.
//
//	store := blockstore.NewMemory(0)
//	seq := sequence.New(store, sample.Float32)
//
// Blocks are immutable and reference counted. Copying a sequence retains
// the blocks it shares; releasing the last reference deletes the block.
package blockstore
