// SPDX-License-Identifier: EPL-2.0

// Package sequence implements an editable run of audio samples stored as
// immutable, reference-counted blocks.
//
// A Sequence never holds its samples in one contiguous buffer. It keeps
// an ordered list of block references into a Store and rewrites that list
// when samples are deleted, inserted, or pasted, touching only the blocks
// at the edit's edges. The Store interface is deliberately small so that
// backing media can range from process memory to a database (see the
// blockstore package).
//
// # Editing guarantees
//
// Delete, InsertSilence, Paste, and ConvertFormat stage every fallible
// store write before changing the sequence, so a failed edit leaves the
// sequence exactly as it was. Append and Set may leave a prefix of the
// request applied when the store fails mid-way.
//
// # Copies and block sharing
//
// Copy and Clone share whole blocks with the original through the store's
// reference counts; only partial blocks at the copy's edges are
// duplicated. Because edits replace blocks instead of writing into them,
// a shared block is never visible as a mutation in the other sequence:
//
//	dup, _ := seq.Copy(0, seq.NumSamples())
//	_ = dup.Set(buf, 0) // seq is unaffected
//
// # Append batching
//
// Append accumulates samples in a pending tail and commits them as
// full-size blocks. NumSamples, Get, and Set all see pending samples, so
// the batching is invisible; Flush forces the tail into blocks and flushes
// the store, which matters before sharing the store's contents elsewhere.
package sequence
