// SPDX-License-Identifier: EPL-2.0

// Package audiotest provides helpers shared by the audio tests:
// deterministic waveform buffers and a block store that fails on
// command.
package audiotest

import (
	"errors"
	"math"

	"github.com/viliml/audacity/sequence"
)

// ErrStoreFull is what a FailingStore returns once its allowance is
// used up.
var ErrStoreFull = errors.New("audiotest: store full")

// Ramp returns n samples with the distinct non-zero values
// 0.001, 0.002, 0.003 and so on, handy for asserting that edits move
// the right samples to the right places.
func Ramp(n int) []float32 {
	out := make([]float32, n)
	for i := range out {
		out[i] = float32(i+1) / 1000
	}
	return out
}

// Sine returns n samples of a sine wave at freq Hz sampled at rate.
func Sine(rate, freq float64, n int) []float32 {
	out := make([]float32, n)
	for i := range out {
		out[i] = float32(math.Sin(2 * math.Pi * freq * float64(i) / rate))
	}
	return out
}

// Constant returns n copies of v.
func Constant(n int, v float32) []float32 {
	out := make([]float32, n)
	for i := range out {
		out[i] = v
	}
	return out
}

// FailingStore delegates to an inner store until a set number of
// allocations have succeeded, then fails every further NewBlock and
// Retain with ErrStoreFull. Reads and releases keep working, so code
// under test can still clean up.
type FailingStore struct {
	inner     sequence.Store
	remaining int
}

// NewFailingStore returns a store that allows allow more allocations
// against inner before it starts failing.
func NewFailingStore(inner sequence.Store, allow int) *FailingStore {
	return &FailingStore{inner: inner, remaining: allow}
}

// Allow grants n more allocations.
func (s *FailingStore) Allow(n int) { s.remaining += n }

// Deny makes every further allocation fail until Allow is called again.
func (s *FailingStore) Deny() { s.remaining = 0 }

func (s *FailingStore) NewBlock(data []byte) (int64, error) {
	if s.remaining <= 0 {
		return 0, ErrStoreFull
	}
	s.remaining--
	return s.inner.NewBlock(data)
}

func (s *FailingStore) Retain(id int64) error {
	if s.remaining <= 0 {
		return ErrStoreFull
	}
	s.remaining--
	return s.inner.Retain(id)
}

func (s *FailingStore) ReadBlock(id, off int64, dst []byte) error {
	return s.inner.ReadBlock(id, off, dst)
}

func (s *FailingStore) Release(id int64) error { return s.inner.Release(id) }

func (s *FailingStore) MaxBlockBytes() int { return s.inner.MaxBlockBytes() }

func (s *FailingStore) Flush() error { return s.inner.Flush() }
