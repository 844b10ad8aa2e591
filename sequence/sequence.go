// SPDX-License-Identifier: EPL-2.0

package sequence

import (
	"fmt"
	"math"
	"sort"

	"github.com/viliml/audacity/sample"
)

// scanChunk bounds the scratch buffer used by whole-range scans such as
// GetMinMax and SetSilence.
const scanChunk = 65536

// blockRef locates one stored block inside the sequence.
type blockRef struct {
	id    int64
	start int64 // absolute index of the block's first sample
	n     int64 // samples in the block
}

// Sequence is an editable run of samples persisted as immutable blocks in
// a Store. Sample positions and counts are int64 sample units. Appends are
// batched in a small pending buffer and committed as full-size blocks;
// NumSamples always includes the pending tail, so callers never see the
// batching.
//
// Copies made with Copy or Clone share whole blocks with the original by
// reference count. Set never writes into a block, it replaces the block,
// so edits through one sequence are invisible to the other.
type Sequence struct {
	store  Store
	format sample.Format

	blocks     []blockRef
	numSamples int64 // committed samples, excluding the pending tail

	appendBuf []byte // pending tail in storage format
}

// New returns an empty sequence storing samples in format f.
func New(store Store, f sample.Format) *Sequence {
	return &Sequence{store: store, format: f}
}

func (s *Sequence) check() error {
	if s.store == nil {
		return ErrNilStore
	}

	if !s.format.Valid() {
		return fmt.Errorf("%s: %w", s.format, ErrInvalidFormat)
	}

	if s.store.MaxBlockBytes() < s.format.BytesPerSample() {
		return fmt.Errorf("block size %d: %w", s.store.MaxBlockBytes(), ErrBlockSize)
	}

	return nil
}

// Store returns the block store this sequence writes to.
func (s *Sequence) Store() Store { return s.store }

// Format returns the storage format.
func (s *Sequence) Format() sample.Format { return s.format }

// NumSamples returns the sequence length in samples, including samples
// appended but not yet committed to blocks.
func (s *Sequence) NumSamples() int64 {
	return s.numSamples + s.appendLen()
}

func (s *Sequence) appendLen() int64 {
	bps := s.format.BytesPerSample()
	if bps == 0 {
		return 0
	}

	return int64(len(s.appendBuf) / bps)
}

// maxSamples is the per-block capacity in samples for the current format.
func (s *Sequence) maxSamples() int64 {
	return int64(s.store.MaxBlockBytes() / s.format.BytesPerSample())
}

// findBlock returns the index of the block containing sample pos.
// pos must lie in [0, numSamples).
func (s *Sequence) findBlock(pos int64) int {
	return sort.Search(len(s.blocks), func(i int) bool {
		return s.blocks[i].start+s.blocks[i].n > pos
	})
}

// Get fills dst with len(dst) samples starting at sample index start.
func (s *Sequence) Get(dst []float32, start int64) error {
	if err := s.check(); err != nil {
		return err
	}

	n := int64(len(dst))
	if start < 0 || start+n > s.NumSamples() {
		return fmt.Errorf("get %d at %d of %d: %w", n, start, s.NumSamples(), ErrOutOfRange)
	}

	bps := int64(s.format.BytesPerSample())
	filled := int64(0)

	var raw []byte
	for filled < n && start+filled < s.numSamples {
		pos := start + filled
		b := s.blocks[s.findBlock(pos)]
		off := pos - b.start
		count := min(b.n-off, n-filled)

		need := int(count * bps)
		if cap(raw) < need {
			raw = make([]byte, need)
		}
		raw = raw[:need]

		if err := s.store.ReadBlock(b.id, off*bps, raw); err != nil {
			return fmt.Errorf("%w", err)
		}

		sample.ToFloat32(dst[filled:filled+count], raw, s.format)
		filled += count
	}

	if filled < n {
		tail := start + filled - s.numSamples
		sample.ToFloat32(dst[filled:], s.appendBuf[tail*bps:], s.format)
	}

	return nil
}

// GetMinMax scans n samples from start and returns the smallest and
// largest values. An empty range reports (0, 0).
func (s *Sequence) GetMinMax(start, n int64) (float32, float32, error) {
	if n <= 0 {
		return 0, 0, nil
	}

	lo := float32(math.Inf(1))
	hi := float32(math.Inf(-1))

	buf := make([]float32, min(n, scanChunk))
	for n > 0 {
		c := min(int64(len(buf)), n)
		if err := s.Get(buf[:c], start); err != nil {
			return 0, 0, err
		}

		for _, v := range buf[:c] {
			lo = min(lo, v)
			hi = max(hi, v)
		}

		start += c
		n -= c
	}

	return lo, hi, nil
}

// GetRMS returns the root mean square of n samples from start. An empty
// range reports 0.
func (s *Sequence) GetRMS(start, n int64) (float32, error) {
	if n <= 0 {
		return 0, nil
	}

	sumsq := 0.0
	total := n

	buf := make([]float32, min(n, scanChunk))
	for n > 0 {
		c := min(int64(len(buf)), n)
		if err := s.Get(buf[:c], start); err != nil {
			return 0, err
		}

		for _, v := range buf[:c] {
			sumsq += float64(v) * float64(v)
		}

		start += c
		n -= c
	}

	return float32(math.Sqrt(sumsq / float64(total))), nil
}

// Set overwrites len(src) samples starting at sample index start. Blocks
// are replaced, never modified, so copies sharing them are unaffected.
// Weak guarantee: on error a prefix of src may already be written.
func (s *Sequence) Set(src []float32, start int64) error {
	if err := s.check(); err != nil {
		return err
	}

	n := int64(len(src))
	if start < 0 || start+n > s.NumSamples() {
		return fmt.Errorf("set %d at %d of %d: %w", n, start, s.NumSamples(), ErrOutOfRange)
	}

	bps := int64(s.format.BytesPerSample())
	written := int64(0)

	for written < n && start+written < s.numSamples {
		pos := start + written
		bi := s.findBlock(pos)
		b := s.blocks[bi]
		off := pos - b.start
		count := min(b.n-off, n-written)

		raw := make([]byte, b.n*bps)
		if off > 0 || count < b.n {
			// Partially covered block keeps its other samples
			if err := s.store.ReadBlock(b.id, 0, raw); err != nil {
				return fmt.Errorf("%w", err)
			}
		}

		sample.FromFloat32(raw[off*bps:(off+count)*bps], src[written:written+count], s.format)

		id, err := s.store.NewBlock(raw)
		if err != nil {
			return fmt.Errorf("%w", err)
		}

		_ = s.store.Release(b.id)
		s.blocks[bi].id = id
		written += count
	}

	if written < n {
		tail := start + written - s.numSamples
		sample.FromFloat32(s.appendBuf[tail*bps:], src[written:], s.format)
	}

	return nil
}

// SetSilence overwrites n samples starting at start with zeroes. Weak
// guarantee, like Set.
func (s *Sequence) SetSilence(start, n int64) error {
	if err := s.check(); err != nil {
		return err
	}

	if n <= 0 {
		return nil
	}

	zeros := make([]float32, min(n, scanChunk))
	for n > 0 {
		c := min(int64(len(zeros)), n)
		if err := s.Set(zeros[:c], start); err != nil {
			return err
		}

		start += c
		n -= c
	}

	return nil
}

// Append adds samples to the end of the sequence. Full blocks are
// committed to the store as the pending buffer fills. Weak guarantee.
func (s *Sequence) Append(src []float32) error {
	if err := s.check(); err != nil {
		return err
	}

	bps := s.format.BytesPerSample()
	old := len(s.appendBuf)
	s.appendBuf = append(s.appendBuf, make([]byte, len(src)*bps)...)
	sample.FromFloat32(s.appendBuf[old:], src, s.format)

	maxBytes := int(s.maxSamples()) * bps
	for len(s.appendBuf) >= maxBytes {
		id, err := s.store.NewBlock(s.appendBuf[:maxBytes])
		if err != nil {
			return fmt.Errorf("%w", err)
		}

		s.blocks = append(s.blocks, blockRef{id: id, start: s.numSamples, n: s.maxSamples()})
		s.numSamples += s.maxSamples()
		s.appendBuf = append(s.appendBuf[:0], s.appendBuf[maxBytes:]...)
	}

	return nil
}

// AppendFormat adds n samples taken from raw little-endian PCM in format
// f. stride skips samples between reads: appending one channel of
// interleaved audio uses the channel count as the stride, with src sliced
// to begin at that channel's first sample.
func (s *Sequence) AppendFormat(src []byte, f sample.Format, n int64, stride int) error {
	if err := s.check(); err != nil {
		return err
	}

	if !f.Valid() {
		return fmt.Errorf("%s: %w", f, ErrInvalidFormat)
	}

	if stride <= 0 {
		stride = 1
	}

	bps := f.BytesPerSample()
	if need := (int(n-1)*stride + 1) * bps; n > 0 && len(src) < need {
		return fmt.Errorf("append %d samples from %d bytes: %w", n, len(src), ErrOutOfRange)
	}

	tmp := make([]float32, int(n))
	if stride == 1 {
		sample.ToFloat32(tmp, src, f)
	} else {
		for i := range tmp {
			sample.ToFloat32(tmp[i:i+1], src[i*stride*bps:], f)
		}
	}

	return s.Append(tmp)
}

// flushAppend commits the whole pending buffer to blocks.
func (s *Sequence) flushAppend() error {
	bps := s.format.BytesPerSample()
	maxBytes := int(s.maxSamples()) * bps

	for len(s.appendBuf) > 0 {
		chunk := min(len(s.appendBuf), maxBytes)

		id, err := s.store.NewBlock(s.appendBuf[:chunk])
		if err != nil {
			return fmt.Errorf("%w", err)
		}

		n := int64(chunk / bps)
		s.blocks = append(s.blocks, blockRef{id: id, start: s.numSamples, n: n})
		s.numSamples += n
		s.appendBuf = append(s.appendBuf[:0], s.appendBuf[chunk:]...)
	}

	return nil
}

// Delete removes n samples starting at sample index start. Strong
// guarantee: on error the sequence is unchanged.
func (s *Sequence) Delete(start, n int64) error {
	if err := s.check(); err != nil {
		return err
	}

	if err := s.flushAppend(); err != nil {
		return err
	}

	if start < 0 || n < 0 || start+n > s.numSamples {
		return fmt.Errorf("delete %d at %d of %d: %w", n, start, s.numSamples, ErrOutOfRange)
	}

	if n == 0 {
		return nil
	}

	bps := int64(s.format.BytesPerSample())
	end := start + n

	var (
		added     []int64 // staged blocks, released if anything fails
		removed   []int64 // replaced blocks, released after commit
		newBlocks []blockRef
	)

	fail := func(err error) error {
		for _, id := range added {
			_ = s.store.Release(id)
		}

		return err
	}

	for _, b := range s.blocks {
		bEnd := b.start + b.n

		switch {
		case bEnd <= start:
			newBlocks = append(newBlocks, b)
		case b.start >= end:
			b.start -= n
			newBlocks = append(newBlocks, b)
		default:
			removed = append(removed, b.id)

			if b.start < start { // leading part survives
				keep := start - b.start
				raw := make([]byte, keep*bps)
				if err := s.store.ReadBlock(b.id, 0, raw); err != nil {
					return fail(fmt.Errorf("%w", err))
				}

				id, err := s.store.NewBlock(raw)
				if err != nil {
					return fail(fmt.Errorf("%w", err))
				}

				added = append(added, id)
				newBlocks = append(newBlocks, blockRef{id: id, start: b.start, n: keep})
			}

			if bEnd > end { // trailing part survives
				keep := bEnd - end
				raw := make([]byte, keep*bps)
				if err := s.store.ReadBlock(b.id, (end-b.start)*bps, raw); err != nil {
					return fail(fmt.Errorf("%w", err))
				}

				id, err := s.store.NewBlock(raw)
				if err != nil {
					return fail(fmt.Errorf("%w", err))
				}

				added = append(added, id)
				newBlocks = append(newBlocks, blockRef{id: id, start: start, n: keep})
			}
		}
	}

	s.blocks = newBlocks
	s.numSamples -= n

	for _, id := range removed {
		_ = s.store.Release(id)
	}

	return nil
}

// splice rewrites the block list so that the insert blocks, holding
// insLen samples, sit at sample position at. The block containing at is
// split first. Nothing is committed until every store write has
// succeeded; on error splice releases the blocks it created (but not the
// caller's insert blocks) and leaves the sequence unchanged.
func (s *Sequence) splice(at int64, insert []blockRef, insLen int64) error {
	bps := int64(s.format.BytesPerSample())

	var (
		added   []int64
		removed []int64
		before  []blockRef
		after   []blockRef
	)

	fail := func(err error) error {
		for _, id := range added {
			_ = s.store.Release(id)
		}

		return err
	}

	for _, b := range s.blocks {
		bEnd := b.start + b.n

		switch {
		case bEnd <= at:
			before = append(before, b)
		case b.start >= at:
			b.start += insLen
			after = append(after, b)
		default:
			removed = append(removed, b.id)

			pre := at - b.start
			raw := make([]byte, pre*bps)
			if err := s.store.ReadBlock(b.id, 0, raw); err != nil {
				return fail(fmt.Errorf("%w", err))
			}

			id, err := s.store.NewBlock(raw)
			if err != nil {
				return fail(fmt.Errorf("%w", err))
			}
			added = append(added, id)
			before = append(before, blockRef{id: id, start: b.start, n: pre})

			suf := bEnd - at
			raw = make([]byte, suf*bps)
			if err := s.store.ReadBlock(b.id, pre*bps, raw); err != nil {
				return fail(fmt.Errorf("%w", err))
			}

			id, err = s.store.NewBlock(raw)
			if err != nil {
				return fail(fmt.Errorf("%w", err))
			}
			added = append(added, id)
			after = append(after, blockRef{id: id, start: at + insLen, n: suf})
		}
	}

	merged := make([]blockRef, 0, len(before)+len(insert)+len(after))
	merged = append(merged, before...)
	merged = append(merged, insert...)
	merged = append(merged, after...)

	s.blocks = merged
	s.numSamples += insLen

	for _, id := range removed {
		_ = s.store.Release(id)
	}

	return nil
}

// InsertSilence inserts n zero samples at sample position at. Strong
// guarantee.
func (s *Sequence) InsertSilence(at, n int64) error {
	if err := s.check(); err != nil {
		return err
	}

	if err := s.flushAppend(); err != nil {
		return err
	}

	if at < 0 || n < 0 || at > s.numSamples {
		return fmt.Errorf("insert %d at %d of %d: %w", n, at, s.numSamples, ErrOutOfRange)
	}

	if n == 0 {
		return nil
	}

	bps := int64(s.format.BytesPerSample())

	var zeros []blockRef
	fail := func(err error) error {
		for _, b := range zeros {
			_ = s.store.Release(b.id)
		}

		return err
	}

	pos := at
	for left := n; left > 0; {
		count := min(left, s.maxSamples())

		id, err := s.store.NewBlock(make([]byte, count*bps))
		if err != nil {
			return fail(fmt.Errorf("%w", err))
		}

		zeros = append(zeros, blockRef{id: id, start: pos, n: count})
		pos += count
		left -= count
	}

	if err := s.splice(at, zeros, n); err != nil {
		return fail(err)
	}

	return nil
}

// Paste inserts a copy of other at sample position at. When the two
// sequences share a store and format the pasted blocks are shared by
// reference; otherwise the samples are re-encoded. Strong guarantee.
func (s *Sequence) Paste(at int64, other *Sequence) error {
	if err := s.check(); err != nil {
		return err
	}

	if err := s.flushAppend(); err != nil {
		return err
	}

	if at < 0 || at > s.numSamples {
		return fmt.Errorf("paste at %d of %d: %w", at, s.numSamples, ErrOutOfRange)
	}

	if other == nil {
		return nil
	}

	if err := other.check(); err != nil {
		return err
	}

	if err := other.flushAppend(); err != nil {
		return err
	}

	insLen := other.numSamples
	if insLen == 0 {
		return nil
	}

	var inserted []blockRef
	fail := func(err error) error {
		for _, b := range inserted {
			_ = s.store.Release(b.id)
		}

		return err
	}

	if other.store == s.store && other.format == s.format {
		pos := at
		for _, b := range other.blocks {
			if err := s.store.Retain(b.id); err != nil {
				return fail(fmt.Errorf("%w", err))
			}

			inserted = append(inserted, blockRef{id: b.id, start: pos, n: b.n})
			pos += b.n
		}
	} else {
		bps := int64(s.format.BytesPerSample())
		chunk := s.maxSamples()
		buf := make([]float32, min(chunk, insLen))
		raw := make([]byte, min(chunk, insLen)*bps)

		pos := at
		for off := int64(0); off < insLen; off += chunk {
			count := min(chunk, insLen-off)
			if err := other.Get(buf[:count], off); err != nil {
				return fail(err)
			}

			sample.FromFloat32(raw[:count*bps], buf[:count], s.format)

			id, err := s.store.NewBlock(raw[:count*bps])
			if err != nil {
				return fail(fmt.Errorf("%w", err))
			}

			inserted = append(inserted, blockRef{id: id, start: pos, n: count})
			pos += count
		}
	}

	if err := s.splice(at, inserted, insLen); err != nil {
		return fail(err)
	}

	return nil
}

// Copy returns a new sequence holding samples [start, end). Blocks fully
// inside the range are shared with the original by reference count; edge
// partials are copied into fresh blocks.
func (s *Sequence) Copy(start, end int64) (*Sequence, error) {
	if err := s.check(); err != nil {
		return nil, err
	}

	if err := s.flushAppend(); err != nil {
		return nil, err
	}

	if start < 0 || end < start || end > s.numSamples {
		return nil, fmt.Errorf("copy [%d, %d) of %d: %w", start, end, s.numSamples, ErrOutOfRange)
	}

	out := New(s.store, s.format)
	bps := int64(s.format.BytesPerSample())

	for _, b := range s.blocks {
		bEnd := b.start + b.n
		if bEnd <= start || b.start >= end {
			continue
		}

		lo := max(b.start, start)
		hi := min(bEnd, end)

		if lo == b.start && hi == bEnd {
			if err := s.store.Retain(b.id); err != nil {
				_ = out.Close()
				return nil, fmt.Errorf("%w", err)
			}

			out.blocks = append(out.blocks, blockRef{id: b.id, start: b.start - start, n: b.n})
			continue
		}

		count := hi - lo
		raw := make([]byte, count*bps)
		if err := s.store.ReadBlock(b.id, (lo-b.start)*bps, raw); err != nil {
			_ = out.Close()
			return nil, fmt.Errorf("%w", err)
		}

		id, err := s.store.NewBlock(raw)
		if err != nil {
			_ = out.Close()
			return nil, fmt.Errorf("%w", err)
		}

		out.blocks = append(out.blocks, blockRef{id: id, start: lo - start, n: count})
	}

	out.numSamples = end - start

	return out, nil
}

// Clone returns a full copy sharing every whole block.
func (s *Sequence) Clone() (*Sequence, error) {
	return s.Copy(0, s.NumSamples())
}

// ConvertFormat rewrites the sequence's storage in format f. Strong
// guarantee.
func (s *Sequence) ConvertFormat(f sample.Format) error {
	if err := s.check(); err != nil {
		return err
	}

	if !f.Valid() {
		return fmt.Errorf("%s: %w", f, ErrInvalidFormat)
	}

	if f == s.format {
		return nil
	}

	if err := s.flushAppend(); err != nil {
		return err
	}

	bps := int64(f.BytesPerSample())
	chunk := int64(s.store.MaxBlockBytes()) / bps

	var newBlocks []blockRef
	fail := func(err error) error {
		for _, b := range newBlocks {
			_ = s.store.Release(b.id)
		}

		return err
	}

	buf := make([]float32, min(chunk, max(s.numSamples, 1)))
	raw := make([]byte, int64(len(buf))*bps)

	for pos := int64(0); pos < s.numSamples; pos += chunk {
		count := min(chunk, s.numSamples-pos)
		if err := s.Get(buf[:count], pos); err != nil {
			return fail(err)
		}

		sample.FromFloat32(raw[:count*bps], buf[:count], f)

		id, err := s.store.NewBlock(raw[:count*bps])
		if err != nil {
			return fail(fmt.Errorf("%w", err))
		}

		newBlocks = append(newBlocks, blockRef{id: id, start: pos, n: count})
	}

	old := s.blocks
	s.blocks = newBlocks
	s.format = f

	for _, b := range old {
		_ = s.store.Release(b.id)
	}

	return nil
}

// BlockStart returns the first sample index of the block containing pos,
// or -1 when pos is outside the sequence. Samples still in the pending
// tail report the tail's start.
func (s *Sequence) BlockStart(pos int64) int64 {
	if pos < 0 || pos >= s.NumSamples() {
		return -1
	}

	if pos >= s.numSamples {
		return s.numSamples
	}

	return s.blocks[s.findBlock(pos)].start
}

// BestBlockSize returns the largest read length starting at pos that
// stays within one block, the preferred request size for sequential
// readers. Outside the sequence it returns the maximum block size.
func (s *Sequence) BestBlockSize(pos int64) int64 {
	if s.check() != nil {
		return 0
	}

	if pos < 0 || pos >= s.NumSamples() {
		return s.maxSamples()
	}

	if pos >= s.numSamples {
		return s.NumSamples() - pos
	}

	b := s.blocks[s.findBlock(pos)]

	return min(b.start+b.n-pos, s.maxSamples())
}

// MaxBlockSize returns the per-block sample capacity.
func (s *Sequence) MaxBlockSize() int64 {
	if s.check() != nil {
		return 0
	}

	return s.maxSamples()
}

// IdealBlockSize returns the append batching size.
func (s *Sequence) IdealBlockSize() int64 {
	return s.MaxBlockSize()
}

// Flush commits the pending tail and flushes the store.
func (s *Sequence) Flush() error {
	if err := s.check(); err != nil {
		return err
	}

	if err := s.flushAppend(); err != nil {
		return err
	}

	if err := s.store.Flush(); err != nil {
		return fmt.Errorf("%w", err)
	}

	return nil
}

// Close releases every block the sequence holds. The sequence is empty
// afterwards.
func (s *Sequence) Close() error {
	if s.store == nil {
		return nil
	}

	var first error
	for _, b := range s.blocks {
		if err := s.store.Release(b.id); err != nil && first == nil {
			first = err
		}
	}

	s.blocks = nil
	s.numSamples = 0
	s.appendBuf = nil

	if first != nil {
		return fmt.Errorf("%w", first)
	}

	return nil
}
