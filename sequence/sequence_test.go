// SPDX-License-Identifier: EPL-2.0

package sequence

import (
	"errors"
	"fmt"
	"math"
	"testing"

	"github.com/viliml/audacity/sample"
)

// memStore is a minimal in-process Store for exercising sequences.
type memStore struct {
	maxBytes int
	blocks   map[int64]*memBlock
	nextID   int64
	allocs   int
}

type memBlock struct {
	data []byte
	refs int
}

func newMemStore(maxBytes int) *memStore {
	return &memStore{maxBytes: maxBytes, blocks: make(map[int64]*memBlock)}
}

func (m *memStore) NewBlock(data []byte) (int64, error) {
	if len(data) > m.maxBytes {
		return 0, fmt.Errorf("block of %d bytes exceeds %d", len(data), m.maxBytes)
	}

	m.nextID++
	m.allocs++
	m.blocks[m.nextID] = &memBlock{data: append([]byte(nil), data...), refs: 1}

	return m.nextID, nil
}

func (m *memStore) ReadBlock(id, off int64, dst []byte) error {
	b, ok := m.blocks[id]
	if !ok {
		return fmt.Errorf("unknown block %d", id)
	}

	if off < 0 || off+int64(len(dst)) > int64(len(b.data)) {
		return fmt.Errorf("read [%d, %d) of %d-byte block", off, off+int64(len(dst)), len(b.data))
	}

	copy(dst, b.data[off:])

	return nil
}

func (m *memStore) Retain(id int64) error {
	b, ok := m.blocks[id]
	if !ok {
		return fmt.Errorf("unknown block %d", id)
	}

	b.refs++

	return nil
}

func (m *memStore) Release(id int64) error {
	b, ok := m.blocks[id]
	if !ok {
		return fmt.Errorf("unknown block %d", id)
	}

	b.refs--
	if b.refs <= 0 {
		delete(m.blocks, id)
	}

	return nil
}

func (m *memStore) MaxBlockBytes() int { return m.maxBytes }
func (m *memStore) Flush() error       { return nil }

func (m *memStore) live() int { return len(m.blocks) }

// failStore fails NewBlock after a countdown, for guarantee tests.
type failStore struct {
	*memStore
	failAfter int
	errWrite  error
}

func (f *failStore) NewBlock(data []byte) (int64, error) {
	if f.failAfter <= 0 {
		return 0, f.errWrite
	}

	f.failAfter--

	return f.memStore.NewBlock(data)
}

func ramp(n int) []float32 {
	out := make([]float32, n)
	for i := range out {
		out[i] = float32(i) / 1000
	}

	return out
}

// newRampSeq builds a float32 sequence over a 16-samples-per-block store.
func newRampSeq(t *testing.T, n int) (*Sequence, *memStore) {
	t.Helper()

	store := newMemStore(16 * 4)
	seq := New(store, sample.Float32)

	if err := seq.Append(ramp(n)); err != nil {
		t.Fatalf("Append() failed: %v", err)
	}

	return seq, store
}

func wantSamples(t *testing.T, seq *Sequence, want []float32) {
	t.Helper()

	if got := seq.NumSamples(); got != int64(len(want)) {
		t.Fatalf("NumSamples() = %d, want %d", got, len(want))
	}

	got := make([]float32, len(want))
	if err := seq.Get(got, 0); err != nil {
		t.Fatalf("Get() failed: %v", err)
	}

	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("sample %d = %v, want %v", i, got[i], want[i])
		}
	}
}

func TestSequence_AppendAndGet(t *testing.T) {
	t.Parallel()

	seq, store := newRampSeq(t, 100)
	wantSamples(t, seq, ramp(100))

	// 100 samples over 16-sample blocks: 6 committed, 4 pending
	if store.live() != 6 {
		t.Errorf("store holds %d blocks, want 6", store.live())
	}
}

func TestSequence_GetPartial(t *testing.T) {
	t.Parallel()

	seq, _ := newRampSeq(t, 100)

	// Crosses a block boundary and reaches into the pending tail
	got := make([]float32, 60)
	if err := seq.Get(got, 30); err != nil {
		t.Fatalf("Get() failed: %v", err)
	}

	want := ramp(100)[30:90]
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("sample %d = %v, want %v", i, got[i], want[i])
		}
	}
}

func TestSequence_GetOutOfRange(t *testing.T) {
	t.Parallel()

	seq, _ := newRampSeq(t, 10)

	if err := seq.Get(make([]float32, 5), 8); !errors.Is(err, ErrOutOfRange) {
		t.Errorf("Get() past end = %v, want ErrOutOfRange", err)
	}

	if err := seq.Get(make([]float32, 1), -1); !errors.Is(err, ErrOutOfRange) {
		t.Errorf("Get() at -1 = %v, want ErrOutOfRange", err)
	}
}

func TestSequence_Set(t *testing.T) {
	t.Parallel()

	seq, _ := newRampSeq(t, 100)

	patch := []float32{9, 8, 7, 6, 5}
	if err := seq.Set(patch, 14); err != nil { // spans blocks 0 and 1
		t.Fatalf("Set() failed: %v", err)
	}

	want := ramp(100)
	copy(want[14:], patch)
	wantSamples(t, seq, want)
}

func TestSequence_SetInPendingTail(t *testing.T) {
	t.Parallel()

	seq, _ := newRampSeq(t, 100)

	patch := []float32{-1, -2}
	if err := seq.Set(patch, 97); err != nil {
		t.Fatalf("Set() failed: %v", err)
	}

	want := ramp(100)
	copy(want[97:], patch)
	wantSamples(t, seq, want)
}

func TestSequence_CopySharesBlocks(t *testing.T) {
	t.Parallel()

	seq, store := newRampSeq(t, 64) // exactly 4 committed blocks
	if err := seq.Flush(); err != nil {
		t.Fatalf("Flush() failed: %v", err)
	}

	before := store.allocs

	dup, err := seq.Copy(0, 64)
	if err != nil {
		t.Fatalf("Copy() failed: %v", err)
	}

	if store.allocs != before {
		t.Errorf("Copy() allocated %d new blocks, want 0", store.allocs-before)
	}

	wantSamples(t, dup, ramp(64))
}

func TestSequence_CopyEdgesAreFreshBlocks(t *testing.T) {
	t.Parallel()

	seq, store := newRampSeq(t, 64)
	if err := seq.Flush(); err != nil {
		t.Fatalf("Flush() failed: %v", err)
	}

	before := store.allocs

	dup, err := seq.Copy(8, 40) // cuts into blocks 0 and 2
	if err != nil {
		t.Fatalf("Copy() failed: %v", err)
	}

	if got := store.allocs - before; got != 2 {
		t.Errorf("Copy() allocated %d new blocks, want 2 edge copies", got)
	}

	wantSamples(t, dup, ramp(64)[8:40])
}

func TestSequence_SetOnCopyIsInvisible(t *testing.T) {
	t.Parallel()

	seq, _ := newRampSeq(t, 64)

	dup, err := seq.Clone()
	if err != nil {
		t.Fatalf("Clone() failed: %v", err)
	}

	if err := dup.Set([]float32{5, 5, 5, 5}, 16); err != nil {
		t.Fatalf("Set() on copy failed: %v", err)
	}

	wantSamples(t, seq, ramp(64)) // original untouched

	want := ramp(64)
	copy(want[16:], []float32{5, 5, 5, 5})
	wantSamples(t, dup, want)
}

func TestSequence_Delete(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		start, n int64
	}{
		{"interior of one block", 3, 5},
		{"across blocks", 10, 20},
		{"from the start", 0, 16},
		{"to the end", 80, 20},
		{"everything", 0, 100},
		{"nothing", 40, 0},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			seq, _ := newRampSeq(t, 100)

			if err := seq.Delete(tt.start, tt.n); err != nil {
				t.Fatalf("Delete() failed: %v", err)
			}

			all := ramp(100)
			want := append(append([]float32(nil), all[:tt.start]...), all[tt.start+tt.n:]...)
			wantSamples(t, seq, want)
		})
	}
}

func TestSequence_DeleteOutOfRange(t *testing.T) {
	t.Parallel()

	seq, _ := newRampSeq(t, 10)

	if err := seq.Delete(5, 10); !errors.Is(err, ErrOutOfRange) {
		t.Errorf("Delete() past end = %v, want ErrOutOfRange", err)
	}
}

func TestSequence_DeleteStrongGuarantee(t *testing.T) {
	t.Parallel()

	store := newMemStore(16 * 4)
	boom := errors.New("store full")
	fs := &failStore{memStore: store, errWrite: boom}

	seq := New(fs, sample.Float32)
	fs.failAfter = 1000
	if err := seq.Append(ramp(100)); err != nil {
		t.Fatalf("Append() failed: %v", err)
	}
	if err := seq.Flush(); err != nil {
		t.Fatalf("Flush() failed: %v", err)
	}

	live := store.live()
	fs.failAfter = 0 // next NewBlock fails

	// Needs two edge blocks, so it must fail and roll back
	if err := seq.Delete(3, 20); !errors.Is(err, boom) {
		t.Fatalf("Delete() = %v, want injected store error", err)
	}

	wantSamples(t, seq, ramp(100))

	if store.live() != live {
		t.Errorf("store holds %d blocks after failed Delete(), want %d", store.live(), live)
	}
}

func TestSequence_InsertSilence(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		at, n int64
	}{
		{"interior", 10, 7},
		{"at start", 0, 3},
		{"at end", 50, 5},
		{"block boundary", 16, 16},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			seq, _ := newRampSeq(t, 50)

			if err := seq.InsertSilence(tt.at, tt.n); err != nil {
				t.Fatalf("InsertSilence() failed: %v", err)
			}

			all := ramp(50)
			want := append([]float32(nil), all[:tt.at]...)
			want = append(want, make([]float32, tt.n)...)
			want = append(want, all[tt.at:]...)
			wantSamples(t, seq, want)
		})
	}
}

func TestSequence_InsertSilenceStrongGuarantee(t *testing.T) {
	t.Parallel()

	store := newMemStore(16 * 4)
	boom := errors.New("store full")
	fs := &failStore{memStore: store, errWrite: boom, failAfter: 1000}

	seq := New(fs, sample.Float32)
	if err := seq.Append(ramp(50)); err != nil {
		t.Fatalf("Append() failed: %v", err)
	}
	if err := seq.Flush(); err != nil {
		t.Fatalf("Flush() failed: %v", err)
	}

	live := store.live()
	fs.failAfter = 1 // zero block succeeds, edge split fails

	if err := seq.InsertSilence(10, 4); !errors.Is(err, boom) {
		t.Fatalf("InsertSilence() = %v, want injected store error", err)
	}

	wantSamples(t, seq, ramp(50))

	if store.live() != live {
		t.Errorf("store holds %d blocks after failed InsertSilence(), want %d", store.live(), live)
	}
}

func TestSequence_PasteSharedFormat(t *testing.T) {
	t.Parallel()

	store := newMemStore(16 * 4)

	seq := New(store, sample.Float32)
	if err := seq.Append(ramp(40)); err != nil {
		t.Fatalf("Append() failed: %v", err)
	}

	other := New(store, sample.Float32)
	insert := []float32{1, 2, 3}
	if err := other.Append(insert); err != nil {
		t.Fatalf("Append() failed: %v", err)
	}

	if err := seq.Paste(10, other); err != nil {
		t.Fatalf("Paste() failed: %v", err)
	}

	all := ramp(40)
	want := append([]float32(nil), all[:10]...)
	want = append(want, insert...)
	want = append(want, all[10:]...)
	wantSamples(t, seq, want)

	// The source still owns its samples
	wantSamples(t, other, insert)
}

func TestSequence_PasteConvertsFormat(t *testing.T) {
	t.Parallel()

	store := newMemStore(16 * 4)

	seq := New(store, sample.Int16)
	if err := seq.Append(make([]float32, 20)); err != nil {
		t.Fatalf("Append() failed: %v", err)
	}

	other := New(store, sample.Float32)
	if err := other.Append([]float32{0.5, -0.5}); err != nil {
		t.Fatalf("Append() failed: %v", err)
	}

	if err := seq.Paste(20, other); err != nil {
		t.Fatalf("Paste() failed: %v", err)
	}

	if got := seq.NumSamples(); got != 22 {
		t.Fatalf("NumSamples() = %d, want 22", got)
	}

	tail := make([]float32, 2)
	if err := seq.Get(tail, 20); err != nil {
		t.Fatalf("Get() failed: %v", err)
	}

	for i, want := range []float32{0.5, -0.5} {
		if math.Abs(float64(tail[i]-want)) > 2.0/32768.0 {
			t.Errorf("pasted sample %d = %v, want about %v", i, tail[i], want)
		}
	}
}

func TestSequence_ConvertFormat(t *testing.T) {
	t.Parallel()

	seq, _ := newRampSeq(t, 100)

	if err := seq.ConvertFormat(sample.Int16); err != nil {
		t.Fatalf("ConvertFormat() failed: %v", err)
	}

	if seq.Format() != sample.Int16 {
		t.Fatalf("Format() = %s, want int16", seq.Format())
	}

	got := make([]float32, 100)
	if err := seq.Get(got, 0); err != nil {
		t.Fatalf("Get() failed: %v", err)
	}

	for i, want := range ramp(100) {
		if math.Abs(float64(got[i]-want)) > 2.0/32768.0 {
			t.Fatalf("sample %d = %v, want about %v", i, got[i], want)
		}
	}
}

func TestSequence_SetSilence(t *testing.T) {
	t.Parallel()

	seq, _ := newRampSeq(t, 100)

	if err := seq.SetSilence(10, 50); err != nil {
		t.Fatalf("SetSilence() failed: %v", err)
	}

	want := ramp(100)
	for i := 10; i < 60; i++ {
		want[i] = 0
	}
	wantSamples(t, seq, want)
}

func TestSequence_MinMaxRMS(t *testing.T) {
	t.Parallel()

	store := newMemStore(16 * 4)
	seq := New(store, sample.Float32)

	if err := seq.Append([]float32{0, 0.5, -1, 0.25, 0.5, 0.5}); err != nil {
		t.Fatalf("Append() failed: %v", err)
	}

	lo, hi, err := seq.GetMinMax(0, 6)
	if err != nil {
		t.Fatalf("GetMinMax() failed: %v", err)
	}
	if lo != -1 || hi != 0.5 {
		t.Errorf("GetMinMax() = (%v, %v), want (-1, 0.5)", lo, hi)
	}

	lo, hi, err = seq.GetMinMax(3, 2)
	if err != nil {
		t.Fatalf("GetMinMax() failed: %v", err)
	}
	if lo != 0.25 || hi != 0.5 {
		t.Errorf("GetMinMax(3, 2) = (%v, %v), want (0.25, 0.5)", lo, hi)
	}

	if _, _, err := seq.GetMinMax(0, 0); err != nil {
		t.Errorf("GetMinMax() on empty range failed: %v", err)
	}

	rms, err := seq.GetRMS(3, 3)
	if err != nil {
		t.Fatalf("GetRMS() failed: %v", err)
	}
	want := float32(math.Sqrt((0.25*0.25 + 0.5*0.5 + 0.5*0.5) / 3))
	if math.Abs(float64(rms-want)) > 1e-7 {
		t.Errorf("GetRMS(3, 3) = %v, want %v", rms, want)
	}
}

func TestSequence_BlockGeometry(t *testing.T) {
	t.Parallel()

	seq, _ := newRampSeq(t, 40) // blocks of 16: two committed, 8 pending
	if got := seq.MaxBlockSize(); got != 16 {
		t.Fatalf("MaxBlockSize() = %d, want 16", got)
	}

	tests := []struct {
		pos       int64
		wantStart int64
		wantBest  int64
	}{
		{0, 0, 16},
		{15, 0, 1},
		{16, 16, 16},
		{33, 32, 7}, // pending tail
		{-1, -1, 16},
		{40, -1, 16},
	}

	for _, tt := range tests {
		tt := tt
		if got := seq.BlockStart(tt.pos); got != tt.wantStart {
			t.Errorf("BlockStart(%d) = %d, want %d", tt.pos, got, tt.wantStart)
		}

		if got := seq.BestBlockSize(tt.pos); got != tt.wantBest {
			t.Errorf("BestBlockSize(%d) = %d, want %d", tt.pos, got, tt.wantBest)
		}
	}
}

func TestSequence_AppendFormatStride(t *testing.T) {
	t.Parallel()

	store := newMemStore(1024)
	seq := New(store, sample.Float32)

	// Interleaved stereo int16: left channel counts up, right is noise
	frames := 8
	raw := make([]byte, frames*2*2)
	left := make([]float32, frames)
	for i := 0; i < frames; i++ {
		left[i] = float32(i) / 100
		sample.FromFloat32(raw[i*4:], left[i:i+1], sample.Int16)
		sample.FromFloat32(raw[i*4+2:], []float32{-1}, sample.Int16)
	}

	if err := seq.AppendFormat(raw, sample.Int16, int64(frames), 2); err != nil {
		t.Fatalf("AppendFormat() failed: %v", err)
	}

	got := make([]float32, frames)
	if err := seq.Get(got, 0); err != nil {
		t.Fatalf("Get() failed: %v", err)
	}

	for i := range left {
		if math.Abs(float64(got[i]-left[i])) > 2.0/32768.0 {
			t.Errorf("sample %d = %v, want about %v", i, got[i], left[i])
		}
	}
}

func TestSequence_CloseReleasesBlocks(t *testing.T) {
	t.Parallel()

	seq, store := newRampSeq(t, 100)

	if err := seq.Close(); err != nil {
		t.Fatalf("Close() failed: %v", err)
	}

	if store.live() != 0 {
		t.Errorf("store holds %d blocks after Close(), want 0", store.live())
	}

	if got := seq.NumSamples(); got != 0 {
		t.Errorf("NumSamples() = %d after Close(), want 0", got)
	}
}

func TestSequence_NilStore(t *testing.T) {
	t.Parallel()

	seq := New(nil, sample.Float32)
	if err := seq.Append([]float32{1}); !errors.Is(err, ErrNilStore) {
		t.Errorf("Append() = %v, want ErrNilStore", err)
	}
}

func BenchmarkSequence_Get(b *testing.B) {
	store := newMemStore(1 << 16)
	seq := New(store, sample.Float32)

	if err := seq.Append(ramp(1 << 15)); err != nil {
		b.Fatalf("Append() failed: %v", err)
	}

	dst := make([]float32, 4096)

	b.ReportAllocs()

	for i := 0; i < b.N; i++ {
		if err := seq.Get(dst, 1000); err != nil {
			b.Fatal(err)
		}
	}
}
