// SPDX-License-Identifier: EPL-2.0

package waveio

import (
	"errors"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"

	"github.com/viliml/audacity/blockstore"
	"github.com/viliml/audacity/internal/audiotest"
	"github.com/viliml/audacity/sample"
	"github.com/viliml/audacity/wave"
)

// writeTestWAV encodes interleaved PCM values into a fresh file and
// returns its path.
func writeTestWAV(t *testing.T, rate, bitDepth, channels, audioFormat int, data []int) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "in.wav")
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("Create() failed: %v", err)
	}

	enc := wav.NewEncoder(f, rate, bitDepth, channels, audioFormat)
	buf := &audio.IntBuffer{
		Data:           data,
		Format:         &audio.Format{NumChannels: channels, SampleRate: rate},
		SourceBitDepth: bitDepth,
	}
	if err := enc.Write(buf); err != nil {
		t.Fatalf("Write() failed: %v", err)
	}
	if err := enc.Close(); err != nil {
		t.Fatalf("Close() failed: %v", err)
	}
	if err := f.Close(); err != nil {
		t.Fatalf("Close() failed: %v", err)
	}
	return path
}

func importFile(t *testing.T, path string) []*wave.Track {
	t.Helper()

	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	defer func() { _ = f.Close() }()

	tracks, err := Import(f, blockstore.NewMemory(256*4))
	if err != nil {
		t.Fatalf("Import() failed: %v", err)
	}
	return tracks
}

func exportFile(t *testing.T, tracks []*wave.Track, bitDepth int) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "out.wav")
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("Create() failed: %v", err)
	}
	if err := Export(f, tracks, bitDepth); err != nil {
		t.Fatalf("Export() failed: %v", err)
	}
	if err := f.Close(); err != nil {
		t.Fatalf("Close() failed: %v", err)
	}
	return path
}

func trackSamples(t *testing.T, tr *wave.Track, n int) []float32 {
	t.Helper()

	got := make([]float32, n)
	if err := tr.Get(got, 0); err != nil {
		t.Fatalf("Get() failed: %v", err)
	}
	return got
}

// newFloatTrack builds a single-clip float32 track holding src.
func newFloatTrack(t *testing.T, store *blockstore.Memory, rate float64, src []float32) *wave.Track {
	t.Helper()

	tr := wave.NewTrack(store, sample.Float32, rate)
	if err := tr.Append(src); err != nil {
		t.Fatalf("Append() failed: %v", err)
	}
	if err := tr.Flush(); err != nil {
		t.Fatalf("Flush() failed: %v", err)
	}
	return tr
}

func TestImport_Mono16(t *testing.T) {
	t.Parallel()

	data := []int{0, 100, -100, 16384, -16384, 32767, -32768}
	path := writeTestWAV(t, 8000, 16, 1, 1, data)

	tracks := importFile(t, path)
	if len(tracks) != 1 {
		t.Fatalf("Import() returned %d tracks, want 1", len(tracks))
	}

	tr := tracks[0]
	if tr.Rate() != 8000 {
		t.Errorf("Rate() = %v, want 8000", tr.Rate())
	}
	if tr.Format() != sample.Int16 {
		t.Errorf("Format() = %v, want int16", tr.Format())
	}
	if tr.Channel() != wave.Mono {
		t.Errorf("Channel() = %v, want mono", tr.Channel())
	}
	if tr.NumClips() != 1 {
		t.Errorf("NumClips() = %d, want 1", tr.NumClips())
	}

	got := trackSamples(t, tr, len(data))
	for i, v := range data {
		want := float64(v) / 32768.0
		if math.Abs(float64(got[i])-want) > 2.0/32768.0 {
			t.Errorf("sample %d = %v, want about %v", i, got[i], want)
		}
	}
}

func TestImport_StereoSplitsChannels(t *testing.T) {
	t.Parallel()

	frames := 8
	data := make([]int, frames*2)
	for i := 0; i < frames; i++ {
		data[i*2] = (i + 1) * 100
		data[i*2+1] = -(i + 1) * 100
	}
	path := writeTestWAV(t, 16000, 16, 2, 1, data)

	tracks := importFile(t, path)
	if len(tracks) != 2 {
		t.Fatalf("Import() returned %d tracks, want 2", len(tracks))
	}
	if tracks[0].Channel() != wave.LeftChannel {
		t.Errorf("tracks[0].Channel() = %v, want left", tracks[0].Channel())
	}
	if tracks[1].Channel() != wave.RightChannel {
		t.Errorf("tracks[1].Channel() = %v, want right", tracks[1].Channel())
	}

	left := trackSamples(t, tracks[0], frames)
	right := trackSamples(t, tracks[1], frames)
	for i := 0; i < frames; i++ {
		wantL := float64((i+1)*100) / 32768.0
		if math.Abs(float64(left[i])-wantL) > 2.0/32768.0 {
			t.Errorf("left sample %d = %v, want about %v", i, left[i], wantL)
		}
		if math.Abs(float64(right[i])+wantL) > 2.0/32768.0 {
			t.Errorf("right sample %d = %v, want about %v", i, right[i], -wantL)
		}
	}
}

func TestImport_24BitKeepsWidth(t *testing.T) {
	t.Parallel()

	data := []int{0, 1193046, -1193046, 8388607, -8388608}
	path := writeTestWAV(t, 48000, 24, 1, 1, data)

	tracks := importFile(t, path)
	tr := tracks[0]
	if tr.Format() != sample.Int24 {
		t.Fatalf("Format() = %v, want int24", tr.Format())
	}

	got := trackSamples(t, tr, len(data))
	for i, v := range data {
		want := float64(v) / 8388608.0
		if math.Abs(float64(got[i])-want) > 2.0/8388608.0 {
			t.Errorf("sample %d = %v, want about %v", i, got[i], want)
		}
	}
}

func TestImport_32BitStoresFloat(t *testing.T) {
	t.Parallel()

	data := []int{0, 1 << 30, -(1 << 30), -(1 << 31)}
	path := writeTestWAV(t, 44100, 32, 1, 1, data)

	tracks := importFile(t, path)
	tr := tracks[0]
	if tr.Format() != sample.Float32 {
		t.Fatalf("Format() = %v, want float32", tr.Format())
	}

	want := []float32{0, 0.5, -0.5, -1}
	got := trackSamples(t, tr, len(want))
	for i := range want {
		if math.Abs(float64(got[i]-want[i])) > 1e-6 {
			t.Errorf("sample %d = %v, want %v", i, got[i], want[i])
		}
	}
}

func TestImport_RejectsNonWAV(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "not.wav")
	if err := os.WriteFile(path, []byte("this is not audio at all"), 0o600); err != nil {
		t.Fatalf("WriteFile() failed: %v", err)
	}

	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	defer func() { _ = f.Close() }()

	if _, err := Import(f, blockstore.NewMemory(0)); !errors.Is(err, ErrNotWAV) {
		t.Errorf("Import() error = %v, want ErrNotWAV", err)
	}
}

func TestImport_RejectsFloatEncoding(t *testing.T) {
	t.Parallel()

	// Audio format 3 is IEEE float, which the importer does not decode.
	path := writeTestWAV(t, 8000, 32, 1, 3, []int{0, 1, 2, 3})

	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	defer func() { _ = f.Close() }()

	if _, err := Import(f, blockstore.NewMemory(0)); !errors.Is(err, ErrUnsupportedFormat) {
		t.Errorf("Import() error = %v, want ErrUnsupportedFormat", err)
	}
}

func TestImport_RejectsUnsupportedDepth(t *testing.T) {
	t.Parallel()

	path := writeTestWAV(t, 8000, 8, 1, 1, []int{1, 2, 3, 4})

	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	defer func() { _ = f.Close() }()

	if _, err := Import(f, blockstore.NewMemory(0)); !errors.Is(err, ErrUnsupportedFormat) {
		t.Errorf("Import() error = %v, want ErrUnsupportedFormat", err)
	}
}

func TestExport_Validation(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "out.wav")
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("Create() failed: %v", err)
	}
	defer func() { _ = f.Close() }()

	if err := Export(f, nil, 16); !errors.Is(err, ErrNoTracks) {
		t.Errorf("Export(no tracks) error = %v, want ErrNoTracks", err)
	}

	store := blockstore.NewMemory(0)
	a := wave.NewTrack(store, sample.Float32, 8000)
	b := wave.NewTrack(store, sample.Float32, 16000)
	if err := Export(f, []*wave.Track{a, b}, 16); !errors.Is(err, ErrRateMismatch) {
		t.Errorf("Export(mixed rates) error = %v, want ErrRateMismatch", err)
	}

	if err := Export(f, []*wave.Track{a}, 12); !errors.Is(err, ErrUnsupportedFormat) {
		t.Errorf("Export(12 bit) error = %v, want ErrUnsupportedFormat", err)
	}
}

func TestExport_EmptyTrackWritesHeaderOnly(t *testing.T) {
	t.Parallel()

	tr := wave.NewTrack(blockstore.NewMemory(0), sample.Float32, 8000)
	path := exportFile(t, []*wave.Track{tr}, 16)

	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("Stat() failed: %v", err)
	}
	if info.Size() != 44 {
		t.Errorf("file size = %d, want 44 (header only)", info.Size())
	}
}

func TestExportImport_RoundTripMono(t *testing.T) {
	t.Parallel()

	src := audiotest.Ramp(64)
	tr := newFloatTrack(t, blockstore.NewMemory(256*4), 8000, src)

	path := exportFile(t, []*wave.Track{tr}, 16)
	tracks := importFile(t, path)
	if len(tracks) != 1 {
		t.Fatalf("Import() returned %d tracks, want 1", len(tracks))
	}
	if tracks[0].Rate() != 8000 {
		t.Errorf("Rate() = %v, want 8000", tracks[0].Rate())
	}

	got := trackSamples(t, tracks[0], len(src))
	for i := range src {
		if math.Abs(float64(got[i]-src[i])) > 2.0/32768.0 {
			t.Errorf("sample %d = %v, want about %v", i, got[i], src[i])
		}
	}
}

func TestExportImport_RoundTripStereo24(t *testing.T) {
	t.Parallel()

	store := blockstore.NewMemory(256 * 4)
	left := newFloatTrack(t, store, 48000, audiotest.Ramp(50))
	right := newFloatTrack(t, store, 48000, audiotest.Constant(50, -0.25))

	path := exportFile(t, []*wave.Track{left, right}, 24)
	tracks := importFile(t, path)
	if len(tracks) != 2 {
		t.Fatalf("Import() returned %d tracks, want 2", len(tracks))
	}
	if tracks[0].Channel() != wave.LeftChannel || tracks[1].Channel() != wave.RightChannel {
		t.Errorf("channels = %v, %v, want left, right", tracks[0].Channel(), tracks[1].Channel())
	}

	gotL := trackSamples(t, tracks[0], 50)
	gotR := trackSamples(t, tracks[1], 50)
	for i := 0; i < 50; i++ {
		if math.Abs(float64(gotL[i])-float64(i+1)/1000) > 2.0/8388608.0 {
			t.Errorf("left sample %d = %v, want about %v", i, gotL[i], float64(i+1)/1000)
		}
		if math.Abs(float64(gotR[i])+0.25) > 2.0/8388608.0 {
			t.Errorf("right sample %d = %v, want about -0.25", i, gotR[i])
		}
	}
}

func TestExport_GapsRenderAsSilence(t *testing.T) {
	t.Parallel()

	tr := newFloatTrack(t, blockstore.NewMemory(256*4), 10, audiotest.Constant(5, 0.5))
	tr.Clips()[0].SetOffset(1.0)

	path := exportFile(t, []*wave.Track{tr}, 16)
	tracks := importFile(t, path)

	got := trackSamples(t, tracks[0], 15)
	for i, v := range got {
		want := 0.0
		if i >= 10 {
			want = 0.5
		}
		if math.Abs(float64(v)-want) > 2.0/32768.0 {
			t.Errorf("sample %d = %v, want about %v", i, v, want)
		}
	}
}

func TestExport_ClipsOverfullScale(t *testing.T) {
	t.Parallel()

	// +1.0 has no exact 16-bit code; it must clamp, not wrap.
	tr := newFloatTrack(t, blockstore.NewMemory(0), 8000, []float32{1.0, -1.0})

	path := exportFile(t, []*wave.Track{tr}, 16)

	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	defer func() { _ = f.Close() }()

	d := wav.NewDecoder(f)
	buf := &audio.IntBuffer{Data: make([]int, 2)}
	if _, err := d.PCMBuffer(buf); err != nil {
		t.Fatalf("PCMBuffer() failed: %v", err)
	}
	if buf.Data[0] != 32767 {
		t.Errorf("sample 0 = %d, want 32767", buf.Data[0])
	}
	if buf.Data[1] != -32768 {
		t.Errorf("sample 1 = %d, want -32768", buf.Data[1])
	}
}

func BenchmarkExport(b *testing.B) {
	store := blockstore.NewMemory(4096 * 4)
	tr := wave.NewTrack(store, sample.Float32, 44100)
	if err := tr.Append(audiotest.Sine(44100, 440, 44100)); err != nil {
		b.Fatalf("Append() failed: %v", err)
	}
	if err := tr.Flush(); err != nil {
		b.Fatalf("Flush() failed: %v", err)
	}

	f, err := os.Create(filepath.Join(b.TempDir(), "bench.wav"))
	if err != nil {
		b.Fatalf("Create() failed: %v", err)
	}
	defer func() { _ = f.Close() }()

	b.ReportAllocs()
	for i := 0; i < b.N; i++ {
		if _, err := f.Seek(0, 0); err != nil {
			b.Fatalf("Seek() failed: %v", err)
		}
		_ = Export(f, []*wave.Track{tr}, 16)
	}
}
