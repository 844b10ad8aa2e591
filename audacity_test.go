// SPDX-License-Identifier: EPL-2.0

package audacity

import (
	"errors"
	"testing"

	"github.com/viliml/audacity/internal/audiotest"
	"github.com/viliml/audacity/sample"
	"github.com/viliml/audacity/wave"
)

func TestNewMemoryTrack(t *testing.T) {
	t.Parallel()

	tr := NewMemoryTrack(44100, sample.Int16)
	if tr.Rate() != 44100 {
		t.Errorf("Rate() = %v, want 44100", tr.Rate())
	}
	if tr.Format() != sample.Int16 {
		t.Errorf("Format() = %v, want int16", tr.Format())
	}
	if tr.NumClips() != 0 {
		t.Errorf("NumClips() = %d, want 0", tr.NumClips())
	}

	// Each track owns a fresh store.
	other := NewMemoryTrack(44100, sample.Int16)
	if tr.Store() == other.Store() {
		t.Error("NewMemoryTrack() tracks share a store")
	}
}

func TestRender(t *testing.T) {
	t.Parallel()

	tr := NewMemoryTrack(10, sample.Float32)
	src := audiotest.Ramp(10)
	if err := tr.Append(src); err != nil {
		t.Fatalf("Append() failed: %v", err)
	}
	if err := tr.Flush(); err != nil {
		t.Fatalf("Flush() failed: %v", err)
	}
	tr.Clips()[0].SetOffset(0.5)

	got, err := Render(tr, 0, tr.EndTime())
	if err != nil {
		t.Fatalf("Render() failed: %v", err)
	}
	if len(got) != 15 {
		t.Fatalf("Render() returned %d samples, want 15", len(got))
	}
	for i := 0; i < 5; i++ {
		if got[i] != 0 {
			t.Errorf("sample %d = %v, want 0 (before the clip)", i, got[i])
		}
	}
	for i, want := range src {
		if got[5+i] != want {
			t.Errorf("sample %d = %v, want %v", 5+i, got[5+i], want)
		}
	}
}

func TestRender_InvalidRange(t *testing.T) {
	t.Parallel()

	tr := NewMemoryTrack(10, sample.Float32)
	if _, err := Render(tr, 1.0, 0.5); !errors.Is(err, wave.ErrInvalidRange) {
		t.Errorf("Render() error = %v, want ErrInvalidRange", err)
	}
}

func TestRender_EmptySpan(t *testing.T) {
	t.Parallel()

	tr := NewMemoryTrack(10, sample.Float32)
	got, err := Render(tr, 0.3, 0.3)
	if err != nil {
		t.Fatalf("Render() failed: %v", err)
	}
	if len(got) != 0 {
		t.Errorf("Render() returned %d samples, want 0", len(got))
	}
}
