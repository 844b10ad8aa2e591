// SPDX-License-Identifier: EPL-2.0

// Package audacity provides the editable audio track core of a digital
// audio editor.
//
// A track is a collection of clips placed on a shared timeline; a clip
// owns a sample sequence, a gain envelope and the cut lines produced
// by editing. Sample data lives in reference-counted blocks inside a
// block store, so copying audio between clips, tracks and clipboards
// shares blocks instead of duplicating them.
//
// # Package Layout
//
// The repository is organized bottom-up:
//   - blockstore: reference-counted immutable sample blocks
//   - sample: sample formats and float32 conversion
//   - envelope: piecewise-linear gain automation
//   - sequence: an ordered list of blocks behind a sample index
//   - wave: clips, tracks, editing operations and the read cache
//   - waveio: WAV import and export via github.com/go-audio
//
// # Quick Start
//
// Create a track, append samples and read them back:
//
//	tr := audacity.NewMemoryTrack(44100, sample.Float32)
//	tr.Append(samples)
//	tr.Flush()
//
//	out, err := audacity.Render(tr, 0, tr.EndTime())
//
// Append buffers internally; Flush commits the tail to the store.
// Render reads any time span, quantized to whole samples, with gaps
// between clips filled with silence.
//
// # Editing
//
// Tracks edit by time range. The core operations mirror a classic
// audio editor:
//
//	clip, _ := tr.Cut(1.0, 2.0, opts)   // remove and keep
//	tr.Paste(5.0, clip, opts)           // insert elsewhere
//	tr.Clear(0.0, 0.5, opts)            // remove
//	tr.Silence(2.0, 3.0)                // zero out in place
//	tr.Split(1.0, 2.0)                  // cut clip boundaries
//	tr.Join(0.0, 4.0)                   // merge clips, fill gaps
//
// Clear and Cut can either close the gap by moving later clips left
// (opts.MoveClips) or leave the timeline positions of later clips
// untouched. ClearAndAddCutLines hides the removed span behind a cut
// line on the clip instead of discarding it; ExpandCutLine restores
// it later.
//
// Edits that need room fail with a *wave.CapacityError when moving
// clips is disabled and the material does not fit; errors.Is with
// wave.ErrNoRoom matches it.
//
// # Block Sharing
//
// Copy, Cut and Duplicate do not copy samples: the new clips retain
// the same storage blocks. Blocks are copied lazily only when an edit
// actually changes part of one. This is what makes clipboard round
// trips and track duplication cheap even for hours of audio.
//
// # Concurrency
//
// A track and its clips confine to one goroutine while being edited;
// nothing locks internally. Read-only sharing is safe once publication
// happens before the reads. See the wave package documentation for the
// full model.
//
// See the individual subpackages for detailed documentation.
package audacity
