// SPDX-License-Identifier: EPL-2.0

// Package wave implements editable audio tracks built from clips.
//
// A Track is a timeline carrying non-overlapping clips. Each Clip
// couples a stored sample sequence with a time offset and a gain
// envelope, so audio can be moved, trimmed and spliced without
// rewriting sample data: whole storage blocks are shared between
// copies by reference count.
//
// # Tracks and Clips
//
// Tracks are created against a block store and append samples through
// their rightmost clip:
//
//	track := wave.NewTrack(store, sample.Float32, 44100)
//	_ = track.Append(samples)
//	_ = track.Flush()
//
// Reading joins the clips back into one continuous signal, with zeros
// wherever no clip covers the timeline:
//
//	buf := make([]float32, 1024)
//	_ = track.Get(buf, 0)
//
// # Time and Samples
//
// Edit operations take positions in seconds and convert them to sample
// indices by rounding to the nearest sample at the track rate. Two
// positions less than half a sample apart therefore name the same
// edit point. TimeToSamples and SamplesToTime expose the conversion.
//
// # Editing
//
// The editing operations mirror the usual cut/copy/paste vocabulary:
//
//	clipboard, _ := track.Cut(1.0, 2.0, wave.EditOptions{MoveClips: true})
//	_ = other.Paste(5.0, clipboard, wave.EditOptions{MoveClips: true})
//
// EditOptions.MoveClips selects between the two editing styles: with
// it, removing audio closes the gap and inserting audio pushes later
// clips to the right; without it, clips stay where they are and an
// insert that does not fit fails with a CapacityError.
//
// Split, SplitDelete and Join change how the audio is divided into
// clips; Silence and InsertSilence write or make room for quiet;
// ClearAndPaste replaces a span while preserving clip boundaries and
// cut lines that lay inside it.
//
// # Cut Lines
//
// ClearAndAddCutLines removes a span of audio but keeps it attached to
// the clip as a hidden child clip, a cut line, positioned where the
// cut happened. ExpandCutLine splices the audio back in and
// RemoveCutLine discards it for good. UpdateLocations lists cut lines
// and near-touching clip boundaries for display.
//
// # Envelopes
//
// Every clip carries an amplitude envelope (see package envelope).
// Edits keep the envelope aligned with the samples: clearing a span
// collapses it, pasting inserts the source clip's points, and
// EnvelopeValues samples the combined per-track gain curve for
// rendering.
//
// # Caching
//
// TrackCache serves repeated reads from at most two cached storage
// blocks and returns interior slices without copying when a request
// falls inside one block. It suits renderers that sweep a track in
// block-sized steps.
//
// # Error Handling
//
// Operations return wrapped sentinel errors from this package;
// CapacityError additionally reports how much material would have fit.
// Multi-clip edits prepare their results before touching the track, so
// a failed edit leaves the previous state behind. Failures come from
// the block store; with an in-memory store, edits do not fail.
//
// # Concurrency
//
// Tracks, clips and caches confine themselves to one goroutine at a
// time. Readers of a track that is not being edited may share it.
package wave
