// SPDX-License-Identifier: EPL-2.0

package wave

import (
	"math"
	"sort"
)

func closeClips(clips []*Clip) {
	for _, c := range clips {
		_ = c.Close()
	}
}

// handleClear implements Clear, ClearAndAddCutLines and SplitDelete.
// Affected clips are never edited in place: replacements are prepared
// first so a storage failure leaves the track untouched.
func (t *Track) handleClear(t0, t1 float64, addCutLines, split bool, opts EditOptions) error {
	if t1 < t0 {
		return ErrInvalidRange
	}

	// Cut lines are only kept when the span stays inside a single
	// clip. If it crosses any clip edge, fall back to a plain clear.
	if addCutLines {
		for _, c := range t.clips {
			if !c.StartsAtOrAfter(t1) && !c.EndsAtOrBefore(t0) &&
				(c.StartsAtOrAfter(t0) || c.EndsAtOrBefore(t1)) {
				addCutLines = false
				break
			}
		}
	}

	var toDelete []*Clip
	var toAdd []*Clip
	fail := func(err error) error {
		closeClips(toAdd)
		return err
	}

	for _, c := range t.clips {
		covered := c.StartsAtOrAfter(t0) && c.EndsAtOrBefore(t1)
		affected := !c.StartsAtOrAfter(t1) && !c.EndsAtOrBefore(t0)
		switch {
		case covered:
			toDelete = append(toDelete, c)

		case affected && addCutLines:
			cp, err := c.Clone(true)
			if err != nil {
				return fail(err)
			}
			if err := cp.ClearAndAddCutLine(t0, t1); err != nil {
				_ = cp.Close()
				return fail(err)
			}
			toDelete = append(toDelete, c)
			toAdd = append(toAdd, cp)

		case affected && split && c.StartsAtOrAfter(t0):
			// The span covers the clip head; keep the tail where it is.
			cp, err := c.Clone(true)
			if err != nil {
				return fail(err)
			}
			if err := cp.Clear(cp.StartTime(), t1); err != nil {
				_ = cp.Close()
				return fail(err)
			}
			cp.Shift(t1 - c.StartTime())
			toDelete = append(toDelete, c)
			toAdd = append(toAdd, cp)

		case affected && split && c.EndsAtOrBefore(t1):
			// The span covers the clip tail; keep the head.
			cp, err := c.Clone(true)
			if err != nil {
				return fail(err)
			}
			if err := cp.Clear(t0, cp.EndTime()); err != nil {
				_ = cp.Close()
				return fail(err)
			}
			toDelete = append(toDelete, c)
			toAdd = append(toAdd, cp)

		case affected && split:
			// The span is strictly inside the clip; it becomes separate
			// left and right clips.
			left, err := c.Clone(true)
			if err != nil {
				return fail(err)
			}
			if err := left.Clear(t0, left.EndTime()); err != nil {
				_ = left.Close()
				return fail(err)
			}
			toAdd = append(toAdd, left)

			right, err := c.Clone(true)
			if err != nil {
				return fail(err)
			}
			if err := right.Clear(right.StartTime(), t1); err != nil {
				_ = right.Close()
				return fail(err)
			}
			right.Shift(t1 - c.StartTime())
			toAdd = append(toAdd, right)
			toDelete = append(toDelete, c)

		case affected:
			cp, err := c.Clone(true)
			if err != nil {
				return fail(err)
			}
			if err := cp.Clear(t0, t1); err != nil {
				_ = cp.Close()
				return fail(err)
			}
			toDelete = append(toDelete, c)
			toAdd = append(toAdd, cp)
		}
	}

	// Nothing below can fail.
	if !split && opts.MoveClips {
		for _, c := range t.clips {
			if c.StartsAtOrAfter(t1) {
				c.Shift(-(t1 - t0))
			}
		}
	}
	for _, c := range toDelete {
		t.RemoveClip(c)
		_ = c.Close()
	}
	t.clips = append(t.clips, toAdd...)
	return nil
}

// Clear removes the audio between t0 and t1 and closes the gap inside
// each affected clip. With opts.MoveClips, whole clips behind the span
// also move left by its length.
func (t *Track) Clear(t0, t1 float64, opts EditOptions) error {
	return t.handleClear(t0, t1, false, false, opts)
}

// ClearAndAddCutLines removes the audio between t0 and t1 like Clear,
// keeping the removed audio as a cut line when the span stays inside a
// single clip.
func (t *Track) ClearAndAddCutLines(t0, t1 float64, opts EditOptions) error {
	return t.handleClear(t0, t1, true, false, opts)
}

// SplitDelete removes the audio between t0 and t1, leaving the
// surviving audio split into separate clips at the edges. Nothing
// moves.
func (t *Track) SplitDelete(t0, t1 float64) error {
	return t.handleClear(t0, t1, false, true, EditOptions{})
}

// Cut removes the audio between t0 and t1 and returns it as a new
// track for pasting elsewhere.
func (t *Track) Cut(t0, t1 float64, opts EditOptions) (*Track, error) {
	if t1 < t0 {
		return nil, ErrInvalidRange
	}
	tmp, err := t.Copy(t0, t1, true)
	if err != nil {
		return nil, err
	}
	if err := t.Clear(t0, t1, opts); err != nil {
		_ = tmp.Close()
		return nil, err
	}
	return tmp, nil
}

// SplitCut removes the audio between t0 and t1 like Cut but leaves the
// neighbors split at the edges instead of closing the gap.
func (t *Track) SplitCut(t0, t1 float64) (*Track, error) {
	if t1 < t0 {
		return nil, ErrInvalidRange
	}
	tmp, err := t.Copy(t0, t1, true)
	if err != nil {
		return nil, err
	}
	if err := t.SplitDelete(t0, t1); err != nil {
		_ = tmp.Close()
		return nil, err
	}
	return tmp, nil
}

// Copy returns a new track holding the audio between t0 and t1,
// shifted to start at time zero. With forClipboard, cut lines stay
// behind and trailing empty space is represented by a placeholder clip
// so the copy keeps the full selection length.
func (t *Track) Copy(t0, t1 float64, forClipboard bool) (*Track, error) {
	if t1 < t0 {
		return nil, ErrInvalidRange
	}
	out := &Track{
		store:      t.store,
		rate:       t.rate,
		format:     t.format,
		gain:       t.gain,
		pan:        t.pan,
		name:       t.name,
		channel:    t.channel,
		colorIndex: t.colorIndex,
	}
	fail := func(err error) (*Track, error) {
		_ = out.Close()
		return nil, err
	}
	for _, c := range t.clips {
		switch {
		case t0 <= c.StartTime() && t1 >= c.EndTime():
			cp, err := c.Clone(!forClipboard)
			if err != nil {
				return fail(err)
			}
			cp.Shift(-t0)
			out.clips = append(out.clips, cp)

		case t1 > c.StartTime() && t0 < c.EndTime():
			cp, err := c.CloneRange(math.Max(t0, c.StartTime()), math.Min(t1, c.EndTime()), !forClipboard)
			if err != nil {
				return fail(err)
			}
			cp.Shift(-t0)
			if cp.Offset() < 0 {
				cp.SetOffset(0)
			}
			out.clips = append(out.clips, cp)
		}
	}

	// A selection ending in empty space keeps its length through a
	// placeholder clip, so pasting it elsewhere spans the same time.
	if forClipboard && out.EndTime()+1/out.rate < t1-t0 {
		end := out.EndTime()
		ph := newClip(t.store, t.format, t.rate)
		ph.SetPlaceholder(true)
		if err := ph.InsertSilence(0, (t1-t0)-end); err != nil {
			_ = ph.Close()
			return fail(err)
		}
		ph.Shift(end)
		out.clips = append(out.clips, ph)
	}
	return out, nil
}

// Paste splices the audio of src into the track at time t0. With
// opts.MoveClips, room is made by moving everything after t0 to the
// right; otherwise the audio must fit into empty space or a
// CapacityError is returned. When src holds a single clip starting at
// time zero and t0 lands inside an existing clip, the audio is pasted
// into that clip rather than arriving as a separate clip.
func (t *Track) Paste(t0 float64, src *Track, opts EditOptions) error {
	if src == nil || len(src.clips) == 0 {
		return nil
	}

	singleClipMode := src.NumClips() == 1 && src.StartTime() == 0

	insertDuration := src.EndTime()
	if insertDuration != 0 && insertDuration < 1/t.rate {
		return nil
	}

	if opts.MoveClips {
		if !singleClipMode {
			// Several clips are arriving. Cut everything from t0 on,
			// paste it back shifted right, and fill the hole below.
			if !t.IsEmpty(t0, t.EndTime()) {
				tmp, err := t.Cut(t0, t.EndTime()+1/t.rate, opts)
				if err != nil {
					return err
				}
				err = t.Paste(t0+insertDuration, tmp, opts)
				_ = tmp.Close()
				if err != nil {
					return err
				}
			}
		} else {
			for _, c := range t.clips {
				if c.StartTime() > t0-1/t.rate {
					c.Shift(insertDuration)
				}
			}
		}
	}

	if singleClipMode {
		var inside *Clip
		for _, c := range t.clips {
			if opts.MoveClips {
				if c.Within(t0) {
					inside = c
					break
				}
			} else {
				// With immovable clips, pasting right at a clip start
				// goes into that clip as well.
				if c.Within(t0) || t.TimeToSamples(t0) == c.StartSample() {
					inside = c
					break
				}
			}
		}
		if inside != nil {
			if !opts.MoveClips {
				allowed := math.Inf(1)
				for _, c := range t.clips {
					if c.StartTime() > inside.StartTime() &&
						inside.EndTime()+insertDuration > c.StartTime() {
						allowed = math.Min(allowed, c.StartTime()-inside.EndTime())
					}
				}
				if !math.IsInf(allowed, 1) {
					return &CapacityError{Allowed: math.Max(allowed, 0)}
				}
			}
			return inside.Paste(t0, src.ClipByIndex(0))
		}
	}

	if !opts.MoveClips && !t.IsEmpty(t0, t0+insertDuration-1/t.rate) {
		allowed := math.Inf(1)
		for _, c := range t.clips {
			if !c.StartsAtOrAfter(t0+insertDuration-1/t.rate) && !c.EndsAtOrBefore(t0) {
				allowed = math.Min(allowed, math.Max(0, c.StartTime()-t0))
			}
		}
		return &CapacityError{Allowed: allowed}
	}

	var added []*Clip
	for _, c := range src.clips {
		if c.IsPlaceholder() {
			continue
		}
		cp, err := c.Clone(true)
		if err != nil {
			closeClips(added)
			return err
		}
		if err := cp.Resample(t.rate); err != nil {
			_ = cp.Close()
			closeClips(added)
			return err
		}
		cp.Shift(t0)
		added = append(added, cp)
	}
	t.clips = append(t.clips, added...)
	return nil
}

// ClearAndPaste replaces the audio between t0 and t1 with src. Clip
// boundaries and cut lines inside the replaced span are remembered
// and, when preserve is set, restored afterwards at positions
// transformed by warper. With merge, the seams where the pasted audio
// meets the surrounding clips are healed by joining the touching
// clips. A nil warper keeps positions unchanged.
func (t *Track) ClearAndPaste(t0, t1 float64, src *Track, preserve, merge bool, warper TimeWarper, opts EditOptions) error {
	dur := math.Min(t1-t0, src.EndTime())
	if dur == 0 {
		return t.Paste(t0, src, opts)
	}
	if warper == nil {
		warper = func(at float64) float64 { return at }
	}

	t0 = t.SamplesToTime(t.TimeToSamples(t0))
	t1 = t.SamplesToTime(t.TimeToSamples(t1))

	var splits []float64
	addSplit := func(at float64) {
		if at < t0 || at > t1 {
			return
		}
		for _, s := range splits {
			if s == at {
				return
			}
		}
		splits = append(splits, at)
	}

	// Detached cut lines that never find a clip to rejoin are closed on
	// the way out.
	var cuts []*Clip
	defer func() {
		closeClips(cuts)
	}()

	// Record the split positions and harvest the cut lines before the
	// clear, whether preserving or not: merging below needs to know if
	// a clip boundary is being crossed.
	for _, c := range t.clips {
		addSplit(t.SamplesToTime(t.TimeToSamples(c.StartTime())))
		addSplit(t.SamplesToTime(t.TimeToSamples(c.EndTime())))

		kept := c.cutlines[:0]
		for _, cl := range c.cutlines {
			cs := t.SamplesToTime(t.TimeToSamples(c.Offset() + cl.Offset()))
			if cs >= t0 && cs <= t1 {
				// Remember the absolute position while detached.
				cl.SetOffset(cs)
				cuts = append(cuts, cl)
			} else {
				kept = append(kept, cl)
			}
		}
		c.cutlines = kept
	}

	tolerance := 2 / t.rate

	if err := t.handleClear(t0, t1, false, false, opts); err != nil {
		return err
	}
	if err := t.Paste(t0, src, opts); err != nil {
		return err
	}

	if merge && len(splits) > 0 {
		// Heal the seam at the end of the pasted span.
		end := t0 + src.EndTime()
		var prev *Clip
		for _, c := range t.SortedClips() {
			if math.Abs(end-c.StartTime()) < tolerance {
				if prev != nil {
					if err := t.MergeClips(t.ClipIndex(prev), t.ClipIndex(c)); err != nil {
						return err
					}
				}
				break
			}
			prev = c
		}

		// Heal the seam at the start of the pasted span.
		prev = nil
		for _, c := range t.SortedClips() {
			if prev != nil {
				if err := t.MergeClips(t.ClipIndex(prev), t.ClipIndex(c)); err != nil {
					return err
				}
				break
			}
			if math.Abs(t0-c.EndTime()) < tolerance {
				prev = c
			}
		}
	}

	if preserve {
		for _, split := range splits {
			if err := t.SplitAt(warper(split)); err != nil {
				return err
			}
		}
		for _, c := range t.clips {
			st := c.StartTime()
			et := c.EndTime()
			remaining := cuts[:0]
			for _, cut := range cuts {
				cs := cut.Offset()
				if cs >= st && cs <= et {
					cut.SetOffset(warper(cs) - st)
					c.cutlines = append(c.cutlines, cut)
				} else {
					remaining = append(remaining, cut)
				}
			}
			cuts = remaining
		}
	}
	return nil
}

// Silence overwrites the samples between t0 and t1 with zeros in
// place. Clip boundaries and envelopes are unchanged.
func (t *Track) Silence(t0, t1 float64) error {
	if t1 < t0 {
		return ErrInvalidRange
	}
	start := t.TimeToSamples(t0)
	n := t.TimeToSamples(t1) - start
	for _, c := range t.clips {
		clipStart := c.StartSample()
		clipEnd := c.EndSample()
		if clipEnd <= start || clipStart >= start+n {
			continue
		}
		samplesToCopy := min(start+n-clipStart, c.NumSamples())
		var inclipDelta int64
		if startDelta := clipStart - start; startDelta < 0 {
			inclipDelta = -startDelta
			samplesToCopy -= inclipDelta
		}
		if err := c.seq.SetSilence(inclipDelta, samplesToCopy); err != nil {
			return err
		}
	}
	return nil
}

// InsertSilence inserts dur seconds of silence at time at. A clip
// containing at grows; clips starting at or after at move right. On an
// empty track a single silent clip is created at position zero.
func (t *Track) InsertSilence(at, dur float64) error {
	if dur == 0 {
		return nil
	}
	if dur < 0 {
		return ErrInvalidRange
	}
	if len(t.clips) == 0 {
		c := newClip(t.store, t.format, t.rate)
		if err := c.InsertSilence(0, dur); err != nil {
			_ = c.Close()
			return err
		}
		t.clips = append(t.clips, c)
		return nil
	}
	for _, c := range t.clips {
		if c.Within(at) {
			if err := c.InsertSilence(at, dur); err != nil {
				return err
			}
			break
		}
	}
	for _, c := range t.clips {
		if c.StartsAtOrAfter(at) {
			c.Shift(dur)
		}
	}
	return nil
}

// Split cuts clip boundaries at t0 and t1 without removing any audio.
func (t *Track) Split(t0, t1 float64) error {
	if err := t.SplitAt(t0); err != nil {
		return err
	}
	if t0 != t1 {
		return t.SplitAt(t1)
	}
	return nil
}

// SplitAt cuts the clip containing time at into two touching clips.
// Nothing happens when at falls outside every clip.
func (t *Track) SplitAt(at float64) error {
	for _, c := range t.clips {
		if !c.Within(at) {
			continue
		}
		at = t.SamplesToTime(t.TimeToSamples(at))
		if c.env.Len() > 0 {
			// Pin the envelope's value at the boundary so both halves
			// keep it after the cut.
			c.env.SetValue(at, c.env.Value(at))
		}
		right, err := c.Clone(true)
		if err != nil {
			return err
		}
		if err := c.Clear(at, c.EndTime()); err != nil {
			_ = right.Close()
			return err
		}
		if err := right.Clear(right.StartTime(), at); err != nil {
			_ = right.Close()
			return err
		}
		here := timeToSamples(at-c.StartTime(), t.rate)
		right.Shift(samplesToTime(here, t.rate))
		t.clips = append(t.clips, right)
		return nil
	}
	return nil
}

// Join merges every clip overlapping [t0, t1] into one clip, filling
// the gaps between them with silence. Across each filled gap the
// envelope ramps to the next clip's starting level.
func (t *Track) Join(t0, t1 float64) error {
	var joinees []*Clip
	for _, c := range t.clips {
		if c.StartTime() < t1-1/t.rate && c.EndTime()-1/t.rate > t0 {
			joinees = append(joinees, c)
		}
	}
	if len(joinees) == 0 {
		return nil
	}
	sort.Slice(joinees, func(i, j int) bool {
		return joinees[i].StartTime() < joinees[j].StartTime()
	})

	target := t.CreateClip()
	pos := joinees[0].Offset()
	target.SetOffset(pos)
	for _, c := range joinees {
		if c.Offset()-pos > 1/t.rate {
			gap := c.Offset() - pos
			if err := target.AppendSilence(gap, c.env.Value(c.Offset())); err != nil {
				return err
			}
			pos += gap
		}
		if err := target.Paste(pos, c); err != nil {
			return err
		}
		pos = target.EndTime()
		t.RemoveClip(c)
		_ = c.Close()
	}
	return nil
}

// Disjoin splits the clips overlapping [t0, t1] at runs of digital
// silence longer than MergePointTolerance and removes those silent
// spans, leaving one clip per stretch of signal.
func (t *Track) Disjoin(t0, t1 float64) error {
	minSamples := t.TimeToSamples(MergePointTolerance)
	const maxAtOnce = 1048576
	buffer := make([]float32, maxAtOnce)

	type region struct{ start, end float64 }
	var regions []region

	for _, c := range t.clips {
		startTime := c.StartTime()
		endTime := c.EndTime()
		if endTime < t0 || startTime > t1 {
			continue
		}
		startTime = math.Max(startTime, t0)
		endTime = math.Min(endTime, t1)

		seqStart := int64(-1)
		start := c.clipSamples(startTime)
		end := c.clipSamples(endTime)

		length := end - start
		for done := int64(0); done < length; done += maxAtOnce {
			n := min(int64(maxAtOnce), length-done)
			if err := c.GetSamples(buffer[:n], start+done); err != nil {
				return err
			}
			for i := int64(0); i < n; i++ {
				cur := start + done + i
				switch {
				case buffer[i] == 0 && seqStart == -1:
					seqStart = cur
				case buffer[i] != 0 || cur == end-1:
					if seqStart == -1 {
						break
					}
					// A selection ending in zeros closes its run at the
					// selection end, not the last zero seen.
					seqEnd := cur
					if cur == end-1 && buffer[i] == 0 {
						seqEnd = end
					}
					if seqEnd-seqStart+1 > minSamples {
						regions = append(regions, region{
							start: float64(seqStart)/t.rate + c.StartTime(),
							end:   float64(seqEnd)/t.rate + c.StartTime(),
						})
					}
					seqStart = -1
				}
			}
		}
	}

	for _, r := range regions {
		if err := t.SplitDelete(r.start, r.end); err != nil {
			return err
		}
	}
	return nil
}

// Trim discards everything outside [t0, t1]. A bound inside a clip
// trims within that clip; a bound in a gap removes the clips wholly
// outside it.
func (t *Track) Trim(t0, t1 float64) error {
	inside0 := false
	inside1 := false
	for _, c := range t.clips {
		if t1 > c.StartTime() && t1 < c.EndTime() {
			if err := c.Clear(t1, c.EndTime()); err != nil {
				return err
			}
			inside1 = true
		}
		if t0 > c.StartTime() && t0 < c.EndTime() {
			if err := c.Clear(c.StartTime(), t0); err != nil {
				return err
			}
			c.SetOffset(t0)
			inside0 = true
		}
	}
	if !inside1 && t1 < t.EndTime() {
		if err := t.Clear(t1, t.EndTime(), EditOptions{}); err != nil {
			return err
		}
	}
	if !inside0 && t0 > t.StartTime() {
		return t.SplitDelete(t.StartTime(), t0)
	}
	return nil
}

// MergeClips appends the audio of the clip at index i2 to the clip at
// index i1 and removes it, joining two touching clips into one. An
// index outside the clip list makes the call a no-op.
func (t *Track) MergeClips(i1, i2 int) error {
	c1 := t.ClipByIndex(i1)
	c2 := t.ClipByIndex(i2)
	if c1 == nil || c2 == nil {
		return nil
	}
	if err := c1.Paste(c1.EndTime(), c2); err != nil {
		return err
	}
	t.RemoveClip(c2)
	_ = c2.Close()
	return nil
}

// ExpandCutLine restores the audio of the cut line at pos. With
// opts.MoveClips, clips to the right move over to make room; otherwise
// a CapacityError is returned when the restored audio would not fit.
// The returned times are the span the restored audio occupies.
func (t *Track) ExpandCutLine(pos float64, opts EditOptions) (start, end float64, err error) {
	for _, c := range t.clips {
		s, e, ok := c.FindCutLine(pos)
		if !ok {
			continue
		}
		if !opts.MoveClips {
			allowed := math.Inf(1)
			for _, o := range t.clips {
				if o.StartTime() > c.StartTime() && c.EndTime()+(e-s) > o.StartTime() {
					allowed = math.Min(allowed, o.StartTime()-c.EndTime())
				}
			}
			if !math.IsInf(allowed, 1) {
				return 0, 0, &CapacityError{Allowed: math.Max(allowed, 0)}
			}
		}
		if err := c.ExpandCutLine(pos); err != nil {
			return 0, 0, err
		}
		if opts.MoveClips {
			for _, o := range t.clips {
				if o.StartTime() > c.StartTime() {
					o.Shift(e - s)
				}
			}
		}
		return s, e, nil
	}
	return 0, 0, ErrNoCutLine
}

// RemoveCutLine discards the cut line at pos without restoring its
// audio. It reports whether one was found.
func (t *Track) RemoveCutLine(pos float64) bool {
	for _, c := range t.clips {
		if c.RemoveCutLine(pos) {
			return true
		}
	}
	return false
}

// SyncLockAdjust stretches or shrinks the span between oldT1 and newT1
// to keep the track aligned with an edit made on another track.
// Growing inserts whitespace in a gap or silence inside audio;
// shrinking clears the difference.
func (t *Track) SyncLockAdjust(oldT1, newT1 float64, opts EditOptions) error {
	if newT1 > oldT1 {
		// An edit past the end of the audio needs no counterpart here.
		if oldT1 >= t.EndTime() {
			return nil
		}
		if t.IsEmpty(oldT1, oldT1) {
			if opts.MoveClips {
				tmp, err := t.Cut(oldT1, t.EndTime()+1/t.rate, opts)
				if err != nil {
					return err
				}
				err = t.Paste(newT1, tmp, opts)
				_ = tmp.Close()
				return err
			}
			return nil
		}
		tmp := NewTrack(t.store, t.format, t.rate)
		defer func() { _ = tmp.Close() }()
		if err := tmp.InsertSilence(0, newT1-oldT1); err != nil {
			return err
		}
		if err := tmp.Flush(); err != nil {
			return err
		}
		return t.Paste(oldT1, tmp, opts)
	}
	if newT1 < oldT1 {
		return t.Clear(newT1, oldT1, opts)
	}
	return nil
}
