// SPDX-License-Identifier: EPL-2.0

package wave

import (
	"math"

	"github.com/viliml/audacity/envelope"
	"github.com/viliml/audacity/sample"
	"github.com/viliml/audacity/sequence"
)

// Clip is a contiguous run of samples placed on a track's timeline. A
// clip owns its sample sequence, a gain envelope covering its extent,
// and any cut lines. A cut line is itself a clip: audio removed by a
// cut, kept attached at the seam so it can be expanded back in place.
type Clip struct {
	seq    *sequence.Sequence
	env    *envelope.Envelope
	offset float64 // seconds from timeline zero to the first sample
	rate   float64

	colorIndex  int
	placeholder bool

	// cutlines hold removed audio. Their offsets are relative to this
	// clip's offset, not to timeline zero.
	cutlines []*Clip
}

func newClip(store sequence.Store, f sample.Format, rate float64) *Clip {
	return &Clip{
		seq:  sequence.New(store, f),
		env:  envelope.New(),
		rate: rate,
	}
}

// Offset returns the clip's position: the time of its first sample.
func (c *Clip) Offset() float64 { return c.offset }

// SetOffset moves the clip to an absolute position.
func (c *Clip) SetOffset(o float64) {
	c.offset = o
	c.env.SetOffset(o)
}

// Shift moves the clip by d seconds.
func (c *Clip) Shift(d float64) {
	c.offset += d
	c.env.SetOffset(c.offset)
}

// StartTime returns the time of the clip's first sample.
func (c *Clip) StartTime() float64 { return c.offset }

// EndTime returns the time one sample past the clip's last sample.
func (c *Clip) EndTime() float64 {
	return c.offset + samplesToTime(c.seq.NumSamples(), c.rate)
}

// StartSample returns the clip's first sample index on the timeline.
func (c *Clip) StartSample() int64 {
	return timeToSamples(c.offset, c.rate)
}

// EndSample returns the timeline sample index one past the clip's last
// sample.
func (c *Clip) EndSample() int64 {
	return c.StartSample() + c.seq.NumSamples()
}

// NumSamples returns the number of samples in the clip, counting any
// not yet flushed appended tail.
func (c *Clip) NumSamples() int64 { return c.seq.NumSamples() }

// Rate returns the clip's sample rate in Hz.
func (c *Clip) Rate() float64 { return c.rate }

// SetRate reinterprets the existing samples at a new rate. The clip's
// duration changes; the envelope is rescaled to follow it.
func (c *Clip) SetRate(rate float64) {
	c.rate = rate
	newLen := samplesToTime(c.seq.NumSamples(), rate)
	if old := c.env.TrackLen(); old > 0 {
		c.env.RescaleTimesBy(newLen / old)
	} else {
		c.env.SetTrackLen(newLen)
	}
}

// Format returns the storage format of the clip's samples.
func (c *Clip) Format() sample.Format { return c.seq.Format() }

// Envelope returns the clip's gain envelope.
func (c *Clip) Envelope() *envelope.Envelope { return c.env }

func (c *Clip) ColorIndex() int       { return c.colorIndex }
func (c *Clip) SetColorIndex(i int)   { c.colorIndex = i }
func (c *Clip) IsPlaceholder() bool   { return c.placeholder }
func (c *Clip) SetPlaceholder(b bool) { c.placeholder = b }

// CutLines returns the clip's cut lines. The slice is owned by the
// clip; treat it as read-only.
func (c *Clip) CutLines() []*Clip { return c.cutlines }

// Within reports whether t quantizes to a sample strictly inside the
// clip.
func (c *Clip) Within(t float64) bool {
	ts := timeToSamples(t, c.rate)
	return ts > c.StartSample() && ts < c.EndSample()
}

// StartsAtOrAfter reports whether the clip starts at or after t.
func (c *Clip) StartsAtOrAfter(t float64) bool {
	return timeToSamples(t, c.rate) <= c.StartSample()
}

// EndsAtOrBefore reports whether the clip ends at or before t.
func (c *Clip) EndsAtOrBefore(t float64) bool {
	return timeToSamples(t, c.rate) >= c.EndSample()
}

// clipSamples converts absolute time t to a position in the clip's
// sequence, clamped to [0, NumSamples].
func (c *Clip) clipSamples(t float64) int64 {
	s := timeToSamples(t-c.offset, c.rate)
	if s < 0 {
		return 0
	}
	if n := c.seq.NumSamples(); s > n {
		return n
	}
	return s
}

// GetSamples reads len(dst) samples starting at clip sample position
// start.
func (c *Clip) GetSamples(dst []float32, start int64) error {
	return c.seq.Get(dst, start)
}

// SetSamples overwrites len(src) samples starting at clip sample
// position start.
func (c *Clip) SetSamples(src []float32, start int64) error {
	return c.seq.Set(src, start)
}

// GetMinMax returns the smallest and largest sample value between t0
// and t1. The envelope is not applied.
func (c *Clip) GetMinMax(t0, t1 float64) (float32, float32, error) {
	if t1 < t0 {
		return 0, 0, ErrInvalidRange
	}
	s0 := c.clipSamples(t0)
	s1 := c.clipSamples(t1)
	return c.seq.GetMinMax(s0, s1-s0)
}

// GetRMS returns the root mean square of the samples between t0 and
// t1. The envelope is not applied.
func (c *Clip) GetRMS(t0, t1 float64) (float32, error) {
	if t1 < t0 {
		return 0, ErrInvalidRange
	}
	s0 := c.clipSamples(t0)
	s1 := c.clipSamples(t1)
	return c.seq.GetRMS(s0, s1-s0)
}

// Append adds samples at the end of the clip. Samples are buffered
// until a full block accumulates or Flush is called.
func (c *Clip) Append(src []float32) error {
	if err := c.seq.Append(src); err != nil {
		return err
	}
	c.updateEnvelopeLen()
	return nil
}

// AppendFormat adds n raw samples in format f at the end of the clip.
// stride is the distance in samples between consecutive samples of
// this clip's channel, 1 for tightly packed input.
func (c *Clip) AppendFormat(src []byte, f sample.Format, n int64, stride int) error {
	if err := c.seq.AppendFormat(src, f, n, stride); err != nil {
		return err
	}
	c.updateEnvelopeLen()
	return nil
}

// Flush commits buffered appended samples to the store.
func (c *Clip) Flush() error {
	if err := c.seq.Flush(); err != nil {
		return err
	}
	c.updateEnvelopeLen()
	return nil
}

func (c *Clip) updateEnvelopeLen() {
	c.env.SetTrackLen(samplesToTime(c.seq.NumSamples(), c.rate))
}

// Clear removes the samples between t0 and t1 and closes the gap. Cut
// lines inside the range are discarded; cut lines after it move left
// with the audio that follows. If the range covers the clip head the
// clip is moved so the surviving audio starts at t0.
func (c *Clip) Clear(t0, t1 float64) error {
	if t1 < t0 {
		return ErrInvalidRange
	}
	start := c.StartTime()
	end := c.EndTime()
	s0 := c.clipSamples(t0)
	s1 := c.clipSamples(t1)
	if err := c.seq.Delete(s0, s1-s0); err != nil {
		return err
	}

	// Nothing below can fail.
	clip0 := math.Max(t0, start)
	clip1 := math.Min(t1, end)
	kept := c.cutlines[:0]
	for _, cl := range c.cutlines {
		pos := c.offset + cl.offset
		switch {
		case pos >= t0 && pos <= t1:
			_ = cl.Close()
		case pos >= t1:
			cl.Shift(clip0 - clip1)
			kept = append(kept, cl)
		default:
			kept = append(kept, cl)
		}
	}
	c.cutlines = kept
	c.env.CollapseRegion(t0, t1, 1/c.rate)
	if t0 < start {
		c.Shift(t0 - start)
	}
	c.updateEnvelopeLen()
	return nil
}

// ClearAndAddCutLine removes the samples between t0 and t1 like Clear,
// but keeps the removed audio as a cut line at the seam. Cut lines
// already inside the range move into the new cut line so that nothing
// is lost when the cut is expanded again.
func (c *Clip) ClearAndAddCutLine(t0, t1 float64) error {
	if t1 < t0 {
		return ErrInvalidRange
	}
	start := c.StartTime()
	end := c.EndTime()
	if t0 > end || t1 < start {
		return nil
	}
	clip0 := math.Max(t0, start)
	clip1 := math.Min(t1, end)

	cut, err := c.CloneRange(clip0, clip1, false)
	if err != nil {
		return err
	}
	cut.SetOffset(clip0 - c.offset)

	s0 := c.clipSamples(t0)
	s1 := c.clipSamples(t1)
	if err := c.seq.Delete(s0, s1-s0); err != nil {
		_ = cut.Close()
		return err
	}

	// Nothing below can fail.
	kept := c.cutlines[:0]
	for _, cl := range c.cutlines {
		pos := c.offset + cl.offset
		switch {
		case pos >= t0 && pos <= t1:
			cl.SetOffset(pos - clip0)
			cut.cutlines = append(cut.cutlines, cl)
		case pos >= t1:
			cl.Shift(clip0 - clip1)
			kept = append(kept, cl)
		default:
			kept = append(kept, cl)
		}
	}
	c.cutlines = kept
	c.env.CollapseRegion(t0, t1, 1/c.rate)
	if t0 < start {
		c.Shift(t0 - start)
	}
	c.cutlines = append(c.cutlines, cut)
	c.updateEnvelopeLen()
	return nil
}

// Paste inserts a copy of other's samples at time t0, moving the rest
// of the clip to the right. The pasted audio is resampled and format
// converted as needed. Copies of other's cut lines are attached at
// their pasted positions. On error the clip is unchanged.
func (c *Clip) Paste(t0 float64, other *Clip) error {
	src := other
	var staged *Clip
	if other.rate != c.rate || other.seq.Format() != c.seq.Format() {
		clone, err := other.Clone(true)
		if err != nil {
			return err
		}
		staged = clone
		if clone.rate != c.rate {
			if err := clone.Resample(c.rate); err != nil {
				_ = clone.Close()
				return err
			}
		}
		if clone.seq.Format() != c.seq.Format() {
			if err := clone.ConvertFormat(c.seq.Format()); err != nil {
				_ = clone.Close()
				return err
			}
		}
		src = clone
	}

	fail := func(copies []*Clip, err error) error {
		for _, cp := range copies {
			_ = cp.Close()
		}
		if staged != nil {
			_ = staged.Close()
		}
		return err
	}

	copies := make([]*Clip, 0, len(src.cutlines))
	for _, cl := range src.cutlines {
		cp, err := cl.Clone(true)
		if err != nil {
			return fail(copies, err)
		}
		copies = append(copies, cp)
	}

	s0 := c.clipSamples(t0)
	dur := src.EndTime() - src.StartTime()
	if err := c.seq.Paste(s0, src.seq); err != nil {
		return fail(copies, err)
	}

	// Nothing below can fail.
	c.env.Paste(c.offset+samplesToTime(s0, c.rate), src.env, 1/c.rate)
	c.OffsetCutLines(t0, dur)
	for _, cp := range copies {
		cp.Shift(t0 - c.offset)
		c.cutlines = append(c.cutlines, cp)
	}
	if staged != nil {
		_ = staged.Close()
	}
	c.updateEnvelopeLen()
	return nil
}

// InsertSilence inserts dur seconds of silence at time t, moving later
// samples and cut lines to the right.
func (c *Clip) InsertSilence(t, dur float64) error {
	s0 := c.clipSamples(t)
	n := timeToSamples(dur, c.rate)
	if err := c.seq.InsertSilence(s0, n); err != nil {
		return err
	}
	c.OffsetCutLines(t, dur)
	c.env.InsertSpace(t, dur)
	c.updateEnvelopeLen()
	return nil
}

// AppendSilence extends the clip with dur seconds of silence. The
// envelope keeps its value up to the old end and ramps to v across the
// added region.
func (c *Clip) AppendSilence(dur, v float64) error {
	n := timeToSamples(dur, c.rate)
	if n <= 0 {
		return nil
	}
	if err := c.seq.InsertSilence(c.seq.NumSamples(), n); err != nil {
		return err
	}
	oldLen := c.env.TrackLen()
	end := c.env.Value(c.offset + oldLen)
	c.updateEnvelopeLen()
	if c.env.Len() > 0 || v != end {
		c.env.SetValue(c.offset+oldLen, end)
		c.env.SetValue(c.offset+c.env.TrackLen(), v)
	}
	return nil
}

// Resample rewrites the clip's samples at a new rate, keeping its
// duration. Cut lines keep their original rate; Paste converts them
// when they are expanded.
func (c *Clip) Resample(rate float64) error {
	if rate == c.rate {
		return nil
	}
	n := c.seq.NumSamples()
	buf := make([]float32, n)
	if err := c.seq.Get(buf, 0); err != nil {
		return err
	}
	out := sample.Resample(buf, c.rate, rate)

	seq := sequence.New(c.seq.Store(), c.seq.Format())
	if err := seq.Append(out); err != nil {
		_ = seq.Close()
		return err
	}
	if err := seq.Flush(); err != nil {
		_ = seq.Close()
		return err
	}

	old := c.seq
	c.seq = seq
	c.rate = rate
	_ = old.Close()
	c.updateEnvelopeLen()
	return nil
}

// ConvertFormat rewrites the clip's samples in storage format f. Cut
// lines are converted when they are expanded.
func (c *Clip) ConvertFormat(f sample.Format) error {
	return c.seq.ConvertFormat(f)
}

// Clone returns an independent copy of the clip at the same position.
// Whole storage blocks are shared with the original by reference
// count.
func (c *Clip) Clone(withCutLines bool) (*Clip, error) {
	seq, err := c.seq.Clone()
	if err != nil {
		return nil, err
	}
	out := &Clip{
		seq:         seq,
		env:         c.env.Clone(),
		offset:      c.offset,
		rate:        c.rate,
		colorIndex:  c.colorIndex,
		placeholder: c.placeholder,
	}
	if withCutLines {
		for _, cl := range c.cutlines {
			cp, err := cl.Clone(true)
			if err != nil {
				_ = out.Close()
				return nil, err
			}
			out.cutlines = append(out.cutlines, cp)
		}
	}
	return out, nil
}

// CloneRange returns an independent copy of the samples between t0 and
// t1, clamped to the clip. The copy keeps its absolute position: its
// offset is the clamped range start. With withCutLines, cut lines
// inside the range come along, repositioned relative to the copy.
func (c *Clip) CloneRange(t0, t1 float64, withCutLines bool) (*Clip, error) {
	start := math.Max(t0, c.StartTime())
	s0 := c.clipSamples(t0)
	s1 := c.clipSamples(t1)
	seq, err := c.seq.Copy(s0, s1)
	if err != nil {
		return nil, err
	}
	out := &Clip{
		seq:         seq,
		env:         c.env.CloneRange(t0, t1),
		offset:      start,
		rate:        c.rate,
		colorIndex:  c.colorIndex,
		placeholder: c.placeholder,
	}
	if withCutLines {
		for _, cl := range c.cutlines {
			pos := c.offset + cl.offset
			if pos < t0 || pos > t1 {
				continue
			}
			cp, err := cl.Clone(true)
			if err != nil {
				_ = out.Close()
				return nil, err
			}
			cp.SetOffset(pos - start)
			out.cutlines = append(out.cutlines, cp)
		}
	}
	return out, nil
}

// Close releases the clip's samples back to the store, including every
// cut line. The clip must not be used afterwards.
func (c *Clip) Close() error {
	var first error
	for _, cl := range c.cutlines {
		if err := cl.Close(); err != nil && first == nil {
			first = err
		}
	}
	c.cutlines = nil
	if err := c.seq.Close(); err != nil && first == nil {
		first = err
	}
	return first
}
