// SPDX-License-Identifier: EPL-2.0

// Package envelope implements the gain-over-time control curve attached
// to every audio clip.
//
// An envelope is a short sorted list of control points interpolated
// linearly. Point times are kept relative to the envelope's offset so
// that moving a clip moves its whole curve in one assignment. Outside
// the points the curve extends flat; with no points at all it sits at
// the default value of 1.0 (unity gain).
//
// Every operation here is no-fail: editing a curve cannot touch storage,
// so the clip operations that combine sample edits with envelope edits
// do all their fallible work first and reshape the envelope last.
package envelope

import (
	"math"
	"sort"
)

// Control value bounds for a gain curve.
const (
	MinValue = 0.0
	MaxValue = 2.0
)

// DefaultValue is the curve's level when it has no control points.
const DefaultValue = 1.0

// Point is one control point. T is in seconds relative to the
// envelope's offset; V is the gain at that time.
type Point struct {
	T float64
	V float64
}

// Envelope is a piecewise-linear gain curve.
type Envelope struct {
	points   []Point
	offset   float64
	trackLen float64
}

// New returns an empty envelope at unity gain.
func New() *Envelope {
	return &Envelope{}
}

// Clone returns a deep copy.
func (e *Envelope) Clone() *Envelope {
	out := &Envelope{
		points:   append([]Point(nil), e.points...),
		offset:   e.offset,
		trackLen: e.trackLen,
	}

	return out
}

// CloneRange returns a copy of the curve between absolute times t0 and
// t1. The copy's offset is the clamped range start. When the cut lands
// between control points, anchor points are added at the copy's edges so
// the interpolated values there are preserved.
func (e *Envelope) CloneRange(t0, t1 float64) *Envelope {
	out := New()
	out.offset = math.Max(t0, e.offset)
	out.trackLen = math.Min(t1, e.offset+e.trackLen) - out.offset
	if out.trackLen < 0 {
		out.trackLen = 0
	}

	if len(e.points) == 0 {
		return out
	}

	rel0 := out.offset - e.offset
	rel1 := rel0 + out.trackLen

	before, after := false, false
	for _, p := range e.points {
		switch {
		case p.T < rel0:
			before = true
		case p.T > rel1:
			after = true
		default:
			out.points = append(out.points, Point{T: p.T - rel0, V: p.V})
		}
	}

	// Anchor the cut edges so the copy keeps the interpolated values
	// where the range sliced through a segment.
	if before && (len(out.points) == 0 || out.points[0].T > 0) {
		out.points = append([]Point{{T: 0, V: e.valueRel(rel0)}}, out.points...)
	}

	if after && (len(out.points) == 0 || out.points[len(out.points)-1].T < out.trackLen) {
		out.points = append(out.points, Point{T: out.trackLen, V: e.valueRel(rel1)})
	}

	return out
}

// Offset returns the absolute time of the envelope's origin.
func (e *Envelope) Offset() float64 { return e.offset }

// SetOffset moves the whole curve to start at o.
func (e *Envelope) SetOffset(o float64) { e.offset = o }

// TrackLen returns the curve's extent in seconds.
func (e *Envelope) TrackLen() float64 { return e.trackLen }

// SetTrackLen sets the curve's extent. Control points beyond the new
// length are dropped.
func (e *Envelope) SetTrackLen(l float64) {
	if l < 0 {
		l = 0
	}

	e.trackLen = l

	for len(e.points) > 0 && e.points[len(e.points)-1].T > l {
		e.points = e.points[:len(e.points)-1]
	}
}

// Len returns the number of control points.
func (e *Envelope) Len() int { return len(e.points) }

// PointAt returns control point i in insertion-sorted order.
func (e *Envelope) PointAt(i int) Point { return e.points[i] }

func clampValue(v float64) float64 {
	if v < MinValue {
		return MinValue
	}

	if v > MaxValue {
		return MaxValue
	}

	return v
}

// searchPoints returns the index of the first point with T >= t.
func (e *Envelope) searchPoints(t float64) int {
	return sort.Search(len(e.points), func(i int) bool {
		return e.points[i].T >= t
	})
}

// SetValue inserts a control point at absolute time t, replacing any
// point already at that exact time.
func (e *Envelope) SetValue(t, v float64) {
	rel := t - e.offset
	v = clampValue(v)

	i := e.searchPoints(rel)
	if i < len(e.points) && e.points[i].T == rel {
		e.points[i].V = v
		return
	}

	e.points = append(e.points, Point{})
	copy(e.points[i+1:], e.points[i:])
	e.points[i] = Point{T: rel, V: v}

	if rel > e.trackLen {
		e.trackLen = rel
	}
}

// valueRel evaluates the curve at a time relative to the offset.
func (e *Envelope) valueRel(rel float64) float64 {
	if len(e.points) == 0 {
		return DefaultValue
	}

	if rel <= e.points[0].T {
		return e.points[0].V
	}

	last := e.points[len(e.points)-1]
	if rel >= last.T {
		return last.V
	}

	i := e.searchPoints(rel)

	// Interpolate between points i-1 and i
	p0, p1 := e.points[i-1], e.points[i]
	if p1.T == p0.T {
		return p1.V
	}

	frac := (rel - p0.T) / (p1.T - p0.T)

	return p0.V + frac*(p1.V-p0.V)
}

// Value evaluates the curve at absolute time t.
func (e *Envelope) Value(t float64) float64 {
	return e.valueRel(t - e.offset)
}

// Values fills dst with curve readings starting at absolute time t0,
// stepping by tstep per sample.
func (e *Envelope) Values(dst []float64, t0, tstep float64) {
	for i := range dst {
		dst[i] = e.Value(t0 + float64(i)*tstep)
	}
}

// InsertSpace shifts the part of the curve at or after absolute time t
// right by tlen seconds, growing the extent. The gap keeps whatever
// value the surrounding segment interpolates to.
func (e *Envelope) InsertSpace(t, tlen float64) {
	if tlen <= 0 {
		return
	}

	rel := t - e.offset

	for i := range e.points {
		if e.points[i].T >= rel {
			e.points[i].T += tlen
		}
	}

	e.trackLen += tlen
}

// CollapseRegion removes the curve between absolute times t0 and t1 and
// closes the gap, the envelope half of clearing samples. Points strictly
// inside the region go away; the boundary values are preserved by
// inserting edge points when the region's sides do not already carry
// points, so the seam keeps the left side's limit on its left and the
// right side's limit on its right. sampleDur, the duration of one sample,
// separates the two seam points to avoid a zero-width segment.
func (e *Envelope) CollapseRegion(t0, t1, sampleDur float64) {
	rel0 := clampLen(t0-e.offset, e.trackLen)
	rel1 := clampLen(t1-e.offset, e.trackLen)

	if rel1 <= rel0 {
		return
	}

	eps := sampleDur / 2

	// Preserve the left-side limit unless the region starts at the curve's
	// very beginning.
	if rel0 > eps && !e.hasPointAt(rel0) {
		e.SetValue(e.offset+rel0, e.valueRel(rel0))
	}

	// Preserve the right-side limit unless the region runs to the end.
	rightPoint := false
	if e.trackLen-rel1 > eps {
		if !e.hasPointAt(rel1) {
			e.SetValue(e.offset+rel1, e.valueRel(rel1))
		}

		rightPoint = true
	}

	// Drop points strictly inside (rel0, rel1); a point exactly at rel1
	// survives as the seam's right side.
	kept := e.points[:0]
	for _, p := range e.points {
		if p.T > rel0 && p.T < rel1 {
			continue
		}

		kept = append(kept, p)
	}
	e.points = kept

	// Close the gap.
	length := rel1 - rel0
	for i := range e.points {
		if e.points[i].T < rel1 {
			continue
		}

		if rightPoint && e.points[i].T == rel1 {
			// The seam's right side lands one sample after its left side
			e.points[i].T = rel0 + sampleDur
			rightPoint = false
			continue
		}

		e.points[i].T -= length
	}

	e.trackLen -= length
	if e.trackLen < 0 {
		e.trackLen = 0
	}

	e.normalize()
}

// normalize restores sorted point order after seam adjustments.
func (e *Envelope) normalize() {
	sort.SliceStable(e.points, func(i, j int) bool {
		return e.points[i].T < e.points[j].T
	})
}

func clampLen(t, trackLen float64) float64 {
	if t < 0 {
		return 0
	}

	if t > trackLen {
		return trackLen
	}

	return t
}

func (e *Envelope) hasPointAt(rel float64) bool {
	i := e.searchPoints(rel)

	return i < len(e.points) && e.points[i].T == rel
}

// Paste splices other's curve in at absolute time t0, the envelope half
// of pasting samples. Points at or after the splice shift right by
// other's extent; other's points come in relative to t0. sampleDur keeps
// a preserved seam point from landing on a pasted point at the same time.
func (e *Envelope) Paste(t0 float64, other *Envelope, sampleDur float64) {
	if other == nil || other.trackLen <= 0 {
		return
	}

	rel := t0 - e.offset

	for i := range e.points {
		if e.points[i].T >= rel {
			e.points[i].T += other.trackLen
		}
	}

	insert := make([]Point, 0, len(other.points))
	for _, p := range other.points {
		t := rel + p.T
		if t > rel+other.trackLen {
			break
		}

		insert = append(insert, Point{T: t, V: p.V})
	}

	if len(insert) > 0 {
		i := e.searchPoints(rel)
		tail := append([]Point(nil), e.points[i:]...)
		e.points = append(append(e.points[:i], insert...), tail...)

		// A shifted point may now coincide with the last pasted point;
		// nudge it right by one sample so both survive.
		for j := len(insert) + i; j < len(e.points); j++ {
			if j > 0 && e.points[j].T <= e.points[j-1].T {
				e.points[j].T = e.points[j-1].T + sampleDur
			}
		}
	}

	e.trackLen += other.trackLen
	e.normalize()
}

// RescaleTimesBy multiplies every point time and the extent by ratio,
// the envelope half of resampling a clip.
func (e *Envelope) RescaleTimesBy(ratio float64) {
	if ratio <= 0 {
		return
	}

	for i := range e.points {
		e.points[i].T *= ratio
	}

	e.trackLen *= ratio
}

// Flatten removes every control point, returning the curve to a constant
// v.
func (e *Envelope) Flatten(v float64) {
	e.points = e.points[:0]

	if v != DefaultValue {
		// A single point pins the whole flat curve to v
		e.points = append(e.points, Point{T: 0, V: clampValue(v)})
	}
}
