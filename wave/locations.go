// SPDX-License-Identifier: EPL-2.0

package wave

import "math"

// LocationKind distinguishes the kinds of positions UpdateLocations
// finds on a track.
type LocationKind uint8

const (
	// LocationCutLine marks a collapsed cut line that can be expanded
	// or discarded.
	LocationCutLine LocationKind = iota + 1
	// LocationMergePoint marks the seam between two clips close enough
	// to merge into one.
	LocationMergePoint
)

// String returns the kind's name.
func (k LocationKind) String() string {
	switch k {
	case LocationCutLine:
		return "cutline"
	case LocationMergePoint:
		return "mergepoint"
	default:
		return "unknown"
	}
}

// Location is a position on a track where an edit action is available.
type Location struct {
	// Pos is the position on the timeline in seconds.
	Pos  float64
	Kind LocationKind
	// Clip1 and Clip2 are the track indexes of the clips left and
	// right of a merge point, and -1 for cut lines.
	Clip1, Clip2 int
}

// UpdateLocations rebuilds the track's location list: one entry per
// cut line, and one per pair of clips whose facing edges lie within
// MergePointTolerance of each other.
func (t *Track) UpdateLocations() {
	t.locations = t.locations[:0]
	var prev *Clip
	for _, c := range t.SortedClips() {
		for _, cl := range c.cutlines {
			t.locations = append(t.locations, Location{
				Pos:   c.Offset() + cl.Offset(),
				Kind:  LocationCutLine,
				Clip1: -1,
				Clip2: -1,
			})
		}
		if prev != nil && math.Abs(prev.EndTime()-c.StartTime()) < MergePointTolerance {
			t.locations = append(t.locations, Location{
				Pos:   prev.EndTime(),
				Kind:  LocationMergePoint,
				Clip1: t.ClipIndex(prev),
				Clip2: t.ClipIndex(c),
			})
		}
		prev = c
	}
}

// Locations returns the list built by the last UpdateLocations call.
// The slice is owned by the track; treat it as read-only.
func (t *Track) Locations() []Location { return t.locations }
