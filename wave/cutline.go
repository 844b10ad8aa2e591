// SPDX-License-Identifier: EPL-2.0

package wave

import "math"

// FindCutLine looks for a cut line within cutlineTolerance of pos. It
// returns the absolute time range the cut line's audio would occupy if
// expanded.
func (c *Clip) FindCutLine(pos float64) (start, end float64, ok bool) {
	for _, cl := range c.cutlines {
		if math.Abs(c.offset+cl.offset-pos) < cutlineTolerance {
			return c.offset + cl.StartTime(), c.offset + cl.EndTime(), true
		}
	}
	return 0, 0, false
}

// ExpandCutLine pastes the audio of the cut line found within
// cutlineTolerance of pos back into the clip and discards the cut
// line. It returns ErrNoCutLine when no cut line matches.
func (c *Clip) ExpandCutLine(pos float64) error {
	for i, cl := range c.cutlines {
		if math.Abs(c.offset+cl.offset-pos) >= cutlineTolerance {
			continue
		}
		if err := c.Paste(c.offset+cl.offset, cl); err != nil {
			return err
		}
		// Paste appended copies of any nested cut lines, so locate the
		// expanded one again before removing it.
		for j, cj := range c.cutlines {
			if cj == cl {
				i = j
				break
			}
		}
		c.cutlines = append(c.cutlines[:i], c.cutlines[i+1:]...)
		_ = cl.Close()
		return nil
	}
	return ErrNoCutLine
}

// RemoveCutLine discards the cut line found within cutlineTolerance of
// pos and reports whether there was one.
func (c *Clip) RemoveCutLine(pos float64) bool {
	for i, cl := range c.cutlines {
		if math.Abs(c.offset+cl.offset-pos) < cutlineTolerance {
			c.cutlines = append(c.cutlines[:i], c.cutlines[i+1:]...)
			_ = cl.Close()
			return true
		}
	}
	return false
}

// OffsetCutLines moves every cut line at or after t0 by dt seconds.
// Callers use it to keep cut lines attached to the audio around them
// when samples are inserted or removed.
func (c *Clip) OffsetCutLines(t0, dt float64) {
	for _, cl := range c.cutlines {
		if c.offset+cl.offset >= t0 {
			cl.Shift(dt)
		}
	}
}
