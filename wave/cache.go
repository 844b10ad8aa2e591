// SPDX-License-Identifier: EPL-2.0

package wave

type cacheBuffer struct {
	data  []float32
	start int64
	n     int64
}

func (b cacheBuffer) end() int64 { return b.start + b.n }

// TrackCache speeds up repeated reads of a track by holding up to two
// adjacent storage blocks' worth of samples, sized for the track's
// largest block. Sequential readers advancing in block-sized steps hit
// the cache almost every time, and a request that lands entirely in
// one cached block is returned without copying.
//
// A TrackCache is not safe for concurrent use, and it does not observe
// edits: call Free or SetTrack after modifying the track.
type TrackCache struct {
	track   *Track
	bufSize int64
	buffers [2]cacheBuffer
	nValid  int
	overlap []float32
}

// NewTrackCache returns a cache reading through tr, which may be nil.
func NewTrackCache(tr *Track) *TrackCache {
	c := &TrackCache{}
	c.SetTrack(tr)
	return c
}

// Track returns the track the cache reads through.
func (c *TrackCache) Track() *Track { return c.track }

// SetTrack switches the cache to read through tr and invalidates the
// cached samples.
func (c *TrackCache) SetTrack(tr *Track) {
	if c.track == tr {
		return
	}
	if tr != nil {
		size := tr.MaxBlockSize()
		if c.track == nil || c.bufSize != size {
			c.Free()
			c.bufSize = size
			c.buffers[0].data = make([]float32, size)
			c.buffers[1].data = make([]float32, size)
		}
	} else {
		c.Free()
	}
	c.track = tr
	c.nValid = 0
}

// Free invalidates the cached samples and releases the cache's
// buffers.
func (c *TrackCache) Free() {
	c.buffers[0] = cacheBuffer{}
	c.buffers[1] = cacheBuffer{}
	c.overlap = nil
	c.nValid = 0
}

// Get returns n samples of the track starting at timeline sample
// position start. Positions not covered by any clip read as zero. The
// returned slice is only valid until the next call on the cache and
// must not be modified.
func (c *TrackCache) Get(start int64, n int) ([]float32, error) {
	if c.track == nil {
		return nil, ErrNoTrack
	}
	if n <= 0 {
		return nil, nil
	}
	ln := int64(n)
	end := start + ln

	fillFirst := c.nValid < 1
	fillSecond := c.nValid < 2

	// Discard cached blocks the request has moved away from.
	switch {
	case c.nValid > 0 && (end <= c.buffers[0].start || start >= c.buffers[c.nValid-1].end()):
		// Complete miss.
		c.nValid = 0
		fillFirst = true
		fillSecond = true
	case c.nValid == 2 && start >= c.buffers[1].start && end > c.buffers[1].end():
		// The request starts in the second block and extends past it.
		c.buffers[0], c.buffers[1] = c.buffers[1], c.buffers[0]
		fillSecond = true
		c.nValid = 1
	case c.nValid > 0 && start < c.buffers[0].start && c.track.BlockStart(start) >= 0:
		// The request backed up before the cache but there is a block
		// to fetch; any second block is given up.
		c.buffers[0], c.buffers[1] = c.buffers[1], c.buffers[0]
		fillSecond = false
		c.nValid = 1
		fillFirst = true
	}

	if fillFirst {
		start0 := c.track.BlockStart(start)
		if start0 >= 0 {
			len0 := c.track.BestBlockSize(start0)
			if int64(cap(c.buffers[0].data)) < len0 {
				c.buffers[0].data = make([]float32, max(len0, c.bufSize))
			}
			if err := c.track.Get(c.buffers[0].data[:len0], start0); err != nil {
				return nil, err
			}
			c.buffers[0].start = start0
			c.buffers[0].n = len0
			if !fillSecond && c.buffers[0].end() != c.buffers[1].start {
				fillSecond = true
			}
			if fillSecond {
				c.nValid = 1
			} else {
				c.nValid = 2
			}
		} else {
			// The request begins in a gap between clips or beyond the
			// audio; the direct track read below fills zeros.
			c.nValid = 0
			fillSecond = false
		}
	}

	if fillSecond {
		c.nValid = 1
		end0 := c.buffers[0].end()
		if end > end0 {
			start1 := c.track.BlockStart(end0)
			if start1 == end0 {
				len1 := c.track.BestBlockSize(start1)
				if int64(cap(c.buffers[1].data)) < len1 {
					c.buffers[1].data = make([]float32, max(len1, c.bufSize))
				}
				if err := c.track.Get(c.buffers[1].data[:len1], start1); err != nil {
					return nil, err
				}
				c.buffers[1].start = start1
				c.buffers[1].n = len1
				c.nValid = 2
			}
		}
	}

	written := int64(-1) // -1 until the overlap buffer is engaged
	remaining := ln

	// There may be an uncached leading portion, possibly the whole
	// request when no block is cached. This can be negative.
	initLen := ln
	if c.nValid >= 1 {
		initLen = min(ln, c.buffers[0].start-start)
	}
	if initLen > 0 {
		c.growOverlap(n)
		if err := c.track.Get(c.overlap[:initLen], start); err != nil {
			return nil, err
		}
		remaining -= initLen
		start += initLen
		written = initLen
	}

	for i := 0; i < c.nValid && remaining > 0; i++ {
		b := &c.buffers[i]
		starti := start - b.start
		// This can be negative.
		leni := min(remaining, b.n-starti)
		if initLen <= 0 && leni == ln {
			// The whole request sits in one cached block.
			return b.data[starti : starti+ln], nil
		}
		if leni > 0 {
			if written < 0 {
				c.growOverlap(n)
				written = 0
			}
			copy(c.overlap[written:], b.data[starti:starti+leni])
			remaining -= leni
			start += leni
			written += leni
		}
	}

	if remaining > 0 {
		// The request outruns the cached blocks; fetch the rest
		// directly.
		if written < 0 {
			c.growOverlap(n)
			written = 0
		}
		if err := c.track.Get(c.overlap[written:written+remaining], start); err != nil {
			return nil, err
		}
	}
	return c.overlap[:n], nil
}

func (c *TrackCache) growOverlap(n int) {
	if cap(c.overlap) < n {
		c.overlap = make([]float32, n)
	} else {
		c.overlap = c.overlap[:n]
	}
}
