// SPDX-License-Identifier: EPL-2.0

package wave

import (
	"math"
	"sort"

	"github.com/viliml/audacity/sample"
	"github.com/viliml/audacity/sequence"
)

// Track is an editable mono audio track: an ordered-by-nothing bag of
// non-overlapping clips on a shared timeline. All sample storage is
// allocated from one block store so that copies between clips and
// tracks can share blocks instead of duplicating them.
//
// A Track is not safe for concurrent use.
type Track struct {
	clips  []*Clip
	store  sequence.Store
	rate   float64
	format sample.Format

	gain float32
	pan  float32

	name       string
	channel    ChannelKind
	colorIndex int

	// offset is where the first clip of an empty track will land.
	// A track with clips derives its position from them instead.
	offset float64

	locations []Location
}

// NewTrack returns an empty track whose clips allocate from store and
// hold samples in format f at rate Hz.
func NewTrack(store sequence.Store, f sample.Format, rate float64) *Track {
	return &Track{
		store:  store,
		rate:   rate,
		format: f,
		gain:   1,
	}
}

// Store returns the block store the track allocates from.
func (t *Track) Store() sequence.Store { return t.store }

// Rate returns the track's sample rate in Hz.
func (t *Track) Rate() float64 { return t.rate }

// SetRate reinterprets every clip's samples at a new rate. Clip
// positions scale by the same ratio, so timeline sample indices are
// preserved while everything changes duration.
func (t *Track) SetRate(rate float64) {
	rate = math.Max(1, rate)
	ratio := t.rate / rate
	t.rate = rate
	for _, c := range t.clips {
		c.SetRate(rate)
		c.SetOffset(c.Offset() * ratio)
	}
}

// Format returns the storage format new clips are created with.
func (t *Track) Format() sample.Format { return t.format }

// Gain returns the track's overall playback gain.
func (t *Track) Gain() float32 { return t.gain }

// SetGain sets the track's overall playback gain.
func (t *Track) SetGain(g float32) { t.gain = g }

// Pan returns the track's stereo position in [-1, 1].
func (t *Track) Pan() float32 { return t.pan }

// SetPan sets the track's stereo position, clamped to [-1, 1].
func (t *Track) SetPan(p float32) {
	switch {
	case p < -1:
		t.pan = -1
	case p > 1:
		t.pan = 1
	default:
		t.pan = p
	}
}

// ChannelGain returns the effective gain for playback channel 0 (left)
// or 1 (right), combining the track's gain and pan.
func (t *Track) ChannelGain(channel int) float32 {
	left := float32(1)
	right := float32(1)
	if t.pan < 0 {
		right = t.pan + 1
	} else if t.pan > 0 {
		left = 1 - t.pan
	}
	if channel%2 == 0 {
		return left * t.gain
	}
	return right * t.gain
}

// Name returns the track's display name.
func (t *Track) Name() string { return t.name }

// SetName sets the track's display name.
func (t *Track) SetName(s string) { t.name = s }

// Channel returns which stereo channel the track carries.
func (t *Track) Channel() ChannelKind { return t.channel }

// SetChannel marks which stereo channel the track carries.
func (t *Track) SetChannel(k ChannelKind) { t.channel = k }

// CanMergeWith reports whether other could join this track in a stereo
// group: equal rates, equal storage formats, and channels that are not
// the same stereo side.
func (t *Track) CanMergeWith(other *Track) bool {
	if other == nil || t.rate != other.rate || t.format != other.format {
		return false
	}
	return t.channel == Mono || other.channel == Mono || t.channel != other.channel
}

// Merge copies other's playback and display metadata: gain, pan and
// wave color. The audio and clip layout are unchanged.
func (t *Track) Merge(other *Track) {
	t.gain = other.gain
	t.pan = other.pan
	t.SetWaveColorIndex(other.colorIndex)
}

// WaveColorIndex returns the display color index assigned to the
// track's clips.
func (t *Track) WaveColorIndex() int { return t.colorIndex }

// SetWaveColorIndex assigns the display color index for every clip on
// the track, including cut lines.
func (t *Track) SetWaveColorIndex(i int) {
	t.colorIndex = i
	t.AllClips(func(c *Clip) bool {
		c.SetColorIndex(i)
		return true
	})
}

// Offset returns the track's position, the start of its earliest clip.
func (t *Track) Offset() float64 { return t.StartTime() }

// SetOffset moves every clip so the track starts at o. On an empty
// track it records where the first created clip will land.
func (t *Track) SetOffset(o float64) {
	delta := o - t.Offset()
	for _, c := range t.clips {
		c.Shift(delta)
	}
	t.offset = o
}

// StartTime returns the start of the earliest clip, or 0 for an empty
// track.
func (t *Track) StartTime() float64 {
	if len(t.clips) == 0 {
		return 0
	}
	best := t.clips[0].StartTime()
	for _, c := range t.clips[1:] {
		best = math.Min(best, c.StartTime())
	}
	return best
}

// EndTime returns the end of the latest clip, or 0 for an empty track.
func (t *Track) EndTime() float64 {
	if len(t.clips) == 0 {
		return 0
	}
	best := t.clips[0].EndTime()
	for _, c := range t.clips[1:] {
		best = math.Max(best, c.EndTime())
	}
	return best
}

// IsEmpty reports whether no clip overlaps the span t0 to t1.
func (t *Track) IsEmpty(t0, t1 float64) bool {
	if t0 > t1 {
		return true
	}
	for _, c := range t.clips {
		if !c.StartsAtOrAfter(t1) && !c.EndsAtOrBefore(t0) {
			return false
		}
	}
	return true
}

// TimeToSamples converts a time to a timeline sample index at the
// track rate, rounding to the nearest sample.
func (t *Track) TimeToSamples(t0 float64) int64 { return timeToSamples(t0, t.rate) }

// SamplesToTime converts a timeline sample index to a time.
func (t *Track) SamplesToTime(s int64) float64 { return samplesToTime(s, t.rate) }

// Clips returns the track's clips in creation order. The slice is
// owned by the track; treat it as read-only.
func (t *Track) Clips() []*Clip { return t.clips }

// NumClips returns the number of clips on the track.
func (t *Track) NumClips() int { return len(t.clips) }

// ClipByIndex returns the clip at position i in creation order, or nil
// when i is out of range.
func (t *Track) ClipByIndex(i int) *Clip {
	if i < 0 || i >= len(t.clips) {
		return nil
	}
	return t.clips[i]
}

// ClipIndex returns the position of c in creation order, or -1 when c
// is not on the track.
func (t *Track) ClipIndex(c *Clip) int {
	for i, o := range t.clips {
		if o == c {
			return i
		}
	}
	return -1
}

// SortedClips returns the track's clips ordered by start time.
func (t *Track) SortedClips() []*Clip {
	clips := append([]*Clip(nil), t.clips...)
	sort.Slice(clips, func(i, j int) bool {
		return clips[i].StartTime() < clips[j].StartTime()
	})
	return clips
}

// AllClips visits every clip on the track, descending into cut lines
// at any depth, until visit returns false.
func (t *Track) AllClips(visit func(*Clip) bool) {
	stack := append([]*Clip(nil), t.clips...)
	for len(stack) > 0 {
		c := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if !visit(c) {
			return
		}
		stack = append(stack, c.cutlines...)
	}
}

// CreateClip appends a new empty clip at position zero and returns it.
func (t *Track) CreateClip() *Clip {
	c := newClip(t.store, t.format, t.rate)
	t.clips = append(t.clips, c)
	return c
}

// NewestOrNewClip returns the most recently created clip, creating one
// at the track offset when the track is empty.
func (t *Track) NewestOrNewClip() *Clip {
	if len(t.clips) == 0 {
		c := t.CreateClip()
		c.SetOffset(t.offset)
		return c
	}
	return t.clips[len(t.clips)-1]
}

// RightmostOrNewClip returns the clip with the greatest offset,
// creating one at the track offset when the track is empty.
func (t *Track) RightmostOrNewClip() *Clip {
	if len(t.clips) == 0 {
		c := t.CreateClip()
		c.SetOffset(t.offset)
		return c
	}
	best := t.clips[0]
	for _, c := range t.clips[1:] {
		if c.Offset() > best.Offset() {
			best = c
		}
	}
	return best
}

// AddClip takes ownership of c and places it on the track. The clip
// must allocate from the track's store and must not overlap an
// existing clip.
func (t *Track) AddClip(c *Clip) error {
	if c.seq.Store() != t.store {
		return ErrStoreMismatch
	}
	for _, o := range t.clips {
		if c.StartTime() < o.EndTime() && c.EndTime() > o.StartTime() {
			return ErrOverlap
		}
	}
	t.clips = append(t.clips, c)
	return nil
}

// RemoveClip detaches c from the track without closing it and reports
// whether it was found. The caller owns the clip afterwards.
func (t *Track) RemoveClip(c *Clip) bool {
	for i, o := range t.clips {
		if o == c {
			t.clips = append(t.clips[:i], t.clips[i+1:]...)
			return true
		}
	}
	return false
}

// ClipAt returns the clip containing time at. When two clips share a
// boundary that quantizes to at, the later clip wins. It returns nil
// when at falls outside every clip.
func (t *Track) ClipAt(at float64) *Clip {
	clips := t.SortedClips()
	for i := len(clips) - 1; i >= 0; i-- {
		c := clips[i]
		if at < c.StartTime() || at > c.EndTime() {
			continue
		}
		// Two touching clips may disagree about the boundary time by a
		// fraction of a sample; prefer the clip that starts there.
		if i+1 < len(clips) && at == c.EndTime() && c.sharesBoundaryWith(clips[i+1]) {
			return clips[i+1]
		}
		return c
	}
	return nil
}

func (c *Clip) sharesBoundaryWith(next *Clip) bool {
	endThis := c.rate*c.offset + float64(c.seq.NumSamples())
	startNext := next.rate * next.offset
	return math.Abs(startNext-endThis) < 0.5
}

// ClipAtSample returns the clip whose samples cover timeline sample s,
// or nil.
func (t *Track) ClipAtSample(s int64) *Clip {
	for _, c := range t.clips {
		start := c.StartSample()
		if s >= start && s < start+c.NumSamples() {
			return c
		}
	}
	return nil
}

// ClipAtPixel returns the clip under screen position x, where timeAt
// maps a pixel column to a timeline time. The display owns the
// geometry; the track only resolves the resulting time.
func (t *Track) ClipAtPixel(x int, timeAt func(int) float64) *Clip {
	return t.ClipAt(timeAt(x))
}

// CanOffsetClip reports whether clip can move by amount seconds
// without running into another clip. When it cannot, allowed is the
// largest move in the same direction that fits, which may be zero; ok
// reports whether moving by allowed is collision free.
func (t *Track) CanOffsetClip(clip *Clip, amount float64) (allowed float64, ok bool) {
	allowed = amount
	for _, c := range t.clips {
		if c == clip {
			continue
		}
		if c.StartTime() < clip.EndTime()+amount && c.EndTime() > clip.StartTime()+amount {
			if amount > 0 {
				allowed = math.Min(allowed, c.StartTime()-clip.EndTime())
				allowed = math.Max(allowed, 0)
			} else {
				allowed = math.Max(allowed, c.EndTime()-clip.StartTime())
				allowed = math.Min(allowed, 0)
			}
		}
	}
	if allowed == amount {
		return allowed, true
	}
	if !t.fitsOffset(clip, allowed) {
		return 0, false
	}
	return allowed, true
}

func (t *Track) fitsOffset(clip *Clip, amount float64) bool {
	for _, c := range t.clips {
		if c == clip {
			continue
		}
		if c.StartTime() < clip.EndTime()+amount && c.EndTime() > clip.StartTime()+amount {
			return false
		}
	}
	return true
}

// CanInsertClip reports whether clip, shifted by slideBy, would fit
// between the track's clips. Overlaps smaller than tolerance are
// rescued by nudging the slide; the returned slide and shrunken
// tolerance reflect any nudge, so a caller placing several clips can
// thread them through.
func (t *Track) CanInsertClip(clip *Clip, slideBy, tolerance float64) (newSlideBy, newTolerance float64, ok bool) {
	for _, c := range t.clips {
		d1 := c.StartTime() - (clip.EndTime() + slideBy)
		d2 := (clip.StartTime() + slideBy) - c.EndTime()
		if d1 < 0 && d2 < 0 {
			switch {
			case -d1 < tolerance:
				// The right edge sticks in slightly; slide left.
				slideBy += d1
				tolerance /= 1000
			case -d2 < tolerance:
				// The left edge sticks in slightly; slide right.
				slideBy -= d2
				tolerance /= 1000
			default:
				return slideBy, tolerance, false
			}
		}
	}
	return slideBy, tolerance, true
}

// Get reads len(dst) samples starting at timeline sample position
// start. Positions not covered by any clip read as zero.
func (t *Track) Get(dst []float32, start int64) error {
	n := int64(len(dst))

	// When the request is covered by a single clip there is nothing to
	// zero.
	doClear := true
	for _, c := range t.clips {
		if start >= c.StartSample() && start+n <= c.EndSample() {
			doClear = false
			break
		}
	}
	if doClear {
		clear(dst)
	}

	for _, c := range t.clips {
		clipStart := c.StartSample()
		clipEnd := c.EndSample()
		if clipEnd <= start || clipStart >= start+n {
			continue
		}
		samplesToCopy := min(start+n-clipStart, c.NumSamples())
		startDelta := clipStart - start
		var inclipDelta int64
		if startDelta < 0 {
			inclipDelta = -startDelta
			samplesToCopy -= inclipDelta
			startDelta = 0
		}
		if err := c.GetSamples(dst[startDelta:startDelta+samplesToCopy], inclipDelta); err != nil {
			return err
		}
	}
	return nil
}

// Set overwrites len(src) samples starting at timeline sample position
// start. Samples that fall outside every clip are dropped.
func (t *Track) Set(src []float32, start int64) error {
	n := int64(len(src))
	for _, c := range t.clips {
		clipStart := c.StartSample()
		clipEnd := c.EndSample()
		if clipEnd <= start || clipStart >= start+n {
			continue
		}
		samplesToCopy := min(start+n-clipStart, c.NumSamples())
		startDelta := clipStart - start
		var inclipDelta int64
		if startDelta < 0 {
			inclipDelta = -startDelta
			samplesToCopy -= inclipDelta
			startDelta = 0
		}
		if err := c.SetSamples(src[startDelta:startDelta+samplesToCopy], inclipDelta); err != nil {
			return err
		}
	}
	return nil
}

// Append adds samples at the end of the rightmost clip, creating one
// when the track is empty. Samples are buffered until a full block
// accumulates or Flush is called.
func (t *Track) Append(src []float32) error {
	return t.RightmostOrNewClip().Append(src)
}

// AppendFormat adds n raw samples in format f at the end of the
// rightmost clip. stride is the distance in samples between
// consecutive samples of this track's channel, so a single channel of
// interleaved stereo input appends with stride 2.
func (t *Track) AppendFormat(src []byte, f sample.Format, n int64, stride int) error {
	return t.RightmostOrNewClip().AppendFormat(src, f, n, stride)
}

// Flush commits buffered appended samples to the store.
func (t *Track) Flush() error {
	return t.RightmostOrNewClip().Flush()
}

// EnvelopeValues fills dst with the track's gain envelope sampled at
// the track rate starting at time t0. Positions outside every clip get
// the neutral value 1.
func (t *Track) EnvelopeValues(dst []float64, t0 float64) {
	for i := range dst {
		dst[i] = 1
	}
	tstep := 1 / t.rate
	endTime := t0 + tstep*float64(len(dst))
	for _, c := range t.clips {
		clipStart := c.StartTime()
		clipEnd := c.EndTime()
		if clipStart >= endTime || clipEnd <= t0 {
			continue
		}
		rbuf := dst
		rt0 := t0
		if rt0 < clipStart {
			nDiff := timeToSamples(clipStart-rt0, t.rate)
			if nDiff > int64(len(rbuf)) {
				nDiff = int64(len(rbuf))
			}
			rbuf = rbuf[nDiff:]
			rt0 = clipStart
		}
		rlen := int64(len(rbuf))
		if rt0+float64(rlen)*tstep > clipEnd {
			nClipLen := c.EndSample() - c.StartSample()
			if nClipLen <= 0 {
				return
			}
			rlen = min(rlen, nClipLen)
			rlen = min(rlen, int64(math.Floor(0.5+(clipEnd-rt0)/tstep)))
		}
		if rlen <= 0 {
			continue
		}
		c.env.Values(rbuf[:rlen], rt0, tstep)
	}
}

// GetMinMax returns the smallest and largest sample value between t0
// and t1 across all clips, or zeros when the span holds no samples.
func (t *Track) GetMinMax(t0, t1 float64) (float32, float32, error) {
	if t1 < t0 {
		return 0, 0, ErrInvalidRange
	}
	lo := float32(math.Inf(1))
	hi := float32(math.Inf(-1))
	found := false
	for _, c := range t.clips {
		if t1 >= c.StartTime() && t0 <= c.EndTime() {
			clo, chi, err := c.GetMinMax(t0, t1)
			if err != nil {
				return 0, 0, err
			}
			found = true
			lo = min(lo, clo)
			hi = max(hi, chi)
		}
	}
	if !found {
		return 0, 0, nil
	}
	return lo, hi, nil
}

// GetRMS returns the root mean square of the samples between t0 and
// t1. Sections of several clips combine weighted by their sample
// counts; gaps contribute nothing.
func (t *Track) GetRMS(t0, t1 float64) (float32, error) {
	if t1 < t0 {
		return 0, ErrInvalidRange
	}
	var sumsq float64
	var length int64
	for _, c := range t.clips {
		if t1 >= c.StartTime() && t0 < c.EndTime() {
			rms, err := c.GetRMS(t0, t1)
			if err != nil {
				return 0, err
			}
			s0 := c.clipSamples(math.Max(t0, c.StartTime()))
			s1 := c.clipSamples(math.Min(t1, c.EndTime()))
			sumsq += float64(rms) * float64(rms) * float64(s1-s0)
			length += s1 - s0
		}
	}
	if length == 0 {
		return 0, nil
	}
	return float32(math.Sqrt(sumsq / float64(length))), nil
}

// BlockStart returns the timeline sample index of the first sample of
// the storage block containing s, or -1 when s is outside every clip.
func (t *Track) BlockStart(s int64) int64 {
	for _, c := range t.clips {
		start := c.StartSample()
		if s >= start && s < start+c.NumSamples() {
			return start + c.seq.BlockStart(s-start)
		}
	}
	return -1
}

// BestBlockSize returns the read length starting at s that stays
// within one storage block, the preferred request size for sequential
// readers.
func (t *Track) BestBlockSize(s int64) int64 {
	for _, c := range t.clips {
		start := c.StartSample()
		if s >= start && s < start+c.NumSamples() {
			return c.seq.BestBlockSize(s - start)
		}
	}
	return t.MaxBlockSize()
}

// MaxBlockSize returns the largest per-block sample capacity across
// the track's clips.
func (t *Track) MaxBlockSize() int64 {
	var m int64
	for _, c := range t.clips {
		m = max(m, c.seq.MaxBlockSize())
	}
	if m == 0 {
		m = int64(t.store.MaxBlockBytes() / t.format.BytesPerSample())
	}
	return m
}

// IdealBlockSize returns the append batching size of the newest clip,
// creating one when the track is empty.
func (t *Track) IdealBlockSize() int64 {
	return t.NewestOrNewClip().seq.IdealBlockSize()
}

// Resample rewrites every clip's samples at a new rate, keeping clip
// positions and durations.
func (t *Track) Resample(rate float64) error {
	for _, c := range t.clips {
		if err := c.Resample(rate); err != nil {
			return err
		}
	}
	t.rate = rate
	return nil
}

// ConvertFormat rewrites every clip's samples in storage format f and
// makes it the format for new clips. On error some clips may already
// be converted; the audio is unchanged either way.
func (t *Track) ConvertFormat(f sample.Format) error {
	for _, c := range t.clips {
		if err := c.ConvertFormat(f); err != nil {
			return err
		}
	}
	t.format = f
	return nil
}

// Duplicate returns a deep copy of the track. Whole storage blocks are
// shared with the original by reference count.
func (t *Track) Duplicate() (*Track, error) {
	out := &Track{
		store:      t.store,
		rate:       t.rate,
		format:     t.format,
		gain:       t.gain,
		pan:        t.pan,
		name:       t.name,
		channel:    t.channel,
		colorIndex: t.colorIndex,
		offset:     t.offset,
	}
	out.locations = append([]Location(nil), t.locations...)
	for _, c := range t.clips {
		cp, err := c.Clone(true)
		if err != nil {
			_ = out.Close()
			return nil, err
		}
		out.clips = append(out.clips, cp)
	}
	return out, nil
}

// Close releases every clip's samples back to the store. The track is
// empty afterwards.
func (t *Track) Close() error {
	var first error
	for _, c := range t.clips {
		if err := c.Close(); err != nil && first == nil {
			first = err
		}
	}
	t.clips = nil
	t.locations = nil
	return first
}
