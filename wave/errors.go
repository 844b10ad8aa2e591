// SPDX-License-Identifier: EPL-2.0

package wave

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidRange reports an inverted or otherwise unusable time
	// range.
	ErrInvalidRange = errors.New("invalid time range")

	// ErrNoRoom reports an edit that would need to move immovable
	// clips. The concrete error is usually a *CapacityError carrying
	// how much would have fit.
	ErrNoRoom = errors.New("not enough room between clips")

	// ErrNoCutLine reports a cut-line position that matches no stored
	// cut line.
	ErrNoCutLine = errors.New("no cut line at position")

	// ErrOverlap reports a clip that cannot be added because it covers
	// samples another clip already owns.
	ErrOverlap = errors.New("clips overlap")

	// ErrStoreMismatch reports a clip allocated from one block store
	// being added to a track that uses another.
	ErrStoreMismatch = errors.New("clip belongs to a different store")

	// ErrNoTrack reports a cache read with no track attached.
	ErrNoTrack = errors.New("cache has no track")
)

// CapacityError reports an edit rejected because moving clips is
// disabled and the material does not fit. Allowed is the longest
// duration in seconds that would have fit at the same position; it can
// be zero. errors.Is(err, ErrNoRoom) matches it.
type CapacityError struct {
	Allowed float64
}

func (e *CapacityError) Error() string {
	return fmt.Sprintf("not enough room between clips, %g s available", e.Allowed)
}

func (e *CapacityError) Is(target error) bool {
	return target == ErrNoRoom
}
