// Package conflict holds the pure decision rules for reservation windows.
// Nothing here touches storage; callers pass in everything the rules need.
package conflict

import (
	"time"

	reservationserrors "roombook/internal/reservations/errors"
)

// ValidateWindow checks a proposed [start, end) window against the fixed
// rule order: start after end, start equal to end, window in the past.
// The first failing rule wins.
func ValidateWindow(start, end, now time.Time) error {
	if start.After(end) {
		return reservationserrors.ErrStartAfterEnd
	}
	if start.Equal(end) {
		return reservationserrors.ErrStartEqualsEnd
	}
	if start.Before(now) || end.Before(now) {
		return reservationserrors.ErrInThePast
	}
	return nil
}

// Overlaps reports whether [s1, e1) and [s2, e2) share at least one instant.
// A window ending exactly when another starts does not overlap.
func Overlaps(s1, e1, s2, e2 time.Time) bool {
	return s1.Before(e2) && s2.Before(e1)
}
