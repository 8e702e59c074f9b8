package core

import "time"

// RateState captures the shared AniList request-budget state. It is owned by
// the engine governor; everything else reads it through snapshots.
type RateState struct {
	// Remaining is the believed number of requests left in the current
	// window. Only meaningful when RemainingKnown is true.
	Remaining      int
	RemainingKnown bool

	// WindowStart marks when the budget was last at its maximum, i.e. the
	// start of the current burst window. Zero when no burst is in progress.
	WindowStart time.Time

	// PauseUntil is the end of an active throttling pause. Zero when no
	// pause is active. The pause is advisory at the data layer: calls are
	// still attempted, only an actual 429 enforces a stop.
	PauseUntil time.Time
}

// PauseActive reports whether a throttling pause is believed active at now.
func (s RateState) PauseActive(now time.Time) bool {
	return !s.PauseUntil.IsZero() && now.Before(s.PauseUntil)
}
