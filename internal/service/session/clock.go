// Package session decides, from client-declared values and the wall clock, whether a
// turn still fits inside its session envelope.
package session

import (
	"math"
	"time"
)

// DefaultDuration is the wall-clock budget of one session.
const DefaultDuration = 15 * time.Minute

// Window is the evaluated position of one turn inside its session.
type Window struct {
	// TimeExpired is set once the session's clock has run out.
	TimeExpired bool
	// CountExpired is set when the message cap was reached before this turn.
	CountExpired bool
	// IsFinalTurn is set when this turn takes the last slot or the clock ran out.
	IsFinalTurn bool
	// Start is the session start actually used, after substituting missing values.
	Start time.Time
	// Remaining is the number of turns left after this one, never negative.
	Remaining int
}

// Deadline is the instant the session stops accepting turns.
func (w Window) Deadline(duration time.Duration) time.Time {
	return w.Start.Add(duration)
}

// Evaluate computes the window for a turn. A missing, zero or non-finite
// sessionStartMs is treated as a session starting now. Negative counts are clamped to 0.
func Evaluate(maxUserMessages, userMessageCount int, sessionStartMs *float64, now time.Time, duration time.Duration) Window {
	if duration <= 0 {
		duration = DefaultDuration
	}
	if userMessageCount < 0 {
		userMessageCount = 0
	}

	start := resolveStart(sessionStartMs, now)
	timeExpired := now.Sub(start) >= duration
	countExpired := userMessageCount >= maxUserMessages

	remaining := maxUserMessages - userMessageCount - 1
	if remaining < 0 {
		remaining = 0
	}

	return Window{
		TimeExpired:  timeExpired,
		CountExpired: countExpired,
		IsFinalTurn:  userMessageCount+1 >= maxUserMessages || timeExpired,
		Start:        start,
		Remaining:    remaining,
	}
}

func resolveStart(sessionStartMs *float64, now time.Time) time.Time {
	if sessionStartMs == nil {
		return now
	}
	ms := *sessionStartMs
	if ms == 0 || math.IsNaN(ms) || math.IsInf(ms, 0) {
		return now
	}
	return time.UnixMilli(int64(ms))
}
