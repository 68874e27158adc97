// Package usage carries the daily per-tool session counters between stateless requests.
// The server never stores the ledger; it signs what it hands out and verifies what it
// gets back.
package usage

import (
	"time"

	"github.com/zhouzirui/boundary-tools/backend/internal/model/tool"
)

// DayLayout is the calendar-day format of Ledger.Day, always in UTC.
const DayLayout = "2006-01-02"

// Ledger is the authenticated, client-held record of today's session starts.
type Ledger struct {
	Day       string         `json:"day"`
	Sessions  map[string]int `json:"sessions"`
	Signature string         `json:"sig,omitempty"`
}

// Today returns the UTC calendar day containing now.
func Today(now time.Time) string {
	return now.UTC().Format(DayLayout)
}

// NextDay returns the UTC midnight that ends the day containing now.
func NextDay(now time.Time) time.Time {
	y, m, d := now.UTC().Date()
	return time.Date(y, m, d+1, 0, 0, 0, 0, time.UTC)
}

// Fresh returns a zeroed ledger for the day containing now.
func Fresh(now time.Time) Ledger {
	return Ledger{Day: Today(now), Sessions: map[string]int{}}
}

// Count returns the sessions already started today for a tool.
func (l Ledger) Count(toolID string) int {
	return l.Sessions[toolID]
}

// Equal reports whether two ledgers hold the same day and counters, ignoring signatures.
func (l Ledger) Equal(other Ledger) bool {
	if l.Day != other.Day || len(l.Sessions) != len(other.Sessions) {
		return false
	}
	for k, v := range l.Sessions {
		if ov, ok := other.Sessions[k]; !ok || ov != v {
			return false
		}
	}
	return true
}

func (l Ledger) clone() Ledger {
	sessions := make(map[string]int, len(l.Sessions)+1)
	for k, v := range l.Sessions {
		sessions[k] = v
	}
	return Ledger{Day: l.Day, Sessions: sessions}
}

// AdmitSessionStart applies the daily session cap for the first turn of a session.
// A ledger from a previous day is replaced by a zeroed one before the check. When
// admitted, the tool's counter is incremented by exactly one; otherwise the returned
// ledger equals the input.
//
// Two first turns racing with the same cookie both see the pre-increment ledger and
// may both be admitted. Closing that gap needs a server-side atomic counter.
func AdmitSessionStart(t tool.Tool, l Ledger, now time.Time) (bool, Ledger) {
	today := Today(now)
	if l.Day != today || l.Sessions == nil {
		l = Fresh(now)
	}

	if l.Count(t.ID) >= t.MaxSessionsPerDay {
		return false, l
	}

	updated := l.clone()
	updated.Sessions[t.ID]++
	return true, updated
}
