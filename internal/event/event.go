// internal/event/event.go
package event

import (
	"math"
	"sort"
)

// Kind distinguishes the two canonical event types.
type Kind string

const (
	KindSleep Kind = "sleep"
	KindWake  Kind = "wake"
)

// Layouts for the canonical date and time fields.
const (
	DateLayout = "2006-01-02"
	TimeLayout = "15:04"
)

// Event is one canonical sleep or wake moment. Sleep events carry no
// duration; the duration of a session is recorded on the wake event, or
// back-filled by the writer from the previous sleep entry. Events are
// never mutated after creation.
type Event struct {
	Kind          Kind
	Date          string // YYYY-MM-DD
	Time          string // HH:mm
	DurationHours *float64
	UserID        string
}

// identity is the exact dedup tuple: no two events in a merged sequence
// may agree on all four fields.
func (e Event) identity() string {
	return string(e.Kind) + "|" + e.Date + "|" + e.Time + "|" + e.UserID
}

// kindRank orders sleep before wake on exact (date, time) ties: an
// intra-day nap cannot be recorded as ending before it starts.
func kindRank(k Kind) int {
	if k == KindSleep {
		return 0
	}
	return 1
}

// Less reports whether a sorts before b under the canonical ordering:
// ascending by (date, time), sleep before wake on ties.
func Less(a, b Event) bool {
	if a.Date != b.Date {
		return a.Date < b.Date
	}
	if a.Time != b.Time {
		return a.Time < b.Time
	}
	return kindRank(a.Kind) < kindRank(b.Kind)
}

// Merge concatenates event batches from one or more adapters over possibly
// overlapping windows and returns a single sequence sorted by
// (date, time, kind) with exact duplicates removed. The sort is stable so
// equal-identity events keep their batch order before dedup.
func Merge(batches ...[]Event) []Event {
	var all []Event
	for _, b := range batches {
		all = append(all, b...)
	}
	sort.SliceStable(all, func(i, j int) bool { return Less(all[i], all[j]) })

	merged := all[:0]
	seen := make(map[string]bool, len(all))
	for _, e := range all {
		id := e.identity()
		if seen[id] {
			continue
		}
		seen[id] = true
		merged = append(merged, e)
	}
	return merged
}

// RoundHours rounds a duration in hours to one decimal place, clamping
// negative values to zero.
func RoundHours(h float64) float64 {
	if h < 0 {
		return 0
	}
	return math.Round(h*10) / 10
}
