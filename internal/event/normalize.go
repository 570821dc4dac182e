// internal/event/normalize.go
package event

import (
	"time"

	"github.com/jpfieber/sleepsync/internal/source"
)

// Normalize converts one raw record into zero, one, or two canonical
// events, filtering each endpoint against the caller's requested window:
// the sleep event is emitted only if the session start falls on a day
// inside the window, the wake event only if the session end does. A
// session straddling the window boundary therefore contributes only the
// endpoints inside it — callers pad their query window by one day on each
// side to keep boundary-crossing sessions whole.
//
// Timestamps are interpreted in loc; the emitted Date/Time strings are
// local calendar values.
func Normalize(rec source.RawSleepRecord, window source.Window, userID string, loc *time.Location) []Event {
	var events []Event

	start := time.Unix(rec.StartTime, 0).In(loc)
	end := time.Unix(rec.EndTime, 0).In(loc)

	if window.ContainsDay(start) {
		events = append(events, Event{
			Kind:   KindSleep,
			Date:   start.Format(DateLayout),
			Time:   start.Format(TimeLayout),
			UserID: userID,
		})
	}

	if window.ContainsDay(end) {
		wake := Event{
			Kind:   KindWake,
			Date:   end.Format(DateLayout),
			Time:   end.Format(TimeLayout),
			UserID: userID,
		}
		// Source-reported duration wins; otherwise the writer back-fills
		// from the previous sleep entry at materialization time.
		if rec.DurationHours != nil {
			d := RoundHours(*rec.DurationHours)
			wake.DurationHours = &d
		}
		events = append(events, wake)
	}

	return events
}

// NormalizeAll normalizes a batch of raw records against one window.
func NormalizeAll(recs []source.RawSleepRecord, window source.Window, userID string, loc *time.Location) []Event {
	var events []Event
	for _, rec := range recs {
		events = append(events, Normalize(rec, window, userID, loc)...)
	}
	return events
}
