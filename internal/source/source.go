// internal/source/source.go
package source

import (
	"context"
	"time"
)

// RawSleepRecord is one sleep session as reported by an adapter, before
// normalization. Timestamps are epoch seconds. Optional fields are left
// nil/empty when the source did not provide them.
type RawSleepRecord struct {
	StartTime     int64
	EndTime       int64
	DurationHours *float64
	// StageHours holds per-stage totals ("deep", "light", "rem") in hours.
	StageHours map[string]float64
	// Metrics holds labeled free-text fields from the source (cycles, noise,
	// snoring, comment, graph), kept as strings.
	Metrics     map[string]string
	Description string
}

// Window is an inclusive range of calendar days. Start and End are
// interpreted by calendar day in their own location; intra-day clock time
// is ignored.
type Window struct {
	Start time.Time
	End   time.Time
}

// ContainsDay reports whether t's calendar day falls inside the window,
// inclusive on both ends. Days are compared as YYYY-MM-DD strings so the
// rule is identical for every adapter: exactly midnight belongs to the
// new day.
func (w Window) ContainsDay(t time.Time) bool {
	day := t.Format("2006-01-02")
	return day >= w.Start.Format("2006-01-02") && day <= w.End.Format("2006-01-02")
}

// Pad returns the window widened by n days on each side.
func (w Window) Pad(n int) Window {
	return Window{
		Start: w.Start.AddDate(0, 0, -n),
		End:   w.End.AddDate(0, 0, n),
	}
}

// Days returns the number of calendar days the window spans, inclusive.
func (w Window) Days() int {
	start := time.Date(w.Start.Year(), w.Start.Month(), w.Start.Day(), 0, 0, 0, 0, w.Start.Location())
	end := time.Date(w.End.Year(), w.End.Month(), w.End.Day(), 0, 0, 0, 0, w.End.Location())
	return int(end.Sub(start).Hours()/24) + 1
}

// Source fetches raw sleep sessions overlapping the given window.
// Implementations must treat the window as inclusive by calendar day and
// may return sessions whose endpoints fall outside it; the normalizer
// filters per endpoint.
type Source interface {
	Name() string
	FetchEvents(ctx context.Context, window Window) ([]RawSleepRecord, error)
}
