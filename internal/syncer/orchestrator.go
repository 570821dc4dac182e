// internal/syncer/orchestrator.go
package syncer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/jpfieber/sleepsync/internal/clock"
	"github.com/jpfieber/sleepsync/internal/event"
	"github.com/jpfieber/sleepsync/internal/journal"
	"github.com/jpfieber/sleepsync/internal/notify"
	"github.com/jpfieber/sleepsync/internal/source"
)

// Progress is reported after each materialized event.
type Progress struct {
	Event         event.Event
	DaysProcessed int
	TotalDays     int
}

// Destinations selects which categories receive output. A non-nil
// override in Options applies to that one call only; the configured
// enable flags are never mutated.
type Destinations struct {
	Journal   bool
	SleepNote bool
}

// Options configures a single sync run. Start and End are YYYY-MM-DD;
// when empty the run covers the rolling default window ending today.
type Options struct {
	Start        string
	End          string
	Destinations *Destinations
	OnProgress   func(Progress)
}

// Result summarizes one sync run. Cancelled is a distinguished outcome,
// not a failure.
type Result struct {
	RunID     string
	Events    int
	Written   int
	Days      int
	Cancelled bool
}

// Params wires an Orchestrator.
type Params struct {
	Source      source.Source
	Writer      *journal.Writer
	Journal     journal.Category
	SleepNote   journal.Category
	JournalOn   bool
	SleepNoteOn bool
	UserID      string
	DefaultDays int
	Clock       clock.Clock
	Location    *time.Location
	Notifier    notify.Notifier
}

// Orchestrator drives one synchronization end to end: fetch, normalize,
// merge, then materialize each event strictly in order. All I/O is
// sequential; there is at most one writer per document at a time.
type Orchestrator struct {
	p Params
}

func New(p Params) *Orchestrator {
	if p.DefaultDays <= 0 {
		p.DefaultDays = 7
	}
	if p.Notifier == nil {
		p.Notifier = notify.Log{}
	}
	return &Orchestrator{p: p}
}

// Sync runs one synchronization. The query window is padded by one day on
// each side so sessions crossing the window boundary keep both endpoints.
// Cancellation is cooperative: it is checked before each event's
// materialization, and a cancellation that interrupts the in-flight fetch
// or write is folded into the same outcome. Prior writes stand, the rest
// are abandoned, and the run reports Cancelled instead of an error.
// Exactly one summary notification is emitted per run.
func (o *Orchestrator) Sync(ctx context.Context, opts Options) (Result, error) {
	res := Result{RunID: uuid.New().String()}

	window, err := o.resolveWindow(opts)
	if err != nil {
		return res, err
	}
	padded := window.Pad(1)

	slog.Info("sync started",
		"run_id", res.RunID,
		"source", o.p.Source.Name(),
		"window_start", window.Start.Format(event.DateLayout),
		"window_end", window.End.Format(event.DateLayout),
	)

	cats := o.destinations(opts.Destinations)
	if len(cats) == 0 {
		o.notify(fmt.Sprintf("Sleep sync: no destinations enabled (run %s)", res.RunID))
		return res, nil
	}

	records, err := o.p.Source.FetchEvents(ctx, padded)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return o.cancelResult(res), nil
		}
		o.notify(fmt.Sprintf("Sleep sync failed: %v", err))
		return res, fmt.Errorf("fetch from %s: %w", o.p.Source.Name(), err)
	}

	merged := event.Merge(event.NormalizeAll(records, padded, o.p.UserID, o.p.Location))
	res.Events = len(merged)
	totalDays := window.Days()

	daysSeen := make(map[string]bool)
	for _, e := range merged {
		if ctx.Err() != nil {
			return o.cancelResult(res), nil
		}

		for _, cat := range cats {
			target, wrote, err := o.p.Writer.Append(ctx, cat, e)
			if err != nil {
				// A cancellation that lands inside the writer's retry
				// loops is still a cancellation, not a failure.
				if errors.Is(err, context.Canceled) {
					return o.cancelResult(res), nil
				}
				o.notify(fmt.Sprintf("Sleep sync failed: %v", err))
				return res, fmt.Errorf("materialize %s %s %s into %s: %w",
					e.Kind, e.Date, e.Time, cat.Name, err)
			}
			if wrote {
				res.Written++
			}
			if !target.AlreadyExisted {
				slog.Info("document created", "path", target.Path, "category", cat.Name)
			}
		}

		daysSeen[e.Date] = true
		if opts.OnProgress != nil {
			opts.OnProgress(Progress{
				Event:         e,
				DaysProcessed: len(daysSeen),
				TotalDays:     totalDays,
			})
		}
	}

	res.Days = len(daysSeen)
	slog.Info("sync finished",
		"run_id", res.RunID, "events", res.Events, "written", res.Written, "days", res.Days)
	o.notify(fmt.Sprintf("Sleep sync complete: %d events, %d new entries across %d days",
		res.Events, res.Written, res.Days))
	return res, nil
}

// cancelResult finalizes a cancelled run: entries already written stand
// and the outcome is the distinguished cancelled result, not an error.
func (o *Orchestrator) cancelResult(res Result) Result {
	res.Cancelled = true
	slog.Info("sync cancelled", "run_id", res.RunID, "written", res.Written)
	o.notify(fmt.Sprintf("Sleep sync cancelled after %d entries", res.Written))
	return res
}

// resolveWindow returns the unpadded effective window: the explicit
// start/end dates when given, otherwise the rolling default ending today.
func (o *Orchestrator) resolveWindow(opts Options) (source.Window, error) {
	if opts.Start != "" || opts.End != "" {
		start, err := time.ParseInLocation(event.DateLayout, opts.Start, o.p.Location)
		if err != nil {
			return source.Window{}, fmt.Errorf("parse start date: %w", err)
		}
		end, err := time.ParseInLocation(event.DateLayout, opts.End, o.p.Location)
		if err != nil {
			return source.Window{}, fmt.Errorf("parse end date: %w", err)
		}
		if end.Before(start) {
			return source.Window{}, fmt.Errorf("end date %s precedes start date %s", opts.End, opts.Start)
		}
		return source.Window{Start: start, End: end}, nil
	}

	today := o.p.Clock.Now().In(o.p.Location)
	return source.Window{
		Start: today.AddDate(0, 0, -(o.p.DefaultDays - 1)),
		End:   today,
	}, nil
}

// destinations returns the categories active for this call: the override,
// when present, is scoped to the call and leaves configuration untouched.
func (o *Orchestrator) destinations(override *Destinations) []journal.Category {
	journalOn := o.p.JournalOn
	sleepOn := o.p.SleepNoteOn
	if override != nil {
		journalOn = override.Journal
		sleepOn = override.SleepNote
	}

	var cats []journal.Category
	if journalOn {
		cats = append(cats, o.p.Journal)
	}
	if sleepOn {
		cats = append(cats, o.p.SleepNote)
	}
	return cats
}

func (o *Orchestrator) notify(summary string) {
	if err := o.p.Notifier.Notify(summary); err != nil {
		slog.Warn("summary notification failed", "error", err)
	}
}
