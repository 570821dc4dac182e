// internal/journal/writer.go
package journal

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/jpfieber/sleepsync/internal/clock"
	"github.com/jpfieber/sleepsync/internal/event"
	"github.com/jpfieber/sleepsync/internal/retry"
	"github.com/jpfieber/sleepsync/internal/vault"
)

// ErrTemplateNotSettled is returned when a freshly created document still
// contains unresolved template placeholders after the settle polling is
// exhausted. It surfaces as a creation failure.
var ErrTemplateNotSettled = errors.New("journal: template placeholders did not settle")

// Writer materializes events into documents, appending each entry exactly
// once. Creation of a not-yet-existing document is coalesced per path, so
// two concurrent appends for the same new path create it once; appends
// for different paths proceed independently.
type Writer struct {
	store vault.Store
	clk   clock.Clock
	loc   *time.Location

	// creations is the in-flight creation-job table keyed by document
	// path. Entries are released when the creation completes or fails.
	creations singleflight.Group

	// Per-path locks serialize the read-modify-write append cycle; the
	// document store has no transactions.
	mu    sync.Mutex
	locks map[string]*sync.Mutex

	readRetry   retry.Policy
	writeRetry  retry.Policy
	settleRetry retry.Policy
}

// NewWriter creates a Writer against the given document store.
func NewWriter(store vault.Store, clk clock.Clock, loc *time.Location) *Writer {
	return &Writer{
		store: store,
		clk:   clk,
		loc:   loc,
		locks: make(map[string]*sync.Mutex),
		// Reads and writes absorb transient store contention with a few
		// linear retries; template settling polls with exponential
		// backoff from 100ms capped at 1s for up to 10 rounds.
		readRetry:   retry.Linear(3, 250*time.Millisecond),
		writeRetry:  retry.Linear(3, 250*time.Millisecond),
		settleRetry: retry.Exponential(10, 100*time.Millisecond, time.Second),
	}
}

// Append materializes one event into the category's document for the
// event's date. It resolves the target, creates the document if needed
// (waiting out asynchronous template expansion), back-fills a missing
// wake duration, and appends the rendered entry unless an equivalent one
// is already present. The returned bool reports whether a line was added.
func (w *Writer) Append(ctx context.Context, cat Category, e event.Event) (Target, bool, error) {
	docPath, err := Resolve(e.Date, cat, w.loc)
	if err != nil {
		return Target{}, false, err
	}
	lock := w.pathLock(docPath)
	lock.Lock()
	defer lock.Unlock()

	target := Target{Path: docPath, AlreadyExisted: w.store.Exists(docPath)}

	if !target.AlreadyExisted {
		if err := w.createOnce(ctx, docPath, cat, e.Date); err != nil {
			return target, false, err
		}
	}

	content, err := w.read(ctx, docPath)
	if err != nil {
		return target, false, err
	}

	if e.Kind == event.KindWake && e.DurationHours == nil {
		d, err := w.backfillDuration(ctx, cat, e, content)
		if err != nil {
			return target, false, err
		}
		e.DurationHours = &d
	}

	if EntryExists(content, cat, e) {
		slog.Debug("entry already present", "path", docPath, "kind", e.Kind, "time", e.Time)
		return target, false, nil
	}

	line := RenderEntry(cat, e)
	updated := content
	if updated != "" && !strings.HasSuffix(updated, "\n") {
		updated += "\n"
	}
	updated += line + "\n"

	err = w.writeRetry.Do(ctx, w.clk, func() error {
		return w.store.Modify(docPath, updated)
	})
	if err != nil {
		return target, false, fmt.Errorf("append entry to %s: %w", docPath, err)
	}

	slog.Info("entry written", "path", docPath, "kind", e.Kind, "date", e.Date, "time", e.Time)
	return target, true, nil
}

// pathLock returns the per-path mutex, creating one if it doesn't exist.
func (w *Writer) pathLock(docPath string) *sync.Mutex {
	w.mu.Lock()
	defer w.mu.Unlock()

	if lock, ok := w.locks[docPath]; ok {
		return lock
	}
	lock := &sync.Mutex{}
	w.locks[docPath] = lock
	return lock
}

// createOnce creates the document at docPath exactly once across
// concurrent callers, expanding the category's template if configured,
// then waits until the content holds no unresolved placeholders.
func (w *Writer) createOnce(ctx context.Context, docPath string, cat Category, date string) error {
	_, err, _ := w.creations.Do(docPath, func() (any, error) {
		// A racing call may have finished creation while we queued.
		if w.store.Exists(docPath) {
			return nil, nil
		}

		if dir := path.Dir(docPath); dir != "." {
			// An already-existing folder is success, not an error.
			if err := w.store.CreateFolder(dir); err != nil {
				return nil, err
			}
		}

		body, err := w.initialBody(cat, date)
		if err != nil {
			return nil, err
		}

		if err := w.store.Create(docPath, body); err != nil {
			// Lost an external race; the document being there is all
			// that matters.
			if !w.store.Exists(docPath) {
				return nil, err
			}
		}

		return nil, w.awaitSettle(ctx, docPath)
	})
	w.creations.Forget(docPath)
	return err
}

// initialBody builds the content for a new document: the expanded
// category template when configured, or a minimal default. A template
// read failure falls back to the default rather than failing creation.
func (w *Writer) initialBody(cat Category, date string) (string, error) {
	noon, err := NoonOf(date, w.loc)
	if err != nil {
		return "", err
	}
	title := strings.TrimSuffix(path.Base(vault.FormatDate(cat.NameTemplate, noon)), ".md")

	if cat.TemplatePath != "" {
		raw, err := w.store.Read(cat.TemplatePath)
		if err != nil {
			slog.Warn("template read failed, using default body",
				"template", cat.TemplatePath, "error", err)
		} else {
			return vault.Expand(raw, noon, title), nil
		}
	}
	return "# " + title + "\n", nil
}

// awaitSettle re-reads a freshly created document until its content no
// longer contains template placeholder markers, for documents whose
// templates are expanded asynchronously by an external tool. Exhausting
// the polling budget is a materialization failure.
func (w *Writer) awaitSettle(ctx context.Context, docPath string) error {
	err := w.settleRetry.Do(ctx, w.clk, func() error {
		content, err := w.store.Read(docPath)
		if err != nil {
			return err
		}
		if vault.HasUnresolvedPlaceholders(content) {
			return ErrTemplateNotSettled
		}
		return nil
	})
	if errors.Is(err, ErrTemplateNotSettled) {
		return fmt.Errorf("create %s: %w", docPath, err)
	}
	return err
}

func (w *Writer) read(ctx context.Context, docPath string) (string, error) {
	var content string
	err := w.readRetry.Do(ctx, w.clk, func() error {
		var err error
		content, err = w.store.Read(docPath)
		return err
	})
	return content, err
}

// backfillDuration computes a wake event's duration from the most recent
// sleep entry: first in the wake day's own content, then in the previous
// calendar day's document. The subtraction adds a day when the session
// crossed midnight. Without any prior sleep entry the duration is zero.
func (w *Writer) backfillDuration(ctx context.Context, cat Category, e event.Event, content string) (float64, error) {
	sleepTime := FindLastSleepTime(content, cat)

	if sleepTime == "" {
		prevDay, err := NoonOf(e.Date, w.loc)
		if err != nil {
			return 0, err
		}
		prevDate := prevDay.AddDate(0, 0, -1).Format(event.DateLayout)
		prevPath, err := Resolve(prevDate, cat, w.loc)
		if err != nil {
			return 0, err
		}
		if w.store.Exists(prevPath) {
			prevContent, err := w.read(ctx, prevPath)
			if err != nil {
				return 0, err
			}
			sleepTime = FindLastSleepTime(prevContent, cat)
		}
	}

	if sleepTime == "" {
		slog.Debug("no prior sleep entry for duration back-fill", "date", e.Date, "time", e.Time)
		return 0, nil
	}
	return DurationBetween(sleepTime, e.Time)
}
