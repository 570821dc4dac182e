package syncer

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/jpfieber/sleepsync/internal/clock"
	"github.com/jpfieber/sleepsync/internal/journal"
	"github.com/jpfieber/sleepsync/internal/source"
	"github.com/jpfieber/sleepsync/internal/vault"
)

type fakeSource struct {
	records []source.RawSleepRecord
	err     error
	windows []source.Window
}

func (f *fakeSource) Name() string { return "fake" }

func (f *fakeSource) FetchEvents(ctx context.Context, w source.Window) ([]source.RawSleepRecord, error) {
	f.windows = append(f.windows, w)
	return f.records, f.err
}

type fakeNotifier struct {
	messages []string
}

func (f *fakeNotifier) Notify(summary string) error {
	f.messages = append(f.messages, summary)
	return nil
}

func session(start, end time.Time) source.RawSleepRecord {
	return source.RawSleepRecord{StartTime: start.Unix(), EndTime: end.Unix()}
}

func journalCategory() journal.Category {
	return journal.Category{
		Name:           "journal",
		Folder:         "Journal",
		Subfolder:      "YYYY/YYYY-MM",
		NameTemplate:   "YYYY-MM-DD ddd",
		AsleepTemplate: "(time:: <mtime>) Asleep at <time>",
		AwakeTemplate:  "(time:: <mtime>) Awake at <time> after <duration> hours of sleep",
		Prefix:         "s",
	}
}

func sleepNoteCategory() journal.Category {
	cat := journalCategory()
	cat.Name = "sleepnote"
	cat.Folder = "SleepNotes"
	cat.Subfolder = ""
	cat.NameTemplate = "YYYY-MM-DD"
	return cat
}

type fixture struct {
	orch     *Orchestrator
	src      *fakeSource
	store    *vault.FileStore
	notifier *fakeNotifier
	clk      *clock.Fake
}

func newFixture(t *testing.T, records []source.RawSleepRecord) *fixture {
	t.Helper()
	src := &fakeSource{records: records}
	store := vault.NewFileStore(t.TempDir())
	clk := clock.NewFake(time.Date(2024, 1, 8, 9, 0, 0, 0, time.UTC))
	notifier := &fakeNotifier{}

	orch := New(Params{
		Source:      src,
		Writer:      journal.NewWriter(store, clk, time.UTC),
		Journal:     journalCategory(),
		SleepNote:   sleepNoteCategory(),
		JournalOn:   true,
		SleepNoteOn: false,
		UserID:      "u1",
		DefaultDays: 7,
		Clock:       clk,
		Location:    time.UTC,
		Notifier:    notifier,
	})
	return &fixture{orch: orch, src: src, store: store, notifier: notifier, clk: clk}
}

func TestSync_MaterializesEvents(t *testing.T) {
	f := newFixture(t, []source.RawSleepRecord{
		session(
			time.Date(2024, 1, 7, 23, 15, 0, 0, time.UTC),
			time.Date(2024, 1, 8, 6, 45, 0, 0, time.UTC),
		),
	})

	var progress []Progress
	res, err := f.orch.Sync(context.Background(), Options{
		Start: "2024-01-07",
		End:   "2024-01-08",
		OnProgress: func(p Progress) {
			progress = append(progress, p)
		},
	})
	if err != nil {
		t.Fatalf("Sync() error = %v", err)
	}
	if res.RunID == "" {
		t.Error("Sync() result has empty run ID")
	}
	if res.Events != 2 || res.Written != 2 || res.Cancelled {
		t.Errorf("result = %+v, want 2 events, 2 written", res)
	}
	if res.Days != 2 {
		t.Errorf("result.Days = %d, want 2", res.Days)
	}

	sleepDoc, err := f.store.Read("Journal/2024/2024-01/2024-01-07 Sun.md")
	if err != nil {
		t.Fatalf("sleep day document: %v", err)
	}
	if !strings.Contains(sleepDoc, "Asleep at 23:15") {
		t.Errorf("sleep entry missing: %q", sleepDoc)
	}

	wakeDoc, err := f.store.Read("Journal/2024/2024-01/2024-01-08 Mon.md")
	if err != nil {
		t.Fatalf("wake day document: %v", err)
	}
	if !strings.Contains(wakeDoc, "Awake at 06:45 after 7.5 hours of sleep") {
		t.Errorf("wake entry with back-filled duration missing: %q", wakeDoc)
	}

	if len(f.notifier.messages) != 1 {
		t.Errorf("notifications = %v, want exactly one summary", f.notifier.messages)
	}
	if len(progress) != 2 {
		t.Errorf("progress reported %d times, want 2", len(progress))
	}
	if last := progress[len(progress)-1]; last.DaysProcessed != 2 || last.TotalDays != 2 {
		t.Errorf("final progress = %+v", last)
	}
}

func TestSync_RerunAppendsNothing(t *testing.T) {
	f := newFixture(t, []source.RawSleepRecord{
		session(
			time.Date(2024, 1, 7, 23, 15, 0, 0, time.UTC),
			time.Date(2024, 1, 8, 6, 45, 0, 0, time.UTC),
		),
	})
	opts := Options{Start: "2024-01-07", End: "2024-01-08"}

	if _, err := f.orch.Sync(context.Background(), opts); err != nil {
		t.Fatalf("first Sync() error = %v", err)
	}
	res, err := f.orch.Sync(context.Background(), opts)
	if err != nil {
		t.Fatalf("second Sync() error = %v", err)
	}
	if res.Written != 0 {
		t.Errorf("second run wrote %d entries, want 0", res.Written)
	}

	doc, _ := f.store.Read("Journal/2024/2024-01/2024-01-07 Sun.md")
	if n := strings.Count(doc, "Asleep at 23:15"); n != 1 {
		t.Errorf("entry appears %d times after rerun, want 1", n)
	}
}

func TestSync_PadsQueryWindow(t *testing.T) {
	f := newFixture(t, nil)

	if _, err := f.orch.Sync(context.Background(), Options{Start: "2024-01-07", End: "2024-01-08"}); err != nil {
		t.Fatalf("Sync() error = %v", err)
	}
	if len(f.src.windows) != 1 {
		t.Fatalf("source queried %d times, want 1", len(f.src.windows))
	}
	w := f.src.windows[0]
	if got := w.Start.Format("2006-01-02"); got != "2024-01-06" {
		t.Errorf("query start = %s, want 2024-01-06", got)
	}
	if got := w.End.Format("2006-01-02"); got != "2024-01-09" {
		t.Errorf("query end = %s, want 2024-01-09", got)
	}
}

func TestSync_DefaultRollingWindow(t *testing.T) {
	f := newFixture(t, nil)

	if _, err := f.orch.Sync(context.Background(), Options{}); err != nil {
		t.Fatalf("Sync() error = %v", err)
	}
	w := f.src.windows[0]
	// Seven days ending on the fake clock's today, padded by one.
	if got := w.Start.Format("2006-01-02"); got != "2024-01-01" {
		t.Errorf("query start = %s, want 2024-01-01", got)
	}
	if got := w.End.Format("2006-01-02"); got != "2024-01-09" {
		t.Errorf("query end = %s, want 2024-01-09", got)
	}
}

func TestSync_DestinationOverrideIsScoped(t *testing.T) {
	records := []source.RawSleepRecord{
		session(
			time.Date(2024, 1, 7, 23, 15, 0, 0, time.UTC),
			time.Date(2024, 1, 8, 6, 45, 0, 0, time.UTC),
		),
	}
	f := newFixture(t, records)
	opts := Options{Start: "2024-01-07", End: "2024-01-08"}

	// Journal is configured on, sleep note off. The override flips both
	// for this call only.
	opts.Destinations = &Destinations{Journal: false, SleepNote: true}
	if _, err := f.orch.Sync(context.Background(), opts); err != nil {
		t.Fatalf("Sync() with override error = %v", err)
	}
	if f.store.Exists("Journal/2024/2024-01/2024-01-07 Sun.md") {
		t.Error("journal document created despite override")
	}
	if !f.store.Exists("SleepNotes/2024-01-07.md") {
		t.Error("sleep note document missing")
	}

	// The next run without an override falls back to configuration.
	opts.Destinations = nil
	if _, err := f.orch.Sync(context.Background(), opts); err != nil {
		t.Fatalf("Sync() without override error = %v", err)
	}
	if !f.store.Exists("Journal/2024/2024-01/2024-01-07 Sun.md") {
		t.Error("journal document missing after override-free run")
	}
}

func TestSync_NoDestinations(t *testing.T) {
	f := newFixture(t, nil)

	res, err := f.orch.Sync(context.Background(), Options{
		Start:        "2024-01-07",
		End:          "2024-01-08",
		Destinations: &Destinations{},
	})
	if err != nil {
		t.Fatalf("Sync() error = %v", err)
	}
	if res.Events != 0 || res.Written != 0 {
		t.Errorf("result = %+v, want empty", res)
	}
	if len(f.src.windows) != 0 {
		t.Error("source queried with no destinations enabled")
	}
	if len(f.notifier.messages) != 1 {
		t.Errorf("notifications = %v, want one", f.notifier.messages)
	}
}

func TestSync_CancellationBetweenEvents(t *testing.T) {
	f := newFixture(t, []source.RawSleepRecord{
		session(
			time.Date(2024, 1, 6, 23, 0, 0, 0, time.UTC),
			time.Date(2024, 1, 7, 7, 0, 0, 0, time.UTC),
		),
		session(
			time.Date(2024, 1, 7, 23, 0, 0, 0, time.UTC),
			time.Date(2024, 1, 8, 7, 0, 0, 0, time.UTC),
		),
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	res, err := f.orch.Sync(ctx, Options{
		Start: "2024-01-06",
		End:   "2024-01-08",
		OnProgress: func(Progress) {
			// Cancel after the first materialized event; the remaining
			// events must be abandoned without error.
			cancel()
		},
	})
	if err != nil {
		t.Fatalf("Sync() error = %v, cancellation must not be an error", err)
	}
	if !res.Cancelled {
		t.Fatal("result.Cancelled = false")
	}
	if res.Written != 1 {
		t.Errorf("written = %d, want 1 (prior writes stand)", res.Written)
	}
	if !f.store.Exists("Journal/2024/2024-01/2024-01-06 Sat.md") {
		t.Error("first event's document missing")
	}
}

// interruptingStore cancels the run the first time the writer reads a
// document, as a SIGINT landing mid-write would.
type interruptingStore struct {
	*vault.FileStore
	cancel context.CancelFunc
}

func (s *interruptingStore) Read(path string) (string, error) {
	s.cancel()
	return "", errors.New("read interrupted")
}

func TestSync_CancellationDuringWrite(t *testing.T) {
	src := &fakeSource{records: []source.RawSleepRecord{
		session(
			time.Date(2024, 1, 7, 23, 15, 0, 0, time.UTC),
			time.Date(2024, 1, 8, 6, 45, 0, 0, time.UTC),
		),
	}}
	clk := clock.NewFake(time.Date(2024, 1, 8, 9, 0, 0, 0, time.UTC))
	notifier := &fakeNotifier{}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	store := &interruptingStore{FileStore: vault.NewFileStore(t.TempDir()), cancel: cancel}

	orch := New(Params{
		Source:      src,
		Writer:      journal.NewWriter(store, clk, time.UTC),
		Journal:     journalCategory(),
		JournalOn:   true,
		UserID:      "u1",
		DefaultDays: 7,
		Clock:       clk,
		Location:    time.UTC,
		Notifier:    notifier,
	})

	res, err := orch.Sync(ctx, Options{Start: "2024-01-07", End: "2024-01-08"})
	if err != nil {
		t.Fatalf("Sync() error = %v, mid-write cancellation must not be a failure", err)
	}
	if !res.Cancelled {
		t.Fatal("result.Cancelled = false for cancellation during a write")
	}
	if len(notifier.messages) != 1 || !strings.Contains(notifier.messages[0], "cancelled") {
		t.Errorf("notifications = %v, want one cancelled summary", notifier.messages)
	}
}

func TestSync_CancellationDuringFetch(t *testing.T) {
	f := newFixture(t, nil)
	f.src.err = context.Canceled

	res, err := f.orch.Sync(context.Background(), Options{Start: "2024-01-07", End: "2024-01-08"})
	if err != nil {
		t.Fatalf("Sync() error = %v, cancelled fetch must not be a failure", err)
	}
	if !res.Cancelled {
		t.Fatal("result.Cancelled = false for cancellation during fetch")
	}
	if len(f.notifier.messages) != 1 || !strings.Contains(f.notifier.messages[0], "cancelled") {
		t.Errorf("notifications = %v, want one cancelled summary", f.notifier.messages)
	}
}

func TestSync_FetchFailure(t *testing.T) {
	f := newFixture(t, nil)
	f.src.err = context.DeadlineExceeded

	_, err := f.orch.Sync(context.Background(), Options{Start: "2024-01-07", End: "2024-01-08"})
	if err == nil {
		t.Fatal("Sync() with failing source succeeded, want error")
	}
	if len(f.notifier.messages) != 1 || !strings.Contains(f.notifier.messages[0], "failed") {
		t.Errorf("notifications = %v, want one failure summary", f.notifier.messages)
	}
}

func TestSync_InvalidDates(t *testing.T) {
	f := newFixture(t, nil)

	if _, err := f.orch.Sync(context.Background(), Options{Start: "07/01/2024", End: "2024-01-08"}); err == nil {
		t.Error("Sync() with malformed start date succeeded, want error")
	}
	if _, err := f.orch.Sync(context.Background(), Options{Start: "2024-01-08", End: "2024-01-07"}); err == nil {
		t.Error("Sync() with end before start succeeded, want error")
	}
}
