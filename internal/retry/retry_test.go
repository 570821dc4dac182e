package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jpfieber/sleepsync/internal/clock"
)

func TestNextDelay_Linear(t *testing.T) {
	p := Linear(3, 250*time.Millisecond)
	for attempt := 1; attempt <= 3; attempt++ {
		if got := p.NextDelay(attempt); got != 250*time.Millisecond {
			t.Errorf("attempt %d: delay = %v, want 250ms", attempt, got)
		}
	}
}

func TestNextDelay_ExponentialCapped(t *testing.T) {
	p := Exponential(10, 100*time.Millisecond, time.Second)

	want := []time.Duration{
		100 * time.Millisecond,
		200 * time.Millisecond,
		400 * time.Millisecond,
		800 * time.Millisecond,
		time.Second,
		time.Second,
	}
	for i, w := range want {
		if got := p.NextDelay(i + 1); got != w {
			t.Errorf("attempt %d: delay = %v, want %v", i+1, got, w)
		}
	}
}

func TestDo_SucceedsAfterFailures(t *testing.T) {
	clk := clock.NewFake(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC))
	p := Linear(3, 250*time.Millisecond)

	calls := 0
	err := p.Do(context.Background(), clk, func() error {
		calls++
		if calls < 3 {
			return errors.New("transient")
		}
		return nil
	})
	if err != nil {
		t.Fatalf("Do() error = %v", err)
	}
	if calls != 3 {
		t.Errorf("calls = %d, want 3", calls)
	}
	if len(clk.Slept) != 2 {
		t.Errorf("slept %d times, want 2", len(clk.Slept))
	}
}

func TestDo_ExhaustsAttempts(t *testing.T) {
	clk := clock.NewFake(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC))
	p := Linear(3, 10*time.Millisecond)

	failure := errors.New("persistent")
	calls := 0
	err := p.Do(context.Background(), clk, func() error {
		calls++
		return failure
	})
	if !errors.Is(err, failure) {
		t.Fatalf("Do() error = %v, want %v", err, failure)
	}
	if calls != 3 {
		t.Errorf("calls = %d, want 3", calls)
	}
}

func TestDo_CancelledContext(t *testing.T) {
	clk := clock.NewFake(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC))
	p := Linear(5, 10*time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	calls := 0
	err := p.Do(ctx, clk, func() error {
		calls++
		return errors.New("should not matter")
	})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("Do() error = %v, want context.Canceled", err)
	}
	if calls != 0 {
		t.Errorf("calls = %d, want 0", calls)
	}
}
