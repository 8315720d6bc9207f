package retry

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"
)

var quiet = slog.New(slog.NewTextHandler(io.Discard, nil))

func TestDo_SucceedsAfterFailures(t *testing.T) {
	calls := 0
	got, err := Do(context.Background(), Policy{Attempts: 3, Delay: time.Millisecond}, "flaky", quiet,
		func(ctx context.Context) (string, error) {
			calls++
			if calls < 3 {
				return "", errors.New("transient")
			}
			return "ok", nil
		})
	if err != nil {
		t.Fatalf("Do() error: %v", err)
	}
	if got != "ok" {
		t.Errorf("Do() = %q, want ok", got)
	}
	if calls != 3 {
		t.Errorf("calls = %d, want 3", calls)
	}
}

func TestDo_Exhausted(t *testing.T) {
	boom := errors.New("boom")
	calls := 0
	_, err := Do(context.Background(), Policy{Attempts: 4, Delay: time.Millisecond}, "down", quiet,
		func(ctx context.Context) (int, error) {
			calls++
			return 0, boom
		})
	if !errors.Is(err, ErrTooManyRetries) {
		t.Fatalf("error = %v, want ErrTooManyRetries", err)
	}
	if !errors.Is(err, boom) {
		t.Errorf("error = %v, should wrap last failure", err)
	}
	if calls != 4 {
		t.Errorf("calls = %d, want 4", calls)
	}
}

func TestDo_PermanentStopsImmediately(t *testing.T) {
	bad := errors.New("bad request")
	calls := 0
	_, err := Do(context.Background(), Policy{Attempts: 5, Delay: time.Millisecond}, "perm", quiet,
		func(ctx context.Context) (int, error) {
			calls++
			return 0, Permanent(bad)
		})
	if !errors.Is(err, bad) {
		t.Fatalf("error = %v, want %v", err, bad)
	}
	if errors.Is(err, ErrTooManyRetries) {
		t.Error("permanent error should not be reported as exhaustion")
	}
	if calls != 1 {
		t.Errorf("calls = %d, want 1", calls)
	}
}

func TestDo_ZeroAttemptsRunsOnce(t *testing.T) {
	calls := 0
	_, err := Do(context.Background(), Policy{}, "once", nil, func(ctx context.Context) (int, error) {
		calls++
		return 0, errors.New("fail")
	})
	if err == nil {
		t.Fatal("expected error")
	}
	if calls != 1 {
		t.Errorf("calls = %d, want 1", calls)
	}
}
