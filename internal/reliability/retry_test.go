package reliability

import (
	"context"
	"errors"
	"testing"
	"time"
)

type recordingSleeper struct {
	delays []time.Duration
}

func (r *recordingSleeper) sleep(_ context.Context, d time.Duration) error {
	r.delays = append(r.delays, d)
	return nil
}

func TestRetrySucceedsAfterTransientFailures(t *testing.T) {
	rec := &recordingSleeper{}
	calls := 0
	err := Retry(context.Background(), Policy{Attempts: 3, Base: time.Second, Sleep: rec.sleep}, UnavailableOnly,
		func(context.Context, int) error {
			calls++
			if calls < 3 {
				return &StatusError{Code: 503}
			}
			return nil
		})
	if err != nil {
		t.Fatalf("Retry() error = %v", err)
	}
	if calls != 3 {
		t.Fatalf("calls = %d, want 3", calls)
	}
	want := []time.Duration{time.Second, 2 * time.Second}
	if len(rec.delays) != len(want) || rec.delays[0] != want[0] || rec.delays[1] != want[1] {
		t.Fatalf("delays = %v, want %v", rec.delays, want)
	}
}

func TestRetryStopsOnFinalStatus(t *testing.T) {
	rec := &recordingSleeper{}
	calls := 0
	err := Retry(context.Background(), Policy{Attempts: 3, Base: time.Second, Sleep: rec.sleep}, UnavailableOnly,
		func(context.Context, int) error {
			calls++
			return &StatusError{Code: 400}
		})
	if HTTPStatus(err) != 400 {
		t.Fatalf("Retry() error = %v, want HTTP 400", err)
	}
	if calls != 1 || len(rec.delays) != 0 {
		t.Fatalf("calls = %d sleeps = %d, want 1 and 0", calls, len(rec.delays))
	}
}

func TestRetryReturnsLastErrorWhenExhausted(t *testing.T) {
	rec := &recordingSleeper{}
	calls := 0
	err := Retry(context.Background(), Policy{Attempts: 3, Base: time.Millisecond, Sleep: rec.sleep}, nil,
		func(_ context.Context, attempt int) error {
			calls++
			if attempt == 3 {
				return errors.New("third")
			}
			return errors.New("earlier")
		})
	if err == nil || err.Error() != "third" {
		t.Fatalf("Retry() error = %v, want third", err)
	}
	if calls != 3 || len(rec.delays) != 2 {
		t.Fatalf("calls = %d sleeps = %d, want 3 and 2", calls, len(rec.delays))
	}
}

func TestRetryHonoursCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	calls := 0
	err := Retry(ctx, Policy{Attempts: 5, Base: time.Hour}, nil, func(context.Context, int) error {
		calls++
		cancel()
		return errors.New("boom")
	})
	if err == nil {
		t.Fatalf("Retry() expected error")
	}
	if calls != 1 {
		t.Fatalf("calls = %d, want 1", calls)
	}
}

func TestSleepContextCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := SleepContext(ctx, time.Hour); !errors.Is(err, context.Canceled) {
		t.Fatalf("SleepContext() error = %v, want context.Canceled", err)
	}
}
