package utils

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestRetryDo(t *testing.T) {
	r := &RetryConfig{MaxAttempts: 3, BaseDelay: time.Millisecond}

	calls := 0
	err := r.Do(context.Background(), "op", func() error {
		calls++
		if calls < 3 {
			return errors.New("flaky")
		}
		return nil
	})
	if err != nil || calls != 3 {
		t.Errorf("Do = %v after %d calls; want nil after 3", err, calls)
	}
}

func TestRetryDoGivesUp(t *testing.T) {
	boom := errors.New("boom")
	r := &RetryConfig{MaxAttempts: 2, BaseDelay: time.Millisecond}

	calls := 0
	err := r.Do(context.Background(), "op", func() error { calls++; return boom })
	if !errors.Is(err, boom) || calls != 2 {
		t.Errorf("Do = %v after %d calls; want boom after 2", err, calls)
	}
}

func TestRetryDoSkipsPermanentErrors(t *testing.T) {
	permanent := errors.New("not found")
	r := &RetryConfig{
		MaxAttempts: 5,
		BaseDelay:   time.Millisecond,
		Retryable:   func(err error) bool { return !errors.Is(err, permanent) },
	}

	calls := 0
	err := r.Do(context.Background(), "op", func() error { calls++; return permanent })
	if err != permanent || calls != 1 {
		t.Errorf("Do = %v after %d calls; want not found after 1", err, calls)
	}
}

func TestRetryDoStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	r := &RetryConfig{MaxAttempts: 3, BaseDelay: time.Hour}

	calls := 0
	err := r.Do(ctx, "op", func() error { calls++; return errors.New("down") })
	if !errors.Is(err, context.Canceled) || calls != 1 {
		t.Errorf("Do = %v after %d calls; want context.Canceled after 1", err, calls)
	}
}

func TestRetryDoZeroAttempts(t *testing.T) {
	calls := 0
	_ = (&RetryConfig{}).Do(context.Background(), "op", func() error { calls++; return errors.New("x") })
	if calls != 1 {
		t.Errorf("calls = %d; want 1", calls)
	}
}
