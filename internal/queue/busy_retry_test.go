package queue

import (
	"context"
	"errors"
	"testing"
)

func TestReadWithRetryRetriesBusyReads(t *testing.T) {
	calls := 0
	got, err := readWithRetry(context.Background(), func(context.Context) (int, error) {
		calls++
		if calls < 3 {
			return 0, errors.New("get job 1: database is locked (5) (SQLITE_BUSY)")
		}
		return 42, nil
	})
	if err != nil {
		t.Fatalf("readWithRetry: %v", err)
	}
	if got != 42 || calls != 3 {
		t.Fatalf("expected 42 after 3 calls, got %d after %d", got, calls)
	}
}

func TestReadWithRetryStopsOnOtherErrors(t *testing.T) {
	calls := 0
	boom := errors.New("no such table: jobs")
	_, err := readWithRetry(context.Background(), func(context.Context) ([]*Job, error) {
		calls++
		return nil, boom
	})
	if !errors.Is(err, boom) || calls != 1 {
		t.Fatalf("expected single failing call, got err=%v calls=%d", err, calls)
	}
}

func TestReadWithRetryHonoursCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	calls := 0
	_, err := readWithRetry(ctx, func(context.Context) (int, error) {
		calls++
		cancel()
		return 0, errors.New("database is locked")
	})
	if !errors.Is(err, context.Canceled) || calls != 1 {
		t.Fatalf("expected cancellation after one call, got err=%v calls=%d", err, calls)
	}
}
