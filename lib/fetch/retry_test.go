// Copyright 2026 The Unito Authors
// SPDX-License-Identifier: Apache-2.0

package fetch

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/unito-fonts/unito/lib/clock"
)

// scriptedFetcher fails a set number of times before succeeding.
type scriptedFetcher struct {
	failures  int
	transient bool
	calls     int
}

func (f *scriptedFetcher) err() error {
	return &Error{Repository: "noto", Path: "fonts/Sans.ufc", Transient: f.transient, Err: errors.New("scripted failure")}
}

func (f *scriptedFetcher) Stat(ctx context.Context, path string) (string, error) {
	f.calls++
	if f.calls <= f.failures {
		return "", f.err()
	}
	return "etag:ok", nil
}

func (f *scriptedFetcher) Fetch(ctx context.Context, path string) (*Result, error) {
	f.calls++
	if f.calls <= f.failures {
		return nil, f.err()
	}
	return &Result{Data: []byte("payload"), Token: "etag:ok"}, nil
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestRetryRecoversFromTransientFailures(t *testing.T) {
	fakeClock := clock.Fake(time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC))
	inner := &scriptedFetcher{failures: 2, transient: true}
	fetcher := WithRetry(inner, 3, fakeClock, quietLogger())

	done := make(chan error, 1)
	var result *Result
	go func() {
		var err error
		result, err = fetcher.Fetch(context.Background(), "fonts/Sans.ufc")
		done <- err
	}()

	// First retry backs off 1s, second 2s.
	fakeClock.WaitForTimers(1)
	fakeClock.Advance(time.Second)
	fakeClock.WaitForTimers(1)
	fakeClock.Advance(2 * time.Second)

	if err := <-done; err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if inner.calls != 3 {
		t.Errorf("inner fetch called %d times, want 3", inner.calls)
	}
	if result == nil || string(result.Data) != "payload" {
		t.Errorf("result = %+v", result)
	}
}

func TestRetryStopsOnPermanentFailure(t *testing.T) {
	fakeClock := clock.Fake(time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC))
	inner := &scriptedFetcher{failures: 10, transient: false}
	fetcher := WithRetry(inner, 3, fakeClock, quietLogger())

	_, err := fetcher.Fetch(context.Background(), "fonts/Sans.ufc")
	if err == nil {
		t.Fatal("permanent failure reported success")
	}
	if inner.calls != 1 {
		t.Errorf("inner fetch called %d times, want 1 (no retry)", inner.calls)
	}
	if fakeClock.PendingCount() != 0 {
		t.Errorf("%d timers pending after permanent failure, want 0", fakeClock.PendingCount())
	}
}

func TestRetryExhaustsAttempts(t *testing.T) {
	fakeClock := clock.Fake(time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC))
	inner := &scriptedFetcher{failures: 10, transient: true}
	fetcher := WithRetry(inner, 3, fakeClock, quietLogger())

	done := make(chan error, 1)
	go func() {
		_, err := fetcher.Stat(context.Background(), "fonts/Sans.ufc")
		done <- err
	}()

	fakeClock.WaitForTimers(1)
	fakeClock.Advance(time.Second)
	fakeClock.WaitForTimers(1)
	fakeClock.Advance(2 * time.Second)

	err := <-done
	if err == nil {
		t.Fatal("exhausted retries reported success")
	}
	if !IsTransient(err) {
		t.Errorf("last error lost its classification: %v", err)
	}
	if inner.calls != 3 {
		t.Errorf("inner stat called %d times, want 3", inner.calls)
	}
}

func TestRetryHonorsContextDuringBackoff(t *testing.T) {
	fakeClock := clock.Fake(time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC))
	inner := &scriptedFetcher{failures: 10, transient: true}
	fetcher := WithRetry(inner, 3, fakeClock, quietLogger())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		_, err := fetcher.Fetch(ctx, "fonts/Sans.ufc")
		done <- err
	}()

	// Cancel while the retry loop is waiting out the first backoff.
	fakeClock.WaitForTimers(1)
	cancel()

	if err := <-done; !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v, want context.Canceled", err)
	}
	if inner.calls != 1 {
		t.Errorf("inner fetch called %d times after cancel, want 1", inner.calls)
	}
}
