// Copyright 2026 The Unito Authors
// SPDX-License-Identifier: Apache-2.0

package fetch

import (
	"context"
	"log/slog"
	"time"

	"github.com/unito-fonts/unito/lib/clock"
)

// DefaultAttempts is the retry bound used when a Retrying wrapper is
// configured with zero attempts. Three attempts with exponential
// backoff (1s, 2s) cover brief rate limits and server hiccups without
// stalling the build for long.
const DefaultAttempts = 3

// Retrying wraps a Fetcher with bounded retry on transient failures.
// Permanent failures return immediately. The context bounds the total
// retry time: a canceled build stops waiting out backoffs.
type Retrying struct {
	inner    Fetcher
	attempts int
	clock    clock.Clock
	logger   *slog.Logger
}

// WithRetry wraps the fetcher. Zero attempts means DefaultAttempts;
// a nil clock means the real one; a nil logger means slog.Default().
func WithRetry(inner Fetcher, attempts int, clk clock.Clock, logger *slog.Logger) *Retrying {
	if attempts <= 0 {
		attempts = DefaultAttempts
	}
	if clk == nil {
		clk = clock.Real()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Retrying{inner: inner, attempts: attempts, clock: clk, logger: logger}
}

// Stat retries the inner Stat on transient failures.
func (r *Retrying) Stat(ctx context.Context, path string) (string, error) {
	var token string
	err := r.retry(ctx, path, "stat", func() error {
		var innerErr error
		token, innerErr = r.inner.Stat(ctx, path)
		return innerErr
	})
	return token, err
}

// Fetch retries the inner Fetch on transient failures.
func (r *Retrying) Fetch(ctx context.Context, path string) (*Result, error) {
	var result *Result
	err := r.retry(ctx, path, "fetch", func() error {
		var innerErr error
		result, innerErr = r.inner.Fetch(ctx, path)
		return innerErr
	})
	return result, err
}

func (r *Retrying) retry(ctx context.Context, path, operation string, attempt func() error) error {
	var lastError error
	for n := 0; n < r.attempts; n++ {
		if n > 0 {
			backoff := time.Duration(1<<(n-1)) * time.Second
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-r.clock.After(backoff):
			}
		}

		err := attempt()
		if err == nil {
			return nil
		}
		lastError = err

		if !IsTransient(err) {
			return err
		}

		r.logger.Warn("transient fetch failure, retrying",
			"operation", operation,
			"path", path,
			"attempt", n+1,
			"error", err,
		)
	}
	return lastError
}
