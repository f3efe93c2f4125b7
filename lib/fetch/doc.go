// Copyright 2026 The Unito Authors
// SPDX-License-Identifier: Apache-2.0

// Package fetch transfers source payloads from the repositories a
// manifest declares.
//
// Each repository kind maps to a Fetcher: https repositories speak
// HTTP with ETag/Last-Modified freshness tokens, dir repositories
// read local files with size+mtime tokens. Failures carry a typed
// Error whose Transient flag separates conditions worth retrying
// (connection failures, HTTP 429, 5xx) from permanent ones (404 and
// other client errors, missing local files). WithRetry wraps any
// Fetcher with bounded exponential backoff over an injectable clock,
// so retry behavior is testable without real sleeps.
package fetch
