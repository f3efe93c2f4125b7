// Copyright 2026 The Unito Authors
// SPDX-License-Identifier: Apache-2.0

package fetch

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/unito-fonts/unito/lib/fontspec"
)

// Result is a fetched payload and the freshness token it was observed
// under. The token and data come from the same upstream response, so
// caching the pair never records a token for bytes it did not see.
type Result struct {
	Data  []byte
	Token string
}

// Fetcher transfers source payloads from one repository.
type Fetcher interface {
	// Stat returns the current freshness token for the path without
	// transferring the payload. An empty token means the upstream
	// cannot establish freshness and the payload must be re-fetched.
	Stat(ctx context.Context, path string) (string, error)

	// Fetch transfers the payload at the path.
	Fetch(ctx context.Context, path string) (*Result, error)
}

// Error is a fetch failure. Transient distinguishes failures worth
// retrying (connection errors, rate limits, server errors) from
// permanent ones (missing files, client errors).
type Error struct {
	Repository string
	Path       string

	// StatusCode is the HTTP status of the failing response, zero
	// when no response was received (transport failure, local file
	// error).
	StatusCode int

	Transient bool
	Err       error
}

func (e *Error) Error() string {
	kind := "permanent"
	if e.Transient {
		kind = "transient"
	}
	if e.StatusCode != 0 {
		return fmt.Sprintf("fetch %s/%s: %s failure (HTTP %d): %v", e.Repository, e.Path, kind, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("fetch %s/%s: %s failure: %v", e.Repository, e.Path, kind, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// IsTransient reports whether err is a fetch failure worth retrying.
func IsTransient(err error) bool {
	var fetchErr *Error
	if errors.As(err, &fetchErr) {
		return fetchErr.Transient
	}
	return false
}

// New returns a Fetcher for the repository. The httpClient applies to
// https repositories only; nil means http.DefaultClient.
func New(repo fontspec.Repository, httpClient *http.Client) (Fetcher, error) {
	switch repo.Kind {
	case fontspec.RepositoryHTTPS:
		return NewHTTP(repo.Name, repo.URL, httpClient)
	case fontspec.RepositoryDir:
		return NewDir(repo.Name, repo.Path)
	default:
		return nil, fmt.Errorf("fetch: repository %q has unsupported kind %q", repo.Name, repo.Kind)
	}
}
