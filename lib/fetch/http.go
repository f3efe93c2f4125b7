// Copyright 2026 The Unito Authors
// SPDX-License-Identifier: Apache-2.0

package fetch

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/unito-fonts/unito/lib/netutil"
)

// HTTP fetches payloads from an https repository. Freshness tokens
// come from response headers: ETag when the server sends one,
// Last-Modified otherwise, empty when neither is present.
type HTTP struct {
	repository string
	baseURL    string
	httpClient *http.Client
}

// NewHTTP creates a fetcher over the repository's base URL. A nil
// httpClient means http.DefaultClient.
func NewHTTP(repository, baseURL string, httpClient *http.Client) (*HTTP, error) {
	if baseURL == "" {
		return nil, fmt.Errorf("fetch: repository %q has no base URL", repository)
	}
	// Validate the URL structure. We store the string form (with
	// trailing slash stripped) and build request URLs by direct
	// concatenation, which avoids re-encoding manifest paths.
	if _, err := url.Parse(baseURL); err != nil {
		return nil, fmt.Errorf("fetch: repository %q has invalid base URL %q: %w", repository, baseURL, err)
	}
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &HTTP{
		repository: repository,
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: httpClient,
	}, nil
}

// Stat issues a HEAD request and returns the freshness token.
func (f *HTTP) Stat(ctx context.Context, path string) (string, error) {
	response, err := f.do(ctx, http.MethodHead, path)
	if err != nil {
		return "", err
	}
	defer response.Body.Close()

	if response.StatusCode < 200 || response.StatusCode >= 300 {
		return "", f.statusError(path, response)
	}
	return tokenFromHeaders(response.Header), nil
}

// Fetch issues a GET request and returns the payload with the token
// observed on the same response.
func (f *HTTP) Fetch(ctx context.Context, path string) (*Result, error) {
	response, err := f.do(ctx, http.MethodGet, path)
	if err != nil {
		return nil, err
	}
	defer response.Body.Close()

	if response.StatusCode < 200 || response.StatusCode >= 300 {
		return nil, f.statusError(path, response)
	}

	data, err := netutil.ReadResponse(response.Body)
	if err != nil {
		return nil, &Error{
			Repository: f.repository,
			Path:       path,
			Transient:  true,
			Err:        fmt.Errorf("reading response body: %w", err),
		}
	}
	return &Result{Data: data, Token: tokenFromHeaders(response.Header)}, nil
}

// do performs the request. Transport failures (connection refused,
// timeout, EOF) are transient.
func (f *HTTP) do(ctx context.Context, method, path string) (*http.Response, error) {
	requestURL := f.baseURL + "/" + strings.TrimLeft(path, "/")
	request, err := http.NewRequestWithContext(ctx, method, requestURL, nil)
	if err != nil {
		return nil, &Error{Repository: f.repository, Path: path, Err: err}
	}

	response, err := f.httpClient.Do(request)
	if err != nil {
		return nil, &Error{
			Repository: f.repository,
			Path:       path,
			Transient:  true,
			Err:        err,
		}
	}
	return response, nil
}

// statusError classifies a non-2xx response. 429 and 5xx are
// transient; other client errors are permanent. The body is drained
// into the error message for diagnostics.
func (f *HTTP) statusError(path string, response *http.Response) *Error {
	transient := response.StatusCode == http.StatusTooManyRequests || response.StatusCode >= 500
	message := netutil.ErrorBody(response.Body)
	err := fmt.Errorf("%s", response.Status)
	if message != "" {
		err = fmt.Errorf("%s: %s", response.Status, message)
	}
	return &Error{
		Repository: f.repository,
		Path:       path,
		StatusCode: response.StatusCode,
		Transient:  transient,
		Err:        err,
	}
}

// tokenFromHeaders derives the freshness token from validator
// headers. ETag is preferred: servers keep it stable across
// byte-identical responses. Last-Modified is the fallback with
// one-second granularity. Neither header means no token, and the
// payload is treated as never fresh.
func tokenFromHeaders(header http.Header) string {
	if etag := header.Get("ETag"); etag != "" {
		return "etag:" + etag
	}
	if modified := header.Get("Last-Modified"); modified != "" {
		return "modified:" + modified
	}
	return ""
}
