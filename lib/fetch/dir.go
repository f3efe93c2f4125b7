// Copyright 2026 The Unito Authors
// SPDX-License-Identifier: Apache-2.0

package fetch

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// Dir fetches payloads from a local directory repository. Freshness
// tokens combine file size and modification time, which is what a
// local filesystem can establish cheaply.
type Dir struct {
	repository string
	root       string
}

// NewDir creates a fetcher over the repository's root directory.
func NewDir(repository, root string) (*Dir, error) {
	if root == "" {
		return nil, fmt.Errorf("fetch: repository %q has no root path", repository)
	}
	return &Dir{repository: repository, root: root}, nil
}

// Stat returns the freshness token for the file.
func (f *Dir) Stat(ctx context.Context, path string) (string, error) {
	resolved, err := f.resolve(path)
	if err != nil {
		return "", err
	}
	info, err := os.Stat(resolved)
	if err != nil {
		return "", f.fileError(path, err)
	}
	return dirToken(info), nil
}

// Fetch reads the file. The token is taken from the open file
// descriptor after reading, so it describes the bytes actually
// returned even if the file is replaced concurrently.
func (f *Dir) Fetch(ctx context.Context, path string) (*Result, error) {
	resolved, err := f.resolve(path)
	if err != nil {
		return nil, err
	}

	file, err := os.Open(resolved)
	if err != nil {
		return nil, f.fileError(path, err)
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		return nil, f.fileError(path, err)
	}
	info, err := file.Stat()
	if err != nil {
		return nil, f.fileError(path, err)
	}
	return &Result{Data: data, Token: dirToken(info)}, nil
}

// resolve joins the source path onto the repository root, rejecting
// paths that escape it.
func (f *Dir) resolve(path string) (string, error) {
	if !filepath.IsLocal(filepath.FromSlash(path)) {
		return "", &Error{
			Repository: f.repository,
			Path:       path,
			Err:        fmt.Errorf("path escapes repository root"),
		}
	}
	return filepath.Join(f.root, filepath.FromSlash(path)), nil
}

// fileError wraps a filesystem failure. Missing files are permanent;
// everything else (permission flaps, transient I/O) retries.
func (f *Dir) fileError(path string, err error) *Error {
	return &Error{
		Repository: f.repository,
		Path:       path,
		Transient:  !os.IsNotExist(err),
		Err:        err,
	}
}

// dirToken formats the freshness token for a local file.
func dirToken(info os.FileInfo) string {
	return fmt.Sprintf("file:%d-%d", info.Size(), info.ModTime().UnixNano())
}
