// Copyright 2026 The Unito Authors
// SPDX-License-Identifier: Apache-2.0

// Package deliver lands finished family artifacts in the output
// directory under canonical names.
package deliver

import (
	"fmt"
	"os"
	"path/filepath"
)

// Target is one built family artifact ready to write.
type Target struct {
	Slug  string
	Style string
	Data  []byte
}

// Error reports a failed write for a single target. Other targets'
// deliveries are unaffected.
type Error struct {
	Slug  string
	Style string
	Path  string
	Err   error
}

func (e *Error) Error() string {
	return fmt.Sprintf("delivering %s %s to %s: %v", e.Slug, e.Style, e.Path, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// Writer writes artifacts under Dir. Filenames are
// {Slug}-{Style}.{ext}; existing files are overwritten.
type Writer struct {
	// Dir is the output directory, created on first write.
	Dir string

	// Ext is the filename extension without the dot. Empty means
	// "ufc".
	Ext string
}

// Filename returns the canonical output filename for a family style.
func (w *Writer) Filename(slug, style string) string {
	ext := w.Ext
	if ext == "" {
		ext = "ufc"
	}
	return fmt.Sprintf("%s-%s.%s", slug, style, ext)
}

// Write lands one target and returns the written path. The write
// goes through a temp file in the output directory and renames into
// place, so a crash never leaves a partial artifact under a
// canonical name.
func (w *Writer) Write(target Target) (string, error) {
	name := w.Filename(target.Slug, target.Style)
	path := filepath.Join(w.Dir, name)
	fail := func(err error) (string, error) {
		return "", &Error{Slug: target.Slug, Style: target.Style, Path: path, Err: err}
	}

	if err := os.MkdirAll(w.Dir, 0o755); err != nil {
		return fail(err)
	}

	tmpFile, err := os.CreateTemp(w.Dir, "."+name+".*")
	if err != nil {
		return fail(err)
	}
	tmpPath := tmpFile.Name()

	success := false
	defer func() {
		if !success {
			os.Remove(tmpPath)
		}
	}()

	if _, err := tmpFile.Write(target.Data); err != nil {
		tmpFile.Close()
		return fail(err)
	}
	if err := tmpFile.Close(); err != nil {
		return fail(err)
	}
	if err := os.Chmod(tmpPath, 0o644); err != nil {
		return fail(err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		return fail(err)
	}

	success = true
	return path, nil
}
