// Copyright 2026 The Unito Authors
// SPDX-License-Identifier: Apache-2.0

package fetch

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDirFetch(t *testing.T) {
	root := t.TempDir()
	if err := os.MkdirAll(filepath.Join(root, "fonts"), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(root, "fonts", "Custom.ufc"), []byte("local font bytes"), 0o644); err != nil {
		t.Fatal(err)
	}

	fetcher, err := NewDir("local", root)
	if err != nil {
		t.Fatalf("NewDir: %v", err)
	}

	result, err := fetcher.Fetch(context.Background(), "fonts/Custom.ufc")
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if string(result.Data) != "local font bytes" {
		t.Errorf("data = %q", result.Data)
	}
	if result.Token == "" {
		t.Error("local fetch produced no token")
	}

	// Stat agrees with Fetch while the file is unchanged.
	token, err := fetcher.Stat(context.Background(), "fonts/Custom.ufc")
	if err != nil {
		t.Fatalf("Stat: %v", err)
	}
	if token != result.Token {
		t.Errorf("Stat token %q != Fetch token %q", token, result.Token)
	}
}

func TestDirTokenTracksChanges(t *testing.T) {
	root := t.TempDir()
	path := filepath.Join(root, "Custom.ufc")
	if err := os.WriteFile(path, []byte("first"), 0o644); err != nil {
		t.Fatal(err)
	}

	fetcher, err := NewDir("local", root)
	if err != nil {
		t.Fatalf("NewDir: %v", err)
	}
	before, err := fetcher.Stat(context.Background(), "Custom.ufc")
	if err != nil {
		t.Fatalf("Stat: %v", err)
	}

	// Same size, different mtime: the token must still change.
	if err := os.WriteFile(path, []byte("fresh"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.Chtimes(path, time.Time{}, time.Now().Add(5*time.Second)); err != nil {
		t.Fatal(err)
	}

	after, err := fetcher.Stat(context.Background(), "Custom.ufc")
	if err != nil {
		t.Fatalf("Stat: %v", err)
	}
	if before == after {
		t.Error("token unchanged after file replacement")
	}
}

func TestDirMissingFileIsPermanent(t *testing.T) {
	fetcher, err := NewDir("local", t.TempDir())
	if err != nil {
		t.Fatalf("NewDir: %v", err)
	}

	_, err = fetcher.Fetch(context.Background(), "absent.ufc")
	if err == nil {
		t.Fatal("Fetch of a missing file succeeded")
	}
	if IsTransient(err) {
		t.Errorf("missing file classified transient: %v", err)
	}
}

func TestDirRejectsEscapingPaths(t *testing.T) {
	fetcher, err := NewDir("local", t.TempDir())
	if err != nil {
		t.Fatalf("NewDir: %v", err)
	}

	for _, path := range []string{"../outside.ufc", "a/../../outside.ufc", "/etc/passwd"} {
		if _, err := fetcher.Fetch(context.Background(), path); err == nil {
			t.Errorf("Fetch(%q) escaped the repository root", path)
		}
	}
}
