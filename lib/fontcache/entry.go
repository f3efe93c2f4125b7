// Copyright 2026 The Unito Authors
// SPDX-License-Identifier: Apache-2.0

package fontcache

import (
	"fmt"
	"time"

	"github.com/unito-fonts/unito/lib/codec"
)

// EntryVersion is the current entry record format version. Bumped
// when the record shape changes incompatibly; old entries are then
// treated as misses and rebuilt.
const EntryVersion = 1

// Entry is the per-slot metadata record. The entry rename is the
// commit point of a build: a slot whose entry file exists is fully
// stored, and the data file it names is complete. The data file
// holds the payload compressed with Compression; Digest is the
// content-domain hash of the uncompressed payload and doubles as the
// data file's name.
type Entry struct {
	Version     int            `json:"version"`
	Repository  string         `json:"repository"`
	Path        string         `json:"path"`
	Stage       string         `json:"stage"`
	Token       string         `json:"token,omitempty"`
	Size        int64          `json:"size"`
	StoredSize  int64          `json:"stored_size"`
	Compression CompressionTag `json:"compression"`
	Digest      string         `json:"digest"`
	BuiltAt     time.Time      `json:"built_at"`
}

// ID returns the slot identity the entry was stored under.
func (e *Entry) ID() ID {
	return ID{Repository: e.Repository, Path: e.Path, Stage: e.Stage}
}

// Validate checks structural invariants of a decoded entry. Entries
// failing validation are treated as corrupt.
func (e *Entry) Validate() error {
	if e.Version != EntryVersion {
		return fmt.Errorf("entry version %d, this code supports %d", e.Version, EntryVersion)
	}
	if e.Repository == "" || e.Path == "" || e.Stage == "" {
		return fmt.Errorf("entry slot identity incomplete: %q/%q@%q", e.Repository, e.Path, e.Stage)
	}
	if e.Size <= 0 {
		return fmt.Errorf("entry payload size %d", e.Size)
	}
	if e.StoredSize <= 0 {
		return fmt.Errorf("entry stored size %d", e.StoredSize)
	}
	if _, err := ParseKey(e.Digest); err != nil {
		return fmt.Errorf("entry digest: %w", err)
	}
	return nil
}

// marshalEntry serializes an entry record to CBOR.
func marshalEntry(entry *Entry) ([]byte, error) {
	data, err := codec.Marshal(entry)
	if err != nil {
		return nil, fmt.Errorf("marshaling cache entry: %w", err)
	}
	return data, nil
}

// unmarshalEntry decodes and validates an entry record.
func unmarshalEntry(data []byte) (*Entry, error) {
	var entry Entry
	if err := codec.Unmarshal(data, &entry); err != nil {
		return nil, fmt.Errorf("decoding cache entry: %w", err)
	}
	if err := entry.Validate(); err != nil {
		return nil, fmt.Errorf("invalid cache entry: %w", err)
	}
	return &entry, nil
}
