// Copyright 2026 The Unito Authors
// SPDX-License-Identifier: Apache-2.0

package fontcache

import (
	"encoding/binary"
	"encoding/hex"
	"fmt"

	"github.com/zeebo/blake3"
)

// Key is a 32-byte BLAKE3 digest. Slot keys and content digests are
// both this size.
type Key [32]byte

// domainKey is a 32-byte key for BLAKE3 keyed hashing. Domain
// separation ensures that the same input bytes produce different
// hashes in different contexts, preventing cross-domain collisions.
type domainKey [32]byte

// Domain separation keys. These are fixed constants; changing them
// invalidates every existing cache. The byte values are the ASCII
// encoding of the domain name, zero-padded to 32 bytes, so the keys
// are inspectable in hex dumps.
var (
	slotDomainKey = domainKey{
		'u', 'n', 'i', 't', 'o', '.', 'c', 'a', 'c', 'h', 'e', '.', 's', 'l', 'o', 't',
		0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0,
	}

	contentDomainKey = domainKey{
		'u', 'n', 'i', 't', 'o', '.', 'c', 'a', 'c', 'h', 'e', '.', 'c', 'o', 'n', 't',
		'e', 'n', 't', 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0,
	}
)

// ID names a cache slot. Repository and Path locate the upstream
// source the slot derives from; Stage names the transform applied to
// it ("fetch" for raw bytes, "static/<style>" for an instantiated
// font, "merge/<style>" for a merged family).
type ID struct {
	Repository string
	Path       string
	Stage      string
}

// String returns the human-readable slot name used in logs and CLI
// output.
func (id ID) String() string {
	return id.Repository + "/" + id.Path + "@" + id.Stage
}

// Key computes the slot-domain digest of the ID. Fields are
// length-prefixed so the boundary between repository, path, and stage
// is unambiguous.
func (id ID) Key() Key {
	hasher, err := blake3.NewKeyed(slotDomainKey[:])
	if err != nil {
		panic("fontcache: BLAKE3 keyed hash initialization failed: " + err.Error())
	}
	var length [4]byte
	for _, field := range []string{id.Repository, id.Path, id.Stage} {
		binary.LittleEndian.PutUint32(length[:], uint32(len(field)))
		hasher.Write(length[:])
		hasher.Write([]byte(field))
	}
	var key Key
	copy(key[:], hasher.Sum(nil))
	return key
}

// HashContent computes the content-domain digest of a payload. Data
// files are addressed by this digest, so identical payloads stored
// under different slots share one file.
func HashContent(data []byte) Key {
	hasher, err := blake3.NewKeyed(contentDomainKey[:])
	if err != nil {
		panic("fontcache: BLAKE3 keyed hash initialization failed: " + err.Error())
	}
	hasher.Write(data)
	var key Key
	copy(key[:], hasher.Sum(nil))
	return key
}

// FormatKey returns the hex-encoded string representation of a key.
// This is the canonical format used in entry records, logs, and CLI
// output.
func FormatKey(key Key) string {
	return hex.EncodeToString(key[:])
}

// ParseKey parses a 64-character hex string into a Key.
func ParseKey(hexString string) (Key, error) {
	var key Key
	decoded, err := hex.DecodeString(hexString)
	if err != nil {
		return key, fmt.Errorf("parsing cache key: %w", err)
	}
	if len(decoded) != 32 {
		return key, fmt.Errorf("cache key is %d bytes, want 32", len(decoded))
	}
	copy(key[:], decoded)
	return key, nil
}
