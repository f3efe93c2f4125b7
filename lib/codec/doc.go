// Copyright 2026 The Unito Authors
// SPDX-License-Identifier: Apache-2.0

// Package codec provides unito's standard CBOR encoding configuration.
//
// Unito uses two serialization formats with a clear boundary:
//
//   - YAML/JSONC for things humans write: the build manifest and the
//     embedded Unicode block table.
//   - CBOR for things the toolchain writes: cache entry metadata and
//     the UFC font container payload.
//
// This package provides the shared CBOR encoding and decoding modes so
// that every package encodes identically without duplicating
// configuration. The encoder uses Core Deterministic Encoding (RFC 8949
// §4.2): sorted map keys, smallest integer encoding, no
// indefinite-length items. Same logical data always produces identical
// bytes, which is what makes merged containers byte-comparable and
// cache tokens stable across runs.
//
// For buffer-oriented operations:
//
//	data, err := codec.Marshal(value)
//	err = codec.Unmarshal(data, &value)
//
// For stream-oriented operations:
//
//	encoder := codec.NewEncoder(w)
//	decoder := codec.NewDecoder(r)
package codec
