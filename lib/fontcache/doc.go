// Copyright 2026 The Unito Authors
// SPDX-License-Identifier: Apache-2.0

// Package fontcache is the content-addressed build cache behind
// every pipeline stage.
//
// A cache slot is identified by (repository, path, stage): the
// upstream source a payload derives from and the transform that
// produced it. Raw fetches, instantiated styles, and merged families
// all live in the same cache under different stages. Each slot
// stores a freshness token from its upstream (an ETag, a file mtime,
// a digest of inputs); GetOrBuild serves the stored payload when the
// caller's token matches and rebuilds otherwise, so a run over a
// warm cache touches the network and the merge engine only for what
// actually changed.
//
// On disk, entry records and data files are separate. Entries are
// per-slot CBOR records sharded by slot key; data files are named by
// the content digest of the uncompressed payload, so identical
// payloads stored under different slots share one file. Writes go
// through a temp directory and rename into place, with the entry
// rename as the commit point. Payloads are compressed per entry
// (zstd, LZ4, or none, probed at store time) and verified against
// their digest on every disk read.
//
// Builds are deduplicated per slot: concurrent GetOrBuild calls for
// the same slot wait for the one running build and share its result.
// A small LRU keeps recently used payloads decompressed in memory.
package fontcache
