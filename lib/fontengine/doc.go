// Copyright 2026 The Unito Authors
// SPDX-License-Identifier: Apache-2.0

// Package fontengine defines the artifact engine contract the build
// pipeline drives, and ships the UFC container engine as its
// reference implementation.
//
// The pipeline treats fonts as opaque: it decodes bytes into an
// Artifact, instantiates parametric artifacts at a style's axis
// location, copies units between artifacts, inherits or adopts global
// tables, widens vertical metric bounds, stamps naming, and encodes
// the result. Which bytes those operations manipulate is entirely the
// engine's business. The merge engine decides what to copy; the
// artifact engine only performs the copy.
//
// # The UFC container
//
// UFC ("Unito Font Container") is a little container format: a 4-byte
// magic followed by a deterministic-CBOR payload holding units keyed
// by codepoint, opaque global tables, optional variation axes, the
// vertical metrics, and the naming record. Deterministic encoding
// means two artifacts with equal logical content are byte-identical,
// which the cache and the merge determinism guarantees build on.
//
// # Mutation discipline
//
// Decoded artifacts are immutable by convention. The mutating
// operations (CopyUnits, InheritGlobals, AdoptGlobals, WidenBounds,
// SetNaming) may only be applied to accumulators obtained from
// NewAccumulator. Instantiate returns a new artifact and leaves its
// input untouched.
package fontengine
