// Copyright 2026 The Unito Authors
// SPDX-License-Identifier: Apache-2.0

// Package merge folds prioritized font contributions into one
// artifact.
//
// The rule is priority-ordered union with first-writer-wins: the
// contributions arrive in merge order (highest priority first), and
// the first contribution to define a unit owns it. Later definitions
// of the same unit are skipped, never overwritten. Exclusion sets are
// applied per contribution before eligibility, so a unit excluded
// from one source still enters from the next source that defines it.
//
// Global fields follow the same rule with two carve-outs. When a
// merge is seeded with a base artifact, the base's global tables,
// metrics, and naming are inherited verbatim and no contribution may
// add to them. And the vertical metric bounds named by the widening
// policy may grow to cover every contribution, so that no merged-in
// script clips at render time.
//
// A frequency-ordered fill pass (FillByFrequency) runs after the
// regular merge for families that want the most-used units of a very
// large script up to a unit cap rather than the whole script.
package merge
