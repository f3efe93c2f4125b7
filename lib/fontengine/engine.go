// Copyright 2026 The Unito Authors
// SPDX-License-Identifier: Apache-2.0

package fontengine

import "fmt"

// UnitID identifies the smallest mergeable item: a Unicode codepoint
// with its glyph and per-unit data.
type UnitID uint32

// String renders the ID in U+XXXX form.
func (id UnitID) String() string {
	return fmt.Sprintf("U+%04X", uint32(id))
}

// Unit is one codepoint's glyph data: the advance width and the
// opaque outline bytes. Units are copied between artifacts verbatim;
// nothing in the pipeline looks inside Outline.
type Unit struct {
	Advance int    `cbor:"advance"`
	Outline []byte `cbor:"outline"`
}

// Axis is one variation axis of a parametric artifact.
type Axis struct {
	Tag     string  `cbor:"tag"`
	Min     float64 `cbor:"min"`
	Default float64 `cbor:"default"`
	Max     float64 `cbor:"max"`
}

// Metrics are the global vertical metric bounds. Descent is negative
// by convention, so widening Descent takes the minimum while widening
// Ascent and LineGap takes the maximum.
type Metrics struct {
	Ascent  int `cbor:"ascent"`
	Descent int `cbor:"descent"`
	LineGap int `cbor:"line_gap"`
}

// Naming is the artifact's name record.
type Naming struct {
	Family     string `cbor:"family"`
	Subfamily  string `cbor:"subfamily"`
	FullName   string `cbor:"full_name"`
	PostScript string `cbor:"postscript"`
}

// Metric bound field names accepted by WidenBounds.
const (
	FieldAscent  = "ascent"
	FieldDescent = "descent"
	FieldLineGap = "line_gap"
)

// Artifact is an opaque decoded font. Implementations belong to their
// engine; the pipeline only reads unit identity through this
// interface and hands artifacts back to engine operations.
type Artifact interface {
	// UnitIDs returns the artifact's unit identities in ascending
	// order. The deterministic order is what makes merges repeatable.
	UnitIDs() []UnitID

	// Has reports whether the artifact defines the unit.
	Has(id UnitID) bool

	// Len returns the number of units.
	Len() int

	// Parametric reports whether the artifact still carries variation
	// axes and needs instantiation before it can merge.
	Parametric() bool
}

// Engine is the artifact capability the pipeline is built against.
// Operations are correctness-assumed primitives: the merge engine
// decides unit eligibility and ordering, the artifact engine performs
// the mechanics.
type Engine interface {
	// Decode parses raw artifact bytes.
	Decode(data []byte) (Artifact, error)

	// Encode serializes an artifact deterministically: equal logical
	// content yields identical bytes.
	Encode(a Artifact) ([]byte, error)

	// Instantiate fixes a parametric artifact at the given axis
	// location and returns the fixed instance. Static artifacts pass
	// through unchanged. A requested value outside an axis range
	// falls back to that axis default.
	Instantiate(a Artifact, axes map[string]float64) (Artifact, error)

	// NewAccumulator returns an empty artifact ready to receive
	// units and global tables.
	NewAccumulator() Artifact

	// CopyUnits copies the listed units verbatim from src into acc.
	// Every listed unit must exist in src and must not already exist
	// in acc; a violation means the caller's eligibility logic is
	// broken and is returned as an error.
	CopyUnits(acc, src Artifact, units []UnitID) error

	// InheritGlobals replaces acc's global tables, vertical metrics,
	// units-per-em, and naming with verbatim copies of src's. Fields
	// src lacks are absent in acc afterwards.
	InheritGlobals(acc, src Artifact) error

	// AdoptGlobals copies into acc only the global fields acc does
	// not define yet. Per-field first-writer-wins.
	AdoptGlobals(acc, src Artifact) error

	// WidenBounds extends acc's named vertical metric fields to
	// cover src's values. Ascent and line gap widen upward, descent
	// widens downward. An acc without metrics stays without metrics;
	// widening never backfills an absent record.
	WidenBounds(acc, src Artifact, fields []string) error

	// SetNaming stamps the naming record.
	SetNaming(a Artifact, naming Naming) error
}
