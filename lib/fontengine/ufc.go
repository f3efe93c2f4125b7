// Copyright 2026 The Unito Authors
// SPDX-License-Identifier: Apache-2.0

package fontengine

import (
	"bytes"
	"errors"
	"fmt"
	"sort"

	"github.com/unito-fonts/unito/lib/codec"
)

// ufcMagic opens every UFC container, ahead of the CBOR payload.
var ufcMagic = []byte("UFC1")

// ufcVersion is the current payload version. Decode accepts only
// versions it knows; the field exists so a future layout change is a
// version bump instead of a silent misread.
const ufcVersion = 1

// ErrNotUFC is returned by Decode when the magic does not match.
var ErrNotUFC = errors.New("fontengine: not a UFC container")

// Font is the UFC engine's artifact: a decoded container. Fields are
// exported so fixtures and tools can construct fonts directly; build
// pipeline code treats decoded fonts as immutable and mutates only
// accumulators.
type Font struct {
	UnitsPerEm int
	Axes       []Axis
	Location   map[string]float64
	Units      map[UnitID]Unit
	Tables     map[string][]byte
	VMetrics   *Metrics
	Names      *Naming
}

// ufcPayload is the on-disk shape of a Font.
type ufcPayload struct {
	Version    int                `cbor:"version"`
	UnitsPerEm int                `cbor:"units_per_em,omitempty"`
	Axes       []Axis             `cbor:"axes,omitempty"`
	Location   map[string]float64 `cbor:"location,omitempty"`
	Units      map[uint32]Unit    `cbor:"units"`
	Tables     map[string][]byte  `cbor:"tables,omitempty"`
	VMetrics   *Metrics           `cbor:"vmetrics,omitempty"`
	Names      *Naming            `cbor:"names,omitempty"`
}

// UnitIDs returns the font's unit identities in ascending order.
func (f *Font) UnitIDs() []UnitID {
	ids := make([]UnitID, 0, len(f.Units))
	for id := range f.Units {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// Has reports whether the font defines the unit.
func (f *Font) Has(id UnitID) bool {
	_, ok := f.Units[id]
	return ok
}

// Len returns the number of units.
func (f *Font) Len() int { return len(f.Units) }

// Parametric reports whether the font still carries variation axes.
func (f *Font) Parametric() bool { return len(f.Axes) > 0 }

// UFC is the Engine over UFC containers.
type UFC struct{}

// NewUFC returns the UFC container engine.
func NewUFC() *UFC { return &UFC{} }

// asFont asserts the artifact is a UFC font. Mixing artifacts from
// different engines is a programming error surfaced here.
func (e *UFC) asFont(a Artifact, role string) (*Font, error) {
	f, ok := a.(*Font)
	if !ok {
		return nil, fmt.Errorf("fontengine: %s artifact is %T, not a UFC font", role, a)
	}
	return f, nil
}

// Decode parses raw UFC bytes.
func (e *UFC) Decode(data []byte) (Artifact, error) {
	if len(data) < len(ufcMagic) || !bytes.Equal(data[:len(ufcMagic)], ufcMagic) {
		return nil, ErrNotUFC
	}

	var payload ufcPayload
	if err := codec.Unmarshal(data[len(ufcMagic):], &payload); err != nil {
		return nil, fmt.Errorf("fontengine: decoding container payload: %w", err)
	}
	if payload.Version != ufcVersion {
		return nil, fmt.Errorf("fontengine: unsupported container version %d", payload.Version)
	}

	units := make(map[UnitID]Unit, len(payload.Units))
	for raw, unit := range payload.Units {
		id := UnitID(raw)
		if err := validateUnitID(id); err != nil {
			return nil, err
		}
		units[id] = unit
	}

	return &Font{
		UnitsPerEm: payload.UnitsPerEm,
		Axes:       payload.Axes,
		Location:   payload.Location,
		Units:      units,
		Tables:     payload.Tables,
		VMetrics:   payload.VMetrics,
		Names:      payload.Names,
	}, nil
}

// Encode serializes the font. The payload is CBOR Core Deterministic
// Encoding, so equal logical content yields identical bytes.
func (e *UFC) Encode(a Artifact) ([]byte, error) {
	f, err := e.asFont(a, "encode")
	if err != nil {
		return nil, err
	}

	units := make(map[uint32]Unit, len(f.Units))
	for id, unit := range f.Units {
		units[uint32(id)] = unit
	}
	payload, err := codec.Marshal(ufcPayload{
		Version:    ufcVersion,
		UnitsPerEm: f.UnitsPerEm,
		Axes:       f.Axes,
		Location:   f.Location,
		Units:      units,
		Tables:     f.Tables,
		VMetrics:   f.VMetrics,
		Names:      f.Names,
	})
	if err != nil {
		return nil, fmt.Errorf("fontengine: encoding container payload: %w", err)
	}

	out := make([]byte, 0, len(ufcMagic)+len(payload))
	out = append(out, ufcMagic...)
	out = append(out, payload...)
	return out, nil
}

// Instantiate fixes a parametric font at the axis location. Static
// fonts pass through unchanged. Requested values outside an axis
// range fall back to the axis default; missing tags use the default
// outright.
func (e *UFC) Instantiate(a Artifact, axes map[string]float64) (Artifact, error) {
	f, err := e.asFont(a, "instantiate")
	if err != nil {
		return nil, err
	}
	if !f.Parametric() {
		return f, nil
	}

	location := make(map[string]float64, len(f.Axes))
	for _, axis := range f.Axes {
		value, requested := axes[axis.Tag]
		if !requested || value < axis.Min || value > axis.Max {
			value = axis.Default
		}
		location[axis.Tag] = value
	}

	// Units, tables, and metrics are shared with the parametric
	// artifact: decoded fonts are immutable, so sharing is safe.
	return &Font{
		UnitsPerEm: f.UnitsPerEm,
		Location:   location,
		Units:      f.Units,
		Tables:     f.Tables,
		VMetrics:   f.VMetrics,
		Names:      f.Names,
	}, nil
}

// NewAccumulator returns an empty font ready to receive units.
func (e *UFC) NewAccumulator() Artifact {
	return &Font{
		Units:  make(map[UnitID]Unit),
		Tables: make(map[string][]byte),
	}
}

// CopyUnits copies the listed units verbatim from src into acc.
func (e *UFC) CopyUnits(acc, src Artifact, units []UnitID) error {
	accFont, err := e.asFont(acc, "accumulator")
	if err != nil {
		return err
	}
	srcFont, err := e.asFont(src, "source")
	if err != nil {
		return err
	}

	for _, id := range units {
		unit, ok := srcFont.Units[id]
		if !ok {
			return fmt.Errorf("fontengine: unit %s not in source", id)
		}
		if _, exists := accFont.Units[id]; exists {
			return fmt.Errorf("fontengine: unit %s already in accumulator", id)
		}
		accFont.Units[id] = unit
	}
	return nil
}

// InheritGlobals replaces acc's globals with verbatim copies of
// src's. Fields src lacks are absent in acc afterwards.
func (e *UFC) InheritGlobals(acc, src Artifact) error {
	accFont, err := e.asFont(acc, "accumulator")
	if err != nil {
		return err
	}
	srcFont, err := e.asFont(src, "source")
	if err != nil {
		return err
	}

	accFont.UnitsPerEm = srcFont.UnitsPerEm
	accFont.Tables = make(map[string][]byte, len(srcFont.Tables))
	for name, table := range srcFont.Tables {
		accFont.Tables[name] = append([]byte(nil), table...)
	}
	accFont.VMetrics = nil
	if srcFont.VMetrics != nil {
		metrics := *srcFont.VMetrics
		accFont.VMetrics = &metrics
	}
	accFont.Names = nil
	if srcFont.Names != nil {
		names := *srcFont.Names
		accFont.Names = &names
	}
	return nil
}

// AdoptGlobals copies into acc only the global fields acc does not
// define yet.
func (e *UFC) AdoptGlobals(acc, src Artifact) error {
	accFont, err := e.asFont(acc, "accumulator")
	if err != nil {
		return err
	}
	srcFont, err := e.asFont(src, "source")
	if err != nil {
		return err
	}

	if accFont.UnitsPerEm == 0 {
		accFont.UnitsPerEm = srcFont.UnitsPerEm
	}
	for name, table := range srcFont.Tables {
		if _, exists := accFont.Tables[name]; exists {
			continue
		}
		accFont.Tables[name] = append([]byte(nil), table...)
	}
	if accFont.VMetrics == nil && srcFont.VMetrics != nil {
		metrics := *srcFont.VMetrics
		accFont.VMetrics = &metrics
	}
	if accFont.Names == nil && srcFont.Names != nil {
		names := *srcFont.Names
		accFont.Names = &names
	}
	return nil
}

// WidenBounds extends acc's named vertical metric fields to cover
// src's values. An acc without a metrics record is left alone.
func (e *UFC) WidenBounds(acc, src Artifact, fields []string) error {
	accFont, err := e.asFont(acc, "accumulator")
	if err != nil {
		return err
	}
	srcFont, err := e.asFont(src, "source")
	if err != nil {
		return err
	}
	if accFont.VMetrics == nil || srcFont.VMetrics == nil {
		return nil
	}

	for _, field := range fields {
		switch field {
		case FieldAscent:
			if srcFont.VMetrics.Ascent > accFont.VMetrics.Ascent {
				accFont.VMetrics.Ascent = srcFont.VMetrics.Ascent
			}
		case FieldDescent:
			if srcFont.VMetrics.Descent < accFont.VMetrics.Descent {
				accFont.VMetrics.Descent = srcFont.VMetrics.Descent
			}
		case FieldLineGap:
			if srcFont.VMetrics.LineGap > accFont.VMetrics.LineGap {
				accFont.VMetrics.LineGap = srcFont.VMetrics.LineGap
			}
		default:
			return fmt.Errorf("fontengine: unknown bound field %q", field)
		}
	}
	return nil
}

// SetNaming stamps the naming record.
func (e *UFC) SetNaming(a Artifact, naming Naming) error {
	f, err := e.asFont(a, "naming")
	if err != nil {
		return err
	}
	names := naming
	f.Names = &names
	return nil
}

// validateUnitID rejects surrogates and out-of-range codepoints.
func validateUnitID(id UnitID) error {
	if id >= 0xD800 && id <= 0xDFFF {
		return fmt.Errorf("fontengine: unit %s is a surrogate codepoint", id)
	}
	if id > 0x10FFFF {
		return fmt.Errorf("fontengine: unit %s beyond U+10FFFF", id)
	}
	return nil
}
