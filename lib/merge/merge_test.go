// Copyright 2026 The Unito Authors
// SPDX-License-Identifier: Apache-2.0

package merge

import (
	"bytes"
	"strings"
	"testing"

	"github.com/unito-fonts/unito/lib/fontengine"
	"github.com/unito-fonts/unito/lib/fontspec"
)

// testFont builds a static font whose outlines carry the label, so
// tests can tell which contribution a merged unit came from.
func testFont(label string, ids ...fontengine.UnitID) *fontengine.Font {
	font := &fontengine.Font{
		UnitsPerEm: 1000,
		Units:      make(map[fontengine.UnitID]fontengine.Unit, len(ids)),
	}
	for _, id := range ids {
		font.Units[id] = fontengine.Unit{
			Advance: 600,
			Outline: []byte(label + ":" + id.String()),
		}
	}
	return font
}

func newMerger() *Merger {
	return &Merger{
		Engine: fontengine.NewUFC(),
		Widen: []string{
			fontengine.FieldAscent,
			fontengine.FieldDescent,
			fontengine.FieldLineGap,
		},
	}
}

// outlineSource returns the label stamped into a merged unit's
// outline.
func outlineSource(t *testing.T, a fontengine.Artifact, id fontengine.UnitID) string {
	t.Helper()
	font, ok := a.(*fontengine.Font)
	if !ok {
		t.Fatalf("artifact is %T, want *fontengine.Font", a)
	}
	unit, ok := font.Units[id]
	if !ok {
		t.Fatalf("unit %s not in artifact", id)
	}
	label, _, ok := strings.Cut(string(unit.Outline), ":")
	if !ok {
		t.Fatalf("outline %q carries no source label", unit.Outline)
	}
	return label
}

func TestMergeFirstWriterWins(t *testing.T) {
	merger := newMerger()
	contribs := []Contribution{
		{Artifact: testFont("alpha", 0x41, 0x42), Source: "alpha"},
		{Artifact: testFont("beta", 0x42, 0x43), Source: "beta"},
	}

	acc, stats, err := merger.Merge(nil, contribs)
	if err != nil {
		t.Fatalf("Merge: %v", err)
	}
	if acc.Len() != 3 {
		t.Fatalf("merged %d units, want 3", acc.Len())
	}
	if got := outlineSource(t, acc, 0x42); got != "alpha" {
		t.Errorf("contested unit came from %q, want alpha", got)
	}
	if stats.Sources[1].Skipped != 1 {
		t.Errorf("beta skipped %d units, want 1", stats.Sources[1].Skipped)
	}
	if stats.Units != 3 {
		t.Errorf("stats.Units = %d, want 3", stats.Units)
	}
}

func TestMergeExclusionReleasesUnit(t *testing.T) {
	// alpha defines three ideographs but excludes the third; beta
	// defines the second through fourth. The excluded unit must enter
	// from beta even though alpha outranks it.
	merger := newMerger()
	exclude := fontspec.NewRuneSet(fontspec.RuneRange{Lo: 0x4E02, Hi: 0x4E02})
	contribs := []Contribution{
		{Artifact: testFont("alpha", 0x4E00, 0x4E01, 0x4E02), Exclude: exclude, Source: "alpha"},
		{Artifact: testFont("beta", 0x4E01, 0x4E02, 0x4E03), Source: "beta"},
	}

	acc, stats, err := merger.Merge(nil, contribs)
	if err != nil {
		t.Fatalf("Merge: %v", err)
	}

	want := map[fontengine.UnitID]string{
		0x4E00: "alpha",
		0x4E01: "alpha",
		0x4E02: "beta",
		0x4E03: "beta",
	}
	if acc.Len() != len(want) {
		t.Fatalf("merged %d units, want %d", acc.Len(), len(want))
	}
	for id, source := range want {
		if got := outlineSource(t, acc, id); got != source {
			t.Errorf("unit %s came from %q, want %q", id, got, source)
		}
	}

	alpha, beta := stats.Sources[0], stats.Sources[1]
	if alpha.Added != 2 || alpha.Excluded != 1 {
		t.Errorf("alpha stats = %+v, want Added 2 Excluded 1", alpha)
	}
	if beta.Added != 2 || beta.Skipped != 1 {
		t.Errorf("beta stats = %+v, want Added 2 Skipped 1", beta)
	}
}

func TestMergeDeterministic(t *testing.T) {
	merger := newMerger()
	base := testFont("base", 0x20, 0x41)
	base.Tables = map[string][]byte{"shaping": []byte("base shaping")}
	base.VMetrics = &fontengine.Metrics{Ascent: 800, Descent: -200}

	build := func() []byte {
		t.Helper()
		exclude := fontspec.NewRuneSet(fontspec.RuneRange{Lo: 0x4E00, Hi: 0x4E0F})
		contribs := []Contribution{
			{Artifact: testFont("kana", 0x3042, 0x3044, 0x4E05), Exclude: exclude, Source: "kana"},
			{Artifact: testFont("han", 0x4E00, 0x4E05), Source: "han"},
		}
		acc, _, err := merger.Merge(&Contribution{Artifact: base, Source: "base"}, contribs)
		if err != nil {
			t.Fatalf("Merge: %v", err)
		}
		data, err := merger.Engine.Encode(acc)
		if err != nil {
			t.Fatalf("Encode: %v", err)
		}
		return data
	}

	first, second := build(), build()
	if !bytes.Equal(first, second) {
		t.Error("two merges of identical inputs encoded differently")
	}
}

func TestMergeEmptyContributionList(t *testing.T) {
	merger := newMerger()
	acc, stats, err := merger.Merge(nil, nil)
	if err != nil {
		t.Fatalf("Merge: %v", err)
	}
	if acc.Len() != 0 || stats.Units != 0 {
		t.Errorf("empty merge produced %d units", acc.Len())
	}
}

func TestMergeBaseInheritanceExclusive(t *testing.T) {
	base := testFont("base", 0x41)
	base.Tables = map[string][]byte{"shaping": []byte("base shaping")}
	base.VMetrics = &fontengine.Metrics{Ascent: 800, Descent: -200}
	// The base carries no naming record. It must stay absent in the
	// result even though the extension defines one.

	ext := testFont("ext", 0x42)
	ext.Tables = map[string][]byte{
		"shaping": []byte("ext shaping"),
		"color":   []byte("ext color"),
	}
	ext.VMetrics = &fontengine.Metrics{Ascent: 1000, Descent: -350}
	ext.Names = &fontengine.Naming{Family: "Ext"}

	merger := &Merger{Engine: fontengine.NewUFC()}
	acc, _, err := merger.Merge(
		&Contribution{Artifact: base, Source: "base"},
		[]Contribution{{Artifact: ext, Source: "ext"}},
	)
	if err != nil {
		t.Fatalf("Merge: %v", err)
	}

	font := acc.(*fontengine.Font)
	if len(font.Tables) != 1 || string(font.Tables["shaping"]) != "base shaping" {
		t.Errorf("global tables = %q, want only the base's shaping table", font.Tables)
	}
	if font.Names != nil {
		t.Errorf("naming record backfilled from extension: %+v", font.Names)
	}
	if font.VMetrics == nil || *font.VMetrics != (fontengine.Metrics{Ascent: 800, Descent: -200}) {
		t.Errorf("metrics = %+v, want the base's untouched", font.VMetrics)
	}
	if got := outlineSource(t, acc, 0x41); got != "base" {
		t.Errorf("base unit came from %q", got)
	}
	if got := outlineSource(t, acc, 0x42); got != "ext" {
		t.Errorf("extension unit came from %q", got)
	}
}

func TestMergeBaseAppliesOwnExclusions(t *testing.T) {
	// The designated base font donates globals but can still carry
	// exclusion rules of its own; its excluded units must come from
	// later contributions like anyone else's.
	base := testFont("base", 0x41, 0x4E00)
	base.Tables = map[string][]byte{"shaping": []byte("base shaping")}
	exclude := fontspec.NewRuneSet(fontspec.RuneRange{Lo: 0x4E00, Hi: 0x9FFF})

	merger := newMerger()
	acc, stats, err := merger.Merge(
		&Contribution{Artifact: base, Exclude: exclude, Source: "base"},
		[]Contribution{{Artifact: testFont("han", 0x4E00), Source: "han"}},
	)
	if err != nil {
		t.Fatalf("Merge: %v", err)
	}

	if got := outlineSource(t, acc, 0x41); got != "base" {
		t.Errorf("unit U+0041 came from %q", got)
	}
	if got := outlineSource(t, acc, 0x4E00); got != "han" {
		t.Errorf("excluded base unit came from %q, want han", got)
	}
	if string(acc.(*fontengine.Font).Tables["shaping"]) != "base shaping" {
		t.Error("base globals not inherited")
	}
	if stats.Sources[0].Excluded != 1 || stats.Sources[0].Added != 1 {
		t.Errorf("base stats = %+v, want Added 1 Excluded 1", stats.Sources[0])
	}
}

func TestMergeWidenPolicy(t *testing.T) {
	base := testFont("base", 0x41)
	base.VMetrics = &fontengine.Metrics{Ascent: 800, Descent: -200, LineGap: 80}

	tests := []struct {
		name    string
		widen   []string
		metrics fontengine.Metrics
		want    fontengine.Metrics
	}{
		{
			name:    "widen all fields",
			widen:   []string{fontengine.FieldAscent, fontengine.FieldDescent, fontengine.FieldLineGap},
			metrics: fontengine.Metrics{Ascent: 1000, Descent: -350, LineGap: 120},
			want:    fontengine.Metrics{Ascent: 1000, Descent: -350, LineGap: 120},
		},
		{
			name:    "first keeps the base values",
			widen:   nil,
			metrics: fontengine.Metrics{Ascent: 1000, Descent: -350, LineGap: 120},
			want:    fontengine.Metrics{Ascent: 800, Descent: -200, LineGap: 80},
		},
		{
			name:    "single field policy",
			widen:   []string{fontengine.FieldAscent},
			metrics: fontengine.Metrics{Ascent: 1000, Descent: -350, LineGap: 120},
			want:    fontengine.Metrics{Ascent: 1000, Descent: -200, LineGap: 80},
		},
		{
			name:    "narrower source never narrows",
			widen:   []string{fontengine.FieldAscent, fontengine.FieldDescent, fontengine.FieldLineGap},
			metrics: fontengine.Metrics{Ascent: 700, Descent: -100, LineGap: 10},
			want:    fontengine.Metrics{Ascent: 800, Descent: -200, LineGap: 80},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			contrib := testFont("ext", 0x42)
			metrics := tt.metrics
			contrib.VMetrics = &metrics

			merger := &Merger{Engine: fontengine.NewUFC(), Widen: tt.widen}
			acc, _, err := merger.Merge(
				&Contribution{Artifact: base, Source: "base"},
				[]Contribution{{Artifact: contrib, Source: "ext"}},
			)
			if err != nil {
				t.Fatalf("Merge: %v", err)
			}
			got := acc.(*fontengine.Font).VMetrics
			if got == nil || *got != tt.want {
				t.Errorf("metrics = %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestMergeUnitCap(t *testing.T) {
	merger := newMerger()
	merger.MaxUnits = 3
	contribs := []Contribution{
		{Artifact: testFont("alpha", 0x41, 0x42), Source: "alpha"},
		{Artifact: testFont("beta", 0x43, 0x44, 0x45), Source: "beta"},
	}

	acc, stats, err := merger.Merge(nil, contribs)
	if err != nil {
		t.Fatalf("Merge: %v", err)
	}
	if acc.Len() != 3 {
		t.Fatalf("merged %d units, want 3", acc.Len())
	}
	if !stats.Truncated {
		t.Error("cap cut units but Truncated is false")
	}
	// The cut is deterministic: ascending unit order keeps the lowest.
	if !acc.Has(0x43) || acc.Has(0x44) || acc.Has(0x45) {
		t.Errorf("capped unit set = %v", acc.UnitIDs())
	}
	if stats.Sources[1].Added != 1 {
		t.Errorf("beta added %d units, want 1", stats.Sources[1].Added)
	}
}

func TestMergeRejectsParametric(t *testing.T) {
	parametric := testFont("variable", 0x41)
	parametric.Axes = []fontengine.Axis{{Tag: "wght", Min: 100, Default: 400, Max: 900}}
	merger := newMerger()

	_, _, err := merger.Merge(nil, []Contribution{{Artifact: parametric, Source: "variable"}})
	if err == nil || !strings.Contains(err.Error(), "instantiate") {
		t.Errorf("parametric contribution: err = %v", err)
	}

	_, _, err = merger.Merge(&Contribution{Artifact: parametric, Source: "variable"}, nil)
	if err == nil || !strings.Contains(err.Error(), "instantiate") {
		t.Errorf("parametric base: err = %v", err)
	}
}

func TestMergeAdoptsGlobalsWithoutBase(t *testing.T) {
	first := testFont("alpha", 0x41)
	first.Tables = map[string][]byte{"shaping": []byte("alpha shaping")}

	second := testFont("beta", 0x42)
	second.Tables = map[string][]byte{
		"shaping": []byte("beta shaping"),
		"color":   []byte("beta color"),
	}
	second.VMetrics = &fontengine.Metrics{Ascent: 900, Descent: -250}
	second.Names = &fontengine.Naming{Family: "Beta"}

	merger := newMerger()
	acc, _, err := merger.Merge(nil, []Contribution{
		{Artifact: first, Source: "alpha"},
		{Artifact: second, Source: "beta"},
	})
	if err != nil {
		t.Fatalf("Merge: %v", err)
	}

	font := acc.(*fontengine.Font)
	if string(font.Tables["shaping"]) != "alpha shaping" {
		t.Errorf("shaping table = %q, want the first writer's", font.Tables["shaping"])
	}
	if string(font.Tables["color"]) != "beta color" {
		t.Errorf("color table = %q, want adopted from beta", font.Tables["color"])
	}
	if font.VMetrics == nil || font.VMetrics.Ascent != 900 {
		t.Errorf("metrics = %+v, want beta's (alpha defined none)", font.VMetrics)
	}
	if font.Names == nil || font.Names.Family != "Beta" {
		t.Errorf("naming = %+v, want beta's", font.Names)
	}
}

func TestWidenFields(t *testing.T) {
	all := []string{fontspec.BoundAscent, fontspec.BoundDescent, fontspec.BoundLineGap}

	tests := []struct {
		name   string
		bounds map[string]string
		want   []string
	}{
		{"default widens everything", nil, all},
		{
			"first removes a field",
			map[string]string{fontspec.BoundAscent: fontspec.PolicyFirst},
			[]string{fontspec.BoundDescent, fontspec.BoundLineGap},
		},
		{
			"explicit widen is redundant but honored",
			map[string]string{fontspec.BoundDescent: fontspec.PolicyWiden},
			all,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := &fontspec.Manifest{Merge: fontspec.MergeConfig{Bounds: tt.bounds}}
			got := WidenFields(m)
			if len(got) != len(tt.want) {
				t.Fatalf("WidenFields = %v, want %v", got, tt.want)
			}
			for i := range got {
				if got[i] != tt.want[i] {
					t.Fatalf("WidenFields = %v, want %v", got, tt.want)
				}
			}
		})
	}
}
