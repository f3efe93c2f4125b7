// Copyright 2026 The Unito Authors
// SPDX-License-Identifier: Apache-2.0

package buildplan

import (
	"reflect"
	"strings"
	"testing"

	"github.com/unito-fonts/unito/lib/fontspec"
)

// planManifest declares three families: UnitoJP and UnitoTC share the
// full shared folder set, UnitoKR omits the symbols source and builds
// only Regular.
const planManifest = `
repositories:
  - name: noto
    kind: https
    url: https://example.test/noto

styles:
  - name: Regular
    axes: {wght: 400}
  - name: Bold
    axes: {wght: 700}

folders:
  - name: base
    priority: 10
    base: true
    sources:
      - repository: noto
        path: Sans.ufc
  - name: symbols
    priority: 20
    sources:
      - repository: noto
        path: Symbols.ufc
        omit_for: [UnitoKR]

families:
  - name: Unito JP
    slug: UnitoJP
  - name: Unito TC
    slug: UnitoTC
  - name: Unito KR
    slug: UnitoKR
    styles: [Regular]
`

func loadPlanManifest(t *testing.T) *fontspec.Manifest {
	t.Helper()
	m, err := fontspec.LoadBytes([]byte(planManifest), "plan.yaml")
	if err != nil {
		t.Fatalf("LoadBytes: %v", err)
	}
	return m
}

func compute(t *testing.T, m *fontspec.Manifest, opts Options) *Plan {
	t.Helper()
	plan, err := Compute(m, opts)
	if err != nil {
		t.Fatalf("Compute: %v", err)
	}
	return plan
}

func stepsByKind(plan *Plan, kind string) []Step {
	var steps []Step
	for _, step := range plan.Steps {
		if step.Kind == kind {
			steps = append(steps, step)
		}
	}
	return steps
}

func TestComputeGroupsSharedBases(t *testing.T) {
	plan := compute(t, loadPlanManifest(t), Options{})

	bases := stepsByKind(plan, KindBase)
	targets := stepsByKind(plan, KindTarget)
	// JP and TC share a base per style (Regular, Bold); KR's omission
	// of the symbols source gives it a base of its own (Regular only).
	if len(bases) != 3 {
		t.Fatalf("base steps = %d, want 3: %+v", len(bases), bases)
	}
	if len(targets) != 5 {
		t.Fatalf("target steps = %d, want 5: %+v", len(targets), targets)
	}

	jp, ok := plan.Step("target/UnitoJP/Regular")
	if !ok {
		t.Fatal("UnitoJP Regular target missing")
	}
	tc, _ := plan.Step("target/UnitoTC/Regular")
	kr, _ := plan.Step("target/UnitoKR/Regular")

	if len(jp.DependsOn) != 1 || len(tc.DependsOn) != 1 || len(kr.DependsOn) != 1 {
		t.Fatal("every target depends on exactly one base step")
	}
	if jp.DependsOn[0] != tc.DependsOn[0] {
		t.Errorf("JP and TC bases differ: %s vs %s", jp.DependsOn[0], tc.DependsOn[0])
	}
	if jp.DependsOn[0] == kr.DependsOn[0] {
		t.Error("KR shares JP's base despite omitting a source")
	}

	for _, base := range bases {
		if len(base.DependsOn) != 0 {
			t.Errorf("base step %s has dependencies %v", base.ID, base.DependsOn)
		}
		if _, ok := plan.Shared[base.SharedDigest]; !ok {
			t.Errorf("digest %s missing from plan.Shared", base.SharedDigest)
		}
	}
}

func TestComputeDeterministicOrder(t *testing.T) {
	m := loadPlanManifest(t)
	first := compute(t, m, Options{})
	second := compute(t, m, Options{})
	if !reflect.DeepEqual(first.Steps, second.Steps) {
		t.Fatal("two plans over the same manifest differ")
	}

	// Bases lead, then targets in (slug, style) order.
	var kinds []string
	for _, step := range first.Steps {
		kinds = append(kinds, step.Kind)
	}
	for i := 1; i < len(kinds); i++ {
		if kinds[i-1] == KindTarget && kinds[i] == KindBase {
			t.Fatalf("base step after a target: %v", kinds)
		}
	}

	targets := stepsByKind(first, KindTarget)
	wantOrder := []string{
		"target/UnitoJP/Bold",
		"target/UnitoJP/Regular",
		"target/UnitoKR/Regular",
		"target/UnitoTC/Bold",
		"target/UnitoTC/Regular",
	}
	for i, want := range wantOrder {
		if targets[i].ID != want {
			t.Fatalf("target order %v, want %v", targets, wantOrder)
		}
	}
}

func TestComputeFamilyFilter(t *testing.T) {
	m := loadPlanManifest(t)

	// Slug and display name both select.
	for _, filter := range []string{"UnitoJP", "Unito JP"} {
		plan := compute(t, m, Options{Families: []string{filter}})
		if got := len(stepsByKind(plan, KindTarget)); got != 2 {
			t.Errorf("filter %q: targets = %d, want 2", filter, got)
		}
		if got := len(stepsByKind(plan, KindBase)); got != 2 {
			t.Errorf("filter %q: bases = %d, want 2", filter, got)
		}
	}
}

func TestComputeStyleFilter(t *testing.T) {
	plan := compute(t, loadPlanManifest(t), Options{Styles: []string{"Bold"}})

	// KR builds no Bold, so only JP and TC appear, sharing one base.
	if got := len(stepsByKind(plan, KindBase)); got != 1 {
		t.Errorf("bases = %d, want 1", got)
	}
	targets := stepsByKind(plan, KindTarget)
	if len(targets) != 2 {
		t.Fatalf("targets = %+v, want JP and TC Bold", targets)
	}
	for _, target := range targets {
		if target.Style != "Bold" {
			t.Errorf("style filter leaked %s", target.ID)
		}
	}
}

func TestComputeEmptyIntersectionIsEmptyPlan(t *testing.T) {
	plan := compute(t, loadPlanManifest(t), Options{
		Families: []string{"UnitoKR"},
		Styles:   []string{"Bold"},
	})
	if len(plan.Steps) != 0 {
		t.Fatalf("plan = %+v, want empty", plan.Steps)
	}
}

func TestComputeUnknownFilters(t *testing.T) {
	m := loadPlanManifest(t)

	_, err := Compute(m, Options{Families: []string{"Ghost", "Phantom"}})
	if err == nil {
		t.Fatal("unknown families accepted")
	}
	for _, name := range []string{"Ghost", "Phantom"} {
		if !strings.Contains(err.Error(), name) {
			t.Errorf("error %q does not mention %q", err, name)
		}
	}

	if _, err := Compute(m, Options{Styles: []string{"Slanted"}}); err == nil {
		t.Fatal("unknown style accepted")
	}
}

func TestComputeDigestReflectsExclusions(t *testing.T) {
	m := loadPlanManifest(t)
	before := compute(t, m, Options{})

	modified := loadPlanManifest(t)
	modified.Folders[0].Sources[0].Excluded = fontspec.NewRuneSet(
		fontspec.RuneRange{Lo: 0x0100, Hi: 0x01FF},
	)
	after := compute(t, modified, Options{})

	jpBefore, _ := before.Step("target/UnitoJP/Regular")
	jpAfter, _ := after.Step("target/UnitoJP/Regular")
	if jpBefore.SharedDigest == jpAfter.SharedDigest {
		t.Error("changing an exclusion set did not change the shared digest")
	}
}
