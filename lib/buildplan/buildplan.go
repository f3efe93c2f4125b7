// Copyright 2026 The Unito Authors
// SPDX-License-Identifier: Apache-2.0

// Package buildplan computes the family build graph: one base step
// per (shared contribution list, style) group and one target step per
// (family, style) pair, with every target depending on exactly its
// group's base step. The graph is two levels by construction, so
// cycles cannot occur.
//
// Families whose effective shared lists are identical (after omit_for
// filtering) land in the same group and share one cached base
// artifact per style. That sharing is the point of the base step: the
// expensive shared merge runs once however many families extend it.
package buildplan

import (
	"errors"
	"fmt"
	"sort"

	"github.com/zeebo/blake3"

	"github.com/unito-fonts/unito/lib/fontspec"
)

// Step kinds.
const (
	KindBase   = "base"
	KindTarget = "target"
)

// Step is one schedulable unit of work.
type Step struct {
	// ID is the step's unique key, stable across invocations.
	ID string

	// Kind is KindBase or KindTarget.
	Kind string

	// Family and Slug name the owning family. Both are empty on base
	// steps, which are shared by every family in their group.
	Family string
	Slug   string

	// Style names the style the step builds.
	Style string

	// SharedDigest identifies the effective shared contribution list
	// the step merges (base steps) or extends (target steps).
	SharedDigest string

	// DependsOn lists the IDs of steps that must complete first.
	DependsOn []string
}

// Plan is one invocation's step list.
type Plan struct {
	// Steps is ordered deterministically: base steps first, sorted by
	// ID, then target steps sorted by (slug, style).
	Steps []Step

	// Shared maps a shared digest to the effective folder list it
	// identifies, for executors that need the actual sources rather
	// than the identity.
	Shared map[string][]fontspec.Folder
}

// Step returns the identified step.
func (p *Plan) Step(id string) (*Step, bool) {
	for i := range p.Steps {
		if p.Steps[i].ID == id {
			return &p.Steps[i], true
		}
	}
	return nil, false
}

// Targets returns the plan's target steps in plan order.
func (p *Plan) Targets() []*Step {
	var targets []*Step
	for i := range p.Steps {
		if p.Steps[i].Kind == KindTarget {
			targets = append(targets, &p.Steps[i])
		}
	}
	return targets
}

// Options filter the plan.
type Options struct {
	// Families keeps only the named families, matched by name or
	// slug. Empty keeps all.
	Families []string

	// Styles keeps only the named styles. Empty keeps all.
	Styles []string
}

// Compute derives the build plan from the manifest. Unknown filter
// names are an error; filters that merely match nothing (a style no
// selected family builds) yield an empty plan.
func Compute(m *fontspec.Manifest, opts Options) (*Plan, error) {
	families, err := selectFamilies(m, opts.Families)
	if err != nil {
		return nil, err
	}
	styles, err := selectStyles(m, opts.Styles)
	if err != nil {
		return nil, err
	}

	type baseKey struct{ digest, style string }
	baseIDs := make(map[baseKey]string)
	shared := make(map[string][]fontspec.Folder)
	var bases, targets []Step

	for _, family := range families {
		folders := m.EffectiveShared(family)
		digest := sharedDigest(folders)
		if _, ok := shared[digest]; !ok {
			shared[digest] = folders
		}

		for _, styleName := range family.StyleNames(m) {
			if styles != nil && !styles[styleName] {
				continue
			}

			key := baseKey{digest, styleName}
			baseID, ok := baseIDs[key]
			if !ok {
				baseID = fmt.Sprintf("%s/%s/%s", KindBase, digest[:12], styleName)
				baseIDs[key] = baseID
				bases = append(bases, Step{
					ID:           baseID,
					Kind:         KindBase,
					Style:        styleName,
					SharedDigest: digest,
				})
			}

			targets = append(targets, Step{
				ID:           fmt.Sprintf("%s/%s/%s", KindTarget, family.Slug, styleName),
				Kind:         KindTarget,
				Family:       family.Name,
				Slug:         family.Slug,
				Style:        styleName,
				SharedDigest: digest,
				DependsOn:    []string{baseID},
			})
		}
	}

	sort.Slice(bases, func(i, j int) bool { return bases[i].ID < bases[j].ID })
	sort.Slice(targets, func(i, j int) bool {
		if targets[i].Slug != targets[j].Slug {
			return targets[i].Slug < targets[j].Slug
		}
		return targets[i].Style < targets[j].Style
	})

	return &Plan{Steps: append(bases, targets...), Shared: shared}, nil
}

// selectFamilies resolves the family filter, defaulting to every
// manifest family. Unknown names are collected so one invocation
// reports them all.
func selectFamilies(m *fontspec.Manifest, filter []string) ([]*fontspec.Family, error) {
	if len(filter) == 0 {
		all := make([]*fontspec.Family, len(m.Families))
		for i := range m.Families {
			all[i] = &m.Families[i]
		}
		return all, nil
	}

	var errs []error
	keep := make(map[string]bool, len(filter))
	for _, name := range filter {
		family, ok := m.Family(name)
		if !ok {
			errs = append(errs, fmt.Errorf("unknown family %q", name))
			continue
		}
		keep[family.Slug] = true
	}
	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}

	var selected []*fontspec.Family
	for i := range m.Families {
		if keep[m.Families[i].Slug] {
			selected = append(selected, &m.Families[i])
		}
	}
	return selected, nil
}

// selectStyles resolves the style filter into a membership set, nil
// meaning no filter.
func selectStyles(m *fontspec.Manifest, filter []string) (map[string]bool, error) {
	if len(filter) == 0 {
		return nil, nil
	}

	var errs []error
	keep := make(map[string]bool, len(filter))
	for _, name := range filter {
		if _, ok := m.Style(name); !ok {
			errs = append(errs, fmt.Errorf("unknown style %q", name))
			continue
		}
		keep[name] = true
	}
	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}
	return keep, nil
}

// planDomainKey separates shared-list digests from every other BLAKE3
// use. ASCII domain name zero-padded to 32 bytes, matching the cache
// key scheme.
var planDomainKey = [32]byte{
	'u', 'n', 'i', 't', 'o', '.', 'p', 'l', 'a', 'n', '.', 's', 'h', 'a', 'r', 'e',
	'd', 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0,
}

// sharedDigest hashes the parts of an effective shared folder list
// that influence merge output: contribution order, source identities,
// exclusion sets, and the base designation. Folder names and raw
// priority values are presentation details and stay out, so two
// families whose lists differ only cosmetically still share a base.
func sharedDigest(folders []fontspec.Folder) string {
	hasher, err := blake3.NewKeyed(planDomainKey[:])
	if err != nil {
		panic("buildplan: BLAKE3 keyed hash initialization failed: " + err.Error())
	}
	for _, folder := range folders {
		if len(folder.Sources) == 0 {
			continue
		}
		fmt.Fprintf(hasher, "folder base=%t\n", folder.Base)
		for _, src := range folder.Sources {
			fmt.Fprintf(hasher, "source %s exclude=%s\n", src.ID(), src.Excluded)
		}
	}
	return fmt.Sprintf("%x", hasher.Sum(nil))
}
