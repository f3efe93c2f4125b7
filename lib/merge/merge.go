// Copyright 2026 The Unito Authors
// SPDX-License-Identifier: Apache-2.0

package merge

import (
	"fmt"

	"github.com/unito-fonts/unito/lib/fontengine"
	"github.com/unito-fonts/unito/lib/fontspec"
)

// Contribution is one artifact entering a merge, already fetched and
// instantiated by the caller. Exclude strips units from this
// contribution only; a unit excluded here may still enter from a
// lower-priority contribution. Source labels the contribution in
// stats and error messages.
type Contribution struct {
	Artifact fontengine.Artifact
	Exclude  fontspec.RuneSet
	Source   string
}

// SourceStats records what one contribution did during a merge.
type SourceStats struct {
	// Source is the contribution's label.
	Source string

	// Added counts units copied into the accumulator.
	Added int

	// Skipped counts units a higher-priority contribution already
	// defined.
	Skipped int

	// Excluded counts units the contribution's exclusion set removed
	// before eligibility.
	Excluded int
}

// Stats describes a completed merge.
type Stats struct {
	// Units is the accumulator's final unit count.
	Units int

	// Sources holds one entry per contribution, in merge order.
	Sources []SourceStats

	// Truncated reports that the unit cap kept at least one eligible
	// unit out.
	Truncated bool
}

// Merger folds contributions into one artifact by priority-ordered
// union. The first contribution to define a unit wins; later
// definitions are skipped. Merging is strictly sequential over the
// contribution order, which is what keeps first-writer-wins
// deterministic.
type Merger struct {
	// Engine performs the artifact mechanics.
	Engine fontengine.Engine

	// MaxUnits caps the accumulator's unit count. Zero means no cap.
	MaxUnits int

	// Widen names the vertical metric fields every contribution may
	// widen (fontengine.FieldAscent and friends). Fields not named
	// here are strict first-writer-wins. Widening is the only
	// exception to that rule.
	Widen []string
}

// WidenFields translates the manifest's bound policy into the field
// list a Merger widens.
func WidenFields(m *fontspec.Manifest) []string {
	var fields []string
	for _, field := range []string{fontspec.BoundAscent, fontspec.BoundDescent, fontspec.BoundLineGap} {
		if m.BoundPolicy(field) == fontspec.PolicyWiden {
			fields = append(fields, field)
		}
	}
	return fields
}

// Merge folds the contributions, in order, into a fresh accumulator.
//
// A non-nil base seeds the accumulator: its global tables, vertical
// metrics, units-per-em, and naming are inherited verbatim, and its
// units enter first (subject to its own exclusion set and the cap).
// No contribution may then adopt global fields, and fields the base
// lacks stay absent. Without a base, global fields follow per-field
// first-writer-wins across the contributions.
//
// The base may be a plain source artifact (the designated base font
// seeding a shared merge) or an already-merged base artifact that a
// family target extends; the engine does not distinguish them.
//
// An empty contribution list yields an empty artifact, not an error.
// The returned stats describe what the base and every contribution
// added, skipped, and excluded, in merge order.
func (m *Merger) Merge(base *Contribution, contribs []Contribution) (fontengine.Artifact, *Stats, error) {
	acc := m.Engine.NewAccumulator()
	stats := &Stats{}

	if base != nil {
		if err := checkMergeable(*base); err != nil {
			return nil, nil, err
		}
		if err := m.Engine.InheritGlobals(acc, base.Artifact); err != nil {
			return nil, nil, fmt.Errorf("merge %s: inherit globals: %w", base.Source, err)
		}
		baseStats, err := m.fold(acc, *base, stats)
		if err != nil {
			return nil, nil, err
		}
		stats.Sources = append(stats.Sources, baseStats)
	}

	for _, contrib := range contribs {
		if err := checkMergeable(contrib); err != nil {
			return nil, nil, err
		}

		srcStats, err := m.fold(acc, contrib, stats)
		if err != nil {
			return nil, nil, err
		}

		if base == nil {
			if err := m.Engine.AdoptGlobals(acc, contrib.Artifact); err != nil {
				return nil, nil, fmt.Errorf("merge %s: adopt globals: %w", contrib.Source, err)
			}
		}
		if len(m.Widen) > 0 {
			if err := m.Engine.WidenBounds(acc, contrib.Artifact, m.Widen); err != nil {
				return nil, nil, fmt.Errorf("merge %s: widen bounds: %w", contrib.Source, err)
			}
		}

		stats.Sources = append(stats.Sources, srcStats)
	}

	stats.Units = acc.Len()
	return acc, stats, nil
}

// fold copies one contribution's eligible units into the accumulator.
func (m *Merger) fold(acc fontengine.Artifact, contrib Contribution, stats *Stats) (SourceStats, error) {
	eligible, srcStats, truncated := m.eligible(acc, contrib)
	if truncated {
		stats.Truncated = true
	}
	if len(eligible) > 0 {
		if err := m.Engine.CopyUnits(acc, contrib.Artifact, eligible); err != nil {
			return srcStats, fmt.Errorf("merge %s: %w", contrib.Source, err)
		}
		srcStats.Added = len(eligible)
	}
	return srcStats, nil
}

// checkMergeable rejects contributions a merge cannot take: nil
// artifacts and parametric artifacts that skipped instantiation.
func checkMergeable(contrib Contribution) error {
	if contrib.Artifact == nil {
		return fmt.Errorf("merge %s: nil artifact", contrib.Source)
	}
	if contrib.Artifact.Parametric() {
		return fmt.Errorf("merge %s: artifact is parametric, instantiate it before merging", contrib.Source)
	}
	return nil
}

// eligible returns the units the contribution may add: defined by the
// artifact, not excluded, not already present, and inside the unit
// cap. Iteration runs in ascending unit order, so a cap cut lands on
// the same units every build.
func (m *Merger) eligible(acc fontengine.Artifact, contrib Contribution) ([]fontengine.UnitID, SourceStats, bool) {
	ids := contrib.Artifact.UnitIDs()
	eligible := make([]fontengine.UnitID, 0, len(ids))
	stats := SourceStats{Source: contrib.Source}
	truncated := false
	for _, id := range ids {
		if contrib.Exclude.Contains(rune(id)) {
			stats.Excluded++
			continue
		}
		if acc.Has(id) {
			stats.Skipped++
			continue
		}
		if m.MaxUnits > 0 && acc.Len()+len(eligible) >= m.MaxUnits {
			truncated = true
			break
		}
		eligible = append(eligible, id)
	}
	return eligible, stats, truncated
}
