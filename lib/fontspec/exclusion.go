// Copyright 2026 The Unito Authors
// SPDX-License-Identifier: Apache-2.0

package fontspec

import "fmt"

// ExclusionRule strips units from one source before merge
// eligibility. It is a tagged variant: explicit ranges, one named
// block, or a union of named blocks. Several fields may be set; the
// resolved set is the union of everything named.
type ExclusionRule struct {
	// Ranges are inclusive hex codepoint ranges, "4E00-9FFF" or a
	// single "FE30".
	Ranges []string `yaml:"ranges,omitempty"`

	// Block names one built-in block.
	Block string `yaml:"block,omitempty"`

	// Blocks names a union of built-in blocks.
	Blocks []string `yaml:"blocks,omitempty"`
}

// resolve turns the rule into a concrete set. Unknown block names and
// malformed ranges are returned as errors; callers surface them as
// validation issues.
func (r *ExclusionRule) resolve() (RuneSet, error) {
	set := RuneSet{}

	for _, spec := range r.Ranges {
		rng, err := ParseRuneRange(spec)
		if err != nil {
			return RuneSet{}, err
		}
		set = set.Union(NewRuneSet(rng))
	}

	names := r.Blocks
	if r.Block != "" {
		names = append([]string{r.Block}, names...)
	}
	for _, name := range names {
		block, ok := Block(name)
		if !ok {
			return RuneSet{}, fmt.Errorf("unknown block %q (known: %v)", name, BlockNames())
		}
		set = set.Union(block)
	}

	return set, nil
}

// empty reports whether the rule names nothing at all.
func (r *ExclusionRule) empty() bool {
	return len(r.Ranges) == 0 && r.Block == "" && len(r.Blocks) == 0
}

// resolveExclusions resolves every source's rules into its Excluded
// set. Called once by Load, after validation has checked the rule
// syntax, so errors here indicate a bug rather than bad input.
func (m *Manifest) resolveExclusions() error {
	resolve := func(folder *Folder) error {
		for i := range folder.Sources {
			src := &folder.Sources[i]
			set := RuneSet{}
			for j := range src.Exclude {
				ruleSet, err := src.Exclude[j].resolve()
				if err != nil {
					return fmt.Errorf("source %s: %w", src.ID(), err)
				}
				set = set.Union(ruleSet)
			}
			src.Excluded = set
		}
		return nil
	}

	for i := range m.Folders {
		if err := resolve(&m.Folders[i]); err != nil {
			return err
		}
	}
	for i := range m.Families {
		for j := range m.Families[i].Folders {
			if err := resolve(&m.Families[i].Folders[j]); err != nil {
				return fmt.Errorf("family %s: %w", m.Families[i].Name, err)
			}
		}
	}
	return nil
}
