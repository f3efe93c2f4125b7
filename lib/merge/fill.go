// Copyright 2026 The Unito Authors
// SPDX-License-Identifier: Apache-2.0

package merge

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"

	"github.com/tidwall/jsonc"

	"github.com/unito-fonts/unito/lib/fontengine"
)

// FillStats describes a frequency-fill pass.
type FillStats struct {
	// Added counts units copied in from the pool.
	Added int

	// Skipped counts list entries the accumulator already defined.
	Skipped int

	// Missing counts list entries no pool contribution defines.
	Missing int

	// LimitHit reports that the unit limit ended the pass before the
	// list was exhausted.
	LimitHit bool
}

// FillByFrequency tops the accumulator up with units named by a
// frequency-ordered list. For each listed unit not already present,
// the first pool contribution defining it donates it; the pool is
// collectively first-writer in list order. Contribution exclusion
// sets are not consulted here: putting the most-used excluded units
// back, in frequency order, is the point of the pass.
//
// The pass stops once the accumulator holds limit units (zero means
// no limit). The accumulator is mutated in place.
func (m *Merger) FillByFrequency(acc fontengine.Artifact, pool []Contribution, order []fontengine.UnitID, limit int) (*FillStats, error) {
	for _, contrib := range pool {
		if contrib.Artifact == nil {
			return nil, fmt.Errorf("fill %s: nil artifact", contrib.Source)
		}
		if contrib.Artifact.Parametric() {
			return nil, fmt.Errorf("fill %s: artifact is parametric, instantiate it before filling", contrib.Source)
		}
	}

	stats := &FillStats{}
	for _, id := range order {
		if limit > 0 && acc.Len() >= limit {
			stats.LimitHit = true
			break
		}
		if acc.Has(id) {
			stats.Skipped++
			continue
		}
		donor := -1
		for i := range pool {
			if pool[i].Artifact.Has(id) {
				donor = i
				break
			}
		}
		if donor < 0 {
			stats.Missing++
			continue
		}
		if err := m.Engine.CopyUnits(acc, pool[donor].Artifact, []fontengine.UnitID{id}); err != nil {
			return nil, fmt.Errorf("fill %s: %w", pool[donor].Source, err)
		}
		stats.Added++
	}
	return stats, nil
}

// ParseFillList parses a frequency list document: JSON or JSONC,
// either an array whose elements are codepoint numbers or strings
// (each string contributes its runes in order), or an object of the
// form {"chars": "..."} whose string contributes its runes in order.
// Duplicate entries are kept; FillByFrequency skips them naturally.
func ParseFillList(data []byte) ([]fontengine.UnitID, error) {
	clean := jsonc.ToJSON(data)

	var items []any
	if err := json.Unmarshal(clean, &items); err == nil {
		ids := make([]fontengine.UnitID, 0, len(items))
		for i, item := range items {
			switch v := item.(type) {
			case float64:
				id, err := codepointFromNumber(v)
				if err != nil {
					return nil, fmt.Errorf("fill list [%d]: %w", i, err)
				}
				ids = append(ids, id)
			case string:
				for _, r := range v {
					ids = append(ids, fontengine.UnitID(r))
				}
			default:
				return nil, fmt.Errorf("fill list [%d]: want a codepoint number or a string, got %T", i, item)
			}
		}
		return ids, nil
	}

	var obj struct {
		Chars string `json:"chars"`
	}
	if err := json.Unmarshal(clean, &obj); err != nil {
		return nil, fmt.Errorf("fill list: %w", err)
	}
	if obj.Chars == "" {
		return nil, errors.New(`fill list: object form needs a non-empty "chars" string`)
	}
	ids := make([]fontengine.UnitID, 0, len(obj.Chars))
	for _, r := range obj.Chars {
		ids = append(ids, fontengine.UnitID(r))
	}
	return ids, nil
}

// codepointFromNumber validates a JSON number as a Unicode codepoint.
func codepointFromNumber(v float64) (fontengine.UnitID, error) {
	if v != math.Trunc(v) || v < 0 || v > 0x10FFFF {
		return 0, fmt.Errorf("%v is not a Unicode codepoint", v)
	}
	id := fontengine.UnitID(v)
	if id >= 0xD800 && id <= 0xDFFF {
		return 0, fmt.Errorf("%s is a surrogate, not a character", id)
	}
	return id, nil
}
