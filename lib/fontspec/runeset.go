// Copyright 2026 The Unito Authors
// SPDX-License-Identifier: Apache-2.0

package fontspec

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// RuneRange is an inclusive codepoint range.
type RuneRange struct {
	Lo, Hi rune
}

// RuneSet is an immutable set of codepoints stored as sorted, disjoint
// ranges. The zero value is the empty set.
type RuneSet struct {
	ranges []RuneRange
}

// NewRuneSet builds a set from the given ranges, normalizing them:
// sorted by Lo, overlapping and adjacent ranges merged. Ranges with
// Hi < Lo are ignored.
func NewRuneSet(ranges ...RuneRange) RuneSet {
	valid := make([]RuneRange, 0, len(ranges))
	for _, r := range ranges {
		if r.Hi >= r.Lo {
			valid = append(valid, r)
		}
	}
	if len(valid) == 0 {
		return RuneSet{}
	}
	sort.Slice(valid, func(i, j int) bool { return valid[i].Lo < valid[j].Lo })

	merged := valid[:1]
	for _, r := range valid[1:] {
		last := &merged[len(merged)-1]
		if r.Lo <= last.Hi+1 {
			if r.Hi > last.Hi {
				last.Hi = r.Hi
			}
			continue
		}
		merged = append(merged, r)
	}
	return RuneSet{ranges: merged}
}

// Contains reports whether the set includes r.
func (s RuneSet) Contains(r rune) bool {
	i := sort.Search(len(s.ranges), func(i int) bool {
		return s.ranges[i].Hi >= r
	})
	return i < len(s.ranges) && s.ranges[i].Lo <= r
}

// Union returns the set containing everything in s and other.
func (s RuneSet) Union(other RuneSet) RuneSet {
	combined := make([]RuneRange, 0, len(s.ranges)+len(other.ranges))
	combined = append(combined, s.ranges...)
	combined = append(combined, other.ranges...)
	return NewRuneSet(combined...)
}

// Empty reports whether the set contains no codepoints.
func (s RuneSet) Empty() bool {
	return len(s.ranges) == 0
}

// Count returns the number of codepoints in the set.
func (s RuneSet) Count() int64 {
	var n int64
	for _, r := range s.ranges {
		n += int64(r.Hi-r.Lo) + 1
	}
	return n
}

// Ranges returns a copy of the normalized ranges.
func (s RuneSet) Ranges() []RuneRange {
	out := make([]RuneRange, len(s.ranges))
	copy(out, s.ranges)
	return out
}

// String renders the set as comma-joined hex ranges, for logs and
// validation messages.
func (s RuneSet) String() string {
	if len(s.ranges) == 0 {
		return "(empty)"
	}
	parts := make([]string, len(s.ranges))
	for i, r := range s.ranges {
		if r.Lo == r.Hi {
			parts[i] = fmt.Sprintf("%04X", r.Lo)
		} else {
			parts[i] = fmt.Sprintf("%04X-%04X", r.Lo, r.Hi)
		}
	}
	return strings.Join(parts, ",")
}

// ParseRuneRange parses "4E00-9FFF" or a single codepoint "FE30".
// Endpoints are case-insensitive hex without a 0x prefix, inclusive.
func ParseRuneRange(spec string) (RuneRange, error) {
	lo, hi, found := strings.Cut(spec, "-")
	if !found {
		hi = lo
	}
	loValue, err := strconv.ParseUint(strings.TrimSpace(lo), 16, 32)
	if err != nil {
		return RuneRange{}, fmt.Errorf("range %q: bad start: %w", spec, err)
	}
	hiValue, err := strconv.ParseUint(strings.TrimSpace(hi), 16, 32)
	if err != nil {
		return RuneRange{}, fmt.Errorf("range %q: bad end: %w", spec, err)
	}
	if hiValue < loValue {
		return RuneRange{}, fmt.Errorf("range %q: end before start", spec)
	}
	const maxRune = 0x10FFFF
	if hiValue > maxRune {
		return RuneRange{}, fmt.Errorf("range %q: end beyond U+10FFFF", spec)
	}
	return RuneRange{Lo: rune(loValue), Hi: rune(hiValue)}, nil
}
