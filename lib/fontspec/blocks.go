// Copyright 2026 The Unito Authors
// SPDX-License-Identifier: Apache-2.0

package fontspec

import (
	_ "embed"
	"encoding/json"
	"sort"

	"github.com/tidwall/jsonc"
)

// blocksJSONC is the built-in block table. JSONC so the data file can
// carry per-range comments.
//
//go:embed blocks.jsonc
var blocksJSONC []byte

// blockTable maps block name to its resolved set. Populated at init;
// a malformed embedded table is a build defect, not a runtime
// condition, so init panics.
var blockTable map[string]RuneSet

func init() {
	var raw map[string][][2]string
	if err := json.Unmarshal(jsonc.ToJSON(blocksJSONC), &raw); err != nil {
		panic("fontspec: embedded block table is malformed: " + err.Error())
	}

	blockTable = make(map[string]RuneSet, len(raw))
	for name, pairs := range raw {
		ranges := make([]RuneRange, 0, len(pairs))
		for _, pair := range pairs {
			r, err := ParseRuneRange(pair[0] + "-" + pair[1])
			if err != nil {
				panic("fontspec: embedded block " + name + ": " + err.Error())
			}
			ranges = append(ranges, r)
		}
		blockTable[name] = NewRuneSet(ranges...)
	}
}

// Block returns the named built-in block.
func Block(name string) (RuneSet, bool) {
	set, ok := blockTable[name]
	return set, ok
}

// BlockNames returns the sorted names of all built-in blocks.
func BlockNames() []string {
	names := make([]string, 0, len(blockTable))
	for name := range blockTable {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
