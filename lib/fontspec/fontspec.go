// Copyright 2026 The Unito Authors
// SPDX-License-Identifier: Apache-2.0

package fontspec

import (
	"fmt"
	"sort"
	"strings"
)

// Manifest is the complete build configuration. Loaded once per
// invocation via Load; immutable afterwards.
type Manifest struct {
	// Repositories are the named locations sources are fetched from.
	Repositories []Repository `yaml:"repositories"`

	// Styles are the fixed instances every family is built in.
	Styles []Style `yaml:"styles"`

	// Folders are the shared priority buckets merged into the base
	// artifact that every family extends.
	Folders []Folder `yaml:"folders"`

	// Families are the outputs. Each (family, style) pair is one
	// build target.
	Families []Family `yaml:"families"`

	// Build holds merge and scheduling limits.
	Build BuildConfig `yaml:"build"`

	// Cache configures the on-disk artifact cache.
	Cache CacheConfig `yaml:"cache"`

	// Output configures delivery.
	Output OutputConfig `yaml:"output"`

	// Merge configures the bound-widening policy.
	Merge MergeConfig `yaml:"merge"`
}

// Repository kinds.
const (
	RepositoryHTTPS = "https"
	RepositoryDir   = "dir"
)

// Repository is a named base location for source artifacts.
type Repository struct {
	// Name is the identifier sources reference.
	Name string `yaml:"name"`

	// Kind selects the fetch mechanism: "https" or "dir".
	Kind string `yaml:"kind"`

	// URL is the base URL for https repositories. Source paths are
	// joined onto it.
	URL string `yaml:"url,omitempty"`

	// Path is the base directory for dir repositories.
	Path string `yaml:"path,omitempty"`
}

// Style is a named axis location, for example Regular = wght 400,
// wdth 100. Parametric sources are instantiated at this location;
// static sources pass through unchanged.
type Style struct {
	Name string             `yaml:"name"`
	Axes map[string]float64 `yaml:"axes"`
}

// Folder is an ordered bucket of sources sharing one merge priority.
// Lower Priority merges earlier and therefore wins conflicts.
type Folder struct {
	Name     string `yaml:"name"`
	Priority int    `yaml:"priority"`

	// Base marks the folder whose first source seeds the accumulator
	// and donates its global tables. At most one shared folder may be
	// marked; family folders never are.
	Base bool `yaml:"base,omitempty"`

	Sources []Source `yaml:"sources"`
}

// Source is one input artifact descriptor. Identity for caching is
// (Repository, Path).
type Source struct {
	Repository string `yaml:"repository"`
	Path       string `yaml:"path"`

	// Exclude lists the rules stripping units from this source before
	// it is eligible to merge. Exclusion is per-source: a unit
	// excluded here may still enter from a lower-priority source.
	Exclude []ExclusionRule `yaml:"exclude,omitempty"`

	// OmitFor removes this source entirely from the named families'
	// contribution lists (matched against family name or slug).
	OmitFor []string `yaml:"omit_for,omitempty"`

	// Excluded is the union of all Exclude rules, resolved against
	// the block table at load time. Not read from YAML.
	Excluded RuneSet `yaml:"-"`
}

// ID returns the cache identity of the source.
func (s *Source) ID() string {
	return s.Repository + "/" + s.Path
}

// omitsFamily reports whether the source's omit_for list names the
// family by name or slug.
func (s *Source) omitsFamily(f *Family) bool {
	for _, name := range s.OmitFor {
		if name == f.Name || name == f.Slug {
			return true
		}
	}
	return false
}

// Family is one output grouping. A family with no folders and no fill
// delivers the shared base restamped with its own naming.
type Family struct {
	// Name is the display name, for example "Unito HK".
	Name string `yaml:"name"`

	// Slug is the filename-safe name, for example "UnitoHK".
	Slug string `yaml:"slug"`

	// Styles limits which manifest styles the family is built in.
	// Empty means all of them.
	Styles []string `yaml:"styles,omitempty"`

	// Folders are extra priority buckets appended after the shared
	// folders for this family only.
	Folders []Folder `yaml:"folders,omitempty"`

	// Fill optionally tops the family up with units in frequency
	// order after the regular merge.
	Fill *FillConfig `yaml:"fill,omitempty"`
}

// FillConfig describes a frequency-ordered fill pass: units are pulled
// from the pool folders in list order until the unit cap is reached.
// Units excluded from the regular merge are eligible here; that is the
// point of the pass.
type FillConfig struct {
	// List is the artifact holding the frequency-ordered unit list
	// (JSON or JSONC; an array of codepoints or strings, or an object
	// with a "chars" string).
	List SourceRef `yaml:"list"`

	// Folders names the folders (shared or this family's own) whose
	// sources form the fill pool, in pool-priority order. This order
	// is independent of the folders' merge priorities.
	Folders []string `yaml:"folders"`

	// Limit caps the total unit count after filling. Zero means
	// build.max_units.
	Limit int `yaml:"limit,omitempty"`
}

// SourceRef is a bare (repository, path) reference without merge
// metadata, used where an auxiliary artifact is fetched but never
// merged.
type SourceRef struct {
	Repository string `yaml:"repository"`
	Path       string `yaml:"path"`
}

// ID returns the cache identity of the reference.
func (r SourceRef) ID() string {
	return r.Repository + "/" + r.Path
}

// BuildConfig holds merge and scheduling limits.
type BuildConfig struct {
	// MaxUnits caps the unit count of any merged artifact.
	MaxUnits int `yaml:"max_units"`

	// Jobs bounds concurrent target builds. Zero means GOMAXPROCS.
	Jobs int `yaml:"jobs"`

	// FetchAttempts is the total number of tries for a transient
	// fetch failure (first attempt included).
	FetchAttempts int `yaml:"fetch_attempts"`
}

// CacheConfig configures the on-disk artifact cache.
type CacheConfig struct {
	// Dir is the cache root. Supports ${VAR} expansion.
	Dir string `yaml:"dir"`

	// MemoryEntries sizes the in-memory layer over decoded payloads.
	MemoryEntries int `yaml:"memory_entries"`
}

// OutputConfig configures delivery.
type OutputConfig struct {
	// Dir receives the delivered artifacts. Supports ${VAR} expansion.
	Dir string `yaml:"dir"`

	// Extension is the delivered filename extension, without the dot.
	Extension string `yaml:"extension"`
}

// MergeConfig configures the only permitted exception to
// first-writer-wins: numeric bound widening on the vertical metrics.
type MergeConfig struct {
	// Bounds maps a metric field ("ascent", "descent", "line_gap")
	// to "widen" or "first". Widen lets any later contribution extend
	// the bound; first keeps the highest-priority writer's value.
	Bounds map[string]string `yaml:"bounds,omitempty"`
}

// Bound field names accepted by MergeConfig.Bounds.
const (
	BoundAscent  = "ascent"
	BoundDescent = "descent"
	BoundLineGap = "line_gap"
)

// Bound policies.
const (
	PolicyFirst = "first"
	PolicyWiden = "widen"
)

// Repository returns the named repository.
func (m *Manifest) Repository(name string) (*Repository, bool) {
	for i := range m.Repositories {
		if m.Repositories[i].Name == name {
			return &m.Repositories[i], true
		}
	}
	return nil, false
}

// Style returns the named style.
func (m *Manifest) Style(name string) (*Style, bool) {
	for i := range m.Styles {
		if m.Styles[i].Name == name {
			return &m.Styles[i], true
		}
	}
	return nil, false
}

// Family returns the family matching name or slug.
func (m *Manifest) Family(name string) (*Family, bool) {
	for i := range m.Families {
		if m.Families[i].Name == name || m.Families[i].Slug == name {
			return &m.Families[i], true
		}
	}
	return nil, false
}

// SharedFolders returns the shared folders sorted by ascending
// priority. The manifest's declared order is not significant; the
// priority field is.
func (m *Manifest) SharedFolders() []Folder {
	folders := make([]Folder, len(m.Folders))
	copy(folders, m.Folders)
	sort.SliceStable(folders, func(i, j int) bool {
		return folders[i].Priority < folders[j].Priority
	})
	return folders
}

// EffectiveShared returns the shared folders for one family, sorted by
// priority, with sources the family omits (via omit_for) removed.
// Families with identical effective shared lists share one cached base
// artifact per style.
func (m *Manifest) EffectiveShared(f *Family) []Folder {
	folders := m.SharedFolders()
	result := make([]Folder, 0, len(folders))
	for _, folder := range folders {
		kept := make([]Source, 0, len(folder.Sources))
		for _, src := range folder.Sources {
			if src.omitsFamily(f) {
				continue
			}
			kept = append(kept, src)
		}
		folder.Sources = kept
		result = append(result, folder)
	}
	return result
}

// FamilyFolders returns the family's own folders sorted by ascending
// priority.
func (f *Family) FamilyFolders() []Folder {
	folders := make([]Folder, len(f.Folders))
	copy(folders, f.Folders)
	sort.SliceStable(folders, func(i, j int) bool {
		return folders[i].Priority < folders[j].Priority
	})
	return folders
}

// StyleNames returns the styles the family builds in, defaulting to
// every manifest style.
func (f *Family) StyleNames(m *Manifest) []string {
	if len(f.Styles) > 0 {
		return f.Styles
	}
	names := make([]string, len(m.Styles))
	for i, style := range m.Styles {
		names[i] = style.Name
	}
	return names
}

// BoundPolicy returns the configured policy for a bound field,
// defaulting to widen.
func (m *Manifest) BoundPolicy(field string) string {
	if policy, ok := m.Merge.Bounds[field]; ok {
		return policy
	}
	return PolicyWiden
}

// AxisKey renders an axis location as a stable string, for cache
// tokens and log lines: "wdth=100,wght=700" with tags sorted.
func AxisKey(axes map[string]float64) string {
	tags := make([]string, 0, len(axes))
	for tag := range axes {
		tags = append(tags, tag)
	}
	sort.Strings(tags)
	parts := make([]string, len(tags))
	for i, tag := range tags {
		parts[i] = fmt.Sprintf("%s=%g", tag, axes[tag])
	}
	return strings.Join(parts, ",")
}
