// Copyright 2026 The Unito Authors
// SPDX-License-Identifier: Apache-2.0

package fontspec

import (
	"fmt"
	"strings"
)

// Validate checks the manifest for structural problems and returns a
// list of human-readable issues. An empty list means the manifest is
// buildable. Load refuses manifests with issues; the validate
// subcommand prints them all.
func (m *Manifest) Validate() []string {
	var issues []string
	report := func(format string, args ...any) {
		issues = append(issues, fmt.Sprintf(format, args...))
	}

	// Repositories.
	if len(m.Repositories) == 0 {
		report("no repositories declared")
	}
	repoNames := make(map[string]bool, len(m.Repositories))
	for i, repo := range m.Repositories {
		where := fmt.Sprintf("repositories[%d] %q", i, repo.Name)
		if repo.Name == "" {
			report("repositories[%d]: name is required", i)
		} else if repoNames[repo.Name] {
			report("%s: duplicate name", where)
		}
		repoNames[repo.Name] = true

		switch repo.Kind {
		case RepositoryHTTPS:
			if repo.URL == "" {
				report("%s: https repositories require url", where)
			}
		case RepositoryDir:
			if repo.Path == "" {
				report("%s: dir repositories require path", where)
			}
		default:
			report("%s: kind must be \"https\" or \"dir\", got %q", where, repo.Kind)
		}
	}

	// Styles.
	if len(m.Styles) == 0 {
		report("no styles declared")
	}
	styleNames := make(map[string]bool, len(m.Styles))
	for i, style := range m.Styles {
		if style.Name == "" {
			report("styles[%d]: name is required", i)
			continue
		}
		// Style names become part of delivered filenames.
		if strings.ContainsAny(style.Name, " /\\.") {
			report("styles[%d]: name %q must be filename-safe", i, style.Name)
		}
		if styleNames[style.Name] {
			report("styles[%d] %q: duplicate name", i, style.Name)
		}
		styleNames[style.Name] = true
	}

	// Families first, so source omit_for references can be checked.
	familyNames := make(map[string]bool, len(m.Families))
	if len(m.Families) == 0 {
		report("no families declared")
	}
	for i, family := range m.Families {
		where := fmt.Sprintf("families[%d] %q", i, family.Name)
		if family.Name == "" {
			report("families[%d]: name is required", i)
		}
		if family.Slug == "" {
			report("%s: slug is required", where)
		} else if strings.ContainsAny(family.Slug, " /\\.") {
			report("%s: slug %q must be filename-safe", where, family.Slug)
		}
		for _, key := range []string{family.Name, family.Slug} {
			if key == "" {
				continue
			}
			if familyNames[key] {
				report("%s: name or slug %q already used by another family", where, key)
			}
			familyNames[key] = true
		}
		for _, styleName := range family.Styles {
			if !styleNames[styleName] {
				report("%s: unknown style %q", where, styleName)
			}
		}
	}

	// Shared folders.
	folderNames := make(map[string]bool, len(m.Folders))
	priorities := make(map[int]string, len(m.Folders))
	baseCount := 0
	baseName, minName := "", ""
	basePriority, minPriority := 0, 0
	for i, folder := range m.Folders {
		where := fmt.Sprintf("folders[%d] %q", i, folder.Name)
		if folder.Name == "" {
			report("folders[%d]: name is required", i)
		} else if folderNames[folder.Name] {
			report("%s: duplicate name", where)
		}
		folderNames[folder.Name] = true

		if prev, taken := priorities[folder.Priority]; taken {
			report("%s: priority %d already used by folder %q", where, folder.Priority, prev)
		}
		priorities[folder.Priority] = folder.Name
		if i == 0 || folder.Priority < minPriority {
			minPriority, minName = folder.Priority, folder.Name
		}

		if folder.Base {
			baseCount++
			baseName, basePriority = folder.Name, folder.Priority
			if len(folder.Sources) == 0 {
				report("%s: base folder needs at least one source", where)
			}
		}
		issues = append(issues, m.validateSources(where, folder.Sources, repoNames, familyNames)...)
	}
	if baseCount > 1 {
		report("at most one shared folder may set base: true, found %d", baseCount)
	}
	// The base folder seeds the accumulator, so its units must merge
	// first. A higher-priority folder ahead of it would lose conflicts
	// to the seed despite outranking it.
	if baseCount == 1 && basePriority != minPriority {
		report("folder %q is marked base but folder %q merges first (priority %d < %d); the base folder needs the lowest priority",
			baseName, minName, minPriority, basePriority)
	}

	// Family folders and fill.
	for i := range m.Families {
		family := &m.Families[i]
		where := fmt.Sprintf("families[%d] %q", i, family.Name)

		famPriorities := make(map[int]string, len(family.Folders))
		famFolderNames := make(map[string]bool, len(family.Folders))
		for j, folder := range family.Folders {
			folderWhere := fmt.Sprintf("%s folders[%d] %q", where, j, folder.Name)
			if folder.Name == "" {
				report("%s folders[%d]: name is required", where, j)
			} else if famFolderNames[folder.Name] || folderNames[folder.Name] {
				report("%s: name collides with another folder", folderWhere)
			}
			famFolderNames[folder.Name] = true

			if folder.Base {
				report("%s: base is only valid on shared folders", folderWhere)
			}
			if prev, taken := famPriorities[folder.Priority]; taken {
				report("%s: priority %d already used by folder %q", folderWhere, folder.Priority, prev)
			}
			famPriorities[folder.Priority] = folder.Name

			issues = append(issues, m.validateSources(folderWhere, folder.Sources, repoNames, familyNames)...)
		}

		if family.Fill != nil {
			fill := family.Fill
			fillWhere := where + " fill"
			if !repoNames[fill.List.Repository] {
				report("%s: list references unknown repository %q", fillWhere, fill.List.Repository)
			}
			if fill.List.Path == "" {
				report("%s: list path is required", fillWhere)
			}
			if len(fill.Folders) == 0 {
				report("%s: at least one pool folder is required", fillWhere)
			}
			for _, name := range fill.Folders {
				if !folderNames[name] && !famFolderNames[name] {
					report("%s: unknown pool folder %q", fillWhere, name)
				}
			}
			if fill.Limit < 0 {
				report("%s: limit must not be negative", fillWhere)
			}
		}
	}

	// Build limits.
	if m.Build.MaxUnits < 1 {
		report("build.max_units must be at least 1, got %d", m.Build.MaxUnits)
	}
	if m.Build.Jobs < 0 {
		report("build.jobs must not be negative, got %d", m.Build.Jobs)
	}
	if m.Build.FetchAttempts < 1 {
		report("build.fetch_attempts must be at least 1, got %d", m.Build.FetchAttempts)
	}

	// Cache and output.
	if m.Cache.Dir == "" {
		report("cache.dir is required")
	}
	if m.Cache.MemoryEntries < 0 {
		report("cache.memory_entries must not be negative, got %d", m.Cache.MemoryEntries)
	}
	if m.Output.Dir == "" {
		report("output.dir is required")
	}
	if m.Output.Extension == "" {
		report("output.extension is required")
	} else if strings.ContainsAny(m.Output.Extension, "./\\") {
		report("output.extension %q must not contain dots or separators", m.Output.Extension)
	}

	// Bound policy.
	for field, policy := range m.Merge.Bounds {
		switch field {
		case BoundAscent, BoundDescent, BoundLineGap:
		default:
			report("merge.bounds: unknown field %q (known: %s, %s, %s)",
				field, BoundAscent, BoundDescent, BoundLineGap)
		}
		if policy != PolicyFirst && policy != PolicyWiden {
			report("merge.bounds.%s: policy must be %q or %q, got %q",
				field, PolicyFirst, PolicyWiden, policy)
		}
	}

	return issues
}

// validateSources checks one folder's source list. familyNames is the
// set of declared family names and slugs, for omit_for checking.
func (m *Manifest) validateSources(where string, sources []Source, repoNames, familyNames map[string]bool) []string {
	var issues []string
	report := func(format string, args ...any) {
		issues = append(issues, fmt.Sprintf(format, args...))
	}

	for i, src := range sources {
		srcWhere := fmt.Sprintf("%s sources[%d]", where, i)
		if src.Repository == "" {
			report("%s: repository is required", srcWhere)
		} else if !repoNames[src.Repository] {
			report("%s: unknown repository %q", srcWhere, src.Repository)
		}
		if src.Path == "" {
			report("%s: path is required", srcWhere)
		}

		for j := range src.Exclude {
			rule := &src.Exclude[j]
			if rule.empty() {
				report("%s exclude[%d]: rule names nothing", srcWhere, j)
				continue
			}
			if _, err := rule.resolve(); err != nil {
				report("%s exclude[%d]: %v", srcWhere, j, err)
			}
		}

		for _, name := range src.OmitFor {
			if !familyNames[name] {
				report("%s: omit_for names unknown family %q", srcWhere, name)
			}
		}
	}
	return issues
}
