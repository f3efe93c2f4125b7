// Copyright 2026 The Unito Authors
// SPDX-License-Identifier: Apache-2.0

package fontspec

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"
)

// DefaultManifestName is the manifest filename looked for in the
// working directory when neither --manifest nor UNITO_MANIFEST is set.
const DefaultManifestName = "unito.yaml"

// ConfigError reports manifest validation failures. It carries every
// issue found, not just the first, so one load round-trip surfaces the
// full damage.
type ConfigError struct {
	Path   string
	Issues []string
}

func (e *ConfigError) Error() string {
	if len(e.Issues) == 1 {
		return fmt.Sprintf("manifest %s: %s", e.Path, e.Issues[0])
	}
	return fmt.Sprintf("manifest %s: %d issues:\n  - %s",
		e.Path, len(e.Issues), strings.Join(e.Issues, "\n  - "))
}

// Default returns the manifest defaults applied before the file is
// read. Repositories, styles, folders, and families have no defaults;
// the file must declare them.
func Default() *Manifest {
	homeDir, _ := os.UserHomeDir()
	return &Manifest{
		Build: BuildConfig{
			MaxUnits:      65535,
			Jobs:          0,
			FetchAttempts: 3,
		},
		Cache: CacheConfig{
			Dir:           filepath.Join(homeDir, ".cache", "unito"),
			MemoryEntries: 64,
		},
		Output: OutputConfig{
			Dir:       "dist",
			Extension: "ufc",
		},
	}
}

// ManifestPath resolves the manifest location: the explicit path if
// non-empty, else the UNITO_MANIFEST environment variable, else
// unito.yaml in the working directory.
func ManifestPath(explicit string) string {
	if explicit != "" {
		return explicit
	}
	if env := os.Getenv("UNITO_MANIFEST"); env != "" {
		return env
	}
	return DefaultManifestName
}

// Load reads, expands, validates, and resolves the manifest at path.
// The returned Manifest is immutable by convention: nothing downstream
// writes to it.
func Load(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading manifest: %w", err)
	}
	return LoadBytes(data, path)
}

// LoadBytes is Load over in-memory manifest bytes. The path parameter
// is used only in error messages.
func LoadBytes(data []byte, path string) (*Manifest, error) {
	m := Default()
	if err := yaml.Unmarshal(data, m); err != nil {
		return nil, fmt.Errorf("parsing manifest %s: %w", path, err)
	}

	m.expandVariables()

	if issues := m.Validate(); len(issues) > 0 {
		return nil, &ConfigError{Path: path, Issues: issues}
	}
	if err := m.resolveExclusions(); err != nil {
		return nil, fmt.Errorf("manifest %s: %w", path, err)
	}
	return m, nil
}

// expandVariables expands ${VAR} and ${VAR:-default} in path-valued
// fields. The manifest is otherwise environment-independent: values do
// not change based on hidden environment state.
func (m *Manifest) expandVariables() {
	vars := map[string]string{
		"HOME": os.Getenv("HOME"),
	}

	m.Cache.Dir = expandVars(m.Cache.Dir, vars)
	m.Output.Dir = expandVars(m.Output.Dir, vars)
	for i := range m.Repositories {
		m.Repositories[i].Path = expandVars(m.Repositories[i].Path, vars)
	}
}

// varPattern matches ${VAR} and ${VAR:-default}.
var varPattern = regexp.MustCompile(`\$\{([^}:]+)(?::-([^}]*))?\}`)

func expandVars(s string, vars map[string]string) string {
	return varPattern.ReplaceAllStringFunc(s, func(match string) string {
		parts := varPattern.FindStringSubmatch(match)
		if len(parts) < 2 {
			return match
		}

		name := parts[1]
		defaultValue := ""
		if len(parts) >= 3 {
			defaultValue = parts[2]
		}

		// Check provided vars first, then environment.
		if value, ok := vars[name]; ok && value != "" {
			return value
		}
		if value := os.Getenv(name); value != "" {
			return value
		}
		return defaultValue
	})
}
