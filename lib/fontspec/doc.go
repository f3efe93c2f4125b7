// Copyright 2026 The Unito Authors
// SPDX-License-Identifier: Apache-2.0

// Package fontspec defines the build manifest: the typed, immutable
// model of repositories, folders, sources, exclusion rules, styles,
// and output families that drives a unito build.
//
// The manifest is authored as YAML and loaded once per invocation.
// After Load returns, the model is pure data: nothing in the build
// pipeline mutates it, and exclusion rules have already been resolved
// into concrete codepoint sets, so the merge engine never interprets
// rule syntax.
//
// # Ordering
//
// Folders carry an explicit integer priority. Lower priority value
// means higher merge precedence: a folder with priority 10 contributes
// units before (and therefore wins over) a folder with priority 20.
// Source order inside a folder is the declared list order. Family
// folders are appended after the shared folders, again in priority
// order. These three rules produce the single total contribution
// order the merge engine folds over.
//
// # Exclusion rules
//
// A rule is a tagged variant: explicit codepoint ranges, a named block
// from the embedded block table (for example "han" or "hangul"), or a
// union of named blocks. A rule may set several fields; the resolved
// set is the union of everything it names. Resolution happens exactly
// once, at load time.
package fontspec
