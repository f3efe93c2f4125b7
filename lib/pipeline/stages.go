// Copyright 2026 The Unito Authors
// SPDX-License-Identifier: Apache-2.0

package pipeline

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/unito-fonts/unito/lib/buildplan"
	"github.com/unito-fonts/unito/lib/deliver"
	"github.com/unito-fonts/unito/lib/fontcache"
	"github.com/unito-fonts/unito/lib/fontengine"
	"github.com/unito-fonts/unito/lib/fontspec"
	"github.com/unito-fonts/unito/lib/merge"
)

// Cache stages. A source's raw bytes, its per-style instances, and
// the per-style merged bases all cache independently.
const (
	stageFetch  = "fetch"
	stageStatic = "static"
	stageMerge  = "merge"
)

// staticSource is one style-instantiated source payload, plus the
// content digest merge tokens are derived from.
type staticSource struct {
	src    fontspec.Source
	data   []byte
	digest string
}

// cached runs the slot through GetOrBuild, or Rebuild when the run
// is forced. The bool reports a cache hit.
func (b *Builder) cached(ctx context.Context, id fontcache.ID, token string, build fontcache.BuildFunc) ([]byte, bool, error) {
	if b.Options.Force {
		data, err := b.Cache.Rebuild(ctx, id, token, build)
		return data, false, err
	}
	return b.Cache.GetOrBuild(ctx, id, token, build)
}

// sourceRaw returns a source's raw bytes, from the cache when the
// upstream freshness token still matches. Offline runs take whatever
// the cache holds and never touch the fetcher.
func (b *Builder) sourceRaw(ctx context.Context, repository, path string) ([]byte, error) {
	id := fontcache.ID{Repository: repository, Path: path, Stage: stageFetch}

	if b.Options.Offline {
		data, _, err := b.Cache.Get(id)
		if err != nil {
			if errors.Is(err, fontcache.ErrMiss) {
				return nil, &Error{Kind: KindFetch, Err: fmt.Errorf("%s is not cached and the run is offline", id)}
			}
			return nil, &Error{Kind: KindFetch, Err: err}
		}
		return data, nil
	}

	fetcher, ok := b.Fetchers[repository]
	if !ok {
		return nil, &Error{Kind: KindConfig, Err: fmt.Errorf("no fetcher for repository %q", repository)}
	}

	token, err := fetcher.Stat(ctx, path)
	if err != nil {
		return nil, &Error{Kind: KindFetch, Err: err}
	}

	data, hit, err := b.cached(ctx, id, token, func(ctx context.Context) ([]byte, error) {
		result, err := fetcher.Fetch(ctx, path)
		if err != nil {
			return nil, err
		}
		return result.Data, nil
	})
	if err != nil {
		return nil, &Error{Kind: KindFetch, Err: err}
	}
	b.logger().Debug("source ready", "slot", id.String(), "cached", hit, "bytes", len(data))
	return data, nil
}

// sourceStatic returns the source instantiated at the style's axis
// location. The token carries the raw content digest, so a refetched
// source re-instantiates even though the stage itself never stats
// the upstream.
func (b *Builder) sourceStatic(ctx context.Context, src fontspec.Source, style *fontspec.Style) (staticSource, error) {
	raw, err := b.sourceRaw(ctx, src.Repository, src.Path)
	if err != nil {
		return staticSource{}, err
	}
	rawDigest := fontcache.FormatKey(fontcache.HashContent(raw))

	id := fontcache.ID{Repository: src.Repository, Path: src.Path, Stage: stageStatic + "/" + style.Name}
	token := "static:" + rawDigest + "@" + fontspec.AxisKey(style.Axes)

	data, hit, err := b.cached(ctx, id, token, func(ctx context.Context) ([]byte, error) {
		artifact, err := b.Engine.Decode(raw)
		if err != nil {
			return nil, fmt.Errorf("decoding %s: %w", src.ID(), err)
		}
		instance, err := b.Engine.Instantiate(artifact, style.Axes)
		if err != nil {
			return nil, fmt.Errorf("instantiating %s at %s: %w", src.ID(), fontspec.AxisKey(style.Axes), err)
		}
		return b.Engine.Encode(instance)
	})
	if err != nil {
		return staticSource{}, &Error{Kind: KindInstantiate, Err: err}
	}
	b.logger().Debug("instance ready", "slot", id.String(), "cached", hit)

	return staticSource{
		src:    src,
		data:   data,
		digest: fontcache.FormatKey(fontcache.HashContent(data)),
	}, nil
}

// loadSources fetches and instantiates every source of the folders,
// in contribution order.
func (b *Builder) loadSources(ctx context.Context, folders []fontspec.Folder, style *fontspec.Style) ([]staticSource, error) {
	var sources []staticSource
	for _, folder := range folders {
		for _, src := range folder.Sources {
			loaded, err := b.sourceStatic(ctx, src, style)
			if err != nil {
				return nil, err
			}
			sources = append(sources, loaded)
		}
	}
	return sources, nil
}

// contributions decodes loaded sources into merge contributions.
func (b *Builder) contributions(sources []staticSource) ([]merge.Contribution, error) {
	contribs := make([]merge.Contribution, 0, len(sources))
	for _, source := range sources {
		artifact, err := b.Engine.Decode(source.data)
		if err != nil {
			return nil, &Error{Kind: KindMerge, Err: fmt.Errorf("decoding %s: %w", source.src.ID(), err)}
		}
		contribs = append(contribs, merge.Contribution{
			Artifact: artifact,
			Exclude:  source.src.Excluded,
			Source:   source.src.ID(),
		})
	}
	return contribs, nil
}

func (b *Builder) merger() *merge.Merger {
	return &merge.Merger{
		Engine:   b.Engine,
		MaxUnits: b.Manifest.Build.MaxUnits,
		Widen:    merge.WidenFields(b.Manifest),
	}
}

// buildBase merges the shared contribution set for one style and
// commits it to the cache. The merge itself runs only when a source's
// content, an exclusion set, or the merge policy changed.
func (b *Builder) buildBase(ctx context.Context, state *runState, step *buildplan.Step) error {
	folders, ok := state.plan.Shared[step.SharedDigest]
	if !ok {
		return &Error{Kind: KindConfig, Err: fmt.Errorf("plan carries no shared set %s", step.SharedDigest)}
	}
	style, ok := b.Manifest.Style(step.Style)
	if !ok {
		return &Error{Kind: KindConfig, Err: fmt.Errorf("unknown style %q", step.Style)}
	}

	sources, err := b.loadSources(ctx, folders, style)
	if err != nil {
		return err
	}
	seeded := sharedSeeded(folders)
	merger := b.merger()

	build := func(ctx context.Context) ([]byte, error) {
		contribs, err := b.contributions(sources)
		if err != nil {
			return nil, err
		}
		var base *merge.Contribution
		rest := contribs
		if seeded && len(contribs) > 0 {
			base, rest = &contribs[0], contribs[1:]
		}
		merged, stats, err := merger.Merge(base, rest)
		if err != nil {
			return nil, &Error{Kind: KindMerge, Err: err}
		}
		b.logMergeStats(step.ID, stats)
		return b.Engine.Encode(merged)
	}

	data, hit, err := b.cached(ctx, baseSlot(step), b.mergeToken(merger, sources), build)
	if err != nil {
		var classified *Error
		if errors.As(err, &classified) {
			return err
		}
		return &Error{Kind: KindMerge, Err: err}
	}
	b.logger().Debug("base ready", "base", step.ID, "cached", hit, "bytes", len(data))
	return nil
}

// buildTarget extends the cached shared base with the family's own
// folders, applies the fill pass, stamps naming, and delivers.
func (b *Builder) buildTarget(ctx context.Context, state *runState, step *buildplan.Step) error {
	family, ok := b.Manifest.Family(step.Slug)
	if !ok {
		return &Error{Kind: KindConfig, Err: fmt.Errorf("unknown family %q", step.Slug)}
	}
	style, ok := b.Manifest.Style(step.Style)
	if !ok {
		return &Error{Kind: KindConfig, Err: fmt.Errorf("unknown style %q", step.Style)}
	}

	baseData, _, err := b.Cache.Get(baseSlot(step))
	if err != nil {
		return &Error{Kind: KindBase, Err: fmt.Errorf("reading shared base: %w", err)}
	}
	baseArtifact, err := b.Engine.Decode(baseData)
	if err != nil {
		return &Error{Kind: KindBase, Err: fmt.Errorf("decoding shared base: %w", err)}
	}

	sources, err := b.loadSources(ctx, family.FamilyFolders(), style)
	if err != nil {
		return err
	}
	extras, err := b.contributions(sources)
	if err != nil {
		return err
	}

	shared := state.plan.Shared[step.SharedDigest]
	baseContrib := merge.Contribution{Artifact: baseArtifact, Source: baseLabel(step)}
	merger := b.merger()

	var merged fontengine.Artifact
	var stats *merge.Stats
	if sharedSeeded(shared) {
		// The base was seeded, so its globals are authoritative and
		// the extras never adopt.
		merged, stats, err = merger.Merge(&baseContrib, extras)
	} else {
		merged, stats, err = merger.Merge(nil, append([]merge.Contribution{baseContrib}, extras...))
	}
	if err != nil {
		return &Error{Kind: KindMerge, Err: err}
	}
	b.logMergeStats(step.ID, stats)

	if family.Fill != nil {
		if err := b.fill(ctx, merger, merged, family, style, shared); err != nil {
			return err
		}
	}

	if err := b.Engine.SetNaming(merged, targetNaming(family, style)); err != nil {
		return &Error{Kind: KindMerge, Err: err}
	}
	encoded, err := b.Engine.Encode(merged)
	if err != nil {
		return &Error{Kind: KindMerge, Err: err}
	}

	path, err := state.writer.Write(deliver.Target{Slug: family.Slug, Style: style.Name, Data: encoded})
	if err != nil {
		return &Error{Kind: KindDeliver, Err: err}
	}

	state.record(step.ID, targetReport{units: merged.Len(), path: path})
	b.logger().Debug("target delivered", "target", step.ID, "units", merged.Len(), "path", path)
	return nil
}

// fill tops the accumulator up with units in frequency order, pulled
// from the configured pool folders.
func (b *Builder) fill(ctx context.Context, merger *merge.Merger, acc fontengine.Artifact, family *fontspec.Family, style *fontspec.Style, shared []fontspec.Folder) error {
	cfg := family.Fill

	listData, err := b.sourceRaw(ctx, cfg.List.Repository, cfg.List.Path)
	if err != nil {
		return err
	}
	order, err := merge.ParseFillList(listData)
	if err != nil {
		return &Error{Kind: KindMerge, Err: fmt.Errorf("%s: %w", cfg.List.ID(), err)}
	}

	poolFolders := make([]fontspec.Folder, 0, len(cfg.Folders))
	for _, name := range cfg.Folders {
		folder, ok := findFolder(name, family.FamilyFolders(), shared)
		if !ok {
			return &Error{Kind: KindConfig, Err: fmt.Errorf("fill pool folder %q is not declared", name)}
		}
		poolFolders = append(poolFolders, folder)
	}
	sources, err := b.loadSources(ctx, poolFolders, style)
	if err != nil {
		return err
	}
	pool, err := b.contributions(sources)
	if err != nil {
		return err
	}

	limit := cfg.Limit
	if limit == 0 {
		limit = b.Manifest.Build.MaxUnits
	}
	stats, err := merger.FillByFrequency(acc, pool, order, limit)
	if err != nil {
		return &Error{Kind: KindMerge, Err: err}
	}
	b.logger().Debug("fill applied",
		"family", family.Slug,
		"style", style.Name,
		"added", stats.Added,
		"skipped", stats.Skipped,
		"missing", stats.Missing,
		"limit_hit", stats.LimitHit)
	return nil
}

func (b *Builder) logMergeStats(stepID string, stats *merge.Stats) {
	logger := b.logger()
	for _, source := range stats.Sources {
		logger.Debug("source folded",
			"step", stepID,
			"source", source.Source,
			"added", source.Added,
			"skipped", source.Skipped,
			"excluded", source.Excluded)
	}
	if stats.Truncated {
		logger.Warn("unit cap reached", "step", stepID, "max_units", b.Manifest.Build.MaxUnits)
	}
}

// baseSlot is the cache slot of a merged shared base. The shared-set
// digest stands in for a source path; the style lives in the stage.
func baseSlot(step *buildplan.Step) fontcache.ID {
	return fontcache.ID{
		Repository: "base",
		Path:       step.SharedDigest,
		Stage:      stageMerge + "/" + step.Style,
	}
}

// sharedSeeded reports whether the first merged source belongs to a
// base-marked folder. Validation pins the base folder to the lowest
// priority, so the head of the effective list decides.
func sharedSeeded(folders []fontspec.Folder) bool {
	for _, folder := range folders {
		if len(folder.Sources) == 0 {
			continue
		}
		return folder.Base
	}
	return false
}

// findFolder resolves a fill pool folder by name among the family's
// own folders and the shared set. Validation keeps folder names
// unique across both, so the first match is the only match.
func findFolder(name string, family, shared []fontspec.Folder) (fontspec.Folder, bool) {
	for _, folder := range family {
		if folder.Name == name {
			return folder, true
		}
	}
	for _, folder := range shared {
		if folder.Name == name {
			return folder, true
		}
	}
	return fontspec.Folder{}, false
}

// baseLabel names the base contribution in target merge stats.
func baseLabel(step *buildplan.Step) string {
	if len(step.DependsOn) > 0 {
		return step.DependsOn[0]
	}
	return "base"
}

// mergeToken derives a base slot's freshness token from everything
// that changes merge output: source content digests in order, their
// exclusion sets, the unit cap, and the widen policy.
func (b *Builder) mergeToken(merger *merge.Merger, sources []staticSource) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "max_units=%d widen=%s\n", merger.MaxUnits, strings.Join(merger.Widen, ","))
	for _, source := range sources {
		fmt.Fprintf(&sb, "%s %s exclude=%s\n", source.src.ID(), source.digest, source.src.Excluded)
	}
	return "merge:" + fontcache.FormatKey(fontcache.HashContent([]byte(sb.String())))
}

// targetNaming builds the name records stamped on a delivered
// artifact. Regular drops the style from the full name.
func targetNaming(family *fontspec.Family, style *fontspec.Style) fontengine.Naming {
	fullName := family.Name + " " + style.Name
	if style.Name == "Regular" {
		fullName = family.Name
	}
	return fontengine.Naming{
		Family:     family.Name,
		Subfamily:  style.Name,
		FullName:   fullName,
		PostScript: family.Slug + "-" + style.Name,
	}
}
