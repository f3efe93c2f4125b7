// Copyright 2026 The Unito Authors
// SPDX-License-Identifier: Apache-2.0

package commands

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/pflag"

	"github.com/unito-fonts/unito/cmd/unito/cli"
	"github.com/unito-fonts/unito/lib/clock"
	"github.com/unito-fonts/unito/lib/fontcache"
	"github.com/unito-fonts/unito/lib/fontengine"
	"github.com/unito-fonts/unito/lib/fontspec"
	"github.com/unito-fonts/unito/lib/pipeline"
)

type buildParams struct {
	manifest string
	families []string
	styles   []string
	jobs     int
	output   string
	cacheDir string
	offline  bool
	force    bool
	verbose  bool
}

func buildCommand() *cli.Command {
	var params buildParams

	return &cli.Command{
		Name:    "build",
		Summary: "Build every family file the manifest names",
		Usage:   "unito build [flags]",
		Description: `Fetch sources, instantiate styles, merge, and deliver family files.

Shared bases are built once per style and reused by every family that
merges the same effective source list. Each stage is cached by
content, so an unchanged manifest against unchanged upstreams does no
work beyond freshness checks. Failures isolate to their target: one
broken family never stops its siblings.

Exits 1 when any target fails; the per-target outcome is logged.`,
		Examples: []cli.Example{
			{
				Description: "Build everything",
				Command:     "unito build",
			},
			{
				Description: "Build two families, Regular only",
				Command:     "unito build --families UnitoJP,UnitoKR --styles Regular",
			},
			{
				Description: "Serve sources from cache, never fetch",
				Command:     "unito build --offline",
			},
			{
				Description: "Ignore cached results and rebuild every stage",
				Command:     "unito build --force",
			},
		},
		Flags: func() *pflag.FlagSet {
			flagSet := pflag.NewFlagSet("build", pflag.ContinueOnError)
			flagSet.StringVar(&params.manifest, "manifest", "", "manifest path (default unito.yaml, or UNITO_MANIFEST)")
			flagSet.StringSliceVar(&params.families, "families", nil, "build only the named families (comma-separated, repeatable)")
			flagSet.StringSliceVar(&params.styles, "styles", nil, "build only the named styles (comma-separated, repeatable)")
			flagSet.IntVar(&params.jobs, "jobs", 0, "concurrent build steps (default: manifest setting, else all CPUs)")
			flagSet.StringVar(&params.output, "output", "", "output directory (default: manifest setting)")
			flagSet.StringVar(&params.cacheDir, "cache-dir", "", "cache directory (default: manifest setting)")
			flagSet.BoolVar(&params.offline, "offline", false, "serve sources from cache only, never fetch")
			flagSet.BoolVar(&params.force, "force", false, "rebuild every stage, ignoring cached results")
			flagSet.BoolVar(&params.verbose, "verbose", false, "log per-step cache and merge detail")
			return flagSet
		},
		Run: func(args []string) error { return runBuild(&params, args) },
	}
}

func runBuild(params *buildParams, args []string) error {
	if len(args) > 0 {
		return fmt.Errorf("build takes no positional arguments (got %q); use --families and --styles to filter", args[0])
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logger := cli.NewLogger(params.verbose)

	manifest, err := fontspec.Load(fontspec.ManifestPath(params.manifest))
	if err != nil {
		return err
	}

	cacheDir := params.cacheDir
	if cacheDir == "" {
		cacheDir = manifest.Cache.Dir
	}
	cache, err := fontcache.Open(cacheDir, fontcache.Options{
		MemoryEntries: manifest.Cache.MemoryEntries,
	})
	if err != nil {
		return err
	}
	defer cache.Close()

	fetchers, err := pipeline.NewFetchers(manifest, nil, clock.Real(), logger)
	if err != nil {
		return err
	}

	builder := &pipeline.Builder{
		Manifest: manifest,
		Cache:    cache,
		Engine:   fontengine.NewUFC(),
		Fetchers: fetchers,
		Logger:   logger,
		Options: pipeline.Options{
			Families:  params.families,
			Styles:    params.styles,
			Jobs:      params.jobs,
			OutputDir: params.output,
			Offline:   params.offline,
			Force:     params.force,
		},
	}
	return builder.Run(ctx)
}
