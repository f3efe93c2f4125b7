// Copyright 2026 The Unito Authors
// SPDX-License-Identifier: Apache-2.0

package commands

import (
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/spf13/pflag"

	"github.com/unito-fonts/unito/cmd/unito/cli"
	"github.com/unito-fonts/unito/lib/fontcache"
	"github.com/unito-fonts/unito/lib/fontspec"
)

type cacheParams struct {
	manifest string
	cacheDir string
	json     bool
}

func cacheCommand() *cli.Command {
	return &cli.Command{
		Name:    "cache",
		Summary: "Inspect and manage the build cache",
		Subcommands: []*cli.Command{
			cacheStatsCommand(),
			cacheClearCommand(),
		},
	}
}

func cacheFlags(name string, params *cacheParams) *pflag.FlagSet {
	flagSet := pflag.NewFlagSet(name, pflag.ContinueOnError)
	flagSet.StringVar(&params.manifest, "manifest", "", "manifest path (default unito.yaml, or UNITO_MANIFEST)")
	flagSet.StringVar(&params.cacheDir, "cache-dir", "", "cache directory (default: manifest setting)")
	return flagSet
}

// resolveCacheDir prefers the explicit flag; the manifest is read only
// when the flag is absent, so cache commands work without one.
func resolveCacheDir(params *cacheParams) (string, error) {
	if params.cacheDir != "" {
		return params.cacheDir, nil
	}
	manifest, err := fontspec.Load(fontspec.ManifestPath(params.manifest))
	if err != nil {
		return "", err
	}
	return manifest.Cache.Dir, nil
}

func cacheStatsCommand() *cli.Command {
	var params cacheParams

	return &cli.Command{
		Name:    "stats",
		Summary: "Print cache entry and size totals",
		Usage:   "unito cache stats [flags]",
		Description: `Scan the cache and print entry counts and stored sizes.

Payload bytes is the uncompressed total the entries describe; stored
bytes is what the data files occupy on disk after compression and
content dedup.`,
		Flags: func() *pflag.FlagSet {
			flagSet := cacheFlags("stats", &params)
			flagSet.BoolVar(&params.json, "json", false, "output as JSON")
			return flagSet
		},
		Run: func(args []string) error { return runCacheStats(&params, args) },
	}
}

func runCacheStats(params *cacheParams, args []string) error {
	if len(args) > 0 {
		return fmt.Errorf("cache stats takes no positional arguments (got %q)", args[0])
	}

	dir, err := resolveCacheDir(params)
	if err != nil {
		return err
	}
	cache, err := fontcache.Open(dir, fontcache.Options{})
	if err != nil {
		return err
	}
	defer cache.Close()

	stats, err := cache.Stats()
	if err != nil {
		return err
	}
	if params.json {
		return cli.WriteJSON(os.Stdout, statsRow{
			Root:         cache.Root(),
			Entries:      stats.Entries,
			PayloadBytes: stats.PayloadBytes,
			DataFiles:    stats.DataFiles,
			StoredBytes:  stats.StoredBytes,
		})
	}
	return writeStats(os.Stdout, cache.Root(), stats)
}

// statsRow is the JSON shape of cache stats. The in-process hit and
// build counters are omitted: a fresh CLI process has nothing to
// report.
type statsRow struct {
	Root         string `json:"root"`
	Entries      int    `json:"entries"`
	PayloadBytes int64  `json:"payload_bytes"`
	DataFiles    int    `json:"data_files"`
	StoredBytes  int64  `json:"stored_bytes"`
}

func writeStats(w io.Writer, root string, stats fontcache.Stats) error {
	tw := tabwriter.NewWriter(w, 2, 0, 3, ' ', 0)
	fmt.Fprintf(tw, "root\t%s\n", root)
	fmt.Fprintf(tw, "entries\t%d\n", stats.Entries)
	fmt.Fprintf(tw, "payload bytes\t%d\n", stats.PayloadBytes)
	fmt.Fprintf(tw, "data files\t%d\n", stats.DataFiles)
	fmt.Fprintf(tw, "stored bytes\t%d\n", stats.StoredBytes)
	return tw.Flush()
}

func cacheClearCommand() *cli.Command {
	var params cacheParams

	return &cli.Command{
		Name:    "clear",
		Summary: "Delete every cached entry and payload",
		Usage:   "unito cache clear [flags]",
		Description: `Empty the cache directory.

The next build refetches and rebuilds everything. Delivered family
files are untouched; only intermediate build state lives in the
cache.`,
		Flags: func() *pflag.FlagSet {
			return cacheFlags("clear", &params)
		},
		Run: func(args []string) error { return runCacheClear(&params, args) },
	}
}

func runCacheClear(params *cacheParams, args []string) error {
	if len(args) > 0 {
		return fmt.Errorf("cache clear takes no positional arguments (got %q)", args[0])
	}

	dir, err := resolveCacheDir(params)
	if err != nil {
		return err
	}
	cache, err := fontcache.Open(dir, fontcache.Options{})
	if err != nil {
		return err
	}
	defer cache.Close()

	if err := cache.Clear(); err != nil {
		return err
	}
	fmt.Printf("cleared %s\n", cache.Root())
	return nil
}
