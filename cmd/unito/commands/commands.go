// Copyright 2026 The Unito Authors
// SPDX-License-Identifier: Apache-2.0

// Package commands builds the complete unito CLI command tree. The
// tree is assembled here rather than in main so tests can execute
// commands against fixture manifests without spawning the binary.
package commands

import (
	"fmt"

	"github.com/unito-fonts/unito/cmd/unito/cli"
	"github.com/unito-fonts/unito/lib/version"
)

// Root builds and returns the complete unito CLI command tree.
func Root() *cli.Command {
	return &cli.Command{
		Name: "unito",
		Description: `Unito: priority-ordered font family builder.

Merges prioritized font sources into unified family files. Shared
folders seed a per-style base that every family extends; sources are
fetched once, instantiated per style, and cached by content.`,
		Subcommands: []*cli.Command{
			buildCommand(),
			planCommand(),
			validateCommand(),
			cacheCommand(),
			{
				Name:    "version",
				Summary: "Print version information",
				Run: func(args []string) error {
					fmt.Printf("unito %s\n", version.Full())
					return nil
				},
			},
		},
		Examples: []cli.Example{
			{
				Description: "Build everything the manifest names",
				Command:     "unito build",
			},
			{
				Description: "Build one family in one style",
				Command:     "unito build --families UnitoJP --styles Regular",
			},
			{
				Description: "Check the manifest without building",
				Command:     "unito validate",
			},
			{
				Description: "Show what a build would run",
				Command:     "unito plan",
			},
			{
				Description: "Rebuild from cached sources with no network",
				Command:     "unito build --offline --force",
			},
		},
	}
}
