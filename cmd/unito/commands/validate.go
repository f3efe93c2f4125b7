// Copyright 2026 The Unito Authors
// SPDX-License-Identifier: Apache-2.0

package commands

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/pflag"

	"github.com/unito-fonts/unito/cmd/unito/cli"
	"github.com/unito-fonts/unito/lib/fontspec"
)

type validateParams struct {
	manifest string
}

func validateCommand() *cli.Command {
	var params validateParams

	return &cli.Command{
		Name:    "validate",
		Summary: "Check the manifest and report every issue",
		Usage:   "unito validate [flags]",
		Description: `Load the manifest and run the full consistency check.

Reports every issue found in one pass: dangling repository and style
references, duplicate names, priority collisions, base folder
placement, malformed exclusion ranges. Exits 0 on a clean manifest,
1 when issues were found.`,
		Examples: []cli.Example{
			{
				Description: "Validate the manifest in the working directory",
				Command:     "unito validate",
			},
			{
				Description: "Validate a specific manifest",
				Command:     "unito validate --manifest configs/unito.yaml",
			},
		},
		Flags: func() *pflag.FlagSet {
			flagSet := pflag.NewFlagSet("validate", pflag.ContinueOnError)
			flagSet.StringVar(&params.manifest, "manifest", "", "manifest path (default unito.yaml, or UNITO_MANIFEST)")
			return flagSet
		},
		Run: func(args []string) error { return runValidate(&params, args) },
	}
}

func runValidate(params *validateParams, args []string) error {
	if len(args) > 0 {
		return fmt.Errorf("validate takes no positional arguments (got %q)", args[0])
	}

	path := fontspec.ManifestPath(params.manifest)
	manifest, err := fontspec.Load(path)

	var configErr *fontspec.ConfigError
	if errors.As(err, &configErr) {
		fmt.Fprintf(os.Stderr, "%s: %d issue(s)\n", configErr.Path, len(configErr.Issues))
		for _, issue := range configErr.Issues {
			fmt.Fprintf(os.Stderr, "  - %s\n", issue)
		}
		return &cli.ExitError{Code: 1}
	}
	if err != nil {
		return err
	}

	fmt.Printf("%s: ok (%d repositories, %d styles, %d shared folders, %d families)\n",
		path, len(manifest.Repositories), len(manifest.Styles),
		len(manifest.Folders), len(manifest.Families))
	return nil
}
