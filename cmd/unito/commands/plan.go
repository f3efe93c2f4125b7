// Copyright 2026 The Unito Authors
// SPDX-License-Identifier: Apache-2.0

package commands

import (
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/spf13/pflag"

	"github.com/unito-fonts/unito/cmd/unito/cli"
	"github.com/unito-fonts/unito/lib/buildplan"
	"github.com/unito-fonts/unito/lib/fontspec"
)

type planParams struct {
	manifest string
	families []string
	styles   []string
	json     bool
}

func planCommand() *cli.Command {
	var params planParams

	return &cli.Command{
		Name:    "plan",
		Summary: "Print the build plan without running it",
		Usage:   "unito plan [flags]",
		Description: `Compute the step graph a build would execute and print it.

Base steps come first, one per (shared source set, style) pair, then
target steps with the base each depends on. Two families whose
effective shared sources match (after per-family omits) share a base
step; the plan shows that sharing directly.`,
		Examples: []cli.Example{
			{
				Description: "Show the full plan",
				Command:     "unito plan",
			},
			{
				Description: "Show what a filtered build would run",
				Command:     "unito plan --families UnitoJP",
			},
			{
				Description: "Machine-readable plan",
				Command:     "unito plan --json",
			},
		},
		Flags: func() *pflag.FlagSet {
			flagSet := pflag.NewFlagSet("plan", pflag.ContinueOnError)
			flagSet.StringVar(&params.manifest, "manifest", "", "manifest path (default unito.yaml, or UNITO_MANIFEST)")
			flagSet.StringSliceVar(&params.families, "families", nil, "plan only the named families (comma-separated, repeatable)")
			flagSet.StringSliceVar(&params.styles, "styles", nil, "plan only the named styles (comma-separated, repeatable)")
			flagSet.BoolVar(&params.json, "json", false, "output as JSON")
			return flagSet
		},
		Run: func(args []string) error { return runPlan(&params, args) },
	}
}

func runPlan(params *planParams, args []string) error {
	if len(args) > 0 {
		return fmt.Errorf("plan takes no positional arguments (got %q); use --families and --styles to filter", args[0])
	}

	manifest, err := fontspec.Load(fontspec.ManifestPath(params.manifest))
	if err != nil {
		return err
	}
	plan, err := buildplan.Compute(manifest, buildplan.Options{
		Families: params.families,
		Styles:   params.styles,
	})
	if err != nil {
		return err
	}

	if params.json {
		return cli.WriteJSON(os.Stdout, planRows(plan))
	}
	return writePlan(os.Stdout, plan)
}

// planRow is the JSON shape of one plan step.
type planRow struct {
	ID        string   `json:"id"`
	Kind      string   `json:"kind"`
	Family    string   `json:"family,omitempty"`
	Style     string   `json:"style"`
	DependsOn []string `json:"depends_on,omitempty"`
}

func planRows(plan *buildplan.Plan) []planRow {
	rows := make([]planRow, 0, len(plan.Steps))
	for i := range plan.Steps {
		step := &plan.Steps[i]
		rows = append(rows, planRow{
			ID:        step.ID,
			Kind:      step.Kind,
			Family:    step.Family,
			Style:     step.Style,
			DependsOn: step.DependsOn,
		})
	}
	return rows
}

func writePlan(w io.Writer, plan *buildplan.Plan) error {
	if len(plan.Steps) == 0 {
		_, err := fmt.Fprintln(w, "nothing to build")
		return err
	}

	tw := tabwriter.NewWriter(w, 2, 0, 3, ' ', 0)
	fmt.Fprintln(tw, "STEP\tKIND\tSTYLE\tDEPENDS ON")
	for i := range plan.Steps {
		step := &plan.Steps[i]
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n",
			step.ID, step.Kind, step.Style, strings.Join(step.DependsOn, ", "))
	}
	return tw.Flush()
}
