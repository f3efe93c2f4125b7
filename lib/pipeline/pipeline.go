// Copyright 2026 The Unito Authors
// SPDX-License-Identifier: Apache-2.0

// Package pipeline runs a manifest end to end: plan, fetch,
// instantiate, merge, deliver, report.
//
// The pipeline owns no policy of its own. What to build comes from
// the plan, merge behavior from lib/merge, freshness from the cache
// tokens; this package wires the stages together and classifies what
// went wrong where.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"

	"github.com/unito-fonts/unito/lib/buildplan"
	"github.com/unito-fonts/unito/lib/clock"
	"github.com/unito-fonts/unito/lib/deliver"
	"github.com/unito-fonts/unito/lib/fetch"
	"github.com/unito-fonts/unito/lib/fontcache"
	"github.com/unito-fonts/unito/lib/fontengine"
	"github.com/unito-fonts/unito/lib/fontspec"
	"github.com/unito-fonts/unito/lib/scheduler"
)

// Kind classifies where in the pipeline a step failed. The summary
// prints it so an operator knows whether to check the network, the
// manifest, or the inputs.
type Kind string

const (
	KindConfig      Kind = "config"
	KindFetch       Kind = "fetch"
	KindInstantiate Kind = "instantiate"
	KindMerge       Kind = "merge"
	KindBase        Kind = "base"
	KindDeliver     Kind = "deliver"
	KindCanceled    Kind = "canceled"
)

// Error tags a step failure with the stage it came from.
type Error struct {
	Kind Kind
	Err  error
}

func (e *Error) Error() string { return e.Err.Error() }

func (e *Error) Unwrap() error { return e.Err }

// BuildError reports a run in which some planned targets failed. It
// carries the conventional exit code for a partial failure.
type BuildError struct {
	Failed int
	Total  int
}

func (e *BuildError) Error() string {
	return fmt.Sprintf("%d of %d targets failed", e.Failed, e.Total)
}

func (e *BuildError) ExitCode() int { return 1 }

// Options are the per-invocation switches, set from command flags.
type Options struct {
	// Families and Styles filter the plan by name or slug. Empty
	// means all.
	Families []string
	Styles   []string

	// Jobs overrides build.jobs from the manifest when positive.
	Jobs int

	// OutputDir overrides output.dir from the manifest when set.
	OutputDir string

	// Offline serves every source from the cache without touching
	// the network. A source never cached fails its step.
	Offline bool

	// Force rebuilds every stage, ignoring cache validity.
	Force bool
}

// Builder runs builds for one manifest. Every collaborator is
// injected; the zero value is not usable.
type Builder struct {
	Manifest *fontspec.Manifest
	Cache    *fontcache.Cache
	Engine   fontengine.Engine

	// Fetchers maps repository name to its fetcher. NewFetchers
	// builds the production set; tests inject fakes.
	Fetchers map[string]fetch.Fetcher

	Logger  *slog.Logger
	Options Options
}

// NewFetchers builds one retrying fetcher per manifest repository.
// Retry attempts come from build.fetch_attempts; backoff runs on the
// given clock.
func NewFetchers(m *fontspec.Manifest, httpClient *http.Client, clk clock.Clock, logger *slog.Logger) (map[string]fetch.Fetcher, error) {
	fetchers := make(map[string]fetch.Fetcher, len(m.Repositories))
	for _, repo := range m.Repositories {
		inner, err := fetch.New(repo, httpClient)
		if err != nil {
			return nil, fmt.Errorf("repository %q: %w", repo.Name, err)
		}
		fetchers[repo.Name] = fetch.WithRetry(inner, m.Build.FetchAttempts, clk, logger)
	}
	return fetchers, nil
}

// runState is the mutable state of one Run: the plan, the delivery
// writer, and the per-target reports the summary reads.
type runState struct {
	plan   *buildplan.Plan
	writer *deliver.Writer

	mu      sync.Mutex
	reports map[string]targetReport
}

type targetReport struct {
	units int
	path  string
}

func (s *runState) record(id string, report targetReport) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reports[id] = report
}

func (s *runState) report(id string) targetReport {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.reports[id]
}

// Run computes the plan, executes it, delivers the targets, and
// prints the per-target summary. The returned error is nil only when
// every planned target was built and delivered.
func (b *Builder) Run(ctx context.Context) error {
	logger := b.logger()

	plan, err := buildplan.Compute(b.Manifest, buildplan.Options{
		Families: b.Options.Families,
		Styles:   b.Options.Styles,
	})
	if err != nil {
		return err
	}
	targets := plan.Targets()
	if len(targets) == 0 {
		logger.Info("nothing to build: the filters select no targets")
		return nil
	}
	logger.Info("plan computed",
		"bases", len(plan.Steps)-len(targets),
		"targets", len(targets),
		"offline", b.Options.Offline,
		"force", b.Options.Force)

	state := &runState{
		plan: plan,
		writer: &deliver.Writer{
			Dir: b.outputDir(),
			Ext: b.Manifest.Output.Extension,
		},
		reports: make(map[string]targetReport, len(targets)),
	}

	execute := func(ctx context.Context, step *buildplan.Step) error {
		switch step.Kind {
		case buildplan.KindBase:
			return b.buildBase(ctx, state, step)
		case buildplan.KindTarget:
			return b.buildTarget(ctx, state, step)
		default:
			return &Error{Kind: KindConfig, Err: fmt.Errorf("unknown step kind %q", step.Kind)}
		}
	}

	outcome := scheduler.Run(ctx, plan, execute, scheduler.Options{
		Workers: b.workers(),
		Logger:  logger,
	})

	return b.summarize(state, outcome)
}

// summarize prints one line per target and returns a BuildError when
// any of them failed.
func (b *Builder) summarize(state *runState, outcome *scheduler.Outcome) error {
	logger := b.logger()

	targets := state.plan.Targets()
	failed := 0
	for _, step := range targets {
		result, ok := outcome.Results[step.ID]
		if !ok {
			failed++
			logger.Error("target missing from outcome", "target", step.ID)
			continue
		}
		if result.Status == scheduler.StatusOK {
			report := state.report(step.ID)
			logger.Info("target built",
				"target", step.ID,
				"units", report.units,
				"path", report.path)
			continue
		}
		failed++
		logger.Error("target failed",
			"target", step.ID,
			"kind", string(classify(result)),
			"error", result.Err)
	}

	if failed > 0 {
		return &BuildError{Failed: failed, Total: len(targets)}
	}
	return nil
}

// classify maps a step result to the failure taxonomy. Skipped steps
// are always base failures: the only dependency a step can have is
// its shared base.
func classify(result *scheduler.Result) Kind {
	switch result.Status {
	case scheduler.StatusCanceled:
		return KindCanceled
	case scheduler.StatusSkipped:
		return KindBase
	}
	if errors.Is(result.Err, context.Canceled) || errors.Is(result.Err, context.DeadlineExceeded) {
		return KindCanceled
	}
	var classified *Error
	if errors.As(result.Err, &classified) {
		return classified.Kind
	}
	var fetchErr *fetch.Error
	if errors.As(result.Err, &fetchErr) {
		return KindFetch
	}
	var deliverErr *deliver.Error
	if errors.As(result.Err, &deliverErr) {
		return KindDeliver
	}
	return KindMerge
}

func (b *Builder) logger() *slog.Logger {
	if b.Logger != nil {
		return b.Logger
	}
	return slog.Default()
}

func (b *Builder) workers() int {
	if b.Options.Jobs > 0 {
		return b.Options.Jobs
	}
	return b.Manifest.Build.Jobs
}

func (b *Builder) outputDir() string {
	if b.Options.OutputDir != "" {
		return b.Options.OutputDir
	}
	return b.Manifest.Output.Dir
}
