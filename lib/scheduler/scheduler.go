// Copyright 2026 The Unito Authors
// SPDX-License-Identifier: Apache-2.0

// Package scheduler executes a build plan on a bounded worker pool.
//
// Steps are released in dependency order: a step enters the ready
// queue only when every step it depends on has succeeded, so base
// steps always complete before the targets extending them. Failures
// stay contained. A failed step marks its dependents skipped and
// leaves unrelated steps running; only context cancellation stops the
// whole run.
package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"runtime"
	"sync"
	"sync/atomic"

	"github.com/unito-fonts/unito/lib/buildplan"
)

// ExecuteFunc runs one step. The scheduler calls it from multiple
// goroutines; implementations synchronize their own shared state.
type ExecuteFunc func(ctx context.Context, step *buildplan.Step) error

// Status classifies a step's result.
type Status string

const (
	// StatusOK means the step ran and succeeded.
	StatusOK Status = "ok"

	// StatusFailed means the step ran and returned an error.
	StatusFailed Status = "failed"

	// StatusSkipped means a dependency failed, so the step never ran.
	StatusSkipped Status = "skipped"

	// StatusCanceled means the invocation was canceled before the
	// step could run.
	StatusCanceled Status = "canceled"
)

// Result is one step's outcome.
type Result struct {
	Step   *buildplan.Step
	Status Status

	// Err is nil for StatusOK. For StatusSkipped it wraps the failed
	// dependency's error, so callers can still classify the root
	// cause with errors.As.
	Err error
}

// Outcome maps step ID to result. Every plan step has exactly one
// entry once Run returns.
type Outcome struct {
	Results map[string]*Result
}

// OK reports whether every step succeeded.
func (o *Outcome) OK() bool {
	for _, result := range o.Results {
		if result.Status != StatusOK {
			return false
		}
	}
	return true
}

// Options tune a run.
type Options struct {
	// Workers bounds concurrent step execution. Zero or negative
	// means GOMAXPROCS.
	Workers int

	// Logger receives scheduling events. Nil means slog.Default().
	Logger *slog.Logger
}

type node struct {
	step       *buildplan.Step
	depCount   atomic.Int32
	dependents []*node

	// settle fires exactly once per node, whichever path gets there
	// first: execution, a skip cascade, or cancellation.
	settle sync.Once
	result *Result
}

type run struct {
	execute ExecuteFunc
	logger  *slog.Logger
	wg      sync.WaitGroup
	ready   chan *node
}

// Run executes the plan and blocks until every step is settled: run,
// skipped, or canceled.
func Run(ctx context.Context, plan *buildplan.Plan, execute ExecuteFunc, opts Options) *Outcome {
	workers := opts.Workers
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	nodes := make(map[string]*node, len(plan.Steps))
	ordered := make([]*node, 0, len(plan.Steps))
	for i := range plan.Steps {
		n := &node{step: &plan.Steps[i]}
		nodes[n.step.ID] = n
		ordered = append(ordered, n)
	}

	r := &run{
		execute: execute,
		logger:  logger,
		ready:   make(chan *node, len(ordered)),
	}
	r.wg.Add(len(ordered))

	// Find steps naming dependencies the plan lacks. They fail up
	// front and get no edges, so they can never enter the ready
	// queue; anything depending on them is skipped below.
	broken := make(map[*node]error)
	for _, n := range ordered {
		for _, depID := range n.step.DependsOn {
			if _, found := nodes[depID]; !found {
				broken[n] = fmt.Errorf("plan names unknown dependency %q", depID)
				break
			}
		}
	}

	for _, n := range ordered {
		if _, isBroken := broken[n]; isBroken {
			continue
		}
		for _, depID := range n.step.DependsOn {
			dep := nodes[depID]
			dep.dependents = append(dep.dependents, n)
			n.depCount.Add(1)
		}
	}

	// Workers have not started yet, so settling here is race-free.
	for n, err := range broken {
		r.logger.Warn("step has a broken dependency", "step", n.step.ID, "error", err)
		r.settleNode(n, &Result{Step: n.step, Status: StatusFailed, Err: err})
		r.skipDependents(n, err)
	}

	// Seed the queue with dependency-free steps, in plan order so a
	// single worker executes the plan exactly as written.
	for _, n := range ordered {
		if n.result == nil && n.depCount.Load() == 0 {
			r.ready <- n
		}
	}

	for i := 0; i < workers; i++ {
		go r.worker(ctx)
	}

	r.wg.Wait()
	close(r.ready)

	outcome := &Outcome{Results: make(map[string]*Result, len(ordered))}
	for _, n := range ordered {
		outcome.Results[n.step.ID] = n.result
	}
	return outcome
}

func (r *run) worker(ctx context.Context) {
	for n := range r.ready {
		if err := ctx.Err(); err != nil {
			r.settleNode(n, &Result{Step: n.step, Status: StatusCanceled, Err: err})
			r.cascade(n, func(step *buildplan.Step) *Result {
				return &Result{Step: step, Status: StatusCanceled, Err: err}
			})
			continue
		}

		r.logger.Debug("step started", "step", n.step.ID, "kind", n.step.Kind)
		if err := r.execute(ctx, n.step); err != nil {
			r.logger.Warn("step failed", "step", n.step.ID, "error", err)
			r.settleNode(n, &Result{Step: n.step, Status: StatusFailed, Err: err})
			r.skipDependents(n, err)
			continue
		}
		r.logger.Debug("step finished", "step", n.step.ID)
		r.settleNode(n, &Result{Step: n.step, Status: StatusOK})

		// A failed or canceled step never decrements its dependents,
		// so a step with a settled ancestor can never reach the ready
		// queue. Enqueueing happens exactly once per step.
		for _, dependent := range n.dependents {
			if dependent.depCount.Add(-1) == 0 {
				r.ready <- dependent
			}
		}
	}
}

// skipDependents marks everything downstream of a failed step as
// skipped, wrapping the root cause.
func (r *run) skipDependents(n *node, cause error) {
	failedID := n.step.ID
	r.cascade(n, func(step *buildplan.Step) *Result {
		return &Result{
			Step:   step,
			Status: StatusSkipped,
			Err:    fmt.Errorf("dependency %s failed: %w", failedID, cause),
		}
	})
}

// cascade settles every node downstream of n with a derived result.
func (r *run) cascade(n *node, derive func(*buildplan.Step) *Result) {
	for _, dependent := range n.dependents {
		r.settleNode(dependent, derive(dependent.step))
		r.cascade(dependent, derive)
	}
}

func (r *run) settleNode(n *node, result *Result) {
	n.settle.Do(func() {
		n.result = result
		r.wg.Done()
	})
}
