// Package match assigns students to projects.
//
// Students who request each other as teammates, in either direction, are
// merged into indivisible groups. Every group is placed on exactly one
// project such that each project's head count lies within [Min, Max] and
// each required skill total is met, minimizing the summed preference cost
// of all students.
//
// Preference cost is exponential in rank: with the default Exponential{2} a
// first choice costs 1, a second choice 2, a third 4, and so on. A project
// the student did not rank is costed as one rank worse than the worst
// expressible rank. The convexity makes the optimizer prefer spreading mild
// disappointment over leaving one student badly off.
//
// Structural problems (unknown names, malformed bounds, conflicting forced
// assignments) are reported before any solver runs. Solver outcomes are
// translated into *InfeasibleError or *SolverFailureError; there is no
// partial result.
package match

import (
	"context"
	"errors"
	"math/rand"
	"time"

	"go.uber.org/zap"

	"assigner/milp"
)

type Options struct {
	Force     []Force
	Optimizer milp.Optimizer
	Costs     CostModel
	// Diagnose re-solves relaxed models after an infeasible outcome to name
	// the constraint families responsible.
	Diagnose bool
	// WarmStart runs a local search first and hands its best feasible
	// assignment to the optimizer as a starting incumbent.
	WarmStart bool
	Heuristic HeuristicParams
	Logger    *zap.Logger
}

func Match(ctx context.Context, students []Student, projects []Project, opts Options) (*Result, error) {
	log := opts.Logger
	if log == nil {
		log = zap.NewNop()
	}
	opt := opts.Optimizer
	if opt == nil {
		opt = milp.NewBranchAndBound(milp.DefaultParams)
	}

	in, err := Prepare(students, projects, opts.Force, opts.Costs)
	if err != nil {
		log.Debug("input rejected", zap.Error(err))
		return nil, err
	}
	if len(in.Students) == 0 {
		return &Result{Assignments: []Assignment{}, Groups: [][]string{}}, nil
	}

	am := Build(in)
	log.Debug("built assignment model",
		zap.Int("students", len(in.Students)),
		zap.Int("groups", len(in.Groups)),
		zap.Int("projects", len(in.Projects)),
		zap.Int("variables", len(am.Model.Vars)),
		zap.Int("constraints", len(am.Model.Constraints)),
		zap.Int("absent_rank", in.AbsentRank))

	start := time.Now()
	if opts.WarmStart {
		p := opts.Heuristic
		if p == (HeuristicParams{}) {
			p = DefaultHeuristic
		}
		if proj, cost := Heuristic(in, p, rand.New(rand.NewSource(1))); proj != nil {
			am.Model.Start = startValues(am, proj)
			log.Debug("warm start found", zap.Float64("objective", cost), zap.Duration("elapsed", time.Since(start)))
		}
	}
	sol, err := Solve(ctx, am, opt)
	var infeasible *InfeasibleError
	if errors.As(err, &infeasible) {
		diagnose(ctx, in, am, opt, opts.Diagnose, log, infeasible)
		log.Info("assignment infeasible",
			zap.Strings("suspects", infeasible.Suspects),
			zap.Duration("elapsed", time.Since(start)))
		return nil, infeasible
	}
	if err != nil {
		log.Warn("solver failed", zap.Error(err), zap.Duration("elapsed", time.Since(start)))
		return nil, err
	}

	assignments, err := Extract(in, sol)
	if err != nil {
		return nil, err
	}
	groups := make([][]string, len(in.Groups))
	for g := range in.Groups {
		groups[g] = in.memberNames(g)
	}
	log.Info("assignment solved",
		zap.Float64("objective", sol.Objective),
		zap.Int("nodes", sol.Nodes),
		zap.Duration("elapsed", time.Since(start)))
	return &Result{
		Assignments: assignments,
		Groups:      groups,
		Objective:   sol.Objective,
		Nodes:       sol.Nodes,
	}, nil
}
