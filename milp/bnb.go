package milp

import (
	"context"
	"errors"
	"fmt"
	"math"
	"slices"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/optimize/convex/lp"
)

// BranchAndBound is a depth-first branch-and-bound optimizer. Every node's
// linear relaxation is solved with the gonum simplex implementation. It is
// the default optimizer and needs no native libraries.
type BranchAndBound struct {
	Params Params
}

func NewBranchAndBound(p Params) *BranchAndBound {
	if p.Tol <= 0 {
		p.Tol = DefaultParams.Tol
	}
	if p.IntTol <= 0 {
		p.IntTol = DefaultParams.IntTol
	}
	return &BranchAndBound{Params: p}
}

type bnbNode struct {
	lower []float64
	upper []float64
}

type relaxStatus int

const (
	relaxOptimal relaxStatus = iota
	relaxInfeasible
	relaxUnbounded
)

func (b *BranchAndBound) Solve(ctx context.Context, m *Model) (*Result, error) {
	if err := validateModel(m); err != nil {
		return nil, err
	}
	ctx, cancel := withTimeLimit(ctx, b.Params.TimeLimit)
	defer cancel()

	n := len(m.Vars)
	sign := 1.0
	if m.Maximize {
		sign = -1
	}
	cost := make([]float64, n)
	root := bnbNode{lower: make([]float64, n), upper: make([]float64, n)}
	for i, v := range m.Vars {
		cost[i] = sign * v.Cost
		root.lower[i], root.upper[i] = v.Lower, v.Upper
		if v.Kind != Continuous {
			root.lower[i] = math.Ceil(v.Lower - b.Params.IntTol)
			if !math.IsInf(v.Upper, 1) {
				root.upper[i] = math.Floor(v.Upper + b.Params.IntTol)
			}
		}
	}

	var best []float64
	bestObj := math.Inf(1)
	if len(m.Start) == n && m.Check(m.Start, b.Params.IntTol) == nil {
		best = slices.Clone(m.Start)
		bestObj = sign * m.Objective(best)
	}
	nodes := 0
	stack := []bnbNode{root}

	limited := func(msg string) *Result {
		res := &Result{Status: Limit, Message: msg, Nodes: nodes}
		if best != nil {
			res.Values = best
			res.Objective = m.Objective(best)
		}
		return res
	}

	for len(stack) > 0 {
		if err := ctx.Err(); err != nil {
			return limited(fmt.Sprintf("stopped after %d nodes: %v", nodes, err)), nil
		}
		if b.Params.NodeLimit > 0 && nodes >= b.Params.NodeLimit {
			return limited(fmt.Sprintf("node limit %d reached", b.Params.NodeLimit)), nil
		}
		nd := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		nodes++

		x, obj, status, err := b.relax(m, cost, nd.lower, nd.upper)
		if err != nil {
			return nil, fmt.Errorf("relaxation at node %d: %w", nodes, err)
		}
		switch status {
		case relaxInfeasible:
			continue
		case relaxUnbounded:
			return &Result{Status: Unbounded, Message: "linear relaxation is unbounded", Nodes: nodes}, nil
		}
		if obj >= bestObj-b.Params.Tol*math.Max(1, math.Abs(bestObj)) {
			continue
		}

		j := b.branchVar(m, x)
		if j < 0 {
			for i, v := range m.Vars {
				if v.Kind != Continuous {
					x[i] = math.Round(x[i])
				}
			}
			best, bestObj = x, obj
			continue
		}

		down := bnbNode{lower: slices.Clone(nd.lower), upper: slices.Clone(nd.upper)}
		down.upper[j] = math.Floor(x[j])
		up := bnbNode{lower: slices.Clone(nd.lower), upper: slices.Clone(nd.upper)}
		up.lower[j] = math.Ceil(x[j])
		stack = append(stack, down, up)
	}

	if best == nil {
		return &Result{Status: Infeasible, Message: "no integer feasible point", Nodes: nodes}, nil
	}
	return &Result{
		Status:    Optimal,
		Objective: m.Objective(best),
		Values:    best,
		Nodes:     nodes,
	}, nil
}

// branchVar picks the integer variable whose fractional part is closest to
// one half, or -1 when x is integral.
func (b *BranchAndBound) branchVar(m *Model, x []float64) int {
	best, bestDist := -1, math.Inf(1)
	for i, v := range m.Vars {
		if v.Kind == Continuous {
			continue
		}
		frac := x[i] - math.Floor(x[i])
		if frac <= b.Params.IntTol || frac >= 1-b.Params.IntTol {
			continue
		}
		if d := math.Abs(frac - 0.5); d < bestDist {
			best, bestDist = i, d
		}
	}
	return best
}

type lpRow struct {
	coefs map[int]float64
	slack float64
	rhs   float64
	eq    bool
}

// relax solves the linear relaxation of m under the given bounds. Fixed
// variables are substituted out, the rest are shifted to be non-negative, and
// the result is handed to lp.Simplex in standard form.
func (b *BranchAndBound) relax(m *Model, cost, lower, upper []float64) ([]float64, float64, relaxStatus, error) {
	tol := b.Params.IntTol
	n := len(m.Vars)
	x := make([]float64, n)
	col := make([]int, n)
	var free []int
	for i := range n {
		if upper[i] < lower[i]-tol {
			return nil, 0, relaxInfeasible, nil
		}
		x[i] = lower[i]
		if upper[i]-lower[i] <= tol {
			col[i] = -1
			continue
		}
		col[i] = len(free)
		free = append(free, i)
	}

	var rows []lpRow
	for _, c := range m.Constraints {
		r := lpRow{coefs: map[int]float64{}, rhs: c.RHS}
		for _, t := range c.Terms {
			r.rhs -= t.Coef * lower[t.Var]
			if col[t.Var] >= 0 {
				r.coefs[col[t.Var]] += t.Coef
			}
		}
		for k, v := range r.coefs {
			if math.Abs(v) < 1e-15 {
				delete(r.coefs, k)
			}
		}
		if len(r.coefs) == 0 {
			if !emptyRowHolds(c.Sense, r.rhs, tol*math.Max(1, math.Abs(c.RHS))) {
				return nil, 0, relaxInfeasible, nil
			}
			continue
		}
		switch c.Sense {
		case LessEq:
			r.slack = 1
		case GreaterEq:
			r.slack = -1
		case Equal:
			r.eq = true
		}
		rows = append(rows, r)
	}

	// Upper bounds implied by an equality or <= row with non-negative
	// coefficients need no row of their own.
	implied := make([]float64, len(free))
	for k := range implied {
		implied[k] = math.Inf(1)
	}
	for _, r := range rows {
		if r.slack < 0 || r.rhs < 0 {
			continue
		}
		nonneg := true
		for _, v := range r.coefs {
			if v < 0 {
				nonneg = false
				break
			}
		}
		if !nonneg {
			continue
		}
		for k, v := range r.coefs {
			implied[k] = math.Min(implied[k], r.rhs/v)
		}
	}
	for k, i := range free {
		span := upper[i] - lower[i]
		if math.IsInf(span, 1) || implied[k] <= span+tol {
			continue
		}
		rows = append(rows, lpRow{coefs: map[int]float64{k: 1}, slack: 1, rhs: span})
	}

	used := make([]bool, len(free))
	for _, r := range rows {
		for k := range r.coefs {
			used[k] = true
		}
	}
	idx := make([]int, len(free))
	ncols := 0
	for k, i := range free {
		if used[k] {
			idx[k] = ncols
			ncols++
			continue
		}
		idx[k] = -1
		if cost[i] < 0 {
			if math.IsInf(upper[i], 1) {
				return nil, 0, relaxUnbounded, nil
			}
			x[i] = upper[i]
		}
	}

	constant := 0.0
	for i := range n {
		constant += cost[i] * x[i]
	}
	if len(rows) == 0 {
		return x, constant, relaxOptimal, nil
	}

	neq, nslack := 0, 0
	for _, r := range rows {
		if r.eq {
			neq++
		} else {
			nslack++
		}
	}
	if neq > ncols {
		return nil, 0, 0, fmt.Errorf("%d equality rows over %d columns", neq, ncols)
	}

	total := ncols + nslack
	a := mat.NewDense(len(rows), total, nil)
	rhs := make([]float64, len(rows))
	c := make([]float64, total)
	for k, i := range free {
		if idx[k] >= 0 {
			c[idx[k]] = cost[i]
		}
	}
	s := ncols
	for ri, r := range rows {
		flip := 1.0
		if r.rhs < 0 {
			flip = -1
		}
		for k, v := range r.coefs {
			a.Set(ri, idx[k], flip*v)
		}
		if !r.eq {
			a.Set(ri, s, flip*r.slack)
			s++
		}
		rhs[ri] = flip * r.rhs
	}

	obj, sol, err := lp.Simplex(c, a, rhs, b.Params.Tol, nil)
	switch {
	case errors.Is(err, lp.ErrInfeasible):
		return nil, 0, relaxInfeasible, nil
	case errors.Is(err, lp.ErrUnbounded):
		return nil, 0, relaxUnbounded, nil
	case err != nil:
		return nil, 0, 0, err
	}
	for k, i := range free {
		if idx[k] >= 0 {
			x[i] = lower[i] + sol[idx[k]]
		}
	}
	return x, obj + constant, relaxOptimal, nil
}

func emptyRowHolds(sense Sense, rhs, tol float64) bool {
	switch sense {
	case LessEq:
		return 0 <= rhs+tol
	case GreaterEq:
		return 0 >= rhs-tol
	default:
		return math.Abs(rhs) <= tol
	}
}

func validateModel(m *Model) error {
	for i, v := range m.Vars {
		if math.IsInf(v.Lower, 0) || math.IsNaN(v.Lower) {
			return fmt.Errorf("variable %d (%s): lower bound must be finite", i, v.Name)
		}
		if v.Upper < v.Lower {
			return fmt.Errorf("variable %d (%s): upper bound %g below lower bound %g", i, v.Name, v.Upper, v.Lower)
		}
	}
	for _, c := range m.Constraints {
		for _, t := range c.Terms {
			if t.Var < 0 || t.Var >= len(m.Vars) {
				return fmt.Errorf("constraint %s references variable %d of %d", c.Name, t.Var, len(m.Vars))
			}
		}
	}
	return nil
}
