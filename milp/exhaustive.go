package milp

import (
	"context"
	"errors"
	"fmt"
	"math"
)

const DefaultExhaustiveVars = 22

// Exhaustive enumerates every 0/1 assignment of a pure-binary model. It is
// only practical for tiny models and serves as a reference for the other
// optimizers.
type Exhaustive struct {
	MaxVars int
	Tol     float64
}

func (e *Exhaustive) Solve(ctx context.Context, m *Model) (*Result, error) {
	if err := validateModel(m); err != nil {
		return nil, err
	}
	if !m.allBinary() {
		return nil, errors.New("exhaustive search needs an all-binary model")
	}
	limit := e.MaxVars
	if limit <= 0 {
		limit = DefaultExhaustiveVars
	}
	n := len(m.Vars)
	if n > limit {
		return nil, fmt.Errorf("exhaustive search limited to %d variables, model has %d", limit, n)
	}
	tol := e.Tol
	if tol <= 0 {
		tol = DefaultParams.IntTol
	}
	sign := 1.0
	if m.Maximize {
		sign = -1
	}

	values := make([]float64, n)
	var best []float64
	bestObj := math.Inf(1)
	total := uint64(1) << n
	for mask := uint64(0); mask < total; mask++ {
		if mask&0xfff == 0 {
			if err := ctx.Err(); err != nil {
				return &Result{Status: Limit, Message: err.Error(), Nodes: int(mask)}, nil
			}
		}
		for i := range n {
			values[i] = float64(mask >> i & 1)
		}
		if m.Check(values, tol) != nil {
			continue
		}
		if obj := sign * m.Objective(values); obj < bestObj {
			bestObj = obj
			best = append(best[:0], values...)
		}
	}
	if best == nil {
		return &Result{Status: Infeasible, Message: "no assignment satisfies the constraints", Nodes: int(total)}, nil
	}
	return &Result{Status: Optimal, Objective: m.Objective(best), Values: best, Nodes: int(total)}, nil
}
