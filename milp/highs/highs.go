//go:build highs

// Package highs solves milp models with the HiGHS library through cgo. It
// registers itself as "highs".
package highs

import (
	"context"
	"fmt"
	"math"

	"github.com/lanl/highs"

	"assigner/milp"
)

type Optimizer struct {
	Params milp.Params
}

func init() {
	milp.Register("highs", func(p milp.Params) milp.Optimizer { return &Optimizer{Params: p} })
}

// Translate builds the HiGHS model for m. Rows are expressed as
// RowLower <= a.x <= RowUpper.
func Translate(m *milp.Model) *highs.Model {
	n := len(m.Vars)
	hm := &highs.Model{
		Maximize: m.Maximize,
		ColCosts: make([]float64, n),
		ColLower: make([]float64, n),
		ColUpper: make([]float64, n),
		VarTypes: make([]highs.VariableType, n),
	}
	for j, v := range m.Vars {
		hm.ColCosts[j] = v.Cost
		hm.ColLower[j] = v.Lower
		hm.ColUpper[j] = v.Upper
		if v.Kind == milp.Continuous {
			hm.VarTypes[j] = highs.ContinuousType
		} else {
			hm.VarTypes[j] = highs.IntegerType
		}
	}
	for i, c := range m.Constraints {
		lo, hi := math.Inf(-1), math.Inf(1)
		switch c.Sense {
		case milp.LessEq:
			hi = c.RHS
		case milp.GreaterEq:
			lo = c.RHS
		case milp.Equal:
			lo, hi = c.RHS, c.RHS
		}
		hm.RowLower = append(hm.RowLower, lo)
		hm.RowUpper = append(hm.RowUpper, hi)
		for _, t := range c.Terms {
			hm.ConstMatrix = append(hm.ConstMatrix, highs.Nonzero{Row: i, Col: t.Var, Val: t.Coef})
		}
	}
	return hm
}

func (o *Optimizer) Solve(ctx context.Context, m *milp.Model) (*milp.Result, error) {
	if err := milp.Validate(m); err != nil {
		return nil, err
	}
	if len(m.Vars) == 0 {
		return emptyModel(m, o.Params.IntTol), nil
	}
	hm := Translate(m)
	return milp.Await(ctx, o.Params.TimeLimit, func() (*milp.Result, error) {
		sol, err := hm.Solve()
		if err != nil {
			return nil, fmt.Errorf("highs: %w", err)
		}
		switch sol.Status {
		case highs.Optimal:
			return &milp.Result{Status: milp.Optimal, Objective: sol.Objective, Values: sol.ColumnPrimal}, nil
		case highs.Infeasible:
			return &milp.Result{Status: milp.Infeasible, Message: sol.Status.String()}, nil
		case highs.Unbounded, highs.UnboundedOrInfeasible:
			return &milp.Result{Status: milp.Unbounded, Message: sol.Status.String()}, nil
		case highs.TimeLimit, highs.IterationLimit:
			return &milp.Result{Status: milp.Limit, Message: sol.Status.String()}, nil
		}
		return &milp.Result{Status: milp.Error, Message: sol.Status.String()}, nil
	})
}

func emptyModel(m *milp.Model, tol float64) *milp.Result {
	if err := m.Check(nil, tol); err != nil {
		return &milp.Result{Status: milp.Infeasible, Message: err.Error()}
	}
	return &milp.Result{Status: milp.Optimal, Values: []float64{}}
}
