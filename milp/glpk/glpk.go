//go:build glpk

// Package glpk solves milp models with GLPK through cgo. It registers itself
// as "glpk".
package glpk

import (
	"context"
	"fmt"

	"github.com/lukpank/go-glpk/glpk"

	"assigner/milp"
)

type Optimizer struct {
	Params milp.Params
	// Presolve turns on the MIP presolver. Without it the LP relaxation is
	// solved with simplex first.
	Presolve bool
}

func init() {
	milp.Register("glpk", func(p milp.Params) milp.Optimizer { return &Optimizer{Params: p} })
}

// load copies m into a fresh problem. GLPK indexes rows and columns from 1
// and ignores element 0 of index and value slices.
func load(m *milp.Model) *glpk.Prob {
	lp := glpk.New()
	lp.SetProbName(m.Name)
	if m.Maximize {
		lp.SetObjDir(glpk.ObjDir(glpk.MAX))
	} else {
		lp.SetObjDir(glpk.ObjDir(glpk.MIN))
	}

	lp.AddCols(len(m.Vars))
	for j, v := range m.Vars {
		col := j + 1
		lp.SetColName(col, v.Name)
		switch v.Kind {
		case milp.Binary:
			lp.SetColKind(col, glpk.VarType(glpk.BV))
		case milp.Integer:
			lp.SetColKind(col, glpk.VarType(glpk.IV))
		}
		switch {
		case v.Upper == v.Lower:
			lp.SetColBnds(col, glpk.BndsType(glpk.FX), v.Lower, v.Upper)
		case v.Upper > 1e300:
			lp.SetColBnds(col, glpk.BndsType(glpk.LO), v.Lower, 0)
		default:
			lp.SetColBnds(col, glpk.BndsType(glpk.DB), v.Lower, v.Upper)
		}
		lp.SetObjCoef(col, v.Cost)
	}

	if len(m.Constraints) > 0 {
		lp.AddRows(len(m.Constraints))
	}
	for i, c := range m.Constraints {
		row := i + 1
		lp.SetRowName(row, c.Name)
		switch c.Sense {
		case milp.LessEq:
			lp.SetRowBnds(row, glpk.BndsType(glpk.UP), 0, c.RHS)
		case milp.GreaterEq:
			lp.SetRowBnds(row, glpk.BndsType(glpk.LO), c.RHS, 0)
		case milp.Equal:
			lp.SetRowBnds(row, glpk.BndsType(glpk.FX), c.RHS, c.RHS)
		}
		ind := make([]int32, 1, len(c.Terms)+1)
		val := make([]float64, 1, len(c.Terms)+1)
		for _, t := range c.Terms {
			ind = append(ind, int32(t.Var+1))
			val = append(val, t.Coef)
		}
		lp.SetMatRow(row, ind, val)
	}
	return lp
}

func (o *Optimizer) Solve(ctx context.Context, m *milp.Model) (*milp.Result, error) {
	if err := milp.Validate(m); err != nil {
		return nil, err
	}
	if len(m.Vars) == 0 {
		if err := m.Check(nil, o.Params.IntTol); err != nil {
			return &milp.Result{Status: milp.Infeasible, Message: err.Error()}, nil
		}
		return &milp.Result{Status: milp.Optimal, Values: []float64{}}, nil
	}
	return milp.Await(ctx, o.Params.TimeLimit, func() (*milp.Result, error) {
		lp := load(m)
		defer lp.Delete()
		return o.run(lp, len(m.Vars))
	})
}

func (o *Optimizer) run(lp *glpk.Prob, n int) (*milp.Result, error) {
	if !o.Presolve {
		smcp := glpk.NewSmcp()
		smcp.SetMsgLev(glpk.MsgLev(glpk.MSG_ERR))
		if err := lp.Simplex(smcp); err != nil {
			return nil, fmt.Errorf("glpk simplex: %w", err)
		}
		switch lp.Status() {
		case glpk.NOFEAS:
			return &milp.Result{Status: milp.Infeasible, Message: "linear relaxation has no feasible point"}, nil
		case glpk.UNBND:
			return &milp.Result{Status: milp.Unbounded, Message: "linear relaxation is unbounded"}, nil
		}
	}

	iocp := glpk.NewIocp()
	iocp.SetPresolve(o.Presolve)
	iocp.SetMsgLev(glpk.MsgLev(glpk.MSG_ERR))
	if err := lp.Intopt(iocp); err != nil {
		if o.Presolve && lp.MipStatus() == glpk.NOFEAS {
			return &milp.Result{Status: milp.Infeasible, Message: err.Error()}, nil
		}
		return nil, fmt.Errorf("glpk intopt: %w", err)
	}

	switch lp.MipStatus() {
	case glpk.OPT:
	case glpk.NOFEAS:
		return &milp.Result{Status: milp.Infeasible, Message: "no integer feasible point"}, nil
	case glpk.FEAS:
		return &milp.Result{Status: milp.Limit, Message: "stopped with a feasible but unproven point"}, nil
	default:
		return &milp.Result{Status: milp.Error, Message: fmt.Sprintf("mip status %v", lp.MipStatus())}, nil
	}
	values := make([]float64, n)
	for j := range values {
		values[j] = lp.MipColVal(j + 1)
	}
	return &milp.Result{Status: milp.Optimal, Objective: lp.MipObjVal(), Values: values}, nil
}
