//go:build glpk

package glpk

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"assigner/milp"
)

func TestSolve(t *testing.T) {
	m := milp.NewModel("knapsack")
	m.Maximize = true
	weights := []float64{5, 4, 6, 3}
	values := []float64{10, 40, 30, 50}
	terms := make([]milp.Term, len(weights))
	for i := range weights {
		terms[i] = milp.Term{Var: m.AddBinary("x", values[i]), Coef: weights[i]}
	}
	m.AddConstraint("weight", "capacity", terms, milp.LessEq, 10)

	opt, err := milp.New("glpk", milp.DefaultParams)
	require.NoError(t, err)
	res, err := opt.Solve(context.Background(), m)
	require.NoError(t, err)
	require.Equal(t, milp.Optimal, res.Status)
	assert.InDelta(t, 90, res.Objective, 1e-6)
	assert.Equal(t, []float64{0, 1, 0, 1}, res.Values)

	bad := milp.NewModel("infeasible")
	x := bad.AddBinary("x", 1)
	bad.AddConstraint("too much", "c", []milp.Term{{Var: x, Coef: 1}}, milp.GreaterEq, 2)
	res, err = opt.Solve(context.Background(), bad)
	require.NoError(t, err)
	assert.Equal(t, milp.Infeasible, res.Status)
}
