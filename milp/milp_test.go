package milp

import (
	"context"
	"fmt"
	"math"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func knapsack() *Model {
	m := NewModel("knapsack")
	weights := []float64{5, 4, 6, 3}
	values := []float64{10, 40, 30, 50}
	var terms []Term
	for i := range weights {
		v := m.AddBinary(fmt.Sprintf("item%d", i), values[i])
		terms = append(terms, Term{Var: v, Coef: weights[i]})
	}
	m.AddConstraint("weight", "capacity", terms, LessEq, 10)
	m.Maximize = true
	return m
}

// randomAssignment builds a small generalized assignment model: every item
// goes to exactly one bin, bins have size windows.
func randomAssignment(rng *rand.Rand, items, bins int) *Model {
	m := NewModel("random")
	x := make([][]int, items)
	for i := range items {
		x[i] = make([]int, bins)
		var row []Term
		for j := range bins {
			x[i][j] = m.AddBinary(fmt.Sprintf("x[%d,%d]", i, j), float64(1+rng.Intn(20)))
			row = append(row, Term{Var: x[i][j], Coef: 1})
		}
		m.AddConstraint(fmt.Sprintf("assign[%d]", i), "assignment", row, Equal, 1)
	}
	for j := range bins {
		var col []Term
		for i := range items {
			col = append(col, Term{Var: x[i][j], Coef: float64(1 + rng.Intn(3))})
		}
		m.AddConstraint(fmt.Sprintf("max[%d]", j), "capacity:max", col, LessEq, float64(2+rng.Intn(5)))
		if rng.Intn(2) == 0 {
			m.AddConstraint(fmt.Sprintf("min[%d]", j), "capacity:min", col, GreaterEq, float64(1+rng.Intn(2)))
		}
	}
	return m
}

func TestBranchAndBound_Knapsack(t *testing.T) {
	res, err := NewBranchAndBound(DefaultParams).Solve(context.Background(), knapsack())
	require.NoError(t, err)
	require.Equal(t, Optimal, res.Status)
	assert.InDelta(t, 90, res.Objective, 1e-6)
	assert.Equal(t, []float64{0, 1, 0, 1}, res.Values)
}

func TestBranchAndBound_GeneralInteger(t *testing.T) {
	m := NewModel("int")
	x := m.AddVar("x", Integer, 0, 10, 1)
	y := m.AddVar("y", Integer, 0, 10, 1)
	m.AddConstraint("cover", "cover", []Term{{x, 2}, {y, 2}}, GreaterEq, 3)

	res, err := NewBranchAndBound(DefaultParams).Solve(context.Background(), m)
	require.NoError(t, err)
	require.Equal(t, Optimal, res.Status)
	assert.InDelta(t, 2, res.Objective, 1e-6)
	require.NoError(t, m.Check(res.Values, 1e-6))
}

func TestBranchAndBound_MatchesExhaustive(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	bnb := NewBranchAndBound(DefaultParams)
	ex := &Exhaustive{}
	for trial := range 25 {
		m := randomAssignment(rng, 2+rng.Intn(3), 2+rng.Intn(2))
		want, err := ex.Solve(context.Background(), m)
		require.NoError(t, err)
		got, err := bnb.Solve(context.Background(), m)
		require.NoError(t, err, "trial %d", trial)
		require.Equal(t, want.Status, got.Status, "trial %d", trial)
		if want.Status == Optimal {
			assert.InDelta(t, want.Objective, got.Objective, 1e-6, "trial %d", trial)
			assert.NoError(t, m.Check(got.Values, 1e-6), "trial %d", trial)
		}
	}
}

func TestBranchAndBound_Infeasible(t *testing.T) {
	m := NewModel("infeasible")
	a := m.AddBinary("a", 1)
	b := m.AddBinary("b", 1)
	m.AddConstraint("one", "assignment", []Term{{a, 1}, {b, 1}}, Equal, 1)
	m.AddConstraint("both", "capacity:min", []Term{{a, 1}, {b, 1}}, GreaterEq, 2)

	res, err := NewBranchAndBound(DefaultParams).Solve(context.Background(), m)
	require.NoError(t, err)
	assert.Equal(t, Infeasible, res.Status)
	assert.Nil(t, res.Values)
}

func TestBranchAndBound_EmptyConstraint(t *testing.T) {
	m := NewModel("empty")
	m.AddBinary("a", 1)
	m.AddConstraint("skill", "skill:python", nil, GreaterEq, 1)

	res, err := NewBranchAndBound(DefaultParams).Solve(context.Background(), m)
	require.NoError(t, err)
	assert.Equal(t, Infeasible, res.Status)
}

func TestBranchAndBound_Unbounded(t *testing.T) {
	m := NewModel("unbounded")
	m.AddVar("x", Continuous, 0, math.Inf(1), -1)

	res, err := NewBranchAndBound(DefaultParams).Solve(context.Background(), m)
	require.NoError(t, err)
	assert.Equal(t, Unbounded, res.Status)
}

func TestBranchAndBound_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	res, err := NewBranchAndBound(DefaultParams).Solve(ctx, knapsack())
	require.NoError(t, err)
	assert.Equal(t, Limit, res.Status)
	assert.Contains(t, res.Message, "context canceled")
}

func TestBranchAndBound_StartIsIncumbent(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	m := knapsack()
	m.Start = []float64{0, 0, 0, 1}
	res, err := NewBranchAndBound(DefaultParams).Solve(ctx, m)
	require.NoError(t, err)
	assert.Equal(t, Limit, res.Status)
	assert.Equal(t, m.Start, res.Values)
	assert.InDelta(t, 50, res.Objective, 1e-9)

	m.Start = []float64{1, 1, 1, 1}
	res, err = NewBranchAndBound(DefaultParams).Solve(ctx, m)
	require.NoError(t, err)
	assert.Nil(t, res.Values, "an infeasible start is ignored")

	m.Start = []float64{0, 0, 0, 1}
	res, err = NewBranchAndBound(DefaultParams).Solve(context.Background(), m)
	require.NoError(t, err)
	require.Equal(t, Optimal, res.Status)
	assert.InDelta(t, 90, res.Objective, 1e-6)
}

func TestBranchAndBound_NodeLimit(t *testing.T) {
	p := DefaultParams
	p.NodeLimit = 1
	m := NewModel("int")
	x := m.AddVar("x", Integer, 0, 10, 1)
	m.AddConstraint("half", "cover", []Term{{x, 2}}, GreaterEq, 3)

	res, err := NewBranchAndBound(p).Solve(context.Background(), m)
	require.NoError(t, err)
	assert.Equal(t, Limit, res.Status)
	assert.Equal(t, 1, res.Nodes)
}

func TestBranchAndBound_RejectsBadModel(t *testing.T) {
	m := NewModel("bad")
	m.AddVar("x", Continuous, math.Inf(-1), 1, 1)
	_, err := NewBranchAndBound(DefaultParams).Solve(context.Background(), m)
	require.Error(t, err)
}

func TestExhaustive_RejectsLargeOrNonBinary(t *testing.T) {
	m := NewModel("wide")
	for i := range 5 {
		m.AddBinary(fmt.Sprint(i), 1)
	}
	_, err := (&Exhaustive{MaxVars: 4}).Solve(context.Background(), m)
	require.Error(t, err)

	m = NewModel("int")
	m.AddVar("x", Integer, 0, 3, 1)
	_, err = (&Exhaustive{}).Solve(context.Background(), m)
	require.Error(t, err)
}

func TestModel_CheckAndCopies(t *testing.T) {
	m := knapsack()
	require.NoError(t, m.Check([]float64{0, 1, 0, 1}, 1e-9))
	require.ErrorContains(t, m.Check([]float64{1, 1, 0, 1}, 1e-9), "weight")
	require.ErrorContains(t, m.Check([]float64{0, 0.5, 0, 1}, 1e-9), "not integral")

	relaxed := m.Without(func(c Constraint) bool { return c.Family == "capacity" })
	assert.Empty(t, relaxed.Constraints)
	assert.Len(t, m.Constraints, 1)

	free := m.FeasibilityOnly()
	assert.Zero(t, free.Objective([]float64{1, 1, 1, 1}))
	assert.InDelta(t, 130, m.Objective([]float64{1, 1, 1, 1}), 1e-9)
	assert.Equal(t, []string{"capacity"}, m.Families())
}

func TestModel_AddConstraintDropsZeroCoefficients(t *testing.T) {
	m := NewModel("zeros")
	a := m.AddBinary("a", 0)
	b := m.AddBinary("b", 0)
	m.AddConstraint("c", "f", []Term{{a, 0}, {b, 2}}, LessEq, 1)
	assert.Equal(t, []Term{{b, 2}}, m.Constraints[0].Terms)
}

func TestRegistry(t *testing.T) {
	assert.Contains(t, Names(), "bnb")
	assert.Contains(t, Names(), "exhaustive")

	opt, err := New("bnb", DefaultParams)
	require.NoError(t, err)
	assert.IsType(t, &BranchAndBound{}, opt)

	_, err = New("nope", DefaultParams)
	require.ErrorContains(t, err, "unknown optimizer")

	assert.Panics(t, func() { Register("bnb", nil) })
}
