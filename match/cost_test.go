package match

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExponential_Cost(t *testing.T) {
	e := Exponential{Base: 2}
	assert.Equal(t, 1.0, e.Cost(1))
	assert.Equal(t, 2.0, e.Cost(2))
	assert.Equal(t, 4.0, e.Cost(3))

	for r := 1; r < 10; r++ {
		step := e.Cost(r+1) - e.Cost(r)
		next := e.Cost(r+2) - e.Cost(r+1)
		assert.Greater(t, step, 0.0, "rank %d", r)
		assert.Greater(t, next, step, "rank %d", r)
	}
}

func TestExponential_AbsentRank(t *testing.T) {
	e := DefaultCosts
	assert.Equal(t, 4, e.AbsentRank(3, 2))
	assert.Equal(t, 8, e.AbsentRank(3, 7))
	assert.Equal(t, 1, e.AbsentRank(0, 0))
}

func TestExponential_Validate(t *testing.T) {
	require.NoError(t, Exponential{Base: 1.5}.Validate())
	for _, base := range []float64{0, 1, -2, math.NaN(), math.Inf(1)} {
		err := Exponential{Base: base}.Validate()
		var mc *ModelConstructionError
		require.ErrorAs(t, err, &mc, "base %g", base)
		assert.Equal(t, "cost model", mc.Subject)
	}
}

func TestCostTable_FillsAbsentRanks(t *testing.T) {
	students := []Student{
		{Name: "a", Ranks: map[string]int{"P": 1}},
		{Name: "b", Ranks: map[string]int{"Q": 2}},
	}
	projects := []Project{{Name: "P", Max: 2}, {Name: "Q", Max: 2}, {Name: "R", Max: 2}}

	costs, absent, err := costTable(students, projects, DefaultCosts)
	require.NoError(t, err)
	assert.Equal(t, 4, absent)
	assert.Equal(t, [][]float64{{1, 8, 8}, {8, 2, 8}}, costs)
}

func TestPrepare_RejectsCostsBeyondExactRange(t *testing.T) {
	projects := []Project{{Name: "P", Max: 1}, {Name: "Q", Max: 1}}

	_, err := Prepare([]Student{
		{Name: "a", Ranks: map[string]int{"P": 1, "Q": 1100}},
		{Name: "b", Ranks: map[string]int{"P": 1}},
	}, projects, nil, nil)
	var mc *ModelConstructionError
	require.ErrorAs(t, err, &mc)
	assert.Equal(t, `student "a"`, mc.Subject)
	assert.Contains(t, mc.Reason, `rank 1100 for "Q"`)

	_, err = Prepare([]Student{{Name: "a", Ranks: map[string]int{"P": 1}}}, projects, nil, Exponential{Base: 1e10})
	require.ErrorAs(t, err, &mc)
	assert.Equal(t, "cost model", mc.Subject)
	assert.Contains(t, mc.Reason, "unranked rank 3")

	in, err := Prepare([]Student{
		{Name: "a", Ranks: map[string]int{"P": 1, "Q": 53}},
		{Name: "b", Ranks: map[string]int{"P": 1}},
	}, projects, nil, nil)
	require.NoError(t, err, "2^53 is still exact")
	assert.Equal(t, float64(1<<52), in.Costs[0][1])
	assert.Equal(t, float64(1<<53), in.Costs[1][1])
}
