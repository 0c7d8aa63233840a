package match

import (
	"context"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHeuristic_FeasibleAndNeverBelowOptimum(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	for trial := range 60 {
		students, projects := randomInstance(rng)
		var force []Force
		if rng.Intn(3) == 0 {
			force = []Force{{Student: students[0].Name, Project: projects[rng.Intn(len(projects))].Name}}
		}
		in, err := Prepare(students, projects, force, nil)
		require.NoError(t, err, "trial %d", trial)
		best, feasible := bruteForce(in)

		proj, cost := Heuristic(in, DefaultHeuristic, rng)
		if !feasible {
			assert.Nil(t, proj, "trial %d", trial)
			continue
		}
		if proj == nil {
			continue
		}
		am := Build(in)
		start := startValues(am, proj)
		require.NoError(t, am.Model.Check(start, checkTol), "trial %d", trial)
		assert.InDelta(t, cost, am.Model.Objective(start), 1e-9, "trial %d", trial)
		assert.GreaterOrEqual(t, cost, best-1e-9, "trial %d", trial)
	}
}

func TestHeuristic_FindsObviousOptimum(t *testing.T) {
	students := []Student{
		{Name: "a", Ranks: map[string]int{"P": 1, "Q": 2}},
		{Name: "b", Ranks: map[string]int{"Q": 1, "P": 2}},
		{Name: "c", Ranks: map[string]int{"P": 1, "Q": 2}},
	}
	projects := []Project{{Name: "P", Min: 1, Max: 2}, {Name: "Q", Min: 1, Max: 2}}
	in, err := Prepare(students, projects, nil, nil)
	require.NoError(t, err)

	proj, cost := Heuristic(in, DefaultHeuristic, rand.New(rand.NewSource(1)))
	require.NotNil(t, proj)
	assert.Equal(t, 3.0, cost)
	assert.Equal(t, []int{0, 1, 0}, proj)
}

func TestHeuristic_ForcedGroupsStay(t *testing.T) {
	students := []Student{
		{Name: "a", Ranks: map[string]int{"P": 1}},
		{Name: "b", Ranks: map[string]int{"P": 1}},
	}
	projects := []Project{{Name: "P", Max: 2}, {Name: "Q", Max: 2}}
	in, err := Prepare(students, projects, []Force{{Student: "a", Project: "Q"}}, nil)
	require.NoError(t, err)

	proj, cost := Heuristic(in, DefaultHeuristic, rand.New(rand.NewSource(1)))
	require.NotNil(t, proj)
	assert.Equal(t, []int{1, 0}, proj)
	// a pays the absent-rank cost of Q: 2^(3-1).
	assert.Equal(t, 5.0, cost)
}

func TestHeuristic_NothingToPlace(t *testing.T) {
	in, err := Prepare(nil, []Project{{Name: "P", Max: 1}}, nil, nil)
	require.NoError(t, err)
	proj, _ := Heuristic(in, DefaultHeuristic, rand.New(rand.NewSource(1)))
	assert.Nil(t, proj)
}

func TestMatch_WarmStartKeepsOptimum(t *testing.T) {
	rng := rand.New(rand.NewSource(31))
	ctx := context.Background()
	for trial := range 25 {
		students, projects := randomInstance(rng)
		cold, errCold := Match(ctx, students, projects, Options{})
		warm, errWarm := Match(ctx, students, projects, Options{WarmStart: true})
		if errCold != nil {
			var inf *InfeasibleError
			require.ErrorAs(t, errWarm, &inf, "trial %d", trial)
			continue
		}
		require.NoError(t, errWarm, "trial %d", trial)
		requireValid(t, students, projects, nil, warm)
		assert.InDelta(t, cold.Objective, warm.Objective, 1e-6, "trial %d", trial)
	}
}
