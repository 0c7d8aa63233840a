package match

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"assigner/milp"
)

func constraintsOf(m *milp.Model, family string) []milp.Constraint {
	var out []milp.Constraint
	for _, c := range m.Constraints {
		if c.Family == family {
			out = append(out, c)
		}
	}
	return out
}

func TestBuild_VariablesAndRows(t *testing.T) {
	students := []Student{
		{Name: "a", Ranks: map[string]int{"P": 1}, Skills: map[string]float64{"code": 1}},
		{Name: "b", Teammates: []string{"a"}, Skills: map[string]float64{"code": 2}},
		{Name: "c", Ranks: map[string]int{"Q": 1}},
	}
	projects := []Project{
		{Name: "P", Min: 0, Max: 3, Skills: map[string]float64{"code": 2, "cad": 0}},
		{Name: "Q", Min: 1, Max: 2},
	}
	in, err := Prepare(students, projects, nil, nil)
	require.NoError(t, err)
	am := Build(in)

	require.Len(t, am.Model.Vars, 4)
	for _, v := range am.Model.Vars {
		assert.Equal(t, milp.Binary, v.Kind)
	}
	// group {a,b} on P costs 1 for a plus the absent cost 4 for b.
	assert.Equal(t, 5.0, am.Model.Vars[am.ByGroup[0][0]].Cost)
	assert.Equal(t, varRef{Group: 1, Project: 1}, am.Vars[am.ByGroup[1][1]])

	assert.Len(t, constraintsOf(am.Model, FamilyAssignment), 2)
	mins := constraintsOf(am.Model, FamilyCapacityMin)
	require.Len(t, mins, 1)
	assert.Equal(t, "min[Q]", mins[0].Name)
	assert.Len(t, constraintsOf(am.Model, FamilyCapacityMax), 2)

	skills := constraintsOf(am.Model, "skill:code")
	require.Len(t, skills, 1)
	assert.Equal(t, milp.GreaterEq, skills[0].Sense)
	assert.Equal(t, 2.0, skills[0].RHS)
	assert.Equal(t, []milp.Term{{Var: am.ByGroup[0][0], Coef: 3}}, skills[0].Terms)
	assert.Empty(t, constraintsOf(am.Model, "skill:cad"))

	maxP := constraintsOf(am.Model, FamilyCapacityMax)[0]
	assert.Equal(t, []milp.Term{{Var: am.ByGroup[0][0], Coef: 2}, {Var: am.ByGroup[1][0], Coef: 1}}, maxP.Terms)
}

func TestBuild_ForcedGroupHasOneVariable(t *testing.T) {
	students := []Student{{Name: "a"}, {Name: "b"}}
	projects := []Project{{Name: "P", Max: 2}, {Name: "Q", Max: 2}, {Name: "R", Max: 2}}
	in, err := Prepare(students, projects, []Force{{Student: "b", Project: "R"}}, nil)
	require.NoError(t, err)

	am := Build(in)
	assert.Len(t, am.ByGroup[0], 3)
	require.Len(t, am.ByGroup[1], 1)
	assert.Equal(t, 2, am.Vars[am.ByGroup[1][0]].Project)

	unforced := build(in, false)
	assert.Len(t, unforced.ByGroup[1], 3)
}

func TestPrepare_Rejects(t *testing.T) {
	ok := []Project{{Name: "P", Max: 2}}
	tests := []struct {
		name     string
		students []Student
		projects []Project
		force    []Force
		costs    CostModel
		check    func(t *testing.T, err error)
	}{
		{
			name:     "unknown preference",
			students: []Student{{Name: "a", Ranks: map[string]int{"Nope": 1}}},
			projects: ok,
			check: func(t *testing.T, err error) {
				var ref *InvalidReferenceError
				require.ErrorAs(t, err, &ref)
				assert.Equal(t, "preference", ref.Kind)
			},
		},
		{
			name:     "unknown forced student",
			students: []Student{{Name: "a"}},
			projects: ok,
			force:    []Force{{Student: "zed", Project: "P"}},
			check: func(t *testing.T, err error) {
				var ref *InvalidReferenceError
				require.ErrorAs(t, err, &ref)
				assert.Equal(t, "force", ref.Kind)
				assert.Equal(t, "zed", ref.Name)
			},
		},
		{
			name:     "unknown forced project",
			students: []Student{{Name: "a"}},
			projects: ok,
			force:    []Force{{Student: "a", Project: "Zed"}},
			check: func(t *testing.T, err error) {
				var ref *InvalidReferenceError
				require.ErrorAs(t, err, &ref)
				assert.Equal(t, "Zed", ref.Name)
			},
		},
		{
			name:     "teammates forced apart",
			students: []Student{{Name: "a", Teammates: []string{"b"}}, {Name: "b"}},
			projects: []Project{{Name: "P", Max: 2}, {Name: "Q", Max: 2}},
			force:    []Force{{Student: "a", Project: "P"}, {Student: "b", Project: "Q"}},
			check: func(t *testing.T, err error) {
				var cf *ConflictingForceError
				require.ErrorAs(t, err, &cf)
				assert.Equal(t, []string{"a", "b"}, cf.Group)
				assert.EqualError(t, err, "conflicting forced assignments for teammate group [a, b]: a=P, b=Q")
			},
		},
		{
			name:     "min above max",
			students: []Student{{Name: "a"}},
			projects: []Project{{Name: "P", Min: 3, Max: 2}},
			check:    requireConstruction(`project "P"`),
		},
		{
			name:     "missing bounds",
			students: []Student{{Name: "a"}},
			projects: []Project{{Name: "P", MissingBounds: true}},
			check:    requireConstruction(`project "P"`),
		},
		{
			name:     "duplicate project",
			students: []Student{{Name: "a"}},
			projects: []Project{{Name: "P", Max: 1}, {Name: "P", Max: 1}},
			check:    requireConstruction(`project "P"`),
		},
		{
			name:     "duplicate student",
			students: []Student{{Name: "a"}, {Name: "a"}},
			projects: ok,
			check:    requireConstruction(`student "a"`),
		},
		{
			name:     "zero rank",
			students: []Student{{Name: "a", Ranks: map[string]int{"P": 0}}},
			projects: ok,
			check:    requireConstruction(`student "a"`),
		},
		{
			name:     "negative skill",
			students: []Student{{Name: "a", Skills: map[string]float64{"cad": -1}}},
			projects: ok,
			check:    requireConstruction(`student "a"`),
		},
		{
			name:     "no projects",
			students: []Student{{Name: "a"}},
			check:    requireConstruction(""),
		},
		{
			name:     "bad cost base",
			students: []Student{{Name: "a"}},
			projects: ok,
			costs:    Exponential{Base: 1},
			check:    requireConstruction("cost model"),
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in, err := Prepare(tt.students, tt.projects, tt.force, tt.costs)
			assert.Nil(t, in)
			tt.check(t, err)
		})
	}
}

func requireConstruction(subject string) func(t *testing.T, err error) {
	return func(t *testing.T, err error) {
		var mc *ModelConstructionError
		require.ErrorAs(t, err, &mc)
		assert.Equal(t, subject, mc.Subject)
	}
}

func TestPrepare_AgreeingForcesOnGroup(t *testing.T) {
	in, err := Prepare(
		[]Student{{Name: "a", Teammates: []string{"b"}}, {Name: "b"}},
		[]Project{{Name: "P", Max: 2}, {Name: "Q", Max: 2}},
		[]Force{{Student: "a", Project: "Q"}, {Student: "b", Project: "Q"}},
		nil)
	require.NoError(t, err)
	require.Len(t, in.Groups, 1)
	assert.Equal(t, 1, in.Groups[0].Forced)
}
