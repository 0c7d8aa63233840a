package match

import (
	"fmt"
	"maps"
	"slices"

	"assigner/milp"
)

const (
	FamilyAssignment  = "assignment"
	FamilyCapacityMin = "capacity:min"
	FamilyCapacityMax = "capacity:max"
	skillPrefix       = "skill:"
)

func skillFamily(skill string) string {
	return skillPrefix + skill
}

type varRef struct {
	Group   int
	Project int
}

// AssignmentModel is the MILP for one instance together with the mapping
// from model variables back to (group, project) pairs.
type AssignmentModel struct {
	Model   *milp.Model
	Vars    []varRef
	ByGroup [][]int
}

// Build creates one binary variable per group and eligible project. A forced
// group is only eligible for its target project.
func Build(in *Instance) *AssignmentModel {
	return build(in, true)
}

func build(in *Instance, honorForce bool) *AssignmentModel {
	m := milp.NewModel("assignment")
	am := &AssignmentModel{Model: m, ByGroup: make([][]int, len(in.Groups))}
	byProject := make([][]int, len(in.Projects))

	for g, grp := range in.Groups {
		for p, proj := range in.Projects {
			if honorForce && grp.Forced >= 0 && grp.Forced != p {
				continue
			}
			var cost float64
			for _, s := range grp.Members {
				cost += in.Costs[s][p]
			}
			v := m.AddBinary(fmt.Sprintf("x[%d,%s]", g, proj.Name), cost)
			am.Vars = append(am.Vars, varRef{Group: g, Project: p})
			am.ByGroup[g] = append(am.ByGroup[g], v)
			byProject[p] = append(byProject[p], v)
		}
	}

	for g, vars := range am.ByGroup {
		terms := make([]milp.Term, len(vars))
		for i, v := range vars {
			terms[i] = milp.Term{Var: v, Coef: 1}
		}
		m.AddConstraint(fmt.Sprintf("assign[%d]", g), FamilyAssignment, terms, milp.Equal, 1)
	}

	for p, proj := range in.Projects {
		size := make([]milp.Term, len(byProject[p]))
		for i, v := range byProject[p] {
			size[i] = milp.Term{Var: v, Coef: float64(in.Groups[am.Vars[v].Group].Size)}
		}
		if proj.Min > 0 {
			m.AddConstraint(fmt.Sprintf("min[%s]", proj.Name), FamilyCapacityMin, size, milp.GreaterEq, float64(proj.Min))
		}
		m.AddConstraint(fmt.Sprintf("max[%s]", proj.Name), FamilyCapacityMax, size, milp.LessEq, float64(proj.Max))

		for _, skill := range slices.Sorted(maps.Keys(proj.Skills)) {
			req := proj.Skills[skill]
			if req <= 0 {
				continue
			}
			terms := make([]milp.Term, len(byProject[p]))
			for i, v := range byProject[p] {
				terms[i] = milp.Term{Var: v, Coef: in.Groups[am.Vars[v].Group].Skills[skill]}
			}
			m.AddConstraint(fmt.Sprintf("skill[%s,%s]", proj.Name, skill), skillFamily(skill), terms, milp.GreaterEq, req)
		}
	}
	return am
}
