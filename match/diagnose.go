package match

import (
	"context"
	"fmt"
	"maps"
	"slices"

	"go.uber.org/zap"

	"assigner/milp"
)

// FamilyForce names the forced assignments in diagnostics. Forcing is encoded
// through variable eligibility rather than constraints.
const FamilyForce = "force"

// precheck finds obvious causes of infeasibility without solving anything.
func precheck(in *Instance) (suspects, details []string) {
	add := func(family, detail string) {
		if !slices.Contains(suspects, family) {
			suspects = append(suspects, family)
		}
		details = append(details, detail)
	}

	n := len(in.Students)
	sumMin, sumMax, bigMax := 0, 0, 0
	for _, p := range in.Projects {
		sumMin += p.Min
		sumMax += p.Max
		bigMax = max(bigMax, p.Max)
	}
	if sumMax < n {
		add(FamilyCapacityMax, fmt.Sprintf("total max capacity %d is below the %d students", sumMax, n))
	}
	if sumMin > n {
		add(FamilyCapacityMin, fmt.Sprintf("total min capacity %d exceeds the %d students", sumMin, n))
	}
	for g, grp := range in.Groups {
		if grp.Forced >= 0 {
			if p := in.Projects[grp.Forced]; grp.Size > p.Max {
				add(FamilyCapacityMax, fmt.Sprintf("group %v of size %d is forced to %q with max %d", in.memberNames(g), grp.Size, p.Name, p.Max))
			}
			continue
		}
		if grp.Size > bigMax {
			add(FamilyCapacityMax, fmt.Sprintf("group %v of size %d exceeds the max of every project", in.memberNames(g), grp.Size))
		}
	}

	demand := map[string]float64{}
	for _, p := range in.Projects {
		for k, v := range p.Skills {
			demand[k] += v
		}
	}
	for _, k := range slices.Sorted(maps.Keys(demand)) {
		var supply float64
		for _, s := range in.Students {
			supply += s.Skills[k]
		}
		if demand[k] > supply+checkTol {
			add(skillFamily(k), fmt.Sprintf("projects require %g of skill %q in total but students supply %g", demand[k], k, supply))
		}
	}
	return suspects, details
}

// probe relaxes one constraint family at a time and reports those whose
// removal makes the model feasible.
func probe(ctx context.Context, in *Instance, am *AssignmentModel, opt milp.Optimizer, log *zap.Logger) []string {
	var suspects []string
	feasible := func(m *milp.Model) bool {
		res, err := opt.Solve(ctx, m.FeasibilityOnly())
		return err == nil && res.Status == milp.Optimal
	}
	for _, fam := range am.Model.Families() {
		if fam == FamilyAssignment {
			continue
		}
		relaxed := am.Model.Without(func(c milp.Constraint) bool { return c.Family == fam })
		if feasible(relaxed) {
			log.Debug("relaxing constraint family restores feasibility", zap.String("family", fam))
			suspects = append(suspects, fam)
		}
	}
	forced := slices.ContainsFunc(in.Groups, func(g Group) bool { return g.Forced >= 0 })
	if forced && feasible(build(in, false).Model) {
		suspects = append(suspects, FamilyForce)
	}
	return suspects
}

func diagnose(ctx context.Context, in *Instance, am *AssignmentModel, opt milp.Optimizer, deep bool, log *zap.Logger, e *InfeasibleError) {
	suspects, details := precheck(in)
	if deep {
		for _, s := range probe(ctx, in, am, opt, log) {
			if !slices.Contains(suspects, s) {
				suspects = append(suspects, s)
			}
		}
	}
	e.Suspects = suspects
	e.Details = details
}
