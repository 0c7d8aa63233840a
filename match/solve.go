package match

import (
	"context"
	"fmt"

	"assigner/milp"
)

// Solution maps every group to a project index.
type Solution struct {
	Project   []int
	Objective float64
	Nodes     int
}

const checkTol = 1e-6

// Solve runs opt once against am and normalizes the outcome. A proven
// infeasible model becomes an *InfeasibleError; anything else that is not an
// optimal, verifiable assignment becomes a *SolverFailureError.
func Solve(ctx context.Context, am *AssignmentModel, opt milp.Optimizer) (*Solution, error) {
	res, err := opt.Solve(ctx, am.Model)
	if err != nil {
		return nil, &SolverFailureError{Status: milp.Error, Err: err}
	}
	switch res.Status {
	case milp.Optimal:
	case milp.Infeasible:
		return nil, &InfeasibleError{Message: res.Message}
	case milp.Limit:
		// Optimizers report cancellation as a limit.
		return nil, &SolverFailureError{Status: res.Status, Message: res.Message, Err: ctx.Err()}
	default:
		return nil, &SolverFailureError{Status: res.Status, Message: res.Message}
	}

	if err := am.Model.Check(res.Values, checkTol); err != nil {
		return nil, &SolverFailureError{Status: res.Status, Message: "optimizer returned an invalid point", Err: err}
	}
	sol := &Solution{
		Project:   make([]int, len(am.ByGroup)),
		Objective: res.Objective,
		Nodes:     res.Nodes,
	}
	for g, vars := range am.ByGroup {
		sol.Project[g] = -1
		for _, v := range vars {
			if res.Values[v] <= 0.5 {
				continue
			}
			if sol.Project[g] >= 0 {
				return nil, &SolverFailureError{Status: res.Status, Message: fmt.Sprintf("group %d assigned to more than one project", g)}
			}
			sol.Project[g] = am.Vars[v].Project
		}
		if sol.Project[g] < 0 {
			return nil, &SolverFailureError{Status: res.Status, Message: fmt.Sprintf("group %d assigned to no project", g)}
		}
	}
	return sol, nil
}
