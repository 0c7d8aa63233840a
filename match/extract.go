package match

import "fmt"

// Extract expands a group-level solution into one assignment per student, in
// input order.
func Extract(in *Instance, sol *Solution) ([]Assignment, error) {
	if len(sol.Project) != len(in.Groups) {
		return nil, &SolverFailureError{Message: fmt.Sprintf("solution covers %d groups, instance has %d", len(sol.Project), len(in.Groups))}
	}
	out := make([]Assignment, len(in.Students))
	for si, s := range in.Students {
		p := sol.Project[in.GroupOf[si]]
		out[si] = Assignment{
			Student: s.Name,
			Project: in.Projects[p].Name,
			Rank:    s.Ranks[in.Projects[p].Name],
			Cost:    in.Costs[si][p],
		}
	}
	return out, nil
}
