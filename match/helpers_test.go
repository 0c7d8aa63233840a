package match

import (
	"fmt"
	"math"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/require"
)

// bruteForce enumerates every group-to-project mapping of in and returns the
// cheapest feasible cost.
func bruteForce(in *Instance) (float64, bool) {
	nG, nP := len(in.Groups), len(in.Projects)
	choice := make([]int, nG)
	best := math.Inf(1)
	var rec func(g int)
	rec = func(g int) {
		if g == nG {
			count := make([]int, nP)
			skill := make([]map[string]float64, nP)
			for p := range skill {
				skill[p] = map[string]float64{}
			}
			var cost float64
			for gi, p := range choice {
				grp := in.Groups[gi]
				count[p] += grp.Size
				for k, v := range grp.Skills {
					skill[p][k] += v
				}
				for _, s := range grp.Members {
					cost += in.Costs[s][p]
				}
			}
			for p, proj := range in.Projects {
				if count[p] < proj.Min || count[p] > proj.Max {
					return
				}
				for k, req := range proj.Skills {
					if skill[p][k] < req-1e-9 {
						return
					}
				}
			}
			best = math.Min(best, cost)
			return
		}
		for p := range nP {
			if f := in.Groups[g].Forced; f >= 0 && f != p {
				continue
			}
			choice[g] = p
			rec(g + 1)
		}
	}
	rec(0)
	return best, !math.IsInf(best, 1)
}

func randomInstance(rng *rand.Rand) ([]Student, []Project) {
	np := 2 + rng.Intn(2)
	projects := make([]Project, np)
	for p := range projects {
		lo := rng.Intn(2)
		projects[p] = Project{
			Name: fmt.Sprintf("P%d", p),
			Min:  lo,
			Max:  lo + 1 + rng.Intn(3),
		}
		if rng.Intn(3) == 0 {
			projects[p].Skills = map[string]float64{"code": 1}
		}
	}
	ns := 3 + rng.Intn(4)
	students := make([]Student, ns)
	for s := range students {
		st := Student{
			Name:   fmt.Sprintf("S%d", s),
			Ranks:  map[string]int{},
			Skills: map[string]float64{"code": float64(rng.Intn(2))},
		}
		for rank, p := range rng.Perm(np) {
			if rng.Intn(5) > 0 {
				st.Ranks[projects[p].Name] = rank + 1
			}
		}
		if s > 0 && rng.Intn(5) == 0 {
			st.Teammates = []string{fmt.Sprintf("S%d", rng.Intn(s))}
		}
		students[s] = st
	}
	return students, projects
}

// requireValid checks every hard property of a returned assignment.
func requireValid(t *testing.T, students []Student, projects []Project, force []Force, res *Result) {
	t.Helper()
	require.Len(t, res.Assignments, len(students))
	assigned := map[string]string{}
	for i, a := range res.Assignments {
		require.Equal(t, students[i].Name, a.Student)
		assigned[a.Student] = a.Project
	}

	count := map[string]int{}
	skill := map[string]map[string]float64{}
	for _, s := range students {
		p := assigned[s.Name]
		count[p]++
		if skill[p] == nil {
			skill[p] = map[string]float64{}
		}
		for k, v := range s.Skills {
			skill[p][k] += v
		}
		for _, mate := range s.Teammates {
			require.Equal(t, p, assigned[mate], "teammates %s and %s split", s.Name, mate)
		}
	}
	known := map[string]bool{}
	for _, p := range projects {
		known[p.Name] = true
		require.GreaterOrEqual(t, count[p.Name], p.Min, "project %s below min", p.Name)
		require.LessOrEqual(t, count[p.Name], p.Max, "project %s above max", p.Name)
		for k, req := range p.Skills {
			require.GreaterOrEqual(t, skill[p.Name][k], req-1e-9, "project %s lacks %s", p.Name, k)
		}
	}
	for _, p := range assigned {
		require.True(t, known[p], "unknown project %s", p)
	}
	for _, f := range force {
		require.Equal(t, f.Project, assigned[f.Student])
	}
}
