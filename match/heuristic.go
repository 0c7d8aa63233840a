package match

import (
	"maps"
	"math"
	"math/rand"
	"slices"
)

// HeuristicParams tunes the local search used to seed the optimizer with a
// feasible assignment.
type HeuristicParams struct {
	NumRandom  int
	NumPerturb int
	PerturbMin int
	PerturbMax int
}

var DefaultHeuristic = HeuristicParams{
	NumRandom:  20,
	NumPerturb: 200,
	PerturbMin: 2,
	PerturbMax: 5,
}

type searchState struct {
	in      *Instance
	cost    [][]float64 // cost[g][p] for the whole group
	skills  []string
	need    [][]float64 // need[p][k]
	supply  [][]float64 // supply[g][k]
	penalty float64

	proj  []int
	count []int
	have  [][]float64
}

func newSearchState(in *Instance) *searchState {
	s := &searchState{in: in}
	np := len(in.Projects)

	kinds := map[string]bool{}
	for _, p := range in.Projects {
		for k, v := range p.Skills {
			if v > 0 {
				kinds[k] = true
			}
		}
	}
	s.skills = slices.Sorted(maps.Keys(kinds))
	s.need = make([][]float64, np)
	for p, proj := range in.Projects {
		s.need[p] = make([]float64, len(s.skills))
		for k, name := range s.skills {
			s.need[p][k] = proj.Skills[name]
		}
	}

	s.cost = make([][]float64, len(in.Groups))
	s.supply = make([][]float64, len(in.Groups))
	s.penalty = 1
	for g, grp := range in.Groups {
		s.cost[g] = make([]float64, np)
		for _, m := range grp.Members {
			for p := range np {
				s.cost[g][p] += in.Costs[m][p]
			}
		}
		s.penalty += slices.Max(s.cost[g])
		s.supply[g] = make([]float64, len(s.skills))
		for k, name := range s.skills {
			s.supply[g][k] = grp.Skills[name]
		}
	}

	s.proj = make([]int, len(in.Groups))
	s.count = make([]int, np)
	s.have = make([][]float64, np)
	for p := range s.have {
		s.have[p] = make([]float64, len(s.skills))
	}
	return s
}

func (s *searchState) load(proj []int) {
	copy(s.proj, proj)
	clear(s.count)
	for p := range s.have {
		clear(s.have[p])
	}
	for g, p := range proj {
		s.add(g, p, 1)
	}
}

func (s *searchState) add(g, p, sign int) {
	s.count[p] += sign * s.in.Groups[g].Size
	for k, v := range s.supply[g] {
		s.have[p][k] += float64(sign) * v
	}
}

// violation measures how far project p is from its capacity and skill
// requirements given its current head count and skill totals.
func (s *searchState) violation(p int) float64 {
	proj := s.in.Projects[p]
	v := float64(max(0, proj.Min-s.count[p]) + max(0, s.count[p]-proj.Max))
	for k, need := range s.need[p] {
		v += max(0, need-s.have[p][k])
	}
	return v
}

func (s *searchState) score() (cost, violation float64) {
	for g, p := range s.proj {
		cost += s.cost[g][p]
	}
	for p := range s.in.Projects {
		violation += s.violation(p)
	}
	return cost, violation
}

// moveDelta is the penalized score change of moving group g to project to.
func (s *searchState) moveDelta(g, to int) float64 {
	from := s.proj[g]
	before := s.violation(from) + s.violation(to)
	s.add(g, from, -1)
	s.add(g, to, 1)
	after := s.violation(from) + s.violation(to)
	s.add(g, to, -1)
	s.add(g, from, 1)
	return s.cost[g][to] - s.cost[g][from] + s.penalty*(after-before)
}

func (s *searchState) swapDelta(g1, g2 int) float64 {
	a, b := s.proj[g1], s.proj[g2]
	before := s.violation(a) + s.violation(b)
	s.move(g1, b)
	s.move(g2, a)
	after := s.violation(a) + s.violation(b)
	s.move(g1, a)
	s.move(g2, b)
	return s.cost[g1][b] + s.cost[g2][a] - s.cost[g1][a] - s.cost[g2][b] + s.penalty*(after-before)
}

func (s *searchState) move(g, to int) {
	s.add(g, s.proj[g], -1)
	s.add(g, to, 1)
	s.proj[g] = to
}

func (s *searchState) movable(g int) bool {
	return s.in.Groups[g].Forced < 0
}

// hillClimb applies the best improving move or swap until none is left.
func (s *searchState) hillClimb() {
	const eps = 1e-9
	np := len(s.in.Projects)
	for {
		best, bestG, bestTo, bestSwap := -eps, -1, -1, -1
		for g := range s.proj {
			if !s.movable(g) {
				continue
			}
			for to := range np {
				if to == s.proj[g] {
					continue
				}
				if d := s.moveDelta(g, to); d < best {
					best, bestG, bestTo, bestSwap = d, g, to, -1
				}
			}
			for g2 := g + 1; g2 < len(s.proj); g2++ {
				if !s.movable(g2) || s.proj[g2] == s.proj[g] {
					continue
				}
				if d := s.swapDelta(g, g2); d < best {
					best, bestG, bestTo, bestSwap = d, g, -1, g2
				}
			}
		}
		if bestG < 0 {
			return
		}
		if bestSwap < 0 {
			s.move(bestG, bestTo)
			continue
		}
		a, b := s.proj[bestG], s.proj[bestSwap]
		s.move(bestG, b)
		s.move(bestSwap, a)
	}
}

func (s *searchState) randomPlacement(rng *rand.Rand) []int {
	proj := make([]int, len(s.in.Groups))
	for g, grp := range s.in.Groups {
		if grp.Forced >= 0 {
			proj[g] = grp.Forced
			continue
		}
		proj[g] = rng.Intn(len(s.in.Projects))
	}
	return proj
}

// cheapestPlacement puts every unforced group on its cheapest project.
func (s *searchState) cheapestPlacement() []int {
	proj := make([]int, len(s.in.Groups))
	for g, grp := range s.in.Groups {
		if grp.Forced >= 0 {
			proj[g] = grp.Forced
			continue
		}
		proj[g] = argmin(s.cost[g])
	}
	return proj
}

func argmin(xs []float64) int {
	best := 0
	for i, x := range xs {
		if x < xs[best] {
			best = i
		}
	}
	return best
}

// Heuristic searches for a cheap feasible group-to-project mapping by hill
// climbing from a greedy start and from random placements, then perturbing
// the best mapping found. It returns nil when no feasible mapping turned up,
// which does not prove that none exists.
func Heuristic(in *Instance, p HeuristicParams, rng *rand.Rand) (proj []int, cost float64) {
	if len(in.Groups) == 0 || len(in.Projects) == 0 {
		return nil, 0
	}
	s := newSearchState(in)
	cost = math.Inf(1)
	consider := func() {
		c, v := s.score()
		if v < checkTol && c < cost {
			cost = c
			proj = slices.Clone(s.proj)
		}
	}

	s.load(s.cheapestPlacement())
	s.hillClimb()
	consider()
	for range p.NumRandom {
		s.load(s.randomPlacement(rng))
		s.hillClimb()
		consider()
	}
	if proj == nil {
		return nil, 0
	}

	var movable []int
	for g := range in.Groups {
		if s.movable(g) {
			movable = append(movable, g)
		}
	}
	span := max(1, p.PerturbMax-p.PerturbMin)
	for range p.NumPerturb {
		if len(movable) == 0 {
			break
		}
		s.load(proj)
		n := min(len(movable), max(1, p.PerturbMin+rng.Intn(span)))
		for _, i := range rng.Perm(len(movable))[:n] {
			s.move(movable[i], rng.Intn(len(in.Projects)))
		}
		s.hillClimb()
		consider()
	}
	return proj, cost
}

// startValues turns a group-to-project mapping into model variable values.
func startValues(am *AssignmentModel, proj []int) []float64 {
	values := make([]float64, len(am.Vars))
	for v, ref := range am.Vars {
		if proj[ref.Group] == ref.Project {
			values[v] = 1
		}
	}
	return values
}
