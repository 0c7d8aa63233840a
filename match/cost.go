package match

import (
	"fmt"
	"math"
)

// CostModel turns a declared rank into a cost. Cost must be strictly
// increasing and strictly convex in rank. AbsentRank gives the rank used for
// projects a student did not rank at all.
type CostModel interface {
	Cost(rank int) float64
	AbsentRank(numProjects, maxDeclared int) int
}

// Exponential costs rank r as Base^(r-1), so a first choice costs 1. An
// absent rank is costed one step past the worst expressible rank, which is
// the larger of the project count and the largest rank anyone declared.
type Exponential struct {
	Base float64
}

var DefaultCosts = Exponential{Base: 2}

func (e Exponential) Cost(rank int) float64 {
	return math.Pow(e.Base, float64(rank-1))
}

func (e Exponential) AbsentRank(numProjects, maxDeclared int) int {
	return max(numProjects, maxDeclared) + 1
}

func (e Exponential) Validate() error {
	if !(e.Base > 1) || math.IsInf(e.Base, 1) {
		return &ModelConstructionError{Subject: "cost model", Reason: fmt.Sprintf("exponential base %g must be finite and greater than 1", e.Base)}
	}
	return nil
}

// maxCost bounds every preference cost. Beyond 2^53 neighbouring costs are
// no longer distinct float64 values and the LP relaxations lose all
// precision.
const maxCost = 1 << 53

func checkCost(c float64) bool {
	return c >= 0 && c <= maxCost
}

// costTable returns cost[s][p] and the absent rank used to fill it. A rank
// whose cost is not finite or exceeds maxCost is a ModelConstructionError.
func costTable(students []Student, projects []Project, cm CostModel) ([][]float64, int, error) {
	maxDeclared := 0
	for _, s := range students {
		for _, r := range s.Ranks {
			maxDeclared = max(maxDeclared, r)
		}
	}
	absent := cm.AbsentRank(len(projects), maxDeclared)
	absentCost := cm.Cost(absent)

	costs := make([][]float64, len(students))
	usesAbsent := false
	for si, s := range students {
		costs[si] = make([]float64, len(projects))
		for pi, p := range projects {
			r, ok := s.Ranks[p.Name]
			if !ok {
				costs[si][pi] = absentCost
				usesAbsent = true
				continue
			}
			c := cm.Cost(r)
			if !checkCost(c) {
				return nil, 0, &ModelConstructionError{
					Subject: fmt.Sprintf("student %q", s.Name),
					Reason:  fmt.Sprintf("rank %d for %q costs %g, above the limit of %d", r, p.Name, c, int64(maxCost)),
				}
			}
			costs[si][pi] = c
		}
	}
	if usesAbsent && !checkCost(absentCost) {
		return nil, 0, &ModelConstructionError{
			Subject: "cost model",
			Reason:  fmt.Sprintf("cost %g of the unranked rank %d exceeds %d; use a smaller base", absentCost, absent, int64(maxCost)),
		}
	}
	return costs, absent, nil
}
