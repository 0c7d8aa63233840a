package match

import (
	"fmt"
	"math"
)

// Instance is validated input plus everything derived from it before a model
// is built: teammate groups, forced projects and the cost matrix.
type Instance struct {
	Students   []Student
	Projects   []Project
	Groups     []Group
	GroupOf    []int
	Costs      [][]float64
	AbsentRank int

	projectIdx map[string]int
}

// Prepare runs every structural check and derives groups and costs. All
// errors it returns are raised before any solver is involved.
func Prepare(students []Student, projects []Project, force []Force, cm CostModel) (*Instance, error) {
	if cm == nil {
		cm = DefaultCosts
	}
	if v, ok := cm.(interface{ Validate() error }); ok {
		if err := v.Validate(); err != nil {
			return nil, err
		}
	}
	if err := checkProjects(projects); err != nil {
		return nil, err
	}
	if len(projects) == 0 && len(students) > 0 {
		return nil, &ModelConstructionError{Reason: "no projects to assign students to"}
	}
	pidx := make(map[string]int, len(projects))
	for i, p := range projects {
		pidx[p.Name] = i
	}
	if err := checkStudents(students, pidx); err != nil {
		return nil, err
	}

	groups, groupOf, err := Grouping(students)
	if err != nil {
		return nil, err
	}
	if err := applyForces(students, groups, groupOf, force, pidx); err != nil {
		return nil, err
	}

	costs, absent, err := costTable(students, projects, cm)
	if err != nil {
		return nil, err
	}
	return &Instance{
		Students:   students,
		Projects:   projects,
		Groups:     groups,
		GroupOf:    groupOf,
		Costs:      costs,
		AbsentRank: absent,
		projectIdx: pidx,
	}, nil
}

func checkProjects(projects []Project) error {
	seen := map[string]bool{}
	for i, p := range projects {
		if p.Name == "" {
			return &ModelConstructionError{Subject: fmt.Sprintf("project row %d", i+1), Reason: "empty name"}
		}
		subject := fmt.Sprintf("project %q", p.Name)
		if seen[p.Name] {
			return &ModelConstructionError{Subject: subject, Reason: "duplicate name"}
		}
		seen[p.Name] = true
		if p.MissingBounds {
			return &ModelConstructionError{Subject: subject, Reason: "min and max must both be defined"}
		}
		if p.Min < 0 {
			return &ModelConstructionError{Subject: subject, Reason: fmt.Sprintf("min %d is negative", p.Min)}
		}
		if p.Min > p.Max {
			return &ModelConstructionError{Subject: subject, Reason: fmt.Sprintf("min %d exceeds max %d", p.Min, p.Max)}
		}
		if err := checkSkills(subject, p.Skills); err != nil {
			return err
		}
	}
	return nil
}

func checkStudents(students []Student, pidx map[string]int) error {
	seen := map[string]bool{}
	for i, s := range students {
		if s.Name == "" {
			return &ModelConstructionError{Subject: fmt.Sprintf("student row %d", i+1), Reason: "empty name"}
		}
		subject := fmt.Sprintf("student %q", s.Name)
		if seen[s.Name] {
			return &ModelConstructionError{Subject: subject, Reason: "duplicate name"}
		}
		seen[s.Name] = true
		for proj, r := range s.Ranks {
			if _, ok := pidx[proj]; !ok {
				return &InvalidReferenceError{Kind: "preference", Owner: s.Name, Name: proj}
			}
			if r < 1 {
				return &ModelConstructionError{Subject: subject, Reason: fmt.Sprintf("rank %d for %q must be a positive integer", r, proj)}
			}
		}
		if err := checkSkills(subject, s.Skills); err != nil {
			return err
		}
	}
	return nil
}

func checkSkills(subject string, skills map[string]float64) error {
	for k, v := range skills {
		if v < 0 || math.IsNaN(v) || math.IsInf(v, 0) {
			return &ModelConstructionError{Subject: subject, Reason: fmt.Sprintf("skill %q value %g must be a non-negative number", k, v)}
		}
	}
	return nil
}

// applyForces resolves forced pairs onto groups. Every force touching a
// group must name the same project.
func applyForces(students []Student, groups []Group, groupOf []int, force []Force, pidx map[string]int) error {
	sidx := make(map[string]int, len(students))
	for i, s := range students {
		sidx[s.Name] = i
	}
	byGroup := map[int][]Force{}
	for _, f := range force {
		si, ok := sidx[f.Student]
		if !ok {
			return &InvalidReferenceError{Kind: "force", Owner: f.String(), Name: f.Student}
		}
		if _, ok := pidx[f.Project]; !ok {
			return &InvalidReferenceError{Kind: "force", Owner: f.String(), Name: f.Project}
		}
		g := groupOf[si]
		byGroup[g] = append(byGroup[g], f)
	}
	for g := range groups {
		fs := byGroup[g]
		if len(fs) == 0 {
			continue
		}
		target := pidx[fs[0].Project]
		for _, f := range fs[1:] {
			if pidx[f.Project] != target {
				names := make([]string, len(groups[g].Members))
				for i, m := range groups[g].Members {
					names[i] = students[m].Name
				}
				return &ConflictingForceError{Group: names, Forces: fs}
			}
		}
		groups[g].Forced = target
	}
	return nil
}

func (in *Instance) memberNames(g int) []string {
	names := make([]string, len(in.Groups[g].Members))
	for i, m := range in.Groups[g].Members {
		names[i] = in.Students[m].Name
	}
	return names
}
