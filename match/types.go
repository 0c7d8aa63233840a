package match

import (
	"maps"
	"slices"
)

type Student struct {
	Name      string
	Ranks     map[string]int
	Skills    map[string]float64
	Teammates []string
}

type Project struct {
	Name   string
	Min    int
	Max    int
	Skills map[string]float64

	// MissingBounds is set by loaders when the min or max cell was absent.
	MissingBounds bool
}

type Force struct {
	Student string `json:"student"`
	Project string `json:"project"`
}

func (f Force) String() string {
	return f.Student + "=" + f.Project
}

// Group is a set of students linked by teammate requests. Members index into
// the student slice the group was built from.
type Group struct {
	ID      int
	Members []int
	Size    int
	Skills  map[string]float64
	// Forced is the project index every member is forced to, or -1.
	Forced int
}

type Assignment struct {
	Student string `json:"student"`
	Project string `json:"project"`
	// Rank is the student's declared rank for Project, 0 when unranked.
	Rank int     `json:"rank"`
	Cost float64 `json:"cost"`
}

type Result struct {
	Assignments []Assignment `json:"assignments"`
	Groups      [][]string   `json:"groups"`
	Objective   float64      `json:"objective"`
	Nodes       int          `json:"nodes"`
}

// Project returns the project assigned to the named student.
func (r *Result) Project(student string) (string, bool) {
	for _, a := range r.Assignments {
		if a.Student == student {
			return a.Project, true
		}
	}
	return "", false
}

// ByProject returns the assigned students of every project that received at
// least one student, each list in assignment order.
func (r *Result) ByProject() map[string][]string {
	out := map[string][]string{}
	for _, a := range r.Assignments {
		out[a.Project] = append(out[a.Project], a.Student)
	}
	return out
}

func (r *Result) Projects() []string {
	return slices.Sorted(maps.Keys(r.ByProject()))
}
