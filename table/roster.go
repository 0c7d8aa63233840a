package table

import (
	"fmt"
	"strconv"
	"strings"

	"assigner/match"
)

const (
	nameColumn     = "name"
	skillPrefix    = "skill:"
	teammatePrefix = "teammate_"
	projectColumn  = "project"
	minColumn      = "min"
	maxColumn      = "max"
)

// Students interprets a roster. Columns are classified by header: name,
// skill:<k> for skill contributions, teammate_<i> for teammate requests and
// anything else as a project holding the student's rank. Rank cells that are
// empty or not an integer mean the project was not ranked; an integer below 1
// is rejected the same way match.Prepare rejects it.
func Students(t Table) ([]match.Student, error) {
	nameCol := t.Index(nameColumn)
	if nameCol < 0 {
		return nil, &match.ModelConstructionError{Subject: "students table", Reason: "missing name column"}
	}
	students := make([]match.Student, len(t.Rows))
	for i := range t.Rows {
		s := match.Student{
			Name:   t.Cell(i, nameCol),
			Ranks:  map[string]int{},
			Skills: map[string]float64{},
		}
		for col, h := range t.Header {
			cell := t.Cell(i, col)
			switch {
			case col == nameCol || h == "":
			case strings.HasPrefix(h, skillPrefix):
				v, err := skillValue(cell)
				if err != nil {
					return nil, &match.ModelConstructionError{Subject: fmt.Sprintf("student %q", s.Name), Reason: fmt.Sprintf("column %s: %v", h, err)}
				}
				if v != 0 {
					s.Skills[strings.TrimPrefix(h, skillPrefix)] = v
				}
			case strings.HasPrefix(h, teammatePrefix):
				if cell != "" {
					s.Teammates = append(s.Teammates, cell)
				}
			default:
				r, err := strconv.Atoi(cell)
				if err != nil {
					continue
				}
				if r < 1 {
					return nil, &match.ModelConstructionError{Subject: fmt.Sprintf("student %q", s.Name), Reason: fmt.Sprintf("rank %d for %q must be a positive integer", r, h)}
				}
				s.Ranks[h] = r
			}
		}
		students[i] = s
	}
	return students, nil
}

func isRankColumn(h string) bool {
	return h != "" && h != nameColumn && !strings.HasPrefix(h, skillPrefix) && !strings.HasPrefix(h, teammatePrefix)
}

// CheckPreferences rejects a rank column of the students table that names no
// project, whether or not any student filled it in.
func CheckPreferences(t Table, projects []match.Project) error {
	known := make(map[string]bool, len(projects))
	for _, p := range projects {
		known[p.Name] = true
	}
	for _, h := range t.Header {
		if isRankColumn(h) && !known[h] {
			return &match.InvalidReferenceError{Kind: "preference", Name: h}
		}
	}
	return nil
}

// Projects interprets a project list with required name, min and max columns
// and optional skill:<k> requirements. Other columns are ignored.
func Projects(t Table) ([]match.Project, error) {
	nameCol, minCol, maxCol := t.Index(nameColumn), t.Index(minColumn), t.Index(maxColumn)
	if nameCol < 0 {
		return nil, &match.ModelConstructionError{Subject: "projects table", Reason: "missing name column"}
	}
	projects := make([]match.Project, len(t.Rows))
	for i := range t.Rows {
		p := match.Project{Name: t.Cell(i, nameCol), Skills: map[string]float64{}}
		subject := fmt.Sprintf("project %q", p.Name)
		minCell, maxCell := t.Cell(i, minCol), t.Cell(i, maxCol)
		if minCell == "" || maxCell == "" {
			p.MissingBounds = true
		} else {
			var err error
			if p.Min, err = strconv.Atoi(minCell); err != nil {
				return nil, &match.ModelConstructionError{Subject: subject, Reason: fmt.Sprintf("min %q is not an integer", minCell)}
			}
			if p.Max, err = strconv.Atoi(maxCell); err != nil {
				return nil, &match.ModelConstructionError{Subject: subject, Reason: fmt.Sprintf("max %q is not an integer", maxCell)}
			}
		}
		for col, h := range t.Header {
			if !strings.HasPrefix(h, skillPrefix) {
				continue
			}
			v, err := skillValue(t.Cell(i, col))
			if err != nil {
				return nil, &match.ModelConstructionError{Subject: subject, Reason: fmt.Sprintf("column %s: %v", h, err)}
			}
			if v != 0 {
				p.Skills[strings.TrimPrefix(h, skillPrefix)] = v
			}
		}
		projects[i] = p
	}
	return projects, nil
}

func skillValue(cell string) (float64, error) {
	if cell == "" {
		return 0, nil
	}
	v, err := strconv.ParseFloat(cell, 64)
	if err != nil {
		return 0, fmt.Errorf("%q is not a number", cell)
	}
	return v, nil
}

// Assignments renders a result as one row per student in input order.
func Assignments(res *match.Result) Table {
	t := Table{Header: []string{nameColumn, projectColumn}, Rows: make([][]string, len(res.Assignments))}
	for i, a := range res.Assignments {
		t.Rows[i] = []string{a.Student, a.Project}
	}
	return t
}

// ParseForce parses "Student=Project". Whitespace around either side is
// ignored; a project name may itself contain '='.
func ParseForce(s string) (match.Force, error) {
	student, project, ok := strings.Cut(s, "=")
	student, project = strings.TrimSpace(student), strings.TrimSpace(project)
	if !ok || student == "" || project == "" {
		return match.Force{}, fmt.Errorf("forced assignment %q must look like Student=Project", s)
	}
	return match.Force{Student: student, Project: project}, nil
}

func ParseForces(list []string) ([]match.Force, error) {
	out := make([]match.Force, 0, len(list))
	for _, s := range list {
		f, err := ParseForce(s)
		if err != nil {
			return nil, err
		}
		out = append(out, f)
	}
	return out, nil
}
