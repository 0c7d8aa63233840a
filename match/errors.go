package match

import (
	"fmt"
	"strings"

	"assigner/milp"
)

// InvalidReferenceError reports a name that does not resolve. Kind is one of
// "teammate", "preference" or "force".
type InvalidReferenceError struct {
	Kind  string
	Owner string
	Name  string
}

func (e *InvalidReferenceError) Error() string {
	switch e.Kind {
	case "teammate":
		return fmt.Sprintf("student %q lists teammate %q, which is not a known student", e.Owner, e.Name)
	case "preference":
		if e.Owner == "" {
			return fmt.Sprintf("students table has a column %q, which is not a known project", e.Name)
		}
		return fmt.Sprintf("student %q ranks %q, which is not a known project", e.Owner, e.Name)
	case "force":
		return fmt.Sprintf("forced assignment %s names %q, which is not a known student or project", e.Owner, e.Name)
	}
	return fmt.Sprintf("%s reference %q from %q does not resolve", e.Kind, e.Name, e.Owner)
}

type ConflictingForceError struct {
	Group  []string
	Forces []Force
}

func (e *ConflictingForceError) Error() string {
	parts := make([]string, len(e.Forces))
	for i, f := range e.Forces {
		parts[i] = f.String()
	}
	return fmt.Sprintf("conflicting forced assignments for teammate group [%s]: %s",
		strings.Join(e.Group, ", "), strings.Join(parts, ", "))
}

type ModelConstructionError struct {
	Subject string
	Reason  string
}

func (e *ModelConstructionError) Error() string {
	if e.Subject == "" {
		return "cannot build assignment model: " + e.Reason
	}
	return fmt.Sprintf("cannot build assignment model: %s: %s", e.Subject, e.Reason)
}

// InfeasibleError means no assignment satisfies the capacity, skill and
// forcing constraints together. Suspects lists constraint families that are
// likely responsible; Details holds human-readable evidence.
type InfeasibleError struct {
	Suspects []string
	Details  []string
	Message  string
}

func (e *InfeasibleError) Error() string {
	var b strings.Builder
	b.WriteString("no feasible assignment exists")
	if len(e.Suspects) > 0 {
		b.WriteString("; suspected constraints: ")
		b.WriteString(strings.Join(e.Suspects, ", "))
	}
	for _, d := range e.Details {
		b.WriteString("; ")
		b.WriteString(d)
	}
	if e.Message != "" {
		b.WriteString(" (solver: ")
		b.WriteString(e.Message)
		b.WriteString(")")
	}
	return b.String()
}

type SolverFailureError struct {
	Status  milp.Status
	Message string
	Err     error
}

func (e *SolverFailureError) Error() string {
	msg := "solver failure"
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	} else {
		msg += " (" + e.Status.String() + ")"
	}
	if e.Message != "" {
		msg += ": " + e.Message
	}
	return msg
}

func (e *SolverFailureError) Unwrap() error {
	return e.Err
}
