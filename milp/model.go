// Package milp describes mixed-integer linear programs and the optimizers
// that solve them.
//
// A Model is a plain value: variables with bounds and objective costs, and
// linear constraints tagged with a family name. Optimizers never mutate the
// model they are given.
package milp

import (
	"fmt"
	"math"
	"slices"
)

type VarKind int

const (
	Continuous VarKind = iota
	Integer
	Binary
)

func (k VarKind) String() string {
	switch k {
	case Continuous:
		return "continuous"
	case Integer:
		return "integer"
	case Binary:
		return "binary"
	}
	return fmt.Sprintf("VarKind(%d)", int(k))
}

type Var struct {
	Name  string
	Kind  VarKind
	Lower float64
	Upper float64
	Cost  float64
}

type Term struct {
	Var  int
	Coef float64
}

type Sense int

const (
	LessEq Sense = iota
	GreaterEq
	Equal
)

func (s Sense) String() string {
	switch s {
	case LessEq:
		return "<="
	case GreaterEq:
		return ">="
	case Equal:
		return "="
	}
	return fmt.Sprintf("Sense(%d)", int(s))
}

type Constraint struct {
	Name   string
	Family string
	Terms  []Term
	Sense  Sense
	RHS    float64
}

// Activity returns the left-hand side of c evaluated at values.
func (c Constraint) Activity(values []float64) float64 {
	var sum float64
	for _, t := range c.Terms {
		sum += t.Coef * values[t.Var]
	}
	return sum
}

type Model struct {
	Name        string
	Vars        []Var
	Constraints []Constraint
	Maximize    bool
	// Start is an optional feasible point. Optimizers that support warm
	// starts use it as the initial incumbent and ignore it when it does not
	// satisfy the model.
	Start []float64
}

func NewModel(name string) *Model {
	return &Model{Name: name}
}

// AddVar appends a variable and returns its index. Binary variables always
// get the bounds [0, 1].
func (m *Model) AddVar(name string, kind VarKind, lower, upper, cost float64) int {
	if kind == Binary {
		lower, upper = 0, 1
	}
	m.Vars = append(m.Vars, Var{Name: name, Kind: kind, Lower: lower, Upper: upper, Cost: cost})
	return len(m.Vars) - 1
}

func (m *Model) AddBinary(name string, cost float64) int {
	return m.AddVar(name, Binary, 0, 1, cost)
}

// AddConstraint appends a constraint, dropping zero coefficients, and returns
// its index.
func (m *Model) AddConstraint(name, family string, terms []Term, sense Sense, rhs float64) int {
	kept := make([]Term, 0, len(terms))
	for _, t := range terms {
		if t.Coef != 0 {
			kept = append(kept, t)
		}
	}
	m.Constraints = append(m.Constraints, Constraint{
		Name:   name,
		Family: family,
		Terms:  kept,
		Sense:  sense,
		RHS:    rhs,
	})
	return len(m.Constraints) - 1
}

// Families returns the distinct constraint families in first-seen order.
func (m *Model) Families() []string {
	var fams []string
	for _, c := range m.Constraints {
		if !slices.Contains(fams, c.Family) {
			fams = append(fams, c.Family)
		}
	}
	return fams
}

func (m *Model) clone() *Model {
	out := &Model{
		Name:        m.Name,
		Vars:        slices.Clone(m.Vars),
		Constraints: make([]Constraint, len(m.Constraints)),
		Maximize:    m.Maximize,
		Start:       slices.Clone(m.Start),
	}
	for i, c := range m.Constraints {
		c.Terms = slices.Clone(c.Terms)
		out.Constraints[i] = c
	}
	return out
}

// Without returns a copy of m minus every constraint for which drop reports
// true.
func (m *Model) Without(drop func(Constraint) bool) *Model {
	out := m.clone()
	out.Constraints = slices.DeleteFunc(out.Constraints, drop)
	return out
}

// FeasibilityOnly returns a copy of m with every objective cost set to zero.
func (m *Model) FeasibilityOnly() *Model {
	out := m.clone()
	for i := range out.Vars {
		out.Vars[i].Cost = 0
	}
	return out
}

func (m *Model) Objective(values []float64) float64 {
	var obj float64
	for i, v := range m.Vars {
		obj += v.Cost * values[i]
	}
	return obj
}

// Check verifies that values satisfy every bound, integrality requirement and
// constraint of m within tol.
func (m *Model) Check(values []float64, tol float64) error {
	if len(values) != len(m.Vars) {
		return fmt.Errorf("got %d values for %d variables", len(values), len(m.Vars))
	}
	for i, v := range m.Vars {
		x := values[i]
		if math.IsNaN(x) {
			return fmt.Errorf("variable %s is NaN", v.Name)
		}
		if x < v.Lower-tol || x > v.Upper+tol {
			return fmt.Errorf("variable %s = %g outside [%g, %g]", v.Name, x, v.Lower, v.Upper)
		}
		if v.Kind != Continuous && math.Abs(x-math.Round(x)) > tol {
			return fmt.Errorf("variable %s = %g is not integral", v.Name, x)
		}
	}
	for _, c := range m.Constraints {
		lhs := c.Activity(values)
		scale := tol * math.Max(1, math.Abs(c.RHS))
		ok := true
		switch c.Sense {
		case LessEq:
			ok = lhs <= c.RHS+scale
		case GreaterEq:
			ok = lhs >= c.RHS-scale
		case Equal:
			ok = math.Abs(lhs-c.RHS) <= scale
		}
		if !ok {
			return fmt.Errorf("constraint %s violated: %g %s %g", c.Name, lhs, c.Sense, c.RHS)
		}
	}
	return nil
}

func (m *Model) allBinary() bool {
	for _, v := range m.Vars {
		if v.Kind != Binary {
			return false
		}
	}
	return true
}
