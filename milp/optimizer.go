package milp

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"
)

type Status int

const (
	Optimal Status = iota
	Infeasible
	Unbounded
	Limit
	Error
)

func (s Status) String() string {
	switch s {
	case Optimal:
		return "optimal"
	case Infeasible:
		return "infeasible"
	case Unbounded:
		return "unbounded"
	case Limit:
		return "limit"
	case Error:
		return "error"
	}
	return fmt.Sprintf("Status(%d)", int(s))
}

type Result struct {
	Status    Status
	Objective float64
	Values    []float64
	Message   string
	Nodes     int
}

// Optimizer solves a Model. A returned error means the optimizer itself
// failed; a model without a feasible point is reported as a Result with
// Status Infeasible.
type Optimizer interface {
	Solve(ctx context.Context, m *Model) (*Result, error)
}

type Params struct {
	Tol       float64
	IntTol    float64
	NodeLimit int
	TimeLimit time.Duration
}

var DefaultParams = Params{
	Tol:       1e-9,
	IntTol:    1e-6,
	NodeLimit: 200000,
	TimeLimit: 0,
}

type Factory func(Params) Optimizer

var (
	registryMu sync.RWMutex
	registry   = map[string]Factory{}
)

// Register makes an optimizer available by name. Registering the same name
// twice panics.
func Register(name string, f Factory) {
	registryMu.Lock()
	defer registryMu.Unlock()
	if _, dup := registry[name]; dup {
		panic("milp: Register called twice for " + name)
	}
	registry[name] = f
}

func New(name string, params Params) (Optimizer, error) {
	registryMu.RLock()
	f, ok := registry[name]
	registryMu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("unknown optimizer %q (available: %v)", name, Names())
	}
	return f(params), nil
}

func Names() []string {
	registryMu.RLock()
	defer registryMu.RUnlock()
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func init() {
	Register("bnb", func(p Params) Optimizer { return NewBranchAndBound(p) })
	Register("exhaustive", func(p Params) Optimizer { return &Exhaustive{MaxVars: DefaultExhaustiveVars, Tol: p.IntTol} })
}

func withTimeLimit(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, d)
}

// Await runs a blocking native solve and gives up when ctx is done or the
// time limit passes. The abandoned solve keeps running in the background
// until it returns on its own.
func Await(ctx context.Context, timeLimit time.Duration, solve func() (*Result, error)) (*Result, error) {
	ctx, cancel := withTimeLimit(ctx, timeLimit)
	defer cancel()
	if err := ctx.Err(); err != nil {
		return &Result{Status: Limit, Message: err.Error()}, nil
	}

	type outcome struct {
		res *Result
		err error
	}
	done := make(chan outcome, 1)
	go func() {
		res, err := solve()
		done <- outcome{res, err}
	}()
	select {
	case o := <-done:
		return o.res, o.err
	case <-ctx.Done():
		return &Result{Status: Limit, Message: ctx.Err().Error()}, nil
	}
}

// Validate reports structural problems that make m unsolvable by any
// backend: bad variable bounds and out-of-range terms.
func Validate(m *Model) error {
	return validateModel(m)
}
