package table

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"assigner/match"
)

// Source is where a table comes from: an in-memory Table or a Path.
type Source interface {
	load() (Table, error)
}

func (t Table) load() (Table, error) {
	return t, nil
}

// Path names a delimited file with a header row.
type Path string

func (p Path) load() (Table, error) {
	return Load(string(p))
}

type Options struct {
	match.Options
	// Output, when set, is where the assignment table is also written.
	Output string
}

// Match reads both inputs, runs the engine and returns the assignment table.
func Match(ctx context.Context, students, projects Source, opts Options) (Table, error) {
	st, err := students.load()
	if err != nil {
		return Table{}, fmt.Errorf("loading students: %w", err)
	}
	pt, err := projects.load()
	if err != nil {
		return Table{}, fmt.Errorf("loading projects: %w", err)
	}
	roster, err := Students(st)
	if err != nil {
		return Table{}, err
	}
	list, err := Projects(pt)
	if err != nil {
		return Table{}, err
	}
	if err := CheckPreferences(st, list); err != nil {
		return Table{}, err
	}

	res, err := match.Match(ctx, roster, list, opts.Options)
	if err != nil {
		return Table{}, err
	}
	out := Assignments(res)
	if opts.Output != "" {
		if err := out.Save(opts.Output); err != nil {
			return Table{}, err
		}
		if opts.Logger != nil {
			opts.Logger.Info("wrote assignments", zap.String("path", opts.Output), zap.Int("rows", len(out.Rows)))
		}
	}
	return out, nil
}
