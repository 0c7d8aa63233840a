package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"assigner/match"
)

// AddForce records a forced assignment, replacing any earlier one for the
// same student.
func (s *Store) AddForce(ctx context.Context, sectionID int64, f match.Force) (*ForceRecord, error) {
	rec := &ForceRecord{Force: f}
	err := s.db.QueryRowContext(ctx, `
		INSERT INTO forces (section_id, student, project) VALUES ($1, $2, $3)
		ON CONFLICT (section_id, student) DO UPDATE SET project = EXCLUDED.project
		RETURNING id`, sectionID, f.Student, f.Project).Scan(&rec.ID)
	if err != nil {
		return nil, err
	}
	return rec, nil
}

func (s *Store) DeleteForce(ctx context.Context, sectionID, forceID int64) error {
	res, err := s.db.ExecContext(ctx, "DELETE FROM forces WHERE id = $1 AND section_id = $2", forceID, sectionID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *Store) Forces(ctx context.Context, sectionID int64) ([]ForceRecord, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT id, student, project FROM forces WHERE section_id = $1 ORDER BY id", sectionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	forces := []ForceRecord{}
	for rows.Next() {
		var f ForceRecord
		if err := rows.Scan(&f.ID, &f.Student, &f.Project); err != nil {
			return nil, err
		}
		forces = append(forces, f)
	}
	return forces, rows.Err()
}

// Run is the stored outcome of the latest successful match of a section.
type Run struct {
	Assignments []match.Assignment `json:"assignments"`
	Groups      [][]string         `json:"groups"`
	Objective   float64            `json:"objective"`
	SolvedAt    time.Time          `json:"solved_at"`
}

// SaveAssignments replaces the section's stored result.
func (s *Store) SaveAssignments(ctx context.Context, sectionID int64, res *match.Result) error {
	groups, err := json.Marshal(res.Groups)
	if err != nil {
		return err
	}
	return s.inTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, "DELETE FROM assignments WHERE section_id = $1", sectionID); err != nil {
			return err
		}
		for i, a := range res.Assignments {
			if _, err := tx.ExecContext(ctx,
				"INSERT INTO assignments (section_id, position, student, project, rank, cost) VALUES ($1, $2, $3, $4, $5, $6)",
				sectionID, i, a.Student, a.Project, a.Rank, a.Cost); err != nil {
				return err
			}
		}
		_, err := tx.ExecContext(ctx, `
			INSERT INTO match_runs (section_id, objective, groups) VALUES ($1, $2, $3)
			ON CONFLICT (section_id) DO UPDATE SET objective = EXCLUDED.objective, groups = EXCLUDED.groups, solved_at = now()`,
			sectionID, res.Objective, string(groups))
		return err
	})
}

// Assignments returns the stored result, or ErrNotFound when the section
// has never been matched.
func (s *Store) Assignments(ctx context.Context, sectionID int64) (*Run, error) {
	run := &Run{Assignments: []match.Assignment{}}
	var groups []byte
	err := s.db.QueryRowContext(ctx,
		"SELECT objective, groups, solved_at FROM match_runs WHERE section_id = $1", sectionID).Scan(&run.Objective, &groups, &run.SolvedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(groups, &run.Groups); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx,
		"SELECT student, project, rank, cost FROM assignments WHERE section_id = $1 ORDER BY position", sectionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var a match.Assignment
		if err := rows.Scan(&a.Student, &a.Project, &a.Rank, &a.Cost); err != nil {
			return nil, err
		}
		run.Assignments = append(run.Assignments, a)
	}
	return run, rows.Err()
}

// Result converts a stored run back into an engine result.
func (r *Run) Result() *match.Result {
	return &match.Result{Assignments: r.Assignments, Groups: r.Groups, Objective: r.Objective}
}
