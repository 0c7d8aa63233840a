package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"maps"
	"slices"

	"github.com/lib/pq"

	"assigner/match"
)

// ReplaceRoster swaps the section's students for the given list. Input order
// is kept.
func (s *Store) ReplaceRoster(ctx context.Context, sectionID int64, students []match.Student) error {
	return s.inTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, "DELETE FROM students WHERE section_id = $1", sectionID); err != nil {
			return err
		}
		for i, st := range students {
			var id int64
			err := tx.QueryRowContext(ctx,
				"INSERT INTO students (section_id, position, name, teammates) VALUES ($1, $2, $3, $4) RETURNING id",
				sectionID, i, st.Name, pq.Array(nonNil(st.Teammates))).Scan(&id)
			if err != nil {
				return err
			}
			for _, proj := range slices.Sorted(maps.Keys(st.Ranks)) {
				if _, err := tx.ExecContext(ctx,
					"INSERT INTO student_ranks (student_id, project, rank) VALUES ($1, $2, $3)",
					id, proj, st.Ranks[proj]); err != nil {
					return err
				}
			}
			if err := insertSkills(ctx, tx, "student_skills", "student_id", id, st.Skills); err != nil {
				return err
			}
		}
		return nil
	})
}

func (s *Store) ReplaceProjects(ctx context.Context, sectionID int64, projects []match.Project) error {
	return s.inTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, "DELETE FROM projects WHERE section_id = $1", sectionID); err != nil {
			return err
		}
		for i, p := range projects {
			var id int64
			err := tx.QueryRowContext(ctx,
				"INSERT INTO projects (section_id, position, name, min_students, max_students) VALUES ($1, $2, $3, $4, $5) RETURNING id",
				sectionID, i, p.Name, p.Min, p.Max).Scan(&id)
			if err != nil {
				return err
			}
			if err := insertSkills(ctx, tx, "project_skills", "project_id", id, p.Skills); err != nil {
				return err
			}
		}
		return nil
	})
}

func insertSkills(ctx context.Context, tx *sql.Tx, table, owner string, id int64, skills map[string]float64) error {
	for _, k := range slices.Sorted(maps.Keys(skills)) {
		if _, err := tx.ExecContext(ctx,
			"INSERT INTO "+table+" ("+owner+", skill, value) VALUES ($1, $2, $3)", id, k, skills[k]); err != nil {
			return err
		}
	}
	return nil
}

func (s *Store) Roster(ctx context.Context, sectionID int64) ([]match.Student, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT st.name, st.teammates,
			COALESCE((SELECT json_object_agg(r.project, r.rank) FROM student_ranks r WHERE r.student_id = st.id), '{}'),
			COALESCE((SELECT json_object_agg(k.skill, k.value) FROM student_skills k WHERE k.student_id = st.id), '{}')
		FROM students st
		WHERE st.section_id = $1
		ORDER BY st.position`, sectionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	students := []match.Student{}
	for rows.Next() {
		var st match.Student
		var teammates []string
		var ranks, skills []byte
		if err := rows.Scan(&st.Name, pq.Array(&teammates), &ranks, &skills); err != nil {
			return nil, err
		}
		if len(teammates) > 0 {
			st.Teammates = teammates
		}
		if err := json.Unmarshal(ranks, &st.Ranks); err != nil {
			return nil, err
		}
		if err := json.Unmarshal(skills, &st.Skills); err != nil {
			return nil, err
		}
		students = append(students, st)
	}
	return students, rows.Err()
}

func (s *Store) Projects(ctx context.Context, sectionID int64) ([]match.Project, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT p.name, p.min_students, p.max_students,
			COALESCE((SELECT json_object_agg(k.skill, k.value) FROM project_skills k WHERE k.project_id = p.id), '{}')
		FROM projects p
		WHERE p.section_id = $1
		ORDER BY p.position`, sectionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	projects := []match.Project{}
	for rows.Next() {
		var p match.Project
		var skills []byte
		if err := rows.Scan(&p.Name, &p.Min, &p.Max, &skills); err != nil {
			return nil, err
		}
		if err := json.Unmarshal(skills, &p.Skills); err != nil {
			return nil, err
		}
		projects = append(projects, p)
	}
	return projects, rows.Err()
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
