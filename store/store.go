// Package store keeps class sections, their rosters, project lists, forced
// assignments and the latest match result in Postgres.
package store

import (
	"context"
	"database/sql"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	_ "github.com/lib/pq"

	"assigner/match"
)

//go:embed schema.sql
var schema string

var ErrNotFound = errors.New("not found")

type Store struct {
	db *sql.DB
}

// Open connects with the lib/pq driver and applies the schema.
func Open(ctx context.Context, conn string) (*Store, error) {
	db, err := sql.Open("postgres", conn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	s := New(db)
	if err := s.Migrate(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func New(db *sql.DB) *Store {
	return &Store{db: db}
}

func (s *Store) Migrate(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("failed to apply schema: %w", err)
	}
	return nil
}

func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *Store) Close() error {
	return s.db.Close()
}

type Admin struct {
	ID    int64  `json:"id"`
	Email string `json:"email"`
}

type Section struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
	Admins    []Admin   `json:"admins"`
	Students  int       `json:"students"`
	Projects  int       `json:"projects"`
}

type ForceRecord struct {
	ID int64 `json:"id"`
	match.Force
}

func (s *Store) CreateSection(ctx context.Context, name string) (*Section, error) {
	sec := &Section{Name: name, Admins: []Admin{}}
	err := s.db.QueryRowContext(ctx,
		"INSERT INTO sections (name) VALUES ($1) RETURNING id, created_at", name).Scan(&sec.ID, &sec.CreatedAt)
	if err != nil {
		return nil, err
	}
	return sec, nil
}

func (s *Store) ListSections(ctx context.Context) ([]Section, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT s.id, s.name, s.created_at,
			(SELECT count(*) FROM students st WHERE st.section_id = s.id),
			(SELECT count(*) FROM projects p WHERE p.section_id = s.id),
			COALESCE(
				(SELECT json_agg(json_build_object('id', sa.id, 'email', sa.email) ORDER BY sa.id)
				 FROM section_admins sa WHERE sa.section_id = s.id),
				'[]'
			)
		FROM sections s
		ORDER BY s.id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	sections := []Section{}
	for rows.Next() {
		var sec Section
		var adminsJSON []byte
		if err := rows.Scan(&sec.ID, &sec.Name, &sec.CreatedAt, &sec.Students, &sec.Projects, &adminsJSON); err != nil {
			return nil, err
		}
		if err := json.Unmarshal(adminsJSON, &sec.Admins); err != nil {
			return nil, err
		}
		sections = append(sections, sec)
	}
	return sections, rows.Err()
}

func (s *Store) DeleteSection(ctx context.Context, id int64) error {
	res, err := s.db.ExecContext(ctx, "DELETE FROM sections WHERE id = $1", id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *Store) SectionExists(ctx context.Context, id int64) (bool, error) {
	var exists bool
	err := s.db.QueryRowContext(ctx, "SELECT EXISTS(SELECT 1 FROM sections WHERE id = $1)", id).Scan(&exists)
	return exists, err
}

func (s *Store) AddSectionAdmin(ctx context.Context, sectionID int64, email string) (*Admin, error) {
	a := &Admin{Email: email}
	err := s.db.QueryRowContext(ctx, `
		INSERT INTO section_admins (section_id, email) VALUES ($1, $2)
		ON CONFLICT (section_id, email) DO UPDATE SET email = EXCLUDED.email
		RETURNING id`, sectionID, email).Scan(&a.ID)
	if err != nil {
		return nil, err
	}
	return a, nil
}

func (s *Store) RemoveSectionAdmin(ctx context.Context, sectionID, adminID int64) error {
	res, err := s.db.ExecContext(ctx, "DELETE FROM section_admins WHERE id = $1 AND section_id = $2", adminID, sectionID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *Store) IsSectionAdmin(ctx context.Context, sectionID int64, email string) (bool, error) {
	var exists bool
	err := s.db.QueryRowContext(ctx,
		"SELECT EXISTS(SELECT 1 FROM section_admins WHERE section_id = $1 AND email = $2)", sectionID, email).Scan(&exists)
	return exists, err
}

func (s *Store) inTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	if err := fn(tx); err != nil {
		tx.Rollback()
		return err
	}
	return tx.Commit()
}
