package main

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"assigner/match"
	"assigner/store"
	"assigner/table"
)

const maxUpload = 4 << 20

func (s *server) handleListSections(w http.ResponseWriter, r *http.Request) {
	if _, ok := s.requireAdmin(w, r); !ok {
		return
	}
	sections, err := s.store.ListSections(r.Context())
	if err != nil {
		s.serverError(w, err)
		return
	}
	writeJSON(w, sections)
}

func (s *server) handleCreateSection(w http.ResponseWriter, r *http.Request) {
	if _, ok := s.requireAdmin(w, r); !ok {
		return
	}
	var body struct {
		Name string `json:"name"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || strings.TrimSpace(body.Name) == "" {
		http.Error(w, "name is required", http.StatusBadRequest)
		return
	}
	sec, err := s.store.CreateSection(r.Context(), strings.TrimSpace(body.Name))
	if err != nil {
		s.serverError(w, err)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(sec)
}

func (s *server) handleDeleteSection(w http.ResponseWriter, r *http.Request) {
	if _, ok := s.requireAdmin(w, r); !ok {
		return
	}
	sectionID, err := strconv.ParseInt(r.PathValue("sectionID"), 10, 64)
	if err != nil {
		http.Error(w, "invalid section ID", http.StatusBadRequest)
		return
	}
	if err := s.store.DeleteSection(r.Context(), sectionID); errors.Is(err, store.ErrNotFound) {
		http.Error(w, "section not found", http.StatusNotFound)
		return
	} else if err != nil {
		s.serverError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *server) handleAddSectionAdmin(w http.ResponseWriter, r *http.Request) {
	_, sectionID, ok := s.requireSectionAdmin(w, r)
	if !ok {
		return
	}
	var body struct {
		Email string `json:"email"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.Email == "" {
		http.Error(w, "email is required", http.StatusBadRequest)
		return
	}
	a, err := s.store.AddSectionAdmin(r.Context(), sectionID, body.Email)
	if err != nil {
		s.serverError(w, err)
		return
	}
	writeJSON(w, a)
}

func (s *server) handleRemoveSectionAdmin(w http.ResponseWriter, r *http.Request) {
	_, sectionID, ok := s.requireSectionAdmin(w, r)
	if !ok {
		return
	}
	adminID, err := strconv.ParseInt(r.PathValue("adminID"), 10, 64)
	if err != nil {
		http.Error(w, "invalid admin ID", http.StatusBadRequest)
		return
	}
	s.noContent(w, s.store.RemoveSectionAdmin(r.Context(), sectionID, adminID), "admin not found")
}

func (s *server) handleGetStudents(w http.ResponseWriter, r *http.Request) {
	_, sectionID, ok := s.requireSectionAdmin(w, r)
	if !ok {
		return
	}
	students, err := s.store.Roster(r.Context(), sectionID)
	if err != nil {
		s.serverError(w, err)
		return
	}
	writeJSON(w, students)
}

// handlePutStudents replaces the roster with an uploaded students table.
func (s *server) handlePutStudents(w http.ResponseWriter, r *http.Request) {
	_, sectionID, ok := s.requireSectionAdmin(w, r)
	if !ok {
		return
	}
	t, err := table.ReadCSV(http.MaxBytesReader(w, r.Body, maxUpload))
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	students, err := table.Students(t)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	projects, err := s.store.Projects(r.Context(), sectionID)
	if err != nil {
		s.serverError(w, err)
		return
	}
	if len(projects) > 0 {
		if err := table.CheckPreferences(t, projects); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
	}
	if err := s.store.ReplaceRoster(r.Context(), sectionID, students); err != nil {
		s.serverError(w, err)
		return
	}
	s.log.Info("roster replaced", zap.Int64("section", sectionID), zap.Int("students", len(students)))
	writeJSON(w, map[string]int{"students": len(students)})
}

func (s *server) handleGetProjects(w http.ResponseWriter, r *http.Request) {
	_, sectionID, ok := s.requireSectionAdmin(w, r)
	if !ok {
		return
	}
	projects, err := s.store.Projects(r.Context(), sectionID)
	if err != nil {
		s.serverError(w, err)
		return
	}
	writeJSON(w, projects)
}

func (s *server) handlePutProjects(w http.ResponseWriter, r *http.Request) {
	_, sectionID, ok := s.requireSectionAdmin(w, r)
	if !ok {
		return
	}
	t, err := table.ReadCSV(http.MaxBytesReader(w, r.Body, maxUpload))
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	projects, err := table.Projects(t)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	for _, p := range projects {
		if p.MissingBounds {
			http.Error(w, (&match.ModelConstructionError{Subject: "project " + strconv.Quote(p.Name), Reason: "min and max must both be defined"}).Error(), http.StatusBadRequest)
			return
		}
	}
	if err := s.store.ReplaceProjects(r.Context(), sectionID, projects); err != nil {
		s.serverError(w, err)
		return
	}
	s.log.Info("projects replaced", zap.Int64("section", sectionID), zap.Int("projects", len(projects)))
	writeJSON(w, map[string]int{"projects": len(projects)})
}

func (s *server) handleListForces(w http.ResponseWriter, r *http.Request) {
	_, sectionID, ok := s.requireSectionAdmin(w, r)
	if !ok {
		return
	}
	forces, err := s.store.Forces(r.Context(), sectionID)
	if err != nil {
		s.serverError(w, err)
		return
	}
	writeJSON(w, forces)
}

// handleCreateForce accepts {"student": ..., "project": ...} or
// {"force": "Student=Project"}.
func (s *server) handleCreateForce(w http.ResponseWriter, r *http.Request) {
	_, sectionID, ok := s.requireSectionAdmin(w, r)
	if !ok {
		return
	}
	var body struct {
		match.Force
		Text string `json:"force"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, "invalid JSON", http.StatusBadRequest)
		return
	}
	f := body.Force
	if body.Text != "" {
		var err error
		if f, err = table.ParseForce(body.Text); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
	}
	if f.Student == "" || f.Project == "" {
		http.Error(w, "student and project are required", http.StatusBadRequest)
		return
	}
	rec, err := s.store.AddForce(r.Context(), sectionID, f)
	if err != nil {
		s.serverError(w, err)
		return
	}
	writeJSON(w, rec)
}

func (s *server) handleDeleteForce(w http.ResponseWriter, r *http.Request) {
	_, sectionID, ok := s.requireSectionAdmin(w, r)
	if !ok {
		return
	}
	forceID, err := strconv.ParseInt(r.PathValue("forceID"), 10, 64)
	if err != nil {
		http.Error(w, "invalid force ID", http.StatusBadRequest)
		return
	}
	s.noContent(w, s.store.DeleteForce(r.Context(), sectionID, forceID), "force not found")
}

type matchError struct {
	Error    string   `json:"error"`
	Kind     string   `json:"kind"`
	Suspects []string `json:"suspects,omitempty"`
	Details  []string `json:"details,omitempty"`
}

// handleMatch runs the engine over the stored roster, projects and forces,
// and stores the result on success.
func (s *server) handleMatch(w http.ResponseWriter, r *http.Request) {
	email, sectionID, ok := s.requireSectionAdmin(w, r)
	if !ok {
		return
	}
	ctx := r.Context()
	students, err := s.store.Roster(ctx, sectionID)
	if err != nil {
		s.serverError(w, err)
		return
	}
	projects, err := s.store.Projects(ctx, sectionID)
	if err != nil {
		s.serverError(w, err)
		return
	}
	records, err := s.store.Forces(ctx, sectionID)
	if err != nil {
		s.serverError(w, err)
		return
	}
	force := make([]match.Force, len(records))
	for i, rec := range records {
		force[i] = rec.Force
	}

	log := s.log.With(zap.Int64("section", sectionID), zap.String("by", email))
	res, err := match.Match(ctx, students, projects, match.Options{
		Force:     force,
		Optimizer: s.optimizer,
		Costs:     s.cfg.CostModel(),
		Diagnose:  s.cfg.Diagnose,
		WarmStart: s.cfg.Solver.WarmStart,
		Logger:    log,
	})
	if err != nil {
		status := matchStatus(err)
		body := matchError{Error: err.Error(), Kind: errorKind(err)}
		var infeasible *match.InfeasibleError
		if errors.As(err, &infeasible) {
			body.Suspects = infeasible.Suspects
			body.Details = infeasible.Details
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		json.NewEncoder(w).Encode(body)
		return
	}
	if err := s.store.SaveAssignments(ctx, sectionID, res); err != nil {
		s.serverError(w, err)
		return
	}
	writeJSON(w, res)
}

func errorKind(err error) string {
	var (
		ref        *match.InvalidReferenceError
		conflict   *match.ConflictingForceError
		construct  *match.ModelConstructionError
		infeasible *match.InfeasibleError
		failure    *match.SolverFailureError
	)
	switch {
	case errors.As(err, &ref):
		return "invalid_reference"
	case errors.As(err, &conflict):
		return "conflicting_force"
	case errors.As(err, &construct):
		return "model_construction"
	case errors.As(err, &infeasible):
		return "infeasible"
	case errors.As(err, &failure):
		return "solver_failure"
	}
	return "internal"
}

// handleAssignments returns the latest result as JSON, or as a name,project
// table when the client accepts text/csv.
func (s *server) handleAssignments(w http.ResponseWriter, r *http.Request) {
	_, sectionID, ok := s.requireSectionAdmin(w, r)
	if !ok {
		return
	}
	run, err := s.store.Assignments(r.Context(), sectionID)
	if errors.Is(err, store.ErrNotFound) {
		http.Error(w, "section has not been matched", http.StatusNotFound)
		return
	}
	if err != nil {
		s.serverError(w, err)
		return
	}
	if strings.Contains(r.Header.Get("Accept"), "text/csv") {
		w.Header().Set("Content-Type", "text/csv")
		if err := table.Assignments(run.Result()).WriteCSV(w); err != nil {
			s.log.Warn("failed to write assignments", zap.Error(err))
		}
		return
	}
	writeJSON(w, run)
}

func (s *server) noContent(w http.ResponseWriter, err error, notFound string) {
	if errors.Is(err, store.ErrNotFound) {
		http.Error(w, notFound, http.StatusNotFound)
		return
	}
	if err != nil {
		s.serverError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
