package main

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"slices"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"
	"google.golang.org/api/idtoken"

	"assigner/config"
	"assigner/match"
	"assigner/milp"
	_ "assigner/milp/backends"
	"assigner/store"
)

// sectionStore is the persistence the handlers need; *store.Store
// implements it.
type sectionStore interface {
	Ping(ctx context.Context) error
	CreateSection(ctx context.Context, name string) (*store.Section, error)
	ListSections(ctx context.Context) ([]store.Section, error)
	DeleteSection(ctx context.Context, id int64) error
	SectionExists(ctx context.Context, id int64) (bool, error)
	AddSectionAdmin(ctx context.Context, sectionID int64, email string) (*store.Admin, error)
	RemoveSectionAdmin(ctx context.Context, sectionID, adminID int64) error
	IsSectionAdmin(ctx context.Context, sectionID int64, email string) (bool, error)
	ReplaceRoster(ctx context.Context, sectionID int64, students []match.Student) error
	ReplaceProjects(ctx context.Context, sectionID int64, projects []match.Project) error
	Roster(ctx context.Context, sectionID int64) ([]match.Student, error)
	Projects(ctx context.Context, sectionID int64) ([]match.Project, error)
	AddForce(ctx context.Context, sectionID int64, f match.Force) (*store.ForceRecord, error)
	DeleteForce(ctx context.Context, sectionID, forceID int64) error
	Forces(ctx context.Context, sectionID int64) ([]store.ForceRecord, error)
	SaveAssignments(ctx context.Context, sectionID int64, res *match.Result) error
	Assignments(ctx context.Context, sectionID int64) (*store.Run, error)
}

type server struct {
	cfg       *config.Config
	store     sectionStore
	log       *zap.Logger
	optimizer milp.Optimizer
	validate  func(ctx context.Context, token, audience string) (*idtoken.Payload, error)
}

func main() {
	configPath := flag.String("config", "config.yaml", "path to YAML config; environment variables override it")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	log, err := cfg.Logger()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	defer log.Sync()

	if err := cfg.RequireServer(); err != nil {
		log.Fatal("missing configuration", zap.Error(err))
	}
	opt, err := cfg.Optimizer()
	if err != nil {
		log.Fatal("failed to build optimizer", zap.Error(err))
	}

	ctx := context.Background()
	st, err := store.Open(ctx, cfg.Server.PGConn)
	if err != nil {
		log.Fatal("failed to open store", zap.Error(err))
	}
	defer st.Close()
	log.Info("connected to database")

	s := &server{cfg: cfg, store: st, log: log, optimizer: opt, validate: idtoken.Validate}
	log.Info("listening", zap.String("addr", cfg.Server.Addr), zap.String("solver", cfg.Solver.Backend))
	if err := http.ListenAndServe(cfg.Server.Addr, s.routes()); err != nil {
		log.Fatal("server stopped", zap.Error(err))
	}
}

func (s *server) routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /auth/google/callback", s.handleGoogleCallback)
	mux.HandleFunc("GET /api/admin/check", s.handleAdminCheck)
	mux.HandleFunc("GET /api/sections", s.handleListSections)
	mux.HandleFunc("POST /api/sections", s.handleCreateSection)
	mux.HandleFunc("DELETE /api/sections/{sectionID}", s.handleDeleteSection)
	mux.HandleFunc("POST /api/sections/{sectionID}/admins", s.handleAddSectionAdmin)
	mux.HandleFunc("DELETE /api/sections/{sectionID}/admins/{adminID}", s.handleRemoveSectionAdmin)
	mux.HandleFunc("GET /api/sections/{sectionID}/students", s.handleGetStudents)
	mux.HandleFunc("PUT /api/sections/{sectionID}/students", s.handlePutStudents)
	mux.HandleFunc("GET /api/sections/{sectionID}/projects", s.handleGetProjects)
	mux.HandleFunc("PUT /api/sections/{sectionID}/projects", s.handlePutProjects)
	mux.HandleFunc("GET /api/sections/{sectionID}/forces", s.handleListForces)
	mux.HandleFunc("POST /api/sections/{sectionID}/forces", s.handleCreateForce)
	mux.HandleFunc("DELETE /api/sections/{sectionID}/forces/{forceID}", s.handleDeleteForce)
	mux.HandleFunc("POST /api/sections/{sectionID}/match", s.handleMatch)
	mux.HandleFunc("GET /api/sections/{sectionID}/assignments", s.handleAssignments)
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		if err := s.store.Ping(r.Context()); err != nil {
			http.Error(w, "db unhealthy", http.StatusServiceUnavailable)
			return
		}
		fmt.Fprintln(w, "ok")
	})
	return s.logRequests(mux)
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func (s *server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		s.log.Debug("request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", rec.status),
			zap.Duration("elapsed", time.Since(start)))
	})
}

func (s *server) handleGoogleCallback(w http.ResponseWriter, r *http.Request) {
	credential := r.FormValue("credential")
	if credential == "" {
		http.Error(w, "missing credential", http.StatusBadRequest)
		return
	}

	payload, err := s.validate(r.Context(), credential, s.cfg.Server.ClientID)
	if err != nil {
		s.log.Info("failed to validate token", zap.Error(err))
		http.Error(w, "invalid token", http.StatusUnauthorized)
		return
	}
	email, _ := payload.Claims["email"].(string)
	if email == "" {
		http.Error(w, "token has no email", http.StatusUnauthorized)
		return
	}

	writeJSON(w, map[string]any{
		"email":   email,
		"name":    payload.Claims["name"],
		"picture": payload.Claims["picture"],
		"token":   s.signEmail(email),
	})
}

func (s *server) signEmail(email string) string {
	h := hmac.New(sha256.New, []byte(s.cfg.Server.ClientSecret))
	h.Write([]byte(email))
	sig := base64.RawURLEncoding.EncodeToString(h.Sum(nil))
	return base64.RawURLEncoding.EncodeToString([]byte(email)) + "." + sig
}

func (s *server) authorize(r *http.Request) (string, bool) {
	token := strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
	parts := strings.SplitN(token, ".", 2)
	if len(parts) != 2 {
		return "", false
	}
	emailBytes, err := base64.RawURLEncoding.DecodeString(parts[0])
	if err != nil {
		return "", false
	}
	email := string(emailBytes)
	if !hmac.Equal([]byte(s.signEmail(email)), []byte(token)) {
		return "", false
	}
	return email, true
}

func (s *server) isAdmin(email string) bool {
	return slices.Contains(s.cfg.Server.AdminList(), email)
}

func (s *server) requireAdmin(w http.ResponseWriter, r *http.Request) (string, bool) {
	email, ok := s.authorize(r)
	if !ok {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return "", false
	}
	if !s.isAdmin(email) {
		http.Error(w, "forbidden", http.StatusForbidden)
		return "", false
	}
	return email, true
}

// requireSectionAdmin admits global admins and the section's own admins.
func (s *server) requireSectionAdmin(w http.ResponseWriter, r *http.Request) (string, int64, bool) {
	email, ok := s.authorize(r)
	if !ok {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return "", 0, false
	}
	sectionID, err := strconv.ParseInt(r.PathValue("sectionID"), 10, 64)
	if err != nil {
		http.Error(w, "invalid section ID", http.StatusBadRequest)
		return "", 0, false
	}
	if !s.isAdmin(email) {
		ok, err := s.store.IsSectionAdmin(r.Context(), sectionID, email)
		if err != nil {
			s.serverError(w, err)
			return "", 0, false
		}
		if !ok {
			http.Error(w, "forbidden", http.StatusForbidden)
			return "", 0, false
		}
	}
	exists, err := s.store.SectionExists(r.Context(), sectionID)
	if err != nil {
		s.serverError(w, err)
		return "", 0, false
	}
	if !exists {
		http.Error(w, "section not found", http.StatusNotFound)
		return "", 0, false
	}
	return email, sectionID, true
}

func (s *server) handleAdminCheck(w http.ResponseWriter, r *http.Request) {
	email, ok := s.authorize(r)
	if !ok {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}
	writeJSON(w, map[string]bool{"admin": s.isAdmin(email)})
}

func (s *server) serverError(w http.ResponseWriter, err error) {
	s.log.Error("request failed", zap.Error(err))
	http.Error(w, err.Error(), http.StatusInternalServerError)
}

// matchStatus maps engine errors onto HTTP statuses: bad input is the
// caller's fault, infeasibility is a well-formed request that cannot be met.
func matchStatus(err error) int {
	var (
		ref        *match.InvalidReferenceError
		conflict   *match.ConflictingForceError
		construct  *match.ModelConstructionError
		infeasible *match.InfeasibleError
	)
	switch {
	case errors.As(err, &ref), errors.As(err, &conflict), errors.As(err, &construct):
		return http.StatusBadRequest
	case errors.As(err, &infeasible):
		return http.StatusUnprocessableEntity
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(v)
}
