package httpserver

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/fairyhunter13/mainalyze/internal/config"
	"github.com/fairyhunter13/mainalyze/internal/domain"
	"github.com/fairyhunter13/mainalyze/internal/usecase"
)

// Check is one named readiness probe.
type Check struct {
	Name string
	Fn   func(ctx context.Context) error
}

// Services are the use cases behind the API.
type Services struct {
	Mains     usecase.MainsService
	Prelims   usecase.PrelimsService
	Mentor    usecase.MentorService
	Uploads   usecase.UploadService
	Profiles  usecase.ProfileService
	Dashboard usecase.DashboardService
	Admin     usecase.AdminService
}

// Server aggregates handler dependencies.
type Server struct {
	Cfg config.Config
	Services
	Checks []Check
}

// NewServer constructs the handler set.
func NewServer(cfg config.Config, svcs Services, checks ...Check) *Server {
	return &Server{Cfg: cfg, Services: svcs, Checks: checks}
}

// HealthzHandler reports liveness.
func (s *Server) HealthzHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}
}

// ReadyzHandler runs every check with a shared 2s deadline.
func (s *Server) ReadyzHandler() http.HandlerFunc {
	type result struct {
		Name    string `json:"name"`
		OK      bool   `json:"ok"`
		Details string `json:"details,omitempty"`
	}
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		status := http.StatusOK
		out := make([]result, 0, len(s.Checks))
		for _, c := range s.Checks {
			res := result{Name: c.Name, OK: true}
			if err := c.Fn(ctx); err != nil {
				res.OK, res.Details = false, err.Error()
				status = http.StatusServiceUnavailable
			}
			out = append(out, res)
		}
		writeJSON(w, status, map[string]any{"checks": out})
	}
}

// paging reads limit and offset query parameters; bad values fall back to defaults.
func paging(r *http.Request) (int, int) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))
	return usecase.Page(limit, offset)
}

// pathID returns a UUID route parameter. A malformed id cannot name a row,
// so it is reported as not found.
func pathID(r *http.Request, name string) (string, error) {
	id, err := uuid.Parse(chi.URLParam(r, name))
	if err != nil {
		return "", fmt.Errorf("%w: %s", domain.ErrNotFound, name)
	}
	return id.String(), nil
}
