package httpserver_test

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"

	httpserver "github.com/fairyhunter13/mainalyze/internal/adapter/httpserver"
	"github.com/fairyhunter13/mainalyze/internal/config"
	"github.com/fairyhunter13/mainalyze/internal/domain"
	"github.com/fairyhunter13/mainalyze/internal/domain/mocks"
	"github.com/fairyhunter13/mainalyze/internal/prompts"
	"github.com/fairyhunter13/mainalyze/internal/usecase"
)

const (
	secret  = "handler-test-secret"
	userID  = "0b8f4c2e-9d3a-4e1f-8a7b-6c5d4e3f2a1b"
	otherID = "5a4b3c2d-1e0f-4a9b-8c7d-6e5f4a3b2c1d"
	evalID  = "11111111-2222-4333-8444-555555555555"
	sessID  = "66666666-7777-4888-9999-aaaaaaaaaaaa"
)

type harness struct {
	jobs     *mocks.EvaluationRepository
	sessions *mocks.SessionRepository
	notes    *mocks.MentorNoteRepository
	profiles *mocks.ProfileRepository
	audit    *mocks.AuditRepository
	store    *mocks.ObjectStore
	disp     *mocks.Dispatcher
	ai       *mocks.AIClient
	handler  http.Handler
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	h := &harness{
		jobs:     &mocks.EvaluationRepository{},
		sessions: &mocks.SessionRepository{},
		notes:    &mocks.MentorNoteRepository{},
		profiles: &mocks.ProfileRepository{},
		audit:    &mocks.AuditRepository{},
		store:    &mocks.ObjectStore{},
		disp:     &mocks.Dispatcher{},
		ai:       &mocks.AIClient{},
	}
	t.Cleanup(func() {
		h.jobs.AssertExpectations(t)
		h.sessions.AssertExpectations(t)
		h.notes.AssertExpectations(t)
		h.profiles.AssertExpectations(t)
		h.audit.AssertExpectations(t)
		h.store.AssertExpectations(t)
		h.disp.AssertExpectations(t)
		h.ai.AssertExpectations(t)
	})

	cat := prompts.MustLoad()
	mains := usecase.NewMainsService(h.jobs, h.disp, nil, domain.RetryPolicy{MaxAttempts: 2, InitialDelay: time.Millisecond, MaxDelay: time.Millisecond, Multiplier: 1})
	mains.PollInterval = 5 * time.Millisecond
	svcs := httpserver.Services{
		Mains:     mains,
		Prelims:   usecase.NewPrelimsService(h.sessions, h.notes, h.ai, cat),
		Mentor:    usecase.NewMentorService(h.jobs, h.notes, h.ai, cat),
		Uploads:   usecase.NewUploadService(h.store, 1<<20, 3),
		Profiles:  usecase.NewProfileService(h.profiles),
		Dashboard: usecase.NewDashboardService(h.jobs, h.sessions),
		Admin:     usecase.NewAdminService(h.profiles, h.audit),
	}
	srv := httpserver.NewServer(config.Config{MaxUploadMB: 1, MaxUploadFiles: 3}, svcs)

	r := chi.NewRouter()
	r.Use(httpserver.Recoverer())
	r.Use(httpserver.RequestID())
	r.Use(httpserver.NewAuthenticator(secret).Middleware)
	r.Post("/api/evaluate-answer", srv.EvaluateAnswerHandler())
	r.Post("/api/generate-questions", srv.GenerateQuestionsHandler())
	r.Post("/api/explain-wrong-answer", srv.ExplainWrongAnswerHandler())
	r.Post("/api/mentor-guidance", srv.MentorGuidanceHandler())
	r.Post("/api/upload", srv.UploadHandler())
	r.Get("/api/evaluations", srv.ListEvaluationsHandler())
	r.Get("/api/evaluations/{id}", srv.GetEvaluationHandler())
	r.Delete("/api/evaluations/{id}", srv.DeleteEvaluationHandler())
	r.Get("/api/evaluations/{id}/events", srv.EvaluationEventsHandler())
	r.Get("/api/prelims/sessions/{id}", srv.GetSessionHandler())
	r.Post("/api/prelims/sessions/{id}/answers", srv.SubmitAnswersHandler())
	r.Get("/api/profile", srv.GetProfileHandler())
	r.Patch("/api/profile", srv.UpdateProfileHandler())
	r.Get("/api/dashboard", srv.DashboardHandler())
	r.Get("/api/admin/users", srv.AdminListUsersHandler())
	r.Patch("/api/admin/users/{userId}", srv.AdminUpdateUserHandler())
	h.handler = r
	return h
}

func signToken(t *testing.T, sub string, exp time.Time) string {
	t.Helper()
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, httpserver.Claims{
		RegisteredClaims: jwt.RegisteredClaims{Subject: sub, ExpiresAt: jwt.NewNumericDate(exp)},
		Email:            "aspirant@example.com",
	})
	s, err := tok.SignedString([]byte(secret))
	require.NoError(t, err)
	return s
}

// do sends an authenticated request as userID. body may be nil, a string or
// any value to be JSON encoded.
func (h *harness) do(t *testing.T, method, path string, body any, hdr ...string) *httptest.ResponseRecorder {
	t.Helper()
	var rd io.Reader
	switch b := body.(type) {
	case nil:
	case string:
		rd = bytes.NewBufferString(b)
	default:
		raw, err := json.Marshal(b)
		require.NoError(t, err)
		rd = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, rd)
	req.Header.Set("Authorization", "Bearer "+signToken(t, userID, time.Now().Add(time.Hour)))
	if rd != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for i := 0; i+1 < len(hdr); i += 2 {
		req.Header.Set(hdr[i], hdr[i+1])
	}
	rec := httptest.NewRecorder()
	h.handler.ServeHTTP(rec, req)
	return rec
}

type errorResponse struct {
	Error   string `json:"error"`
	Details []struct {
		Field   string `json:"field"`
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"details"`
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) errorResponse {
	t.Helper()
	var out errorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	return out
}
