package httpserver_test

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/fairyhunter13/mainalyze/internal/domain"
	"github.com/fairyhunter13/mainalyze/internal/usecase"
)

func TestProfile_GetEnsuresRowFromTokenEmail(t *testing.T) {
	h := newHarness(t)
	h.profiles.On("Ensure", mock.Anything, userID, "aspirant@example.com").
		Return(domain.Profile{ID: userID, Email: "aspirant@example.com"}, nil).Once()

	rec := h.do(t, http.MethodGet, "/api/profile", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"email":"aspirant@example.com"`)
}

func TestProfile_UpdateValidatesName(t *testing.T) {
	h := newHarness(t)
	rec := h.do(t, http.MethodPatch, "/api/profile", map[string]any{"full_name": "R2-D2"})
	require.Equal(t, http.StatusBadRequest, rec.Code)
	body := decodeError(t, rec)
	require.Len(t, body.Details, 1)
	assert.Equal(t, "full_name", body.Details[0].Field)
}

func TestProfile_UpdateKeepsAbsentFields(t *testing.T) {
	h := newHarness(t)
	name := "Asha Rao"
	h.profiles.On("Ensure", mock.Anything, userID, mock.Anything).Return(domain.Profile{ID: userID}, nil).Once()
	h.profiles.On("Update", mock.Anything, userID, mock.MatchedBy(func(u domain.ProfileUpdate) bool {
		return u.FullName != nil && *u.FullName == name && u.ExamPreparingFor == nil
	})).Return(domain.Profile{ID: userID, FullName: &name}, nil).Once()

	rec := h.do(t, http.MethodPatch, "/api/profile", `{"full_name":"  Asha Rao "}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Contains(t, rec.Body.String(), `"full_name":"Asha Rao"`)
}

func TestDashboard_Counts(t *testing.T) {
	h := newHarness(t)
	h.jobs.On("CountForUser", mock.Anything, userID).Return(int64(2), nil).Once()
	h.sessions.On("CountForUser", mock.Anything, userID).Return(int64(1), nil).Once()
	h.jobs.On("ListForUser", mock.Anything, userID, usecase.RecentActivityLimit, 0).Return([]domain.EvaluationJob{}, nil).Once()
	h.sessions.On("ListForUser", mock.Anything, userID, usecase.RecentActivityLimit, 0).Return([]domain.PracticeSession{}, nil).Once()

	rec := h.do(t, http.MethodGet, "/api/dashboard", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Contains(t, rec.Body.String(), `"mains_evaluations":2`)
	assert.Contains(t, rec.Body.String(), `"prelims_sessions":1`)
}

func TestAdmin_NonAdminCannotListUsers(t *testing.T) {
	h := newHarness(t)
	h.profiles.On("Get", mock.Anything, userID).Return(domain.Profile{ID: userID}, nil).Once()

	rec := h.do(t, http.MethodGet, "/api/admin/users", nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Equal(t, "Forbidden", decodeError(t, rec).Error)
}

func TestAdmin_RoleChangeChecksRightsBeforeBody(t *testing.T) {
	h := newHarness(t)
	h.profiles.On("Get", mock.Anything, userID).Return(domain.Profile{ID: userID}, nil).Once()

	rec := h.do(t, http.MethodPatch, "/api/admin/users/"+otherID, `not json`)
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestAdmin_GrantsRoleAndAudits(t *testing.T) {
	h := newHarness(t)
	h.profiles.On("Get", mock.Anything, userID).Return(domain.Profile{ID: userID, IsAdmin: true}, nil)
	h.profiles.On("SetAdmin", mock.Anything, otherID, true).Return(domain.Profile{ID: otherID, IsAdmin: true}, nil).Once()
	h.audit.On("Record", mock.Anything, mock.MatchedBy(func(e domain.AuditEntry) bool {
		return e.AdminID == userID && e.ResourceID == otherID && e.IPAddress != ""
	})).Return(nil).Once()

	rec := h.do(t, http.MethodPatch, "/api/admin/users/"+otherID, `{"is_admin":true}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Contains(t, rec.Body.String(), `"is_admin":true`)
}
