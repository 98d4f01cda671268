package main

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/fairyhunter13/mainalyze/internal/config"
	"github.com/fairyhunter13/mainalyze/internal/domain"
	"github.com/fairyhunter13/mainalyze/internal/domain/mocks"
)

const (
	userID  = "6f1c2a9e-3b44-4f0e-9a51-2d7c1e0b8a10"
	adminID = "0b7e4c1d-9f2a-4e63-8c55-a1d2e3f4b5c6"
)

type fakes struct {
	profiles *mocks.ProfileRepository
	jobs     *mocks.EvaluationRepository
	audit    *mocks.AuditRepository
	migrated []string
	closed   bool
}

func execute(t *testing.T, f *fakes, args ...string) (string, error) {
	t.Helper()
	load := func() (config.Config, error) {
		return config.Config{AppEnv: "test", StuckEvaluationAge: 30 * time.Minute, AuditRetentionDays: 90, FailWriteAttempts: 1}, nil
	}
	open := func(context.Context, config.Config) (*backend, error) {
		return &backend{
			Migrate:  func(context.Context) ([]string, error) { return f.migrated, nil },
			Profiles: f.profiles,
			Jobs:     f.jobs,
			Audit:    f.audit,
			Close:    func() { f.closed = true },
		}, nil
	}
	cmd := newRootCmd(load, open)
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func newFakes() *fakes {
	return &fakes{profiles: &mocks.ProfileRepository{}, jobs: &mocks.EvaluationRepository{}, audit: &mocks.AuditRepository{}}
}

func TestMigrate(t *testing.T) {
	f := newFakes()
	out, err := execute(t, f, "migrate")
	require.NoError(t, err)
	assert.Contains(t, out, "schema is up to date")
	assert.True(t, f.closed)

	f.migrated = []string{"0001_init", "0002_mentor_notes"}
	out, err = execute(t, f, "migrate")
	require.NoError(t, err)
	assert.Contains(t, out, "applied 0002_mentor_notes")
}

func TestGrantAdminBootstrap(t *testing.T) {
	f := newFakes()
	f.profiles.On("SetAdmin", mock.Anything, userID, true).Return(domain.Profile{ID: userID, IsAdmin: true}, nil)

	out, err := execute(t, f, "grant-admin", userID)
	require.NoError(t, err)
	assert.Contains(t, out, userID+" is_admin=true")
	f.audit.AssertNotCalled(t, "Record", mock.Anything, mock.Anything)
}

func TestRevokeAdminAsActor(t *testing.T) {
	f := newFakes()
	f.profiles.On("Get", mock.Anything, adminID).Return(domain.Profile{ID: adminID, IsAdmin: true}, nil)
	f.profiles.On("SetAdmin", mock.Anything, userID, false).Return(domain.Profile{ID: userID}, nil)
	f.audit.On("Record", mock.Anything, mock.MatchedBy(func(e domain.AuditEntry) bool {
		return e.AdminID == adminID && e.ResourceID == userID && e.IPAddress == "cli"
	})).Return(nil)

	out, err := execute(t, f, "revoke-admin", userID, "--as", adminID)
	require.NoError(t, err)
	assert.Contains(t, out, "is_admin=false")
	f.audit.AssertExpectations(t)
}

func TestRoleCommandsRejectBadIDs(t *testing.T) {
	f := newFakes()
	_, err := execute(t, f, "grant-admin", "not-a-uuid")
	assert.ErrorContains(t, err, "user id must be a UUID")

	_, err = execute(t, f, "grant-admin", userID, "--as", "root")
	assert.ErrorContains(t, err, "--as must be a UUID")
	f.profiles.AssertNotCalled(t, "SetAdmin", mock.Anything, mock.Anything, mock.Anything)
}

func TestRevokeOwnAccessAsActorConflicts(t *testing.T) {
	f := newFakes()
	f.profiles.On("Get", mock.Anything, adminID).Return(domain.Profile{ID: adminID, IsAdmin: true}, nil)

	_, err := execute(t, f, "revoke-admin", adminID, "--as", adminID)
	assert.ErrorIs(t, err, domain.ErrConflict)
}

func TestSweepStuck(t *testing.T) {
	f := newFakes()
	stale := []domain.EvaluationJob{{ID: "a", Status: domain.EvaluationPending}, {ID: "b", Status: domain.EvaluationPending}}
	f.jobs.On("ListStalePending", mock.Anything, mock.AnythingOfType("time.Time"), mock.AnythingOfType("int")).Return(stale, nil)
	f.jobs.On("Fail", mock.Anything, mock.Anything, mock.Anything).Return(nil)

	out, err := execute(t, f, "sweep-stuck")
	require.NoError(t, err)
	assert.Contains(t, out, "failed 2 stuck evaluation(s)")
}

func TestPruneAudit(t *testing.T) {
	f := newFakes()
	f.audit.On("PruneBefore", mock.Anything, mock.AnythingOfType("time.Time")).Return(int64(3), nil)
	_, err := execute(t, f, "prune-audit")
	require.NoError(t, err)

	f = newFakes()
	f.audit.On("PruneBefore", mock.Anything, mock.Anything).Return(int64(0), errors.New("boom"))
	_, err = execute(t, f, "prune-audit")
	assert.ErrorContains(t, err, "op=cleanup.audit")
}
