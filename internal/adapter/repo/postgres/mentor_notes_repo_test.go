package postgres_test

import (
	"context"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fairyhunter13/mainalyze/internal/adapter/repo/postgres"
	"github.com/fairyhunter13/mainalyze/internal/domain"
)

func TestMentorNoteRepo_FindPicksTableByKind(t *testing.T) {
	ctx := context.Background()
	pool := &poolStub{rows: []pgx.Row{
		rowOf("why b is right", "", time.Now()),
		rowOf("do this", "Add data", time.Now()),
	}}
	repo := postgres.NewMentorNoteRepo(pool)

	n, err := repo.Find(ctx, domain.NoteKey{Kind: domain.NotePrelimsExplanation, ParentID: "s1", ItemIndex: 2})
	require.NoError(t, err)
	assert.Equal(t, "why b is right", n.Body)
	assert.Contains(t, pool.lastSQL(), "FROM prelims_personalized_explanations")

	n, err = repo.Find(ctx, domain.NoteKey{Kind: domain.NoteMainsGuidance, ParentID: "e1", ItemIndex: 0})
	require.NoError(t, err)
	assert.Equal(t, "Add data", n.ItemText)
	assert.Contains(t, pool.lastSQL(), "FROM mains_mentor_guidance")
}

func TestMentorNoteRepo_FindMissAndBadKind(t *testing.T) {
	ctx := context.Background()
	pool := &poolStub{rows: []pgx.Row{rowErr(pgx.ErrNoRows)}}
	_, err := postgres.NewMentorNoteRepo(pool).Find(ctx, domain.NoteKey{Kind: domain.NoteMainsGuidance, ParentID: "e1"})
	assert.ErrorIs(t, err, domain.ErrNotFound)

	_, err = postgres.NewMentorNoteRepo(pool).Find(ctx, domain.NoteKey{Kind: "other"})
	assert.ErrorIs(t, err, domain.ErrInvalidArgument)
}

func TestMentorNoteRepo_InsertKeepsFirstWriter(t *testing.T) {
	pool := &poolStub{}
	err := postgres.NewMentorNoteRepo(pool).Insert(context.Background(), domain.MentorNote{
		Key:  domain.NoteKey{Kind: domain.NoteMainsGuidance, ParentID: "e1", ItemIndex: 1},
		Body: "guide", ItemText: "item",
	})
	require.NoError(t, err)
	assert.Contains(t, pool.lastSQL(), "ON CONFLICT (evaluation_id, action_item_index) DO NOTHING")
}
