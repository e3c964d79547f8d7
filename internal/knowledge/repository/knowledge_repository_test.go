package repository

import (
	"context"
	"testing"

	"email-assistant/internal/knowledge/domain"
	"email-assistant/pkg/database"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRepo(t *testing.T) KnowledgeRepository {
	t.Helper()
	db, err := database.OpenSQLite("file::memory:", nil)
	require.NoError(t, err)
	require.NoError(t, AutoMigrate(db))
	return NewKnowledgeRepository(db)
}

func TestKnowledgeRepository_CRUD(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)

	entry := &domain.Entry{
		Question:       "How do I reset my password?",
		Answer:         "Use the reset page.",
		Category:       "support",
		Embedding:      []float32{0.1, 0.2},
		EmbeddingModel: "test",
	}
	require.NoError(t, repo.Create(ctx, entry))
	require.NotEmpty(t, entry.ID)

	got, err := repo.FindByID(ctx, entry.ID)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "Use the reset page.", got.Answer)
	assert.Equal(t, []float32{0.1, 0.2}, got.Embedding)
	assert.True(t, got.HasEmbedding("test"))

	got.Answer = "Visit the reset page."
	require.NoError(t, repo.Update(ctx, got))
	got, err = repo.FindByID(ctx, entry.ID)
	require.NoError(t, err)
	assert.Equal(t, "Visit the reset page.", got.Answer)

	deleted, err := repo.Delete(ctx, entry.ID)
	require.NoError(t, err)
	assert.True(t, deleted)

	deleted, err = repo.Delete(ctx, entry.ID)
	require.NoError(t, err)
	assert.False(t, deleted)

	got, err = repo.FindByID(ctx, entry.ID)
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestKnowledgeRepository_ListByCategory(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)

	require.NoError(t, repo.CreateMany(ctx, []*domain.Entry{
		{Question: "q1", Answer: "a1", Category: "billing"},
		{Question: "q2", Answer: "a2", Category: "support"},
		{Question: "q3", Answer: "a3", Category: "billing"},
	}))

	all, err := repo.List(ctx, "")
	require.NoError(t, err)
	assert.Len(t, all, 3)

	billing, err := repo.List(ctx, "billing")
	require.NoError(t, err)
	assert.Len(t, billing, 2)

	n, err := repo.Count(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 3, n)
}

func TestKnowledgeRepository_ReplaceAll(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)

	require.NoError(t, repo.Create(ctx, &domain.Entry{Question: "old", Answer: "old"}))
	require.NoError(t, repo.ReplaceAll(ctx, []*domain.Entry{
		{Question: "new1", Answer: "a"},
		{Question: "new2", Answer: "b"},
	}))

	all, err := repo.List(ctx, "")
	require.NoError(t, err)
	require.Len(t, all, 2)
	for _, e := range all {
		assert.NotEqual(t, "old", e.Question)
	}
}
