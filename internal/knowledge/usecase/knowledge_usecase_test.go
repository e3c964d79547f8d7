package usecase

import (
	"context"
	"errors"
	"strings"
	"testing"

	"email-assistant/internal/knowledge/domain"
	"email-assistant/internal/knowledge/repository"
	"email-assistant/pkg/database"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// keywordEmbedder maps text onto a vector of keyword presence flags plus a
// constant component.
type keywordEmbedder struct {
	words    []string
	fail     bool
	embedded int
}

func newKeywordEmbedder() *keywordEmbedder {
	return &keywordEmbedder{words: []string{"password", "billing", "refund", "account"}}
}

func (k *keywordEmbedder) Model() string { return "keyword-v1" }

func (k *keywordEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if k.fail {
		return nil, errors.New("connection refused")
	}
	k.embedded += len(texts)
	out := make([][]float32, len(texts))
	for i, t := range texts {
		t = strings.ToLower(t)
		v := make([]float32, len(k.words)+1)
		for j, w := range k.words {
			if strings.Contains(t, w) {
				v[j] = 1
			}
		}
		v[len(k.words)] = 1
		out[i] = v
	}
	return out, nil
}

var testSeed = []domain.EntryInput{
	{Question: "How do I reset my password?", Answer: "Use the password reset page.", Category: "support"},
	{Question: "How do I update billing details?", Answer: "Go to Settings > Billing.", Category: "billing"},
	{Question: "What is your refund policy?", Answer: "Refunds within 30 days.", Category: "billing"},
	{Question: "I'm locked out of my account", Answer: "Wait 15 minutes, then reset your password.", Category: "security"},
}

func newTestUsecase(t *testing.T, embedder *keywordEmbedder) (KnowledgeUsecase, *LocalIndex) {
	t.Helper()
	db, err := database.OpenSQLite("file::memory:", nil)
	require.NoError(t, err)
	require.NoError(t, repository.AutoMigrate(db))

	var index *LocalIndex
	if embedder != nil {
		index = NewLocalIndex(embedder, nil)
		return NewKnowledgeUsecase(repository.NewKnowledgeRepository(db), index, embedder, nil), index
	}
	index = NewLocalIndex(nil, nil)
	return NewKnowledgeUsecase(repository.NewKnowledgeRepository(db), index, nil, nil), index
}

func TestSearch_EmptyIndexReturnsEmptyList(t *testing.T) {
	uc, _ := newTestUsecase(t, newKeywordEmbedder())

	got, err := uc.Search(context.Background(), "reset password", 3)
	require.NoError(t, err)
	assert.NotNil(t, got)
	assert.Empty(t, got)
}

func TestSeed_ThenSearchByVector(t *testing.T) {
	ctx := context.Background()
	emb := newKeywordEmbedder()
	uc, _ := newTestUsecase(t, emb)

	n, err := uc.Seed(ctx, testSeed, false)
	require.NoError(t, err)
	assert.Equal(t, 4, n)
	// Vectors precomputed on write are reused by the rebuild.
	assert.Equal(t, 4, emb.embedded)

	got, err := uc.Search(ctx, "I need to reset my password", 2)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "Use the password reset page.", got[0])
	assert.Equal(t, "Wait 15 minutes, then reset your password.", got[1])

	n, err = uc.Seed(ctx, testSeed, false)
	require.NoError(t, err)
	assert.Zero(t, n)

	n, err = uc.Seed(ctx, testSeed[:1], true)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	all, err := uc.List(ctx, "")
	require.NoError(t, err)
	assert.Len(t, all, 1)
}

func TestSeed_DefaultItems(t *testing.T) {
	uc, _ := newTestUsecase(t, nil)
	n, err := uc.Seed(context.Background(), DefaultSeed, false)
	require.NoError(t, err)
	assert.Equal(t, len(DefaultSeed), n)

	billing, err := uc.List(context.Background(), "billing")
	require.NoError(t, err)
	assert.Len(t, billing, 4)
}

func TestMutationsRebuildIndex(t *testing.T) {
	ctx := context.Background()
	uc, _ := newTestUsecase(t, newKeywordEmbedder())

	entry, err := uc.Create(ctx, domain.EntryInput{Question: "Refund timing?", Answer: "Refunds take 5 days.", Category: "Billing"})
	require.NoError(t, err)
	assert.Equal(t, "billing", entry.Category)

	got, err := uc.Search(ctx, "refund", 3)
	require.NoError(t, err)
	assert.Equal(t, []string{"Refunds take 5 days."}, got)

	_, err = uc.Update(ctx, entry.ID, domain.EntryInput{Question: "Refund timing?", Answer: "Refunds take 3 days."})
	require.NoError(t, err)
	got, err = uc.Search(ctx, "refund", 3)
	require.NoError(t, err)
	assert.Equal(t, []string{"Refunds take 3 days."}, got)

	require.NoError(t, uc.Delete(ctx, entry.ID))
	got, err = uc.Search(ctx, "refund", 3)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestNotFoundAndValidation(t *testing.T) {
	ctx := context.Background()
	uc, _ := newTestUsecase(t, nil)

	_, err := uc.Get(ctx, "missing")
	assert.ErrorIs(t, err, ErrEntryNotFound)

	assert.ErrorIs(t, uc.Delete(ctx, "missing"), ErrEntryNotFound)

	_, err = uc.Update(ctx, "missing", domain.EntryInput{Question: "q", Answer: "a"})
	assert.ErrorIs(t, err, ErrEntryNotFound)

	_, err = uc.Create(ctx, domain.EntryInput{Question: "  ", Answer: "a"})
	assert.ErrorIs(t, err, ErrInvalidEntry)
}

func TestSearch_FallsBackToTextMatch(t *testing.T) {
	ctx := context.Background()
	emb := newKeywordEmbedder()
	emb.fail = true
	uc, index := newTestUsecase(t, emb)

	_, err := uc.Seed(ctx, testSeed, false)
	require.NoError(t, err)

	snap := index.current.Load()
	require.NotNil(t, snap)
	assert.Nil(t, snap.vectors)

	got, err := uc.Search(ctx, "refund policy", 1)
	require.NoError(t, err)
	assert.Equal(t, []string{"Refunds within 30 days."}, got)
}

func TestSearch_NoEmbedderUsesTextMatch(t *testing.T) {
	ctx := context.Background()
	uc, _ := newTestUsecase(t, nil)
	_, err := uc.Seed(ctx, testSeed, false)
	require.NoError(t, err)

	got, err := uc.Search(ctx, "billing details", 3)
	require.NoError(t, err)
	require.NotEmpty(t, got)
	assert.Equal(t, "Go to Settings > Billing.", got[0])
}
