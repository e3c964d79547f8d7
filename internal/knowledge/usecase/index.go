package usecase

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync/atomic"

	"email-assistant/internal/knowledge/domain"
	"email-assistant/pkg/ai"
	"email-assistant/pkg/chroma"
	"email-assistant/pkg/fuzzy"
	"email-assistant/pkg/vectorindex"

	"go.uber.org/zap"
)

// Index answers similarity queries over the knowledge base. It is a derived
// cache: Rebuild replaces its whole content and Search never sees a partial
// rebuild.
type Index interface {
	Rebuild(ctx context.Context, entries []*domain.Entry) error
	Search(ctx context.Context, query string, k int) ([]string, error)
}

// snapshot is an immutable, fully built view of the knowledge base.
// vectors is nil when embeddings were unavailable at build time.
type snapshot struct {
	vectors *vectorindex.FlatL2
	answers []string
	texts   []string
}

// LocalIndex keeps an in-process exact L2 index.
type LocalIndex struct {
	embedder ai.Embedder
	logger   *zap.Logger
	current  atomic.Pointer[snapshot]
}

// NewLocalIndex creates an unbuilt index. embedder may be nil, in which case
// searches rank by fuzzy text match.
func NewLocalIndex(embedder ai.Embedder, logger *zap.Logger) *LocalIndex {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LocalIndex{embedder: embedder, logger: logger}
}

func (l *LocalIndex) Rebuild(ctx context.Context, entries []*domain.Entry) error {
	if len(entries) == 0 {
		l.current.Store(nil)
		return nil
	}

	snap := &snapshot{
		answers: make([]string, len(entries)),
		texts:   make([]string, len(entries)),
	}
	for i, e := range entries {
		snap.answers[i] = e.Answer
		snap.texts[i] = e.Text()
	}

	if l.embedder != nil {
		vectors, err := l.embedAll(ctx, entries)
		if err == nil {
			snap.vectors, err = vectorindex.NewFlatL2(vectors)
		}
		if err != nil {
			l.logger.Warn("embedding knowledge base failed, serving text matches",
				zap.Int("entries", len(entries)), zap.Error(err))
			snap.vectors = nil
		}
	}

	l.current.Store(snap)
	return nil
}

// embedAll reuses stored vectors produced by the current model and embeds
// the rest in one batch.
func (l *LocalIndex) embedAll(ctx context.Context, entries []*domain.Entry) ([][]float32, error) {
	model := l.embedder.Model()
	vectors := make([][]float32, len(entries))
	var missing []int
	var texts []string
	for i, e := range entries {
		if e.HasEmbedding(model) {
			vectors[i] = e.Embedding
			continue
		}
		missing = append(missing, i)
		texts = append(texts, e.Text())
	}
	if len(missing) == 0 {
		return vectors, nil
	}

	embedded, err := l.embedder.Embed(ctx, texts)
	if err != nil {
		return nil, err
	}
	if len(embedded) != len(missing) {
		return nil, fmt.Errorf("embedder returned %d vectors for %d texts", len(embedded), len(missing))
	}
	for j, i := range missing {
		vectors[i] = embedded[j]
		entries[i].Embedding = embedded[j]
		entries[i].EmbeddingModel = model
	}
	return vectors, nil
}

// Search returns up to k answers closest to query. An unbuilt index yields
// an empty list.
func (l *LocalIndex) Search(ctx context.Context, query string, k int) ([]string, error) {
	snap := l.current.Load()
	if snap == nil || k <= 0 {
		return []string{}, nil
	}

	if snap.vectors != nil {
		answers, err := l.searchVectors(ctx, snap, query, k)
		if err == nil {
			return answers, nil
		}
		l.logger.Warn("vector search failed, falling back to text match", zap.Error(err))
	}
	return searchText(snap, query, k), nil
}

func (l *LocalIndex) searchVectors(ctx context.Context, snap *snapshot, query string, k int) ([]string, error) {
	embedded, err := l.embedder.Embed(ctx, []string{query})
	if err != nil {
		return nil, err
	}
	if len(embedded) != 1 {
		return nil, errors.New("embedder returned no query vector")
	}
	hits, err := snap.vectors.Search(embedded[0], k)
	if err != nil {
		return nil, err
	}

	answers := make([]string, 0, len(hits))
	for _, h := range hits {
		if h.Index < 0 || h.Index >= len(snap.answers) {
			continue
		}
		answers = append(answers, snap.answers[h.Index])
	}
	return answers, nil
}

func searchText(snap *snapshot, query string, k int) []string {
	type scored struct {
		pos   int
		score float64
	}
	var ranked []scored
	for i, text := range snap.texts {
		if s := fuzzy.TextScore(query, text); s > 0 {
			ranked = append(ranked, scored{pos: i, score: s})
		}
	}
	sort.SliceStable(ranked, func(a, b int) bool { return ranked[a].score > ranked[b].score })

	answers := make([]string, 0, min(k, len(ranked)))
	for _, r := range ranked {
		if len(answers) == k {
			break
		}
		answers = append(answers, snap.answers[r.pos])
	}
	return answers
}

// ChromaIndex stores the knowledge base in Chroma.
type ChromaIndex struct {
	store *chroma.Store
}

func NewChromaIndex(store *chroma.Store) *ChromaIndex {
	return &ChromaIndex{store: store}
}

func (c *ChromaIndex) Rebuild(ctx context.Context, entries []*domain.Entry) error {
	docs := make([]chroma.Document, len(entries))
	for i, e := range entries {
		docs[i] = chroma.Document{
			EntryID:  e.ID,
			Text:     e.Text(),
			Answer:   e.Answer,
			Category: e.Category,
		}
	}
	return c.store.Rebuild(ctx, docs)
}

func (c *ChromaIndex) Search(ctx context.Context, query string, k int) ([]string, error) {
	return c.store.Search(ctx, query, k)
}
