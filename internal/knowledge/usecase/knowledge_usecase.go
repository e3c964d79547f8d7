package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"email-assistant/internal/knowledge/domain"
	"email-assistant/internal/knowledge/repository"
	"email-assistant/pkg/ai"

	"go.uber.org/zap"
)

var (
	ErrEntryNotFound = errors.New("knowledge base entry not found")
	ErrInvalidEntry  = errors.New("question and answer are required")
)

// KnowledgeUsecase manages knowledge base entries and keeps the retrieval
// index in step with them.
type KnowledgeUsecase interface {
	List(ctx context.Context, category string) ([]*domain.Entry, error)
	Get(ctx context.Context, id string) (*domain.Entry, error)
	Create(ctx context.Context, in domain.EntryInput) (*domain.Entry, error)
	Update(ctx context.Context, id string, in domain.EntryInput) (*domain.Entry, error)
	Delete(ctx context.Context, id string) error
	// Seed loads items into the knowledge base. Without replace it only
	// fills an empty knowledge base and returns 0 otherwise.
	Seed(ctx context.Context, items []domain.EntryInput, replace bool) (int, error)
	Search(ctx context.Context, query string, k int) ([]string, error)
	// Rebuild reloads every entry into the index.
	Rebuild(ctx context.Context) error
}

type knowledgeUsecase struct {
	repo     repository.KnowledgeRepository
	index    Index
	embedder ai.Embedder
	logger   *zap.Logger

	// rebuilds must not interleave, or an older entry set could win the swap
	rebuildMu sync.Mutex
}

// NewKnowledgeUsecase wires the repository to index. embedder is optional;
// when set, entries are embedded on write so rebuilds can reuse the vectors.
func NewKnowledgeUsecase(repo repository.KnowledgeRepository, index Index, embedder ai.Embedder, logger *zap.Logger) KnowledgeUsecase {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &knowledgeUsecase{repo: repo, index: index, embedder: embedder, logger: logger}
}

func (u *knowledgeUsecase) List(ctx context.Context, category string) ([]*domain.Entry, error) {
	entries, err := u.repo.List(ctx, category)
	if err != nil {
		return nil, fmt.Errorf("failed to list knowledge base: %w", err)
	}
	if entries == nil {
		entries = []*domain.Entry{}
	}
	return entries, nil
}

func (u *knowledgeUsecase) Get(ctx context.Context, id string) (*domain.Entry, error) {
	entry, err := u.repo.FindByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to load entry %s: %w", id, err)
	}
	if entry == nil {
		return nil, ErrEntryNotFound
	}
	return entry, nil
}

func (u *knowledgeUsecase) Create(ctx context.Context, in domain.EntryInput) (*domain.Entry, error) {
	in, err := normalizeInput(in)
	if err != nil {
		return nil, err
	}
	entry := &domain.Entry{Question: in.Question, Answer: in.Answer, Category: in.Category}
	u.embed(ctx, entry)

	if err := u.repo.Create(ctx, entry); err != nil {
		return nil, fmt.Errorf("failed to create entry: %w", err)
	}
	u.rebuildAfterWrite(ctx, "create")
	return entry, nil
}

func (u *knowledgeUsecase) Update(ctx context.Context, id string, in domain.EntryInput) (*domain.Entry, error) {
	in, err := normalizeInput(in)
	if err != nil {
		return nil, err
	}
	entry, err := u.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	textChanged := entry.Question != in.Question || entry.Answer != in.Answer
	entry.Question = in.Question
	entry.Answer = in.Answer
	entry.Category = in.Category
	if textChanged {
		entry.Embedding = nil
		entry.EmbeddingModel = ""
		u.embed(ctx, entry)
	}

	if err := u.repo.Update(ctx, entry); err != nil {
		return nil, fmt.Errorf("failed to update entry %s: %w", id, err)
	}
	u.rebuildAfterWrite(ctx, "update")
	return entry, nil
}

func (u *knowledgeUsecase) Delete(ctx context.Context, id string) error {
	deleted, err := u.repo.Delete(ctx, id)
	if err != nil {
		return fmt.Errorf("failed to delete entry %s: %w", id, err)
	}
	if !deleted {
		return ErrEntryNotFound
	}
	u.rebuildAfterWrite(ctx, "delete")
	return nil
}

func (u *knowledgeUsecase) Seed(ctx context.Context, items []domain.EntryInput, replace bool) (int, error) {
	if !replace {
		n, err := u.repo.Count(ctx)
		if err != nil {
			return 0, fmt.Errorf("failed to count knowledge base: %w", err)
		}
		if n > 0 {
			u.logger.Info("knowledge base already populated, skipping seed", zap.Int64("existing", n))
			return 0, nil
		}
	}

	entries := make([]*domain.Entry, 0, len(items))
	for i, item := range items {
		in, err := normalizeInput(item)
		if err != nil {
			return 0, fmt.Errorf("seed item %d: %w", i, err)
		}
		entries = append(entries, &domain.Entry{Question: in.Question, Answer: in.Answer, Category: in.Category})
	}
	u.embedBatch(ctx, entries)

	var err error
	if replace {
		err = u.repo.ReplaceAll(ctx, entries)
	} else {
		err = u.repo.CreateMany(ctx, entries)
	}
	if err != nil {
		return 0, fmt.Errorf("failed to seed knowledge base: %w", err)
	}

	u.rebuildAfterWrite(ctx, "seed")
	return len(entries), nil
}

func (u *knowledgeUsecase) Search(ctx context.Context, query string, k int) ([]string, error) {
	return u.index.Search(ctx, query, k)
}

func (u *knowledgeUsecase) Rebuild(ctx context.Context) error {
	u.rebuildMu.Lock()
	defer u.rebuildMu.Unlock()

	entries, err := u.repo.List(ctx, "")
	if err != nil {
		return fmt.Errorf("failed to load knowledge base: %w", err)
	}
	if err := u.index.Rebuild(ctx, entries); err != nil {
		return fmt.Errorf("failed to rebuild index: %w", err)
	}
	u.logger.Info("knowledge index rebuilt", zap.Int("entries", len(entries)))
	return nil
}

// rebuildAfterWrite refreshes the index after a committed write. The write
// itself already succeeded, so a failed rebuild is only logged.
func (u *knowledgeUsecase) rebuildAfterWrite(ctx context.Context, op string) {
	if err := u.Rebuild(ctx); err != nil {
		u.logger.Error("index rebuild failed", zap.String("op", op), zap.Error(err))
	}
}

func (u *knowledgeUsecase) embed(ctx context.Context, entry *domain.Entry) {
	u.embedBatch(ctx, []*domain.Entry{entry})
}

func (u *knowledgeUsecase) embedBatch(ctx context.Context, entries []*domain.Entry) {
	if u.embedder == nil || len(entries) == 0 {
		return
	}
	texts := make([]string, len(entries))
	for i, e := range entries {
		texts[i] = e.Text()
	}
	vectors, err := u.embedder.Embed(ctx, texts)
	if err != nil || len(vectors) != len(entries) {
		u.logger.Warn("precomputing embeddings failed", zap.Int("entries", len(entries)), zap.Error(err))
		return
	}
	for i, e := range entries {
		e.Embedding = vectors[i]
		e.EmbeddingModel = u.embedder.Model()
	}
}

func normalizeInput(in domain.EntryInput) (domain.EntryInput, error) {
	in.Question = strings.TrimSpace(in.Question)
	in.Answer = strings.TrimSpace(in.Answer)
	in.Category = strings.ToLower(strings.TrimSpace(in.Category))
	if in.Question == "" || in.Answer == "" {
		return in, ErrInvalidEntry
	}
	if in.Category == "" {
		in.Category = "general"
	}
	return in, nil
}
