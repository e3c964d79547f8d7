package chroma

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"email-assistant/pkg/config"

	chroma "github.com/amikos-tech/chroma-go/pkg/api/v2"
	"github.com/amikos-tech/chroma-go/pkg/embeddings/gemini"
	"go.uber.org/zap"
)

const geminiEmbeddingModel = "text-embedding-004"

// Document is one knowledge base entry as stored in Chroma.
type Document struct {
	EntryID  string
	Text     string
	Answer   string
	Category string
}

// generation is one fully populated collection. Result ids are positions
// into answers.
type generation struct {
	name       string
	collection chroma.Collection
	answers    []string
}

// Store keeps the knowledge base in a Chroma collection. Every rebuild fills
// a brand new collection and then swaps it in, so queries never see a
// half-written one.
type Store struct {
	client    chroma.Client
	embedFunc *gemini.GeminiEmbeddingFunction
	prefix    string
	logger    *zap.Logger

	mu      sync.Mutex
	current atomic.Pointer[generation]
	// retired is the previous generation. It stays queryable until the next
	// swap so searches that loaded it before the swap can finish.
	retired *generation
}

func newGeminiEmbeddingFunction(apiKey string) (*gemini.GeminiEmbeddingFunction, error) {
	if apiKey != "" {
		os.Setenv("GEMINI_API_KEY", apiKey)
	}
	embedFunc, err := gemini.NewGeminiEmbeddingFunction(
		gemini.WithEnvAPIKey(),
		gemini.WithDefaultModel(geminiEmbeddingModel),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini embedding function: %w", err)
	}
	return embedFunc, nil
}

func NewStore(cfg *config.Config, logger *zap.Logger) (*Store, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	baseURL := cfg.ChromaURL
	if baseURL == "" && cfg.ChromaAPIKey != "" {
		baseURL = chroma.ChromaCloudEndpoint
	}
	if baseURL == "" {
		return nil, fmt.Errorf("CHROMA_URL or CHROMA_API_KEY is required")
	}

	opts := []chroma.ClientOption{chroma.WithBaseURL(baseURL)}
	if cfg.ChromaAPIKey != "" {
		opts = append(opts, chroma.WithCloudAPIKey(cfg.ChromaAPIKey))
	}
	switch {
	case cfg.ChromaDatabase != "" && cfg.ChromaTenant != "":
		opts = append(opts, chroma.WithDatabaseAndTenant(cfg.ChromaDatabase, cfg.ChromaTenant))
	case cfg.ChromaTenant != "":
		opts = append(opts, chroma.WithTenant(cfg.ChromaTenant))
	}

	embedFunc, err := newGeminiEmbeddingFunction(cfg.GeminiApiKey)
	if err != nil {
		return nil, err
	}

	client, err := chroma.NewHTTPClient(opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create Chroma client: %w", err)
	}

	prefix := cfg.ChromaCollection
	if prefix == "" {
		prefix = "knowledge-base"
	}
	return &Store{client: client, embedFunc: embedFunc, prefix: prefix, logger: logger}, nil
}

// Rebuild replaces the searchable set with docs. An empty set leaves the
// store unbuilt.
func (s *Store) Rebuild(ctx context.Context, docs []Document) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(docs) == 0 {
		s.swap(ctx, nil)
		return nil
	}

	name := fmt.Sprintf("%s-%d", s.prefix, time.Now().UnixNano())
	collection, err := s.client.CreateCollection(ctx, name, chroma.WithEmbeddingFunctionCreate(s.embedFunc))
	if err != nil {
		return fmt.Errorf("failed to create collection %s: %w", name, err)
	}

	ids := make([]chroma.DocumentID, len(docs))
	texts := make([]string, len(docs))
	metas := make([]chroma.DocumentMetadata, len(docs))
	answers := make([]string, len(docs))
	for i, d := range docs {
		meta, err := chroma.NewDocumentMetadataFromMap(map[string]interface{}{
			"entry_id": d.EntryID,
			"answer":   d.Answer,
			"category": d.Category,
		})
		if err != nil {
			s.drop(ctx, name)
			return fmt.Errorf("failed to create metadata: %w", err)
		}
		ids[i] = chroma.DocumentID(strconv.Itoa(i))
		texts[i] = d.Text
		metas[i] = meta
		answers[i] = d.Answer
	}

	if err := collection.Add(ctx, chroma.WithIDs(ids...), chroma.WithTexts(texts...), chroma.WithMetadatas(metas...)); err != nil {
		s.drop(ctx, name)
		return fmt.Errorf("failed to add documents: %w", err)
	}

	s.swap(ctx, &generation{name: name, collection: collection, answers: answers})
	s.logger.Info("chroma collection rebuilt", zap.String("collection", name), zap.Int("documents", len(docs)))
	return nil
}

// Search returns up to k answers nearest to query, closest first.
func (s *Store) Search(ctx context.Context, query string, k int) ([]string, error) {
	gen := s.current.Load()
	if gen == nil || k <= 0 {
		return []string{}, nil
	}
	if k > len(gen.answers) {
		k = len(gen.answers)
	}

	results, err := gen.collection.Query(ctx, chroma.WithQueryTexts(query), chroma.WithNResults(k))
	if err != nil {
		return nil, fmt.Errorf("failed to query collection: %w", err)
	}
	if results == nil || results.CountGroups() == 0 {
		return []string{}, nil
	}
	groups := results.GetIDGroups()
	if len(groups) == 0 {
		return []string{}, nil
	}

	ids := make([]string, len(groups[0]))
	for i, id := range groups[0] {
		ids[i] = string(id)
	}
	return answersFor(ids, gen.answers), nil
}

// Built reports whether a collection is live.
func (s *Store) Built() bool {
	return s.current.Load() != nil
}

// Close drops the live and retired collections.
func (s *Store) Close(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.swap(ctx, nil)
	s.swap(ctx, nil)
}

// swap publishes next and retires the previous generation. The generation
// retired by the swap before this one is dropped. Callers hold mu.
func (s *Store) swap(ctx context.Context, next *generation) {
	prev := s.current.Swap(next)
	if s.retired != nil {
		s.drop(ctx, s.retired.name)
	}
	s.retired = prev
}

func (s *Store) drop(ctx context.Context, name string) {
	if err := s.client.DeleteCollection(ctx, name); err != nil {
		s.logger.Warn("failed to delete stale collection", zap.String("collection", name), zap.Error(err))
	}
}

// answersFor maps result ids back to answers, skipping ids that are not a
// valid position.
func answersFor(ids []string, answers []string) []string {
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		pos, err := strconv.Atoi(id)
		if err != nil || pos < 0 || pos >= len(answers) {
			continue
		}
		out = append(out, answers[pos])
	}
	return out
}

// GeminiEmbedder exposes the Gemini embedding function for the local index.
type GeminiEmbedder struct {
	embedFunc *gemini.GeminiEmbeddingFunction
}

func NewGeminiEmbedder(apiKey string) (*GeminiEmbedder, error) {
	embedFunc, err := newGeminiEmbeddingFunction(apiKey)
	if err != nil {
		return nil, err
	}
	return &GeminiEmbedder{embedFunc: embedFunc}, nil
}

func (g *GeminiEmbedder) Model() string { return geminiEmbeddingModel }

func (g *GeminiEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return [][]float32{}, nil
	}
	embs, err := g.embedFunc.EmbedDocuments(ctx, texts)
	if err != nil {
		return nil, fmt.Errorf("gemini embedding failed: %w", err)
	}
	if len(embs) != len(texts) {
		return nil, fmt.Errorf("gemini returned %d embeddings for %d texts", len(embs), len(texts))
	}
	out := make([][]float32, len(embs))
	for i, e := range embs {
		out[i] = e.ContentAsFloat32()
	}
	return out, nil
}
