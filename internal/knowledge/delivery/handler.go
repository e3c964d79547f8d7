package delivery

import (
	"errors"
	"net/http"
	"strconv"

	"email-assistant/internal/knowledge/domain"
	"email-assistant/internal/knowledge/usecase"

	"github.com/gin-gonic/gin"
)

// KnowledgeHandler handles knowledge base HTTP requests
type KnowledgeHandler struct {
	knowledgeUsecase usecase.KnowledgeUsecase
	defaultTopK      func() int
}

// NewKnowledgeHandler creates a new KnowledgeHandler. defaultTopK supplies k
// for search requests that omit it.
func NewKnowledgeHandler(knowledgeUsecase usecase.KnowledgeUsecase, defaultTopK func() int) *KnowledgeHandler {
	if defaultTopK == nil {
		defaultTopK = func() int { return 3 }
	}
	return &KnowledgeHandler{knowledgeUsecase: knowledgeUsecase, defaultTopK: defaultTopK}
}

// EntryRequest represents the request body for creating or updating an entry
type EntryRequest struct {
	Question string `json:"question" binding:"required"`
	Answer   string `json:"answer" binding:"required"`
	Category string `json:"category"`
}

func (r EntryRequest) input() domain.EntryInput {
	return domain.EntryInput{Question: r.Question, Answer: r.Answer, Category: r.Category}
}

// SeedRequest represents the request body for seeding. Without items the
// built-in defaults are used.
type SeedRequest struct {
	Items   []EntryRequest `json:"items"`
	Replace bool           `json:"replace"`
}

// ListEntries returns all entries
// GET /api/knowledge-base?category=billing
func (h *KnowledgeHandler) ListEntries(c *gin.Context) {
	entries, err := h.knowledgeUsecase.List(c.Request.Context(), c.Query("category"))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, entries)
}

// GetEntry returns one entry
// GET /api/knowledge-base/:id
func (h *KnowledgeHandler) GetEntry(c *gin.Context) {
	entry, err := h.knowledgeUsecase.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, entry)
}

// CreateEntry creates an entry and rebuilds the index
// POST /api/knowledge-base
func (h *KnowledgeHandler) CreateEntry(c *gin.Context) {
	var req EntryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	entry, err := h.knowledgeUsecase.Create(c.Request.Context(), req.input())
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, entry)
}

// UpdateEntry replaces an entry's content
// PUT /api/knowledge-base/:id
func (h *KnowledgeHandler) UpdateEntry(c *gin.Context) {
	var req EntryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	entry, err := h.knowledgeUsecase.Update(c.Request.Context(), c.Param("id"), req.input())
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, entry)
}

// DeleteEntry removes an entry
// DELETE /api/knowledge-base/:id
func (h *KnowledgeHandler) DeleteEntry(c *gin.Context) {
	if err := h.knowledgeUsecase.Delete(c.Request.Context(), c.Param("id")); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Knowledge base item deleted"})
}

// SeedEntries loads entries in bulk
// POST /api/knowledge-base/seed
func (h *KnowledgeHandler) SeedEntries(c *gin.Context) {
	var req SeedRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
	}

	items := usecase.DefaultSeed
	if len(req.Items) > 0 {
		items = make([]domain.EntryInput, len(req.Items))
		for i, it := range req.Items {
			items[i] = it.input()
		}
	}

	n, err := h.knowledgeUsecase.Seed(c.Request.Context(), items, req.Replace)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"created": n})
}

// SearchEntries runs a retrieval query against the index
// GET /api/knowledge-base/search?q=password&k=3
func (h *KnowledgeHandler) SearchEntries(c *gin.Context) {
	q := c.Query("q")
	if q == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "q is required"})
		return
	}
	k := h.defaultTopK()
	if raw := c.Query("k"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "k must be a positive integer"})
			return
		}
		k = parsed
	}

	answers, err := h.knowledgeUsecase.Search(c.Request.Context(), q, k)
	if err != nil {
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"query": q, "results": answers})
}

func writeError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, usecase.ErrEntryNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "Knowledge base item not found"})
	case errors.Is(err, usecase.ErrInvalidEntry):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
	}
}
