package domain

import "time"

// Entry is a knowledge base item used as retrieval context for replies.
type Entry struct {
	ID             string    `json:"id" gorm:"primaryKey"`
	Question       string    `json:"question" gorm:"type:text;not null"`
	Answer         string    `json:"answer" gorm:"type:text;not null"`
	Category       string    `json:"category" gorm:"index"`
	Embedding      []float32 `json:"-" gorm:"serializer:json;type:text"`
	EmbeddingModel string    `json:"-"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// TableName specifies the table name for GORM
func (Entry) TableName() string {
	return "knowledge_base"
}

// Text is what gets embedded for retrieval.
func (e *Entry) Text() string {
	return e.Question + " " + e.Answer
}

// HasEmbedding reports whether the stored vector was produced by model.
func (e *Entry) HasEmbedding(model string) bool {
	return len(e.Embedding) > 0 && model != "" && e.EmbeddingModel == model
}

// EntryInput is the writable part of an Entry.
type EntryInput struct {
	Question string `json:"question"`
	Answer   string `json:"answer"`
	Category string `json:"category"`
}
