package domain

import (
	"time"

	"email-assistant/pkg/mail"
	"email-assistant/pkg/signals"
)

// Email is a fetched support email together with its triage signals and
// reply state.
type Email struct {
	ID          string    `json:"id" gorm:"primaryKey"`
	MessageID   string    `json:"message_id" gorm:"uniqueIndex;not null"`
	SenderEmail string    `json:"sender_email" gorm:"index"`
	Subject     string    `json:"subject"`
	Body        string    `json:"body" gorm:"type:text"`
	ReceivedAt  time.Time `json:"received_at" gorm:"index"`

	Sentiment     signals.Sentiment     `json:"sentiment" gorm:"index"`
	Priority      signals.Priority      `json:"priority" gorm:"index"`
	PriorityScore int                   `json:"priority_score"`
	Category      signals.Category      `json:"category" gorm:"index"`
	ExtractedInfo signals.ExtractedInfo `json:"extracted_info" gorm:"serializer:json;type:text"`

	IsProcessed        bool     `json:"is_processed" gorm:"index;default:false"`
	IsResponded        bool     `json:"is_responded" gorm:"index;default:false"`
	GeneratedResponse  *string  `json:"generated_response" gorm:"type:text"`
	ResponseConfidence *float64 `json:"response_confidence,omitempty"`
	ResponseRationale  string   `json:"response_rationale,omitempty" gorm:"type:text"`
	ResponseSent       bool     `json:"response_sent" gorm:"default:false"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// TableName specifies the table name for GORM
func (Email) TableName() string {
	return "emails"
}

// ApplyAnalysis overwrites the derived fields.
func (e *Email) ApplyAnalysis(a signals.Analysis) {
	e.Sentiment = a.Sentiment
	e.Priority = a.Priority
	e.PriorityScore = a.PriorityScore
	e.Category = a.Category
	e.ExtractedInfo = a.Info
}

// RawEmail is one message as delivered by a mail transport, before triage.
type RawEmail = mail.Message

// EmailFilter narrows an email listing. Zero values mean "any".
type EmailFilter struct {
	Sentiment   signals.Sentiment
	Priority    signals.Priority
	Category    signals.Category
	IsProcessed *bool
	IsResponded *bool
	From        *time.Time
	To          *time.Time
	Query       string
	Limit       int
	Offset      int
}

// EmailUpdate is a partial update; nil fields are left untouched.
type EmailUpdate struct {
	Sentiment         *signals.Sentiment `json:"sentiment"`
	Priority          *signals.Priority  `json:"priority"`
	Category          *signals.Category  `json:"category"`
	IsProcessed       *bool              `json:"is_processed"`
	IsResponded       *bool              `json:"is_responded"`
	GeneratedResponse *string            `json:"generated_response"`
	ResponseSent      *bool              `json:"response_sent"`
}
