package dto

import (
	"time"

	emaildomain "email-assistant/internal/email/domain"
)

type EmailsResponse struct {
	Emails []*emaildomain.Email `json:"emails"`
	Limit  int                  `json:"limit"`
	Offset int                  `json:"offset"`
	Total  int64                `json:"total"`
}

type QueueResponse struct {
	Emails []*emaildomain.Email `json:"emails"`
	Total  int                  `json:"total"`
}

// RawEmailRequest is one message of an ingest batch.
type RawEmailRequest struct {
	MessageID   string    `json:"message_id"`
	SenderEmail string    `json:"sender_email"`
	Subject     string    `json:"subject"`
	Body        string    `json:"body"`
	ReceivedAt  time.Time `json:"received_at"`
}

func (r RawEmailRequest) Raw() emaildomain.RawEmail {
	return emaildomain.RawEmail{
		MessageID:  r.MessageID,
		From:       r.SenderEmail,
		Subject:    r.Subject,
		Body:       r.Body,
		ReceivedAt: r.ReceivedAt,
	}
}

type IngestRequest struct {
	Emails []RawEmailRequest `json:"emails" binding:"required"`
}

type GenerateResponseRequest struct {
	CustomInstructions string `json:"custom_instructions"`
}

type SendResponseRequest struct {
	ResponseText string `json:"response_text"`
}

type ReprocessRequest struct {
	EmailIDs []string `json:"email_ids"`
}
