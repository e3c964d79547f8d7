package domain

import "time"

// Principal is the caller identified by a validated API token.
type Principal struct {
	Subject   string    `json:"subject"`
	TokenID   string    `json:"token_id"`
	IssuedAt  time.Time `json:"issued_at"`
	ExpiresAt time.Time `json:"expires_at"`
}
