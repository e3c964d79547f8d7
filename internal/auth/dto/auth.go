package dto

import "time"

type TokenResponse struct {
	AccessToken string    `json:"access_token"`
	TokenType   string    `json:"token_type"`
	Subject     string    `json:"subject"`
	ExpiresAt   time.Time `json:"expires_at"`
}
