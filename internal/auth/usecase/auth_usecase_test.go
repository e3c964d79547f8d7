package usecase

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIssueAndValidate(t *testing.T) {
	uc := NewAuthUsecase("s3cret", time.Hour)

	tok, err := uc.IssueToken("reviewer@example.com")
	require.NoError(t, err)
	assert.Equal(t, "Bearer", tok.TokenType)

	principal, err := uc.ValidateToken(tok.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, "reviewer@example.com", principal.Subject)
	assert.NotEmpty(t, principal.TokenID)
	assert.WithinDuration(t, tok.ExpiresAt, principal.ExpiresAt, time.Second)
}

func TestValidateToken_Rejects(t *testing.T) {
	uc := NewAuthUsecase("s3cret", time.Hour)
	other := NewAuthUsecase("different", time.Hour)

	foreign, err := other.IssueToken("reviewer")
	require.NoError(t, err)

	expiredUC := NewAuthUsecase("s3cret", time.Hour).(*authUsecase)
	expiredUC.now = func() time.Time { return time.Now().Add(-2 * time.Hour) }
	expired, err := expiredUC.IssueToken("reviewer")
	require.NoError(t, err)

	none := jwt.NewWithClaims(jwt.SigningMethodNone, jwt.RegisteredClaims{
		Subject:   "reviewer",
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	})
	unsigned, err := none.SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	noExpiry, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{Subject: "reviewer"}).SignedString([]byte("s3cret"))
	require.NoError(t, err)

	tests := map[string]string{
		"wrong secret": foreign.AccessToken,
		"expired":      expired.AccessToken,
		"alg none":     unsigned,
		"no expiry":    noExpiry,
		"garbage":      "not.a.token",
	}
	for name, token := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := uc.ValidateToken(token)
			assert.ErrorIs(t, err, ErrInvalidToken)
		})
	}
}

func TestNoSecret(t *testing.T) {
	uc := NewAuthUsecase("", 0)
	_, err := uc.IssueToken("reviewer")
	assert.ErrorIs(t, err, ErrNoSecret)
	_, err = uc.ValidateToken("x")
	assert.ErrorIs(t, err, ErrNoSecret)
}
