package usecase

import (
	"errors"
	"fmt"
	"strings"
	"time"

	authdomain "email-assistant/internal/auth/domain"
	authdto "email-assistant/internal/auth/dto"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

var (
	ErrInvalidToken = errors.New("invalid token")
	ErrNoSecret     = errors.New("no JWT secret configured")
)

// AuthUsecase issues and validates API bearer tokens
type AuthUsecase interface {
	IssueToken(subject string) (*authdto.TokenResponse, error)
	ValidateToken(tokenString string) (*authdomain.Principal, error)
}

// authUsecase implements AuthUsecase interface
type authUsecase struct {
	secret []byte
	expiry time.Duration
	now    func() time.Time
}

// NewAuthUsecase creates a new instance of authUsecase
func NewAuthUsecase(secret string, expiry time.Duration) AuthUsecase {
	if expiry <= 0 {
		expiry = 24 * time.Hour
	}
	return &authUsecase{
		secret: []byte(secret),
		expiry: expiry,
		now:    time.Now,
	}
}

func (u *authUsecase) IssueToken(subject string) (*authdto.TokenResponse, error) {
	if len(u.secret) == 0 {
		return nil, ErrNoSecret
	}
	subject = strings.TrimSpace(subject)
	if subject == "" {
		return nil, errors.New("subject is required")
	}

	now := u.now()
	expiresAt := now.Add(u.expiry)
	claims := jwt.RegisteredClaims{
		Subject:   subject,
		ID:        uuid.New().String(),
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(expiresAt),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(u.secret)
	if err != nil {
		return nil, fmt.Errorf("failed to sign token: %w", err)
	}

	return &authdto.TokenResponse{
		AccessToken: signed,
		TokenType:   "Bearer",
		Subject:     subject,
		ExpiresAt:   expiresAt.UTC(),
	}, nil
}

func (u *authUsecase) ValidateToken(tokenString string) (*authdomain.Principal, error) {
	if len(u.secret) == 0 {
		return nil, ErrNoSecret
	}

	var claims jwt.RegisteredClaims
	token, err := jwt.ParseWithClaims(tokenString, &claims, func(token *jwt.Token) (interface{}, error) {
		return u.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithTimeFunc(u.now), jwt.WithExpirationRequired())
	if err != nil || !token.Valid {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if claims.Subject == "" {
		return nil, fmt.Errorf("%w: missing subject", ErrInvalidToken)
	}

	principal := &authdomain.Principal{
		Subject: claims.Subject,
		TokenID: claims.ID,
	}
	if claims.IssuedAt != nil {
		principal.IssuedAt = claims.IssuedAt.Time
	}
	if claims.ExpiresAt != nil {
		principal.ExpiresAt = claims.ExpiresAt.Time
	}
	return principal, nil
}
