package services

import (
	"fmt"
	"time"

	"taskhub/internal/models"

	"github.com/gofrs/uuid"
	"github.com/golang-jwt/jwt/v5"
)

const (
	tokenIssuer   = "taskhub-backend"
	tokenAudience = "taskhub-users"
)

// TokenClaims is the verified identity carried by a bearer token.
type TokenClaims struct {
	UserID uuid.UUID
	Email  string
	Name   *string
}

type TokenService interface {
	Issue(user *models.User) (string, error)
	Verify(raw string) (*TokenClaims, error)
}

type TokenServiceImpl struct {
	secret []byte
	ttl    time.Duration
}

func NewTokenService(secret string, ttl time.Duration) *TokenServiceImpl {
	return &TokenServiceImpl{secret: []byte(secret), ttl: ttl}
}

// Issue signs a flat-expiry bearer token for the user. There are no refresh
// or rotation semantics; the token is valid until exp and no longer.
func (s *TokenServiceImpl) Issue(user *models.User) (string, error) {
	now := time.Now()

	claims := jwt.MapClaims{
		"sub":   user.ID.String(),
		"email": user.Email,
		"iat":   now.Unix(),
		"exp":   now.Add(s.ttl).Unix(),
		"iss":   tokenIssuer,
		"aud":   tokenAudience,
	}
	if user.Name != nil {
		claims["name"] = *user.Name
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return signed, nil
}

// Verify parses and validates a bearer token. Bad signature, wrong signing
// method, malformed payload and expiry all collapse into ErrInvalidToken.
func (s *TokenServiceImpl) Verify(raw string) (*TokenClaims, error) {
	token, err := jwt.Parse(raw, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return s.secret, nil
	})
	if err != nil || !token.Valid {
		return nil, ErrInvalidToken
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return nil, ErrInvalidToken
	}

	sub, ok := claims["sub"].(string)
	if !ok {
		return nil, ErrInvalidToken
	}
	userID, err := uuid.FromString(sub)
	if err != nil {
		return nil, ErrInvalidToken
	}

	email, ok := claims["email"].(string)
	if !ok {
		return nil, ErrInvalidToken
	}

	out := &TokenClaims{UserID: userID, Email: email}
	if name, ok := claims["name"].(string); ok {
		out.Name = &name
	}
	return out, nil
}
