package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v4"

	"github.com/signalworks/storefront/internal/shared"
)

// ErrInvalidToken is returned for malformed, expired or unsigned tokens.
var ErrInvalidToken = errors.New("invalid token")

// Service verifies and issues HS256 bearer tokens.
type Service struct {
	secret []byte
	now    func() time.Time
}

// NewService constructs a new Service.
func NewService(secret string) *Service {
	return &Service{secret: []byte(secret), now: time.Now}
}

// Parse validates the token signature and expiry and returns its claims.
func (s *Service) Parse(raw string) (*Claims, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(raw, claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return s.secret, nil
	})
	if err != nil || !token.Valid {
		return nil, ErrInvalidToken
	}
	if claims.Subject == "" {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

// Issue signs a token for the actor. Used by the seed tooling and tests;
// production tokens come from the identity provider sharing the secret.
func (s *Service) Issue(actor shared.Actor, ttl time.Duration) (string, error) {
	now := s.now()
	claims := Claims{
		Name:  actor.Name,
		Email: actor.Email,
		Role:  string(actor.Role),
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   actor.UserID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
}
