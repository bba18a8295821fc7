// Package auth issues and verifies bearer tokens and gates protected routes.
package auth

import (
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
	"time"

	jwt "github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/redmonkez12/contacts-api/internal/apperror"
)

var (
	ErrInvalidToken = errors.New("invalid token")
	ErrExpiredToken = errors.New("token has expired")
)

// Claims is the identity data embedded in a signed token.
type Claims struct {
	Email        string `json:"email"`
	Subscription string `json:"subscription"`
	jwt.RegisteredClaims
}

// AccountID parses the subject claim into the account id.
func (c *Claims) AccountID() (uuid.UUID, error) {
	return uuid.Parse(c.Subject)
}

// TokenService signs and verifies HS256 tokens with a process-wide secret.
// Validity is bounded by the signed exp claim, set to TTL at issue time.
type TokenService struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

func NewTokenService(secret []byte, ttl time.Duration) *TokenService {
	return &TokenService{secret: secret, ttl: ttl, now: time.Now}
}

// Issue creates a signed, time-bounded token for the account.
func (s *TokenService) Issue(accountID uuid.UUID, email, subscription string) (string, error) {
	now := s.now()
	claims := &Claims{
		Email:        email,
		Subscription: subscription,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   accountID.String(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
}

// Verify checks the signature and expiry and returns the claims.
// Expired tokens are distinguishable from otherwise invalid ones.
func (s *TokenService) Verify(tokenStr string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenStr, &Claims{},
		func(t *jwt.Token) (any, error) { return s.secret, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(func() time.Time { return s.now() }),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrExpiredToken
		}
		return nil, ErrInvalidToken
	}
	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

// ValidateShape checks the compact JWS structure before any cryptographic
// work: exactly three non-empty base64url segments. It returns one detail
// per violation, or nil when the shape is fine.
func ValidateShape(tokenStr string) []apperror.Detail {
	segments := strings.Split(tokenStr, ".")
	if len(segments) != 3 {
		return []apperror.Detail{
			{Message: fmt.Sprintf("token must consist of 3 segments, got %d", len(segments))},
		}
	}

	var details []apperror.Detail
	for i, segment := range segments {
		if segment == "" {
			details = append(details, apperror.Detail{
				Message: fmt.Sprintf("token segment %d is empty", i+1),
			})
			continue
		}
		if _, err := base64.RawURLEncoding.DecodeString(segment); err != nil {
			details = append(details, apperror.Detail{
				Message: fmt.Sprintf("token segment %d is not valid base64url", i+1),
			})
		}
	}
	return details
}
