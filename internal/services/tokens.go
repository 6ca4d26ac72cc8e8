package services

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const (
	PurposeAccess = "access"
	PurposeVerify = "verify"
)

// Identity is the user snapshot embedded in a token.
type Identity struct {
	ID    int64  `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
}

type Claims struct {
	UserID  int64  `json:"id"`
	Name    string `json:"name"`
	Email   string `json:"email"`
	Purpose string `json:"typ"`
	jwt.RegisteredClaims
}

func (c Claims) Identity() Identity {
	return Identity{ID: c.UserID, Name: c.Name, Email: c.Email}
}

// TokenService issues and verifies HS256 bearer tokens. It is stateless:
// expiry is the only way a token stops being valid.
type TokenService struct {
	Secret []byte
	TTL    time.Duration
	Clock  func() time.Time
}

func NewTokenService(secret string, ttl time.Duration) TokenService {
	return TokenService{Secret: []byte(secret), TTL: ttl, Clock: time.Now}
}

func (t TokenService) now() time.Time {
	if t.Clock == nil {
		return time.Now()
	}
	return t.Clock()
}

func (t TokenService) Issue(identity Identity, purpose string) (string, time.Time, error) {
	if len(t.Secret) == 0 {
		return "", time.Time{}, ErrTokenCreation
	}
	now := t.now().UTC()
	exp := now.Add(t.TTL)
	claims := Claims{
		UserID:  identity.ID,
		Name:    identity.Name,
		Email:   identity.Email,
		Purpose: purpose,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(exp),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(t.Secret)
	if err != nil {
		return "", time.Time{}, errors.Join(ErrTokenCreation, err)
	}
	return signed, exp, nil
}

// Verify checks signature, expiry and purpose. Every failure is ErrInvalidToken.
func (t TokenService) Verify(raw, purpose string) (Claims, error) {
	claims := Claims{}
	token, err := jwt.ParseWithClaims(raw, &claims, func(token *jwt.Token) (interface{}, error) {
		return t.Secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(t.now),
	)
	if err != nil || !token.Valid {
		return Claims{}, ErrInvalidToken
	}
	if claims.Purpose != purpose {
		return Claims{}, ErrInvalidToken
	}
	return claims, nil
}
