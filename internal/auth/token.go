package auth

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

var (
	ErrInvalidToken = errors.New("invalid token")
	ErrExpiredToken = errors.New("token has expired")
)

const audience = "carrental-api"

// Identity is the authenticated caller, passed explicitly into every
// operation that acts on a customer's behalf.
type Identity struct {
	CustomerID int64
	Email      string
	IsAdmin    bool
}

// CanActFor reports whether the caller may act on customerID's records.
func (id Identity) CanActFor(customerID int64) bool {
	return id.IsAdmin || id.CustomerID == customerID
}

// Claims are the JWT claims issued at login.
type Claims struct {
	CustomerID int64  `json:"customer_id"`
	Email      string `json:"email,omitempty"`
	Admin      bool   `json:"admin"`
	jwt.RegisteredClaims
}

// LookupFunc reloads a caller from storage, so a revoked admin flag or a
// removed customer takes effect before the token expires.
type LookupFunc func(ctx context.Context, customerID int64) (Identity, error)

// TokenManager issues and validates access tokens.
type TokenManager struct {
	secret []byte
	issuer string
	ttl    time.Duration
	now    func() time.Time
	lookup LookupFunc
}

func NewTokenManager(secret, issuer string, ttl time.Duration) *TokenManager {
	return &TokenManager{
		secret: []byte(secret),
		issuer: issuer,
		ttl:    ttl,
		now:    time.Now,
	}
}

// WithLookup makes Authenticate refresh each caller through lookup.
func (m *TokenManager) WithLookup(lookup LookupFunc) *TokenManager {
	m.lookup = lookup
	return m
}

// Issue signs an access token for id.
func (m *TokenManager) Issue(id Identity) (string, time.Time, error) {
	now := m.now()
	expires := now.Add(m.ttl)

	claims := Claims{
		CustomerID: id.CustomerID,
		Email:      id.Email,
		Admin:      id.IsAdmin,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   strconv.FormatInt(id.CustomerID, 10),
			Issuer:    m.issuer,
			Audience:  jwt.ClaimStrings{audience},
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expires),
			ID:        uuid.NewString(),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(m.secret)
	if err != nil {
		return "", time.Time{}, err
	}
	return signed, expires, nil
}

// Validate parses a token and returns the caller it identifies.
func (m *TokenManager) Validate(tokenString string) (Identity, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrInvalidToken
		}
		return m.secret, nil
	},
		jwt.WithIssuer(m.issuer),
		jwt.WithAudience(audience),
		jwt.WithTimeFunc(m.now),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return Identity{}, ErrExpiredToken
		}
		return Identity{}, ErrInvalidToken
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid || claims.CustomerID <= 0 {
		return Identity{}, ErrInvalidToken
	}

	return Identity{
		CustomerID: claims.CustomerID,
		Email:      claims.Email,
		IsAdmin:    claims.Admin,
	}, nil
}
