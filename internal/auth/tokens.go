package auth

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/example/parcel-delivery/internal/models"
)

const issuer = "parcel-delivery"

// Claims carried in a session token.
type Claims struct {
	Kind  models.AccountKind `json:"kind"`
	Email string             `json:"email"`
	jwt.RegisteredClaims
}

// Principal is the authenticated caller of a request.
type Principal struct {
	AccountID string
	Kind      models.AccountKind
	Email     string
	TokenID   string
	ExpiresAt time.Time
}

func (p Principal) IsAdmin() bool { return p.Kind == models.KindAdmin }

// TokenIssuer signs and verifies HS256 session tokens.
type TokenIssuer struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

func NewTokenIssuer(secret string, ttl time.Duration) *TokenIssuer {
	return &TokenIssuer{secret: []byte(secret), ttl: ttl, now: time.Now}
}

func (t *TokenIssuer) Issue(a *models.Account) (string, Principal, error) {
	now := t.now()
	p := Principal{
		AccountID: a.ID,
		Kind:      a.Kind,
		Email:     a.Email,
		TokenID:   uuid.NewString(),
		ExpiresAt: now.Add(t.ttl),
	}
	claims := Claims{
		Kind:  a.Kind,
		Email: a.Email,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        p.TokenID,
			Subject:   a.ID,
			Issuer:    issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(p.ExpiresAt),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(t.secret)
	if err != nil {
		return "", Principal{}, fmt.Errorf("sign token: %w", err)
	}
	return signed, p, nil
}

func (t *TokenIssuer) Parse(token string) (Principal, error) {
	var claims Claims
	_, err := jwt.ParseWithClaims(token, &claims, func(tok *jwt.Token) (any, error) {
		return t.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(issuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(t.now),
	)
	if err != nil {
		return Principal{}, fmt.Errorf("%w: %v", models.ErrUnauthorized, err)
	}
	if claims.Subject == "" || claims.ID == "" {
		return Principal{}, fmt.Errorf("%w: incomplete token claims", models.ErrUnauthorized)
	}
	return Principal{
		AccountID: claims.Subject,
		Kind:      claims.Kind,
		Email:     claims.Email,
		TokenID:   claims.ID,
		ExpiresAt: claims.ExpiresAt.Time,
	}, nil
}
