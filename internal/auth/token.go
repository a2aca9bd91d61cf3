// Package auth issues and verifies the bearer credentials that carry a
// caller's user id and role level.
package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/svirmi/gift-ledger/internal/model"
	"github.com/svirmi/gift-ledger/internal/role"
)

// Principal is the verified identity behind a request.
type Principal struct {
	UserID string
	Role   role.Level
}

type claims struct {
	RoleLevel int `json:"roleLevel"`
	jwt.RegisteredClaims
}

// Issuer signs and verifies HS256 tokens with a shared secret.
type Issuer struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

func NewIssuer(secret string, ttl time.Duration) (*Issuer, error) {
	if len(secret) < 16 {
		return nil, errors.New("jwt secret must be at least 16 bytes")
	}
	return &Issuer{secret: []byte(secret), ttl: ttl, now: time.Now}, nil
}

// Issue returns a signed token for userID at the given level.
func (i *Issuer) Issue(userID string, level role.Level) (string, error) {
	now := i.now()
	c := claims{
		RoleLevel: int(level),
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(i.ttl)),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, c).SignedString(i.secret)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}

// Verify checks signature, expiry and claims. Any failure is
// model.ErrUnauthorized.
func (i *Issuer) Verify(token string) (Principal, error) {
	var c claims
	_, err := jwt.ParseWithClaims(token, &c, func(*jwt.Token) (any, error) {
		return i.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(i.now),
	)
	if err != nil {
		return Principal{}, fmt.Errorf("%w: %v", model.ErrUnauthorized, err)
	}
	if c.Subject == "" {
		return Principal{}, fmt.Errorf("%w: token has no subject", model.ErrUnauthorized)
	}
	level, err := role.Parse(c.RoleLevel)
	if err != nil {
		return Principal{}, fmt.Errorf("%w: %v", model.ErrUnauthorized, err)
	}
	return Principal{UserID: c.Subject, Role: level}, nil
}
