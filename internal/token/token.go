package token

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const (
	AccessTokenTTL  = 30 * time.Minute
	RefreshTokenTTL = 7 * 24 * time.Hour
)

var ErrInvalidToken = errors.New("invalid token")

// Claims is the verified payload of a bearer token. Exp is a Unix
// timestamp in seconds, zero when the token carries no exp claim.
type Claims struct {
	Email string
	Exp   int64
}

func (c *Claims) Expired(now time.Time) bool {
	return c.Exp == 0 || now.UTC().Unix() >= c.Exp
}

// Codec signs and verifies access/refresh tokens with a single
// process-wide HS256 secret.
type Codec struct {
	Secret []byte
}

func (tc *Codec) IssueAccess(email string) (string, error) {
	return tc.sign(email, time.Now().Add(AccessTokenTTL))
}

func (tc *Codec) IssueRefresh(email string) (string, error) {
	return tc.sign(email, time.Now().Add(RefreshTokenTTL))
}

func (tc *Codec) sign(email string, exp time.Time) (string, error) {
	claims := jwt.MapClaims{
		"sub": email,
		"exp": exp.UTC().Unix(),
	}
	t := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return t.SignedString(tc.Secret)
}

// Decode verifies the signature and structure of a token. It does not
// reject expired tokens: the revocation path needs to read exp from
// tokens that are already past it, so expiry is compared by the caller.
func (tc *Codec) Decode(raw string) (*Claims, error) {
	t, err := jwt.Parse(raw, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return tc.Secret, nil
	}, jwt.WithoutClaimsValidation())
	if err != nil || !t.Valid {
		return nil, ErrInvalidToken
	}

	mc, ok := t.Claims.(jwt.MapClaims)
	if !ok {
		return nil, ErrInvalidToken
	}

	email, ok := mc["sub"].(string)
	if !ok || email == "" {
		return nil, ErrInvalidToken
	}

	claims := &Claims{Email: email}
	if exp, ok := mc["exp"].(float64); ok {
		claims.Exp = int64(exp)
	}
	return claims, nil
}
