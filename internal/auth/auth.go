// Package auth resolves bearer tokens to principals.
package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/golang-jwt/jwt/v5"
)

// ErrUnauthorized is returned for a missing, malformed or rejected token.
var ErrUnauthorized = errors.New("unauthorized")

// Principal is an authenticated user.
type Principal struct {
	ID    string
	Email string
}

// Verifier resolves a bearer token.
type Verifier interface {
	Verify(ctx context.Context, token string) (Principal, error)
}

type claims struct {
	Email string `json:"email"`
	jwt.RegisteredClaims
}

// JWTVerifier accepts HS256 tokens signed with a shared secret, the format
// Supabase issues to signed-in users.
type JWTVerifier struct {
	secret []byte
	parser *jwt.Parser
}

var _ Verifier = (*JWTVerifier)(nil)

// NewJWTVerifier creates a verifier. Issuer and audience are checked when
// non-empty.
func NewJWTVerifier(secret, issuer, audience string) (*JWTVerifier, error) {
	if secret == "" {
		return nil, fmt.Errorf("jwt secret is required")
	}

	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
	}
	if issuer != "" {
		opts = append(opts, jwt.WithIssuer(issuer))
	}
	if audience != "" {
		opts = append(opts, jwt.WithAudience(audience))
	}

	return &JWTVerifier{secret: []byte(secret), parser: jwt.NewParser(opts...)}, nil
}

// Verify checks the signature and claims and returns the subject.
func (v *JWTVerifier) Verify(_ context.Context, token string) (Principal, error) {
	var c claims
	_, err := v.parser.ParseWithClaims(token, &c, func(*jwt.Token) (interface{}, error) {
		return v.secret, nil
	})
	if err != nil {
		return Principal{}, fmt.Errorf("%w: %v", ErrUnauthorized, err)
	}
	if strings.TrimSpace(c.Subject) == "" {
		return Principal{}, fmt.Errorf("%w: token has no subject", ErrUnauthorized)
	}
	return Principal{ID: c.Subject, Email: c.Email}, nil
}

// BearerToken extracts the token from an Authorization header value.
func BearerToken(header string) (string, bool) {
	scheme, token, ok := strings.Cut(header, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}

type principalKey struct{}

// WithPrincipal returns a context carrying p.
func WithPrincipal(ctx context.Context, p Principal) context.Context {
	return context.WithValue(ctx, principalKey{}, p)
}

// FromContext returns the principal stored by WithPrincipal.
func FromContext(ctx context.Context) (Principal, bool) {
	p, ok := ctx.Value(principalKey{}).(Principal)
	return p, ok
}
