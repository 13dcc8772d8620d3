package auth

import (
	"context"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const secret = "test-secret-with-enough-entropy"

func sign(t *testing.T, key string, method jwt.SigningMethod, c jwt.MapClaims) string {
	t.Helper()
	s, err := jwt.NewWithClaims(method, c).SignedString([]byte(key))
	require.NoError(t, err)
	return s
}

func validClaims() jwt.MapClaims {
	return jwt.MapClaims{
		"sub":   "6c1f0a52-4a7e-4d1b-9a53-0c3a6d0b1e22",
		"email": "ada@example.com",
		"aud":   "authenticated",
		"exp":   time.Now().Add(time.Hour).Unix(),
	}
}

func TestJWTVerifier_Valid(t *testing.T) {
	v, err := NewJWTVerifier(secret, "", "authenticated")
	require.NoError(t, err)

	p, err := v.Verify(context.Background(), sign(t, secret, jwt.SigningMethodHS256, validClaims()))
	require.NoError(t, err)
	assert.Equal(t, Principal{ID: "6c1f0a52-4a7e-4d1b-9a53-0c3a6d0b1e22", Email: "ada@example.com"}, p)
}

func TestJWTVerifier_Rejects(t *testing.T) {
	v, err := NewJWTVerifier(secret, "", "authenticated")
	require.NoError(t, err)

	expired := validClaims()
	expired["exp"] = time.Now().Add(-time.Minute).Unix()

	noSubject := validClaims()
	delete(noSubject, "sub")

	blankSubject := validClaims()
	blankSubject["sub"] = "  \t "

	noExpiry := validClaims()
	delete(noExpiry, "exp")

	wrongAudience := validClaims()
	wrongAudience["aud"] = "anon"

	tests := map[string]string{
		"wrong secret":   sign(t, "other-secret", jwt.SigningMethodHS256, validClaims()),
		"wrong method":   sign(t, secret, jwt.SigningMethodHS512, validClaims()),
		"expired":        sign(t, secret, jwt.SigningMethodHS256, expired),
		"no subject":     sign(t, secret, jwt.SigningMethodHS256, noSubject),
		"blank subject":  sign(t, secret, jwt.SigningMethodHS256, blankSubject),
		"no expiry":      sign(t, secret, jwt.SigningMethodHS256, noExpiry),
		"wrong audience": sign(t, secret, jwt.SigningMethodHS256, wrongAudience),
		"garbage":        "not.a.token",
	}

	for name, token := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := v.Verify(context.Background(), token)
			assert.ErrorIs(t, err, ErrUnauthorized)
		})
	}
}

func TestNewJWTVerifier_RequiresSecret(t *testing.T) {
	_, err := NewJWTVerifier("", "", "")
	assert.Error(t, err)
}

func TestBearerToken(t *testing.T) {
	tok, ok := BearerToken("Bearer abc.def")
	assert.True(t, ok)
	assert.Equal(t, "abc.def", tok)

	tok, ok = BearerToken("bearer   xyz ")
	assert.True(t, ok)
	assert.Equal(t, "xyz", tok)

	for _, h := range []string{"", "Basic abc", "Bearer", "Bearer   "} {
		_, ok := BearerToken(h)
		assert.False(t, ok, h)
	}
}

func TestPrincipalContext(t *testing.T) {
	_, ok := FromContext(context.Background())
	assert.False(t, ok)

	ctx := WithPrincipal(context.Background(), Principal{ID: "u1"})
	p, ok := FromContext(ctx)
	require.True(t, ok)
	assert.Equal(t, "u1", p.ID)
}
