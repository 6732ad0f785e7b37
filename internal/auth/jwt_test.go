package auth

import (
	"context"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"
)

const testSecret = "test-secret"

func signHS256(t *testing.T, claims jwt.MapClaims) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	s, err := token.SignedString([]byte(testSecret))
	require.NoError(t, err)
	return s
}

func TestJWTVerifierHS256(t *testing.T) {
	req := require.New(t)
	v, err := NewJWTVerifierHS256(testSecret)
	req.NoError(err)

	token := signHS256(t, jwt.MapClaims{
		"sub":      "u1",
		"username": "alice",
		"nickname": "Ally",
		"avatar":   "https://cdn.example.com/a.png",
		"exp":      time.Now().Add(time.Hour).Unix(),
	})
	ident, err := v.Verify(context.Background(), token)
	req.NoError(err)
	req.Equal(Identity{ID: "u1", Username: "alice", Nickname: "Ally", Avatar: "https://cdn.example.com/a.png"}, ident)

	sum := ident.Summary()
	req.Equal("u1", sum.ID)
	req.Equal("Ally", sum.DisplayName())
}

func TestJWTVerifierLegacyUserIDClaim(t *testing.T) {
	req := require.New(t)
	v, err := NewJWTVerifierHS256(testSecret)
	req.NoError(err)

	token := signHS256(t, jwt.MapClaims{
		"user_id":  "u2",
		"username": "bob",
	})
	ident, err := v.Verify(context.Background(), token)
	req.NoError(err)
	req.Equal("u2", ident.ID)
}

func TestJWTVerifierRejections(t *testing.T) {
	v, err := NewJWTVerifierHS256(testSecret)
	require.NoError(t, err)

	otherKey := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{"sub": "u1", "username": "x"})
	forged, err := otherKey.SignedString([]byte("wrong-secret"))
	require.NoError(t, err)

	tests := []struct {
		name  string
		token string
	}{
		{"empty token", ""},
		{"garbage", "not-a-jwt"},
		{"wrong key", forged},
		{"expired", signHS256(t, jwt.MapClaims{
			"sub": "u1", "username": "alice", "exp": time.Now().Add(-time.Hour).Unix(),
		})},
		{"missing subject", signHS256(t, jwt.MapClaims{"username": "alice"})},
		{"missing username", signHS256(t, jwt.MapClaims{"sub": "u1"})},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			// every rejection collapses into the same generic error
			_, err := v.Verify(context.Background(), tc.token)
			require.ErrorIs(t, err, ErrInvalidToken)
		})
	}
}

func TestNewJWTVerifierHS256EmptySecret(t *testing.T) {
	_, err := NewJWTVerifierHS256("")
	require.Error(t, err)
}
