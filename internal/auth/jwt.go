package auth

import (
	"context"
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"errors"
	"fmt"
	"os"

	"github.com/golang-jwt/jwt/v5"
)

// JWTVerifier validates bearer JWTs and maps claims to an Identity.
// The identity service issues the tokens; this side only verifies.
type JWTVerifier struct {
	keyFunc jwt.Keyfunc
}

// NewJWTVerifierHS256 verifies tokens signed with a shared secret.
func NewJWTVerifierHS256(secret string) (*JWTVerifier, error) {
	if secret == "" {
		return nil, errors.New("empty HS256 secret")
	}
	key := []byte(secret)
	return &JWTVerifier{keyFunc: func(t *jwt.Token) (interface{}, error) {
		if t.Method.Alg() != jwt.SigningMethodHS256.Alg() {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return key, nil
	}}, nil
}

// NewJWTVerifierRS256 loads an RSA public key from the filesystem.
func NewJWTVerifierRS256(pubPath string) (*JWTVerifier, error) {
	b, err := os.ReadFile(pubPath)
	if err != nil {
		return nil, fmt.Errorf("read public key: %w", err)
	}
	block, _ := pem.Decode(b)
	if block == nil {
		return nil, errors.New("invalid public PEM")
	}
	pub, err := x509.ParsePKIXPublicKey(block.Bytes)
	if err != nil {
		return nil, fmt.Errorf("parse public key: %w", err)
	}
	rsaPub, ok := pub.(*rsa.PublicKey)
	if !ok {
		return nil, errors.New("not an RSA public key")
	}
	return &JWTVerifier{keyFunc: func(t *jwt.Token) (interface{}, error) {
		if t.Method.Alg() != jwt.SigningMethodRS256.Alg() {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return rsaPub, nil
	}}, nil
}

// Verify parses and validates the token and builds the Identity from
// its claims. Every failure collapses into ErrInvalidToken.
func (v *JWTVerifier) Verify(_ context.Context, tokenStr string) (Identity, error) {
	if tokenStr == "" {
		return Identity{}, ErrInvalidToken
	}
	token, err := jwt.Parse(tokenStr, v.keyFunc)
	if err != nil || !token.Valid {
		return Identity{}, ErrInvalidToken
	}
	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return Identity{}, ErrInvalidToken
	}

	id := stringClaim(claims, "sub")
	if id == "" {
		// legacy tokens carry "user_id" instead of "sub"
		id = stringClaim(claims, "user_id")
	}
	username := stringClaim(claims, "username")
	if id == "" || username == "" {
		return Identity{}, ErrInvalidToken
	}
	return Identity{
		ID:       id,
		Username: username,
		Nickname: stringClaim(claims, "nickname"),
		Avatar:   stringClaim(claims, "avatar"),
	}, nil
}

func stringClaim(claims jwt.MapClaims, key string) string {
	if v, ok := claims[key]; ok {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return ""
}
