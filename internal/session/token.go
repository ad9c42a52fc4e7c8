// Package session implements PIN authentication, session token issuance and
// validation, and the in-process login rate limiter.
package session

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/go-jose/go-jose/v4"
	"github.com/go-jose/go-jose/v4/jwt"
)

// GenerateDevSecret generates a random 32-byte hex-encoded secret, for use
// when HUBD_SESSION_SECRET is unset in a development environment. Every
// process restart invalidates existing sessions since the secret isn't
// persisted.
func GenerateDevSecret() string {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		panic(fmt.Sprintf("reading random bytes: %v", err))
	}
	return hex.EncodeToString(b)
}

// tokenLifetime is deliberately long: sessions have no timeout by design
// (invalidated only by explicit logout or administrative action, tracked in
// the sessions table's revoked_at column). The JWT expiry is a backstop
// against an indefinitely valid token outliving the secret's rotation
// window, not the actual session lifetime policy.
const tokenLifetime = 10 * 365 * 24 * time.Hour

// Claims are the claims embedded in a self-issued session JWT.
type Claims struct {
	SessionID  string `json:"sid"`
	StaffID    string `json:"staff_id"`
	TerminalID string `json:"terminal_id"`
	Role       string `json:"role"`
}

// TokenManager issues and validates self-signed session JWTs using
// HMAC-SHA256.
type TokenManager struct {
	signingKey []byte
}

// NewTokenManager creates a token manager. secret must be at least 32 bytes.
func NewTokenManager(secret string) (*TokenManager, error) {
	if len(secret) < 32 {
		return nil, fmt.Errorf("session secret must be at least 32 bytes, got %d", len(secret))
	}
	return &TokenManager{signingKey: []byte(secret)}, nil
}

// Issue creates a signed JWT carrying claims. The serialized token is the
// opaque session id returned to the terminal.
func (tm *TokenManager) Issue(claims Claims) (string, error) {
	signer, err := jose.NewSigner(
		jose.SigningKey{Algorithm: jose.HS256, Key: tm.signingKey},
		(&jose.SignerOptions{}).WithType("JWT"),
	)
	if err != nil {
		return "", fmt.Errorf("creating signer: %w", err)
	}

	now := time.Now()
	registered := jwt.Claims{
		Subject:   claims.SessionID,
		IssuedAt:  jwt.NewNumericDate(now),
		Expiry:    jwt.NewNumericDate(now.Add(tokenLifetime)),
		NotBefore: jwt.NewNumericDate(now),
		Issuer:    "hubd",
	}

	token, err := jwt.Signed(signer).Claims(registered).Claims(claims).Serialize()
	if err != nil {
		return "", fmt.Errorf("signing token: %w", err)
	}
	return token, nil
}

// Validate verifies the JWT signature and expiry and returns its claims.
// Callers must additionally confirm the session is still active (not
// revoked) against the store; this only proves the token is authentic.
func (tm *TokenManager) Validate(raw string) (*Claims, error) {
	tok, err := jwt.ParseSigned(raw, []jose.SignatureAlgorithm{jose.HS256})
	if err != nil {
		return nil, fmt.Errorf("parsing token: %w", err)
	}

	var registered jwt.Claims
	var custom Claims
	if err := tok.Claims(tm.signingKey, &registered, &custom); err != nil {
		return nil, fmt.Errorf("verifying token: %w", err)
	}

	if err := registered.ValidateWithLeeway(jwt.Expected{
		Issuer: "hubd",
		Time:   time.Now(),
	}, 5*time.Second); err != nil {
		return nil, fmt.Errorf("validating claims: %w", err)
	}

	return &custom, nil
}
