// Gitshelf - Source Project Portal with Download Audit Logging
// Copyright 2026 Gitshelf Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/gitshelf/gitshelf

package api

import (
	"crypto/rand"
	"crypto/subtle"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"

	"github.com/gitshelf/gitshelf/internal/metrics"
)

const gateCookieName = "gitshelf_logs_token"

// gateClaims is the payload of the short-lived token issued after a
// successful password check.
type gateClaims struct {
	jwt.RegisteredClaims
}

// Gate protects the audit-log surface with a single shared password.
// A correct password yields a short-lived signed token carried in a
// cookie; every privileged action (view, delete, reset, export)
// re-validates the token instead of trusting the initial check alone.
type Gate struct {
	password    string
	tokenSecret []byte
	tokenTTL    time.Duration
}

// NewGate creates a gate around the configured shared password. The
// password may be stored as a bcrypt hash; anything else is compared
// as a plain secret in constant time. When secret is empty a random
// one is generated, which invalidates outstanding tokens on restart.
func NewGate(password, secret string, ttl time.Duration) *Gate {
	key := []byte(secret)
	if len(key) == 0 {
		key = make([]byte, 32)
		if _, err := rand.Read(key); err != nil {
			panic(fmt.Sprintf("failed to generate gate token secret: %v", err))
		}
	}
	if ttl <= 0 {
		ttl = 15 * time.Minute
	}
	return &Gate{
		password:    password,
		tokenSecret: key,
		tokenTTL:    ttl,
	}
}

// CheckPassword reports whether the submitted password matches the
// configured secret.
func (g *Gate) CheckPassword(submitted string) bool {
	if strings.HasPrefix(g.password, "$2a$") || strings.HasPrefix(g.password, "$2b$") || strings.HasPrefix(g.password, "$2y$") {
		return bcrypt.CompareHashAndPassword([]byte(g.password), []byte(submitted)) == nil
	}
	return subtle.ConstantTimeCompare([]byte(g.password), []byte(submitted)) == 1
}

// IssueToken returns a signed token valid for the gate's TTL.
func (g *Gate) IssueToken() (string, error) {
	now := time.Now()
	claims := gateClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "logs",
			ExpiresAt: jwt.NewNumericDate(now.Add(g.tokenTTL)),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(g.tokenSecret)
	if err != nil {
		return "", fmt.Errorf("failed to sign gate token: %w", err)
	}
	return signed, nil
}

// ValidateToken checks a token's signature and expiry.
func (g *Gate) ValidateToken(tokenString string) error {
	token, err := jwt.ParseWithClaims(tokenString, &gateClaims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return g.tokenSecret, nil
	})
	if err != nil {
		return fmt.Errorf("invalid gate token: %w", err)
	}
	if !token.Valid {
		return fmt.Errorf("invalid gate token")
	}
	return nil
}

// Authorized reports whether the request carries a valid gate token.
// Failed checks are counted but never detailed to the client.
func (g *Gate) Authorized(r *http.Request) bool {
	cookie, err := r.Cookie(gateCookieName)
	if err != nil || cookie.Value == "" {
		return false
	}
	if err := g.ValidateToken(cookie.Value); err != nil {
		metrics.GateAuthFailures.Inc()
		return false
	}
	return true
}

// Grant attaches a fresh gate token to the response.
func (g *Gate) Grant(w http.ResponseWriter) error {
	token, err := g.IssueToken()
	if err != nil {
		return err
	}
	http.SetCookie(w, &http.Cookie{
		Name:     gateCookieName,
		Value:    token,
		Path:     "/",
		MaxAge:   int(g.tokenTTL.Seconds()),
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
	return nil
}
