// Package auth holds the storefront's bearer-token state. Verification is
// the backend's job; the client only needs to know whether a token exists
// and whether it is plainly past its expiry.
package auth

import (
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v4"
)

// MemoryTokenSource keeps the access token for the current session in memory.
// The zero value is an unauthenticated source.
type MemoryTokenSource struct {
	mu    sync.RWMutex
	token string
	clock func() time.Time
}

// NewMemoryTokenSource constructs a token source seeded with token, which may
// be empty for an anonymous session.
func NewMemoryTokenSource(token string) *MemoryTokenSource {
	return &MemoryTokenSource{token: strings.TrimSpace(token), clock: time.Now}
}

// Set replaces the stored token, e.g. after a login or refresh.
func (s *MemoryTokenSource) Set(token string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.token = strings.TrimSpace(token)
}

// Clear drops the stored token.
func (s *MemoryTokenSource) Clear() {
	s.Set("")
}

// Token returns the raw bearer token, or "" when none is stored.
func (s *MemoryTokenSource) Token() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.token
}

// Authenticated reports whether a usable token is present. A token whose exp
// claim is already in the past counts as absent, so callers can skip doomed
// requests without a round trip. Tokens that do not parse as JWTs are still
// treated as usable; the backend has the final word.
func (s *MemoryTokenSource) Authenticated() bool {
	token := s.Token()
	if token == "" {
		return false
	}

	claims := jwt.RegisteredClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, &claims); err != nil {
		return true
	}
	if claims.ExpiresAt == nil {
		return true
	}

	now := time.Now
	s.mu.RLock()
	if s.clock != nil {
		now = s.clock
	}
	s.mu.RUnlock()
	return claims.ExpiresAt.After(now())
}
