package auth

import (
	"strings"
	"sync/atomic"

	"automation/pkg/logger"
)

// Authenticator maps a raw bearer credential to an Identity. A false result is
// the only failure mode: blank and unknown tokens are not errors.
type Authenticator interface {
	Validate(token string) (Identity, bool)
}

// TokenAuthenticator serves the statically configured token list. The map is
// swapped as a whole on Load so readers never observe a partial reload.
type TokenAuthenticator struct {
	log    logger.Sugared
	tokens atomic.Pointer[map[string]Record]
}

func NewTokenAuthenticator(records []Record, log logger.Sugared) *TokenAuthenticator {
	a := &TokenAuthenticator{log: logger.Named(log, "auth")}
	a.Load(records)
	return a
}

// Load atomically replaces the token mapping and returns the number loaded.
func (a *TokenAuthenticator) Load(records []Record) int {
	m := make(map[string]Record, len(records))
	for _, r := range records {
		m[r.Token] = r
	}
	a.tokens.Store(&m)
	a.log.Infow("loaded api tokens", "count", len(m))
	return len(m)
}

func (a *TokenAuthenticator) Validate(token string) (Identity, bool) {
	token = strings.TrimSpace(token)
	if token == "" {
		return Identity{}, false
	}
	m := a.tokens.Load()
	if m == nil {
		return Identity{}, false
	}
	rec, ok := (*m)[token]
	if !ok {
		return Identity{}, false
	}
	return Identity{UserID: rec.UserID, Scopes: rec.Scopes}.Clone(), true
}

// Count is the number of configured tokens.
func (a *TokenAuthenticator) Count() int {
	if m := a.tokens.Load(); m != nil {
		return len(*m)
	}
	return 0
}

// Chain tries each authenticator in order and returns the first match.
type Chain []Authenticator

func (c Chain) Validate(token string) (Identity, bool) {
	for _, a := range c {
		if a == nil {
			continue
		}
		if id, ok := a.Validate(token); ok {
			return id, true
		}
	}
	return Identity{}, false
}
