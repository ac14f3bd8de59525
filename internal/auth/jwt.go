package auth

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/lestrrat-go/jwx/v2/jwk"
	"github.com/lestrrat-go/jwx/v2/jwt"

	"automation/pkg/logger"
)

// jwksCache caches the JWKS set fetched from the issuer.
type jwksCache struct {
	mu      sync.RWMutex
	url     string
	ttl     time.Duration
	set     jwk.Set
	expires time.Time
}

func (c *jwksCache) get(ctx context.Context) (jwk.Set, error) {
	c.mu.RLock()
	if c.set != nil && time.Now().Before(c.expires) {
		s := c.set
		c.mu.RUnlock()
		return s, nil
	}
	c.mu.RUnlock()

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.set != nil && time.Now().Before(c.expires) {
		return c.set, nil
	}
	set, err := jwk.Fetch(ctx, c.url)
	if err != nil {
		return nil, err
	}
	c.set = set
	c.expires = time.Now().Add(c.ttl)
	return set, nil
}

// JWTValidator accepts signed access tokens from an OIDC issuer. The subject
// becomes the user id and the space-delimited "scope" claim the scopes.
type JWTValidator struct {
	log      logger.Sugared
	issuer   string
	audience string
	skew     time.Duration
	keys     func(ctx context.Context) (jwk.Set, error)
}

// NewJWTValidator validates against a fixed key set.
func NewJWTValidator(set jwk.Set, issuer, audience string, log logger.Sugared) *JWTValidator {
	return &JWTValidator{
		log:      logger.Named(log, "auth"),
		issuer:   strings.TrimRight(issuer, "/"),
		audience: audience,
		skew:     60 * time.Second,
		keys:     func(context.Context) (jwk.Set, error) { return set, nil },
	}
}

// NewJWKSValidator fetches keys lazily from jwksURL and refreshes them every 6h.
func NewJWKSValidator(jwksURL, issuer, audience string, log logger.Sugared) *JWTValidator {
	cache := &jwksCache{url: jwksURL, ttl: 6 * time.Hour}
	v := NewJWTValidator(nil, issuer, audience, log)
	v.keys = cache.get
	return v
}

func (v *JWTValidator) Validate(token string) (Identity, bool) {
	raw := strings.TrimSpace(token)
	if strings.Count(raw, ".") != 2 {
		return Identity{}, false
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	set, err := v.keys(ctx)
	if err != nil || set == nil {
		v.log.Warnw("jwks unavailable", "err", err)
		return Identity{}, false
	}
	opts := []jwt.ParseOption{jwt.WithKeySet(set), jwt.WithValidate(true), jwt.WithAcceptableSkew(v.skew)}
	if v.issuer != "" {
		opts = append(opts, jwt.WithIssuer(v.issuer))
	}
	if v.audience != "" {
		opts = append(opts, jwt.WithAudience(v.audience))
	}
	jt, err := jwt.Parse([]byte(raw), opts...)
	if err != nil {
		v.log.Debugw("jwt rejected", "err", err)
		return Identity{}, false
	}
	if jt.Subject() == "" {
		return Identity{}, false
	}
	id := Identity{UserID: jt.Subject(), Scopes: []string{}}
	if sc, ok := jt.Get("scope"); ok {
		if s, ok := sc.(string); ok {
			for _, f := range strings.Fields(s) {
				if !id.HasScope(f) {
					id.Scopes = append(id.Scopes, f)
				}
			}
		}
	}
	return id, true
}
