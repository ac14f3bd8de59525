package auth

import (
	"crypto/rand"
	"crypto/rsa"
	"testing"
	"time"

	"github.com/lestrrat-go/jwx/v2/jwa"
	"github.com/lestrrat-go/jwx/v2/jwk"
	"github.com/lestrrat-go/jwx/v2/jwt"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"automation/pkg/logger"
)

func testKeys(t *testing.T) (jwk.Key, jwk.Set) {
	t.Helper()
	raw, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	key, err := jwk.FromRaw(raw)
	require.NoError(t, err)
	require.NoError(t, key.Set(jwk.KeyIDKey, "test-kid"))
	require.NoError(t, key.Set(jwk.AlgorithmKey, jwa.RS256))

	pub, err := jwk.PublicKeyOf(key)
	require.NoError(t, err)
	require.NoError(t, pub.Set(jwk.KeyIDKey, "test-kid"))
	require.NoError(t, pub.Set(jwk.AlgorithmKey, jwa.RS256))
	set := jwk.NewSet()
	require.NoError(t, set.AddKey(pub))
	return key, set
}

func signToken(t *testing.T, key jwk.Key, sub, scope string, exp time.Time) string {
	t.Helper()
	b := jwt.NewBuilder().
		Issuer("https://issuer.test").
		Audience([]string{"automation-api"}).
		IssuedAt(time.Now()).
		Expiration(exp)
	if sub != "" {
		b = b.Subject(sub)
	}
	if scope != "" {
		b = b.Claim("scope", scope)
	}
	tok, err := b.Build()
	require.NoError(t, err)
	signed, err := jwt.Sign(tok, jwt.WithKey(jwa.RS256, key))
	require.NoError(t, err)
	return string(signed)
}

func TestJWTValidator(t *testing.T) {
	key, set := testKeys(t)
	v := NewJWTValidator(set, "https://issuer.test/", "automation-api", logger.Nop())

	t.Run("valid token maps subject and scopes", func(t *testing.T) {
		tok := signToken(t, key, "user-7", "workflow.read ai.generate workflow.read", time.Now().Add(time.Hour))
		id, ok := v.Validate(tok)
		require.True(t, ok)
		assert.Equal(t, "user-7", id.UserID)
		assert.Equal(t, []string{"workflow.read", "ai.generate"}, id.Scopes)
	})

	t.Run("expired token rejected", func(t *testing.T) {
		tok := signToken(t, key, "user-7", "workflow.read", time.Now().Add(-time.Hour))
		_, ok := v.Validate(tok)
		assert.False(t, ok)
	})

	t.Run("missing subject rejected", func(t *testing.T) {
		tok := signToken(t, key, "", "workflow.read", time.Now().Add(time.Hour))
		_, ok := v.Validate(tok)
		assert.False(t, ok)
	})

	t.Run("foreign key rejected", func(t *testing.T) {
		other, _ := testKeys(t)
		tok := signToken(t, other, "user-7", "workflow.read", time.Now().Add(time.Hour))
		_, ok := v.Validate(tok)
		assert.False(t, ok)
	})

	t.Run("non-jwt strings are ignored", func(t *testing.T) {
		_, ok := v.Validate("abc")
		assert.False(t, ok)
	})

	t.Run("wrong audience rejected", func(t *testing.T) {
		strict := NewJWTValidator(set, "https://issuer.test", "someone-else", logger.Nop())
		tok := signToken(t, key, "user-7", "workflow.read", time.Now().Add(time.Hour))
		_, ok := strict.Validate(tok)
		assert.False(t, ok)
	})
}

func TestChainFallsBackToJWT(t *testing.T) {
	key, set := testKeys(t)
	c := Chain{
		NewTokenAuthenticator(ParseTokenList("abc:u1:workflow.read", nil), logger.Nop()),
		NewJWTValidator(set, "https://issuer.test", "", logger.Nop()),
	}
	id, ok := c.Validate(signToken(t, key, "svc", "agent.execute", time.Now().Add(time.Hour)))
	require.True(t, ok)
	assert.Equal(t, "svc", id.UserID)
}
