package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaults(t *testing.T) {
	for _, k := range []string{"MCP_ENABLED", "MCP_PORT", "MCP_HOST", "OPENROUTER_API_URL", "OPENROUTER_MODEL", "OPENROUTER_TIMEOUT_SEC", "CACHE_TTL_SEC", "DATABASE_SEED"} {
		t.Setenv(k, "")
	}
	cfg := fromEnv()
	assert.True(t, cfg.MCPEnabled)
	assert.Equal(t, 4000, cfg.MCPPort)
	assert.Equal(t, "0.0.0.0", cfg.MCPHost)
	assert.Equal(t, "https://openrouter.ai/api/v1/chat/completions", cfg.OpenRouterURL)
	assert.Equal(t, "meta-llama/llama-3.1-8b-instruct", cfg.OpenRouterModel)
	assert.Equal(t, 60*time.Second, cfg.OpenRouterTimeout)
	assert.Equal(t, 30*time.Second, cfg.CacheTTL)
	assert.True(t, cfg.SeedDB)
}

func TestOverrides(t *testing.T) {
	t.Setenv("MCP_ENABLED", "false")
	t.Setenv("MCP_PORT", "4100")
	t.Setenv("MCP_API_KEYS", "abc:u1:workflow.read")
	t.Setenv("OPENROUTER_RPS", "2.5")
	t.Setenv("OPENROUTER_TIMEOUT_SEC", "5")

	cfg := fromEnv()
	assert.False(t, cfg.MCPEnabled)
	assert.Equal(t, 4100, cfg.MCPPort)
	assert.Equal(t, "abc:u1:workflow.read", cfg.APIKeys)
	assert.Equal(t, 2.5, cfg.OpenRouterRPS)
	assert.Equal(t, 5*time.Second, cfg.OpenRouterTimeout)
}

func TestMalformedValuesFallBack(t *testing.T) {
	t.Setenv("MCP_ENABLED", "maybe")
	t.Setenv("MCP_PORT", "four thousand")
	t.Setenv("OPENROUTER_RPS", "fast")
	t.Setenv("CACHE_TTL_SEC", "soon")

	cfg := fromEnv()
	assert.False(t, cfg.MCPEnabled, "an unreadable switch disables the session server")
	assert.Equal(t, 4000, cfg.MCPPort)
	assert.Zero(t, cfg.OpenRouterRPS)
	assert.Equal(t, 30*time.Second, cfg.CacheTTL)
}

func TestMCPEnabledSwitch(t *testing.T) {
	for _, tt := range []struct {
		val  string
		want bool
	}{
		{"", true},
		{"true", true},
		{"1", true},
		{"false", false},
		{"off", false},
		{"yes please", false},
	} {
		t.Setenv("MCP_ENABLED", tt.val)
		assert.Equal(t, tt.want, fromEnv().MCPEnabled, "MCP_ENABLED=%q", tt.val)
	}
}

func TestMCPAddr(t *testing.T) {
	assert.Equal(t, "0.0.0.0:4000", Config{MCPHost: "0.0.0.0", MCPPort: 4000}.MCPAddr())
	assert.Equal(t, "[::1]:4000", Config{MCPHost: "::1", MCPPort: 4000}.MCPAddr())
}

func TestReloadPicksUpDotEnv(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"), []byte("MCP_API_KEYS=rotated:u9:ai.generate\n"), 0o600))
	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { _ = os.Chdir(wd) })

	t.Setenv("MCP_API_KEYS", "old:u1:workflow.read")
	assert.Equal(t, "old:u1:workflow.read", Load().APIKeys, "Load never overrides the environment")
	assert.Equal(t, "rotated:u9:ai.generate", Reload().APIKeys)
}
