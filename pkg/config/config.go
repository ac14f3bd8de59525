// pkg/config/config.go
package config

import (
	"log"
	"net"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Env      string
	HTTPAddr string // sync automation API

	// Session protocol server
	MCPEnabled bool
	MCPHost    string
	MCPPort    int

	// Token sources (see auth.ParseTokenList / auth.LoadTokenFile)
	APIKeys     string
	APIKeysFile string

	// Optional JWT bearer validation
	Issuer   string
	Audience string
	JWKSURL  string

	// Completion provider (OpenRouter-compatible chat completions)
	OpenRouterAPIKey   string
	OpenRouterURL      string
	OpenRouterModel    string
	OpenRouterSiteURL  string
	OpenRouterSiteName string
	OpenRouterTimeout  time.Duration
	OpenRouterRPS      float64

	// Redis & Postgres
	RedisURL    string
	CacheTTL    time.Duration
	DatabaseURL string
	SeedDB      bool
}

func Load() Config {
	_ = godotenv.Load()
	return fromEnv()
}

// Reload re-reads .env on top of the current environment. Used on SIGHUP so
// rotated token lists take effect without a restart.
func Reload() Config {
	_ = godotenv.Overload()
	return fromEnv()
}

func fromEnv() Config {
	cfg := Config{
		Env:                env("APP_ENV", "dev"),
		HTTPAddr:           env("HTTP_ADDR", ":3000"),
		MCPEnabled:         envSwitch("MCP_ENABLED", true),
		MCPHost:            env("MCP_HOST", "0.0.0.0"),
		MCPPort:            envInt("MCP_PORT", 4000),
		APIKeys:            env("MCP_API_KEYS", ""),
		APIKeysFile:        env("MCP_API_KEYS_FILE", ""),
		Issuer:             env("OIDC_ISSUER", ""),
		Audience:           env("OIDC_AUDIENCE", ""),
		JWKSURL:            env("JWKS_URL", ""),
		OpenRouterAPIKey:   env("OPENROUTER_API_KEY", ""),
		OpenRouterURL:      env("OPENROUTER_API_URL", "https://openrouter.ai/api/v1/chat/completions"),
		OpenRouterModel:    env("OPENROUTER_MODEL", "meta-llama/llama-3.1-8b-instruct"),
		OpenRouterSiteURL:  env("OPENROUTER_SITE_URL", ""),
		OpenRouterSiteName: env("OPENROUTER_SITE_NAME", ""),
		OpenRouterTimeout:  envDur("OPENROUTER_TIMEOUT_SEC", 60) * time.Second,
		OpenRouterRPS:      envFloat("OPENROUTER_RPS", 0),
		RedisURL:           env("REDIS_URL", ""),
		CacheTTL:           envDur("CACHE_TTL_SEC", 30) * time.Second,
		DatabaseURL:        env("DATABASE_URL", ""),
		SeedDB:             envBool("DATABASE_SEED", true),
	}
	if cfg.DatabaseURL == "" {
		log.Println("[WARN] DATABASE_URL not set, using in-memory workflow store")
	}
	return cfg
}

// MCPAddr is the session server bind address.
func (c Config) MCPAddr() string {
	return net.JoinHostPort(c.MCPHost, strconv.Itoa(c.MCPPort))
}

func env(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}
func envBool(k string, def bool) bool {
	if v := os.Getenv(k); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return def
		}
		return b
	}
	return def
}
// envSwitch is envBool for feature switches: an unparseable value turns the
// feature off rather than back to its default.
func envSwitch(k string, def bool) bool {
	if v := os.Getenv(k); v != "" {
		b, err := strconv.ParseBool(v)
		return err == nil && b
	}
	return def
}
func envInt(k string, def int) int {
	if v := os.Getenv(k); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return def
}
func envFloat(k string, def float64) float64 {
	if v := os.Getenv(k); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return def
}
func envDur(k string, def int) time.Duration {
	if v := os.Getenv(k); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return time.Duration(i)
		}
	}
	return time.Duration(def)
}
