// pkg/logger/logger.go
package logger

import (
	"go.uber.org/zap"
)

type Sugared = *zap.SugaredLogger

func New(env string) Sugared {
	var z *zap.Logger
	if env == "prod" {
		z, _ = zap.NewProduction()
	} else {
		z, _ = zap.NewDevelopment()
	}
	return z.Sugar()
}

// Nop returns a logger that discards everything; handy in tests.
func Nop() Sugared { return zap.NewNop().Sugar() }

// Named scopes log lines to a component (session, agent, auth, store, http).
// A nil parent yields a no-op logger so optional loggers never need nil checks.
func Named(parent Sugared, component string) Sugared {
	if parent == nil {
		return Nop()
	}
	return parent.Named(component)
}

// Redact keeps the first few characters of a secret for correlation in logs.
func Redact(secret string) string {
	if len(secret) <= 4 {
		return "***"
	}
	return secret[:4] + "***"
}
