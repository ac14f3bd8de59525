package auth

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"automation/pkg/logger"
)

// Record is one configured credential.
type Record struct {
	Token  string   `yaml:"token"`
	UserID string   `yaml:"user_id"`
	Scopes []string `yaml:"scopes"`
}

// ParseTokenList reads the delimited form token:userId:scope1|scope2,...
// Fields after the third are ignored. Entries without a token or user id are
// skipped with a warning; they never fail the whole batch.
func ParseTokenList(raw string, log logger.Sugared) []Record {
	var out []Record
	for _, segment := range strings.Split(raw, ",") {
		segment = strings.TrimSpace(segment)
		if segment == "" {
			continue
		}
		parts := strings.Split(segment, ":")
		rec := Record{Token: strings.TrimSpace(parts[0])}
		if len(parts) > 1 {
			rec.UserID = strings.TrimSpace(parts[1])
		}
		if len(parts) > 2 {
			rec.Scopes = strings.Split(parts[2], "|")
		}
		if r, ok := normalize(rec, log); ok {
			out = append(out, r)
		}
	}
	return out
}

type tokenFile struct {
	Tokens []Record `yaml:"tokens"`
}

// LoadTokenFile reads a YAML token file:
//
//	tokens:
//	  - token: abc
//	    user_id: u1
//	    scopes: [workflow.read, analytics.read]
func LoadTokenFile(path string, log logger.Sugared) ([]Record, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read token file: %w", err)
	}
	var f tokenFile
	if err := yaml.Unmarshal(b, &f); err != nil {
		return nil, fmt.Errorf("parse token file: %w", err)
	}
	out := make([]Record, 0, len(f.Tokens))
	for _, rec := range f.Tokens {
		if r, ok := normalize(rec, log); ok {
			out = append(out, r)
		}
	}
	return out, nil
}

// LoadSources combines the inline list and the optional file. Later entries
// win on duplicate tokens. With neither configured it returns no records and
// logs a warning: every validation will then fail closed.
func LoadSources(inline, file string, log logger.Sugared) ([]Record, error) {
	log = logger.Named(log, "auth")
	if strings.TrimSpace(inline) == "" && strings.TrimSpace(file) == "" {
		log.Warn("no MCP_API_KEYS configured; authentication will fail for all tokens")
		return nil, nil
	}
	recs := ParseTokenList(inline, log)
	if file != "" {
		fromFile, err := LoadTokenFile(file, log)
		if err != nil {
			return recs, err
		}
		recs = append(recs, fromFile...)
	}
	return recs, nil
}

func normalize(rec Record, log logger.Sugared) (Record, bool) {
	rec.Token = strings.TrimSpace(rec.Token)
	rec.UserID = strings.TrimSpace(rec.UserID)
	if rec.Token == "" || rec.UserID == "" {
		if log != nil {
			log.Warnw("skipping invalid token entry", "token", logger.Redact(rec.Token), "user", rec.UserID)
		}
		return Record{}, false
	}
	scopes := make([]string, 0, len(rec.Scopes))
	seen := map[string]struct{}{}
	for _, s := range rec.Scopes {
		s = strings.TrimSpace(s)
		if s == "" {
			continue
		}
		if _, dup := seen[s]; dup {
			continue
		}
		seen[s] = struct{}{}
		scopes = append(scopes, s)
	}
	rec.Scopes = scopes
	return rec, true
}
