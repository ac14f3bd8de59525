package problems

import (
	"encoding/json"
	"net/http"
	"os"
	"strings"
)

// Base returns the base URL for problem type identifiers.
// PROBLEM_BASE_URL wins, then BASE_PUBLIC_URL + "/problems", then a placeholder.
func Base() string {
	if b := os.Getenv("PROBLEM_BASE_URL"); b != "" {
		return strings.TrimRight(b, "/")
	}
	if b := os.Getenv("BASE_PUBLIC_URL"); b != "" {
		return strings.TrimRight(b, "/") + "/problems"
	}
	return "https://example.com/problems"
}

// Type builds a full problem type URL for the given slug.
func Type(slug string) string { return Base() + "/" + slug }

// Write renders err as application/problem+json. Untyped errors keep their
// message, mirroring how the session protocol surfaces them.
func Write(w http.ResponseWriter, err error) {
	kind := KindOf(err)
	body := map[string]any{
		"type":   Type(slug(kind)),
		"title":  http.StatusText(kind.Status()),
		"status": kind.Status(),
		"detail": err.Error(),
		"code":   kind.Code(),
	}
	if pe, ok := As(err); ok && pe.Scope != "" {
		body["scope"] = pe.Scope
	}
	w.Header().Set("Content-Type", "application/problem+json")
	w.WriteHeader(kind.Status())
	_ = json.NewEncoder(w).Encode(body)
}

func slug(k Kind) string {
	switch k {
	case Authorization:
		return "insufficient-scope"
	case Authentication, AuthenticationRequired:
		return "unauthenticated"
	case Validation, BadRequest:
		return "invalid-request"
	case ProviderUnavailable:
		return "provider-unavailable"
	case Protocol:
		return "protocol"
	default:
		return "internal"
	}
}
