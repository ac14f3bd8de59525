package openapi

import (
	"encoding/json"
	"net/http"
	"sort"
	"strings"
	"sync"
)

// Operation is a single HTTP operation surfaced in the document.
type Operation struct {
	Method      string         `json:"method"`
	Path        string         `json:"path"`
	Summary     string         `json:"summary,omitempty"`
	Description string         `json:"description,omitempty"`
	Tags        []string       `json:"tags,omitempty"`
	Scopes      []string       `json:"x-required-scopes,omitempty"`
	RequestBody any            `json:"requestBody,omitempty"`
	Responses   map[string]any `json:"responses"`
}

// Registry collects operations as routes are mounted.
type Registry struct {
	mu     sync.RWMutex
	ops    []Operation
	scopes map[string]string
}

func NewRegistry() *Registry { return &Registry{scopes: map[string]string{}} }

func (r *Registry) Register(op Operation) {
	op.Method = strings.ToLower(op.Method)
	r.mu.Lock()
	r.ops = append(r.ops, op)
	r.mu.Unlock()
}

// DescribeScope adds a scope to the bearer security scheme description.
func (r *Registry) DescribeScope(scope, description string) {
	r.mu.Lock()
	r.scopes[scope] = description
	r.mu.Unlock()
}

// JSONBody wraps a schema as a required application/json request body.
func JSONBody(schema map[string]any) map[string]any {
	return map[string]any{
		"required": true,
		"content":  map[string]any{"application/json": map[string]any{"schema": schema}},
	}
}

// Responses is the standard set: 200 with description plus the problem responses.
func Responses(ok string) map[string]any {
	problem := func(d string) map[string]any {
		return map[string]any{
			"description": d,
			"content":     map[string]any{"application/problem+json": map[string]any{"schema": map[string]any{"$ref": "#/components/schemas/Problem"}}},
		}
	}
	return map[string]any{
		"200": map[string]any{"description": ok},
		"400": problem("Invalid request"),
		"401": problem("Missing or invalid bearer token"),
		"403": problem("Missing scope"),
		"502": problem("Completion provider unavailable"),
	}
}

// Build produces an OpenAPI 3.1 document for the registered operations.
func (r *Registry) Build(serviceName, version string) map[string]any {
	r.mu.RLock()
	defer r.mu.RUnlock()

	paths := map[string]any{}
	for _, op := range r.ops {
		if _, ok := paths[op.Path]; !ok {
			paths[op.Path] = map[string]any{}
		}
		m := map[string]any{
			"summary":     op.Summary,
			"description": op.Description,
			"tags":        op.Tags,
			"responses":   op.Responses,
		}
		if len(op.Scopes) > 0 {
			m["x-required-scopes"] = op.Scopes
			m["security"] = []map[string]any{{"bearer": op.Scopes}}
		}
		if op.RequestBody != nil {
			m["requestBody"] = op.RequestBody
		}
		paths[op.Path].(map[string]any)[op.Method] = m
	}

	names := make([]string, 0, len(r.scopes))
	for s := range r.scopes {
		names = append(names, s)
	}
	sort.Strings(names)
	var desc strings.Builder
	desc.WriteString("Static API token or OIDC access token.")
	for _, s := range names {
		desc.WriteString("\n- `" + s + "`: " + r.scopes[s])
	}

	return map[string]any{
		"openapi": "3.1.0",
		"info":    map[string]any{"title": serviceName, "version": version},
		"paths":   paths,
		"components": map[string]any{
			"securitySchemes": map[string]any{
				"bearer": map[string]any{
					"type":        "http",
					"scheme":      "bearer",
					"description": desc.String(),
				},
			},
			"schemas": map[string]any{
				"Problem": map[string]any{
					"type": "object",
					"properties": map[string]any{
						"type":   map[string]any{"type": "string"},
						"title":  map[string]any{"type": "string"},
						"status": map[string]any{"type": "integer"},
						"detail": map[string]any{"type": "string"},
						"code":   map[string]any{"type": "string"},
						"scope":  map[string]any{"type": "string"},
					},
				},
			},
		},
		"security": []map[string]any{{"bearer": []string{}}},
	}
}

// ServeHandler returns an HTTP handler that serves the built OpenAPI JSON.
func (r *Registry) ServeHandler(serviceName, version string) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(r.Build(serviceName, version))
	}
}
