package automation

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"automation/internal/agent"
	"automation/internal/auth"
	"automation/pkg/logger"
	"automation/pkg/middleware"
	"automation/pkg/openapi"
	"automation/pkg/problems"
)

const maxBody = 1 << 20

// RegisterRoutes mounts the request/response API under /automation.
// GET  /automation/workflows               workflow.read
// GET  /automation/analytics               analytics.read
// POST /automation/ai     {prompt}         ai.generate
// POST /automation/agent  {prompt, outputFormat?, scopes?}  agent.execute + ai.generate
//
// Routes expect middleware.BearerAuth to have run.
func RegisterRoutes(r chi.Router, svc *Service, log logger.Sugared) {
	log = logger.Named(log, "http")

	r.Route("/automation", func(r chi.Router) {
		r.With(middleware.RequireScope(auth.ScopeWorkflowRead)).Get("/workflows", func(w http.ResponseWriter, req *http.Request) {
			wfs, err := svc.ListWorkflows(req.Context())
			if err != nil {
				fail(w, req, log, err)
				return
			}
			writeJSON(w, http.StatusOK, wfs)
		})

		r.With(middleware.RequireScope(auth.ScopeAnalyticsRead)).Get("/analytics", func(w http.ResponseWriter, req *http.Request) {
			a, err := svc.WorkflowAnalytics(req.Context())
			if err != nil {
				fail(w, req, log, err)
				return
			}
			writeJSON(w, http.StatusOK, a)
		})

		r.With(middleware.RequireScope(auth.ScopeAIGenerate)).Post("/ai", func(w http.ResponseWriter, req *http.Request) {
			var body struct {
				Prompt string `json:"prompt"`
			}
			if err := decode(req, &body); err != nil {
				problems.Write(w, err)
				return
			}
			if strings.TrimSpace(body.Prompt) == "" {
				problems.Write(w, problems.Invalid("prompt must not be empty"))
				return
			}
			out, err := svc.GenerateAI(req.Context(), body.Prompt)
			if err != nil {
				fail(w, req, log, err)
				return
			}
			writeJSON(w, http.StatusOK, out)
		})

		r.With(middleware.RequireScope(auth.ScopeAgentExecute, auth.ScopeAIGenerate)).Post("/agent", func(w http.ResponseWriter, req *http.Request) {
			var body struct {
				Prompt       string   `json:"prompt"`
				OutputFormat any      `json:"outputFormat"`
				Scopes       []string `json:"scopes"`
			}
			if err := decode(req, &body); err != nil {
				problems.Write(w, err)
				return
			}
			if strings.TrimSpace(body.Prompt) == "" {
				problems.Write(w, problems.Invalid("prompt must not be empty"))
				return
			}
			id, _ := middleware.IdentityFrom(req.Context())
			scoped := id.Narrow(body.Scopes)
			res, err := svc.Ask(req.Context(), body.Prompt, scoped.Scopes, agent.ParseFormat(body.OutputFormat))
			if err != nil {
				fail(w, req, log, err)
				return
			}
			writeJSON(w, http.StatusOK, res)
		})
	})
}

// Document registers the routes above with the OpenAPI registry.
func Document(reg *openapi.Registry) {
	promptBody := openapi.JSONBody(map[string]any{
		"type":       "object",
		"required":   []string{"prompt"},
		"properties": map[string]any{"prompt": map[string]any{"type": "string"}},
	})
	reg.Register(openapi.Operation{
		Method: http.MethodGet, Path: "/automation/workflows", Tags: []string{"automation"},
		Summary:     "List workflows",
		Description: "Retrieves all workflows ordered by id.",
		Scopes:      []string{auth.ScopeWorkflowRead},
		Responses:   openapi.Responses("Workflow list"),
	})
	reg.Register(openapi.Operation{
		Method: http.MethodGet, Path: "/automation/analytics", Tags: []string{"automation"},
		Summary:     "Workflow analytics",
		Description: "Aggregated statistics for stored workflows.",
		Scopes:      []string{auth.ScopeAnalyticsRead},
		Responses:   openapi.Responses("Workflow analytics"),
	})
	reg.Register(openapi.Operation{
		Method: http.MethodPost, Path: "/automation/ai", Tags: []string{"automation"},
		Summary:     "Generate AI completion",
		Description: "Sends a prompt to the completion provider and returns the generated content.",
		Scopes:      []string{auth.ScopeAIGenerate},
		RequestBody: promptBody,
		Responses:   openapi.Responses("Generated content"),
	})
	reg.Register(openapi.Operation{
		Method: http.MethodPost, Path: "/automation/agent", Tags: []string{"automation"},
		Summary:     "Ask the agent",
		Description: "Lets the model pick a permitted workflow tool and synthesizes an answer. Optional scopes narrow the caller's grant.",
		Scopes:      []string{auth.ScopeAgentExecute, auth.ScopeAIGenerate},
		RequestBody: openapi.JSONBody(map[string]any{
			"type":     "object",
			"required": []string{"prompt"},
			"properties": map[string]any{
				"prompt":       map[string]any{"type": "string"},
				"outputFormat": map[string]any{"type": "string", "enum": []string{"text", "markdown", "html"}},
				"scopes":       map[string]any{"type": "array", "items": map[string]any{"type": "string"}},
			},
		}),
		Responses: openapi.Responses("Agent result"),
	})
}

func decode(req *http.Request, dst any) error {
	if err := json.NewDecoder(http.MaxBytesReader(nil, req.Body, maxBody)).Decode(dst); err != nil {
		return problems.Invalid("Invalid JSON payload")
	}
	return nil
}

func fail(w http.ResponseWriter, req *http.Request, log logger.Sugared, err error) {
	if problems.KindOf(err) == problems.Internal {
		log.Errorw("request failed", "path", req.URL.Path, "err", err, "request_id", middleware.RequestIDFrom(req.Context()))
	}
	problems.Write(w, err)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
