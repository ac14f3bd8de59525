// Package tools names the scope-gated operations exposed to clients and
// builds the catalog each caller is allowed to see.
package tools

import "automation/internal/auth"

type Name string

const (
	ListWorkflows     Name = "list_workflows"
	WorkflowAnalytics Name = "workflow_analytics"
	GenerateAI        Name = "generate_ai"
	AgentAsk          Name = "agent_ask"
)

// Definition is what list_tools returns for one tool.
type Definition struct {
	Name        Name           `json:"name"`
	Description string         `json:"description"`
	InputSchema map[string]any `json:"inputSchema"`
}

type gate struct {
	def    Definition
	scopes []string
}

func emptySchema() map[string]any {
	return map[string]any{"type": "object", "properties": map[string]any{}}
}

func promptSchema(extra map[string]any) map[string]any {
	props := map[string]any{
		"prompt": map[string]any{"type": "string", "description": "Prompt to send to the model."},
	}
	for k, v := range extra {
		props[k] = v
	}
	return map[string]any{"type": "object", "properties": props, "required": []string{"prompt"}}
}

// gates lists every tool in catalog order with the scopes it needs. agent_ask
// lists agent.execute first; that is the order missing scopes are reported in.
func gates() []gate {
	return []gate{
		{
			def: Definition{
				Name:        ListWorkflows,
				Description: "Returns all workflows stored in the automation database.",
				InputSchema: emptySchema(),
			},
			scopes: []string{auth.ScopeWorkflowRead},
		},
		{
			def: Definition{
				Name:        WorkflowAnalytics,
				Description: "Provides aggregate statistics about workflows.",
				InputSchema: emptySchema(),
			},
			scopes: []string{auth.ScopeAnalyticsRead},
		},
		{
			def: Definition{
				Name:        GenerateAI,
				Description: "Generates text using OpenRouter based on the provided prompt.",
				InputSchema: promptSchema(nil),
			},
			scopes: []string{auth.ScopeAIGenerate},
		},
		{
			def: Definition{
				Name:        AgentAsk,
				Description: "Runs the AI agent orchestration pipeline to choose tools and craft a response.",
				InputSchema: promptSchema(map[string]any{
					"outputFormat": map[string]any{
						"type":        "string",
						"enum":        []string{"text", "markdown", "html"},
						"description": "Format of the final answer. Defaults to markdown.",
					},
				}),
			},
			scopes: []string{auth.ScopeAgentExecute, auth.ScopeAIGenerate},
		},
	}
}

// Catalog returns the definitions whose scopes are all granted to id. It is
// rebuilt on every call and is advisory only: callers must still check
// MissingScope before executing a tool.
func Catalog(id auth.Identity) []Definition {
	out := []Definition{}
	for _, g := range gates() {
		if covers(id, g.scopes) {
			out = append(out, g.def)
		}
	}
	return out
}

// RequiredScopes reports the scopes name needs, or false for an unknown tool.
func RequiredScopes(name Name) ([]string, bool) {
	for _, g := range gates() {
		if g.def.Name == name {
			return g.scopes, true
		}
	}
	return nil, false
}

// MissingScope returns the first required scope id lacks, or "" when allowed.
func MissingScope(id auth.Identity, name Name) string {
	scopes, _ := RequiredScopes(name)
	for _, s := range scopes {
		if !id.HasScope(s) {
			return s
		}
	}
	return ""
}

func covers(id auth.Identity, scopes []string) bool {
	for _, s := range scopes {
		if !id.HasScope(s) {
			return false
		}
	}
	return true
}
