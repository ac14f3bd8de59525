// Package agent turns a natural-language prompt into at most one permitted
// workflow tool call and a synthesized answer, using two completion rounds.
package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"automation/internal/auth"
	"automation/internal/completion"
	"automation/internal/tools"
	"automation/internal/workflow"
	"automation/pkg/logger"
	"automation/pkg/problems"
)

var (
	tracer = otel.Tracer("automation/agent")

	decisions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "automation_agent_decisions_total",
		Help: "Planner decisions by action",
	}, []string{"action"})
)

// CatalogEntry is what the planner is told about a tool.
type CatalogEntry struct {
	Name        tools.Name `json:"name"`
	Description string     `json:"description"`
}

// Catalog lists the workflow tools the planner may pick for these scopes.
func Catalog(scopes []string) []CatalogEntry {
	id := auth.Identity{Scopes: scopes}
	out := []CatalogEntry{}
	if id.HasScope(auth.ScopeWorkflowRead) {
		out = append(out, CatalogEntry{Name: tools.ListWorkflows, Description: "Return all workflows with their metadata."})
	}
	if id.HasScope(auth.ScopeAnalyticsRead) {
		out = append(out, CatalogEntry{Name: tools.WorkflowAnalytics, Description: "Return aggregate workflow statistics."})
	}
	return out
}

// Result is returned whole to the caller. ToolResult is nil for direct responses.
type Result struct {
	Decision      Decision `json:"decision"`
	ToolResult    any      `json:"toolResult"`
	FinalResponse string   `json:"finalResponse"`
}

type Orchestrator struct {
	provider completion.Provider
	store    workflow.Store
	log      logger.Sugared
}

func New(provider completion.Provider, store workflow.Store, log logger.Sugared) *Orchestrator {
	return &Orchestrator{provider: provider, store: store, log: logger.Named(log, "agent")}
}

// Run executes the decide, execute and synthesize phases. A direct response
// costs one completion call; a tool decision costs two.
func (o *Orchestrator) Run(ctx context.Context, prompt string, scopes []string, format Format) (*Result, error) {
	ctx, span := tracer.Start(ctx, "agent.run")
	defer span.End()

	res, err := o.run(ctx, prompt, scopes, format)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	return res, err
}

func (o *Orchestrator) run(ctx context.Context, prompt string, scopes []string, format Format) (*Result, error) {
	if !(auth.Identity{Scopes: scopes}).HasScope(auth.ScopeAIGenerate) {
		return nil, &problems.Error{
			Kind:    problems.Authorization,
			Scope:   auth.ScopeAIGenerate,
			Message: "ai.generate scope required to use the agent",
		}
	}
	catalog := Catalog(scopes)
	if len(catalog) == 0 {
		return nil, problems.Denied("No tools available for the current user scope")
	}

	decision, err := o.decide(ctx, prompt, catalog)
	if err != nil {
		return nil, err
	}

	switch d := decision.(type) {
	case RespondDecision:
		decisions.WithLabelValues("respond").Inc()
		o.log.Debugw("agent responded directly", "chars", len(d.Text))
		return &Result{Decision: d, FinalResponse: d.Text}, nil
	case ToolDecision:
		decisions.WithLabelValues("tool").Inc()
		if !offered(catalog, d.Tool) {
			o.log.Warnw("planner chose a tool outside the caller's catalog", "tool", d.Tool)
			return nil, problems.Denied("Tool %s is not permitted", d.Tool)
		}
		result, err := o.execute(ctx, d.Tool)
		if err != nil {
			return nil, err
		}
		final, err := o.synthesize(ctx, prompt, d.Tool, result, format)
		if err != nil {
			return nil, err
		}
		return &Result{Decision: d, ToolResult: result, FinalResponse: final}, nil
	default:
		return nil, problems.Bad("unsupported decision %T", decision)
	}
}

func (o *Orchestrator) decide(ctx context.Context, prompt string, catalog []CatalogEntry) (Decision, error) {
	ctx, span := tracer.Start(ctx, "agent.decide")
	defer span.End()

	catalogJSON, err := json.MarshalIndent(catalog, "", "  ")
	if err != nil {
		return nil, err
	}
	system := fmt.Sprintf(`You are an AI orchestration planner. Available tools: %s.
Respond with strict JSON using one of the following shapes:
1. {"action":"tool","tool":"<toolName>","params":{}}
2. {"action":"respond","response":"<text>"}
Do not include any additional text.`, catalogJSON)

	raw, err := o.provider.Complete(ctx, []completion.Message{
		{Role: completion.RoleSystem, Content: system},
		{Role: completion.RoleUser, Content: prompt},
	})
	if err != nil {
		return nil, err
	}
	decision, err := ParseDecision(raw)
	if err != nil {
		o.log.Warnw("failed to parse agent decision", "response", truncate(raw, 300))
		span.SetStatus(codes.Error, "unparseable decision")
		return nil, err
	}
	if d, ok := decision.(ToolDecision); ok {
		span.SetAttributes(attribute.String("agent.tool", string(d.Tool)))
	}
	return decision, nil
}

func (o *Orchestrator) execute(ctx context.Context, tool tools.Name) (any, error) {
	ctx, span := tracer.Start(ctx, "agent.execute", attributeTool(tool))
	defer span.End()

	switch tool {
	case tools.ListWorkflows:
		return o.store.FindAll(ctx)
	case tools.WorkflowAnalytics:
		return o.store.Analytics(ctx)
	default:
		return nil, problems.Bad("Unsupported tool: %s", tool)
	}
}

func (o *Orchestrator) synthesize(ctx context.Context, prompt string, tool tools.Name, result any, format Format) (string, error) {
	ctx, span := tracer.Start(ctx, "agent.synthesize", attributeTool(tool))
	defer span.End()

	resultJSON, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return "", fmt.Errorf("encode tool result: %w", err)
	}
	system := "You are an AI assistant creating user-facing answers.\n" + format.instruction()
	user := fmt.Sprintf("User question: %s\nTool used: %s\nTool result JSON:\n%s", prompt, tool, resultJSON)

	return o.provider.Complete(ctx, []completion.Message{
		{Role: completion.RoleSystem, Content: system},
		{Role: completion.RoleUser, Content: user},
	})
}

func offered(catalog []CatalogEntry, tool tools.Name) bool {
	for _, c := range catalog {
		if c.Name == tool {
			return true
		}
	}
	return false
}

func attributeTool(tool tools.Name) trace.SpanStartOption {
	return trace.WithAttributes(attribute.String("agent.tool", string(tool)))
}

func truncate(s string, n int) string {
	s = strings.TrimSpace(s)
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
