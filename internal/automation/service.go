// Package automation is the application layer shared by the HTTP API and the
// session protocol: workflow reads, one-shot generation and the agent.
package automation

import (
	"context"

	"automation/internal/agent"
	"automation/internal/completion"
	"automation/internal/workflow"
	"automation/pkg/logger"
)

// Completion is the generate_ai result.
type Completion struct {
	Content string `json:"content"`
}

type Service struct {
	store    workflow.Store
	provider completion.Provider
	agent    *agent.Orchestrator
	log      logger.Sugared
}

func NewService(store workflow.Store, provider completion.Provider, log logger.Sugared) *Service {
	return &Service{
		store:    store,
		provider: provider,
		agent:    agent.New(provider, store, log),
		log:      logger.Named(log, "automation"),
	}
}

func (s *Service) ListWorkflows(ctx context.Context) ([]workflow.Workflow, error) {
	return s.store.FindAll(ctx)
}

func (s *Service) WorkflowAnalytics(ctx context.Context) (workflow.Analytics, error) {
	return s.store.Analytics(ctx)
}

// GenerateAI sends prompt as a single user message.
func (s *Service) GenerateAI(ctx context.Context, prompt string) (Completion, error) {
	content, err := s.provider.Complete(ctx, []completion.Message{{Role: completion.RoleUser, Content: prompt}})
	if err != nil {
		return Completion{}, err
	}
	return Completion{Content: content}, nil
}

// Ask runs the agent with the caller's scopes.
func (s *Service) Ask(ctx context.Context, prompt string, scopes []string, format agent.Format) (*agent.Result, error) {
	return s.agent.Run(ctx, prompt, scopes, format)
}
