package auth

// Scopes granted to identities. Each gates one tool; agent_ask needs both
// AgentExecute and AIGenerate.
const (
	ScopeWorkflowRead  = "workflow.read"
	ScopeAnalyticsRead = "analytics.read"
	ScopeAIGenerate    = "ai.generate"
	ScopeAgentExecute  = "agent.execute"
)

// Identity is the per-caller view handed out by an Authenticator. It is always
// a copy; mutating it never affects the authenticator's records.
type Identity struct {
	UserID string   `json:"userId"`
	Scopes []string `json:"scopes"`
}

// HasScope reports whether scope was granted.
func (id Identity) HasScope(scope string) bool {
	for _, s := range id.Scopes {
		if s == scope {
			return true
		}
	}
	return false
}

// Clone returns a deep copy.
func (id Identity) Clone() Identity {
	out := Identity{UserID: id.UserID, Scopes: make([]string, len(id.Scopes))}
	copy(out.Scopes, id.Scopes)
	return out
}

// Narrow keeps only the requested scopes that were actually granted. An empty
// request returns the identity unchanged.
func (id Identity) Narrow(requested []string) Identity {
	if len(requested) == 0 {
		return id.Clone()
	}
	out := Identity{UserID: id.UserID, Scopes: []string{}}
	for _, r := range requested {
		if id.HasScope(r) && !out.HasScope(r) {
			out.Scopes = append(out.Scopes, r)
		}
	}
	return out
}
