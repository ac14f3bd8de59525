package agent

import (
	"bytes"
	"encoding/json"
	"strings"

	"automation/internal/tools"
	"automation/pkg/problems"
)

// Decision is the planner's phase-one choice: a ToolDecision or a RespondDecision.
type Decision interface {
	isDecision()
}

type ToolDecision struct {
	Tool   tools.Name
	Params map[string]any
}

type RespondDecision struct {
	Text string
}

func (ToolDecision) isDecision()    {}
func (RespondDecision) isDecision() {}

func (d ToolDecision) MarshalJSON() ([]byte, error) {
	params := d.Params
	if params == nil {
		params = map[string]any{}
	}
	return json.Marshal(struct {
		Action string         `json:"action"`
		Tool   tools.Name     `json:"tool"`
		Params map[string]any `json:"params"`
	}{"tool", d.Tool, params})
}

func (d RespondDecision) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Action   string `json:"action"`
		Response string `json:"response"`
	}{"respond", d.Text})
}

// plannable is the fixed set the planner may ever name, regardless of scopes.
var plannable = map[tools.Name]bool{
	tools.ListWorkflows:     true,
	tools.WorkflowAnalytics: true,
}

type rawDecision struct {
	Action   string          `json:"action"`
	Tool     string          `json:"tool"`
	Params   map[string]any  `json:"params"`
	Response json.RawMessage `json:"response"`
}

var errUnparseable = problems.Invalid("Failed to parse agent decision from model response")

// ParseDecision validates the model's raw phase-one text. It checks shape
// only; whether the caller may use the tool is decided against the catalog.
func ParseDecision(raw string) (Decision, error) {
	var d rawDecision
	dec := json.NewDecoder(strings.NewReader(strings.TrimSpace(raw)))
	if err := dec.Decode(&d); err != nil {
		return nil, errUnparseable
	}
	if dec.More() {
		return nil, errUnparseable
	}
	switch d.Action {
	case "tool":
		name := tools.Name(d.Tool)
		if !plannable[name] {
			return nil, errUnparseable
		}
		return ToolDecision{Tool: name, Params: d.Params}, nil
	case "respond":
		text, ok := jsonString(d.Response)
		if !ok {
			return nil, errUnparseable
		}
		return RespondDecision{Text: text}, nil
	default:
		return nil, errUnparseable
	}
}

func jsonString(raw json.RawMessage) (string, bool) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || raw[0] != '"' {
		return "", false
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return "", false
	}
	return s, true
}
