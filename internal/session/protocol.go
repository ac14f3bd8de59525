package session

import (
	"encoding/json"

	"automation/pkg/problems"
)

// Request types.
const (
	TypeInitialize   = "initialize"
	TypeAuthenticate = "authenticate"
	TypeListTools    = "list_tools"
	TypeCallTool     = "call_tool"
	TypePing         = "ping"
)

// Response types.
const (
	TypeResult = "result"
	TypeError  = "error"
	TypeEvent  = "event"
)

const (
	EventReady                  = "ready"
	EventAuthenticationRequired = "authentication_required"
)

// Request is the envelope every client message shares. ID is echoed back
// verbatim so clients may use strings or numbers.
type Request struct {
	Type   string          `json:"type"`
	ID     json.RawMessage `json:"id,omitempty"`
	Client json.RawMessage `json:"client,omitempty"`
	Token  string          `json:"token,omitempty"`
	Tool   string          `json:"tool,omitempty"`
	Params map[string]any  `json:"params,omitempty"`
}

type ErrorBody struct {
	Message string `json:"message"`
	Code    string `json:"code,omitempty"`
	Scope   string `json:"scope,omitempty"`
}

type Response struct {
	Type   string          `json:"type"`
	ID     json.RawMessage `json:"id,omitempty"`
	Result any             `json:"result,omitempty"`
	Error  *ErrorBody      `json:"error,omitempty"`
	Event  string          `json:"event,omitempty"`
	Data   any             `json:"data,omitempty"`
}

func resultResponse(id json.RawMessage, v any) Response {
	return Response{Type: TypeResult, ID: id, Result: v}
}

// errorResponse keeps the message of untyped errors and labels them internal_error.
func errorResponse(id json.RawMessage, err error) Response {
	body := &ErrorBody{Message: err.Error(), Code: problems.Internal.Code()}
	if pe, ok := problems.As(err); ok {
		body.Message = pe.Message
		body.Code = pe.Code()
		body.Scope = pe.Scope
	}
	return Response{Type: TypeError, ID: id, Error: body}
}

func eventResponse(event string, data any) Response {
	return Response{Type: TypeEvent, Event: event, Data: data}
}

// peekID recovers the correlation id from a payload that failed full decoding.
func peekID(raw []byte) json.RawMessage {
	var head struct {
		ID json.RawMessage `json:"id"`
	}
	if json.Unmarshal(raw, &head) != nil {
		return nil
	}
	return head.ID
}
