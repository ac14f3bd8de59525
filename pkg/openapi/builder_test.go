package openapi

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuild(t *testing.T) {
	reg := NewRegistry()
	reg.DescribeScope("workflow.read", "Read workflows")
	reg.Register(Operation{Method: "GET", Path: "/automation/workflows", Scopes: []string{"workflow.read"}, Responses: Responses("ok")})
	reg.Register(Operation{Method: "POST", Path: "/automation/ai", RequestBody: JSONBody(map[string]any{"type": "object"}), Responses: Responses("ok")})

	doc := reg.Build("automation-api", "1.0.0")
	assert.Equal(t, "3.1.0", doc["openapi"])

	paths := doc["paths"].(map[string]any)
	get := paths["/automation/workflows"].(map[string]any)["get"].(map[string]any)
	assert.Equal(t, []string{"workflow.read"}, get["x-required-scopes"])
	post := paths["/automation/ai"].(map[string]any)["post"].(map[string]any)
	assert.Contains(t, post, "requestBody")
	assert.NotContains(t, post, "x-required-scopes")

	schemes := doc["components"].(map[string]any)["securitySchemes"].(map[string]any)
	assert.Contains(t, schemes["bearer"].(map[string]any)["description"], "`workflow.read`: Read workflows")
}

func TestServeHandler(t *testing.T) {
	reg := NewRegistry()
	reg.Register(Operation{Method: "get", Path: "/x", Responses: Responses("ok")})

	rr := httptest.NewRecorder()
	reg.ServeHandler("svc", "v1")(rr, httptest.NewRequest(http.MethodGet, "/openapi.json", nil))
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "application/json", rr.Header().Get("Content-Type"))

	var doc map[string]any
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &doc))
	assert.Equal(t, "svc", doc["info"].(map[string]any)["title"])
}
