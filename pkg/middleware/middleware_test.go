package middleware

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"automation/internal/auth"
	"automation/pkg/logger"
)

var ok = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusNoContent) })

func serve(h http.Handler, r *http.Request) *httptest.ResponseRecorder {
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, r)
	return rr
}

func problem(t *testing.T, rr *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	assert.Equal(t, "application/problem+json", rr.Header().Get("Content-Type"))
	var m map[string]any
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &m))
	return m
}

func TestRequestID(t *testing.T) {
	var seen string
	h := RequestID()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { seen = RequestIDFrom(r.Context()) }))

	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.Header.Set(HeaderRequestID, "req-1")
	rr := serve(h, r)
	assert.Equal(t, "req-1", seen)
	assert.Equal(t, "req-1", rr.Header().Get(HeaderRequestID))

	rr = serve(h, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Len(t, rr.Header().Get(HeaderRequestID), 36)
	assert.Equal(t, seen, rr.Header().Get(HeaderRequestID))
}

func TestBearerAuthAndRequireScope(t *testing.T) {
	a := auth.NewTokenAuthenticator(auth.ParseTokenList("t1:u1:workflow.read", nil), logger.Nop())
	h := BearerAuth(a, logger.Nop())(RequireScope(auth.ScopeWorkflowRead)(ok))

	rr := serve(h, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusUnauthorized, rr.Code, "public paths skip auth but RequireScope still needs an identity")

	r := httptest.NewRequest(http.MethodGet, "/x", nil)
	r.Header.Set("Authorization", "Bearer t1")
	assert.Equal(t, http.StatusNoContent, serve(h, r).Code)

	r = httptest.NewRequest(http.MethodGet, "/x", nil)
	r.Header.Set("Authorization", "Basic dTpw")
	rr = serve(h, r)
	assert.Equal(t, http.StatusUnauthorized, rr.Code)
	assert.Equal(t, "authentication_required", problem(t, rr)["code"])

	r = httptest.NewRequest(http.MethodGet, "/x", nil)
	r.Header.Set("Authorization", "bearer wrong")
	rr = serve(h, r)
	assert.Equal(t, "authentication_failed", problem(t, rr)["code"])

	strict := BearerAuth(a, logger.Nop())(RequireScope(auth.ScopeWorkflowRead, auth.ScopeAnalyticsRead)(ok))
	r = httptest.NewRequest(http.MethodGet, "/x", nil)
	r.Header.Set("Authorization", "Bearer t1")
	rr = serve(strict, r)
	assert.Equal(t, http.StatusForbidden, rr.Code)
	assert.Equal(t, "analytics.read", problem(t, rr)["scope"])
}

func TestPublicPathsSkipAuth(t *testing.T) {
	a := auth.NewTokenAuthenticator(nil, logger.Nop())
	h := BearerAuth(a, logger.Nop())(ok)
	for _, p := range []string{"/healthz", "/metrics", "/openapi.json"} {
		assert.Equal(t, http.StatusNoContent, serve(h, httptest.NewRequest(http.MethodGet, p, nil)).Code, p)
	}
}

func TestIdentityFrom(t *testing.T) {
	ctx := httptest.NewRequest(http.MethodGet, "/", nil).Context()
	_, ok := IdentityFrom(ctx)
	assert.False(t, ok)

	ctx = WithIdentity(ctx, auth.Identity{UserID: "u", Scopes: []string{"a"}})
	id, ok := IdentityFrom(ctx)
	require.True(t, ok)
	assert.Equal(t, "u", id.UserID)
	assert.Equal(t, []string{"a"}, id.Scopes)
}

func TestRecover(t *testing.T) {
	h := Recover(logger.Nop())(http.HandlerFunc(func(http.ResponseWriter, *http.Request) { panic("kaboom") }))
	rr := serve(h, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusInternalServerError, rr.Code)
	body := problem(t, rr)
	assert.Equal(t, "internal_error", body["code"])
	assert.Equal(t, "kaboom", body["detail"])
}

func TestAccessLogRecordsFirstStatus(t *testing.T) {
	h := AccessLog(logger.Nop())(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusAccepted)
		w.WriteHeader(http.StatusTeapot)
		_, _ = w.Write([]byte("x"))
	}))
	rr := serve(h, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusAccepted, rr.Code)
	assert.Equal(t, "x", rr.Body.String())
}
