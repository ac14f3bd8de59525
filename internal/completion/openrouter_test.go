package completion

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"automation/pkg/config"
	"automation/pkg/logger"
	"automation/pkg/problems"
)

func newTestClient(t *testing.T, h http.HandlerFunc, mutate func(*config.Config)) *OpenRouter {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	cfg := config.Config{
		OpenRouterAPIKey:   "sk-test",
		OpenRouterURL:      srv.URL,
		OpenRouterModel:    "test/model",
		OpenRouterSiteURL:  "https://automation.example",
		OpenRouterSiteName: "Automation",
		OpenRouterTimeout:  5 * time.Second,
	}
	if mutate != nil {
		mutate(&cfg)
	}
	return NewOpenRouter(cfg, logger.Nop())
}

func TestComplete_SendsRequestAndReturnsContent(t *testing.T) {
	var got chatRequest
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "Bearer sk-test", r.Header.Get("Authorization"))
		assert.Equal(t, "https://automation.example", r.Header.Get("HTTP-Referer"))
		assert.Equal(t, "Automation", r.Header.Get("X-Title"))
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_, _ = w.Write([]byte(`{"choices":[{"message":{"role":"assistant","content":"hello"}}]}`))
	}, nil)

	out, err := c.Complete(context.Background(), []Message{
		{Role: RoleSystem, Content: "be brief"},
		{Role: RoleUser, Content: "hi"},
	})
	require.NoError(t, err)
	assert.Equal(t, "hello", out)
	assert.Equal(t, "test/model", got.Model)
	require.Len(t, got.Messages, 2)
	assert.Equal(t, RoleSystem, got.Messages[0].Role)
}

func TestComplete_OmitsOptionalHeaders(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Empty(t, r.Header.Get("HTTP-Referer"))
		assert.Empty(t, r.Header.Get("X-Title"))
		_, _ = w.Write([]byte(`{"choices":[{"message":{"content":"ok"}}]}`))
	}, func(cfg *config.Config) {
		cfg.OpenRouterSiteURL = ""
		cfg.OpenRouterSiteName = ""
	})
	_, err := c.Complete(context.Background(), []Message{{Role: RoleUser, Content: "x"}})
	require.NoError(t, err)
}

func TestComplete_Failures(t *testing.T) {
	tests := []struct {
		name    string
		handler http.HandlerFunc
		mutate  func(*config.Config)
		message string
	}{
		{
			name:    "missing api key",
			handler: func(w http.ResponseWriter, r *http.Request) { t.Error("no request expected") },
			mutate:  func(cfg *config.Config) { cfg.OpenRouterAPIKey = " " },
			message: "OpenRouter API key not configured",
		},
		{
			name: "non-2xx status",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusTooManyRequests)
				_, _ = w.Write([]byte(`{"error":{"message":"slow down"}}`))
			},
			message: "OpenRouter request failed (429 Too Many Requests)",
		},
		{
			name: "no choices",
			handler: func(w http.ResponseWriter, r *http.Request) {
				_, _ = w.Write([]byte(`{"choices":[]}`))
			},
			message: "OpenRouter response did not include content",
		},
		{
			name: "empty content",
			handler: func(w http.ResponseWriter, r *http.Request) {
				_, _ = w.Write([]byte(`{"choices":[{"message":{"content":""}}]}`))
			},
			message: "OpenRouter response did not include content",
		},
		{
			name: "malformed body",
			handler: func(w http.ResponseWriter, r *http.Request) {
				_, _ = w.Write([]byte(`not json`))
			},
			message: "OpenRouter response did not include content",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newTestClient(t, tt.handler, tt.mutate)
			_, err := c.Complete(context.Background(), []Message{{Role: RoleUser, Content: "x"}})
			require.Error(t, err)
			assert.Equal(t, problems.ProviderUnavailable, problems.KindOf(err))
			assert.Equal(t, tt.message, err.Error())
		})
	}
}

func TestComplete_APIErrorIsWrapped(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		_, _ = w.Write([]byte(`upstream exploded`))
	}, nil)
	_, err := c.Complete(context.Background(), []Message{{Role: RoleUser, Content: "x"}})
	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusBadGateway, apiErr.StatusCode)
	assert.Equal(t, "upstream exploded", apiErr.Message)
}

func TestProviderFunc(t *testing.T) {
	var p Provider = ProviderFunc(func(_ context.Context, m []Message) (string, error) {
		return m[len(m)-1].Content, nil
	})
	out, err := p.Complete(context.Background(), []Message{{Role: RoleUser, Content: "echo"}})
	require.NoError(t, err)
	assert.Equal(t, "echo", out)
}
