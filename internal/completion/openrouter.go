package completion

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"golang.org/x/time/rate"

	"automation/pkg/config"
	"automation/pkg/logger"
	"automation/pkg/problems"
)

var requestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
	Name:    "automation_completion_request_seconds",
	Help:    "Latency of chat completion requests by outcome",
	Buckets: prometheus.ExponentialBuckets(0.1, 2, 10),
}, []string{"outcome"})

// APIError is a non-2xx answer from the completion endpoint.
type APIError struct {
	StatusCode int
	Status     string
	Message    string
}

func (e *APIError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("HTTP %d: %s", e.StatusCode, e.Message)
	}
	return "HTTP " + e.Status
}

type chatRequest struct {
	Model    string    `json:"model"`
	Messages []Message `json:"messages"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

type errorResponse struct {
	Error struct {
		Message string `json:"message"`
	} `json:"error"`
}

// OpenRouter calls an OpenRouter-compatible chat completions endpoint. Each
// call is a single attempt; there are no retries.
type OpenRouter struct {
	apiKey   string
	url      string
	model    string
	siteURL  string
	siteName string
	http     *http.Client
	limiter  *rate.Limiter
	log      logger.Sugared
}

func NewOpenRouter(cfg config.Config, log logger.Sugared) *OpenRouter {
	timeout := cfg.OpenRouterTimeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	c := &OpenRouter{
		apiKey:   strings.TrimSpace(cfg.OpenRouterAPIKey),
		url:      cfg.OpenRouterURL,
		model:    cfg.OpenRouterModel,
		siteURL:  cfg.OpenRouterSiteURL,
		siteName: cfg.OpenRouterSiteName,
		http:     &http.Client{Timeout: timeout, Transport: otelhttp.NewTransport(http.DefaultTransport)},
		log:      logger.Named(log, "completion"),
	}
	if cfg.OpenRouterRPS > 0 {
		burst := int(cfg.OpenRouterRPS)
		if burst < 1 {
			burst = 1
		}
		c.limiter = rate.NewLimiter(rate.Limit(cfg.OpenRouterRPS), burst)
	}
	if c.apiKey == "" {
		c.log.Warn("OPENROUTER_API_KEY not set; completions will fail")
	}
	return c
}

func (c *OpenRouter) Complete(ctx context.Context, messages []Message) (string, error) {
	if c.apiKey == "" {
		return "", problems.Unavailable(nil, "OpenRouter API key not configured")
	}
	start := time.Now()
	content, err := c.complete(ctx, messages)
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	requestDuration.WithLabelValues(outcome).Observe(time.Since(start).Seconds())
	return content, err
}

func (c *OpenRouter) complete(ctx context.Context, messages []Message) (string, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return "", problems.Unavailable(err, "OpenRouter request failed (rate limit wait: %v)", err)
		}
	}
	body, err := json.Marshal(chatRequest{Model: c.model, Messages: messages})
	if err != nil {
		return "", fmt.Errorf("marshaling request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("creating request: %w", err)
	}
	c.setHeaders(req)

	resp, err := c.http.Do(req)
	if err != nil {
		c.log.Warnw("completion transport error", "err", err)
		return "", problems.Unavailable(err, "OpenRouter request failed (%v)", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		apiErr := parseError(resp)
		c.log.Warnw("completion rejected", "status", resp.StatusCode, "err", apiErr.Message)
		return "", problems.Unavailable(apiErr, "OpenRouter request failed (%s)", resp.Status)
	}

	var out chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", problems.Unavailable(err, "OpenRouter response did not include content")
	}
	if len(out.Choices) == 0 || out.Choices[0].Message.Content == "" {
		return "", problems.Unavailable(nil, "OpenRouter response did not include content")
	}
	return out.Choices[0].Message.Content, nil
}

func (c *OpenRouter) setHeaders(req *http.Request) {
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	if c.siteURL != "" {
		req.Header.Set("HTTP-Referer", c.siteURL)
	}
	if c.siteName != "" {
		req.Header.Set("X-Title", c.siteName)
	}
}

func parseError(resp *http.Response) *APIError {
	apiErr := &APIError{StatusCode: resp.StatusCode, Status: resp.Status}
	body, err := io.ReadAll(io.LimitReader(resp.Body, 4096))
	if err != nil || len(body) == 0 {
		return apiErr
	}
	var er errorResponse
	if json.Unmarshal(body, &er) == nil && er.Error.Message != "" {
		apiErr.Message = er.Error.Message
		return apiErr
	}
	raw := string(body)
	if len(raw) > 500 {
		raw = raw[:500] + "..."
	}
	apiErr.Message = raw
	return apiErr
}
