package bench

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/pario-ai/ragcache/pkg/models"
)

// HTTPClient asks questions through a running ragcache endpoint.
type HTTPClient struct {
	base   string
	client *http.Client
}

// NewHTTPClient targets the server at base (e.g. http://127.0.0.1:8088).
func NewHTTPClient(base string, timeout time.Duration) *HTTPClient {
	return &HTTPClient{
		base: strings.TrimRight(base, "/"),
		client: &http.Client{
			Timeout: timeout,
			Transport: &http.Transport{
				MaxIdleConns:        256,
				MaxIdleConnsPerHost: 256,
				IdleConnTimeout:     90 * time.Second,
			},
		},
	}
}

// Ask posts question to /ask and reports whether it was served from cache.
func (c *HTTPClient) Ask(ctx context.Context, question string) (models.Outcome, error) {
	body, err := json.Marshal(models.AskRequest{Query: question})
	if err != nil {
		return "", fmt.Errorf("encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.base+"/ask", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return "", fmt.Errorf("ask: status %d: %s", resp.StatusCode, bytes.TrimSpace(msg))
	}

	var ar models.AskResponse
	if err := json.NewDecoder(resp.Body).Decode(&ar); err != nil {
		return "", fmt.Errorf("decode response: %w", err)
	}
	if ar.FromCache {
		return models.OutcomeHit, nil
	}
	return models.OutcomeMiss, nil
}

// Health is the /health payload.
type Health struct {
	Status       string `json:"status"`
	Cache        string `json:"cache"`
	CacheEnabled bool   `json:"cache_enabled"`
}

// Health checks that the endpoint is reachable and reports its cache mode.
func (c *HTTPClient) Health(ctx context.Context) (Health, error) {
	var h Health
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.base+"/health", nil)
	if err != nil {
		return h, fmt.Errorf("create request: %w", err)
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return h, fmt.Errorf("health check %s: %w", c.base, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return h, fmt.Errorf("health check %s: status %d", c.base, resp.StatusCode)
	}
	if err := json.NewDecoder(resp.Body).Decode(&h); err != nil {
		return h, fmt.Errorf("decode health: %w", err)
	}
	return h, nil
}

// Answerer is the in-process answer service.
type Answerer interface {
	Answer(ctx context.Context, question string) (models.AskResult, error)
}

// InProcess asks an in-process service directly, skipping HTTP.
func InProcess(a Answerer) Asker {
	return AskerFunc(func(ctx context.Context, question string) (models.Outcome, error) {
		res, err := a.Answer(ctx, question)
		if err != nil {
			return "", err
		}
		return res.Outcome, nil
	})
}
