package browser

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// DefaultAgentTimeout bounds every round-trip to the focus agent.
const DefaultAgentTimeout = 3 * time.Second

// AgentClient implements Inspector against the local browser focus agent:
//
//	GET  {endpoint}/focus     -> 200 {"url": "..."} | 204 (nothing focused)
//	POST {endpoint}/navigate  <- {"url": "..."}     -> 204
type AgentClient struct {
	endpoint string
	client   *http.Client
	logger   zerolog.Logger
}

// AgentConfig holds focus agent client settings.
type AgentConfig struct {
	Endpoint string
	Timeout  time.Duration
}

// NewAgentClient creates a client for the focus agent at cfg.Endpoint.
func NewAgentClient(cfg AgentConfig, logger zerolog.Logger) *AgentClient {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = DefaultAgentTimeout
	}

	return &AgentClient{
		endpoint: strings.TrimRight(cfg.Endpoint, "/"),
		client:   &http.Client{Timeout: timeout},
		logger:   logger.With().Str("component", "focus-agent").Logger(),
	}
}

type focusResponse struct {
	URL string `json:"url"`
}

type navigateRequest struct {
	URL string `json:"url"`
}

// FocusedURL returns the URL of the currently focused page.
func (c *AgentClient) FocusedURL(ctx context.Context) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.endpoint+"/focus", nil)
	if err != nil {
		return "", fmt.Errorf("failed to build focus request: %w", err)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("focus agent unreachable: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	switch resp.StatusCode {
	case http.StatusNoContent:
		return "", ErrNoFocusedPage
	case http.StatusOK:
		// Fall through to decode
	default:
		return "", fmt.Errorf("focus agent returned status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	if err != nil {
		return "", fmt.Errorf("failed to read focus response: %w", err)
	}

	var focus focusResponse
	if err := json.Unmarshal(body, &focus); err != nil {
		return "", fmt.Errorf("failed to decode focus response: %w", err)
	}

	if focus.URL == "" {
		return "", ErrNoFocusedPage
	}

	return focus.URL, nil
}

// Navigate commands the focused page to load target.
func (c *AgentClient) Navigate(ctx context.Context, target string) error {
	payload, err := json.Marshal(navigateRequest{URL: target})
	if err != nil {
		return fmt.Errorf("failed to encode navigate request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint+"/navigate", bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("failed to build navigate request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("focus agent unreachable: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusNoContent && resp.StatusCode != http.StatusOK {
		return fmt.Errorf("focus agent returned status %d", resp.StatusCode)
	}

	c.logger.Debug().Str("target", target).Msg("Navigation commanded")

	return nil
}
