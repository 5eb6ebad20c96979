// Package replies queries the canned-response service for free-text answers.
package replies

import (
	"context"
	"encoding/json"
	"fmt"
	"math/rand/v2"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"
)

const silentResponse = "Well you're awfully silent."

var fallbackResponses = []string{
	"I don't know what you mean by that.",
	"I don't understand.",
	"I'm sorry, I don't know what you mean.",
}

// FallbackResponses returns the fixed pool used whenever the service cannot answer.
func FallbackResponses() []string {
	return append([]string(nil), fallbackResponses...)
}

type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     *zap.Logger
	pick       func(n int) int
}

func NewClient(baseURL string, timeout time.Duration, logger *zap.Logger) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
		logger:     logger,
		pick:       rand.IntN,
	}
}

type respondPayload struct {
	ID       int64  `json:"id"`
	Trigger  string `json:"trigger"`
	Response string `json:"response"`
	Active   bool   `json:"active"`
}

// Lookup never fails: every error path yields a fallback response.
func (c *Client) Lookup(ctx context.Context, text string) string {
	text = strings.ToLower(strings.TrimSpace(text))
	if text == "" {
		return silentResponse
	}

	response, err := c.fetch(ctx, text)
	if err != nil {
		c.logger.Debug("canned response lookup failed", zap.Error(err))
		return c.fallback()
	}
	if response == "" {
		return c.fallback()
	}
	return response
}

func (c *Client) fetch(ctx context.Context, text string) (string, error) {
	endpoint := c.baseURL + "/respond?" + url.Values{"input_text": {text}}.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return "", fmt.Errorf("build request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	var payload respondPayload
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return "", fmt.Errorf("decode response: %w", err)
	}
	return payload.Response, nil
}

func (c *Client) fallback() string {
	return fallbackResponses[c.pick(len(fallbackResponses))]
}
