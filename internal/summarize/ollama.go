package summarize

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/lotas/notebridge/internal/apperr"
	"github.com/lotas/notebridge/internal/config"
)

type ollamaRequest struct {
	Model   string         `json:"model"`
	Prompt  string         `json:"prompt"`
	Stream  bool           `json:"stream"`
	Options map[string]any `json:"options,omitempty"`
}

type ollamaResponse struct {
	Response string `json:"response"`
	Error    string `json:"error"`
}

// ollama sends the prompt to an Ollama host's /api/generate endpoint.
func (c *Client) ollama(ctx context.Context, s *config.Settings, prompt string) (string, error) {
	host := strings.TrimRight(strings.TrimSpace(s.ModelURL), "/")
	if u, err := url.Parse(host); err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return "", apperr.New(apperr.InvalidURL, "invalid API URL: %q", s.ModelURL)
	}

	body, err := json.Marshal(ollamaRequest{
		Model:   s.ModelName,
		Prompt:  prompt,
		Stream:  false,
		Options: map[string]any{"temperature": s.Temperature},
	})
	if err != nil {
		return "", fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, host+"/api/generate", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if s.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+s.APIKey)
	}

	httpClient := c.HTTP
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	resp, err := httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("ollama request: %w", err)
	}
	defer resp.Body.Close()

	var result ollamaResponse
	decodeErr := json.NewDecoder(resp.Body).Decode(&result)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg := result.Error
		if msg == "" {
			msg = http.StatusText(resp.StatusCode)
		}
		return "", &apperr.Error{
			Kind:   apperr.APIError,
			Msg:    fmt.Sprintf("API request failed: %d %s", resp.StatusCode, msg),
			Status: resp.StatusCode,
		}
	}
	if decodeErr != nil {
		return "", apperr.Wrap(apperr.MalformedResponse, decodeErr, "API response format error")
	}

	out := strings.TrimSpace(result.Response)
	if out == "" {
		return "", apperr.New(apperr.MalformedResponse, "API response format error")
	}
	return out, nil
}
