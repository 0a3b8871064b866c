// Package summarize turns page content into a summary through an LLM
// endpoint. OpenAI-compatible providers go through openai-go; Ollama is
// spoken to natively.
package summarize

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	openai "github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"github.com/lotas/notebridge/internal/apperr"
	"github.com/lotas/notebridge/internal/applog"
	"github.com/lotas/notebridge/internal/config"
)

// Provider names understood in settings.
const (
	ProviderOpenAI     = "openai"
	ProviderOpenRouter = "openrouter"
	ProviderDeepSeek   = "deepseek"
	ProviderOllama     = "ollama"
)

const completionsPath = "/v1/chat/completions"

// Summarizer produces a summary for content using the model in settings.
type Summarizer interface {
	Summarize(ctx context.Context, content string, s *config.Settings) (string, error)
}

// BuildPrompt substitutes content into the first {content} placeholder.
func BuildPrompt(template, content string) string {
	return strings.Replace(template, "{content}", content, 1)
}

// CompletionsURL resolves the chat completions endpoint from a possibly
// partial base URL.
func CompletionsURL(base, provider string) (string, error) {
	base = strings.TrimSpace(base)
	u, err := url.Parse(base)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return "", apperr.New(apperr.InvalidURL, "invalid API URL: %q", base)
	}
	switch provider {
	case ProviderOpenAI, ProviderOpenRouter, ProviderDeepSeek:
	default:
		return "", apperr.New(apperr.NotConfigured, "unknown provider: %q", provider)
	}

	if strings.HasSuffix(strings.TrimRight(base, "/"), completionsPath) {
		return strings.TrimRight(base, "/"), nil
	}

	switch provider {
	case ProviderOpenRouter, ProviderDeepSeek:
		return strings.TrimRight(base, "/") + completionsPath, nil
	default:
		if i := strings.Index(base, "/v1"); i >= 0 {
			return base[:i] + completionsPath, nil
		}
		return strings.TrimRight(base, "/") + completionsPath, nil
	}
}

// Client is the default Summarizer.
type Client struct {
	HTTP *http.Client
}

// New returns a Client with a generous timeout; summarization is slow.
func New() *Client {
	return &Client{HTTP: &http.Client{Timeout: 3 * time.Minute}}
}

// Summarize sends one request, no retry, and returns the trimmed summary.
func (c *Client) Summarize(ctx context.Context, content string, s *config.Settings) (string, error) {
	if err := s.CheckModel(); err != nil {
		return "", err
	}
	prompt := BuildPrompt(s.PromptTemplate, content)

	start := time.Now()
	var (
		out string
		err error
	)
	if s.Provider == ProviderOllama {
		out, err = c.ollama(ctx, s, prompt)
	} else {
		out, err = c.chat(ctx, s, prompt)
	}
	if err != nil {
		applog.Error("summarize.failed", err, "provider", s.Provider, "model", s.ModelName)
		return "", err
	}
	applog.Info("summarize.done", "provider", s.Provider, "model", s.ModelName,
		"chars", len(out), "ms", time.Since(start).Milliseconds())
	return out, nil
}

func (c *Client) chat(ctx context.Context, s *config.Settings, prompt string) (string, error) {
	endpoint, err := CompletionsURL(s.ModelURL, s.Provider)
	if err != nil {
		return "", err
	}
	// The SDK appends "chat/completions" to its base URL.
	base := strings.TrimSuffix(endpoint, "chat/completions")

	opts := []option.RequestOption{
		option.WithAPIKey(s.APIKey),
		option.WithBaseURL(base),
		option.WithMaxRetries(0),
	}
	if c.HTTP != nil {
		opts = append(opts, option.WithHTTPClient(c.HTTP))
	}
	if s.Provider == ProviderOpenRouter || s.Provider == ProviderDeepSeek {
		if s.Referer != "" {
			opts = append(opts, option.WithHeader("HTTP-Referer", s.Referer))
		}
		if s.AppTitle != "" {
			opts = append(opts, option.WithHeader("X-Title", s.AppTitle))
		}
	}
	client := openai.NewClient(opts...)

	resp, err := client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model: openai.ChatModel(s.ModelName),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.UserMessage(prompt),
		},
		Temperature: openai.Float(s.Temperature),
	})
	if err != nil {
		var apiErr *openai.Error
		if errors.As(err, &apiErr) {
			msg := apiErr.Message
			if msg == "" {
				msg = http.StatusText(apiErr.StatusCode)
			}
			return "", &apperr.Error{
				Kind:   apperr.APIError,
				Msg:    fmt.Sprintf("API request failed: %d %s", apiErr.StatusCode, msg),
				Status: apiErr.StatusCode,
			}
		}
		var urlErr *url.Error
		if errors.As(err, &urlErr) || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return "", err
		}
		// A 2xx reply the SDK could not decode.
		return "", apperr.Wrap(apperr.MalformedResponse, err, "API response format error")
	}

	if len(resp.Choices) == 0 {
		return "", apperr.New(apperr.MalformedResponse, "API response format error")
	}
	out := strings.TrimSpace(resp.Choices[0].Message.Content)
	if out == "" {
		return "", apperr.New(apperr.MalformedResponse, "API response format error")
	}
	return out, nil
}
