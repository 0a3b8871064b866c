package reader

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/lotas/notebridge/internal/apperr"
	"github.com/lotas/notebridge/internal/config"
)

// DefaultJinaBase is the public Jina Reader endpoint.
const DefaultJinaBase = "https://r.jina.ai/"

// Jina reads pages through the Jina Reader API.
type Jina struct {
	Base string
	HTTP *http.Client
}

// NewJina returns a Jina reader against the public endpoint.
func NewJina() *Jina {
	return &Jina{Base: DefaultJinaBase, HTTP: &http.Client{Timeout: 60 * time.Second}}
}

func (j *Jina) Name() string { return "jina" }

type jinaResponse struct {
	Code int `json:"code"`
	Data struct {
		Title   string `json:"title"`
		Content string `json:"content"`
		URL     string `json:"url"`
	} `json:"data"`
}

func (j *Jina) Read(ctx context.Context, pageURL string, s *config.Settings) (Page, error) {
	if err := checkHTTP(pageURL); err != nil {
		return Page{}, err
	}

	base := j.Base
	if base == "" {
		base = DefaultJinaBase
	}
	if !strings.HasSuffix(base, "/") {
		base += "/"
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, base+pageURL, nil)
	if err != nil {
		return Page{}, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if !s.SaveWebImages {
		req.Header.Set("X-Retain-Images", "none")
	}
	if s.UseJinaAPIKey && s.JinaAPIKey != "" {
		req.Header.Set("Authorization", "Bearer "+s.JinaAPIKey)
	}

	resp, err := j.HTTP.Do(req)
	if err != nil {
		return Page{}, fmt.Errorf("jina request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return Page{}, &apperr.Error{
			Kind:   apperr.APIError,
			Msg:    fmt.Sprintf("API request failed: %d %s", resp.StatusCode, strings.TrimSpace(string(body))),
			Status: resp.StatusCode,
		}
	}

	var result jinaResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return Page{}, apperr.Wrap(apperr.MalformedResponse, err, "API response format error")
	}
	if result.Code != http.StatusOK || result.Data.Content == "" {
		return Page{}, apperr.New(apperr.MalformedResponse, "API response format error")
	}

	u := result.Data.URL
	if u == "" {
		u = pageURL
	}
	return Page{Title: result.Data.Title, URL: u, Content: result.Data.Content}, nil
}
