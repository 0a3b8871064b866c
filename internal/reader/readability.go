package reader

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	md "github.com/JohannesKaufmann/html-to-markdown"
	readability "github.com/go-shiori/go-readability"

	"github.com/lotas/notebridge/internal/config"
)

var skipPrefixes = []string{"about:", "moz-extension:", "chrome-extension:", "file:", "chrome:", "resource:", "data:"}

const browserUA = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"

// checkHTTP rejects browser-internal and other non-HTTP URLs.
func checkHTTP(pageURL string) error {
	for _, prefix := range skipPrefixes {
		if strings.HasPrefix(pageURL, prefix) {
			return fmt.Errorf("skipping non-HTTP URL: %s", pageURL)
		}
	}
	u, err := url.Parse(pageURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") {
		return fmt.Errorf("skipping non-HTTP URL: %s", pageURL)
	}
	return nil
}

// Readability fetches a page directly and extracts the article with
// go-readability, converting the article HTML to markdown.
type Readability struct {
	HTTP      *http.Client
	converter *md.Converter
}

// NewReadability returns a Readability reader with a 15s fetch timeout.
func NewReadability() *Readability {
	return &Readability{
		HTTP:      &http.Client{Timeout: 15 * time.Second},
		converter: md.NewConverter("", true, nil),
	}
}

func (r *Readability) Name() string { return "readability" }

func (r *Readability) Read(ctx context.Context, pageURL string, s *config.Settings) (Page, error) {
	if err := checkHTTP(pageURL); err != nil {
		return Page{}, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return Page{}, fmt.Errorf("fetch %s: %w", pageURL, err)
	}
	req.Header.Set("User-Agent", browserUA)
	resp, err := r.HTTP.Do(req)
	if err != nil {
		return Page{}, fmt.Errorf("fetch %s: %w", pageURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return Page{}, fmt.Errorf("fetch %s: HTTP %d", pageURL, resp.StatusCode)
	}

	parsed, _ := url.Parse(pageURL)
	article, err := readability.FromReader(resp.Body, parsed)
	if err != nil {
		return Page{}, fmt.Errorf("extract readable content from %s: %w", pageURL, err)
	}

	content := article.TextContent
	if r.converter != nil && article.Content != "" {
		if markdown, err := r.converter.ConvertString(article.Content); err == nil && strings.TrimSpace(markdown) != "" {
			content = markdown
		}
	}
	content = strings.TrimSpace(content)
	if content == "" {
		return Page{}, fmt.Errorf("extract readable content from %s: empty article", pageURL)
	}
	return Page{Title: article.Title, URL: pageURL, Content: content}, nil
}
