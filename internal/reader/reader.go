// Package reader fetches a page and returns its content as markdown for the
// extract-only path.
package reader

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/lotas/notebridge/internal/applog"
	"github.com/lotas/notebridge/internal/config"
)

// Page is an extracted page.
type Page struct {
	Title   string
	URL     string
	Content string
}

// Markdown renders the page as "# title\n\ncontent" (content only if the
// title is empty).
func (p Page) Markdown() string {
	content := strings.TrimSpace(p.Content)
	if p.Title == "" {
		return content
	}
	return "# " + p.Title + "\n\n" + content
}

// PageReader extracts a page by URL.
type PageReader interface {
	Name() string
	Read(ctx context.Context, pageURL string, s *config.Settings) (Page, error)
}

// Chain tries readers in order and returns the first success.
type Chain []PageReader

func (c Chain) Name() string {
	names := make([]string, len(c))
	for i, r := range c {
		names[i] = r.Name()
	}
	return strings.Join(names, ",")
}

func (c Chain) Read(ctx context.Context, pageURL string, s *config.Settings) (Page, error) {
	if len(c) == 0 {
		return Page{}, errors.New("no page reader configured")
	}
	var errs []error
	for _, r := range c {
		p, err := r.Read(ctx, pageURL, s)
		if err == nil {
			applog.Info("reader.done", "reader", r.Name(), "url", pageURL, "chars", len(p.Content))
			return p, nil
		}
		applog.Warn("reader.failed", "reader", r.Name(), "url", pageURL, "err", err.Error())
		errs = append(errs, fmt.Errorf("%s: %w", r.Name(), err))
	}
	return Page{}, errors.Join(errs...)
}

// ForSettings returns the reader chain selected by the extractor setting:
// the preferred reader first, the other one as fallback.
func ForSettings(s *config.Settings, jina *Jina, readable *Readability) PageReader {
	if s.Extractor == "readability" {
		return Chain{readable, jina}
	}
	return Chain{jina, readable}
}

// Auto picks the chain per request from the extractor setting.
type Auto struct {
	Jina        *Jina
	Readability *Readability
}

// NewAuto returns an Auto with default readers.
func NewAuto() *Auto {
	return &Auto{Jina: NewJina(), Readability: NewReadability()}
}

func (a *Auto) Name() string { return "auto" }

func (a *Auto) Read(ctx context.Context, pageURL string, s *config.Settings) (Page, error) {
	return ForSettings(s, a.Jina, a.Readability).Read(ctx, pageURL, s)
}
