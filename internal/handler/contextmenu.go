package handler

import (
	"context"
	"strings"

	"github.com/lotas/notebridge/internal/apperr"
	"github.com/lotas/notebridge/internal/applog"
	"github.com/lotas/notebridge/internal/notesink"
	"github.com/lotas/notebridge/internal/types"
)

// SelectionRequest sends selected text from a page.
type SelectionRequest struct {
	Content string `json:"content"`
	URL     string `json:"url"`
	Title   string `json:"title"`
}

// ImageRequest saves an image from a page by its source URL.
type ImageRequest struct {
	SrcURL  string `json:"srcUrl" validate:"required,url"`
	PageURL string `json:"pageUrl"`
	Title   string `json:"title"`
}

// SaveSelection sends a text selection as its own note. Operation state is
// not involved.
func (h *Handlers) SaveSelection(ctx context.Context, req SelectionRequest) Result {
	content := strings.TrimSpace(req.Content)
	if content == "" {
		return failed(apperr.New(apperr.InvalidInput, "no text selected"))
	}
	res := h.Sink.Send(ctx, content, notesink.Context{
		URL:      req.URL,
		Title:    req.Title,
		Scenario: types.ScenarioSelection,
	})
	if err := sinkResultErr(res); err != nil {
		applog.Error("handler.selection.failed", err, "url", req.URL)
		return failed(err)
	}
	applog.Info("handler.selection.done", "url", req.URL, "chars", len(content))
	return ok()
}

// SaveImage saves an image as a markdown image note.
func (h *Handlers) SaveImage(ctx context.Context, req ImageRequest) Result {
	if strings.TrimSpace(req.SrcURL) == "" {
		return failed(apperr.New(apperr.InvalidInput, "no image URL"))
	}
	alt := req.Title
	if alt == "" {
		alt = "image"
	}
	content := "![" + alt + "](" + req.SrcURL + ")"

	res := h.Sink.Send(ctx, content, notesink.Context{
		URL:      req.PageURL,
		Title:    req.Title,
		Scenario: types.ScenarioImage,
	})
	if err := sinkResultErr(res); err != nil {
		applog.Error("handler.image.failed", err, "src", req.SrcURL)
		return failed(err)
	}
	applog.Info("handler.image.done", "src", req.SrcURL, "page", req.PageURL)
	return ok()
}
