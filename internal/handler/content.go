package handler

import (
	"context"
	"strings"

	"github.com/lotas/notebridge/internal/apperr"
	"github.com/lotas/notebridge/internal/applog"
	"github.com/lotas/notebridge/internal/config"
	"github.com/lotas/notebridge/internal/notesink"
	"github.com/lotas/notebridge/internal/opstate"
	"github.com/lotas/notebridge/internal/types"
)

// Content summarizes or extracts a page. With DirectSave the result goes
// straight to the note service; otherwise it is persisted for the popup to
// preview.
func (h *Handlers) Content(ctx context.Context, req ContentRequest) ContentResult {
	res := ContentResult{
		URL:           req.URL,
		Title:         req.Title,
		IsExtractOnly: req.IsExtractOnly,
		DirectSave:    req.DirectSave,
	}

	summary, settings, err := h.produce(ctx, req)
	if err == nil {
		if req.DirectSave {
			err = sinkResultErr(h.Sink.Send(ctx, summary, notesink.Context{
				URL:      req.URL,
				Title:    req.Title,
				Scenario: types.ScenarioFor(req.IsExtractOnly),
				Settings: settings,
			}))
		} else {
			err = h.Store.SaveSummary(ctx, types.PersistedSummary{
				Summary:       summary,
				URL:           req.URL,
				Title:         req.Title,
				IsExtractOnly: req.IsExtractOnly,
				Timestamp:     h.now().UnixMilli(),
			})
		}
	}
	if err != nil {
		h.State.Update(opstate.Failed(err.Error(), req.URL, req.Title, req.IsExtractOnly))
		applog.Error("handler.content.failed", err, "url", req.URL, "extract", req.IsExtractOnly, "direct", req.DirectSave)
		res.Error = err.Error()
		return res
	}

	h.State.Update(opstate.Completed(summary, req.URL, req.Title, req.IsExtractOnly))
	applog.Info("handler.content.done", "url", req.URL, "extract", req.IsExtractOnly, "direct", req.DirectSave, "chars", len(summary))
	res.Success = true
	res.Summary = summary
	return res
}

// Floating is the one-shot page action: summarize or extract, then save,
// with no preview. It never persists a summary.
func (h *Handlers) Floating(ctx context.Context, req ContentRequest) Result {
	summary, settings, err := h.produce(ctx, req)
	if err == nil {
		err = sinkResultErr(h.Sink.Send(ctx, summary, notesink.Context{
			URL:      req.URL,
			Title:    req.Title,
			Scenario: types.ScenarioFor(req.IsExtractOnly),
			Settings: settings,
		}))
	}
	if err != nil {
		h.State.Update(opstate.Failed(err.Error(), req.URL, req.Title, req.IsExtractOnly))
		applog.Error("handler.floating.failed", err, "url", req.URL, "extract", req.IsExtractOnly)
		return Result{Success: false, Error: err.Error(), IsExtractOnly: req.IsExtractOnly}
	}

	h.State.Update(opstate.Completed(summary, req.URL, req.Title, req.IsExtractOnly))
	applog.Info("handler.floating.done", "url", req.URL, "extract", req.IsExtractOnly)
	return Result{Success: true, IsExtractOnly: req.IsExtractOnly}
}

// produce runs the shared phases of a content operation: validate, mark
// Processing, load settings, then extract or summarize.
func (h *Handlers) produce(ctx context.Context, req ContentRequest) (string, *config.Settings, error) {
	if strings.TrimSpace(req.Content) == "" {
		return "", nil, apperr.New(apperr.InvalidInput, "invalid request content")
	}

	h.State.Update(opstate.Processing(req.URL, req.Title, req.IsExtractOnly))

	settings, err := h.Settings.Snapshot(ctx)
	if err != nil {
		return "", nil, err
	}

	if req.IsExtractOnly {
		page, err := h.Reader.Read(ctx, req.URL, settings)
		if err != nil {
			return "", nil, err
		}
		out := notesink.StripSourceLinks(page.Markdown())
		if out == "" {
			return "", nil, apperr.New(apperr.MalformedResponse, "extracted page is empty")
		}
		return out, settings, nil
	}

	if err := settings.CheckModel(); err != nil {
		return "", nil, err
	}
	summary, err := h.Summarizer.Summarize(ctx, req.Content, settings)
	if err != nil {
		return "", nil, err
	}
	return summary, settings, nil
}
