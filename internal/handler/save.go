package handler

import (
	"context"
	"strings"

	"github.com/lotas/notebridge/internal/apperr"
	"github.com/lotas/notebridge/internal/applog"
	"github.com/lotas/notebridge/internal/notesink"
	"github.com/lotas/notebridge/internal/types"
)

// Save commits previewed content or a quick note.
//
// A quick note never reads or clears the operation state or the persisted
// summary; on success it clears the quick-note draft. A summary or extract
// save fills a missing url and title from the persisted summary, then from
// the operation state, and on success consumes both.
func (h *Handlers) Save(ctx context.Context, req SaveRequest) Result {
	scenario := req.Type
	if scenario == "" {
		scenario = types.ScenarioSummary
	}
	if !scenario.Valid() {
		return failed(apperr.New(apperr.InvalidInput, "unknown note type %q", scenario))
	}
	if strings.TrimSpace(req.Content) == "" {
		return failed(apperr.New(apperr.InvalidInput, "invalid request content"))
	}

	consumesPreview := scenario == types.ScenarioSummary || scenario == types.ScenarioExtract

	url, title := req.URL, req.Title
	if consumesPreview && (url == "" || title == "") {
		url, title = h.previewIdentity(ctx, url, title)
	}

	res := h.Sink.Send(ctx, req.Content, notesink.Context{
		URL:         url,
		Title:       title,
		Attachments: req.Attachments,
		Scenario:    scenario,
		Tag:         req.Tag,
	})
	if err := sinkResultErr(res); err != nil {
		applog.Error("handler.save.failed", err, "scenario", string(scenario))
		return failed(err)
	}

	switch {
	case consumesPreview:
		if _, err := h.State.Clear(ctx); err != nil {
			applog.Error("handler.save.clear", err)
		}
	case scenario == types.ScenarioQuickNote:
		if err := h.Store.DeleteDraft(ctx); err != nil {
			applog.Error("handler.save.draft", err)
		}
	}
	applog.Info("handler.save.done", "scenario", string(scenario), "url", url, "attachments", len(req.Attachments))
	return ok()
}

func (h *Handlers) previewIdentity(ctx context.Context, url, title string) (string, string) {
	if p, err := h.Store.LoadSummary(ctx); err != nil {
		applog.Error("handler.save.load", err)
	} else if p != nil {
		if url == "" {
			url = p.URL
		}
		if title == "" {
			title = p.Title
		}
	}
	st := h.State.Get()
	if url == "" {
		url = st.URL
	}
	if title == "" {
		title = st.Title
	}
	return url, title
}
