package handler

import (
	"context"

	"github.com/lotas/notebridge/internal/applog"
	"github.com/lotas/notebridge/internal/types"
)

// Current returns the current operation state.
func (h *Handlers) Current() types.OperationState { return h.State.Get() }

// StoredSummary returns the persisted preview, or nil if there is none.
func (h *Handlers) StoredSummary(ctx context.Context) *types.PersistedSummary {
	p, err := h.Store.LoadSummary(ctx)
	if err != nil {
		applog.Error("handler.summary.load", err)
		return nil
	}
	return p
}

// Clear resets the operation state and discards the persisted preview.
func (h *Handlers) Clear(ctx context.Context) Result {
	if _, err := h.State.Clear(ctx); err != nil {
		applog.Error("handler.clear", err)
		return failed(err)
	}
	applog.Info("handler.clear")
	return ok()
}

// Draft returns the quick-note draft.
func (h *Handlers) Draft(ctx context.Context) (types.QuickNoteDraft, error) {
	return h.Store.LoadDraft(ctx)
}

// SaveDraft replaces the quick-note draft.
func (h *Handlers) SaveDraft(ctx context.Context, d types.QuickNoteDraft) Result {
	if err := h.Store.SaveDraft(ctx, d); err != nil {
		applog.Error("handler.draft.save", err)
		return failed(err)
	}
	return ok()
}

// ClearDraft discards the quick-note draft.
func (h *Handlers) ClearDraft(ctx context.Context) Result {
	if err := h.Store.DeleteDraft(ctx); err != nil {
		applog.Error("handler.draft.clear", err)
		return failed(err)
	}
	return ok()
}
