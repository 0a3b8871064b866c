package handler

import (
	"context"

	"github.com/lotas/notebridge/internal/applog"
	"github.com/lotas/notebridge/internal/notesink"
	"github.com/lotas/notebridge/internal/types"
)

// UploadRequest carries a file from the popup. Data is base64 in JSON.
type UploadRequest struct {
	Name string `json:"name" validate:"required"`
	Type string `json:"type"`
	Data []byte `json:"data" validate:"required"`
}

// UploadByURLRequest asks the note service to fetch a remote file.
type UploadByURLRequest struct {
	URL string `json:"url" validate:"required,url"`
}

// UploadResult is the outcome of an upload.
type UploadResult struct {
	Success    bool              `json:"success"`
	Attachment *types.Attachment `json:"attachment,omitempty"`
	Error      string            `json:"error,omitempty"`
}

// Upload sends a file to the note service and appends the attachment to
// the quick-note draft.
func (h *Handlers) Upload(ctx context.Context, req UploadRequest) UploadResult {
	settings, err := h.Settings.Snapshot(ctx)
	if err != nil {
		return UploadResult{Error: err.Error()}
	}
	att, err := h.Uploader.Upload(ctx, settings, notesink.File{Name: req.Name, ContentType: req.Type, Data: req.Data})
	if err != nil {
		return UploadResult{Error: err.Error()}
	}
	h.attach(ctx, att)
	return UploadResult{Success: true, Attachment: &att}
}

// UploadByURL is Upload for a remote file.
func (h *Handlers) UploadByURL(ctx context.Context, req UploadByURLRequest) UploadResult {
	settings, err := h.Settings.Snapshot(ctx)
	if err != nil {
		return UploadResult{Error: err.Error()}
	}
	att, err := h.Uploader.UploadByURL(ctx, settings, req.URL)
	if err != nil {
		return UploadResult{Error: err.Error()}
	}
	h.attach(ctx, att)
	return UploadResult{Success: true, Attachment: &att}
}

// attach appends att to the draft. A failure here does not fail the upload;
// the popup also receives the attachment in the response.
func (h *Handlers) attach(ctx context.Context, att types.Attachment) {
	d, err := h.Store.LoadDraft(ctx)
	if err != nil {
		applog.Error("handler.upload.draft", err)
		return
	}
	d.Attachments = append(d.Attachments, att)
	if err := h.Store.SaveDraft(ctx, d); err != nil {
		applog.Error("handler.upload.draft", err)
	}
}
