// Package handler implements the user-initiated operations. Handlers never
// return Go errors to their caller: every outcome is a result value whose
// error, if any, is plain text.
package handler

import (
	"context"
	"errors"
	"time"

	"github.com/lotas/notebridge/internal/config"
	"github.com/lotas/notebridge/internal/notesink"
	"github.com/lotas/notebridge/internal/opstate"
	"github.com/lotas/notebridge/internal/reader"
	"github.com/lotas/notebridge/internal/summarize"
	"github.com/lotas/notebridge/internal/types"
)

// Store is the local storage the handlers use.
type Store interface {
	SaveSummary(ctx context.Context, p types.PersistedSummary) error
	LoadSummary(ctx context.Context) (*types.PersistedSummary, error)
	SaveDraft(ctx context.Context, d types.QuickNoteDraft) error
	LoadDraft(ctx context.Context) (types.QuickNoteDraft, error)
	DeleteDraft(ctx context.Context) error
}

// FileUploader uploads attachments to the note service.
type FileUploader interface {
	Upload(ctx context.Context, s *config.Settings, f notesink.File) (types.Attachment, error)
	UploadByURL(ctx context.Context, s *config.Settings, fileURL string) (types.Attachment, error)
}

// Handlers bundles the collaborators every operation needs.
type Handlers struct {
	Settings   config.SettingsSource
	State      *opstate.Store
	Store      Store
	Summarizer summarize.Summarizer
	Reader     reader.PageReader
	Sink       notesink.Sender
	Uploader   FileUploader

	Now func() time.Time
}

func (h *Handlers) now() time.Time {
	if h.Now != nil {
		return h.Now()
	}
	return time.Now()
}

// ContentRequest asks for a page to be summarized or extracted.
type ContentRequest struct {
	Content       string `json:"content"`
	URL           string `json:"url"`
	Title         string `json:"title"`
	IsExtractOnly bool   `json:"isExtractOnly"`
	DirectSave    bool   `json:"directSave"`
}

// ContentResult is the outcome of a content request.
type ContentResult struct {
	Success       bool   `json:"success"`
	Summary       string `json:"summary,omitempty"`
	URL           string `json:"url,omitempty"`
	Title         string `json:"title,omitempty"`
	IsExtractOnly bool   `json:"isExtractOnly"`
	DirectSave    bool   `json:"-"`
	Error         string `json:"error,omitempty"`
}

// SaveRequest commits content to the note service. Type defaults to
// summary.
type SaveRequest struct {
	Content     string             `json:"content"`
	Type        types.Scenario     `json:"type" validate:"omitempty,oneof=summary extract image quickNote selection"`
	URL         string             `json:"url"`
	Title       string             `json:"title"`
	Tag         string             `json:"tag"`
	Attachments []types.Attachment `json:"attachments" validate:"omitempty,dive"`
}

// Result is a plain success/error outcome.
type Result struct {
	Success       bool   `json:"success"`
	Error         string `json:"error,omitempty"`
	IsExtractOnly bool   `json:"isExtractOnly,omitempty"`
}

func ok() Result { return Result{Success: true} }

func failed(err error) Result { return Result{Success: false, Error: err.Error()} }

// sinkResultErr turns a failed sink result back into an error.
func sinkResultErr(r notesink.Result) error {
	if r.Success {
		return nil
	}
	if r.Error == "" {
		return errors.New("save failed")
	}
	return errors.New(r.Error)
}
