package router

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/go-playground/validator/v10"

	"github.com/lotas/notebridge/internal/apperr"
	"github.com/lotas/notebridge/internal/handler"
	"github.com/lotas/notebridge/internal/types"
)

// Action names an inbound message.
type Action string

const (
	ActionGetContent          Action = "getContent"
	ActionSaveSummary         Action = "saveSummary"
	ActionProcessAndSend      Action = "processAndSendContent"
	ActionGetSummaryState     Action = "getSummaryState"
	ActionClearSummary        Action = "clearSummary"
	ActionSaveSelection       Action = "saveSelection"
	ActionSaveImage           Action = "saveImage"
	ActionUploadFile          Action = "uploadFile"
	ActionUploadFileByURL     Action = "uploadFileByUrl"
	ActionGetStoredSummary    Action = "getStoredSummary"
	ActionSaveQuickNoteDraft  Action = "saveQuickNoteDraft"
	ActionGetQuickNoteDraft   Action = "getQuickNoteDraft"
	ActionClearQuickNoteDraft Action = "clearQuickNoteDraft"
	ActionShowNotification    Action = "showNotification"
)

// Push actions sent back to the extension.
const (
	pushSummaryResponse    = "handleSummaryResponse"
	pushSaveResponse       = "saveSummaryResponse"
	pushFloatingBallState  = "updateFloatingBallState"
	pushClearResponse      = "clearSummaryResponse"
	pushUploadFileResponse = "uploadFileResponse"
)

// ErrUnknownAction is returned by Decode for an action outside the set.
var ErrUnknownAction = errors.New("unknown action")

// Message is one decoded inbound message.
type Message interface {
	Action() Action
}

type GetContent struct{ handler.ContentRequest }

type SaveSummary struct{ handler.SaveRequest }

// ProcessAndSendContent comes from the floating ball in a page.
type ProcessAndSendContent struct{ handler.ContentRequest }

type GetSummaryState struct{}

type ClearSummary struct{}

type SaveSelection struct{ handler.SelectionRequest }

type SaveImage struct{ handler.ImageRequest }

type UploadFile struct{ handler.UploadRequest }

type UploadFileByURL struct{ handler.UploadByURLRequest }

type GetStoredSummary struct{}

type SaveQuickNoteDraft struct{ types.QuickNoteDraft }

type GetQuickNoteDraft struct{}

type ClearQuickNoteDraft struct{}

// ShowNotification relays a notification from a content script.
type ShowNotification struct {
	Title   string `json:"title"`
	Message string `json:"message"`
}

func (GetContent) Action() Action            { return ActionGetContent }
func (SaveSummary) Action() Action           { return ActionSaveSummary }
func (ProcessAndSendContent) Action() Action { return ActionProcessAndSend }
func (GetSummaryState) Action() Action       { return ActionGetSummaryState }
func (ClearSummary) Action() Action          { return ActionClearSummary }
func (SaveSelection) Action() Action         { return ActionSaveSelection }
func (SaveImage) Action() Action             { return ActionSaveImage }
func (UploadFile) Action() Action            { return ActionUploadFile }
func (UploadFileByURL) Action() Action       { return ActionUploadFileByURL }
func (GetStoredSummary) Action() Action      { return ActionGetStoredSummary }
func (SaveQuickNoteDraft) Action() Action    { return ActionSaveQuickNoteDraft }
func (GetQuickNoteDraft) Action() Action     { return ActionGetQuickNoteDraft }
func (ClearQuickNoteDraft) Action() Action   { return ActionClearQuickNoteDraft }
func (ShowNotification) Action() Action      { return ActionShowNotification }

var messages = map[Action]func() Message{
	ActionGetContent:          func() Message { return &GetContent{} },
	ActionSaveSummary:         func() Message { return &SaveSummary{} },
	ActionProcessAndSend:      func() Message { return &ProcessAndSendContent{} },
	ActionGetSummaryState:     func() Message { return &GetSummaryState{} },
	ActionClearSummary:        func() Message { return &ClearSummary{} },
	ActionSaveSelection:       func() Message { return &SaveSelection{} },
	ActionSaveImage:           func() Message { return &SaveImage{} },
	ActionUploadFile:          func() Message { return &UploadFile{} },
	ActionUploadFileByURL:     func() Message { return &UploadFileByURL{} },
	ActionGetStoredSummary:    func() Message { return &GetStoredSummary{} },
	ActionSaveQuickNoteDraft:  func() Message { return &SaveQuickNoteDraft{} },
	ActionGetQuickNoteDraft:   func() Message { return &GetQuickNoteDraft{} },
	ActionClearQuickNoteDraft: func() Message { return &ClearQuickNoteDraft{} },
	ActionShowNotification:    func() Message { return &ShowNotification{} },
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Decode parses a frame into its message type and validates its shape.
// Content emptiness is left to the handlers, which record it in the
// operation state.
func Decode(data []byte) (Message, error) {
	var head struct {
		Action Action `json:"action"`
	}
	if err := json.Unmarshal(data, &head); err != nil {
		return nil, apperr.Wrap(apperr.InvalidInput, err, "malformed message")
	}
	ctor, ok := messages[head.Action]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownAction, head.Action)
	}
	msg := ctor()
	if err := json.Unmarshal(data, msg); err != nil {
		return nil, apperr.Wrap(apperr.InvalidInput, err, "malformed %s message", head.Action)
	}
	if err := validate.Struct(msg); err != nil {
		return nil, apperr.Wrap(apperr.InvalidInput, err, "invalid %s message", head.Action)
	}
	return msg, nil
}
