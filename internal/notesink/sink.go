// Package notesink delivers notes and files to a Blinko-compatible note
// service.
package notesink

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/lotas/notebridge/internal/applog"
	"github.com/lotas/notebridge/internal/config"
	"github.com/lotas/notebridge/internal/transport"
	"github.com/lotas/notebridge/internal/types"
)

// Context describes where a note came from and how it is decorated.
// Settings is the snapshot of the calling operation; nil means the sink
// reads its own.
type Context struct {
	URL         string
	Title       string
	Attachments []types.Attachment
	Scenario    types.Scenario
	Tag         string
	Settings    *config.Settings
}

// Result is the outcome of a send. Send never returns a Go error; failures
// are carried as text.
type Result struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data,omitempty"`
	Error   string          `json:"error,omitempty"`
}

// Sender is what handlers depend on.
type Sender interface {
	Send(ctx context.Context, content string, c Context) Result
}

// Sink posts notes to {target_url}/note/upsert through the retry client.
type Sink struct {
	Settings  config.SettingsSource
	Transport *transport.Client
}

// New returns a Sink using the given settings source and retry client.
func New(settings config.SettingsSource, t *transport.Client) *Sink {
	return &Sink{Settings: settings, Transport: t}
}

type upsertRequest struct {
	Content     string             `json:"content"`
	Type        int                `json:"type"`
	Attachments []types.Attachment `json:"attachments,omitempty"`
}

func (s *Sink) Send(ctx context.Context, content string, c Context) Result {
	settings := c.Settings
	if settings == nil {
		snap, err := s.Settings.Snapshot(ctx)
		if err != nil {
			return fail("notesink.settings", err)
		}
		settings = snap
	}
	if err := settings.CheckTarget(); err != nil {
		return fail("notesink.config", err)
	}

	body, err := json.Marshal(upsertRequest{
		Content:     Format(content, c, settings),
		Type:        0,
		Attachments: c.Attachments,
	})
	if err != nil {
		return fail("notesink.marshal", err)
	}

	url := strings.TrimRight(settings.TargetURL, "/") + "/note/upsert"
	resp, err := s.Transport.Send(ctx, transport.Request{
		Method: http.MethodPost,
		URL:    url,
		Header: http.Header{
			"Content-Type":  {"application/json"},
			"Authorization": {settings.AuthKey},
		},
		Body: body,
	})
	if err != nil {
		return fail("notesink.send", err, "scenario", string(c.Scenario))
	}

	applog.Info("notesink.sent", "scenario", string(c.Scenario), "url", c.URL, "attachments", len(c.Attachments))
	res := Result{Success: true}
	if json.Valid(resp.Body) {
		res.Data = resp.Body
	}
	return res
}

func fail(event string, err error, kv ...any) Result {
	applog.Error(event, err, kv...)
	return Result{Success: false, Error: err.Error()}
}
