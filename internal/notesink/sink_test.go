package notesink

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lotas/notebridge/internal/config"
	"github.com/lotas/notebridge/internal/transport"
	"github.com/lotas/notebridge/internal/types"
)

func configured(target string) *config.Settings {
	s := config.Defaults()
	s.TargetURL = target
	s.AuthKey = "raw-key"
	s.SummaryTag = ptr("#tag")
	return s
}

func TestSendPostsUpsert(t *testing.T) {
	var gotPath, gotAuth string
	var got upsertRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotAuth = r.Header.Get("Authorization")
		json.NewDecoder(r.Body).Decode(&got)
		w.Write([]byte(`{"id":42}`))
	}))
	defer srv.Close()

	sink := New(config.StaticSource{Settings: configured(srv.URL + "/api/v1/")}, transport.New())
	res := sink.Send(context.Background(), "C", Context{
		URL:         "https://x",
		Title:       "T",
		Scenario:    types.ScenarioSummary,
		Attachments: []types.Attachment{{Name: "a.png", Path: "/api/file/a.png", Size: 3, Type: "image/png"}},
	})

	require.True(t, res.Success, res.Error)
	assert.JSONEq(t, `{"id":42}`, string(res.Data))
	assert.Equal(t, "/api/v1/note/upsert", gotPath)
	assert.Equal(t, "raw-key", gotAuth)
	assert.Equal(t, "C\n\nOriginal link: [T](https://x)\n\n#tag", got.Content)
	assert.Equal(t, 0, got.Type)
	require.Len(t, got.Attachments, 1)
	assert.Equal(t, "/api/file/a.png", got.Attachments[0].Path)
}

func TestSendOmitsEmptyAttachments(t *testing.T) {
	var raw map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		json.Unmarshal(body, &raw)
	}))
	defer srv.Close()

	s := configured(srv.URL)
	res := New(config.StaticSource{}, transport.New()).Send(context.Background(), "note", Context{Scenario: types.ScenarioQuickNote, Settings: s})
	require.True(t, res.Success, res.Error)
	_, has := raw["attachments"]
	assert.False(t, has)
	assert.Equal(t, "note", raw["content"])
}

func TestSendNotConfiguredNeverPanics(t *testing.T) {
	res := New(config.StaticSource{Settings: config.Defaults()}, transport.New()).Send(context.Background(), "C", Context{Scenario: types.ScenarioSummary})
	assert.False(t, res.Success)
	assert.Contains(t, res.Error, "auth key")

	res = New(config.StaticSource{}, transport.New()).Send(context.Background(), "C", Context{Scenario: types.ScenarioSummary})
	assert.False(t, res.Success)
	assert.Contains(t, res.Error, "settings not found")
}

func TestSendRetriesThenReportsFailure(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	res := New(config.StaticSource{Settings: configured(srv.URL)}, transport.New()).Send(context.Background(), "C", Context{Scenario: types.ScenarioSummary})
	assert.False(t, res.Success)
	assert.Contains(t, res.Error, "send failed")
	assert.Contains(t, res.Error, "HTTP 503")
	assert.Equal(t, int32(4), calls.Load())
}
