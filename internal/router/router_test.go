package router

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lotas/notebridge/internal/apperr"
	"github.com/lotas/notebridge/internal/config"
	"github.com/lotas/notebridge/internal/handler"
	"github.com/lotas/notebridge/internal/notesink"
	"github.com/lotas/notebridge/internal/notify"
	"github.com/lotas/notebridge/internal/opstate"
	"github.com/lotas/notebridge/internal/reader"
	"github.com/lotas/notebridge/internal/server"
	"github.com/lotas/notebridge/internal/storage"
	"github.com/lotas/notebridge/internal/transport"
	"github.com/lotas/notebridge/internal/types"
)

type replied struct {
	ReqID    string
	Response string
}

type fakePusher struct {
	mu        sync.Mutex
	popupOpen bool
	openTabs  map[int]bool
	replies   []replied
	popup     []string
	tabs      map[int][]string
}

func newPusher(popupOpen bool) *fakePusher {
	return &fakePusher{popupOpen: popupOpen, openTabs: map[int]bool{}, tabs: map[int][]string{}}
}

func encode(v any) string {
	b, _ := json.Marshal(v)
	return string(b)
}

func (p *fakePusher) Reply(in server.Inbound, response any) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.replies = append(p.replies, replied{ReqID: string(in.ReqID), Response: encode(response)})
	return nil
}

func (p *fakePusher) PushToPopup(_ context.Context, msg any) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.popupOpen {
		return server.ErrNoListener
	}
	p.popup = append(p.popup, encode(msg))
	return nil
}

func (p *fakePusher) PushToTab(_ context.Context, tabID int, msg any) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.openTabs[tabID] {
		return server.ErrNoListener
	}
	p.tabs[tabID] = append(p.tabs[tabID], encode(msg))
	return nil
}

type recorder struct {
	mu   sync.Mutex
	seen []notify.Notification
	err  error
}

func (r *recorder) Notify(_ context.Context, n notify.Notification) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.seen = append(r.seen, n)
	return r.err
}

func (r *recorder) all() []notify.Notification {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]notify.Notification(nil), r.seen...)
}

type echoSummarizer struct{ err error }

func (e echoSummarizer) Summarize(_ context.Context, content string, _ *config.Settings) (string, error) {
	if e.err != nil {
		return "", e.err
	}
	return "**Summary** of " + content, nil
}

type stubReader struct{}

func (stubReader) Name() string { return "stub" }

func (stubReader) Read(_ context.Context, u string, _ *config.Settings) (reader.Page, error) {
	return reader.Page{Title: "Page", URL: u, Content: "Extracted body"}, nil
}

type fixture struct {
	r       *Router
	h       *handler.Handlers
	out     *fakePusher
	notes   *recorder
	store   *storage.Store
	upserts atomic.Int32
	bodies  chan string
}

func newFixture(t *testing.T, popupOpen bool) *fixture {
	t.Helper()
	f := &fixture{out: newPusher(popupOpen), notes: &recorder{}, bodies: make(chan string, 16)}

	notes := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			Content string `json:"content"`
		}
		json.NewDecoder(r.Body).Decode(&body)
		f.upserts.Add(1)
		f.bodies <- body.Content
		w.Write([]byte(`{"id":1}`))
	}))
	t.Cleanup(notes.Close)

	db, err := storage.OpenDB(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	f.store = &storage.Store{DB: db}

	s := config.Defaults()
	s.ModelURL = "https://api.example.com/v1"
	s.APIKey = "sk-test"
	s.TargetURL = notes.URL + "/api/v1"
	s.AuthKey = "key"
	settings := config.StaticSource{Settings: s}

	f.h = &handler.Handlers{
		Settings:   settings,
		State:      opstate.New(f.store),
		Store:      f.store,
		Summarizer: echoSummarizer{},
		Reader:     stubReader{},
		Sink:       notesink.New(settings, transport.New()),
		Uploader:   notesink.NewUploader(),
	}
	f.r = New(context.Background(), f.out, f.h, f.notes)
	return f
}

func inbound(kind server.Kind, tab int, id string, frame string) server.Inbound {
	return server.Inbound{
		Peer:  server.PeerInfo{ID: "p1", Kind: kind, TabID: tab},
		ReqID: json.RawMessage(`"` + id + `"`),
		Data:  []byte(frame),
	}
}

func TestDecode(t *testing.T) {
	msg, err := Decode([]byte(`{"id":1,"action":"getContent","content":"text","url":"https://x","title":"X","isExtractOnly":true,"directSave":true}`))
	require.NoError(t, err)
	gc, ok := msg.(*GetContent)
	require.True(t, ok)
	assert.Equal(t, handler.ContentRequest{Content: "text", URL: "https://x", Title: "X", IsExtractOnly: true, DirectSave: true}, gc.ContentRequest)

	msg, err = Decode([]byte(`{"action":"uploadFile","name":"a.txt","type":"text/plain","data":"aGVsbG8="}`))
	require.NoError(t, err)
	assert.Equal(t, []byte("hello"), msg.(*UploadFile).Data)

	msg, err = Decode([]byte(`{"action":"saveSummary","content":"c","type":"quickNote","attachments":[{"name":"a","path":"/p","size":1,"type":"image/png"}]}`))
	require.NoError(t, err)
	assert.Equal(t, types.ScenarioQuickNote, msg.(*SaveSummary).Type)
	assert.Len(t, msg.(*SaveSummary).Attachments, 1)

	_, err = Decode([]byte(`{"action":"openTab"}`))
	assert.ErrorIs(t, err, ErrUnknownAction)

	_, err = Decode([]byte(`{"action":"saveImage","pageUrl":"https://x"}`))
	assert.True(t, apperr.Is(err, apperr.InvalidInput), "got %v", err)

	_, err = Decode([]byte(`{"action":"saveSummary","content":"c","type":"podcast"}`))
	assert.True(t, apperr.Is(err, apperr.InvalidInput), "got %v", err)

	_, err = Decode([]byte(`not json`))
	assert.True(t, apperr.Is(err, apperr.InvalidInput))
}

func TestDelivery(t *testing.T) {
	ctx := context.Background()
	ok := func(context.Context, any) error { return nil }
	gone := func(context.Context, any) error { return server.ErrNoListener }

	d := &Delivery{Name: "x", Push: ok}
	st, err := d.Deliver(ctx, "m")
	require.NoError(t, err)
	assert.Equal(t, Delivered, st)

	var fellBack bool
	d = &Delivery{Name: "x", Push: gone, Fallback: func(context.Context) error { fellBack = true; return nil }}
	st, _ = d.Deliver(ctx, "m")
	assert.Equal(t, FallbackUsed, st)
	assert.True(t, fellBack)

	d = &Delivery{Name: "x", Push: gone, Fallback: func(context.Context) error { return errors.New("no bus") }}
	st, _ = d.Deliver(ctx, "m")
	assert.Equal(t, Dropped, st)

	d = &Delivery{Name: "x", Push: gone}
	assert.Equal(t, Pending, d.State())
	st, _ = d.Deliver(ctx, "m")
	assert.Equal(t, Dropped, st)

	st, err = d.Deliver(ctx, "m")
	assert.ErrorIs(t, err, ErrDeliveryUsed)
	assert.Equal(t, Dropped, st)
}

func TestDeliveryPendingWhilePushInFlight(t *testing.T) {
	entered := make(chan struct{})
	release := make(chan struct{})
	d := &Delivery{Name: "x", Push: func(context.Context, any) error {
		close(entered)
		<-release
		return nil
	}}

	done := make(chan DeliveryState)
	go func() {
		st, _ := d.Deliver(context.Background(), "m")
		done <- st
	}()
	<-entered
	assert.Equal(t, Pending, d.State())

	_, err := d.Deliver(context.Background(), "m")
	assert.ErrorIs(t, err, ErrDeliveryUsed)

	close(release)
	assert.Equal(t, Delivered, <-done)
	assert.Equal(t, Delivered, d.State())
}

func TestGetContentPushesToPopup(t *testing.T) {
	f := newFixture(t, true)

	f.r.Handle(inbound(server.KindPopup, 0, "1", `{"id":"1","action":"getContent","content":"page","url":"https://x","title":"X"}`))
	f.r.Wait()

	require.Len(t, f.out.replies, 1)
	assert.Equal(t, `"1"`, f.out.replies[0].ReqID)
	assert.JSONEq(t, `{"received":true}`, f.out.replies[0].Response)

	require.Len(t, f.out.popup, 1)
	assert.JSONEq(t, `{"action":"handleSummaryResponse","success":true,"summary":"**Summary** of page","url":"https://x","title":"X","isExtractOnly":false}`, f.out.popup[0])
	assert.Empty(t, f.notes.all())
}

func TestGetContentPopupClosedFallsBack(t *testing.T) {
	f := newFixture(t, false)

	f.r.Handle(inbound(server.KindPopup, 0, "1", `{"id":"1","action":"getContent","content":"page","url":"https://x","title":"X"}`))
	f.r.Wait()

	notes := f.notes.all()
	require.Len(t, notes, 1)
	assert.Equal(t, "Summary ready", notes[0].Title)
	assert.Contains(t, notes[0].Message, `"X"`)
	assert.Contains(t, notes[0].Message, "Summary of page")

	// The next popup reads the truth from state and storage.
	st := f.h.Current()
	assert.Equal(t, types.StatusCompleted, st.Status)
	assert.Equal(t, "**Summary** of page", st.Summary)

	f.out.popupOpen = true
	f.r.Handle(inbound(server.KindPopup, 0, "2", `{"id":"2","action":"getSummaryState"}`))
	assert.JSONEq(t, encode(st), f.out.replies[1].Response)

	f.r.Handle(inbound(server.KindPopup, 0, "3", `{"id":"3","action":"getStoredSummary"}`))
	var p types.PersistedSummary
	require.NoError(t, json.Unmarshal([]byte(f.out.replies[2].Response), &p))
	assert.Equal(t, "https://x", p.URL)
}

func TestGetContentFailureAlwaysNotifies(t *testing.T) {
	f := newFixture(t, true)
	f.h.Summarizer = echoSummarizer{err: apperr.New(apperr.APIError, "API request failed: 500 Internal Server Error")}

	f.r.Handle(inbound(server.KindPopup, 0, "1", `{"id":"1","action":"getContent","content":"page","title":"X"}`))
	f.r.Wait()

	require.Len(t, f.out.popup, 1)
	assert.Contains(t, f.out.popup[0], `"success":false`)
	notes := f.notes.all()
	require.Len(t, notes, 1)
	assert.Equal(t, "Summary failed", notes[0].Title)
	assert.Equal(t, `Summarizing "X" failed: API request failed: 500 Internal Server Error`, notes[0].Message)
	assert.Equal(t, types.StatusError, f.h.Current().Status)
}

func TestGetContentDirectSaveNotifies(t *testing.T) {
	f := newFixture(t, true)

	f.r.Handle(inbound(server.KindPopup, 0, "1", `{"id":"1","action":"getContent","content":"page","url":"https://x","isExtractOnly":true,"directSave":true}`))
	f.r.Wait()

	assert.Empty(t, f.out.popup)
	assert.Equal(t, int32(1), f.upserts.Load())
	assert.Contains(t, <-f.bodies, "Extracted body")
	notes := f.notes.all()
	require.Len(t, notes, 1)
	assert.Equal(t, "Extract saved", notes[0].Title)

	p, err := f.store.LoadSummary(context.Background())
	require.NoError(t, err)
	assert.Nil(t, p)
}

func TestSaveSummaryAfterPreview(t *testing.T) {
	f := newFixture(t, true)
	f.r.Handle(inbound(server.KindPopup, 0, "1", `{"id":"1","action":"getContent","content":"page","url":"https://x","title":"X"}`))
	f.r.Wait()

	f.r.Handle(inbound(server.KindPopup, 0, "2", `{"id":"2","action":"saveSummary","content":"edited"}`))
	f.r.Wait()

	assert.JSONEq(t, `{"success":true}`, f.out.replies[1].Response)
	require.Len(t, f.out.popup, 2)
	assert.JSONEq(t, `{"action":"saveSummaryResponse","response":{"success":true}}`, f.out.popup[1])
	body := <-f.bodies
	assert.Contains(t, body, "edited")
	assert.Contains(t, body, "Original link: [X](https://x)")
	assert.Equal(t, types.StatusNone, f.h.Current().Status)
}

func TestSaveFailurePopupClosedNotifies(t *testing.T) {
	f := newFixture(t, false)
	f.h.Settings = config.StaticSource{}
	f.h.Sink = notesink.New(config.StaticSource{}, transport.New())

	f.r.Handle(inbound(server.KindPopup, 0, "1", `{"id":"1","action":"saveSummary","content":"x","type":"quickNote"}`))
	f.r.Wait()

	notes := f.notes.all()
	require.Len(t, notes, 1)
	assert.Equal(t, "Save failed", notes[0].Title)
}

func TestProcessAndSendContentPushesToTab(t *testing.T) {
	f := newFixture(t, true)
	f.out.openTabs[7] = true

	f.r.Handle(inbound(server.KindContent, 7, "1", `{"id":"1","action":"processAndSendContent","content":"page","url":"https://x","title":"X"}`))
	f.r.Wait()

	assert.JSONEq(t, `{"processing":true}`, f.out.replies[0].Response)
	require.Len(t, f.out.tabs[7], 1)
	assert.JSONEq(t, `{"action":"updateFloatingBallState","success":true}`, f.out.tabs[7][0])
	assert.Empty(t, f.out.popup)

	p, err := f.store.LoadSummary(context.Background())
	require.NoError(t, err)
	assert.Nil(t, p)
}

func TestProcessAndSendContentTabGoneIsDropped(t *testing.T) {
	f := newFixture(t, true)

	f.r.Handle(inbound(server.KindContent, 9, "1", `{"id":"1","action":"processAndSendContent","content":"page"}`))
	f.r.Wait()

	assert.Empty(t, f.out.tabs[9])
	assert.Empty(t, f.notes.all())
	assert.Equal(t, types.StatusCompleted, f.h.Current().Status)
}

func TestClearSummary(t *testing.T) {
	f := newFixture(t, true)
	f.h.State.Update(opstate.Completed("S", "https://x", "X", false))

	f.r.Handle(inbound(server.KindPopup, 0, "1", `{"id":"1","action":"clearSummary"}`))
	f.r.Wait()

	assert.JSONEq(t, `{"processing":true}`, f.out.replies[0].Response)
	require.Len(t, f.out.popup, 1)
	assert.JSONEq(t, `{"action":"clearSummaryResponse","success":true}`, f.out.popup[0])
	assert.Equal(t, types.OperationState{Status: types.StatusNone}, f.h.Current())
}

func TestUnknownActionGetsNoReply(t *testing.T) {
	f := newFixture(t, true)
	f.r.Handle(inbound(server.KindPopup, 0, "1", `{"id":"1","action":"reloadExtension"}`))
	f.r.Wait()
	assert.Empty(t, f.out.replies)
}

func TestInvalidMessageReplies(t *testing.T) {
	f := newFixture(t, true)
	f.r.Handle(inbound(server.KindContent, 3, "1", `{"id":"1","action":"saveImage"}`))
	require.Len(t, f.out.replies, 1)
	assert.Contains(t, f.out.replies[0].Response, `"success":false`)
}

func TestQuickNoteDraftActions(t *testing.T) {
	f := newFixture(t, true)

	f.r.Handle(inbound(server.KindPopup, 0, "1", `{"id":"1","action":"saveQuickNoteDraft","content":"remember","attachments":[{"name":"a.png","path":"/p/a.png","size":3,"type":"image/png"}]}`))
	assert.JSONEq(t, `{"success":true}`, f.out.replies[0].Response)

	f.r.Handle(inbound(server.KindPopup, 0, "2", `{"id":"2","action":"getQuickNoteDraft"}`))
	var d types.QuickNoteDraft
	require.NoError(t, json.Unmarshal([]byte(f.out.replies[1].Response), &d))
	assert.Equal(t, "remember", d.Content)
	require.Len(t, d.Attachments, 1)

	f.r.Handle(inbound(server.KindPopup, 0, "3", `{"id":"3","action":"clearQuickNoteDraft"}`))
	f.r.Handle(inbound(server.KindPopup, 0, "4", `{"id":"4","action":"getQuickNoteDraft"}`))
	require.NoError(t, json.Unmarshal([]byte(f.out.replies[3].Response), &d))
	assert.Empty(t, d.Content)
}

func TestShowNotificationRelays(t *testing.T) {
	f := newFixture(t, false)
	f.r.Handle(inbound(server.KindContent, 1, "1", `{"id":"1","action":"showNotification","message":"hello"}`))
	f.r.Wait()

	assert.JSONEq(t, `{"received":true}`, f.out.replies[0].Response)
	assert.Equal(t, []notify.Notification{{Title: "Notification", Message: "hello"}}, f.notes.all())
}

func TestSaveSelectionFailureNotifies(t *testing.T) {
	f := newFixture(t, true)
	f.r.Handle(inbound(server.KindContent, 1, "1", `{"id":"1","action":"saveSelection","content":"   "}`))
	f.r.Wait()

	notes := f.notes.all()
	require.Len(t, notes, 1)
	assert.Equal(t, "Send failed", notes[0].Title)
}

func TestRunStopsWhenChannelCloses(t *testing.T) {
	f := newFixture(t, true)
	in := make(chan server.Inbound, 1)
	in <- inbound(server.KindPopup, 0, "1", `{"id":"1","action":"getSummaryState"}`)
	close(in)

	f.r.Run(context.Background(), in)
	require.Len(t, f.out.replies, 1)
	assert.JSONEq(t, `{"status":"none"}`, f.out.replies[0].Response)
}
