// Package router dispatches messages from the extension's contexts to the
// handlers.
//
// Every action that does network work is acknowledged immediately and its
// result is pushed later as a separate message. The popup can close at any
// moment, so a push may find nobody listening; results that matter then fall
// back to a notification, and the operation state always records the truth
// for the next popup to read.
package router

import (
	"context"
	"errors"
	"sync"

	"github.com/lotas/notebridge/internal/applog"
	"github.com/lotas/notebridge/internal/handler"
	"github.com/lotas/notebridge/internal/notify"
	"github.com/lotas/notebridge/internal/server"
)

// Pusher is the outbound side of the server.
type Pusher interface {
	Reply(in server.Inbound, response any) error
	PushToPopup(ctx context.Context, msg any) error
	PushToTab(ctx context.Context, tabID int, msg any) error
}

// Router owns the async work started by inbound messages.
type Router struct {
	ctx      context.Context
	out      Pusher
	h        *handler.Handlers
	notifier notify.Notifier
	wg       sync.WaitGroup
}

// New returns a Router. Async work runs with ctx, not with the lifetime of
// the peer that asked for it.
func New(ctx context.Context, out Pusher, h *handler.Handlers, n notify.Notifier) *Router {
	return &Router{ctx: ctx, out: out, h: h, notifier: n}
}

type ack struct {
	Received   bool `json:"received,omitempty"`
	Processing bool `json:"processing,omitempty"`
	Success    bool `json:"success,omitempty"`
}

type summaryPush struct {
	Action string `json:"action"`
	handler.ContentResult
}

type savePush struct {
	Action   string         `json:"action"`
	Response handler.Result `json:"response"`
}

type floatingPush struct {
	Action  string `json:"action"`
	Success bool   `json:"success"`
	Error   string `json:"error,omitempty"`
}

type clearPush struct {
	Action  string `json:"action"`
	Success bool   `json:"success"`
}

type uploadPush struct {
	Action string `json:"action"`
	handler.UploadResult
}

// Run handles inbound frames until ctx is done or in is closed.
func (r *Router) Run(ctx context.Context, in <-chan server.Inbound) {
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-in:
			if !ok {
				return
			}
			r.Handle(msg)
		}
	}
}

// Wait blocks until all async work has finished.
func (r *Router) Wait() {
	r.wg.Wait()
}

// Handle replies to one frame and starts any async work it asks for.
// Unknown actions get no reply.
func (r *Router) Handle(in server.Inbound) {
	msg, err := Decode(in.Data)
	if errors.Is(err, ErrUnknownAction) {
		applog.Warn("router.unknown", "peer", string(in.Peer.Kind), "err", err.Error())
		return
	}
	if err != nil {
		applog.Warn("router.invalid", "peer", string(in.Peer.Kind), "err", err.Error())
		r.reply(in, handler.Result{Error: err.Error()})
		return
	}
	applog.Info("router.recv", "action", string(msg.Action()), "peer", string(in.Peer.Kind), "tab", in.Peer.TabID)

	ctx := r.ctx
	switch m := msg.(type) {
	case *GetContent:
		r.reply(in, ack{Received: true})
		r.async(func(ctx context.Context) { r.content(ctx, m.ContentRequest) })

	case *SaveSummary:
		r.reply(in, ack{Success: true})
		r.async(func(ctx context.Context) { r.save(ctx, m.SaveRequest) })

	case *ProcessAndSendContent:
		r.reply(in, ack{Processing: true})
		peer := in.Peer
		r.async(func(ctx context.Context) { r.floating(ctx, peer, m.ContentRequest) })

	case *GetSummaryState:
		r.reply(in, r.h.Current())

	case *ClearSummary:
		r.reply(in, ack{Processing: true})
		r.async(r.clear)

	case *SaveSelection:
		r.reply(in, ack{Received: true})
		r.async(func(ctx context.Context) {
			if res := r.h.SaveSelection(ctx, m.SelectionRequest); !res.Success {
				r.notify(ctx, sendFailed(res.Error))
			}
		})

	case *SaveImage:
		r.reply(in, ack{Received: true})
		r.async(func(ctx context.Context) {
			if res := r.h.SaveImage(ctx, m.ImageRequest); !res.Success {
				r.notify(ctx, saveFailed(res.Error))
			}
		})

	case *UploadFile:
		r.reply(in, ack{Received: true})
		r.async(func(ctx context.Context) { r.uploaded(ctx, r.h.Upload(ctx, m.UploadRequest)) })

	case *UploadFileByURL:
		r.reply(in, ack{Received: true})
		r.async(func(ctx context.Context) { r.uploaded(ctx, r.h.UploadByURL(ctx, m.UploadByURLRequest)) })

	case *GetStoredSummary:
		r.reply(in, r.h.StoredSummary(ctx))

	case *SaveQuickNoteDraft:
		r.reply(in, r.h.SaveDraft(ctx, m.QuickNoteDraft))

	case *GetQuickNoteDraft:
		d, err := r.h.Draft(ctx)
		if err != nil {
			r.reply(in, handler.Result{Error: err.Error()})
			return
		}
		r.reply(in, d)

	case *ClearQuickNoteDraft:
		r.reply(in, r.h.ClearDraft(ctx))

	case *ShowNotification:
		r.reply(in, ack{Received: true})
		r.async(func(ctx context.Context) { r.notify(ctx, relayed(m)) })
	}
}

func (r *Router) reply(in server.Inbound, response any) {
	if err := r.out.Reply(in, response); err != nil {
		applog.Warn("router.reply_failed", "peer", string(in.Peer.Kind), "err", err.Error())
	}
}

func (r *Router) async(fn func(ctx context.Context)) {
	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		fn(r.ctx)
	}()
}

func (r *Router) notify(ctx context.Context, n notify.Notification) error {
	if r.notifier == nil {
		return errors.New("no notifier")
	}
	if err := r.notifier.Notify(ctx, n); err != nil {
		applog.Error("router.notify", err, "title", n.Title)
		return err
	}
	return nil
}

func (r *Router) toPopup(name string, fallback func(ctx context.Context) error) *Delivery {
	return &Delivery{Name: name, Push: r.out.PushToPopup, Fallback: fallback}
}

func (r *Router) content(ctx context.Context, req handler.ContentRequest) {
	res := r.h.Content(ctx, req)
	push := summaryPush{Action: pushSummaryResponse, ContentResult: res}

	switch {
	case res.Success && req.DirectSave:
		r.notify(ctx, contentSaved(req))
	case res.Success:
		d := r.toPopup(pushSummaryResponse, func(ctx context.Context) error {
			return r.notify(ctx, contentReady(req, res.Summary))
		})
		d.Deliver(ctx, push)
	default:
		// The error notification is shown whether or not the popup saw it.
		d := r.toPopup(pushSummaryResponse, nil)
		d.Deliver(ctx, push)
		r.notify(ctx, contentFailed(req, res.Error))
	}
}

func (r *Router) save(ctx context.Context, req handler.SaveRequest) {
	res := r.h.Save(ctx, req)
	var fallback func(context.Context) error
	if !res.Success {
		fallback = func(ctx context.Context) error { return r.notify(ctx, saveFailed(res.Error)) }
	}
	d := r.toPopup(pushSaveResponse, fallback)
	d.Deliver(ctx, savePush{Action: pushSaveResponse, Response: res})
}

func (r *Router) floating(ctx context.Context, peer server.PeerInfo, req handler.ContentRequest) {
	res := r.h.Floating(ctx, req)
	if peer.Kind != server.KindContent || peer.TabID == 0 {
		applog.Warn("router.dropped", "push", pushFloatingBallState, "reason", "sender has no tab")
		return
	}
	d := &Delivery{
		Name: pushFloatingBallState,
		Push: func(ctx context.Context, msg any) error { return r.out.PushToTab(ctx, peer.TabID, msg) },
	}
	d.Deliver(ctx, floatingPush{Action: pushFloatingBallState, Success: res.Success, Error: res.Error})
}

func (r *Router) clear(ctx context.Context) {
	res := r.h.Clear(ctx)
	d := r.toPopup(pushClearResponse, nil)
	d.Deliver(ctx, clearPush{Action: pushClearResponse, Success: res.Success})
}

func (r *Router) uploaded(ctx context.Context, res handler.UploadResult) {
	var fallback func(context.Context) error
	if !res.Success {
		fallback = func(ctx context.Context) error { return r.notify(ctx, uploadFailed(res.Error)) }
	}
	d := r.toPopup(pushUploadFileResponse, fallback)
	d.Deliver(ctx, uploadPush{Action: pushUploadFileResponse, UploadResult: res})
}
