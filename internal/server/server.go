package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
	"nhooyr.io/websocket"

	"github.com/lotas/notebridge/internal/applog"
)

// ErrNoListener is returned by a push when no peer of the wanted kind is
// connected. For an ephemeral popup this is expected.
var ErrNoListener = errors.New("no listener")

// Kind is the extension context a peer connection comes from.
type Kind string

const (
	KindPopup   Kind = "popup"
	KindContent Kind = "content"
	KindOptions Kind = "options"
)

// PeerInfo identifies one connection.
type PeerInfo struct {
	ID          string    `json:"id"`
	Kind        Kind      `json:"kind"`
	TabID       int       `json:"tabId,omitempty"`
	ConnectedAt time.Time `json:"connectedAt"`
}

// Inbound is a frame received from a peer. ReqID is the frame's "id", echoed
// back as "replyTo" by Reply.
type Inbound struct {
	Peer  PeerInfo
	ReqID json.RawMessage
	Data  []byte
}

// PeerEvent reports a peer connecting or disconnecting.
type PeerEvent struct {
	Peer      PeerInfo
	Connected bool
}

type reply struct {
	ReplyTo  json.RawMessage `json:"replyTo"`
	Response any             `json:"response"`
}

type peer struct {
	info PeerInfo
	conn *websocket.Conn
	ctx  context.Context
}

// Server manages the WebSocket connections from the extension's contexts.
type Server struct {
	port         int
	msgs         chan Inbound
	events       chan PeerEvent
	writeTimeout time.Duration

	mu    sync.Mutex
	peers map[string]*peer
}

// New creates a new Server. Port 0 means the caller manages the listener.
func New(port int) *Server {
	return &Server{
		port:         port,
		msgs:         make(chan Inbound, 64),
		events:       make(chan PeerEvent, 64),
		writeTimeout: 5 * time.Second,
		peers:        make(map[string]*peer),
	}
}

// Port returns the configured port.
func (s *Server) Port() int {
	return s.port
}

// Messages returns the channel of frames received from peers.
func (s *Server) Messages() <-chan Inbound {
	return s.msgs
}

// Events returns peer connect/disconnect events. Events are dropped if
// nobody reads them.
func (s *Server) Events() <-chan PeerEvent {
	return s.events
}

// Peers returns the connected peers, oldest first.
func (s *Server) Peers() []PeerInfo {
	s.mu.Lock()
	out := make([]PeerInfo, 0, len(s.peers))
	for _, p := range s.peers {
		out = append(out, p.info)
	}
	s.mu.Unlock()
	sort.Slice(out, func(i, j int) bool { return out[i].ConnectedAt.Before(out[j].ConnectedAt) })
	return out
}

// Reply answers an inbound frame on the connection it came from.
func (s *Server) Reply(in Inbound, response any) error {
	s.mu.Lock()
	p := s.peers[in.Peer.ID]
	s.mu.Unlock()
	if p == nil {
		return ErrNoListener
	}
	return s.write(p, reply{ReplyTo: in.ReqID, Response: response})
}

// PushToPopup sends msg to every connected popup. It fails with
// ErrNoListener if there is none, or if every write failed.
func (s *Server) PushToPopup(ctx context.Context, msg any) error {
	return s.push(msg, func(p PeerInfo) bool { return p.Kind == KindPopup })
}

// PushToTab sends msg to the content scripts of one tab.
func (s *Server) PushToTab(ctx context.Context, tabID int, msg any) error {
	return s.push(msg, func(p PeerInfo) bool { return p.Kind == KindContent && p.TabID == tabID })
}

func (s *Server) push(msg any, match func(PeerInfo) bool) error {
	s.mu.Lock()
	var targets []*peer
	for _, p := range s.peers {
		if match(p.info) {
			targets = append(targets, p)
		}
	}
	s.mu.Unlock()

	if len(targets) == 0 {
		return ErrNoListener
	}
	var errs []error
	for _, p := range targets {
		if err := s.write(p, msg); err != nil {
			errs = append(errs, err)
		}
	}
	if len(errs) == len(targets) {
		return fmt.Errorf("%w: %w", ErrNoListener, errors.Join(errs...))
	}
	return nil
}

func (s *Server) write(p *peer, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal: %w", err)
	}
	ctx, cancel := context.WithTimeout(p.ctx, s.writeTimeout)
	defer cancel()
	if err := p.conn.Write(ctx, websocket.MessageText, data); err != nil {
		applog.Warn("ws.write_failed", "peer", p.info.ID, "kind", string(p.info.Kind), "err", err.Error())
		return err
	}
	applog.Info("ws.send", "peer", p.info.ID, "kind", string(p.info.Kind), "bytes", len(data))
	return nil
}

// parsePeer reads the context and tabId query parameters.
func parsePeer(r *http.Request) (PeerInfo, error) {
	q := r.URL.Query()
	info := PeerInfo{ID: uuid.NewString(), Kind: Kind(q.Get("context")), ConnectedAt: time.Now()}
	switch info.Kind {
	case KindPopup, KindOptions:
	case KindContent:
		id, err := strconv.Atoi(q.Get("tabId"))
		if err != nil || id <= 0 {
			return PeerInfo{}, fmt.Errorf("content peer needs a positive tabId, got %q", q.Get("tabId"))
		}
		info.TabID = id
	default:
		return PeerInfo{}, fmt.Errorf("unknown context %q", info.Kind)
	}
	return info, nil
}

func (s *Server) emit(ev PeerEvent) {
	select {
	case s.events <- ev:
	default:
	}
}

// Handler returns an http.Handler that accepts WebSocket upgrades.
func (s *Server) Handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		info, err := parsePeer(r)
		if err != nil {
			applog.Error("ws.reject", err, "query", r.URL.RawQuery)
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}

		conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
			InsecureSkipVerify: true,
		})
		if err != nil {
			applog.Error("ws.accept", err)
			return
		}

		conn.SetReadLimit(32 << 20) // 32 MB, uploads arrive base64-encoded

		ctx := r.Context()
		p := &peer{info: info, conn: conn, ctx: ctx}
		s.mu.Lock()
		s.peers[info.ID] = p
		s.mu.Unlock()

		applog.Info("ws.connected", "peer", info.ID, "kind", string(info.Kind), "tab", info.TabID, "remote", r.RemoteAddr)
		s.emit(PeerEvent{Peer: info, Connected: true})

		defer func() {
			s.mu.Lock()
			delete(s.peers, info.ID)
			s.mu.Unlock()
			conn.CloseNow()
			applog.Info("ws.disconnected", "peer", info.ID, "kind", string(info.Kind))
			s.emit(PeerEvent{Peer: info, Connected: false})
		}()

		for {
			_, data, err := conn.Read(ctx)
			if err != nil {
				return
			}
			var env struct {
				ID json.RawMessage `json:"id"`
			}
			if err := json.Unmarshal(data, &env); err != nil {
				applog.Error("ws.parse", err, "peer", info.ID)
				continue
			}
			select {
			case s.msgs <- Inbound{Peer: info, ReqID: env.ID, Data: data}:
			case <-ctx.Done():
				return
			}
		}
	})
}

// ListenAndServe starts the WebSocket server on the configured port.
func (s *Server) ListenAndServe(ctx context.Context) error {
	mux := http.NewServeMux()
	mux.Handle("/", s.Handler())

	addr := fmt.Sprintf("127.0.0.1:%d", s.port)
	applog.Info("server.start", "addr", addr)
	srv := &http.Server{Addr: addr, Handler: mux}

	go func() {
		<-ctx.Done()
		srv.Close()
	}()

	err := srv.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}
