package server

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/gorilla/websocket"
	"go.opentelemetry.io/otel/attribute"

	"github.com/fcapolini/markout/internal/errors"
	"github.com/fcapolini/markout/pkg/dom"
	"github.com/fcapolini/markout/pkg/middleware"
)

// Message is a client assignment.
type Message struct {
	Scope string `json:"scope"`
	Key   string `json:"key"`
	Value any    `json:"value"`
}

// Reply is a server message: the hello, the patches of one assignment, or
// an error.
type Reply struct {
	Session string               `json:"session,omitempty"`
	Seq     uint64               `json:"seq,omitempty"`
	Patches []dom.Patch          `json:"patches,omitempty"`
	Error   *errors.MarkoutError `json:"error,omitempty"`
}

// liveSession is one connection bound to its own copy of a page.
type liveSession struct {
	id      string
	page    string
	conn    *websocket.Conn
	config  SessionConfig
	metrics *middleware.Metrics
	logger  *slog.Logger

	// mu serializes assignments and the buffer they fill.
	mu      sync.Mutex
	doc     *dom.Context
	patches dom.PatchBuffer
	seq     uint64

	writeMu   sync.Mutex
	done      chan struct{}
	closeOnce sync.Once
}

func (s *Server) handleLive(w http.ResponseWriter, r *http.Request) {
	name := PageName(chi.URLParam(r, "*"))
	p, err := s.store.Load(r.Context(), name)
	if err != nil {
		s.fail(w, r, err)
		return
	}

	ls := &liveSession{
		id:      chimw.GetReqID(r.Context()),
		page:    name,
		config:  s.config.Session,
		metrics: s.metrics,
		done:    make(chan struct{}),
	}
	ls.logger = s.logger.With("session", ls.id, "page", name)
	if ls.doc, err = s.renderer.Session(r.Context(), p, &ls.patches); err != nil {
		s.fail(w, r, err)
		return
	}

	s.mu.Lock()
	if s.closing {
		s.mu.Unlock()
		http.Error(w, http.StatusText(http.StatusServiceUnavailable), http.StatusServiceUnavailable)
		return
	}
	s.wg.Add(1)
	s.mu.Unlock()
	defer s.wg.Done()

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// The upgrader has already replied.
		s.metrics.WebSocketError("upgrade")
		ls.logger.Warn("websocket upgrade failed", "error", err)
		return
	}
	ls.conn = conn

	s.mu.Lock()
	if s.closing {
		s.mu.Unlock()
		ls.Close(websocket.CloseGoingAway, "server shutting down")
		return
	}
	s.sessions[ls] = struct{}{}
	s.mu.Unlock()
	s.metrics.SessionOpened()
	ls.logger.Info("live session opened")

	defer func() {
		s.mu.Lock()
		delete(s.sessions, ls)
		s.mu.Unlock()
		s.metrics.SessionClosed()
		ls.logger.Info("live session closed")
	}()

	if err := ls.send(Reply{Session: ls.id}); err != nil {
		ls.Close(websocket.CloseInternalServerErr, "")
		return
	}
	go ls.heartbeat()
	ls.readLoop(r.Context())
}

// readLoop reads and applies messages until the connection ends.
func (ls *liveSession) readLoop(ctx context.Context) {
	defer ls.Close(websocket.CloseNormalClosure, "")

	ls.conn.SetReadLimit(ls.config.MaxMessageSize)
	ls.conn.SetReadDeadline(time.Now().Add(ls.config.ReadTimeout))
	ls.conn.SetPongHandler(func(string) error {
		return ls.conn.SetReadDeadline(time.Now().Add(ls.config.ReadTimeout))
	})

	for {
		_, data, err := ls.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err,
				websocket.CloseGoingAway,
				websocket.CloseAbnormalClosure,
				websocket.CloseNormalClosure) {
				ls.metrics.WebSocketError("read")
				ls.logger.Error("read error", "error", err)
			}
			return
		}
		ls.conn.SetReadDeadline(time.Now().Add(ls.config.ReadTimeout))

		var msg Message
		var reply Reply
		if err := json.Unmarshal(data, &msg); err != nil {
			reply = Reply{Error: errors.New("E402").Wrap(err)}
		} else if msg.Scope == "" || msg.Key == "" {
			reply = Reply{Error: errors.New("E402")}
		} else {
			reply = ls.apply(ctx, msg)
		}
		if err := ls.send(reply); err != nil {
			ls.metrics.WebSocketError("write")
			ls.logger.Warn("write error", "error", err)
			return
		}
	}
}

// apply assigns one message and collects the patches it produced.
func (ls *liveSession) apply(ctx context.Context, msg Message) Reply {
	_, span := middleware.StartSpan(ctx, "live.assign",
		attribute.String("markout.page", ls.page),
		attribute.String("markout.scope", msg.Scope),
		attribute.String("markout.key", msg.Key),
	)

	ls.mu.Lock()
	defer ls.mu.Unlock()

	err := ls.doc.Assign(msg.Scope, msg.Key, msg.Value)
	patches := ls.patches.Drain()
	middleware.EndSpan(span, err)
	if err != nil {
		ls.logger.Debug("assignment rejected", "scope", msg.Scope, "key", msg.Key, "error", err)
		return Reply{Error: errors.Classify(err)}
	}
	ls.seq++
	ls.metrics.PatchesSent(len(patches))
	return Reply{Seq: ls.seq, Patches: patches}
}

func (ls *liveSession) send(r Reply) error {
	ls.writeMu.Lock()
	defer ls.writeMu.Unlock()
	ls.conn.SetWriteDeadline(time.Now().Add(ls.config.WriteTimeout))
	return ls.conn.WriteJSON(r)
}

// heartbeat pings the client until the session closes.
func (ls *liveSession) heartbeat() {
	ticker := time.NewTicker(ls.config.HeartbeatInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			deadline := time.Now().Add(ls.config.WriteTimeout)
			if err := ls.conn.WriteControl(websocket.PingMessage, nil, deadline); err != nil {
				return
			}

		case <-ls.done:
			return
		}
	}
}

// Close sends a close frame and closes the connection. Only the first call
// has an effect.
func (ls *liveSession) Close(code int, reason string) {
	ls.closeOnce.Do(func() {
		close(ls.done)
		deadline := time.Now().Add(ls.config.WriteTimeout)
		ls.conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(code, reason), deadline)
		ls.conn.Close()
	})
}
