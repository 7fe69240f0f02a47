package syncserver

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"tasklist-cli/internal/remote"
)

var wsUpgrader = websocket.Upgrader{
	ReadBufferSize:  16 * 1024,
	WriteBufferSize: 16 * 1024,
	CheckOrigin: func(r *http.Request) bool {
		origin := strings.TrimSpace(r.Header.Get("Origin"))
		if origin == "" {
			return true
		}
		host := strings.TrimSpace(r.Host)
		return strings.Contains(origin, "://"+host)
	},
}

func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	if !s.admit(w, r) {
		return
	}
	conn, err := wsUpgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade already wrote the HTTP error.
		s.logger.Debug("websocket upgrade failed", "error", err)
		return
	}

	sess := &session{
		srv:    s,
		conn:   conn,
		writer: newClientWriter(conn, s.cfg.Clock),
		logger: s.logger.With("remote", r.RemoteAddr),
		subs:   make(map[string]remote.Subscription),
	}
	if !s.addSession(sess) {
		// Closed, or lost a race for the last slot.
		sess.writer.stop()
		return
	}
	sess.logger.Debug("client connected")

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()
	sess.readLoop(ctx)

	s.removeSession(sess)
	sess.stop()
	sess.logger.Debug("client disconnected")
}

type session struct {
	srv    *Server
	conn   *websocket.Conn
	writer *clientWriter
	logger *slog.Logger

	mu   sync.Mutex
	subs map[string]remote.Subscription

	dropOnce sync.Once
}

func (c *session) readLoop(ctx context.Context) {
	for {
		var req remote.Request
		if err := c.conn.ReadJSON(&req); err != nil {
			var syntaxErr *json.SyntaxError
			var typeErr *json.UnmarshalTypeError
			switch {
			case errors.As(err, &syntaxErr):
				c.reply(remote.Frame{Type: remote.FrameError, Error: "malformed request"})
				continue
			case errors.As(err, &typeErr):
				// The decoder keeps filling the other fields, so the id is usable.
				c.srv.metrics.Requests.WithLabelValues(req.Op, "error").Inc()
				c.reply(remote.Frame{Type: remote.FrameError, ID: req.ID, Error: "invalid " + typeErr.Field + ": " + typeErr.Value})
				continue
			}
			return
		}
		c.handle(ctx, req)
	}
}

func (c *session) handle(ctx context.Context, req remote.Request) {
	m := c.srv.metrics
	var err error
	switch req.Op {
	case remote.OpSubscribe:
		err = c.subscribe(ctx, req)
	case remote.OpUnsubscribe:
		err = c.unsubscribe(req)
	case remote.OpSet:
		err = c.srv.cfg.Store.Set(ctx, req.Path, req.Items)
		if err == nil {
			m.Requests.WithLabelValues(req.Op, "ok").Inc()
			c.reply(remote.Frame{Type: remote.FrameAck, ID: req.ID})
			return
		}
	default:
		err = errUnknownOp(req.Op)
	}

	if err != nil {
		m.Requests.WithLabelValues(req.Op, "error").Inc()
		c.logger.Debug("request failed", "op", req.Op, "list", req.Path, "error", err)
		c.reply(remote.Frame{Type: remote.FrameError, ID: req.ID, Error: err.Error()})
		return
	}
	m.Requests.WithLabelValues(req.Op, "ok").Inc()
}

// subscribe acks before any value frame for the new subscription is queued, so
// the client knows the subscription id before it sees values tagged with it.
func (c *session) subscribe(ctx context.Context, req remote.Request) error {
	id := uuid.NewString()
	ready := make(chan struct{})
	path := req.Path

	sub, err := c.srv.cfg.Store.Subscribe(ctx, path, func(items []string) {
		select {
		case <-ready:
		case <-c.writer.doneChannel:
			return
		}
		c.srv.metrics.Pushes.Inc()
		c.reply(remote.Frame{Type: remote.FrameValue, Sub: id, Path: path, Items: items})
	})
	if err != nil {
		return err
	}

	c.mu.Lock()
	c.subs[id] = sub
	c.mu.Unlock()
	c.srv.metrics.Subscriptions.Inc()

	c.reply(remote.Frame{Type: remote.FrameAck, ID: req.ID, Sub: id})
	close(ready)
	return nil
}

func (c *session) unsubscribe(req remote.Request) error {
	c.mu.Lock()
	sub, ok := c.subs[req.Sub]
	delete(c.subs, req.Sub)
	c.mu.Unlock()
	if !ok {
		return errUnknownSub(req.Sub)
	}
	_ = sub.Close()
	c.srv.metrics.Subscriptions.Dec()
	c.reply(remote.Frame{Type: remote.FrameAck, ID: req.ID, Sub: req.Sub})
	return nil
}

func (c *session) reply(f remote.Frame) {
	b, err := json.Marshal(f)
	if err != nil {
		c.logger.Error("encode frame", "error", err)
		return
	}
	if !c.writer.enqueue(b) {
		c.dropOnce.Do(func() {
			c.srv.metrics.SlowDisconnects.Inc()
			c.logger.Warn("disconnecting slow client")
			// Unblocks the read loop; cleanup happens there.
			_ = c.conn.Close()
		})
	}
}

func (c *session) stop() {
	c.mu.Lock()
	subs := c.subs
	c.subs = make(map[string]remote.Subscription)
	c.mu.Unlock()

	for _, sub := range subs {
		_ = sub.Close()
		c.srv.metrics.Subscriptions.Dec()
	}
	c.writer.stop()
}

type errUnknownOp string

func (e errUnknownOp) Error() string { return "unknown op " + string(e) }

type errUnknownSub string

func (e errUnknownSub) Error() string { return "unknown subscription " + string(e) }
