// Package wsclient is a remote.Store that talks to a sync server over a
// websocket, so viewers on different machines share one backing store.
package wsclient

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"tasklist-cli/internal/model"
	"tasklist-cli/internal/remote"
	"tasklist-cli/internal/retry"
)

const writeDeadline = 5 * time.Second

// ServerError is an error frame returned by the sync server.
type ServerError struct {
	Op      string
	Path    string
	Message string
}

func (e *ServerError) Error() string {
	return fmt.Sprintf("sync server: %s %s: %s", e.Op, e.Path, e.Message)
}

type Options struct {
	Logger *slog.Logger
	Retry  retry.Policy
	Dialer *websocket.Dialer
}

type call struct {
	reply chan remote.Frame
	sub   *remote.Sub // set for subscribe calls
}

type Client struct {
	conn   *websocket.Conn
	hub    *remote.Hub
	logger *slog.Logger

	writeMu sync.Mutex

	mu      sync.Mutex
	pending map[string]*call
	subs    map[string]*remote.Sub
	// Subscribe requests given up on before their reply arrived.
	abandoned map[string]struct{}
	closed    bool
	err     error

	done chan struct{}
}

// Dial connects to a sync server websocket endpoint (e.g. "ws://host:7777/ws").
func Dial(ctx context.Context, url string, opts Options) (*Client, error) {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Dialer == nil {
		opts.Dialer = websocket.DefaultDialer
	}
	if opts.Retry.MaxAttempts == 0 {
		opts.Retry = retry.DefaultPolicy
	}
	logger := opts.Logger.With("store", "ws", "url", url)

	p := opts.Retry
	p.OnRetry = func(attempt int, err error, backoff time.Duration) {
		logger.Warn("sync server not reachable, retrying", "attempt", attempt, "error", err, "backoff", backoff)
	}
	conn, err := retry.Do(ctx, p, nil, func() (*websocket.Conn, error) {
		c, _, err := opts.Dialer.DialContext(ctx, url, nil)
		return c, err
	})
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", url, err)
	}
	return newClient(conn, logger), nil
}

func newClient(conn *websocket.Conn, logger *slog.Logger) *Client {
	c := &Client{
		conn:    conn,
		hub:     remote.NewHub(logger),
		logger:  logger,
		pending:   make(map[string]*call),
		subs:      make(map[string]*remote.Sub),
		abandoned: make(map[string]struct{}),
		done:      make(chan struct{}),
	}
	go c.readLoop()
	return c
}

func (c *Client) Subscribe(ctx context.Context, path string, fn remote.Listener) (remote.Subscription, error) {
	if err := remote.ValidatePath(path); err != nil {
		return nil, err
	}
	hs, err := c.hub.Add(path, fn)
	if err != nil {
		return nil, err
	}
	req := remote.Request{Op: remote.OpSubscribe, ID: uuid.NewString(), Path: path}
	ack, err := c.roundTrip(ctx, req, hs)
	if err != nil {
		_ = hs.Close()
		return nil, err
	}
	return &subscription{client: c, id: ack.Sub, sub: hs}, nil
}

func (c *Client) Set(ctx context.Context, path string, items []string) error {
	if err := remote.ValidatePath(path); err != nil {
		return err
	}
	req := remote.Request{Op: remote.OpSet, ID: uuid.NewString(), Path: path, Items: model.CloneList(items)}
	_, err := c.roundTrip(ctx, req, nil)
	return err
}

// Unsubscribe closes every subscription on exactly path and releases them on
// the server. Unknown paths are a no-op.
func (c *Client) Unsubscribe(path string) {
	c.mu.Lock()
	var ids []string
	for id, sub := range c.subs {
		if sub.Path() == path {
			ids = append(ids, id)
			delete(c.subs, id)
		}
	}
	closed := c.closed
	c.mu.Unlock()

	c.hub.Unsubscribe(path)
	if closed {
		return
	}
	for _, id := range ids {
		c.release(id)
	}
}

// Err reports why the connection ended, if it has.
func (c *Client) Err() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.err
}

// Done is closed when the connection ends.
func (c *Client) Done() <-chan struct{} { return c.done }

func (c *Client) Close() error {
	c.writeMu.Lock()
	_ = c.conn.SetWriteDeadline(time.Now().Add(writeDeadline))
	_ = c.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	c.writeMu.Unlock()

	_ = c.conn.Close()
	<-c.done
	return nil
}

func (c *Client) roundTrip(ctx context.Context, req remote.Request, sub *remote.Sub) (remote.Frame, error) {
	cl := &call{reply: make(chan remote.Frame, 1), sub: sub}
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return remote.Frame{}, remote.ErrClosed
	}
	c.pending[req.ID] = cl
	c.mu.Unlock()

	defer func() {
		c.mu.Lock()
		delete(c.pending, req.ID)
		c.mu.Unlock()
	}()

	if err := c.write(req); err != nil {
		return remote.Frame{}, err
	}

	select {
	case f := <-cl.reply:
		if f.Type == remote.FrameError {
			return f, &ServerError{Op: req.Op, Path: req.Path, Message: f.Error}
		}
		return f, nil
	case <-c.done:
		return remote.Frame{}, fmt.Errorf("%w: %v", remote.ErrClosed, c.Err())
	case <-ctx.Done():
		if sub != nil {
			c.abandon(req.ID, sub)
		}
		return remote.Frame{}, ctx.Err()
	}
}

// abandon gives up on a subscribe call. A server subscription that was already
// acked is released now; one acked later is released when its ack is read.
func (c *Client) abandon(reqID string, sub *remote.Sub) {
	c.mu.Lock()
	delete(c.pending, reqID)
	var subID string
	for id, s := range c.subs {
		if s == sub {
			subID = id
			delete(c.subs, id)
			break
		}
	}
	if subID == "" && !c.closed {
		c.abandoned[reqID] = struct{}{}
	}
	closed := c.closed
	c.mu.Unlock()

	if subID != "" && !closed {
		c.release(subID)
	}
}

// release tells the server to drop a subscription. The ack is not awaited.
func (c *Client) release(subID string) {
	if err := c.write(remote.Request{Op: remote.OpUnsubscribe, ID: uuid.NewString(), Sub: subID}); err != nil {
		c.logger.Debug("unsubscribe not sent", "sub", subID, "error", err)
	}
}

func (c *Client) write(req remote.Request) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	_ = c.conn.SetWriteDeadline(time.Now().Add(writeDeadline))
	if err := c.conn.WriteJSON(req); err != nil {
		return fmt.Errorf("send %s: %w", req.Op, err)
	}
	return nil
}

// readLoop handles frames strictly in order: a subscribe ack registers its
// subscription before the value frames that follow it are read.
func (c *Client) readLoop() {
	var err error
	defer func() {
		c.mu.Lock()
		c.closed = true
		c.err = err
		c.subs = make(map[string]*remote.Sub)
		c.mu.Unlock()
		c.hub.Close()
		close(c.done)
	}()

	for {
		var f remote.Frame
		if err = c.conn.ReadJSON(&f); err != nil {
			if websocket.IsCloseError(err, websocket.CloseNormalClosure) || errors.Is(err, websocket.ErrCloseSent) {
				err = nil
			} else {
				c.logger.Debug("connection ended", "error", err)
			}
			return
		}
		c.handle(f)
	}
}

func (c *Client) handle(f remote.Frame) {
	c.mu.Lock()
	defer c.mu.Unlock()

	switch f.Type {
	case remote.FrameValue:
		if sub, ok := c.subs[f.Sub]; ok {
			sub.Deliver(f.Items)
		}
	case remote.FrameAck, remote.FrameError:
		cl, ok := c.pending[f.ID]
		if !ok {
			if _, gone := c.abandoned[f.ID]; gone {
				delete(c.abandoned, f.ID)
				if f.Type == remote.FrameAck && f.Sub != "" {
					// Not under c.mu: a blocked write would stall the read loop.
					go c.release(f.Sub)
				}
			}
			return
		}
		if f.Type == remote.FrameAck && cl.sub != nil && f.Sub != "" {
			c.subs[f.Sub] = cl.sub
		}
		cl.reply <- f
	default:
		c.logger.Debug("ignoring frame", "type", f.Type)
	}
}

type subscription struct {
	client *Client
	id     string
	sub    *remote.Sub
	once   sync.Once
}

func (s *subscription) Path() string { return s.sub.Path() }

func (s *subscription) Close() error {
	s.once.Do(func() {
		c := s.client
		c.mu.Lock()
		_, live := c.subs[s.id]
		delete(c.subs, s.id)
		closed := c.closed
		c.mu.Unlock()
		_ = s.sub.Close()
		// Unsubscribe(path) may already have released it. A late value frame
		// for s.id is dropped by handle.
		if live && !closed {
			c.release(s.id)
		}
	})
	return nil
}
