// Package redis is a networked remote.Store: each list is a Redis key and
// every write is announced on a Pub/Sub channel, so any number of clients on
// any machine observe the same lists.
package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"tasklist-cli/internal/model"
	"tasklist-cli/internal/remote"
	"tasklist-cli/internal/retry"
)

const DefaultPrefix = "tasklist:"

// setScript bumps the list version, stores the envelope and announces it in one
// atomic step, so a subscriber never sees a publish whose value is not yet stored.
// KEYS: [1]=value key, [2]=version key. ARGV: [1]=items json, [2]=channel.
var setScript = goredis.NewScript(`
local v = redis.call('INCR', KEYS[2])
local payload = '{"v":' .. v .. ',"items":' .. ARGV[1] .. '}'
redis.call('SET', KEYS[1], payload)
redis.call('PUBLISH', ARGV[2], payload)
return v
`)

type envelope struct {
	V     int64    `json:"v"`
	Items []string `json:"items"`
}

type Options struct {
	URL    string
	Prefix string
	Logger *slog.Logger
	Retry  retry.Policy
}

type Store struct {
	rdb    *goredis.Client
	prefix string
	hub    *remote.Hub
	logger *slog.Logger

	mu     sync.Mutex
	subs   map[*subscription]struct{}
	closed bool
}

// Open parses the URL (e.g. "redis://localhost:6379/0") and pings the server,
// retrying while it comes up.
func Open(ctx context.Context, opts Options) (*Store, error) {
	ro, err := goredis.ParseURL(opts.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse redis URL: %w", err)
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Prefix == "" {
		opts.Prefix = DefaultPrefix
	}
	if opts.Retry.MaxAttempts == 0 {
		opts.Retry = retry.DefaultPolicy
	}
	logger := opts.Logger.With("store", "redis", "addr", ro.Addr)
	rdb := goredis.NewClient(ro)

	p := opts.Retry
	p.OnRetry = func(attempt int, err error, backoff time.Duration) {
		logger.Warn("redis not reachable, retrying", "attempt", attempt, "error", err, "backoff", backoff)
	}
	if err := retry.DoVoid(ctx, p, nil, func() error { return rdb.Ping(ctx).Err() }); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return New(rdb, opts.Prefix, logger), nil
}

// New wraps an existing client. The store closes rdb on Close.
func New(rdb *goredis.Client, prefix string, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{
		rdb:    rdb,
		prefix: prefix,
		hub:    remote.NewHub(logger),
		logger: logger,
		subs:   make(map[*subscription]struct{}),
	}
}

func (s *Store) valueKey(path string) string   { return s.prefix + "list:" + path }
func (s *Store) versionKey(path string) string { return s.prefix + "version:" + path }
func (s *Store) channel(path string) string    { return s.prefix + "changes:" + path }

func (s *Store) Set(ctx context.Context, path string, items []string) error {
	if err := remote.ValidatePath(path); err != nil {
		return err
	}
	if s.isClosed() {
		return remote.ErrClosed
	}
	raw, err := json.Marshal(model.CloneList(items))
	if err != nil {
		return err
	}
	keys := []string{s.valueKey(path), s.versionKey(path)}
	if err := setScript.Run(ctx, s.rdb, keys, string(raw), s.channel(path)).Err(); err != nil {
		return fmt.Errorf("redis: set %s: %w", path, err)
	}
	return nil
}

// Get reads the stored value without subscribing.
func (s *Store) Get(ctx context.Context, path string) ([]string, error) {
	env, err := s.load(ctx, path)
	return env.Items, err
}

func (s *Store) load(ctx context.Context, path string) (envelope, error) {
	raw, err := s.rdb.Get(ctx, s.valueKey(path)).Result()
	if errors.Is(err, goredis.Nil) {
		return envelope{Items: []string{}}, nil
	}
	if err != nil {
		return envelope{}, fmt.Errorf("redis: get %s: %w", path, err)
	}
	return decode(raw)
}

func decode(raw string) (envelope, error) {
	var env envelope
	if err := json.Unmarshal([]byte(raw), &env); err != nil {
		return envelope{}, fmt.Errorf("redis: decode: %w", err)
	}
	env.Items = model.CloneList(env.Items)
	return env, nil
}

// Subscribe confirms the channel subscription before reading the current value,
// so no write between the two is missed. Envelope versions drop anything older
// than what the listener already has.
func (s *Store) Subscribe(ctx context.Context, path string, fn remote.Listener) (remote.Subscription, error) {
	if err := remote.ValidatePath(path); err != nil {
		return nil, err
	}
	if s.isClosed() {
		return nil, remote.ErrClosed
	}

	ps := s.rdb.Subscribe(ctx, s.channel(path))
	if _, err := ps.Receive(ctx); err != nil {
		_ = ps.Close()
		return nil, fmt.Errorf("redis: subscribe %s: %w", path, err)
	}
	current, err := s.load(ctx, path)
	if err != nil {
		_ = ps.Close()
		return nil, err
	}
	hs, err := s.hub.Add(path, fn)
	if err != nil {
		_ = ps.Close()
		return nil, err
	}

	sub := &subscription{store: s, sub: hs, ps: ps, done: make(chan struct{})}
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		_ = ps.Close()
		_ = hs.Close()
		return nil, remote.ErrClosed
	}
	s.subs[sub] = struct{}{}
	s.mu.Unlock()

	hs.Deliver(current.Items)
	go sub.forward(current.V)
	return sub, nil
}

// Unsubscribe drops every subscription on path.
func (s *Store) Unsubscribe(path string) {
	s.mu.Lock()
	var matched []*subscription
	for sub := range s.subs {
		if sub.Path() == path {
			matched = append(matched, sub)
		}
	}
	s.mu.Unlock()
	for _, sub := range matched {
		_ = sub.Close()
	}
}

func (s *Store) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	subs := s.subs
	s.subs = make(map[*subscription]struct{})
	s.mu.Unlock()

	for sub := range subs {
		sub.stop()
	}
	s.hub.Close()
	return s.rdb.Close()
}

func (s *Store) isClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

type subscription struct {
	store *Store
	sub   *remote.Sub
	ps    *goredis.PubSub

	once sync.Once
	done chan struct{}
}

func (c *subscription) Path() string { return c.sub.Path() }

func (c *subscription) Close() error {
	c.store.mu.Lock()
	delete(c.store.subs, c)
	c.store.mu.Unlock()
	c.stop()
	return nil
}

func (c *subscription) stop() {
	c.once.Do(func() {
		_ = c.ps.Close()
		_ = c.sub.Close()
		<-c.done
	})
}

func (c *subscription) forward(last int64) {
	defer close(c.done)
	for msg := range c.ps.Channel() {
		env, err := decode(msg.Payload)
		if err != nil {
			c.store.logger.Warn("dropping malformed change", "list", c.Path(), "error", err)
			continue
		}
		if env.V <= last {
			continue
		}
		last = env.V
		c.sub.Deliver(env.Items)
	}
}
