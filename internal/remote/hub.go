package remote

import (
	"log/slog"
	"sort"
	"sync"

	"tasklist-cli/internal/model"
)

// Hub fans values out to in-process subscribers. Each subscription owns a
// delivery goroutine so listeners run in order and never under a backend lock.
// Undelivered values are coalesced: a slow listener sees the latest value, not
// every intermediate one.
type Hub struct {
	logger *slog.Logger

	mu     sync.Mutex
	subs   map[string]map[*Sub]struct{}
	closed bool
}

func NewHub(logger *slog.Logger) *Hub {
	if logger == nil {
		logger = slog.Default()
	}
	return &Hub{
		logger: logger,
		subs:   make(map[string]map[*Sub]struct{}),
	}
}

// Add registers fn on path. Nothing is delivered until Deliver or Publish.
func (h *Hub) Add(path string, fn Listener) (*Sub, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return nil, ErrClosed
	}
	s := &Sub{
		hub:  h,
		path: path,
		fn:   fn,
		wake: make(chan struct{}, 1),
		stop: make(chan struct{}),
		done: make(chan struct{}),
	}
	set, ok := h.subs[path]
	if !ok {
		set = make(map[*Sub]struct{})
		h.subs[path] = set
	}
	set[s] = struct{}{}
	go s.run()
	h.logger.Debug("subscription added", "path", path, "subscribers", len(set))
	return s, nil
}

// Publish offers items to every subscriber of path.
func (h *Hub) Publish(path string, items []string) {
	h.mu.Lock()
	subs := make([]*Sub, 0, len(h.subs[path]))
	for s := range h.subs[path] {
		subs = append(subs, s)
	}
	h.mu.Unlock()

	for _, s := range subs {
		s.Deliver(items)
	}
}

// Unsubscribe closes every subscription on exactly path. Unknown paths are a no-op.
func (h *Hub) Unsubscribe(path string) {
	h.mu.Lock()
	subs := h.subs[path]
	delete(h.subs, path)
	h.mu.Unlock()

	for s := range subs {
		s.shutdown()
	}
}

// Paths lists paths with at least one live subscription, sorted.
func (h *Hub) Paths() []string {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]string, 0, len(h.subs))
	for p := range h.subs {
		out = append(out, p)
	}
	sort.Strings(out)
	return out
}

// Subscribed reports whether path has at least one live subscription.
func (h *Hub) Subscribed(path string) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs[path]) > 0
}

// Count returns the number of live subscriptions across all paths.
func (h *Hub) Count() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	n := 0
	for _, set := range h.subs {
		n += len(set)
	}
	return n
}

// Close shuts every subscription down and rejects new ones.
func (h *Hub) Close() {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return
	}
	h.closed = true
	all := h.subs
	h.subs = make(map[string]map[*Sub]struct{})
	h.mu.Unlock()

	for _, set := range all {
		for s := range set {
			s.shutdown()
		}
	}
}

func (h *Hub) remove(s *Sub) {
	h.mu.Lock()
	defer h.mu.Unlock()
	set := h.subs[s.path]
	delete(set, s)
	if len(set) == 0 {
		delete(h.subs, s.path)
	}
}

// Sub is a hub subscription. It satisfies Subscription.
type Sub struct {
	hub  *Hub
	path string
	fn   Listener

	mu      sync.Mutex
	pending []string
	has     bool
	closed  bool

	wake chan struct{}
	stop chan struct{}
	done chan struct{}
}

func (s *Sub) Path() string { return s.path }

// Deliver queues items for the listener, replacing any value not yet delivered.
func (s *Sub) Deliver(items []string) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.pending = model.CloneList(items)
	s.has = true
	s.mu.Unlock()

	select {
	case s.wake <- struct{}{}:
	default:
	}
}

func (s *Sub) Close() error {
	s.hub.remove(s)
	s.shutdown()
	return nil
}

// Done is closed once the delivery goroutine has exited.
func (s *Sub) Done() <-chan struct{} { return s.done }

func (s *Sub) shutdown() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.closed = true
	s.pending = nil
	s.has = false
	close(s.stop)
}

func (s *Sub) run() {
	defer close(s.done)
	for {
		select {
		case <-s.stop:
			return
		case <-s.wake:
		}

		s.mu.Lock()
		if s.closed {
			s.mu.Unlock()
			return
		}
		items, has := s.pending, s.has
		s.pending, s.has = nil, false
		s.mu.Unlock()

		if has {
			s.fn(items)
		}
	}
}
