package hub

import (
	"errors"
	"sync"

	"go.uber.org/zap"

	"github.com/DoyleJ11/labcards/internal/engine"
)

// ErrSlowSubscriber is logged when a subscriber's outbox is full at publish time.
var ErrSlowSubscriber = errors.New("subscriber outbox full")

const DefaultOutboxSize = 16

// Subscriber is one participant's delivery queue. The Hub closes Events
// when the subscriber is unregistered or dropped.
type Subscriber struct {
	ID     string
	outbox chan engine.Event
	once   sync.Once
}

func (s *Subscriber) Events() <-chan engine.Event { return s.outbox }

func (s *Subscriber) close() { s.once.Do(func() { close(s.outbox) }) }

type Hub struct {
	mu      sync.Mutex
	subs    map[string]*Subscriber
	bufSize int
	closed  bool
	log     *zap.Logger
}

func NewHub(log *zap.Logger, bufSize int) *Hub {
	if bufSize <= 0 {
		bufSize = DefaultOutboxSize
	}
	return &Hub{
		subs:    make(map[string]*Subscriber),
		bufSize: bufSize,
		log:     log,
	}
}

// Register adds a subscriber whose first queued event is snap. The caller is
// responsible for making snap consistent with what it publishes next.
// Registering an id that is already present replaces (and closes) the old one.
func (h *Hub) Register(id string, snap engine.Snapshot) *Subscriber {
	sub := &Subscriber{ID: id, outbox: make(chan engine.Event, h.bufSize)}
	sub.outbox <- engine.Event{Type: engine.EvtSnapshot, Version: snap.Version, Snapshot: &snap}

	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		sub.close()
		return sub
	}
	if old, ok := h.subs[id]; ok {
		old.close()
	}
	h.subs[id] = sub
	h.log.Debug("subscriber registered", zap.String("client_id", id), zap.Int("subscribers", len(h.subs)))
	return sub
}

// Unregister is a no-op for unknown ids, so it can race with the drop path.
func (h *Hub) Unregister(id string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if sub, ok := h.subs[id]; ok {
		sub.close()
		delete(h.subs, id)
		h.log.Debug("subscriber unregistered", zap.String("client_id", id), zap.Int("subscribers", len(h.subs)))
	}
}

// Publish queues evt on every subscriber without blocking. Subscribers whose
// outbox is full are dropped.
func (h *Hub) Publish(evt engine.Event) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for id, sub := range h.subs {
		select {
		case sub.outbox <- evt:
			//ok
		default:
			h.log.Warn("dropping subscriber",
				zap.String("client_id", id),
				zap.Int("version", evt.Version),
				zap.Error(ErrSlowSubscriber),
			)
			sub.close()
			delete(h.subs, id)
		}
	}
}

func (h *Hub) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs)
}

// Close closes every outbox. Later registrations get an already closed subscriber.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for id, sub := range h.subs {
		sub.close()
		delete(h.subs, id)
	}
	h.closed = true
}
