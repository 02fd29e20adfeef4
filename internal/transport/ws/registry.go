package ws

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/parley-chat/server/internal/metrics"
)

// Registry owns all room hubs: one per room id, constructed and hydrated on
// first access, evicted after sitting idle with no connections. There is no
// hub state outside the registry.
type Registry struct {
	mu    sync.Mutex
	hubs  map[string]*Hub
	store Store
	idle  time.Duration
}

func NewRegistry(store Store, idle time.Duration) *Registry {
	if idle <= 0 {
		idle = 10 * time.Minute
	}
	return &Registry{
		hubs:  make(map[string]*Hub),
		store: store,
		idle:  idle,
	}
}

// Join attaches the connection to the room's hub, creating and hydrating
// the hub first if needed. A retry covers the window where a hub is evicted
// between lookup and join.
func (r *Registry) Join(ctx context.Context, roomID string, c *conn) (*Hub, error) {
	for range 3 {
		h, err := r.get(ctx, roomID)
		if err != nil {
			return nil, err
		}
		if err := h.join(c); err == nil {
			return h, nil
		}
	}
	return nil, errHubClosed
}

func (r *Registry) get(ctx context.Context, roomID string) (*Hub, error) {
	r.mu.Lock()
	if h, ok := r.hubs[roomID]; ok {
		r.mu.Unlock()
		return h, nil
	}
	r.mu.Unlock()

	// hydrate outside the lock so a slow load does not stall other rooms
	messages, err := r.store.RoomMessages(ctx, roomID)
	if err != nil {
		return nil, fmt.Errorf("load room messages: %w", err)
	}
	directs, err := r.store.DirectMessages(ctx, roomID)
	if err != nil {
		return nil, fmt.Errorf("load direct messages: %w", err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	// another goroutine may have won the race while we were loading
	if h, ok := r.hubs[roomID]; ok {
		return h, nil
	}

	h := newHub(roomID, r.store, r.idle, r.remove)
	h.seed(messages, directs)
	r.hubs[roomID] = h
	metrics.RoomsActive.Inc()
	go h.run()

	return h, nil
}

// remove is called by a hub from its own loop right before it exits.
func (r *Registry) remove(h *Hub) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if cur, ok := r.hubs[h.roomID]; ok && cur == h {
		delete(r.hubs, h.roomID)
		metrics.RoomsActive.Dec()
	}
}

// Shutdown stops every hub and waits for their loops to finish or the
// context to expire.
func (r *Registry) Shutdown(ctx context.Context) error {
	r.mu.Lock()
	hubs := make([]*Hub, 0, len(r.hubs))
	for _, h := range r.hubs {
		hubs = append(hubs, h)
	}
	r.mu.Unlock()

	for _, h := range hubs {
		h.stop()
	}
	for _, h := range hubs {
		select {
		case <-h.done:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return nil
}
