package ws

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/parley-chat/server/internal/domain"
	"github.com/parley-chat/server/internal/metrics"
)

// Store is the persistence boundary of a hub. Writes happen after the
// in-memory state and the broadcast, as a best-effort durability backstop.
type Store interface {
	RoomMessages(ctx context.Context, roomID string) ([]domain.RoomMessage, error)
	UpsertRoomMessage(ctx context.Context, roomID string, m domain.RoomMessage) error
	DirectMessages(ctx context.Context, roomID string) ([]domain.DirectMessage, error)
	InsertDirectMessage(ctx context.Context, roomID string, m domain.DirectMessage) (inserted bool, err error)
}

var errHubClosed = errors.New("hub closed")

const persistTimeout = 5 * time.Second

type frame struct {
	c   *conn
	raw []byte
}

// Hub owns the live state of one room: chat history, direct-message
// history, connections and presence. A single goroutine (run) processes
// joins, leaves and inbound frames in arrival order, so the collections are
// never mutated concurrently. Rooms are independent of each other.
type Hub struct {
	roomID string
	store  Store
	idle   time.Duration
	onIdle func(*Hub)

	joins    chan *conn
	leaves   chan *conn
	frames   chan frame
	persists chan func(context.Context) error
	stopCh   chan struct{}
	done     chan struct{}

	// owned by run; never touched from outside the loop
	conns    map[*conn]struct{}
	users    map[*conn]string // connection attribution
	online   map[string]int   // user id -> live attributed connections
	messages []domain.RoomMessage
	byID     map[string]int // message id -> index in messages
	directs  []domain.DirectMessage
}

func newHub(roomID string, store Store, idle time.Duration, onIdle func(*Hub)) *Hub {
	return &Hub{
		roomID: roomID,
		store:  store,
		idle:   idle,
		onIdle: onIdle,
		joins:    make(chan *conn),
		leaves:   make(chan *conn),
		frames:   make(chan frame, 64),
		persists: make(chan func(context.Context) error, 256),
		stopCh:   make(chan struct{}),
		done:     make(chan struct{}),
		conns:  make(map[*conn]struct{}),
		users:  make(map[*conn]string),
		online: make(map[string]int),
		byID:   make(map[string]int),
	}
}

// seed installs hydrated history before the loop starts.
func (h *Hub) seed(messages []domain.RoomMessage, directs []domain.DirectMessage) {
	h.messages = messages
	h.directs = directs
	for i, m := range messages {
		h.byID[m.ID] = i
	}
}

func (h *Hub) RoomID() string { return h.roomID }

// join hands a connection to the loop. It fails once the hub has been
// evicted; the registry then builds a fresh hub.
func (h *Hub) join(c *conn) error {
	select {
	case h.joins <- c:
		return nil
	case <-h.done:
		return errHubClosed
	}
}

func (h *Hub) leave(c *conn) {
	select {
	case h.leaves <- c:
	case <-h.done:
	}
}

func (h *Hub) inbound(c *conn, raw []byte) {
	select {
	case h.frames <- frame{c: c, raw: raw}:
	case <-h.done:
	}
}

func (h *Hub) stop() {
	select {
	case <-h.stopCh:
	default:
		close(h.stopCh)
	}
}

func (h *Hub) run() {
	go h.persistWorker()
	// the loop is the only sender; closing here lets the worker drain and exit
	defer close(h.persists)

	idleTimer := time.NewTimer(h.idle)
	defer idleTimer.Stop()

	for {
		select {
		case c := <-h.joins:
			h.handleJoin(c)

		case c := <-h.leaves:
			h.handleLeave(c)

		case f := <-h.frames:
			h.handleFrame(f)

		case <-idleTimer.C:
			if len(h.conns) > 0 {
				idleTimer.Reset(h.idle)
				continue
			}
			if h.onIdle != nil {
				h.onIdle(h)
			}
			close(h.done)
			slog.Debug("hub evicted", "room", h.roomID)
			return

		case <-h.stopCh:
			for c := range h.conns {
				h.dropConn(c)
			}
			if h.onIdle != nil {
				h.onIdle(h)
			}
			close(h.done)
			return
		}
	}
}

// handleJoin registers the connection and pushes the full-state snapshot:
// chat history, direct-message history, then one online event per present
// user. A late joiner reconstructs the same state a live client holds.
func (h *Hub) handleJoin(c *conn) {
	h.conns[c] = struct{}{}

	c.sendJSON(AllSnapshot{Type: TypeAll, Messages: h.messages})
	c.sendJSON(DirectAllSnapshot{Type: TypeDirectAll, Messages: h.directs})
	for uid := range h.online {
		c.sendJSON(PresenceEvent{Type: TypePresence, UserID: uid, IsOnline: true})
	}
}

func (h *Hub) handleLeave(c *conn) {
	if _, ok := h.conns[c]; !ok {
		return
	}
	h.dropConn(c)
}

// dropConn removes the connection, updates presence accounting and, when
// the last attributed connection of a user is gone, broadcasts a single
// offline event.
func (h *Hub) dropConn(c *conn) {
	delete(h.conns, c)

	uid, attributed := h.users[c]
	delete(h.users, c)
	c.shutdown()

	if !attributed {
		return
	}
	h.online[uid]--
	if h.online[uid] > 0 {
		return
	}
	delete(h.online, uid)
	h.broadcastJSON(PresenceEvent{Type: TypePresence, UserID: uid, IsOnline: false}, nil)
}

func (h *Hub) handleFrame(f frame) {
	ev, err := DecodeEvent(f.raw)
	if err != nil {
		reason := "malformed"
		if errors.Is(err, errUnknownType) {
			reason = "unknown_type"
		}
		metrics.WSDroppedEvents.WithLabelValues(reason).Inc()
		slog.Debug("event dropped", "room", h.roomID, "reason", reason)
		return
	}
	metrics.WSEventsTotal.WithLabelValues(ev.Type).Inc()

	// every accepted event is forwarded verbatim to the rest of the room
	// first; state reconciliation follows for the stateful kinds
	h.broadcast(f.raw, f.c)

	switch ev.Type {
	case TypeAdd, TypeUpdate:
		h.applyMessage(*ev.Message)
	case TypeDirectAdd:
		h.applyDirect(*ev.Direct)
	case TypePresence:
		// offline claims are not trusted; offline derives from disconnect
		if ev.Presence.IsOnline {
			h.attribute(f.c, ev.Presence.UserID)
		}
	case TypeTyping, TypeSignal, TypeRoomInvite:
		// relay-only: no state, no persistence, payload stays opaque
	}
}

// applyMessage upserts by id: replace in place keeping the original
// position, or append when the id is new. Replaying the same add twice
// leaves one record.
func (h *Hub) applyMessage(e MessageEvent) {
	m := domain.RoomMessage{ID: e.ID, Content: e.Content, AuthorLabel: e.AuthorLabel, Role: e.Role}

	if i, ok := h.byID[m.ID]; ok {
		h.messages[i] = m
	} else {
		h.byID[m.ID] = len(h.messages)
		h.messages = append(h.messages, m)
	}

	h.persist(func(ctx context.Context) error {
		return h.store.UpsertRoomMessage(ctx, h.roomID, m)
	})
}

// applyDirect appends unconditionally; direct-message history has no update
// path. A duplicate id is a client contract violation: the store keeps the
// first write and we log it.
func (h *Hub) applyDirect(e DirectAddEvent) {
	m := e.Message()
	h.directs = append(h.directs, m)

	h.persist(func(ctx context.Context) error {
		inserted, err := h.store.InsertDirectMessage(ctx, h.roomID, m)
		if err != nil {
			return err
		}
		if !inserted {
			slog.Warn("duplicate direct message id", "room", h.roomID, "id", m.ID)
		}
		return nil
	})
}

// attribute binds the connection to the claimed user id. The first presence
// event wins; later claims on the same connection are ignored.
func (h *Hub) attribute(c *conn, userID string) {
	if _, ok := h.users[c]; ok {
		return
	}
	if _, ok := h.conns[c]; !ok {
		return
	}
	h.users[c] = userID
	h.online[userID]++
}

// persist hands a store write to the hub's persist worker. In-memory state
// and the broadcast are already done; a failed write costs durability only.
// Only the run loop calls this, so the channel send keeps arrival order.
func (h *Hub) persist(fn func(ctx context.Context) error) {
	h.persists <- fn
}

// persistWorker applies store writes one at a time in the order the loop
// enqueued them; two writes to the same id can never land reversed. It
// drains whatever is still queued after the hub shuts down.
func (h *Hub) persistWorker() {
	for fn := range h.persists {
		ctx, cancel := context.WithTimeout(context.Background(), persistTimeout)
		if err := fn(ctx); err != nil {
			metrics.StoreWriteFailures.Inc()
			slog.Error("hub persist failed", "room", h.roomID, "err", err)
		}
		cancel()
	}
}

// broadcast sends raw bytes to every connection except the sender.
// Connections whose send buffer is full are dropped.
func (h *Hub) broadcast(raw []byte, except *conn) {
	var stalled []*conn
	for c := range h.conns {
		if c == except {
			continue
		}
		if !c.trySend(raw) {
			stalled = append(stalled, c)
		}
	}
	metrics.WSBroadcastsTotal.Inc()

	for _, c := range stalled {
		slog.Warn("dropping slow connection", "room", h.roomID)
		h.dropConn(c)
	}
}

func (h *Hub) broadcastJSON(v any, except *conn) {
	raw, err := marshalEvent(v)
	if err != nil {
		slog.Error("marshal broadcast failed", "room", h.roomID, "err", err)
		return
	}
	h.broadcast(raw, except)
}
