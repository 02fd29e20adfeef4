package ws

import (
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const sendBuffer = 64

// conn wraps one websocket connection. Outbound traffic goes through the
// buffered send channel so the hub loop never blocks on a slow peer.
type conn struct {
	ws     *websocket.Conn
	send   chan []byte
	closed chan struct{}
	once   sync.Once
}

func newConn(ws *websocket.Conn) *conn {
	return &conn{
		ws:     ws,
		send:   make(chan []byte, sendBuffer),
		closed: make(chan struct{}),
	}
}

// trySend enqueues without blocking; false means the buffer is full or the
// connection is closing and the hub should drop it.
func (c *conn) trySend(raw []byte) bool {
	select {
	case <-c.closed:
		return false
	default:
	}
	select {
	case c.send <- raw:
		return true
	default:
		return false
	}
}

func (c *conn) sendJSON(v any) {
	raw, err := marshalEvent(v)
	if err != nil {
		slog.Error("marshal event failed", "err", err)
		return
	}
	c.trySend(raw)
}

func (c *conn) shutdown() {
	c.once.Do(func() {
		close(c.closed)
		if c.ws != nil {
			_ = c.ws.Close()
		}
	})
}

func marshalEvent(v any) ([]byte, error) {
	return json.Marshal(v)
}

// readPump forwards inbound frames to the hub until the connection drops,
// then notifies the hub so presence accounting stays accurate.
func (c *conn) readPump(h *Hub, pingEvery time.Duration) {
	defer h.leave(c)

	c.ws.SetReadLimit(1 << 20)
	_ = c.ws.SetReadDeadline(time.Now().Add(2 * pingEvery))
	c.ws.SetPongHandler(func(string) error {
		return c.ws.SetReadDeadline(time.Now().Add(2 * pingEvery))
	})

	for {
		_, data, err := c.ws.ReadMessage()
		if err != nil {
			return
		}
		h.inbound(c, data)
	}
}

// writePump drains the send channel and keeps the connection alive with
// pings.
func (c *conn) writePump(pingEvery time.Duration) {
	ticker := time.NewTicker(pingEvery)
	defer ticker.Stop()
	defer c.shutdown()

	for {
		select {
		case raw, ok := <-c.send:
			if !ok {
				_ = c.ws.WriteControl(websocket.CloseMessage, nil, time.Now().Add(time.Second))
				return
			}
			_ = c.ws.SetWriteDeadline(time.Now().Add(5 * time.Second))
			if err := c.ws.WriteMessage(websocket.TextMessage, raw); err != nil {
				return
			}
		case <-ticker.C:
			if err := c.ws.WriteControl(websocket.PingMessage, nil, time.Now().Add(5*time.Second)); err != nil {
				return
			}
		case <-c.closed:
			return
		}
	}
}
