package ws

import (
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"github.com/parley-chat/server/internal/domain"
)

func startHub(t *testing.T, store Store) *Hub {
	t.Helper()
	h := newHub("room-1", store, time.Hour, nil)
	go h.run()
	t.Cleanup(func() {
		h.stop()
		<-h.done
	})
	return h
}

func joinConn(t *testing.T, h *Hub) *conn {
	t.Helper()
	c := newConn(nil)
	if err := h.join(c); err != nil {
		t.Fatalf("join: %v", err)
	}
	return c
}

func recvFrame(t *testing.T, c *conn) []byte {
	t.Helper()
	select {
	case raw := <-c.send:
		return raw
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for frame")
		return nil
	}
}

func recvTyped[T any](t *testing.T, c *conn, wantType string) T {
	t.Helper()
	raw := recvFrame(t, c)
	var head struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(raw, &head); err != nil {
		t.Fatalf("unmarshal frame: %v", err)
	}
	if head.Type != wantType {
		t.Fatalf("frame type = %q, want %q (frame %s)", head.Type, wantType, raw)
	}
	var v T
	if err := json.Unmarshal(raw, &v); err != nil {
		t.Fatalf("unmarshal %q payload: %v", wantType, err)
	}
	return v
}

// readSnapshot consumes the three-part snapshot a fresh connection gets.
func readSnapshot(t *testing.T, c *conn, wantOnline int) (AllSnapshot, DirectAllSnapshot, []PresenceEvent) {
	t.Helper()
	all := recvTyped[AllSnapshot](t, c, TypeAll)
	directs := recvTyped[DirectAllSnapshot](t, c, TypeDirectAll)
	var online []PresenceEvent
	for range wantOnline {
		online = append(online, recvTyped[PresenceEvent](t, c, TypePresence))
	}
	return all, directs, online
}

func expectNoFrame(t *testing.T, c *conn, d time.Duration) {
	t.Helper()
	select {
	case raw := <-c.send:
		t.Fatalf("unexpected frame: %s", raw)
	case <-time.After(d):
	}
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition never met")
}

func addFrame(id, content string) []byte {
	return fmt.Appendf(nil, `{"type":"add","id":%q,"content":%q,"authorLabel":"a","role":"user"}`, id, content)
}

func updateFrame(id, content string) []byte {
	return fmt.Appendf(nil, `{"type":"update","id":%q,"content":%q,"authorLabel":"a","role":"user"}`, id, content)
}

func presenceFrame(userID string) []byte {
	return fmt.Appendf(nil, `{"type":"presence","userId":%q,"isOnline":true}`, userID)
}

func TestHub_BroadcastExcludesSender(t *testing.T) {
	h := startHub(t, newFakeStore())
	a := joinConn(t, h)
	b := joinConn(t, h)
	readSnapshot(t, a, 0)
	readSnapshot(t, b, 0)

	frame := addFrame("m1", "hi")
	h.inbound(a, frame)

	if got := recvFrame(t, b); string(got) != string(frame) {
		t.Fatalf("b received %s, want %s", got, frame)
	}
	expectNoFrame(t, a, 50*time.Millisecond)
}

func TestHub_IdempotentAdd(t *testing.T) {
	store := newFakeStore()
	h := startHub(t, store)
	a := joinConn(t, h)
	readSnapshot(t, a, 0)

	h.inbound(a, addFrame("m1", "hello"))
	h.inbound(a, addFrame("m1", "hello"))

	waitFor(t, func() bool { return len(store.storedMessages("room-1")) == 1 })

	late := joinConn(t, h)
	all, _, _ := readSnapshot(t, late, 0)
	if len(all.Messages) != 1 {
		t.Fatalf("history = %+v, want exactly one message", all.Messages)
	}
	if all.Messages[0].Content != "hello" {
		t.Fatalf("content = %q", all.Messages[0].Content)
	}
}

func TestHub_UpdatePreservesOrder(t *testing.T) {
	store := newFakeStore()
	h := startHub(t, store)
	a := joinConn(t, h)
	readSnapshot(t, a, 0)

	h.inbound(a, addFrame("A", "1"))
	h.inbound(a, addFrame("B", "2"))
	h.inbound(a, addFrame("C", "3"))
	h.inbound(a, updateFrame("B", "2-edited"))

	// the edit reached the store, so all four frames have been applied
	waitFor(t, func() bool {
		for _, m := range store.storedMessages("room-1") {
			if m.ID == "B" && m.Content == "2-edited" {
				return true
			}
		}
		return false
	})

	late := joinConn(t, h)
	all, _, _ := readSnapshot(t, late, 0)

	wantIDs := []string{"A", "B", "C"}
	if len(all.Messages) != len(wantIDs) {
		t.Fatalf("history = %+v", all.Messages)
	}
	for i, id := range wantIDs {
		if all.Messages[i].ID != id {
			t.Fatalf("position %d = %q, want %q", i, all.Messages[i].ID, id)
		}
	}
	if all.Messages[1].Content != "2-edited" {
		t.Fatalf("B content = %q", all.Messages[1].Content)
	}
}

func TestHub_PresenceMultipleConnections(t *testing.T) {
	h := startHub(t, newFakeStore())
	observer := joinConn(t, h)
	readSnapshot(t, observer, 0)

	c1 := joinConn(t, h)
	readSnapshot(t, c1, 0)
	c2 := joinConn(t, h)
	readSnapshot(t, c2, 0)

	h.inbound(c1, presenceFrame("u1"))
	recvTyped[PresenceEvent](t, observer, TypePresence) // verbatim rebroadcast
	h.inbound(c2, presenceFrame("u1"))
	recvTyped[PresenceEvent](t, observer, TypePresence)

	// first connection closing must not produce an offline event
	h.leave(c1)
	h.inbound(c2, []byte(`{"type":"typing","fromUserId":"u1","toUserId":"u2","isTyping":true}`))
	if ev := recvTyped[TypingEvent](t, observer, TypeTyping); !ev.IsTyping {
		t.Fatalf("typing event = %+v", ev)
	}

	// last connection closing produces exactly one offline event
	h.leave(c2)
	off := recvTyped[PresenceEvent](t, observer, TypePresence)
	if off.UserID != "u1" || off.IsOnline {
		t.Fatalf("offline event = %+v", off)
	}
	expectNoFrame(t, observer, 50*time.Millisecond)
}

func TestHub_OfflineClaimIgnored(t *testing.T) {
	h := startHub(t, newFakeStore())
	c1 := joinConn(t, h)
	readSnapshot(t, c1, 0)
	attacker := joinConn(t, h)
	readSnapshot(t, attacker, 0)

	h.inbound(c1, presenceFrame("u1"))
	recvTyped[PresenceEvent](t, attacker, TypePresence)

	// a client claiming another user offline changes no hub state
	h.inbound(attacker, []byte(`{"type":"presence","userId":"u1","isOnline":false}`))
	recvTyped[PresenceEvent](t, c1, TypePresence) // relayed verbatim regardless

	late := joinConn(t, h)
	_, _, online := readSnapshot(t, late, 1)
	if online[0].UserID != "u1" || !online[0].IsOnline {
		t.Fatalf("online snapshot = %+v", online)
	}
}

func TestHub_LateJoinerSnapshot(t *testing.T) {
	store := newFakeStore()
	h := startHub(t, store)
	a := joinConn(t, h)
	readSnapshot(t, a, 0)

	h.inbound(a, presenceFrame("u1"))
	h.inbound(a, addFrame("m1", "one"))
	h.inbound(a, addFrame("m2", "two"))
	h.inbound(a, []byte(`{"type":"direct-add","id":"d1","content":"psst","fromUserId":"u1","toUserId":"u2","fromDisplayName":"Alice","createdAt":"2024-05-01T10:00:00Z"}`))

	// the direct message is the last frame; once stored, all four are applied
	waitFor(t, func() bool { return len(store.storedDirects("room-1")) == 1 })

	late := joinConn(t, h)
	all, directs, online := readSnapshot(t, late, 1)

	if len(all.Messages) != 2 || all.Messages[0].ID != "m1" || all.Messages[1].ID != "m2" {
		t.Fatalf("message snapshot = %+v", all.Messages)
	}
	if len(directs.Messages) != 1 || directs.Messages[0].ID != "d1" {
		t.Fatalf("direct snapshot = %+v", directs.Messages)
	}
	if online[0].UserID != "u1" {
		t.Fatalf("online snapshot = %+v", online)
	}
}

func TestHub_SignalRelayOpaque(t *testing.T) {
	h := startHub(t, newFakeStore())
	a := joinConn(t, h)
	b := joinConn(t, h)
	readSnapshot(t, a, 0)
	readSnapshot(t, b, 0)

	// payload is deliberately not meaningful JSON inside the string; the hub
	// must forward the frame byte for byte
	frame := []byte(`{"type":"signal","fromUserId":"u1","toUserId":"u2","signalType":"offer","payload":"v=0\r\no=- 46117 2 IN IP4 {{{garbage"}`)
	h.inbound(a, frame)

	if got := recvFrame(t, b); string(got) != string(frame) {
		t.Fatalf("relayed frame differs:\n got %s\nwant %s", got, frame)
	}
}

func TestHub_MalformedAndUnknownDropped(t *testing.T) {
	h := startHub(t, newFakeStore())
	a := joinConn(t, h)
	b := joinConn(t, h)
	readSnapshot(t, a, 0)
	readSnapshot(t, b, 0)

	h.inbound(a, []byte(`this is not json`))
	h.inbound(a, []byte(`{"type":"mystery","x":1}`))
	expectNoFrame(t, b, 50*time.Millisecond)
}

func TestHub_DuplicateDirectAddKeepsFirstStored(t *testing.T) {
	store := newFakeStore()
	h := startHub(t, store)
	a := joinConn(t, h)
	readSnapshot(t, a, 0)

	frame := []byte(`{"type":"direct-add","id":"d1","content":"first","fromUserId":"u1","toUserId":"u2","fromDisplayName":"Alice","createdAt":"2024-05-01T10:00:00Z"}`)
	dup := []byte(`{"type":"direct-add","id":"d1","content":"second","fromUserId":"u1","toUserId":"u2","fromDisplayName":"Alice","createdAt":"2024-05-01T10:01:00Z"}`)
	h.inbound(a, frame)
	waitFor(t, func() bool { return len(store.storedDirects("room-1")) == 1 })
	h.inbound(a, dup)

	// duplicate ids violate the contract; the store must keep the first write
	time.Sleep(50 * time.Millisecond)
	stored := store.storedDirects("room-1")
	if len(stored) != 1 || stored[0].Content != "first" {
		t.Fatalf("stored directs = %+v", stored)
	}
}

func TestHub_EndToEndAddThenUpdate(t *testing.T) {
	store := newFakeStore()
	h := startHub(t, store)
	a := joinConn(t, h)
	b := joinConn(t, h)
	readSnapshot(t, a, 0)
	readSnapshot(t, b, 0)

	add := []byte(`{"type":"add","id":"m1","content":"hi","authorLabel":"A","role":"user"}`)
	h.inbound(a, add)
	if got := recvFrame(t, b); string(got) != string(add) {
		t.Fatalf("b received %s", got)
	}
	waitFor(t, func() bool { return len(store.storedMessages("room-1")) == 1 })

	update := []byte(`{"type":"update","id":"m1","content":"hi!","authorLabel":"A","role":"user"}`)
	h.inbound(a, update)
	if got := recvFrame(t, b); string(got) != string(update) {
		t.Fatalf("b received %s", got)
	}

	waitFor(t, func() bool {
		ms := store.storedMessages("room-1")
		return len(ms) == 1 && ms[0].Content == "hi!"
	})
}

func TestHub_PersistAppliesWritesInOrder(t *testing.T) {
	store := &slowFirstUpsertStore{fakeStore: newFakeStore()}
	h := startHub(t, store)
	a := joinConn(t, h)
	readSnapshot(t, a, 0)

	// the add's write stalls; the update's must still land after it
	h.inbound(a, addFrame("m1", "hi"))
	h.inbound(a, updateFrame("m1", "hi!"))

	waitFor(t, func() bool { return len(store.writeOrder()) == 2 })
	if got := store.writeOrder(); got[0] != "hi" || got[1] != "hi!" {
		t.Fatalf("write order = %v, want [hi hi!]", got)
	}

	ms := store.storedMessages("room-1")
	if len(ms) != 1 || ms[0].Content != "hi!" {
		t.Fatalf("stored after add and update = %+v", ms)
	}
}

func TestHub_SeededHistoryInSnapshot(t *testing.T) {
	store := newFakeStore()
	store.seedMessages("room-1",
		domain.RoomMessage{ID: "m1", Content: "old", AuthorLabel: "a", Role: "user"},
	)

	msgs, _ := store.RoomMessages(t.Context(), "room-1")
	h := newHub("room-1", store, time.Hour, nil)
	h.seed(msgs, nil)
	go h.run()
	t.Cleanup(func() {
		h.stop()
		<-h.done
	})

	c := joinConn(t, h)
	all, _, _ := readSnapshot(t, c, 0)
	if len(all.Messages) != 1 || all.Messages[0].Content != "old" {
		t.Fatalf("hydrated snapshot = %+v", all.Messages)
	}

	// an update to hydrated history must not append
	h.inbound(c, updateFrame("m1", "new"))
	waitFor(t, func() bool {
		ms := store.storedMessages("room-1")
		return len(ms) == 1 && ms[0].Content == "new"
	})
	late := joinConn(t, h)
	lateAll, _, _ := readSnapshot(t, late, 0)
	if len(lateAll.Messages) != 1 || lateAll.Messages[0].Content != "new" {
		t.Fatalf("post-update snapshot = %+v", lateAll.Messages)
	}
}
