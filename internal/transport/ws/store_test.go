package ws

import (
	"context"
	"sync"
	"time"

	"github.com/parley-chat/server/internal/domain"
)

// fakeStore is an in-memory Store used by hub and registry tests.
type fakeStore struct {
	mu       sync.Mutex
	messages map[string][]domain.RoomMessage
	directs  map[string][]domain.DirectMessage
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		messages: make(map[string][]domain.RoomMessage),
		directs:  make(map[string][]domain.DirectMessage),
	}
}

func (s *fakeStore) RoomMessages(_ context.Context, roomID string) ([]domain.RoomMessage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]domain.RoomMessage(nil), s.messages[roomID]...), nil
}

func (s *fakeStore) UpsertRoomMessage(_ context.Context, roomID string, m domain.RoomMessage) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, cur := range s.messages[roomID] {
		if cur.ID == m.ID {
			s.messages[roomID][i] = m
			return nil
		}
	}
	s.messages[roomID] = append(s.messages[roomID], m)
	return nil
}

func (s *fakeStore) DirectMessages(_ context.Context, roomID string) ([]domain.DirectMessage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]domain.DirectMessage(nil), s.directs[roomID]...), nil
}

func (s *fakeStore) InsertDirectMessage(_ context.Context, roomID string, m domain.DirectMessage) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, cur := range s.directs[roomID] {
		if cur.ID == m.ID {
			return false, nil
		}
	}
	s.directs[roomID] = append(s.directs[roomID], m)
	return true, nil
}

func (s *fakeStore) storedMessages(roomID string) []domain.RoomMessage {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]domain.RoomMessage(nil), s.messages[roomID]...)
}

func (s *fakeStore) storedDirects(roomID string) []domain.DirectMessage {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]domain.DirectMessage(nil), s.directs[roomID]...)
}

func (s *fakeStore) seedMessages(roomID string, ms ...domain.RoomMessage) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.messages[roomID] = append(s.messages[roomID], ms...)
}

// slowFirstUpsertStore stalls the first room-message write long enough for
// a later write to overtake it, were writes not applied in order.
type slowFirstUpsertStore struct {
	*fakeStore
	mu      sync.Mutex
	stalled bool
	writes  []string
}

func (s *slowFirstUpsertStore) UpsertRoomMessage(ctx context.Context, roomID string, m domain.RoomMessage) error {
	s.mu.Lock()
	stall := !s.stalled
	s.stalled = true
	s.mu.Unlock()

	if stall {
		time.Sleep(50 * time.Millisecond)
	}

	s.mu.Lock()
	s.writes = append(s.writes, m.Content)
	s.mu.Unlock()

	return s.fakeStore.UpsertRoomMessage(ctx, roomID, m)
}

func (s *slowFirstUpsertStore) writeOrder() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.writes...)
}
