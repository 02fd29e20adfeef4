package postgres

import (
	"context"

	"github.com/parley-chat/server/internal/domain"
)

// HubStore is the persistence backstop used by the websocket hubs: history
// hydration on first activation and best-effort writes after broadcast.
type HubStore struct {
	messages *MessageRepository
	directs  *DirectRepository
}

func NewHubStore(messages *MessageRepository, directs *DirectRepository) *HubStore {
	return &HubStore{messages: messages, directs: directs}
}

func (s *HubStore) RoomMessages(ctx context.Context, roomID string) ([]domain.RoomMessage, error) {
	return s.messages.ListByRoom(ctx, roomID)
}

func (s *HubStore) UpsertRoomMessage(ctx context.Context, roomID string, m domain.RoomMessage) error {
	return s.messages.Upsert(ctx, roomID, m)
}

func (s *HubStore) DirectMessages(ctx context.Context, roomID string) ([]domain.DirectMessage, error) {
	return s.directs.ListByRoom(ctx, roomID)
}

func (s *HubStore) InsertDirectMessage(ctx context.Context, roomID string, m domain.DirectMessage) (bool, error) {
	return s.directs.Insert(ctx, roomID, m)
}
