package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/parley-chat/server/internal/domain"
	"github.com/parley-chat/server/internal/postgres"
)

const maxDirectLength = 4000

// DirectService backs the request/response direct-message surface. The
// real-time path goes through the websocket hub instead; both end up in the
// same table.
type DirectService struct {
	directs *postgres.DirectRepository
	users   *postgres.UserRepository
	now     func() time.Time
}

func NewDirectService(directs *postgres.DirectRepository, users *postgres.UserRepository, now func() time.Time) *DirectService {
	if now == nil {
		now = time.Now
	}
	return &DirectService{directs: directs, users: users, now: now}
}

// Send persists a direct message with a server-generated id.
func (s *DirectService) Send(ctx context.Context, fromUserID, toUserID, roomID, content string) (*domain.DirectMessage, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return nil, errors.New("empty message")
	}
	if len(content) > maxDirectLength {
		return nil, errors.New("message too long")
	}

	from, err := s.users.GetByID(ctx, fromUserID)
	if err != nil {
		return nil, err
	}
	if _, err := s.users.GetByID(ctx, toUserID); err != nil {
		return nil, err
	}

	m := domain.DirectMessage{
		ID:              uuid.New().String(),
		Content:         content,
		FromUserID:      fromUserID,
		ToUserID:        toUserID,
		FromDisplayName: from.Label(),
		CreatedAt:       s.now(),
	}

	if _, err := s.directs.Insert(ctx, roomID, m); err != nil {
		return nil, err
	}
	return &m, nil
}

// Conversation lists the history of the unordered pair {userID, otherID},
// oldest first, with cursor pagination.
func (s *DirectService) Conversation(ctx context.Context, userID, otherID, after string, limit int) ([]domain.DirectMessage, string, error) {
	return s.directs.ListConversation(ctx, userID, otherID, after, limit)
}
