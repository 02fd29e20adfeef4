package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/parley-chat/server/internal/domain"
	"github.com/parley-chat/server/internal/postgres"
)

type RoomService struct {
	roomRepo *postgres.RoomRepository
}

func NewRoomService(roomRepo *postgres.RoomRepository) *RoomService {
	return &RoomService{roomRepo: roomRepo}
}

func (s *RoomService) CreateRoom(ctx context.Context, name, createdBy string) (*domain.Room, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, errors.New("empty room name")
	}

	room := &domain.Room{
		Name:      name,
		CreatedBy: createdBy,
	}

	if err := s.roomRepo.Create(ctx, room); err != nil {
		return nil, fmt.Errorf("roomRepo.Create: %w", err)
	}
	return room, nil
}

func (s *RoomService) GetRoom(ctx context.Context, id string) (*domain.Room, error) {
	return s.roomRepo.Get(ctx, id)
}

func (s *RoomService) ListRooms(ctx context.Context, limit int, cursor string) ([]domain.Room, string, error) {
	if limit <= 0 {
		limit = 20
	}
	if limit > 50 {
		limit = 50
	}

	return s.roomRepo.List(ctx, limit, cursor)
}

// JoinRoom records membership; joining a room twice is fine.
func (s *RoomService) JoinRoom(ctx context.Context, roomID, userID string) error {
	if _, err := s.roomRepo.Get(ctx, roomID); err != nil {
		return err
	}
	return s.roomRepo.Join(ctx, roomID, userID)
}
