package postgres

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/parley-chat/server/internal/domain"
)

type RoomRepository struct {
	db *pgxpool.Pool
}

func NewRoomRepository(db *pgxpool.Pool) *RoomRepository {
	return &RoomRepository{db: db}
}

func (r *RoomRepository) Create(ctx context.Context, room *domain.Room) error {
	query := `
		INSERT INTO rooms (name, created_by)
		VALUES ($1, $2)
		RETURNING id, created_at`
	return r.db.QueryRow(ctx, query, room.Name, room.CreatedBy).Scan(&room.ID, &room.CreatedAt)
}

func (r *RoomRepository) Get(ctx context.Context, id string) (*domain.Room, error) {
	var rm domain.Room
	query := `SELECT id, name, created_by, created_at FROM rooms WHERE id=$1`
	err := r.db.QueryRow(ctx, query, id).
		Scan(&rm.ID, &rm.Name, &rm.CreatedBy, &rm.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrRoomNotFound
		}
		return nil, err
	}
	return &rm, nil
}

func (r *RoomRepository) List(ctx context.Context, limit int, cursorStr string) ([]domain.Room, string, error) {
	cur, err := DecodeCursor(cursorStr)
	if err != nil {
		return nil, "", err
	}

	query := `
		SELECT id, name, created_by, created_at
		FROM rooms
		WHERE ($1::timestamptz IS NULL OR created_at < $1
		       OR (created_at = $1 AND id < $2))
		ORDER BY created_at DESC, id DESC
		LIMIT $3`

	var createdAt any
	var id any
	if cur != nil {
		createdAt = cur.CreatedAt
		id = cur.ID
	}

	rows, err := r.db.Query(ctx, query, createdAt, id, limit)
	if err != nil {
		return nil, "", err
	}
	defer rows.Close()

	var rooms []domain.Room
	for rows.Next() {
		var rm domain.Room
		if err := rows.Scan(&rm.ID, &rm.Name, &rm.CreatedBy, &rm.CreatedAt); err != nil {
			return nil, "", err
		}
		rooms = append(rooms, rm)
	}

	var nextCursor string
	if len(rooms) == limit {
		last := rooms[len(rooms)-1]
		nextCursor, _ = EncodeCursor(Cursor{CreatedAt: last.CreatedAt, ID: last.ID})
	}

	return rooms, nextCursor, nil
}

// Join records room membership; joining twice is a no-op.
func (r *RoomRepository) Join(ctx context.Context, roomID, userID string) error {
	_, err := r.db.Exec(ctx, `
		INSERT INTO room_members (room_id, user_id)
		VALUES ($1, $2)
		ON CONFLICT DO NOTHING
	`, roomID, userID)
	return err
}
