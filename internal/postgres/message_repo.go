package postgres

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/parley-chat/server/internal/domain"
)

type MessageRepository struct {
	db *pgxpool.Pool
}

func NewMessageRepository(db *pgxpool.Pool) *MessageRepository {
	return &MessageRepository{db: db}
}

// ListByRoom returns the full chat history of a room in insertion order.
func (r *MessageRepository) ListByRoom(ctx context.Context, roomID string) ([]domain.RoomMessage, error) {
	rows, err := r.db.Query(ctx, `
		SELECT id, content, author_label, role
		FROM room_messages
		WHERE room_id = $1
		ORDER BY seq ASC
	`, roomID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.RoomMessage
	for rows.Next() {
		var m domain.RoomMessage
		if err := rows.Scan(&m.ID, &m.Content, &m.AuthorLabel, &m.Role); err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

// Upsert inserts the message, or on conflict replaces content and role.
// Replaying the same event leaves exactly one stored record, so the write
// is safe to repeat.
func (r *MessageRepository) Upsert(ctx context.Context, roomID string, m domain.RoomMessage) error {
	_, err := r.db.Exec(ctx, `
		INSERT INTO room_messages (room_id, id, content, author_label, role)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (room_id, id)
		DO UPDATE SET content = EXCLUDED.content, role = EXCLUDED.role
	`, roomID, m.ID, m.Content, m.AuthorLabel, m.Role)
	return err
}
