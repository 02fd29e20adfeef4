package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/parley-chat/server/internal/domain"
)

type DirectRepository struct {
	db *pgxpool.Pool
}

func NewDirectRepository(db *pgxpool.Pool) *DirectRepository {
	return &DirectRepository{db: db}
}

// ListByRoom returns the room's direct-message history ordered by creation
// time, oldest first.
func (r *DirectRepository) ListByRoom(ctx context.Context, roomID string) ([]domain.DirectMessage, error) {
	rows, err := r.db.Query(ctx, `
		SELECT id, content, from_user_id, to_user_id, from_display_name, created_at
		FROM direct_messages
		WHERE room_id = $1
		ORDER BY created_at ASC, id ASC
	`, roomID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanDirects(rows)
}

// Insert appends a direct message. Direct messages are immutable; a
// duplicate id keeps the first write and reports no error, the caller logs
// the contract violation.
func (r *DirectRepository) Insert(ctx context.Context, roomID string, m domain.DirectMessage) (bool, error) {
	cmd, err := r.db.Exec(ctx, `
		INSERT INTO direct_messages (id, room_id, content, from_user_id, to_user_id, from_display_name, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (id) DO NOTHING
	`, m.ID, roomID, m.Content, m.FromUserID, m.ToUserID, m.FromDisplayName, m.CreatedAt)
	if err != nil {
		return false, err
	}
	return cmd.RowsAffected() > 0, nil
}

// ListConversation returns messages of the unordered user pair {a,b} with
// cursor pagination (created_at,id ascending).
func (r *DirectRepository) ListConversation(ctx context.Context, a, b, after string, limit int) ([]domain.DirectMessage, string, error) {
	if limit <= 0 {
		limit = 50
	}
	if limit > 200 {
		limit = 200
	}
	cur, err := DecodeCursor(after)
	if err != nil {
		return nil, "", fmt.Errorf("decode cursor: %w", err)
	}

	const baseQuery = `
		SELECT id, content, from_user_id, to_user_id, from_display_name, created_at
		FROM direct_messages
		WHERE ((from_user_id = $1 AND to_user_id = $2)
		    OR (from_user_id = $2 AND to_user_id = $1))
		  AND (
		    $3::timestamptz IS NULL
		    OR created_at > $3
		    OR (created_at = $3 AND id > $4)
		  )
		ORDER BY created_at ASC, id ASC
		LIMIT $5
	`

	var createdAt any
	var id any
	if cur != nil {
		createdAt = cur.CreatedAt
		id = cur.ID
	}

	rows, err := r.db.Query(ctx, baseQuery, a, b, createdAt, id, limit)
	if err != nil {
		return nil, "", err
	}
	defer rows.Close()

	out, err := scanDirects(rows)
	if err != nil {
		return nil, "", err
	}

	var next string
	if len(out) == limit {
		last := out[len(out)-1]
		if c, e := EncodeCursor(Cursor{CreatedAt: last.CreatedAt, ID: last.ID}); e == nil {
			next = c
		}
	}
	return out, next, nil
}

type directRows interface {
	Next() bool
	Scan(dest ...any) error
	Err() error
}

func scanDirects(rows directRows) ([]domain.DirectMessage, error) {
	var out []domain.DirectMessage
	for rows.Next() {
		var m domain.DirectMessage
		if err := rows.Scan(&m.ID, &m.Content, &m.FromUserID, &m.ToUserID, &m.FromDisplayName, &m.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}
