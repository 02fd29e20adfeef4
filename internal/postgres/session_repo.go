package postgres

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/parley-chat/server/internal/domain"
)

type SessionRepository struct {
	db *pgxpool.Pool
}

func NewSessionRepository(db *pgxpool.Pool) *SessionRepository {
	return &SessionRepository{db: db}
}

func (r *SessionRepository) Create(ctx context.Context, s *domain.Session) (string, error) {
	var id string
	err := r.db.QueryRow(ctx, `
		INSERT INTO sessions (user_id, token_hash, created_at, expires_at)
		VALUES ($1, $2, $3, $4)
		RETURNING id
	`, s.UserID, s.TokenHash, s.CreatedAt, s.ExpiresAt).Scan(&id)
	if err != nil {
		return "", err
	}
	return id, nil
}

func (r *SessionRepository) GetByTokenHash(ctx context.Context, hash string) (*domain.Session, error) {
	var s domain.Session
	err := r.db.QueryRow(ctx, `
		SELECT id, user_id, token_hash, created_at, expires_at
		FROM sessions WHERE token_hash=$1
	`, hash).Scan(&s.ID, &s.UserID, &s.TokenHash, &s.CreatedAt, &s.ExpiresAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	return &s, nil
}

func (r *SessionRepository) DeleteByTokenHash(ctx context.Context, hash string) error {
	_, err := r.db.Exec(ctx, `DELETE FROM sessions WHERE token_hash=$1`, hash)
	return err
}

func (r *SessionRepository) DeleteExpired(ctx context.Context) (int64, error) {
	cmd, err := r.db.Exec(ctx, `DELETE FROM sessions WHERE expires_at < now()`)
	if err != nil {
		return 0, err
	}
	return cmd.RowsAffected(), nil
}
