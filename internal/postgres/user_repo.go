package postgres

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/parley-chat/server/internal/domain"
)

type UserRepository struct {
	db *pgxpool.Pool
}

func NewUserRepository(db *pgxpool.Pool) *UserRepository {
	return &UserRepository{db: db}
}

func (r *UserRepository) Create(ctx context.Context, u *domain.User) (string, error) {
	var id string
	err := r.db.QueryRow(ctx, `
		INSERT INTO users (email, password_hash, display_name, avatar_url, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id
	`, u.Email, u.PasswordHash, u.DisplayName, u.AvatarURL, u.CreatedAt, u.UpdatedAt).Scan(&id)
	if err != nil {
		return "", err
	}
	return id, nil
}

func (r *UserRepository) ExistsByEmail(ctx context.Context, email string) (bool, error) {
	var exists bool
	err := r.db.QueryRow(ctx,
		`SELECT EXISTS(SELECT 1 FROM users WHERE email=$1)`, email).Scan(&exists)
	return exists, err
}

func (r *UserRepository) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	return r.get(ctx, `WHERE email=$1`, email)
}

func (r *UserRepository) GetByID(ctx context.Context, id string) (*domain.User, error) {
	return r.get(ctx, `WHERE id=$1`, id)
}

func (r *UserRepository) get(ctx context.Context, where string, arg any) (*domain.User, error) {
	var u domain.User
	err := r.db.QueryRow(ctx, `
		SELECT id, email, password_hash, display_name, avatar_url, created_at, updated_at
		FROM users `+where,
		arg).Scan(&u.ID, &u.Email, &u.PasswordHash, &u.DisplayName, &u.AvatarURL, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	return &u, nil
}

func (r *UserRepository) UpdateProfile(ctx context.Context, u *domain.User) error {
	cmd, err := r.db.Exec(ctx, `
		UPDATE users SET display_name=$2, avatar_url=$3, updated_at=$4 WHERE id=$1
	`, u.ID, u.DisplayName, u.AvatarURL, u.UpdatedAt)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}
