package postgres

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/parley-chat/server/internal/domain"
)

type ContactRepository struct {
	db *pgxpool.Pool
}

func NewContactRepository(db *pgxpool.Pool) *ContactRepository {
	return &ContactRepository{db: db}
}

func (r *ContactRepository) Add(ctx context.Context, ownerID, contactID string) error {
	_, err := r.db.Exec(ctx, `
		INSERT INTO contacts (owner_id, contact_id)
		VALUES ($1, $2)
		ON CONFLICT DO NOTHING
	`, ownerID, contactID)
	return err
}

func (r *ContactRepository) ListByOwner(ctx context.Context, ownerID string) ([]domain.Contact, error) {
	rows, err := r.db.Query(ctx, `
		SELECT c.owner_id, c.contact_id, u.email, u.display_name, u.avatar_url, c.created_at
		FROM contacts AS c
		JOIN users AS u ON u.id = c.contact_id
		WHERE c.owner_id = $1
		ORDER BY u.display_name NULLS LAST, u.email
	`, ownerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.Contact
	for rows.Next() {
		var c domain.Contact
		if err := rows.Scan(&c.OwnerID, &c.ContactID, &c.Email, &c.DisplayName, &c.AvatarURL, &c.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}
