package service

import (
	"context"
	"errors"

	"github.com/parley-chat/server/internal/domain"
	"github.com/parley-chat/server/internal/postgres"
)

type ContactService struct {
	contacts *postgres.ContactRepository
	users    *postgres.UserRepository
}

func NewContactService(contacts *postgres.ContactRepository, users *postgres.UserRepository) *ContactService {
	return &ContactService{contacts: contacts, users: users}
}

// AddByEmail links the user behind the email into the owner's contact list.
func (s *ContactService) AddByEmail(ctx context.Context, ownerID, email string) (*domain.Contact, error) {
	u, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	if u.ID == ownerID {
		return nil, domain.ErrSelfContact
	}

	if err := s.contacts.Add(ctx, ownerID, u.ID); err != nil {
		return nil, err
	}

	return &domain.Contact{
		OwnerID:     ownerID,
		ContactID:   u.ID,
		Email:       u.Email,
		DisplayName: u.DisplayName,
		AvatarURL:   u.AvatarURL,
	}, nil
}

func (s *ContactService) List(ctx context.Context, ownerID string) ([]domain.Contact, error) {
	return s.contacts.ListByOwner(ctx, ownerID)
}
