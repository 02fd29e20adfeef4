package domain

import (
	"strings"
	"time"
)

type User struct {
	ID           string
	Email        string
	PasswordHash string
	DisplayName  *string
	AvatarURL    *string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// NewUser expects an already-computed password hash.
func NewUser(email, passwordHash string, now time.Time, opts ...UserOption) (*User, error) {
	email = normalizeEmail(email)
	if email == "" || !strings.Contains(email, "@") {
		return nil, ErrInvalidEmail
	}
	if strings.TrimSpace(passwordHash) == "" {
		return nil, ErrInvalidCredentials
	}

	user := &User{
		Email:        email,
		PasswordHash: passwordHash,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	for _, opt := range opts {
		opt(user)
	}

	return user, nil
}

func (u *User) SetDisplayName(name *string, now time.Time) {
	u.DisplayName = trimPtr(name)
	u.UpdatedAt = now
}

func (u *User) SetAvatarURL(url *string, now time.Time) {
	u.AvatarURL = trimPtr(url)
	u.UpdatedAt = now
}

// Label is the name shown to other users: display name when set, otherwise
// the part of the email before the @.
func (u *User) Label() string {
	if u.DisplayName != nil {
		return *u.DisplayName
	}
	if i := strings.IndexByte(u.Email, '@'); i > 0 {
		return u.Email[:i]
	}
	return u.Email
}

type UserOption func(*User)

func WithDisplayName(name string) UserOption {
	return func(u *User) { u.DisplayName = trimPtr(&name) }
}

func WithAvatarURL(url string) UserOption {
	return func(u *User) { u.AvatarURL = trimPtr(&url) }
}

func normalizeEmail(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

func trimPtr(p *string) *string {
	if p == nil {
		return nil
	}
	t := strings.TrimSpace(*p)
	if t == "" {
		return nil
	}

	return &t
}
