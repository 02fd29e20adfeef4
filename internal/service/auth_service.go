package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/parley-chat/server/internal/domain"
	"github.com/parley-chat/server/internal/postgres"
	"github.com/parley-chat/server/internal/security"
)

type AuthResult struct {
	User  *domain.User
	Token string
}

type AuthService struct {
	users      *postgres.UserRepository
	sessions   *postgres.SessionRepository
	signer     *security.TokenSigner
	passPolicy security.BcryptConfig
	now        func() time.Time
}

func NewAuthService(
	users *postgres.UserRepository,
	sessions *postgres.SessionRepository,
	signer *security.TokenSigner,
	passPolicy security.BcryptConfig,
	now func() time.Time,
) *AuthService {
	if now == nil {
		now = time.Now
	}

	return &AuthService{
		users:      users,
		sessions:   sessions,
		signer:     signer,
		passPolicy: passPolicy,
		now:        now,
	}
}

func (s *AuthService) Register(ctx context.Context, email, password string, displayName *string) (*AuthResult, error) {
	exists, err := s.users.ExistsByEmail(ctx, email)
	if err != nil {
		slog.Error("auth.register.existsByEmail failed", slog.Any("err", err))
		return nil, err
	}
	if exists {
		return nil, domain.ErrAlreadyExists
	}

	hash, err := security.HashPassword(password, &s.passPolicy)
	if err != nil {
		return nil, err
	}

	now := s.now()
	var opts []domain.UserOption
	if displayName != nil {
		opts = append(opts, domain.WithDisplayName(*displayName))
	}

	u, err := domain.NewUser(email, hash, now, opts...)
	if err != nil {
		return nil, err
	}

	id, err := s.users.Create(ctx, u)
	if err != nil {
		slog.Error("auth.register.createUser failed", slog.Any("err", err))
		return nil, err
	}
	u.ID = id

	token, err := s.issueToken(ctx, u.ID)
	if err != nil {
		slog.Error("auth.register.issueToken failed", slog.Any("err", err))
		return nil, err
	}

	return &AuthResult{User: u, Token: token}, nil
}

// Login authenticates by email+password and issues a token.
func (s *AuthService) Login(ctx context.Context, email, password string) (*AuthResult, error) {
	u, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, domain.ErrInvalidCredentials
		}
		return nil, err
	}

	if err := security.ComparePassword(u.PasswordHash, password); err != nil {
		return nil, domain.ErrInvalidCredentials
	}

	token, err := s.issueToken(ctx, u.ID)
	if err != nil {
		slog.Error("auth.login.issueToken failed", slog.Any("err", err))
		return nil, err
	}

	return &AuthResult{User: u, Token: token}, nil
}

// Logout revokes the session backing the token. Unknown tokens are a no-op.
func (s *AuthService) Logout(ctx context.Context, token string) error {
	return s.sessions.DeleteByTokenHash(ctx, security.SHA256HexOfString(token))
}

func (s *AuthService) Me(ctx context.Context, userID string) (*domain.User, error) {
	return s.users.GetByID(ctx, userID)
}

func (s *AuthService) UpdateProfile(ctx context.Context, userID string, displayName, avatarURL *string) (*domain.User, error) {
	u, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}

	now := s.now()
	if displayName != nil {
		u.SetDisplayName(displayName, now)
	}
	if avatarURL != nil {
		u.SetAvatarURL(avatarURL, now)
	}

	if err := s.users.UpdateProfile(ctx, u); err != nil {
		slog.Error("auth.updateProfile failed", slog.Any("err", err))
		return nil, err
	}
	return u, nil
}

// VerifyToken validates the signature and the backing session; a logged-out
// token fails even while the signature is still valid.
func (s *AuthService) VerifyToken(token string) (string, error) {
	userID, err := s.signer.ParseAndValidate(token)
	if err != nil {
		return "", err
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	sess, err := s.sessions.GetByTokenHash(ctx, security.SHA256HexOfString(token))
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return "", domain.ErrInvalidToken
		}
		return "", err
	}
	if sess.IsExpired(s.now()) {
		return "", domain.ErrSessionExpired
	}
	if sess.UserID != userID {
		return "", domain.ErrInvalidToken
	}

	return userID, nil
}

func (s *AuthService) issueToken(ctx context.Context, userID string) (string, error) {
	now := s.now()

	token, err := s.signer.Sign(userID, now)
	if err != nil {
		return "", err
	}

	sess := &domain.Session{
		UserID:    userID,
		TokenHash: security.SHA256HexOfString(token),
		CreatedAt: now,
		ExpiresAt: now.Add(s.signer.TTL()),
	}
	if _, err := s.sessions.Create(ctx, sess); err != nil {
		return "", err
	}

	return token, nil
}
