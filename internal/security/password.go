package security

import (
	"golang.org/x/crypto/bcrypt"

	"github.com/parley-chat/server/internal/domain"
)

type BcryptConfig struct {
	Cost      int // default bcrypt.DefaultCost
	MinLength int // default 6
}

func HashPassword(plain string, cfg *BcryptConfig) (string, error) {
	minLen := 6
	cost := bcrypt.DefaultCost

	if cfg != nil {
		if cfg.MinLength > 0 {
			minLen = cfg.MinLength
		}
		if cfg.Cost > 0 {
			cost = cfg.Cost
		}
	}

	if len(plain) < minLen {
		return "", domain.ErrPasswordTooShort
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(plain), cost)
	if err != nil {
		return "", err
	}

	return string(hash), nil
}

func ComparePassword(hash, plain string) error {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(plain))
}
