package security

import (
	"errors"
	"testing"
	"time"

	"github.com/parley-chat/server/internal/domain"
)

func testSigner(ttl time.Duration) *TokenSigner {
	return NewTokenSigner([]byte("test-secret"), "parley", ttl, 30*time.Second)
}

func TestTokenSigner_RoundTrip(t *testing.T) {
	s := testSigner(time.Hour)

	token, err := s.Sign("u-42", time.Now())
	if err != nil {
		t.Fatalf("Sign: %v", err)
	}

	userID, err := s.ParseAndValidate(token)
	if err != nil {
		t.Fatalf("ParseAndValidate: %v", err)
	}
	if userID != "u-42" {
		t.Errorf("userID = %q, want u-42", userID)
	}
}

func TestTokenSigner_Expired(t *testing.T) {
	s := testSigner(time.Hour)

	// issued two hours ago with a one hour ttl, well past the skew window
	token, err := s.Sign("u-42", time.Now().Add(-2*time.Hour))
	if err != nil {
		t.Fatalf("Sign: %v", err)
	}

	if _, err := s.ParseAndValidate(token); !errors.Is(err, domain.ErrSessionExpired) {
		t.Errorf("err = %v, want ErrSessionExpired", err)
	}
}

func TestTokenSigner_ExpiredWithinSkew(t *testing.T) {
	s := testSigner(time.Minute)

	// expired ten seconds ago, still inside the 30s skew tolerance
	token, err := s.Sign("u-42", time.Now().Add(-70*time.Second))
	if err != nil {
		t.Fatalf("Sign: %v", err)
	}

	if _, err := s.ParseAndValidate(token); err != nil {
		t.Errorf("err = %v, want nil inside skew window", err)
	}
}

func TestTokenSigner_Tampered(t *testing.T) {
	s := testSigner(time.Hour)

	token, err := s.Sign("u-42", time.Now())
	if err != nil {
		t.Fatalf("Sign: %v", err)
	}
	tampered := token[:len(token)-2] + "xx"

	if _, err := s.ParseAndValidate(tampered); !errors.Is(err, domain.ErrInvalidToken) {
		t.Errorf("err = %v, want ErrInvalidToken", err)
	}
}

func TestTokenSigner_WrongSecret(t *testing.T) {
	token, err := testSigner(time.Hour).Sign("u-42", time.Now())
	if err != nil {
		t.Fatalf("Sign: %v", err)
	}

	other := NewTokenSigner([]byte("other-secret"), "parley", time.Hour, 0)
	if _, err := other.ParseAndValidate(token); !errors.Is(err, domain.ErrInvalidToken) {
		t.Errorf("err = %v, want ErrInvalidToken", err)
	}
}

func TestTokenSigner_WrongIssuer(t *testing.T) {
	issued := NewTokenSigner([]byte("test-secret"), "someone-else", time.Hour, 0)
	token, err := issued.Sign("u-42", time.Now())
	if err != nil {
		t.Fatalf("Sign: %v", err)
	}

	if _, err := testSigner(time.Hour).ParseAndValidate(token); !errors.Is(err, domain.ErrInvalidToken) {
		t.Errorf("err = %v, want ErrInvalidToken", err)
	}
}

func TestHashPassword(t *testing.T) {
	hash, err := HashPassword("hunter22", nil)
	if err != nil {
		t.Fatalf("HashPassword: %v", err)
	}
	if err := ComparePassword(hash, "hunter22"); err != nil {
		t.Errorf("ComparePassword matching: %v", err)
	}
	if err := ComparePassword(hash, "hunter23"); err == nil {
		t.Error("ComparePassword accepted a wrong password")
	}
}

func TestHashPassword_TooShort(t *testing.T) {
	if _, err := HashPassword("abc", nil); !errors.Is(err, domain.ErrPasswordTooShort) {
		t.Errorf("err = %v, want ErrPasswordTooShort", err)
	}

	cfg := &BcryptConfig{MinLength: 10}
	if _, err := HashPassword("123456789", cfg); !errors.Is(err, domain.ErrPasswordTooShort) {
		t.Errorf("err = %v, want ErrPasswordTooShort with custom min", err)
	}
}
