package auth

import (
	"errors"
	"testing"
	"time"

	"github.com/KIaudius/issues-insights-tracker/internal/domain/rbac"
)

func newTestManager(t *testing.T) *TokenManager {
	t.Helper()

	m, err := NewTokenManager("test-secret", time.Minute, time.Hour)
	if err != nil {
		t.Fatalf("NewTokenManager() error = %v", err)
	}
	return m
}

func TestIssueAndVerifyAccessToken(t *testing.T) {
	m := newTestManager(t)
	identity := Identity{UserID: 7, Email: "maintainer@example.com", Role: rbac.RoleMaintainer}

	raw, err := m.IssueAccessToken(identity)
	if err != nil {
		t.Fatalf("IssueAccessToken() error = %v", err)
	}

	got, err := m.Verify(raw, TokenTypeAccess)
	if err != nil {
		t.Fatalf("Verify() error = %v", err)
	}
	if got != identity {
		t.Fatalf("Verify() = %+v, want %+v", got, identity)
	}
}

func TestVerifyRejectsWrongTokenType(t *testing.T) {
	m := newTestManager(t)
	raw, err := m.IssueRefreshToken(Identity{UserID: 1, Email: "a@b.c", Role: rbac.RoleReporter})
	if err != nil {
		t.Fatalf("IssueRefreshToken() error = %v", err)
	}

	if _, err := m.Verify(raw, TokenTypeAccess); !errors.Is(err, ErrWrongTokenType) {
		t.Fatalf("Verify(refresh as access) error = %v, want ErrWrongTokenType", err)
	}
}

func TestVerifyRejectsExpiredToken(t *testing.T) {
	m, err := NewTokenManager("test-secret", time.Nanosecond, time.Nanosecond)
	if err != nil {
		t.Fatalf("NewTokenManager() error = %v", err)
	}

	raw, err := m.IssueAccessToken(Identity{UserID: 1, Email: "a@b.c", Role: rbac.RoleAdmin})
	if err != nil {
		t.Fatalf("IssueAccessToken() error = %v", err)
	}

	time.Sleep(10 * time.Millisecond)
	if _, err := m.Verify(raw, TokenTypeAccess); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("Verify(expired) error = %v, want ErrInvalidToken", err)
	}
}

func TestVerifyRejectsForeignSignature(t *testing.T) {
	m := newTestManager(t)
	other, err := NewTokenManager("other-secret", time.Minute, time.Hour)
	if err != nil {
		t.Fatalf("NewTokenManager() error = %v", err)
	}

	raw, err := other.IssueAccessToken(Identity{UserID: 1, Email: "a@b.c", Role: rbac.RoleAdmin})
	if err != nil {
		t.Fatalf("IssueAccessToken() error = %v", err)
	}

	if _, err := m.Verify(raw, TokenTypeAccess); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("Verify(foreign signature) error = %v, want ErrInvalidToken", err)
	}
}

func TestHashAndVerifyPassword(t *testing.T) {
	hashed, err := HashPassword("s3cret")
	if err != nil {
		t.Fatalf("HashPassword() error = %v", err)
	}
	if err := VerifyPassword(hashed, "s3cret"); err != nil {
		t.Fatalf("VerifyPassword() error = %v", err)
	}
	if err := VerifyPassword(hashed, "wrong"); !errors.Is(err, ErrPasswordMismatch) {
		t.Fatalf("VerifyPassword(wrong) error = %v, want ErrPasswordMismatch", err)
	}
}
