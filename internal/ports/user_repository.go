package ports

import (
	"context"
	"time"

	"github.com/KIaudius/issues-insights-tracker/internal/domain/rbac"
)

// User is the persistence-facing shape of an account.
type User struct {
	UserID         uint64
	Email          string
	Name           string
	HashedPassword string
	Role           rbac.Role
	IsActive       bool
	IsOAuthUser    bool
	OAuthProvider  string
	ProfileImage   string
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

type UserFilter struct {
	Role  rbac.Role
	Skip  int
	Limit int
}

// UserUpdate carries the mutable account fields; nil means "leave as is".
type UserUpdate struct {
	Name           *string
	HashedPassword *string
	Role           *rbac.Role
	IsActive       *bool
	ProfileImage   *string
}

type UserRepository interface {
	CreateUser(ctx context.Context, user User) (User, error)
	GetUser(ctx context.Context, userID uint64) (User, error)
	GetUserByEmail(ctx context.Context, email string) (User, error)
	ListUsers(ctx context.Context, filter UserFilter) ([]User, int64, error)
	UpdateUser(ctx context.Context, userID uint64, update UserUpdate) (User, error)
	DeleteUser(ctx context.Context, userID uint64) error
}
