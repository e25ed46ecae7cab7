// Package users implements account administration and self-service
// profile usecases.
package users

import (
	"context"
	"errors"
	"strings"

	"github.com/KIaudius/issues-insights-tracker/internal/apperrors"
	"github.com/KIaudius/issues-insights-tracker/internal/auth"
	"github.com/KIaudius/issues-insights-tracker/internal/domain/rbac"
	"github.com/KIaudius/issues-insights-tracker/internal/ports"
)

const minPasswordLength = 8

type Service struct {
	users ports.UserRepository
}

func NewService(users ports.UserRepository) *Service {
	return &Service{users: users}
}

type CreateUserInput struct {
	Email    string
	Name     string
	Password string
	Role     string
	IsActive *bool
}

type UpdateUserInput struct {
	Name         *string
	Password     *string
	Role         *string
	IsActive     *bool
	ProfileImage *string
}

type ListUsersInput struct {
	Role  string
	Skip  int
	Limit int
}

type UserList struct {
	Users []ports.User
	Total int64
}

func (s *Service) ListUsers(ctx context.Context, actor auth.Identity, input ListUsersInput) (UserList, error) {
	if err := checkCtx(ctx); err != nil {
		return UserList{}, err
	}
	if err := rbac.Decide(actor.Role, rbac.ActionUserList, false); err != nil {
		return UserList{}, forbidden(err)
	}

	filter := ports.UserFilter{Skip: input.Skip, Limit: input.Limit}
	if filter.Skip < 0 {
		filter.Skip = 0
	}
	if filter.Limit <= 0 || filter.Limit > 500 {
		filter.Limit = 100
	}
	if input.Role != "" {
		role, err := rbac.ParseRole(input.Role)
		if err != nil {
			return UserList{}, apperrors.Newf(apperrors.KindValidation, "invalid role %q", input.Role)
		}
		filter.Role = role
	}

	users, total, err := s.users.ListUsers(ctx, filter)
	if err != nil {
		return UserList{}, err
	}
	return UserList{Users: users, Total: total}, nil
}

func (s *Service) CreateUser(ctx context.Context, actor auth.Identity, input CreateUserInput) (ports.User, error) {
	if err := checkCtx(ctx); err != nil {
		return ports.User{}, err
	}
	if err := rbac.Decide(actor.Role, rbac.ActionUserCreate, false); err != nil {
		return ports.User{}, forbidden(err)
	}

	email := strings.ToLower(strings.TrimSpace(input.Email))
	if email == "" || !strings.Contains(email, "@") {
		return ports.User{}, apperrors.New(apperrors.KindValidation, "a valid email is required")
	}
	if len(input.Password) < minPasswordLength {
		return ports.User{}, apperrors.Newf(apperrors.KindValidation, "password shorter than %d characters", minPasswordLength)
	}

	role := rbac.RoleReporter
	if input.Role != "" {
		parsed, err := rbac.ParseRole(input.Role)
		if err != nil {
			return ports.User{}, apperrors.Newf(apperrors.KindValidation, "invalid role %q", input.Role)
		}
		role = parsed
	}

	hashed, err := auth.HashPassword(input.Password)
	if err != nil {
		return ports.User{}, err
	}

	active := true
	if input.IsActive != nil {
		active = *input.IsActive
	}

	return s.users.CreateUser(ctx, ports.User{
		Email:          email,
		Name:           strings.TrimSpace(input.Name),
		HashedPassword: hashed,
		Role:           role,
		IsActive:       active,
	})
}

func (s *Service) GetUser(ctx context.Context, actor auth.Identity, userID uint64) (ports.User, error) {
	if err := checkCtx(ctx); err != nil {
		return ports.User{}, err
	}
	// Reading your own account is always allowed; anyone else's needs Admin.
	if actor.UserID != userID {
		if err := rbac.Decide(actor.Role, rbac.ActionUserRead, false); err != nil {
			return ports.User{}, forbidden(err)
		}
	}
	return s.users.GetUser(ctx, userID)
}

// UpdateUser edits an account. Admins edit anyone; everyone else only
// their own profile fields. Nobody changes their own role, and role or
// activation changes always need Admin.
func (s *Service) UpdateUser(ctx context.Context, actor auth.Identity, userID uint64, input UpdateUserInput) (ports.User, error) {
	if err := checkCtx(ctx); err != nil {
		return ports.User{}, err
	}
	if err := rbac.Decide(actor.Role, rbac.ActionUserUpdate, actor.UserID == userID); err != nil {
		return ports.User{}, forbidden(err)
	}

	update := ports.UserUpdate{
		ProfileImage: input.ProfileImage,
	}
	if input.Name != nil {
		name := strings.TrimSpace(*input.Name)
		if name == "" {
			return ports.User{}, apperrors.New(apperrors.KindValidation, "name is required")
		}
		update.Name = &name
	}
	if input.Password != nil {
		if len(*input.Password) < minPasswordLength {
			return ports.User{}, apperrors.Newf(apperrors.KindValidation, "password shorter than %d characters", minPasswordLength)
		}
		hashed, err := auth.HashPassword(*input.Password)
		if err != nil {
			return ports.User{}, err
		}
		update.HashedPassword = &hashed
	}
	if input.Role != nil {
		if !actor.Role.Satisfies(rbac.RoleAdmin) {
			return ports.User{}, apperrors.New(apperrors.KindForbidden, "not enough permissions to change roles")
		}
		if actor.UserID == userID {
			return ports.User{}, apperrors.New(apperrors.KindValidation, "cannot change your own role")
		}
		role, err := rbac.ParseRole(*input.Role)
		if err != nil {
			return ports.User{}, apperrors.Newf(apperrors.KindValidation, "invalid role %q", *input.Role)
		}
		update.Role = &role
	}
	if input.IsActive != nil {
		if !actor.Role.Satisfies(rbac.RoleAdmin) {
			return ports.User{}, apperrors.New(apperrors.KindForbidden, "not enough permissions to change activation")
		}
		if actor.UserID == userID && !*input.IsActive {
			return ports.User{}, apperrors.New(apperrors.KindValidation, "cannot deactivate your own account")
		}
		update.IsActive = input.IsActive
	}

	return s.users.UpdateUser(ctx, userID, update)
}

func (s *Service) DeleteUser(ctx context.Context, actor auth.Identity, userID uint64) error {
	if err := checkCtx(ctx); err != nil {
		return err
	}
	if err := rbac.Decide(actor.Role, rbac.ActionUserDelete, false); err != nil {
		return forbidden(err)
	}
	if actor.UserID == userID {
		return apperrors.New(apperrors.KindValidation, "cannot delete your own account")
	}
	return s.users.DeleteUser(ctx, userID)
}

func forbidden(err error) error {
	if errors.Is(err, rbac.ErrForbidden) {
		return apperrors.New(apperrors.KindForbidden, "not enough permissions")
	}
	return err
}

func checkCtx(ctx context.Context) error {
	if ctx == nil {
		return errors.New("context is required")
	}
	return ctx.Err()
}
