package repository

import (
	"context"
	"errors"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/KIaudius/issues-insights-tracker/internal/apperrors"
	"github.com/KIaudius/issues-insights-tracker/internal/domain/rbac"
	"github.com/KIaudius/issues-insights-tracker/internal/errs"
	"github.com/KIaudius/issues-insights-tracker/internal/infrastructure/persistence/sqlite/model"
	"github.com/KIaudius/issues-insights-tracker/internal/ports"
)

type UserRepository struct {
	db *gorm.DB
}

var _ ports.UserRepository = (*UserRepository)(nil)

func NewUserRepository(db *gorm.DB) *UserRepository {
	return &UserRepository{db: db}
}

func (r *UserRepository) CreateUser(ctx context.Context, user ports.User) (ports.User, error) {
	db, err := dbFromContext(ctx, r.db)
	if err != nil {
		return ports.User{}, err
	}

	now := time.Now().UTC()
	row := model.User{
		Email:          strings.ToLower(strings.TrimSpace(user.Email)),
		Name:           user.Name,
		HashedPassword: user.HashedPassword,
		Role:           string(user.Role),
		IsActive:       user.IsActive,
		IsOAuthUser:    user.IsOAuthUser,
		OAuthProvider:  user.OAuthProvider,
		ProfileImage:   user.ProfileImage,
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	if err := db.Create(&row).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) || isUniqueViolation(err) {
			return ports.User{}, apperrors.Newf(apperrors.KindConflict, "user with email %s already exists", row.Email)
		}
		return ports.User{}, errs.Wrap(err, "insert user")
	}
	return mapUser(row), nil
}

func (r *UserRepository) GetUser(ctx context.Context, userID uint64) (ports.User, error) {
	db, err := dbFromContext(ctx, r.db)
	if err != nil {
		return ports.User{}, err
	}

	var row model.User
	if err := db.Where("user_id = ?", userID).Take(&row).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ports.User{}, apperrors.Newf(apperrors.KindNotFound, "user %d not found", userID)
		}
		return ports.User{}, errs.Wrap(err, "query user by id")
	}
	return mapUser(row), nil
}

func (r *UserRepository) GetUserByEmail(ctx context.Context, email string) (ports.User, error) {
	db, err := dbFromContext(ctx, r.db)
	if err != nil {
		return ports.User{}, err
	}

	var row model.User
	if err := db.Where("email = ?", strings.ToLower(strings.TrimSpace(email))).Take(&row).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ports.User{}, apperrors.Newf(apperrors.KindNotFound, "user %s not found", email)
		}
		return ports.User{}, errs.Wrap(err, "query user by email")
	}
	return mapUser(row), nil
}

func (r *UserRepository) ListUsers(ctx context.Context, filter ports.UserFilter) ([]ports.User, int64, error) {
	db, err := dbFromContext(ctx, r.db)
	if err != nil {
		return nil, 0, err
	}

	query := db.Model(&model.User{})
	if filter.Role != "" {
		query = query.Where("role = ?", string(filter.Role))
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, errs.Wrap(err, "count users")
	}

	if filter.Skip > 0 {
		query = query.Offset(filter.Skip)
	}
	if filter.Limit > 0 {
		query = query.Limit(filter.Limit)
	}

	var rows []model.User
	if err := query.Order("user_id asc").Find(&rows).Error; err != nil {
		return nil, 0, errs.Wrap(err, "query users")
	}

	users := make([]ports.User, 0, len(rows))
	for _, row := range rows {
		users = append(users, mapUser(row))
	}
	return users, total, nil
}

func (r *UserRepository) UpdateUser(ctx context.Context, userID uint64, update ports.UserUpdate) (ports.User, error) {
	db, err := dbFromContext(ctx, r.db)
	if err != nil {
		return ports.User{}, err
	}

	values := map[string]any{"updated_at": time.Now().UTC()}
	if update.Name != nil {
		values["name"] = *update.Name
	}
	if update.HashedPassword != nil {
		values["hashed_password"] = *update.HashedPassword
	}
	if update.Role != nil {
		values["role"] = string(*update.Role)
	}
	if update.IsActive != nil {
		values["is_active"] = *update.IsActive
	}
	if update.ProfileImage != nil {
		values["profile_image"] = *update.ProfileImage
	}

	res := db.Model(&model.User{}).Where("user_id = ?", userID).Updates(values)
	if res.Error != nil {
		return ports.User{}, errs.Wrap(res.Error, "update user")
	}
	if res.RowsAffected == 0 {
		return ports.User{}, apperrors.Newf(apperrors.KindNotFound, "user %d not found", userID)
	}

	return r.GetUser(ctx, userID)
}

func (r *UserRepository) DeleteUser(ctx context.Context, userID uint64) error {
	db, err := dbFromContext(ctx, r.db)
	if err != nil {
		return err
	}

	res := db.Where("user_id = ?", userID).Delete(&model.User{})
	if res.Error != nil {
		return errs.Wrap(res.Error, "delete user")
	}
	if res.RowsAffected == 0 {
		return apperrors.Newf(apperrors.KindNotFound, "user %d not found", userID)
	}
	return nil
}

func mapUser(row model.User) ports.User {
	return ports.User{
		UserID:         row.UserID,
		Email:          row.Email,
		Name:           row.Name,
		HashedPassword: row.HashedPassword,
		Role:           rbac.Role(row.Role),
		IsActive:       row.IsActive,
		IsOAuthUser:    row.IsOAuthUser,
		OAuthProvider:  row.OAuthProvider,
		ProfileImage:   row.ProfileImage,
		CreatedAt:      row.CreatedAt,
		UpdatedAt:      row.UpdatedAt,
	}
}

func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	return strings.Contains(strings.ToLower(err.Error()), "unique")
}
