package users

import (
	"context"
	"path/filepath"
	"testing"

	gormsqlite "github.com/glebarez/sqlite"
	"gorm.io/gorm"

	"github.com/KIaudius/issues-insights-tracker/internal/apperrors"
	"github.com/KIaudius/issues-insights-tracker/internal/auth"
	"github.com/KIaudius/issues-insights-tracker/internal/domain/rbac"
	"github.com/KIaudius/issues-insights-tracker/internal/infrastructure/persistence/sqlite/model"
	sqliterepo "github.com/KIaudius/issues-insights-tracker/internal/infrastructure/persistence/sqlite/repository"
	"github.com/KIaudius/issues-insights-tracker/internal/ports"
)

func setupService(t *testing.T) (*Service, ports.UserRepository) {
	t.Helper()

	dsn := filepath.Join(t.TempDir(), "users_test.db")
	db, err := gorm.Open(gormsqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := db.AutoMigrate(&model.User{}); err != nil {
		t.Fatalf("auto migrate: %v", err)
	}

	repo := sqliterepo.NewUserRepository(db)
	return NewService(repo), repo
}

func seedUser(t *testing.T, repo ports.UserRepository, email string, role rbac.Role) auth.Identity {
	t.Helper()

	created, err := repo.CreateUser(context.Background(), ports.User{
		Email:          email,
		Name:           email,
		HashedPassword: "x",
		Role:           role,
		IsActive:       true,
	})
	if err != nil {
		t.Fatalf("seed user: %v", err)
	}
	return auth.Identity{UserID: created.UserID, Email: created.Email, Role: created.Role}
}

func TestCreateUser(t *testing.T) {
	svc, repo := setupService(t)
	ctx := context.Background()
	admin := seedUser(t, repo, "admin@example.com", rbac.RoleAdmin)
	reporter := seedUser(t, repo, "reporter@example.com", rbac.RoleReporter)

	created, err := svc.CreateUser(ctx, admin, CreateUserInput{
		Email:    " New.User@Example.COM ",
		Name:     "New User",
		Password: "supersecret",
		Role:     "MAINTAINER",
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if created.Email != "new.user@example.com" {
		t.Fatalf("email not normalized: %q", created.Email)
	}
	if created.Role != rbac.RoleMaintainer {
		t.Fatalf("role = %s", created.Role)
	}
	if created.HashedPassword == "supersecret" {
		t.Fatal("password stored in clear")
	}

	if _, err := svc.CreateUser(ctx, reporter, CreateUserInput{
		Email: "x@example.com", Password: "supersecret",
	}); !apperrors.IsKind(err, apperrors.KindForbidden) {
		t.Fatalf("non-admin create err = %v, want forbidden", err)
	}

	if _, err := svc.CreateUser(ctx, admin, CreateUserInput{
		Email: "short@example.com", Password: "short",
	}); !apperrors.IsKind(err, apperrors.KindValidation) {
		t.Fatalf("short password err = %v, want validation", err)
	}

	if _, err := svc.CreateUser(ctx, admin, CreateUserInput{
		Email: "new.user@example.com", Password: "supersecret",
	}); !apperrors.IsKind(err, apperrors.KindConflict) {
		t.Fatalf("duplicate email err = %v, want conflict", err)
	}
}

func TestGetUserSelfOrAdmin(t *testing.T) {
	svc, repo := setupService(t)
	ctx := context.Background()
	admin := seedUser(t, repo, "admin@example.com", rbac.RoleAdmin)
	alice := seedUser(t, repo, "alice@example.com", rbac.RoleReporter)
	bob := seedUser(t, repo, "bob@example.com", rbac.RoleReporter)

	if _, err := svc.GetUser(ctx, alice, alice.UserID); err != nil {
		t.Fatalf("self read: %v", err)
	}
	if _, err := svc.GetUser(ctx, admin, alice.UserID); err != nil {
		t.Fatalf("admin read: %v", err)
	}
	if _, err := svc.GetUser(ctx, alice, bob.UserID); !apperrors.IsKind(err, apperrors.KindForbidden) {
		t.Fatalf("foreign read err = %v, want forbidden", err)
	}
}

func TestUpdateUserGuards(t *testing.T) {
	svc, repo := setupService(t)
	ctx := context.Background()
	admin := seedUser(t, repo, "admin@example.com", rbac.RoleAdmin)
	alice := seedUser(t, repo, "alice@example.com", rbac.RoleReporter)

	name := "Alice A."
	updated, err := svc.UpdateUser(ctx, alice, alice.UserID, UpdateUserInput{Name: &name})
	if err != nil {
		t.Fatalf("self profile update: %v", err)
	}
	if updated.Name != name {
		t.Fatalf("name = %q", updated.Name)
	}

	role := "ADMIN"
	if _, err := svc.UpdateUser(ctx, alice, alice.UserID, UpdateUserInput{Role: &role}); !apperrors.IsKind(err, apperrors.KindForbidden) {
		t.Fatalf("reporter self promotion err = %v, want forbidden", err)
	}
	if _, err := svc.UpdateUser(ctx, admin, admin.UserID, UpdateUserInput{Role: &role}); !apperrors.IsKind(err, apperrors.KindValidation) {
		t.Fatalf("admin self role change err = %v, want validation", err)
	}

	maintainer := "MAINTAINER"
	updated, err = svc.UpdateUser(ctx, admin, alice.UserID, UpdateUserInput{Role: &maintainer})
	if err != nil {
		t.Fatalf("admin promotes: %v", err)
	}
	if updated.Role != rbac.RoleMaintainer {
		t.Fatalf("role = %s", updated.Role)
	}

	inactive := false
	if _, err := svc.UpdateUser(ctx, admin, admin.UserID, UpdateUserInput{IsActive: &inactive}); !apperrors.IsKind(err, apperrors.KindValidation) {
		t.Fatalf("self deactivation err = %v, want validation", err)
	}
	if _, err := svc.UpdateUser(ctx, admin, alice.UserID, UpdateUserInput{IsActive: &inactive}); err != nil {
		t.Fatalf("admin deactivates: %v", err)
	}
}

func TestDeleteUserGuards(t *testing.T) {
	svc, repo := setupService(t)
	ctx := context.Background()
	admin := seedUser(t, repo, "admin@example.com", rbac.RoleAdmin)
	alice := seedUser(t, repo, "alice@example.com", rbac.RoleReporter)

	if err := svc.DeleteUser(ctx, alice, admin.UserID); !apperrors.IsKind(err, apperrors.KindForbidden) {
		t.Fatalf("non-admin delete err = %v, want forbidden", err)
	}
	if err := svc.DeleteUser(ctx, admin, admin.UserID); !apperrors.IsKind(err, apperrors.KindValidation) {
		t.Fatalf("self delete err = %v, want validation", err)
	}
	if err := svc.DeleteUser(ctx, admin, alice.UserID); err != nil {
		t.Fatalf("admin delete: %v", err)
	}
	if _, err := svc.GetUser(ctx, admin, alice.UserID); !apperrors.IsKind(err, apperrors.KindNotFound) {
		t.Fatalf("get after delete err = %v, want not found", err)
	}
}

func TestListUsersAdminOnly(t *testing.T) {
	svc, repo := setupService(t)
	ctx := context.Background()
	admin := seedUser(t, repo, "admin@example.com", rbac.RoleAdmin)
	seedUser(t, repo, "alice@example.com", rbac.RoleReporter)
	reporter := seedUser(t, repo, "bob@example.com", rbac.RoleReporter)

	if _, err := svc.ListUsers(ctx, reporter, ListUsersInput{}); !apperrors.IsKind(err, apperrors.KindForbidden) {
		t.Fatalf("non-admin list err = %v, want forbidden", err)
	}

	list, err := svc.ListUsers(ctx, admin, ListUsersInput{})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if list.Total != 3 {
		t.Fatalf("total = %d, want 3", list.Total)
	}

	list, err = svc.ListUsers(ctx, admin, ListUsersInput{Role: "REPORTER"})
	if err != nil {
		t.Fatalf("filtered list: %v", err)
	}
	if list.Total != 2 {
		t.Fatalf("reporter total = %d, want 2", list.Total)
	}
}
