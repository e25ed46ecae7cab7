/*
Copyright © 2026 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/KIaudius/issues-insights-tracker/internal/apperrors"
	"github.com/KIaudius/issues-insights-tracker/internal/auth"
	"github.com/KIaudius/issues-insights-tracker/internal/bootstrap/logging"
	"github.com/KIaudius/issues-insights-tracker/internal/domain/rbac"
	"github.com/KIaudius/issues-insights-tracker/internal/errs"
	"github.com/KIaudius/issues-insights-tracker/internal/ports"
)

// initDbCmd represents the initDb command
var initDbCmd = &cobra.Command{
	Use:   "init-db",
	Short: "Initialize database schema and seed the first admin",
	RunE: withApp(func(cmd *cobra.Command, deps appDeps) error {
		ctx := logging.WithAttrs(cmd.Context(), slog.String("command", cmd.CommandPath()))
		logging.Info(ctx, "start init-db")

		if err := deps.App.InitSchema(ctx); err != nil {
			logging.Error(ctx, "initialize schema failed", slog.Any("err", errs.Loggable(err)))
			return errs.Wrap(err, "initialize schema")
		}

		adminEmail, _ := cmd.Flags().GetString("admin-email")
		adminPassword, _ := cmd.Flags().GetString("admin-password")
		if adminEmail != "" {
			if err := seedAdmin(cmd, deps.Users, adminEmail, adminPassword); err != nil {
				return errs.Wrap(err, "seed admin")
			}
		}

		logging.Info(ctx, "init-db finished", slog.String("database_dsn", deps.App.Config.Database.DSN))
		if _, err := fmt.Fprintf(cmd.OutOrStdout(), "database schema initialized: %s\n", deps.App.Config.Database.DSN); err != nil {
			return errs.Wrap(err, "write init-db output")
		}
		return nil
	}),
}

// seedAdmin creates the bootstrap admin account, or leaves an existing
// one alone so init-db stays safe to re-run.
func seedAdmin(cmd *cobra.Command, users ports.UserRepository, email, password string) error {
	ctx := cmd.Context()

	if _, err := users.GetUserByEmail(ctx, email); err == nil {
		logging.Info(ctx, "admin account already exists", slog.String("email", email))
		return nil
	} else if !apperrors.IsKind(err, apperrors.KindNotFound) {
		return err
	}

	if len(password) < 8 {
		return fmt.Errorf("admin password must be at least 8 characters")
	}
	hashed, err := auth.HashPassword(password)
	if err != nil {
		return err
	}

	created, err := users.CreateUser(ctx, ports.User{
		Email:          email,
		Name:           "Administrator",
		HashedPassword: hashed,
		Role:           rbac.RoleAdmin,
		IsActive:       true,
	})
	if err != nil {
		return err
	}

	logging.Info(ctx, "admin account created",
		slog.String("email", created.Email),
		slog.Uint64("user_id", created.UserID),
	)
	return nil
}

func init() {
	rootCmd.AddCommand(initDbCmd)

	initDbCmd.Flags().String("admin-email", "", "Email for the bootstrap admin account")
	initDbCmd.Flags().String("admin-password", "", "Password for the bootstrap admin account")
}
