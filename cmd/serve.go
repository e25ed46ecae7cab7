/*
Copyright © 2026 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"context"
	"log/slog"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/fx"

	"github.com/KIaudius/issues-insights-tracker/internal/bootstrap"
	"github.com/KIaudius/issues-insights-tracker/internal/bootstrap/logging"
	"github.com/KIaudius/issues-insights-tracker/internal/errs"
)

// serveCmd represents the serve command
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API, websocket hub and stats scheduler",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := logging.WithAttrs(
			cmd.Context(),
			slog.String("command", cmd.CommandPath()),
			slog.String("config_file", cfgFile),
		)

		fxApp := fx.New(
			bootstrap.ServerModule,
			fx.Provide(func() context.Context { return ctx }),
			fx.Provide(
				fx.Annotate(
					func() string { return cfgFile },
					fx.ResultTags(`name:"configFile"`),
				),
			),
			fx.NopLogger,
		)

		startCtx, cancelStart := context.WithTimeout(ctx, 30*time.Second)
		defer cancelStart()
		if err := fxApp.Start(startCtx); err != nil {
			logging.Error(ctx, "start server failed", slog.Any("err", errs.Loggable(err)))
			return errs.Wrap(err, "start fx application")
		}

		// Blocks until SIGINT/SIGTERM or an fx shutdown signal.
		sig := <-fxApp.Wait()
		logging.Info(ctx, "shutdown signal received", slog.String("signal", sig.Signal.String()))

		stopCtx, cancelStop := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancelStop()
		if err := fxApp.Stop(stopCtx); err != nil {
			logging.Error(ctx, "graceful shutdown failed", slog.Any("err", errs.Loggable(err)))
			return errs.Wrap(err, "stop fx application")
		}

		logging.Info(ctx, "server stopped")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
}
