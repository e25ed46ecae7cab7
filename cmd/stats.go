/*
Copyright © 2026 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/spf13/cobra"

	"github.com/KIaudius/issues-insights-tracker/internal/bootstrap/logging"
	"github.com/KIaudius/issues-insights-tracker/internal/errs"
)

// statsCmd represents the stats command group
var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Daily statistics commands",
}

var statsRecomputeCmd = &cobra.Command{
	Use:   "recompute",
	Short: "Recompute the daily stats row for one date",
	RunE: withApp(func(cmd *cobra.Command, deps appDeps) error {
		ctx := logging.WithAttrs(cmd.Context(), slog.String("command", cmd.CommandPath()))

		date, _ := cmd.Flags().GetString("date")
		if date == "" {
			date = time.Now().UTC().AddDate(0, 0, -1).Format("2006-01-02")
		}

		row, err := deps.Stats.ComputeDailyStats(ctx, date)
		if err != nil {
			return errs.Wrapf(err, "recompute stats for %s", date)
		}

		if _, err := fmt.Fprintf(cmd.OutOrStdout(),
			"stats recomputed date=%s total=%d new=%d closed=%d avg_resolution_hours=%.2f\n",
			row.Date, row.TotalIssues, row.NewIssues, row.ClosedIssues, row.AvgResolutionHours,
		); err != nil {
			return errs.Wrap(err, "write stats output")
		}
		return nil
	}),
}

func init() {
	rootCmd.AddCommand(statsCmd)
	statsCmd.AddCommand(statsRecomputeCmd)

	statsRecomputeCmd.Flags().String("date", "", "Date to recompute (YYYY-MM-DD, defaults to yesterday)")
}
