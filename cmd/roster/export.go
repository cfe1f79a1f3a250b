package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/courtside/roster/internal/config"
	"github.com/courtside/roster/internal/db"
	"github.com/courtside/roster/internal/export"
	"github.com/courtside/roster/internal/logging"
	"github.com/courtside/roster/internal/roster"
)

func newExportCommand() *cobra.Command {
	var out string
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Write the roster as a CSV file.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			n, err := exportCSV(cmd.Context(), out)
			if err != nil {
				return err
			}
			if n == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "no athletes to export")
				return nil
			}
			fmt.Fprintf(cmd.OutOrStdout(), "wrote %d athletes to %s\n", n, out)
			return nil
		},
	}
	cmd.Flags().StringVarP(&out, "out", "o", export.Filename("athletes", time.Now()), "output CSV path")
	return cmd
}

func exportCSV(ctx context.Context, out string) (int, error) {
	if err := export.ValidateOutputPath(out); err != nil {
		return 0, err
	}

	cfg, err := config.Load()
	if err != nil {
		return 0, fmt.Errorf("failed to load config: %w", err)
	}
	logger := logging.NewLogger(cfg.LogLevel())

	database, err := db.Open(ctx, cfg.DBDriver(), cfg.DatabaseURL(), logger)
	if err != nil {
		return 0, fmt.Errorf("failed to initialize database: %w", err)
	}
	defer database.Close()

	athletes, err := roster.NewService(roster.NewRepository(database), logger).List(ctx, "")
	if err != nil {
		return 0, fmt.Errorf("failed to list athletes: %w", err)
	}
	if len(athletes) == 0 {
		return 0, nil
	}

	f, err := os.Create(out)
	if err != nil {
		return 0, fmt.Errorf("failed to create %s: %w", out, err)
	}
	n, err := export.WriteCSV(f, athletes)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	return n, err
}
