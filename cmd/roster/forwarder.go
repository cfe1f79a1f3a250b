package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/courtside/roster/internal/config"
	"github.com/courtside/roster/internal/forwarder"
	"github.com/courtside/roster/internal/logging"
	"github.com/courtside/roster/internal/sheets"
)

func newForwarderCommand() *cobra.Command {
	var port int
	cmd := &cobra.Command{
		Use:   "forwarder",
		Short: "Run the Google Sheets forwarder that appends exported rows.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runForwarder(cmd.Context(), port)
		},
	}
	cmd.Flags().IntVarP(&port, "port", "p", 0, "listen port (defaults to ROSTER_FORWARDER_PORT)")
	return cmd
}

func runForwarder(ctx context.Context, port int) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if port == 0 {
		port = cfg.ForwarderPort()
	}

	logger := logging.WithComponent(logging.NewLogger(cfg.LogLevel()), "forwarder")

	appender, err := sheets.NewGoogleAppender(ctx, cfg.GoogleCredentialsFile())
	if err != nil {
		return err
	}

	server := forwarder.NewServer(forwarder.Config{
		Port:         port,
		Appender:     appender,
		DefaultSheet: cfg.SheetID(),
		DefaultRange: cfg.SheetRange(),
		Logger:       logger,
	})

	g, gctx := errgroup.WithContext(ctx)
	g.Go(server.Start)
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})
	return g.Wait()
}
