package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/courtside/roster/internal/api"
	"github.com/courtside/roster/internal/config"
	"github.com/courtside/roster/internal/db"
	"github.com/courtside/roster/internal/logging"
	"github.com/courtside/roster/internal/roster"
	"github.com/courtside/roster/internal/session"
	"github.com/courtside/roster/internal/sheets"
	"github.com/courtside/roster/internal/storage"
	"github.com/courtside/roster/internal/upload"
)

const shutdownTimeout = 10 * time.Second

func newServeCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the roster API server.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return serve(cmd.Context())
		},
	}
}

func serve(ctx context.Context) error {
	startTime := time.Now()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	if err := os.MkdirAll(cfg.DataDir(), 0755); err != nil {
		return fmt.Errorf("failed to create data dir: %w", err)
	}

	logger := logging.NewLogger(cfg.LogLevel())
	logger.Info("starting roster server",
		"version", config.Version,
		"data_dir", cfg.DataDir(),
		"db_driver", cfg.DBDriver(),
		"storage", cfg.Storage(),
	)

	database, err := db.Open(ctx, cfg.DBDriver(), cfg.DatabaseURL(), logger)
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	defer database.Close()

	repo := roster.NewRepository(database)
	svc := roster.NewService(repo, logging.WithComponent(logger, "roster"))

	store, media, err := openStore(ctx, cfg, logger)
	if err != nil {
		return err
	}

	sessions, err := session.NewManager(cfg.SessionSecret(), cfg.SessionTTL(), cfg.CoachPasswordHash(), cfg.AdminPasswordHash())
	if err != nil {
		return fmt.Errorf("failed to create session manager: %w", err)
	}
	if cfg.SessionSecret() == "" {
		logger.Warn("no session secret configured; sessions will not survive a restart")
	}
	if cfg.CoachPasswordHash() == "" || cfg.AdminPasswordHash() == "" {
		logger.Warn("coach or admin password not configured; that role cannot sign in")
	}

	if cfg.SheetsURL() == "" {
		logger.Info("google sheets export disabled", "env", config.EnvSheetsURL)
	}
	exporter := sheets.New(cfg.SheetsURL(), cfg.SheetID(), cfg.SheetRange(), logging.WithComponent(logger, "sheets"))

	opts := upload.DefaultOptions()
	opts.ProgressInterval = cfg.ProgressInterval()
	opts.StallAfter = cfg.StallTimeout()
	opts.RequestTimeout = cfg.RequestTimeout()
	uploads := upload.NewRegistry(store, repo, repo, opts, logger)

	sweeper := upload.NewSweeper(store, repo, logging.WithComponent(logger, "sweeper"))

	apiServer := api.NewServer(api.ServerConfig{
		Port:           cfg.Port(),
		Service:        svc,
		Uploads:        uploads,
		Sessions:       sessions,
		Sheets:         exporter,
		Media:          media,
		AllowedOrigins: cfg.AllowedOrigins(),
		Logger:         logger,
		StartTime:      startTime,
		Version:        config.Version,
	})

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		sweeper.Start(gctx)
		return nil
	})
	g.Go(apiServer.Start)
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("initiating graceful shutdown")
		uploads.CancelAll()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := apiServer.Shutdown(shutdownCtx); err != nil {
			logger.Error("failed to shutdown HTTP server", "error", err)
		}
		return nil
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	logger.Info("shutdown complete")
	return nil
}

// openStore builds the configured object store. The media handler is only
// set for local storage, where the API serves the files itself.
func openStore(ctx context.Context, cfg *config.EnvConfig, logger *slog.Logger) (storage.Store, http.Handler, error) {
	storeLogger := logging.WithComponent(logger, "storage")

	if cfg.Storage() == "s3" {
		s3cfg := cfg.S3()
		store, err := storage.NewS3Store(ctx, storage.S3Options{
			Bucket:    s3cfg.Bucket,
			Region:    s3cfg.Region,
			Endpoint:  s3cfg.Endpoint,
			AccessKey: s3cfg.AccessKey,
			SecretKey: s3cfg.SecretKey,
		}, storeLogger)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to initialize s3 storage: %w", err)
		}
		logger.Info("using s3 storage", "bucket", s3cfg.Bucket, "endpoint", s3cfg.Endpoint)
		return store, nil, nil
	}

	local, err := storage.NewLocalStore(cfg.MediaDir(), cfg.PublicBaseURL(), storeLogger)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to initialize local storage: %w", err)
	}
	logger.Info("using local storage", "dir", cfg.MediaDir(), "public_base_url", cfg.PublicBaseURL())
	return local, local, nil
}
