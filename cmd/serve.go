package cmd

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"
	"github.com/thoughtnest/thoughtnest/internal/api"
	"github.com/thoughtnest/thoughtnest/internal/blog"
	"github.com/thoughtnest/thoughtnest/internal/database"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the ThoughtNest server",
	Long:  `Start the ThoughtNest HTTP server together with the background jobs that refresh the dashboard and resync the site settings.`,
	Example: `thoughtnest serve --config config.yml
thoughtnest serve -c /path/to/config.yml --log-level debug
`,
	RunE: startServer,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func startServer(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	db, err := database.New(cfg.Database)
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	defer db.Close() //nolint:errcheck

	ctx, cancel := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	svc, err := blog.New(cfg, db)
	if err != nil {
		return fmt.Errorf("failed to create blog service: %w", err)
	}
	if err := svc.Init(ctx); err != nil {
		return err
	}
	if err := svc.Run(); err != nil {
		return fmt.Errorf("failed to start background jobs: %w", err)
	}
	defer func() {
		if err := svc.Close(); err != nil {
			log.Error("failed to stop scheduler", "error", err)
		}
	}()

	server, err := api.New(cfg, svc)
	if err != nil {
		return fmt.Errorf("failed to create API server: %w", err)
	}

	log.Info("thoughtnest started successfully", "listen", cfg.Listen)
	if err := server.Run(ctx); err != nil {
		return fmt.Errorf("API server error: %w", err)
	}
	log.Info("shut down gracefully")
	return nil
}

// openService opens the database and the blog service for one-shot commands.
func openService(ctx context.Context) (*blog.Service, func(), error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load config: %w", err)
	}
	db, err := database.New(cfg.Database)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to initialize database: %w", err)
	}
	svc, err := blog.New(cfg, db)
	if err != nil {
		_ = db.Close()
		return nil, nil, fmt.Errorf("failed to create blog service: %w", err)
	}
	if err := svc.Init(ctx); err != nil {
		_ = db.Close()
		return nil, nil, err
	}
	return svc, func() { _ = db.Close() }, nil
}
