package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/yungbote/quest-backend/internal/app"
	"github.com/yungbote/quest-backend/internal/data/db"
	"github.com/yungbote/quest-backend/internal/platform/logger"
)

func main() {
	var configPath string

	root := &cobra.Command{
		Use:           "quest",
		Short:         "Interactive story backend",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if p := strings.TrimSpace(configPath); p != "" {
				return os.Setenv("QUEST_CONFIG_PATH", p)
			}
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return serve(cmd.Context())
		},
	}
	root.PersistentFlags().StringVar(&configPath, "config", "", "path to config.yaml (overrides QUEST_CONFIG_PATH)")

	root.AddCommand(&cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		RunE: func(cmd *cobra.Command, args []string) error {
			return serve(cmd.Context())
		},
	})
	root.AddCommand(&cobra.Command{
		Use:   "migrate",
		Short: "Create or update the database schema and exit",
		RunE: func(cmd *cobra.Command, args []string) error {
			return migrate()
		},
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := root.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "quest: %v\n", err)
		stop()
		os.Exit(1)
	}
}

func newLogger() (*logger.Logger, error) {
	logMode := os.Getenv("LOG_MODE")
	if logMode == "" {
		logMode = "development"
	}
	log, err := logger.New(logMode)
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}
	return log, nil
}

func serve(ctx context.Context) error {
	log, err := newLogger()
	if err != nil {
		return err
	}
	cfg, err := app.LoadConfig(log)
	if err != nil {
		log.Error("Config load failed", "error", err)
		log.Sync()
		return err
	}

	a, err := app.New(ctx, log, cfg)
	if err != nil {
		log.Error("App init failed", "error", err)
		log.Sync()
		return err
	}
	defer a.Close()

	if err := a.Run(ctx); err != nil {
		log.Error("Server stopped with error", "error", err)
		return err
	}
	log.Info("Server stopped")
	return nil
}

func migrate() error {
	log, err := newLogger()
	if err != nil {
		return err
	}
	defer log.Sync()

	cfg, err := app.LoadConfig(log)
	if err != nil {
		return err
	}
	svc, err := db.Open(cfg.Database, log)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer svc.Close()

	if err := svc.AutoMigrateAll(); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	log.Info("Migrations applied", "driver", cfg.Database.Driver)
	return nil
}
