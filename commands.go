package main

import (
	"context"
	"fmt"
	"path/filepath"

	"learnhub_backend/internal/app"
	"learnhub_backend/internal/config"
	"learnhub_backend/pkg/configwatcher"
	"learnhub_backend/pkg/database"
	"learnhub_backend/pkg/logger"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var configDir string

var rootCmd = &cobra.Command{
	Use:   "learnhub",
	Short: "LearnHub backend server",
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP server",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.LoadConfig(configDir)
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		cfg.ForceMigrate, _ = cmd.Flags().GetBool("migrate")

		application, err := app.NewApp(cfg)
		if err != nil {
			return fmt.Errorf("init app: %w", err)
		}

		watch, _ := cmd.Flags().GetBool("watch")
		if watch {
			ctx, cancel := context.WithCancel(context.Background())
			defer cancel()
			w := configwatcher.New(filepath.Join(configDir, "config.yaml"), application.ReloadConfig)
			go func() {
				if err := w.Run(ctx); err != nil {
					logger.Log.Error("config watcher stopped", zap.Error(err))
				}
			}()
		}

		return application.Run()
	},
}

// migrateCmd 只执行数据库迁移，完成后退出
var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Run database migrations and exit",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.LoadConfig(configDir)
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		logger.InitLogger(cfg)
		defer logger.Sync()

		db, err := database.InitDB(&cfg.Database)
		if err != nil {
			return fmt.Errorf("db connect: %w", err)
		}
		if err := database.Migrate(db); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
		logger.Log.Info("数据库迁移完成")
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configDir, "config", "configs", "directory containing config.yaml")

	serveCmd.Flags().Bool("migrate", false, "run migrations on startup even in release mode")
	serveCmd.Flags().Bool("watch", true, "reload config.yaml on change")

	rootCmd.AddCommand(serveCmd, migrateCmd)
}
