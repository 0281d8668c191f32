package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/Abdullah-z/instaBook-Server/internal/cleanup"
	"github.com/Abdullah-z/instaBook-Server/internal/config"
	"github.com/Abdullah-z/instaBook-Server/internal/database"
	"github.com/Abdullah-z/instaBook-Server/internal/logger"
	"github.com/Abdullah-z/instaBook-Server/internal/marketplace"
	"github.com/Abdullah-z/instaBook-Server/internal/models"
	"github.com/Abdullah-z/instaBook-Server/internal/push"
	"github.com/Abdullah-z/instaBook-Server/internal/storage"
)

var cfg *config.Config

var rootCmd = &cobra.Command{
	Use:   "instabook-admin",
	Short: "instaBook admin CLI - run engine passes and maintenance tasks",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		cfg = config.Load()
		if err := logger.Initialize(cfg.LogLevel, cfg.LogFile); err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}
		if err := database.Initialize(cfg.DatabaseURL); err != nil {
			return fmt.Errorf("failed to initialize database: %w", err)
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		database.Close()
		logger.Close()
	},
}

var settleCmd = &cobra.Command{
	Use:   "settle",
	Short: "Run one auction settlement pass and exit",
	RunE: func(cmd *cobra.Command, args []string) error {
		notifier := push.NewExpoClient(cfg.ExpoPushURL)
		engine := marketplace.NewEngine(database.DB, notifier, cfg.RetentionWindow)

		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
		defer cancel()

		if err := engine.SettleExpiredAuctions(ctx, time.Now()); err != nil {
			return err
		}
		logger.Log.Info("Settlement pass complete")
		return nil
	},
}

var sweepCmd = &cobra.Command{
	Use:   "sweep",
	Short: "Run one expiry cleanup sweep and exit",
	RunE: func(cmd *cobra.Command, args []string) error {
		var media storage.MediaStore
		if cfg.AWSBucket != "" {
			store, err := storage.NewS3Store(cfg.AWSRegion, cfg.AWSBucket, cfg.CDNBaseURL)
			if err != nil {
				logger.Log.Warn("S3 unavailable, sweeping records only", zap.Error(err))
			} else {
				media = store
			}
		}

		service := cleanup.NewService(database.DB, media, cfg.CleanupInterval)

		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
		defer cancel()

		service.Sweep(ctx, time.Now())
		logger.Log.Info("Cleanup sweep complete")
		return nil
	},
}

var promoteCmd = &cobra.Command{
	Use:   "promote-admin <email>",
	Short: "Grant admin rights to a user by email",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		result := database.DB.Model(&models.User{}).
			Where("email = ?", args[0]).
			Update("is_admin", true)
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return fmt.Errorf("no user with email %s", args[0])
		}
		fmt.Printf("Promoted %s to admin\n", args[0])
		return nil
	},
}

func init() {
	rootCmd.AddCommand(settleCmd)
	rootCmd.AddCommand(sweepCmd)
	rootCmd.AddCommand(promoteCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
