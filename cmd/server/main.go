package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/huangang/studyhub/internal/config"
	"github.com/huangang/studyhub/internal/models"
	"github.com/huangang/studyhub/internal/services"
	"github.com/huangang/studyhub/pkg/logger"
	"github.com/spf13/cobra"
)

const programName = "studyhub"

var configFile string

type configKey struct{}

func configFrom(cmd *cobra.Command) *config.Config {
	cfg, _ := cmd.Context().Value(configKey{}).(*config.Config)
	return cfg
}

func serveRun(cfg *config.Config) error {
	svc := bootstrap(cfg)

	gin.SetMode(cfg.Server.Mode)
	r := gin.New()
	stopLimiters := registerRoutes(r, svc)

	addr := cfg.Server.Host + ":" + cfg.Server.Port
	srv := &http.Server{
		Addr:              addr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		logger.Infof("Server starting on %s", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	var serveErr error
	select {
	case <-ctx.Done():
		logger.Info().Msg("Shutting down server")
	case serveErr = <-errCh:
	}

	// SSE streams stay open until the request context is cancelled
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Warn().Err(err).Msg("Server shutdown did not complete")
	}
	stopLimiters()
	svc.shutdown()
	return serveErr
}

func serveCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP server",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return serveRun(configFrom(cmd))
		},
	}
}

func migrateCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create or update the database schema and exit",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg := configFrom(cmd)
			if err := models.InitDB(&cfg.Database, cfg.Server.Mode); err != nil {
				return err
			}
			if err := models.AutoMigrate(); err != nil {
				return fmt.Errorf("migrate: %w", err)
			}
			logger.Info().Str("driver", cfg.Database.Driver).Msg("Database schema is up to date")
			return nil
		},
	}
}

func createAdminCommand() *cobra.Command {
	var email, password string
	cmd := &cobra.Command{
		Use:   "create-admin",
		Short: "Create an administrator account, or promote an existing one",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg := configFrom(cmd)
			db := openDB(cfg)
			auth := services.NewAuthService(db, cfg, services.NewSyncQueue())
			user, err := auth.CreateAdmin(email, password)
			if err != nil {
				return err
			}
			logger.Info().Uint("user_id", user.ID).Str("email", user.Email).Msg("Administrator ready")
			return nil
		},
	}
	cmd.Flags().StringVar(&email, "email", "", "administrator email")
	cmd.Flags().StringVar(&password, "password", "", "administrator password")
	_ = cmd.MarkFlagRequired("email")
	_ = cmd.MarkFlagRequired("password")
	return cmd
}

func main() {
	rootCmd := &cobra.Command{
		Use:          programName,
		Short:        "Study group membership server",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return serveRun(configFrom(cmd))
		},
	}

	rootCmd.PersistentFlags().StringVar(&configFile, "config", os.Getenv("CONFIG_PATH"), "path to config file")

	rootCmd.PersistentPreRunE = func(cmd *cobra.Command, _ []string) error {
		cfg, err := config.Load(configFile)
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}
		logger.Configure(cfg.Log.Level, cfg.Log.Format)
		cmd.SetContext(context.WithValue(cmd.Context(), configKey{}, cfg))
		return nil
	}

	rootCmd.AddCommand(serveCommand())
	rootCmd.AddCommand(migrateCommand())
	rootCmd.AddCommand(createAdminCommand())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
