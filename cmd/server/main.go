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

	"dex-backend/internal/app"
	"dex-backend/internal/config"
	"dex-backend/internal/db"
	"dex-backend/internal/router"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"gorm.io/gorm"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var configPath, logLevel string

	root := &cobra.Command{
		Use:           "dex-backend",
		Short:         "Off-chain order registry and watch tower endpoint of the exchange",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&configPath, "config", "", "path to config file (default config.local.yaml or config.yaml)")
	root.PersistentFlags().StringVar(&logLevel, "log-level", "info", "log level (debug, info, warn, error)")

	newLogger := func() (*logrus.Logger, error) {
		logger := logrus.New()
		logger.SetFormatter(&logrus.JSONFormatter{TimestampFormat: time.RFC3339})
		level, err := logrus.ParseLevel(logLevel)
		if err != nil {
			return nil, fmt.Errorf("invalid log level %q: %w", logLevel, err)
		}
		logger.SetLevel(level)
		return logger, nil
	}

	serve := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP and websocket server",
		RunE: func(cmd *cobra.Command, args []string) error {
			logger, err := newLogger()
			if err != nil {
				return err
			}
			cfg, err := loadConfig(configPath, logger)
			if err != nil {
				return err
			}
			return serveHTTP(cmd.Context(), cfg, logger)
		},
	}

	migrate := &cobra.Command{
		Use:   "migrate",
		Short: "Create tables and constraints in the configured postgres database",
		RunE: func(cmd *cobra.Command, args []string) error {
			logger, err := newLogger()
			if err != nil {
				return err
			}
			cfg, err := loadConfig(configPath, logger)
			if err != nil {
				return err
			}
			gdb, err := db.Open(cfg.Database.DSN)
			if err != nil {
				return err
			}
			return db.Migrate(gdb)
		},
	}

	var rollbackVersion string
	rollback := &cobra.Command{
		Use:   "rollback",
		Short: "Revert one constraint migration",
		RunE: func(cmd *cobra.Command, args []string) error {
			logger, err := newLogger()
			if err != nil {
				return err
			}
			cfg, err := loadConfig(configPath, logger)
			if err != nil {
				return err
			}
			gdb, err := db.Open(cfg.Database.DSN)
			if err != nil {
				return err
			}
			sqlDB, err := gdb.DB()
			if err != nil {
				return err
			}
			return db.RollbackDataMigration(sqlDB, rollbackVersion)
		},
	}
	rollback.Flags().StringVar(&rollbackVersion, "version", "", "migration version to revert")
	_ = rollback.MarkFlagRequired("version")

	root.AddCommand(serve, migrate, rollback)
	return root
}

// loadConfig reads the config file, falling back to defaults plus environment when there is none
func loadConfig(path string, logger *logrus.Logger) (*config.Config, error) {
	if err := config.LoadConfig(path); err != nil {
		if path != "" {
			return nil, err
		}
		logger.WithError(err).Warn("No config file, using defaults and environment")
		config.AppConfig = config.FromEnv()
	}
	return config.AppConfig, nil
}

func serveHTTP(ctx context.Context, cfg *config.Config, logger *logrus.Logger) error {
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	var gdb *gorm.DB
	if cfg.Database.Driver == "postgres" {
		if err := db.InitDB(); err != nil {
			return err
		}
		gdb = db.DB
	} else {
		logger.Warn("Using in-memory storage, state is lost on restart")
	}

	container, err := app.NewServiceContainer(cfg, gdb, logger)
	if err != nil {
		return err
	}
	defer container.Cleanup()
	container.Start()

	gin.SetMode(gin.ReleaseMode)
	engine := router.SetupRouter(container)
	srv := &http.Server{
		Addr:              cfg.Addr(),
		Handler:           router.WithCORS(engine, cfg.CORS, logger),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.WithField("addr", srv.Addr).Info("HTTP server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Info("Shutting down HTTP server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
