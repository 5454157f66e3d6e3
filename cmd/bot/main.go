package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/xaenox/astro-bot/internal/consultation"
	"github.com/xaenox/astro-bot/internal/models"
	"github.com/xaenox/astro-bot/internal/resolver"
	"github.com/xaenox/astro-bot/internal/storage"
	"github.com/xaenox/astro-bot/pkg/config"
)

var configPath string

var rootCmd = &cobra.Command{
	Use:          "astro-bot",
	Short:        "astro-bot - astrology consultation chat service",
	SilenceUsage: true,
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP/WebSocket API, the Telegram bot and the session sweeper",
	RunE:  runServe,
}

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply database migrations for the configured driver",
	RunE:  runMigrate,
}

var askCmd = &cobra.Command{
	Use:   "ask",
	Short: "Consult from the terminal, one message or an interactive session",
	RunE:  runAsk,
}

var messageFlag string

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "config.yaml", "Path to the config file")
	askCmd.Flags().StringVarP(&messageFlag, "message", "m", "", "Single message to send")
	rootCmd.AddCommand(serveCmd, migrateCmd, askCmd)
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := rootCmd.ExecuteContext(ctx)
	stop()
	if err != nil {
		os.Exit(1)
	}
}

func newLogger(cfg config.LogConfig) (*zap.Logger, error) {
	if cfg.Development {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}

// setup loads the configuration and builds the logger for a command.
func setup() (*config.Config, *zap.Logger, error) {
	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load config %s: %w", configPath, err)
	}

	logger, err := newLogger(cfg.Log)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create logger: %w", err)
	}
	return cfg, logger, nil
}

// buildResolver picks the remote completion path when a credential is
// configured and the canned ladder otherwise.
func buildResolver(cfg config.CompletionConfig, logger *zap.Logger) (resolver.Resolver, resolver.Reporter) {
	canned := resolver.NewCannedResolver()
	if !cfg.Enabled() {
		logger.Info("No completion API key configured, using canned replies only")
		return canned, canned
	}

	logger.Info("Using remote completion",
		zap.String("base_url", cfg.BaseURL),
		zap.String("model", cfg.Model))

	completion := resolver.NewCompletionResolver(resolver.CompletionConfig{
		APIKey:          cfg.APIKey,
		BaseURL:         cfg.BaseURL,
		Model:           cfg.Model,
		MaxTokens:       cfg.MaxTokens,
		ReportMaxTokens: cfg.ReportMaxTokens,
		Temperature:     cfg.Temperature,
		TopP:            cfg.TopP,
		Timeout:         cfg.Timeout,
	}, canned, logger)
	return completion, completion
}

func buildService(cfg *config.Config, store storage.Storage, logger *zap.Logger) (*consultation.Service, error) {
	advancer, err := consultation.NewAdvancer(cfg.Consultation.Threshold, models.Stage(cfg.Consultation.PromoteTo))
	if err != nil {
		return nil, fmt.Errorf("invalid consultation settings: %w", err)
	}

	res, reporter := buildResolver(cfg.Completion, logger)
	return consultation.NewService(store, res, reporter, consultation.Options{
		Welcome:        cfg.Consultation.Welcome,
		MaxMessageSize: cfg.Consultation.MaxMessageSize,
		Advancer:       advancer,
	}, logger), nil
}

func closeStore(store storage.Storage, logger *zap.Logger) {
	if err := store.Close(); err != nil {
		logger.Error("Failed to close storage", zap.Error(err))
	}
}

func runMigrate(cmd *cobra.Command, _ []string) error {
	cfg, logger, err := setup()
	if err != nil {
		return err
	}
	defer logger.Sync()

	if cfg.Database.Driver == "memory" {
		logger.Info("In-memory storage needs no migrations")
		return nil
	}

	// Opening a SQL backend applies every pending migration.
	store, err := storage.Open(cfg.Database, logger)
	if err != nil {
		return fmt.Errorf("failed to migrate: %w", err)
	}
	closeStore(store, logger)

	logger.Info("Database is up to date", zap.String("driver", cfg.Database.Driver))
	return nil
}
