package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/rewired-gh/lotoracle/internal/cache"
	"github.com/rewired-gh/lotoracle/internal/config"
	"github.com/rewired-gh/lotoracle/internal/llm"
	"github.com/rewired-gh/lotoracle/internal/logger"
	"github.com/rewired-gh/lotoracle/internal/output"
	"github.com/rewired-gh/lotoracle/internal/predictor"
	"github.com/rewired-gh/lotoracle/internal/storage"
	"github.com/rewired-gh/lotoracle/internal/telegram"
)

// app holds what the subcommands share once the configuration is loaded.
type app struct {
	configPath string
	envFile    string
	format     string

	cfg   *config.Config
	loc   *time.Location
	store *storage.Storage
	redis *cache.RedisClient
}

func main() {
	// Setup graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-sigChan
		logger.Info("Shutdown signal received, cleaning up...")
		cancel()
	}()

	if err := newRootCmd(&app{}).ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

func newRootCmd(a *app) *cobra.Command {
	root := &cobra.Command{
		Use:   "lotoracle",
		Short: "Lottery draw statistics and oracle-assisted predictions",
		Long: `lotoracle collects lottery draws, computes companion, precursor, follower,
form and gap statistics over the history, and asks a language model to pick
two numbers for the next draw from those statistics.`,
		SilenceUsage:      true,
		PersistentPreRunE: a.setup,
		PersistentPostRun: func(*cobra.Command, []string) { a.close() },
	}

	root.PersistentFlags().StringVar(&a.configPath, "config", "", "Path to configuration file")
	root.PersistentFlags().StringVar(&a.envFile, "env-file", ".env", "Path to a .env file with secrets")
	root.PersistentFlags().StringVar(&a.format, "format", output.FormatTable, "Output format: table or json or csv")

	root.AddCommand(
		newCollectCmd(a),
		newImportCmd(a),
		newAnalyzeCmd(a),
		newPredictCmd(a),
		newBacktestCmd(a),
		newExportCmd(a),
	)
	return root
}

// setup loads the configuration, initializes logging and opens the store.
func (a *app) setup(_ *cobra.Command, _ []string) error {
	loaded, err := config.LoadDotEnv(a.envFile)
	if err != nil {
		return err
	}

	cfg, err := config.Load(a.configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	a.cfg = cfg

	logger.Init(cfg.Logging.Level, cfg.Logging.Format)
	if a.configPath != "" {
		logger.Info("Configuration loaded from %s", a.configPath)
	}
	if loaded {
		logger.Debug("Environment loaded from %s", a.envFile)
	}

	if a.format, err = output.ParseFormat(a.format); err != nil {
		return err
	}
	if a.loc, err = cfg.Source.Location(); err != nil {
		return err
	}

	a.store, err = storage.New(cfg.Storage.Backend, cfg.Storage.DSN)
	if err != nil {
		return fmt.Errorf("failed to initialize storage: %w", err)
	}
	return nil
}

func (a *app) close() {
	if a.store != nil {
		if err := a.store.Close(); err != nil {
			logger.Error("Failed to close storage: %v", err)
		}
	}
	if err := a.redis.Close(); err != nil {
		logger.Warn("Failed to close Redis: %v", err)
	}
}

// newPredictor wires the store, the oracle and the reply cache. withOracle
// false gives a statistics-only predictor.
func (a *app) newPredictor(withOracle bool) *predictor.Predictor {
	opts := predictor.Options{
		Analysis:      a.cfg.Analysis,
		Location:      a.loc,
		OracleTimeout: a.cfg.Oracle.Timeout,
		Model:         a.cfg.Oracle.Model,
	}

	if !withOracle || !a.cfg.Oracle.Enabled {
		if withOracle {
			logger.Warn("Oracle disabled: predictions will carry statistics only")
		}
		return predictor.New(a.store, nil, opts)
	}

	if a.cfg.Cache.Enabled {
		if a.redis == nil {
			a.redis = cache.NewRedisClient(a.cfg.Cache.RedisAddr, a.cfg.Cache.RedisPassword, a.cfg.Cache.RedisDB)
		}
		if a.redis != nil {
			opts.Cache = cache.NewReplyCache(a.redis, a.cfg.Cache.TTL)
		}
	}

	oracle := llm.NewClient(a.cfg.Oracle.Endpoint, a.cfg.Oracle.APIKey, a.cfg.Oracle.Model,
		a.cfg.Oracle.Temperature, a.cfg.Oracle.MaxTokens)
	logger.Debug("Oracle configured with model %s", oracle.Model())
	return predictor.New(a.store, oracle, opts)
}

// newTelegram returns nil when notifications are disabled.
func (a *app) newTelegram() *telegram.Client {
	if !a.cfg.Telegram.Enabled {
		logger.Debug("Telegram notifications disabled")
		return nil
	}
	client, err := telegram.NewClient(a.cfg.Telegram.BotToken, a.cfg.Telegram.ChatID,
		a.cfg.Telegram.MaxRetries, a.cfg.Telegram.RetryDelayBase)
	if err != nil {
		logger.Error("Failed to initialize Telegram client: %v", err)
		return nil
	}
	logger.Info("Telegram client initialized successfully")
	return client
}

// parseDate reads a --date flag in the configured timezone. Empty means today.
func (a *app) parseDate(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	t, err := time.ParseInLocation(time.DateOnly, s, a.loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q (want YYYY-MM-DD): %w", s, err)
	}
	return t, nil
}
