package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"
	_ "time/tzdata" // Timezones must resolve on hosts without zoneinfo

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/rewired-gh/lotoracle/internal/analysis"
	"github.com/rewired-gh/lotoracle/internal/storage"
)

// Config represents the complete application configuration
type Config struct {
	Source   SourceConfig     `mapstructure:"source"`
	Analysis analysis.Options `mapstructure:"analysis"`
	Oracle   OracleConfig     `mapstructure:"oracle"`
	Cache    CacheConfig      `mapstructure:"cache"`
	Telegram TelegramConfig   `mapstructure:"telegram"`
	Storage  StorageConfig    `mapstructure:"storage"`
	Backtest BacktestConfig   `mapstructure:"backtest"`
	Logging  LoggingConfig    `mapstructure:"logging"`
}

// SourceConfig holds the draw results API and flat file locations
type SourceConfig struct {
	APIBaseURL     string        `mapstructure:"api_base_url"`
	Timeout        time.Duration `mapstructure:"timeout"`
	MaxRetries     int           `mapstructure:"max_retries"`
	RetryDelayBase time.Duration `mapstructure:"retry_delay_base"`
	PollInterval   time.Duration `mapstructure:"poll_interval"`
	CSVPath        string        `mapstructure:"csv_path"`
	KnowledgePath  string        `mapstructure:"knowledge_path"`
	Timezone       string        `mapstructure:"timezone"`
}

// Location resolves the configured timezone.
func (s SourceConfig) Location() (*time.Location, error) {
	return time.LoadLocation(s.Timezone)
}

// OracleConfig holds the chat completion API configuration
type OracleConfig struct {
	Enabled     bool          `mapstructure:"enabled"`
	Endpoint    string        `mapstructure:"endpoint"`
	APIKey      string        `mapstructure:"api_key"`
	Model       string        `mapstructure:"model"`
	Timeout     time.Duration `mapstructure:"timeout"`
	Temperature float64       `mapstructure:"temperature"`
	MaxTokens   int           `mapstructure:"max_tokens"`
}

// CacheConfig holds the Redis reply cache configuration
type CacheConfig struct {
	Enabled       bool          `mapstructure:"enabled"`
	RedisAddr     string        `mapstructure:"redis_addr"`
	RedisPassword string        `mapstructure:"redis_password"`
	RedisDB       int           `mapstructure:"redis_db"`
	TTL           time.Duration `mapstructure:"ttl"`
}

// TelegramConfig holds Telegram notification configuration
type TelegramConfig struct {
	BotToken       string        `mapstructure:"bot_token"`
	ChatID         string        `mapstructure:"chat_id"`
	Enabled        bool          `mapstructure:"enabled"`
	MaxRetries     int           `mapstructure:"max_retries"`
	RetryDelayBase time.Duration `mapstructure:"retry_delay_base"`
}

// StorageConfig selects the database backend
type StorageConfig struct {
	Backend string `mapstructure:"backend"`
	DSN     string `mapstructure:"dsn"`
}

// BacktestConfig holds backtest defaults
type BacktestConfig struct {
	Days int           `mapstructure:"days"`
	Pace time.Duration `mapstructure:"pace"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// LoadDotEnv loads secrets from a .env file into the environment so that
// Load picks them up. Variables already set win. A missing file is not an
// error; it returns false.
func LoadDotEnv(path string) (bool, error) {
	if err := godotenv.Load(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return false, nil
		}
		return false, fmt.Errorf("failed to load %s: %w", path, err)
	}
	return true, nil
}

// Load reads configuration from file and environment variables. An empty
// path skips the file and uses defaults plus environment.
func Load(path string) (*Config, error) {
	v := viper.New()

	// Set defaults
	setDefaults(v)

	// Enable environment variable override, e.g. LOTORACLE_ORACLE_API_KEY
	v.SetEnvPrefix("LOTORACLE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	// Unmarshal into Config struct
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return &cfg, nil
}

// setDefaults configures default values for all configuration options
func setDefaults(v *viper.Viper) {
	// Source defaults
	v.SetDefault("source.api_base_url", "https://lotobonheur.ci/api/results")
	v.SetDefault("source.timeout", "30s")
	v.SetDefault("source.max_retries", 3)
	v.SetDefault("source.retry_delay_base", "2s")
	v.SetDefault("source.poll_interval", "1h")
	v.SetDefault("source.csv_path", "")
	v.SetDefault("source.knowledge_path", "")
	v.SetDefault("source.timezone", "Africa/Abidjan")

	// Analysis defaults
	defaults := analysis.DefaultOptions()
	v.SetDefault("analysis.relation_window", defaults.RelationWindow)
	v.SetDefault("analysis.form_window", defaults.FormWindow)
	v.SetDefault("analysis.rank_limit", defaults.RankLimit)
	v.SetDefault("analysis.temporal_top", defaults.TemporalTop)
	v.SetDefault("analysis.candidates", defaults.Candidates)
	v.SetDefault("analysis.max_number", defaults.MaxNumber)

	// Oracle defaults
	v.SetDefault("oracle.enabled", true)
	v.SetDefault("oracle.endpoint", "https://api.openai.com/v1/chat/completions")
	v.SetDefault("oracle.api_key", "")
	v.SetDefault("oracle.model", "gpt-4o-mini")
	v.SetDefault("oracle.timeout", "100s")
	v.SetDefault("oracle.temperature", 0.7)
	v.SetDefault("oracle.max_tokens", 800)

	// Cache defaults
	v.SetDefault("cache.enabled", false)
	v.SetDefault("cache.redis_addr", "localhost:6379")
	v.SetDefault("cache.redis_password", "")
	v.SetDefault("cache.redis_db", 0)
	v.SetDefault("cache.ttl", "24h")

	// Telegram defaults
	v.SetDefault("telegram.enabled", false)
	v.SetDefault("telegram.bot_token", "")
	v.SetDefault("telegram.chat_id", "")
	v.SetDefault("telegram.max_retries", 3)
	v.SetDefault("telegram.retry_delay_base", "1s")

	// Storage defaults
	v.SetDefault("storage.backend", storage.BackendSQLite)
	v.SetDefault("storage.dsn", "")

	// Backtest defaults
	v.SetDefault("backtest.days", 30)
	v.SetDefault("backtest.pace", "2s")

	// Logging defaults
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "text")
}

// Validate checks that all configuration values are valid
func (c *Config) Validate() error {
	// Validate Source config
	if c.Source.APIBaseURL == "" {
		return fmt.Errorf("source.api_base_url is required")
	}
	if c.Source.Timeout <= 0 {
		return fmt.Errorf("source.timeout must be positive")
	}
	if c.Source.MaxRetries < 1 {
		return fmt.Errorf("source.max_retries must be at least 1")
	}
	if c.Source.PollInterval < 1*time.Minute {
		return fmt.Errorf("source.poll_interval must be at least 1 minute")
	}
	if _, err := c.Source.Location(); err != nil {
		return fmt.Errorf("source.timezone is invalid: %w", err)
	}

	// Validate Analysis config
	if err := c.Analysis.Validate(); err != nil {
		return fmt.Errorf("analysis.%w", err)
	}

	// Validate Oracle config
	if c.Oracle.Enabled {
		if c.Oracle.Endpoint == "" {
			return fmt.Errorf("oracle.endpoint is required when oracle is enabled")
		}
		if c.Oracle.APIKey == "" {
			return fmt.Errorf("oracle.api_key is required when oracle is enabled")
		}
		if c.Oracle.Model == "" {
			return fmt.Errorf("oracle.model is required when oracle is enabled")
		}
		if c.Oracle.Timeout <= 0 {
			return fmt.Errorf("oracle.timeout must be positive")
		}
		if c.Oracle.Temperature < 0 || c.Oracle.Temperature > 2 {
			return fmt.Errorf("oracle.temperature must be between 0 and 2")
		}
		if c.Oracle.MaxTokens < 1 {
			return fmt.Errorf("oracle.max_tokens must be at least 1")
		}
	}

	// Validate Cache config
	if c.Cache.Enabled {
		if c.Cache.RedisAddr == "" {
			return fmt.Errorf("cache.redis_addr is required when cache is enabled")
		}
		if c.Cache.TTL < 1*time.Minute {
			return fmt.Errorf("cache.ttl must be at least 1 minute")
		}
	}

	// Validate Telegram config
	if c.Telegram.Enabled {
		if c.Telegram.BotToken == "" {
			return fmt.Errorf("telegram.bot_token is required when telegram is enabled")
		}
		if c.Telegram.ChatID == "" {
			return fmt.Errorf("telegram.chat_id is required when telegram is enabled")
		}
	}

	// Validate Storage config
	validBackends := map[string]bool{storage.BackendSQLite: true, storage.BackendPostgres: true, storage.BackendMySQL: true}
	if !validBackends[c.Storage.Backend] {
		return fmt.Errorf("storage.backend must be one of: sqlite, postgres, mysql")
	}
	if c.Storage.Backend != storage.BackendSQLite && c.Storage.DSN == "" {
		return fmt.Errorf("storage.dsn is required for the %s backend", c.Storage.Backend)
	}

	// Validate Backtest config
	if c.Backtest.Days < 1 {
		return fmt.Errorf("backtest.days must be at least 1")
	}
	if c.Backtest.Pace < 0 {
		return fmt.Errorf("backtest.pace must not be negative")
	}

	// Validate Logging config
	validLogLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLogLevels[c.Logging.Level] {
		return fmt.Errorf("logging.level must be one of: debug, info, warn, error")
	}
	validFormats := map[string]bool{"json": true, "text": true}
	if !validFormats[c.Logging.Format] {
		return fmt.Errorf("logging.format must be one of: json, text")
	}

	return nil
}
