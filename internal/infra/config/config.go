package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"solana-wallet/internal/clients_api/jupiter"
	"solana-wallet/internal/clients_api/solana"
	"solana-wallet/internal/features/valuation"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

const (
	BackendCSV    = "csv"
	BackendSQLite = "sqlite"
)

// Config -
type Config struct {
	Wallet   WalletConfig   `mapstructure:"wallet"`
	Solana   SolanaConfig   `mapstructure:"solana"`
	Prices   PricesConfig   `mapstructure:"prices"`
	Monitor  MonitorConfig  `mapstructure:"monitor"`
	Storage  StorageConfig  `mapstructure:"storage"`
	Journal  JournalConfig  `mapstructure:"journal"`
	Telegram TelegramConfig `mapstructure:"telegram"`
	Alerts   AlertsConfig   `mapstructure:"alerts"`
	App      AppConfig      `mapstructure:"app"`
}

type WalletConfig struct {
	Address string `mapstructure:"address"`
}

type SolanaConfig struct {
	RPCURL       string `mapstructure:"rpc_url"`
	TokenProgram string `mapstructure:"token_program"`
	Commitment   string `mapstructure:"commitment"`
}

type PricesConfig struct {
	URL       string `mapstructure:"url"`
	BatchSize int    `mapstructure:"batch_size"`
}

type MonitorConfig struct {
	PollInterval int    `mapstructure:"poll_interval"` // seconds between the end of one cycle and the start of the next
	IgnoreFile   string `mapstructure:"ignore_file"`
}

type StorageConfig struct {
	Backend string `mapstructure:"backend"` // csv | sqlite
	Path    string `mapstructure:"path"`
}

type JournalConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Dir     string `mapstructure:"dir"`
}

type TelegramConfig struct {
	BotToken string `mapstructure:"bot_token"`
	ChatID   string `mapstructure:"chat_id"`
}

type AlertsConfig struct {
	GrowthFactor      float64 `mapstructure:"growth_factor"`
	BandFloor         float64 `mapstructure:"band_floor"`
	AbsoluteThreshold float64 `mapstructure:"absolute_threshold"`
}

type AppConfig struct {
	LogsDir         string  `mapstructure:"logs_dir"`
	RequestTimeout  int     `mapstructure:"request_timeout"`
	MaxRetries      int     `mapstructure:"max_retries"`
	MaxResponseSize int64   `mapstructure:"max_response_size"`
	RateLimit       float64 `mapstructure:"rate_limit"`
}

// PollInterval -
func (c *Config) PollInterval() time.Duration {
	return time.Duration(c.Monitor.PollInterval) * time.Second
}

func (c *Config) RequestTimeout() time.Duration {
	return time.Duration(c.App.RequestTimeout) * time.Second
}

func (c *Config) Thresholds() valuation.Thresholds {
	return valuation.Thresholds{
		GrowthFactor:    decimal.NewFromFloat(c.Alerts.GrowthFactor),
		BandFloor:       decimal.NewFromFloat(c.Alerts.BandFloor),
		AbsoluteCeiling: decimal.NewFromFloat(c.Alerts.AbsoluteThreshold),
	}
}

// TelegramEnabled is false when no bot token is set; alerts then only go to the log.
func (c *Config) TelegramEnabled() bool {
	return c.Telegram.BotToken != ""
}

// Load reads configuration in this order, later sources winning:
// 1. defaults
// 2. config.yaml in the working directory
// 3. .env file
// 4. environment variables
// 5. flags registered with RegisterFlags
func Load(flags *pflag.FlagSet) (*Config, error) {
	return load(".", ".env", flags)
}

func load(configDir, envFile string, flags *pflag.FlagSet) (*Config, error) {
	// .env never overrides variables already present in the environment
	_ = godotenv.Load(envFile)

	v := viper.New()
	setDefaults(v)

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(configDir)
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config.yaml: %w", err)
		}
	}

	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setupEnvAliases(v)

	if flags != nil {
		if err := v.BindPFlags(flags); err != nil {
			return nil, fmt.Errorf("failed to bind flags: %w", err)
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}

	config.Storage.Backend = strings.ToLower(strings.TrimSpace(config.Storage.Backend))
	if config.Storage.Path == "" {
		switch config.Storage.Backend {
		case BackendSQLite:
			config.Storage.Path = "data_out/tokens.db"
		default:
			config.Storage.Path = "data_out/tokens.csv"
		}
	}

	if err := validateConfig(&config); err != nil {
		return nil, err
	}
	return &config, nil
}

func setupEnvAliases(v *viper.Viper) {
	_ = v.BindEnv("wallet.address", "WALLET_ADDRESS")

	_ = v.BindEnv("solana.rpc_url", "SOLANA_RPC_URL")
	_ = v.BindEnv("solana.token_program", "SOLANA_TOKEN_PROGRAM")
	_ = v.BindEnv("solana.commitment", "SOLANA_COMMITMENT")

	_ = v.BindEnv("prices.url", "PRICE_API_URL")
	_ = v.BindEnv("prices.batch_size", "PRICE_BATCH_SIZE")

	_ = v.BindEnv("monitor.poll_interval", "POLL_INTERVAL")
	_ = v.BindEnv("monitor.ignore_file", "IGNORE_FILE")

	_ = v.BindEnv("storage.backend", "STORAGE_BACKEND")
	_ = v.BindEnv("storage.path", "STORAGE_PATH")

	_ = v.BindEnv("journal.enabled", "JOURNAL_ENABLED")
	_ = v.BindEnv("journal.dir", "JOURNAL_DIR")

	_ = v.BindEnv("telegram.bot_token", "TELEGRAM_BOT_TOKEN")
	_ = v.BindEnv("telegram.chat_id", "TELEGRAM_CHAT_ID")

	_ = v.BindEnv("alerts.growth_factor", "ALERT_GROWTH_FACTOR")
	_ = v.BindEnv("alerts.band_floor", "ALERT_BAND_FLOOR")
	_ = v.BindEnv("alerts.absolute_threshold", "ALERT_ABSOLUTE_THRESHOLD")

	_ = v.BindEnv("app.logs_dir", "LOGS_DIR")
	_ = v.BindEnv("app.request_timeout", "REQUEST_TIMEOUT")
	_ = v.BindEnv("app.max_retries", "MAX_RETRIES")
	_ = v.BindEnv("app.max_response_size", "MAX_RESPONSE_SIZE")
	_ = v.BindEnv("app.rate_limit", "RATE_LIMIT")
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("wallet.address", "")

	v.SetDefault("solana.rpc_url", solana.DefaultRPCURL)
	v.SetDefault("solana.token_program", solana.TokenProgramID)
	v.SetDefault("solana.commitment", solana.DefaultCommitment)

	v.SetDefault("prices.url", jupiter.DefaultPricesURL)
	v.SetDefault("prices.batch_size", 2)

	v.SetDefault("monitor.poll_interval", 600) // 10 minutes
	v.SetDefault("monitor.ignore_file", "data_out/ignored_mints.json")

	v.SetDefault("storage.backend", BackendCSV)
	v.SetDefault("storage.path", "")

	v.SetDefault("journal.enabled", true)
	v.SetDefault("journal.dir", "data_out/alerts_wal")

	v.SetDefault("telegram.bot_token", "")
	v.SetDefault("telegram.chat_id", "")

	v.SetDefault("alerts.growth_factor", 1.5)
	v.SetDefault("alerts.band_floor", 21.0)
	v.SetDefault("alerts.absolute_threshold", 100.0)

	v.SetDefault("app.logs_dir", "logs")
	v.SetDefault("app.request_timeout", 30)
	v.SetDefault("app.max_retries", 3)
	v.SetDefault("app.max_response_size", 10*1024*1024) // 10MB
	v.SetDefault("app.rate_limit", 5.0)
}

// RegisterFlags adds the command line overrides to fs. Flag names match config keys.
func RegisterFlags(fs *pflag.FlagSet) {
	fs.String("wallet.address", "", "Wallet to monitor (env: WALLET_ADDRESS)")
	fs.String("solana.rpc_url", solana.DefaultRPCURL, "Solana JSON-RPC endpoint (env: SOLANA_RPC_URL)")
	fs.String("prices.url", jupiter.DefaultPricesURL, "Price API endpoint (env: PRICE_API_URL)")
	fs.Int("prices.batch_size", 2, "Mints per price request (env: PRICE_BATCH_SIZE)")
	fs.Int("monitor.poll_interval", 600, "Seconds to sleep between cycles (env: POLL_INTERVAL)")
	fs.String("storage.backend", BackendCSV, "Snapshot backend: csv or sqlite (env: STORAGE_BACKEND)")
	fs.String("storage.path", "", "Snapshot file path (env: STORAGE_PATH)")
	fs.String("journal.dir", "data_out/alerts_wal", "Alert journal directory (env: JOURNAL_DIR)")
	fs.String("app.logs_dir", "logs", "Logs directory (env: LOGS_DIR)")
}

func validateConfig(cfg *Config) error {
	if cfg.Wallet.Address == "" {
		return fmt.Errorf("wallet address is required: wallet.address or WALLET_ADDRESS")
	}
	if err := solana.ValidatePublicKey(cfg.Wallet.Address); err != nil {
		return fmt.Errorf("invalid wallet address: %w", err)
	}
	if err := solana.ValidatePublicKey(cfg.Solana.TokenProgram); err != nil {
		return fmt.Errorf("invalid token program: %w", err)
	}
	if cfg.Prices.BatchSize < 1 {
		return fmt.Errorf("prices.batch_size must be at least 1, got %d", cfg.Prices.BatchSize)
	}
	if cfg.Monitor.PollInterval < 1 {
		return fmt.Errorf("monitor.poll_interval must be at least 1 second, got %d", cfg.Monitor.PollInterval)
	}
	switch cfg.Storage.Backend {
	case BackendCSV, BackendSQLite:
	default:
		return fmt.Errorf("unknown storage backend %q: use %s or %s", cfg.Storage.Backend, BackendCSV, BackendSQLite)
	}
	if cfg.Telegram.BotToken != "" && cfg.Telegram.ChatID == "" {
		return fmt.Errorf("telegram.chat_id is required when telegram.bot_token is set")
	}
	if cfg.Alerts.GrowthFactor <= 0 || cfg.Alerts.BandFloor < 0 || cfg.Alerts.AbsoluteThreshold < 0 {
		return fmt.Errorf("alert thresholds must be positive")
	}
	return nil
}
