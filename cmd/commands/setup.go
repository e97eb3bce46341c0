package commands

// Construction of the clients and stores shared by all subcommands

import (
	"fmt"

	bot "solana-wallet/bots_monitor"
	"solana-wallet/internal/clients_api/jupiter"
	"solana-wallet/internal/clients_api/solana"
	"solana-wallet/internal/features/valuation"
	"solana-wallet/internal/infra/config"
	"solana-wallet/internal/infra/db"
	storage "solana-wallet/internal/infra/fs"
	"solana-wallet/internal/infra/journal"
	logging "solana-wallet/internal/infra/log"
	"solana-wallet/internal/infra/transport"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// snapshotStore is what both backends provide on top of valuation.SnapshotStore.
type snapshotStore interface {
	valuation.SnapshotStore
	Records() []valuation.Record
	Path() string
	Close() error
}

func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg, err := config.Load(cmd.Flags())
	if err != nil {
		logging.LogError("Failed to load config", zap.Error(err))
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if err := logging.Setup(cfg.App.LogsDir); err != nil {
		return nil, err
	}
	return cfg, nil
}

func newTransport(cfg *config.Config, name string) *transport.Client {
	r := transport.DefaultRetry
	r.MaxRetries = cfg.App.MaxRetries
	return transport.New(transport.Options{
		Name:            name,
		Timeout:         cfg.RequestTimeout(),
		RateLimit:       cfg.App.RateLimit,
		MaxResponseSize: cfg.App.MaxResponseSize,
		Retry:           &r,
	})
}

func newSolanaClient(cfg *config.Config) *solana.Client {
	return solana.NewClient(solana.Options{
		Endpoint:     cfg.Solana.RPCURL,
		TokenProgram: cfg.Solana.TokenProgram,
		Commitment:   cfg.Solana.Commitment,
		Transport:    newTransport(cfg, "solana-rpc"),
	})
}

func newPriceClient(cfg *config.Config) *jupiter.Client {
	return jupiter.NewClient(cfg.Prices.URL, newTransport(cfg, "prices"))
}

func openStore(cfg *config.Config) (snapshotStore, error) {
	if cfg.Storage.Backend == config.BackendSQLite {
		s, err := db.NewSQLiteSnapshotStore(cfg.Storage.Path)
		if err != nil {
			return nil, err
		}
		return s, nil
	}
	s, err := storage.NewCSVSnapshotStore(cfg.Storage.Path)
	if err != nil {
		return nil, err
	}
	return s, nil
}

// openJournal returns nil when the journal is disabled.
func openJournal(cfg *config.Config) (*journal.Journal, error) {
	if !cfg.Journal.Enabled {
		return nil, nil
	}
	return journal.Open(cfg.Journal.Dir)
}

// newNotifier falls back to the log when Telegram is not configured; tg is nil in that case.
func newNotifier(cfg *config.Config) (bot.Notifier, *bot.TelegramNotifier, error) {
	if !cfg.TelegramEnabled() {
		logging.LogWarn("TELEGRAM_BOT_TOKEN not set, alerts will only be logged")
		return bot.LogNotifier{}, nil, nil
	}
	tg, err := bot.NewTelegramNotifier(cfg.Telegram.BotToken, cfg.Telegram.ChatID)
	if err != nil {
		return nil, nil, err
	}
	return tg, tg, nil
}
