package commands

// Long running monitor: one valuation cycle per poll interval until SIGINT/SIGTERM
// With Telegram configured the bot also answers commands in the alert chat

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	bot "solana-wallet/bots_monitor"
	"solana-wallet/internal/clients_api/solana"
	"solana-wallet/internal/features/tg_charts"
	"solana-wallet/internal/features/valuation"
	storage "solana-wallet/internal/infra/fs"
	logging "solana-wallet/internal/infra/log"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var monitorCmd = &cobra.Command{
	Use:   "monitor",
	Short: "Run the wallet monitor",
	Long:  `Run valuation cycles forever: fetch balances, fetch prices, update the snapshot and send alerts.`,
	RunE:  runMonitor,
}

func runMonitor(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	defer logging.Sync()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if !solana.IsOnCurve(cfg.Wallet.Address) {
		logging.LogWarn("Wallet address is not on the ed25519 curve, it is probably a program derived address",
			zap.String("wallet", cfg.Wallet.Address))
	}

	store, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer store.Close()

	alertJournal, err := openJournal(cfg)
	if err != nil {
		return err
	}

	notifier, tg, err := newNotifier(cfg)
	if err != nil {
		return err
	}

	ignore := storage.NewIgnoreList(cfg.Monitor.IgnoreFile)

	opts := bot.Options{
		Wallet:    cfg.Wallet.Address,
		Balances:  newSolanaClient(cfg),
		Prices:    newPriceClient(cfg),
		Engine:    valuation.NewEngine(store, cfg.Thresholds()),
		Notifier:  notifier,
		Ignore:    ignore,
		BatchSize: cfg.Prices.BatchSize,
		Interval:  cfg.PollInterval(),
	}
	var history bot.HistoryReader
	if alertJournal != nil {
		defer alertJournal.Close()
		opts.Journal = alertJournal
		history = alertJournal
	}

	var wg sync.WaitGroup
	if tg != nil {
		// A second store instance so commands never touch the cycle's in-memory snapshot.
		reader, err := openStore(cfg)
		if err != nil {
			return err
		}
		defer reader.Close()

		handler := bot.NewCommandHandler(tg.Bot(), bot.CommandOptions{
			ChatID:    tg.ChatID(),
			Snapshot:  reader,
			History:   history,
			Ignore:    ignore,
			ChartsDir: tg_charts.DefaultChartsDir,
		})
		wg.Add(1)
		go func() {
			defer wg.Done()
			handler.Run(ctx)
		}()
	}

	logging.LogSuccess("Wallet monitor is running",
		zap.String("wallet", cfg.Wallet.Address),
		zap.String("storage", store.Path()))

	err = bot.NewWalletMonitor(opts).Run(ctx)
	logging.LogInfo("Shutdown signal received, gracefully stopping...")

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		logging.LogSuccess("Monitor stopped gracefully")
	case <-time.After(10 * time.Second):
		logging.LogWarn("Timeout waiting for command handler to stop, forcing shutdown")
	}

	if err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}
