package commands

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	bot "solana-wallet/bots_monitor"
	"solana-wallet/internal/features/valuation"
	storage "solana-wallet/internal/infra/fs"
	logging "solana-wallet/internal/infra/log"

	"github.com/spf13/cobra"
)

var checkDryRun bool

var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Run a single valuation cycle and exit",
	Long: `Run one cycle against the live APIs. With --dry-run the persisted snapshot is
used as the baseline but nothing is written, journaled or sent to Telegram.`,
	RunE: runCheck,
}

func init() {
	checkCmd.Flags().BoolVar(&checkDryRun, "dry-run", false, "Do not persist the snapshot or send alerts")
}

func runCheck(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	defer logging.Sync()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	store, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer store.Close()

	opts := bot.Options{
		Wallet:    cfg.Wallet.Address,
		Balances:  newSolanaClient(cfg),
		Prices:    newPriceClient(cfg),
		Ignore:    storage.NewIgnoreList(cfg.Monitor.IgnoreFile),
		BatchSize: cfg.Prices.BatchSize,
	}

	if checkDryRun {
		store.Load()
		opts.Engine = valuation.NewEngine(valuation.NewMemoryStore(store.Records()...), cfg.Thresholds())
		opts.Notifier = bot.LogNotifier{}
	} else {
		opts.Engine = valuation.NewEngine(store, cfg.Thresholds())
		notifier, _, err := newNotifier(cfg)
		if err != nil {
			return err
		}
		opts.Notifier = notifier

		alertJournal, err := openJournal(cfg)
		if err != nil {
			return err
		}
		if alertJournal != nil {
			defer alertJournal.Close()
			opts.Journal = alertJournal
		}
	}

	result := bot.NewWalletMonitor(opts).RunCycle(ctx)

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "cycle %s: %s in %s\n", result.ID, result.Status, result.Duration().Round(time.Millisecond))
	fmt.Fprintf(out, "holdings %d, priced %d, created %d, updated %d\n",
		result.Holdings, result.Summary.Priced, result.Summary.Created, result.Summary.Updated)
	for _, a := range result.Alerts {
		fmt.Fprintf(out, "alert %s: $%s -> $%s\n", a.AssetID, bot.FormatUSD(a.PreviousValue), bot.FormatUSD(a.TotalValue))
	}

	if result.Status == bot.CycleFailed {
		return result.Err
	}
	return nil
}
