package commands

import (
	"context"
	"fmt"

	"solana-wallet/internal/features/tg_charts"
	logging "solana-wallet/internal/infra/log"

	"github.com/spf13/cobra"
)

var (
	chartOutDir string
	chartSend   bool
)

var chartCmd = &cobra.Command{
	Use:   "chart",
	Short: "Render the snapshot as a PNG bar chart",
	RunE:  runChart,
}

func init() {
	chartCmd.Flags().StringVar(&chartOutDir, "out", tg_charts.DefaultChartsDir, "Output directory")
	chartCmd.Flags().BoolVar(&chartSend, "send", false, "Also post the chart to the Telegram chat")
}

func runChart(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	defer logging.Sync()

	store, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer store.Close()

	store.Load()
	path, err := tg_charts.GenerateSnapshotChart(store.Records(), chartOutDir)
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), path)

	if !chartSend {
		return nil
	}
	_, tg, err := newNotifier(cfg)
	if err != nil {
		return err
	}
	if tg == nil {
		return fmt.Errorf("--send needs telegram.bot_token and telegram.chat_id")
	}
	return tg.SendPhoto(context.Background(), path, "Wallet snapshot")
}
