package commands

import (
	"fmt"
	"text/tabwriter"

	bot "solana-wallet/bots_monitor"
	"solana-wallet/internal/features/tg_charts"
	logging "solana-wallet/internal/infra/log"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"
)

var snapshotCmd = &cobra.Command{
	Use:   "snapshot",
	Short: "Print the persisted snapshot, largest positions first",
	RunE:  runSnapshot,
}

func runSnapshot(cmd *cobra.Command, args []string) error {
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
	records := tg_charts.TopRecords(store.Records(), 0)

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "MINT\tBALANCE\tPRICE USD\tTOTAL USD")
	total := decimal.Zero
	for _, r := range records {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", r.AssetID, r.Quantity.String(), r.UnitPrice.String(), bot.FormatUSD(r.TotalValue))
		total = total.Add(r.TotalValue)
	}
	fmt.Fprintf(w, "\t\t\t%s\n", bot.FormatUSD(total))
	return w.Flush()
}
