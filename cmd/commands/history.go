package commands

import (
	"fmt"

	bot "solana-wallet/bots_monitor"
	logging "solana-wallet/internal/infra/log"

	"github.com/spf13/cobra"
)

var historyLimit int

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Print the most recent alerts from the journal",
	RunE:  runHistory,
}

func init() {
	historyCmd.Flags().IntVarP(&historyLimit, "number", "n", 20, "How many alerts to print, 0 for all")
}

func runHistory(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	defer logging.Sync()

	alertJournal, err := openJournal(cfg)
	if err != nil {
		return err
	}
	if alertJournal == nil {
		return fmt.Errorf("alert journal is disabled")
	}
	defer alertJournal.Close()

	entries, err := alertJournal.Last(historyLimit)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if len(entries) == 0 {
		fmt.Fprintln(out, "no alerts yet")
		return nil
	}
	for _, e := range entries {
		fmt.Fprintf(out, "%s  %s  $%s -> $%s  (cycle %s)\n",
			e.Time.Format("2006-01-02 15:04:05"), e.Mint,
			bot.FormatUSD(e.PreviousValue), bot.FormatUSD(e.TotalValue), e.CycleID)
	}
	return nil
}
