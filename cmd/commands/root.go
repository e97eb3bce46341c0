package commands

// Root command for Cobra CLI
// Config flags are persistent so every subcommand accepts the same overrides

import (
	"solana-wallet/internal/infra/config"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "solana-wallet",
	Short: "Solana Wallet Monitor - values a wallet and alerts on sharp position growth",
	Long: `Solana Wallet Monitor polls the SPL token balances of one wallet, prices them,
keeps a persistent snapshot of every position and sends a Telegram alert when
a position's USD value grows sharply between cycles.`,
	Version:       "1.0.0",
	SilenceUsage:  true,
	SilenceErrors: true,
}

func Execute() error {
	return rootCmd.Execute()
}

func init() {
	config.RegisterFlags(rootCmd.PersistentFlags())

	rootCmd.AddCommand(monitorCmd)
	rootCmd.AddCommand(checkCmd)
	rootCmd.AddCommand(snapshotCmd)
	rootCmd.AddCommand(chartCmd)
	rootCmd.AddCommand(historyCmd)
	rootCmd.AddCommand(ignoreCmd)
}
