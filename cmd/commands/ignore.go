package commands

import (
	"fmt"

	"solana-wallet/internal/clients_api/solana"
	storage "solana-wallet/internal/infra/fs"

	"github.com/spf13/cobra"
)

var ignoreCmd = &cobra.Command{
	Use:   "ignore",
	Short: "Manage mints that are never valued or alerted on",
}

var ignoreAddCmd = &cobra.Command{
	Use:   "add <mint>",
	Short: "Ignore a mint",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		list, err := ignoreList(cmd)
		if err != nil {
			return err
		}
		if err := solana.ValidatePublicKey(args[0]); err != nil {
			return fmt.Errorf("invalid mint: %w", err)
		}
		return list.Add(args[0])
	},
}

var ignoreRemoveCmd = &cobra.Command{
	Use:   "remove <mint>",
	Short: "Value a mint again",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		list, err := ignoreList(cmd)
		if err != nil {
			return err
		}
		return list.Remove(args[0])
	},
}

var ignoreListCmd = &cobra.Command{
	Use:   "list",
	Short: "Print ignored mints",
	RunE: func(cmd *cobra.Command, args []string) error {
		list, err := ignoreList(cmd)
		if err != nil {
			return err
		}
		mints, err := list.Load()
		if err != nil {
			return err
		}
		for _, m := range mints {
			fmt.Fprintln(cmd.OutOrStdout(), m)
		}
		return nil
	},
}

func init() {
	ignoreCmd.AddCommand(ignoreAddCmd, ignoreRemoveCmd, ignoreListCmd)
}

func ignoreList(cmd *cobra.Command) (*storage.IgnoreList, error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, err
	}
	return storage.NewIgnoreList(cfg.Monitor.IgnoreFile), nil
}
