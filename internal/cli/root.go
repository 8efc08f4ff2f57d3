// Package cli implements the mystic command line interface.
package cli

import (
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "mystic",
	Short: "MysticOracle payment and credit ledger daemon",
	Long: `MysticOracle sells consumable credits redeemable for generated
content. This daemon reconciles external payment events with the
internal credit ledger exactly once: it ingests provider webhooks,
drives two-phase captures, and keeps the authoritative balance.`,
}

var configPath string

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Path to config.toml (default ~/.mystic/config.toml)")
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
