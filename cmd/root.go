package cmd

import (
	"github.com/spf13/cobra"
)

var (
	cfgFile  string
	logLevel string
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "token-ledger",
	Short: "Internal token accounting ledger",
	Long: `token-ledger keeps the books for internally issued tokens: holder
balances with historical counters, an append-only transaction log, purchase
and transfer flows, and a withdrawal lifecycle. State lives in PostgreSQL
and a recurring audit sweep verifies the accounting identities hold.`,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	// Global flags
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: ./config.toml)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "log level (debug, info, warn, error)")
}
