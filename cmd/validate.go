package cmd

import (
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/matrixise/token-ledger/internal/config"
	"github.com/matrixise/token-ledger/internal/logger"
)

var validateCmd = &cobra.Command{
	Use:   "validate-config",
	Short: "Validate configuration file",
	Long:  `Validate the configuration file syntax and values without running the application.`,
	RunE:  validateConfig,
}

func init() {
	rootCmd.AddCommand(validateCmd)
}

func validateConfig(cmd *cobra.Command, args []string) error {
	// Setup logger
	logger.Setup(logLevel)

	// Load config
	cfg, databaseURL, err := config.LoadWithDefaults(cfgFile)
	if err != nil {
		slog.Error("Configuration validation failed", "error", err)
		return err
	}

	slog.Info("✓ Configuration valid",
		"interval", cfg.Interval,
		"log_level", cfg.LogLevel,
		"default_blockchain", cfg.DefaultBlockchain,
		"usd_gbp_rate", cfg.UsdGbpRate,
		"database_url_set", databaseURL != "",
	)

	return nil
}
