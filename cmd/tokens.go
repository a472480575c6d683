package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"github.com/matrixise/token-ledger/internal/config"
	"github.com/matrixise/token-ledger/internal/ledger"
	"github.com/matrixise/token-ledger/internal/logger"
	"github.com/matrixise/token-ledger/internal/storage/postgres"
)

var (
	tokenTicker     string
	tokenName       string
	tokenSupply     string
	tokenPrice      string
	tokenBlockchain string
)

var registerTokenCmd = &cobra.Command{
	Use:   "register-token",
	Short: "Register a new token",
	Long: `Create a token with its full supply available and nothing sold.
Supply and price fall back to the ledger defaults when omitted; the
blockchain falls back to default_blockchain from the configuration.`,
	RunE: runRegisterToken,
}

var portfolioCmd = &cobra.Command{
	Use:   "portfolio <holder-id>",
	Short: "Print a holder's portfolio valuation",
	Long: `Value every holding of a holder at current token prices and print
the summary as JSON. The GBP figure uses usd_gbp_rate from the
configuration.`,
	Args: cobra.ExactArgs(1),
	RunE: runPortfolio,
}

func init() {
	rootCmd.AddCommand(registerTokenCmd)
	rootCmd.AddCommand(portfolioCmd)

	registerTokenCmd.Flags().StringVar(&tokenTicker, "ticker", "", "token ticker (required)")
	registerTokenCmd.Flags().StringVar(&tokenName, "name", "", "token name (required)")
	registerTokenCmd.Flags().StringVar(&tokenSupply, "supply", "", "total supply in whole tokens")
	registerTokenCmd.Flags().StringVar(&tokenPrice, "price", "", "price per token in USD")
	registerTokenCmd.Flags().StringVar(&tokenBlockchain, "blockchain", "", "blockchain the token settles on")
	registerTokenCmd.MarkFlagRequired("ticker")
	registerTokenCmd.MarkFlagRequired("name")
}

// openLedger loads the configuration, connects to PostgreSQL and builds the
// ledger call surface with the configured blockchain and conversion rate.
func openLedger(ctx context.Context) (*ledger.Ledger, func(), error) {
	cfg, databaseURL, err := config.LoadWithDefaults(cfgFile)
	if err != nil {
		slog.Error("Configuration error", "error", err)
		return nil, nil, err
	}
	if cfg.LogLevel != "" {
		logger.Setup(cfg.LogLevel)
	}

	pool, err := postgres.NewPool(ctx, databaseURL)
	if err != nil {
		slog.Error("Failed to connect to PostgreSQL", "error", err)
		return nil, nil, err
	}
	store := postgres.NewStore(pool)

	l := ledger.New(store, ledger.Options{
		DefaultBlockchain: cfg.DefaultBlockchain,
		UsdToGbpRate:      cfg.Rate(),
	})
	return l, store.Close, nil
}

func runRegisterToken(cmd *cobra.Command, args []string) error {
	logger.Setup(logLevel)
	ctx := context.Background()

	l, cleanup, err := openLedger(ctx)
	if err != nil {
		return err
	}
	defer cleanup()

	in := ledger.RegisterTokenInput{
		Ticker:     tokenTicker,
		Name:       tokenName,
		Blockchain: tokenBlockchain,
	}
	if tokenSupply != "" {
		supply, err := decimal.NewFromString(tokenSupply)
		if err != nil {
			return fmt.Errorf("invalid supply %q: %w", tokenSupply, err)
		}
		in.TotalSupply = supply
	}
	if tokenPrice != "" {
		price, err := decimal.NewFromString(tokenPrice)
		if err != nil {
			return fmt.Errorf("invalid price %q: %w", tokenPrice, err)
		}
		in.PriceUsd = price
	}

	token, err := l.RegisterToken(ctx, in)
	if err != nil {
		slog.Error("Token registration failed", "ticker", tokenTicker, "error", err)
		return err
	}

	slog.Info("Token registered",
		"id", token.ID,
		"ticker", token.Ticker,
		"total_supply", token.TotalSupply.String(),
		"price_usd", token.PriceUsd.String(),
		"blockchain", token.Blockchain,
		"standard", token.Standard,
	)
	return nil
}

func runPortfolio(cmd *cobra.Command, args []string) error {
	logger.Setup(logLevel)
	ctx := context.Background()

	l, cleanup, err := openLedger(ctx)
	if err != nil {
		return err
	}
	defer cleanup()

	summary, err := l.GetPortfolio(ctx, args[0])
	if err != nil {
		slog.Error("Portfolio lookup failed", "holder", args[0], "error", err)
		return err
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(summary)
}
