package audit

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/matrixise/token-ledger/internal/domain"
	"github.com/matrixise/token-ledger/internal/ledger"
	"github.com/matrixise/token-ledger/internal/storage"
	"github.com/matrixise/token-ledger/internal/storage/memory"
)

func TestAuditorClean(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()
	l := ledger.New(store, ledger.Options{})

	token, err := l.RegisterToken(ctx, ledger.RegisterTokenInput{
		Ticker:      "AUD",
		Name:        "Audited Token",
		TotalSupply: decimal.NewFromInt(1000),
	})
	require.NoError(t, err)

	_, err = l.RecordPurchase(ctx, ledger.RecordPurchaseInput{
		HolderID:      "alice",
		TokenID:       token.ID,
		TokenAmount:   decimal.NewFromInt(100),
		UsdAmount:     decimal.NewFromInt(50),
		PricePerToken: decimal.RequireFromString("0.50"),
		PaymentMethod: "card",
	})
	require.NoError(t, err)

	_, err = l.Transfer(ctx, ledger.TransferInput{
		FromHolderID: "alice",
		ToHolderID:   "bob",
		TokenID:      token.ID,
		Amount:       decimal.NewFromInt(30),
	})
	require.NoError(t, err)

	report, err := New(store, Options{}).Run(ctx)
	require.NoError(t, err)

	assert.True(t, report.Clean())
	assert.Equal(t, 2, report.CheckedBalances)
	assert.Equal(t, 1, report.CheckedTokens)
	assert.Positive(t, report.Duration)
}

func TestAuditorViolations(t *testing.T) {
	ctx := context.Background()

	t.Run("conservation breach is reported", func(t *testing.T) {
		store := memory.NewStore()
		l := ledger.New(store, ledger.Options{})
		token, err := l.RegisterToken(ctx, ledger.RegisterTokenInput{
			Ticker: "BRK", Name: "Broken",
		})
		require.NoError(t, err)

		store.SeedBalance(&domain.Balance{
			HolderID:      "alice",
			TokenID:       token.ID,
			Balance:       decimal.NewFromInt(100),
			TotalReceived: decimal.NewFromInt(90),
		})

		report, err := New(store, Options{}).Run(ctx)
		require.NoError(t, err)

		require.Len(t, report.Violations, 1)
		assert.Equal(t, ViolationConservation, report.Violations[0].Kind)
		assert.Equal(t, "alice", report.Violations[0].HolderID)
	})

	t.Run("hold exceeding balance is reported", func(t *testing.T) {
		store := memory.NewStore()
		l := ledger.New(store, ledger.Options{})
		token, err := l.RegisterToken(ctx, ledger.RegisterTokenInput{
			Ticker: "HEX", Name: "Held Over",
		})
		require.NoError(t, err)

		store.SeedBalance(&domain.Balance{
			HolderID:      "bob",
			TokenID:       token.ID,
			Balance:       decimal.NewFromInt(10),
			TotalReceived: decimal.NewFromInt(10),
			PendingOut:    decimal.NewFromInt(20),
		})

		report, err := New(store, Options{}).Run(ctx)
		require.NoError(t, err)

		require.Len(t, report.Violations, 1)
		assert.Equal(t, ViolationHoldExceeds, report.Violations[0].Kind)
	})

	t.Run("unaccounted supply is reported", func(t *testing.T) {
		store := memory.NewStore()

		err := store.WithTx(ctx, func(tx storage.Tx) error {
			return tx.InsertToken(ctx, &domain.Token{
				ID:              "tok-bad",
				Ticker:          "BAD",
				Name:            "Bad Supply",
				TotalSupply:     decimal.NewFromInt(100),
				TokensAvailable: decimal.NewFromInt(80),
				TokensSold:      decimal.NewFromInt(10),
			})
		})
		require.NoError(t, err)

		report, err := New(store, Options{}).Run(ctx)
		require.NoError(t, err)

		require.Len(t, report.Violations, 1)
		assert.Equal(t, ViolationSupply, report.Violations[0].Kind)
		assert.Equal(t, "tok-bad", report.Violations[0].TokenID)
	})
}

func TestAuditorBatching(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()
	l := ledger.New(store, ledger.Options{})

	token, err := l.RegisterToken(ctx, ledger.RegisterTokenInput{
		Ticker: "BTC2", Name: "Batch Token",
	})
	require.NoError(t, err)

	for i := 0; i < 7; i++ {
		_, err := l.RecordTransaction(ctx, ledger.RecordTransactionInput{
			HolderID: string(rune('a' + i)),
			TokenID:  token.ID,
			Type:     domain.TxDeposit,
			Amount:   decimal.NewFromInt(10),
		})
		require.NoError(t, err)
	}

	// Batch size smaller than the row count forces multiple pages.
	report, err := New(store, Options{BatchSize: 3}).Run(ctx)
	require.NoError(t, err)

	assert.True(t, report.Clean())
	assert.Equal(t, 7, report.CheckedBalances)
}
