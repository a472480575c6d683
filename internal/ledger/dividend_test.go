package ledger

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/matrixise/token-ledger/internal/domain"
)

func TestGetPendingDividends(t *testing.T) {
	ctx := context.Background()

	t.Run("holder without a cap-table link gets nothing", func(t *testing.T) {
		l, _ := newTestLedger(t)

		payments, err := l.GetPendingDividends(ctx, "unlinked")
		require.NoError(t, err)
		assert.Empty(t, payments)
	})

	t.Run("pending payments are joined to their distribution", func(t *testing.T) {
		l, store := newTestLedger(t)
		token := registerToken(t, l, "DIV")

		store.SeedShareholder(&domain.Shareholder{
			ID:       "sh-1",
			HolderID: "alice",
			Email:    "alice@example.com",
		})
		dist := &domain.DividendDistribution{
			ID:             "dist-1",
			TokenID:        token.ID,
			TotalAmountUsd: decimal.NewFromInt(10_000),
			Currency:       "USD",
			SnapshotAt:     time.Now().UTC(),
			CreatedAt:      time.Now().UTC(),
		}
		store.SeedDividend(dist, &domain.DividendPayment{
			ID:             "pay-1",
			DistributionID: "dist-1",
			ShareholderID:  "sh-1",
			EligibleTokens: decimal.NewFromInt(500),
			PaymentAmount:  decimal.RequireFromString("125.50"),
			Currency:       "USD",
			Status:         "pending",
			CreatedAt:      time.Now().UTC(),
		})

		payments, err := l.GetPendingDividends(ctx, "alice")
		require.NoError(t, err)
		require.Len(t, payments, 1)

		assert.True(t, payments[0].PaymentAmount.Equal(decimal.RequireFromString("125.50")))
		require.NotNil(t, payments[0].Distribution)
		assert.Equal(t, "dist-1", payments[0].Distribution.ID)
	})

	t.Run("email works as a holder identity", func(t *testing.T) {
		l, store := newTestLedger(t)
		token := registerToken(t, l, "EML")

		store.SeedShareholder(&domain.Shareholder{
			ID:    "sh-2",
			Email: "bob@example.com",
		})
		dist := &domain.DividendDistribution{
			ID:         "dist-2",
			TokenID:    token.ID,
			SnapshotAt: time.Now().UTC(),
		}
		store.SeedDividend(dist, &domain.DividendPayment{
			ID:             "pay-2",
			DistributionID: "dist-2",
			ShareholderID:  "sh-2",
			PaymentAmount:  decimal.NewFromInt(10),
			Status:         "pending",
		})

		payments, err := l.GetPendingDividends(ctx, "bob@example.com")
		require.NoError(t, err)
		assert.Len(t, payments, 1)
	})

	t.Run("settled payments are excluded", func(t *testing.T) {
		l, store := newTestLedger(t)
		token := registerToken(t, l, "STL")

		store.SeedShareholder(&domain.Shareholder{ID: "sh-3", HolderID: "carol"})
		dist := &domain.DividendDistribution{
			ID:         "dist-3",
			TokenID:    token.ID,
			SnapshotAt: time.Now().UTC(),
		}
		store.SeedDividend(dist, &domain.DividendPayment{
			ID:             "pay-3",
			DistributionID: "dist-3",
			ShareholderID:  "sh-3",
			PaymentAmount:  decimal.NewFromInt(10),
			Status:         "paid",
		})

		payments, err := l.GetPendingDividends(ctx, "carol")
		require.NoError(t, err)
		assert.Empty(t, payments)
	})

	t.Run("empty holder id", func(t *testing.T) {
		l, _ := newTestLedger(t)
		_, err := l.GetPendingDividends(ctx, "")
		assert.ErrorIs(t, err, ErrInvalidInput)
	})
}
