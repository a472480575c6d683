package postgres

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDividendQueries(t *testing.T) {
	store, cleanup := setupTestStore(t)
	defer cleanup()
	ctx := context.Background()

	token := insertTestToken(t, store, "DIV")

	// Cap-table rows are written by an external batch process; seed them
	// directly.
	_, err := store.pool.Exec(ctx, `
		INSERT INTO shareholders (id, holder_id, email)
		VALUES ('sh-1', 'alice', 'alice@example.com'),
		       ('sh-2', '', 'bob@example.com')`)
	require.NoError(t, err)

	_, err = store.pool.Exec(ctx, `
		INSERT INTO dividend_distributions (id, token_id, total_amount_usd, snapshot_at)
		VALUES ('dist-1', $1, 10000.00, $2)`, token.ID, time.Now().UTC())
	require.NoError(t, err)

	_, err = store.pool.Exec(ctx, `
		INSERT INTO dividend_payments (id, distribution_id, shareholder_id, eligible_tokens, payment_amount, status)
		VALUES ('pay-1', 'dist-1', 'sh-1', 500, 125.50, 'pending'),
		       ('pay-2', 'dist-1', 'sh-1', 500, 125.50, 'paid'),
		       ('pay-3', 'dist-1', 'sh-2', 100, 25.00, 'pending')`)
	require.NoError(t, err)

	t.Run("shareholder resolution by holder link", func(t *testing.T) {
		ids, err := store.ListShareholderIDs(ctx, "alice")
		require.NoError(t, err)
		assert.Equal(t, []string{"sh-1"}, ids)
	})

	t.Run("shareholder resolution by email identity", func(t *testing.T) {
		ids, err := store.ListShareholderIDs(ctx, "bob@example.com")
		require.NoError(t, err)
		assert.Equal(t, []string{"sh-2"}, ids)
	})

	t.Run("pending payments joined to their distribution", func(t *testing.T) {
		payments, err := store.ListPendingDividends(ctx, []string{"sh-1"})
		require.NoError(t, err)
		require.Len(t, payments, 1, "settled payments are excluded")

		assert.Equal(t, "pay-1", payments[0].ID)
		require.NotNil(t, payments[0].Distribution)
		assert.Equal(t, "dist-1", payments[0].Distribution.ID)
	})

	t.Run("no shareholders", func(t *testing.T) {
		payments, err := store.ListPendingDividends(ctx, nil)
		require.NoError(t, err)
		assert.Empty(t, payments)
	})
}
