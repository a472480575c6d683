package ledger

import (
	"context"
	"fmt"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/matrixise/token-ledger/internal/domain"
	"github.com/matrixise/token-ledger/internal/storage"
	"github.com/matrixise/token-ledger/internal/storage/memory"
)

// abortingStore simulates a unit the database picked as a deadlock victim:
// the whole unit rolls back and WithTx reports a conflict.
type abortingStore struct {
	*memory.Store
}

func (s *abortingStore) WithTx(context.Context, func(tx storage.Tx) error) error {
	return fmt.Errorf("%w: deadlock detected", storage.ErrConflict)
}

func TestTransferAbortedUnitMapsToStorageConflict(t *testing.T) {
	l := New(&abortingStore{memory.NewStore()}, Options{})

	_, err := l.Transfer(context.Background(), TransferInput{
		FromHolderID: "alice",
		ToHolderID:   "bob",
		TokenID:      "tok-1",
		Amount:       decimal.NewFromInt(5),
	})
	assert.ErrorIs(t, err, ErrStorageConflict)
}

func TestTransfer(t *testing.T) {
	ctx := context.Background()

	t.Run("round trip preserves both balances exactly", func(t *testing.T) {
		l, _ := newTestLedger(t)
		token := registerToken(t, l, "RT")
		fundHolder(t, l, "alice", token.ID, 100)
		fundHolder(t, l, "bob", token.ID, 100)

		_, err := l.Transfer(ctx, TransferInput{
			FromHolderID: "alice",
			ToHolderID:   "bob",
			TokenID:      token.ID,
			Amount:       decimal.NewFromInt(37),
		})
		require.NoError(t, err)

		_, err = l.Transfer(ctx, TransferInput{
			FromHolderID: "bob",
			ToHolderID:   "alice",
			TokenID:      token.ID,
			Amount:       decimal.NewFromInt(37),
		})
		require.NoError(t, err)

		alice, err := l.GetBalance(ctx, "alice", token.ID)
		require.NoError(t, err)
		bob, err := l.GetBalance(ctx, "bob", token.ID)
		require.NoError(t, err)

		assert.True(t, alice.Balance.Equal(decimal.NewFromInt(100)))
		assert.True(t, bob.Balance.Equal(decimal.NewFromInt(100)))
		assert.True(t, alice.TotalSent.Equal(decimal.NewFromInt(37)))
		assert.True(t, alice.TotalReceived.Equal(decimal.NewFromInt(137)))
	})

	t.Run("one entry references both parties", func(t *testing.T) {
		l, _ := newTestLedger(t)
		token := registerToken(t, l, "TPX")
		fundHolder(t, l, "alice", token.ID, 50)

		entry, err := l.Transfer(ctx, TransferInput{
			FromHolderID: "alice",
			ToHolderID:   "bob",
			TokenID:      token.ID,
			Amount:       decimal.NewFromInt(20),
		})
		require.NoError(t, err)

		assert.Equal(t, domain.TxTransfer, entry.Type)
		assert.Equal(t, "alice", entry.FromHolderID)
		assert.Equal(t, "bob", entry.ToHolderID)
		assert.Equal(t, domain.TxStatusConfirmed, entry.Status)

		entries, err := l.GetTransactions(ctx, domain.TransactionQuery{
			Types: []domain.TransactionType{domain.TxTransfer},
		})
		require.NoError(t, err)
		assert.Len(t, entries, 1, "a transfer appends exactly one log entry")
	})

	t.Run("receiver row is created on first transfer", func(t *testing.T) {
		l, _ := newTestLedger(t)
		token := registerToken(t, l, "NEW")
		fundHolder(t, l, "alice", token.ID, 50)

		_, err := l.Transfer(ctx, TransferInput{
			FromHolderID: "alice",
			ToHolderID:   "dave",
			TokenID:      token.ID,
			Amount:       decimal.NewFromInt(5),
		})
		require.NoError(t, err)

		dave, err := l.GetBalance(ctx, "dave", token.ID)
		require.NoError(t, err)
		require.NotNil(t, dave)
		assert.True(t, dave.Balance.Equal(decimal.NewFromInt(5)))
		assert.True(t, dave.TotalReceived.Equal(decimal.NewFromInt(5)))
	})

	t.Run("self transfer is rejected", func(t *testing.T) {
		l, _ := newTestLedger(t)
		token := registerToken(t, l, "SLF")
		fundHolder(t, l, "alice", token.ID, 50)

		_, err := l.Transfer(ctx, TransferInput{
			FromHolderID: "alice",
			ToHolderID:   "alice",
			TokenID:      token.ID,
			Amount:       decimal.NewFromInt(5),
		})
		assert.ErrorIs(t, err, ErrSelfTransfer)
	})

	t.Run("insufficient balance leaves both sides untouched", func(t *testing.T) {
		l, _ := newTestLedger(t)
		token := registerToken(t, l, "NSF")
		fundHolder(t, l, "alice", token.ID, 10)

		_, err := l.Transfer(ctx, TransferInput{
			FromHolderID: "alice",
			ToHolderID:   "bob",
			TokenID:      token.ID,
			Amount:       decimal.NewFromInt(11),
		})
		assert.ErrorIs(t, err, ErrInsufficientBalance)

		alice, err := l.GetBalance(ctx, "alice", token.ID)
		require.NoError(t, err)
		assert.True(t, alice.Balance.Equal(decimal.NewFromInt(10)))

		bob, err := l.GetBalance(ctx, "bob", token.ID)
		require.NoError(t, err)
		assert.Nil(t, bob)
	})

	t.Run("held amounts are not transferable", func(t *testing.T) {
		l, _ := newTestLedger(t)
		token, err := l.RegisterToken(ctx, RegisterTokenInput{
			Ticker:     "HLD",
			Name:       "Held Token",
			Blockchain: "BSV",
		})
		require.NoError(t, err)
		fundHolder(t, l, "alice", token.ID, 100)

		_, err = l.RequestWithdrawal(ctx, RequestWithdrawalInput{
			HolderID:    "alice",
			TokenID:     token.ID,
			Amount:      decimal.NewFromInt(60),
			Destination: "1BvBMSEYstWetqTFn5Au4m4GFg7xJaNVN2",
		})
		require.NoError(t, err)

		_, err = l.Transfer(ctx, TransferInput{
			FromHolderID: "alice",
			ToHolderID:   "bob",
			TokenID:      token.ID,
			Amount:       decimal.NewFromInt(50),
		})
		assert.ErrorIs(t, err, ErrInsufficientBalance)

		_, err = l.Transfer(ctx, TransferInput{
			FromHolderID: "alice",
			ToHolderID:   "bob",
			TokenID:      token.ID,
			Amount:       decimal.NewFromInt(40),
		})
		assert.NoError(t, err)
	})

	t.Run("missing parties", func(t *testing.T) {
		l, _ := newTestLedger(t)
		token := registerToken(t, l, "MSP")

		_, err := l.Transfer(ctx, TransferInput{
			ToHolderID: "bob",
			TokenID:    token.ID,
			Amount:     decimal.NewFromInt(1),
		})
		assert.ErrorIs(t, err, ErrInvalidInput)
	})
}
