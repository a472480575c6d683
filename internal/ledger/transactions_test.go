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

func TestRecordTransaction(t *testing.T) {
	ctx := context.Background()

	t.Run("credit types bump the matching counter", func(t *testing.T) {
		tests := []struct {
			txType  domain.TransactionType
			counter func(b *domain.Balance) decimal.Decimal
		}{
			{domain.TxPurchase, func(b *domain.Balance) decimal.Decimal { return b.TotalPurchased }},
			{domain.TxDeposit, func(b *domain.Balance) decimal.Decimal { return b.TotalReceived }},
			{domain.TxAirdrop, func(b *domain.Balance) decimal.Decimal { return b.TotalReceived }},
			{domain.TxMint, func(b *domain.Balance) decimal.Decimal { return b.TotalReceived }},
			{domain.TxTransferIn, func(b *domain.Balance) decimal.Decimal { return b.TotalReceived }},
		}

		for _, tt := range tests {
			t.Run(string(tt.txType), func(t *testing.T) {
				l, _ := newTestLedger(t)
				token := registerToken(t, l, "CRD")

				entry, err := l.RecordTransaction(ctx, RecordTransactionInput{
					HolderID: "alice",
					TokenID:  token.ID,
					Type:     tt.txType,
					Amount:   decimal.NewFromInt(50),
				})
				require.NoError(t, err)
				assert.Equal(t, "alice", entry.ToHolderID)

				bal, err := l.GetBalance(ctx, "alice", token.ID)
				require.NoError(t, err)
				assert.True(t, bal.Balance.Equal(decimal.NewFromInt(50)))
				assert.True(t, tt.counter(bal).Equal(decimal.NewFromInt(50)))
			})
		}
	})

	t.Run("debit types bump the matching counter", func(t *testing.T) {
		tests := []struct {
			txType  domain.TransactionType
			counter func(b *domain.Balance) decimal.Decimal
		}{
			{domain.TxSale, func(b *domain.Balance) decimal.Decimal { return b.TotalSent }},
			{domain.TxBurn, func(b *domain.Balance) decimal.Decimal { return b.TotalSent }},
			{domain.TxTransferOut, func(b *domain.Balance) decimal.Decimal { return b.TotalSent }},
			{domain.TxWithdrawal, func(b *domain.Balance) decimal.Decimal { return b.TotalWithdrawn }},
		}

		for _, tt := range tests {
			t.Run(string(tt.txType), func(t *testing.T) {
				l, _ := newTestLedger(t)
				token := registerToken(t, l, "DBT")
				fundHolder(t, l, "alice", token.ID, 100)

				entry, err := l.RecordTransaction(ctx, RecordTransactionInput{
					HolderID: "alice",
					TokenID:  token.ID,
					Type:     tt.txType,
					Amount:   decimal.NewFromInt(40),
				})
				require.NoError(t, err)
				assert.Equal(t, "alice", entry.FromHolderID)

				bal, err := l.GetBalance(ctx, "alice", token.ID)
				require.NoError(t, err)
				assert.True(t, bal.Balance.Equal(decimal.NewFromInt(60)))
				assert.True(t, tt.counter(bal).Equal(decimal.NewFromInt(40)))
			})
		}
	})

	t.Run("composite transfer type is rejected", func(t *testing.T) {
		l, _ := newTestLedger(t)
		token := registerToken(t, l, "CMP")

		_, err := l.RecordTransaction(ctx, RecordTransactionInput{
			HolderID: "alice",
			TokenID:  token.ID,
			Type:     domain.TxTransfer,
			Amount:   decimal.NewFromInt(1),
		})
		assert.ErrorIs(t, err, ErrUnsupportedType)
	})

	t.Run("unknown type is rejected", func(t *testing.T) {
		l, _ := newTestLedger(t)
		token := registerToken(t, l, "UNK")

		_, err := l.RecordTransaction(ctx, RecordTransactionInput{
			HolderID: "alice",
			TokenID:  token.ID,
			Type:     domain.TransactionType("stake"),
			Amount:   decimal.NewFromInt(1),
		})
		assert.ErrorIs(t, err, ErrUnsupportedType)
	})

	t.Run("debit without a balance row", func(t *testing.T) {
		l, _ := newTestLedger(t)
		token := registerToken(t, l, "NOB")

		_, err := l.RecordTransaction(ctx, RecordTransactionInput{
			HolderID: "ghost",
			TokenID:  token.ID,
			Type:     domain.TxSale,
			Amount:   decimal.NewFromInt(1),
		})
		assert.ErrorIs(t, err, ErrInsufficientBalance)
	})

	t.Run("insufficient balance commits nothing", func(t *testing.T) {
		l, _ := newTestLedger(t)
		token := registerToken(t, l, "ATOM")
		fundHolder(t, l, "alice", token.ID, 30)

		before, err := l.GetTransactions(ctx, domain.TransactionQuery{})
		require.NoError(t, err)

		_, err = l.RecordTransaction(ctx, RecordTransactionInput{
			HolderID: "alice",
			TokenID:  token.ID,
			Type:     domain.TxSale,
			Amount:   decimal.NewFromInt(31),
		})
		assert.ErrorIs(t, err, ErrInsufficientBalance)

		bal, err := l.GetBalance(ctx, "alice", token.ID)
		require.NoError(t, err)
		assert.True(t, bal.Balance.Equal(decimal.NewFromInt(30)))
		assert.True(t, bal.TotalSent.IsZero())

		after, err := l.GetTransactions(ctx, domain.TransactionQuery{})
		require.NoError(t, err)
		assert.Equal(t, len(before), len(after), "failed debit must not append to the log")
	})

	t.Run("invalid amounts", func(t *testing.T) {
		l, _ := newTestLedger(t)
		token := registerToken(t, l, "AMT")

		for _, amount := range []string{"0", "-5", "1.5"} {
			_, err := l.RecordTransaction(ctx, RecordTransactionInput{
				HolderID: "alice",
				TokenID:  token.ID,
				Type:     domain.TxDeposit,
				Amount:   decimal.RequireFromString(amount),
			})
			assert.ErrorIs(t, err, ErrInvalidAmount, "amount %s", amount)
		}
	})

	t.Run("unknown token", func(t *testing.T) {
		l, _ := newTestLedger(t)

		_, err := l.RecordTransaction(ctx, RecordTransactionInput{
			HolderID: "alice",
			TokenID:  "missing",
			Type:     domain.TxDeposit,
			Amount:   decimal.NewFromInt(1),
		})
		assert.ErrorIs(t, err, ErrTokenNotFound)
	})

	t.Run("entry with a tx hash starts pending", func(t *testing.T) {
		l, _ := newTestLedger(t)
		token := registerToken(t, l, "PND")

		entry, err := l.RecordTransaction(ctx, RecordTransactionInput{
			HolderID: "alice",
			TokenID:  token.ID,
			Type:     domain.TxDeposit,
			Amount:   decimal.NewFromInt(10),
			TxHash:   "0xabc",
		})
		require.NoError(t, err)
		assert.Equal(t, domain.TxStatusPending, entry.Status)
		assert.Nil(t, entry.ConfirmedAt)
	})

	t.Run("internal entry is confirmed immediately", func(t *testing.T) {
		l, _ := newTestLedger(t)
		token := registerToken(t, l, "INT")

		entry, err := l.RecordTransaction(ctx, RecordTransactionInput{
			HolderID: "alice",
			TokenID:  token.ID,
			Type:     domain.TxDeposit,
			Amount:   decimal.NewFromInt(10),
		})
		require.NoError(t, err)
		assert.Equal(t, domain.TxStatusConfirmed, entry.Status)
		require.NotNil(t, entry.ConfirmedAt)
	})
}

func TestConfirmTransaction(t *testing.T) {
	ctx := context.Background()

	t.Run("pending entry is confirmed with the hash", func(t *testing.T) {
		l, _ := newTestLedger(t)
		token := registerToken(t, l, "CNF")

		entry, err := l.RecordTransaction(ctx, RecordTransactionInput{
			HolderID: "alice",
			TokenID:  token.ID,
			Type:     domain.TxDeposit,
			Amount:   decimal.NewFromInt(10),
			TxHash:   "0xpending",
		})
		require.NoError(t, err)

		confirmed, err := l.ConfirmTransaction(ctx, entry.ID, "0xfinal")
		require.NoError(t, err)
		assert.Equal(t, domain.TxStatusConfirmed, confirmed.Status)
		assert.Equal(t, "0xfinal", confirmed.TxHash)
		require.NotNil(t, confirmed.ConfirmedAt)
	})

	t.Run("confirming twice is an invalid transition", func(t *testing.T) {
		l, _ := newTestLedger(t)
		token := registerToken(t, l, "TWC")

		entry, err := l.RecordTransaction(ctx, RecordTransactionInput{
			HolderID: "alice",
			TokenID:  token.ID,
			Type:     domain.TxDeposit,
			Amount:   decimal.NewFromInt(10),
			TxHash:   "0xabc",
		})
		require.NoError(t, err)

		_, err = l.ConfirmTransaction(ctx, entry.ID, "0xabc")
		require.NoError(t, err)

		_, err = l.ConfirmTransaction(ctx, entry.ID, "0xabc")
		assert.ErrorIs(t, err, ErrInvalidStateTransition)
	})

	t.Run("unknown entry", func(t *testing.T) {
		l, _ := newTestLedger(t)
		_, err := l.ConfirmTransaction(ctx, "missing", "0xabc")
		assert.ErrorIs(t, err, ErrNotFound)
	})
}

func TestGetTransactions(t *testing.T) {
	ctx := context.Background()
	l, _ := newTestLedger(t)
	token := registerToken(t, l, "HST")

	fundHolder(t, l, "alice", token.ID, 100)
	fundHolder(t, l, "bob", token.ID, 100)
	_, err := l.Transfer(ctx, TransferInput{
		FromHolderID: "alice",
		ToHolderID:   "bob",
		TokenID:      token.ID,
		Amount:       decimal.NewFromInt(10),
	})
	require.NoError(t, err)

	t.Run("holder matches either side", func(t *testing.T) {
		entries, err := l.GetTransactions(ctx, domain.TransactionQuery{HolderID: "alice"})
		require.NoError(t, err)
		// one deposit, one transfer
		assert.Len(t, entries, 2)
	})

	t.Run("type filter", func(t *testing.T) {
		entries, err := l.GetTransactions(ctx, domain.TransactionQuery{
			Types: []domain.TransactionType{domain.TxTransfer},
		})
		require.NoError(t, err)
		require.Len(t, entries, 1)
		assert.Equal(t, domain.TxTransfer, entries[0].Type)
	})

	t.Run("newest first", func(t *testing.T) {
		entries, err := l.GetTransactions(ctx, domain.TransactionQuery{})
		require.NoError(t, err)
		require.Len(t, entries, 3)
		assert.Equal(t, domain.TxTransfer, entries[0].Type)
	})

	t.Run("date filter excludes the future", func(t *testing.T) {
		past := time.Now().Add(-time.Hour)
		entries, err := l.GetTransactions(ctx, domain.TransactionQuery{ToDate: &past})
		require.NoError(t, err)
		assert.Empty(t, entries)
	})

	t.Run("pagination", func(t *testing.T) {
		entries, err := l.GetTransactions(ctx, domain.TransactionQuery{Limit: 2})
		require.NoError(t, err)
		assert.Len(t, entries, 2)

		entries, err = l.GetTransactions(ctx, domain.TransactionQuery{Limit: 2, Offset: 2})
		require.NoError(t, err)
		assert.Len(t, entries, 1)
	})
}

func TestEffectFor(t *testing.T) {
	tests := []struct {
		txType    domain.TransactionType
		direction Direction
		counter   domain.CounterField
		ok        bool
	}{
		{domain.TxPurchase, Credit, domain.CounterPurchased, true},
		{domain.TxDeposit, Credit, domain.CounterReceived, true},
		{domain.TxAirdrop, Credit, domain.CounterReceived, true},
		{domain.TxMint, Credit, domain.CounterReceived, true},
		{domain.TxTransferIn, Credit, domain.CounterReceived, true},
		{domain.TxSale, Debit, domain.CounterSent, true},
		{domain.TxBurn, Debit, domain.CounterSent, true},
		{domain.TxTransferOut, Debit, domain.CounterSent, true},
		{domain.TxWithdrawal, Debit, domain.CounterWithdrawn, true},
		{domain.TxTransfer, Credit, "", false},
		{domain.TransactionType("stake"), Credit, "", false},
	}

	for _, tt := range tests {
		t.Run(string(tt.txType), func(t *testing.T) {
			effect, ok := EffectFor(tt.txType)
			assert.Equal(t, tt.ok, ok)
			if tt.ok {
				assert.Equal(t, tt.direction, effect.Direction)
				assert.Equal(t, tt.counter, effect.Counter)
			}
		})
	}
}
