package ledger

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"

	"github.com/matrixise/token-ledger/internal/domain"
	"github.com/matrixise/token-ledger/internal/storage"
)

// TransferInput moves balance between two holders.
type TransferInput struct {
	FromHolderID string
	ToHolderID   string
	TokenID      string
	Amount       decimal.Decimal
	Notes        string
}

// Transfer atomically debits the sender (sent counter), credits the receiver
// (received counter) and appends one transfer entry referencing both
// parties. The sender's available balance is checked under a row lock inside
// the same unit as the mutation, so two concurrent transfers cannot both
// pass the check against the same stale value. Only the sender row is locked
// up front; the receiver upsert locks the receiver's existing row too, so two
// opposing transfers can deadlock in the store. The store aborts one victim
// with a full rollback, which surfaces here as ErrStorageConflict; the caller
// may retry the transfer.
func (l *Ledger) Transfer(ctx context.Context, in TransferInput) (*domain.Transaction, error) {
	if in.FromHolderID == "" || in.ToHolderID == "" || in.TokenID == "" {
		return nil, ErrInvalidInput
	}
	if in.FromHolderID == in.ToHolderID {
		return nil, ErrSelfTransfer
	}
	if err := validateAmount(in.Amount); err != nil {
		return nil, err
	}

	var out *domain.Transaction
	err := l.inTx(ctx, func(tx storage.Tx) error {
		if _, err := tx.GetToken(ctx, in.TokenID); err != nil {
			if errors.Is(err, storage.ErrNotFound) {
				return ErrTokenNotFound
			}
			return err
		}

		sender, err := tx.GetBalanceForUpdate(ctx, in.FromHolderID, in.TokenID)
		if err != nil {
			if errors.Is(err, storage.ErrNotFound) {
				return ErrInsufficientBalance
			}
			return err
		}
		if sender.Available().LessThan(in.Amount) {
			return ErrInsufficientBalance
		}

		if err := tx.DebitBalance(ctx, storage.DebitParams{
			HolderID: in.FromHolderID,
			TokenID:  in.TokenID,
			Amount:   in.Amount,
			Counter:  domain.CounterSent,
		}); err != nil {
			return mapStorageErr(err)
		}

		if err := tx.CreditBalance(ctx, storage.CreditParams{
			HolderID: in.ToHolderID,
			TokenID:  in.TokenID,
			Amount:   in.Amount,
			Counter:  domain.CounterReceived,
		}); err != nil {
			return mapStorageErr(err)
		}

		now := time.Now().UTC()
		entry := &domain.Transaction{
			ID:           newID(),
			TokenID:      in.TokenID,
			Type:         domain.TxTransfer,
			Amount:       in.Amount,
			FromHolderID: in.FromHolderID,
			ToHolderID:   in.ToHolderID,
			Status:       domain.TxStatusConfirmed,
			Notes:        in.Notes,
			CreatedAt:    now,
			ConfirmedAt:  &now,
		}
		if err := tx.InsertTransaction(ctx, entry); err != nil {
			return mapStorageErr(err)
		}

		out, err = tx.GetTransaction(ctx, entry.ID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}
