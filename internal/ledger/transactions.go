package ledger

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/matrixise/token-ledger/internal/domain"
	"github.com/matrixise/token-ledger/internal/storage"
)

func newID() string {
	return uuid.NewString()
}

// RecordTransactionInput feeds the generic transaction engine.
type RecordTransactionInput struct {
	HolderID string
	TokenID  string
	Type     domain.TransactionType
	Amount   decimal.Decimal

	// Optional counterparties and on-chain references.
	FromHolderID string
	ToHolderID   string
	FromAddress  string
	ToAddress    string
	TxHash       string
	Notes        string
}

// RecordTransaction is the generic atomic entry point: it appends one entry
// to the transaction log and applies the balance effect dictated by the
// type->effect table, as one indivisible unit. Debits check available funds
// under a row lock before any write; an insufficient balance commits nothing.
//
// Entries carrying an on-chain hash start pending and are confirmed later
// via ConfirmTransaction; purely internal entries are confirmed immediately.
func (l *Ledger) RecordTransaction(ctx context.Context, in RecordTransactionInput) (*domain.Transaction, error) {
	if in.HolderID == "" || in.TokenID == "" {
		return nil, ErrInvalidInput
	}
	if err := validateAmount(in.Amount); err != nil {
		return nil, err
	}
	effect, ok := EffectFor(in.Type)
	if !ok {
		return nil, ErrUnsupportedType
	}

	var out *domain.Transaction
	err := l.inTx(ctx, func(tx storage.Tx) error {
		if _, err := tx.GetToken(ctx, in.TokenID); err != nil {
			if errors.Is(err, storage.ErrNotFound) {
				return ErrTokenNotFound
			}
			return err
		}

		entry := l.newEntry(in, effect)

		switch effect.Direction {
		case Debit:
			bal, err := tx.GetBalanceForUpdate(ctx, in.HolderID, in.TokenID)
			if err != nil {
				if errors.Is(err, storage.ErrNotFound) {
					return ErrInsufficientBalance
				}
				return err
			}
			if bal.Available().LessThan(in.Amount) {
				return ErrInsufficientBalance
			}
			if err := tx.DebitBalance(ctx, storage.DebitParams{
				HolderID: in.HolderID,
				TokenID:  in.TokenID,
				Amount:   in.Amount,
				Counter:  effect.Counter,
			}); err != nil {
				return mapStorageErr(err)
			}
		case Credit:
			if err := tx.CreditBalance(ctx, storage.CreditParams{
				HolderID: in.HolderID,
				TokenID:  in.TokenID,
				Amount:   in.Amount,
				Counter:  effect.Counter,
			}); err != nil {
				return mapStorageErr(err)
			}
		}

		if err := tx.InsertTransaction(ctx, entry); err != nil {
			return mapStorageErr(err)
		}

		var err error
		out, err = tx.GetTransaction(ctx, entry.ID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// newEntry builds the log entry for a single-sided transaction, placing the
// holder on the side implied by the effect direction when the input does not
// name counterparties explicitly.
func (l *Ledger) newEntry(in RecordTransactionInput, effect Effect) *domain.Transaction {
	entry := &domain.Transaction{
		ID:           newID(),
		TokenID:      in.TokenID,
		Type:         in.Type,
		Amount:       in.Amount,
		FromHolderID: in.FromHolderID,
		ToHolderID:   in.ToHolderID,
		FromAddress:  in.FromAddress,
		ToAddress:    in.ToAddress,
		TxHash:       in.TxHash,
		Notes:        in.Notes,
		CreatedAt:    time.Now().UTC(),
	}
	if effect.Direction == Credit && entry.ToHolderID == "" {
		entry.ToHolderID = in.HolderID
	}
	if effect.Direction == Debit && entry.FromHolderID == "" {
		entry.FromHolderID = in.HolderID
	}
	if in.TxHash == "" {
		now := entry.CreatedAt
		entry.Status = domain.TxStatusConfirmed
		entry.ConfirmedAt = &now
	} else {
		entry.Status = domain.TxStatusPending
	}
	return entry
}

// ConfirmTransaction transitions a pending entry to confirmed as external
// confirmation arrives, recording the on-chain hash.
func (l *Ledger) ConfirmTransaction(ctx context.Context, id, txHash string) (*domain.Transaction, error) {
	var out *domain.Transaction
	err := l.inTx(ctx, func(tx storage.Tx) error {
		var err error
		out, err = tx.ConfirmTransaction(ctx, id, txHash)
		switch {
		case errors.Is(err, storage.ErrNotFound):
			return ErrNotFound
		case errors.Is(err, storage.ErrConflict):
			return ErrInvalidStateTransition
		}
		return err
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// GetTransactions filters the transaction log by holder (either side), type
// set and date range; newest first, paginated. Pure read.
func (l *Ledger) GetTransactions(ctx context.Context, q domain.TransactionQuery) ([]*domain.Transaction, error) {
	if q.Limit <= 0 {
		q.Limit = 50
	}
	return l.store.ListTransactions(ctx, q)
}
