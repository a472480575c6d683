package ledger

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"

	"github.com/matrixise/token-ledger/internal/domain"
	"github.com/matrixise/token-ledger/internal/storage"
)

// RecordPurchaseInput describes a confirmed payment-backed acquisition.
type RecordPurchaseInput struct {
	HolderID      string
	TokenID       string
	TokenAmount   decimal.Decimal
	UsdAmount     decimal.Decimal
	PricePerToken decimal.Decimal
	PaymentMethod string

	PaymentCurrency string          // default USD
	PaymentAmount   decimal.Decimal // default UsdAmount
	PaymentRef      string          // external payment reference
	Notes           string
}

// RecordPurchase records a purchase as one atomic unit: the purchase record,
// the transaction-log entry, the balance credit (purchased counter, invested
// USD, recomputed average buy price) and the token supply movement
// (available down, sold up, treasury up). All effects commit together or not
// at all. Overdrawing the available supply surfaces as ErrStorageConflict
// from the supply check constraint.
//
// The returned transaction is re-read from committed state, never
// synthesized from the inputs.
func (l *Ledger) RecordPurchase(ctx context.Context, in RecordPurchaseInput) (*domain.Transaction, error) {
	if in.HolderID == "" || in.TokenID == "" {
		return nil, ErrInvalidInput
	}
	if err := validateAmount(in.TokenAmount); err != nil {
		return nil, err
	}
	if in.UsdAmount.Sign() < 0 {
		return nil, ErrInvalidAmount
	}

	currency := in.PaymentCurrency
	if currency == "" {
		currency = "USD"
	}
	paymentAmount := in.PaymentAmount
	if paymentAmount.IsZero() {
		paymentAmount = in.UsdAmount
	}

	var out *domain.Transaction
	err := l.inTx(ctx, func(tx storage.Tx) error {
		if _, err := tx.GetToken(ctx, in.TokenID); err != nil {
			if errors.Is(err, storage.ErrNotFound) {
				return ErrTokenNotFound
			}
			return err
		}

		now := time.Now().UTC()
		purchase := &domain.Purchase{
			ID:              newID(),
			HolderID:        in.HolderID,
			TokenID:         in.TokenID,
			TokenAmount:     in.TokenAmount,
			UsdAmount:       in.UsdAmount,
			PricePerToken:   in.PricePerToken,
			PaymentMethod:   in.PaymentMethod,
			PaymentCurrency: currency,
			PaymentAmount:   paymentAmount,
			PaymentRef:      in.PaymentRef,
			Status:          "confirmed",
			Notes:           in.Notes,
			CreatedAt:       now,
			ConfirmedAt:     &now,
		}
		if err := tx.InsertPurchase(ctx, purchase); err != nil {
			return mapStorageErr(err)
		}

		if err := tx.CreditBalance(ctx, storage.CreditParams{
			HolderID:    in.HolderID,
			TokenID:     in.TokenID,
			Amount:      in.TokenAmount,
			Counter:     domain.CounterPurchased,
			InvestedUsd: in.UsdAmount,
			Price:       in.PricePerToken,
		}); err != nil {
			return mapStorageErr(err)
		}

		if err := tx.ApplyPurchaseToToken(ctx, in.TokenID, in.TokenAmount, in.UsdAmount); err != nil {
			return mapStorageErr(err)
		}

		entry := &domain.Transaction{
			ID:          newID(),
			TokenID:     in.TokenID,
			Type:        domain.TxPurchase,
			Amount:      in.TokenAmount,
			ToHolderID:  in.HolderID,
			Status:      domain.TxStatusConfirmed,
			Notes:       in.Notes,
			CreatedAt:   now,
			ConfirmedAt: &now,
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
