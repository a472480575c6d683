package postgres

import (
	"context"
	"fmt"

	"github.com/matrixise/token-ledger/internal/domain"
	"github.com/matrixise/token-ledger/internal/storage"
)

// InsertPurchase records the payment-backed acquisition alongside its
// transaction-log entry.
func (s *Store) InsertPurchase(ctx context.Context, p *domain.Purchase) error {
	query := `
		INSERT INTO purchases (
			id, holder_id, token_id, token_amount, usd_amount, price_per_token,
			payment_method, payment_currency, payment_amount, payment_ref,
			status, notes, created_at, confirmed_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)`

	_, err := s.db.Exec(ctx, query,
		p.ID, p.HolderID, p.TokenID, p.TokenAmount, p.UsdAmount, p.PricePerToken,
		p.PaymentMethod, p.PaymentCurrency, p.PaymentAmount, p.PaymentRef,
		p.Status, p.Notes, p.CreatedAt, p.ConfirmedAt,
	)
	if err != nil {
		if isDuplicateKeyError(err) {
			return storage.ErrDuplicateKey
		}
		if isConstraintError(err) {
			return storage.ErrConflict
		}
		return fmt.Errorf("insert purchase: %w", err)
	}
	return nil
}
