package postgres

import (
	"context"
	"fmt"

	"github.com/matrixise/token-ledger/internal/domain"
)

// ListShareholderIDs resolves a holder to cap-table shareholder ids, by
// holder link or by the holder id used as an email identity.
func (s *Store) ListShareholderIDs(ctx context.Context, holderID string) ([]string, error) {
	query := `
		SELECT id FROM shareholders
		WHERE holder_id = $1 OR email = $1`

	rows, err := s.db.Query(ctx, query, holderID)
	if err != nil {
		return nil, fmt.Errorf("list shareholder ids: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan shareholder id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// ListPendingDividends returns pending payments for the given shareholders,
// each joined to its parent distribution.
func (s *Store) ListPendingDividends(ctx context.Context, shareholderIDs []string) ([]*domain.DividendPayment, error) {
	if len(shareholderIDs) == 0 {
		return nil, nil
	}

	query := `
		SELECT
			p.id, p.distribution_id, p.shareholder_id, p.eligible_tokens,
			p.payment_amount, p.currency, p.status, p.created_at,
			d.id, d.token_id, d.total_amount_usd, d.currency, d.snapshot_at, d.created_at
		FROM dividend_payments p
		JOIN dividend_distributions d ON d.id = p.distribution_id
		WHERE p.shareholder_id = ANY($1) AND p.status = 'pending'
		ORDER BY p.created_at DESC`

	rows, err := s.db.Query(ctx, query, shareholderIDs)
	if err != nil {
		return nil, fmt.Errorf("list pending dividends: %w", err)
	}
	defer rows.Close()

	var payments []*domain.DividendPayment
	for rows.Next() {
		var (
			p domain.DividendPayment
			d domain.DividendDistribution
		)
		err := rows.Scan(
			&p.ID, &p.DistributionID, &p.ShareholderID, &p.EligibleTokens,
			&p.PaymentAmount, &p.Currency, &p.Status, &p.CreatedAt,
			&d.ID, &d.TokenID, &d.TotalAmountUsd, &d.Currency, &d.SnapshotAt, &d.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scan dividend payment: %w", err)
		}
		p.Distribution = &d
		payments = append(payments, &p)
	}
	return payments, rows.Err()
}
