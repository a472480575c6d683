package ledger

import (
	"context"

	"github.com/matrixise/token-ledger/internal/domain"
)

// GetPendingDividends resolves the holder to its cap-table shareholder
// identities and returns all pending payments joined to their parent
// distributions. The distribution snapshots themselves are computed by an
// external batch process; this is purely a read.
func (l *Ledger) GetPendingDividends(ctx context.Context, holderID string) ([]*domain.DividendPayment, error) {
	if holderID == "" {
		return nil, ErrInvalidInput
	}

	ids, err := l.store.ListShareholderIDs(ctx, holderID)
	if err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return nil, nil
	}

	return l.store.ListPendingDividends(ctx, ids)
}
