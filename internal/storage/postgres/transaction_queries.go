package postgres

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"

	"github.com/matrixise/token-ledger/internal/domain"
	"github.com/matrixise/token-ledger/internal/storage"
)

const transactionColumns = `
	id, token_id, type, amount, from_holder_id, to_holder_id,
	from_address, to_address, tx_hash, status, notes, created_at, confirmed_at
`

func scanTransaction(row pgx.Row) (*domain.Transaction, error) {
	var t domain.Transaction
	err := row.Scan(
		&t.ID, &t.TokenID, &t.Type, &t.Amount, &t.FromHolderID, &t.ToHolderID,
		&t.FromAddress, &t.ToAddress, &t.TxHash, &t.Status, &t.Notes,
		&t.CreatedAt, &t.ConfirmedAt,
	)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

// InsertTransaction appends one entry to the transaction log.
func (s *Store) InsertTransaction(ctx context.Context, t *domain.Transaction) error {
	query := `
		INSERT INTO transactions (
			id, token_id, type, amount, from_holder_id, to_holder_id,
			from_address, to_address, tx_hash, status, notes, created_at, confirmed_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`

	_, err := s.db.Exec(ctx, query,
		t.ID, t.TokenID, t.Type, t.Amount, t.FromHolderID, t.ToHolderID,
		t.FromAddress, t.ToAddress, t.TxHash, t.Status, t.Notes,
		t.CreatedAt, t.ConfirmedAt,
	)
	if err != nil {
		if isDuplicateKeyError(err) {
			return storage.ErrDuplicateKey
		}
		if isConstraintError(err) {
			return storage.ErrConflict
		}
		return fmt.Errorf("insert transaction: %w", err)
	}
	return nil
}

// GetTransaction returns one log entry by id.
func (s *Store) GetTransaction(ctx context.Context, id string) (*domain.Transaction, error) {
	query := `SELECT ` + transactionColumns + ` FROM transactions WHERE id = $1`

	t, err := scanTransaction(s.db.QueryRow(ctx, query, id))
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get transaction: %w", err)
	}
	return t, nil
}

// ConfirmTransaction transitions an entry pending -> confirmed. Only the
// status transition mutates the otherwise immutable log.
func (s *Store) ConfirmTransaction(ctx context.Context, id, txHash string) (*domain.Transaction, error) {
	query := `
		UPDATE transactions SET
			status = 'confirmed',
			confirmed_at = now(),
			tx_hash = CASE WHEN $2 <> '' THEN $2 ELSE tx_hash END
		WHERE id = $1 AND status = 'pending'
		RETURNING ` + transactionColumns

	t, err := scanTransaction(s.db.QueryRow(ctx, query, id, txHash))
	if err != nil {
		if isNotFoundError(err) {
			// Distinguish a missing entry from one already confirmed.
			if _, getErr := s.GetTransaction(ctx, id); getErr == nil {
				return nil, storage.ErrConflict
			}
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("confirm transaction: %w", err)
	}
	return t, nil
}

// ListTransactions filters the log by holder (either side), type set and
// date range; newest first, paginated.
func (s *Store) ListTransactions(ctx context.Context, q domain.TransactionQuery) ([]*domain.Transaction, error) {
	var (
		conds []string
		args  []any
	)
	arg := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	if q.HolderID != "" {
		p := arg(q.HolderID)
		conds = append(conds, fmt.Sprintf("(from_holder_id = %s OR to_holder_id = %s)", p, p))
	}
	if len(q.Types) > 0 {
		types := make([]string, len(q.Types))
		for i, t := range q.Types {
			types[i] = string(t)
		}
		conds = append(conds, fmt.Sprintf("type = ANY(%s)", arg(types)))
	}
	if q.FromDate != nil {
		conds = append(conds, fmt.Sprintf("created_at >= %s", arg(*q.FromDate)))
	}
	if q.ToDate != nil {
		conds = append(conds, fmt.Sprintf("created_at <= %s", arg(*q.ToDate)))
	}

	query := `SELECT ` + transactionColumns + ` FROM transactions`
	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}
	query += fmt.Sprintf(" ORDER BY created_at DESC, id DESC LIMIT %s OFFSET %s", arg(q.Limit), arg(q.Offset))

	rows, err := s.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list transactions: %w", err)
	}
	defer rows.Close()

	var txs []*domain.Transaction
	for rows.Next() {
		t, err := scanTransaction(rows)
		if err != nil {
			return nil, fmt.Errorf("scan transaction: %w", err)
		}
		txs = append(txs, t)
	}
	return txs, rows.Err()
}
