package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/matrixise/token-ledger/internal/domain"
	"github.com/matrixise/token-ledger/internal/storage"
)

const withdrawalColumns = `
	id, holder_id, token_id, amount, destination, blockchain,
	status, tx_hash, notes, created_at, updated_at
`

func scanWithdrawal(row pgx.Row) (*domain.WithdrawalRequest, error) {
	var w domain.WithdrawalRequest
	err := row.Scan(
		&w.ID, &w.HolderID, &w.TokenID, &w.Amount, &w.Destination,
		&w.Blockchain, &w.Status, &w.TxHash, &w.Notes, &w.CreatedAt, &w.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &w, nil
}

// InsertWithdrawal creates a withdrawal request row.
func (s *Store) InsertWithdrawal(ctx context.Context, w *domain.WithdrawalRequest) error {
	query := `
		INSERT INTO withdrawal_requests (
			id, holder_id, token_id, amount, destination, blockchain,
			status, tx_hash, notes, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`

	_, err := s.db.Exec(ctx, query,
		w.ID, w.HolderID, w.TokenID, w.Amount, w.Destination, w.Blockchain,
		w.Status, w.TxHash, w.Notes, w.CreatedAt,
	)
	if err != nil {
		if isDuplicateKeyError(err) {
			return storage.ErrDuplicateKey
		}
		if isConstraintError(err) {
			return storage.ErrConflict
		}
		return fmt.Errorf("insert withdrawal: %w", err)
	}
	return nil
}

// GetWithdrawal returns one withdrawal request by id.
func (s *Store) GetWithdrawal(ctx context.Context, id string) (*domain.WithdrawalRequest, error) {
	query := `SELECT ` + withdrawalColumns + ` FROM withdrawal_requests WHERE id = $1`

	w, err := scanWithdrawal(s.db.QueryRow(ctx, query, id))
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get withdrawal: %w", err)
	}
	return w, nil
}

// UpdateWithdrawalStatus transitions a request from -> to. The from-state
// guard in the WHERE clause makes concurrent reconcilers race safely: only
// one transition wins, the loser sees ErrConflict.
func (s *Store) UpdateWithdrawalStatus(ctx context.Context, id string, from, to domain.WithdrawalStatus, txHash string) (*domain.WithdrawalRequest, error) {
	query := `
		UPDATE withdrawal_requests SET
			status = $3,
			tx_hash = CASE WHEN $4 <> '' THEN $4 ELSE tx_hash END,
			updated_at = now()
		WHERE id = $1 AND status = $2
		RETURNING ` + withdrawalColumns

	w, err := scanWithdrawal(s.db.QueryRow(ctx, query, id, from, to, txHash))
	if err != nil {
		if isNotFoundError(err) {
			if _, getErr := s.GetWithdrawal(ctx, id); getErr == nil {
				return nil, storage.ErrConflict
			}
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("update withdrawal status: %w", err)
	}
	return w, nil
}
