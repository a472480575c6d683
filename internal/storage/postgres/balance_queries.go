package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"github.com/matrixise/token-ledger/internal/domain"
	"github.com/matrixise/token-ledger/internal/storage"
)

const balanceColumns = `
	b.holder_id, b.token_id, t.ticker, b.balance, b.pending_out,
	b.total_purchased, b.total_received, b.total_sent, b.total_withdrawn,
	b.average_buy_price, b.total_invested_usd, b.created_at, b.updated_at
`

func scanBalance(row pgx.Row) (*domain.Balance, error) {
	var b domain.Balance
	err := row.Scan(
		&b.HolderID, &b.TokenID, &b.Ticker, &b.Balance, &b.PendingOut,
		&b.TotalPurchased, &b.TotalReceived, &b.TotalSent, &b.TotalWithdrawn,
		&b.AverageBuyPrice, &b.TotalInvestedUsd, &b.CreatedAt, &b.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &b, nil
}

// GetBalance returns the balance row for (holder, token).
func (s *Store) GetBalance(ctx context.Context, holderID, tokenID string) (*domain.Balance, error) {
	query := `SELECT ` + balanceColumns + `
		FROM balances b
		JOIN tokens t ON t.id = b.token_id
		WHERE b.holder_id = $1 AND b.token_id = $2`

	b, err := scanBalance(s.db.QueryRow(ctx, query, holderID, tokenID))
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get balance: %w", err)
	}
	return b, nil
}

// ListBalances returns all balance rows for a holder.
func (s *Store) ListBalances(ctx context.Context, holderID string) ([]*domain.Balance, error) {
	query := `SELECT ` + balanceColumns + `
		FROM balances b
		JOIN tokens t ON t.id = b.token_id
		WHERE b.holder_id = $1
		ORDER BY t.ticker ASC`

	rows, err := s.db.Query(ctx, query, holderID)
	if err != nil {
		return nil, fmt.Errorf("list balances: %w", err)
	}
	defer rows.Close()

	return collectBalances(rows)
}

// ListHolders returns non-zero holders of a token, descending by balance.
func (s *Store) ListHolders(ctx context.Context, q domain.HoldersQuery) ([]*domain.Balance, error) {
	minBalance := decimal.Zero
	cmp := ">"
	if q.MinBalance != nil {
		minBalance = *q.MinBalance
		cmp = ">="
	}

	query := `SELECT ` + balanceColumns + `
		FROM balances b
		JOIN tokens t ON t.id = b.token_id
		WHERE b.token_id = $1 AND b.balance ` + cmp + ` $2
		ORDER BY b.balance DESC, b.holder_id ASC
		LIMIT $3 OFFSET $4`

	rows, err := s.db.Query(ctx, query, q.TokenID, minBalance, q.Limit, q.Offset)
	if err != nil {
		return nil, fmt.Errorf("list holders: %w", err)
	}
	defer rows.Close()

	return collectBalances(rows)
}

// ListAllBalances pages through every balance row for the auditor.
func (s *Store) ListAllBalances(ctx context.Context, limit, offset int) ([]*domain.Balance, error) {
	query := `SELECT ` + balanceColumns + `
		FROM balances b
		JOIN tokens t ON t.id = b.token_id
		ORDER BY b.holder_id ASC, b.token_id ASC
		LIMIT $1 OFFSET $2`

	rows, err := s.db.Query(ctx, query, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("list all balances: %w", err)
	}
	defer rows.Close()

	return collectBalances(rows)
}

func collectBalances(rows pgx.Rows) ([]*domain.Balance, error) {
	var balances []*domain.Balance
	for rows.Next() {
		b, err := scanBalance(rows)
		if err != nil {
			return nil, fmt.Errorf("scan balance: %w", err)
		}
		balances = append(balances, b)
	}
	return balances, rows.Err()
}

// GetBalanceForUpdate reads a balance row under SELECT ... FOR UPDATE. The
// lock is held until the surrounding transaction commits; competing units
// touching the same row block here. No join: only the balances row is
// locked, so Ticker is left empty.
func (s *Store) GetBalanceForUpdate(ctx context.Context, holderID, tokenID string) (*domain.Balance, error) {
	query := `
		SELECT holder_id, token_id, balance, pending_out,
			total_purchased, total_received, total_sent, total_withdrawn,
			average_buy_price, total_invested_usd, created_at, updated_at
		FROM balances
		WHERE holder_id = $1 AND token_id = $2
		FOR UPDATE`

	var b domain.Balance
	err := s.db.QueryRow(ctx, query, holderID, tokenID).Scan(
		&b.HolderID, &b.TokenID, &b.Balance, &b.PendingOut,
		&b.TotalPurchased, &b.TotalReceived, &b.TotalSent, &b.TotalWithdrawn,
		&b.AverageBuyPrice, &b.TotalInvestedUsd, &b.CreatedAt, &b.UpdatedAt,
	)
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get balance for update: %w", err)
	}
	return &b, nil
}

// CreditBalance applies a credit upsert: the row is created with initial
// counters when absent, incremented otherwise. Purchased credits also
// accumulate invested USD and recompute the average buy price from the new
// totals.
func (s *Store) CreditBalance(ctx context.Context, p storage.CreditParams) error {
	switch p.Counter {
	case domain.CounterPurchased:
		query := `
			INSERT INTO balances (
				holder_id, token_id, balance, total_purchased,
				total_invested_usd, average_buy_price
			) VALUES ($1, $2, $3, $3, $4, $5)
			ON CONFLICT (holder_id, token_id) DO UPDATE SET
				balance = balances.balance + EXCLUDED.balance,
				total_purchased = balances.total_purchased + EXCLUDED.balance,
				total_invested_usd = balances.total_invested_usd + EXCLUDED.total_invested_usd,
				average_buy_price = CASE
					WHEN balances.total_purchased + EXCLUDED.balance > 0
						AND balances.total_invested_usd + EXCLUDED.total_invested_usd > 0
					THEN (balances.total_invested_usd + EXCLUDED.total_invested_usd)
						/ (balances.total_purchased + EXCLUDED.balance)
					ELSE balances.average_buy_price
				END,
				updated_at = now()`

		var price *decimal.Decimal
		if !p.Price.IsZero() {
			price = &p.Price
		}
		_, err := s.db.Exec(ctx, query, p.HolderID, p.TokenID, p.Amount, p.InvestedUsd, price)
		if err != nil {
			if isConstraintError(err) {
				return storage.ErrConflict
			}
			return fmt.Errorf("credit balance (purchased): %w", err)
		}
		return nil

	case domain.CounterReceived:
		query := `
			INSERT INTO balances (holder_id, token_id, balance, total_received)
			VALUES ($1, $2, $3, $3)
			ON CONFLICT (holder_id, token_id) DO UPDATE SET
				balance = balances.balance + EXCLUDED.balance,
				total_received = balances.total_received + EXCLUDED.balance,
				updated_at = now()`

		_, err := s.db.Exec(ctx, query, p.HolderID, p.TokenID, p.Amount)
		if err != nil {
			if isConstraintError(err) {
				return storage.ErrConflict
			}
			return fmt.Errorf("credit balance (received): %w", err)
		}
		return nil
	}

	return storage.ErrInvalidInput
}

var debitColumns = map[domain.CounterField]string{
	domain.CounterSent:      "total_sent",
	domain.CounterWithdrawn: "total_withdrawn",
}

// DebitBalance decrements balance and increments the debit counter. The
// balance >= 0 check constraint backs the caller's pre-check.
func (s *Store) DebitBalance(ctx context.Context, p storage.DebitParams) error {
	col, ok := debitColumns[p.Counter]
	if !ok {
		return storage.ErrInvalidInput
	}

	query := fmt.Sprintf(`
		UPDATE balances SET
			balance = balance - $3,
			%s = %s + $3,
			updated_at = now()
		WHERE holder_id = $1 AND token_id = $2`, col, col)

	tag, err := s.db.Exec(ctx, query, p.HolderID, p.TokenID, p.Amount)
	if err != nil {
		if isConstraintError(err) {
			return storage.ErrConflict
		}
		return fmt.Errorf("debit balance: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return storage.ErrNotFound
	}
	return nil
}

// AddPendingOut adjusts the withdrawal hold by delta.
func (s *Store) AddPendingOut(ctx context.Context, holderID, tokenID string, delta decimal.Decimal) error {
	query := `
		UPDATE balances SET
			pending_out = pending_out + $3,
			updated_at = now()
		WHERE holder_id = $1 AND token_id = $2`

	tag, err := s.db.Exec(ctx, query, holderID, tokenID, delta)
	if err != nil {
		if isConstraintError(err) {
			return storage.ErrConflict
		}
		return fmt.Errorf("update pending out: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return storage.ErrNotFound
	}
	return nil
}
