package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"github.com/matrixise/token-ledger/internal/domain"
	"github.com/matrixise/token-ledger/internal/storage"
)

const tokenColumns = `
	id, ticker, name, description, total_supply, decimals, blockchain,
	standard, price_usd, tokens_available, tokens_sold, treasury_balance_usd,
	is_active, is_deployed, deploy_txid, created_at, updated_at
`

func scanToken(row pgx.Row) (*domain.Token, error) {
	var t domain.Token
	err := row.Scan(
		&t.ID, &t.Ticker, &t.Name, &t.Description, &t.TotalSupply,
		&t.Decimals, &t.Blockchain, &t.Standard, &t.PriceUsd,
		&t.TokensAvailable, &t.TokensSold, &t.TreasuryUsd,
		&t.IsActive, &t.IsDeployed, &t.DeployTxid, &t.CreatedAt, &t.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

// GetToken looks a token up by id or ticker, first match.
func (s *Store) GetToken(ctx context.Context, idOrTicker string) (*domain.Token, error) {
	query := `SELECT ` + tokenColumns + `
		FROM tokens
		WHERE id = $1 OR ticker = $1
		LIMIT 1`

	t, err := scanToken(s.db.QueryRow(ctx, query, idOrTicker))
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get token: %w", err)
	}
	return t, nil
}

// ListTokens returns all tokens ordered by ticker.
func (s *Store) ListTokens(ctx context.Context, activeOnly bool) ([]*domain.Token, error) {
	query := `SELECT ` + tokenColumns + ` FROM tokens`
	if activeOnly {
		query += ` WHERE is_active`
	}
	query += ` ORDER BY ticker ASC`

	rows, err := s.db.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list tokens: %w", err)
	}
	defer rows.Close()

	var tokens []*domain.Token
	for rows.Next() {
		t, err := scanToken(rows)
		if err != nil {
			return nil, fmt.Errorf("scan token: %w", err)
		}
		tokens = append(tokens, t)
	}
	return tokens, rows.Err()
}

// InsertToken registers a token. Returns ErrDuplicateKey when the ticker is
// taken.
func (s *Store) InsertToken(ctx context.Context, t *domain.Token) error {
	query := `
		INSERT INTO tokens (
			id, ticker, name, description, total_supply, decimals,
			blockchain, standard, price_usd, tokens_available, tokens_sold,
			treasury_balance_usd, is_active, is_deployed, deploy_txid, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)`

	_, err := s.db.Exec(ctx, query,
		t.ID, t.Ticker, t.Name, t.Description, t.TotalSupply, t.Decimals,
		t.Blockchain, t.Standard, t.PriceUsd, t.TokensAvailable, t.TokensSold,
		t.TreasuryUsd, t.IsActive, t.IsDeployed, t.DeployTxid, t.CreatedAt,
	)
	if err != nil {
		if isDuplicateKeyError(err) {
			return storage.ErrDuplicateKey
		}
		return fmt.Errorf("insert token: %w", err)
	}
	return nil
}

// ApplyPurchaseToToken moves amount from available to sold and adds the USD
// amount to the treasury. The tokens_available >= 0 check constraint rejects
// supply overdraws as ErrConflict.
func (s *Store) ApplyPurchaseToToken(ctx context.Context, tokenID string, amount, usdAmount decimal.Decimal) error {
	query := `
		UPDATE tokens SET
			tokens_available = tokens_available - $2,
			tokens_sold = tokens_sold + $2,
			treasury_balance_usd = treasury_balance_usd + $3,
			updated_at = now()
		WHERE id = $1`

	tag, err := s.db.Exec(ctx, query, tokenID, amount, usdAmount)
	if err != nil {
		if isConstraintError(err) {
			return storage.ErrConflict
		}
		return fmt.Errorf("apply purchase to token: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return storage.ErrNotFound
	}
	return nil
}
