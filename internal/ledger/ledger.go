// Package ledger is the internal token accounting core. It tracks ownership
// of tokenized assets per (holder, token), guarantees conservation of value
// under concurrent purchases, transfers and withdrawal requests, and stays
// reconcilable with an external on-chain settlement layer.
//
// The ledger holds no in-process locks: every mutating operation runs inside
// one atomic unit of work (storage.Store.WithTx) and relies on the store's
// row-locking guarantees to serialize competing writers on the same balance
// row. A failed unit commits nothing.
package ledger

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/matrixise/token-ledger/internal/domain"
	"github.com/matrixise/token-ledger/internal/storage"
)

// defaultUsdToGbpRate is the fixed conversion applied to portfolio values.
var defaultUsdToGbpRate = decimal.NewFromFloat(0.79)

var defaultTotalSupply = decimal.New(1_000_000_000, 0)

// Options configures a Ledger.
type Options struct {
	// DefaultBlockchain is used when token registration or withdrawal
	// requests do not name one.
	DefaultBlockchain string

	// UsdToGbpRate overrides the fixed USD->GBP conversion (default 0.79).
	UsdToGbpRate decimal.Decimal
}

// Ledger exposes the accounting call surface. It exclusively owns all writes
// to balances and the transaction log.
type Ledger struct {
	store             storage.Store
	defaultBlockchain string
	usdToGbpRate      decimal.Decimal
}

// New creates a Ledger on top of a store.
func New(store storage.Store, opts Options) *Ledger {
	rate := opts.UsdToGbpRate
	if rate.IsZero() {
		rate = defaultUsdToGbpRate
	}
	chain := opts.DefaultBlockchain
	if chain == "" {
		chain = "BSV"
	}
	return &Ledger{
		store:             store,
		defaultBlockchain: chain,
		usdToGbpRate:      rate,
	}
}

// RegisterTokenInput describes a token registration.
type RegisterTokenInput struct {
	Ticker      string
	Name        string
	Description string
	TotalSupply decimal.Decimal // default 1e9
	Decimals    int             // default 8
	PriceUsd    decimal.Decimal // default 0.01
	Blockchain  string          // default Options.DefaultBlockchain
}

// RegisterToken creates a token with the full supply available and nothing
// sold. Returns ErrDuplicateTicker when the ticker is taken.
func (l *Ledger) RegisterToken(ctx context.Context, in RegisterTokenInput) (*domain.Token, error) {
	if in.Ticker == "" || in.Name == "" {
		return nil, fmt.Errorf("%w: ticker and name are required", ErrInvalidInput)
	}

	supply := in.TotalSupply
	if supply.IsZero() {
		supply = defaultTotalSupply
	}
	if supply.Sign() < 0 || !supply.IsInteger() {
		return nil, ErrInvalidAmount
	}
	price := in.PriceUsd
	if price.IsZero() {
		price = decimal.NewFromFloat(0.01)
	}
	chain := in.Blockchain
	if chain == "" {
		chain = l.defaultBlockchain
	}
	decimals := in.Decimals
	if decimals == 0 {
		decimals = 8
	}
	standard := "internal"
	if chain == "BSV" {
		standard = "1sat"
	}

	token := &domain.Token{
		ID:              newID(),
		Ticker:          in.Ticker,
		Name:            in.Name,
		Description:     in.Description,
		TotalSupply:     supply,
		Decimals:        decimals,
		Blockchain:      chain,
		Standard:        standard,
		PriceUsd:        price,
		TokensAvailable: supply,
		TokensSold:      decimal.Zero,
		TreasuryUsd:     decimal.Zero,
		IsActive:        true,
		CreatedAt:       time.Now().UTC(),
	}

	var out *domain.Token
	err := l.inTx(ctx, func(tx storage.Tx) error {
		if err := tx.InsertToken(ctx, token); err != nil {
			if errors.Is(err, storage.ErrDuplicateKey) {
				return ErrDuplicateTicker
			}
			return mapStorageErr(err)
		}
		var err error
		out, err = tx.GetToken(ctx, token.ID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// GetToken looks a token up by id or ticker, first match.
func (l *Ledger) GetToken(ctx context.Context, idOrTicker string) (*domain.Token, error) {
	token, err := l.store.GetToken(ctx, idOrTicker)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, ErrTokenNotFound
	}
	return token, err
}

// GetTokens returns all tokens ordered by ticker.
func (l *Ledger) GetTokens(ctx context.Context, activeOnly bool) ([]*domain.Token, error) {
	return l.store.ListTokens(ctx, activeOnly)
}

// GetBalance returns the balance row for (holder, token), or nil when the
// holder never held the token.
func (l *Ledger) GetBalance(ctx context.Context, holderID, tokenID string) (*domain.Balance, error) {
	bal, err := l.store.GetBalance(ctx, holderID, tokenID)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, nil
	}
	return bal, err
}

// GetBalances returns all balance rows for a holder.
func (l *Ledger) GetBalances(ctx context.Context, holderID string) ([]*domain.Balance, error) {
	return l.store.ListBalances(ctx, holderID)
}

// GetPortfolio values every holding at the token's current price. This is a
// best-effort snapshot read with no consistency guarantee across rows.
func (l *Ledger) GetPortfolio(ctx context.Context, holderID string) (*domain.PortfolioSummary, error) {
	balances, err := l.store.ListBalances(ctx, holderID)
	if err != nil {
		return nil, err
	}

	tokens, err := l.store.ListTokens(ctx, false)
	if err != nil {
		return nil, err
	}
	prices := make(map[string]decimal.Decimal, len(tokens))
	for _, t := range tokens {
		prices[t.ID] = t.PriceUsd
	}

	totalUsd := decimal.Zero
	for _, b := range balances {
		if price, ok := prices[b.TokenID]; ok {
			totalUsd = totalUsd.Add(b.Balance.Mul(price))
		}
	}

	return &domain.PortfolioSummary{
		HolderID:      holderID,
		Balances:      balances,
		TotalValueUsd: totalUsd,
		TotalValueGbp: totalUsd.Mul(l.usdToGbpRate),
		LastUpdated:   time.Now().UTC(),
	}, nil
}

// GetHolders returns non-zero holders of a token, descending by balance,
// paginated.
func (l *Ledger) GetHolders(ctx context.Context, q domain.HoldersQuery) ([]*domain.Balance, error) {
	if q.Limit <= 0 {
		q.Limit = 100
	}
	return l.store.ListHolders(ctx, q)
}

// validateAmount enforces exact positive integer amounts everywhere.
func validateAmount(amount decimal.Decimal) error {
	if amount.Sign() <= 0 || !amount.IsInteger() {
		return ErrInvalidAmount
	}
	return nil
}

// inTx runs fn as one atomic unit. Store-level aborts that escape fn, such
// as a unit picked as a deadlock victim, are folded into the taxonomy as
// ErrStorageConflict.
func (l *Ledger) inTx(ctx context.Context, fn func(tx storage.Tx) error) error {
	return mapStorageErr(l.store.WithTx(ctx, fn))
}

// mapStorageErr translates storage sentinel errors into the ledger taxonomy.
func mapStorageErr(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, storage.ErrConflict), errors.Is(err, storage.ErrDuplicateKey):
		return fmt.Errorf("%w: %v", ErrStorageConflict, err)
	default:
		return err
	}
}
