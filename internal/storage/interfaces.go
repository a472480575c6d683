package storage

import (
	"context"

	"github.com/shopspring/decimal"

	"github.com/matrixise/token-ledger/internal/domain"
)

// Reader provides snapshot reads. Outside a transaction these are
// unsynchronized and may trail in-flight commits.
type Reader interface {
	// GetToken looks a token up by id or ticker, first match.
	// Returns ErrNotFound if neither matches.
	GetToken(ctx context.Context, idOrTicker string) (*domain.Token, error)

	// ListTokens returns all tokens ordered by ticker, optionally only
	// active ones.
	ListTokens(ctx context.Context, activeOnly bool) ([]*domain.Token, error)

	// GetBalance returns the balance row for (holder, token).
	// Returns ErrNotFound if the holder never held the token.
	GetBalance(ctx context.Context, holderID, tokenID string) (*domain.Balance, error)

	// ListBalances returns all balance rows for a holder.
	ListBalances(ctx context.Context, holderID string) ([]*domain.Balance, error)

	// ListHolders returns non-zero balances of a token, descending by
	// balance, paginated.
	ListHolders(ctx context.Context, q domain.HoldersQuery) ([]*domain.Balance, error)

	// ListAllBalances pages through every balance row, ordered by
	// (holder_id, token_id). Used by the invariant auditor.
	ListAllBalances(ctx context.Context, limit, offset int) ([]*domain.Balance, error)

	// GetTransaction returns one log entry. Returns ErrNotFound if absent.
	GetTransaction(ctx context.Context, id string) (*domain.Transaction, error)

	// ListTransactions filters the transaction log, newest first, paginated.
	ListTransactions(ctx context.Context, q domain.TransactionQuery) ([]*domain.Transaction, error)

	// GetWithdrawal returns one withdrawal request. ErrNotFound if absent.
	GetWithdrawal(ctx context.Context, id string) (*domain.WithdrawalRequest, error)

	// ListShareholderIDs resolves a holder to cap-table shareholder ids,
	// matching either the holder link or the holder id used as an email
	// identity.
	ListShareholderIDs(ctx context.Context, holderID string) ([]string, error)

	// ListPendingDividends returns pending payments for the given
	// shareholders, each joined to its parent distribution.
	ListPendingDividends(ctx context.Context, shareholderIDs []string) ([]*domain.DividendPayment, error)
}

// CreditParams describes a balance credit. Credits are upserts: the row is
// created with initial counters when absent.
type CreditParams struct {
	HolderID string
	TokenID  string
	Amount   decimal.Decimal
	Counter  domain.CounterField // CounterPurchased or CounterReceived
	// InvestedUsd and Price accompany purchased credits; the store
	// accumulates invested USD and recomputes the average buy price.
	InvestedUsd decimal.Decimal
	Price       decimal.Decimal
}

// DebitParams describes a balance debit. The caller must have locked the row
// and verified sufficient funds inside the same transaction.
type DebitParams struct {
	HolderID string
	TokenID  string
	Amount   decimal.Decimal
	Counter  domain.CounterField // CounterSent or CounterWithdrawn
}

// Tx is the mutation surface available inside one atomic unit of work.
// Every write either commits with the whole unit or not at all.
type Tx interface {
	Reader

	// InsertToken registers a token. Returns ErrDuplicateKey when the
	// ticker is taken.
	InsertToken(ctx context.Context, t *domain.Token) error

	// GetBalanceForUpdate reads a balance row under an exclusive row lock
	// held until the unit commits. Returns ErrNotFound if absent.
	GetBalanceForUpdate(ctx context.Context, holderID, tokenID string) (*domain.Balance, error)

	// CreditBalance applies a credit upsert.
	CreditBalance(ctx context.Context, p CreditParams) error

	// DebitBalance decrements balance and increments the debit counter.
	DebitBalance(ctx context.Context, p DebitParams) error

	// AddPendingOut adjusts the withdrawal hold by delta (positive to
	// place a hold, negative to release).
	AddPendingOut(ctx context.Context, holderID, tokenID string, delta decimal.Decimal) error

	// InsertTransaction appends one entry to the transaction log.
	InsertTransaction(ctx context.Context, t *domain.Transaction) error

	// ConfirmTransaction transitions an entry pending -> confirmed and
	// records its on-chain hash. Returns ErrNotFound when absent,
	// ErrConflict when the entry is not pending.
	ConfirmTransaction(ctx context.Context, id, txHash string) (*domain.Transaction, error)

	// InsertPurchase records the payment-backed acquisition.
	InsertPurchase(ctx context.Context, p *domain.Purchase) error

	// ApplyPurchaseToToken moves amount from available to sold and adds
	// usdAmount to the treasury. Returns ErrConflict when the supply
	// would be overdrawn.
	ApplyPurchaseToToken(ctx context.Context, tokenID string, amount, usdAmount decimal.Decimal) error

	// InsertWithdrawal creates a withdrawal request row.
	InsertWithdrawal(ctx context.Context, w *domain.WithdrawalRequest) error

	// UpdateWithdrawalStatus transitions a request from -> to, recording
	// txHash when non-empty. Returns ErrNotFound when absent, ErrConflict
	// when the request is not in the expected from state.
	UpdateWithdrawalStatus(ctx context.Context, id string, from, to domain.WithdrawalStatus, txHash string) (*domain.WithdrawalRequest, error)
}

// Store is the persistence contract the ledger is built on. Correctness of
// concurrent mutations is delegated entirely to WithTx: implementations must
// guarantee that row locks taken via GetBalanceForUpdate serialize competing
// units touching the same (holder, token) row, and that a unit returning an
// error leaves no partial writes.
type Store interface {
	Reader

	// WithTx runs fn inside one atomic unit. Any error aborts and rolls
	// back the entire unit.
	WithTx(ctx context.Context, fn func(tx Tx) error) error

	// Ping verifies the store is reachable.
	Ping(ctx context.Context) error
}
