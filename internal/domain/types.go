package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// TransactionType classifies a balance-affecting event.
type TransactionType string

const (
	TxPurchase    TransactionType = "purchase"
	TxSale        TransactionType = "sale"
	TxDeposit     TransactionType = "deposit"
	TxWithdrawal  TransactionType = "withdrawal"
	TxTransferIn  TransactionType = "transfer_in"
	TxTransferOut TransactionType = "transfer_out"
	TxAirdrop     TransactionType = "airdrop"
	TxMint        TransactionType = "mint"
	TxBurn        TransactionType = "burn"
	TxTransfer    TransactionType = "transfer"
)

// TransactionStatus tracks external confirmation of a logged event.
type TransactionStatus string

const (
	TxStatusPending   TransactionStatus = "pending"
	TxStatusConfirmed TransactionStatus = "confirmed"
)

// WithdrawalStatus is the lifecycle state of a withdrawal request.
// pending -> broadcast -> confirmed | failed. Confirmed and failed are
// terminal.
type WithdrawalStatus string

const (
	WithdrawalPending   WithdrawalStatus = "pending"
	WithdrawalBroadcast WithdrawalStatus = "broadcast"
	WithdrawalConfirmed WithdrawalStatus = "confirmed"
	WithdrawalFailed    WithdrawalStatus = "failed"
)

// CounterField names the historical movement counter a balance effect
// increments.
type CounterField string

const (
	CounterPurchased CounterField = "purchased"
	CounterReceived  CounterField = "received"
	CounterSent      CounterField = "sent"
	CounterWithdrawn CounterField = "withdrawn"
)

// Token is a registered fungible asset tracked by the ledger.
// tokens_available and tokens_sold move in lockstep and always sum to
// TotalSupply.
type Token struct {
	ID              string
	Ticker          string
	Name            string
	Description     string
	TotalSupply     decimal.Decimal
	Decimals        int
	Blockchain      string
	Standard        string
	PriceUsd        decimal.Decimal
	TokensAvailable decimal.Decimal
	TokensSold      decimal.Decimal
	TreasuryUsd     decimal.Decimal
	IsActive        bool
	IsDeployed      bool
	DeployTxid      string
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// Balance is a holder's running total for one token plus historical
// movement counters. Invariant:
// Balance == TotalPurchased + TotalReceived - TotalSent - TotalWithdrawn,
// and Balance >= 0 at all times. PendingOut holds amounts reserved by
// in-flight withdrawal requests; Available() is what new debits may spend.
type Balance struct {
	HolderID         string
	TokenID          string
	Ticker           string
	Balance          decimal.Decimal
	PendingOut       decimal.Decimal
	TotalPurchased   decimal.Decimal
	TotalReceived    decimal.Decimal
	TotalSent        decimal.Decimal
	TotalWithdrawn   decimal.Decimal
	AverageBuyPrice  *decimal.Decimal
	TotalInvestedUsd decimal.Decimal
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// Available returns the balance spendable by new debits, net of withdrawal
// holds.
func (b *Balance) Available() decimal.Decimal {
	return b.Balance.Sub(b.PendingOut)
}

// Transaction is one immutable entry in the append-only audit trail.
// Only Status (and ConfirmedAt/TxHash with it) may change after insert,
// pending -> confirmed.
type Transaction struct {
	ID           string
	TokenID      string
	Type         TransactionType
	Amount       decimal.Decimal
	FromHolderID string
	ToHolderID   string
	FromAddress  string
	ToAddress    string
	TxHash       string
	Status       TransactionStatus
	Notes        string
	CreatedAt    time.Time
	ConfirmedAt  *time.Time
}

// Purchase is the payment-backed acquisition record written alongside a
// purchase transaction.
type Purchase struct {
	ID              string
	HolderID        string
	TokenID         string
	TokenAmount     decimal.Decimal
	UsdAmount       decimal.Decimal
	PricePerToken   decimal.Decimal
	PaymentMethod   string
	PaymentCurrency string
	PaymentAmount   decimal.Decimal
	PaymentRef      string
	Status          string
	Notes           string
	CreatedAt       time.Time
	ConfirmedAt     *time.Time
}

// WithdrawalRequest records intent to move off-chain balance to an on-chain
// destination. It is not a ledger-confirmed movement until an external
// reconciler completes it.
type WithdrawalRequest struct {
	ID          string
	HolderID    string
	TokenID     string
	Amount      decimal.Decimal
	Destination string
	Blockchain  string
	Status      WithdrawalStatus
	TxHash      string
	Notes       string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Shareholder links a ledger holder to a cap-table identity used by
// dividend distributions.
type Shareholder struct {
	ID       string
	HolderID string
	Email    string
}

// DividendDistribution is a snapshot payout event computed by an external
// batch process.
type DividendDistribution struct {
	ID             string
	TokenID        string
	TotalAmountUsd decimal.Decimal
	Currency       string
	SnapshotAt     time.Time
	CreatedAt      time.Time
}

// DividendPayment is a per-shareholder entitlement against a distribution.
type DividendPayment struct {
	ID             string
	DistributionID string
	ShareholderID  string
	EligibleTokens decimal.Decimal
	PaymentAmount  decimal.Decimal
	Currency       string
	Status         string
	CreatedAt      time.Time

	Distribution *DividendDistribution
}

// PortfolioSummary is a best-effort valuation snapshot across a holder's
// balances. No transactional consistency across rows is guaranteed.
type PortfolioSummary struct {
	HolderID      string
	Balances      []*Balance
	TotalValueUsd decimal.Decimal
	TotalValueGbp decimal.Decimal
	LastUpdated   time.Time
}

// HoldersQuery selects ranked non-zero holders of a token.
type HoldersQuery struct {
	TokenID    string
	MinBalance *decimal.Decimal
	Limit      int
	Offset     int
}

// TransactionQuery filters the transaction log. HolderID matches either
// side of an entry; an empty Types slice matches every type.
type TransactionQuery struct {
	HolderID string
	Types    []TransactionType
	FromDate *time.Time
	ToDate   *time.Time
	Limit    int
	Offset   int
}
