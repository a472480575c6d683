package ledger

import "github.com/matrixise/token-ledger/internal/domain"

// Direction says which way a transaction type moves a balance.
type Direction int

const (
	Credit Direction = iota
	Debit
)

// Effect is the balance consequence of one transaction type: which
// direction it moves the balance and which historical counter it bumps.
type Effect struct {
	Direction Direction
	Counter   domain.CounterField
}

// effects maps every single-sided transaction type to its balance effect.
// The composite transfer type is handled by Transfer and has no entry here.
var effects = map[domain.TransactionType]Effect{
	domain.TxPurchase:    {Credit, domain.CounterPurchased},
	domain.TxDeposit:     {Credit, domain.CounterReceived},
	domain.TxAirdrop:     {Credit, domain.CounterReceived},
	domain.TxMint:        {Credit, domain.CounterReceived},
	domain.TxTransferIn:  {Credit, domain.CounterReceived},
	domain.TxSale:        {Debit, domain.CounterSent},
	domain.TxBurn:        {Debit, domain.CounterSent},
	domain.TxTransferOut: {Debit, domain.CounterSent},
	domain.TxWithdrawal:  {Debit, domain.CounterWithdrawn},
}

// EffectFor returns the balance effect for a transaction type, with
// ok == false for types the generic engine does not apply.
func EffectFor(t domain.TransactionType) (Effect, bool) {
	e, ok := effects[t]
	return e, ok
}
