package memory

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/matrixise/token-ledger/internal/domain"
	"github.com/matrixise/token-ledger/internal/storage"
)

// memTx mutates the working copy of the dataset. The store mutex is held
// for the whole unit, so no additional locking is needed; row locks are a
// no-op because units never interleave.
type memTx struct {
	data *dataset
}

var _ storage.Tx = (*memTx)(nil)

func (t *memTx) GetToken(_ context.Context, idOrTicker string) (*domain.Token, error) {
	return t.data.getToken(idOrTicker)
}

func (t *memTx) ListTokens(_ context.Context, activeOnly bool) ([]*domain.Token, error) {
	return t.data.listTokens(activeOnly)
}

func (t *memTx) GetBalance(_ context.Context, holderID, tokenID string) (*domain.Balance, error) {
	return t.data.getBalance(holderID, tokenID)
}

func (t *memTx) ListBalances(_ context.Context, holderID string) ([]*domain.Balance, error) {
	return t.data.listBalances(holderID)
}

func (t *memTx) ListHolders(_ context.Context, q domain.HoldersQuery) ([]*domain.Balance, error) {
	return t.data.listHolders(q)
}

func (t *memTx) ListAllBalances(_ context.Context, limit, offset int) ([]*domain.Balance, error) {
	return t.data.listAllBalances(limit, offset)
}

func (t *memTx) GetTransaction(_ context.Context, id string) (*domain.Transaction, error) {
	return t.data.getTransaction(id)
}

func (t *memTx) ListTransactions(_ context.Context, q domain.TransactionQuery) ([]*domain.Transaction, error) {
	return t.data.listTransactions(q)
}

func (t *memTx) GetWithdrawal(_ context.Context, id string) (*domain.WithdrawalRequest, error) {
	return t.data.getWithdrawal(id)
}

func (t *memTx) ListShareholderIDs(_ context.Context, holderID string) ([]string, error) {
	return t.data.listShareholderIDs(holderID)
}

func (t *memTx) ListPendingDividends(_ context.Context, shareholderIDs []string) ([]*domain.DividendPayment, error) {
	return t.data.listPendingDividends(shareholderIDs)
}

func (t *memTx) InsertToken(_ context.Context, token *domain.Token) error {
	for _, existing := range t.data.tokens {
		if existing.Ticker == token.Ticker {
			return storage.ErrDuplicateKey
		}
	}
	if _, exists := t.data.tokens[token.ID]; exists {
		return storage.ErrDuplicateKey
	}
	cp := *token
	cp.UpdatedAt = cp.CreatedAt
	t.data.tokens[token.ID] = &cp
	return nil
}

func (t *memTx) GetBalanceForUpdate(_ context.Context, holderID, tokenID string) (*domain.Balance, error) {
	b, ok := t.data.balances[balanceKey{holderID, tokenID}]
	if !ok {
		return nil, storage.ErrNotFound
	}
	cp := *b
	return &cp, nil
}

func (t *memTx) CreditBalance(_ context.Context, p storage.CreditParams) error {
	if p.Counter != domain.CounterPurchased && p.Counter != domain.CounterReceived {
		return storage.ErrInvalidInput
	}

	now := time.Now().UTC()
	key := balanceKey{p.HolderID, p.TokenID}
	b, ok := t.data.balances[key]
	if !ok {
		b = &domain.Balance{
			HolderID:  p.HolderID,
			TokenID:   p.TokenID,
			CreatedAt: now,
		}
		t.data.balances[key] = b
	}

	b.Balance = b.Balance.Add(p.Amount)
	switch p.Counter {
	case domain.CounterPurchased:
		b.TotalPurchased = b.TotalPurchased.Add(p.Amount)
		b.TotalInvestedUsd = b.TotalInvestedUsd.Add(p.InvestedUsd)
		if b.TotalPurchased.Sign() > 0 && b.TotalInvestedUsd.Sign() > 0 {
			avg := b.TotalInvestedUsd.DivRound(b.TotalPurchased, 10)
			b.AverageBuyPrice = &avg
		} else if !ok && !p.Price.IsZero() {
			price := p.Price
			b.AverageBuyPrice = &price
		}
	case domain.CounterReceived:
		b.TotalReceived = b.TotalReceived.Add(p.Amount)
	}
	b.UpdatedAt = now
	return nil
}

func (t *memTx) DebitBalance(_ context.Context, p storage.DebitParams) error {
	if p.Counter != domain.CounterSent && p.Counter != domain.CounterWithdrawn {
		return storage.ErrInvalidInput
	}

	b, ok := t.data.balances[balanceKey{p.HolderID, p.TokenID}]
	if !ok {
		return storage.ErrNotFound
	}

	next := b.Balance.Sub(p.Amount)
	if next.Sign() < 0 {
		return storage.ErrConflict
	}
	b.Balance = next
	switch p.Counter {
	case domain.CounterSent:
		b.TotalSent = b.TotalSent.Add(p.Amount)
	case domain.CounterWithdrawn:
		b.TotalWithdrawn = b.TotalWithdrawn.Add(p.Amount)
	}
	b.UpdatedAt = time.Now().UTC()
	return nil
}

func (t *memTx) AddPendingOut(_ context.Context, holderID, tokenID string, delta decimal.Decimal) error {
	b, ok := t.data.balances[balanceKey{holderID, tokenID}]
	if !ok {
		return storage.ErrNotFound
	}

	next := b.PendingOut.Add(delta)
	if next.Sign() < 0 {
		return storage.ErrConflict
	}
	b.PendingOut = next
	b.UpdatedAt = time.Now().UTC()
	return nil
}

func (t *memTx) InsertTransaction(_ context.Context, tr *domain.Transaction) error {
	if _, exists := t.data.transactions[tr.ID]; exists {
		return storage.ErrDuplicateKey
	}
	cp := *tr
	t.data.transactions[tr.ID] = &cp
	t.data.txOrder = append(t.data.txOrder, tr.ID)
	return nil
}

func (t *memTx) ConfirmTransaction(_ context.Context, id, txHash string) (*domain.Transaction, error) {
	tr, ok := t.data.transactions[id]
	if !ok {
		return nil, storage.ErrNotFound
	}
	if tr.Status != domain.TxStatusPending {
		return nil, storage.ErrConflict
	}

	now := time.Now().UTC()
	tr.Status = domain.TxStatusConfirmed
	tr.ConfirmedAt = &now
	if txHash != "" {
		tr.TxHash = txHash
	}
	cp := *tr
	return &cp, nil
}

func (t *memTx) InsertPurchase(_ context.Context, p *domain.Purchase) error {
	if _, exists := t.data.purchases[p.ID]; exists {
		return storage.ErrDuplicateKey
	}
	cp := *p
	t.data.purchases[p.ID] = &cp
	return nil
}

func (t *memTx) ApplyPurchaseToToken(_ context.Context, tokenID string, amount, usdAmount decimal.Decimal) error {
	token, ok := t.data.tokens[tokenID]
	if !ok {
		return storage.ErrNotFound
	}

	nextAvailable := token.TokensAvailable.Sub(amount)
	if nextAvailable.Sign() < 0 {
		return storage.ErrConflict
	}
	token.TokensAvailable = nextAvailable
	token.TokensSold = token.TokensSold.Add(amount)
	token.TreasuryUsd = token.TreasuryUsd.Add(usdAmount)
	token.UpdatedAt = time.Now().UTC()
	return nil
}

func (t *memTx) InsertWithdrawal(_ context.Context, w *domain.WithdrawalRequest) error {
	if _, exists := t.data.withdrawals[w.ID]; exists {
		return storage.ErrDuplicateKey
	}
	cp := *w
	cp.UpdatedAt = cp.CreatedAt
	t.data.withdrawals[w.ID] = &cp
	return nil
}

func (t *memTx) UpdateWithdrawalStatus(_ context.Context, id string, from, to domain.WithdrawalStatus, txHash string) (*domain.WithdrawalRequest, error) {
	w, ok := t.data.withdrawals[id]
	if !ok {
		return nil, storage.ErrNotFound
	}
	if w.Status != from {
		return nil, storage.ErrConflict
	}

	w.Status = to
	if txHash != "" {
		w.TxHash = txHash
	}
	w.UpdatedAt = time.Now().UTC()
	cp := *w
	return &cp, nil
}
