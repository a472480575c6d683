// Package memory is an in-memory implementation of the storage contract,
// used by ledger unit tests. WithTx serializes all units under one mutex and
// runs each against a deep copy of the dataset that is swapped in only on
// success, which gives the same all-or-nothing and serialization guarantees
// the ledger requires from the real store.
package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/matrixise/token-ledger/internal/domain"
	"github.com/matrixise/token-ledger/internal/storage"
)

type balanceKey struct {
	holderID string
	tokenID  string
}

type dataset struct {
	tokens        map[string]*domain.Token
	balances      map[balanceKey]*domain.Balance
	transactions  map[string]*domain.Transaction
	txOrder       []string
	purchases     map[string]*domain.Purchase
	withdrawals   map[string]*domain.WithdrawalRequest
	shareholders  []*domain.Shareholder
	distributions map[string]*domain.DividendDistribution
	payments      []*domain.DividendPayment
}

func newDataset() *dataset {
	return &dataset{
		tokens:        make(map[string]*domain.Token),
		balances:      make(map[balanceKey]*domain.Balance),
		transactions:  make(map[string]*domain.Transaction),
		purchases:     make(map[string]*domain.Purchase),
		withdrawals:   make(map[string]*domain.WithdrawalRequest),
		distributions: make(map[string]*domain.DividendDistribution),
	}
}

func (d *dataset) clone() *dataset {
	c := newDataset()
	for id, t := range d.tokens {
		cp := *t
		c.tokens[id] = &cp
	}
	for k, b := range d.balances {
		cp := *b
		c.balances[k] = &cp
	}
	for id, t := range d.transactions {
		cp := *t
		c.transactions[id] = &cp
	}
	c.txOrder = append([]string(nil), d.txOrder...)
	for id, p := range d.purchases {
		cp := *p
		c.purchases[id] = &cp
	}
	for id, w := range d.withdrawals {
		cp := *w
		c.withdrawals[id] = &cp
	}
	for _, sh := range d.shareholders {
		cp := *sh
		c.shareholders = append(c.shareholders, &cp)
	}
	for id, dd := range d.distributions {
		cp := *dd
		c.distributions[id] = &cp
	}
	for _, p := range d.payments {
		cp := *p
		c.payments = append(c.payments, &cp)
	}
	return c
}

// Store implements storage.Store in memory.
type Store struct {
	mu   sync.Mutex
	data *dataset
}

// Compile-time interface check.
var _ storage.Store = (*Store)(nil)

// NewStore creates an empty in-memory store.
func NewStore() *Store {
	return &Store{data: newDataset()}
}

// WithTx runs fn against a copy of the dataset and commits the copy only
// when fn succeeds. Units are fully serialized.
func (s *Store) WithTx(_ context.Context, fn func(tx storage.Tx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	work := s.data.clone()
	if err := fn(&memTx{data: work}); err != nil {
		return err
	}
	s.data = work
	return nil
}

// Ping always succeeds.
func (s *Store) Ping(context.Context) error { return nil }

// SeedBalance writes a balance row as-is, bypassing the credit and debit
// paths. For tests that need rows the normal flows cannot produce.
func (s *Store) SeedBalance(b *domain.Balance) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *b
	s.data.balances[balanceKey{b.HolderID, b.TokenID}] = &cp
}

// SeedShareholder links a cap-table identity, for tests.
func (s *Store) SeedShareholder(sh *domain.Shareholder) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *sh
	s.data.shareholders = append(s.data.shareholders, &cp)
}

// SeedDividend adds a distribution with one payment, for tests.
func (s *Store) SeedDividend(d *domain.DividendDistribution, p *domain.DividendPayment) {
	s.mu.Lock()
	defer s.mu.Unlock()
	dc := *d
	pc := *p
	s.data.distributions[d.ID] = &dc
	s.data.payments = append(s.data.payments, &pc)
}

// Reader methods on Store take the mutex and read the committed dataset.

func (s *Store) GetToken(ctx context.Context, idOrTicker string) (*domain.Token, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.data.getToken(idOrTicker)
}

func (s *Store) ListTokens(ctx context.Context, activeOnly bool) ([]*domain.Token, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.data.listTokens(activeOnly)
}

func (s *Store) GetBalance(ctx context.Context, holderID, tokenID string) (*domain.Balance, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.data.getBalance(holderID, tokenID)
}

func (s *Store) ListBalances(ctx context.Context, holderID string) ([]*domain.Balance, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.data.listBalances(holderID)
}

func (s *Store) ListHolders(ctx context.Context, q domain.HoldersQuery) ([]*domain.Balance, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.data.listHolders(q)
}

func (s *Store) ListAllBalances(ctx context.Context, limit, offset int) ([]*domain.Balance, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.data.listAllBalances(limit, offset)
}

func (s *Store) GetTransaction(ctx context.Context, id string) (*domain.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.data.getTransaction(id)
}

func (s *Store) ListTransactions(ctx context.Context, q domain.TransactionQuery) ([]*domain.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.data.listTransactions(q)
}

func (s *Store) GetWithdrawal(ctx context.Context, id string) (*domain.WithdrawalRequest, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.data.getWithdrawal(id)
}

func (s *Store) ListShareholderIDs(ctx context.Context, holderID string) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.data.listShareholderIDs(holderID)
}

func (s *Store) ListPendingDividends(ctx context.Context, shareholderIDs []string) ([]*domain.DividendPayment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.data.listPendingDividends(shareholderIDs)
}

// dataset reads, shared by the store and open transactions.

func (d *dataset) getToken(idOrTicker string) (*domain.Token, error) {
	if t, ok := d.tokens[idOrTicker]; ok {
		cp := *t
		return &cp, nil
	}
	for _, t := range d.tokens {
		if t.Ticker == idOrTicker {
			cp := *t
			return &cp, nil
		}
	}
	return nil, storage.ErrNotFound
}

func (d *dataset) listTokens(activeOnly bool) ([]*domain.Token, error) {
	var tokens []*domain.Token
	for _, t := range d.tokens {
		if activeOnly && !t.IsActive {
			continue
		}
		cp := *t
		tokens = append(tokens, &cp)
	}
	sort.Slice(tokens, func(i, j int) bool { return tokens[i].Ticker < tokens[j].Ticker })
	return tokens, nil
}

func (d *dataset) getBalance(holderID, tokenID string) (*domain.Balance, error) {
	b, ok := d.balances[balanceKey{holderID, tokenID}]
	if !ok {
		return nil, storage.ErrNotFound
	}
	cp := *b
	if t, ok := d.tokens[b.TokenID]; ok {
		cp.Ticker = t.Ticker
	}
	return &cp, nil
}

func (d *dataset) listBalances(holderID string) ([]*domain.Balance, error) {
	var balances []*domain.Balance
	for k, b := range d.balances {
		if k.holderID != holderID {
			continue
		}
		cp := *b
		if t, ok := d.tokens[b.TokenID]; ok {
			cp.Ticker = t.Ticker
		}
		balances = append(balances, &cp)
	}
	sort.Slice(balances, func(i, j int) bool { return balances[i].Ticker < balances[j].Ticker })
	return balances, nil
}

func (d *dataset) listHolders(q domain.HoldersQuery) ([]*domain.Balance, error) {
	var holders []*domain.Balance
	for k, b := range d.balances {
		if k.tokenID != q.TokenID {
			continue
		}
		if q.MinBalance != nil {
			if b.Balance.LessThan(*q.MinBalance) {
				continue
			}
		} else if b.Balance.Sign() <= 0 {
			continue
		}
		cp := *b
		if t, ok := d.tokens[b.TokenID]; ok {
			cp.Ticker = t.Ticker
		}
		holders = append(holders, &cp)
	}
	sort.Slice(holders, func(i, j int) bool {
		if !holders[i].Balance.Equal(holders[j].Balance) {
			return holders[i].Balance.GreaterThan(holders[j].Balance)
		}
		return holders[i].HolderID < holders[j].HolderID
	})
	return paginate(holders, q.Limit, q.Offset), nil
}

func (d *dataset) listAllBalances(limit, offset int) ([]*domain.Balance, error) {
	var balances []*domain.Balance
	for _, b := range d.balances {
		cp := *b
		if t, ok := d.tokens[b.TokenID]; ok {
			cp.Ticker = t.Ticker
		}
		balances = append(balances, &cp)
	}
	sort.Slice(balances, func(i, j int) bool {
		if balances[i].HolderID != balances[j].HolderID {
			return balances[i].HolderID < balances[j].HolderID
		}
		return balances[i].TokenID < balances[j].TokenID
	})
	return paginate(balances, limit, offset), nil
}

func (d *dataset) getTransaction(id string) (*domain.Transaction, error) {
	t, ok := d.transactions[id]
	if !ok {
		return nil, storage.ErrNotFound
	}
	cp := *t
	return &cp, nil
}

func (d *dataset) listTransactions(q domain.TransactionQuery) ([]*domain.Transaction, error) {
	typeSet := make(map[domain.TransactionType]bool, len(q.Types))
	for _, t := range q.Types {
		typeSet[t] = true
	}

	var txs []*domain.Transaction
	// txOrder is append order; walk backwards for newest first.
	for i := len(d.txOrder) - 1; i >= 0; i-- {
		t := d.transactions[d.txOrder[i]]
		if q.HolderID != "" && t.FromHolderID != q.HolderID && t.ToHolderID != q.HolderID {
			continue
		}
		if len(typeSet) > 0 && !typeSet[t.Type] {
			continue
		}
		if q.FromDate != nil && t.CreatedAt.Before(*q.FromDate) {
			continue
		}
		if q.ToDate != nil && t.CreatedAt.After(*q.ToDate) {
			continue
		}
		cp := *t
		txs = append(txs, &cp)
	}
	return paginate(txs, q.Limit, q.Offset), nil
}

func (d *dataset) getWithdrawal(id string) (*domain.WithdrawalRequest, error) {
	w, ok := d.withdrawals[id]
	if !ok {
		return nil, storage.ErrNotFound
	}
	cp := *w
	return &cp, nil
}

func (d *dataset) listShareholderIDs(holderID string) ([]string, error) {
	var ids []string
	for _, sh := range d.shareholders {
		if sh.HolderID == holderID || sh.Email == holderID {
			ids = append(ids, sh.ID)
		}
	}
	return ids, nil
}

func (d *dataset) listPendingDividends(shareholderIDs []string) ([]*domain.DividendPayment, error) {
	idSet := make(map[string]bool, len(shareholderIDs))
	for _, id := range shareholderIDs {
		idSet[id] = true
	}

	var payments []*domain.DividendPayment
	for _, p := range d.payments {
		if !idSet[p.ShareholderID] || p.Status != "pending" {
			continue
		}
		cp := *p
		if dist, ok := d.distributions[p.DistributionID]; ok {
			dc := *dist
			cp.Distribution = &dc
		}
		payments = append(payments, &cp)
	}
	return payments, nil
}

func paginate[T any](items []T, limit, offset int) []T {
	if offset >= len(items) {
		return nil
	}
	items = items[offset:]
	if limit > 0 && limit < len(items) {
		items = items[:limit]
	}
	return items
}
