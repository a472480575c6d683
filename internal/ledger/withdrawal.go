package ledger

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"

	"github.com/matrixise/token-ledger/internal/domain"
	"github.com/matrixise/token-ledger/internal/storage"
)

// evmChains are blockchains whose destination addresses must be valid
// hex-encoded EVM addresses.
var evmChains = map[string]bool{
	"ethereum": true,
	"gnosis":   true,
	"polygon":  true,
	"base":     true,
	"arbitrum": true,
	"optimism": true,
}

func validDestination(destination, blockchain string) bool {
	if destination == "" {
		return false
	}
	if evmChains[strings.ToLower(blockchain)] {
		return common.IsHexAddress(destination)
	}
	return true
}

// RequestWithdrawalInput records intent to move balance on-chain.
type RequestWithdrawalInput struct {
	HolderID    string
	TokenID     string
	Amount      decimal.Decimal
	Destination string
	Blockchain  string // default: token's blockchain
	Notes       string
}

// RequestWithdrawal creates a pending withdrawal request. The balance is not
// debited at request time; instead the amount is placed on hold (pending_out)
// inside the same atomic unit as the availability check, so concurrent
// requests cannot both reserve the same funds. The debit happens when an
// external reconciler confirms the on-chain movement via CompleteWithdrawal.
func (l *Ledger) RequestWithdrawal(ctx context.Context, in RequestWithdrawalInput) (*domain.WithdrawalRequest, error) {
	if in.HolderID == "" || in.TokenID == "" {
		return nil, ErrInvalidInput
	}
	if err := validateAmount(in.Amount); err != nil {
		return nil, err
	}

	var out *domain.WithdrawalRequest
	err := l.inTx(ctx, func(tx storage.Tx) error {
		token, err := tx.GetToken(ctx, in.TokenID)
		if err != nil {
			if errors.Is(err, storage.ErrNotFound) {
				return ErrTokenNotFound
			}
			return err
		}

		chain := in.Blockchain
		if chain == "" {
			chain = token.Blockchain
		}
		if chain == "" {
			chain = l.defaultBlockchain
		}
		if !validDestination(in.Destination, chain) {
			return ErrInvalidDestination
		}

		bal, err := tx.GetBalanceForUpdate(ctx, in.HolderID, in.TokenID)
		if err != nil {
			if errors.Is(err, storage.ErrNotFound) {
				return ErrInsufficientBalance
			}
			return err
		}
		if bal.Available().LessThan(in.Amount) {
			return ErrInsufficientBalance
		}

		if err := tx.AddPendingOut(ctx, in.HolderID, in.TokenID, in.Amount); err != nil {
			return mapStorageErr(err)
		}

		req := &domain.WithdrawalRequest{
			ID:          newID(),
			HolderID:    in.HolderID,
			TokenID:     in.TokenID,
			Amount:      in.Amount,
			Destination: in.Destination,
			Blockchain:  chain,
			Status:      domain.WithdrawalPending,
			Notes:       in.Notes,
			CreatedAt:   time.Now().UTC(),
		}
		if err := tx.InsertWithdrawal(ctx, req); err != nil {
			return mapStorageErr(err)
		}

		out, err = tx.GetWithdrawal(ctx, req.ID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// GetWithdrawal returns a withdrawal request by id.
func (l *Ledger) GetWithdrawal(ctx context.Context, id string) (*domain.WithdrawalRequest, error) {
	w, err := l.store.GetWithdrawal(ctx, id)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, ErrNotFound
	}
	return w, err
}

// MarkWithdrawalBroadcast transitions a pending request to broadcast once
// the reconciler has put the movement on the wire.
func (l *Ledger) MarkWithdrawalBroadcast(ctx context.Context, id, txHash string) (*domain.WithdrawalRequest, error) {
	var out *domain.WithdrawalRequest
	err := l.inTx(ctx, func(tx storage.Tx) error {
		var err error
		out, err = tx.UpdateWithdrawalStatus(ctx, id, domain.WithdrawalPending, domain.WithdrawalBroadcast, txHash)
		return mapWithdrawalErr(err)
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// CompleteWithdrawal finalizes a broadcast request once the on-chain
// movement is confirmed: it records the withdrawal debit in the transaction
// log, releases the hold and marks the request confirmed, all in one unit.
func (l *Ledger) CompleteWithdrawal(ctx context.Context, id string) (*domain.WithdrawalRequest, error) {
	var out *domain.WithdrawalRequest
	err := l.inTx(ctx, func(tx storage.Tx) error {
		req, err := tx.GetWithdrawal(ctx, id)
		if err != nil {
			if errors.Is(err, storage.ErrNotFound) {
				return ErrNotFound
			}
			return err
		}
		if req.Status != domain.WithdrawalBroadcast {
			return ErrInvalidStateTransition
		}

		bal, err := tx.GetBalanceForUpdate(ctx, req.HolderID, req.TokenID)
		if err != nil {
			if errors.Is(err, storage.ErrNotFound) {
				return ErrInsufficientBalance
			}
			return err
		}
		// The held amount is part of pending_out, so the check is against
		// the full balance, not the available one.
		if bal.Balance.LessThan(req.Amount) {
			return ErrInsufficientBalance
		}

		if err := tx.DebitBalance(ctx, storage.DebitParams{
			HolderID: req.HolderID,
			TokenID:  req.TokenID,
			Amount:   req.Amount,
			Counter:  domain.CounterWithdrawn,
		}); err != nil {
			return mapStorageErr(err)
		}
		if err := tx.AddPendingOut(ctx, req.HolderID, req.TokenID, req.Amount.Neg()); err != nil {
			return mapStorageErr(err)
		}

		now := time.Now().UTC()
		entry := &domain.Transaction{
			ID:           newID(),
			TokenID:      req.TokenID,
			Type:         domain.TxWithdrawal,
			Amount:       req.Amount,
			FromHolderID: req.HolderID,
			ToAddress:    req.Destination,
			TxHash:       req.TxHash,
			Status:       domain.TxStatusConfirmed,
			CreatedAt:    now,
			ConfirmedAt:  &now,
		}
		if err := tx.InsertTransaction(ctx, entry); err != nil {
			return mapStorageErr(err)
		}

		out, err = tx.UpdateWithdrawalStatus(ctx, id, domain.WithdrawalBroadcast, domain.WithdrawalConfirmed, "")
		return mapWithdrawalErr(err)
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// FailWithdrawal marks a pending or broadcast request failed and releases
// its hold. No debit is recorded.
func (l *Ledger) FailWithdrawal(ctx context.Context, id string) (*domain.WithdrawalRequest, error) {
	var out *domain.WithdrawalRequest
	err := l.inTx(ctx, func(tx storage.Tx) error {
		req, err := tx.GetWithdrawal(ctx, id)
		if err != nil {
			if errors.Is(err, storage.ErrNotFound) {
				return ErrNotFound
			}
			return err
		}
		if req.Status != domain.WithdrawalPending && req.Status != domain.WithdrawalBroadcast {
			return ErrInvalidStateTransition
		}

		if err := tx.AddPendingOut(ctx, req.HolderID, req.TokenID, req.Amount.Neg()); err != nil {
			return mapStorageErr(err)
		}

		out, err = tx.UpdateWithdrawalStatus(ctx, id, req.Status, domain.WithdrawalFailed, "")
		return mapWithdrawalErr(err)
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func mapWithdrawalErr(err error) error {
	switch {
	case errors.Is(err, storage.ErrNotFound):
		return ErrNotFound
	case errors.Is(err, storage.ErrConflict):
		return ErrInvalidStateTransition
	}
	return err
}
