// Package audit sweeps the ledger for accounting violations. Each sweep
// verifies two identities: every balance row must equal purchased plus
// received minus sent minus withdrawn, and every token's available plus
// sold amounts must equal its total supply.
package audit

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/matrixise/token-ledger/internal/storage"
)

const defaultBatchSize = 500

// ViolationKind identifies which identity a row broke.
type ViolationKind string

const (
	ViolationConservation ViolationKind = "conservation"
	ViolationNegative     ViolationKind = "negative"
	ViolationHoldExceeds  ViolationKind = "hold_exceeds_balance"
	ViolationSupply       ViolationKind = "supply"
)

// Violation describes one row that failed a check.
type Violation struct {
	Kind     ViolationKind `json:"kind"`
	HolderID string        `json:"holder_id,omitempty"`
	TokenID  string        `json:"token_id"`
	Detail   string        `json:"detail"`
}

// Report summarizes a completed sweep.
type Report struct {
	StartedAt       time.Time     `json:"started_at"`
	Duration        time.Duration `json:"duration"`
	CheckedBalances int           `json:"checked_balances"`
	CheckedTokens   int           `json:"checked_tokens"`
	Violations      []Violation   `json:"violations"`
}

// Clean reports whether the sweep found no violations.
func (r *Report) Clean() bool { return len(r.Violations) == 0 }

// Auditor runs read-only sweeps against a store.
type Auditor struct {
	store     storage.Store
	batchSize int
	logger    *slog.Logger
}

// Options configures an Auditor.
type Options struct {
	BatchSize int
	Logger    *slog.Logger
}

// New creates an auditor over the given store.
func New(store storage.Store, opts Options) *Auditor {
	if opts.BatchSize <= 0 {
		opts.BatchSize = defaultBatchSize
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &Auditor{
		store:     store,
		batchSize: opts.BatchSize,
		logger:    opts.Logger,
	}
}

// Run sweeps all balances and tokens and returns a report. Violations do
// not abort the sweep; only storage errors do.
func (a *Auditor) Run(ctx context.Context) (*Report, error) {
	report := &Report{StartedAt: time.Now().UTC()}

	if err := a.sweepBalances(ctx, report); err != nil {
		return nil, err
	}
	if err := a.sweepTokens(ctx, report); err != nil {
		return nil, err
	}

	report.Duration = time.Since(report.StartedAt)
	if report.Clean() {
		a.logger.Info("Audit sweep clean",
			"balances", report.CheckedBalances,
			"tokens", report.CheckedTokens,
			"duration", report.Duration.Round(time.Millisecond))
	} else {
		a.logger.Error("Audit sweep found violations",
			"balances", report.CheckedBalances,
			"tokens", report.CheckedTokens,
			"violations", len(report.Violations))
		for _, v := range report.Violations {
			a.logger.Error("Ledger violation",
				"kind", string(v.Kind),
				"holder_id", v.HolderID,
				"token_id", v.TokenID,
				"detail", v.Detail)
		}
	}
	return report, nil
}

func (a *Auditor) sweepBalances(ctx context.Context, report *Report) error {
	for offset := 0; ; offset += a.batchSize {
		balances, err := a.store.ListAllBalances(ctx, a.batchSize, offset)
		if err != nil {
			return fmt.Errorf("audit: list balances: %w", err)
		}
		if len(balances) == 0 {
			return nil
		}

		for _, b := range balances {
			report.CheckedBalances++

			if b.Balance.Sign() < 0 || b.PendingOut.Sign() < 0 {
				report.Violations = append(report.Violations, Violation{
					Kind:     ViolationNegative,
					HolderID: b.HolderID,
					TokenID:  b.TokenID,
					Detail:   fmt.Sprintf("balance=%s pending_out=%s", b.Balance, b.PendingOut),
				})
				continue
			}

			expected := b.TotalPurchased.Add(b.TotalReceived).Sub(b.TotalSent).Sub(b.TotalWithdrawn)
			if !b.Balance.Equal(expected) {
				report.Violations = append(report.Violations, Violation{
					Kind:     ViolationConservation,
					HolderID: b.HolderID,
					TokenID:  b.TokenID,
					Detail:   fmt.Sprintf("balance=%s expected=%s", b.Balance, expected),
				})
			}

			if b.PendingOut.GreaterThan(b.Balance) {
				report.Violations = append(report.Violations, Violation{
					Kind:     ViolationHoldExceeds,
					HolderID: b.HolderID,
					TokenID:  b.TokenID,
					Detail:   fmt.Sprintf("pending_out=%s balance=%s", b.PendingOut, b.Balance),
				})
			}
		}

		if len(balances) < a.batchSize {
			return nil
		}
	}
}

func (a *Auditor) sweepTokens(ctx context.Context, report *Report) error {
	tokens, err := a.store.ListTokens(ctx, false)
	if err != nil {
		return fmt.Errorf("audit: list tokens: %w", err)
	}

	for _, t := range tokens {
		report.CheckedTokens++

		if t.TokensAvailable.Sign() < 0 || t.TokensSold.Sign() < 0 {
			report.Violations = append(report.Violations, Violation{
				Kind:    ViolationNegative,
				TokenID: t.ID,
				Detail:  fmt.Sprintf("available=%s sold=%s", t.TokensAvailable, t.TokensSold),
			})
			continue
		}

		total := t.TokensAvailable.Add(t.TokensSold)
		if !total.Equal(t.TotalSupply) {
			report.Violations = append(report.Violations, Violation{
				Kind:    ViolationSupply,
				TokenID: t.ID,
				Detail:  fmt.Sprintf("available+sold=%s total_supply=%s", total, t.TotalSupply),
			})
		}
	}
	return nil
}
