package adapters

import (
	"context"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/moneywise/balance-ledger/internal/ledger"
	"github.com/moneywise/balance-ledger/internal/models"
)

// Adapter maps one domain entity kind's lifecycle events (create, update,
// delete of a saving, investment, debt payment, ...) onto ledger entries.
// The domain handlers keep owning the records themselves; the adapter only
// cares about the monetary effect.
//
// A source entity's lineage in the ledger moves through:
//
//	none -> active(entry) -> active(correction, prior superseded) -> ... -> reversed (zero net)
//
// Every call returns the account balance after the operation.
type Adapter struct {
	kind   models.EntryKind
	ledger *ledger.Ledger
}

func NewIncomeAdapter(l *ledger.Ledger) *Adapter {
	return &Adapter{kind: models.KindIncome, ledger: l}
}

func NewExpenseAdapter(l *ledger.Ledger) *Adapter {
	return &Adapter{kind: models.KindExpense, ledger: l}
}

func NewSavingAdapter(l *ledger.Ledger) *Adapter {
	return &Adapter{kind: models.KindSaving, ledger: l}
}

func NewInvestmentAdapter(l *ledger.Ledger) *Adapter {
	return &Adapter{kind: models.KindInvestment, ledger: l}
}

// NewDebtPaymentAdapter records payments made against a debt.
func NewDebtPaymentAdapter(l *ledger.Ledger) *Adapter {
	return &Adapter{kind: models.KindDebt, ledger: l}
}

// NewReceivablePaymentAdapter records payments received on a receivable.
func NewReceivablePaymentAdapter(l *ledger.Ledger) *Adapter {
	return &Adapter{kind: models.KindReceivable, ledger: l}
}

// NewManualAdjustmentAdapter records operator-initiated balance corrections.
func NewManualAdjustmentAdapter(l *ledger.Ledger) *Adapter {
	return &Adapter{kind: models.KindManualAdjustment, ledger: l}
}

// ForKind returns the adapter for an entry kind.
func ForKind(l *ledger.Ledger, kind models.EntryKind) (*Adapter, error) {
	if !kind.Valid() {
		return nil, fmt.Errorf("%w: unknown entry kind %q", models.ErrValidation, kind)
	}
	return &Adapter{kind: kind, ledger: l}, nil
}

// Kind returns the entry kind this adapter records.
func (a *Adapter) Kind() models.EntryKind { return a.kind }

// RecordCreate records the monetary effect of a newly created domain record.
// If the source entity already has an active entry the call is a no-op, so
// a retried create never double-applies.
func (a *Adapter) RecordCreate(ctx context.Context, accountID, sourceEntityID string, amount decimal.Decimal) (decimal.Decimal, error) {
	if sourceEntityID == "" {
		return decimal.Zero, fmt.Errorf("%w: source entity id is required", models.ErrValidation)
	}

	if _, err := a.ledger.ActiveForSource(ctx, accountID, sourceEntityID); err == nil {
		return a.ledger.GetBalance(ctx, accountID)
	} else if !errors.Is(err, ledger.ErrNoActiveEntry) {
		return decimal.Zero, err
	}

	return a.ledger.Submit(ctx, accountID, func(decimal.Decimal) (models.LedgerEntry, error) {
		return models.LedgerEntry{
			AccountID:      accountID,
			Kind:           a.kind,
			Amount:         amount,
			SourceEntityID: sourceEntityID,
		}, nil
	})
}

// RecordUpdate records an amount change on an existing domain record as a
// correction: a new entry carrying the full new amount that supersedes the
// lineage's active entry, so the lineage's net contribution becomes
// newAmount and the balance moves by newAmount minus the old amount. When
// the lineage has no active entry the update is treated as a create; when
// the amount is unchanged nothing is appended.
func (a *Adapter) RecordUpdate(ctx context.Context, accountID, sourceEntityID string, newAmount decimal.Decimal) (decimal.Decimal, error) {
	prior, err := a.ledger.ActiveForSource(ctx, accountID, sourceEntityID)
	if errors.Is(err, ledger.ErrNoActiveEntry) {
		return a.RecordCreate(ctx, accountID, sourceEntityID, newAmount)
	}
	if err != nil {
		return decimal.Zero, err
	}

	if prior.Amount.Equal(newAmount) {
		return a.ledger.GetBalance(ctx, accountID)
	}

	return a.ledger.Submit(ctx, accountID, func(decimal.Decimal) (models.LedgerEntry, error) {
		return models.LedgerEntry{
			AccountID:      accountID,
			Kind:           a.kind,
			Amount:         newAmount,
			SourceEntityID: sourceEntityID,
			Supersedes:     prior.ID,
		}, nil
	})
}

// RecordDelete reverses a domain record's monetary effect: a zero-amount
// correction supersedes the lineage's active entry, bringing the lineage's
// net contribution to zero while keeping its full history. Deleting a
// record that has no effect left to reverse is a no-op.
func (a *Adapter) RecordDelete(ctx context.Context, accountID, sourceEntityID string) (decimal.Decimal, error) {
	prior, err := a.ledger.ActiveForSource(ctx, accountID, sourceEntityID)
	if errors.Is(err, ledger.ErrNoActiveEntry) {
		return a.ledger.GetBalance(ctx, accountID)
	}
	if err != nil {
		return decimal.Zero, err
	}

	if prior.Amount.IsZero() {
		return a.ledger.GetBalance(ctx, accountID)
	}

	return a.ledger.Submit(ctx, accountID, func(decimal.Decimal) (models.LedgerEntry, error) {
		return models.LedgerEntry{
			AccountID:      accountID,
			Kind:           a.kind,
			Amount:         decimal.Zero,
			SourceEntityID: sourceEntityID,
			Supersedes:     prior.ID,
		}, nil
	})
}
