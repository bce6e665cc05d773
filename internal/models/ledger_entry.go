package models

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// EntryKind tags the domain event a ledger entry originated from.
type EntryKind string

const (
	KindIncome           EntryKind = "income"
	KindExpense          EntryKind = "expense"
	KindTransfer         EntryKind = "transfer"
	KindDebt             EntryKind = "debt"
	KindReceivable       EntryKind = "receivable"
	KindSaving           EntryKind = "saving"
	KindInvestment       EntryKind = "investment"
	KindManualAdjustment EntryKind = "manual-adjustment"
)

// Valid reports whether k is one of the known entry kinds.
func (k EntryKind) Valid() bool {
	switch k {
	case KindIncome, KindExpense, KindTransfer, KindDebt,
		KindReceivable, KindSaving, KindInvestment, KindManualAdjustment:
		return true
	}
	return false
}

// LedgerEntry represents a single balance-affecting event for an account.
// Entries are append-only: an update or delete of the originating domain
// record is captured as a *new* entry whose Supersedes field points at the
// entry it replaces. The superseded entry stays in the ledger for audit but
// no longer counts toward the account balance.
type LedgerEntry struct {
	ID             string          `json:"id"`
	AccountID      string          `json:"account_id"`
	Kind           EntryKind       `json:"kind"`
	Amount         decimal.Decimal `json:"amount"`
	SourceEntityID string          `json:"source_entity_id,omitempty"`
	Supersedes     string          `json:"supersedes,omitempty"`
	CreatedAt      time.Time       `json:"created_at"`
}

// Validate checks the fields every store must reject on before persisting.
func (e LedgerEntry) Validate() error {
	if e.AccountID == "" {
		return fmt.Errorf("%w: account id is required", ErrValidation)
	}
	if !e.Kind.Valid() {
		return fmt.Errorf("%w: unknown entry kind %q", ErrValidation, e.Kind)
	}
	return nil
}
