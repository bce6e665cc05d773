package ledger

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/moneywise/balance-ledger/internal/interfaces"
	"github.com/moneywise/balance-ledger/internal/models"
)

// Ledger is the single write path to account balances. It serializes
// balance-affecting operations per account so that read-modify-write cycles
// on the same account cannot interleave, while operations on different
// accounts proceed fully in parallel.
//
// Each account gets a critical section backed by a one-slot channel rather
// than a sync.Mutex so a caller waiting to enter can still be cancelled
// through its context.
type Ledger struct {
	store     interfaces.LedgerStore
	publisher interfaces.EventPublisher
	log       *logrus.Logger

	mapMu    sync.Mutex
	sections map[string]chan struct{}

	balMu    sync.RWMutex
	balances map[string]decimal.Decimal
}

// Option configures a Ledger.
type Option func(*Ledger)

// WithPublisher makes the ledger emit an EntryRecorded event after every
// successful append. Publishing is best-effort and never fails a mutation.
func WithPublisher(pub interfaces.EventPublisher) Option {
	return func(l *Ledger) { l.publisher = pub }
}

// WithLogger replaces the default logrus standard logger.
func WithLogger(log *logrus.Logger) Option {
	return func(l *Ledger) { l.log = log }
}

// NewLedger creates a Ledger on top of a storage implementation
// (memory, postgres, mysql, ...).
func NewLedger(store interfaces.LedgerStore, opts ...Option) *Ledger {
	l := &Ledger{
		store:    store,
		log:      logrus.StandardLogger(),
		sections: make(map[string]chan struct{}),
		balances: make(map[string]decimal.Decimal),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// section returns the account's critical-section channel, creating it on
// first use. A value in the channel means the section is held.
func (l *Ledger) section(accountID string) chan struct{} {
	l.mapMu.Lock()
	defer l.mapMu.Unlock()

	s, ok := l.sections[accountID]
	if !ok {
		s = make(chan struct{}, 1)
		l.sections[accountID] = s
	}
	return s
}

func (l *Ledger) acquire(ctx context.Context, s chan struct{}) error {
	select {
	case s <- struct{}{}:
		return nil
	case <-ctx.Done():
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return fmt.Errorf("%w: %v", ErrLockTimeout, ctx.Err())
		}
		return ctx.Err()
	}
}

func (l *Ledger) release(s chan struct{}) {
	<-s
}

// Submit runs one balance-affecting operation for an account. It enters the
// account's critical section, hands the current balance to build, appends
// the entry build returns, and answers with the new balance.
//
// Two concurrent Submit calls for the same account are totally ordered: the
// second build observes the balance produced by the first. If build returns
// an error, or the caller's context ends while waiting for the section,
// nothing is appended and the error is returned as-is.
func (l *Ledger) Submit(ctx context.Context, accountID string, build func(current decimal.Decimal) (models.LedgerEntry, error)) (decimal.Decimal, error) {
	if accountID == "" {
		return decimal.Zero, fmt.Errorf("%w: account id is required", models.ErrValidation)
	}

	s := l.section(accountID)
	if err := l.acquire(ctx, s); err != nil {
		return decimal.Zero, err
	}
	defer l.release(s)

	current, err := l.GetBalance(ctx, accountID)
	if err != nil {
		return decimal.Zero, err
	}

	entry, err := build(current)
	if err != nil {
		return decimal.Zero, err
	}
	entry.AccountID = accountID

	return l.applyDelta(ctx, accountID, current, entry)
}

// PostTransfer records a transfer as a debit entry on the sending account
// and a credit entry on the receiving one, both carrying the transfer ID as
// their source entity. Sections are entered in account-id order so two
// opposing transfers cannot deadlock. Replaying a transfer ID that has
// already been applied is a no-op.
func (l *Ledger) PostTransfer(ctx context.Context, tr models.Transfer) error {
	if tr.FromAccount == "" || tr.ToAccount == "" {
		return fmt.Errorf("%w: transfer needs both accounts", models.ErrValidation)
	}
	if tr.FromAccount == tr.ToAccount {
		return fmt.Errorf("%w: transfer accounts must differ", models.ErrValidation)
	}
	if tr.Amount.Cmp(decimal.Zero) <= 0 {
		return fmt.Errorf("%w: transfer amount must be positive", models.ErrValidation)
	}
	if tr.ID == "" {
		tr.ID = uuid.New().String()
	}

	first, second := l.section(tr.FromAccount), l.section(tr.ToAccount)
	if tr.ToAccount < tr.FromAccount {
		first, second = second, first
	}
	if err := l.acquire(ctx, first); err != nil {
		return err
	}
	defer l.release(first)
	if err := l.acquire(ctx, second); err != nil {
		return err
	}
	defer l.release(second)

	// Idempotency: the debit side exists iff the transfer was applied.
	prior, err := l.store.FindBySourceEntity(ctx, tr.FromAccount, tr.ID)
	if err != nil {
		return err
	}
	if len(prior) > 0 {
		return nil
	}

	debitCurrent, err := l.GetBalance(ctx, tr.FromAccount)
	if err != nil {
		return err
	}
	creditCurrent, err := l.GetBalance(ctx, tr.ToAccount)
	if err != nil {
		return err
	}

	debit := models.LedgerEntry{
		AccountID:      tr.FromAccount,
		Kind:           models.KindTransfer,
		Amount:         tr.Amount.Neg(),
		SourceEntityID: tr.ID,
	}
	credit := models.LedgerEntry{
		AccountID:      tr.ToAccount,
		Kind:           models.KindTransfer,
		Amount:         tr.Amount,
		SourceEntityID: tr.ID,
	}

	if _, err := l.applyDelta(ctx, tr.FromAccount, debitCurrent, debit); err != nil {
		return err
	}
	if _, err := l.applyDelta(ctx, tr.ToAccount, creditCurrent, credit); err != nil {
		return err
	}
	return nil
}

// ActiveEntries returns the account's active (non-superseded) entries for
// audit and reporting surfaces.
func (l *Ledger) ActiveEntries(ctx context.Context, accountID string) ([]models.LedgerEntry, error) {
	return l.store.ListActive(ctx, accountID)
}

// ActiveForSource returns the active entry of a source entity's lineage.
// Adapters use it to decide whether a domain update/delete has a prior
// monetary effect to correct. Returns ErrNoActiveEntry when the lineage is
// empty or fully superseded.
func (l *Ledger) ActiveForSource(ctx context.Context, accountID, sourceEntityID string) (models.LedgerEntry, error) {
	entries, err := l.store.FindBySourceEntity(ctx, accountID, sourceEntityID)
	if err != nil {
		return models.LedgerEntry{}, err
	}

	superseded := make(map[string]bool, len(entries))
	for _, e := range entries {
		if e.Supersedes != "" {
			superseded[e.Supersedes] = true
		}
	}
	for i := len(entries) - 1; i >= 0; i-- {
		if !superseded[entries[i].ID] {
			return entries[i], nil
		}
	}
	return models.LedgerEntry{}, fmt.Errorf("%w: %s", ErrNoActiveEntry, sourceEntityID)
}
