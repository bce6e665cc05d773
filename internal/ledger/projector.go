package ledger

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/moneywise/balance-ledger/internal/models"
	"github.com/moneywise/balance-ledger/internal/models/events"
)

// The projector half of the Ledger: the cached per-account balance and the
// fold that derives it from the store. The cache is only ever written while
// the account's critical section is held, which is what keeps it equal to
// the fold over active entries.

// GetBalance returns the account's current balance: the cached total when
// the account has been projected in this process, otherwise a fold over the
// store's active entries. An account with no entries has balance zero.
func (l *Ledger) GetBalance(ctx context.Context, accountID string) (decimal.Decimal, error) {
	l.balMu.RLock()
	bal, ok := l.balances[accountID]
	l.balMu.RUnlock()
	if ok {
		return bal, nil
	}
	return l.fold(ctx, accountID)
}

// fold sums the active entries' amounts.
func (l *Ledger) fold(ctx context.Context, accountID string) (decimal.Decimal, error) {
	entries, err := l.store.ListActive(ctx, accountID)
	if err != nil {
		return decimal.Zero, err
	}

	balance := decimal.Zero
	for _, e := range entries {
		balance = balance.Add(e.Amount)
	}
	return balance, nil
}

// applyDelta appends the entry and advances the cached balance. Appending
// adds the entry's amount to the active set and, when the entry supersedes
// a prior one, removes that prior entry's amount from it, so the new
// balance is current + entry.Amount - superseded.Amount. Must be called
// with the account's critical section held.
func (l *Ledger) applyDelta(ctx context.Context, accountID string, current decimal.Decimal, entry models.LedgerEntry) (decimal.Decimal, error) {
	superseded := decimal.Zero
	if entry.Supersedes != "" {
		active, err := l.store.ListActive(ctx, accountID)
		if err != nil {
			return decimal.Zero, err
		}
		found := false
		for _, e := range active {
			if e.ID == entry.Supersedes {
				superseded = e.Amount
				found = true
				break
			}
		}
		if !found {
			return decimal.Zero, fmt.Errorf("%w: cannot supersede %s", ErrNoActiveEntry, entry.Supersedes)
		}
	}

	stored, err := l.store.Append(ctx, entry)
	if err != nil {
		return decimal.Zero, err
	}

	next := current.Add(stored.Amount).Sub(superseded)
	l.balMu.Lock()
	l.balances[accountID] = next
	l.balMu.Unlock()

	l.publish(stored, next)
	return next, nil
}

func (l *Ledger) publish(entry models.LedgerEntry, balance decimal.Decimal) {
	if l.publisher == nil {
		return
	}
	evt := events.EntryRecorded{
		EntryID:        entry.ID,
		AccountID:      entry.AccountID,
		Kind:           string(entry.Kind),
		Amount:         entry.Amount,
		SourceEntityID: entry.SourceEntityID,
		Supersedes:     entry.Supersedes,
		NewBalance:     balance,
		OccurredAt:     time.Now().UTC(),
	}
	if err := l.publisher.Publish(events.TopicEntryRecorded, evt); err != nil {
		l.log.WithFields(logrus.Fields{
			"entry_id":   entry.ID,
			"account_id": entry.AccountID,
		}).WithError(err).Warn("failed to publish entry recorded event")
	}
}
