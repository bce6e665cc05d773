package interfaces

import (
	"context"

	"github.com/moneywise/balance-ledger/internal/models"
)

// LedgerStore is the durable, append-only home of ledger entries. Entries
// are never updated or deleted once appended; corrections arrive as new
// entries. Implementations must be safe for concurrent use.
type LedgerStore interface {
	// Append validates and persists an entry, assigning its ID and
	// CreatedAt when absent, and returns the stored record.
	Append(ctx context.Context, entry models.LedgerEntry) (models.LedgerEntry, error)

	// ListActive returns the account's entries that no later entry
	// supersedes, in creation order. Calling it again re-reads the store.
	ListActive(ctx context.Context, accountID string) ([]models.LedgerEntry, error)

	// FindBySourceEntity returns every entry (superseded ones included)
	// recorded for a given domain record, in creation order.
	FindBySourceEntity(ctx context.Context, accountID, sourceEntityID string) ([]models.LedgerEntry, error)
}
