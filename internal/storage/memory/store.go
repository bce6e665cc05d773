package memory

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/moneywise/balance-ledger/internal/interfaces"
	"github.com/moneywise/balance-ledger/internal/models"
)

// MemoryLedgerStore is an in-memory implementation of interfaces.LedgerStore.
// It keeps entries in append order in a slice and is safe for concurrent use.
type MemoryLedgerStore struct {
	mu         sync.Mutex
	entries    []models.LedgerEntry
	superseded map[string]bool // entry IDs some later entry supersedes
}

// NewMemoryLedgerStore creates an empty in-memory store.
func NewMemoryLedgerStore() *MemoryLedgerStore {
	return &MemoryLedgerStore{
		entries:    make([]models.LedgerEntry, 0),
		superseded: make(map[string]bool),
	}
}

// Append validates and stores an entry, assigning ID and CreatedAt when the
// caller left them empty.
func (m *MemoryLedgerStore) Append(ctx context.Context, entry models.LedgerEntry) (models.LedgerEntry, error) {
	if err := entry.Validate(); err != nil {
		return models.LedgerEntry{}, err
	}
	if entry.ID == "" {
		entry.ID = uuid.New().String()
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.entries = append(m.entries, entry)
	if entry.Supersedes != "" {
		m.superseded[entry.Supersedes] = true
	}
	return entry, nil
}

// ListActive returns the account's non-superseded entries in append order.
// The result is a copy, so callers cannot reach internal state.
func (m *MemoryLedgerStore) ListActive(ctx context.Context, accountID string) ([]models.LedgerEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var result []models.LedgerEntry
	for _, e := range m.entries {
		if e.AccountID == accountID && !m.superseded[e.ID] {
			result = append(result, e)
		}
	}
	return result, nil
}

// FindBySourceEntity returns every entry recorded for a domain record,
// superseded ones included, in append order.
func (m *MemoryLedgerStore) FindBySourceEntity(ctx context.Context, accountID, sourceEntityID string) ([]models.LedgerEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var result []models.LedgerEntry
	for _, e := range m.entries {
		if e.AccountID == accountID && e.SourceEntityID == sourceEntityID {
			result = append(result, e)
		}
	}
	return result, nil
}

// Compile-time check: MemoryLedgerStore implements LedgerStore.
var _ interfaces.LedgerStore = (*MemoryLedgerStore)(nil)
