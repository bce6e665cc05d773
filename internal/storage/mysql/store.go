package mysql

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/moneywise/balance-ledger/internal/interfaces"
	"github.com/moneywise/balance-ledger/internal/models"
)

type entryRecord struct {
	ID             string          `gorm:"column:id;primaryKey;size:36"`
	AccountID      string          `gorm:"column:account_id;size:64;index:idx_account,priority:1"`
	Kind           string          `gorm:"column:kind;size:32"`
	Amount         decimal.Decimal `gorm:"column:amount;type:decimal(20,4)"`
	SourceEntityID string          `gorm:"column:source_entity_id;size:64;index"`
	Supersedes     string          `gorm:"column:supersedes;size:36;index"`
	CreatedAt      time.Time       `gorm:"column:created_at;index:idx_account,priority:2"`
}

func (entryRecord) TableName() string { return "ledger_entries" }

func (r entryRecord) toModel() models.LedgerEntry {
	return models.LedgerEntry{
		ID:             r.ID,
		AccountID:      r.AccountID,
		Kind:           models.EntryKind(r.Kind),
		Amount:         r.Amount,
		SourceEntityID: r.SourceEntityID,
		Supersedes:     r.Supersedes,
		CreatedAt:      r.CreatedAt,
	}
}

// MySQLLedgerStore persists ledger entries through gorm.
type MySQLLedgerStore struct {
	db *gorm.DB
}

// NewMySQLLedgerStore migrates the schema and returns the store.
func NewMySQLLedgerStore(db *gorm.DB) (*MySQLLedgerStore, error) {
	if err := db.AutoMigrate(&entryRecord{}); err != nil {
		return nil, err
	}
	return &MySQLLedgerStore{db: db}, nil
}

func (m *MySQLLedgerStore) Append(ctx context.Context, entry models.LedgerEntry) (models.LedgerEntry, error) {
	if err := entry.Validate(); err != nil {
		return models.LedgerEntry{}, err
	}
	if entry.ID == "" {
		entry.ID = uuid.New().String()
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}

	rec := entryRecord{
		ID:             entry.ID,
		AccountID:      entry.AccountID,
		Kind:           string(entry.Kind),
		Amount:         entry.Amount,
		SourceEntityID: entry.SourceEntityID,
		Supersedes:     entry.Supersedes,
		CreatedAt:      entry.CreatedAt,
	}
	if err := m.db.WithContext(ctx).Create(&rec).Error; err != nil {
		return models.LedgerEntry{}, err
	}
	return entry, nil
}

// ListActive loads the account's entries in order and filters superseded
// ones in memory, mirroring the other stores' semantics.
func (m *MySQLLedgerStore) ListActive(ctx context.Context, accountID string) ([]models.LedgerEntry, error) {
	var recs []entryRecord
	err := m.db.WithContext(ctx).
		Where("account_id = ?", accountID).
		Order("created_at, id").
		Find(&recs).Error
	if err != nil {
		return nil, err
	}

	superseded := make(map[string]bool, len(recs))
	for _, r := range recs {
		if r.Supersedes != "" {
			superseded[r.Supersedes] = true
		}
	}

	var entries []models.LedgerEntry
	for _, r := range recs {
		if !superseded[r.ID] {
			entries = append(entries, r.toModel())
		}
	}
	return entries, nil
}

func (m *MySQLLedgerStore) FindBySourceEntity(ctx context.Context, accountID, sourceEntityID string) ([]models.LedgerEntry, error) {
	var recs []entryRecord
	err := m.db.WithContext(ctx).
		Where("account_id = ? AND source_entity_id = ?", accountID, sourceEntityID).
		Order("created_at, id").
		Find(&recs).Error
	if err != nil {
		return nil, err
	}

	entries := make([]models.LedgerEntry, 0, len(recs))
	for _, r := range recs {
		entries = append(entries, r.toModel())
	}
	return entries, nil
}

var _ interfaces.LedgerStore = (*MySQLLedgerStore)(nil)
