package postgres

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"

	"github.com/moneywise/balance-ledger/internal/interfaces"
	"github.com/moneywise/balance-ledger/internal/models"
)

type PostgresLedgerStore struct {
	db *sql.DB
}

func NewPostgresLedgerStore(db *sql.DB) *PostgresLedgerStore {
	return &PostgresLedgerStore{
		db: db,
	}
}

// Migrate creates the ledger_entries table when it does not exist yet.
func (p *PostgresLedgerStore) Migrate(ctx context.Context) error {
	const query = `CREATE TABLE IF NOT EXISTS ledger_entries (
		id               VARCHAR(36) PRIMARY KEY,
		account_id       VARCHAR(64) NOT NULL,
		kind             VARCHAR(32) NOT NULL,
		amount           NUMERIC(20,4) NOT NULL,
		source_entity_id VARCHAR(64) NOT NULL DEFAULT '',
		supersedes       VARCHAR(36),
		created_at       TIMESTAMPTZ NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_ledger_entries_account ON ledger_entries (account_id, created_at);
	CREATE INDEX IF NOT EXISTS idx_ledger_entries_source ON ledger_entries (account_id, source_entity_id);
	CREATE INDEX IF NOT EXISTS idx_ledger_entries_supersedes ON ledger_entries (supersedes);`

	_, err := p.db.ExecContext(ctx, query)
	return err
}

func (p *PostgresLedgerStore) Append(ctx context.Context, entry models.LedgerEntry) (models.LedgerEntry, error) {
	if err := entry.Validate(); err != nil {
		return models.LedgerEntry{}, err
	}
	if entry.ID == "" {
		entry.ID = uuid.New().String()
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}

	const query = `INSERT INTO ledger_entries (id, account_id, kind, amount, source_entity_id, supersedes, created_at)
	VALUES ($1, $2, $3, $4, $5, NULLIF($6, ''), $7)`

	_, err := p.db.ExecContext(ctx, query,
		entry.ID, entry.AccountID, string(entry.Kind), entry.Amount,
		entry.SourceEntityID, entry.Supersedes, entry.CreatedAt)
	if err != nil {
		return models.LedgerEntry{}, err
	}
	return entry, nil
}

func (p *PostgresLedgerStore) ListActive(ctx context.Context, accountID string) ([]models.LedgerEntry, error) {
	const query = `SELECT id, account_id, kind, amount, source_entity_id, COALESCE(supersedes, ''), created_at
	FROM ledger_entries e
	WHERE e.account_id = $1
	  AND NOT EXISTS (SELECT 1 FROM ledger_entries s WHERE s.supersedes = e.id)
	ORDER BY e.created_at, e.id`

	return p.queryEntries(ctx, query, accountID)
}

func (p *PostgresLedgerStore) FindBySourceEntity(ctx context.Context, accountID, sourceEntityID string) ([]models.LedgerEntry, error) {
	const query = `SELECT id, account_id, kind, amount, source_entity_id, COALESCE(supersedes, ''), created_at
	FROM ledger_entries
	WHERE account_id = $1 AND source_entity_id = $2
	ORDER BY created_at, id`

	return p.queryEntries(ctx, query, accountID, sourceEntityID)
}

func (p *PostgresLedgerStore) queryEntries(ctx context.Context, query string, args ...any) ([]models.LedgerEntry, error) {
	rows, err := p.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []models.LedgerEntry
	for rows.Next() {
		var entry models.LedgerEntry
		var kind string
		if err := rows.Scan(
			&entry.ID,
			&entry.AccountID,
			&kind,
			&entry.Amount,
			&entry.SourceEntityID,
			&entry.Supersedes,
			&entry.CreatedAt,
		); err != nil {
			return nil, err
		}
		entry.Kind = models.EntryKind(kind)
		entries = append(entries, entry)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}
	return entries, nil
}

var _ interfaces.LedgerStore = (*PostgresLedgerStore)(nil)
