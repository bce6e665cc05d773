package events

import (
	"time"

	"github.com/shopspring/decimal"
)

// TopicEntryRecorded is the topic EntryRecorded events are published on.
const TopicEntryRecorded = "ledger_entry_recorded"

// EntryRecorded is emitted after a ledger entry has been durably appended.
// NewBalance is the account balance immediately after the append.
type EntryRecorded struct {
	EntryID        string          `json:"entry_id"`
	AccountID      string          `json:"account_id"`
	Kind           string          `json:"kind"`
	Amount         decimal.Decimal `json:"amount"`
	SourceEntityID string          `json:"source_entity_id,omitempty"`
	Supersedes     string          `json:"supersedes,omitempty"`
	NewBalance     decimal.Decimal `json:"new_balance"`
	OccurredAt     time.Time       `json:"occurred_at"`
}
