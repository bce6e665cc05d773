package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Transfer represents an intent to move money between two accounts, for
// example from a checking source to a savings source. It is recorded as a
// debit entry on the sending account and a credit entry on the receiving
// one, both tagged with the transfer's ID as their source entity.
type Transfer struct {
	ID          string
	FromAccount string
	ToAccount   string
	Amount      decimal.Decimal
	CreatedAt   time.Time
}
