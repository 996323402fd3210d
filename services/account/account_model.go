package account

import (
	"time"

	"github.com/shopspring/decimal"
)

// Account is the wallet slice of a user. The balance is owned by the
// ledger service; everything else reads it.
type Account struct {
	ID         int64           `db:"id" json:"id"`
	Name       string          `db:"name" json:"name"`
	Balance    decimal.Decimal `db:"balance" json:"balance"`
	IsActive   bool            `db:"is_active" json:"is_active"`
	IsApproved bool            `db:"is_approved" json:"is_approved"`
	CreatedAt  time.Time       `db:"created_at" json:"created_at"`
	UpdatedAt  time.Time       `db:"updated_at" json:"updated_at"`
}
