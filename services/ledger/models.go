package ledger

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type TransactionType string

const (
	TypeCredit TransactionType = "credit"
	TypeDebit  TransactionType = "debit"
	TypeRefund TransactionType = "refund"
)

type TransactionSource string

const (
	SourceCashDeposit   TransactionSource = "cash_deposit"
	SourceOnlinePayment TransactionSource = "online_payment"
	SourceComplementary TransactionSource = "complementary"
	SourcePGDirect      TransactionSource = "pg_direct"
	SourceAdjustment    TransactionSource = "adjustment"
	SourceRefund        TransactionSource = "refund"
)

type TransactionStatus string

const (
	StatusPending   TransactionStatus = "pending"
	StatusCompleted TransactionStatus = "completed"
	StatusFailed    TransactionStatus = "failed"
	StatusCancelled TransactionStatus = "cancelled"
)

// Transaction is an append-only ledger row. BalanceBefore/BalanceAfter
// snapshot the account balance around this exact write; the pair is only
// meaningful because the row is inserted in the same storage transaction
// that moves the balance.
type Transaction struct {
	ID            uuid.UUID         `db:"id" json:"id"`
	AccountID     int64             `db:"account_id" json:"account_id"`
	Type          TransactionType   `db:"type" json:"type"`
	Amount        decimal.Decimal   `db:"amount" json:"amount"`
	BalanceBefore decimal.Decimal   `db:"balance_before" json:"balance_before"`
	BalanceAfter  decimal.Decimal   `db:"balance_after" json:"balance_after"`
	Source        TransactionSource `db:"source" json:"source"`
	Status        TransactionStatus `db:"status" json:"status"`
	ProcessedBy   *int64            `db:"processed_by" json:"processed_by,omitempty"`
	OrderID       *uuid.UUID        `db:"order_id" json:"order_id,omitempty"`
	Reference     *string           `db:"reference" json:"reference,omitempty"`
	Description   string            `db:"description" json:"description"`
	CreatedAt     time.Time         `db:"created_at" json:"created_at"`

	// ShardKey is annotated by the query engine so point lookups can be
	// routed back to the month the row lives in.
	ShardKey string `db:"-" json:"shard_key,omitempty"`
}

// ShopTotal is a per-shop sum of captured order payments within one shard,
// consumed by vendor settlement.
type ShopTotal struct {
	ShopID int64           `db:"shop_id" json:"shop_id"`
	Total  decimal.Decimal `db:"total" json:"total"`
}
