package ledger

import (
	"fmt"

	"github.com/shopspring/decimal"
)

var (
	ErrInvalidAmount       = fmt.Errorf("amount must be greater than zero")
	ErrInsufficientBalance = fmt.Errorf("insufficient balance")
	ErrDuplicateReference  = fmt.Errorf("a transaction with this reference already exists")
)

// InsufficientBalanceError carries the values a client needs to render an
// actionable message. errors.Is(err, ErrInsufficientBalance) matches it.
type InsufficientBalanceError struct {
	Current  decimal.Decimal
	Required decimal.Decimal
}

func (e *InsufficientBalanceError) Error() string {
	return fmt.Sprintf("insufficient balance: current %s, required %s", e.Current, e.Required)
}

func (e *InsufficientBalanceError) Is(target error) bool {
	return target == ErrInsufficientBalance
}

// ShardResolutionError is returned when a point lookup references a month
// partition that does not exist.
type ShardResolutionError struct {
	Key string
}

func (e *ShardResolutionError) Error() string {
	return fmt.Sprintf("transaction shard %q does not exist", e.Key)
}
