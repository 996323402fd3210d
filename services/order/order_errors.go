package order

import "fmt"

var (
	ErrOrderNotFound      = fmt.Errorf("order not found")
	ErrEmptyOrder         = fmt.Errorf("order has no items")
	ErrInvalidQuantity    = fmt.Errorf("item quantity must be greater than zero")
	ErrItemNotFound       = fmt.Errorf("food item not found")
	ErrItemUnavailable    = fmt.Errorf("food item is not available")
	ErrIllegalTransition  = fmt.Errorf("illegal order status transition")
	ErrNotCancellable     = fmt.Errorf("order can no longer be cancelled")
	ErrCancelRaced        = fmt.Errorf("order was cancelled by a concurrent request")
	ErrNotOwner           = fmt.Errorf("order does not belong to this user")
)

// IllegalTransitionError names both ends of a rejected transition.
// errors.Is(err, ErrIllegalTransition) matches it.
type IllegalTransitionError struct {
	From OrderStatus
	To   OrderStatus
}

func (e *IllegalTransitionError) Error() string {
	return fmt.Sprintf("cannot transition order from %q to %q", e.From, e.To)
}

func (e *IllegalTransitionError) Is(target error) bool {
	return target == ErrIllegalTransition
}
