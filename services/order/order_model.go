package order

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type OrderStatus string

const (
	StatusPending        OrderStatus = "pending"
	StatusConfirmed      OrderStatus = "confirmed"
	StatusPreparing      OrderStatus = "preparing"
	StatusReadyForPickup OrderStatus = "ready_for_pickup"
	StatusOutForDelivery OrderStatus = "out_for_delivery"
	StatusCompleted      OrderStatus = "completed"
	StatusCancelled      OrderStatus = "cancelled"
	StatusRefunded       OrderStatus = "refunded"
)

// Terminal states never re-enter the lifecycle.
func (s OrderStatus) Terminal() bool {
	return s == StatusCompleted || s == StatusCancelled || s == StatusRefunded
}

// forward edges of the lifecycle; cancelled and refunded are additionally
// reachable from any non-terminal state
var forwardTransitions = map[OrderStatus][]OrderStatus{
	StatusPending:        {StatusConfirmed},
	StatusConfirmed:      {StatusPreparing},
	StatusPreparing:      {StatusReadyForPickup},
	StatusReadyForPickup: {StatusOutForDelivery, StatusCompleted},
	StatusOutForDelivery: {StatusCompleted},
}

func CanTransition(from, to OrderStatus) bool {
	if from.Terminal() {
		return false
	}
	if to == StatusCancelled || to == StatusRefunded {
		return true
	}
	for _, next := range forwardTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// staffStatuses are the targets a staff status update may set directly;
// completed requires pickup verification and cancelled goes through Cancel.
var staffStatuses = map[OrderStatus]bool{
	StatusConfirmed:      true,
	StatusPreparing:      true,
	StatusReadyForPickup: true,
	StatusOutForDelivery: true,
}

type Order struct {
	ID                 uuid.UUID       `db:"id" json:"id"`
	UserID             int64           `db:"user_id" json:"user_id"`
	ShopID             int64           `db:"shop_id" json:"shop_id"`
	Items              []OrderItem     `db:"-" json:"items"`
	TotalAmount        decimal.Decimal `db:"total_amount" json:"total_amount"`
	Status             OrderStatus     `db:"status" json:"status"`
	PickupToken        string          `db:"pickup_token" json:"-"`
	CancellationReason *string         `db:"cancellation_reason" json:"cancellation_reason,omitempty"`
	CreatedAt          time.Time       `db:"created_at" json:"created_at"`
	UpdatedAt          time.Time       `db:"updated_at" json:"updated_at"`

	// PickupQR is the encoded scan payload, only populated on creation
	// and owner reads, never persisted.
	PickupQR string `db:"-" json:"pickup_qr,omitempty"`
}

// OrderItem snapshots the menu price at order time; later menu changes
// must not affect a placed order.
type OrderItem struct {
	OrderID    uuid.UUID       `db:"order_id" json:"-"`
	FoodItemID int64           `db:"food_item_id" json:"food_item_id"`
	Name       string          `db:"name" json:"name"`
	Quantity   int             `db:"quantity" json:"quantity"`
	UnitPrice  decimal.Decimal `db:"unit_price" json:"unit_price"`
	LineTotal  decimal.Decimal `db:"line_total" json:"line_total"`
}

// CatalogItem is what the external shop/menu module reports about an item
// at order-creation time.
type CatalogItem struct {
	ID        int64
	Name      string
	Price     decimal.Decimal
	Available bool
}
