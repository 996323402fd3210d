package order

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/CampusBite/CampusBite-Backend/db"
	"github.com/CampusBite/CampusBite-Backend/services/ledger"
	"github.com/CampusBite/CampusBite-Backend/services/monitoring/logging"
	"github.com/CampusBite/CampusBite-Backend/services/notification"
	"github.com/CampusBite/CampusBite-Backend/services/pickup"
	"github.com/CampusBite/CampusBite-Backend/utils"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"
)

type OrderStore interface {
	Create(ctx context.Context, tx db.Execer, o Order) error
	Get(ctx context.Context, orderID uuid.UUID) (Order, error)
	ListByUser(ctx context.Context, userID int64, limit, offset int) ([]Order, error)
	UpdateStatusGuarded(ctx context.Context, tx db.Execer, orderID uuid.UUID, from []OrderStatus, to OrderStatus, reason *string) (int64, error)
}

// LedgerAPI is the slice of the ledger the order flow may touch.
type LedgerAPI interface {
	DebitForOrder(ctx context.Context, accountID int64, orderID uuid.UUID, amount decimal.Decimal) (*ledger.Transaction, error)
	RefundOrder(ctx context.Context, accountID int64, orderID uuid.UUID, amount decimal.Decimal, description string) (*ledger.Transaction, error)
}

// CatalogProvider is the external shop/menu module; prices and
// availability are snapshotted at order-creation time.
type CatalogProvider interface {
	GetItem(ctx context.Context, shopID, foodItemID int64) (CatalogItem, error)
}

// RedemptionGuard marks a pickup code as used exactly once.
type RedemptionGuard interface {
	SetIfAbsent(ctx context.Context, key string, value interface{}, expiration time.Duration) (bool, error)
}

type Notifier interface {
	Notify(event notification.Event)
}

// OrderService drives the order lifecycle, invoking the ledger for the
// payment and refund side effects.
type OrderService struct {
	runner   db.TxRunner
	orders   OrderStore
	ledger   LedgerAPI
	catalog  CatalogProvider
	qr       *pickup.QRService
	guard    RedemptionGuard
	notifier Notifier
	logger   *logging.Logger
}

func NewOrderService(runner db.TxRunner, orders OrderStore, ledgerAPI LedgerAPI, catalog CatalogProvider, qr *pickup.QRService, guard RedemptionGuard, notifier Notifier, logger *logging.Logger) *OrderService {
	return &OrderService{
		runner:   runner,
		orders:   orders,
		ledger:   ledgerAPI,
		catalog:  catalog,
		qr:       qr,
		guard:    guard,
		notifier: notifier,
		logger:   logger,
	}
}

type ItemRequest struct {
	FoodItemID int64 `json:"food_item_id" binding:"required"`
	Quantity   int   `json:"quantity" binding:"required"`
}

type CreateOrderParams struct {
	UserID int64
	ShopID int64
	Items  []ItemRequest
}

// Create validates and prices the order, captures the payment, then
// persists the order in pending with a fresh pickup token. If the debit
// fails the order is never persisted; if persisting fails after the debit,
// the payment is compensated with a refund.
func (s *OrderService) Create(ctx context.Context, p CreateOrderParams) (*Order, error) {
	if len(p.Items) == 0 {
		return nil, ErrEmptyOrder
	}

	orderID := uuid.New()
	items := make([]OrderItem, 0, len(p.Items))
	total := decimal.Zero
	for _, req := range p.Items {
		if req.Quantity <= 0 {
			return nil, ErrInvalidQuantity
		}
		catalogItem, err := s.catalog.GetItem(ctx, p.ShopID, req.FoodItemID)
		if err != nil {
			return nil, ErrItemNotFound
		}
		if !catalogItem.Available {
			return nil, ErrItemUnavailable
		}
		lineTotal := catalogItem.Price.Mul(decimal.NewFromInt(int64(req.Quantity)))
		items = append(items, OrderItem{
			OrderID:    orderID,
			FoodItemID: req.FoodItemID,
			Name:       catalogItem.Name,
			Quantity:   req.Quantity,
			UnitPrice:  catalogItem.Price,
			LineTotal:  lineTotal,
		})
		total = total.Add(lineTotal)
	}

	pickupCode, err := utils.GeneratePickupCode(16)
	if err != nil {
		return nil, err
	}

	if _, err := s.ledger.DebitForOrder(ctx, p.UserID, orderID, total); err != nil {
		return nil, err
	}

	o := Order{
		ID:          orderID,
		UserID:      p.UserID,
		ShopID:      p.ShopID,
		Items:       items,
		TotalAmount: total,
		Status:      StatusPending,
		PickupToken: pickupCode,
		CreatedAt:   time.Now().UTC(),
	}
	err = s.runner.WithTx(ctx, func(tx *sqlx.Tx) error {
		return s.orders.Create(ctx, tx, o)
	})
	if err != nil {
		// payment was captured but the order never existed; give it back
		if _, refundErr := s.ledger.RefundOrder(ctx, p.UserID, orderID, total, "Compensation for failed order creation"); refundErr != nil {
			s.logger.Error(fmt.Sprintf("could not compensate failed order %s: %v", orderID, refundErr))
		}
		return nil, err
	}

	o.UpdatedAt = o.CreatedAt
	o.PickupQR = s.qr.Encode(s.qr.Generate(o.ID, o.PickupToken, o.ShopID))

	s.notifier.Notify(notification.Event{
		Kind:        notification.KindOrder("created"),
		AccountID:   p.UserID,
		ShopID:      p.ShopID,
		ReferenceID: orderID.String(),
		Amount:      total.String(),
	})
	return &o, nil
}

// UpdateStatus applies a staff-driven transition. It has no ledger effect.
func (s *OrderService) UpdateStatus(ctx context.Context, orderID uuid.UUID, to OrderStatus) (*Order, error) {
	if !staffStatuses[to] {
		return nil, &IllegalTransitionError{To: to}
	}
	o, err := s.orders.Get(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if !CanTransition(o.Status, to) {
		return nil, &IllegalTransitionError{From: o.Status, To: to}
	}

	err = s.runner.WithTx(ctx, func(tx *sqlx.Tx) error {
		moved, err := s.orders.UpdateStatusGuarded(ctx, tx, orderID, []OrderStatus{o.Status}, to, nil)
		if err != nil {
			return err
		}
		if moved == 0 {
			return &IllegalTransitionError{From: o.Status, To: to}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	o.Status = to
	s.notifier.Notify(notification.Event{
		Kind:        notification.KindOrder(string(to)),
		AccountID:   o.UserID,
		ShopID:      o.ShopID,
		ReferenceID: o.ID.String(),
	})
	return &o, nil
}

// Cancel refunds the full paid amount and moves the order to cancelled.
// Cancellation policy only allows it while the shop has not started
// preparing, i.e. from pending or confirmed.
func (s *OrderService) Cancel(ctx context.Context, orderID uuid.UUID, reason string) (*Order, error) {
	o, err := s.orders.Get(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if o.Status != StatusPending && o.Status != StatusConfirmed {
		return nil, ErrNotCancellable
	}

	// The refund reference makes the credit exactly-once even when two
	// cancel requests race: the loser hits the unique index. A duplicate
	// here means an earlier cancel attempt committed the refund but died
	// before the status flip, so the flip below still has to happen.
	if _, err := s.ledger.RefundOrder(ctx, o.UserID, o.ID, o.TotalAmount, fmt.Sprintf("Cancellation refund for order %s", o.ID)); err != nil {
		if !errors.Is(err, ledger.ErrDuplicateReference) {
			return nil, err
		}
	}

	cancellationReason := reason
	err = s.runner.WithTx(ctx, func(tx *sqlx.Tx) error {
		moved, err := s.orders.UpdateStatusGuarded(ctx, tx, o.ID, []OrderStatus{StatusPending, StatusConfirmed}, StatusCancelled, &cancellationReason)
		if err != nil {
			return err
		}
		if moved == 0 {
			return ErrCancelRaced
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	o.Status = StatusCancelled
	o.CancellationReason = &cancellationReason
	s.notifier.Notify(notification.Event{
		Kind:        notification.KindOrder("cancelled"),
		AccountID:   o.UserID,
		ShopID:      o.ShopID,
		ReferenceID: o.ID.String(),
		Amount:      o.TotalAmount.String(),
		Description: reason,
	})
	return &o, nil
}

// Complete redeems a scanned pickup code. Payment was captured at
// creation, so the terminal transition has no ledger effect.
func (s *OrderService) Complete(ctx context.Context, encodedQR string) (*Order, error) {
	payload, err := s.qr.Decode(encodedQR)
	if err != nil {
		return nil, err
	}
	orderID, err := uuid.Parse(payload.OrderID)
	if err != nil {
		return nil, pickup.ErrMalformedPayload
	}
	o, err := s.orders.Get(ctx, orderID)
	if err != nil {
		return nil, err
	}

	if err := s.qr.Verify(payload, pickup.Expected{
		OrderID:     o.ID,
		PickupToken: o.PickupToken,
		ShopID:      o.ShopID,
	}); err != nil {
		return nil, err
	}

	if o.Status == StatusCompleted {
		return nil, pickup.ErrAlreadyRedeemed
	}
	if o.Status != StatusReadyForPickup && o.Status != StatusOutForDelivery {
		return nil, &IllegalTransitionError{From: o.Status, To: StatusCompleted}
	}

	err = s.runner.WithTx(ctx, func(tx *sqlx.Tx) error {
		moved, err := s.orders.UpdateStatusGuarded(ctx, tx, o.ID, []OrderStatus{StatusReadyForPickup, StatusOutForDelivery}, StatusCompleted, nil)
		if err != nil {
			return err
		}
		if moved == 0 {
			// a concurrent scan won the flip
			return pickup.ErrAlreadyRedeemed
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	// best-effort redemption marker, written only after the flip committed
	// so a transient failure above never locks the code out
	if s.guard != nil {
		if _, err := s.guard.SetIfAbsent(ctx, "pickup:redeemed:"+o.ID.String(), 1, 48*time.Hour); err != nil {
			s.logger.Error(fmt.Sprintf("could not mark pickup code for order %s redeemed: %v", o.ID, err))
		}
	}

	o.Status = StatusCompleted
	s.notifier.Notify(notification.Event{
		Kind:        notification.KindOrder("completed"),
		AccountID:   o.UserID,
		ShopID:      o.ShopID,
		ReferenceID: o.ID.String(),
	})
	return &o, nil
}

func (s *OrderService) Get(ctx context.Context, orderID uuid.UUID) (*Order, error) {
	o, err := s.orders.Get(ctx, orderID)
	if err != nil {
		return nil, err
	}
	return &o, nil
}

func (s *OrderService) ListByUser(ctx context.Context, userID int64, limit, offset int) ([]Order, error) {
	if limit <= 0 {
		limit = 20
	}
	return s.orders.ListByUser(ctx, userID, limit, offset)
}
