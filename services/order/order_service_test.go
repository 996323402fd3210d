package order

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/CampusBite/CampusBite-Backend/db"
	"github.com/CampusBite/CampusBite-Backend/services/ledger"
	"github.com/CampusBite/CampusBite-Backend/services/monitoring/logging"
	"github.com/CampusBite/CampusBite-Backend/services/notification"
	"github.com/CampusBite/CampusBite-Backend/services/pickup"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

// flakyRunner fails the next N transactions the way a serialization abort
// would, so recovery paths can be exercised.
type flakyRunner struct {
	failures int
}

func (r *flakyRunner) WithTx(ctx context.Context, fn func(tx *sqlx.Tx) error) error {
	if r.failures > 0 {
		r.failures--
		return db.NewTransientError(errors.New("serialization failure"))
	}
	return fn(nil)
}

type memOrders struct {
	orders    map[uuid.UUID]Order
	createErr error
}

func newMemOrders() *memOrders {
	return &memOrders{orders: make(map[uuid.UUID]Order)}
}

func (m *memOrders) Create(ctx context.Context, tx db.Execer, o Order) error {
	if m.createErr != nil {
		return m.createErr
	}
	m.orders[o.ID] = o
	return nil
}

func (m *memOrders) Get(ctx context.Context, orderID uuid.UUID) (Order, error) {
	o, ok := m.orders[orderID]
	if !ok {
		return Order{}, ErrOrderNotFound
	}
	return o, nil
}

func (m *memOrders) ListByUser(ctx context.Context, userID int64, limit, offset int) ([]Order, error) {
	var out []Order
	for _, o := range m.orders {
		if o.UserID == userID {
			out = append(out, o)
		}
	}
	return out, nil
}

func (m *memOrders) UpdateStatusGuarded(ctx context.Context, tx db.Execer, orderID uuid.UUID, from []OrderStatus, to OrderStatus, reason *string) (int64, error) {
	o, ok := m.orders[orderID]
	if !ok {
		return 0, nil
	}
	for _, f := range from {
		if o.Status == f {
			o.Status = to
			o.CancellationReason = reason
			m.orders[orderID] = o
			return 1, nil
		}
	}
	return 0, nil
}

// stubLedger applies the same one-capture one-refund per order rule the
// real shard index enforces.
type stubLedger struct {
	balances  map[int64]decimal.Decimal
	debits    map[uuid.UUID]decimal.Decimal
	refunds   map[uuid.UUID]decimal.Decimal
	debitErr  error
	refundErr error
}

func newStubLedger(balances map[int64]decimal.Decimal) *stubLedger {
	return &stubLedger{
		balances: balances,
		debits:   make(map[uuid.UUID]decimal.Decimal),
		refunds:  make(map[uuid.UUID]decimal.Decimal),
	}
}

func (s *stubLedger) DebitForOrder(ctx context.Context, accountID int64, orderID uuid.UUID, amount decimal.Decimal) (*ledger.Transaction, error) {
	if s.debitErr != nil {
		return nil, s.debitErr
	}
	if _, done := s.debits[orderID]; done {
		return nil, ledger.ErrDuplicateReference
	}
	balance := s.balances[accountID]
	if balance.LessThan(amount) {
		return nil, &ledger.InsufficientBalanceError{Current: balance, Required: amount}
	}
	s.balances[accountID] = balance.Sub(amount)
	s.debits[orderID] = amount
	return &ledger.Transaction{ID: uuid.New(), AccountID: accountID, Amount: amount}, nil
}

func (s *stubLedger) RefundOrder(ctx context.Context, accountID int64, orderID uuid.UUID, amount decimal.Decimal, description string) (*ledger.Transaction, error) {
	if s.refundErr != nil {
		return nil, s.refundErr
	}
	if _, done := s.refunds[orderID]; done {
		return nil, ledger.ErrDuplicateReference
	}
	s.balances[accountID] = s.balances[accountID].Add(amount)
	s.refunds[orderID] = amount
	return &ledger.Transaction{ID: uuid.New(), AccountID: accountID, Amount: amount}, nil
}

type stubCatalog struct {
	items map[int64]CatalogItem
}

func (s *stubCatalog) GetItem(ctx context.Context, shopID, foodItemID int64) (CatalogItem, error) {
	item, ok := s.items[foodItemID]
	if !ok {
		return CatalogItem{}, ErrItemNotFound
	}
	return item, nil
}

type stubGuard struct {
	keys map[string]bool
	err  error
}

func (s *stubGuard) SetIfAbsent(ctx context.Context, key string, value interface{}, expiration time.Duration) (bool, error) {
	if s.err != nil {
		return false, s.err
	}
	if s.keys == nil {
		s.keys = make(map[string]bool)
	}
	if s.keys[key] {
		return false, nil
	}
	s.keys[key] = true
	return true, nil
}

type stubNotifier struct {
	events []notification.Event
}

func (s *stubNotifier) Notify(event notification.Event) {
	s.events = append(s.events, event)
}

type fixture struct {
	svc      *OrderService
	runner   *flakyRunner
	orders   *memOrders
	ledger   *stubLedger
	guard    *stubGuard
	notifier *stubNotifier
	qr       *pickup.QRService
}

func newFixture(balance string) *fixture {
	orders := newMemOrders()
	led := newStubLedger(map[int64]decimal.Decimal{
		1: decimal.RequireFromString(balance),
	})
	catalog := &stubCatalog{items: map[int64]CatalogItem{
		100: {ID: 100, Name: "Jollof Rice", Price: decimal.RequireFromString("150.00"), Available: true},
		101: {ID: 101, Name: "Chicken Suya", Price: decimal.RequireFromString("200.00"), Available: true},
		102: {ID: 102, Name: "Out of Stock", Price: decimal.RequireFromString("50.00"), Available: false},
	}}
	guard := &stubGuard{}
	notifier := &stubNotifier{}
	qr := pickup.NewQRService("test-secret", 24*time.Hour)
	runner := &flakyRunner{}
	svc := NewOrderService(runner, orders, led, catalog, qr, guard, notifier, logging.NewLogger())
	return &fixture{svc: svc, runner: runner, orders: orders, ledger: led, guard: guard, notifier: notifier, qr: qr}
}

func (f *fixture) placeOrder(t *testing.T) *Order {
	t.Helper()
	o, err := f.svc.Create(context.Background(), CreateOrderParams{
		UserID: 1,
		ShopID: 42,
		Items: []ItemRequest{
			{FoodItemID: 100, Quantity: 2}, // 300.00
			{FoodItemID: 101, Quantity: 1}, // 200.00
		},
	})
	require.NoError(t, err)
	return o
}

func (f *fixture) moveTo(t *testing.T, orderID uuid.UUID, path ...OrderStatus) {
	t.Helper()
	for _, status := range path {
		_, err := f.svc.UpdateStatus(context.Background(), orderID, status)
		require.NoError(t, err)
	}
}

func TestCreateOrderCapturesPaymentAndSnapshotsPrices(t *testing.T) {
	f := newFixture("1000.00")
	o := f.placeOrder(t)

	require.Equal(t, StatusPending, o.Status)
	require.True(t, o.TotalAmount.Equal(decimal.RequireFromString("500.00")))
	require.Len(t, o.Items, 2)
	require.True(t, o.Items[0].LineTotal.Equal(decimal.RequireFromString("300.00")))
	require.NotEmpty(t, o.PickupToken)
	require.NotEmpty(t, o.PickupQR)

	// payment captured
	require.True(t, f.ledger.balances[1].Equal(decimal.RequireFromString("500.00")))
	require.Len(t, f.notifier.events, 1)

	// the embedded code verifies against the stored order
	stored := f.orders.orders[o.ID]
	payload, err := f.qr.Decode(o.PickupQR)
	require.NoError(t, err)
	require.NoError(t, f.qr.Verify(payload, pickup.Expected{
		OrderID:     stored.ID,
		PickupToken: stored.PickupToken,
		ShopID:      stored.ShopID,
	}))
}

func TestCreateOrderValidation(t *testing.T) {
	f := newFixture("1000.00")

	_, err := f.svc.Create(context.Background(), CreateOrderParams{UserID: 1, ShopID: 42})
	require.ErrorIs(t, err, ErrEmptyOrder)

	_, err = f.svc.Create(context.Background(), CreateOrderParams{
		UserID: 1, ShopID: 42,
		Items: []ItemRequest{{FoodItemID: 100, Quantity: 0}},
	})
	require.ErrorIs(t, err, ErrInvalidQuantity)

	_, err = f.svc.Create(context.Background(), CreateOrderParams{
		UserID: 1, ShopID: 42,
		Items: []ItemRequest{{FoodItemID: 999, Quantity: 1}},
	})
	require.ErrorIs(t, err, ErrItemNotFound)

	_, err = f.svc.Create(context.Background(), CreateOrderParams{
		UserID: 1, ShopID: 42,
		Items: []ItemRequest{{FoodItemID: 102, Quantity: 1}},
	})
	require.ErrorIs(t, err, ErrItemUnavailable)

	// nothing was charged for any rejected order
	require.True(t, f.ledger.balances[1].Equal(decimal.RequireFromString("1000.00")))
	require.Empty(t, f.orders.orders)
}

func TestCreateOrderInsufficientBalance(t *testing.T) {
	f := newFixture("499.99")

	_, err := f.svc.Create(context.Background(), CreateOrderParams{
		UserID: 1, ShopID: 42,
		Items: []ItemRequest{
			{FoodItemID: 100, Quantity: 2},
			{FoodItemID: 101, Quantity: 1},
		},
	})
	require.ErrorIs(t, err, ledger.ErrInsufficientBalance)
	require.Empty(t, f.orders.orders)
	require.True(t, f.ledger.balances[1].Equal(decimal.RequireFromString("499.99")))
}

func TestCreateOrderCompensatesFailedPersist(t *testing.T) {
	f := newFixture("1000.00")
	f.orders.createErr = errors.New("connection reset")

	_, err := f.svc.Create(context.Background(), CreateOrderParams{
		UserID: 1, ShopID: 42,
		Items:  []ItemRequest{{FoodItemID: 100, Quantity: 1}},
	})
	require.Error(t, err)

	// the captured payment was refunded
	require.True(t, f.ledger.balances[1].Equal(decimal.RequireFromString("1000.00")))
	require.Len(t, f.ledger.refunds, 1)
}

func TestUpdateStatusFollowsLifecycle(t *testing.T) {
	f := newFixture("1000.00")
	o := f.placeOrder(t)

	f.moveTo(t, o.ID, StatusConfirmed, StatusPreparing, StatusReadyForPickup, StatusOutForDelivery)
	require.Equal(t, StatusOutForDelivery, f.orders.orders[o.ID].Status)
}

func TestUpdateStatusRejectsSkippedStates(t *testing.T) {
	f := newFixture("1000.00")
	o := f.placeOrder(t)

	_, err := f.svc.UpdateStatus(context.Background(), o.ID, StatusReadyForPickup)
	require.ErrorIs(t, err, ErrIllegalTransition)

	var detail *IllegalTransitionError
	require.ErrorAs(t, err, &detail)
	require.Equal(t, StatusPending, detail.From)
	require.Equal(t, StatusReadyForPickup, detail.To)
}

func TestUpdateStatusRejectsNonStaffTargets(t *testing.T) {
	f := newFixture("1000.00")
	o := f.placeOrder(t)

	// completed and cancelled have dedicated flows
	_, err := f.svc.UpdateStatus(context.Background(), o.ID, StatusCompleted)
	require.ErrorIs(t, err, ErrIllegalTransition)

	_, err = f.svc.UpdateStatus(context.Background(), o.ID, StatusCancelled)
	require.ErrorIs(t, err, ErrIllegalTransition)
}

func TestCancelRefundsWhilePendingOrConfirmed(t *testing.T) {
	for _, prep := range []struct {
		name string
		path []OrderStatus
	}{
		{"pending", nil},
		{"confirmed", []OrderStatus{StatusConfirmed}},
	} {
		t.Run(prep.name, func(t *testing.T) {
			f := newFixture("1000.00")
			o := f.placeOrder(t)
			f.moveTo(t, o.ID, prep.path...)

			cancelled, err := f.svc.Cancel(context.Background(), o.ID, "changed my mind")
			require.NoError(t, err)
			require.Equal(t, StatusCancelled, cancelled.Status)
			require.NotNil(t, cancelled.CancellationReason)
			require.Equal(t, "changed my mind", *cancelled.CancellationReason)

			// full refund restored the wallet
			require.True(t, f.ledger.balances[1].Equal(decimal.RequireFromString("1000.00")))
		})
	}
}

func TestCancelRejectedOncePreparing(t *testing.T) {
	f := newFixture("1000.00")
	o := f.placeOrder(t)
	f.moveTo(t, o.ID, StatusConfirmed, StatusPreparing)

	_, err := f.svc.Cancel(context.Background(), o.ID, "too late")
	require.ErrorIs(t, err, ErrNotCancellable)
	require.True(t, f.ledger.balances[1].Equal(decimal.RequireFromString("500.00")))
	require.Empty(t, f.ledger.refunds)
}

func TestCancelTwiceRefundsOnce(t *testing.T) {
	f := newFixture("1000.00")
	o := f.placeOrder(t)

	_, err := f.svc.Cancel(context.Background(), o.ID, "first")
	require.NoError(t, err)

	_, err = f.svc.Cancel(context.Background(), o.ID, "second")
	require.ErrorIs(t, err, ErrNotCancellable)

	require.Len(t, f.ledger.refunds, 1)
	require.True(t, f.ledger.balances[1].Equal(decimal.RequireFromString("1000.00")))
}

func TestCompleteRedeemsPickupCode(t *testing.T) {
	f := newFixture("1000.00")
	o := f.placeOrder(t)
	f.moveTo(t, o.ID, StatusConfirmed, StatusPreparing, StatusReadyForPickup)

	done, err := f.svc.Complete(context.Background(), o.PickupQR)
	require.NoError(t, err)
	require.Equal(t, StatusCompleted, done.Status)
	require.Equal(t, StatusCompleted, f.orders.orders[o.ID].Status)

	// completion is terminal and has no ledger effect
	require.True(t, f.ledger.balances[1].Equal(decimal.RequireFromString("500.00")))
	require.Empty(t, f.ledger.refunds)
}

func TestCompleteRejectsReplayedCode(t *testing.T) {
	f := newFixture("1000.00")
	o := f.placeOrder(t)
	f.moveTo(t, o.ID, StatusConfirmed, StatusPreparing, StatusReadyForPickup)

	_, err := f.svc.Complete(context.Background(), o.PickupQR)
	require.NoError(t, err)

	_, err = f.svc.Complete(context.Background(), o.PickupQR)
	require.ErrorIs(t, err, pickup.ErrAlreadyRedeemed)
}

func TestCompleteRejectsTamperedCode(t *testing.T) {
	f := newFixture("1000.00")
	o := f.placeOrder(t)
	f.moveTo(t, o.ID, StatusConfirmed, StatusPreparing, StatusReadyForPickup)

	payload, err := f.qr.Decode(o.PickupQR)
	require.NoError(t, err)
	payload.ShopID = 99
	_, err = f.svc.Complete(context.Background(), f.qr.Encode(payload))
	require.ErrorIs(t, err, pickup.ErrInvalidChecksum)

	require.Equal(t, StatusReadyForPickup, f.orders.orders[o.ID].Status)
}

func TestCompleteRequiresReadyOrder(t *testing.T) {
	f := newFixture("1000.00")
	o := f.placeOrder(t)

	// still pending, code is genuine but the order is not ready
	_, err := f.svc.Complete(context.Background(), o.PickupQR)
	require.ErrorIs(t, err, ErrIllegalTransition)
}

func TestTerminalStatesAreFrozen(t *testing.T) {
	f := newFixture("1000.00")
	o := f.placeOrder(t)
	f.moveTo(t, o.ID, StatusConfirmed, StatusPreparing, StatusReadyForPickup)

	_, err := f.svc.Complete(context.Background(), o.PickupQR)
	require.NoError(t, err)

	_, err = f.svc.UpdateStatus(context.Background(), o.ID, StatusConfirmed)
	require.ErrorIs(t, err, ErrIllegalTransition)

	_, err = f.svc.Cancel(context.Background(), o.ID, "too late")
	require.ErrorIs(t, err, ErrNotCancellable)
}

func TestCompleteProceedsWhenGuardIsDown(t *testing.T) {
	f := newFixture("1000.00")
	f.guard.err = errors.New("redis down")
	o := f.placeOrder(t)
	f.moveTo(t, o.ID, StatusConfirmed, StatusPreparing, StatusReadyForPickup)

	// availability wins over replay protection; the guarded status update
	// still prevents a double completion
	done, err := f.svc.Complete(context.Background(), o.PickupQR)
	require.NoError(t, err)
	require.Equal(t, StatusCompleted, done.Status)

	_, err = f.svc.Complete(context.Background(), o.PickupQR)
	require.ErrorIs(t, err, pickup.ErrAlreadyRedeemed)
}

func TestCancelRetryAfterTransientFlipFailure(t *testing.T) {
	f := newFixture("1000.00")
	o := f.placeOrder(t)

	// the refund lands but the status flip aborts, leaving the order
	// refunded yet still pending
	f.runner.failures = 1
	_, err := f.svc.Cancel(context.Background(), o.ID, "changed my mind")
	require.Error(t, err)
	require.True(t, db.IsTransient(err))
	require.Len(t, f.ledger.refunds, 1)
	require.Equal(t, StatusPending, f.orders.orders[o.ID].Status)

	// a retry must finish the cancellation without refunding again
	cancelled, err := f.svc.Cancel(context.Background(), o.ID, "changed my mind")
	require.NoError(t, err)
	require.Equal(t, StatusCancelled, cancelled.Status)
	require.Len(t, f.ledger.refunds, 1)
	require.True(t, f.ledger.balances[1].Equal(decimal.RequireFromString("1000.00")))
}

func TestCompleteRetryAfterTransientFlipFailure(t *testing.T) {
	f := newFixture("1000.00")
	o := f.placeOrder(t)
	f.moveTo(t, o.ID, StatusConfirmed, StatusPreparing, StatusReadyForPickup)

	f.runner.failures = 1
	_, err := f.svc.Complete(context.Background(), o.PickupQR)
	require.Error(t, err)
	require.True(t, db.IsTransient(err))
	require.Equal(t, StatusReadyForPickup, f.orders.orders[o.ID].Status)

	// the failed attempt must not poison the code; scanning again works
	done, err := f.svc.Complete(context.Background(), o.PickupQR)
	require.NoError(t, err)
	require.Equal(t, StatusCompleted, done.Status)
}
