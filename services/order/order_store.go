package order

import (
	"context"
	"database/sql"
	"errors"

	"github.com/CampusBite/CampusBite-Backend/db"
	"github.com/google/uuid"
	"github.com/lib/pq"
)

type Store struct {
	db db.DB
}

func NewStore(database db.DB) *Store {
	return &Store{db: database}
}

func (s *Store) Create(ctx context.Context, tx db.Execer, o Order) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO orders (id, user_id, shop_id, total_amount, status, pickup_token, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $7)
	`, o.ID, o.UserID, o.ShopID, o.TotalAmount, o.Status, o.PickupToken, o.CreatedAt)
	if err != nil {
		return err
	}
	for _, item := range o.Items {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO order_items (order_id, food_item_id, name, quantity, unit_price, line_total)
			VALUES ($1, $2, $3, $4, $5, $6)
		`, o.ID, item.FoodItemID, item.Name, item.Quantity, item.UnitPrice, item.LineTotal)
		if err != nil {
			return err
		}
	}
	return nil
}

func (s *Store) Get(ctx context.Context, orderID uuid.UUID) (Order, error) {
	var row Order
	err := s.db.GetContext(ctx, &row, `
		SELECT id, user_id, shop_id, total_amount, status, pickup_token, cancellation_reason, created_at, updated_at
		FROM orders
		WHERE id = $1
	`, orderID)
	if errors.Is(err, sql.ErrNoRows) {
		return Order{}, ErrOrderNotFound
	}
	if err != nil {
		return Order{}, err
	}

	var items []OrderItem
	err = s.db.SelectContext(ctx, &items, `
		SELECT order_id, food_item_id, name, quantity, unit_price, line_total
		FROM order_items
		WHERE order_id = $1
		ORDER BY food_item_id
	`, orderID)
	if err != nil {
		return Order{}, err
	}
	row.Items = items
	return row, nil
}

func (s *Store) ListByUser(ctx context.Context, userID int64, limit, offset int) ([]Order, error) {
	var rows []Order
	err := s.db.SelectContext(ctx, &rows, `
		SELECT id, user_id, shop_id, total_amount, status, pickup_token, cancellation_reason, created_at, updated_at
		FROM orders
		WHERE user_id = $1
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3
	`, userID, limit, offset)
	if err != nil {
		return nil, err
	}
	return rows, nil
}

// UpdateStatusGuarded flips the status only when the row still holds one
// of the expected statuses, making every transition a single atomic state
// change. Returns the number of rows moved (0 or 1).
func (s *Store) UpdateStatusGuarded(ctx context.Context, tx db.Execer, orderID uuid.UUID, from []OrderStatus, to OrderStatus, reason *string) (int64, error) {
	expected := make([]string, len(from))
	for i, st := range from {
		expected[i] = string(st)
	}
	res, err := tx.ExecContext(ctx, `
		UPDATE orders
		SET status = $1,
		    cancellation_reason = COALESCE($2, cancellation_reason),
		    updated_at = NOW()
		WHERE id = $3 AND status = ANY($4)
	`, to, reason, orderID, pq.Array(expected))
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
