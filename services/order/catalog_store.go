package order

import (
	"context"
	"database/sql"
	"errors"

	"github.com/CampusBite/CampusBite-Backend/db"
	"github.com/shopspring/decimal"
)

// SQLCatalog reads the menu tables owned by the external shop/menu
// module. The order core only ever reads them.
type SQLCatalog struct {
	db db.DB
}

func NewSQLCatalog(database db.DB) *SQLCatalog {
	return &SQLCatalog{db: database}
}

func (c *SQLCatalog) GetItem(ctx context.Context, shopID, foodItemID int64) (CatalogItem, error) {
	var row struct {
		ID        int64           `db:"id"`
		Name      string          `db:"name"`
		Price     decimal.Decimal `db:"price"`
		Available bool            `db:"is_available"`
	}
	err := c.db.GetContext(ctx, &row, `
		SELECT id, name, price, is_available
		FROM food_items
		WHERE id = $1 AND shop_id = $2
	`, foodItemID, shopID)
	if errors.Is(err, sql.ErrNoRows) {
		return CatalogItem{}, ErrItemNotFound
	}
	if err != nil {
		return CatalogItem{}, err
	}
	return CatalogItem{
		ID:        row.ID,
		Name:      row.Name,
		Price:     row.Price,
		Available: row.Available,
	}, nil
}
