package ledger

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/CampusBite/CampusBite-Backend/db"
	"github.com/google/uuid"
)

// TransactionStore reads and appends ledger rows inside monthly shard
// tables. Rows are never updated or deleted here.
type TransactionStore struct {
	db db.DB
}

func NewTransactionStore(database db.DB) *TransactionStore {
	return &TransactionStore{db: database}
}

func (s *TransactionStore) Insert(ctx context.Context, tx db.Execer, shard Shard, txn Transaction) error {
	query := fmt.Sprintf(`
		INSERT INTO %s (id, account_id, type, amount, balance_before, balance_after,
		                source, status, processed_by, order_id, reference, description, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
	`, shard.Table)
	_, err := tx.ExecContext(ctx, query,
		txn.ID, txn.AccountID, txn.Type, txn.Amount, txn.BalanceBefore, txn.BalanceAfter,
		txn.Source, txn.Status, txn.ProcessedBy, txn.OrderID, txn.Reference, txn.Description, txn.CreatedAt,
	)
	return err
}

func (s *TransactionStore) CountInShard(ctx context.Context, shard Shard, f Filter) (int64, error) {
	where, args := buildFilter(f)
	var count int64
	query := fmt.Sprintf(`SELECT COUNT(*) FROM %s %s`, shard.Table, where)
	if err := s.db.GetContext(ctx, &count, query, args...); err != nil {
		return 0, err
	}
	return count, nil
}

func (s *TransactionStore) SelectInShard(ctx context.Context, shard Shard, f Filter, limit, offset int) ([]Transaction, error) {
	where, args := buildFilter(f)
	query := fmt.Sprintf(`
		SELECT id, account_id, type, amount, balance_before, balance_after,
		       source, status, processed_by, order_id, reference, description, created_at
		FROM %s
		%s
		ORDER BY created_at DESC
		LIMIT $%d OFFSET $%d
	`, shard.Table, where, len(args)+1, len(args)+2)
	args = append(args, limit, offset)

	var rows []Transaction
	if err := s.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, err
	}
	for i := range rows {
		rows[i].ShardKey = shard.Key
	}
	return rows, nil
}

func (s *TransactionStore) GetInShard(ctx context.Context, shard Shard, id uuid.UUID) (Transaction, error) {
	var row Transaction
	query := fmt.Sprintf(`
		SELECT id, account_id, type, amount, balance_before, balance_after,
		       source, status, processed_by, order_id, reference, description, created_at
		FROM %s
		WHERE id = $1
	`, shard.Table)
	err := s.db.GetContext(ctx, &row, query, id)
	if errors.Is(err, sql.ErrNoRows) {
		return Transaction{}, ErrTransactionNotFound
	}
	if err != nil {
		return Transaction{}, err
	}
	row.ShardKey = shard.Key
	return row, nil
}

// SumForShopPeriod feeds vendor settlement: the total of completed order
// payments recorded in the shard for orders belonging to the shop.
func (s *TransactionStore) SumForShopPeriod(ctx context.Context, shard Shard) ([]ShopTotal, error) {
	query := fmt.Sprintf(`
		SELECT o.shop_id, COALESCE(SUM(t.amount), 0) AS total
		FROM %s t
		JOIN orders o ON o.id = t.order_id
		WHERE t.type = 'debit' AND t.status = 'completed' AND o.status = 'completed'
		GROUP BY o.shop_id
	`, shard.Table)
	var totals []ShopTotal
	if err := s.db.SelectContext(ctx, &totals, query); err != nil {
		return nil, err
	}
	return totals, nil
}

var ErrTransactionNotFound = fmt.Errorf("transaction not found")

func buildFilter(f Filter) (string, []any) {
	var conditions []string
	var args []any

	add := func(cond string, value any) {
		args = append(args, value)
		conditions = append(conditions, fmt.Sprintf(cond, len(args)))
	}

	if f.AccountID != nil {
		add("account_id = $%d", *f.AccountID)
	}
	if f.Type != nil {
		add("type = $%d", *f.Type)
	}
	if f.Source != nil {
		add("source = $%d", *f.Source)
	}
	if f.Status != nil {
		add("status = $%d", *f.Status)
	}
	if f.From != nil {
		add("created_at >= $%d", f.From.UTC())
	}
	if f.To != nil {
		add("created_at <= $%d", f.To.UTC())
	}
	if len(conditions) == 0 {
		return "", nil
	}
	return "WHERE " + strings.Join(conditions, " AND "), args
}
