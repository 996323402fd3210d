package account

import (
	"context"
	"database/sql"
	"errors"

	"github.com/CampusBite/CampusBite-Backend/db"
	"github.com/shopspring/decimal"
)

type Store struct {
	db db.DB
}

func NewStore(database db.DB) *Store {
	return &Store{db: database}
}

func (s *Store) Create(ctx context.Context, tx db.Execer, acc Account) error {
	query := `
		INSERT INTO accounts (id, name, balance, is_active, is_approved)
		VALUES ($1, $2, $3, $4, $5)
	`
	_, err := tx.ExecContext(ctx, query, acc.ID, acc.Name, acc.Balance, acc.IsActive, acc.IsApproved)
	return err
}

func (s *Store) Get(ctx context.Context, accountID int64) (Account, error) {
	var row Account
	err := s.db.GetContext(ctx, &row, `
		SELECT id, name, balance, is_active, is_approved, created_at, updated_at
		FROM accounts
		WHERE id = $1
	`, accountID)
	if errors.Is(err, sql.ErrNoRows) {
		return Account{}, ErrAccountNotFound
	}
	if err != nil {
		return Account{}, err
	}
	return row, nil
}

// GetForUpdate takes the row lock that serializes concurrent ledger
// operations against the same account.
func (s *Store) GetForUpdate(ctx context.Context, tx db.Getter, accountID int64) (Account, error) {
	var row Account
	err := tx.GetContext(ctx, &row, `
		SELECT id, name, balance, is_active, is_approved, created_at, updated_at
		FROM accounts
		WHERE id = $1
		FOR UPDATE
	`, accountID)
	if errors.Is(err, sql.ErrNoRows) {
		return Account{}, ErrAccountNotFound
	}
	if err != nil {
		return Account{}, err
	}
	return row, nil
}

func (s *Store) UpdateBalance(ctx context.Context, tx db.Execer, accountID int64, balance decimal.Decimal) error {
	_, err := tx.ExecContext(ctx, `
		UPDATE accounts
		SET balance = $1, updated_at = NOW()
		WHERE id = $2
	`, balance, accountID)
	return err
}
