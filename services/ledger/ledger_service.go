package ledger

import (
	"context"
	"fmt"
	"time"

	"github.com/CampusBite/CampusBite-Backend/db"
	"github.com/CampusBite/CampusBite-Backend/services/account"
	"github.com/CampusBite/CampusBite-Backend/services/monitoring/logging"
	"github.com/CampusBite/CampusBite-Backend/services/notification"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"
)

type AccountStore interface {
	GetForUpdate(ctx context.Context, tx db.Getter, accountID int64) (account.Account, error)
	UpdateBalance(ctx context.Context, tx db.Execer, accountID int64, balance decimal.Decimal) error
}

type TransactionWriter interface {
	Insert(ctx context.Context, tx db.Execer, shard Shard, txn Transaction) error
}

type ShardResolver interface {
	CurrentShard(ctx context.Context) (Shard, error)
	ShardsForRange(ctx context.Context, start, end *time.Time) ([]Shard, error)
	ShardByKey(ctx context.Context, key string) (Shard, error)
}

type Notifier interface {
	Notify(event notification.Event)
}

// LedgerService is the only code path that moves an account balance. Every
// operation updates the balance and appends the matching transaction row in
// one serializable storage transaction; neither write is visible without
// the other.
type LedgerService struct {
	runner       db.TxRunner
	accounts     AccountStore
	transactions TransactionWriter
	shards       ShardResolver
	notifier     Notifier
	logger       *logging.Logger
}

func NewLedgerService(runner db.TxRunner, accounts AccountStore, transactions TransactionWriter, shards ShardResolver, notifier Notifier, logger *logging.Logger) *LedgerService {
	return &LedgerService{
		runner:       runner,
		accounts:     accounts,
		transactions: transactions,
		shards:       shards,
		notifier:     notifier,
		logger:       logger,
	}
}

type CreditParams struct {
	AccountID   int64
	Amount      decimal.Decimal
	Source      TransactionSource
	Description string
	ProcessedBy int64
	Reference   string
}

type DebitParams struct {
	AccountID   int64
	Amount      decimal.Decimal
	Description string
	ProcessedBy int64
	Reference   string
}

// Credit tops up a wallet. The account must exist, be active and be
// approved.
func (l *LedgerService) Credit(ctx context.Context, p CreditParams) (*Transaction, error) {
	if !p.Amount.IsPositive() {
		return nil, ErrInvalidAmount
	}
	if p.Source == "" {
		p.Source = SourceCashDeposit
	}
	return l.apply(ctx, applyParams{
		accountID:    p.AccountID,
		amount:       p.Amount,
		txType:       TypeCredit,
		source:       p.Source,
		description:  p.Description,
		processedBy:  &p.ProcessedBy,
		reference:    p.Reference,
		requireGates: gateActiveApproved,
	})
}

// Debit withdraws from a wallet, failing with InsufficientBalanceError
// before any state changes when the balance cannot cover the amount.
func (l *LedgerService) Debit(ctx context.Context, p DebitParams) (*Transaction, error) {
	if !p.Amount.IsPositive() {
		return nil, ErrInvalidAmount
	}
	return l.apply(ctx, applyParams{
		accountID:    p.AccountID,
		amount:       p.Amount,
		txType:       TypeDebit,
		source:       SourceAdjustment,
		description:  p.Description,
		processedBy:  &p.ProcessedBy,
		reference:    p.Reference,
		requireGates: gateActiveApproved,
	})
}

// DebitForOrder captures an order payment. Only the active-account gate
// applies: an order cannot be paid from a deactivated wallet, but approval
// is an onboarding concern that the order flow has already passed.
func (l *LedgerService) DebitForOrder(ctx context.Context, accountID int64, orderID uuid.UUID, amount decimal.Decimal) (*Transaction, error) {
	if !amount.IsPositive() {
		return nil, ErrInvalidAmount
	}
	return l.apply(ctx, applyParams{
		accountID:   accountID,
		amount:      amount,
		txType:      TypeDebit,
		source:      SourceOnlinePayment,
		description: fmt.Sprintf("Payment for order %s", orderID),
		orderID:     &orderID,
		// one capture per order
		reference:    fmt.Sprintf("order:%s", orderID),
		requireGates: gateActive,
	})
}

// RefundOrder returns an order payment to the wallet. Refunds carry no
// gates at all; a refund must always be deliverable.
func (l *LedgerService) RefundOrder(ctx context.Context, accountID int64, orderID uuid.UUID, amount decimal.Decimal, description string) (*Transaction, error) {
	if !amount.IsPositive() {
		return nil, ErrInvalidAmount
	}
	if description == "" {
		description = fmt.Sprintf("Refund for order %s", orderID)
	}
	return l.apply(ctx, applyParams{
		accountID:   accountID,
		amount:      amount,
		txType:      TypeRefund,
		source:      SourceRefund,
		description: description,
		orderID:     &orderID,
		// one refund per order, enforced by the shard's unique
		// reference index
		reference:    fmt.Sprintf("refund:%s", orderID),
		requireGates: gateNone,
	})
}

type gateLevel int

const (
	gateNone gateLevel = iota
	gateActive
	gateActiveApproved
)

type applyParams struct {
	accountID    int64
	amount       decimal.Decimal
	txType       TransactionType
	source       TransactionSource
	description  string
	processedBy  *int64
	orderID      *uuid.UUID
	reference    string
	requireGates gateLevel
}

func (l *LedgerService) apply(ctx context.Context, p applyParams) (*Transaction, error) {
	// Shard creation is DDL and auto-commits, so it happens before the
	// money transaction. A crash after this leaves an empty table, which
	// the next write reuses.
	shard, err := l.shards.CurrentShard(ctx)
	if err != nil {
		return nil, err
	}

	var txn Transaction
	err = l.runner.WithTx(ctx, func(tx *sqlx.Tx) error {
		acc, err := l.accounts.GetForUpdate(ctx, tx, p.accountID)
		if err != nil {
			return err
		}
		if p.requireGates >= gateActive && !acc.IsActive {
			return account.NewAccountError(account.ErrAccountInactive, p.accountID)
		}
		if p.requireGates >= gateActiveApproved && !acc.IsApproved {
			return account.NewAccountError(account.ErrAccountNotApproved, p.accountID)
		}

		before := acc.Balance
		var after decimal.Decimal
		switch p.txType {
		case TypeDebit:
			if before.LessThan(p.amount) {
				return &InsufficientBalanceError{Current: before, Required: p.amount}
			}
			after = before.Sub(p.amount)
		default:
			after = before.Add(p.amount)
		}

		if err := l.accounts.UpdateBalance(ctx, tx, p.accountID, after); err != nil {
			return err
		}

		txn = Transaction{
			ID:            uuid.New(),
			AccountID:     p.accountID,
			Type:          p.txType,
			Amount:        p.amount,
			BalanceBefore: before,
			BalanceAfter:  after,
			Source:        p.source,
			Status:        StatusCompleted,
			ProcessedBy:   p.processedBy,
			OrderID:       p.orderID,
			Description:   p.description,
			CreatedAt:     time.Now().UTC(),
			ShardKey:      shard.Key,
		}
		if p.reference != "" {
			ref := p.reference
			txn.Reference = &ref
		}
		if err := l.transactions.Insert(ctx, tx, shard, txn); err != nil {
			if db.IsDuplicate(err) {
				return ErrDuplicateReference
			}
			return err
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	l.logger.WithField("transaction_id", txn.ID).WithField("type", txn.Type).
		Info("ledger operation applied")
	if l.notifier != nil {
		l.notifier.Notify(notification.Event{
			Kind:        notification.KindWallet(string(p.txType)),
			AccountID:   p.accountID,
			ReferenceID: txn.ID.String(),
			Amount:      p.amount.String(),
			Description: p.description,
		})
	}
	return &txn, nil
}
