package ledger

import (
	"context"
	"sort"
	"time"

	"github.com/CampusBite/CampusBite-Backend/services/monitoring/logging"
	"github.com/google/uuid"
)

const (
	defaultPageLimit = 20
	maxPageLimit     = 100
)

type Filter struct {
	AccountID *int64
	Type      *TransactionType
	Source    *TransactionSource
	Status    *TransactionStatus
	From      *time.Time
	To        *time.Time
	Page      int
	Limit     int
}

type Page struct {
	Transactions []Transaction `json:"transactions"`
	Total        int64         `json:"total"`
	Page         int           `json:"page"`
	Limit        int           `json:"limit"`
	TotalPages   int64         `json:"total_pages"`
}

type TransactionQuerier interface {
	CountInShard(ctx context.Context, shard Shard, f Filter) (int64, error)
	SelectInShard(ctx context.Context, shard Shard, f Filter, limit, offset int) ([]Transaction, error)
	GetInShard(ctx context.Context, shard Shard, id uuid.UUID) (Transaction, error)
}

// QueryEngine runs filtered, paginated reads that may span several monthly
// shards. It is strictly read-only: shard data is written by the ledger
// service alone.
type QueryEngine struct {
	shards ShardResolver
	store  TransactionQuerier
	logger *logging.Logger
}

func NewQueryEngine(shards ShardResolver, store TransactionQuerier, logger *logging.Logger) *QueryEngine {
	return &QueryEngine{
		shards: shards,
		store:  store,
		logger: logger,
	}
}

// Query fans the filter out to every shard overlapping the requested
// range, sums per-shard counts for the global total and walks the shards
// newest-first to fill the requested page. Shards partition disjoint
// months, so shard order plus per-shard created_at ordering yields a
// globally time-ordered result; the final sort is a safety net for rows
// carrying identical timestamps at shard edges.
func (e *QueryEngine) Query(ctx context.Context, f Filter) (*Page, error) {
	if f.Page < 1 {
		f.Page = 1
	}
	if f.Limit <= 0 {
		f.Limit = defaultPageLimit
	}
	if f.Limit > maxPageLimit {
		f.Limit = maxPageLimit
	}

	shards, err := e.shards.ShardsForRange(ctx, f.From, f.To)
	if err != nil {
		return nil, err
	}

	var total int64
	counts := make([]int64, len(shards))
	for i, shard := range shards {
		count, err := e.store.CountInShard(ctx, shard, f)
		if err != nil {
			return nil, err
		}
		counts[i] = count
		total += count
	}

	results := make([]Transaction, 0, f.Limit)
	skip := int64(f.Page-1) * int64(f.Limit)
	for i, shard := range shards {
		if len(results) == f.Limit {
			break
		}
		if skip >= counts[i] {
			skip -= counts[i]
			continue
		}
		take := f.Limit - len(results)
		rows, err := e.store.SelectInShard(ctx, shard, f, take, int(skip))
		if err != nil {
			return nil, err
		}
		skip = 0
		results = append(results, rows...)
	}

	sort.SliceStable(results, func(i, j int) bool {
		return results[i].CreatedAt.After(results[j].CreatedAt)
	})

	totalPages := total / int64(f.Limit)
	if total%int64(f.Limit) != 0 {
		totalPages++
	}

	return &Page{
		Transactions: results,
		Total:        total,
		Page:         f.Page,
		Limit:        f.Limit,
		TotalPages:   totalPages,
	}, nil
}

// GetByID is a point lookup against a known shard.
func (e *QueryEngine) GetByID(ctx context.Context, shardKey string, id uuid.UUID) (Transaction, error) {
	shard, err := e.shards.ShardByKey(ctx, shardKey)
	if err != nil {
		return Transaction{}, err
	}
	return e.store.GetInShard(ctx, shard, id)
}
