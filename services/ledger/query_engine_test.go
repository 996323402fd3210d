package ledger

import (
	"context"
	"testing"
	"time"

	"github.com/CampusBite/CampusBite-Backend/services/monitoring/logging"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

// fakeShards serves a fixed shard list, newest first, the way the
// registry query does.
type fakeShards struct {
	shards []Shard
}

func (f *fakeShards) CurrentShard(ctx context.Context) (Shard, error) {
	return f.shards[0], nil
}

func (f *fakeShards) ShardsForRange(ctx context.Context, start, end *time.Time) ([]Shard, error) {
	if start == nil && end == nil {
		return f.shards, nil
	}
	lower := ""
	upper := "9999-99"
	if start != nil {
		lower = MonthKey(*start)
	}
	if end != nil {
		upper = MonthKey(*end)
	}
	var filtered []Shard
	for _, s := range f.shards {
		if s.Key >= lower && s.Key <= upper {
			filtered = append(filtered, s)
		}
	}
	return filtered, nil
}

func (f *fakeShards) ShardByKey(ctx context.Context, key string) (Shard, error) {
	for _, s := range f.shards {
		if s.Key == key {
			return s, nil
		}
	}
	return Shard{}, &ShardResolutionError{Key: key}
}

// fakeQuerier holds per-shard rows pre-sorted newest first, matching the
// ORDER BY created_at DESC the store issues.
type fakeQuerier struct {
	rows map[string][]Transaction
}

func (f *fakeQuerier) matching(shard Shard, filter Filter) []Transaction {
	var out []Transaction
	for _, txn := range f.rows[shard.Key] {
		if filter.AccountID != nil && txn.AccountID != *filter.AccountID {
			continue
		}
		if filter.Type != nil && txn.Type != *filter.Type {
			continue
		}
		out = append(out, txn)
	}
	return out
}

func (f *fakeQuerier) CountInShard(ctx context.Context, shard Shard, filter Filter) (int64, error) {
	return int64(len(f.matching(shard, filter))), nil
}

func (f *fakeQuerier) SelectInShard(ctx context.Context, shard Shard, filter Filter, limit, offset int) ([]Transaction, error) {
	rows := f.matching(shard, filter)
	if offset >= len(rows) {
		return nil, nil
	}
	rows = rows[offset:]
	if limit < len(rows) {
		rows = rows[:limit]
	}
	return rows, nil
}

func (f *fakeQuerier) GetInShard(ctx context.Context, shard Shard, id uuid.UUID) (Transaction, error) {
	for _, txn := range f.rows[shard.Key] {
		if txn.ID == id {
			return txn, nil
		}
	}
	return Transaction{}, ErrTransactionNotFound
}

func txnAt(accountID int64, at time.Time) Transaction {
	return Transaction{
		ID:        uuid.New(),
		AccountID: accountID,
		Type:      TypeCredit,
		Amount:    decimal.NewFromInt(10),
		Status:    StatusCompleted,
		CreatedAt: at,
		ShardKey:  MonthKey(at),
	}
}

// three shards, five rows for account 7, newest at the top of each shard
func seedEngine() (*QueryEngine, map[string][]Transaction) {
	aug := []Transaction{
		txnAt(7, time.Date(2026, time.August, 20, 12, 0, 0, 0, time.UTC)),
		txnAt(7, time.Date(2026, time.August, 5, 9, 0, 0, 0, time.UTC)),
	}
	jul := []Transaction{
		txnAt(9, time.Date(2026, time.July, 30, 8, 0, 0, 0, time.UTC)),
		txnAt(7, time.Date(2026, time.July, 14, 16, 0, 0, 0, time.UTC)),
	}
	jun := []Transaction{
		txnAt(7, time.Date(2026, time.June, 28, 11, 0, 0, 0, time.UTC)),
		txnAt(7, time.Date(2026, time.June, 2, 7, 0, 0, 0, time.UTC)),
	}
	rows := map[string][]Transaction{
		"2026-08": aug,
		"2026-07": jul,
		"2026-06": jun,
	}
	shards := &fakeShards{shards: []Shard{
		{Key: "2026-08", Table: "ledger_transactions_2026_08"},
		{Key: "2026-07", Table: "ledger_transactions_2026_07"},
		{Key: "2026-06", Table: "ledger_transactions_2026_06"},
	}}
	return NewQueryEngine(shards, &fakeQuerier{rows: rows}, logging.NewLogger()), rows
}

func TestQueryMergesAcrossShardsNewestFirst(t *testing.T) {
	engine, _ := seedEngine()
	accountID := int64(7)

	page, err := engine.Query(context.Background(), Filter{AccountID: &accountID})
	require.NoError(t, err)

	require.EqualValues(t, 5, page.Total)
	require.EqualValues(t, 1, page.TotalPages)
	require.Len(t, page.Transactions, 5)
	for i := 1; i < len(page.Transactions); i++ {
		require.False(t, page.Transactions[i].CreatedAt.After(page.Transactions[i-1].CreatedAt))
	}
	require.Equal(t, "2026-08", page.Transactions[0].ShardKey)
	require.Equal(t, "2026-06", page.Transactions[4].ShardKey)
}

func TestQueryPaginatesAcrossShardBoundaries(t *testing.T) {
	engine, _ := seedEngine()
	accountID := int64(7)

	first, err := engine.Query(context.Background(), Filter{AccountID: &accountID, Page: 1, Limit: 2})
	require.NoError(t, err)
	require.Len(t, first.Transactions, 2)
	require.EqualValues(t, 5, first.Total)
	require.EqualValues(t, 3, first.TotalPages)

	// page 2 starts in July and crosses into June
	second, err := engine.Query(context.Background(), Filter{AccountID: &accountID, Page: 2, Limit: 2})
	require.NoError(t, err)
	require.Len(t, second.Transactions, 2)
	require.Equal(t, "2026-07", second.Transactions[0].ShardKey)
	require.Equal(t, "2026-06", second.Transactions[1].ShardKey)

	third, err := engine.Query(context.Background(), Filter{AccountID: &accountID, Page: 3, Limit: 2})
	require.NoError(t, err)
	require.Len(t, third.Transactions, 1)

	// no overlap between pages
	seen := map[uuid.UUID]bool{}
	for _, p := range [][]Transaction{first.Transactions, second.Transactions, third.Transactions} {
		for _, txn := range p {
			require.False(t, seen[txn.ID])
			seen[txn.ID] = true
		}
	}
}

func TestQueryTimeRangeNarrowsShards(t *testing.T) {
	engine, _ := seedEngine()
	accountID := int64(7)
	from := time.Date(2026, time.July, 1, 0, 0, 0, 0, time.UTC)
	to := time.Date(2026, time.August, 31, 0, 0, 0, 0, time.UTC)

	page, err := engine.Query(context.Background(), Filter{AccountID: &accountID, From: &from, To: &to})
	require.NoError(t, err)
	require.EqualValues(t, 3, page.Total)
	for _, txn := range page.Transactions {
		require.NotEqual(t, "2026-06", txn.ShardKey)
	}
}

func TestQueryBeyondLastPageIsEmpty(t *testing.T) {
	engine, _ := seedEngine()
	accountID := int64(7)

	page, err := engine.Query(context.Background(), Filter{AccountID: &accountID, Page: 9, Limit: 2})
	require.NoError(t, err)
	require.Empty(t, page.Transactions)
	require.EqualValues(t, 5, page.Total)
}

func TestQueryClampsLimit(t *testing.T) {
	engine, _ := seedEngine()

	page, err := engine.Query(context.Background(), Filter{Limit: 10_000})
	require.NoError(t, err)
	require.Equal(t, maxPageLimit, page.Limit)

	page, err = engine.Query(context.Background(), Filter{})
	require.NoError(t, err)
	require.Equal(t, defaultPageLimit, page.Limit)
	require.Equal(t, 1, page.Page)
}

func TestGetByID(t *testing.T) {
	engine, rows := seedEngine()
	want := rows["2026-07"][1]

	got, err := engine.GetByID(context.Background(), "2026-07", want.ID)
	require.NoError(t, err)
	require.Equal(t, want.ID, got.ID)

	_, err = engine.GetByID(context.Background(), "2026-07", uuid.New())
	require.ErrorIs(t, err, ErrTransactionNotFound)

	_, err = engine.GetByID(context.Background(), "2019-01", want.ID)
	var shardErr *ShardResolutionError
	require.ErrorAs(t, err, &shardErr)
	require.Equal(t, "2019-01", shardErr.Key)
}
