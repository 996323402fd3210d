package ledger

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/CampusBite/CampusBite-Backend/services/monitoring/logging"
	"github.com/jmoiron/sqlx"
	gocache "github.com/patrickmn/go-cache"
)

const shardTablePrefix = "ledger_transactions_"

// Shard is one monthly partition of the transaction ledger.
type Shard struct {
	Key   string `db:"shard_key"`
	Table string `db:"table_name"`
}

// MonthKey derives the shard key for a point in time. Shard assignment is
// by UTC calendar month.
func MonthKey(t time.Time) string {
	return t.UTC().Format("2006-01")
}

func tableForKey(key string) string {
	return shardTablePrefix + strings.ReplaceAll(key, "-", "_")
}

// MonthKeysInRange returns every month key overlapping [start, end],
// oldest first. An inverted range yields nothing.
func MonthKeysInRange(start, end time.Time) []string {
	start = start.UTC()
	end = end.UTC()
	if end.Before(start) {
		return nil
	}
	var keys []string
	cursor := time.Date(start.Year(), start.Month(), 1, 0, 0, 0, 0, time.UTC)
	last := time.Date(end.Year(), end.Month(), 1, 0, 0, 0, 0, time.UTC)
	for !cursor.After(last) {
		keys = append(keys, MonthKey(cursor))
		cursor = cursor.AddDate(0, 1, 0)
	}
	return keys
}

// ShardRouter resolves which monthly partition a write or query touches,
// creating the current month's table on first use.
type ShardRouter struct {
	db      *sqlx.DB
	ensured *gocache.Cache
	logger  *logging.Logger
	now     func() time.Time
}

func NewShardRouter(db *sqlx.DB, logger *logging.Logger) *ShardRouter {
	return &ShardRouter{
		db:      db,
		ensured: gocache.New(gocache.NoExpiration, gocache.NoExpiration),
		logger:  logger,
		now:     time.Now,
	}
}

// CurrentShard returns the partition for the current calendar month,
// creating it if this is the first write of the month. Creation uses
// IF NOT EXISTS / ON CONFLICT so concurrent first writers are a no-op
// for everyone but one.
func (r *ShardRouter) CurrentShard(ctx context.Context) (Shard, error) {
	key := MonthKey(r.now())
	shard := Shard{Key: key, Table: tableForKey(key)}

	if _, ok := r.ensured.Get(key); ok {
		return shard, nil
	}

	if err := r.ensureShard(ctx, shard); err != nil {
		return Shard{}, fmt.Errorf("ensure shard %s: %w", key, err)
	}

	r.ensured.Set(key, true, gocache.NoExpiration)
	return shard, nil
}

func (r *ShardRouter) ensureShard(ctx context.Context, shard Shard) error {
	statements := []string{
		fmt.Sprintf(`
			CREATE TABLE IF NOT EXISTS %s (
				id UUID PRIMARY KEY,
				account_id BIGINT NOT NULL,
				type TEXT NOT NULL,
				amount NUMERIC(14,2) NOT NULL CHECK (amount > 0),
				balance_before NUMERIC(14,2) NOT NULL,
				balance_after NUMERIC(14,2) NOT NULL,
				source TEXT NOT NULL,
				status TEXT NOT NULL,
				processed_by BIGINT,
				order_id UUID,
				reference TEXT,
				description TEXT NOT NULL DEFAULT '',
				created_at TIMESTAMPTZ NOT NULL
			)`, shard.Table),
		fmt.Sprintf(`CREATE INDEX IF NOT EXISTS %s_account_idx ON %s (account_id, created_at DESC)`, shard.Table, shard.Table),
		fmt.Sprintf(`CREATE UNIQUE INDEX IF NOT EXISTS %s_reference_idx ON %s (reference) WHERE reference IS NOT NULL`, shard.Table, shard.Table),
		// registry row last so a listed shard always has its table
	}
	for _, stmt := range statements {
		if _, err := r.db.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO transaction_shards (shard_key, table_name)
		VALUES ($1, $2)
		ON CONFLICT (shard_key) DO NOTHING
	`, shard.Key, shard.Table)
	if err != nil {
		return err
	}
	r.logger.Info(fmt.Sprintf("transaction shard %s ready", shard.Key))
	return nil
}

// ShardsForRange lists the partitions overlapping [start, end], newest
// first. Nil bounds widen the range to all known shards.
func (r *ShardRouter) ShardsForRange(ctx context.Context, start, end *time.Time) ([]Shard, error) {
	var shards []Shard
	err := r.db.SelectContext(ctx, &shards, `
		SELECT shard_key, table_name
		FROM transaction_shards
		ORDER BY shard_key DESC
	`)
	if err != nil {
		return nil, err
	}
	if start == nil && end == nil {
		return shards, nil
	}

	// YYYY-MM keys compare correctly as strings
	lower := ""
	upper := "9999-99"
	if start != nil {
		lower = MonthKey(*start)
	}
	if end != nil {
		upper = MonthKey(*end)
	}
	filtered := shards[:0]
	for _, s := range shards {
		if s.Key >= lower && s.Key <= upper {
			filtered = append(filtered, s)
		}
	}
	return filtered, nil
}

// ShardByKey resolves a known partition by its month key, failing with a
// ShardResolutionError when it does not exist.
func (r *ShardRouter) ShardByKey(ctx context.Context, key string) (Shard, error) {
	var shard Shard
	err := r.db.GetContext(ctx, &shard, `
		SELECT shard_key, table_name
		FROM transaction_shards
		WHERE shard_key = $1
	`, key)
	if errors.Is(err, sql.ErrNoRows) {
		return Shard{}, &ShardResolutionError{Key: key}
	}
	if err != nil {
		return Shard{}, err
	}
	return shard, nil
}
