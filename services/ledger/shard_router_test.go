package ledger

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestMonthKeyUsesUTCMonth(t *testing.T) {
	cases := []struct {
		name string
		in   time.Time
		want string
	}{
		{
			name: "plain utc",
			in:   time.Date(2026, time.August, 15, 10, 30, 0, 0, time.UTC),
			want: "2026-08",
		},
		{
			name: "first instant of month",
			in:   time.Date(2026, time.March, 1, 0, 0, 0, 0, time.UTC),
			want: "2026-03",
		},
		{
			name: "last instant of month",
			in:   time.Date(2026, time.February, 28, 23, 59, 59, 0, time.UTC),
			want: "2026-02",
		},
		{
			name: "eastern zone rolls into next utc month",
			in:   time.Date(2026, time.September, 1, 2, 0, 0, 0, time.FixedZone("EAT", 3*3600)),
			want: "2026-08",
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			require.Equal(t, tc.want, MonthKey(tc.in))
		})
	}
}

func TestTableForKey(t *testing.T) {
	require.Equal(t, "ledger_transactions_2026_08", tableForKey("2026-08"))
	require.Equal(t, "ledger_transactions_2025_12", tableForKey("2025-12"))
}

func TestMonthKeysInRange(t *testing.T) {
	t.Run("span crossing a month boundary", func(t *testing.T) {
		start := time.Date(2026, time.January, 28, 0, 0, 0, 0, time.UTC)
		end := time.Date(2026, time.February, 3, 0, 0, 0, 0, time.UTC)
		require.Equal(t, []string{"2026-01", "2026-02"}, MonthKeysInRange(start, end))
	})

	t.Run("single month", func(t *testing.T) {
		start := time.Date(2026, time.August, 1, 0, 0, 0, 0, time.UTC)
		end := time.Date(2026, time.August, 31, 0, 0, 0, 0, time.UTC)
		require.Equal(t, []string{"2026-08"}, MonthKeysInRange(start, end))
	})

	t.Run("crossing a year boundary", func(t *testing.T) {
		start := time.Date(2025, time.November, 15, 0, 0, 0, 0, time.UTC)
		end := time.Date(2026, time.February, 1, 0, 0, 0, 0, time.UTC)
		require.Equal(t, []string{"2025-11", "2025-12", "2026-01", "2026-02"}, MonthKeysInRange(start, end))
	})

	t.Run("inverted range is empty", func(t *testing.T) {
		start := time.Date(2026, time.March, 1, 0, 0, 0, 0, time.UTC)
		end := time.Date(2026, time.February, 1, 0, 0, 0, 0, time.UTC)
		require.Nil(t, MonthKeysInRange(start, end))
	})
}

func TestShardKeysOrderLexically(t *testing.T) {
	// range filtering in ShardsForRange relies on string comparison of
	// YYYY-MM keys matching chronological order
	keys := MonthKeysInRange(
		time.Date(2025, time.September, 1, 0, 0, 0, 0, time.UTC),
		time.Date(2026, time.March, 1, 0, 0, 0, 0, time.UTC),
	)
	for i := 1; i < len(keys); i++ {
		require.Less(t, keys[i-1], keys[i])
	}
}
