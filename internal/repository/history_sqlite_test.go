package repository

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"lotorder-engine/internal/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestHistoryStore(t *testing.T) *SQLiteHistoryStore {
	t.Helper()
	store, err := NewSQLiteHistoryStore(filepath.Join(t.TempDir(), "history.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func TestSQLiteHistoryStore_RecordSeenIdempotent(t *testing.T) {
	store := newTestHistoryStore(t)
	ctx := context.Background()
	date := time.Date(2026, 8, 20, 14, 30, 0, 0, time.UTC)

	require.NoError(t, store.RecordSeen(ctx, 5, "1HGCM82633A004352", date, "used"))

	// Same (dealership, vin, date) again, even at a different time of day.
	require.NoError(t, store.RecordSeen(ctx, 5, "1HGCM82633A004352", date.Add(6*time.Hour), "used"))

	count, err := store.CountEntries(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)
}

func TestSQLiteHistoryStore_HasBeenOrdered(t *testing.T) {
	store := newTestHistoryStore(t)
	ctx := context.Background()

	require.NoError(t, store.RecordSeen(ctx, 5, "1HGCM82633A004352", time.Now().UTC(), "used"))

	ordered, err := store.HasBeenOrdered(ctx, 5, "1HGCM82633A004352", 0)
	require.NoError(t, err)
	assert.True(t, ordered)

	// Same VIN, different dealership: histories are independent.
	ordered, err = store.HasBeenOrdered(ctx, 6, "1HGCM82633A004352", 0)
	require.NoError(t, err)
	assert.False(t, ordered)

	ordered, err = store.HasBeenOrdered(ctx, 5, "ZZZZZ82633A004352", 0)
	require.NoError(t, err)
	assert.False(t, ordered)
}

func TestSQLiteHistoryStore_LookbackWindow(t *testing.T) {
	store := newTestHistoryStore(t)
	ctx := context.Background()

	old := time.Now().UTC().AddDate(0, 0, -90)
	require.NoError(t, store.RecordSeen(ctx, 5, "1HGCM82633A004352", old, "used"))

	// Inside a 30-day window the old entry is invisible.
	ordered, err := store.HasBeenOrdered(ctx, 5, "1HGCM82633A004352", 30*24*time.Hour)
	require.NoError(t, err)
	assert.False(t, ordered)

	// A wide enough window sees it.
	ordered, err = store.HasBeenOrdered(ctx, 5, "1HGCM82633A004352", 120*24*time.Hour)
	require.NoError(t, err)
	assert.True(t, ordered)

	// Zero lookback means "ever".
	ordered, err = store.HasBeenOrdered(ctx, 5, "1HGCM82633A004352", 0)
	require.NoError(t, err)
	assert.True(t, ordered)
}

func TestSQLiteHistoryStore_BulkRecordSeen(t *testing.T) {
	store := newTestHistoryStore(t)
	ctx := context.Background()
	date := time.Date(2026, 8, 20, 0, 0, 0, 0, time.UTC)

	entries := []model.HistoryEntry{
		{DealershipID: 5, VIN: "1HGCM82633A004352", OrderDate: date, VehicleType: "used"},
		{DealershipID: 5, VIN: "WBA3A5C58DF123456", OrderDate: date, VehicleType: "new"},
		{DealershipID: 6, VIN: "1HGCM82633A004352", OrderDate: date, VehicleType: "used"},
	}

	n, err := store.BulkRecordSeen(ctx, entries)
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	counts, err := store.CountByDealership(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), counts[5])
	assert.Equal(t, int64(1), counts[6])

	// Re-running the same bulk write changes nothing.
	_, err = store.BulkRecordSeen(ctx, entries)
	require.NoError(t, err)
	total, err := store.CountEntries(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(3), total)
}

func TestSQLiteHistoryStore_EntriesForDealership(t *testing.T) {
	store := newTestHistoryStore(t)
	ctx := context.Background()
	date := time.Date(2026, 8, 20, 0, 0, 0, 0, time.UTC)

	require.NoError(t, store.RecordSeen(ctx, 5, "WBA3A5C58DF123456", date, "new"))
	require.NoError(t, store.RecordSeen(ctx, 5, "1HGCM82633A004352", date, "used"))
	require.NoError(t, store.RecordSeen(ctx, 6, "JH4KA7561PC008269", date, "used"))

	entries, err := store.EntriesForDealership(ctx, 5)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "1HGCM82633A004352", entries[0].VIN)
	assert.Equal(t, date, entries[0].OrderDate)
	assert.Equal(t, "used", entries[0].VehicleType)

	ids, err := store.ListDealershipIDs(ctx)
	require.NoError(t, err)
	assert.Equal(t, []int64{5, 6}, ids)
}
