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

func newTestPartitionedStore(t *testing.T) *PartitionedSQLiteHistoryStore {
	t.Helper()
	reg, err := NewPartitionRegistry([]model.DealershipConfig{
		{ID: 5, Name: "Smith Honda"},
		{ID: 6, Name: "Valley Toyota"},
	}, nil)
	require.NoError(t, err)

	store, err := NewPartitionedSQLiteHistoryStore(filepath.Join(t.TempDir(), "partitioned.db"), reg)
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func TestPartitionedSQLiteHistoryStore_RoundTrip(t *testing.T) {
	store := newTestPartitionedStore(t)
	ctx := context.Background()
	date := time.Date(2026, 8, 20, 0, 0, 0, 0, time.UTC)

	require.NoError(t, store.RecordSeen(ctx, 5, "1HGCM82633A004352", date, "used"))
	require.NoError(t, store.RecordSeen(ctx, 6, "1HGCM82633A004352", date, "used"))

	// Same VIN in two partitions: histories are fully isolated.
	ordered, err := store.HasBeenOrdered(ctx, 5, "1HGCM82633A004352", 0)
	require.NoError(t, err)
	assert.True(t, ordered)

	counts, err := store.CountByDealership(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), counts[5])
	assert.Equal(t, int64(1), counts[6])

	entries, err := store.EntriesForDealership(ctx, 5)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, int64(5), entries[0].DealershipID)
	assert.Equal(t, date, entries[0].OrderDate)
}

func TestPartitionedSQLiteHistoryStore_UnregisteredDealershipFails(t *testing.T) {
	store := newTestPartitionedStore(t)
	ctx := context.Background()

	err := store.RecordSeen(ctx, 99, "1HGCM82633A004352", time.Now(), "used")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no registered history table")

	_, err = store.HasBeenOrdered(ctx, 99, "1HGCM82633A004352", 0)
	assert.Error(t, err)

	// A bulk write touching any unregistered dealership writes nothing.
	_, err = store.BulkRecordSeen(ctx, []model.HistoryEntry{
		{DealershipID: 5, VIN: "WBA3A5C58DF123456", OrderDate: time.Now()},
		{DealershipID: 99, VIN: "JH4KA7561PC008269", OrderDate: time.Now()},
	})
	require.Error(t, err)

	total, err := store.CountEntries(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(0), total)
}

func TestPartitionedSQLiteHistoryStore_BulkIdempotent(t *testing.T) {
	store := newTestPartitionedStore(t)
	ctx := context.Background()
	date := time.Date(2026, 8, 20, 0, 0, 0, 0, time.UTC)

	entries := []model.HistoryEntry{
		{DealershipID: 5, VIN: "1HGCM82633A004352", OrderDate: date, VehicleType: "used"},
		{DealershipID: 5, VIN: "WBA3A5C58DF123456", OrderDate: date, VehicleType: "new"},
		{DealershipID: 6, VIN: "JH4KA7561PC008269", OrderDate: date, VehicleType: "used"},
	}

	n, err := store.BulkRecordSeen(ctx, entries)
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	_, err = store.BulkRecordSeen(ctx, entries)
	require.NoError(t, err)

	total, err := store.CountEntries(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(3), total)
}

func TestPartitionedSQLiteHistoryStore_ListDealershipIDsOnlyNonEmpty(t *testing.T) {
	store := newTestPartitionedStore(t)
	ctx := context.Background()

	require.NoError(t, store.RecordSeen(ctx, 5, "1HGCM82633A004352", time.Now(), "used"))

	ids, err := store.ListDealershipIDs(ctx)
	require.NoError(t, err)
	assert.Equal(t, []int64{5}, ids)
}
