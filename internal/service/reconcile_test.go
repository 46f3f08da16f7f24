package service

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"lotorder-engine/internal/model"
	"lotorder-engine/internal/repository"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	vinA = "1HGCM82633A004352"
	vinB = "WBA3A5C58DF123456"
	vinC = "JH4KA7561PC008269"
)

func newTestEngine(t *testing.T) (*ReconciliationEngine, repository.HistoryStore) {
	t.Helper()
	store, err := repository.NewSQLiteHistoryStore(filepath.Join(t.TempDir(), "history.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return NewReconciliationEngine(store), store
}

func testVehicle(vin string) model.VehicleRecord {
	return model.VehicleRecord{
		VIN:        vin,
		Make:       "Honda",
		Model:      "Accord",
		Year:       2022,
		Condition:  model.ConditionUsed,
		ObservedAt: time.Now().UTC(),
	}
}

func TestReconcile_NewVehiclesOnly(t *testing.T) {
	engine, store := newTestEngine(t)
	ctx := context.Background()
	cfg := model.DealershipConfig{ID: 5, IsActive: true}

	// History already holds A and B; the snapshot adds C.
	require.NoError(t, store.RecordSeen(ctx, 5, vinA, time.Now().UTC(), "used"))
	require.NoError(t, store.RecordSeen(ctx, 5, vinB, time.Now().UTC(), "used"))

	snapshot := []model.VehicleRecord{testVehicle(vinA), testVehicle(vinB), testVehicle(vinC)}

	outcome, err := engine.Reconcile(ctx, cfg, snapshot)
	require.NoError(t, err)

	require.Len(t, outcome.New, 1)
	assert.Equal(t, vinC, outcome.New[0].VIN)
	assert.Equal(t, 2, outcome.AlreadySeen)
	assert.Equal(t, 3, outcome.TotalScanned)
	assert.Zero(t, outcome.FilteredCount)
	assert.Zero(t, outcome.ErrorCount)
}

func TestReconcile_RerunAfterRecordingIsEmpty(t *testing.T) {
	engine, store := newTestEngine(t)
	ctx := context.Background()
	cfg := model.DealershipConfig{ID: 5, IsActive: true}

	snapshot := []model.VehicleRecord{testVehicle(vinA), testVehicle(vinB)}

	outcome, err := engine.Reconcile(ctx, cfg, snapshot)
	require.NoError(t, err)
	assert.Len(t, outcome.New, 2)

	for _, v := range outcome.New {
		require.NoError(t, store.RecordSeen(ctx, 5, v.VIN, time.Now().UTC(), "used"))
	}

	// An immediate rerun against identical inventory produces nothing new.
	outcome, err = engine.Reconcile(ctx, cfg, snapshot)
	require.NoError(t, err)
	assert.Empty(t, outcome.New)
	assert.Equal(t, 2, outcome.AlreadySeen)
}

func TestReconcile_MalformedVINsCountedAsErrors(t *testing.T) {
	engine, _ := newTestEngine(t)
	cfg := model.DealershipConfig{ID: 5, IsActive: true}

	snapshot := []model.VehicleRecord{
		testVehicle(vinA),
		testVehicle(""),
		testVehicle("AB1"),
		testVehicle("1HGCM82633"), // truncated: 10 of 17 characters
	}

	outcome, err := engine.Reconcile(context.Background(), cfg, snapshot)
	require.NoError(t, err)
	require.Len(t, outcome.New, 1)
	assert.Equal(t, vinA, outcome.New[0].VIN)
	assert.Equal(t, 3, outcome.ErrorCount)
}

func TestReconcile_DedupeLastObservationWins(t *testing.T) {
	engine, _ := newTestEngine(t)
	cfg := model.DealershipConfig{ID: 5, IsActive: true}

	older := testVehicle(vinA)
	older.Price = nil
	older.ObservedAt = time.Now().UTC().Add(-time.Hour)

	price := 21500.0
	newer := testVehicle(vinA)
	newer.Price = &price

	outcome, err := engine.Reconcile(context.Background(), cfg, []model.VehicleRecord{older, newer})
	require.NoError(t, err)
	require.Len(t, outcome.New, 1)
	require.NotNil(t, outcome.New[0].Price)
	assert.Equal(t, price, *outcome.New[0].Price)
}

func TestReconcile_FilterAppliedBeforeHistory(t *testing.T) {
	engine, _ := newTestEngine(t)
	cfg := model.DealershipConfig{
		ID:          5,
		IsActive:    true,
		FilterRules: model.FilterRules{ExcludeConditions: []model.Condition{model.ConditionNew}},
	}

	newCar := testVehicle(vinA)
	newCar.Condition = model.ConditionNew

	outcome, err := engine.Reconcile(context.Background(), cfg, []model.VehicleRecord{newCar, testVehicle(vinB)})
	require.NoError(t, err)
	require.Len(t, outcome.New, 1)
	assert.Equal(t, vinB, outcome.New[0].VIN)
	assert.Equal(t, 1, outcome.FilteredCount)
}

func TestReconcile_LookbackReopensOldVINs(t *testing.T) {
	engine, store := newTestEngine(t)
	ctx := context.Background()
	cfg := model.DealershipConfig{ID: 5, IsActive: true, LookbackDays: 30}

	// Ordered 90 days ago, outside the 30-day window.
	require.NoError(t, store.RecordSeen(ctx, 5, vinA, time.Now().UTC().AddDate(0, 0, -90), "used"))

	outcome, err := engine.Reconcile(ctx, cfg, []model.VehicleRecord{testVehicle(vinA)})
	require.NoError(t, err)
	assert.Len(t, outcome.New, 1)

	// With no lookback configured the old order still blocks it.
	cfg.LookbackDays = 0
	outcome, err = engine.Reconcile(ctx, cfg, []model.VehicleRecord{testVehicle(vinA)})
	require.NoError(t, err)
	assert.Empty(t, outcome.New)
	assert.Equal(t, 1, outcome.AlreadySeen)
}
