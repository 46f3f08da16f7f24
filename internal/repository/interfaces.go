package repository

import (
	"context"
	"time"

	"lotorder-engine/internal/model"
)

// HistoryStore is the durable per-dealership record of every VIN ever
// included in an order. Both storage layouts (one unified table keyed by
// dealership, or one table per dealership) satisfy this same contract.
type HistoryStore interface {
	// RecordSeen performs an idempotent upsert keyed by
	// (dealershipID, vin, orderDate). Duplicates are expected (re-scrapes of
	// the same lot on the same day) and never error; on conflict only the
	// vehicle type is overwritten.
	RecordSeen(ctx context.Context, dealershipID int64, vin string, orderDate time.Time, vehicleType string) error

	// HasBeenOrdered reports whether any entry exists for the VIN+dealership
	// with an order date within [today - lookback, today]. A zero lookback
	// means "ever".
	HasBeenOrdered(ctx context.Context, dealershipID int64, vin string, lookback time.Duration) (bool, error)

	// BulkRecordSeen upserts all entries for one finalized order in a single
	// transaction: either every entry is recorded or the error is surfaced
	// and nothing persists.
	BulkRecordSeen(ctx context.Context, entries []model.HistoryEntry) (int, error)

	// CountEntries returns the total number of history rows.
	CountEntries(ctx context.Context) (int64, error)

	// CountByDealership returns row counts keyed by dealership ID.
	CountByDealership(ctx context.Context) (map[int64]int64, error)

	// ListDealershipIDs returns every dealership with at least one entry.
	ListDealershipIDs(ctx context.Context) ([]int64, error)

	// EntriesForDealership returns all history rows for one dealership.
	// Used by the migration coordinator to copy in dealership-sized batches.
	EntriesForDealership(ctx context.Context, dealershipID int64) ([]model.HistoryEntry, error)

	// GetStats returns statistics about the history database.
	GetStats(ctx context.Context) (map[string]interface{}, error)

	// Close closes the store's connection.
	Close() error
}

// DealershipRepository provides access to per-dealership configuration.
type DealershipRepository interface {
	// GetByID loads one dealership's configuration.
	GetByID(ctx context.Context, id int64) (*model.DealershipConfig, error)

	// List returns every dealership, active or not.
	List(ctx context.Context) ([]model.DealershipConfig, error)

	// Upsert inserts or replaces a dealership's configuration.
	Upsert(ctx context.Context, cfg model.DealershipConfig) error

	// Close closes the repository connection.
	Close() error
}
