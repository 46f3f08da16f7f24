package repository

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"time"

	"lotorder-engine/internal/model"
)

// MySQLHistoryStore implements HistoryStore on a single unified MySQL table
// with the dealership as a key column. The *sql.DB is shared with the rest
// of the process and not closed by this store's Close.
type MySQLHistoryStore struct {
	db *sql.DB
}

// NewMySQLHistoryStore creates the unified history table if needed.
// The connection string must include parseTime=true.
func NewMySQLHistoryStore(db *sql.DB) (*MySQLHistoryStore, error) {
	query := `
	CREATE TABLE IF NOT EXISTS vin_history (
		dealership_id BIGINT NOT NULL,
		vin VARCHAR(17) NOT NULL,
		order_date DATE NOT NULL,
		vehicle_type VARCHAR(32) NOT NULL DEFAULT '',
		created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
		PRIMARY KEY (dealership_id, vin, order_date),
		INDEX idx_vin_history_dealer_vin (dealership_id, vin)
	)`
	if _, err := db.Exec(query); err != nil {
		return nil, fmt.Errorf("failed to create vin_history table: %w", err)
	}

	log.Printf("[MySQLHistoryStore] Initialized (unified layout)")
	return &MySQLHistoryStore{db: db}, nil
}

// RecordSeen performs an idempotent upsert keyed by (dealership, vin, date).
func (s *MySQLHistoryStore) RecordSeen(ctx context.Context, dealershipID int64, vin string, orderDate time.Time, vehicleType string) error {
	query := `
		INSERT INTO vin_history (dealership_id, vin, order_date, vehicle_type)
		VALUES (?, ?, ?, ?)
		ON DUPLICATE KEY UPDATE vehicle_type = VALUES(vehicle_type)`

	_, err := s.db.ExecContext(ctx, query, dealershipID, vin, model.DateOnly(orderDate).Format(dateFormat), vehicleType)
	if err != nil {
		return fmt.Errorf("failed to record vin %s: %w", vin, err)
	}
	return nil
}

// HasBeenOrdered reports whether the VIN appears within the lookback window.
func (s *MySQLHistoryStore) HasBeenOrdered(ctx context.Context, dealershipID int64, vin string, lookback time.Duration) (bool, error) {
	query := `SELECT COUNT(*) FROM vin_history WHERE dealership_id = ? AND vin = ?`
	args := []interface{}{dealershipID, vin}
	if lookback > 0 {
		query += ` AND order_date >= ?`
		args = append(args, model.DateOnly(time.Now().Add(-lookback)).Format(dateFormat))
	}

	var count int64
	if err := s.db.QueryRowContext(ctx, query, args...).Scan(&count); err != nil {
		return false, fmt.Errorf("failed to query history for vin %s: %w", vin, err)
	}
	return count > 0, nil
}

// BulkRecordSeen upserts all entries in one transaction.
func (s *MySQLHistoryStore) BulkRecordSeen(ctx context.Context, entries []model.HistoryEntry) (int, error) {
	if len(entries) == 0 {
		return 0, nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO vin_history (dealership_id, vin, order_date, vehicle_type)
		VALUES (?, ?, ?, ?)
		ON DUPLICATE KEY UPDATE vehicle_type = VALUES(vehicle_type)`)
	if err != nil {
		return 0, fmt.Errorf("failed to prepare statement: %w", err)
	}
	defer stmt.Close()

	for _, e := range entries {
		if _, err := stmt.ExecContext(ctx, e.DealershipID, e.VIN, model.DateOnly(e.OrderDate).Format(dateFormat), e.VehicleType); err != nil {
			return 0, fmt.Errorf("failed to bulk record vin %s: %w", e.VIN, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit transaction: %w", err)
	}
	return len(entries), nil
}

// CountEntries returns the total number of history rows.
func (s *MySQLHistoryStore) CountEntries(ctx context.Context) (int64, error) {
	var count int64
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM vin_history`).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count history entries: %w", err)
	}
	return count, nil
}

// CountByDealership returns row counts keyed by dealership ID.
func (s *MySQLHistoryStore) CountByDealership(ctx context.Context) (map[int64]int64, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT dealership_id, COUNT(*) FROM vin_history GROUP BY dealership_id`)
	if err != nil {
		return nil, fmt.Errorf("failed to count by dealership: %w", err)
	}
	defer rows.Close()

	counts := make(map[int64]int64)
	for rows.Next() {
		var id, count int64
		if err := rows.Scan(&id, &count); err != nil {
			return nil, err
		}
		counts[id] = count
	}
	return counts, rows.Err()
}

// ListDealershipIDs returns every dealership with at least one entry.
func (s *MySQLHistoryStore) ListDealershipIDs(ctx context.Context) ([]int64, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT DISTINCT dealership_id FROM vin_history ORDER BY dealership_id`)
	if err != nil {
		return nil, fmt.Errorf("failed to list dealership ids: %w", err)
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// EntriesForDealership returns all history rows for one dealership.
func (s *MySQLHistoryStore) EntriesForDealership(ctx context.Context, dealershipID int64) ([]model.HistoryEntry, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT vin, order_date, vehicle_type FROM vin_history WHERE dealership_id = ? ORDER BY order_date, vin`,
		dealershipID)
	if err != nil {
		return nil, fmt.Errorf("failed to load entries for dealership %d: %w", dealershipID, err)
	}
	defer rows.Close()

	var entries []model.HistoryEntry
	for rows.Next() {
		var (
			vin, vehicleType string
			orderDate        time.Time
		)
		if err := rows.Scan(&vin, &orderDate, &vehicleType); err != nil {
			return nil, err
		}
		entries = append(entries, model.HistoryEntry{
			DealershipID: dealershipID,
			VIN:          vin,
			OrderDate:    model.DateOnly(orderDate),
			VehicleType:  vehicleType,
		})
	}
	return entries, rows.Err()
}

// GetStats returns statistics about the history database.
func (s *MySQLHistoryStore) GetStats(ctx context.Context) (map[string]interface{}, error) {
	stats := make(map[string]interface{})
	stats["layout"] = "unified"

	count, err := s.CountEntries(ctx)
	if err != nil {
		return nil, err
	}
	stats["total_entries"] = count

	var dealerships int64
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(DISTINCT dealership_id) FROM vin_history").Scan(&dealerships); err == nil {
		stats["dealerships"] = dealerships
	}

	return stats, nil
}

// Close is a no-op: the MySQL pool is owned by the caller.
func (s *MySQLHistoryStore) Close() error {
	return nil
}

// Ensure MySQLHistoryStore implements HistoryStore
var _ HistoryStore = (*MySQLHistoryStore)(nil)
