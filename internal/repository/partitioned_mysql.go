package repository

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"time"

	"lotorder-engine/internal/model"
)

// PartitionedMySQLHistoryStore implements HistoryStore with one MySQL table
// per dealership. This is the production layout the dealership network runs;
// table names come exclusively from the PartitionRegistry.
type PartitionedMySQLHistoryStore struct {
	db       *sql.DB
	registry *PartitionRegistry
}

// NewPartitionedMySQLHistoryStore ensures one history table exists per
// registered dealership. The *sql.DB is owned by the caller.
func NewPartitionedMySQLHistoryStore(db *sql.DB, registry *PartitionRegistry) (*PartitionedMySQLHistoryStore, error) {
	s := &PartitionedMySQLHistoryStore{db: db, registry: registry}
	for _, id := range registry.DealershipIDs() {
		table, _ := registry.TableFor(id)
		query := fmt.Sprintf(`
			CREATE TABLE IF NOT EXISTS %s (
				vin VARCHAR(17) NOT NULL,
				order_date DATE NOT NULL,
				vehicle_type VARCHAR(32) NOT NULL DEFAULT '',
				created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
				PRIMARY KEY (vin, order_date)
			)`, table)
		if _, err := db.Exec(query); err != nil {
			return nil, fmt.Errorf("failed to create table %s: %w", table, err)
		}
	}

	log.Printf("[PartitionedMySQLHistoryStore] Initialized with %d dealership tables", registry.Len())
	return s, nil
}

func (s *PartitionedMySQLHistoryStore) tableFor(dealershipID int64) (string, error) {
	table, ok := s.registry.TableFor(dealershipID)
	if !ok {
		return "", fmt.Errorf("dealership %d has no registered history table", dealershipID)
	}
	return table, nil
}

// RecordSeen performs an idempotent upsert into the dealership's table.
func (s *PartitionedMySQLHistoryStore) RecordSeen(ctx context.Context, dealershipID int64, vin string, orderDate time.Time, vehicleType string) error {
	table, err := s.tableFor(dealershipID)
	if err != nil {
		return err
	}

	query := fmt.Sprintf(`
		INSERT INTO %s (vin, order_date, vehicle_type)
		VALUES (?, ?, ?)
		ON DUPLICATE KEY UPDATE vehicle_type = VALUES(vehicle_type)`, table)

	if _, err := s.db.ExecContext(ctx, query, vin, model.DateOnly(orderDate).Format(dateFormat), vehicleType); err != nil {
		return fmt.Errorf("failed to record vin %s in %s: %w", vin, table, err)
	}
	return nil
}

// HasBeenOrdered checks the dealership's table within the lookback window.
func (s *PartitionedMySQLHistoryStore) HasBeenOrdered(ctx context.Context, dealershipID int64, vin string, lookback time.Duration) (bool, error) {
	table, err := s.tableFor(dealershipID)
	if err != nil {
		return false, err
	}

	query := fmt.Sprintf(`SELECT COUNT(*) FROM %s WHERE vin = ?`, table)
	args := []interface{}{vin}
	if lookback > 0 {
		query += ` AND order_date >= ?`
		args = append(args, model.DateOnly(time.Now().Add(-lookback)).Format(dateFormat))
	}

	var count int64
	if err := s.db.QueryRowContext(ctx, query, args...).Scan(&count); err != nil {
		return false, fmt.Errorf("failed to query %s for vin %s: %w", table, vin, err)
	}
	return count > 0, nil
}

// BulkRecordSeen upserts all entries in one transaction. Every entry's
// dealership resolves through the registry before any write happens.
func (s *PartitionedMySQLHistoryStore) BulkRecordSeen(ctx context.Context, entries []model.HistoryEntry) (int, error) {
	if len(entries) == 0 {
		return 0, nil
	}

	tables := make([]string, len(entries))
	for i, e := range entries {
		table, err := s.tableFor(e.DealershipID)
		if err != nil {
			return 0, err
		}
		tables[i] = table
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	for i, e := range entries {
		query := fmt.Sprintf(`
			INSERT INTO %s (vin, order_date, vehicle_type)
			VALUES (?, ?, ?)
			ON DUPLICATE KEY UPDATE vehicle_type = VALUES(vehicle_type)`, tables[i])
		if _, err := tx.ExecContext(ctx, query, e.VIN, model.DateOnly(e.OrderDate).Format(dateFormat), e.VehicleType); err != nil {
			return 0, fmt.Errorf("failed to bulk record vin %s: %w", e.VIN, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit transaction: %w", err)
	}
	return len(entries), nil
}

// CountEntries sums rows across every dealership table.
func (s *PartitionedMySQLHistoryStore) CountEntries(ctx context.Context) (int64, error) {
	counts, err := s.CountByDealership(ctx)
	if err != nil {
		return 0, err
	}
	var total int64
	for _, c := range counts {
		total += c
	}
	return total, nil
}

// CountByDealership returns per-table row counts.
func (s *PartitionedMySQLHistoryStore) CountByDealership(ctx context.Context) (map[int64]int64, error) {
	counts := make(map[int64]int64, s.registry.Len())
	for _, id := range s.registry.DealershipIDs() {
		table, _ := s.registry.TableFor(id)
		var count int64
		if err := s.db.QueryRowContext(ctx, fmt.Sprintf(`SELECT COUNT(*) FROM %s`, table)).Scan(&count); err != nil {
			return nil, fmt.Errorf("failed to count %s: %w", table, err)
		}
		counts[id] = count
	}
	return counts, nil
}

// ListDealershipIDs returns registered dealerships with history rows.
func (s *PartitionedMySQLHistoryStore) ListDealershipIDs(ctx context.Context) ([]int64, error) {
	counts, err := s.CountByDealership(ctx)
	if err != nil {
		return nil, err
	}
	var ids []int64
	for id, count := range counts {
		if count > 0 {
			ids = append(ids, id)
		}
	}
	return ids, nil
}

// EntriesForDealership returns all rows from one dealership's table.
func (s *PartitionedMySQLHistoryStore) EntriesForDealership(ctx context.Context, dealershipID int64) ([]model.HistoryEntry, error) {
	table, err := s.tableFor(dealershipID)
	if err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx,
		fmt.Sprintf(`SELECT vin, order_date, vehicle_type FROM %s ORDER BY order_date, vin`, table))
	if err != nil {
		return nil, fmt.Errorf("failed to load entries from %s: %w", table, err)
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

// GetStats returns statistics about the partitioned layout.
func (s *PartitionedMySQLHistoryStore) GetStats(ctx context.Context) (map[string]interface{}, error) {
	counts, err := s.CountByDealership(ctx)
	if err != nil {
		return nil, err
	}
	var total int64
	for _, c := range counts {
		total += c
	}

	return map[string]interface{}{
		"layout":        "partitioned",
		"total_entries": total,
		"tables":        s.registry.Len(),
	}, nil
}

// Close is a no-op: the MySQL pool is owned by the caller.
func (s *PartitionedMySQLHistoryStore) Close() error {
	return nil
}

// Ensure PartitionedMySQLHistoryStore implements HistoryStore
var _ HistoryStore = (*PartitionedMySQLHistoryStore)(nil)
