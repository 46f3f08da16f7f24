package repository

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"sync"
	"time"

	"lotorder-engine/internal/model"

	_ "modernc.org/sqlite"
)

// PartitionedSQLiteHistoryStore implements HistoryStore with one table per
// dealership. Table names come exclusively from the PartitionRegistry built
// at startup; an unregistered dealership is an error, never an implicit
// CREATE TABLE from a slugged name.
type PartitionedSQLiteHistoryStore struct {
	db       *sql.DB
	registry *PartitionRegistry
	mu       sync.RWMutex
}

// NewPartitionedSQLiteHistoryStore opens the database and ensures one
// history table exists per registered dealership.
func NewPartitionedSQLiteHistoryStore(dbPath string, registry *PartitionRegistry) (*PartitionedSQLiteHistoryStore, error) {
	dsn := fmt.Sprintf("%s?_journal_mode=WAL&_synchronous=NORMAL&_cache_size=10000&_busy_timeout=5000", dbPath)

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open SQLite: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	s := &PartitionedSQLiteHistoryStore{db: db, registry: registry}
	if err := s.ensureTables(); err != nil {
		db.Close()
		return nil, err
	}

	log.Printf("[PartitionedSQLiteHistoryStore] Initialized with %d dealership tables: %s",
		registry.Len(), dbPath)
	return s, nil
}

func (s *PartitionedSQLiteHistoryStore) ensureTables() error {
	for _, id := range s.registry.DealershipIDs() {
		table, _ := s.registry.TableFor(id)
		query := fmt.Sprintf(`
			CREATE TABLE IF NOT EXISTS %s (
				vin TEXT NOT NULL,
				order_date TEXT NOT NULL,
				vehicle_type TEXT NOT NULL DEFAULT '',
				created_at TEXT NOT NULL DEFAULT (datetime('now')),
				PRIMARY KEY (vin, order_date)
			)`, table)
		if _, err := s.db.Exec(query); err != nil {
			return fmt.Errorf("failed to create table %s: %w", table, err)
		}
	}
	return nil
}

func (s *PartitionedSQLiteHistoryStore) tableFor(dealershipID int64) (string, error) {
	table, ok := s.registry.TableFor(dealershipID)
	if !ok {
		return "", fmt.Errorf("dealership %d has no registered history table", dealershipID)
	}
	return table, nil
}

// RecordSeen performs an idempotent upsert into the dealership's table.
func (s *PartitionedSQLiteHistoryStore) RecordSeen(ctx context.Context, dealershipID int64, vin string, orderDate time.Time, vehicleType string) error {
	table, err := s.tableFor(dealershipID)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	query := fmt.Sprintf(`
		INSERT INTO %s (vin, order_date, vehicle_type)
		VALUES (?, ?, ?)
		ON CONFLICT(vin, order_date) DO UPDATE SET
			vehicle_type = excluded.vehicle_type`, table)

	if _, err := s.db.ExecContext(ctx, query, vin, model.DateOnly(orderDate).Format(dateFormat), vehicleType); err != nil {
		return fmt.Errorf("failed to record vin %s in %s: %w", vin, table, err)
	}
	return nil
}

// HasBeenOrdered checks the dealership's table within the lookback window.
func (s *PartitionedSQLiteHistoryStore) HasBeenOrdered(ctx context.Context, dealershipID int64, vin string, lookback time.Duration) (bool, error) {
	table, err := s.tableFor(dealershipID)
	if err != nil {
		return false, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	query := fmt.Sprintf(`SELECT COUNT(*) FROM %s WHERE vin = ?`, table)
	args := []interface{}{vin}
	if lookback > 0 {
		cutoff := model.DateOnly(time.Now().Add(-lookback)).Format(dateFormat)
		query += ` AND order_date >= ?`
		args = append(args, cutoff)
	}

	var count int64
	if err := s.db.QueryRowContext(ctx, query, args...).Scan(&count); err != nil {
		return false, fmt.Errorf("failed to query %s for vin %s: %w", table, vin, err)
	}
	return count > 0, nil
}

// BulkRecordSeen upserts all entries in one transaction. Entries may span
// dealerships; each resolves through the registry before any write happens.
func (s *PartitionedSQLiteHistoryStore) BulkRecordSeen(ctx context.Context, entries []model.HistoryEntry) (int, error) {
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

	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	for i, e := range entries {
		query := fmt.Sprintf(`
			INSERT INTO %s (vin, order_date, vehicle_type)
			VALUES (?, ?, ?)
			ON CONFLICT(vin, order_date) DO UPDATE SET
				vehicle_type = excluded.vehicle_type`, tables[i])
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
func (s *PartitionedSQLiteHistoryStore) CountEntries(ctx context.Context) (int64, error) {
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
func (s *PartitionedSQLiteHistoryStore) CountByDealership(ctx context.Context) (map[int64]int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

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

// ListDealershipIDs returns registered dealerships that have history rows.
func (s *PartitionedSQLiteHistoryStore) ListDealershipIDs(ctx context.Context) ([]int64, error) {
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
func (s *PartitionedSQLiteHistoryStore) EntriesForDealership(ctx context.Context, dealershipID int64) ([]model.HistoryEntry, error) {
	table, err := s.tableFor(dealershipID)
	if err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx,
		fmt.Sprintf(`SELECT vin, order_date, vehicle_type FROM %s ORDER BY order_date, vin`, table))
	if err != nil {
		return nil, fmt.Errorf("failed to load entries from %s: %w", table, err)
	}
	defer rows.Close()

	var entries []model.HistoryEntry
	for rows.Next() {
		var vin, dateStr, vehicleType string
		if err := rows.Scan(&vin, &dateStr, &vehicleType); err != nil {
			return nil, err
		}
		orderDate, err := time.Parse(dateFormat, dateStr)
		if err != nil {
			return nil, fmt.Errorf("malformed order_date %q in %s: %w", dateStr, table, err)
		}
		entries = append(entries, model.HistoryEntry{
			DealershipID: dealershipID,
			VIN:          vin,
			OrderDate:    orderDate,
			VehicleType:  vehicleType,
		})
	}
	return entries, rows.Err()
}

// GetStats returns statistics about the partitioned layout.
func (s *PartitionedSQLiteHistoryStore) GetStats(ctx context.Context) (map[string]interface{}, error) {
	counts, err := s.CountByDealership(ctx)
	if err != nil {
		return nil, err
	}

	var total int64
	for _, c := range counts {
		total += c
	}

	stats := make(map[string]interface{})
	stats["layout"] = "partitioned"
	stats["total_entries"] = total
	stats["tables"] = s.registry.Len()

	s.mu.RLock()
	defer s.mu.RUnlock()
	var pageCount, pageSize int64
	s.db.QueryRowContext(ctx, "PRAGMA page_count").Scan(&pageCount)
	s.db.QueryRowContext(ctx, "PRAGMA page_size").Scan(&pageSize)
	stats["db_size_bytes"] = pageCount * pageSize

	return stats, nil
}

// Close closes the database connection.
func (s *PartitionedSQLiteHistoryStore) Close() error {
	return s.db.Close()
}

// Ensure PartitionedSQLiteHistoryStore implements HistoryStore
var _ HistoryStore = (*PartitionedSQLiteHistoryStore)(nil)
