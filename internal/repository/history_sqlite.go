package repository

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"sync"
	"time"

	"lotorder-engine/internal/model"

	_ "modernc.org/sqlite" // Pure Go SQLite driver - no CGO required
)

// dateFormat is the day-granular storage format for order dates.
const dateFormat = "2006-01-02"

// SQLiteHistoryStore implements HistoryStore on a single unified table with
// the dealership as a key column. Thread-safe with WAL mode.
type SQLiteHistoryStore struct {
	db *sql.DB
	mu sync.RWMutex
}

// NewSQLiteHistoryStore opens (creating if needed) the unified history table.
// dbPath is the path to the SQLite database file (e.g., "./data/history.db").
func NewSQLiteHistoryStore(dbPath string) (*SQLiteHistoryStore, error) {
	dsn := fmt.Sprintf("%s?_journal_mode=WAL&_synchronous=NORMAL&_cache_size=10000&_busy_timeout=5000", dbPath)

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open SQLite: %w", err)
	}

	// SQLite only supports 1 writer
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if err := createHistoryTable(db); err != nil {
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}

	log.Printf("[SQLiteHistoryStore] Initialized with database: %s", dbPath)
	return &SQLiteHistoryStore{db: db}, nil
}

func createHistoryTable(db *sql.DB) error {
	query := `
	CREATE TABLE IF NOT EXISTS vin_history (
		dealership_id INTEGER NOT NULL,
		vin TEXT NOT NULL,
		order_date TEXT NOT NULL,
		vehicle_type TEXT NOT NULL DEFAULT '',
		created_at TEXT NOT NULL DEFAULT (datetime('now')),
		PRIMARY KEY (dealership_id, vin, order_date)
	);
	CREATE INDEX IF NOT EXISTS idx_vin_history_dealer_vin ON vin_history(dealership_id, vin);
	CREATE INDEX IF NOT EXISTS idx_vin_history_order_date ON vin_history(order_date);
	`
	_, err := db.Exec(query)
	return err
}

// RecordSeen performs an idempotent upsert keyed by (dealership, vin, date).
func (s *SQLiteHistoryStore) RecordSeen(ctx context.Context, dealershipID int64, vin string, orderDate time.Time, vehicleType string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	query := `
		INSERT INTO vin_history (dealership_id, vin, order_date, vehicle_type)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(dealership_id, vin, order_date) DO UPDATE SET
			vehicle_type = excluded.vehicle_type`

	_, err := s.db.ExecContext(ctx, query, dealershipID, vin, model.DateOnly(orderDate).Format(dateFormat), vehicleType)
	if err != nil {
		return fmt.Errorf("failed to record vin %s: %w", vin, err)
	}
	return nil
}

// HasBeenOrdered reports whether the VIN appears in the dealership's history
// within the lookback window. Zero lookback means "ever".
func (s *SQLiteHistoryStore) HasBeenOrdered(ctx context.Context, dealershipID int64, vin string, lookback time.Duration) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query := `SELECT COUNT(*) FROM vin_history WHERE dealership_id = ? AND vin = ?`
	args := []interface{}{dealershipID, vin}

	if lookback > 0 {
		cutoff := model.DateOnly(time.Now().Add(-lookback)).Format(dateFormat)
		query += ` AND order_date >= ?`
		args = append(args, cutoff)
	}

	var count int64
	if err := s.db.QueryRowContext(ctx, query, args...).Scan(&count); err != nil {
		return false, fmt.Errorf("failed to query history for vin %s: %w", vin, err)
	}
	return count > 0, nil
}

// BulkRecordSeen upserts all entries in one transaction. Either every entry
// for the order is recorded or none persists.
func (s *SQLiteHistoryStore) BulkRecordSeen(ctx context.Context, entries []model.HistoryEntry) (int, error) {
	if len(entries) == 0 {
		return 0, nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO vin_history (dealership_id, vin, order_date, vehicle_type)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(dealership_id, vin, order_date) DO UPDATE SET
			vehicle_type = excluded.vehicle_type`)
	if err != nil {
		return 0, fmt.Errorf("failed to prepare statement: %w", err)
	}
	defer stmt.Close()

	for _, e := range entries {
		_, err := stmt.ExecContext(ctx, e.DealershipID, e.VIN, model.DateOnly(e.OrderDate).Format(dateFormat), e.VehicleType)
		if err != nil {
			return 0, fmt.Errorf("failed to bulk record vin %s: %w", e.VIN, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit transaction: %w", err)
	}
	return len(entries), nil
}

// CountEntries returns the total number of history rows.
func (s *SQLiteHistoryStore) CountEntries(ctx context.Context) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var count int64
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM vin_history`).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count history entries: %w", err)
	}
	return count, nil
}

// CountByDealership returns row counts keyed by dealership ID.
func (s *SQLiteHistoryStore) CountByDealership(ctx context.Context) (map[int64]int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

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
func (s *SQLiteHistoryStore) ListDealershipIDs(ctx context.Context) ([]int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

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
func (s *SQLiteHistoryStore) EntriesForDealership(ctx context.Context, dealershipID int64) ([]model.HistoryEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

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
			dateStr          string
		)
		if err := rows.Scan(&vin, &dateStr, &vehicleType); err != nil {
			return nil, err
		}
		orderDate, err := time.Parse(dateFormat, dateStr)
		if err != nil {
			return nil, fmt.Errorf("malformed order_date %q for vin %s: %w", dateStr, vin, err)
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

// GetStats returns statistics about the history database.
func (s *SQLiteHistoryStore) GetStats(ctx context.Context) (map[string]interface{}, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stats := make(map[string]interface{})
	stats["layout"] = "unified"

	var count int64
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM vin_history").Scan(&count); err != nil {
		return nil, err
	}
	stats["total_entries"] = count

	var dealerships int64
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(DISTINCT dealership_id) FROM vin_history").Scan(&dealerships); err == nil {
		stats["dealerships"] = dealerships
	}

	var lastDate sql.NullString
	if err := s.db.QueryRowContext(ctx, "SELECT MAX(order_date) FROM vin_history").Scan(&lastDate); err == nil && lastDate.Valid {
		stats["last_order_date"] = lastDate.String
	}

	var pageCount, pageSize int64
	s.db.QueryRowContext(ctx, "PRAGMA page_count").Scan(&pageCount)
	s.db.QueryRowContext(ctx, "PRAGMA page_size").Scan(&pageSize)
	stats["db_size_bytes"] = pageCount * pageSize

	return stats, nil
}

// Close closes the database connection.
func (s *SQLiteHistoryStore) Close() error {
	return s.db.Close()
}

// Ensure SQLiteHistoryStore implements HistoryStore
var _ HistoryStore = (*SQLiteHistoryStore)(nil)
