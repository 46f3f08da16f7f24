package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log"
	"sync"

	"lotorder-engine/internal/model"

	_ "modernc.org/sqlite"
)

// SQLiteDealershipRepository implements DealershipRepository using SQLite.
// Filter and output rules are stored as JSON documents; a malformed document
// degrades to "no constraint" with a logged warning instead of failing the
// job that loaded it.
type SQLiteDealershipRepository struct {
	db *sql.DB
	mu sync.RWMutex
}

// NewSQLiteDealershipRepository opens (creating if needed) the dealerships table.
func NewSQLiteDealershipRepository(dbPath string) (*SQLiteDealershipRepository, error) {
	dsn := fmt.Sprintf("%s?_journal_mode=WAL&_synchronous=NORMAL&_busy_timeout=5000", dbPath)

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open SQLite: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	query := `
	CREATE TABLE IF NOT EXISTS dealerships (
		id INTEGER PRIMARY KEY,
		name TEXT NOT NULL,
		is_active INTEGER NOT NULL DEFAULT 1,
		filter_rules TEXT NOT NULL DEFAULT '{}',
		output_rules TEXT NOT NULL DEFAULT '{}',
		qr_output_root TEXT NOT NULL DEFAULT '',
		lookback_days INTEGER NOT NULL DEFAULT 0
	)`
	if _, err := db.Exec(query); err != nil {
		return nil, fmt.Errorf("failed to create dealerships table: %w", err)
	}

	log.Printf("[SQLiteDealershipRepository] Initialized with database: %s", dbPath)
	return &SQLiteDealershipRepository{db: db}, nil
}

// GetByID loads one dealership's configuration.
func (r *SQLiteDealershipRepository) GetByID(ctx context.Context, id int64) (*model.DealershipConfig, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	row := r.db.QueryRowContext(ctx,
		`SELECT id, name, is_active, filter_rules, output_rules, qr_output_root, lookback_days
		 FROM dealerships WHERE id = ?`, id)

	cfg, err := scanDealership(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get dealership %d: %w", id, err)
	}
	return cfg, nil
}

// List returns every dealership, active or not.
func (r *SQLiteDealershipRepository) List(ctx context.Context) ([]model.DealershipConfig, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	rows, err := r.db.QueryContext(ctx,
		`SELECT id, name, is_active, filter_rules, output_rules, qr_output_root, lookback_days
		 FROM dealerships ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("failed to list dealerships: %w", err)
	}
	defer rows.Close()

	var configs []model.DealershipConfig
	for rows.Next() {
		cfg, err := scanDealership(rows)
		if err != nil {
			return nil, err
		}
		configs = append(configs, *cfg)
	}
	return configs, rows.Err()
}

// Upsert inserts or replaces a dealership's configuration.
func (r *SQLiteDealershipRepository) Upsert(ctx context.Context, cfg model.DealershipConfig) error {
	filterJSON, err := json.Marshal(cfg.FilterRules)
	if err != nil {
		return fmt.Errorf("failed to serialize filter rules: %w", err)
	}
	outputJSON, err := json.Marshal(cfg.OutputRules)
	if err != nil {
		return fmt.Errorf("failed to serialize output rules: %w", err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	query := `
		INSERT INTO dealerships (id, name, is_active, filter_rules, output_rules, qr_output_root, lookback_days)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			is_active = excluded.is_active,
			filter_rules = excluded.filter_rules,
			output_rules = excluded.output_rules,
			qr_output_root = excluded.qr_output_root,
			lookback_days = excluded.lookback_days`

	_, err = r.db.ExecContext(ctx, query,
		cfg.ID, cfg.Name, boolToInt(cfg.IsActive), string(filterJSON), string(outputJSON),
		cfg.QROutputRoot, cfg.LookbackDays)
	if err != nil {
		return fmt.Errorf("failed to upsert dealership %d: %w", cfg.ID, err)
	}
	return nil
}

// Close closes the database connection.
func (r *SQLiteDealershipRepository) Close() error {
	return r.db.Close()
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanDealership(row rowScanner) (*model.DealershipConfig, error) {
	var (
		cfg                    model.DealershipConfig
		isActive               int
		filterJSON, outputJSON string
	)
	err := row.Scan(&cfg.ID, &cfg.Name, &isActive, &filterJSON, &outputJSON, &cfg.QROutputRoot, &cfg.LookbackDays)
	if err != nil {
		return nil, err
	}
	cfg.IsActive = isActive != 0

	// Malformed rule documents degrade to no-constraint rather than failing
	// the job; the warning is the operator's cue to fix the config.
	if err := json.Unmarshal([]byte(filterJSON), &cfg.FilterRules); err != nil {
		log.Printf("[SQLiteDealershipRepository] Warning: dealership %d has malformed filter_rules, treating as unconstrained: %v", cfg.ID, err)
		cfg.FilterRules = model.FilterRules{}
	}
	if err := json.Unmarshal([]byte(outputJSON), &cfg.OutputRules); err != nil {
		log.Printf("[SQLiteDealershipRepository] Warning: dealership %d has malformed output_rules, using defaults: %v", cfg.ID, err)
		cfg.OutputRules = model.OutputRules{}
	}
	return &cfg, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

// Ensure SQLiteDealershipRepository implements DealershipRepository
var _ DealershipRepository = (*SQLiteDealershipRepository)(nil)
