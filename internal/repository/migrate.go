package repository

import (
	"context"
	"fmt"
	"log"
)

// MigrationState tracks where a unified-to-partitioned migration is in its
// lifecycle. States only ever advance.
type MigrationState string

const (
	MigrationNotStarted       MigrationState = "not_started"
	MigrationReadinessChecked MigrationState = "readiness_checked"
	MigrationMappingVerified  MigrationState = "mapping_verified"
	MigrationMigrating        MigrationState = "migrating"
	MigrationVerified         MigrationState = "verified"
)

// MigrationReport is the per-dealership breakdown produced by verification.
type MigrationReport struct {
	State            MigrationState  `json:"state"`
	SourceTotal      int64           `json:"source_total"`
	DestinationTotal int64           `json:"destination_total"`
	CopiedRows       int64           `json:"copied_rows"`
	PerDealership    map[int64]int64 `json:"per_dealership"`
}

// MigrationCoordinator moves history data from a unified store to a
// partitioned store without data loss. Every step is idempotent: copies are
// upserts on the (vin, order_date) key, so repeated runs are safe. The
// source is never deleted.
type MigrationCoordinator struct {
	source      HistoryStore
	destination HistoryStore
	registry    *PartitionRegistry
	dealerships DealershipRepository
	state       MigrationState
}

// NewMigrationCoordinator wires a coordinator in the NotStarted state.
func NewMigrationCoordinator(source, destination HistoryStore, registry *PartitionRegistry, dealerships DealershipRepository) *MigrationCoordinator {
	return &MigrationCoordinator{
		source:      source,
		destination: destination,
		registry:    registry,
		dealerships: dealerships,
		state:       MigrationNotStarted,
	}
}

// State returns the coordinator's current state.
func (m *MigrationCoordinator) State() MigrationState {
	return m.state
}

// CheckReadiness fails fast when the source has no rows or the destination
// has no registered tables to receive them.
func (m *MigrationCoordinator) CheckReadiness(ctx context.Context) error {
	total, err := m.source.CountEntries(ctx)
	if err != nil {
		return fmt.Errorf("failed to count source rows: %w", err)
	}
	if total == 0 {
		return fmt.Errorf("source history is empty, nothing to migrate")
	}
	if m.registry.Len() == 0 {
		return fmt.Errorf("no destination tables are registered")
	}

	m.state = MigrationReadinessChecked
	log.Printf("[MigrationCoordinator] Readiness checked: %d source rows, %d destination tables", total, m.registry.Len())
	return nil
}

// VerifyMapping resolves every dealership with history through the registry
// and refuses to proceed if any active dealership's target is missing.
func (m *MigrationCoordinator) VerifyMapping(ctx context.Context) error {
	if m.state != MigrationReadinessChecked {
		return fmt.Errorf("mapping verification requires state %s, currently %s", MigrationReadinessChecked, m.state)
	}

	ids, err := m.source.ListDealershipIDs(ctx)
	if err != nil {
		return fmt.Errorf("failed to list source dealerships: %w", err)
	}

	active := make(map[int64]bool)
	configs, err := m.dealerships.List(ctx)
	if err != nil {
		return fmt.Errorf("failed to list dealership configs: %w", err)
	}
	for _, cfg := range configs {
		active[cfg.ID] = cfg.IsActive
	}

	var missing []int64
	for _, id := range ids {
		if _, ok := m.registry.TableFor(id); !ok {
			if active[id] {
				missing = append(missing, id)
			} else {
				log.Printf("[MigrationCoordinator] Warning: inactive dealership %d has history but no target table, skipping", id)
			}
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("active dealerships with history have no target table: %v", missing)
	}

	m.state = MigrationMappingVerified
	log.Printf("[MigrationCoordinator] Mapping verified for %d dealerships with history", len(ids))
	return nil
}

// Migrate copies rows in dealership-sized batches. Dealerships without a
// registered target (already confirmed inactive by VerifyMapping) are
// skipped; their rows stay in the source untouched.
func (m *MigrationCoordinator) Migrate(ctx context.Context) (int64, error) {
	if m.state != MigrationMappingVerified {
		return 0, fmt.Errorf("migration requires state %s, currently %s", MigrationMappingVerified, m.state)
	}
	m.state = MigrationMigrating

	ids, err := m.source.ListDealershipIDs(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to list source dealerships: %w", err)
	}

	var copied int64
	for _, id := range ids {
		if _, ok := m.registry.TableFor(id); !ok {
			continue
		}

		entries, err := m.source.EntriesForDealership(ctx, id)
		if err != nil {
			return copied, fmt.Errorf("failed to read dealership %d: %w", id, err)
		}
		if len(entries) == 0 {
			continue
		}

		n, err := m.destination.BulkRecordSeen(ctx, entries)
		if err != nil {
			return copied, fmt.Errorf("failed to write dealership %d: %w", id, err)
		}
		copied += int64(n)
		log.Printf("[MigrationCoordinator] Migrated %d rows for dealership %d", n, id)
	}

	return copied, nil
}

// Verify compares row counts between source and destination per dealership.
// The coordinator only reaches Verified when the totals match exactly in
// both directions: a destination surplus (pre-existing rows the migration
// never wrote) fails verification just like a deficit. Skipped inactive
// dealerships are excluded from the source total.
func (m *MigrationCoordinator) Verify(ctx context.Context) (*MigrationReport, error) {
	if m.state != MigrationMigrating {
		return nil, fmt.Errorf("verification requires state %s, currently %s", MigrationMigrating, m.state)
	}

	sourceCounts, err := m.source.CountByDealership(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to count source: %w", err)
	}
	destCounts, err := m.destination.CountByDealership(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to count destination: %w", err)
	}

	report := &MigrationReport{
		State:         MigrationMigrating,
		PerDealership: make(map[int64]int64),
	}

	var mismatched []int64
	for id, srcCount := range sourceCounts {
		if _, ok := m.registry.TableFor(id); !ok {
			continue // confirmed inactive during mapping verification
		}
		report.SourceTotal += srcCount
		report.PerDealership[id] = destCounts[id]
		if destCounts[id] != srcCount {
			mismatched = append(mismatched, id)
		}
	}
	for id, c := range destCounts {
		report.DestinationTotal += c
		if _, ok := sourceCounts[id]; !ok && c > 0 {
			report.PerDealership[id] = c
			mismatched = append(mismatched, id)
		}
	}

	if len(mismatched) > 0 || report.DestinationTotal != report.SourceTotal {
		report.State = m.state
		return report, fmt.Errorf("row count mismatch for dealerships %v (source=%d destination=%d)",
			mismatched, report.SourceTotal, report.DestinationTotal)
	}

	m.state = MigrationVerified
	report.State = MigrationVerified
	log.Printf("[MigrationCoordinator] Verified: %d rows across %d dealerships", report.SourceTotal, len(report.PerDealership))
	return report, nil
}

// Run drives the full state machine and returns the verification report.
func (m *MigrationCoordinator) Run(ctx context.Context) (*MigrationReport, error) {
	if err := m.CheckReadiness(ctx); err != nil {
		return nil, err
	}
	if err := m.VerifyMapping(ctx); err != nil {
		return nil, err
	}
	copied, err := m.Migrate(ctx)
	if err != nil {
		return nil, err
	}
	report, err := m.Verify(ctx)
	if report != nil {
		report.CopiedRows = copied
	}
	return report, err
}
