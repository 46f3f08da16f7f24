package repository

import (
	"context"
	"fmt"
	"strings"

	"lotorder-engine/internal/model"
)

// tablePrefix namespaces per-dealership history tables.
const tablePrefix = "vin_history_"

// PartitionRegistry resolves a dealership to its history table name. The
// registry is built once at startup from the dealership store plus an
// explicit override map; partitioned backends never slugify at call time,
// so a rename or an ambiguous name cannot silently re-point a dealership
// at a different table.
type PartitionRegistry struct {
	tables map[int64]string
}

// Slugify derives a table-safe slug from a dealership name. Names with
// apostrophes, ampersands or other punctuation that do not slugify uniquely
// must be covered by an override.
func Slugify(name string) string {
	var b strings.Builder
	lastUnderscore := true // trims leading separators
	for _, r := range strings.ToLower(strings.TrimSpace(name)) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
			lastUnderscore = false
		default:
			if !lastUnderscore {
				b.WriteRune('_')
				lastUnderscore = true
			}
		}
	}
	return strings.TrimSuffix(b.String(), "_")
}

// BuildPartitionRegistry resolves every dealership's table name. Overrides
// (dealership ID -> slug) win over the computed slug. It fails on empty or
// duplicate slugs rather than letting two dealerships share a table.
func BuildPartitionRegistry(ctx context.Context, dealerships DealershipRepository, overrides map[int64]string) (*PartitionRegistry, error) {
	configs, err := dealerships.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list dealerships: %w", err)
	}
	return NewPartitionRegistry(configs, overrides)
}

// NewPartitionRegistry builds a registry from an explicit dealership list.
func NewPartitionRegistry(configs []model.DealershipConfig, overrides map[int64]string) (*PartitionRegistry, error) {
	tables := make(map[int64]string, len(configs))
	seen := make(map[string]int64, len(configs))

	for _, cfg := range configs {
		slug, ok := overrides[cfg.ID]
		if !ok {
			slug = Slugify(cfg.Name)
		}
		if slug == "" {
			return nil, fmt.Errorf("dealership %d (%q) produces an empty slug and has no override", cfg.ID, cfg.Name)
		}
		if prev, dup := seen[slug]; dup {
			return nil, fmt.Errorf("dealerships %d and %d both resolve to table slug %q", prev, cfg.ID, slug)
		}
		seen[slug] = cfg.ID
		tables[cfg.ID] = tablePrefix + slug
	}

	return &PartitionRegistry{tables: tables}, nil
}

// TableFor returns the history table name for a dealership.
func (r *PartitionRegistry) TableFor(dealershipID int64) (string, bool) {
	name, ok := r.tables[dealershipID]
	return name, ok
}

// DealershipIDs returns every registered dealership ID.
func (r *PartitionRegistry) DealershipIDs() []int64 {
	ids := make([]int64, 0, len(r.tables))
	for id := range r.tables {
		ids = append(ids, id)
	}
	return ids
}

// Len returns the number of registered dealerships.
func (r *PartitionRegistry) Len() int {
	return len(r.tables)
}
