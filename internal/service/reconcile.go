package service

import (
	"context"
	"fmt"
	"log"
	"time"

	"lotorder-engine/internal/filter"
	"lotorder-engine/internal/model"
	"lotorder-engine/internal/repository"
	"lotorder-engine/pkg/vin"
)

// ReconcileOutcome is the result of one CAO computation. The counts are
// externally consumed (operator dashboards show them), so they must be
// exact, not best-effort.
type ReconcileOutcome struct {
	New           []model.VehicleRecord
	FilteredCount int
	AlreadySeen   int
	TotalScanned  int
	ErrorCount    int
}

// ReconciliationEngine computes the "new" vehicle set for a dealership by
// diffing the current inventory snapshot against order history.
type ReconciliationEngine struct {
	history repository.HistoryStore
}

// NewReconciliationEngine creates a reconciliation engine.
// Returns nil if history is nil (required dependency).
func NewReconciliationEngine(history repository.HistoryStore) *ReconciliationEngine {
	if history == nil {
		return nil
	}
	return &ReconciliationEngine{history: history}
}

// Reconcile runs the CAO algorithm:
//  1. drop vehicles whose VIN is not a well-formed 17-character identifier
//     (counted as errors, never silent)
//  2. dedupe by VIN, last write wins by ObservedAt
//  3. apply the dealership's filter rules
//  4. keep only vehicles with no prior history entry in the lookback window
func (e *ReconciliationEngine) Reconcile(ctx context.Context, cfg model.DealershipConfig, snapshot []model.VehicleRecord) (*ReconcileOutcome, error) {
	outcome := &ReconcileOutcome{TotalScanned: len(snapshot)}

	deduped := make(map[string]model.VehicleRecord, len(snapshot))
	for _, v := range snapshot {
		cleaned := vin.Clean(v.VIN)
		if !vin.IsValid(cleaned) {
			outcome.ErrorCount++
			continue
		}
		v.VIN = cleaned
		if prev, ok := deduped[cleaned]; ok && !v.ObservedAt.After(prev.ObservedAt) {
			continue
		}
		deduped[cleaned] = v
	}

	lookback := time.Duration(cfg.LookbackDays) * 24 * time.Hour

	for _, v := range deduped {
		eligible, _ := filter.IsEligible(cfg.FilterRules, v)
		if !eligible {
			outcome.FilteredCount++
			continue
		}

		ordered, err := e.history.HasBeenOrdered(ctx, cfg.ID, v.VIN, lookback)
		if err != nil {
			return nil, fmt.Errorf("history lookup failed for vin %s: %w", v.VIN, err)
		}
		if ordered {
			outcome.AlreadySeen++
			continue
		}
		outcome.New = append(outcome.New, v)
	}

	log.Printf("[ReconciliationEngine] Dealership %d: scanned=%d new=%d filtered=%d already_seen=%d errors=%d",
		cfg.ID, outcome.TotalScanned, len(outcome.New), outcome.FilteredCount, outcome.AlreadySeen, outcome.ErrorCount)
	return outcome, nil
}
