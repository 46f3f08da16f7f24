package service

import (
	"errors"
	"fmt"
)

// Job-level errors abort the order and produce no partial export. Vehicle
// level errors (bad VINs, QR failures) never surface here: they are counted
// and reported alongside a successful outcome.
var (
	// ErrUnknownDealership means no configuration exists for the requested
	// dealership.
	ErrUnknownDealership = errors.New("unknown dealership")

	// ErrInactiveDealership means the dealership exists but is switched off.
	ErrInactiveDealership = errors.New("dealership is inactive")

	// ErrEmptyOrder means a LIST order had no surviving VINs after filtering.
	ErrEmptyOrder = errors.New("no eligible vehicles in order")

	// ErrOrderInProgress means another order for the same dealership holds
	// the lock. Concurrent orders for one dealership must serialize, or two
	// CAO runs could both see a VIN as new.
	ErrOrderInProgress = errors.New("an order for this dealership is already running")
)

// PersistenceError marks a history write failure after the export was
// already durably written. The export is valid but the order must be
// re-recorded (the upsert key makes a retry safe) or escalated, otherwise
// the same VINs get re-selected next cycle.
type PersistenceError struct {
	JobID string
	Err   error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("history write failed after export for job %s (retry is safe, same idempotent key): %v", e.JobID, e.Err)
}

func (e *PersistenceError) Unwrap() error {
	return e.Err
}
