package model

import "time"

// HistoryEntry is one durable fact: VIN V was associated with dealership D
// with vehicle type T on date d. The key is (DealershipID, VIN, OrderDate);
// re-insertion of the same key only updates VehicleType.
type HistoryEntry struct {
	DealershipID int64     `json:"dealership_id"`
	VIN          string    `json:"vin"`
	OrderDate    time.Time `json:"order_date"`
	VehicleType  string    `json:"vehicle_type"`
}

// DateOnly truncates a timestamp to its calendar date in UTC. Order dates are
// stored day-granular so a re-scrape of the same lot on the same day upserts
// onto the same key.
func DateOnly(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
