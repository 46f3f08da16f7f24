package model

import "time"

// Condition is the sale condition of a vehicle on a dealer's lot.
type Condition string

const (
	ConditionNew       Condition = "new"
	ConditionUsed      Condition = "used"
	ConditionCertified Condition = "certified"
	ConditionUnknown   Condition = "unknown"
)

// VehicleRecord is the canonical snapshot row for one vehicle.
// VIN is the natural key within a dealership+date.
type VehicleRecord struct {
	VIN          string    `json:"vin"`
	DealershipID int64     `json:"dealership_id"`
	StockNumber  string    `json:"stock_number"`
	Year         int       `json:"year"`
	Make         string    `json:"make"`
	Model        string    `json:"model"`
	Trim         string    `json:"trim"`
	Price        *float64  `json:"price,omitempty"`
	MSRP         *float64  `json:"msrp,omitempty"`
	Condition    Condition `json:"condition"`
	ObservedAt   time.Time `json:"observed_at"`
}
