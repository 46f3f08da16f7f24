package model

// FilterRules is a dealership's declarative eligibility configuration.
// Every field is optional; an absent value means "no constraint".
type FilterRules struct {
	ExcludeConditions []Condition `json:"exclude_conditions,omitempty"`
	MinPrice          *float64    `json:"min_price,omitempty"`
	MaxPrice          *float64    `json:"max_price,omitempty"`
	ExcludeMakes      []string    `json:"exclude_makes,omitempty"`
	IncludeOnlyMakes  []string    `json:"include_only_makes,omitempty"`
	YearMin           *int        `json:"year_min,omitempty"`
	YearMax           *int        `json:"year_max,omitempty"`
}

// OutputRules controls export field selection and ordering.
type OutputRules struct {
	Fields []string `json:"fields,omitempty"`
	SortBy string   `json:"sort_by,omitempty"`
}

// DealershipConfig is configuration, not state: one row per dealership.
type DealershipConfig struct {
	ID           int64       `json:"id"`
	Name         string      `json:"name"`
	IsActive     bool        `json:"is_active"`
	FilterRules  FilterRules `json:"filter_rules"`
	OutputRules  OutputRules `json:"output_rules"`
	QROutputRoot string      `json:"qr_output_root"`
	LookbackDays int         `json:"lookback_days"`
}
