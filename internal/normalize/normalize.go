package normalize

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"lotorder-engine/internal/model"
	"lotorder-engine/pkg/vin"
)

// Raw is one scraped/imported vehicle record before normalization. Scrapers
// disagree on field names and units, so values arrive as loosely typed JSON.
type Raw map[string]interface{}

// Field alias tables, checked in order. The first present, non-empty alias wins.
var (
	vinAliases       = []string{"vin", "VIN", "vehicle_vin", "vin_number"}
	stockAliases     = []string{"stock_number", "stock", "stock_no", "stock_num", "stocknumber"}
	yearAliases      = []string{"year", "model_year", "yr"}
	makeAliases      = []string{"make", "manufacturer", "brand"}
	modelAliases     = []string{"model", "model_name"}
	trimAliases      = []string{"trim", "trim_level", "series"}
	priceAliases     = []string{"price", "selling_price", "internet_price", "sale_price", "our_price"}
	msrpAliases      = []string{"msrp", "retail_price", "list_price"}
	conditionAliases = []string{"condition", "type", "new_used", "vehicle_type", "stock_type"}
)

// ValidationError marks a raw record that cannot enter the pipeline. These
// are counted by the caller, never fatal.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation failed on %s: %s", e.Field, e.Reason)
}

// Vehicle converts a raw scraped record into a canonical VehicleRecord.
// Records without a usable VIN are rejected with a ValidationError.
func Vehicle(raw Raw, dealershipID int64, observedAt time.Time) (model.VehicleRecord, error) {
	v := vin.Clean(pickString(raw, vinAliases))
	if !vin.IsUsable(v) {
		return model.VehicleRecord{}, &ValidationError{Field: "vin", Reason: "missing or too short"}
	}
	if !vin.IsValid(v) {
		return model.VehicleRecord{}, &ValidationError{Field: "vin", Reason: "not a well-formed 17-character vin"}
	}

	rec := model.VehicleRecord{
		VIN:          v,
		DealershipID: dealershipID,
		StockNumber:  strings.TrimSpace(pickString(raw, stockAliases)),
		Year:         pickYear(raw),
		Make:         strings.TrimSpace(pickString(raw, makeAliases)),
		Model:        strings.TrimSpace(pickString(raw, modelAliases)),
		Trim:         strings.TrimSpace(pickString(raw, trimAliases)),
		Price:        pickMoney(raw, priceAliases),
		MSRP:         pickMoney(raw, msrpAliases),
		Condition:    Condition(pickString(raw, conditionAliases)),
		ObservedAt:   observedAt,
	}
	if rec.ObservedAt.IsZero() {
		rec.ObservedAt = time.Now().UTC()
	}
	return rec, nil
}

// Condition maps the many scraper spellings onto the canonical enum.
func Condition(raw string) model.Condition {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "new", "n":
		return model.ConditionNew
	case "used", "u", "pre-owned", "preowned", "pre owned":
		return model.ConditionUsed
	case "certified", "cpo", "certified pre-owned", "certified preowned", "certified used":
		return model.ConditionCertified
	default:
		return model.ConditionUnknown
	}
}

// Money parses a price string that may carry currency symbols, thousands
// separators and cents. Empty or unparseable input yields nil, not zero:
// a missing price must stay distinguishable from a free car.
func Money(raw string) *float64 {
	s := strings.TrimSpace(raw)
	if s == "" {
		return nil
	}
	s = strings.NewReplacer("$", "", ",", "", " ", "").Replace(s)
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || f <= 0 {
		return nil
	}
	return &f
}

func pickString(raw Raw, aliases []string) string {
	for _, key := range aliases {
		val, ok := raw[key]
		if !ok || val == nil {
			continue
		}
		switch t := val.(type) {
		case string:
			if strings.TrimSpace(t) != "" {
				return t
			}
		case float64:
			return strconv.FormatFloat(t, 'f', -1, 64)
		case int:
			return strconv.Itoa(t)
		}
	}
	return ""
}

func pickYear(raw Raw) int {
	s := strings.TrimSpace(pickString(raw, yearAliases))
	if s == "" {
		return 0
	}
	y, err := strconv.Atoi(s)
	if err != nil || y < 1900 || y > 2100 {
		return 0
	}
	return y
}

func pickMoney(raw Raw, aliases []string) *float64 {
	for _, key := range aliases {
		val, ok := raw[key]
		if !ok || val == nil {
			continue
		}
		switch t := val.(type) {
		case string:
			if m := Money(t); m != nil {
				return m
			}
		case float64:
			if t > 0 {
				f := t
				return &f
			}
		}
	}
	return nil
}
