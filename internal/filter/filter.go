package filter

import (
	"fmt"
	"strings"

	"lotorder-engine/internal/model"
)

// IsEligible evaluates a dealership's filtering rules against one vehicle.
// Rules run in a fixed order and the first failing rule wins, so the reason
// string is deterministic. Absent configuration values are no constraint:
// they never exclude anything. The result depends only on the rules and the
// vehicle, never on order history.
func IsEligible(rules model.FilterRules, v model.VehicleRecord) (bool, string) {
	for _, cond := range rules.ExcludeConditions {
		if v.Condition == cond {
			return false, fmt.Sprintf("condition_excluded:%s", v.Condition)
		}
	}

	// Price bounds apply only when a price is present. A vehicle with no
	// listed price is never excluded on price.
	if v.Price != nil {
		if rules.MinPrice != nil && *v.Price < *rules.MinPrice {
			return false, "below_min_price"
		}
		if rules.MaxPrice != nil && *v.Price > *rules.MaxPrice {
			return false, "above_max_price"
		}
	}

	make := strings.ToLower(strings.TrimSpace(v.Make))
	for _, excluded := range rules.ExcludeMakes {
		if make == strings.ToLower(strings.TrimSpace(excluded)) {
			return false, fmt.Sprintf("make_excluded:%s", v.Make)
		}
	}
	if len(rules.IncludeOnlyMakes) > 0 {
		found := false
		for _, allowed := range rules.IncludeOnlyMakes {
			if make == strings.ToLower(strings.TrimSpace(allowed)) {
				found = true
				break
			}
		}
		if !found {
			return false, fmt.Sprintf("make_not_included:%s", v.Make)
		}
	}

	if v.Year != 0 {
		if rules.YearMin != nil && v.Year < *rules.YearMin {
			return false, "below_year_min"
		}
		if rules.YearMax != nil && v.Year > *rules.YearMax {
			return false, "above_year_max"
		}
	}

	return true, ""
}
