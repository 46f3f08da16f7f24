package filter

import (
	"testing"

	"lotorder-engine/internal/model"

	"github.com/stretchr/testify/assert"
)

func fptr(f float64) *float64 { return &f }
func iptr(i int) *int         { return &i }

func vehicle(mutate func(*model.VehicleRecord)) model.VehicleRecord {
	v := model.VehicleRecord{
		VIN:       "1HGCM82633A004352",
		Year:      2022,
		Make:      "Honda",
		Model:     "Accord",
		Price:     fptr(28500),
		Condition: model.ConditionUsed,
	}
	if mutate != nil {
		mutate(&v)
	}
	return v
}

func TestIsEligible_noRules(t *testing.T) {
	ok, reason := IsEligible(model.FilterRules{}, vehicle(nil))
	assert.True(t, ok)
	assert.Empty(t, reason)
}

func TestIsEligible_conditionExcluded(t *testing.T) {
	rules := model.FilterRules{ExcludeConditions: []model.Condition{model.ConditionNew}}

	ok, reason := IsEligible(rules, vehicle(func(v *model.VehicleRecord) { v.Condition = model.ConditionNew }))
	assert.False(t, ok)
	assert.Equal(t, "condition_excluded:new", reason)

	ok, _ = IsEligible(rules, vehicle(nil))
	assert.True(t, ok)
}

func TestIsEligible_priceBounds(t *testing.T) {
	rules := model.FilterRules{MinPrice: fptr(10000), MaxPrice: fptr(50000)}

	ok, reason := IsEligible(rules, vehicle(func(v *model.VehicleRecord) { v.Price = fptr(9999) }))
	assert.False(t, ok)
	assert.Equal(t, "below_min_price", reason)

	ok, reason = IsEligible(rules, vehicle(func(v *model.VehicleRecord) { v.Price = fptr(50001) }))
	assert.False(t, ok)
	assert.Equal(t, "above_max_price", reason)

	ok, _ = IsEligible(rules, vehicle(nil))
	assert.True(t, ok)
}

func TestIsEligible_missingPriceNeverExcludedOnPrice(t *testing.T) {
	rules := model.FilterRules{MinPrice: fptr(10000)}
	ok, _ := IsEligible(rules, vehicle(func(v *model.VehicleRecord) { v.Price = nil }))
	assert.True(t, ok)
}

func TestIsEligible_makes(t *testing.T) {
	exclude := model.FilterRules{ExcludeMakes: []string{"honda"}}
	ok, reason := IsEligible(exclude, vehicle(nil))
	assert.False(t, ok)
	assert.Equal(t, "make_excluded:Honda", reason)

	includeOnly := model.FilterRules{IncludeOnlyMakes: []string{"Toyota", "Ford"}}
	ok, reason = IsEligible(includeOnly, vehicle(nil))
	assert.False(t, ok)
	assert.Equal(t, "make_not_included:Honda", reason)

	ok, _ = IsEligible(includeOnly, vehicle(func(v *model.VehicleRecord) { v.Make = " toyota " }))
	assert.True(t, ok)
}

func TestIsEligible_yearBounds(t *testing.T) {
	rules := model.FilterRules{YearMin: iptr(2018), YearMax: iptr(2024)}

	ok, reason := IsEligible(rules, vehicle(func(v *model.VehicleRecord) { v.Year = 2015 }))
	assert.False(t, ok)
	assert.Equal(t, "below_year_min", reason)

	ok, reason = IsEligible(rules, vehicle(func(v *model.VehicleRecord) { v.Year = 2025 }))
	assert.False(t, ok)
	assert.Equal(t, "above_year_max", reason)

	// Unknown year is not a year-bound violation.
	ok, _ = IsEligible(rules, vehicle(func(v *model.VehicleRecord) { v.Year = 0 }))
	assert.True(t, ok)
}

func TestIsEligible_firstFailingRuleWins(t *testing.T) {
	rules := model.FilterRules{
		ExcludeConditions: []model.Condition{model.ConditionUsed},
		MinPrice:          fptr(100000),
	}
	ok, reason := IsEligible(rules, vehicle(nil))
	assert.False(t, ok)
	assert.Equal(t, "condition_excluded:used", reason)
}
