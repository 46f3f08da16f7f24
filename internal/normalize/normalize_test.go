package normalize

import (
	"testing"
	"time"

	"lotorder-engine/internal/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestVehicle_aliases(t *testing.T) {
	observedAt := time.Date(2026, 8, 24, 12, 0, 0, 0, time.UTC)
	raw := Raw{
		"vin_number":   "1hgcm82633a004352",
		"stock_no":     " P1234 ",
		"model_year":   "2022",
		"manufacturer": "Honda",
		"model_name":   "Accord",
		"trim_level":   "EX-L",
		"our_price":    "$28,500",
		"list_price":   float64(31000),
		"stock_type":   "CPO",
	}

	rec, err := Vehicle(raw, 7, observedAt)
	require.NoError(t, err)

	assert.Equal(t, "1HGCM82633A004352", rec.VIN)
	assert.Equal(t, int64(7), rec.DealershipID)
	assert.Equal(t, "P1234", rec.StockNumber)
	assert.Equal(t, 2022, rec.Year)
	assert.Equal(t, "Honda", rec.Make)
	assert.Equal(t, "Accord", rec.Model)
	assert.Equal(t, "EX-L", rec.Trim)
	require.NotNil(t, rec.Price)
	assert.Equal(t, 28500.0, *rec.Price)
	require.NotNil(t, rec.MSRP)
	assert.Equal(t, 31000.0, *rec.MSRP)
	assert.Equal(t, model.ConditionCertified, rec.Condition)
	assert.Equal(t, observedAt, rec.ObservedAt)
}

func TestVehicle_missingVIN(t *testing.T) {
	_, err := Vehicle(Raw{"make": "Ford"}, 1, time.Now())
	require.Error(t, err)

	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "vin", verr.Field)
}

func TestVehicle_shortVIN(t *testing.T) {
	_, err := Vehicle(Raw{"vin": "ABC"}, 1, time.Now())
	assert.Error(t, err)
}

func TestVehicle_truncatedVIN(t *testing.T) {
	// 10 characters: long enough to key a record, but not a complete VIN.
	_, err := Vehicle(Raw{"vin": "1HGCM82633"}, 1, time.Now())
	require.Error(t, err)

	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "vin", verr.Field)
}

func TestVehicle_forbiddenVINLetters(t *testing.T) {
	// Correct length, but VINs never contain I, O or Q.
	_, err := Vehicle(Raw{"vin": "1HGCM82633AOO4352"}, 1, time.Now())
	assert.Error(t, err)
}

func TestCondition(t *testing.T) {
	tests := []struct {
		in   string
		want model.Condition
	}{
		{"new", model.ConditionNew},
		{"N", model.ConditionNew},
		{"Used", model.ConditionUsed},
		{"pre-owned", model.ConditionUsed},
		{"Pre Owned", model.ConditionUsed},
		{"certified", model.ConditionCertified},
		{"CPO", model.ConditionCertified},
		{"Certified Pre-Owned", model.ConditionCertified},
		{"", model.ConditionUnknown},
		{"demo", model.ConditionUnknown},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Condition(tt.in), "input %q", tt.in)
	}
}

func TestMoney(t *testing.T) {
	m := Money("$28,500.50")
	require.NotNil(t, m)
	assert.Equal(t, 28500.50, *m)

	m = Money("19999")
	require.NotNil(t, m)
	assert.Equal(t, 19999.0, *m)

	// Missing or nonsense prices stay distinguishable from a free car.
	assert.Nil(t, Money(""))
	assert.Nil(t, Money("call for price"))
	assert.Nil(t, Money("0"))
	assert.Nil(t, Money("-100"))
}

func TestVehicle_numericYearAndPrice(t *testing.T) {
	raw := Raw{
		"vin":   "1HGCM82633A004352",
		"year":  float64(2021),
		"price": float64(19500),
	}
	rec, err := Vehicle(raw, 1, time.Now().UTC())
	require.NoError(t, err)
	assert.Equal(t, 2021, rec.Year)
	require.NotNil(t, rec.Price)
	assert.Equal(t, 19500.0, *rec.Price)
}

func TestVehicle_implausibleYearDropped(t *testing.T) {
	rec, err := Vehicle(Raw{"vin": "1HGCM82633A004352", "year": "1850"}, 1, time.Now().UTC())
	require.NoError(t, err)
	assert.Equal(t, 0, rec.Year)
}
