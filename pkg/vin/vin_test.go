package vin

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClean(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"lowercase", "1hgcm82633a004352", "1HGCM82633A004352"},
		{"surrounding whitespace", "  1HGCM82633A004352  ", "1HGCM82633A004352"},
		{"internal spaces", "1HGCM 82633 A004352", "1HGCM82633A004352"},
		{"dashes and dots", "1HG-CM82633.A004352", "1HGCM82633A004352"},
		{"empty", "", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Clean(tt.in))
		})
	}
}

func TestIsValid(t *testing.T) {
	assert.True(t, IsValid("1HGCM82633A004352"))
	assert.True(t, IsValid("WBA3A5C58DF123456"))

	// Wrong length
	assert.False(t, IsValid("1HGCM82633A00435"))
	assert.False(t, IsValid("1HGCM82633A0043521"))
	assert.False(t, IsValid(""))

	// VINs never contain I, O or Q
	assert.False(t, IsValid("IHGCM82633A004352"))
	assert.False(t, IsValid("1HGCM82633A0O4352"))
	assert.False(t, IsValid("QHGCM82633A004352"))

	// Non-alphanumeric
	assert.False(t, IsValid("1HGCM82633A00435!"))
}

func TestIsUsable(t *testing.T) {
	assert.True(t, IsUsable("12345"))
	assert.True(t, IsUsable("1HGCM82633A004352"))
	assert.False(t, IsUsable("1234"))
	assert.False(t, IsUsable(""))
}
