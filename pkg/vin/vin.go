package vin

import "strings"

// Length is the number of characters in a complete VIN.
const Length = 17

// MinUsable is the minimum cleaned length below which a scraped VIN is
// treated as garbage rather than a truncated identifier.
const MinUsable = 5

// Clean uppercases a raw VIN and strips whitespace and separators commonly
// introduced by scrapers.
func Clean(raw string) string {
	s := strings.ToUpper(strings.TrimSpace(raw))
	s = strings.Map(func(r rune) rune {
		switch r {
		case ' ', '\t', '-', '.':
			return -1
		}
		return r
	}, s)
	return s
}

// IsValid reports whether a cleaned VIN is a well-formed 17-character
// identifier. VINs never contain I, O or Q.
func IsValid(s string) bool {
	if len(s) != Length {
		return false
	}
	for _, r := range s {
		switch {
		case r >= '0' && r <= '9':
		case r >= 'A' && r <= 'Z':
			if r == 'I' || r == 'O' || r == 'Q' {
				return false
			}
		default:
			return false
		}
	}
	return true
}

// IsUsable reports whether a cleaned VIN is long enough to key a vehicle at
// all. Records below this bound are dropped and counted as errors.
func IsUsable(s string) bool {
	return len(s) >= MinUsable
}
