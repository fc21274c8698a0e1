package normalize

import (
	"math"
	"strings"
)

const kmPerMile = 1.609344

// MileageToKm converts a raw mileage reading into kilometers, rounded to the
// nearest integer. Unknown or unrecognized units yield nil rather than a
// guess.
func MileageToKm(value *float64, unit string) *int {
	if value == nil || *value < 0 {
		return nil
	}
	var km float64
	switch strings.ToLower(strings.TrimSpace(unit)) {
	case "mi", "mile", "miles":
		km = *value * kmPerMile
	case "km", "kms", "kilometer", "kilometers", "kilometre", "kilometres":
		km = *value
	default:
		return nil
	}
	out := int(math.Round(km))
	return &out
}
