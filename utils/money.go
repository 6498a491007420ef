package utils

import (
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

var hundred = decimal.NewFromInt(100)

// ToMinorUnits parses a major-unit amount ("12.50") into minor units (1250).
func ToMinorUnits(major string) (int64, error) {
	d, err := decimal.NewFromString(strings.TrimSpace(major))
	if err != nil {
		return 0, fmt.Errorf("parse amount %q: %w", major, err)
	}
	minor := d.Mul(hundred)
	if !minor.Equal(minor.Truncate(0)) {
		return 0, errors.New("amount has more than two decimal places")
	}
	return minor.IntPart(), nil
}

// FromMinorUnits converts minor units into a decimal major-unit amount.
func FromMinorUnits(minor int64) decimal.Decimal {
	return decimal.NewFromInt(minor).Div(hundred)
}

// FormatMinor renders minor units as "NGN 1,250.00".
func FormatMinor(minor int64, currency string) string {
	s := FromMinorUnits(minor).StringFixed(2)
	sign := ""
	if strings.HasPrefix(s, "-") {
		sign, s = "-", s[1:]
	}
	whole, frac, _ := strings.Cut(s, ".")

	var b strings.Builder
	for i, r := range whole {
		if i > 0 && (len(whole)-i)%3 == 0 {
			b.WriteByte(',')
		}
		b.WriteRune(r)
	}
	out := fmt.Sprintf("%s%s.%s", sign, b.String(), frac)
	if currency == "" {
		return out
	}
	return currency + " " + out
}
