// Package money parses monetary amounts as they appear in storefront and
// booking data: plain decimal numbers as well as pt-BR formatted strings
// such as "1.234,56" or "R$ 45".
//
// Parsing never fails: a value that cannot be interpreted as an amount
// parses as zero. A missing or garbled price must degrade to "no charge
// computed", never block a checkout flow with an error.
package money

import (
	"strings"

	"github.com/shopspring/decimal"
)

// Parse converts a price string into a decimal amount.
//
// Accepted forms:
//   - plain numbers: "45", "45.5", "-3"
//   - pt-BR locale: "1.234,56" (thousands ".", decimal ",")
//   - with currency noise: "R$ 45", "R$ 1.234,56"
//
// Anything unparseable yields decimal.Zero.
func Parse(s string) decimal.Decimal {
	cleaned := stripNoise(s)
	if cleaned == "" {
		return decimal.Zero
	}

	if strings.Contains(cleaned, ",") {
		// pt-BR: "." separates thousands, "," is the decimal point.
		cleaned = strings.ReplaceAll(cleaned, ".", "")
		cleaned = strings.ReplaceAll(cleaned, ",", ".")
	}

	d, err := decimal.NewFromString(cleaned)
	if err != nil {
		return decimal.Zero
	}
	return d
}

// stripNoise removes everything but digits, separators, and a leading sign.
func stripNoise(s string) string {
	var b strings.Builder
	for _, r := range strings.TrimSpace(s) {
		switch {
		case r >= '0' && r <= '9', r == '.', r == ',':
			b.WriteRune(r)
		case r == '-' && b.Len() == 0:
			b.WriteRune(r)
		}
	}
	return b.String()
}
