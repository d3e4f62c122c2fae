package money

import (
	"encoding/json"

	"github.com/shopspring/decimal"
)

// Amount is a decimal that unmarshals from either a JSON number or a
// locale-formatted JSON string. Cart payloads submitted by the storefront
// carry prices in both shapes depending on where the value originated.
type Amount struct {
	decimal.Decimal
}

// NewAmount wraps a decimal in an Amount.
func NewAmount(d decimal.Decimal) Amount {
	return Amount{Decimal: d}
}

// UnmarshalJSON accepts numbers, quoted numbers, and formatted strings.
// Invalid input decodes as zero rather than failing the whole payload.
func (a *Amount) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		a.Decimal = Parse(s)
		return nil
	}

	var d decimal.Decimal
	if err := json.Unmarshal(data, &d); err == nil {
		a.Decimal = d
		return nil
	}

	a.Decimal = decimal.Zero
	return nil
}

// MarshalJSON delegates to the underlying decimal encoding.
func (a Amount) MarshalJSON() ([]byte, error) {
	return a.Decimal.MarshalJSON()
}
