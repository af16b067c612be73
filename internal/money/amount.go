package money

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// Scale is the number of decimal places carried by every Amount.
const Scale = 4

// Amount is a fixed-point monetary value with four decimal places, stored
// as an integer count of 0.0001 units. Arithmetic on Amount is exact and
// no float is involved anywhere in the ledger.
type Amount int64

// Parse converts a decimal string ("1.5", "0.0001", "3") into an Amount.
// Values that need more than four decimal places are rejected. Sign is
// preserved; range checks on parsed amounts belong to the caller.
func Parse(s string) (Amount, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return 0, fmt.Errorf("parse amount %q: %w", s, err)
	}

	units := d.Shift(Scale)
	if !units.IsInteger() {
		return 0, fmt.Errorf("parse amount %q: more than %d decimal places", s, Scale)
	}
	if !units.BigInt().IsInt64() {
		return 0, fmt.Errorf("parse amount %q: out of range", s)
	}

	return Amount(units.IntPart()), nil
}

// MustParse is Parse for static literals in tests and fixtures.
func MustParse(s string) Amount {
	a, err := Parse(s)
	if err != nil {
		panic(err)
	}
	return a
}

// String renders the amount with exactly four decimal places ("1.5000").
func (a Amount) String() string {
	return decimal.New(int64(a), -Scale).StringFixed(Scale)
}

// MarshalJSON encodes the amount as a decimal string to keep JSON
// consumers away from float rounding.
func (a Amount) MarshalJSON() ([]byte, error) {
	return []byte(`"` + a.String() + `"`), nil
}

// UnmarshalJSON accepts both a quoted decimal string and a bare JSON number.
func (a *Amount) UnmarshalJSON(data []byte) error {
	s := string(data)
	if len(s) >= 2 && s[0] == '"' && s[len(s)-1] == '"' {
		s = s[1 : len(s)-1]
	}

	v, err := Parse(s)
	if err != nil {
		return err
	}
	*a = v
	return nil
}
