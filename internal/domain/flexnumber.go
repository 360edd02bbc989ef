package domain

import (
	"bytes"
	"encoding/json"
	"math"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
)

// FlexNumber keeps the raw text of a numeric form field. Forms submit
// numbers as strings, blanks or garbage; conversion never fails and falls
// back to zero.
type FlexNumber string

const (
	// maxFlexLength bounds the text that is parsed at all.
	maxFlexLength = 40
	// maxFlexExponent bounds the decimal exponent in either direction so
	// rescaling stays cheap.
	maxFlexExponent = 18
	// MaxFlexInt is the largest value Int returns.
	MaxFlexInt = math.MaxInt32
)

// MaxFlexAmount is the largest value Decimal returns; anything above is
// treated as invalid.
var MaxFlexAmount = decimal.New(1, 12)

func (n *FlexNumber) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*n = ""
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*n = FlexNumber(s)
		return nil
	}
	*n = FlexNumber(data)
	return nil
}

func (n FlexNumber) MarshalJSON() ([]byte, error) {
	return json.Marshal(string(n))
}

// Decimal returns the value, or zero when blank, invalid, negative or
// above MaxFlexAmount.
func (n FlexNumber) Decimal() decimal.Decimal {
	d, ok := n.parse()
	if !ok || d.GreaterThan(MaxFlexAmount) {
		return decimal.Zero
	}
	return d
}

// Int returns the value truncated to an integer and clamped to MaxFlexInt,
// or zero when blank, invalid or negative.
func (n FlexNumber) Int() int {
	raw := strings.TrimSpace(string(n))
	if v, err := strconv.Atoi(raw); err == nil {
		return min(max(v, 0), MaxFlexInt)
	}
	d, ok := n.parse()
	if !ok {
		return 0
	}
	if d.GreaterThan(decimal.NewFromInt(MaxFlexInt)) {
		return MaxFlexInt
	}
	return int(d.IntPart())
}

func (n FlexNumber) parse() (decimal.Decimal, bool) {
	raw := strings.TrimSpace(string(n))
	if raw == "" || len(raw) > maxFlexLength {
		return decimal.Zero, false
	}
	d, err := decimal.NewFromString(raw)
	if err != nil || d.IsNegative() {
		return decimal.Zero, false
	}
	if exp := d.Exponent(); exp > maxFlexExponent || exp < -maxFlexExponent {
		return decimal.Zero, false
	}
	return d, true
}

func FlexFromDecimal(d decimal.Decimal) FlexNumber {
	return FlexNumber(d.String())
}

func FlexFromInt(v int) FlexNumber {
	return FlexNumber(strconv.Itoa(v))
}
