package domain

import (
	"encoding/json"
	"fmt"
	"math/big"
	"strconv"
	"strings"
)

// maxExponent bounds JSON exponents so big.Rat never expands a huge power.
const maxExponent = 20

// Amount is money in minor units (centavos). No floats.
type Amount int64

// IsPositive reports whether a is strictly greater than zero.
func (a Amount) IsPositive() bool { return a > 0 }

// ParseAmount parses a decimal string with at most two fractional digits.
func ParseAmount(raw string) (Amount, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, E(KindInvalidAmount, "amount is required")
	}
	neg := false
	switch raw[0] {
	case '-':
		neg = true
		raw = raw[1:]
	case '+':
		raw = raw[1:]
	}
	whole, frac, hasFrac := strings.Cut(raw, ".")
	if whole == "" && (!hasFrac || frac == "") {
		return 0, E(KindInvalidAmount, "amount is not a number")
	}
	if len(frac) > 2 {
		return 0, E(KindInvalidAmount, "amount has more than two decimal places")
	}
	if !digitsOnly(whole) || !digitsOnly(frac) {
		return 0, E(KindInvalidAmount, "amount is not a number")
	}
	if whole == "" {
		whole = "0"
	}
	for len(frac) < 2 {
		frac += "0"
	}
	units, err := strconv.ParseInt(whole, 10, 64)
	if err != nil || units > (1<<63-1)/100-1 {
		return 0, E(KindInvalidAmount, "amount out of range")
	}
	cents, _ := strconv.ParseInt(frac, 10, 64)
	v := units*100 + cents
	if neg {
		v = -v
	}
	return Amount(v), nil
}

func digitsOnly(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

func (a Amount) String() string {
	v := int64(a)
	sign := ""
	if v < 0 {
		sign = "-"
		v = -v
	}
	return fmt.Sprintf("%s%d.%02d", sign, v/100, v%100)
}

// MarshalJSON renders the amount as a decimal string.
func (a Amount) MarshalJSON() ([]byte, error) {
	return json.Marshal(a.String())
}

// UnmarshalJSON accepts a JSON number, exponent form included, or a decimal
// string.
func (a *Amount) UnmarshalJSON(data []byte) error {
	s := strings.TrimSpace(string(data))
	if s == "null" {
		return E(KindInvalidAmount, "amount is required")
	}
	quoted := strings.HasPrefix(s, `"`)
	if quoted {
		if err := json.Unmarshal(data, &s); err != nil {
			return E(KindInvalidAmount, "amount is not a number")
		}
	}
	parse := ParseAmount
	if !quoted && strings.ContainsAny(s, "eE") {
		parse = parseExponent
	}
	v, err := parse(s)
	if err != nil {
		return err
	}
	*a = v
	return nil
}

// parseExponent handles JSON numbers such as 1e2 or 1.5E+1.
func parseExponent(raw string) (Amount, error) {
	mant, exp, _ := strings.Cut(strings.ToLower(raw), "e")
	if n, err := strconv.Atoi(exp); err != nil || n > maxExponent || n < -maxExponent {
		return 0, E(KindInvalidAmount, "amount out of range")
	}
	if strings.TrimLeft(mant, "+-0123456789.") != "" {
		return 0, E(KindInvalidAmount, "amount is not a number")
	}
	r, ok := new(big.Rat).SetString(raw)
	if !ok {
		return 0, E(KindInvalidAmount, "amount is not a number")
	}
	r.Mul(r, big.NewRat(100, 1))
	if !r.IsInt() {
		return 0, E(KindInvalidAmount, "amount has more than two decimal places")
	}
	n := r.Num()
	if !n.IsInt64() || n.Int64() > (1<<63-1)/100-1 || n.Int64() < -((1<<63-1)/100-1) {
		return 0, E(KindInvalidAmount, "amount out of range")
	}
	return Amount(n.Int64()), nil
}
