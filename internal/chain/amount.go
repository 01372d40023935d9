package chain

import (
	"bytes"
	"fmt"
	"math/big"
	"strings"
)

var maxU128 = new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), 128), big.NewInt(1))

// Amount is an unsigned 128-bit ledger balance. The zero value is 0.
type Amount struct {
	v *big.Int
}

// NewAmount builds an Amount from a uint64.
func NewAmount(v uint64) Amount {
	return Amount{v: new(big.Int).SetUint64(v)}
}

// AmountFromBig validates and copies b.
func AmountFromBig(b *big.Int) (Amount, error) {
	if b == nil {
		return Amount{}, nil
	}
	if b.Sign() < 0 {
		return Amount{}, fmt.Errorf("amount must not be negative")
	}
	if b.Cmp(maxU128) > 0 {
		return Amount{}, fmt.Errorf("amount exceeds 128 bits")
	}
	return Amount{v: new(big.Int).Set(b)}, nil
}

// ParseAmount parses a base-10 unsigned integer.
func ParseAmount(s string) (Amount, error) {
	b, ok := new(big.Int).SetString(strings.TrimSpace(s), 10)
	if !ok {
		return Amount{}, fmt.Errorf("invalid amount %q", s)
	}
	return AmountFromBig(b)
}

// Big returns a copy of the value.
func (a Amount) Big() *big.Int {
	if a.v == nil {
		return new(big.Int)
	}
	return new(big.Int).Set(a.v)
}

// Uint64 returns the value and whether it fits.
func (a Amount) Uint64() (uint64, bool) {
	b := a.Big()
	return b.Uint64(), b.IsUint64()
}

// Equal compares two amounts by value.
func (a Amount) Equal(o Amount) bool {
	return a.Big().Cmp(o.Big()) == 0
}

func (a Amount) String() string {
	return a.Big().String()
}

// MarshalJSON renders the amount as a bare JSON number.
func (a Amount) MarshalJSON() ([]byte, error) {
	return []byte(a.String()), nil
}

// UnmarshalJSON accepts a JSON number or a quoted decimal string.
func (a *Amount) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		return fmt.Errorf("amount must not be null")
	}
	s := string(data)
	if len(data) >= 2 && data[0] == '"' && data[len(data)-1] == '"' {
		s = s[1 : len(s)-1]
	}
	parsed, err := ParseAmount(s)
	if err != nil {
		return err
	}
	*a = parsed
	return nil
}

// Amounts converts uint64 values, mostly for tests and fixtures.
func Amounts(vs ...uint64) []Amount {
	out := make([]Amount, len(vs))
	for i, v := range vs {
		out[i] = NewAmount(v)
	}
	return out
}
