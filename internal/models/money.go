package models

import (
	"database/sql/driver"
	"fmt"

	"github.com/shopspring/decimal"
)

// Money is a non-negative amount with fixed 2-decimal-place precision.
// All arithmetic goes through decimal to avoid binary floating-point drift;
// signed values never appear here, only in ledger deltas derived from
// transaction type.
type Money struct {
	dec decimal.Decimal
}

// ZeroMoney returns a zero amount.
func ZeroMoney() Money {
	return Money{dec: decimal.Zero}
}

// NewMoney builds a Money from a decimal, rounding to 2 places.
// Negative amounts are rejected.
func NewMoney(d decimal.Decimal) (Money, error) {
	d = d.Round(2)
	if d.IsNegative() {
		return Money{}, fmt.Errorf("money amount cannot be negative: %s", d)
	}
	return Money{dec: d}, nil
}

// MoneyFromString parses a decimal string such as "33.34".
func MoneyFromString(s string) (Money, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return Money{}, fmt.Errorf("invalid money amount %q: %w", s, err)
	}
	return NewMoney(d)
}

// MoneyFromFloat converts a float input (API payloads) to Money.
func MoneyFromFloat(f float64) (Money, error) {
	return NewMoney(decimal.NewFromFloat(f))
}

// MustMoney parses s and panics on failure. For constants and tests.
func MustMoney(s string) Money {
	m, err := MoneyFromString(s)
	if err != nil {
		panic(err)
	}
	return m
}

func (m Money) Add(o Money) Money {
	return Money{dec: m.dec.Add(o.dec)}
}

// Sub returns m - o, failing instead of going negative.
func (m Money) Sub(o Money) (Money, error) {
	d := m.dec.Sub(o.dec)
	if d.IsNegative() {
		return Money{}, fmt.Errorf("money subtraction underflow: %s - %s", m.dec, o.dec)
	}
	return Money{dec: d}, nil
}

// SplitCeil divides the amount into n equal parts, rounding each part UP to
// the nearest minor unit. The sum of the parts may exceed the original amount
// by up to n-1 minor units; the bias favors full collection over
// under-collection and is intentional, not a rounding bug.
func (m Money) SplitCeil(n int) (Money, error) {
	if n <= 0 {
		return Money{}, fmt.Errorf("cannot split money across %d parts", n)
	}
	part := m.dec.Div(decimal.NewFromInt(int64(n))).RoundCeil(2)
	return Money{dec: part}, nil
}

func (m Money) IsZero() bool             { return m.dec.IsZero() }
func (m Money) IsPositive() bool         { return m.dec.IsPositive() }
func (m Money) Equal(o Money) bool       { return m.dec.Equal(o.dec) }
func (m Money) LessThan(o Money) bool    { return m.dec.LessThan(o.dec) }
func (m Money) GreaterThan(o Money) bool { return m.dec.GreaterThan(o.dec) }

// Decimal exposes the underlying decimal value.
func (m Money) Decimal() decimal.Decimal { return m.dec }

// Float64 returns a lossy float, for responses only.
func (m Money) Float64() float64 {
	f, _ := m.dec.Float64()
	return f
}

func (m Money) String() string {
	return m.dec.StringFixed(2)
}

// Value implements driver.Valuer so Money maps to a numeric column.
func (m Money) Value() (driver.Value, error) {
	return m.dec.StringFixed(2), nil
}

// Scan implements sql.Scanner.
func (m *Money) Scan(value interface{}) error {
	var d decimal.Decimal
	if err := d.Scan(value); err != nil {
		return fmt.Errorf("failed to scan money: %w", err)
	}
	parsed, err := NewMoney(d)
	if err != nil {
		return err
	}
	*m = parsed
	return nil
}

// MarshalJSON renders the amount as a fixed 2-place decimal string.
func (m Money) MarshalJSON() ([]byte, error) {
	return []byte(`"` + m.dec.StringFixed(2) + `"`), nil
}

// UnmarshalJSON accepts both quoted strings and bare numbers.
func (m *Money) UnmarshalJSON(data []byte) error {
	s := string(data)
	if len(s) >= 2 && s[0] == '"' && s[len(s)-1] == '"' {
		s = s[1 : len(s)-1]
	}
	parsed, err := MoneyFromString(s)
	if err != nil {
		return err
	}
	*m = parsed
	return nil
}
