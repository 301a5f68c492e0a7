package domain

import (
	"fmt"
	"math/big"
	"strings"
)

// TokenKind identifies one of the two interchangeable participation units.
// They differ only in on-wire fractional precision; all engine accounting is
// done at the stable unit's 6-decimal scale.
type TokenKind string

const (
	// TokenStable is the 6-decimal participation unit.
	TokenStable TokenKind = "stable"
	// TokenCredit is the 18-decimal participation unit.
	TokenCredit TokenKind = "credit"
)

// Decimals returns the on-wire fractional precision of the token kind.
func (k TokenKind) Decimals() int {
	if k == TokenCredit {
		return 18
	}
	return 6
}

// Valid reports whether k names a known participation unit.
func (k TokenKind) Valid() bool {
	return k == TokenStable || k == TokenCredit
}

// AccountingDecimals is the fixed scale every pool, fee, threshold and
// pro-rata computation runs at. Wire amounts in other scales are converted
// at the boundary.
const AccountingDecimals = 6

// unitsPerWhole is 10^AccountingDecimals.
const unitsPerWhole = 1_000_000

// Money is an amount of participation value in micro-units (6 decimals).
// It is a plain integer so ledgers can add and compare without rounding.
type Money int64

// MoneyFromWhole converts a whole-unit amount (e.g. dollars) to Money.
func MoneyFromWhole(whole int64) Money {
	return Money(whole * unitsPerWhole)
}

// Add returns m + other.
func (m Money) Add(other Money) Money { return m + other }

// Sub returns m - other.
func (m Money) Sub(other Money) Money { return m - other }

// IsZero reports whether the amount is exactly zero.
func (m Money) IsZero() bool { return m == 0 }

// IsNegative reports whether the amount is below zero.
func (m Money) IsNegative() bool { return m < 0 }

// FeeBps returns the fee cut of m at the given basis points, truncating
// toward zero. 10000 bps is the whole amount.
func (m Money) FeeBps(bps int) Money {
	return mulDiv(m, Money(bps), 10_000)
}

// String renders the amount in whole units with all six decimals, e.g.
// "115.200000".
func (m Money) String() string {
	sign := ""
	v := int64(m)
	if v < 0 {
		sign = "-"
		v = -v
	}
	return fmt.Sprintf("%s%d.%06d", sign, v/unitsPerWhole, v%unitsPerWhole)
}

// ProRata returns pot * share / total, the payout owed to a holder of
// `share` claims out of `total` supply. Returns zero when total is zero.
// The intermediate product is taken over big.Int so large pools cannot
// overflow; the result truncates toward zero.
func ProRata(pot, share, total Money) Money {
	if total == 0 {
		return 0
	}
	return mulDiv(pot, share, total)
}

// mulDiv computes a*b/c with a big.Int intermediate, truncating.
func mulDiv(a, b, c Money) Money {
	if c == 0 {
		return 0
	}
	prod := new(big.Int).Mul(big.NewInt(int64(a)), big.NewInt(int64(b)))
	prod.Quo(prod, big.NewInt(int64(c)))
	return Money(prod.Int64())
}

// wireScaleFactor returns 10^(decimals-AccountingDecimals) for kinds with a
// finer wire precision than the accounting scale.
func wireScaleFactor(kind TokenKind) *big.Int {
	diff := kind.Decimals() - AccountingDecimals
	if diff <= 0 {
		return big.NewInt(1)
	}
	return new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(diff)), nil)
}

// ParseWireAmount converts an on-wire token amount (in the kind's smallest
// unit) into accounting Money. Credit amounts carrying sub-micro dust are
// rejected rather than silently rounded, so no value can leak between the
// wire and the accounting ledgers.
func ParseWireAmount(raw *big.Int, kind TokenKind) (Money, error) {
	if raw == nil || raw.Sign() < 0 {
		return 0, fmt.Errorf("domain: parse wire amount: %w", ErrOutOfBounds)
	}
	factor := wireScaleFactor(kind)
	quo, rem := new(big.Int).QuoRem(raw, factor, new(big.Int))
	if rem.Sign() != 0 {
		return 0, fmt.Errorf("domain: wire amount %s has sub-accounting dust: %w", raw, ErrOutOfBounds)
	}
	if !quo.IsInt64() {
		return 0, fmt.Errorf("domain: wire amount %s exceeds ledger range: %w", raw, ErrOutOfBounds)
	}
	return Money(quo.Int64()), nil
}

// WireAmount converts accounting Money back to the kind's on-wire smallest
// unit.
func WireAmount(m Money, kind TokenKind) *big.Int {
	return new(big.Int).Mul(big.NewInt(int64(m)), wireScaleFactor(kind))
}

// ParseMoney parses a decimal string like "115.2" or "25" into Money.
// At most six fractional digits are accepted.
func ParseMoney(s string) (Money, error) {
	s = strings.TrimSpace(s)
	neg := strings.HasPrefix(s, "-")
	if neg {
		s = s[1:]
	}
	whole, frac, _ := strings.Cut(s, ".")
	if whole == "" {
		whole = "0"
	}
	if len(frac) > AccountingDecimals {
		return 0, fmt.Errorf("domain: amount %q has more than %d decimals: %w", s, AccountingDecimals, ErrOutOfBounds)
	}
	frac += strings.Repeat("0", AccountingDecimals-len(frac))

	var w, f int64
	if _, err := fmt.Sscanf(whole, "%d", &w); err != nil {
		return 0, fmt.Errorf("domain: parse amount %q: %w", s, ErrOutOfBounds)
	}
	if frac != "000000" {
		if _, err := fmt.Sscanf(frac, "%d", &f); err != nil {
			return 0, fmt.Errorf("domain: parse amount %q: %w", s, ErrOutOfBounds)
		}
	}
	v := Money(w*unitsPerWhole + f)
	if neg {
		v = -v
	}
	return v, nil
}
