package money

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// USD is a fixed-point dollar amount stored as micro-dollars (10^-6 USD).
// One micro-dollar equals one atomic unit of a 6-decimal stablecoin, so
// conversion to on-chain amounts is the identity.
type USD int64

// MicrosPerDollar is the number of atomic units in one dollar.
const MicrosPerDollar = 1_000_000

// FromFloat converts a float dollar amount to USD, rounding to the nearest
// micro-dollar. Prefer ParseUSD for anything that came over the wire; floats
// are for callers that already hold one.
func FromFloat(v float64) USD {
	if v <= 0 {
		return 0
	}
	return USD(math.Round(v * MicrosPerDollar))
}

// ParseUSD parses a decimal dollar string ("0.01", "1", "0.0025") into USD.
// Digits past the sixth decimal place are dropped, never rounded up.
func ParseUSD(s string) (USD, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, fmt.Errorf("empty amount")
	}
	neg := strings.HasPrefix(s, "-")
	if neg {
		return 0, fmt.Errorf("negative amount %q", s)
	}

	whole, frac, _ := strings.Cut(s, ".")
	if whole == "" {
		whole = "0"
	}

	w, err := strconv.ParseInt(whole, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid amount %q: %w", s, err)
	}

	if len(frac) > 6 {
		frac = frac[:6]
	}
	var f int64
	if frac != "" {
		f, err = strconv.ParseInt(frac, 10, 64)
		if err != nil {
			return 0, fmt.Errorf("invalid amount %q: %w", s, err)
		}
		for i := len(frac); i < 6; i++ {
			f *= 10
		}
	}

	return USD(w*MicrosPerDollar + f), nil
}

// Atomic returns the amount as a decimal string of atomic stablecoin units,
// the format payment requirements use on the wire.
func (u USD) Atomic() string {
	if u < 0 {
		return "0"
	}
	return strconv.FormatInt(int64(u), 10)
}

// Float returns the amount as a float dollar value. Display use only.
func (u USD) Float() float64 {
	return float64(u) / MicrosPerDollar
}

// Format renders the amount for human display. Amounts of a cent or more get
// exactly two decimal places; smaller amounts keep up to six with trailing
// zeros trimmed.
func (u USD) Format() string {
	if u < 0 {
		u = 0
	}
	if u >= MicrosPerDollar/100 { // >= $0.01
		cents := (int64(u) + 0) / (MicrosPerDollar / 100)
		return fmt.Sprintf("%d.%02d", cents/100, cents%100)
	}

	s := fmt.Sprintf("0.%06d", int64(u))
	s = strings.TrimRight(s, "0")
	if strings.HasSuffix(s, ".") {
		s += "00"
	}
	return s
}
