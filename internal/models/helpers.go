package models

import (
	"fmt"
	"math/big"
)

// ParseAmount parses a decimal native-currency amount ("0.1"). Amounts stay
// as strings everywhere else so ledger-confirmed values survive unrounded.
func ParseAmount(s string) (*big.Float, error) {
	if s == "" {
		return nil, fmt.Errorf("empty amount")
	}

	f, ok := new(big.Float).SetString(s)
	if !ok {
		return nil, fmt.Errorf("invalid amount: %q", s)
	}

	return f, nil
}

// ValidStake reports whether s parses as a strictly positive amount.
func ValidStake(s string) bool {
	f, err := ParseAmount(s)
	if err != nil {
		return false
	}
	return f.Sign() > 0
}

// PayoutMultiplier derives the effective multiplier of a finished game from
// its ledger-confirmed payout and stake, formatted for display. Returns ""
// when either amount is missing or the stake is zero.
func PayoutMultiplier(payout, stake string) string {
	p, err := ParseAmount(payout)
	if err != nil {
		return ""
	}

	b, err := ParseAmount(stake)
	if err != nil || b.Sign() == 0 {
		return ""
	}

	m, _ := new(big.Float).Quo(p, b).Float64()
	return fmt.Sprintf("%.2f", m)
}

// FormatMultiplier rounds a live multiplier for display. Rounding happens
// only here, never inside the multiplier math.
func FormatMultiplier(m float64) string {
	return fmt.Sprintf("%.4f", m)
}
