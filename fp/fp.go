// Package fp implements the faction-point derivation formula from
// spec.md §4.4 as checked, floor-rounded fixed-point integer arithmetic.
// No native floats, ever — a rounding drift here is a player-visible
// accounting bug.
package fp

import (
	"math/big"

	blenderrors "github.com/blendizzard/block-server/errors"
)

// ONE is the fixed-point unit: 7 decimal digits of precision.
const ONE int64 = 10_000_000

// AmountAsymptote is the deposit-amount curve's half-scale constant,
// nominally $1000-equivalent in 7-decimal fixed point.
const AmountAsymptote int64 = 1000 * ONE

// TimeAsymptote is the holding-duration curve's half-scale constant, 30
// days in seconds.
const TimeAsymptote int64 = 30 * 24 * 60 * 60

// MulDivFloor computes floor(a*b/c) using big.Int to detect overflow
// exactly rather than relying on int64 wraparound, and returns
// ErrOverflow if the quotient cannot be represented in an int64 on the
// way back out (the spec's "overflow is a fatal error, not silent
// truncation" rule). Exported for the rewards package's own floor-rounded
// share/claim derivation (§4.8), which needs the identical semantics.
func MulDivFloor(a, b, c int64) (int64, error) {
	if c == 0 {
		return 0, blenderrors.ErrDivisionByZero
	}
	bigA := big.NewInt(a)
	bigB := big.NewInt(b)
	bigC := big.NewInt(c)

	product := new(big.Int).Mul(bigA, bigB)
	quotient := new(big.Int).Div(product, bigC) // big.Int.Div floors toward -Inf for positive operands, matching floor semantics here since all operands are non-negative

	if !quotient.IsInt64() {
		return 0, blenderrors.ErrOverflow
	}
	return quotient.Int64(), nil
}

// AmountMult returns the deposit-amount multiplier for a deposit of dep
// (7-decimal fixed point, dep >= 0). Result is in [ONE, 2*ONE).
//
//	amount_mult(dep) = ONE + dep*ONE / (dep + AMOUNT_ASYMPTOTE)
func AmountMult(dep int64) (int64, error) {
	if dep < 0 {
		return 0, blenderrors.ErrInvalidAmount
	}
	term, err := MulDivFloor(dep, ONE, dep+AmountAsymptote)
	if err != nil {
		return 0, err
	}
	return ONE + term, nil
}

// TimeMult returns the holding-duration multiplier for held seconds
// (held >= 0). Result is in [ONE, 2*ONE).
//
//	time_mult(held) = ONE + held*ONE / (held + TIME_ASYMPTOTE)
func TimeMult(held int64) (int64, error) {
	if held < 0 {
		held = 0
	}
	term, err := MulDivFloor(held, ONE, held+TimeAsymptote)
	if err != nil {
		return 0, err
	}
	return ONE + term, nil
}

// Derive computes available FP for a deposit of dep (7-decimal fixed
// point) held for held seconds, floor-rounding at every step:
//
//	fp = dep * amount_mult(dep) * time_mult(held) / ONE^2
func Derive(dep int64, held int64) (int64, error) {
	if dep < 0 {
		return 0, blenderrors.ErrInvalidAmount
	}
	if held < 0 {
		held = 0
	}

	am, err := AmountMult(dep)
	if err != nil {
		return 0, err
	}
	tm, err := TimeMult(held)
	if err != nil {
		return 0, err
	}

	// floor(dep * am / ONE), then floor(that * tm / ONE) — matches the
	// spec's "floor rounding at each step", not a single combined division.
	step1, err := MulDivFloor(dep, am, ONE)
	if err != nil {
		return 0, err
	}
	step2, err := MulDivFloor(step1, tm, ONE)
	if err != nil {
		return 0, err
	}
	return step2, nil
}

// Held returns max(0, now-start) in seconds, the held-duration input to
// TimeMult.
func Held(nowUnix, startUnix int64) int64 {
	held := nowUnix - startUnix
	if held < 0 {
		return 0
	}
	return held
}
