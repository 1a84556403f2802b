package fp_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/blendizzard/block-server/fp"
)

func TestAmountMultBounds(t *testing.T) {
	// P10: amount_mult in [ONE, 2*ONE) for all inputs.
	cases := []int64{0, 1, 1000 * fp.ONE, 1_000_000 * fp.ONE, fp.AmountAsymptote}
	for _, dep := range cases {
		got, err := fp.AmountMult(dep)
		require.NoError(t, err)
		assert.GreaterOrEqual(t, got, fp.ONE)
		assert.Less(t, got, 2*fp.ONE)
	}
}

func TestAmountMultZeroIsOne(t *testing.T) {
	got, err := fp.AmountMult(0)
	require.NoError(t, err)
	assert.Equal(t, fp.ONE, got)
}

func TestTimeMultBounds(t *testing.T) {
	cases := []int64{0, 1, fp.TimeAsymptote, 365 * 24 * 60 * 60}
	for _, held := range cases {
		got, err := fp.TimeMult(held)
		require.NoError(t, err)
		assert.GreaterOrEqual(t, got, fp.ONE)
		assert.Less(t, got, 2*fp.ONE)
	}
}

func TestTimeMultZeroIsOne(t *testing.T) {
	got, err := fp.TimeMult(0)
	require.NoError(t, err)
	assert.Equal(t, fp.ONE, got)
}

func TestTimeMultNegativeHeldClampsToZero(t *testing.T) {
	got, err := fp.TimeMult(-100)
	require.NoError(t, err)
	zero, _ := fp.TimeMult(0)
	assert.Equal(t, zero, got)
}

func TestDeriveScenarioA(t *testing.T) {
	// Scenario A: Alice deposits 500*ONE at t=0, plays at t=3600.
	// amount_mult(500*ONE) = ONE + ONE/3, and the held duration is tiny
	// relative to the 30-day asymptote, so time_mult is barely above ONE:
	// fp sits about a third above the deposit (6675912499, ~667.6*ONE).
	dep := int64(500) * fp.ONE
	got, err := fp.Derive(dep, fp.Held(3600, 0))
	require.NoError(t, err)
	assert.Greater(t, got, dep)
	assert.Less(t, got, dep*3/2) // nowhere near the ~4x peak this early
}

func TestDeriveMonotonicInDeposit(t *testing.T) {
	small, err := fp.Derive(10*fp.ONE, 1000)
	require.NoError(t, err)
	large, err := fp.Derive(1000*fp.ONE, 1000)
	require.NoError(t, err)
	assert.Greater(t, large, small)
}

func TestDeriveMonotonicInHeld(t *testing.T) {
	dep := int64(100) * fp.ONE
	early, err := fp.Derive(dep, 0)
	require.NoError(t, err)
	late, err := fp.Derive(dep, fp.TimeAsymptote*10)
	require.NoError(t, err)
	assert.Greater(t, late, early)
}

func TestDeriveNegativeDepositRejected(t *testing.T) {
	_, err := fp.Derive(-1, 0)
	assert.Error(t, err)
}

func TestDerivePeakApproachesFourX(t *testing.T) {
	// Large deposit, long hold: both multipliers approach 2*ONE, so fp
	// should approach (but never reach) 4x the deposit.
	dep := int64(10_000_000) * fp.ONE
	held := fp.TimeAsymptote * 1000
	got, err := fp.Derive(dep, held)
	require.NoError(t, err)
	assert.Greater(t, got, dep*3)
	assert.LessOrEqual(t, got, dep*4)
}

func TestHeldClampsToZero(t *testing.T) {
	assert.EqualValues(t, 0, fp.Held(100, 200))
	assert.EqualValues(t, 100, fp.Held(300, 200))
}
