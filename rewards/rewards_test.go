package rewards_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/blendizzard/block-server/account"
	"github.com/blendizzard/block-server/config"
	"github.com/blendizzard/block-server/epoch"
	"github.com/blendizzard/block-server/internal/nktest"
	"github.com/blendizzard/block-server/rewards"
)

type fakeToken struct {
	transfers []transfer
	err       error
}

type transfer struct {
	token       string
	destination string
	amount      int64
}

func (f *fakeToken) Transfer(ctx context.Context, token string, destination string, amount int64) error {
	if f.err != nil {
		return f.err
	}
	f.transfers = append(f.transfers, transfer{token, destination, amount})
	return nil
}

type nopVault struct{}

func (nopVault) GetUnderlying(ctx context.Context) (int64, error)                   { return 0, nil }
func (nopVault) AdminWithdraw(ctx context.Context, d string, a int64) (int64, error) { return 0, nil }
func (nopVault) ClaimEmissions(ctx context.Context, r []uint32) (int64, error)       { return 0, nil }

type nopAMM struct{}

func (nopAMM) QuoteExactIn(ctx context.Context, in, out string, amt int64) (int64, error) {
	return 0, nil
}
func (nopAMM) SwapExactIn(ctx context.Context, in, out string, amt, min int64) (int64, error) {
	return 0, nil
}

// fixedBalanceToken reports 0 on the first BalanceOf call and balance on
// the second, so CycleEpoch measures reward_pool as exactly balance.
type fixedBalanceToken struct {
	balance int64
	calls   int
}

func (f *fixedBalanceToken) BalanceOf(ctx context.Context, token, address string) (int64, error) {
	f.calls++
	if f.calls == 1 {
		return 0, nil
	}
	return f.balance, nil
}

func testConfig() config.Config {
	return config.Config{
		PayoutToken:          "payout-token",
		EpochDurationSeconds: 86400,
		DustGraceSeconds:     3600,
		Treasury:             "treasury-addr",
	}
}

func epochPlayerWithContribution(t *testing.T, nk *nktest.NK, userID string, faction uint32, contributed int64, now time.Time) {
	t.Helper()
	require.NoError(t, account.SaveEpochPlayer(context.Background(), nk, 0, userID, account.EpochPlayer{
		HasFaction:         true,
		EpochFaction:       faction,
		TotalFPContributed: contributed,
	}, "", now))
}

func TestGetClaimableAmountZeroBeforeFinalized(t *testing.T) {
	nk := nktest.New()
	now := time.Now()
	require.NoError(t, epoch.CreateInitialEpoch(context.Background(), nk, now.Add(-90000*time.Second).Unix(), 86400))
	epochPlayerWithContribution(t, nk, "alice", 1, 500, now)

	claim, err := rewards.GetClaimableAmount(context.Background(), nk, 0, "alice")
	require.NoError(t, err)
	assert.EqualValues(t, 0, claim)
}

func TestClaimYieldEpochNotFinalized(t *testing.T) {
	nk := nktest.New()
	now := time.Now()
	require.NoError(t, epoch.CreateInitialEpoch(context.Background(), nk, now.Unix(), 86400))

	_, err := rewards.ClaimYield(context.Background(), nk, &fakeToken{}, "payout-token", 0, "alice", now)
	assert.Error(t, err)
}

func TestClaimYieldPaysWinningFactionShare(t *testing.T) {
	nk := nktest.New()
	now := time.Now()
	epochStart := now.Add(-90000 * time.Second)
	require.NoError(t, epoch.CreateInitialEpoch(context.Background(), nk, epochStart.Unix(), 86400))

	// alice is the sole contributor to faction 1's 500 standing.
	require.NoError(t, epoch.CreditStanding(context.Background(), nk, 0, 1, 500, now))
	epochPlayerWithContribution(t, nk, "alice", 1, 500, now)

	_, _, err := epoch.CycleEpoch(context.Background(), nktest.Logger{}, nk, nopVault{}, nopAMM{}, &fixedBalanceToken{balance: 1000}, testConfig(), 0, now)
	require.NoError(t, err)

	claim, err := rewards.GetClaimableAmount(context.Background(), nk, 0, "alice")
	require.NoError(t, err)
	assert.EqualValues(t, 1000, claim) // alice is the sole winning-faction contributor, gets the whole pool

	token := &fakeToken{}
	paid, err := rewards.ClaimYield(context.Background(), nk, token, "payout-token", 0, "alice", now)
	require.NoError(t, err)
	assert.EqualValues(t, 1000, paid)
	require.Len(t, token.transfers, 1)
	assert.Equal(t, "alice", token.transfers[0].destination)
	assert.EqualValues(t, 1000, token.transfers[0].amount)

	claimed, err := rewards.HasClaimedRewards(context.Background(), nk, 0, "alice")
	require.NoError(t, err)
	assert.True(t, claimed)
}

func TestClaimYieldRejectsDoubleClaim(t *testing.T) {
	nk := nktest.New()
	now := time.Now()
	epochStart := now.Add(-90000 * time.Second)
	require.NoError(t, epoch.CreateInitialEpoch(context.Background(), nk, epochStart.Unix(), 86400))
	require.NoError(t, epoch.CreditStanding(context.Background(), nk, 0, 1, 500, now))
	epochPlayerWithContribution(t, nk, "alice", 1, 500, now)
	_, _, err := epoch.CycleEpoch(context.Background(), nktest.Logger{}, nk, nopVault{}, nopAMM{}, &fixedBalanceToken{balance: 1000}, testConfig(), 0, now)
	require.NoError(t, err)

	token := &fakeToken{}
	_, err = rewards.ClaimYield(context.Background(), nk, token, "payout-token", 0, "alice", now)
	require.NoError(t, err)

	_, err = rewards.ClaimYield(context.Background(), nk, token, "payout-token", 0, "alice", now)
	assert.Error(t, err)
}

func TestClaimYieldRejectsNonWinningFaction(t *testing.T) {
	nk := nktest.New()
	now := time.Now()
	epochStart := now.Add(-90000 * time.Second)
	require.NoError(t, epoch.CreateInitialEpoch(context.Background(), nk, epochStart.Unix(), 86400))
	require.NoError(t, epoch.CreditStanding(context.Background(), nk, 0, 1, 500, now))
	epochPlayerWithContribution(t, nk, "bob", 2, 500, now)
	_, _, err := epoch.CycleEpoch(context.Background(), nktest.Logger{}, nk, nopVault{}, nopAMM{}, &fixedBalanceToken{balance: 1000}, testConfig(), 0, now)
	require.NoError(t, err)

	_, err = rewards.ClaimYield(context.Background(), nk, &fakeToken{}, "payout-token", 0, "bob", now)
	assert.Error(t, err)
}

func TestSweepDustBeforeGraceWindowFails(t *testing.T) {
	nk := nktest.New()
	now := time.Now()
	// The epoch ended 600s ago, so the 3600s grace window runs until
	// now+3000 and a sweep at now falls inside it.
	epochStart := now.Add(-87000 * time.Second)
	require.NoError(t, epoch.CreateInitialEpoch(context.Background(), nk, epochStart.Unix(), 86400))
	_, _, err := epoch.CycleEpoch(context.Background(), nktest.Logger{}, nk, nopVault{}, nopAMM{}, &fixedBalanceToken{balance: 1000}, testConfig(), 0, now)
	require.NoError(t, err)

	_, err = rewards.SweepDust(context.Background(), nk, &fakeToken{}, "payout-token", "treasury-addr", 0, 3600, now)
	assert.Error(t, err)
}

func TestSweepDustAfterGraceWindowSweepsRemainder(t *testing.T) {
	nk := nktest.New()
	now := time.Now()
	epochStart := now.Add(-90000 * time.Second)
	require.NoError(t, epoch.CreateInitialEpoch(context.Background(), nk, epochStart.Unix(), 86400))
	require.NoError(t, epoch.CreditStanding(context.Background(), nk, 0, 1, 500, now))
	epochPlayerWithContribution(t, nk, "alice", 1, 300, now)
	_, _, err := epoch.CycleEpoch(context.Background(), nktest.Logger{}, nk, nopVault{}, nopAMM{}, &fixedBalanceToken{balance: 1000}, testConfig(), 0, now)
	require.NoError(t, err)

	claimToken := &fakeToken{}
	claim, err := rewards.ClaimYield(context.Background(), nk, claimToken, "payout-token", 0, "alice", now)
	require.NoError(t, err)
	assert.EqualValues(t, 600, claim) // alice holds 300/500 of the winning standing

	later := now.Add(2 * time.Hour)
	sweepToken := &fakeToken{}
	swept, err := rewards.SweepDust(context.Background(), nk, sweepToken, "payout-token", "treasury-addr", 0, 3600, later)
	require.NoError(t, err)
	assert.EqualValues(t, 400, swept) // 1000 reward pool - 600 already claimed
	require.Len(t, sweepToken.transfers, 1)
	assert.Equal(t, "treasury-addr", sweepToken.transfers[0].destination)

	// A second sweep call finds nothing left to move.
	swept, err = rewards.SweepDust(context.Background(), nk, sweepToken, "payout-token", "treasury-addr", 0, 3600, later)
	require.NoError(t, err)
	assert.EqualValues(t, 0, swept)
	assert.Len(t, sweepToken.transfers, 1)
}
