package game_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/blendizzard/block-server/account"
	"github.com/blendizzard/block-server/fp"
	"github.com/blendizzard/block-server/game"
	"github.com/blendizzard/block-server/game/verifier"
	"github.com/blendizzard/block-server/internal/nktest"
)

type fakeVault struct{}

func (fakeVault) Deposit(ctx context.Context, userID string, amount int64) (int64, error) {
	return amount, nil
}

func (fakeVault) Withdraw(ctx context.Context, userID string, amount int64) (int64, error) {
	return amount, nil
}

type fakeStandings struct {
	faction uint32
	delta   int64
	calls   int
}

func (s *fakeStandings) CreditStanding(ctx context.Context, nk account.Store, epoch uint32, faction uint32, delta int64, now time.Time) error {
	s.calls++
	s.faction = faction
	s.delta = delta
	return nil
}

func depositAndSelect(t *testing.T, nk account.Store, userID string, amount int64, faction uint32, now time.Time) {
	t.Helper()
	_, _, err := account.Deposit(context.Background(), nk, fakeVault{}, 0, userID, amount, now)
	require.NoError(t, err)

	p, found, version, err := account.LoadPlayer(context.Background(), nk, userID)
	require.NoError(t, err)
	require.True(t, found)
	p.HasFaction = true
	p.SelectedFaction = faction
	require.NoError(t, account.SavePlayer(context.Background(), nk, userID, p, version, now))
}

func TestStartGameLocksWagerFromAvailableFP(t *testing.T) {
	nk := nktest.New()
	now := time.Now()
	depositAndSelect(t, nk, "p1", 1000*fp.ONE, 0, now)
	depositAndSelect(t, nk, "p2", 1000*fp.ONE, 1, now)

	available, err := fp.Derive(1000*fp.ONE, 0)
	require.NoError(t, err)

	err = game.StartGame(context.Background(), nk, passthroughLocker{}, 0, now.Unix(), "game-1", "sess-1", "p1", "p2", available/2, available/2, now)
	require.NoError(t, err)

	ep1, err := account.GetEpochPlayer(context.Background(), nk, 0, "p1")
	require.NoError(t, err)
	assert.EqualValues(t, available-available/2, ep1.AvailableFP)
	assert.EqualValues(t, available/2, ep1.LockedFP)
}

func TestStartGameRejectsWagerAboveAvailableFP(t *testing.T) {
	nk := nktest.New()
	now := time.Now()
	depositAndSelect(t, nk, "p1", 10*fp.ONE, 0, now)
	depositAndSelect(t, nk, "p2", 10*fp.ONE, 1, now)

	err := game.StartGame(context.Background(), nk, passthroughLocker{}, 0, now.Unix(), "game-1", "sess-1", "p1", "p2", 1_000_000_000, 10, now)
	assert.Error(t, err)
}

func TestStartGameRejectsDuplicateSessionID(t *testing.T) {
	nk := nktest.New()
	now := time.Now()
	depositAndSelect(t, nk, "p1", 1000*fp.ONE, 0, now)
	depositAndSelect(t, nk, "p2", 1000*fp.ONE, 1, now)

	require.NoError(t, game.StartGame(context.Background(), nk, passthroughLocker{}, 0, now.Unix(), "game-1", "sess-1", "p1", "p2", 10, 10, now))
	err := game.StartGame(context.Background(), nk, passthroughLocker{}, 0, now.Unix(), "game-1", "sess-1", "p1", "p2", 10, 10, now)
	assert.Error(t, err)
}

func TestEndGameCreditsWinnerAndBurnsLoser(t *testing.T) {
	nk := nktest.New()
	now := time.Now()
	depositAndSelect(t, nk, "p1", 1000*fp.ONE, 0, now)
	depositAndSelect(t, nk, "p2", 1000*fp.ONE, 1, now)

	require.NoError(t, game.StartGame(context.Background(), nk, passthroughLocker{}, 0, now.Unix(), "game-1", "sess-1", "p1", "p2", 500, 700, now))

	standings := &fakeStandings{}
	outcome := verifier.Outcome{GameContract: "game-1", SessionID: "sess-1", Player1: "p1", Player2: "p2", Player1Won: true}
	winner, deltaFP, err := game.EndGame(context.Background(), nk, verifier.Trusted{}, standings, 0, []byte("proof"), outcome, now)
	require.NoError(t, err)
	assert.Equal(t, "p1", winner)
	assert.EqualValues(t, 500, deltaFP)
	assert.Equal(t, 1, standings.calls)
	assert.EqualValues(t, 0, standings.faction)
	assert.EqualValues(t, 500, standings.delta)

	loser, err := account.GetEpochPlayer(context.Background(), nk, 0, "p2")
	require.NoError(t, err)
	assert.EqualValues(t, 0, loser.LockedFP)
}

func TestEndGameRejectsMismatchedOutcome(t *testing.T) {
	nk := nktest.New()
	now := time.Now()
	depositAndSelect(t, nk, "p1", 1000*fp.ONE, 0, now)
	depositAndSelect(t, nk, "p2", 1000*fp.ONE, 1, now)
	require.NoError(t, game.StartGame(context.Background(), nk, passthroughLocker{}, 0, now.Unix(), "game-1", "sess-1", "p1", "p2", 10, 10, now))

	standings := &fakeStandings{}
	outcome := verifier.Outcome{GameContract: "game-2", SessionID: "sess-1", Player1: "p1", Player2: "p2", Player1Won: true}
	_, _, err := game.EndGame(context.Background(), nk, verifier.Trusted{}, standings, 0, []byte("proof"), outcome, now)
	assert.Error(t, err)
}

func TestEndGameRejectsExpiredCrossEpochSession(t *testing.T) {
	nk := nktest.New()
	now := time.Now()
	depositAndSelect(t, nk, "p1", 1000*fp.ONE, 0, now)
	depositAndSelect(t, nk, "p2", 1000*fp.ONE, 1, now)
	require.NoError(t, game.StartGame(context.Background(), nk, passthroughLocker{}, 0, now.Unix(), "game-1", "sess-1", "p1", "p2", 10, 10, now))

	standings := &fakeStandings{}
	outcome := verifier.Outcome{GameContract: "game-1", SessionID: "sess-1", Player1: "p1", Player2: "p2", Player1Won: true}
	_, _, err := game.EndGame(context.Background(), nk, verifier.Trusted{}, standings, 1, []byte("proof"), outcome, now)
	assert.Error(t, err)
}

func TestReclaimExpiredSessionRefundsBothWagers(t *testing.T) {
	nk := nktest.New()
	now := time.Now()
	depositAndSelect(t, nk, "p1", 1000*fp.ONE, 0, now)
	depositAndSelect(t, nk, "p2", 1000*fp.ONE, 1, now)
	require.NoError(t, game.StartGame(context.Background(), nk, passthroughLocker{}, 0, now.Unix(), "game-1", "sess-1", "p1", "p2", 500, 700, now))

	require.NoError(t, game.ReclaimExpiredSession(context.Background(), nk, 1, "sess-1", now))

	ep1, err := account.GetEpochPlayer(context.Background(), nk, 0, "p1")
	require.NoError(t, err)
	assert.EqualValues(t, 0, ep1.LockedFP)

	ep2, err := account.GetEpochPlayer(context.Background(), nk, 0, "p2")
	require.NoError(t, err)
	assert.EqualValues(t, 0, ep2.LockedFP)
}

func TestReclaimExpiredSessionRejectsNotYetExpired(t *testing.T) {
	nk := nktest.New()
	now := time.Now()
	depositAndSelect(t, nk, "p1", 1000*fp.ONE, 0, now)
	depositAndSelect(t, nk, "p2", 1000*fp.ONE, 1, now)
	require.NoError(t, game.StartGame(context.Background(), nk, passthroughLocker{}, 0, now.Unix(), "game-1", "sess-1", "p1", "p2", 10, 10, now))

	err := game.ReclaimExpiredSession(context.Background(), nk, 0, "sess-1", now)
	assert.Error(t, err)
}

// passthroughLocker satisfies game.FactionLocker by copying
// account.Player.SelectedFaction into the epoch record without going
// through the faction package. Unlike faction.LockEpochFaction it returns
// nil, not an error, when the player has never selected a faction.
type passthroughLocker struct{}

func (passthroughLocker) LockEpochFaction(ctx context.Context, nk account.Store, userID string, ep *account.EpochPlayer) error {
	if ep.HasFaction {
		return nil
	}
	p, found, _, err := account.LoadPlayer(ctx, nk, userID)
	if err != nil {
		return err
	}
	if !found || !p.HasFaction {
		return nil
	}
	ep.HasFaction = true
	ep.EpochFaction = p.SelectedFaction
	return nil
}
