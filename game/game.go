// Package game implements the whitelisted game-contract session
// protocol (§4.6): start_game locks wagers out of each player's
// available FP, end_game resolves the winner and burns the loser's
// wager, and cross-epoch sessions expire unresolved.
package game

import (
	"context"
	"time"

	"github.com/blendizzard/block-server/account"
	blenderrors "github.com/blendizzard/block-server/errors"
	"github.com/blendizzard/block-server/fp"
	"github.com/blendizzard/block-server/game/verifier"
)

// FactionLocker is the narrow slice of the faction package start_game
// needs — kept as an interface so tests can stub faction selection
// without importing the faction package (which itself imports account).
type FactionLocker interface {
	LockEpochFaction(ctx context.Context, nk account.Store, userID string, ep *account.EpochPlayer) error
}

type factionLockerFunc func(ctx context.Context, nk account.Store, userID string, ep *account.EpochPlayer) error

func (f factionLockerFunc) LockEpochFaction(ctx context.Context, nk account.Store, userID string, ep *account.EpochPlayer) error {
	return f(ctx, nk, userID, ep)
}

// StandingsCredit is implemented by the epoch package, which alone owns
// EpochInfo's storage lifecycle. end_game calls back into it once the
// winner's FP ledger has been updated, so faction_standings and the
// player's own FP move inside the same logical operation without game
// importing epoch (which would cycle: epoch needs nothing from game,
// but keeping the dependency one-directional here avoids ever creating
// that cycle as both packages grow).
type StandingsCredit interface {
	CreditStanding(ctx context.Context, nk account.Store, epoch uint32, faction uint32, delta int64, now time.Time) error
}

// snapshotFPIfFirstGame mutates ep in place: if this is the player's
// first game of the epoch (ep.Snapshotted is still false), derives FP
// from the player's current deposit/holding state and seeds
// available_fp. A player who wagers their entire available_fp and
// loses can end a game at available=locked=contributed=0, so "already
// snapshotted" must be tracked explicitly rather than inferred from
// those fields being zero.
func snapshotFPIfFirstGame(ep *account.EpochPlayer, p account.Player, epochStart int64) error {
	if ep.Snapshotted {
		return nil
	}
	held := fp.Held(epochStart, p.TimeMultiplierStart)
	available, err := fp.Derive(p.TotalDeposited, held)
	if err != nil {
		return err
	}
	ep.AvailableFP = available
	ep.InitialEpochBalance = p.TotalDeposited
	ep.WithdrawnThisEpoch = 0
	ep.Snapshotted = true
	return nil
}

// StartGame implements §4.6 start_game. The whitelist check (the calling
// game is whitelisted) is the caller's responsibility; RpcStartGame
// performs it. Neither this function nor RpcStartGame authorizes p1 or p2
// themselves: the whitelisted game's call is the only authorization.
// This function performs the per-player FP-lock sequence and wager
// transfer.
func StartGame(ctx context.Context, nk account.Store, locker FactionLocker, currentEpoch uint32, epochStart int64, gameContract, sessionID, p1, p2 string, w1, w2 int64, now time.Time) error {
	if w1 <= 0 || w2 <= 0 {
		return blenderrors.ErrInvalidAmount
	}
	if _, found, _, err := loadSession(ctx, nk, sessionID); err != nil {
		return err
	} else if found {
		return blenderrors.ErrSessionAlreadyExists
	}

	if err := lockWager(ctx, nk, locker, currentEpoch, epochStart, p1, w1, now); err != nil {
		return err
	}
	if err := lockWager(ctx, nk, locker, currentEpoch, epochStart, p2, w2, now); err != nil {
		return err
	}

	session := Session{
		GameContract:       gameContract,
		SessionID:          sessionID,
		Player1:            p1,
		Player2:            p2,
		Player1Wager:       w1,
		Player2Wager:       w2,
		Status:             StatusPending,
		CreatedAtEpoch:     currentEpoch,
		CreatedAtTimestamp: now.Unix(),
	}
	return saveSession(ctx, nk, session, "", now)
}

func lockWager(ctx context.Context, nk account.Store, locker FactionLocker, currentEpoch uint32, epochStart int64, userID string, wager int64, now time.Time) error {
	p, found, _, err := account.LoadPlayer(ctx, nk, userID)
	if err != nil {
		return err
	}
	if !found {
		return blenderrors.ErrPlayerNotFound
	}

	ep, epFound, epVersion, err := account.LoadEpochPlayer(ctx, nk, currentEpoch, userID)
	if err != nil {
		return err
	}
	if !epFound {
		ep = account.EpochPlayer{InitialEpochBalance: p.TotalDeposited}
	}

	if err := snapshotFPIfFirstGame(&ep, p, epochStart); err != nil {
		return err
	}
	if err := locker.LockEpochFaction(ctx, nk, userID, &ep); err != nil {
		return err
	}

	if ep.AvailableFP < wager {
		return blenderrors.ErrInsufficientFactionPts
	}
	ep.AvailableFP -= wager
	ep.LockedFP += wager

	return account.SaveEpochPlayer(ctx, nk, currentEpoch, userID, ep, epVersion, now)
}

// EndGame implements §4.6 end_game. currentEpoch is the live epoch at
// call time. This function matches outcome's GameContract and player
// addresses against the session loaded by outcome.SessionID
// (precondition 3); the RPC layer only checks outcome's GameContract
// against the authenticated caller.
func EndGame(ctx context.Context, nk account.Store, v verifier.Verifier, standings StandingsCredit, currentEpoch uint32, proof []byte, outcome verifier.Outcome, now time.Time) (winnerID string, deltaFP int64, err error) {
	session, found, version, err := loadSession(ctx, nk, outcome.SessionID)
	if err != nil {
		return "", 0, err
	}
	if !found {
		return "", 0, blenderrors.ErrSessionNotFound
	}
	if session.Status != StatusPending {
		return "", 0, blenderrors.ErrInvalidSessionState
	}
	if session.GameContract != outcome.GameContract || session.Player1 != outcome.Player1 || session.Player2 != outcome.Player2 {
		return "", 0, blenderrors.ErrInvalidGameOutcome
	}
	if session.CreatedAtEpoch != currentEpoch {
		return "", 0, blenderrors.ErrGameExpired
	}
	if err := v.Verify(ctx, proof, outcome); err != nil {
		return "", 0, blenderrors.ErrProofVerificationFailed
	}

	session.Status = StatusCompleted
	session.HasWinner = true
	session.Player1Won = outcome.Player1Won

	winner, loser := session.Player1, session.Player2
	winWager, loseWager := session.Player1Wager, session.Player2Wager
	if !outcome.Player1Won {
		winner, loser = session.Player2, session.Player1
		winWager, loseWager = session.Player2Wager, session.Player1Wager
	}

	winningFaction, standingsDelta, err := resolveWinner(ctx, nk, currentEpoch, winner, loseWager, winWager, now)
	if err != nil {
		return "", 0, err
	}
	if err := burnLoser(ctx, nk, currentEpoch, loser, loseWager, now); err != nil {
		return "", 0, err
	}
	if err := standings.CreditStanding(ctx, nk, currentEpoch, winningFaction, standingsDelta, now); err != nil {
		return "", 0, err
	}

	if err := saveSession(ctx, nk, session, version, now); err != nil {
		return "", 0, err
	}
	return winner, winWager, nil
}

func burnLoser(ctx context.Context, nk account.Store, epoch uint32, userID string, loseWager int64, now time.Time) error {
	ep, found, version, err := account.LoadEpochPlayer(ctx, nk, epoch, userID)
	if err != nil {
		return err
	}
	if !found {
		return blenderrors.ErrInvalidSessionState
	}
	ep.LockedFP -= loseWager
	if ep.LockedFP < 0 {
		ep.LockedFP = 0
	}
	return account.SaveEpochPlayer(ctx, nk, epoch, userID, ep, version, now)
}

// resolveWinner credits the winner's available/contributed FP and
// returns the winner's locked faction id plus the standings delta
// (win_wager), leaving the actual EpochInfo.faction_standings mutation
// to the epoch package (which owns EpochInfo's storage lifecycle) —
// EndGame calls it back via StandingsCredit.CreditStanding.
func resolveWinner(ctx context.Context, nk account.Store, epoch uint32, userID string, loseWager, winWager int64, now time.Time) (faction uint32, delta int64, err error) {
	ep, found, version, err := account.LoadEpochPlayer(ctx, nk, epoch, userID)
	if err != nil {
		return 0, 0, err
	}
	if !found || !ep.HasFaction {
		return 0, 0, blenderrors.ErrInvalidSessionState
	}
	ep.LockedFP -= winWager
	if ep.LockedFP < 0 {
		ep.LockedFP = 0
	}
	ep.AvailableFP += winWager
	ep.TotalFPContributed += winWager

	if err := account.SaveEpochPlayer(ctx, nk, epoch, userID, ep, version, now); err != nil {
		return 0, 0, err
	}
	return ep.EpochFaction, winWager, nil
}
