package game

import (
	"context"
	"time"

	"github.com/blendizzard/block-server/account"
	blenderrors "github.com/blendizzard/block-server/errors"
)

// ReclaimExpiredSession implements the supplemented feature noted at
// OQ2: a permissionless way to unwind a session that expired before
// end_game ever resolved it. Since no verified outcome exists, the
// session is voided rather than guessing a winner — both players'
// locked wagers return to their respective epoch's available_fp, and
// the session is marked Cancelled so it can never be completed later.
// Without this, the stranded wagers stay locked forever, invisible to
// the player and with no compensating event.
func ReclaimExpiredSession(ctx context.Context, nk account.Store, currentEpoch uint32, sessionID string, now time.Time) error {
	session, found, version, err := loadSession(ctx, nk, sessionID)
	if err != nil {
		return err
	}
	if !found {
		return blenderrors.ErrSessionNotFound
	}
	if session.Status != StatusPending {
		return blenderrors.ErrInvalidSessionState
	}
	if session.CreatedAtEpoch == currentEpoch {
		return blenderrors.ErrInvalidSessionState // not expired yet; use end_game
	}

	if err := refundWager(ctx, nk, session.CreatedAtEpoch, session.Player1, session.Player1Wager, now); err != nil {
		return err
	}
	if err := refundWager(ctx, nk, session.CreatedAtEpoch, session.Player2, session.Player2Wager, now); err != nil {
		return err
	}

	session.Status = StatusCancelled
	return saveSession(ctx, nk, session, version, now)
}

func refundWager(ctx context.Context, nk account.Store, epoch uint32, userID string, wager int64, now time.Time) error {
	ep, found, version, err := account.LoadEpochPlayer(ctx, nk, epoch, userID)
	if err != nil {
		return err
	}
	if !found {
		// No EpochPlayer stored for this epoch; nothing to credit back.
		return nil
	}
	ep.LockedFP -= wager
	if ep.LockedFP < 0 {
		ep.LockedFP = 0
	}
	ep.AvailableFP += wager
	return account.SaveEpochPlayer(ctx, nk, epoch, userID, ep, version, now)
}
