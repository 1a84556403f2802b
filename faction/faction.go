// Package faction owns the persistent faction preference (Player.selected_faction)
// and the per-epoch lock-in performed on a player's first game of an
// epoch (EpochPlayer.epoch_faction). The two are deliberately decoupled:
// changing your preference never reaches back into an epoch that has
// already locked.
package faction

import (
	"context"
	"time"

	"github.com/blendizzard/block-server/account"
	blenderrors "github.com/blendizzard/block-server/errors"
)

// NumFactions is the size of the faction ID space, {0,1,2}.
const NumFactions = 3

// SelectFaction implements §4.5 select_faction(player, f). Always
// allowed; only ever touches Player.selected_faction.
func SelectFaction(ctx context.Context, nk account.Store, userID string, f uint32, now time.Time) error {
	if f >= NumFactions {
		return blenderrors.ErrInvalidFaction
	}

	p, found, version, err := account.LoadPlayer(ctx, nk, userID)
	if err != nil {
		return err
	}
	if !found {
		p = account.Player{TimeMultiplierStart: now.Unix()}
	}
	p.HasFaction = true
	p.SelectedFaction = f

	return account.SavePlayer(ctx, nk, userID, p, version, now)
}

// LockEpochFaction implements §4.5's internal lock_epoch_faction,
// invoked by the game package on a player's first game of an epoch. If
// ep.HasFaction is already true this is a no-op: the epoch's lock is
// immutable (P5). Otherwise it reads Player.selected_faction, failing
// FactionNotSelected if the player has never chosen one, and locks it
// into ep.
func LockEpochFaction(ctx context.Context, nk account.Store, userID string, ep *account.EpochPlayer) error {
	if ep.HasFaction {
		return nil
	}
	p, found, _, err := account.LoadPlayer(ctx, nk, userID)
	if err != nil {
		return err
	}
	if !found || !p.HasFaction {
		return blenderrors.ErrFactionNotSelected
	}
	ep.HasFaction = true
	ep.EpochFaction = p.SelectedFaction
	return nil
}

// IsFactionLocked is the is_faction_locked query: true once the player
// has ever selected a faction (persistent preference), independent of
// any epoch's lock state.
func IsFactionLocked(ctx context.Context, nk account.Store, userID string) (bool, error) {
	p, found, _, err := account.LoadPlayer(ctx, nk, userID)
	if err != nil {
		return false, err
	}
	return found && p.HasFaction, nil
}
