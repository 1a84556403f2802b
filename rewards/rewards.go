// Package rewards implements the claim side of the epoch lifecycle
// (§4.8): the get_claimable_amount share/floor derivation, claim_yield's
// check-effects-interactions claim, and the admin dust sweep that
// recovers rounding remainder left in the payout-token ledger after a
// grace period. Grounded on account's storage shape (typed envelope
// reads/writes with OCC versions) and epoch's EpochInfo lifecycle.
package rewards

import (
	"context"
	"encoding/json"
	"time"

	"github.com/heroiclabs/nakama-common/runtime"

	"github.com/blendizzard/block-server/account"
	blenderrors "github.com/blendizzard/block-server/errors"
	"github.com/blendizzard/block-server/epoch"
	"github.com/blendizzard/block-server/events"
	"github.com/blendizzard/block-server/fp"
	"github.com/blendizzard/block-server/keyspace"
	"github.com/blendizzard/block-server/nkport"
)

// Store is the storage + event-emission slice this package needs.
type Store interface {
	nkport.StorageClient
	nkport.MultiUpdateClient
	nkport.EventClient
}

// Token is the narrow slice of tokenclient.Client claim_yield and
// sweep_dust need.
type Token interface {
	Transfer(ctx context.Context, token string, destination string, amount int64) error
}

type claimedMarker struct {
	Amount int64 `json:"amount"`
}

func loadClaimed(ctx context.Context, nk nkport.StorageClient, epochNum uint32, userID string) (marker claimedMarker, found bool, err error) {
	objs, err := nk.StorageRead(ctx, []*runtime.StorageRead{{
		Collection: keyspace.CollectionClaimed,
		Key:        keyspace.ClaimedKey(epochNum, userID),
		UserID:     userID,
	}})
	if err != nil {
		return claimedMarker{}, false, blenderrors.ErrCouldNotReadStorage
	}
	if len(objs) == 0 {
		return claimedMarker{}, false, nil
	}
	var env keyspace.Envelope[claimedMarker]
	if err := json.Unmarshal([]byte(objs[0].Value), &env); err != nil {
		return claimedMarker{}, false, blenderrors.ErrUnmarshal
	}
	return env.Value, true, nil
}

func buildClaimedWrite(epochNum uint32, userID string, amount int64, now time.Time) (*runtime.StorageWrite, error) {
	env := keyspace.NewEnvelope(claimedMarker{Amount: amount}, now)
	buf, err := json.Marshal(env)
	if err != nil {
		return nil, blenderrors.ErrMarshal
	}
	return &runtime.StorageWrite{
		Collection:      keyspace.CollectionClaimed,
		Key:             keyspace.ClaimedKey(epochNum, userID),
		UserID:          userID,
		Value:           string(buf),
		Version:         "*", // write-once: must not already exist
		PermissionRead:  2,
		PermissionWrite: 0,
	}, nil
}

// shareAndClaim implements §4.8's two-step floor derivation:
//
//	share = contribution * ONE / total_winning_contributions  (floor)
//	claim = reward_pool * share / ONE                          (floor)
func shareAndClaim(contribution, totalWinningContributions, rewardPool int64) (int64, error) {
	if totalWinningContributions == 0 {
		return 0, nil
	}
	share, err := fp.MulDivFloor(contribution, fp.ONE, totalWinningContributions)
	if err != nil {
		return 0, err
	}
	claim, err := fp.MulDivFloor(rewardPool, share, fp.ONE)
	if err != nil {
		return 0, err
	}
	return claim, nil
}

// computeClaimable evaluates get_claimable_amount's full precondition
// chain, returning 0 (not an error) for every "nothing to claim" case
// per §4.8 — a non-winning, already-claimed, or unfinalized epoch is a
// normal query result, not a fault.
func computeClaimable(ctx context.Context, nk nkport.StorageClient, epochNum uint32, userID string) (claim int64, alreadyClaimed bool, err error) {
	e, err := epoch.GetEpoch(ctx, nk, epochNum)
	if err != nil {
		return 0, false, err
	}
	if !e.IsFinalized || !e.HasWinningFaction || e.TotalWinningContributions == 0 {
		return 0, false, nil
	}

	ep, found, _, err := account.LoadEpochPlayer(ctx, nk, epochNum, userID)
	if err != nil {
		return 0, false, err
	}
	if !found || !ep.HasFaction || ep.EpochFaction != e.WinningFaction {
		return 0, false, nil
	}

	_, claimed, err := loadClaimed(ctx, nk, epochNum, userID)
	if err != nil {
		return 0, false, err
	}
	if claimed {
		return 0, true, nil
	}

	claim, err = shareAndClaim(ep.TotalFPContributed, e.TotalWinningContributions, e.RewardPoolPayoutAsset)
	if err != nil {
		return 0, false, err
	}
	return claim, false, nil
}

// GetClaimableAmount is the get_claimable_amount query.
func GetClaimableAmount(ctx context.Context, nk nkport.StorageClient, epochNum uint32, userID string) (int64, error) {
	claim, _, err := computeClaimable(ctx, nk, epochNum, userID)
	return claim, err
}

// HasClaimedRewards is the has_claimed_rewards query.
func HasClaimedRewards(ctx context.Context, nk nkport.StorageClient, epochNum uint32, userID string) (bool, error) {
	_, found, err := loadClaimed(ctx, nk, epochNum, userID)
	return found, err
}

// ClaimYield implements §4.8 claim_yield(player, epoch): authorize,
// validate, then check-effects-interactions — the Claimed marker and the
// epoch's claimed_so_far running total are committed in one atomic write
// before the payout-token transfer is ever attempted.
func ClaimYield(ctx context.Context, nk Store, token Token, payoutToken string, epochNum uint32, userID string, now time.Time) (int64, error) {
	e, version, err := epoch.LoadForClaim(ctx, nk, epochNum)
	if err != nil {
		return 0, err
	}
	if !e.IsFinalized {
		return 0, blenderrors.ErrEpochNotFinalized
	}
	if !e.HasWinningFaction {
		return 0, blenderrors.ErrNotWinningFaction
	}

	ep, found, _, err := account.LoadEpochPlayer(ctx, nk, epochNum, userID)
	if err != nil {
		return 0, err
	}
	if !found || !ep.HasFaction || ep.EpochFaction != e.WinningFaction {
		return 0, blenderrors.ErrNotWinningFaction
	}

	if _, claimed, err := loadClaimed(ctx, nk, epochNum, userID); err != nil {
		return 0, err
	} else if claimed {
		return 0, blenderrors.ErrRewardAlreadyClaimed
	}

	claim, err := shareAndClaim(ep.TotalFPContributed, e.TotalWinningContributions, e.RewardPoolPayoutAsset)
	if err != nil {
		return 0, err
	}
	if claim <= 0 {
		return 0, blenderrors.ErrNoRewardsAvailable
	}
	if e.ClaimedSoFar+claim > e.RewardPoolPayoutAsset {
		// The pool has already been paid out or swept to treasury.
		return 0, blenderrors.ErrNoRewardsAvailable
	}

	epochWrite, err := epoch.BuildClaimWrite(e, claim, version, now)
	if err != nil {
		return 0, err
	}
	claimedWrite, err := buildClaimedWrite(epochNum, userID, claim, now)
	if err != nil {
		return 0, err
	}
	if _, _, err := nk.MultiUpdate(ctx, nil, []*runtime.StorageWrite{epochWrite, claimedWrite}, nil, nil, false); err != nil {
		return 0, blenderrors.ErrCouldNotWriteStorage
	}

	if err := token.Transfer(ctx, payoutToken, userID, claim); err != nil {
		return 0, err
	}

	events.Emit(ctx, nk, events.RewardClaimed{UserID: userID, Epoch: epochNum, Amount: claim})
	return claim, nil
}

// SweepDust implements the admin dust sweep spec.md §4.8 permits: once
// graceSeconds have elapsed past a finalized epoch's end_time, the
// epoch's reward_pool minus claimed_so_far moves to treasury. That
// remainder includes any winner's share not yet claimed; after a sweep,
// claim_yield for the epoch fails with ErrNoRewardsAvailable. Safe to call
// repeatedly — once swept, the remainder is zero and a second call is a
// no-op.
func SweepDust(ctx context.Context, nk Store, token Token, payoutToken string, treasury string, epochNum uint32, graceSeconds int64, now time.Time) (int64, error) {
	e, version, err := epoch.LoadForClaim(ctx, nk, epochNum)
	if err != nil {
		return 0, err
	}
	if !e.IsFinalized {
		return 0, blenderrors.ErrEpochNotFinalized
	}
	if now.Unix() < e.EndTime+graceSeconds {
		return 0, blenderrors.ErrEpochNotReady
	}

	remainder := e.RewardPoolPayoutAsset - e.ClaimedSoFar
	if remainder <= 0 {
		return 0, nil
	}

	if err := token.Transfer(ctx, payoutToken, treasury, remainder); err != nil {
		return 0, err
	}

	// Record the swept remainder as claimed so a repeat sweep sees a zero
	// remainder and a later claim_yield finds the pool exhausted.
	epochWrite, err := epoch.BuildClaimWrite(e, remainder, version, now)
	if err != nil {
		return 0, err
	}
	if _, _, err := nk.MultiUpdate(ctx, nil, []*runtime.StorageWrite{epochWrite}, nil, nil, false); err != nil {
		return 0, blenderrors.ErrCouldNotWriteStorage
	}

	events.Emit(ctx, nk, events.DustSwept{Epoch: epochNum, Amount: remainder, Treasury: treasury})
	return remainder, nil
}
