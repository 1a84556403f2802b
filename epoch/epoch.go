// Package epoch implements the epoch state machine (§4.7): the
// EpochInfo record, the faction-standings credit callback the game
// package invokes as wagers resolve, and the boundary queries exposed
// to §6's get_epoch/get_faction_standings/get_reward_pool/
// get_winning_faction entrypoints. cycle_epoch's harvest/swap/finalize
// pipeline lives in cycle.go.
package epoch

import (
	"context"
	"encoding/json"
	"time"

	"github.com/heroiclabs/nakama-common/runtime"

	"github.com/blendizzard/block-server/account"
	blenderrors "github.com/blendizzard/block-server/errors"
	"github.com/blendizzard/block-server/keyspace"
	"github.com/blendizzard/block-server/nkport"
)

// EpochInfo is the persisted per-epoch record (§3 EpochInfo).
type EpochInfo struct {
	EpochNumber               uint32           `json:"epoch_number"`
	StartTime                 int64            `json:"start_time"`
	EndTime                   int64            `json:"end_time"`
	FactionStandings          map[uint32]int64 `json:"faction_standings"`
	RewardPoolPayoutAsset     int64            `json:"reward_pool_payout_asset"`
	HasWinningFaction         bool             `json:"has_winning_faction"`
	WinningFaction            uint32           `json:"winning_faction"`
	TotalWinningContributions int64            `json:"total_winning_contributions"`
	IsFinalized               bool             `json:"is_finalized"`
	ClaimedSoFar              int64            `json:"claimed_so_far"`
}

func loadEpoch(ctx context.Context, nk nkport.StorageClient, epochNum uint32) (e EpochInfo, found bool, version string, err error) {
	objs, err := nk.StorageRead(ctx, []*runtime.StorageRead{{
		Collection: keyspace.CollectionEpoch,
		Key:        keyspace.EpochKey(epochNum),
	}})
	if err != nil {
		return EpochInfo{}, false, "", blenderrors.ErrCouldNotReadStorage
	}
	if len(objs) == 0 {
		return EpochInfo{}, false, "", nil
	}
	var env keyspace.Envelope[EpochInfo]
	if err := json.Unmarshal([]byte(objs[0].Value), &env); err != nil {
		return EpochInfo{}, false, "", blenderrors.ErrUnmarshal
	}
	return env.Value, true, objs[0].Version, nil
}

func saveEpoch(ctx context.Context, nk nkport.StorageClient, e EpochInfo, version string, now time.Time) error {
	env := keyspace.NewEnvelope(e, now)
	buf, err := json.Marshal(env)
	if err != nil {
		return blenderrors.ErrMarshal
	}
	_, err = nk.StorageWrite(ctx, []*runtime.StorageWrite{{
		Collection:      keyspace.CollectionEpoch,
		Key:             keyspace.EpochKey(e.EpochNumber),
		Value:           string(buf),
		Version:         version,
		PermissionRead:  2,
		PermissionWrite: 0,
	}})
	if err != nil {
		return blenderrors.ErrCouldNotWriteStorage
	}
	return nil
}

// CreateInitialEpoch creates EpochInfo(0), run once from config.RpcInit
// via the registered config.SetEpochBootstrap callback.
func CreateInitialEpoch(ctx context.Context, nk nkport.StorageClient, startTime, durationSeconds int64) error {
	e := EpochInfo{
		EpochNumber:      0,
		StartTime:        startTime,
		EndTime:          startTime + durationSeconds,
		FactionStandings: map[uint32]int64{},
	}
	return saveEpoch(ctx, nk, e, "", time.Unix(startTime, 0))
}

// GetEpochStartTimeForReader matches the signature game.SetEpochStartReader
// expects, letting start_game read EpochInfo.start_time without the game
// package importing epoch.
func GetEpochStartTimeForReader(ctx context.Context, nk runtime.NakamaModule, epochNum uint32) (int64, bool, string, error) {
	e, found, version, err := loadEpoch(ctx, nk, epochNum)
	if err != nil {
		return 0, false, "", err
	}
	return e.StartTime, found, version, nil
}

// CreditStanding implements game.StandingsCredit: end_game calls this,
// inside the same logical operation as the winner's FP ledger update, to
// grow faction_standings by the winner's wager (P6: monotone within an
// epoch). Mutation is a no-op once the epoch is finalized rather than an
// error — end_game's own GameExpired check already prevents a resolved
// session from reaching a finalized epoch's standings on any live
// player path, so arriving here post-finalization is a programming
// error, not something a caller should have to handle.
func CreditStanding(ctx context.Context, nk account.Store, epochNum uint32, faction uint32, delta int64, now time.Time) error {
	e, found, version, err := loadEpoch(ctx, nk, epochNum)
	if err != nil {
		return err
	}
	if !found {
		return blenderrors.ErrInternal
	}
	if e.IsFinalized {
		return nil
	}
	if e.FactionStandings == nil {
		e.FactionStandings = map[uint32]int64{}
	}
	e.FactionStandings[faction] += delta
	return saveEpoch(ctx, nk, e, version, now)
}

// LoadForClaim loads a finalized epoch's record for the rewards package,
// which needs the raw EpochInfo (not just the public query projections
// below) plus its OCC version to build an atomic claim-and-record write.
func LoadForClaim(ctx context.Context, nk nkport.StorageClient, epochNum uint32) (e EpochInfo, version string, err error) {
	e, found, version, err := loadEpoch(ctx, nk, epochNum)
	if err != nil {
		return EpochInfo{}, "", err
	}
	if !found {
		return EpochInfo{}, "", blenderrors.ErrInternal
	}
	return e, version, nil
}

// BuildClaimWrite returns the storage write that records amount against
// e's running claimed_so_far total, for rewards.ClaimYield to commit in
// the same MultiUpdate batch as its own Claimed marker write — the two
// must land atomically, both ahead of the payout-token transfer (CEI).
func BuildClaimWrite(e EpochInfo, amount int64, version string, now time.Time) (*runtime.StorageWrite, error) {
	e.ClaimedSoFar += amount
	env := keyspace.NewEnvelope(e, now)
	buf, err := json.Marshal(env)
	if err != nil {
		return nil, blenderrors.ErrMarshal
	}
	return &runtime.StorageWrite{
		Collection:      keyspace.CollectionEpoch,
		Key:             keyspace.EpochKey(e.EpochNumber),
		Value:           string(buf),
		Version:         version,
		PermissionRead:  2,
		PermissionWrite: 0,
	}, nil
}

// GetEpoch is the get_epoch query. There is no dedicated "epoch not
// found" error in the taxonomy (epoch numbers are sequential and always
// exist once reached), so a query for a number never created surfaces
// as ErrInvalidInput.
func GetEpoch(ctx context.Context, nk nkport.StorageClient, epochNum uint32) (EpochInfo, error) {
	e, found, _, err := loadEpoch(ctx, nk, epochNum)
	if err != nil {
		return EpochInfo{}, err
	}
	if !found {
		return EpochInfo{}, blenderrors.ErrInvalidInput
	}
	return e, nil
}

// GetFactionStandings, GetRewardPool, and GetWinningFaction are thin
// query wrappers over GetEpoch, split out because spec.md §6 lists them
// as distinct entrypoints even though they read the same record.
func GetFactionStandings(ctx context.Context, nk nkport.StorageClient, epochNum uint32) (map[uint32]int64, error) {
	e, err := GetEpoch(ctx, nk, epochNum)
	if err != nil {
		return nil, err
	}
	return e.FactionStandings, nil
}

func GetRewardPool(ctx context.Context, nk nkport.StorageClient, epochNum uint32) (int64, error) {
	e, err := GetEpoch(ctx, nk, epochNum)
	if err != nil {
		return 0, err
	}
	return e.RewardPoolPayoutAsset, nil
}

func GetWinningFaction(ctx context.Context, nk nkport.StorageClient, epochNum uint32) (faction uint32, hasWinner bool, err error) {
	e, err := GetEpoch(ctx, nk, epochNum)
	if err != nil {
		return 0, false, err
	}
	return e.WinningFaction, e.HasWinningFaction, nil
}
