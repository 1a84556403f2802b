package epoch

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/heroiclabs/nakama-common/runtime"

	"github.com/blendizzard/block-server/config"
	blenderrors "github.com/blendizzard/block-server/errors"
)

// RpcFactory builds the epoch RPC handlers, closing over the external
// collaborator adapters main.go wires once at InitModule time. All three
// fields are interfaces rather than concrete clients because Config's
// vault/router/token URLs are admin-mutable after init via update_config —
// main.go supplies wrappers that re-resolve the current Config on every
// call instead of clients pinned to the URLs seen at InitModule time.
type RpcFactory struct {
	Vault Vault
	AMM   AMM
	Token Token
}

// RpcCycleEpoch is the cycle_epoch entrypoint. Callable by anyone; apart
// from the pause gate, the only gate is the epoch boundary itself (§4.7).
func (f *RpcFactory) RpcCycleEpoch(ctx context.Context, logger runtime.Logger, db *sql.DB, nk runtime.NakamaModule, payload string) (string, error) {
	if err := config.PauseGate(ctx, nk); err != nil {
		return "", err
	}
	cfg, found, err := config.GetConfig(ctx, nk)
	if err != nil {
		return "", err
	}
	if !found {
		return "", blenderrors.ErrInvalidInput
	}
	currentEpoch, err := config.GetCurrentEpoch(ctx, nk)
	if err != nil {
		return "", err
	}

	finalized, next, err := CycleEpoch(ctx, logger, nk, f.Vault, f.AMM, f.Token, cfg, currentEpoch, time.Now())
	if err != nil {
		return "", err
	}

	buf, _ := json.Marshal(struct {
		FinalizedEpoch uint32 `json:"finalized_epoch"`
		NextEpoch      uint32 `json:"next_epoch"`
		RewardPool     int64  `json:"reward_pool"`
		HasWinner      bool   `json:"has_winning_faction"`
		WinningFaction uint32 `json:"winning_faction"`
	}{
		FinalizedEpoch: finalized.EpochNumber,
		NextEpoch:      next,
		RewardPool:     finalized.RewardPoolPayoutAsset,
		HasWinner:      finalized.HasWinningFaction,
		WinningFaction: finalized.WinningFaction,
	})
	return string(buf), nil
}

type epochQueryRequest struct {
	Epoch *uint32 `json:"epoch,omitempty"`
}

func resolveQueryEpoch(ctx context.Context, nk runtime.NakamaModule, req epochQueryRequest) (uint32, error) {
	if req.Epoch != nil {
		return *req.Epoch, nil
	}
	return config.GetCurrentEpoch(ctx, nk)
}

func RpcGetEpoch(ctx context.Context, logger runtime.Logger, db *sql.DB, nk runtime.NakamaModule, payload string) (string, error) {
	var req epochQueryRequest
	if err := json.Unmarshal([]byte(payload), &req); err != nil {
		return "", blenderrors.ErrUnmarshal
	}
	epochNum, err := resolveQueryEpoch(ctx, nk, req)
	if err != nil {
		return "", err
	}
	e, err := GetEpoch(ctx, nk, epochNum)
	if err != nil {
		return "", err
	}
	buf, _ := json.Marshal(e)
	return string(buf), nil
}

func RpcGetFactionStandings(ctx context.Context, logger runtime.Logger, db *sql.DB, nk runtime.NakamaModule, payload string) (string, error) {
	var req epochQueryRequest
	if err := json.Unmarshal([]byte(payload), &req); err != nil {
		return "", blenderrors.ErrUnmarshal
	}
	epochNum, err := resolveQueryEpoch(ctx, nk, req)
	if err != nil {
		return "", err
	}
	standings, err := GetFactionStandings(ctx, nk, epochNum)
	if err != nil {
		return "", err
	}
	buf, _ := json.Marshal(standings)
	return string(buf), nil
}

func RpcGetRewardPool(ctx context.Context, logger runtime.Logger, db *sql.DB, nk runtime.NakamaModule, payload string) (string, error) {
	var req epochQueryRequest
	if err := json.Unmarshal([]byte(payload), &req); err != nil {
		return "", blenderrors.ErrUnmarshal
	}
	epochNum, err := resolveQueryEpoch(ctx, nk, req)
	if err != nil {
		return "", err
	}
	pool, err := GetRewardPool(ctx, nk, epochNum)
	if err != nil {
		return "", err
	}
	buf, _ := json.Marshal(struct {
		RewardPool int64 `json:"reward_pool"`
	}{RewardPool: pool})
	return string(buf), nil
}

func RpcGetWinningFaction(ctx context.Context, logger runtime.Logger, db *sql.DB, nk runtime.NakamaModule, payload string) (string, error) {
	var req epochQueryRequest
	if err := json.Unmarshal([]byte(payload), &req); err != nil {
		return "", blenderrors.ErrUnmarshal
	}
	epochNum, err := resolveQueryEpoch(ctx, nk, req)
	if err != nil {
		return "", err
	}
	winner, has, err := GetWinningFaction(ctx, nk, epochNum)
	if err != nil {
		return "", err
	}
	buf, _ := json.Marshal(struct {
		HasWinner bool   `json:"has_winning_faction"`
		Faction   uint32 `json:"winning_faction"`
	}{HasWinner: has, Faction: winner})
	return string(buf), nil
}
