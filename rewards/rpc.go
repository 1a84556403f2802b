package rewards

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/heroiclabs/nakama-common/runtime"

	"github.com/blendizzard/block-server/account"
	"github.com/blendizzard/block-server/config"
	blenderrors "github.com/blendizzard/block-server/errors"
)

// RpcFactory builds the rewards RPC handlers, closing over the token
// ledger adapter main.go wires once at InitModule time. Token is an
// interface because Config.TokenLedger's base URL is admin-mutable
// after init — main.go supplies a wrapper that re-resolves it per call.
type RpcFactory struct {
	Token Token
}

type claimYieldRequest struct {
	Epoch uint32 `json:"epoch"`
}

func (f *RpcFactory) RpcClaimYield(ctx context.Context, logger runtime.Logger, db *sql.DB, nk runtime.NakamaModule, payload string) (string, error) {
	userID, err := account.RequirePlayer(ctx)
	if err != nil {
		return "", err
	}
	if err := config.PauseGate(ctx, nk); err != nil {
		return "", err
	}
	var req claimYieldRequest
	if err := json.Unmarshal([]byte(payload), &req); err != nil {
		return "", blenderrors.ErrUnmarshal
	}

	cfg, found, err := config.GetConfig(ctx, nk)
	if err != nil {
		return "", err
	}
	if !found {
		return "", blenderrors.ErrInvalidInput
	}

	claim, err := ClaimYield(ctx, nk, f.Token, cfg.PayoutToken, req.Epoch, userID, time.Now())
	if err != nil {
		return "", err
	}

	buf, _ := json.Marshal(struct {
		Amount int64 `json:"amount"`
	}{Amount: claim})
	return string(buf), nil
}

type claimQueryRequest struct {
	UserID string `json:"user_id"`
	Epoch  uint32 `json:"epoch"`
}

func RpcGetClaimableAmount(ctx context.Context, logger runtime.Logger, db *sql.DB, nk runtime.NakamaModule, payload string) (string, error) {
	var req claimQueryRequest
	if err := json.Unmarshal([]byte(payload), &req); err != nil {
		return "", blenderrors.ErrUnmarshal
	}
	claim, err := GetClaimableAmount(ctx, nk, req.Epoch, req.UserID)
	if err != nil {
		return "", err
	}
	buf, _ := json.Marshal(struct {
		Amount int64 `json:"amount"`
	}{Amount: claim})
	return string(buf), nil
}

func RpcHasClaimedRewards(ctx context.Context, logger runtime.Logger, db *sql.DB, nk runtime.NakamaModule, payload string) (string, error) {
	var req claimQueryRequest
	if err := json.Unmarshal([]byte(payload), &req); err != nil {
		return "", blenderrors.ErrUnmarshal
	}
	claimed, err := HasClaimedRewards(ctx, nk, req.Epoch, req.UserID)
	if err != nil {
		return "", err
	}
	buf, _ := json.Marshal(struct {
		Claimed bool `json:"claimed"`
	}{Claimed: claimed})
	return string(buf), nil
}

type sweepDustRequest struct {
	Epoch uint32 `json:"epoch"`
}

// RpcSweepDust is the admin-only sweep_dust entrypoint.
func (f *RpcFactory) RpcSweepDust(ctx context.Context, logger runtime.Logger, db *sql.DB, nk runtime.NakamaModule, payload string) (string, error) {
	if _, err := config.RequireAdmin(ctx, nk); err != nil {
		return "", err
	}
	var req sweepDustRequest
	if err := json.Unmarshal([]byte(payload), &req); err != nil {
		return "", blenderrors.ErrUnmarshal
	}

	cfg, found, err := config.GetConfig(ctx, nk)
	if err != nil {
		return "", err
	}
	if !found {
		return "", blenderrors.ErrInvalidInput
	}

	swept, err := SweepDust(ctx, nk, f.Token, cfg.PayoutToken, cfg.Treasury, req.Epoch, cfg.DustGraceSeconds, time.Now())
	if err != nil {
		return "", err
	}

	buf, _ := json.Marshal(struct {
		Swept int64 `json:"swept"`
	}{Swept: swept})
	return string(buf), nil
}
