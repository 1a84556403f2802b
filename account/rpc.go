package account

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/heroiclabs/nakama-common/runtime"

	"github.com/blendizzard/block-server/config"
	blenderrors "github.com/blendizzard/block-server/errors"
	"github.com/blendizzard/block-server/events"
)

// RpcFactory builds the account RPC handlers, closing over the vault
// adapter the way main.go wires every external collaborator once at
// InitModule time. Vault is an interface, not a concrete *vaultclient.Client,
// because Config.Vault (the vault's base URL) is admin-mutable after init —
// main.go supplies a wrapper that re-resolves it on every call.
type RpcFactory struct {
	Vault VaultDepositor
}

type depositRequest struct {
	Amount int64 `json:"amount"`
}

func (f *RpcFactory) RpcDeposit(ctx context.Context, logger runtime.Logger, db *sql.DB, nk runtime.NakamaModule, payload string) (string, error) {
	userID, err := RequirePlayer(ctx)
	if err != nil {
		return "", err
	}
	if err := config.PauseGate(ctx, nk); err != nil {
		return "", err
	}
	var req depositRequest
	if err := json.Unmarshal([]byte(payload), &req); err != nil {
		return "", blenderrors.ErrUnmarshal
	}

	epoch, err := config.GetCurrentEpoch(ctx, nk)
	if err != nil {
		return "", err
	}

	newTotal, newFP, err := Deposit(ctx, nk, f.Vault, epoch, userID, req.Amount, time.Now())
	if err != nil {
		return "", err
	}

	events.Emit(ctx, nk, events.Deposit{UserID: userID, Amount: req.Amount, NewFP: newFP})

	buf, _ := json.Marshal(struct {
		TotalDeposited int64 `json:"total_deposited"`
	}{TotalDeposited: newTotal})
	return string(buf), nil
}

type withdrawRequest struct {
	Amount int64 `json:"amount"`
}

func (f *RpcFactory) RpcWithdraw(ctx context.Context, logger runtime.Logger, db *sql.DB, nk runtime.NakamaModule, payload string) (string, error) {
	userID, err := RequirePlayer(ctx)
	if err != nil {
		return "", err
	}
	if err := config.PauseGate(ctx, nk); err != nil {
		return "", err
	}
	var req withdrawRequest
	if err := json.Unmarshal([]byte(payload), &req); err != nil {
		return "", blenderrors.ErrUnmarshal
	}

	epoch, err := config.GetCurrentEpoch(ctx, nk)
	if err != nil {
		return "", err
	}

	newTotal, err := Withdraw(ctx, nk, f.Vault, epoch, userID, req.Amount, time.Now())
	if err != nil {
		return "", err
	}

	events.Emit(ctx, nk, events.Withdraw{UserID: userID, Amount: req.Amount})

	buf, _ := json.Marshal(struct {
		TotalDeposited int64 `json:"total_deposited"`
	}{TotalDeposited: newTotal})
	return string(buf), nil
}

func RpcGetPlayer(ctx context.Context, logger runtime.Logger, db *sql.DB, nk runtime.NakamaModule, payload string) (string, error) {
	var req struct {
		UserID string `json:"user_id"`
	}
	if err := json.Unmarshal([]byte(payload), &req); err != nil {
		return "", blenderrors.ErrUnmarshal
	}
	p, err := GetPlayer(ctx, nk, req.UserID)
	if err != nil {
		return "", err
	}
	buf, _ := json.Marshal(p)
	return string(buf), nil
}

func RpcGetEpochPlayer(ctx context.Context, logger runtime.Logger, db *sql.DB, nk runtime.NakamaModule, payload string) (string, error) {
	var req struct {
		UserID string `json:"user_id"`
		Epoch  uint32 `json:"epoch"`
	}
	if err := json.Unmarshal([]byte(payload), &req); err != nil {
		return "", blenderrors.ErrUnmarshal
	}
	ep, err := GetEpochPlayer(ctx, nk, req.Epoch, req.UserID)
	if err != nil {
		return "", err
	}
	buf, _ := json.Marshal(ep)
	return string(buf), nil
}
