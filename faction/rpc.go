package faction

import (
	"context"
	"database/sql"
	"encoding/json"
	"strconv"
	"time"

	"github.com/heroiclabs/nakama-common/runtime"

	"github.com/blendizzard/block-server/account"
	"github.com/blendizzard/block-server/config"
	blenderrors "github.com/blendizzard/block-server/errors"
	"github.com/blendizzard/block-server/events"
)

type selectFactionRequest struct {
	Faction uint32 `json:"faction"`
}

func RpcSelectFaction(ctx context.Context, logger runtime.Logger, db *sql.DB, nk runtime.NakamaModule, payload string) (string, error) {
	userID, err := account.RequirePlayer(ctx)
	if err != nil {
		return "", err
	}
	if err := config.PauseGate(ctx, nk); err != nil {
		return "", err
	}
	var req selectFactionRequest
	if err := json.Unmarshal([]byte(payload), &req); err != nil {
		return "", blenderrors.ErrUnmarshal
	}

	epoch, err := config.GetCurrentEpoch(ctx, nk)
	if err != nil {
		return "", err
	}
	if err := SelectFaction(ctx, nk, userID, req.Faction, time.Now()); err != nil {
		return "", err
	}

	events.Emit(ctx, nk, events.FactionSelected{UserID: userID, Faction: strconv.FormatUint(uint64(req.Faction), 10), Epoch: epoch})
	return "{}", nil
}

func RpcIsFactionLocked(ctx context.Context, logger runtime.Logger, db *sql.DB, nk runtime.NakamaModule, payload string) (string, error) {
	var req struct {
		UserID string `json:"user_id"`
	}
	if err := json.Unmarshal([]byte(payload), &req); err != nil {
		return "", blenderrors.ErrUnmarshal
	}
	locked, err := IsFactionLocked(ctx, nk, req.UserID)
	if err != nil {
		return "", err
	}
	buf, _ := json.Marshal(struct {
		Locked bool `json:"locked"`
	}{Locked: locked})
	return string(buf), nil
}
