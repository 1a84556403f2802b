package config

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/heroiclabs/nakama-common/runtime"

	blenderrors "github.com/blendizzard/block-server/errors"
	"github.com/blendizzard/block-server/events"
	"github.com/blendizzard/block-server/nkport"
)

// epochBootstrap creates the initial EpochInfo(0) record during init.
// Registered by main.go at InitModule time via SetEpochBootstrap, since
// config (a leaf package everything else depends on) cannot import
// epoch without cycling — the same registered-callback pattern the game
// package uses for SetEpochStartReader.
var epochBootstrap func(ctx context.Context, nk nkport.StorageClient, startTime, durationSeconds int64) error

// SetEpochBootstrap wires the epoch package's initial-epoch creator into
// config at startup.
func SetEpochBootstrap(f func(ctx context.Context, nk nkport.StorageClient, startTime, durationSeconds int64) error) {
	epochBootstrap = f
}

// RequireAdmin returns the caller's authenticated user ID if, and only
// if, it matches the current Admin singleton. Every admin-only RPC in
// this module calls this first, before any other validation — the same
// "checks before effects" ordering the teacher applies with its
// ctx.Value(RUNTIME_CTX_USER_ID) checks at the top of every RPC.
func RequireAdmin(ctx context.Context, nk nkport.StorageClient) (string, error) {
	userID, ok := ctx.Value(runtime.RUNTIME_CTX_USER_ID).(string)
	if !ok || userID == "" {
		return "", blenderrors.ErrNoUserIDFound
	}
	admin, found, err := GetAdmin(ctx, nk)
	if err != nil {
		return "", err
	}
	if !found || admin != userID {
		return "", blenderrors.ErrNotAdmin
	}
	return userID, nil
}

// PauseGate aborts with ErrContractPaused if the protocol is paused.
// Every mutating, non-admin entrypoint calls this immediately after
// extracting the caller's identity (spec.md §4.2: "All non-admin
// entrypoints... check Paused == false before proceeding").
func PauseGate(ctx context.Context, nk nkport.StorageClient) error {
	paused, err := IsPaused(ctx, nk)
	if err != nil {
		return err
	}
	if paused {
		return blenderrors.ErrContractPaused
	}
	return nil
}

// InitRequest is the payload for the one-time init RPC.
type InitRequest struct {
	Admin                string   `json:"admin"`
	Vault                string   `json:"vault"`
	AMMRouter            string   `json:"amm_router"`
	TokenLedger          string   `json:"token_ledger"`
	YieldToken           string   `json:"yield_token"`
	PayoutToken          string   `json:"payout_token"`
	EpochDurationSeconds int64    `json:"epoch_duration_seconds"`
	ReserveTokenIDs      []uint32 `json:"reserve_token_ids"`
	SlippageToleranceBps int64    `json:"slippage_tolerance_bps"`
	DustGraceSeconds     int64    `json:"dust_grace_seconds"`
	Treasury             string   `json:"treasury"`
}

// RpcInit performs one-time module setup. Fails AlreadyInitialized if
// the Admin singleton is already set.
func RpcInit(ctx context.Context, logger runtime.Logger, db *sql.DB, nk runtime.NakamaModule, payload string) (string, error) {
	if _, found, err := GetAdmin(ctx, nk); err != nil {
		return "", err
	} else if found {
		return "", blenderrors.ErrAlreadyInitialized
	}

	var req InitRequest
	if err := json.Unmarshal([]byte(payload), &req); err != nil {
		return "", blenderrors.ErrUnmarshal
	}
	if req.Admin == "" || req.Vault == "" || req.AMMRouter == "" || req.EpochDurationSeconds <= 0 {
		return "", blenderrors.ErrInvalidInput
	}

	if err := setAdmin(ctx, nk, req.Admin); err != nil {
		return "", err
	}
	if err := setPaused(ctx, nk, false); err != nil {
		return "", err
	}
	cfg := Config{
		Vault:                req.Vault,
		AMMRouter:            req.AMMRouter,
		TokenLedger:          req.TokenLedger,
		YieldToken:           req.YieldToken,
		PayoutToken:          req.PayoutToken,
		EpochDurationSeconds: req.EpochDurationSeconds,
		ReserveTokenIDs:      req.ReserveTokenIDs,
		SlippageToleranceBps: req.SlippageToleranceBps,
		DustGraceSeconds:     req.DustGraceSeconds,
		Treasury:             req.Treasury,
	}
	if err := setConfig(ctx, nk, cfg); err != nil {
		return "", err
	}
	if err := SetCurrentEpoch(ctx, nk, 0); err != nil {
		return "", err
	}
	if epochBootstrap != nil {
		now := time.Now()
		if err := epochBootstrap(ctx, nk, now.Unix(), req.EpochDurationSeconds); err != nil {
			return "", err
		}
	}

	logger.Info("blendizzard initialized: admin=%s vault=%s router=%s", req.Admin, req.Vault, req.AMMRouter)
	return "{}", nil
}

// RpcSetAdmin rotates the Admin singleton. Admin-only.
func RpcSetAdmin(ctx context.Context, logger runtime.Logger, db *sql.DB, nk runtime.NakamaModule, payload string) (string, error) {
	caller, err := RequireAdmin(ctx, nk)
	if err != nil {
		return "", err
	}
	var req struct {
		NewAdmin string `json:"new_admin"`
	}
	if err := json.Unmarshal([]byte(payload), &req); err != nil || req.NewAdmin == "" {
		return "", blenderrors.ErrInvalidInput
	}
	if err := setAdmin(ctx, nk, req.NewAdmin); err != nil {
		return "", err
	}
	events.Emit(ctx, nk, events.AdminChanged{OldAdmin: caller, NewAdmin: req.NewAdmin})
	logger.Info("admin rotated: %s -> %s", caller, req.NewAdmin)
	return "{}", nil
}

// RpcGetAdmin is a public query.
func RpcGetAdmin(ctx context.Context, logger runtime.Logger, db *sql.DB, nk runtime.NakamaModule, payload string) (string, error) {
	admin, found, err := GetAdmin(ctx, nk)
	if err != nil {
		return "", err
	}
	if !found {
		return "", blenderrors.ErrNotAdmin
	}
	buf, _ := json.Marshal(struct {
		Admin string `json:"admin"`
	}{Admin: admin})
	return string(buf), nil
}

// UpdateConfigRequest fields are all optional; only non-nil fields are
// applied, matching spec.md §4.2's "each field optional".
type UpdateConfigRequest struct {
	Vault                *string  `json:"vault,omitempty"`
	AMMRouter            *string  `json:"amm_router,omitempty"`
	TokenLedger          *string  `json:"token_ledger,omitempty"`
	YieldToken           *string  `json:"yield_token,omitempty"`
	PayoutToken          *string  `json:"payout_token,omitempty"`
	EpochDurationSeconds *int64   `json:"epoch_duration_seconds,omitempty"`
	ReserveTokenIDs      []uint32 `json:"reserve_token_ids,omitempty"`
	SlippageToleranceBps *int64   `json:"slippage_tolerance_bps,omitempty"`
	DustGraceSeconds     *int64   `json:"dust_grace_seconds,omitempty"`
	Treasury             *string  `json:"treasury,omitempty"`
}

// RpcUpdateConfig applies a partial update to Config. Admin-only.
func RpcUpdateConfig(ctx context.Context, logger runtime.Logger, db *sql.DB, nk runtime.NakamaModule, payload string) (string, error) {
	if _, err := RequireAdmin(ctx, nk); err != nil {
		return "", err
	}
	var req UpdateConfigRequest
	if err := json.Unmarshal([]byte(payload), &req); err != nil {
		return "", blenderrors.ErrUnmarshal
	}

	cfg, found, err := GetConfig(ctx, nk)
	if err != nil {
		return "", err
	}
	if !found {
		return "", blenderrors.ErrInvalidInput
	}

	if req.Vault != nil {
		cfg.Vault = *req.Vault
	}
	if req.AMMRouter != nil {
		cfg.AMMRouter = *req.AMMRouter
	}
	if req.TokenLedger != nil {
		cfg.TokenLedger = *req.TokenLedger
	}
	if req.YieldToken != nil {
		cfg.YieldToken = *req.YieldToken
	}
	if req.PayoutToken != nil {
		cfg.PayoutToken = *req.PayoutToken
	}
	if req.EpochDurationSeconds != nil {
		cfg.EpochDurationSeconds = *req.EpochDurationSeconds
	}
	if req.ReserveTokenIDs != nil {
		cfg.ReserveTokenIDs = req.ReserveTokenIDs
	}
	if req.SlippageToleranceBps != nil {
		cfg.SlippageToleranceBps = *req.SlippageToleranceBps
	}
	if req.DustGraceSeconds != nil {
		cfg.DustGraceSeconds = *req.DustGraceSeconds
	}
	if req.Treasury != nil {
		cfg.Treasury = *req.Treasury
	}

	if err := setConfig(ctx, nk, cfg); err != nil {
		return "", err
	}
	events.Emit(ctx, nk, events.ConfigUpdated{})
	logger.Info("config updated")
	return "{}", nil
}

// RpcPause pauses the protocol. Admin-only.
func RpcPause(ctx context.Context, logger runtime.Logger, db *sql.DB, nk runtime.NakamaModule, payload string) (string, error) {
	if _, err := RequireAdmin(ctx, nk); err != nil {
		return "", err
	}
	if err := setPaused(ctx, nk, true); err != nil {
		return "", err
	}
	events.Emit(ctx, nk, events.Paused{})
	logger.Info("contract paused")
	return "{}", nil
}

// RpcUnpause unpauses the protocol. Admin-only.
func RpcUnpause(ctx context.Context, logger runtime.Logger, db *sql.DB, nk runtime.NakamaModule, payload string) (string, error) {
	if _, err := RequireAdmin(ctx, nk); err != nil {
		return "", err
	}
	if err := setPaused(ctx, nk, false); err != nil {
		return "", err
	}
	events.Emit(ctx, nk, events.Unpaused{})
	logger.Info("contract unpaused")
	return "{}", nil
}

// RpcIsPaused is a public query.
func RpcIsPaused(ctx context.Context, logger runtime.Logger, db *sql.DB, nk runtime.NakamaModule, payload string) (string, error) {
	paused, err := IsPaused(ctx, nk)
	if err != nil {
		return "", err
	}
	buf, _ := json.Marshal(struct {
		Paused bool `json:"paused"`
	}{Paused: paused})
	return string(buf), nil
}

// RpcUpgrade is a placeholder for module hot-swap. Nakama reloads runtime
// modules from disk rather than accepting an in-band code hash the way a
// smart-contract host would, so this entrypoint only writes the requested
// code hash to the server log for the deploy pipeline to act on; it emits
// no event, and there is no on-chain code slot to flip.
func RpcUpgrade(ctx context.Context, logger runtime.Logger, db *sql.DB, nk runtime.NakamaModule, payload string) (string, error) {
	if _, err := RequireAdmin(ctx, nk); err != nil {
		return "", err
	}
	var req struct {
		CodeHash string `json:"code_hash"`
	}
	if err := json.Unmarshal([]byte(payload), &req); err != nil {
		return "", blenderrors.ErrUnmarshal
	}
	logger.Info("upgrade requested: code_hash=%s (deploy pipeline must redeploy the module binary)", req.CodeHash)
	return "{}", nil
}
