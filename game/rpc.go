package game

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/heroiclabs/nakama-common/runtime"

	"github.com/blendizzard/block-server/account"
	"github.com/blendizzard/block-server/config"
	blenderrors "github.com/blendizzard/block-server/errors"
	"github.com/blendizzard/block-server/events"
	"github.com/blendizzard/block-server/faction"
	"github.com/blendizzard/block-server/game/verifier"
)

// RpcFactory builds the game RPC handlers, closing over the proof
// verifier and the epoch package's standings credit callback — both
// supplied by main.go at InitModule time.
type RpcFactory struct {
	Verifier  verifier.Verifier
	Standings StandingsCredit
}

// RequireWhitelistedCaller checks that the authenticated caller is a
// whitelisted game contract. Game-contract-initiated entrypoints call
// this instead of account.RequirePlayer/config.RequireAdmin.
func RequireWhitelistedCaller(ctx context.Context, nk runtime.NakamaModule) (string, error) {
	callerID, ok := ctx.Value(runtime.RUNTIME_CTX_USER_ID).(string)
	if !ok || callerID == "" {
		return "", blenderrors.ErrNoUserIDFound
	}
	whitelisted, err := IsWhitelisted(ctx, nk, callerID)
	if err != nil {
		return "", err
	}
	if !whitelisted {
		return "", blenderrors.ErrGameNotWhitelisted
	}
	return callerID, nil
}

type addGameRequest struct {
	GameAddr string `json:"game_addr"`
}

func RpcAddGame(ctx context.Context, logger runtime.Logger, db *sql.DB, nk runtime.NakamaModule, payload string) (string, error) {
	if _, err := config.RequireAdmin(ctx, nk); err != nil {
		return "", err
	}
	var req addGameRequest
	if err := json.Unmarshal([]byte(payload), &req); err != nil || req.GameAddr == "" {
		return "", blenderrors.ErrInvalidInput
	}
	if err := AddGame(ctx, nk, req.GameAddr); err != nil {
		return "", err
	}
	events.Emit(ctx, nk, events.GameAdded{GameAddr: req.GameAddr})
	return "{}", nil
}

func RpcRemoveGame(ctx context.Context, logger runtime.Logger, db *sql.DB, nk runtime.NakamaModule, payload string) (string, error) {
	if _, err := config.RequireAdmin(ctx, nk); err != nil {
		return "", err
	}
	var req addGameRequest
	if err := json.Unmarshal([]byte(payload), &req); err != nil || req.GameAddr == "" {
		return "", blenderrors.ErrInvalidInput
	}
	if err := RemoveGame(ctx, nk, req.GameAddr); err != nil {
		return "", err
	}
	events.Emit(ctx, nk, events.GameRemoved{GameAddr: req.GameAddr})
	return "{}", nil
}

func RpcIsGame(ctx context.Context, logger runtime.Logger, db *sql.DB, nk runtime.NakamaModule, payload string) (string, error) {
	var req addGameRequest
	if err := json.Unmarshal([]byte(payload), &req); err != nil {
		return "", blenderrors.ErrUnmarshal
	}
	whitelisted, err := IsWhitelisted(ctx, nk, req.GameAddr)
	if err != nil {
		return "", err
	}
	buf, _ := json.Marshal(struct {
		Whitelisted bool `json:"whitelisted"`
	}{Whitelisted: whitelisted})
	return string(buf), nil
}

type startGameRequest struct {
	SessionID string `json:"session_id"`
	Player1   string `json:"player1"`
	Player2   string `json:"player2"`
	Wager1    int64  `json:"wager1"`
	Wager2    int64  `json:"wager2"`
}

func (f *RpcFactory) RpcStartGame(ctx context.Context, logger runtime.Logger, db *sql.DB, nk runtime.NakamaModule, payload string) (string, error) {
	gameAddr, err := RequireWhitelistedCaller(ctx, nk)
	if err != nil {
		return "", err
	}
	if err := config.PauseGate(ctx, nk); err != nil {
		return "", err
	}
	var req startGameRequest
	if err := json.Unmarshal([]byte(payload), &req); err != nil {
		return "", blenderrors.ErrUnmarshal
	}

	epoch, err := config.GetCurrentEpoch(ctx, nk)
	if err != nil {
		return "", err
	}
	epochStart, found, _, err := loadEpochStartForRPC(ctx, nk, epoch)
	if err != nil {
		return "", err
	}
	if !found {
		return "", blenderrors.ErrEpochNotReady
	}

	locker := factionLockerAdapter{}
	now := time.Now()
	if err := StartGame(ctx, nk, locker, epoch, epochStart, gameAddr, req.SessionID, req.Player1, req.Player2, req.Wager1, req.Wager2, now); err != nil {
		return "", err
	}

	events.Emit(ctx, nk, events.GameStarted{SessionID: req.SessionID, UserID: req.Player1, GameAddr: gameAddr, WagerFP: req.Wager1})
	events.Emit(ctx, nk, events.GameStarted{SessionID: req.SessionID, UserID: req.Player2, GameAddr: gameAddr, WagerFP: req.Wager2})
	return "{}", nil
}

type endGameRequest struct {
	Proof        string `json:"proof"`
	SessionID    string `json:"session_id"`
	GameContract string `json:"game_contract"`
	Player1      string `json:"player1"`
	Player2      string `json:"player2"`
	Player1Won   bool   `json:"player1_won"`
}

func (f *RpcFactory) RpcEndGame(ctx context.Context, logger runtime.Logger, db *sql.DB, nk runtime.NakamaModule, payload string) (string, error) {
	gameAddr, err := RequireWhitelistedCaller(ctx, nk)
	if err != nil {
		return "", err
	}
	if err := config.PauseGate(ctx, nk); err != nil {
		return "", err
	}
	var req endGameRequest
	if err := json.Unmarshal([]byte(payload), &req); err != nil {
		return "", blenderrors.ErrUnmarshal
	}
	if req.GameContract != gameAddr {
		return "", blenderrors.ErrInvalidGameOutcome
	}

	epoch, err := config.GetCurrentEpoch(ctx, nk)
	if err != nil {
		return "", err
	}

	outcome := verifier.Outcome{
		GameContract: req.GameContract,
		SessionID:    req.SessionID,
		Player1:      req.Player1,
		Player2:      req.Player2,
		Player1Won:   req.Player1Won,
	}
	winner, deltaFP, err := EndGame(ctx, nk, f.Verifier, f.Standings, epoch, []byte(req.Proof), outcome, time.Now())
	if err != nil {
		return "", err
	}

	events.Emit(ctx, nk, events.GameEnded{SessionID: req.SessionID, UserID: winner, Outcome: "win", DeltaFP: deltaFP})
	return "{}", nil
}

func RpcReclaimExpiredSession(ctx context.Context, logger runtime.Logger, db *sql.DB, nk runtime.NakamaModule, payload string) (string, error) {
	if err := config.PauseGate(ctx, nk); err != nil {
		return "", err
	}
	var req struct {
		SessionID string `json:"session_id"`
	}
	if err := json.Unmarshal([]byte(payload), &req); err != nil {
		return "", blenderrors.ErrUnmarshal
	}
	epoch, err := config.GetCurrentEpoch(ctx, nk)
	if err != nil {
		return "", err
	}
	if err := ReclaimExpiredSession(ctx, nk, epoch, req.SessionID, time.Now()); err != nil {
		return "", err
	}
	events.Emit(ctx, nk, events.GameSessionReclaimed{SessionID: req.SessionID})
	return "{}", nil
}

type factionLockerAdapter struct{}

func (factionLockerAdapter) LockEpochFaction(ctx context.Context, nk account.Store, userID string, ep *account.EpochPlayer) error {
	return faction.LockEpochFaction(ctx, nk, userID, ep)
}

// loadEpochStartForRPC reads EpochInfo.start_time for the current epoch.
// Declared here (not in the epoch package) to avoid game importing
// epoch; the epoch package instead registers an accessor at InitModule
// time via SetEpochStartReader.
var epochStartReader func(ctx context.Context, nk runtime.NakamaModule, epoch uint32) (start int64, found bool, version string, err error)

// SetEpochStartReader wires the epoch package's EpochInfo reader into
// game at startup, breaking what would otherwise be an import cycle
// (epoch needs nothing from game, but game's start_game needs to read
// EpochInfo.start_time to compute held-duration at FP snapshot time).
func SetEpochStartReader(f func(ctx context.Context, nk runtime.NakamaModule, epoch uint32) (start int64, found bool, version string, err error)) {
	epochStartReader = f
}

func loadEpochStartForRPC(ctx context.Context, nk runtime.NakamaModule, epoch uint32) (int64, bool, string, error) {
	if epochStartReader == nil {
		return 0, false, "", blenderrors.ErrInternal
	}
	return epochStartReader(ctx, nk, epoch)
}
