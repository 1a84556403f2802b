// Package events emits structured analytics events and realtime
// notifications for every state change the protocol makes, adapted from
// the teacher's notify package (which shipped a single, deeply
// game-specific RewardPayload schema). Here each event is its own small
// typed struct instead of one MECE grab-bag payload, since Blendizzard's
// event surface is operations-shaped (deposits, withdrawals, epoch
// cycles) rather than reward-shaped.
package events

import (
	"context"
	"fmt"

	"github.com/heroiclabs/nakama-common/api"
	"google.golang.org/protobuf/types/known/timestamppb"

	"github.com/blendizzard/block-server/nkport"
)

// Notification codes. Unlike the teacher's ServerNotifyCode enum these
// are not shared with any client codebase, so they are free to renumber.
const (
	CodeToast      = 1
	CodeWallet     = 4
	CodeGame       = 6
	CodeEpoch      = 7
	CodeAdmin      = 8
)

// Event is anything Emit can record: a stable analytics name plus a flat
// set of string properties for indexing.
type Event interface {
	Name() string
	Properties() map[string]string
}

// Emit records evt via nk.Event for offline analytics. Event emission is
// best-effort: a failure here must never unwind an already-committed
// storage/wallet change, so Emit discards nk.Event's error and returns
// nothing — emission never blocks the calling RPC's success.
func Emit(ctx context.Context, nk nkport.EventClient, evt Event) {
	_ = nk.Event(ctx, &api.Event{
		Name:       evt.Name(),
		Properties: evt.Properties(),
		Timestamp:  timestamppb.Now(),
		External:   false,
	})
}

// Notify sends a realtime toast to a specific player. Adapted directly
// from the teacher's notify.SendToast.
func Notify(ctx context.Context, nk nkport.NotificationClient, userID, subject string, code int, content map[string]interface{}) error {
	return nk.NotificationSend(ctx, userID, subject, content, code, "", false)
}

// --- event types ---

type Deposit struct {
	UserID string
	Amount int64
	NewFP  int64
}

func (e Deposit) Name() string { return "deposit" }
func (e Deposit) Properties() map[string]string {
	return map[string]string{
		"user_id": e.UserID,
		"amount":  fmt.Sprintf("%d", e.Amount),
		"new_fp":  fmt.Sprintf("%d", e.NewFP),
	}
}

type Withdraw struct {
	UserID string
	Amount int64
	NewFP  int64
}

func (e Withdraw) Name() string { return "withdraw" }
func (e Withdraw) Properties() map[string]string {
	return map[string]string{
		"user_id": e.UserID,
		"amount":  fmt.Sprintf("%d", e.Amount),
		"new_fp":  fmt.Sprintf("%d", e.NewFP),
	}
}

type FactionSelected struct {
	UserID  string
	Faction string
	Epoch   uint32
}

func (e FactionSelected) Name() string { return "faction_selected" }
func (e FactionSelected) Properties() map[string]string {
	return map[string]string{
		"user_id": e.UserID,
		"faction": e.Faction,
		"epoch":   fmt.Sprintf("%d", e.Epoch),
	}
}

type GameStarted struct {
	SessionID string
	UserID    string
	GameAddr  string
	WagerFP   int64
}

func (e GameStarted) Name() string { return "game_started" }
func (e GameStarted) Properties() map[string]string {
	return map[string]string{
		"session_id": e.SessionID,
		"user_id":    e.UserID,
		"game_addr":  e.GameAddr,
		"wager_fp":   fmt.Sprintf("%d", e.WagerFP),
	}
}

type GameEnded struct {
	SessionID string
	UserID    string
	Outcome   string
	DeltaFP   int64
}

func (e GameEnded) Name() string { return "game_ended" }
func (e GameEnded) Properties() map[string]string {
	return map[string]string{
		"session_id": e.SessionID,
		"user_id":    e.UserID,
		"outcome":    e.Outcome,
		"delta_fp":   fmt.Sprintf("%d", e.DeltaFP),
	}
}

type GameSessionReclaimed struct {
	SessionID string
	UserID    string
}

func (e GameSessionReclaimed) Name() string { return "game_session_reclaimed" }
func (e GameSessionReclaimed) Properties() map[string]string {
	return map[string]string{
		"session_id": e.SessionID,
		"user_id":    e.UserID,
	}
}

type GameAdded struct{ GameAddr string }

func (e GameAdded) Name() string                   { return "game_added" }
func (e GameAdded) Properties() map[string]string { return map[string]string{"game_addr": e.GameAddr} }

type GameRemoved struct{ GameAddr string }

func (e GameRemoved) Name() string { return "game_removed" }
func (e GameRemoved) Properties() map[string]string {
	return map[string]string{"game_addr": e.GameAddr}
}

type EpochCycled struct {
	Epoch          uint32
	WinningFaction string
	TotalYield     int64
	TotalPayout    int64
}

func (e EpochCycled) Name() string { return "epoch_cycled" }
func (e EpochCycled) Properties() map[string]string {
	return map[string]string{
		"epoch":           fmt.Sprintf("%d", e.Epoch),
		"winning_faction": e.WinningFaction,
		"total_yield":     fmt.Sprintf("%d", e.TotalYield),
		"total_payout":    fmt.Sprintf("%d", e.TotalPayout),
	}
}

type RewardClaimed struct {
	UserID string
	Epoch  uint32
	Amount int64
}

func (e RewardClaimed) Name() string { return "reward_claimed" }
func (e RewardClaimed) Properties() map[string]string {
	return map[string]string{
		"user_id": e.UserID,
		"epoch":   fmt.Sprintf("%d", e.Epoch),
		"amount":  fmt.Sprintf("%d", e.Amount),
	}
}

type DustSwept struct {
	Epoch     uint32
	Amount    int64
	Treasury  string
}

func (e DustSwept) Name() string { return "dust_swept" }
func (e DustSwept) Properties() map[string]string {
	return map[string]string{
		"epoch":    fmt.Sprintf("%d", e.Epoch),
		"amount":   fmt.Sprintf("%d", e.Amount),
		"treasury": e.Treasury,
	}
}

type Paused struct{}

func (e Paused) Name() string                   { return "paused" }
func (e Paused) Properties() map[string]string { return map[string]string{} }

type Unpaused struct{}

func (e Unpaused) Name() string                   { return "unpaused" }
func (e Unpaused) Properties() map[string]string { return map[string]string{} }

type AdminChanged struct {
	OldAdmin string
	NewAdmin string
}

func (e AdminChanged) Name() string { return "admin_changed" }
func (e AdminChanged) Properties() map[string]string {
	return map[string]string{"old_admin": e.OldAdmin, "new_admin": e.NewAdmin}
}

type ConfigUpdated struct{}

func (e ConfigUpdated) Name() string                   { return "config_updated" }
func (e ConfigUpdated) Properties() map[string]string { return map[string]string{} }
