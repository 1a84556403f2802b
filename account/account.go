// Package account owns the Player and EpochPlayer entities: the
// deposit/withdraw balance ledger, the time-anchor that drives FP time
// multipliers, and the per-epoch available/locked FP bookkeeping that
// the game package mutates during wagers. Storage access follows the
// teacher's items package shape (typed StorageRead/StorageWrite, OCC
// version carried alongside the value) generalized from per-item
// progression records to these two entity kinds.
package account

import (
	"context"
	"encoding/json"
	"time"

	"github.com/heroiclabs/nakama-common/runtime"

	blenderrors "github.com/blendizzard/block-server/errors"
	"github.com/blendizzard/block-server/keyspace"
	"github.com/blendizzard/block-server/nkport"
)

// Player is the persistent, cross-epoch depositor record.
type Player struct {
	HasFaction          bool   `json:"has_faction"`
	SelectedFaction     uint32 `json:"selected_faction"`
	TotalDeposited      int64  `json:"total_deposited"`
	TimeMultiplierStart int64  `json:"time_multiplier_start"`
}

// EpochPlayer is the temporary, per-(epoch, player) wager ledger.
type EpochPlayer struct {
	HasFaction          bool   `json:"has_faction"`
	EpochFaction        uint32 `json:"epoch_faction"`
	AvailableFP         int64  `json:"available_fp"`
	LockedFP            int64  `json:"locked_fp"`
	TotalFPContributed  int64  `json:"total_fp_contributed"`
	WithdrawnThisEpoch  int64  `json:"withdrawn_this_epoch"`
	InitialEpochBalance int64  `json:"initial_epoch_balance"`
	// Snapshotted marks that this epoch's FP has already been derived once
	// from the player's time-multiplier and balance. A player who wagers
	// their entire available_fp and loses ends a game at
	// available=locked=contributed=0, which is indistinguishable from
	// "never snapshotted" by those fields alone, so first-game detection
	// needs its own marker rather than inferring from zero values.
	Snapshotted bool `json:"snapshotted"`
}

// RequirePlayer extracts the authenticated caller's user ID. Every
// player-auth entrypoint (deposit, withdraw, select_faction, claim_yield)
// calls this first.
func RequirePlayer(ctx context.Context) (string, error) {
	userID, ok := ctx.Value(runtime.RUNTIME_CTX_USER_ID).(string)
	if !ok || userID == "" {
		return "", blenderrors.ErrNoUserIDFound
	}
	return userID, nil
}

// LoadPlayer reads a Player record. found is false if the player has
// never deposited or selected a faction.
func LoadPlayer(ctx context.Context, nk nkport.StorageClient, userID string) (p Player, found bool, version string, err error) {
	objs, err := nk.StorageRead(ctx, []*runtime.StorageRead{{
		Collection: keyspace.CollectionPlayer,
		Key:        keyspace.PlayerKey(userID),
		UserID:     userID,
	}})
	if err != nil {
		return Player{}, false, "", blenderrors.ErrCouldNotReadStorage
	}
	if len(objs) == 0 {
		return Player{}, false, "", nil
	}
	var env keyspace.Envelope[Player]
	if err := json.Unmarshal([]byte(objs[0].Value), &env); err != nil {
		return Player{}, false, "", blenderrors.ErrUnmarshal
	}
	return env.Value, true, objs[0].Version, nil
}

func buildPlayerWrite(userID string, p Player, version string, now time.Time) (*runtime.StorageWrite, error) {
	env := keyspace.NewEnvelope(p, now)
	buf, err := json.Marshal(env)
	if err != nil {
		return nil, blenderrors.ErrMarshal
	}
	return &runtime.StorageWrite{
		Collection:      keyspace.CollectionPlayer,
		Key:             keyspace.PlayerKey(userID),
		UserID:          userID,
		Value:           string(buf),
		Version:         version,
		PermissionRead:  2,
		PermissionWrite: 0,
	}, nil
}

// SavePlayer commits a single Player record. Exported for packages
// outside account (faction, game) that mutate Player fields not owned
// by the deposit/withdraw path, e.g. selected_faction.
func SavePlayer(ctx context.Context, nk Store, userID string, p Player, version string, now time.Time) error {
	write, err := buildPlayerWrite(userID, p, version, now)
	if err != nil {
		return err
	}
	if _, _, err := nk.MultiUpdate(ctx, nil, []*runtime.StorageWrite{write}, nil, nil, false); err != nil {
		return blenderrors.ErrCouldNotWriteStorage
	}
	return nil
}

// SaveEpochPlayer commits a single EpochPlayer record. Exported for the
// game package, which mutates available_fp/locked_fp/total_fp_contributed
// during start_game/end_game.
func SaveEpochPlayer(ctx context.Context, nk Store, epoch uint32, userID string, ep EpochPlayer, version string, now time.Time) error {
	write, err := buildEpochPlayerWrite(epoch, userID, ep, version, now)
	if err != nil {
		return err
	}
	if _, _, err := nk.MultiUpdate(ctx, nil, []*runtime.StorageWrite{write}, nil, nil, false); err != nil {
		return blenderrors.ErrCouldNotWriteStorage
	}
	return nil
}

// LoadEpochPlayer reads an EpochPlayer record for (epoch, userID).
func LoadEpochPlayer(ctx context.Context, nk nkport.StorageClient, epoch uint32, userID string) (ep EpochPlayer, found bool, version string, err error) {
	objs, err := nk.StorageRead(ctx, []*runtime.StorageRead{{
		Collection: keyspace.CollectionEpochPlayer,
		Key:        keyspace.EpochPlayerKey(epoch, userID),
		UserID:     userID,
	}})
	if err != nil {
		return EpochPlayer{}, false, "", blenderrors.ErrCouldNotReadStorage
	}
	if len(objs) == 0 {
		return EpochPlayer{}, false, "", nil
	}
	var env keyspace.Envelope[EpochPlayer]
	if err := json.Unmarshal([]byte(objs[0].Value), &env); err != nil {
		return EpochPlayer{}, false, "", blenderrors.ErrUnmarshal
	}
	return env.Value, true, objs[0].Version, nil
}

func buildEpochPlayerWrite(epoch uint32, userID string, ep EpochPlayer, version string, now time.Time) (*runtime.StorageWrite, error) {
	env := keyspace.NewEnvelope(ep, now)
	buf, err := json.Marshal(env)
	if err != nil {
		return nil, blenderrors.ErrMarshal
	}
	return &runtime.StorageWrite{
		Collection:      keyspace.CollectionEpochPlayer,
		Key:             keyspace.EpochPlayerKey(epoch, userID),
		UserID:          userID,
		Value:           string(buf),
		Version:         version,
		PermissionRead:  2,
		PermissionWrite: 0,
	}, nil
}

// GetPlayer is the get_player query. Fails ErrPlayerNotFound on an
// unknown player (distinguishing "entity absent" from "zero activity").
func GetPlayer(ctx context.Context, nk nkport.StorageClient, userID string) (Player, error) {
	p, found, _, err := LoadPlayer(ctx, nk, userID)
	if err != nil {
		return Player{}, err
	}
	if !found {
		return Player{}, blenderrors.ErrPlayerNotFound
	}
	return p, nil
}

// GetEpochPlayer is the get_epoch_player query. Fails ErrPlayerNotFound
// if the player has never existed; otherwise returns sensible defaults
// when no EpochPlayer record exists yet for the given epoch.
func GetEpochPlayer(ctx context.Context, nk nkport.StorageClient, epoch uint32, userID string) (EpochPlayer, error) {
	p, found, _, err := LoadPlayer(ctx, nk, userID)
	if err != nil {
		return EpochPlayer{}, err
	}
	if !found {
		return EpochPlayer{}, blenderrors.ErrPlayerNotFound
	}
	ep, found, _, err := LoadEpochPlayer(ctx, nk, epoch, userID)
	if err != nil {
		return EpochPlayer{}, err
	}
	if found {
		return ep, nil
	}
	return EpochPlayer{
		InitialEpochBalance: p.TotalDeposited,
	}, nil
}

// Deposit implements §4.3 deposit(player, amount): forwards to the
// vault, then updates the Player time anchor and balance, then — if an
// EpochPlayer already exists for the current epoch — resets the
// withdraw-loophole counters so the 50% threshold tracks the player's
// post-deposit balance (Scenario C).
//
// The vault call happens before any local storage mutation: Nakama's
// runtime gives no cross-service rollback, so if the vault rejects the
// deposit nothing here has been written yet. This differs from a literal
// reading of §4.3's prose order only in which failure mode it protects
// against; the player-visible outcome (deposit either fully applies or
// not at all) is unchanged.
func Deposit(ctx context.Context, nk Store, vault VaultDepositor, currentEpoch uint32, userID string, amount int64, now time.Time) (newTotal int64, newFP int64, err error) {
	if amount <= 0 {
		return 0, 0, blenderrors.ErrInvalidAmount
	}

	if _, err := vault.Deposit(ctx, userID, amount); err != nil {
		return 0, 0, err
	}

	p, found, pVersion, err := LoadPlayer(ctx, nk, userID)
	if err != nil {
		return 0, 0, err
	}
	if !found {
		p = Player{TimeMultiplierStart: now.Unix()}
	} else if p.TotalDeposited <= 0 {
		p.TimeMultiplierStart = now.Unix()
	}
	p.TotalDeposited += amount

	writes := make([]*runtime.StorageWrite, 0, 2)
	pw, err := buildPlayerWrite(userID, p, pVersion, now)
	if err != nil {
		return 0, 0, err
	}
	writes = append(writes, pw)

	ep, epFound, epVersion, err := LoadEpochPlayer(ctx, nk, currentEpoch, userID)
	if err != nil {
		return 0, 0, err
	}
	if epFound {
		ep.WithdrawnThisEpoch = 0
		ep.InitialEpochBalance = p.TotalDeposited
		epw, err := buildEpochPlayerWrite(currentEpoch, userID, ep, epVersion, now)
		if err != nil {
			return 0, 0, err
		}
		writes = append(writes, epw)
	}

	if _, _, err := nk.MultiUpdate(ctx, nil, writes, nil, nil, false); err != nil {
		return 0, 0, blenderrors.ErrCouldNotWriteStorage
	}
	return p.TotalDeposited, ep.AvailableFP, nil
}

// Withdraw implements §4.3 withdraw(player, amount), including the
// withdrawal-reset rule (P9): if withdrawn_this_epoch exceeds half the
// epoch's initial balance, the time multiplier anchor resets to now.
func Withdraw(ctx context.Context, nk Store, vault VaultDepositor, currentEpoch uint32, userID string, amount int64, now time.Time) (newTotal int64, err error) {
	if amount <= 0 {
		return 0, blenderrors.ErrInvalidAmount
	}

	p, found, pVersion, err := LoadPlayer(ctx, nk, userID)
	if err != nil {
		return 0, err
	}
	if !found || p.TotalDeposited < amount {
		return 0, blenderrors.ErrInsufficientBalance
	}

	if _, err := vault.Withdraw(ctx, userID, amount); err != nil {
		return 0, err
	}

	p.TotalDeposited -= amount

	ep, epFound, epVersion, err := LoadEpochPlayer(ctx, nk, currentEpoch, userID)
	if err != nil {
		return 0, err
	}
	if !epFound {
		ep = EpochPlayer{InitialEpochBalance: p.TotalDeposited + amount}
		epVersion = ""
	}
	ep.WithdrawnThisEpoch += amount

	resetThreshold := ep.InitialEpochBalance / 2
	if ep.WithdrawnThisEpoch > resetThreshold {
		p.TimeMultiplierStart = now.Unix()
	}

	pw, err := buildPlayerWrite(userID, p, pVersion, now)
	if err != nil {
		return 0, err
	}
	epw, err := buildEpochPlayerWrite(currentEpoch, userID, ep, epVersion, now)
	if err != nil {
		return 0, err
	}

	if _, _, err := nk.MultiUpdate(ctx, nil, []*runtime.StorageWrite{pw, epw}, nil, nil, false); err != nil {
		return 0, blenderrors.ErrCouldNotWriteStorage
	}
	return p.TotalDeposited, nil
}

// VaultDepositor is the narrow slice of vaultclient.Client that account
// needs, so tests can substitute a fake vault without HTTP.
type VaultDepositor interface {
	Deposit(ctx context.Context, userID string, amount int64) (shares int64, err error)
	Withdraw(ctx context.Context, userID string, amount int64) (paid int64, err error)
}

// Store is the slice of nkport this package needs: reads plus an atomic
// multi-write commit. Deposit/Withdraw never touch wallets or events
// directly — events are emitted by the calling RPC handler once the
// commit succeeds.
type Store interface {
	nkport.StorageClient
	nkport.MultiUpdateClient
}
