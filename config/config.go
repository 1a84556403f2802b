// Package config owns the Admin/Paused/Config/CurrentEpoch singletons —
// the hottest-read, coldest-write state in the module — split into
// separate storage keys so a call that only needs to check Paused never
// pays to deserialize the (larger, rarely-mutated) Config blob. Every
// other package's "is the caller admin" / "is the protocol paused" check
// goes through the helpers here.
package config

import (
	"context"
	"encoding/json"

	"github.com/heroiclabs/nakama-common/runtime"

	"github.com/blendizzard/block-server/keyspace"
	"github.com/blendizzard/block-server/nkport"
)

// Config is the singleton operational-parameter record. Mutable only by
// the current admin, via RpcUpdateConfig.
type Config struct {
	Vault                string   `json:"vault"`
	AMMRouter            string   `json:"amm_router"`
	TokenLedger          string   `json:"token_ledger"` // base URL of the external token ledger claim_yield/sweep_dust transfer through
	YieldToken           string   `json:"yield_token"`
	PayoutToken          string   `json:"payout_token"`
	EpochDurationSeconds int64    `json:"epoch_duration_seconds"`
	ReserveTokenIDs      []uint32 `json:"reserve_token_ids"`
	SlippageToleranceBps int64    `json:"slippage_tolerance_bps"` // basis points off the quoted rate
	DustGraceSeconds     int64    `json:"dust_grace_seconds"`     // spec.md OQ3
	Treasury             string   `json:"treasury"`               // dust-sweep destination
}

// readSingleton reads a single CollectionSingleton entry by key, decoding
// its JSON value into out. found is false (with a nil err) when the key
// has never been written.
func readSingleton(ctx context.Context, nk nkport.StorageClient, key string, out interface{}) (found bool, version string, err error) {
	objs, err := nk.StorageRead(ctx, []*runtime.StorageRead{{
		Collection: keyspace.CollectionSingleton,
		Key:        key,
	}})
	if err != nil {
		return false, "", err
	}
	if len(objs) == 0 {
		return false, "", nil
	}
	if err := json.Unmarshal([]byte(objs[0].Value), out); err != nil {
		return false, "", err
	}
	return true, objs[0].Version, nil
}

// writeSingleton writes a single CollectionSingleton entry, hidden from
// client read/write (permission 0) since these are server-internal.
func writeSingleton(ctx context.Context, nk nkport.StorageClient, key string, value interface{}, version string) error {
	buf, err := json.Marshal(value)
	if err != nil {
		return err
	}
	_, err = nk.StorageWrite(ctx, []*runtime.StorageWrite{{
		Collection:      keyspace.CollectionSingleton,
		Key:             key,
		Value:           string(buf),
		Version:         version,
		PermissionRead:  0,
		PermissionWrite: 0,
	}})
	return err
}

// GetAdmin returns the current admin address. found is false before init.
func GetAdmin(ctx context.Context, nk nkport.StorageClient) (admin string, found bool, err error) {
	var v struct {
		Admin string `json:"admin"`
	}
	found, _, err = readSingleton(ctx, nk, keyspace.KeyAdmin, &v)
	return v.Admin, found, err
}

func setAdmin(ctx context.Context, nk nkport.StorageClient, admin string) error {
	return writeSingleton(ctx, nk, keyspace.KeyAdmin, struct {
		Admin string `json:"admin"`
	}{Admin: admin}, "")
}

// IsPaused returns the current Paused flag. Defaults to false (not
// paused) when never written — matching the teacher's "absent storage
// object means default, not error" convention for non-identity state.
func IsPaused(ctx context.Context, nk nkport.StorageClient) (bool, error) {
	var v struct {
		Paused bool `json:"paused"`
	}
	_, _, err := readSingleton(ctx, nk, keyspace.KeyPaused, &v)
	return v.Paused, err
}

func setPaused(ctx context.Context, nk nkport.StorageClient, paused bool) error {
	return writeSingleton(ctx, nk, keyspace.KeyPaused, struct {
		Paused bool `json:"paused"`
	}{Paused: paused}, "")
}

// GetConfig returns the current Config record. found is false before init.
func GetConfig(ctx context.Context, nk nkport.StorageClient) (cfg Config, found bool, err error) {
	found, _, err = readSingleton(ctx, nk, keyspace.KeyConfig, &cfg)
	return cfg, found, err
}

func setConfig(ctx context.Context, nk nkport.StorageClient, cfg Config) error {
	return writeSingleton(ctx, nk, keyspace.KeyConfig, cfg, "")
}

// GetCurrentEpoch returns the current epoch pointer. Defaults to 0 before
// the first cycle_epoch call (epoch 0 is created at init).
func GetCurrentEpoch(ctx context.Context, nk nkport.StorageClient) (uint32, error) {
	var v struct {
		Epoch uint32 `json:"epoch"`
	}
	_, _, err := readSingleton(ctx, nk, keyspace.KeyCurrentEpoch, &v)
	return v.Epoch, err
}

// SetCurrentEpoch advances the CurrentEpoch pointer. Exported for the
// epoch package, the sole authorized mutator of this singleton.
func SetCurrentEpoch(ctx context.Context, nk nkport.StorageClient, epoch uint32) error {
	return writeSingleton(ctx, nk, keyspace.KeyCurrentEpoch, struct {
		Epoch uint32 `json:"epoch"`
	}{Epoch: epoch}, "")
}
