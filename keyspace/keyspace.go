// Package keyspace builds the typed storage keys used across Blendizzard
// and implements the logical-TTL envelope that stands in for Soroban-style
// per-entry ledger lifetimes on top of Nakama's storage engine, which has
// no native per-object expiry.
//
// Keys are never built by string concatenation at the call site — every
// collection/key pair used anywhere in the module is constructed here, by
// name, from a small discriminated set of entity kinds.
package keyspace

import "fmt"

// Lifetime classifies how long an entry should live, mirroring spec.md's
// instance/persistent/temporary split.
type Lifetime int

const (
	// LifetimeInstance co-extends with the module/contract itself:
	// Admin, Paused, Config, CurrentEpoch.
	LifetimeInstance Lifetime = iota
	// LifetimePersistent: Player, EpochInfo, GameWhitelist.
	LifetimePersistent
	// LifetimeTemporary: EpochPlayer, GameSession, Claimed.
	LifetimeTemporary
)

// Storage collections. Kept distinct per entity kind so a single
// nk.StorageList call over a collection never needs to filter by key
// prefix — the teacher's items package does this (storageCollectionInventory
// vs storageCollectionProgression); Blendizzard generalizes the same split
// to singletons vs. per-epoch vs. per-session state.
const (
	CollectionSingleton   = "singleton"       // Admin, Paused, Config, CurrentEpoch
	CollectionPlayer      = "player"          // Player, by user ID
	CollectionEpoch       = "epoch"           // EpochInfo, by epoch number
	CollectionEpochPlayer = "epoch_player"    // EpochPlayer, by "<epoch>:<userID>"
	CollectionSession     = "game_session"    // GameSession, by session ID
	CollectionGame        = "game_whitelist"  // whitelist membership marker, by game address
	CollectionClaimed     = "claimed"         // claim marker, by "<epoch>:<userID>"
)

// Singleton keys within CollectionSingleton.
const (
	KeyAdmin        = "admin"
	KeyPaused       = "paused"
	KeyConfig       = "config"
	KeyCurrentEpoch = "current_epoch"
)

// PlayerKey returns the storage key for a Player record.
func PlayerKey(userID string) string {
	return userID
}

// EpochPlayerKey returns the storage key for an EpochPlayer record.
func EpochPlayerKey(epoch uint32, userID string) string {
	return fmt.Sprintf("%d:%s", epoch, userID)
}

// EpochKey returns the storage key for an EpochInfo record.
func EpochKey(epoch uint32) string {
	return fmt.Sprintf("%d", epoch)
}

// SessionKey returns the storage key for a GameSession record. session_id
// is already a caller-opaque 32-byte identifier (hex-encoded by callers);
// keyspace does not reinterpret it.
func SessionKey(sessionID string) string {
	return sessionID
}

// GameKey returns the storage key for a whitelist membership marker.
func GameKey(gameAddr string) string {
	return gameAddr
}

// ClaimedKey returns the storage key for a Claimed marker.
func ClaimedKey(epoch uint32, userID string) string {
	return fmt.Sprintf("%d:%s", epoch, userID)
}
