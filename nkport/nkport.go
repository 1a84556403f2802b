// Package nkport declares the narrow slices of runtime.NakamaModule each
// domain package actually calls. The domain-logic functions in this repo
// take one of these interfaces (the registered RPC handlers themselves
// receive the full runtime.NakamaModule) — any value of the concrete type Nakama supplies at
// InitModule time already satisfies all of them, so production wiring is
// unchanged, but tests can supply small in-memory fakes instead of a live
// Nakama instance.
package nkport

import (
	"context"

	"github.com/heroiclabs/nakama-common/api"
	"github.com/heroiclabs/nakama-common/runtime"
)

// StorageClient is the subset of runtime.NakamaModule used for keyspace
// reads, writes, deletes, and collection listing.
type StorageClient interface {
	StorageRead(ctx context.Context, reads []*runtime.StorageRead) ([]*api.StorageObject, error)
	StorageWrite(ctx context.Context, writes []*runtime.StorageWrite) ([]*api.StorageObjectAck, error)
	StorageDelete(ctx context.Context, deletes []*runtime.StorageDelete) error
	StorageList(ctx context.Context, callerID, userID, collection string, limit int, cursor string) ([]*api.StorageObject, string, error)
}

// WalletClient is the subset used for reading/mutating Nakama account
// wallets. No domain package in this module calls it.
type WalletClient interface {
	WalletUpdate(ctx context.Context, userID string, changeset map[string]int64, metadata map[string]interface{}, updateLedger bool) (updated, previous map[string]int64, err error)
}

// AccountClient reads account records.
type AccountClient interface {
	AccountGetId(ctx context.Context, userID string) (*api.Account, error)
}

// MultiUpdateClient performs the atomic, all-or-nothing commit that
// account's deposit/withdraw and rewards' claim_yield use to land several
// storage writes together. cycle_epoch and end_game write their storage
// objects one at a time instead.
type MultiUpdateClient interface {
	MultiUpdate(ctx context.Context, accountUpdates []*runtime.AccountUpdate, storageWrites []*runtime.StorageWrite, storageDeletes []*runtime.StorageDelete, walletUpdates []*runtime.WalletUpdate, updateLedger bool) ([]*api.StorageObjectAck, []*api.WalletUpdateResult, error)
}

// EventClient emits structured analytics events for off-chain indexing.
type EventClient interface {
	Event(ctx context.Context, evt *api.Event) error
}

// NotificationClient pushes realtime notifications to connected clients.
type NotificationClient interface {
	NotificationSend(ctx context.Context, userID, subject string, content map[string]interface{}, code int, senderID string, persistent bool) error
}

// HTTPClient is the narrow interface every external-collaborator adapter
// (vault, AMM router, token ledger) is built on. Nakama's runtime exposes
// outbound HTTP as a sandboxed module capability rather than letting
// plugin code dial sockets directly.
type HTTPClient interface {
	HttpRequest(ctx context.Context, url, method string, headers map[string]string, content string) (statusCode int, body string, err error)
}

// Full is the union of everything InitModule's runtime.NakamaModule
// satisfies. No package in this module takes it; packages that need more
// than one concern (epoch, rewards) declare their own narrower Store
// unions.
type Full interface {
	StorageClient
	WalletClient
	AccountClient
	MultiUpdateClient
	EventClient
	NotificationClient
	HTTPClient
}
