package game

import (
	"context"
	"encoding/json"

	"github.com/heroiclabs/nakama-common/runtime"

	blenderrors "github.com/blendizzard/block-server/errors"
	"github.com/blendizzard/block-server/keyspace"
	"github.com/blendizzard/block-server/nkport"
)

type whitelistMarker struct {
	Present bool `json:"present"`
}

// IsWhitelisted is the is_game query.
func IsWhitelisted(ctx context.Context, nk nkport.StorageClient, gameAddr string) (bool, error) {
	objs, err := nk.StorageRead(ctx, []*runtime.StorageRead{{
		Collection: keyspace.CollectionGame,
		Key:        keyspace.GameKey(gameAddr),
	}})
	if err != nil {
		return false, blenderrors.ErrCouldNotReadStorage
	}
	return len(objs) > 0, nil
}

// AddGame implements add_game(addr). Admin-only (enforced by the caller).
func AddGame(ctx context.Context, nk nkport.StorageClient, gameAddr string) error {
	buf, err := json.Marshal(whitelistMarker{Present: true})
	if err != nil {
		return blenderrors.ErrMarshal
	}
	_, err = nk.StorageWrite(ctx, []*runtime.StorageWrite{{
		Collection:      keyspace.CollectionGame,
		Key:             keyspace.GameKey(gameAddr),
		Value:           string(buf),
		PermissionRead:  2,
		PermissionWrite: 0,
	}})
	if err != nil {
		return blenderrors.ErrCouldNotWriteStorage
	}
	return nil
}

// RemoveGame implements remove_game(addr). Admin-only (enforced by the caller).
func RemoveGame(ctx context.Context, nk nkport.StorageClient, gameAddr string) error {
	return nk.StorageDelete(ctx, []*runtime.StorageDelete{{
		Collection: keyspace.CollectionGame,
		Key:        keyspace.GameKey(gameAddr),
	}})
}
