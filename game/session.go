package game

import (
	"context"
	"encoding/json"
	"time"

	"github.com/heroiclabs/nakama-common/runtime"

	blenderrors "github.com/blendizzard/block-server/errors"
	"github.com/blendizzard/block-server/keyspace"
	"github.com/blendizzard/block-server/nkport"
)

// SessionStatus mirrors §3's GameSession.status tagged transition.
type SessionStatus string

const (
	StatusPending   SessionStatus = "pending"
	StatusCompleted SessionStatus = "completed"
	StatusCancelled SessionStatus = "cancelled"
)

// Session is the persisted GameSession record.
type Session struct {
	GameContract       string        `json:"game_contract"`
	SessionID          string        `json:"session_id"`
	Player1            string        `json:"player1"`
	Player2            string        `json:"player2"`
	Player1Wager       int64         `json:"player1_wager"`
	Player2Wager       int64         `json:"player2_wager"`
	Status             SessionStatus `json:"status"`
	HasWinner          bool          `json:"has_winner"`
	Player1Won         bool          `json:"player1_won"`
	CreatedAtEpoch     uint32        `json:"created_at_epoch"`
	CreatedAtTimestamp int64         `json:"created_at_timestamp"`
}

func loadSession(ctx context.Context, nk nkport.StorageClient, sessionID string) (s Session, found bool, version string, err error) {
	objs, err := nk.StorageRead(ctx, []*runtime.StorageRead{{
		Collection: keyspace.CollectionSession,
		Key:        keyspace.SessionKey(sessionID),
	}})
	if err != nil {
		return Session{}, false, "", blenderrors.ErrCouldNotReadStorage
	}
	if len(objs) == 0 {
		return Session{}, false, "", nil
	}
	var env keyspace.Envelope[Session]
	if err := json.Unmarshal([]byte(objs[0].Value), &env); err != nil {
		return Session{}, false, "", blenderrors.ErrUnmarshal
	}
	return env.Value, true, objs[0].Version, nil
}

func saveSession(ctx context.Context, nk nkport.StorageClient, s Session, version string, now time.Time) error {
	env := keyspace.NewEnvelope(s, now)
	buf, err := json.Marshal(env)
	if err != nil {
		return blenderrors.ErrMarshal
	}
	_, err = nk.StorageWrite(ctx, []*runtime.StorageWrite{{
		Collection:      keyspace.CollectionSession,
		Key:             keyspace.SessionKey(s.SessionID),
		Value:           string(buf),
		Version:         version,
		PermissionRead:  2,
		PermissionWrite: 0,
	}})
	if err != nil {
		return blenderrors.ErrCouldNotWriteStorage
	}
	return nil
}

func deleteSession(ctx context.Context, nk nkport.StorageClient, sessionID string) error {
	return nk.StorageDelete(ctx, []*runtime.StorageDelete{{
		Collection: keyspace.CollectionSession,
		Key:        keyspace.SessionKey(sessionID),
	}})
}
