// Package nktest provides a minimal in-memory stand-in for Nakama's
// runtime.NakamaModule, scoped to exactly the nkport interfaces this
// repo's domain packages depend on. It exists so unit tests can drive
// deposit/withdraw/game/epoch/reward logic without a live Nakama
// instance, the same role replay-api-replay-api's test/mocks package
// plays for its own domain interfaces.
package nktest

import (
	"context"
	"fmt"
	"sync"

	"github.com/heroiclabs/nakama-common/api"
	"github.com/heroiclabs/nakama-common/runtime"
)

type storageKey struct {
	collection string
	key        string
}

// NK is the in-memory fake. Zero value is ready to use via New.
type NK struct {
	mu          sync.Mutex
	objects     map[storageKey]*api.StorageObject
	nextVersion int

	Events        []*api.Event
	Notifications []Notification

	// HTTP, when set, backs HttpRequest with canned responses; when nil,
	// HttpRequest answers 200 with an empty JSON object.
	HTTP func(ctx context.Context, url, method string, headers map[string]string, content string) (int, string, error)
}

// Notification records a single NotificationSend call for assertions.
type Notification struct {
	UserID  string
	Subject string
	Content map[string]interface{}
	Code    int
}

func New() *NK {
	return &NK{objects: map[storageKey]*api.StorageObject{}}
}

func (f *NK) StorageRead(ctx context.Context, reads []*runtime.StorageRead) ([]*api.StorageObject, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]*api.StorageObject, 0, len(reads))
	for _, r := range reads {
		if obj, ok := f.objects[storageKey{r.Collection, r.Key}]; ok {
			cp := *obj
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (f *NK) StorageWrite(ctx context.Context, writes []*runtime.StorageWrite) ([]*api.StorageObjectAck, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.applyWritesLocked(writes)
}

func (f *NK) applyWritesLocked(writes []*runtime.StorageWrite) ([]*api.StorageObjectAck, error) {
	acks := make([]*api.StorageObjectAck, 0, len(writes))
	for _, w := range writes {
		k := storageKey{w.Collection, w.Key}
		if existing, ok := f.objects[k]; ok && w.Version != "" && existing.Version != w.Version {
			return nil, fmt.Errorf("nktest: version mismatch for %s/%s", w.Collection, w.Key)
		}
		f.nextVersion++
		version := fmt.Sprintf("v%d", f.nextVersion)
		f.objects[k] = &api.StorageObject{
			Collection:      w.Collection,
			Key:             w.Key,
			UserId:          w.UserID,
			Value:           w.Value,
			Version:         version,
			PermissionRead:  int32(w.PermissionRead),
			PermissionWrite: int32(w.PermissionWrite),
		}
		acks = append(acks, &api.StorageObjectAck{Collection: w.Collection, Key: w.Key, Version: version, UserId: w.UserID})
	}
	return acks, nil
}

func (f *NK) StorageDelete(ctx context.Context, deletes []*runtime.StorageDelete) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, d := range deletes {
		delete(f.objects, storageKey{d.Collection, d.Key})
	}
	return nil
}

func (f *NK) StorageList(ctx context.Context, callerID, userID, collection string, limit int, cursor string) ([]*api.StorageObject, string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*api.StorageObject
	for k, v := range f.objects {
		if k.collection == collection {
			cp := *v
			out = append(out, &cp)
		}
	}
	return out, "", nil
}

func (f *NK) WalletUpdate(ctx context.Context, userID string, changeset map[string]int64, metadata map[string]interface{}, updateLedger bool) (map[string]int64, map[string]int64, error) {
	return changeset, map[string]int64{}, nil
}

func (f *NK) AccountGetId(ctx context.Context, userID string) (*api.Account, error) {
	return &api.Account{User: &api.User{Id: userID}}, nil
}

func (f *NK) MultiUpdate(ctx context.Context, accountUpdates []*runtime.AccountUpdate, storageWrites []*runtime.StorageWrite, storageDeletes []*runtime.StorageDelete, walletUpdates []*runtime.WalletUpdate, updateLedger bool) ([]*api.StorageObjectAck, []*api.WalletUpdateResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, d := range storageDeletes {
		delete(f.objects, storageKey{d.Collection, d.Key})
	}
	acks, err := f.applyWritesLocked(storageWrites)
	return acks, nil, err
}

func (f *NK) Event(ctx context.Context, evt *api.Event) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Events = append(f.Events, evt)
	return nil
}

func (f *NK) NotificationSend(ctx context.Context, userID, subject string, content map[string]interface{}, code int, senderID string, persistent bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Notifications = append(f.Notifications, Notification{UserID: userID, Subject: subject, Content: content, Code: code})
	return nil
}

func (f *NK) HttpRequest(ctx context.Context, url, method string, headers map[string]string, content string) (int, string, error) {
	if f.HTTP != nil {
		return f.HTTP(ctx, url, method, headers, content)
	}
	return 200, "{}", nil
}

// Logger is a runtime.Logger that discards everything, so tests exercising
// blendlog-instrumented code paths don't need a live Nakama logger.
type Logger struct{}

func (Logger) Debug(format string, v ...interface{}) {}
func (Logger) Info(format string, v ...interface{})  {}
func (Logger) Warn(format string, v ...interface{})  {}
func (Logger) Error(format string, v ...interface{}) {}
func (l Logger) WithField(key string, value interface{}) runtime.Logger {
	return l
}
func (l Logger) WithFields(fields map[string]interface{}) runtime.Logger {
	return l
}
func (Logger) Fields() map[string]interface{} { return nil }
