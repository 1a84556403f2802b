// Package blendlog wraps runtime.Logger so every line is auto-tagged
// with the acting user, adapted from the teacher's items.LogWithUser
// family in utils.go.
package blendlog

import (
	"context"

	"github.com/heroiclabs/nakama-common/runtime"
)

func fields(ctx context.Context, extra map[string]interface{}) map[string]interface{} {
	userID, _ := ctx.Value(runtime.RUNTIME_CTX_USER_ID).(string)
	if userID == "" && extra == nil {
		return nil
	}
	if extra == nil {
		extra = map[string]interface{}{}
	}
	if userID != "" {
		extra["user"] = userID
	}
	return extra
}

func Info(ctx context.Context, logger runtime.Logger, message string, extra map[string]interface{}) {
	if f := fields(ctx, extra); f != nil {
		logger.WithFields(f).Info(message)
		return
	}
	logger.Info(message)
}

func Warn(ctx context.Context, logger runtime.Logger, message string, extra map[string]interface{}) {
	if f := fields(ctx, extra); f != nil {
		logger.WithFields(f).Warn(message)
		return
	}
	logger.Warn(message)
}

// Error logs message with err attached, tagged with the acting user.
func Error(ctx context.Context, logger runtime.Logger, message string, err error) {
	extra := map[string]interface{}{}
	if err != nil {
		extra["error"] = err.Error()
	}
	if f := fields(ctx, extra); f != nil {
		logger.WithFields(f).Error(message)
		return
	}
	logger.Error(message)
}
