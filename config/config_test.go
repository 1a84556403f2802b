package config_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/blendizzard/block-server/config"
	"github.com/blendizzard/block-server/internal/nktest"
)

func TestGetAdminNotFoundBeforeInit(t *testing.T) {
	nk := nktest.New()
	_, found, err := config.GetAdmin(context.Background(), nk)
	require.NoError(t, err)
	assert.False(t, found)
}

func TestIsPausedDefaultsFalse(t *testing.T) {
	nk := nktest.New()
	paused, err := config.IsPaused(context.Background(), nk)
	require.NoError(t, err)
	assert.False(t, paused)
}

func TestRequireAdminRejectsUnauthenticatedCaller(t *testing.T) {
	nk := nktest.New()
	_, err := config.RequireAdmin(context.Background(), nk)
	assert.Error(t, err)
}

func TestCurrentEpochDefaultsZero(t *testing.T) {
	nk := nktest.New()
	e, err := config.GetCurrentEpoch(context.Background(), nk)
	require.NoError(t, err)
	assert.EqualValues(t, 0, e)
}

func TestSetCurrentEpochAdvancesPointer(t *testing.T) {
	nk := nktest.New()
	require.NoError(t, config.SetCurrentEpoch(context.Background(), nk, 3))
	e, err := config.GetCurrentEpoch(context.Background(), nk)
	require.NoError(t, err)
	assert.EqualValues(t, 3, e)
}

func TestGetConfigNotFoundBeforeInit(t *testing.T) {
	nk := nktest.New()
	_, found, err := config.GetConfig(context.Background(), nk)
	require.NoError(t, err)
	assert.False(t, found)
}
